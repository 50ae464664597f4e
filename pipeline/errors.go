package pipeline

import "errors"

var (
	ErrArity            = errors.New("pipeline: node arity mismatch")
	ErrSourceReleased   = errors.New("pipeline: source image released")
	ErrNodeReleased     = errors.New("pipeline: node released")
	ErrNotInitialized   = errors.New("pipeline: node not initialized")
	ErrUpstreamMismatch = errors.New("pipeline: upstream mismatch")
	ErrReleased         = errors.New("pipeline: scheduler released")
)
