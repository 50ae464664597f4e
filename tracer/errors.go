package tracer

import "errors"

var (
	ErrReleased = errors.New("tracer: session has been released")
)
