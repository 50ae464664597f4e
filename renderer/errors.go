package renderer

import "errors"

var (
	ErrNoPrimary       = errors.New("renderer: no primary session")
	ErrMultiplePrimary = errors.New("renderer: more than one primary session")
	ErrSizeMismatch    = errors.New("renderer: session frame sizes differ")
	ErrShutdown        = errors.New("renderer: coordinator has been shut down")
	ErrSceneNotDefined = errors.New("renderer: no scene defined")
)
