package compiler

import "errors"

var (
	ErrReleased       = errors.New("compiler: compiler has been released")
	ErrInvalidIndex   = errors.New("compiler: shape index out of range")
	ErrMissingNormals = errors.New("compiler: shape normal count does not match vertex count")
)
