package device

import "errors"

var (
	ErrUnknownBackend     = errors.New("device: unknown backend")
	ErrBackendUnavailable = errors.New("device: backend not available in this build")
	ErrNoDevices          = errors.New("device: no devices available")
	ErrReleased           = errors.New("device: resource already released")
	ErrForeignBuffer      = errors.New("device: buffer belongs to a different device")
	ErrOutOfRange         = errors.New("device: buffer access out of range")
	ErrUnknownKernel      = errors.New("device: unknown kernel")
)
