// Package failure defines the error taxonomy shared by the render session:
// fatal initialization failures, recoverable tick failures and configuration
// errors.
package failure

import (
	"errors"
	"fmt"
)

// FatalInitError is returned when a compute device or one of its programs
// cannot be initialized. Log carries the backend build log when available.
type FatalInitError struct {
	Device string
	Op     string
	Log    string
	Err    error
}

func (e *FatalInitError) Error() string {
	msg := fmt.Sprintf("device (%s): %s failed: %v", e.Device, e.Op, e.Err)
	if e.Log != "" {
		msg += "\n" + e.Log
	}
	return msg
}

func (e *FatalInitError) Unwrap() error { return e.Err }

// RecoverableRenderError wraps a failure that occurred while processing a
// pipeline tick. The scheduler treats it as a request to end the session.
type RecoverableRenderError struct {
	Node string
	Err  error
}

func (e *RecoverableRenderError) Error() string {
	return fmt.Sprintf("node (%s): %v", e.Node, e.Err)
}

func (e *RecoverableRenderError) Unwrap() error { return e.Err }

// ConfigurationError reports an invalid option or an unresolvable scene
// resource reference.
type ConfigurationError struct {
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration (%s): %v", e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Fatal wraps err into a FatalInitError.
func Fatal(device, op string, err error) error {
	return &FatalInitError{Device: device, Op: op, Err: err}
}

// Recoverable wraps err into a RecoverableRenderError unless it already is one.
func Recoverable(node string, err error) error {
	if err == nil {
		return nil
	}
	var rErr *RecoverableRenderError
	if errors.As(err, &rErr) {
		return err
	}
	return &RecoverableRenderError{Node: node, Err: err}
}

// Config builds a ConfigurationError with a formatted message.
func Config(field, format string, args ...interface{}) error {
	return &ConfigurationError{Field: field, Err: fmt.Errorf(format, args...)}
}

// IsFatal returns true if err is (or wraps) a FatalInitError or a
// ConfigurationError.
func IsFatal(err error) bool {
	var fErr *FatalInitError
	var cErr *ConfigurationError
	return errors.As(err, &fErr) || errors.As(err, &cErr)
}

// IsRecoverable returns true if err is (or wraps) a RecoverableRenderError.
func IsRecoverable(err error) bool {
	var rErr *RecoverableRenderError
	return errors.As(err, &rErr)
}
