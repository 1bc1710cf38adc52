package bindery

import (
	"errors"
	"fmt"

	"github.com/pthm/bindery/lib/encoding"
	"github.com/pthm/bindery/lib/expr"
	"github.com/pthm/bindery/lib/route"
	"github.com/pthm/bindery/lib/views"
)

// Sentinel errors for application operations.
var (
	ErrNoController     = errors.New("bindery: controller does not embed *bindery.Controller")
	ErrNotFound         = errors.New("bindery: resource not found")
	ErrNoHistory        = errors.New("bindery: no previous navigation")
	ErrSignatureInvalid = errors.New("bindery: snapshot signature verification failed")
	ErrDecryptFailed    = errors.New("bindery: snapshot decryption failed")
	ErrInvalidFormat    = errors.New("bindery: invalid snapshot format")
	ErrResolution       = expr.ErrUnresolved
)

// ConfigurationError is a malformed route, directive or config definition,
// raised when it is registered or parsed.
type ConfigurationError struct {
	Op  string
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("bindery: configuration %s: %v", e.Op, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// HandlerError is a failure inside a lifecycle hook, route handler or
// event handler. Stage names where it happened, e.g. "load" or
// "route /users/:id".
type HandlerError struct {
	Stage string
	Err   error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("bindery: %s: %v", e.Stage, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

// CollaboratorError is a failed view fetch, request or storage operation.
// It is returned to the caller, never swallowed.
type CollaboratorError struct {
	Op  string
	Err error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("bindery: %s: %v", e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

// IsConfigurationError checks if err is or wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// IsHandlerError checks if err is or wraps a HandlerError.
func IsHandlerError(err error) bool {
	var he *HandlerError
	return errors.As(err, &he)
}

// IsCollaboratorError checks if err is or wraps a CollaboratorError.
func IsCollaboratorError(err error) bool {
	var ce *CollaboratorError
	return errors.As(err, &ce)
}

// IsNotFound checks if err is a not-found error from the app or a view
// fetcher.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || views.IsNotFound(err)
}

// IsDecryptionError checks if err is a snapshot decryption or signature
// error.
func IsDecryptionError(err error) bool {
	return errors.Is(err, ErrDecryptFailed) || errors.Is(err, ErrSignatureInvalid)
}

// wrapEncodingError maps codec errors to bindery sentinels.
func wrapEncodingError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, encoding.ErrInvalidFormat):
		return ErrInvalidFormat
	case errors.Is(err, encoding.ErrSignatureInvalid):
		return ErrSignatureInvalid
	case errors.Is(err, encoding.ErrDecryptFailed):
		return ErrDecryptFailed
	}
	return err
}

// configError wraps route registration failures.
func configError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, route.ErrInvalidPattern) || errors.Is(err, route.ErrDuplicate) || errors.Is(err, route.ErrUnknownTarget) {
		return &ConfigurationError{Op: op, Err: err}
	}
	return err
}
