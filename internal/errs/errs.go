// Package errs defines the error taxonomy shared by the ledger core.
// Callers only ever observe fully-applied or fully-failed operations; the
// unit of work rolls back before any of these escape.
package errs

import (
	"errors"
	"fmt"
)

// ValidationError reports a request that can never succeed as given: a
// missing or disabled account, a transfer without a target, an unknown kind.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// Validationf builds a ValidationError.
func Validationf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// NotFoundError reports an absent entity.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Resource + " not found"
	}
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// NotFound builds a NotFoundError.
func NotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// DataAccessError wraps a store or connection failure with the operation
// that hit it.
type DataAccessError struct {
	Op    string
	Cause error
}

func (e *DataAccessError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Cause)
}

func (e *DataAccessError) Unwrap() error {
	return e.Cause
}

// DataAccess wraps cause in a DataAccessError. A nil cause returns nil.
func DataAccess(op string, cause error) error {
	if cause == nil {
		return nil
	}
	return &DataAccessError{Op: op, Cause: cause}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nfe *NotFoundError
	return errors.As(err, &nfe)
}

// IsDataAccess reports whether err is a DataAccessError.
func IsDataAccess(err error) bool {
	var dae *DataAccessError
	return errors.As(err, &dae)
}
