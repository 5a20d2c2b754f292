package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Error classifies GORM failures for the repository layer.
type Error struct {
	op          string
	err         error
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *Error) Error() string {
	if e.op != "" {
		return fmt.Sprintf("%s: %v", e.op, e.err)
	}
	return e.err.Error()
}

func (e *Error) Unwrap() error       { return e.err }
func (e *Error) IsNotFound() bool    { return e != nil && e.notFound }
func (e *Error) IsConflict() bool    { return e != nil && e.conflict }
func (e *Error) IsUnavailable() bool { return e != nil && e.unavailable }

// Conflict reports a failed compare-and-set detected by application logic.
func Conflict(op, message string) error {
	return &Error{op: op, err: errors.New(message), conflict: true}
}

// WrapError classifies err. It relies on gorm.Config.TranslateError so unique violations
// surface as gorm.ErrDuplicatedKey. Context errors pass through unchanged.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}

	e := &Error{op: op, err: err}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		e.notFound = true
	case errors.Is(err, gorm.ErrDuplicatedKey):
		e.conflict = true
	default:
		// Anything else from the driver is treated as the store being unreachable or broken.
		e.unavailable = true
	}
	return e
}
