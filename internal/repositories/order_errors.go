package repositories

import "fmt"

// OrderErrorCode enumerates order store failure causes.
type OrderErrorCode string

const (
	OrderErrorNotFound        OrderErrorCode = "order_not_found"
	OrderErrorDuplicateNumber OrderErrorCode = "order_duplicate_number"
	OrderErrorVersionConflict OrderErrorCode = "order_version_conflict"
	OrderErrorUnavailable     OrderErrorCode = "order_store_unavailable"
	OrderErrorInvalid         OrderErrorCode = "order_invalid"
)

// OrderError is the RepositoryError returned by stores without a native error taxonomy.
type OrderError struct {
	Op      string
	Code    OrderErrorCode
	Message string
	Err     error
}

var _ RepositoryError = (*OrderError)(nil)

func (e *OrderError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

func (e *OrderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *OrderError) IsNotFound() bool { return e != nil && e.Code == OrderErrorNotFound }

// IsConflict covers both a taken order number and a stale version.
func (e *OrderError) IsConflict() bool {
	return e != nil && (e.Code == OrderErrorDuplicateNumber || e.Code == OrderErrorVersionConflict)
}

func (e *OrderError) IsUnavailable() bool { return e != nil && e.Code == OrderErrorUnavailable }

// IsInvalid reports a write the store refused because the order itself is malformed.
func (e *OrderError) IsInvalid() bool { return e != nil && e.Code == OrderErrorInvalid }

// NewOrderError constructs a typed order store error.
func NewOrderError(op string, code OrderErrorCode, message string, err error) *OrderError {
	if message == "" {
		message = string(code)
	}
	return &OrderError{Op: op, Code: code, Message: message, Err: err}
}
