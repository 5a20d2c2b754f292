package services

import (
	"errors"
	"fmt"

	"github.com/techfy/storefront-api/internal/repositories"
)

var (
	// ErrOrderInvalidInput signals malformed or missing input.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderForbidden is returned when the caller may not read or change the order.
	ErrOrderForbidden = errors.New("order: forbidden")
	// ErrOrderNotFound indicates the order number does not exist.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrInvalidTransition rejects a status change the caller is not allowed to make from the current status.
	ErrInvalidTransition = errors.New("order: invalid status transition")
	// ErrOrderLocked rejects address changes once the order has shipped.
	ErrOrderLocked = errors.New("order: locked after shipment")
	// ErrOrderConflict means concurrent writers kept winning the version race.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrOrderUnavailable means the order store could not be reached.
	ErrOrderUnavailable = errors.New("order: store unavailable")
)

// mapRepositoryError translates store errors into the service taxonomy. Conflicts are left to
// callers, which treat them as retry signals.
func mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	var invalid interface{ IsInvalid() bool }
	if errors.As(err, &invalid) && invalid.IsInvalid() {
		return fmt.Errorf("%w: %v", ErrOrderInvalidInput, err)
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
		}
	}
	return err
}

func isConflict(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsConflict()
}
