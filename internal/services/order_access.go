package services

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"

	domain "github.com/techfy/storefront-api/internal/domain"
)

// AuthorizeOrderRead decides whether actor may read order.
//
// Account orders are readable by their owner and by staff. Guest orders have no owner, so the
// only proof accepted is the contact email captured at checkout, compared case-insensitively.
func AuthorizeOrderRead(order domain.Order, actor domain.Actor, email string) error {
	if !order.IsGuest() {
		if actor.IsAnonymous() {
			return fmt.Errorf("%w: sign in to view this order", ErrOrderForbidden)
		}
		if actor.ID == order.UserID || actor.Role.Can(domain.CapabilityReadAnyOrder) {
			return nil
		}
		return fmt.Errorf("%w: not allowed to view this order", ErrOrderForbidden)
	}

	if !emailsMatch(email, order.Customer.Email) {
		return fmt.Errorf("%w: email verification required", ErrOrderForbidden)
	}
	return nil
}

func emailsMatch(supplied, captured string) bool {
	supplied = strings.TrimSpace(supplied)
	if supplied == "" {
		return false
	}
	fold := cases.Fold()
	return fold.String(supplied) == fold.String(strings.TrimSpace(captured))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
