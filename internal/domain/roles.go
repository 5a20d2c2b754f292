package domain

import "strings"

// Role is the closed set of caller roles carried by credentials.
type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleSupport  Role = "SUPPORT"
	RoleAdmin    Role = "ADMIN"
)

// Capability names an action a role may perform.
type Capability string

const (
	// CapabilityReadAnyOrder allows reading orders regardless of ownership.
	CapabilityReadAnyOrder Capability = "orders:read-any"
	// CapabilityManageOrders allows support mutations (status, address, search).
	CapabilityManageOrders Capability = "orders:manage"
	// CapabilityListOwnOrders allows listing the orders a caller owns.
	CapabilityListOwnOrders Capability = "orders:list-own"
	// CapabilityConfirmOwnDelivery allows a caller to confirm delivery of orders they own.
	CapabilityConfirmOwnDelivery Capability = "orders:confirm-own"
)

var roleCapabilities = map[Role]map[Capability]struct{}{
	RoleCustomer: {
		CapabilityListOwnOrders:      {},
		CapabilityConfirmOwnDelivery: {},
	},
	RoleSupport: {
		CapabilityReadAnyOrder: {},
		CapabilityManageOrders: {},
	},
	RoleAdmin: {
		CapabilityReadAnyOrder: {},
		CapabilityManageOrders: {},
	},
}

// ParseRole resolves a raw claim into a known role. Unknown names are rejected.
func ParseRole(raw string) (Role, bool) {
	role := Role(strings.ToUpper(strings.TrimSpace(raw)))
	if _, ok := roleCapabilities[role]; !ok {
		return "", false
	}
	return role, true
}

// Can reports whether the role holds the capability.
func (r Role) Can(capability Capability) bool {
	caps, ok := roleCapabilities[r]
	if !ok {
		return false
	}
	_, ok = caps[capability]
	return ok
}

// IsStaff reports whether the role may manage orders, which holds for ADMIN and SUPPORT.
func (r Role) IsStaff() bool {
	return r.Can(CapabilityManageOrders)
}

// Actor identifies the caller of a service operation. The zero value is anonymous.
type Actor struct {
	ID    string
	Role  Role
	Email string
}

// IsAnonymous reports whether no authenticated identity is attached.
func (a Actor) IsAnonymous() bool {
	return strings.TrimSpace(a.ID) == ""
}

// IsStaff reports whether the actor is authenticated with a staff role.
func (a Actor) IsStaff() bool {
	return !a.IsAnonymous() && a.Role.IsStaff()
}
