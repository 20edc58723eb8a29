package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Role is the closed set of live-connection roles.
type Role uint8

// List of connection roles
const (
	RoleCustomer Role = iota + 1
	RoleRestaurant
	RoleCourier
	RoleAdmin
)

// Roles returns every role.
func Roles() []Role {
	return []Role{RoleCustomer, RoleRestaurant, RoleCourier, RoleAdmin}
}

func (r Role) String() string {
	switch r {
	case RoleCustomer:
		return "customer"
	case RoleRestaurant:
		return "restaurant"
	case RoleCourier:
		return "courier"
	case RoleAdmin:
		return "admin"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

// ParseRole parses a role name; "delivery_person" is accepted as a courier alias.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "customer":
		return RoleCustomer, nil
	case "restaurant":
		return RoleRestaurant, nil
	case "courier", "delivery_person":
		return RoleCourier, nil
	case "admin":
		return RoleAdmin, nil
	default:
		return 0, fmt.Errorf("unknown role %q", s)
	}
}

// Identity is who sits behind a live connection.
// ID is the correlated courier, restaurant or customer id and may be uuid.Nil.
type Identity struct {
	Role Role
	ID   uuid.UUID
}

// Valid reports whether the role is one of the known roles.
func (i Identity) Valid() bool {
	return i.Role >= RoleCustomer && i.Role <= RoleAdmin
}

// IsCourier reports whether the identity is a courier with a known id.
func (i Identity) IsCourier() bool {
	return i.Role == RoleCourier && i.ID != uuid.Nil
}
