package events

import (
	"github.com/google/uuid"

	"courier-dispatch/internal/domain"
)

// Audience lists which connections may see an event.
// CourierID admits the single courier with that id; AllCouriers admits every courier.
type Audience struct {
	Admin       bool
	Customer    bool
	Restaurant  bool
	AllCouriers bool
	CourierID   uuid.UUID
}

// Allows is the visibility predicate evaluated per connection.
func (a Audience) Allows(id domain.Identity) bool {
	switch id.Role {
	case domain.RoleAdmin:
		return a.Admin
	case domain.RoleCustomer:
		return a.Customer
	case domain.RoleRestaurant:
		return a.Restaurant
	case domain.RoleCourier:
		if a.AllCouriers {
			return true
		}
		return a.CourierID != uuid.Nil && a.CourierID == id.ID
	default:
		return false
	}
}

// Visible reports whether e may be delivered to a connection with the given identity.
func Visible(e Event, id domain.Identity) bool {
	if e == nil {
		return false
	}
	return e.Audience().Allows(id)
}
