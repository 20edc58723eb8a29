package domain

// DeliveryStatus represents the status of an assignment.
type DeliveryStatus string

// List of possible assignment statuses
const (
	StatusAssigned            DeliveryStatus = "assigned"
	StatusAccepted            DeliveryStatus = "accepted"
	StatusEnRouteToRestaurant DeliveryStatus = "enroutetorestaurant"
	StatusArrivedAtRestaurant DeliveryStatus = "arrivedatrestaurant"
	StatusPickedUp            DeliveryStatus = "pickedup"
	StatusEnRouteToCustomer   DeliveryStatus = "enroutetocustomer"
	StatusArrivedAtCustomer   DeliveryStatus = "arrivedatcustomer"
	StatusDelivered           DeliveryStatus = "delivered"
	StatusCancelled           DeliveryStatus = "cancelled"
	StatusFailed              DeliveryStatus = "failed"
)

// forward is the happy path in order.
var forward = [...]DeliveryStatus{
	StatusAssigned,
	StatusAccepted,
	StatusEnRouteToRestaurant,
	StatusArrivedAtRestaurant,
	StatusPickedUp,
	StatusEnRouteToCustomer,
	StatusArrivedAtCustomer,
	StatusDelivered,
}

// AllStatuses returns every defined status.
func AllStatuses() []DeliveryStatus {
	out := make([]DeliveryStatus, 0, len(forward)+2)
	out = append(out, forward[:]...)
	return append(out, StatusCancelled, StatusFailed)
}

// Valid checks if the DeliveryStatus is valid
func (s DeliveryStatus) Valid() bool {
	return s == StatusCancelled || s == StatusFailed || s.step() >= 0
}

// Terminal reports whether no further transition is accepted from s.
func (s DeliveryStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled || s == StatusFailed
}

// Successful reports whether s is the successful terminal state.
func (s DeliveryStatus) Successful() bool {
	return s == StatusDelivered
}

func (s DeliveryStatus) step() int {
	for i, v := range forward {
		if v == s {
			return i
		}
	}
	return -1
}

// CanTransition reports whether the state graph allows from -> to.
// Only the next forward step, or Cancelled/Failed from a non-terminal state, is legal.
func CanTransition(from, to DeliveryStatus) bool {
	if !from.Valid() || !to.Valid() || from.Terminal() {
		return false
	}
	if to == StatusCancelled || to == StatusFailed {
		return true
	}
	i := from.step()
	return i >= 0 && i+1 < len(forward) && forward[i+1] == to
}
