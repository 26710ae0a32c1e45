package enums

import "fmt"

// OrderStatus tracks the lifecycle of a pharmacy order.
type OrderStatus string

const (
	OrderStatusProcessing     OrderStatus = "Processing"
	OrderStatusOutForDelivery OrderStatus = "Out for Delivery"
	OrderStatusDelivered      OrderStatus = "Delivered"
	OrderStatusCancelled      OrderStatus = "Cancelled"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusProcessing,
	OrderStatusOutForDelivery,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// rank orders the forward-only progression; Cancelled sits outside it.
var orderStatusRank = map[OrderStatus]int{
	OrderStatusProcessing:     0,
	OrderStatusOutForDelivery: 1,
	OrderStatusDelivered:      2,
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition can leave the status.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// CanTransitionTo reports whether moving to next keeps the lifecycle monotonic.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s.IsTerminal() || !next.IsValid() {
		return false
	}
	if next == OrderStatusCancelled {
		return true
	}
	return orderStatusRank[next] == orderStatusRank[s]+1
}

// After reports whether s lies further along the lifecycle than other. Cancelled follows every
// non-terminal status; a terminal status is never superseded.
func (s OrderStatus) After(other OrderStatus) bool {
	if other.IsTerminal() || !s.IsValid() || s == other {
		return false
	}
	if s == OrderStatusCancelled {
		return true
	}
	return orderStatusRank[s] > orderStatusRank[other]
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
