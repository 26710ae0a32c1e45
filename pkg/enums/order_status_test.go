package enums

import "testing"

func TestOrderStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to OrderStatus
		ok       bool
	}{
		{OrderStatusProcessing, OrderStatusOutForDelivery, true},
		{OrderStatusOutForDelivery, OrderStatusDelivered, true},
		{OrderStatusProcessing, OrderStatusDelivered, false},
		{OrderStatusOutForDelivery, OrderStatusProcessing, false},
		{OrderStatusProcessing, OrderStatusCancelled, true},
		{OrderStatusOutForDelivery, OrderStatusCancelled, true},
		{OrderStatusDelivered, OrderStatusCancelled, false},
		{OrderStatusCancelled, OrderStatusProcessing, false},
		{OrderStatusProcessing, OrderStatus("Lost"), false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.ok {
			t.Fatalf("%s -> %s: expected %v got %v", tc.from, tc.to, tc.ok, got)
		}
	}
}

func TestParseOrderStatus(t *testing.T) {
	status, err := ParseOrderStatus("Out for Delivery")
	if err != nil || status != OrderStatusOutForDelivery {
		t.Fatalf("unexpected parse result %q %v", status, err)
	}
	if _, err := ParseOrderStatus("shipped"); err == nil {
		t.Fatalf("expected error for unknown status")
	}
	if !OrderStatusDelivered.IsTerminal() || OrderStatusProcessing.IsTerminal() {
		t.Fatalf("terminal classification wrong")
	}
}

func TestOrderStatusAfter(t *testing.T) {
	cases := []struct {
		s, other OrderStatus
		after    bool
	}{
		{OrderStatusDelivered, OrderStatusProcessing, true},
		{OrderStatusOutForDelivery, OrderStatusProcessing, true},
		{OrderStatusProcessing, OrderStatusOutForDelivery, false},
		{OrderStatusCancelled, OrderStatusOutForDelivery, true},
		{OrderStatusCancelled, OrderStatusDelivered, false},
		{OrderStatusDelivered, OrderStatusCancelled, false},
		{OrderStatusDelivered, OrderStatusDelivered, false},
		{OrderStatus("Lost"), OrderStatusProcessing, false},
	}
	for _, tc := range cases {
		if got := tc.s.After(tc.other); got != tc.after {
			t.Fatalf("%s after %s: expected %v got %v", tc.s, tc.other, tc.after, got)
		}
	}
}
