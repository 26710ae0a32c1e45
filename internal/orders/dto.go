package orders

import (
	"encoding/json"
	"time"

	"github.com/angelmondragon/neurocare-backend/internal/cart"
	"github.com/angelmondragon/neurocare-backend/pkg/enums"
	"github.com/angelmondragon/neurocare-backend/pkg/types"
)

// Item is the snapshot of one cart line at checkout, decoupled from the live catalog.
type Item struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// Order is immutable except for Status, which only moves forward.
type Order struct {
	OrderID         string                `json:"orderId"`
	Items           []Item                `json:"items"`
	Total           string                `json:"total"`
	ShippingAddress types.ShippingAddress `json:"shippingAddress"`
	Status          enums.OrderStatus     `json:"status"`
	Timestamp       time.Time             `json:"timestamp"`
}

// TimestampLayout keeps millisecond precision even when the fraction is zero.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// MarshalJSON writes the timestamp in UTC with TimestampLayout.
func (o Order) MarshalJSON() ([]byte, error) {
	type plain Order
	return json.Marshal(struct {
		plain
		Timestamp string `json:"timestamp"`
	}{plain: plain(o), Timestamp: o.Timestamp.UTC().Format(TimestampLayout)})
}

func (o Order) clone() Order {
	o.Items = append([]Item(nil), o.Items...)
	return o
}

// CreateInput carries the cart snapshot and the validated shipping address.
type CreateInput struct {
	Lines           []cart.Line
	ShippingAddress types.ShippingAddress
}
