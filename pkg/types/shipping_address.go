package types

import "strings"

// ShippingAddress is the delivery snapshot captured on an order.
type ShippingAddress struct {
	FullName      string `json:"fullName" validate:"required,min=3"`
	StreetAddress string `json:"streetAddress" validate:"required,min=5"`
	City          string `json:"city" validate:"required,min=2"`
	State         string `json:"state" validate:"required,min=2"`
	Pincode       string `json:"pincode" validate:"required,pincode"`
}

// Normalize trims surrounding whitespace from every field.
func (a ShippingAddress) Normalize() ShippingAddress {
	return ShippingAddress{
		FullName:      strings.TrimSpace(a.FullName),
		StreetAddress: strings.TrimSpace(a.StreetAddress),
		City:          strings.TrimSpace(a.City),
		State:         strings.TrimSpace(a.State),
		Pincode:       strings.TrimSpace(a.Pincode),
	}
}

// IsZero reports whether any required field is missing.
func (a ShippingAddress) IsZero() bool {
	n := a.Normalize()
	return n.FullName == "" || n.StreetAddress == "" || n.City == "" || n.State == "" || n.Pincode == ""
}
