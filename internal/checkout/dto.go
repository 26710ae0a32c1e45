package checkout

import (
	"strings"

	"github.com/angelmondragon/neurocare-backend/internal/orders"
	"github.com/angelmondragon/neurocare-backend/pkg/types"
)

// SubmitInput is the checkout form: shipping address, contact and card details.
type SubmitInput struct {
	types.ShippingAddress
	ContactNumber  string `json:"contactNumber" validate:"required,in_mobile"`
	Email          string `json:"email" validate:"required,email"`
	CardholderName string `json:"cardholderName" validate:"required,min=3"`
	CardNumber     string `json:"cardNumber" validate:"required,card_number"`
	ExpiryDate     string `json:"expiryDate" validate:"required,card_expiry"`
	CVV            string `json:"cvv" validate:"required,cvv"`
}

// Normalize trims every field; card numbers also lose embedded spaces.
func (in SubmitInput) Normalize() SubmitInput {
	return SubmitInput{
		ShippingAddress: in.ShippingAddress.Normalize(),
		ContactNumber:   strings.TrimSpace(in.ContactNumber),
		Email:           strings.TrimSpace(in.Email),
		CardholderName:  strings.TrimSpace(in.CardholderName),
		CardNumber:      strings.ReplaceAll(strings.TrimSpace(in.CardNumber), " ", ""),
		ExpiryDate:      strings.TrimSpace(in.ExpiryDate),
		CVV:             strings.TrimSpace(in.CVV),
	}
}

// Result is returned once the cart has been converted. Warnings carry non-fatal storage issues.
type Result struct {
	Order    orders.Order   `json:"order"`
	Payment  PaymentReceipt `json:"payment"`
	Warnings []string       `json:"warnings,omitempty"`
}
