package orders

import (
	"math/big"
	"strings"

	"github.com/google/uuid"
)

const (
	orderIDPrefix = "NC-"
	orderIDLength = 9
)

// NewOrderID returns "NC-" followed by nine upper-case base-36 characters.
func NewOrderID() string {
	u := uuid.New()
	encoded := strings.ToUpper(new(big.Int).SetBytes(u[:]).Text(36))
	if len(encoded) < orderIDLength {
		encoded = strings.Repeat("0", orderIDLength-len(encoded)) + encoded
	}
	return orderIDPrefix + encoded[len(encoded)-orderIDLength:]
}
