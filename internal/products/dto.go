package products

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/neurocare-backend/pkg/enums"
)

// Product is a read-only pharmacy catalog entry. Price is in INR.
type Product struct {
	ID                   string                `json:"id"`
	ProductName          string                `json:"productName"`
	Category             enums.ProductCategory `json:"category"`
	ImageURL             string                `json:"imageUrl,omitempty"`
	ImageHint            string                `json:"imageHint,omitempty"`
	Price                float64               `json:"price"`
	InStock              bool                  `json:"inStock"`
	Description          string                `json:"description"`
	Tags                 []string              `json:"tags,omitempty"`
	PrescriptionRequired bool                  `json:"prescriptionRequired,omitempty"`
}

// UnitPrice returns the price as an exact decimal.
func (p Product) UnitPrice() decimal.Decimal {
	return decimal.NewFromFloat(p.Price)
}
