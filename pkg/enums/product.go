package enums

import (
	"fmt"
	"strings"
)

// ProductCategory is the shelf a pharmacy product is listed under.
type ProductCategory string

const (
	ProductCategoryBloodThinners   ProductCategory = "Blood Thinners"
	ProductCategoryCholesterol     ProductCategory = "Cholesterol"
	ProductCategorySupplements     ProductCategory = "Supplements"
	ProductCategoryPainRelief      ProductCategory = "Pain Relief"
	ProductCategoryAnticonvulsants ProductCategory = "Anticonvulsants"
)

var validProductCategories = []ProductCategory{
	ProductCategoryBloodThinners,
	ProductCategoryCholesterol,
	ProductCategorySupplements,
	ProductCategoryPainRelief,
	ProductCategoryAnticonvulsants,
}

// String implements fmt.Stringer.
func (c ProductCategory) String() string {
	return string(c)
}

// IsValid reports whether the value is a known ProductCategory.
func (c ProductCategory) IsValid() bool {
	for _, candidate := range validProductCategories {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseProductCategory converts raw input into a ProductCategory, ignoring case and
// surrounding whitespace.
func ParseProductCategory(value string) (ProductCategory, error) {
	value = strings.TrimSpace(value)
	for _, candidate := range validProductCategories {
		if strings.EqualFold(string(candidate), value) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product category %q", value)
}
