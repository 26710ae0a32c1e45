package products

import (
	"context"
	"strings"

	pkgerrors "github.com/angelmondragon/neurocare-backend/pkg/errors"
)

// Service exposes the read-only product catalog.
type Service interface {
	List(ctx context.Context, category string) []Product
	Get(ctx context.Context, productID string) (Product, error)
}

type catalog struct {
	items []Product
	byID  map[string]int
}

// NewService builds a catalog over items, or over the default pharmacy shelf when none are given.
// Later entries with a duplicate id are ignored.
func NewService(items ...Product) Service {
	if len(items) == 0 {
		items = defaultCatalog
	}
	c := &catalog{byID: make(map[string]int, len(items))}
	for _, p := range items {
		if p.ID == "" {
			continue
		}
		if _, dup := c.byID[p.ID]; dup {
			continue
		}
		c.byID[p.ID] = len(c.items)
		c.items = append(c.items, clone(p))
	}
	return c
}

// List returns the catalog in display order, optionally filtered by category (case-insensitive).
func (c *catalog) List(_ context.Context, category string) []Product {
	category = strings.TrimSpace(category)
	out := make([]Product, 0, len(c.items))
	for _, p := range c.items {
		if category != "" && !strings.EqualFold(string(p.Category), category) {
			continue
		}
		out = append(out, clone(p))
	}
	return out
}

func (c *catalog) Get(_ context.Context, productID string) (Product, error) {
	idx, ok := c.byID[strings.TrimSpace(productID)]
	if !ok {
		return Product{}, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return clone(c.items[idx]), nil
}

func clone(p Product) Product {
	if p.Tags != nil {
		p.Tags = append([]string(nil), p.Tags...)
	}
	return p
}
