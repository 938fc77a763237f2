package catalog

import (
	"context"
	"strings"
	"time"

	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/storage"
)

type ProductStore interface {
	ListProducts(ctx context.Context) ([]storage.Product, error)
	GetProduct(ctx context.Context, productID string) (*storage.Product, error)
}

type Availability struct {
	ProductID   string    `json:"productId"`
	Name        string    `json:"name"`
	Stock       int       `json:"stock"`
	Available   bool      `json:"available"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// Catalog is the read side of the product store.
type Catalog struct {
	store   ProductStore
	timeNow func() time.Time
}

func New(store ProductStore) *Catalog {
	return &Catalog{store: store, timeNow: time.Now}
}

func (c *Catalog) List(ctx context.Context) ([]storage.Product, error) {
	return c.store.ListProducts(ctx)
}

func (c *Catalog) Get(ctx context.Context, productID string) (*storage.Product, error) {
	return c.store.GetProduct(ctx, productID)
}

// Search matches query case-insensitively against name, description and category.
func (c *Catalog) Search(ctx context.Context, query string) ([]storage.Product, error) {
	q := strings.ToLower(query)
	return c.filter(ctx, func(p storage.Product) bool {
		return strings.Contains(strings.ToLower(p.Name), q) ||
			strings.Contains(strings.ToLower(p.Description), q) ||
			strings.Contains(strings.ToLower(p.Category), q)
	})
}

func (c *Catalog) ByCategory(ctx context.Context, category string) ([]storage.Product, error) {
	return c.filter(ctx, func(p storage.Product) bool {
		return strings.EqualFold(p.Category, category)
	})
}

func (c *Catalog) Availability(ctx context.Context, productID string) (*Availability, error) {
	p, err := c.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	return &Availability{
		ProductID:   p.ID,
		Name:        p.Name,
		Stock:       p.Stock,
		Available:   p.Stock > 0,
		LastUpdated: c.timeNow().UTC(),
	}, nil
}

func (c *Catalog) filter(ctx context.Context, keep func(storage.Product) bool) ([]storage.Product, error) {
	products, err := c.store.ListProducts(ctx)
	if err != nil {
		return nil, err
	}

	matched := []storage.Product{}
	for _, p := range products {
		if keep(p) {
			matched = append(matched, p)
		}
	}
	return matched, nil
}
