package kiosk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"roomservice-agent/internal/backend"
)

// ErrUnknownProduct is returned when a product id is not in the catalog.
var ErrUnknownProduct = errors.New("unknown product")

const productsKey = "products"

// ProductSource lists the orderable products.
type ProductSource interface {
	Products(ctx context.Context) ([]backend.Product, error)
}

// Catalog caches the product list and answers category lookups for the cart.
type Catalog struct {
	src   ProductSource
	cache *cache.Cache
}

func NewCatalog(src ProductSource, ttl time.Duration) *Catalog {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Catalog{
		src:   src,
		cache: cache.New(ttl, 2*ttl),
	}
}

type catalogEntry struct {
	products []backend.Product
	byID     map[int64]backend.Product
}

// Products returns the cached product list, fetching it when the cache is cold.
func (c *Catalog) Products(ctx context.Context) ([]backend.Product, error) {
	entry, err := c.entry(ctx, false)
	if err != nil {
		return nil, err
	}
	out := make([]backend.Product, len(entry.products))
	copy(out, entry.products)
	return out, nil
}

// CategoryOf resolves the category type of a product. A miss refreshes the list once,
// so products added on the server since the last fetch are found.
func (c *Catalog) CategoryOf(ctx context.Context, productID int64) (backend.CategoryType, error) {
	entry, err := c.entry(ctx, false)
	if err != nil {
		return "", err
	}
	p, ok := entry.byID[productID]
	if !ok {
		if entry, err = c.entry(ctx, true); err != nil {
			return "", err
		}
		if p, ok = entry.byID[productID]; !ok {
			return "", fmt.Errorf("%w: %d", ErrUnknownProduct, productID)
		}
	}
	return p.CategoryType.Normalize(), nil
}

// Invalidate drops the cached product list.
func (c *Catalog) Invalidate() {
	c.cache.Delete(productsKey)
}

func (c *Catalog) entry(ctx context.Context, refresh bool) (*catalogEntry, error) {
	if !refresh {
		if v, ok := c.cache.Get(productsKey); ok {
			return v.(*catalogEntry), nil
		}
	}
	products, err := c.src.Products(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load product catalog: %w", err)
	}
	entry := &catalogEntry{products: products, byID: make(map[int64]backend.Product, len(products))}
	for _, p := range products {
		entry.byID[p.ID] = p
	}
	c.cache.SetDefault(productsKey, entry)
	return entry, nil
}
