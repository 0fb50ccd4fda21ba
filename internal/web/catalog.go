package web

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tuanvumaihuynh/storefront/internal/model"
)

// ProductSource is the read side of the API the catalog renders.
type ProductSource interface {
	ListProducts(ctx context.Context) ([]model.Product, error)
	ListTopRatedProducts(ctx context.Context, limit int) ([]model.Product, error)
}

type CatalogView struct {
	TopRated []model.Product
	Products []model.Product
}

// Catalog caches the product grid between re-fetch signals. Entries also
// expire after ttl so changes made by other clients eventually show up.
type Catalog struct {
	src      ProductSource
	ttl      time.Duration
	topLimit int
	now      func() time.Time

	mu        sync.Mutex
	view      CatalogView
	fetchedAt time.Time
	valid     bool
}

func NewCatalog(src ProductSource, ttl time.Duration, topLimit int, events Events) (*Catalog, error) {
	c := &Catalog{
		src:      src,
		ttl:      ttl,
		topLimit: topLimit,
		now:      time.Now,
	}

	if err := events.OnCatalogChanged(c.Invalidate); err != nil {
		return nil, err
	}

	return c, nil
}

// View returns the cached grid, fetching it again when it was invalidated or
// has expired.
func (c *Catalog) View(ctx context.Context) (CatalogView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.valid && (c.ttl <= 0 || c.now().Sub(c.fetchedAt) < c.ttl) {
		return c.view, nil
	}

	top, err := c.src.ListTopRatedProducts(ctx, c.topLimit)
	if err != nil {
		return CatalogView{}, fmt.Errorf("fetch top rated products: %w", err)
	}

	products, err := c.src.ListProducts(ctx)
	if err != nil {
		return CatalogView{}, fmt.Errorf("fetch products: %w", err)
	}

	c.view = CatalogView{TopRated: top, Products: products}
	c.fetchedAt = c.now()
	c.valid = true

	return c.view, nil
}

// Invalidate forces the next View to re-fetch.
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	c.valid = false
	c.mu.Unlock()
}
