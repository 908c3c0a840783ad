package kiosk

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"roomservice-agent/internal/backend"
)

// ErrLimitReached is matched by every *LimitError.
var ErrLimitReached = errors.New("order limit reached")

// LimitError reports which category ceiling blocked an addition.
type LimitError struct {
	Category backend.CategoryType
	Limit    int
	Usage    int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("order limit reached for %s: %d of %d used", e.Category, e.Usage, e.Limit)
}

func (e *LimitError) Is(target error) bool {
	return target == ErrLimitReached
}

// CartStore persists cart lines per device.
type CartStore interface {
	CartItems(ctx context.Context, deviceUID string) (map[int64]int, error)
	SetCartQuantity(ctx context.Context, deviceUID string, productID int64, qty int) error
	ClearCart(ctx context.Context, deviceUID string) error
}

// CategoryResolver maps a product to its category type.
type CategoryResolver interface {
	CategoryOf(ctx context.Context, productID int64) (backend.CategoryType, error)
}

// Cart holds the products a patient is about to order and enforces the per-category limits.
// Every line in items has a resolved category in categories, except lines restored by Load
// whose lookup failed; those are resolved before the next limit check.
type Cart struct {
	deviceUID string
	store     CartStore
	catalog   CategoryResolver

	mu         sync.Mutex
	items      map[int64]int
	categories map[int64]backend.CategoryType
	limits     backend.OrderLimits
	active     map[backend.CategoryType]int
}

func NewCart(deviceUID string, store CartStore, catalog CategoryResolver) *Cart {
	return &Cart{
		deviceUID:  deviceUID,
		store:      store,
		catalog:    catalog,
		items:      make(map[int64]int),
		categories: make(map[int64]backend.CategoryType),
		active:     make(map[backend.CategoryType]int),
	}
}

// Load restores the persisted cart of the device.
func (c *Cart) Load(ctx context.Context) error {
	items, err := c.store.CartItems(ctx, c.deviceUID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.items = items
	c.categories = make(map[int64]backend.CategoryType, len(items))
	c.mu.Unlock()

	// Lookup failures are retried by the next limit check.
	_ = c.resolvePending(ctx)
	return nil
}

// CanAdd reports whether one more unit of the product fits inside the limits.
func (c *Cart) CanAdd(ctx context.Context, productID int64) (bool, error) {
	cat, err := c.prepare(ctx, productID)
	if err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.checkLocked(cat, 1) == nil, nil
}

// Add puts one unit of the product in the cart.
func (c *Cart) Add(ctx context.Context, productID int64) error {
	cat, err := c.prepare(ctx, productID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkLocked(cat, 1); err != nil {
		return err
	}
	return c.setLocked(ctx, productID, cat, c.items[productID]+1)
}

// SetQuantity replaces the quantity of a line. Zero or less removes it.
// Raising a quantity is checked against the limits like Add.
func (c *Cart) SetQuantity(ctx context.Context, productID int64, qty int) error {
	if qty < 0 {
		qty = 0
	}

	c.mu.Lock()
	current, inCart := c.items[productID]
	cat, known := c.categories[productID]
	c.mu.Unlock()

	if qty == 0 {
		if !inCart {
			return nil
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.setLocked(ctx, productID, cat, 0)
	}

	if qty > current || !known {
		var err error
		if cat, err = c.prepare(ctx, productID); err != nil {
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if delta := qty - c.items[productID]; delta > 0 {
		if err := c.checkLocked(cat, delta); err != nil {
			return err
		}
	}
	return c.setLocked(ctx, productID, cat, qty)
}

// Items returns a copy of the cart lines.
func (c *Cart) Items() map[int64]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[int64]int, len(c.items))
	for id, qty := range c.items {
		out[id] = qty
	}
	return out
}

// Lines returns the cart as order lines sorted by product id.
func (c *Cart) Lines() []backend.CreateItem {
	items := c.Items()
	lines := make([]backend.CreateItem, 0, len(items))
	for id, qty := range items {
		lines = append(lines, backend.CreateItem{ProductID: id, Quantity: qty})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
	return lines
}

// Clear empties the cart and its persisted copy.
func (c *Cart) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[int64]int)
	c.categories = make(map[int64]backend.CategoryType)
	if err := c.store.ClearCart(ctx, c.deviceUID); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

func (c *Cart) SetLimits(limits backend.OrderLimits) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.limits = make(backend.OrderLimits, len(limits))
	for k, v := range limits {
		c.limits[k] = v
	}
}

func (c *Cart) Limits() backend.OrderLimits {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(backend.OrderLimits, len(c.limits))
	for k, v := range c.limits {
		out[k] = v
	}
	return out
}

// SetActiveUsage replaces the quantities already committed by non-terminal orders.
func (c *Cart) SetActiveUsage(counts map[backend.CategoryType]int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = make(map[backend.CategoryType]int, len(counts))
	for k, v := range counts {
		c.active[k] = v
	}
}

// Usage is the cart quantity of the category plus its active-order quantity.
func (c *Cart) Usage(category backend.CategoryType) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usageLocked(category)
}

func (c *Cart) usageLocked(category backend.CategoryType) int {
	used := c.active[category]
	for id, qty := range c.items {
		if c.categories[id] == category {
			used += qty
		}
	}
	return used
}

func (c *Cart) checkLocked(category backend.CategoryType, delta int) error {
	limit, capped := c.limits.Limit(category)
	if !capped {
		return nil
	}
	used := c.usageLocked(category)
	if used+delta > limit {
		return &LimitError{Category: category, Limit: limit, Usage: used}
	}
	return nil
}

func (c *Cart) setLocked(ctx context.Context, productID int64, category backend.CategoryType, qty int) error {
	if err := c.store.SetCartQuantity(ctx, c.deviceUID, productID, qty); err != nil {
		return fmt.Errorf("failed to save cart line %d: %w", productID, err)
	}
	if qty <= 0 {
		delete(c.items, productID)
		delete(c.categories, productID)
		return nil
	}
	c.items[productID] = qty
	c.categories[productID] = category
	return nil
}

// prepare resolves the category of productID and of every line still missing one.
// Lookups run without holding the lock.
func (c *Cart) prepare(ctx context.Context, productID int64) (backend.CategoryType, error) {
	cat, err := c.catalog.CategoryOf(ctx, productID)
	if err != nil {
		return "", err
	}
	if err := c.resolvePending(ctx); err != nil {
		return "", err
	}
	return cat, nil
}

func (c *Cart) resolvePending(ctx context.Context) error {
	c.mu.Lock()
	var pending []int64
	for id := range c.items {
		if _, ok := c.categories[id]; !ok {
			pending = append(pending, id)
		}
	}
	c.mu.Unlock()

	for _, id := range pending {
		cat, err := c.catalog.CategoryOf(ctx, id)
		switch {
		case errors.Is(err, ErrUnknownProduct):
			// Withdrawn from the catalog; it no longer counts against a capped category.
			cat = backend.CategoryOther
		case err != nil:
			return err
		}
		c.mu.Lock()
		if _, ok := c.items[id]; ok {
			c.categories[id] = cat
		}
		c.mu.Unlock()
	}
	return nil
}
