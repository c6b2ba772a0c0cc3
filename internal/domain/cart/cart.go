// Package cart maintains the authoritative in-memory mirror of one user's
// cart and computes its pricing. The remote cart store is the source of
// truth: every mutation replaces the item list wholesale with the store's
// response, never by local patching.
package cart

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/pawmart/storefront/internal/currency"
	"github.com/pawmart/storefront/internal/domain/coupon"
)

// ErrNotAuthenticated is returned when a cart operation is attempted without
// an authenticated user session. Callers must redirect to login.
var ErrNotAuthenticated = errors.New("not authenticated")

// LineItem is one product entry in the cart. Quantity mutation and removal
// happen only through the Cart's operations.
type LineItem struct {
	ID           string
	ProductID    string
	Name         string
	Image        string
	UnitPrice    decimal.Decimal // BDT, the display currency
	UnitPriceUSD decimal.Decimal
	Quantity     int
}

// Product is the catalog data a line item is constructed from. Either price
// may be absent; the missing one is derived via the currency package.
type Product struct {
	ID       string
	Name     string
	Image    string
	Price    decimal.Decimal // BDT
	PriceUSD decimal.Decimal
}

// Store is the remote cart collaborator. Mutations return the full updated
// item list; the server is authoritative.
type Store interface {
	Load(ctx context.Context, userKey string) ([]LineItem, error)
	Add(ctx context.Context, userKey string, item LineItem) ([]LineItem, error)
	UpdateQuantity(ctx context.Context, userKey, itemID string, quantity int) ([]LineItem, error)
	Remove(ctx context.Context, userKey, itemID string) ([]LineItem, error)
	Clear(ctx context.Context, userKey string) error
}

// Cart holds the line items and the currently applied coupon for one
// authenticated session.
//
// Concurrency model: mutations are issued with a monotonic sequence number
// taken before the network call. A response is applied only when its
// sequence is newer than the last applied one, so a slow response to an
// earlier mutation can never silently revert a later one.
type Cart struct {
	userKey string
	store   Store
	coupons *coupon.Applier

	mu         sync.Mutex
	items      []LineItem
	applied    *coupon.Coupon
	issuedSeq  uint64
	appliedSeq uint64
}

// New creates an empty Cart bound to the given user. The cart starts empty;
// call Load to populate it from the remote store.
func New(userKey string, store Store, coupons *coupon.Applier) *Cart {
	return &Cart{
		userKey: userKey,
		store:   store,
		coupons: coupons,
	}
}

// Load fetches the remote cart snapshot and replaces the items wholesale.
// On failure the cart resets to empty rather than retaining stale data.
func (c *Cart) Load(ctx context.Context) error {
	if c.userKey == "" {
		return ErrNotAuthenticated
	}

	seq := c.nextSeq()
	items, err := c.store.Load(ctx, c.userKey)
	if err != nil {
		c.commit(seq, nil)
		return errors.Wrap(err, "load cart")
	}
	c.commit(seq, items)
	return nil
}

// AddItem constructs a line item from product data, resolving the price in
// both currencies, and submits it to the remote store.
func (c *Cart) AddItem(ctx context.Context, p Product, quantity int) error {
	if c.userKey == "" {
		return ErrNotAuthenticated
	}
	if quantity < 1 {
		quantity = 1
	}

	item := LineItem{
		ProductID:    p.ID,
		Name:         p.Name,
		Image:        p.Image,
		UnitPrice:    p.Price,
		UnitPriceUSD: p.PriceUSD,
		Quantity:     quantity,
	}
	if item.UnitPrice.Sign() <= 0 && item.UnitPriceUSD.Sign() > 0 {
		item.UnitPrice = currency.FromUSD(item.UnitPriceUSD)
	}
	if item.UnitPriceUSD.Sign() <= 0 && item.UnitPrice.Sign() > 0 {
		item.UnitPriceUSD = currency.ToUSD(item.UnitPrice)
	}

	seq := c.nextSeq()
	items, err := c.store.Add(ctx, c.userKey, item)
	if err != nil {
		return errors.Wrap(err, "add item")
	}
	c.commit(seq, items)
	return nil
}

// SetQuantity submits a quantity update. Quantities below 1 are silently
// ignored; use RemoveItem to drop a line.
func (c *Cart) SetQuantity(ctx context.Context, itemID string, quantity int) error {
	if c.userKey == "" {
		return ErrNotAuthenticated
	}
	if quantity < 1 {
		return nil
	}

	seq := c.nextSeq()
	items, err := c.store.UpdateQuantity(ctx, c.userKey, itemID, quantity)
	if err != nil {
		return errors.Wrap(err, "update quantity")
	}
	c.commit(seq, items)
	return nil
}

// RemoveItem submits a removal and replaces the items from the response.
func (c *Cart) RemoveItem(ctx context.Context, itemID string) error {
	if c.userKey == "" {
		return ErrNotAuthenticated
	}

	seq := c.nextSeq()
	items, err := c.store.Remove(ctx, c.userKey, itemID)
	if err != nil {
		return errors.Wrap(err, "remove item")
	}
	c.commit(seq, items)
	return nil
}

// Clear submits a clear request. On success the cart empties locally and the
// applied coupon is dropped, regardless of the server payload shape.
func (c *Cart) Clear(ctx context.Context) error {
	if c.userKey == "" {
		return ErrNotAuthenticated
	}

	seq := c.nextSeq()
	if err := c.store.Clear(ctx, c.userKey); err != nil {
		return errors.Wrap(err, "clear cart")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq > c.appliedSeq {
		c.appliedSeq = seq
		c.items = nil
		c.applied = nil
	}
	return nil
}

// ApplyCoupon validates the code against the remote store and, on success,
// replaces any previously applied coupon.
func (c *Cart) ApplyCoupon(ctx context.Context, code string) (*coupon.Coupon, error) {
	if c.userKey == "" {
		return nil, ErrNotAuthenticated
	}

	applied, err := c.coupons.Apply(ctx, c.userKey, code, c.Pricing().Subtotal)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.applied = applied
	c.mu.Unlock()
	return applied, nil
}

// ClearCoupon drops the applied coupon locally. No network call is made.
func (c *Cart) ClearCoupon() {
	c.mu.Lock()
	c.applied = nil
	c.mu.Unlock()
}

// Items returns a copy of the current line items.
func (c *Cart) Items() []LineItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]LineItem, len(c.items))
	copy(out, c.items)
	return out
}

// AppliedCoupon returns the currently applied coupon, or nil.
func (c *Cart) AppliedCoupon() *coupon.Coupon {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.applied
}

// Pricing recomputes the full breakdown from the current state. It is pure
// with respect to the cart: recomputation never mutates items or the coupon.
func (c *Cart) Pricing() Pricing {
	c.mu.Lock()
	items := c.items
	applied := c.applied
	c.mu.Unlock()
	return Price(items, applied)
}

// nextSeq allocates the next mutation sequence number.
func (c *Cart) nextSeq() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.issuedSeq++
	return c.issuedSeq
}

// commit replaces the item list if seq is newer than the last applied
// response. Stale responses are discarded.
func (c *Cart) commit(seq uint64, items []LineItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seq <= c.appliedSeq {
		return
	}
	c.appliedSeq = seq
	c.items = items
}
