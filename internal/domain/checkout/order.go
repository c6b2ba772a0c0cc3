package checkout

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/pawmart/storefront/internal/domain/cart"
)

// ErrEmptyCart is the precondition failure for product-order checkout: a
// checkout cannot begin with an empty cart.
var ErrEmptyCart = errors.New("cart is empty")

// OrderIntent is the payload sent to the order collaborator when requesting
// a payment-setup token for a cart.
type OrderIntent struct {
	UserKey    string
	Items      []cart.LineItem
	Total      decimal.Decimal
	CouponCode string
	Billing    BillingDetails
}

// OrderService creates payment intents for product orders.
type OrderService interface {
	CreateOrderIntent(ctx context.Context, intent OrderIntent) (string, error)
}

// OrderResource adapts a cart to the checkout Resource interface. The cart
// snapshot and total are taken at intent-creation time, so the token binds
// the charge attempt to the total the user saw.
type OrderResource struct {
	cart *cart.Cart
	svc  OrderService
}

// NewOrderResource creates the product-order resource for one cart.
func NewOrderResource(c *cart.Cart, svc OrderService) *OrderResource {
	return &OrderResource{cart: c, svc: svc}
}

// Ready fails with ErrEmptyCart when there is nothing to charge for.
func (r *OrderResource) Ready() error {
	if len(r.cart.Items()) == 0 {
		return ErrEmptyCart
	}
	return nil
}

// CreateIntent snapshots the cart and requests a payment-setup token.
func (r *OrderResource) CreateIntent(ctx context.Context, userKey string, billing BillingDetails) (string, error) {
	items := r.cart.Items()
	if len(items) == 0 {
		return "", ErrEmptyCart
	}

	couponCode := ""
	if c := r.cart.AppliedCoupon(); c != nil {
		couponCode = c.Code
	}

	return r.svc.CreateOrderIntent(ctx, OrderIntent{
		UserKey:    userKey,
		Items:      items,
		Total:      r.cart.Pricing().Total,
		CouponCode: couponCode,
		Billing:    billing,
	})
}

// Materialize is a no-op for product orders: the order ledger creates the
// order server-side, idempotently keyed by the payment reference. The
// session's reference registry still guarantees the hand-off happens once.
func (r *OrderResource) Materialize(context.Context, string) error {
	return nil
}
