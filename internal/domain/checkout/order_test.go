package checkout

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pawmart/storefront/internal/domain/cart"
	"github.com/pawmart/storefront/internal/domain/coupon"
)

type stubCartStore struct {
	response []cart.LineItem
}

func (s *stubCartStore) Load(context.Context, string) ([]cart.LineItem, error) {
	return s.response, nil
}

func (s *stubCartStore) Add(context.Context, string, cart.LineItem) ([]cart.LineItem, error) {
	return s.response, nil
}

func (s *stubCartStore) UpdateQuantity(context.Context, string, string, int) ([]cart.LineItem, error) {
	return s.response, nil
}

func (s *stubCartStore) Remove(context.Context, string, string) ([]cart.LineItem, error) {
	return s.response, nil
}

func (s *stubCartStore) Clear(context.Context, string) error { return nil }

type fixedCouponService struct {
	coupon *coupon.Coupon
}

func (f *fixedCouponService) Apply(context.Context, string, string, decimal.Decimal) (*coupon.Coupon, error) {
	return f.coupon, nil
}

type captureOrderService struct {
	token string
	last  OrderIntent
}

func (c *captureOrderService) CreateOrderIntent(_ context.Context, intent OrderIntent) (string, error) {
	c.last = intent
	return c.token, nil
}

func populatedCart(t *testing.T, items []cart.LineItem, cpn *coupon.Coupon) *cart.Cart {
	t.Helper()
	store := &stubCartStore{response: items}
	c := cart.New("user-1", store, coupon.NewApplier(&fixedCouponService{coupon: cpn}))
	require.NoError(t, c.Load(context.Background()))
	if cpn != nil {
		_, err := c.ApplyCoupon(context.Background(), cpn.Code)
		require.NoError(t, err)
	}
	return c
}

func TestOrderResource_ReadyRequiresItems(t *testing.T) {
	c := populatedCart(t, nil, nil)
	res := NewOrderResource(c, &captureOrderService{})
	require.ErrorIs(t, res.Ready(), ErrEmptyCart)
}

func TestOrderResource_CreateIntentSnapshotsCart(t *testing.T) {
	items := []cart.LineItem{
		{ID: "i1", ProductID: "p1", UnitPrice: decimal.NewFromInt(500), Quantity: 2},
		{ID: "i2", ProductID: "p2", UnitPrice: decimal.NewFromInt(300), Quantity: 1},
	}
	cpn := &coupon.Coupon{Code: "OFF200", Kind: coupon.KindFixedAmount, Value: decimal.NewFromInt(200)}
	c := populatedCart(t, items, cpn)

	svc := &captureOrderService{token: "setup-tok"}
	res := NewOrderResource(c, svc)
	require.NoError(t, res.Ready())

	tok, err := res.CreateIntent(context.Background(), "user-1", validBilling())
	require.NoError(t, err)
	assert.Equal(t, "setup-tok", tok)

	assert.Equal(t, "user-1", svc.last.UserKey)
	assert.Len(t, svc.last.Items, 2)
	assert.Equal(t, "OFF200", svc.last.CouponCode)
	// subtotal 1300 - 200 + tax 55 + shipping 60
	assert.True(t, decimal.NewFromInt(1215).Equal(svc.last.Total),
		"intent total %s", svc.last.Total)
	assert.Equal(t, "Dhaka", svc.last.Billing.City)
}

func TestOrderResource_MaterializeIsLocalNoop(t *testing.T) {
	c := populatedCart(t, []cart.LineItem{{ID: "i1", UnitPrice: decimal.NewFromInt(100), Quantity: 1}}, nil)
	res := NewOrderResource(c, &captureOrderService{})
	require.NoError(t, res.Materialize(context.Background(), "pay-ref"))
}
