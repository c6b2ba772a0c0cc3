package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pawmart/storefront/internal/domain/appointment"
	"github.com/pawmart/storefront/internal/domain/cart"
	"github.com/pawmart/storefront/internal/domain/checkout"
	"github.com/pawmart/storefront/internal/domain/coupon"
	"github.com/pawmart/storefront/internal/session"
)

type fakeStore struct {
	mu     sync.Mutex
	nextID int
	items  []cart.LineItem
}

func (s *fakeStore) Load(context.Context, string) ([]cart.LineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]cart.LineItem(nil), s.items...), nil
}

func (s *fakeStore) Add(_ context.Context, _ string, item cart.LineItem) ([]cart.LineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	item.ID = "i" + string(rune('0'+s.nextID))
	s.items = append(s.items, item)
	return append([]cart.LineItem(nil), s.items...), nil
}

func (s *fakeStore) UpdateQuantity(_ context.Context, _ string, itemID string, quantity int) ([]cart.LineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == itemID {
			s.items[i].Quantity = quantity
		}
	}
	return append([]cart.LineItem(nil), s.items...), nil
}

func (s *fakeStore) Remove(_ context.Context, _ string, itemID string) ([]cart.LineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.items[:0]
	for _, it := range s.items {
		if it.ID != itemID {
			kept = append(kept, it)
		}
	}
	s.items = kept
	return append([]cart.LineItem(nil), s.items...), nil
}

func (s *fakeStore) Clear(context.Context, string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	return nil
}

type fakeCouponService struct{}

func (fakeCouponService) Apply(_ context.Context, _, code string, _ decimal.Decimal) (*coupon.Coupon, error) {
	switch code {
	case "SAVE10":
		return &coupon.Coupon{Code: "SAVE10", Kind: coupon.KindPercentage, Value: decimal.NewFromInt(10)}, nil
	case "EXPIRED":
		return nil, coupon.Invalid("coupon expired")
	default:
		return nil, coupon.ErrInvalid
	}
}

type fakeOrderService struct{}

func (fakeOrderService) CreateOrderIntent(context.Context, checkout.OrderIntent) (string, error) {
	return "setup-token", nil
}

type fakeBookingService struct{}

func (fakeBookingService) CreateAppointmentIntent(context.Context, appointment.Intent) (string, error) {
	return "setup-token", nil
}

func (fakeBookingService) VerifyPayment(context.Context, string, appointment.Booking, string) (string, error) {
	return "booking-1", nil
}

type fakeDirectory struct{}

var drKarim = appointment.Provider{
	ID: "dr-1", Name: "Dr. Karim", Email: "karim@clinic.example",
	Fee:  decimal.NewFromInt(800),
	Days: []string{"Monday", "Wednesday"}, StartTime: "09:00", EndTime: "17:00",
}

func (fakeDirectory) Providers(context.Context) ([]appointment.Provider, error) {
	return []appointment.Provider{drKarim}, nil
}

func (fakeDirectory) Provider(_ context.Context, id string) (appointment.Provider, error) {
	if id != drKarim.ID {
		return appointment.Provider{}, errors.New("provider not found")
	}
	return drKarim, nil
}

type fixture struct {
	router http.Handler
	token  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	registry := session.NewRegistry(&fakeStore{}, coupon.NewApplier(fakeCouponService{}),
		fakeOrderService{}, fakeBookingService{}, 0)
	router := NewHandler(registry, fakeDirectory{}).Routes()

	f := &fixture{router: router}
	resp := f.request(t, http.MethodPost, "/session", `{"userKey":"user-1"}`)
	require.Equal(t, http.StatusOK, resp.Code)
	f.token = asMap(t, resp)["token"].(string)
	require.NotEmpty(t, f.token)
	return f
}

func (f *fixture) request(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *strings.Reader
	if body == "" {
		rd = strings.NewReader("{}")
	} else {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if f.token != "" {
		req.Header.Set("X-Session-Token", f.token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func asMap(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&m))
	return m
}

func TestLogin_RequiresUserKey(t *testing.T) {
	registry := session.NewRegistry(&fakeStore{}, coupon.NewApplier(fakeCouponService{}),
		fakeOrderService{}, fakeBookingService{}, 0)
	router := NewHandler(registry, fakeDirectory{}).Routes()

	req := httptest.NewRequest(http.MethodPost, "/session", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCart_Unauthenticated(t *testing.T) {
	f := newFixture(t)
	f.token = ""
	resp := f.request(t, http.MethodGet, "/cart", "")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestCart_AddAndPrice(t *testing.T) {
	f := newFixture(t)

	resp := f.request(t, http.MethodPost, "/cart/items",
		`{"productId":"p1","name":"Dog food","price":500,"quantity":2}`)
	require.Equal(t, http.StatusOK, resp.Code)
	body := asMap(t, resp)

	items := body["items"].([]any)
	require.Len(t, items, 1)

	pricing := body["pricing"].(map[string]any)
	assert.EqualValues(t, 1000, pricing["subtotal"])
	assert.EqualValues(t, 50, pricing["tax"])
	assert.EqualValues(t, 60, pricing["shipping"])
	assert.EqualValues(t, 1110, pricing["total"])
}

func TestCart_UpdateRemoveClear(t *testing.T) {
	f := newFixture(t)
	f.request(t, http.MethodPost, "/cart/items", `{"productId":"p1","price":500,"quantity":1}`)

	resp := f.request(t, http.MethodGet, "/cart", "")
	items := asMap(t, resp)["items"].([]any)
	require.Len(t, items, 1)
	id := items[0].(map[string]any)["id"].(string)

	resp = f.request(t, http.MethodPatch, "/cart/items/"+id, `{"quantity":3}`)
	require.Equal(t, http.StatusOK, resp.Code)
	pricing := asMap(t, resp)["pricing"].(map[string]any)
	assert.EqualValues(t, 1500, pricing["subtotal"])

	resp = f.request(t, http.MethodDelete, "/cart/items/"+id, "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Empty(t, asMap(t, resp)["items"])

	resp = f.request(t, http.MethodDelete, "/cart", "")
	require.Equal(t, http.StatusOK, resp.Code)
}

func TestCoupon_ApplyAndReject(t *testing.T) {
	f := newFixture(t)
	f.request(t, http.MethodPost, "/cart/items", `{"productId":"p1","price":1000,"quantity":1}`)

	resp := f.request(t, http.MethodPost, "/cart/coupon", `{"code":"SAVE10"}`)
	require.Equal(t, http.StatusOK, resp.Code)
	body := asMap(t, resp)
	require.Contains(t, body, "coupon")
	pricing := body["pricing"].(map[string]any)
	assert.EqualValues(t, 100, pricing["discount"])

	resp = f.request(t, http.MethodPost, "/cart/coupon", `{"code":"BOGUS"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	assert.Equal(t, "invalid coupon code", asMap(t, resp)["message"])

	// A rejection with a server reason surfaces that reason verbatim.
	resp = f.request(t, http.MethodPost, "/cart/coupon", `{"code":"EXPIRED"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	assert.Equal(t, "coupon expired", asMap(t, resp)["message"])

	resp = f.request(t, http.MethodDelete, "/cart/coupon", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.NotContains(t, asMap(t, resp), "coupon")
}

func validBillingBody() string {
	return `{"fullName":"Ayesha Rahman","email":"ayesha@example.com","phone":"+880 1712-345678",
		"country":"Bangladesh","address":"12 Green Road","city":"Dhaka","postalCode":"1205"}`
}

func TestCheckout_FullFlow(t *testing.T) {
	f := newFixture(t)
	f.request(t, http.MethodPost, "/cart/items", `{"productId":"p1","price":500,"quantity":1}`)

	resp := f.request(t, http.MethodPost, "/checkout", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "collecting_billing", asMap(t, resp)["step"])

	resp = f.request(t, http.MethodPost, "/checkout/billing", `{"fullName":"Ayesha Rahman"}`)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	fields := asMap(t, resp)["fields"].(map[string]any)
	assert.Contains(t, fields, "email")
	assert.NotContains(t, fields, "fullName")

	resp = f.request(t, http.MethodPost, "/checkout/billing", validBillingBody())
	require.Equal(t, http.StatusOK, resp.Code)
	body := asMap(t, resp)
	assert.Equal(t, "awaiting_payment", body["step"])
	assert.Equal(t, "setup-token", body["paymentToken"])

	resp = f.request(t, http.MethodPost, "/checkout/confirm", `{"paymentRef":"pay-1"}`)
	require.Equal(t, http.StatusOK, resp.Code)
	body = asMap(t, resp)
	assert.Equal(t, "completed", body["step"])
	assert.Equal(t, "pay-1", body["paymentRef"])
}

func TestCheckout_EmptyCart(t *testing.T) {
	f := newFixture(t)
	resp := f.request(t, http.MethodPost, "/checkout", "")
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestCheckout_ConfirmBeforeBilling(t *testing.T) {
	f := newFixture(t)
	f.request(t, http.MethodPost, "/cart/items", `{"productId":"p1","price":500,"quantity":1}`)
	f.request(t, http.MethodPost, "/checkout", "")

	resp := f.request(t, http.MethodPost, "/checkout/confirm", `{"paymentRef":"pay-1"}`)
	assert.Equal(t, http.StatusConflict, resp.Code)
}

func TestCheckout_NoSessionInProgress(t *testing.T) {
	f := newFixture(t)
	resp := f.request(t, http.MethodPost, "/checkout/billing", validBillingBody())
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestProviderSlots(t *testing.T) {
	f := newFixture(t)

	resp := f.request(t, http.MethodGet, "/providers/dr-1/slots?date=2026-08-31", "")
	require.Equal(t, http.StatusOK, resp.Code)
	slots := asMap(t, resp)["slots"].([]any)
	assert.Len(t, slots, 16)
	assert.Equal(t, "09:00", slots[0])
	assert.Equal(t, "16:30", slots[len(slots)-1])

	// Sunday is outside the provider's days.
	resp = f.request(t, http.MethodGet, "/providers/dr-1/slots?date=2026-08-30", "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)

	resp = f.request(t, http.MethodGet, "/providers/dr-1/slots?date=soon", "")
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestBooking_FullFlow(t *testing.T) {
	f := newFixture(t)

	resp := f.request(t, http.MethodPost, "/appointments",
		`{"providerId":"dr-1","date":"2026-08-31","time":"10:30"}`)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "collecting_billing", asMap(t, resp)["step"])

	resp = f.request(t, http.MethodPost, "/appointments/billing", validBillingBody())
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "awaiting_payment", asMap(t, resp)["step"])

	resp = f.request(t, http.MethodPost, "/appointments/confirm", `{"paymentRef":"pay-2"}`)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "completed", asMap(t, resp)["step"])
}

func TestBooking_GatewayFailureKeepsAwaitingPayment(t *testing.T) {
	f := newFixture(t)
	f.request(t, http.MethodPost, "/appointments",
		`{"providerId":"dr-1","date":"2026-08-31","time":"10:30"}`)
	f.request(t, http.MethodPost, "/appointments/billing", validBillingBody())

	resp := f.request(t, http.MethodPost, "/appointments/fail", `{"message":"card declined"}`)
	require.Equal(t, http.StatusOK, resp.Code)
	body := asMap(t, resp)
	assert.Equal(t, "awaiting_payment", body["step"])
	assert.Equal(t, "card declined", body["lastError"])

	// The slot is still held; confirmation may be retried.
	resp = f.request(t, http.MethodPost, "/appointments/confirm", `{"paymentRef":"pay-3"}`)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "completed", asMap(t, resp)["step"])
}

func TestBooking_OffGridSlot(t *testing.T) {
	f := newFixture(t)
	resp := f.request(t, http.MethodPost, "/appointments",
		`{"providerId":"dr-1","date":"2026-08-31","time":"10:45"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
}
