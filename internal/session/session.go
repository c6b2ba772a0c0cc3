// Package session maps login tokens to per-user state: the cart mirror and
// the active checkout, if any. Sessions live in memory only; logging out or
// restarting the process discards them, the remote stores keep the durable
// state.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/pawmart/storefront/internal/domain/appointment"
	"github.com/pawmart/storefront/internal/domain/cart"
	"github.com/pawmart/storefront/internal/domain/checkout"
	"github.com/pawmart/storefront/internal/domain/coupon"
)

// ErrNotAuthenticated is returned for unknown or expired tokens.
var ErrNotAuthenticated = errors.New("not authenticated")

// ErrNoCheckout is returned when a checkout operation arrives for a session
// that has no checkout in progress.
var ErrNoCheckout = errors.New("no checkout in progress")

// Session is one authenticated user's state. A user has at most one session;
// concurrent logins for the same user share it.
type Session struct {
	Token   string
	UserKey string
	Cart    *cart.Cart

	mu       sync.Mutex
	checkout *checkout.Session
}

// Checkout returns the active checkout session, or ErrNoCheckout.
func (s *Session) Checkout() (*checkout.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkout == nil {
		return nil, ErrNoCheckout
	}
	return s.checkout, nil
}

// AbandonCheckout discards the active checkout, if any. The cart is not
// touched; its items survive an abandoned checkout.
func (s *Session) AbandonCheckout() {
	s.mu.Lock()
	s.checkout = nil
	s.mu.Unlock()
}

// setCheckout installs a fresh checkout session, replacing any previous one.
// A completed checkout is replaced silently; starting over after an order is
// the normal next purchase.
func (s *Session) setCheckout(cs *checkout.Session) {
	s.mu.Lock()
	s.checkout = cs
	s.mu.Unlock()
}

// Registry owns all live sessions and the collaborators that new sessions
// are wired to.
type Registry struct {
	store        cart.Store
	coupons      *coupon.Applier
	orders       checkout.OrderService
	appointments appointment.Service
	refs         *checkout.RefRegistry
	timeout      time.Duration

	mu      sync.Mutex
	byToken map[string]*Session
	byUser  map[string]*Session

	logins singleflight.Group
}

// NewRegistry creates an empty session registry.
func NewRegistry(store cart.Store, coupons *coupon.Applier, orders checkout.OrderService, appointments appointment.Service, timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = checkout.DefaultRemoteTimeout
	}
	return &Registry{
		store:        store,
		coupons:      coupons,
		orders:       orders,
		appointments: appointments,
		refs:         checkout.NewRefRegistry(),
		timeout:      timeout,
		byToken:      make(map[string]*Session),
		byUser:       make(map[string]*Session),
	}
}

// Login returns the user's session, creating it and loading the remote cart
// on first login. Concurrent logins for the same user are collapsed into a
// single cart load. A failed cart load degrades to an empty cart instead of
// failing the login.
func (r *Registry) Login(ctx context.Context, userKey string) (*Session, error) {
	if userKey == "" {
		return nil, ErrNotAuthenticated
	}

	v, err, _ := r.logins.Do(userKey, func() (interface{}, error) {
		r.mu.Lock()
		if s, ok := r.byUser[userKey]; ok {
			r.mu.Unlock()
			return s, nil
		}
		r.mu.Unlock()

		s := &Session{
			Token:   uuid.NewString(),
			UserKey: userKey,
			Cart:    cart.New(userKey, r.store, r.coupons),
		}
		if err := s.Cart.Load(ctx); err != nil {
			// A cart-store outage must not block login. The cart has
			// already reset to empty; a later mutation resyncs it.
			zctx.From(ctx).Warn("Cart load failed, starting empty",
				zap.String("user_key", userKey), zap.Error(err))
		}

		r.mu.Lock()
		r.byToken[s.Token] = s
		r.byUser[userKey] = s
		r.mu.Unlock()
		return s, nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "login")
	}
	return v.(*Session), nil
}

// Lookup resolves a token to its session.
func (r *Registry) Lookup(token string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byToken[token]
	if !ok {
		return nil, ErrNotAuthenticated
	}
	return s, nil
}

// Logout discards the session. The remote cart persists; only the local
// mirror, the applied coupon, and any in-progress checkout are dropped.
func (r *Registry) Logout(token string) {
	r.mu.Lock()
	s, ok := r.byToken[token]
	if ok {
		delete(r.byToken, token)
		delete(r.byUser, s.UserKey)
	}
	r.mu.Unlock()
	if ok {
		s.AbandonCheckout()
		s.Cart.ClearCoupon()
	}
}

// BeginOrderCheckout starts checkout over the session's cart. It fails with
// checkout.ErrEmptyCart when the cart has no items. A previous checkout, in
// any step, is replaced.
func (r *Registry) BeginOrderCheckout(s *Session) (*checkout.Session, error) {
	res := checkout.NewOrderResource(s.Cart, r.orders)
	cs, err := checkout.Begin(s.UserKey, res, r.refs, r.timeout)
	if err != nil {
		return nil, err
	}
	s.setCheckout(cs)
	return cs, nil
}

// BeginBookingCheckout starts checkout over an appointment slot selection.
// Slot validation happens up front: an unavailable day or off-grid time
// never reaches the payment step.
func (r *Registry) BeginBookingCheckout(s *Session, b appointment.Booking) (*checkout.Session, error) {
	res, err := appointment.NewResource(s.UserKey, b, r.appointments)
	if err != nil {
		return nil, err
	}
	cs, err := checkout.Begin(s.UserKey, res, r.refs, r.timeout)
	if err != nil {
		return nil, err
	}
	s.setCheckout(cs)
	return cs, nil
}
