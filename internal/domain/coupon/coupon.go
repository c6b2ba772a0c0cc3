// Package coupon validates user-entered discount codes against the remote
// coupon store and computes the discount a held coupon grants on a subtotal.
package coupon

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/pawmart/storefront/internal/domain/remote"
)

// Kind enumerates the supported coupon discount strategies.
type Kind string

const (
	// KindPercentage discounts a percentage of the subtotal.
	KindPercentage Kind = "percentage"
	// KindFixedAmount discounts a fixed amount, capped at the subtotal.
	KindFixedAmount Kind = "fixed"
)

// ErrInvalid is returned when the remote store rejects a coupon code.
var ErrInvalid = errors.New("invalid coupon code")

// invalidError matches ErrInvalid while keeping the store's rejection in the
// chain, so remote.Reason can surface the server's message.
type invalidError struct {
	rej *remote.RejectedError
}

func (e *invalidError) Error() string {
	return ErrInvalid.Error() + ": " + e.rej.Message
}

func (e *invalidError) Is(target error) bool { return target == ErrInvalid }

func (e *invalidError) Unwrap() error { return e.rej }

// Invalid builds a rejection for the given server message. An empty message
// degrades to the bare ErrInvalid sentinel.
func Invalid(message string) error {
	if message == "" {
		return ErrInvalid
	}
	return &invalidError{rej: &remote.RejectedError{Message: message}}
}

var hundred = decimal.NewFromInt(100)

// Coupon is the authoritative discount rule returned by the remote store.
// Codes are matched case-insensitively by the server.
type Coupon struct {
	Code  string
	Kind  Kind
	Value decimal.Decimal
}

// Is reports whether the coupon carries the given code, ignoring case.
func (c *Coupon) Is(code string) bool {
	return strings.EqualFold(c.Code, strings.TrimSpace(code))
}

// DiscountOn computes the discount this coupon grants on the given subtotal.
// The result is always within [0, subtotal]: fixed-amount coupons are capped
// at the subtotal, and percentage values are assumed <=100 upstream.
func (c *Coupon) DiscountOn(subtotal decimal.Decimal) decimal.Decimal {
	if c == nil || subtotal.Sign() <= 0 {
		return decimal.Zero
	}
	switch c.Kind {
	case KindPercentage:
		return subtotal.Mul(c.Value).Div(hundred)
	case KindFixedAmount:
		return decimal.Min(c.Value, subtotal)
	default:
		return decimal.Zero
	}
}

// Service validates a coupon code against the remote coupon store. The
// subtotal is informational for server-side minimum-spend rules; the
// returned Coupon is the authoritative discount rule.
type Service interface {
	Apply(ctx context.Context, userKey, code string, subtotal decimal.Decimal) (*Coupon, error)
}

// Applier prepares a user-entered code and delegates validation to the
// remote Service. No local format validation is performed; the string is
// passed through as-is except for trimming.
type Applier struct {
	svc Service
}

// NewApplier creates an Applier backed by the given remote Service.
func NewApplier(svc Service) *Applier {
	return &Applier{svc: svc}
}

// Apply trims the code and submits it together with the current subtotal.
// It returns ErrInvalid when the store rejects the code.
func (a *Applier) Apply(ctx context.Context, userKey, code string, subtotal decimal.Decimal) (*Coupon, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrInvalid
	}
	return a.svc.Apply(ctx, userKey, code, subtotal)
}
