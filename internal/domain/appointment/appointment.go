// Package appointment implements the veterinary booking variant of checkout.
// The priced resource is a provider's fixed consultation fee bound to a
// selected date and time slot; everything else reuses the generic checkout
// state machine.
package appointment

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/pawmart/storefront/internal/domain/checkout"
)

var (
	// ErrSlotConflict indicates another booking already holds the selected
	// slot. Distinct from a generic rejection: the UI must re-prompt for a
	// different slot, not offer a retry.
	ErrSlotConflict = errors.New("time slot is no longer available")
	// ErrSlotUnavailable indicates the selected date or time does not fall
	// within the provider's declared availability.
	ErrSlotUnavailable = errors.New("selected slot is outside provider availability")
	// ErrNoSlotSelected is the checkout precondition failure: booking cannot
	// begin without a date and time slot.
	ErrNoSlotSelected = errors.New("no date and time slot selected")
)

// Provider is a doctor and their declared availability.
type Provider struct {
	ID        string
	Name      string
	Email     string
	Fee       decimal.Decimal // fixed consultation fee, BDT
	Days      []string        // weekday names; empty means every day
	StartTime string          // "HH:MM" day start
	EndTime   string          // "HH:MM" day end, exclusive
}

// Booking is a selected provider, date and time slot.
type Booking struct {
	Provider Provider
	Date     string // "2006-01-02"
	Time     string // "HH:MM", one of the provider's slots
}

// Intent is the payload sent when requesting a payment-setup token for a
// booking.
type Intent struct {
	UserKey string
	Booking Booking
	Billing checkout.BillingDetails
}

// Service is the remote booking collaborator.
type Service interface {
	// CreateAppointmentIntent returns a payment-setup token, ErrSlotConflict
	// when the slot was taken in the meantime, or a generic rejection.
	CreateAppointmentIntent(ctx context.Context, intent Intent) (string, error)
	// VerifyPayment materializes the booking against a confirmed payment
	// reference. Idempotent server-side, keyed by the reference.
	VerifyPayment(ctx context.Context, paymentRef string, booking Booking, userKey string) (string, error)
}

// Resource adapts a booking to the checkout Resource interface.
type Resource struct {
	userKey string
	booking Booking
	svc     Service

	// bookingRef holds the confirmed booking reference after
	// materialization. Guarded by the owning session's single-flight
	// materialization, so no lock is needed.
	bookingRef string
}

// NewResource validates the selection against the provider's availability
// and returns the bookable resource. A date outside the provider's weekday
// set or a time off the 30-minute grid fails with ErrSlotUnavailable.
func NewResource(userKey string, b Booking, svc Service) (*Resource, error) {
	if b.Date == "" || b.Time == "" {
		return nil, ErrNoSlotSelected
	}

	date, err := time.Parse("2006-01-02", b.Date)
	if err != nil {
		return nil, errors.Wrap(ErrSlotUnavailable, "bad date")
	}
	if !DateAvailable(b.Provider, date) {
		return nil, ErrSlotUnavailable
	}

	slots, err := Slots(b.Provider)
	if err != nil {
		return nil, err
	}
	if !containsSlot(slots, b.Time) {
		return nil, ErrSlotUnavailable
	}

	return &Resource{userKey: userKey, booking: b, svc: svc}, nil
}

// Ready reports whether booking checkout may begin.
func (r *Resource) Ready() error {
	if r.booking.Date == "" || r.booking.Time == "" {
		return ErrNoSlotSelected
	}
	return nil
}

// CreateIntent requests a payment-setup token for the consultation fee.
func (r *Resource) CreateIntent(ctx context.Context, userKey string, billing checkout.BillingDetails) (string, error) {
	return r.svc.CreateAppointmentIntent(ctx, Intent{
		UserKey: userKey,
		Booking: r.booking,
		Billing: billing,
	})
}

// Materialize verifies the payment with the booking collaborator.
func (r *Resource) Materialize(ctx context.Context, paymentRef string) error {
	ref, err := r.svc.VerifyPayment(ctx, paymentRef, r.booking, r.userKey)
	if err != nil {
		return err
	}
	r.bookingRef = ref
	return nil
}

// BookingRef returns the confirmed booking reference, empty before
// materialization.
func (r *Resource) BookingRef() string {
	return r.bookingRef
}

// Booking returns the selected booking.
func (r *Resource) Booking() Booking {
	return r.booking
}

func containsSlot(slots []string, t string) bool {
	for _, s := range slots {
		if s == t {
			return true
		}
	}
	return false
}
