// Package checkout implements the two-phase checkout state machine shared by
// product orders and appointment bookings. A session captures billing
// details, requests a payment intent, and on gateway confirmation hands the
// payment reference to the resource's materialization step exactly once.
//
//	CollectingBilling --(valid billing form)--> AwaitingPayment
//	AwaitingPayment   --(cancel)--------------> CollectingBilling
//	AwaitingPayment   --(payment confirmed)---> Completed (terminal)
package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"

	"github.com/pawmart/storefront/internal/domain/remote"
)

// Step identifies the session's position in the workflow.
type Step string

const (
	StepCollectingBilling Step = "collecting_billing"
	StepAwaitingPayment   Step = "awaiting_payment"
	StepCompleted         Step = "completed"
)

// Sentinel errors for workflow sequencing.
var (
	// ErrWrongStep is returned when an operation does not apply to the
	// session's current step.
	ErrWrongStep = errors.New("operation not allowed in current checkout step")
	// ErrSuperseded is returned when a payment-intent response arrives after
	// the attempt it belongs to was cancelled. The response is discarded.
	ErrSuperseded = errors.New("checkout attempt superseded")
)

// Resource is the priced thing a session charges for. Product orders and
// appointment bookings provide their own implementations; the workflow shape
// is identical.
type Resource interface {
	// Ready reports whether checkout may begin. A non-nil error names the
	// unmet precondition (empty cart, no slot selected, ...).
	Ready() error
	// CreateIntent asks the order collaborator for a payment-setup token
	// binding this charge attempt to the resource's current total. It is
	// never retried automatically.
	CreateIntent(ctx context.Context, userKey string, billing BillingDetails) (string, error)
	// Materialize finalizes the resource against a confirmed payment
	// reference. The server side is idempotent, keyed by the reference.
	Materialize(ctx context.Context, paymentRef string) error
}

// DefaultRemoteTimeout bounds a single collaborator call when no timeout is
// configured.
const DefaultRemoteTimeout = 25 * time.Second

// Session is one user's pass through checkout. It is created when checkout
// begins and discarded when it completes or is abandoned; it is never
// persisted.
type Session struct {
	userKey  string
	resource Resource
	refs     *RefRegistry
	timeout  time.Duration

	mu         sync.Mutex
	step       Step
	billing    *BillingDetails
	token      string
	paymentRef string
	lastError  string
	attempt    uint64
}

// Begin starts a checkout session for the given resource. It fails with the
// resource's precondition error when the resource is not ready; the caller
// must redirect elsewhere instead of entering checkout.
func Begin(userKey string, resource Resource, refs *RefRegistry, timeout time.Duration) (*Session, error) {
	if err := resource.Ready(); err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = DefaultRemoteTimeout
	}
	return &Session{
		userKey:  userKey,
		resource: resource,
		refs:     refs,
		timeout:  timeout,
		step:     StepCollectingBilling,
	}, nil
}

// SubmitBilling validates the billing form and, when it passes, requests a
// payment intent. Validation failures are local: no network call is made and
// the session stays in CollectingBilling. Remote failures also keep the
// session in CollectingBilling with the server's reason in LastError.
func (s *Session) SubmitBilling(ctx context.Context, b BillingDetails) error {
	s.mu.Lock()
	if s.step != StepCollectingBilling {
		s.mu.Unlock()
		return ErrWrongStep
	}
	if err := ValidateBilling(b); err != nil {
		s.mu.Unlock()
		return err
	}
	s.attempt++
	attempt := s.attempt
	s.mu.Unlock()

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	token, err := s.resource.CreateIntent(callCtx, s.userKey, b)

	s.mu.Lock()
	defer s.mu.Unlock()

	// A cancel may have raced the in-flight call; its result no longer
	// applies. Check the attempt and step before touching the session.
	if attempt != s.attempt || s.step != StepCollectingBilling {
		return ErrSuperseded
	}

	if err != nil {
		s.lastError = remote.Reason(err, "could not start payment, please try again")
		return err
	}

	s.billing = &b
	s.token = token
	s.step = StepAwaitingPayment
	s.lastError = ""
	return nil
}

// ConfirmPayment records a successful gateway confirmation. The payment
// reference is handed to the resource's materialization step at most once,
// even when the confirmation event fires repeatedly. On materialization
// failure the session stays in AwaitingPayment; the user may retry.
func (s *Session) ConfirmPayment(ctx context.Context, paymentRef string) error {
	s.mu.Lock()
	if s.step == StepCompleted && s.paymentRef == paymentRef {
		s.mu.Unlock()
		return nil
	}
	if s.step != StepAwaitingPayment {
		s.mu.Unlock()
		return ErrWrongStep
	}
	s.mu.Unlock()

	first, done := s.refs.Begin(paymentRef)
	if done {
		// Duplicate confirmation event; materialization already happened.
		s.complete(paymentRef)
		return nil
	}
	if !first {
		// Another confirmation for the same reference is in flight; it will
		// settle the session.
		return nil
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.resource.Materialize(callCtx, paymentRef); err != nil {
		s.refs.Release(paymentRef)

		s.mu.Lock()
		s.lastError = remote.Reason(err, "payment confirmed but finalization failed, please retry")
		s.mu.Unlock()
		return err
	}

	s.refs.Finish(paymentRef)
	s.complete(paymentRef)
	return nil
}

// FailPayment records a gateway failure. The session stays in
// AwaitingPayment so the user can retry confirmation or cancel.
func (s *Session) FailPayment(message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.step != StepAwaitingPayment {
		return ErrWrongStep
	}
	if message == "" {
		message = "payment failed, please try again"
	}
	s.lastError = message
	return nil
}

// Cancel discards the payment-setup token and returns to CollectingBilling.
// Billing details are retained so the user is not forced to re-type them.
// An in-flight intent request is not cancelled, but its late response is
// discarded via the attempt counter.
func (s *Session) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.step != StepAwaitingPayment {
		return ErrWrongStep
	}
	s.step = StepCollectingBilling
	s.token = ""
	s.attempt++
	return nil
}

func (s *Session) complete(paymentRef string) {
	s.mu.Lock()
	if s.step != StepCompleted {
		s.step = StepCompleted
		s.paymentRef = paymentRef
		s.lastError = ""
	}
	s.mu.Unlock()
}

// Step returns the session's current step.
func (s *Session) Step() Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// Billing returns the captured billing details, or nil before a successful
// submission.
func (s *Session) Billing() *BillingDetails {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.billing
}

// Token returns the current payment-setup token, empty outside
// AwaitingPayment.
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// PaymentRef returns the confirmed payment reference, empty before
// completion.
func (s *Session) PaymentRef() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paymentRef
}

// LastError returns the most recent user-facing failure message.
func (s *Session) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}
