// Package handler exposes the storefront over HTTP: session management,
// cart and coupon operations, the two checkout flows, and the provider
// directory. Handlers are thin; every decision lives in the domain packages.
package handler

import (
	"context"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/pawmart/storefront/internal/domain/appointment"
	"github.com/pawmart/storefront/internal/domain/cart"
	"github.com/pawmart/storefront/internal/domain/checkout"
	"github.com/pawmart/storefront/internal/domain/coupon"
	"github.com/pawmart/storefront/internal/domain/remote"
	"github.com/pawmart/storefront/internal/session"
)

// ProviderDirectory lists appointment providers and their availability.
type ProviderDirectory interface {
	Providers(ctx context.Context) ([]appointment.Provider, error)
	Provider(ctx context.Context, id string) (appointment.Provider, error)
}

// Handler wires the HTTP surface to the session registry and the provider
// directory.
type Handler struct {
	sessions  *session.Registry
	providers ProviderDirectory
}

// NewHandler constructs a Handler.
func NewHandler(sessions *session.Registry, providers ProviderDirectory) *Handler {
	return &Handler{sessions: sessions, providers: providers}
}

// Routes builds the /api router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/session", h.login)
	r.Delete("/session", h.logout)

	r.Route("/cart", func(r chi.Router) {
		r.Get("/", h.getCart)
		r.Delete("/", h.clearCart)
		r.Post("/items", h.addItem)
		r.Patch("/items/{id}", h.updateItem)
		r.Delete("/items/{id}", h.removeItem)
		r.Post("/coupon", h.applyCoupon)
		r.Delete("/coupon", h.clearCoupon)
	})

	r.Route("/checkout", func(r chi.Router) {
		r.Post("/", h.beginOrderCheckout)
		r.Post("/billing", h.submitBilling)
		r.Post("/confirm", h.confirmPayment)
		r.Post("/fail", h.failPayment)
		r.Post("/cancel", h.cancelCheckout)
	})

	r.Get("/providers", h.listProviders)
	r.Get("/providers/{id}/slots", h.providerSlots)

	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", h.beginBookingCheckout)
		r.Post("/billing", h.submitBilling)
		r.Post("/confirm", h.confirmPayment)
		r.Post("/fail", h.failPayment)
		r.Post("/cancel", h.cancelCheckout)
	})

	return r
}

// sessionFrom resolves the caller's session from the X-Session-Token header
// or an Authorization bearer token.
func (h *Handler) sessionFrom(r *http.Request) (*session.Session, error) {
	token := r.Header.Get("X-Session-Token")
	if token == "" {
		auth := r.Header.Get("Authorization")
		token = strings.TrimPrefix(auth, "Bearer ")
		if token == auth {
			token = ""
		}
	}
	if token == "" {
		return nil, session.ErrNotAuthenticated
	}
	return h.sessions.Lookup(token)
}

// checkoutFrom resolves the caller's active checkout session.
func (h *Handler) checkoutFrom(r *http.Request) (*checkout.Session, error) {
	s, err := h.sessionFrom(r)
	if err != nil {
		return nil, err
	}
	return s.Checkout()
}

const maxBodyBytes = 1 << 20

// decodeBody parses the JSON request body object, dispatching each key to fn.
func decodeBody(r *http.Request, fn func(d *jx.Decoder, key string) error) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return errors.Wrap(err, "read body")
	}
	if len(data) == 0 {
		return errors.New("empty request body")
	}
	return jx.DecodeBytes(data).Obj(fn)
}

// writeJSON writes a JSON response assembled by build.
func writeJSON(w http.ResponseWriter, status int, build func(e *jx.Encoder)) {
	var e jx.Encoder
	build(&e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("code")
		e.Int(status)
		e.FieldStart("message")
		e.Str(message)
		e.ObjEnd()
	})
}

func encodeNum(e *jx.Encoder, v decimal.Decimal) {
	e.Num(jx.Num(v.String()))
}

// writeError maps domain errors to HTTP responses. Unknown errors become an
// opaque 500 with the detail in the log only.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *checkout.ValidationError
	switch {
	case errors.Is(err, session.ErrNotAuthenticated),
		errors.Is(err, cart.ErrNotAuthenticated):
		writeMessage(w, http.StatusUnauthorized, "not authenticated")

	case errors.As(err, &vErr):
		writeJSON(w, http.StatusBadRequest, func(e *jx.Encoder) {
			e.ObjStart()
			e.FieldStart("code")
			e.Int(http.StatusBadRequest)
			e.FieldStart("message")
			e.Str("invalid billing details")
			e.FieldStart("fields")
			e.ObjStart()
			for _, f := range sortedKeys(vErr.Fields) {
				e.FieldStart(f)
				e.Str(vErr.Fields[f])
			}
			e.ObjEnd()
			e.ObjEnd()
		})

	case errors.Is(err, checkout.ErrEmptyCart),
		errors.Is(err, appointment.ErrNoSlotSelected):
		writeMessage(w, http.StatusBadRequest, err.Error())

	case errors.Is(err, session.ErrNoCheckout):
		writeMessage(w, http.StatusNotFound, session.ErrNoCheckout.Error())

	case errors.Is(err, checkout.ErrWrongStep),
		errors.Is(err, checkout.ErrSuperseded),
		errors.Is(err, appointment.ErrSlotConflict):
		writeMessage(w, http.StatusConflict, userMessage(err))

	case errors.Is(err, coupon.ErrInvalid),
		errors.Is(err, appointment.ErrSlotUnavailable):
		writeMessage(w, http.StatusUnprocessableEntity, userMessage(err))

	case errors.Is(err, remote.ErrUnavailable):
		writeMessage(w, http.StatusBadGateway, "backend unavailable, please try again")

	default:
		var rej *remote.RejectedError
		if errors.As(err, &rej) {
			writeMessage(w, http.StatusUnprocessableEntity, rej.Message)
			return
		}
		zctx.From(r.Context()).Error("Unhandled error", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "internal error")
	}
}

// userMessage unwraps to the sentinel's own text, dropping wrap prefixes
// that describe internals.
func userMessage(err error) string {
	for _, sentinel := range []error{
		checkout.ErrWrongStep,
		checkout.ErrSuperseded,
		checkout.ErrEmptyCart,
		coupon.ErrInvalid,
		appointment.ErrSlotConflict,
		appointment.ErrSlotUnavailable,
	} {
		if errors.Is(err, sentinel) {
			if msg := remote.Reason(err, ""); msg != "" {
				return msg
			}
			return sentinel.Error()
		}
	}
	return err.Error()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
