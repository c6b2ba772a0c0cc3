package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/pawmart/storefront/internal/domain/appointment"
	"github.com/pawmart/storefront/internal/domain/checkout"
)

// beginOrderCheckout starts checkout over the session's cart.
func (h *Handler) beginOrderCheckout(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessionFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	cs, err := h.sessions.BeginOrderCheckout(s)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCheckout(w, cs)
}

// beginBookingCheckout looks up the provider, validates the slot selection
// and starts the booking checkout.
func (h *Handler) beginBookingCheckout(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessionFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var providerID, date, slot string
	err = decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "providerId":
			providerID, err = d.Str()
		case "date":
			date, err = d.Str()
		case "time":
			slot, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil || providerID == "" {
		writeMessage(w, http.StatusBadRequest, "providerId is required")
		return
	}

	provider, err := h.providers.Provider(r.Context(), providerID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	cs, err := h.sessions.BeginBookingCheckout(s, appointment.Booking{
		Provider: provider,
		Date:     date,
		Time:     slot,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCheckout(w, cs)
}

func (h *Handler) submitBilling(w http.ResponseWriter, r *http.Request) {
	cs, err := h.checkoutFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var b checkout.BillingDetails
	err = decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "fullName":
			b.FullName, err = d.Str()
		case "email":
			b.Email, err = d.Str()
		case "phone":
			b.Phone, err = d.Str()
		case "country":
			b.Country, err = d.Str()
		case "address":
			b.Address, err = d.Str()
		case "city":
			b.City, err = d.Str()
		case "postalCode":
			b.PostalCode, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "malformed billing details")
		return
	}

	if err := cs.SubmitBilling(r.Context(), b); err != nil {
		writeError(w, r, err)
		return
	}
	writeCheckout(w, cs)
}

func (h *Handler) confirmPayment(w http.ResponseWriter, r *http.Request) {
	cs, err := h.checkoutFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var ref string
	err = decodeBody(r, func(d *jx.Decoder, key string) error {
		if key != "paymentRef" {
			return d.Skip()
		}
		var err error
		ref, err = d.Str()
		return err
	})
	if err != nil || ref == "" {
		writeMessage(w, http.StatusBadRequest, "paymentRef is required")
		return
	}

	if err := cs.ConfirmPayment(r.Context(), ref); err != nil {
		writeError(w, r, err)
		return
	}
	writeCheckout(w, cs)
}

func (h *Handler) failPayment(w http.ResponseWriter, r *http.Request) {
	cs, err := h.checkoutFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var message string
	err = decodeBody(r, func(d *jx.Decoder, key string) error {
		if key != "message" {
			return d.Skip()
		}
		var err error
		message, err = d.Str()
		return err
	})
	if err != nil {
		message = ""
	}

	if err := cs.FailPayment(message); err != nil {
		writeError(w, r, err)
		return
	}
	writeCheckout(w, cs)
}

func (h *Handler) cancelCheckout(w http.ResponseWriter, r *http.Request) {
	cs, err := h.checkoutFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := cs.Cancel(); err != nil {
		writeError(w, r, err)
		return
	}
	writeCheckout(w, cs)
}

func (h *Handler) listProviders(w http.ResponseWriter, r *http.Request) {
	providers, err := h.providers.Providers(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("providers")
		e.ArrStart()
		for _, p := range providers {
			encodeProvider(e, p)
		}
		e.ArrEnd()
		e.ObjEnd()
	})
}

// providerSlots returns the provider's slot grid for a date, or 422 when the
// provider does not work that day.
func (h *Handler) providerSlots(w http.ResponseWriter, r *http.Request) {
	provider, err := h.providers.Provider(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	dateParam := r.URL.Query().Get("date")
	if dateParam == "" {
		writeMessage(w, http.StatusBadRequest, "date query parameter is required")
		return
	}
	date, err := time.Parse("2006-01-02", dateParam)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	if !appointment.DateAvailable(provider, date) {
		writeError(w, r, appointment.ErrSlotUnavailable)
		return
	}

	slots, err := appointment.Slots(provider)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("date")
		e.Str(dateParam)
		e.FieldStart("slots")
		e.ArrStart()
		for _, s := range slots {
			e.Str(s)
		}
		e.ArrEnd()
		e.ObjEnd()
	})
}

func encodeProvider(e *jx.Encoder, p appointment.Provider) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(p.ID)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("email")
	e.Str(p.Email)
	e.FieldStart("fee")
	encodeNum(e, p.Fee)
	e.FieldStart("days")
	e.ArrStart()
	for _, d := range p.Days {
		e.Str(d)
	}
	e.ArrEnd()
	e.FieldStart("startTime")
	e.Str(p.StartTime)
	e.FieldStart("endTime")
	e.Str(p.EndTime)
	e.ObjEnd()
}

// writeCheckout renders the checkout session's observable state.
func writeCheckout(w http.ResponseWriter, cs *checkout.Session) {
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("step")
		e.Str(string(cs.Step()))
		if token := cs.Token(); token != "" {
			e.FieldStart("paymentToken")
			e.Str(token)
		}
		if ref := cs.PaymentRef(); ref != "" {
			e.FieldStart("paymentRef")
			e.Str(ref)
		}
		if msg := cs.LastError(); msg != "" {
			e.FieldStart("lastError")
			e.Str(msg)
		}
		e.ObjEnd()
	})
}
