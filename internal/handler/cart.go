package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/pawmart/storefront/internal/domain/cart"
	"github.com/pawmart/storefront/internal/session"
)

// login creates (or joins) the user's session and returns its token.
func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var userKey string
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		if key != "userKey" {
			return d.Skip()
		}
		var err error
		userKey, err = d.Str()
		return err
	})
	if err != nil || userKey == "" {
		writeMessage(w, http.StatusBadRequest, "userKey is required")
		return
	}

	s, err := h.sessions.Login(r.Context(), userKey)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("token")
		e.Str(s.Token)
		e.ObjEnd()
	})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessionFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.sessions.Logout(s.Token)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessionFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeCart(w, s)
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessionFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var (
		p        cart.Product
		quantity = 1
	)
	err = decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "productId":
			p.ID, err = d.Str()
		case "name":
			p.Name, err = d.Str()
		case "image":
			p.Image, err = d.Str()
		case "price":
			p.Price, err = decodeNum(d)
		case "priceUsd":
			p.PriceUSD, err = decodeNum(d)
		case "quantity":
			quantity, err = d.Int()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil || p.ID == "" {
		writeMessage(w, http.StatusBadRequest, "productId is required")
		return
	}

	if err := s.Cart.AddItem(r.Context(), p, quantity); err != nil {
		writeError(w, r, err)
		return
	}
	h.writeCart(w, s)
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessionFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var quantity int
	err = decodeBody(r, func(d *jx.Decoder, key string) error {
		if key != "quantity" {
			return d.Skip()
		}
		var err error
		quantity, err = d.Int()
		return err
	})
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "quantity is required")
		return
	}

	if err := s.Cart.SetQuantity(r.Context(), chi.URLParam(r, "id"), quantity); err != nil {
		writeError(w, r, err)
		return
	}
	h.writeCart(w, s)
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessionFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.Cart.RemoveItem(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	h.writeCart(w, s)
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessionFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.Cart.Clear(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	h.writeCart(w, s)
}

func (h *Handler) applyCoupon(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessionFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var code string
	err = decodeBody(r, func(d *jx.Decoder, key string) error {
		if key != "code" {
			return d.Skip()
		}
		var err error
		code, err = d.Str()
		return err
	})
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "code is required")
		return
	}

	if _, err := s.Cart.ApplyCoupon(r.Context(), code); err != nil {
		writeError(w, r, err)
		return
	}
	h.writeCart(w, s)
}

func (h *Handler) clearCoupon(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessionFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.Cart.ClearCoupon()
	h.writeCart(w, s)
}

// writeCart renders the full cart view: items, applied coupon, pricing.
func (h *Handler) writeCart(w http.ResponseWriter, s *session.Session) {
	items := s.Cart.Items()
	applied := s.Cart.AppliedCoupon()
	pricing := s.Cart.Pricing()

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()

		e.FieldStart("items")
		e.ArrStart()
		for _, it := range items {
			e.ObjStart()
			e.FieldStart("id")
			e.Str(it.ID)
			e.FieldStart("productId")
			e.Str(it.ProductID)
			e.FieldStart("name")
			e.Str(it.Name)
			e.FieldStart("image")
			e.Str(it.Image)
			e.FieldStart("price")
			encodeNum(e, it.UnitPrice)
			e.FieldStart("priceUsd")
			encodeNum(e, it.UnitPriceUSD)
			e.FieldStart("quantity")
			e.Int(it.Quantity)
			e.ObjEnd()
		}
		e.ArrEnd()

		if applied != nil {
			e.FieldStart("coupon")
			e.ObjStart()
			e.FieldStart("code")
			e.Str(applied.Code)
			e.FieldStart("kind")
			e.Str(string(applied.Kind))
			e.FieldStart("value")
			encodeNum(e, applied.Value)
			e.ObjEnd()
		}

		e.FieldStart("pricing")
		e.ObjStart()
		e.FieldStart("subtotal")
		encodeNum(e, pricing.Subtotal)
		e.FieldStart("discount")
		encodeNum(e, pricing.Discount)
		e.FieldStart("tax")
		encodeNum(e, pricing.Tax)
		e.FieldStart("shipping")
		encodeNum(e, pricing.Shipping)
		e.FieldStart("total")
		encodeNum(e, pricing.Total)
		e.FieldStart("itemCount")
		e.Int(pricing.ItemCount)
		e.ObjEnd()

		e.ObjEnd()
	})
}

// decodeNum accepts both JSON numbers and string-encoded numbers.
func decodeNum(d *jx.Decoder) (decimal.Decimal, error) {
	n, err := d.Num()
	if err != nil {
		return decimal.Decimal{}, err
	}
	// Num keeps string numbers quoted.
	return decimal.NewFromString(strings.Trim(n.String(), `"`))
}
