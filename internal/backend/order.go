package backend

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/pawmart/storefront/internal/domain/checkout"
)

var _ checkout.OrderService = (*Client)(nil)

// CreateOrderIntent asks the order collaborator for a payment-setup token
// binding this charge attempt to the cart's computed total.
func (c *Client) CreateOrderIntent(ctx context.Context, intent checkout.OrderIntent) (string, error) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("userKey")
	e.Str(intent.UserKey)
	e.FieldStart("items")
	e.ArrStart()
	for _, item := range intent.Items {
		e.ObjStart()
		e.FieldStart("productId")
		e.Str(item.ProductID)
		e.FieldStart("name")
		e.Str(item.Name)
		e.FieldStart("image")
		e.Str(item.Image)
		e.FieldStart("price")
		encodeDecimal(&e, item.UnitPrice)
		e.FieldStart("priceUsd")
		encodeDecimal(&e, item.UnitPriceUSD)
		e.FieldStart("quantity")
		e.Int(item.Quantity)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("total")
	encodeDecimal(&e, intent.Total)
	if intent.CouponCode != "" {
		e.FieldStart("couponCode")
		e.Str(intent.CouponCode)
	}
	e.FieldStart("billing")
	encodeBilling(&e, intent.Billing)
	e.ObjEnd()

	data, _, err := c.do(ctx, http.MethodPost, "/orders/intent", e.Bytes())
	if err != nil {
		return "", err
	}
	return decodeToken(data)
}

func encodeBilling(e *jx.Encoder, b checkout.BillingDetails) {
	e.ObjStart()
	e.FieldStart("fullName")
	e.Str(b.FullName)
	e.FieldStart("email")
	e.Str(b.Email)
	e.FieldStart("phone")
	e.Str(b.Phone)
	e.FieldStart("country")
	e.Str(b.Country)
	e.FieldStart("address")
	e.Str(b.Address)
	e.FieldStart("city")
	e.Str(b.City)
	e.FieldStart("postalCode")
	e.Str(b.PostalCode)
	e.ObjEnd()
}

// decodeToken reads {"token": "..."} payment-setup token responses.
func decodeToken(data []byte) (string, error) {
	token := ""
	d := jx.DecodeBytes(data)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "token" {
			return d.Skip()
		}
		s, err := d.Str()
		if err != nil {
			return err
		}
		token = s
		return nil
	})
	if err != nil {
		return "", errors.Wrap(err, "decode payment-setup token")
	}
	if token == "" {
		return "", errors.New("decode payment-setup token: missing token")
	}
	return token, nil
}
