package backend

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/pawmart/storefront/internal/domain/coupon"
	"github.com/pawmart/storefront/internal/domain/remote"
)

var _ coupon.Service = (*Client)(nil)

// Apply validates a coupon code against the remote coupon store. The
// subtotal is informational; the returned coupon is authoritative. Any
// explicit rejection maps to coupon.ErrInvalid carrying the server's
// message when present.
func (c *Client) Apply(ctx context.Context, userKey, code string, subtotal decimal.Decimal) (*coupon.Coupon, error) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("userKey")
	e.Str(userKey)
	e.FieldStart("code")
	e.Str(code)
	e.FieldStart("subtotal")
	encodeDecimal(&e, subtotal)
	e.ObjEnd()

	data, _, err := c.do(ctx, http.MethodPost, "/coupons/apply", e.Bytes())
	if err != nil {
		var rej *remote.RejectedError
		if errors.As(err, &rej) {
			return nil, coupon.Invalid(rej.Message)
		}
		return nil, err
	}

	return decodeCoupon(data)
}

func decodeCoupon(data []byte) (*coupon.Coupon, error) {
	var cpn coupon.Coupon
	d := jx.DecodeBytes(data)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "code":
			cpn.Code, err = d.Str()
		case "kind":
			var kind string
			kind, err = d.Str()
			cpn.Kind = coupon.Kind(kind)
		case "value":
			cpn.Value, err = decodeDecimal(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode coupon")
	}
	if cpn.Code == "" || cpn.Kind == "" {
		return nil, errors.New("decode coupon: incomplete descriptor")
	}
	return &cpn, nil
}
