package backend

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/pawmart/storefront/internal/domain/appointment"
)

var _ appointment.Service = (*Client)(nil)

// CreateAppointmentIntent requests a payment-setup token for a booking.
// A 409 from the backend means another booking already holds the slot and
// maps to appointment.ErrSlotConflict.
func (c *Client) CreateAppointmentIntent(ctx context.Context, intent appointment.Intent) (string, error) {
	p := intent.Booking.Provider

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("userKey")
	e.Str(intent.UserKey)
	e.FieldStart("provider")
	e.ObjStart()
	e.FieldStart("id")
	e.Str(p.ID)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("email")
	e.Str(p.Email)
	e.FieldStart("fee")
	encodeDecimal(&e, p.Fee)
	e.ObjEnd()
	e.FieldStart("date")
	e.Str(intent.Booking.Date)
	e.FieldStart("time")
	e.Str(intent.Booking.Time)
	e.FieldStart("billing")
	encodeBilling(&e, intent.Billing)
	e.ObjEnd()

	data, status, err := c.do(ctx, http.MethodPost, "/appointments/intent", e.Bytes())
	if err != nil {
		if status == http.StatusConflict {
			return "", appointment.ErrSlotConflict
		}
		return "", err
	}
	return decodeToken(data)
}

// VerifyPayment materializes a booking against a confirmed payment
// reference and returns the booking reference.
func (c *Client) VerifyPayment(ctx context.Context, paymentRef string, b appointment.Booking, userKey string) (string, error) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("paymentRef")
	e.Str(paymentRef)
	e.FieldStart("userKey")
	e.Str(userKey)
	e.FieldStart("providerId")
	e.Str(b.Provider.ID)
	e.FieldStart("date")
	e.Str(b.Date)
	e.FieldStart("time")
	e.Str(b.Time)
	e.ObjEnd()

	data, _, err := c.do(ctx, http.MethodPost, "/appointments/verify", e.Bytes())
	if err != nil {
		return "", err
	}

	ref := ""
	d := jx.DecodeBytes(data)
	derr := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "bookingRef" {
			return d.Skip()
		}
		s, err := d.Str()
		if err != nil {
			return err
		}
		ref = s
		return nil
	})
	if derr != nil {
		return "", errors.Wrap(derr, "decode booking reference")
	}
	if ref == "" {
		return "", errors.New("decode booking reference: missing bookingRef")
	}
	return ref, nil
}

// Providers lists the doctor directory. The handler layer uses it to render
// availability before a booking is selected.
func (c *Client) Providers(ctx context.Context) ([]appointment.Provider, error) {
	data, _, err := c.do(ctx, http.MethodGet, "/providers", nil)
	if err != nil {
		return nil, err
	}
	return decodeProviderList(data)
}

// Provider fetches one doctor by id.
func (c *Client) Provider(ctx context.Context, id string) (appointment.Provider, error) {
	data, _, err := c.do(ctx, http.MethodGet, "/providers/"+url.PathEscape(id), nil)
	if err != nil {
		return appointment.Provider{}, err
	}
	p, err := decodeProvider(jx.DecodeBytes(data))
	if err != nil {
		return appointment.Provider{}, errors.Wrap(err, "decode provider")
	}
	return p, nil
}

func decodeProviderList(data []byte) ([]appointment.Provider, error) {
	var providers []appointment.Provider
	d := jx.DecodeBytes(data)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "providers" {
			return d.Skip()
		}
		return d.Arr(func(d *jx.Decoder) error {
			p, err := decodeProvider(d)
			if err != nil {
				return err
			}
			providers = append(providers, p)
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode providers")
	}
	return providers, nil
}

func decodeProvider(d *jx.Decoder) (appointment.Provider, error) {
	var p appointment.Provider
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			p.ID, err = decodeID(d)
		case "name":
			p.Name, err = d.Str()
		case "email":
			p.Email, err = d.Str()
		case "fee":
			p.Fee, err = decodeDecimal(d)
		case "days":
			err = d.Arr(func(d *jx.Decoder) error {
				day, err := d.Str()
				if err != nil {
					return err
				}
				p.Days = append(p.Days, day)
				return nil
			})
		case "startTime":
			p.StartTime, err = d.Str()
		case "endTime":
			p.EndTime, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	return p, err
}
