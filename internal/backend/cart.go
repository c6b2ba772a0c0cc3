package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/pawmart/storefront/internal/domain/cart"
)

var _ cart.Store = (*Client)(nil)

// Load fetches the user's cart snapshot.
func (c *Client) Load(ctx context.Context, userKey string) ([]cart.LineItem, error) {
	data, _, err := c.do(ctx, http.MethodGet, "/carts/"+url.PathEscape(userKey), nil)
	if err != nil {
		return nil, err
	}
	return decodeItemList(data)
}

// Add submits a new line item and returns the full updated item list.
func (c *Client) Add(ctx context.Context, userKey string, item cart.LineItem) ([]cart.LineItem, error) {
	var e jx.Encoder
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

	data, _, err := c.do(ctx, http.MethodPost, "/carts/"+url.PathEscape(userKey)+"/items", e.Bytes())
	if err != nil {
		return nil, err
	}
	return decodeItemList(data)
}

// UpdateQuantity submits a quantity change for one line item.
func (c *Client) UpdateQuantity(ctx context.Context, userKey, itemID string, quantity int) ([]cart.LineItem, error) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("quantity")
	e.Int(quantity)
	e.ObjEnd()

	path := "/carts/" + url.PathEscape(userKey) + "/items/" + url.PathEscape(itemID)
	data, _, err := c.do(ctx, http.MethodPatch, path, e.Bytes())
	if err != nil {
		return nil, err
	}
	return decodeItemList(data)
}

// Remove deletes one line item.
func (c *Client) Remove(ctx context.Context, userKey, itemID string) ([]cart.LineItem, error) {
	path := "/carts/" + url.PathEscape(userKey) + "/items/" + url.PathEscape(itemID)
	data, _, err := c.do(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return nil, err
	}
	return decodeItemList(data)
}

// Clear empties the user's remote cart. The response payload is ignored.
func (c *Client) Clear(ctx context.Context, userKey string) error {
	_, _, err := c.do(ctx, http.MethodDelete, "/carts/"+url.PathEscape(userKey), nil)
	return err
}

// decodeItemList reads {"items": [...]} into line items.
func decodeItemList(data []byte) ([]cart.LineItem, error) {
	var items []cart.LineItem
	d := jx.DecodeBytes(data)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "items" {
			return d.Skip()
		}
		return d.Arr(func(d *jx.Decoder) error {
			item, err := decodeItem(d)
			if err != nil {
				return err
			}
			items = append(items, item)
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode cart items")
	}
	return items, nil
}

func decodeItem(d *jx.Decoder) (cart.LineItem, error) {
	var item cart.LineItem
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			item.ID, err = decodeID(d)
		case "productId":
			item.ProductID, err = decodeID(d)
		case "name":
			item.Name, err = d.Str()
		case "image":
			item.Image, err = d.Str()
		case "price":
			item.UnitPrice, err = decodeDecimal(d)
		case "priceUsd":
			item.UnitPriceUSD, err = decodeDecimal(d)
		case "quantity":
			item.Quantity, err = d.Int()
		default:
			err = d.Skip()
		}
		return err
	})
	return item, err
}

// decodeID accepts both string and numeric identifiers; the backend has
// historically used numeric ids for cart rows.
func decodeID(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.String:
		return d.Str()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return "", err
		}
		if n.IsInt() {
			v, err := n.Int64()
			if err != nil {
				return "", err
			}
			return strconv.FormatInt(v, 10), nil
		}
		return n.String(), nil
	default:
		return "", fmt.Errorf("unexpected id type %v", d.Next())
	}
}
