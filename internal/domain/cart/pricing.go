package cart

import (
	"github.com/shopspring/decimal"

	"github.com/pawmart/storefront/internal/currency"
	"github.com/pawmart/storefront/internal/domain/coupon"
)

// Pricing constants. Tax is charged on the post-discount amount; shipping is
// a flat fee whenever the cart is non-empty.
var (
	TaxRate     = decimal.RequireFromString("0.05")
	ShippingFee = decimal.NewFromInt(60)
)

// Pricing is the derived breakdown of a cart's cost. It is always recomputed
// from the current state and never stored or mutated directly.
type Pricing struct {
	Subtotal  decimal.Decimal
	Discount  decimal.Decimal
	Tax       decimal.Decimal
	Shipping  decimal.Decimal
	Total     decimal.Decimal
	ItemCount int
}

// Price computes the breakdown for the given items and optional coupon.
//
//	subtotal = sum(unitPrice * quantity)
//	discount = coupon discount, clamped to [0, subtotal]
//	tax      = (subtotal - discount) * TaxRate
//	shipping = ShippingFee when items exist, else 0
//	total    = subtotal - discount + tax + shipping
func Price(items []LineItem, applied *coupon.Coupon) Pricing {
	subtotal := decimal.Zero
	count := 0
	for _, it := range items {
		qty := decimal.NewFromInt(int64(it.Quantity))
		subtotal = subtotal.Add(unitPrice(it).Mul(qty))
		count += it.Quantity
	}

	discount := applied.DiscountOn(subtotal).Round(2)
	tax := subtotal.Sub(discount).Mul(TaxRate).Round(2)

	shipping := decimal.Zero
	if len(items) > 0 {
		shipping = ShippingFee
	}

	total := subtotal.Sub(discount).Add(tax).Add(shipping)

	return Pricing{
		Subtotal:  subtotal.Round(2),
		Discount:  discount,
		Tax:       tax,
		Shipping:  shipping,
		Total:     total.Round(2),
		ItemCount: count,
	}
}

// unitPrice resolves the display-currency price of a line item. The BDT
// price is preferred; the USD price is converted only when BDT is absent,
// so a single sum never mixes units.
func unitPrice(it LineItem) decimal.Decimal {
	if it.UnitPrice.Sign() > 0 {
		return it.UnitPrice
	}
	if it.UnitPriceUSD.Sign() > 0 {
		return currency.FromUSD(it.UnitPriceUSD)
	}
	return decimal.Zero
}
