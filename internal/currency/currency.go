// Package currency converts and formats amounts between the store's two
// currency representations: BDT (the display currency) and USD (the source
// currency some catalog entries are priced in). The conversion rate is a
// fixed display convention, not a market rate.
package currency

import (
	"github.com/shopspring/decimal"
)

// BDTPerUSD is the fixed conversion rate used for display purposes.
var BDTPerUSD = decimal.NewFromInt(110)

// FromUSD converts a USD amount to BDT, rounded to 2 decimal places.
func FromUSD(usd decimal.Decimal) decimal.Decimal {
	return usd.Mul(BDTPerUSD).Round(2)
}

// ToUSD converts a BDT amount to USD, rounded to 2 decimal places.
func ToUSD(bdt decimal.Decimal) decimal.Decimal {
	return bdt.DivRound(BDTPerUSD, 2)
}

// FormatBDT renders an amount as a BDT display string, e.g. "৳1425.00".
func FormatBDT(amount decimal.Decimal) string {
	return "৳" + amount.StringFixed(2)
}

// FormatUSD renders an amount as a USD display string, e.g. "$12.95".
func FormatUSD(amount decimal.Decimal) string {
	return "$" + amount.StringFixed(2)
}
