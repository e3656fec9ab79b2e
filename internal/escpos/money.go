package escpos

import (
	"github.com/shopspring/decimal"
)

// Money renders "<currency> <amount>" with exactly two fractional digits
func Money(currency string, amount decimal.Decimal) string {
	return currency + " " + amount.StringFixed(2)
}

// LineTotal returns unitPrice * qty without float drift
func LineTotal(unitPrice float64, qty int) decimal.Decimal {
	return decimal.NewFromFloat(unitPrice).Mul(decimal.NewFromInt(int64(qty)))
}
