package reservation

import (
	"github.com/shopspring/decimal"
)

// DefaultRefundPercent is the share of the ticket price returned on
// cancellation. The remaining 20% is kept by the operator.
const DefaultRefundPercent = 80

var hundred = decimal.NewFromInt(100)

// Cents rounds d to two decimal places, half away from zero.
func Cents(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// MustMoney parses a decimal string and rounds it to cents.
// Returns zero on malformed input.
func MustMoney(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return Cents(d)
}

// RefundAmount computes price * percent / 100 rounded to the cent.
// Fixed-point all the way, so repeated cancel/refund cycles reproduce
// exactly the same amounts.
func RefundAmount(price decimal.Decimal, percent int) (decimal.Decimal, error) {
	if percent < 0 || percent > 100 {
		return decimal.Zero, ErrInvalidAmount
	}
	return Cents(price.Mul(decimal.NewFromInt(int64(percent))).Div(hundred)), nil
}
