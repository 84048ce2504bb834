package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

func init() {
	// Amounts are JSON numbers on the wire.
	decimal.MarshalJSONWithoutQuotes = true
}

// Amounts are stored as numeric(12,2).
const MoneyScale = 2

// MaxAmount is the exclusive upper bound of a stored amount.
var MaxAmount = decimal.New(1, 12-MoneyScale)

// CheckAmount reports why d cannot be stored as an amount, or "" when it can.
func CheckAmount(d decimal.Decimal) string {
	switch {
	case d.IsNegative():
		return "must be greater than or equal to 0"
	case !d.Equal(d.Round(MoneyScale)):
		return fmt.Sprintf("must have at most %d decimal places", MoneyScale)
	case d.GreaterThanOrEqual(MaxAmount):
		return fmt.Sprintf("must be less than %s", MaxAmount)
	}
	return ""
}
