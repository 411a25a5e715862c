package domain

import "github.com/shopspring/decimal"

// FormatMoney renders an amount with two decimals behind the currency prefix.
func FormatMoney(symbol string, amount decimal.Decimal) string {
	return symbol + amount.StringFixed(2)
}
