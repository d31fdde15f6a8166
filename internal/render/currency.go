package render

import (
	"strings"

	"receiptmaker/internal/receipt"

	"github.com/shopspring/decimal"
)

// FormatCurrency renders amount with exactly two decimals, thousands grouped
// with commas. The minus sign always precedes the symbol; mode only orders the
// symbol against the unsigned number. Unknown modes behave as symbol-before.
func FormatCurrency(amount float64, symbol string, mode receipt.CurrencyFormat) string {
	d := decimal.NewFromFloat(amount).Round(2)
	sign := ""
	if d.Sign() < 0 {
		sign = "-"
		d = d.Abs()
	}
	number := groupThousands(d.StringFixed(2))

	switch mode {
	case receipt.SymbolAfter:
		return sign + number + symbol
	case receipt.SymbolAfterSpace:
		return sign + number + " " + symbol
	default:
		return sign + symbol + number
	}
}

func groupThousands(fixed string) string {
	intPart, frac, _ := strings.Cut(fixed, ".")
	if len(intPart) <= 3 {
		return fixed
	}
	var b strings.Builder
	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(intPart[i : i+3])
	}
	return b.String() + "." + frac
}
