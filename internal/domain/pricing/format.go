package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var frenchPrinter = message.NewPrinter(language.French)

// spaceNormalizer folds the narrow and regular no-break spaces CLDR uses for French grouping
var spaceNormalizer = strings.NewReplacer("\u202f", " ", "\u00a0", " ")

// FormatInteger groups thousands the French way: 500000 → "500 000"
func FormatInteger(n int64) string {
	return spaceNormalizer.Replace(frenchPrinter.Sprintf("%d", n))
}

// FormatAmount renders a price for documents: 500000 → "500 000,00 Ar"
func FormatAmount(amount decimal.Decimal) string {
	rounded := amount.Round(2)
	sign := ""
	if rounded.IsNegative() {
		sign = "-"
		rounded = rounded.Neg()
	}
	whole := rounded.Truncate(0)
	cents := rounded.Sub(whole).Mul(decimal.NewFromInt(100)).IntPart()

	var b strings.Builder
	b.WriteString(sign)
	b.WriteString(FormatInteger(whole.IntPart()))
	b.WriteString(",")
	if cents < 10 {
		b.WriteString("0")
	}
	b.WriteString(decimal.NewFromInt(cents).String())
	b.WriteString(" Ar")
	return b.String()
}
