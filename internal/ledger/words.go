package ledger

import (
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ones = []string{
		"", "One", "Two", "Three", "Four", "Five", "Six", "Seven", "Eight", "Nine",
		"Ten", "Eleven", "Twelve", "Thirteen", "Fourteen", "Fifteen", "Sixteen",
		"Seventeen", "Eighteen", "Nineteen",
	}
	tens = []string{
		"", "", "Twenty", "Thirty", "Forty", "Fifty", "Sixty", "Seventy", "Eighty", "Ninety",
	}
)

const (
	crore    = 10_000_000
	lakh     = 100_000
	thousand = 1_000
)

// ToWords spells an amount in the Indian numbering system, e.g.
// 125000 -> "One Lakh Twenty Five Thousand". Paise are appended as "and N Paise".
func ToWords(amount decimal.Decimal) string {
	if amount.IsNegative() {
		return "Minus " + ToWords(amount.Neg())
	}

	rupees := amount.Truncate(0)
	paise := amount.Sub(rupees).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	whole := rupees.IntPart()
	if paise == 100 {
		whole++
		paise = 0
	}

	switch {
	case whole == 0 && paise == 0:
		return "Zero"
	case paise == 0:
		return spell(whole)
	case whole == 0:
		return spell(paise) + " Paise"
	default:
		return spell(whole) + " and " + spell(paise) + " Paise"
	}
}

func spell(n int64) string {
	var parts []string
	if n >= crore {
		parts = append(parts, spell(n/crore), "Crore")
		n %= crore
	}
	if n >= lakh {
		parts = append(parts, belowThousand(n/lakh), "Lakh")
		n %= lakh
	}
	if n >= thousand {
		parts = append(parts, belowThousand(n/thousand), "Thousand")
		n %= thousand
	}
	if n > 0 {
		parts = append(parts, belowThousand(n))
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

func belowThousand(n int64) string {
	var parts []string
	if n >= 100 {
		parts = append(parts, ones[n/100], "Hundred")
		n %= 100
	}
	switch {
	case n >= 20:
		parts = append(parts, tens[n/10])
		if n%10 > 0 {
			parts = append(parts, ones[n%10])
		}
	case n > 0:
		parts = append(parts, ones[n])
	}
	return strings.Join(parts, " ")
}
