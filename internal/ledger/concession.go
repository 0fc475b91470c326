package ledger

import (
	"time"

	"fee-ledger/internal/domain"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Resolve returns the amount one concession takes off base for the (head, term) pair at the
// given date. The result is always within [0, base]; inconsistent definitions degrade to the
// smaller amount instead of failing.
func Resolve(ct domain.ConcessionType, sc domain.StudentConcession, headID, termID string, base decimal.Decimal, at time.Time) decimal.Decimal {
	if !base.IsPositive() {
		return decimal.Zero
	}
	if !sc.ActiveAt(at) {
		return decimal.Zero
	}
	if !ct.AppliedFeeHeads.Includes(headID) || !ct.AppliedFeeTerms.Includes(termID) {
		return decimal.Zero
	}

	var amount decimal.Decimal
	switch ct.Kind {
	case domain.ConcessionPercentage:
		amount = base.Mul(ct.Value).Div(hundred).Round(2)
	case domain.ConcessionFixed:
		amount = ct.Value
		if override, ok := ct.FeeTermAmounts[termID]; ok {
			amount = override
		}
	default:
		return decimal.Zero
	}

	if ct.MaxValue != nil && amount.GreaterThan(*ct.MaxValue) {
		amount = *ct.MaxValue
	}
	return clamp(amount, base)
}

// ResolveAll sums every applicable concession for the pair and caps the sum at base.
// When the cap applies, trailing contributions are trimmed so the applied amounts still add
// up to the returned total.
func ResolveAll(concessions []domain.AssignedConcession, headID, termID string, base decimal.Decimal, at time.Time) (decimal.Decimal, []domain.AppliedConcession) {
	total := decimal.Zero
	var applied []domain.AppliedConcession

	for _, c := range concessions {
		amount := Resolve(c.Type, c.Assignment, headID, termID, base, at)
		if room := base.Sub(total); amount.GreaterThan(room) {
			amount = room
		}
		if !amount.IsPositive() {
			continue
		}
		total = total.Add(amount)
		applied = append(applied, domain.AppliedConcession{
			ConcessionTypeID: c.Type.ID,
			Name:             c.Type.Name,
			Kind:             c.Type.Kind,
			Value:            c.Type.Value,
			Amount:           amount,
		})
	}
	return total, applied
}

func clamp(amount, upper decimal.Decimal) decimal.Decimal {
	if amount.IsNegative() {
		return decimal.Zero
	}
	if amount.GreaterThan(upper) {
		return upper
	}
	return amount
}
