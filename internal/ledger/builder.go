package ledger

import (
	"sort"
	"time"

	"fee-ledger/internal/domain"

	"github.com/shopspring/decimal"
)

type BuildInput struct {
	Student     domain.Student
	Structure   domain.FeeStructure
	Concessions []domain.AssignedConcession
	History     []domain.PaymentAllocation
	At          time.Time
}

type pairKey struct {
	head string
	term string
}

// Build derives the student's fee items from a snapshot. It must be re-run after every
// recorded payment; items are never patched in place.
func Build(in BuildInput) []domain.FeeItem {
	paid := paidByPair(in.Student.ID, in.History)

	termPos := make(map[string]int, len(in.Structure.Terms))
	for i, t := range in.Structure.Terms {
		termPos[t.ID] = i
	}
	headPos := make(map[string]int, len(in.Structure.Heads))
	for i, h := range in.Structure.Heads {
		headPos[h.ID] = i
	}

	seen := make(map[pairKey]bool, len(in.Structure.Entries))
	items := make([]domain.FeeItem, 0, len(in.Structure.Entries))

	for _, e := range in.Structure.Entries {
		key := pairKey{head: e.FeeHeadID, term: e.FeeTermID}
		if seen[key] {
			continue
		}
		seen[key] = true

		item := newItem(in.Structure, e.FeeHeadID, e.FeeTermID)
		item.InStructure = true
		item.OriginalAmount = nonNegative(e.BaseAmount)
		item.ConcessionAmount, item.AppliedConcessions = ResolveAll(in.Concessions, e.FeeHeadID, e.FeeTermID, item.OriginalAmount, in.At)
		item.TotalAmount = item.OriginalAmount.Sub(item.ConcessionAmount)
		item.PaidAmount = paid[key]
		item.OutstandingAmount = outstanding(item.TotalAmount, item.PaidAmount)
		item.Status = status(item, in.At)
		items = append(items, item)
	}

	// recorded payments against lines that are no longer in the structure stay visible
	for key, amount := range paid {
		if seen[key] {
			continue
		}
		item := newItem(in.Structure, key.head, key.term)
		item.OriginalAmount = decimal.Zero
		item.ConcessionAmount = decimal.Zero
		item.TotalAmount = decimal.Zero
		item.PaidAmount = amount
		item.OutstandingAmount = decimal.Zero
		item.Status = domain.StatusPaid
		items = append(items, item)
	}

	sort.SliceStable(items, func(i, j int) bool {
		ti, tj := position(termPos, items[i].FeeTermID), position(termPos, items[j].FeeTermID)
		if ti != tj {
			return ti < tj
		}
		if ti == len(termPos) && items[i].FeeTermID != items[j].FeeTermID {
			return items[i].FeeTermID < items[j].FeeTermID
		}
		hi, hj := position(headPos, items[i].FeeHeadID), position(headPos, items[j].FeeHeadID)
		if hi != hj {
			return hi < hj
		}
		return items[i].FeeHeadID < items[j].FeeHeadID
	})

	return items
}

// Summarize totals a ledger across all of its items.
func Summarize(items []domain.FeeItem) domain.LedgerSummary {
	sum := domain.LedgerSummary{
		TotalOriginal:    decimal.Zero,
		TotalConcession:  decimal.Zero,
		TotalNet:         decimal.Zero,
		TotalPaid:        decimal.Zero,
		TotalOutstanding: decimal.Zero,
	}
	for _, it := range items {
		sum.TotalOriginal = sum.TotalOriginal.Add(it.OriginalAmount)
		sum.TotalConcession = sum.TotalConcession.Add(it.ConcessionAmount)
		sum.TotalNet = sum.TotalNet.Add(it.TotalAmount)
		sum.TotalPaid = sum.TotalPaid.Add(it.PaidAmount)
		sum.TotalOutstanding = sum.TotalOutstanding.Add(it.OutstandingAmount)
		switch it.Status {
		case domain.StatusOverdue:
			sum.OverdueItems++
		case domain.StatusPending, domain.StatusPartiallyPaid:
			sum.PendingItems++
		}
	}
	return sum
}

func newItem(s domain.FeeStructure, headID, termID string) domain.FeeItem {
	item := domain.FeeItem{
		ID:        domain.ItemID(headID, termID),
		FeeHeadID: headID,
		FeeTermID: termID,
	}
	if h, ok := s.Head(headID); ok {
		item.FeeHeadName = h.Name
	}
	if t, ok := s.Term(termID); ok {
		item.FeeTermName = t.Name
		item.DueDate = t.DueDate
	}
	return item
}

func paidByPair(studentID string, history []domain.PaymentAllocation) map[pairKey]decimal.Decimal {
	paid := make(map[pairKey]decimal.Decimal)
	for _, h := range history {
		if h.StudentID != "" && h.StudentID != studentID {
			continue
		}
		key := pairKey{head: h.FeeHeadID, term: h.FeeTermID}
		paid[key] = paid[key].Add(h.Amount)
	}
	return paid
}

func outstanding(total, paid decimal.Decimal) decimal.Decimal {
	return nonNegative(total.Sub(paid))
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

func status(it domain.FeeItem, at time.Time) domain.ItemStatus {
	switch {
	case !it.OutstandingAmount.IsPositive():
		return domain.StatusPaid
	case dueBefore(it.DueDate, at):
		return domain.StatusOverdue
	case it.PaidAmount.IsPositive():
		return domain.StatusPartiallyPaid
	default:
		return domain.StatusPending
	}
}

// dueBefore compares calendar days; due dates are date-only values.
func dueBefore(due, at time.Time) bool {
	if due.IsZero() {
		return false
	}
	return domain.CalendarDay(due).Before(domain.CalendarDay(at))
}

func position(pos map[string]int, id string) int {
	if p, ok := pos[id]; ok {
		return p
	}
	return len(pos)
}
