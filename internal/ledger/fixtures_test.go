package ledger

import (
	"testing"
	"time"

	"fee-ledger/internal/domain"

	"github.com/shopspring/decimal"
)

var (
	jan1  = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	apr1  = time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)
	apr15 = time.Date(2025, time.April, 15, 0, 0, 0, 0, time.UTC)
	jul10 = time.Date(2025, time.July, 10, 0, 0, 0, 0, time.UTC)
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func assertDec(t *testing.T, name string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Fatalf("%s: expected %s; got %s", name, want, got.String())
	}
}

func testStudent() domain.Student {
	return domain.Student{ID: "stu-1", BranchID: "br-1", SessionID: "2025-26", ClassID: "class-5"}
}

// testStructure has Tuition and Transport over two terms. Term 1 is due Apr 10, term 2 Jul 10.
func testStructure() domain.FeeStructure {
	return domain.FeeStructure{
		Heads: []domain.FeeHead{
			{ID: "tuition", Name: "Tuition"},
			{ID: "transport", Name: "Transport"},
		},
		Terms: []domain.FeeTerm{
			{ID: "term1", Name: "Term 1", DueDate: time.Date(2025, time.April, 10, 0, 0, 0, 0, time.UTC)},
			{ID: "term2", Name: "Term 2", DueDate: jul10},
		},
		Entries: []domain.FeeStructureEntry{
			{FeeHeadID: "transport", FeeTermID: "term2", BaseAmount: dec("2000")},
			{FeeHeadID: "tuition", FeeTermID: "term2", BaseAmount: dec("10000")},
			{FeeHeadID: "transport", FeeTermID: "term1", BaseAmount: dec("2000")},
			{FeeHeadID: "tuition", FeeTermID: "term1", BaseAmount: dec("10000")},
		},
	}
}

func percentage(id string, value string, max *decimal.Decimal) domain.ConcessionType {
	return domain.ConcessionType{
		ID:              id,
		Name:            "Concession " + id,
		Kind:            domain.ConcessionPercentage,
		Value:           dec(value),
		MaxValue:        max,
		AppliedFeeHeads: domain.ApplyAll(),
		AppliedFeeTerms: domain.ApplyAll(),
	}
}

func fixed(id string, value string) domain.ConcessionType {
	return domain.ConcessionType{
		ID:              id,
		Name:            "Concession " + id,
		Kind:            domain.ConcessionFixed,
		Value:           dec(value),
		AppliedFeeHeads: domain.ApplyAll(),
		AppliedFeeTerms: domain.ApplyAll(),
	}
}

func assigned(ct domain.ConcessionType) domain.AssignedConcession {
	return domain.AssignedConcession{
		Type: ct,
		Assignment: domain.StudentConcession{
			ID:               "sc-" + ct.ID,
			StudentID:        "stu-1",
			ConcessionTypeID: ct.ID,
			ValidFrom:        jan1,
		},
	}
}

func itemByID(t *testing.T, items []domain.FeeItem, id string) domain.FeeItem {
	t.Helper()
	for _, it := range items {
		if it.ID == id {
			return it
		}
	}
	t.Fatalf("item %s not found", id)
	return domain.FeeItem{}
}
