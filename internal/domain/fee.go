package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Scope is the branch and academic session every ledger computation runs in.
type Scope struct {
	BranchID  string
	SessionID string
}

type Student struct {
	ID              string
	BranchID        string
	SessionID       string
	ClassID         string
	Name            string
	AdmissionNumber string
}

type FeeHead struct {
	ID              string
	Name            string
	IsSystemDefined bool
}

type FeeTerm struct {
	ID      string
	Name    string
	DueDate time.Time
}

type FeeStructureEntry struct {
	FeeHeadID  string
	FeeTermID  string
	BaseAmount decimal.Decimal
}

// FeeStructure is the snapshot of heads, terms and head x term amounts for one class.
// Heads and Terms are in display order.
type FeeStructure struct {
	Heads   []FeeHead
	Terms   []FeeTerm
	Entries []FeeStructureEntry
}

func (s FeeStructure) Head(id string) (FeeHead, bool) {
	for _, h := range s.Heads {
		if h.ID == id {
			return h, true
		}
	}
	return FeeHead{}, false
}

func (s FeeStructure) Term(id string) (FeeTerm, bool) {
	for _, t := range s.Terms {
		if t.ID == id {
			return t, true
		}
	}
	return FeeTerm{}, false
}
