package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ItemStatus string

const (
	StatusPaid          ItemStatus = "Paid"
	StatusPartiallyPaid ItemStatus = "PartiallyPaid"
	StatusPending       ItemStatus = "Pending"
	StatusOverdue       ItemStatus = "Overdue"
)

// ItemID is the stable identifier of the (term, head) line of a student's ledger.
func ItemID(feeHeadID, feeTermID string) string {
	return feeTermID + ":" + feeHeadID
}

type FeeItem struct {
	ID                 string
	FeeHeadID          string
	FeeHeadName        string
	FeeTermID          string
	FeeTermName        string
	OriginalAmount     decimal.Decimal
	ConcessionAmount   decimal.Decimal
	TotalAmount        decimal.Decimal
	PaidAmount         decimal.Decimal
	OutstandingAmount  decimal.Decimal
	DueDate            time.Time
	Status             ItemStatus
	AppliedConcessions []AppliedConcession
	// InStructure is false for lines surfaced only because payment history references them.
	InStructure bool
}

func (it FeeItem) Selectable() bool {
	return it.OutstandingAmount.IsPositive()
}

type LedgerSummary struct {
	TotalOriginal    decimal.Decimal
	TotalConcession  decimal.Decimal
	TotalNet         decimal.Decimal
	TotalPaid        decimal.Decimal
	TotalOutstanding decimal.Decimal
	OverdueItems     int
	PendingItems     int
}
