package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMode string

const (
	PaymentModeCash         PaymentMode = "Cash"
	PaymentModeCard         PaymentMode = "Card"
	PaymentModeOnline       PaymentMode = "Online"
	PaymentModeBankTransfer PaymentMode = "BankTransfer"
	PaymentModeCheque       PaymentMode = "Cheque"
	PaymentModeDD           PaymentMode = "DD"
)

var PaymentModes = []PaymentMode{
	PaymentModeCash,
	PaymentModeCard,
	PaymentModeOnline,
	PaymentModeBankTransfer,
	PaymentModeCheque,
	PaymentModeDD,
}

func (m PaymentMode) Valid() bool {
	for _, pm := range PaymentModes {
		if m == pm {
			return true
		}
	}
	return false
}

// PaymentAllocation is one recorded amount against a (head, term) pair of a student.
type PaymentAllocation struct {
	StudentID     string
	FeeHeadID     string
	FeeTermID     string
	Amount        decimal.Decimal
	ReceiptNumber string
	PaidAt        *time.Time
}

type SelectionLine struct {
	FeeItemID        string
	FeeHeadID        string
	FeeHeadName      string
	FeeTermID        string
	FeeTermName      string
	OriginalAmount   decimal.Decimal
	ConcessionAmount decimal.Decimal
	NetAmount        decimal.Decimal
	PaidBefore       decimal.Decimal
	Amount           decimal.Decimal
}

// PaymentSelection is a validated batch ready for the payment recorder.
type PaymentSelection struct {
	StudentID string
	Lines     []SelectionLine
	Mode      PaymentMode
	Reference string
	Notes     string
	Date      time.Time
}

func (s PaymentSelection) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range s.Lines {
		total = total.Add(l.Amount)
	}
	return total
}

type PaymentBatchResult struct {
	ReceiptNumber string
	TotalAmount   decimal.Decimal
}

// PaymentRecord is a recorded receipt row as listed in collection reports.
type PaymentRecord struct {
	ID            string
	ReceiptNumber string
	StudentID     string
	StudentName   *string
	BranchID      string
	SessionID     string
	Mode          PaymentMode
	Reference     *string
	Notes         *string
	TotalAmount   decimal.Decimal
	PaidAt        *time.Time

	CreatedAt *time.Time
}
