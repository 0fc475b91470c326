package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ReceiptTotals struct {
	TotalOriginalAmount   decimal.Decimal
	TotalConcessionAmount decimal.Decimal
	TotalNetAmount        decimal.Decimal
	TotalPaidAmount       decimal.Decimal
}

// Receipt is the only input a document renderer needs.
type Receipt struct {
	ReceiptNumber string
	StudentID     string
	Date          time.Time
	Mode          PaymentMode
	Reference     string
	Notes         string
	Lines         []SelectionLine
	Totals        ReceiptTotals
	AmountInWords string
}
