package ledger

import (
	"fmt"

	"fee-ledger/internal/domain"

	"github.com/shopspring/decimal"
)

type ReceiptLine struct {
	OriginalAmount   decimal.Decimal
	ConcessionAmount decimal.Decimal
	FinalAmount      decimal.Decimal
}

// Aggregate sums a batch into receipt totals at currency precision.
func Aggregate(lines []ReceiptLine) domain.ReceiptTotals {
	t := domain.ReceiptTotals{
		TotalOriginalAmount:   decimal.Zero,
		TotalConcessionAmount: decimal.Zero,
		TotalNetAmount:        decimal.Zero,
		TotalPaidAmount:       decimal.Zero,
	}
	for _, l := range lines {
		t.TotalOriginalAmount = t.TotalOriginalAmount.Add(l.OriginalAmount)
		t.TotalConcessionAmount = t.TotalConcessionAmount.Add(l.ConcessionAmount)
		t.TotalNetAmount = t.TotalNetAmount.Add(l.OriginalAmount.Sub(l.ConcessionAmount))
		t.TotalPaidAmount = t.TotalPaidAmount.Add(l.FinalAmount)
	}
	t.TotalOriginalAmount = t.TotalOriginalAmount.Round(2)
	t.TotalConcessionAmount = t.TotalConcessionAmount.Round(2)
	t.TotalNetAmount = t.TotalNetAmount.Round(2)
	t.TotalPaidAmount = t.TotalPaidAmount.Round(2)
	return t
}

func SelectionLines(sel domain.PaymentSelection) []ReceiptLine {
	lines := make([]ReceiptLine, 0, len(sel.Lines))
	for _, l := range sel.Lines {
		lines = append(lines, ReceiptLine{
			OriginalAmount:   l.OriginalAmount,
			ConcessionAmount: l.ConcessionAmount,
			FinalAmount:      l.Amount,
		})
	}
	return lines
}

// BuildReceipt combines a recorded selection with the recorder's result.
func BuildReceipt(sel domain.PaymentSelection, res domain.PaymentBatchResult) (domain.Receipt, error) {
	totals := Aggregate(SelectionLines(sel))
	rcpt := domain.Receipt{
		ReceiptNumber: res.ReceiptNumber,
		StudentID:     sel.StudentID,
		Date:          sel.Date,
		Mode:          sel.Mode,
		Reference:     sel.Reference,
		Notes:         sel.Notes,
		Lines:         sel.Lines,
		Totals:        totals,
		AmountInWords: ToWords(totals.TotalPaidAmount),
	}
	// the receipt is still returned on mismatch; the batch is already recorded
	if !res.TotalAmount.Round(2).Equal(totals.TotalPaidAmount) {
		return rcpt, fmt.Errorf("%w: receipt %s recorded %s, selected %s",
			ErrTotalMismatch, res.ReceiptNumber, res.TotalAmount.StringFixed(2), totals.TotalPaidAmount.StringFixed(2))
	}
	return rcpt, nil
}
