package ledger

import (
	"errors"
	"testing"

	"fee-ledger/internal/domain"
)

func TestAggregate(t *testing.T) {
	lines := []ReceiptLine{
		{OriginalAmount: dec("10000"), ConcessionAmount: dec("1000"), FinalAmount: dec("9000")},
		{OriginalAmount: dec("2000"), ConcessionAmount: dec("500"), FinalAmount: dec("700.25")},
		{OriginalAmount: dec("0"), ConcessionAmount: dec("0"), FinalAmount: dec("0")},
	}
	totals := Aggregate(lines)

	assertDec(t, "original", totals.TotalOriginalAmount, "12000")
	assertDec(t, "concession", totals.TotalConcessionAmount, "1500")
	assertDec(t, "net", totals.TotalNetAmount, "10500")
	assertDec(t, "paid", totals.TotalPaidAmount, "9700.25")

	empty := Aggregate(nil)
	assertDec(t, "empty paid", empty.TotalPaidAmount, "0")
}

func TestBuildReceipt(t *testing.T) {
	sel, err := Allocate(ledgerItems(), AllocationRequest{
		StudentID:   "stu-1",
		SelectedIDs: []string{transport1, tuition2},
		Mode:        ModeAuto,
		PaymentMode: domain.PaymentModeCash,
		Reference:   "counter-3",
		Date:        apr1,
	})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	rcpt, err := BuildReceipt(sel, domain.PaymentBatchResult{ReceiptNumber: "RCPT-20250401-000001", TotalAmount: dec("11500")})
	if err != nil {
		t.Fatalf("build receipt: %v", err)
	}
	if rcpt.ReceiptNumber != "RCPT-20250401-000001" || rcpt.Reference != "counter-3" {
		t.Fatalf("unexpected receipt header: %+v", rcpt)
	}
	assertDec(t, "paid", rcpt.Totals.TotalPaidAmount, "11500")
	if rcpt.AmountInWords != "Eleven Thousand Five Hundred" {
		t.Fatalf("unexpected words %q", rcpt.AmountInWords)
	}
	if len(rcpt.Lines) != 2 {
		t.Fatalf("expected 2 lines; got %d", len(rcpt.Lines))
	}

	if _, err := BuildReceipt(sel, domain.PaymentBatchResult{ReceiptNumber: "RCPT-Y", TotalAmount: dec("11500.004")}); err != nil {
		t.Fatalf("totals equal at paisa precision must match: %v", err)
	}

	rcpt, err = BuildReceipt(sel, domain.PaymentBatchResult{ReceiptNumber: "RCPT-X", TotalAmount: dec("11000")})
	if !errors.Is(err, ErrTotalMismatch) {
		t.Fatalf("expected ErrTotalMismatch; got %v", err)
	}
	if rcpt.ReceiptNumber != "RCPT-X" || len(rcpt.Lines) != 2 {
		t.Fatalf("receipt must still be assembled on mismatch: %+v", rcpt)
	}
}
