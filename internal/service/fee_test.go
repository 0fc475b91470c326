package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"fee-ledger/internal/clients"
	"fee-ledger/internal/domain"
	"fee-ledger/internal/ledger"
	"fee-ledger/internal/repository"

	"github.com/shopspring/decimal"
)

const (
	tuition1   = "term1:tuition"
	transport1 = "term1:transport"
	tuition2   = "term2:tuition"
)

func autoRequest(ids ...string) ledger.AllocationRequest {
	return ledger.AllocationRequest{SelectedIDs: ids, Mode: ledger.ModeAuto, PaymentMode: domain.PaymentModeCash}
}

func TestFeeService_Ledger(t *testing.T) {
	f := newFeeFixture()

	l, err := f.svc.Ledger(context.Background(), testScope, "stu-1", time.Time{})
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	if !l.At.Equal(testNow) {
		t.Fatalf("expected ledger at %s; got %s", testNow, l.At)
	}
	if len(l.Items) != 4 || l.Items[0].ID != tuition1 {
		t.Fatalf("unexpected items %+v", l.Items)
	}
	if !l.Summary.TotalOutstanding.Equal(dec("22000")) {
		t.Fatalf("expected 22000 outstanding; got %s", l.Summary.TotalOutstanding)
	}

	_, err = f.svc.Ledger(context.Background(), testScope, "stu-404", time.Time{})
	if !errors.Is(err, repository.ErrStudentNotFound) {
		t.Fatalf("expected ErrStudentNotFound; got %v", err)
	}
}

func TestFeeService_Preview(t *testing.T) {
	f := newFeeFixture()

	p, err := f.svc.Preview(context.Background(), testScope, "stu-1", autoRequest(tuition1, transport1))
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if !p.Totals.TotalPaidAmount.Equal(dec("11000")) || !p.Totals.TotalConcessionAmount.Equal(dec("1000")) {
		t.Fatalf("unexpected totals %+v", p.Totals)
	}
	if p.AmountInWords != "Eleven Thousand" {
		t.Fatalf("unexpected words %q", p.AmountInWords)
	}
	if len(f.payments.recorded) != 0 {
		t.Fatal("preview must not record anything")
	}
}

func TestFeeService_Collect(t *testing.T) {
	f := newFeeFixture()

	res, err := f.svc.Collect(context.Background(), testScope, "stu-1", autoRequest(tuition1, transport1))
	if err != nil {
		t.Fatalf("collect: %v", err)
	}

	if len(f.payments.recorded) != 1 {
		t.Fatalf("expected exactly one recorded batch; got %d", len(f.payments.recorded))
	}
	if res.Receipt.ReceiptNumber != "RCPT-20250401-000001" {
		t.Fatalf("unexpected receipt %s", res.Receipt.ReceiptNumber)
	}
	if !res.Receipt.Totals.TotalPaidAmount.Equal(dec("11000")) {
		t.Fatalf("unexpected paid total %s", res.Receipt.Totals.TotalPaidAmount)
	}
	if len(res.Warnings) != 0 {
		t.Fatalf("unexpected warnings %v", res.Warnings)
	}

	for _, it := range res.Items {
		if it.ID == tuition1 || it.ID == transport1 {
			if it.Status != domain.StatusPaid || it.Selectable() {
				t.Fatalf("%s should be paid after collection; got %s", it.ID, it.Status)
			}
		}
	}
	if !res.Summary.TotalOutstanding.Equal(dec("11000")) {
		t.Fatalf("expected 11000 outstanding after payment; got %s", res.Summary.TotalOutstanding)
	}

	if kinds := f.notifier.kinds(); len(kinds) != 1 || kinds[0] != clients.MessageLedgerUpdated {
		t.Fatalf("unexpected notifications %v", kinds)
	}
	if len(f.publisher.recorded) != 1 || f.publisher.recorded[0].AmountInWords != "Eleven Thousand" {
		t.Fatalf("unexpected published events %+v", f.publisher.recorded)
	}
	if len(f.latch.held) != 0 {
		t.Fatal("latch must be released")
	}

	// a second identical submission sees the items as paid
	_, err = f.svc.Collect(context.Background(), testScope, "stu-1", autoRequest(tuition1, transport1))
	var verr *ledger.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error on resubmission; got %v", err)
	}
	if len(f.payments.recorded) != 1 {
		t.Fatal("resubmission must not record again")
	}
}

func TestFeeService_CollectManualPartial(t *testing.T) {
	f := newFeeFixture()
	req := ledger.AllocationRequest{
		SelectedIDs:   []string{tuition2},
		Mode:          ledger.ModeManual,
		CustomAmounts: map[string]decimal.Decimal{tuition2: dec("4000")},
		PaymentMode:   domain.PaymentModeOnline,
		Reference:     "UPI-77",
	}

	res, err := f.svc.Collect(context.Background(), testScope, "stu-1", req)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	for _, it := range res.Items {
		if it.ID == tuition2 {
			if it.Status != domain.StatusPartiallyPaid || !it.OutstandingAmount.Equal(dec("5000")) {
				t.Fatalf("unexpected item after partial payment: %s %s", it.Status, it.OutstandingAmount)
			}
		}
	}
	if res.Receipt.Reference != "UPI-77" {
		t.Fatalf("expected reference on receipt; got %q", res.Receipt.Reference)
	}
}

func TestFeeService_CollectWhileInProgress(t *testing.T) {
	f := newFeeFixture()
	req := autoRequest(tuition1)

	f.latch.held = map[string]bool{paymentLockKey("stu-1", req): true}

	_, err := f.svc.Collect(context.Background(), testScope, "stu-1", req)
	if !errors.Is(err, ErrPaymentInProgress) {
		t.Fatalf("expected ErrPaymentInProgress; got %v", err)
	}
	if len(f.payments.recorded) != 0 {
		t.Fatal("nothing must be recorded while a batch is in flight")
	}

	// a different batch for the same student is not blocked
	if _, err := f.svc.Collect(context.Background(), testScope, "stu-1", autoRequest(transport1)); err != nil {
		t.Fatalf("collect other batch: %v", err)
	}
}

func TestFeeService_CollectStaleSnapshot(t *testing.T) {
	f := newFeeFixture()
	f.payments.err = fmt.Errorf("%w: term1:tuition paid 100.00, ledger showed 0.00", repository.ErrStaleSnapshot)

	_, err := f.svc.Collect(context.Background(), testScope, "stu-1", autoRequest(tuition1))
	if !errors.Is(err, ErrConflict) || !errors.Is(err, repository.ErrStaleSnapshot) {
		t.Fatalf("expected ErrConflict wrapping ErrStaleSnapshot; got %v", err)
	}
	if len(f.notifier.kinds()) != 0 || len(f.publisher.recorded) != 0 {
		t.Fatal("a rejected batch must not notify")
	}
	if len(f.latch.held) != 0 {
		t.Fatal("latch must be released after a conflict")
	}
}

func TestFeeService_CollectValidation(t *testing.T) {
	f := newFeeFixture()
	req := ledger.AllocationRequest{
		SelectedIDs:   []string{transport1},
		Mode:          ledger.ModeManual,
		CustomAmounts: map[string]decimal.Decimal{transport1: dec("2500")},
		PaymentMode:   domain.PaymentModeCash,
	}

	_, err := f.svc.Collect(context.Background(), testScope, "stu-1", req)
	var verr *ledger.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error; got %v", err)
	}
	if len(verr.Fields) != 1 || verr.Fields[0].Field != transport1 {
		t.Fatalf("unexpected fields %+v", verr.Fields)
	}
	if len(f.payments.recorded) != 0 {
		t.Fatal("invalid batch must not be recorded")
	}
}

func TestFeeService_CollectRejectsSubPaisaAmount(t *testing.T) {
	f := newFeeFixture()
	req := ledger.AllocationRequest{
		SelectedIDs:   []string{tuition2},
		Mode:          ledger.ModeManual,
		CustomAmounts: map[string]decimal.Decimal{tuition2: dec("4000.005")},
		PaymentMode:   domain.PaymentModeCash,
	}

	_, err := f.svc.Collect(context.Background(), testScope, "stu-1", req)
	var verr *ledger.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error; got %v", err)
	}
	if len(verr.Fields) != 1 || verr.Fields[0].Field != tuition2 {
		t.Fatalf("unexpected fields %+v", verr.Fields)
	}
	if len(f.payments.recorded) != 0 {
		t.Fatal("sub-paisa amount must not be recorded")
	}
}

func TestFeeService_CollectReceiptMismatchAfterCommit(t *testing.T) {
	f := newFeeFixture()
	off := dec("1999")
	f.payments.recordedTotal = &off

	res, err := f.svc.Collect(context.Background(), testScope, "stu-1", autoRequest(transport1))
	if err != nil {
		t.Fatalf("a recorded payment must not be reported as failed: %v", err)
	}
	if len(f.payments.recorded) != 1 {
		t.Fatalf("expected one recorded batch; got %d", len(f.payments.recorded))
	}
	if res.Receipt.ReceiptNumber == "" || !res.Receipt.Totals.TotalPaidAmount.Equal(dec("2000")) {
		t.Fatalf("expected assembled receipt; got %+v", res.Receipt)
	}
	if len(res.Warnings) != 1 {
		t.Fatalf("expected one warning; got %v", res.Warnings)
	}
	if len(res.Items) == 0 {
		t.Fatal("ledger must still be reloaded")
	}
}

func TestFeeService_CollectNotificationFailuresAreWarnings(t *testing.T) {
	f := newFeeFixture()
	f.notifier.err = errors.New("hub down")
	f.publisher.err = errBroker

	res, err := f.svc.Collect(context.Background(), testScope, "stu-1", autoRequest(transport1))
	if err != nil {
		t.Fatalf("collect must succeed when notifications fail: %v", err)
	}
	if len(res.Warnings) != 2 {
		t.Fatalf("expected 2 warnings; got %v", res.Warnings)
	}
	if len(f.payments.recorded) != 1 {
		t.Fatal("payment must stand")
	}
}

func TestFeeService_CollectLatchError(t *testing.T) {
	f := newFeeFixture()
	f.latch.err = errors.New("redis down")

	if _, err := f.svc.Collect(context.Background(), testScope, "stu-1", autoRequest(tuition1)); err == nil {
		t.Fatal("expected error when the latch is unavailable")
	}
	if len(f.payments.recorded) != 0 {
		t.Fatal("nothing must be recorded without the latch")
	}
}

func TestFeeService_HandleGatewayEvent(t *testing.T) {
	f := newFeeFixture()
	ctx := context.Background()

	warnings, err := f.svc.HandleGatewayEvent(ctx, testScope, domain.LinkGenerated{
		StudentID: "stu-1", LinkID: "lnk-1", URL: "https://pay.example/lnk-1", Amount: dec("9000"), Phone: "+919800000000",
	})
	if err != nil || len(warnings) != 0 {
		t.Fatalf("link generated: %v %v", err, warnings)
	}
	if len(f.publisher.links) != 1 || f.publisher.links[0].Phone != "+919800000000" {
		t.Fatalf("expected payment link event; got %+v", f.publisher.links)
	}

	if _, err := f.svc.HandleGatewayEvent(ctx, testScope, domain.PaymentVerified{StudentID: "stu-1", ReceiptNumber: "RCPT-20250401-000009"}); err != nil {
		t.Fatalf("payment verified: %v", err)
	}
	if _, err := f.svc.HandleGatewayEvent(ctx, testScope, domain.PaymentFailed{StudentID: "stu-1", GatewayRef: "gw-1", Reason: "declined"}); err != nil {
		t.Fatalf("payment failed: %v", err)
	}

	want := []string{clients.MessageLinkGenerated, clients.MessageLedgerUpdated, clients.MessagePaymentFailed}
	got := f.notifier.kinds()
	if len(got) != len(want) {
		t.Fatalf("expected %v; got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v; got %v", want, got)
		}
	}

	if _, err := f.svc.HandleGatewayEvent(ctx, testScope, domain.PaymentVerified{StudentID: "stu-404"}); !errors.Is(err, repository.ErrStudentNotFound) {
		t.Fatalf("expected ErrStudentNotFound; got %v", err)
	}
}

func TestPaymentLockKey(t *testing.T) {
	a := paymentLockKey("stu-1", autoRequest(tuition1, transport1))
	b := paymentLockKey("stu-1", autoRequest(transport1, tuition1))
	if a != b {
		t.Fatal("selection order must not change the key")
	}
	if a == paymentLockKey("stu-2", autoRequest(tuition1, transport1)) {
		t.Fatal("students must not share keys")
	}

	manual := func(amount string) ledger.AllocationRequest {
		return ledger.AllocationRequest{
			SelectedIDs:   []string{tuition1},
			Mode:          ledger.ModeManual,
			CustomAmounts: map[string]decimal.Decimal{tuition1: dec(amount)},
		}
	}
	if paymentLockKey("stu-1", manual("100")) == paymentLockKey("stu-1", manual("200")) {
		t.Fatal("different amounts are different batches")
	}
	if paymentLockKey("stu-1", manual("100")) != paymentLockKey("stu-1", manual("100.00")) {
		t.Fatal("equal amounts must produce equal keys")
	}
}
