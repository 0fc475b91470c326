package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"fee-ledger/internal/clients"
	"fee-ledger/internal/domain"
	"fee-ledger/internal/repository"

	"github.com/shopspring/decimal"
)

var (
	testScope = domain.Scope{BranchID: "br-1", SessionID: "2025-26"}
	testNow   = time.Date(2025, time.April, 1, 10, 0, 0, 0, time.UTC)
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fakeStructures struct {
	student   domain.Student
	structure domain.FeeStructure
}

func (f *fakeStructures) ForStudent(ctx context.Context, scope domain.Scope, studentID string) (domain.Student, domain.FeeStructure, error) {
	if studentID != f.student.ID {
		return domain.Student{}, domain.FeeStructure{}, repository.ErrStudentNotFound
	}
	return f.student, f.structure, nil
}

type fakeConcessions struct {
	list []domain.AssignedConcession
}

func (f *fakeConcessions) ForStudent(ctx context.Context, scope domain.Scope, studentID string) ([]domain.AssignedConcession, error) {
	return f.list, nil
}

type fakePayments struct {
	mu       sync.Mutex
	history  []domain.PaymentAllocation
	recorded []domain.PaymentSelection
	seq      int64
	err      error
	records  []domain.PaymentRecord
	// recordedTotal replaces the total reported back by RecordBatch when set.
	recordedTotal *decimal.Decimal
}

func (f *fakePayments) Allocations(ctx context.Context, scope domain.Scope, studentID string) ([]domain.PaymentAllocation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.PaymentAllocation(nil), f.history...), nil
}

func (f *fakePayments) RecordBatch(ctx context.Context, scope domain.Scope, sel domain.PaymentSelection) (domain.PaymentBatchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return domain.PaymentBatchResult{}, f.err
	}
	f.seq++
	receipt := repository.ReceiptNumber(sel.Date, f.seq)
	for _, l := range sel.Lines {
		f.history = append(f.history, domain.PaymentAllocation{
			StudentID:     sel.StudentID,
			FeeHeadID:     l.FeeHeadID,
			FeeTermID:     l.FeeTermID,
			Amount:        l.Amount,
			ReceiptNumber: receipt,
		})
	}
	f.recorded = append(f.recorded, sel)
	total := sel.Total()
	if f.recordedTotal != nil {
		total = *f.recordedTotal
	}
	return domain.PaymentBatchResult{ReceiptNumber: receipt, TotalAmount: total}, nil
}

func (f *fakePayments) List(ctx context.Context, filter repository.CollectionsFilter) ([]domain.PaymentRecord, error) {
	var out []domain.PaymentRecord
	for _, r := range f.records {
		if filter.StudentID != nil && r.StudentID != *filter.StudentID {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *fakePayments) HasMoreThan(ctx context.Context, limit int64, filter repository.CollectionsFilter) (bool, error) {
	recs, _ := f.List(ctx, filter)
	return int64(len(recs)) > limit, nil
}

type fakeLatch struct {
	mu   sync.Mutex
	held map[string]bool
	err  error
}

func (f *fakeLatch) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if f.held == nil {
		f.held = map[string]bool{}
	}
	if f.held[key] {
		return false, nil
	}
	f.held[key] = true
	return true, nil
}

func (f *fakeLatch) Del(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.held, k)
	}
	return nil
}

type notification struct {
	kind      string
	branchID  string
	studentID string
	detail    string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notification
	err  error
}

func (f *fakeNotifier) add(n notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, n)
	return nil
}

func (f *fakeNotifier) NotifyLedgerUpdated(ctx context.Context, branchID, studentID, receiptNumber string, summary domain.LedgerSummary) error {
	return f.add(notification{kind: clients.MessageLedgerUpdated, branchID: branchID, studentID: studentID, detail: receiptNumber})
}

func (f *fakeNotifier) NotifyPaymentFailed(ctx context.Context, branchID, studentID, gatewayRef, reason string) error {
	return f.add(notification{kind: clients.MessagePaymentFailed, branchID: branchID, studentID: studentID, detail: reason})
}

func (f *fakeNotifier) NotifyLinkGenerated(ctx context.Context, branchID string, ev domain.LinkGenerated) error {
	return f.add(notification{kind: clients.MessageLinkGenerated, branchID: branchID, studentID: ev.StudentID, detail: ev.URL})
}

func (f *fakeNotifier) NotifyExportProgress(ctx context.Context, branchID, exportID string, progress float64, stage string) error {
	return f.add(notification{kind: clients.MessageExportProgress, branchID: branchID, detail: stage})
}

func (f *fakeNotifier) NotifyExportComplete(ctx context.Context, branchID, exportID, url, filename string) error {
	return f.add(notification{kind: clients.MessageExportComplete, branchID: branchID, detail: filename})
}

func (f *fakeNotifier) NotifyExportFailed(ctx context.Context, branchID, exportID, errMsg string) error {
	return f.add(notification{kind: clients.MessageExportFailed, branchID: branchID, detail: errMsg})
}

func (f *fakeNotifier) kinds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, n := range f.sent {
		out = append(out, n.kind)
	}
	return out
}

type fakePublisher struct {
	recorded []clients.PaymentRecordedEvent
	links    []clients.PaymentLinkEvent
	err      error
}

func (f *fakePublisher) PublishPaymentRecorded(ctx context.Context, event clients.PaymentRecordedEvent) error {
	if f.err != nil {
		return f.err
	}
	f.recorded = append(f.recorded, event)
	return nil
}

func (f *fakePublisher) PublishPaymentLink(ctx context.Context, event clients.PaymentLinkEvent) error {
	if f.err != nil {
		return f.err
	}
	f.links = append(f.links, event)
	return nil
}

var errBroker = errors.New("broker unreachable")

type feeFixture struct {
	svc       *FeeService
	payments  *fakePayments
	latch     *fakeLatch
	notifier  *fakeNotifier
	publisher *fakePublisher
}

// newFeeFixture: Tuition 10000 and Transport 2000 for term1 (due Apr 10) and term2 (due Jul 10),
// with a 10% sibling concession on tuition.
func newFeeFixture() *feeFixture {
	structures := &fakeStructures{
		student: domain.Student{ID: "stu-1", BranchID: "br-1", SessionID: "2025-26", ClassID: "class-5", Name: "Asha Rao"},
		structure: domain.FeeStructure{
			Heads: []domain.FeeHead{{ID: "tuition", Name: "Tuition"}, {ID: "transport", Name: "Transport"}},
			Terms: []domain.FeeTerm{
				{ID: "term1", Name: "Term 1", DueDate: time.Date(2025, time.April, 10, 0, 0, 0, 0, time.UTC)},
				{ID: "term2", Name: "Term 2", DueDate: time.Date(2025, time.July, 10, 0, 0, 0, 0, time.UTC)},
			},
			Entries: []domain.FeeStructureEntry{
				{FeeHeadID: "tuition", FeeTermID: "term1", BaseAmount: dec("10000")},
				{FeeHeadID: "transport", FeeTermID: "term1", BaseAmount: dec("2000")},
				{FeeHeadID: "tuition", FeeTermID: "term2", BaseAmount: dec("10000")},
				{FeeHeadID: "transport", FeeTermID: "term2", BaseAmount: dec("2000")},
			},
		},
	}
	concessions := &fakeConcessions{list: []domain.AssignedConcession{{
		Type: domain.ConcessionType{
			ID:              "sibling",
			Name:            "Sibling",
			Kind:            domain.ConcessionPercentage,
			Value:           dec("10"),
			AppliedFeeHeads: domain.ApplyOnly("tuition"),
			AppliedFeeTerms: domain.ApplyAll(),
		},
		Assignment: domain.StudentConcession{ID: "sc-1", StudentID: "stu-1", ConcessionTypeID: "sibling", ValidFrom: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)},
	}}}

	f := &feeFixture{
		payments:  &fakePayments{},
		latch:     &fakeLatch{},
		notifier:  &fakeNotifier{},
		publisher: &fakePublisher{},
	}
	f.svc = NewFeeService(structures, concessions, f.payments, f.latch, f.notifier, f.publisher, time.Minute, time.UTC)
	f.svc.now = func() time.Time { return testNow }
	return f
}
