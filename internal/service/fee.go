package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"fee-ledger/internal/clients"
	"fee-ledger/internal/domain"
	"fee-ledger/internal/ledger"
	"fee-ledger/internal/repository"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrPaymentInProgress is returned while an identical batch for the student is being recorded.
	ErrPaymentInProgress = errors.New("payment already in progress")
	// ErrConflict means the ledger changed since it was shown; rebuild it before retrying.
	ErrConflict = errors.New("ledger changed, reload and try again")
)

type StructureProvider interface {
	ForStudent(ctx context.Context, scope domain.Scope, studentID string) (domain.Student, domain.FeeStructure, error)
}

type ConcessionProvider interface {
	ForStudent(ctx context.Context, scope domain.Scope, studentID string) ([]domain.AssignedConcession, error)
}

type PaymentRecorder interface {
	Allocations(ctx context.Context, scope domain.Scope, studentID string) ([]domain.PaymentAllocation, error)
	RecordBatch(ctx context.Context, scope domain.Scope, sel domain.PaymentSelection) (domain.PaymentBatchResult, error)
}

type Latch interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
}

type LedgerNotifier interface {
	NotifyLedgerUpdated(ctx context.Context, branchID, studentID, receiptNumber string, summary domain.LedgerSummary) error
	NotifyPaymentFailed(ctx context.Context, branchID, studentID, gatewayRef, reason string) error
	NotifyLinkGenerated(ctx context.Context, branchID string, ev domain.LinkGenerated) error
}

type EventPublisher interface {
	PublishPaymentRecorded(ctx context.Context, event clients.PaymentRecordedEvent) error
	PublishPaymentLink(ctx context.Context, event clients.PaymentLinkEvent) error
}

type StudentLedger struct {
	Student domain.Student
	At      time.Time
	Items   []domain.FeeItem
	Summary domain.LedgerSummary
}

type Preview struct {
	Selection     domain.PaymentSelection
	Totals        domain.ReceiptTotals
	AmountInWords string
}

// CollectResult is returned for a recorded batch. Items is the ledger rebuilt after recording;
// Warnings lists notifications that could not be delivered.
type CollectResult struct {
	Receipt  domain.Receipt
	Items    []domain.FeeItem
	Summary  domain.LedgerSummary
	Warnings []string
}

type FeeService struct {
	structures  StructureProvider
	concessions ConcessionProvider
	payments    PaymentRecorder
	latch       Latch
	notifier    LedgerNotifier
	publisher   EventPublisher

	lockTTL time.Duration
	loc     *time.Location
	now     func() time.Time
}

func NewFeeService(
	structures StructureProvider,
	concessions ConcessionProvider,
	payments PaymentRecorder,
	latch Latch,
	notifier LedgerNotifier,
	publisher EventPublisher,
	lockTTL time.Duration,
	loc *time.Location,
) *FeeService {
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	if loc == nil {
		loc = time.UTC
	}
	return &FeeService{
		structures:  structures,
		concessions: concessions,
		payments:    payments,
		latch:       latch,
		notifier:    notifier,
		publisher:   publisher,
		lockTTL:     lockTTL,
		loc:         loc,
		now:         time.Now,
	}
}

// Today is the current instant in the ledger's time zone.
func (s *FeeService) Today() time.Time {
	return s.now().In(s.loc)
}

// Ledger loads the three snapshots concurrently and derives the student's fee items at the given
// instant. A zero at means now.
func (s *FeeService) Ledger(ctx context.Context, scope domain.Scope, studentID string, at time.Time) (StudentLedger, error) {
	if at.IsZero() {
		at = s.Today()
	}

	var (
		student     domain.Student
		structure   domain.FeeStructure
		concessions []domain.AssignedConcession
		history     []domain.PaymentAllocation
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		student, structure, err = s.structures.ForStudent(gctx, scope, studentID)
		return err
	})
	g.Go(func() error {
		var err error
		concessions, err = s.concessions.ForStudent(gctx, scope, studentID)
		return err
	})
	g.Go(func() error {
		var err error
		history, err = s.payments.Allocations(gctx, scope, studentID)
		return err
	})
	if err := g.Wait(); err != nil {
		return StudentLedger{}, err
	}

	items := ledger.Build(ledger.BuildInput{
		Student:     student,
		Structure:   structure,
		Concessions: concessions,
		History:     history,
		At:          at,
	})
	return StudentLedger{
		Student: student,
		At:      at,
		Items:   items,
		Summary: ledger.Summarize(items),
	}, nil
}

// Preview validates a selection against the current ledger without recording anything.
func (s *FeeService) Preview(ctx context.Context, scope domain.Scope, studentID string, req ledger.AllocationRequest) (Preview, error) {
	req = s.normalize(studentID, req)

	l, err := s.Ledger(ctx, scope, studentID, req.Date)
	if err != nil {
		return Preview{}, err
	}
	sel, err := ledger.Allocate(l.Items, req)
	if err != nil {
		return Preview{}, err
	}

	totals := ledger.Aggregate(ledger.SelectionLines(sel))
	return Preview{
		Selection:     sel,
		Totals:        totals,
		AmountInWords: ledger.ToWords(totals.TotalPaidAmount),
	}, nil
}

// Collect validates the selection, records it exactly once and returns the receipt together
// with the rebuilt ledger. A stale ledger yields ErrConflict and nothing is recorded.
func (s *FeeService) Collect(ctx context.Context, scope domain.Scope, studentID string, req ledger.AllocationRequest) (CollectResult, error) {
	req = s.normalize(studentID, req)

	key := paymentLockKey(studentID, req)
	acquired, err := s.latch.SetNX(ctx, key, s.now().Unix(), s.lockTTL)
	if err != nil {
		return CollectResult{}, fmt.Errorf("acquire payment latch: %w", err)
	}
	if !acquired {
		return CollectResult{}, ErrPaymentInProgress
	}
	defer func() {
		if err := s.latch.Del(context.WithoutCancel(ctx), key); err != nil {
			log.Printf("[LEDGER] release payment latch %s: %v", key, err)
		}
	}()

	before, err := s.Ledger(ctx, scope, studentID, req.Date)
	if err != nil {
		return CollectResult{}, err
	}
	sel, err := ledger.Allocate(before.Items, req)
	if err != nil {
		return CollectResult{}, err
	}

	res, err := s.payments.RecordBatch(ctx, scope, sel)
	if errors.Is(err, repository.ErrStaleSnapshot) {
		return CollectResult{}, fmt.Errorf("%w: %w", ErrConflict, err)
	}
	if err != nil {
		return CollectResult{}, fmt.Errorf("record payment: %w", err)
	}
	log.Printf("[LEDGER] recorded %s for student %s: %s", res.ReceiptNumber, studentID, res.TotalAmount.StringFixed(2))

	result := CollectResult{}
	receipt, err := ledger.BuildReceipt(sel, res)
	if err != nil {
		// the batch is already committed
		result.Warnings = append(result.Warnings, "receipt totals need review: "+err.Error())
	}
	result.Receipt = receipt

	after, err := s.Ledger(ctx, scope, studentID, req.Date)
	if err != nil {
		// the payment stands; the caller reloads the ledger on its own
		result.Warnings = append(result.Warnings, "ledger could not be reloaded: "+err.Error())
		return result, nil
	}
	result.Items = after.Items
	result.Summary = after.Summary

	if err := s.notifier.NotifyLedgerUpdated(ctx, scope.BranchID, studentID, res.ReceiptNumber, after.Summary); err != nil {
		result.Warnings = append(result.Warnings, "terminals not notified: "+err.Error())
	}
	event := clients.PaymentRecordedEvent{
		BranchID:         scope.BranchID,
		SessionID:        scope.SessionID,
		StudentID:        studentID,
		ReceiptNumber:    res.ReceiptNumber,
		Mode:             string(sel.Mode),
		Amount:           res.TotalAmount,
		AmountInWords:    receipt.AmountInWords,
		TotalOutstanding: after.Summary.TotalOutstanding,
		PaidAt:           sel.Date,
	}
	if err := s.publisher.PublishPaymentRecorded(ctx, event); err != nil {
		result.Warnings = append(result.Warnings, "receipt message not queued: "+err.Error())
	}
	for _, w := range result.Warnings {
		log.Printf("[LEDGER] %s: %s", res.ReceiptNumber, w)
	}

	return result, nil
}

// HandleGatewayEvent reacts to a decoded gateway event. Delivery problems are returned as
// warnings; only events that cannot be processed at all are errors.
func (s *FeeService) HandleGatewayEvent(ctx context.Context, scope domain.Scope, ev domain.GatewayEvent) ([]string, error) {
	var warnings []string

	switch e := ev.(type) {
	case domain.LinkGenerated:
		if err := s.publisher.PublishPaymentLink(ctx, clients.PaymentLinkEvent{
			BranchID:  scope.BranchID,
			StudentID: e.StudentID,
			LinkID:    e.LinkID,
			URL:       e.URL,
			Amount:    e.Amount,
			Phone:     e.Phone,
			ExpiresAt: e.ExpiresAt,
		}); err != nil {
			warnings = append(warnings, "payment link message not queued: "+err.Error())
		}
		if err := s.notifier.NotifyLinkGenerated(ctx, scope.BranchID, e); err != nil {
			warnings = append(warnings, "terminals not notified: "+err.Error())
		}

	case domain.PaymentVerified:
		l, err := s.Ledger(ctx, scope, e.StudentID, time.Time{})
		if err != nil {
			return nil, err
		}
		if err := s.notifier.NotifyLedgerUpdated(ctx, scope.BranchID, e.StudentID, e.ReceiptNumber, l.Summary); err != nil {
			warnings = append(warnings, "terminals not notified: "+err.Error())
		}

	case domain.PaymentFailed:
		log.Printf("[LEDGER] gateway payment %s failed for student %s: %s", e.GatewayRef, e.StudentID, e.Reason)
		if err := s.notifier.NotifyPaymentFailed(ctx, scope.BranchID, e.StudentID, e.GatewayRef, e.Reason); err != nil {
			warnings = append(warnings, "terminals not notified: "+err.Error())
		}

	default:
		return nil, fmt.Errorf("%w: %T", domain.ErrUnknownGatewayEvent, ev)
	}

	return warnings, nil
}

func (s *FeeService) normalize(studentID string, req ledger.AllocationRequest) ledger.AllocationRequest {
	req.StudentID = studentID
	if req.Date.IsZero() {
		req.Date = s.Today()
	}
	return req
}

// paymentLockKey identifies a batch by student and content so a resubmitted form hits the
// same latch while a different batch does not.
func paymentLockKey(studentID string, req ledger.AllocationRequest) string {
	ids := append([]string(nil), req.SelectedIDs...)
	sort.Strings(ids)

	var b strings.Builder
	b.WriteString(string(req.Mode))
	for _, id := range ids {
		b.WriteString("|")
		b.WriteString(id)
		if req.Mode == ledger.ModeManual {
			amount, ok := req.CustomAmounts[id]
			if !ok {
				amount = decimal.Zero
			}
			b.WriteString("=")
			b.WriteString(amount.StringFixed(2))
		}
	}
	sum := sha256.Sum256([]byte(b.String()))
	return "payment_lock:" + studentID + ":" + hex.EncodeToString(sum[:8])
}
