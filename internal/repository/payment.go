package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"fee-ledger/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CollectionsFilter narrows recorded receipts for reports. Scope is mandatory.
type CollectionsFilter struct {
	Scope     domain.Scope
	StudentID *string
	Mode      *domain.PaymentMode
	From      *time.Time
	To        *time.Time
}

type PaymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// ReceiptNumber formats the sequence value of a receipt issued on day.
func ReceiptNumber(day time.Time, seq int64) string {
	return fmt.Sprintf("RCPT-%s-%06d", day.Format("20060102"), seq)
}

// Allocations returns the payment history of a student in the scope.
func (r *PaymentRepository) Allocations(ctx context.Context, scope domain.Scope, studentID string) ([]domain.PaymentAllocation, error) {
	query := `
		SELECT a.student_id, a.fee_head_id, a.fee_term_id, a.amount, p.receipt_number, p.paid_at
		FROM fee_payment_allocations a
		JOIN fee_payments p ON p.id = a.payment_id
		WHERE a.student_id = $1 AND p.branch_id = $2 AND p.session_id = $3
		ORDER BY p.paid_at, p.receipt_number
	`
	rows, err := r.db.QueryContext(ctx, query, studentID, scope.BranchID, scope.SessionID)
	if err != nil {
		return nil, fmt.Errorf("load payment history of %s: %w", studentID, err)
	}
	defer rows.Close()

	var out []domain.PaymentAllocation
	for rows.Next() {
		var (
			a      domain.PaymentAllocation
			paidAt sql.NullTime
		)
		if err := rows.Scan(&a.StudentID, &a.FeeHeadID, &a.FeeTermID, &a.Amount, &a.ReceiptNumber, &paidAt); err != nil {
			return nil, err
		}
		if paidAt.Valid {
			a.PaidAt = &paidAt.Time
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// RecordBatch persists every line of the selection under one receipt, or nothing.
// Concurrent batches for the same student are serialised with an advisory lock, and the batch is
// refused with ErrStaleSnapshot when any line's paid amount moved since the ledger was built.
func (r *PaymentRepository) RecordBatch(ctx context.Context, scope domain.Scope, sel domain.PaymentSelection) (domain.PaymentBatchResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.PaymentBatchResult{}, fmt.Errorf("begin payment tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "fee_payments:"+sel.StudentID); err != nil {
		return domain.PaymentBatchResult{}, fmt.Errorf("lock student %s: %w", sel.StudentID, err)
	}

	paid, err := paidSoFar(ctx, tx, scope, sel.StudentID)
	if err != nil {
		return domain.PaymentBatchResult{}, err
	}
	if err := checkSnapshot(sel, paid); err != nil {
		return domain.PaymentBatchResult{}, err
	}

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT nextval('fee_receipt_seq')`).Scan(&seq); err != nil {
		return domain.PaymentBatchResult{}, fmt.Errorf("next receipt number: %w", err)
	}

	paidAt := sel.Date
	if paidAt.IsZero() {
		paidAt = time.Now()
	}
	receipt := ReceiptNumber(paidAt, seq)
	paymentID := uuid.NewString()
	total := sel.Total()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO fee_payments
			(id, receipt_number, student_id, branch_id, session_id, mode, reference, notes, total_amount, paid_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), $9, $10, now())`,
		paymentID, receipt, sel.StudentID, scope.BranchID, scope.SessionID, string(sel.Mode), sel.Reference, sel.Notes, total, paidAt,
	)
	if err != nil {
		return domain.PaymentBatchResult{}, fmt.Errorf("insert payment %s: %w", receipt, err)
	}

	for _, l := range sel.Lines {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO fee_payment_allocations (payment_id, student_id, fee_head_id, fee_term_id, amount)
			VALUES ($1, $2, $3, $4, $5)`,
			paymentID, sel.StudentID, l.FeeHeadID, l.FeeTermID, l.Amount,
		)
		if err != nil {
			return domain.PaymentBatchResult{}, fmt.Errorf("insert allocation %s: %w", l.FeeItemID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.PaymentBatchResult{}, fmt.Errorf("commit payment %s: %w", receipt, err)
	}
	return domain.PaymentBatchResult{ReceiptNumber: receipt, TotalAmount: total}, nil
}

func paidSoFar(ctx context.Context, tx *sql.Tx, scope domain.Scope, studentID string) (map[string]decimal.Decimal, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT a.fee_head_id, a.fee_term_id, SUM(a.amount)
		FROM fee_payment_allocations a
		JOIN fee_payments p ON p.id = a.payment_id
		WHERE a.student_id = $1 AND p.branch_id = $2 AND p.session_id = $3
		GROUP BY a.fee_head_id, a.fee_term_id`,
		studentID, scope.BranchID, scope.SessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("sum payments of %s: %w", studentID, err)
	}
	defer rows.Close()

	paid := make(map[string]decimal.Decimal)
	for rows.Next() {
		var (
			head, term string
			sum        decimal.Decimal
		)
		if err := rows.Scan(&head, &term, &sum); err != nil {
			return nil, err
		}
		paid[domain.ItemID(head, term)] = sum
	}
	return paid, rows.Err()
}

// checkSnapshot compares each line's paid-before amount with what is recorded now.
func checkSnapshot(sel domain.PaymentSelection, paid map[string]decimal.Decimal) error {
	for _, l := range sel.Lines {
		now := paid[domain.ItemID(l.FeeHeadID, l.FeeTermID)]
		if !now.Equal(l.PaidBefore) {
			return fmt.Errorf("%w: %s paid %s, ledger showed %s",
				ErrStaleSnapshot, l.FeeItemID, now.StringFixed(2), l.PaidBefore.StringFixed(2))
		}
	}
	return nil
}

// where renders the filter starting at placeholder $next.
func (f CollectionsFilter) where(next int) (string, []any) {
	where := []string{
		fmt.Sprintf("p.branch_id = $%d", next),
		fmt.Sprintf("p.session_id = $%d", next+1),
	}
	args := []any{f.Scope.BranchID, f.Scope.SessionID}
	i := next + 2

	if f.StudentID != nil && *f.StudentID != "" {
		where = append(where, fmt.Sprintf("p.student_id = $%d", i))
		args = append(args, *f.StudentID)
		i++
	}
	if f.Mode != nil {
		where = append(where, fmt.Sprintf("p.mode = $%d", i))
		args = append(args, string(*f.Mode))
		i++
	}
	if f.From != nil {
		where = append(where, fmt.Sprintf("p.paid_at >= $%d", i))
		args = append(args, *f.From)
		i++
	}
	if f.To != nil {
		// inclusive of the whole end day
		where = append(where, fmt.Sprintf("p.paid_at < $%d", i))
		args = append(args, f.To.AddDate(0, 0, 1))
	}
	return strings.Join(where, " AND "), args
}

func (r *PaymentRepository) List(ctx context.Context, f CollectionsFilter) ([]domain.PaymentRecord, error) {
	cond, args := f.where(1)
	query := `
		SELECT p.id, p.receipt_number, p.student_id, s.name, p.branch_id, p.session_id, p.mode,
			p.reference, p.notes, p.total_amount, p.paid_at, p.created_at
		FROM fee_payments p
		LEFT JOIN students s ON s.id = p.student_id
		WHERE ` + cond + `
		ORDER BY p.paid_at, p.receipt_number`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PaymentRecord
	for rows.Next() {
		var (
			p           domain.PaymentRecord
			mode        string
			studentName sql.NullString
			reference   sql.NullString
			notes       sql.NullString
			paidAt      sql.NullTime
			createdAt   sql.NullTime
		)
		if err := rows.Scan(
			&p.ID,
			&p.ReceiptNumber,
			&p.StudentID,
			&studentName,
			&p.BranchID,
			&p.SessionID,
			&mode,
			&reference,
			&notes,
			&p.TotalAmount,
			&paidAt,
			&createdAt,
		); err != nil {
			return nil, err
		}

		p.Mode = domain.PaymentMode(mode)
		if studentName.Valid {
			p.StudentName = &studentName.String
		}
		if reference.Valid {
			p.Reference = &reference.String
		}
		if notes.Valid {
			p.Notes = &notes.String
		}
		if paidAt.Valid {
			p.PaidAt = &paidAt.Time
		}
		if createdAt.Valid {
			p.CreatedAt = &createdAt.Time
		}
		out = append(out, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PaymentRepository) HasMoreThan(ctx context.Context, limit int64, f CollectionsFilter) (bool, error) {
	cond, args := f.where(2)
	query := `SELECT COUNT(*) > $1 FROM fee_payments p WHERE ` + cond

	var tooMany bool
	if err := r.db.QueryRowContext(ctx, query, append([]any{limit}, args...)...).Scan(&tooMany); err != nil {
		return false, err
	}
	return tooMany, nil
}
