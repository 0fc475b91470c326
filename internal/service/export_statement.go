package service

import (
	"context"
	"fmt"
	"time"

	"fee-ledger/internal/domain"

	"github.com/xuri/excelize/v2"
)

var statementHeaders = []string{
	"Term", "Fee Head", "Due Date", "Original", "Concession", "Net", "Paid", "Outstanding", "Status", "Concessions Applied",
}

var receiptHeaders = []string{"Receipt", "Paid At", "Term", "Fee Head", "Amount"}

// StatementHistory returns the allocation rows listed on a student's statement.
type StatementHistory interface {
	Allocations(ctx context.Context, scope domain.Scope, studentID string) ([]domain.PaymentAllocation, error)
}

// StartStatementExport queues an xlsx statement of the student's ledger at the given instant.
func (s *ExportService) StartStatementExport(ctx context.Context, scope domain.Scope, studentID string, at time.Time) (string, error) {
	l, err := s.ledgers.Ledger(ctx, scope, studentID, at)
	if err != nil {
		return "", err
	}

	filters := map[string]any{
		"student_id": studentID,
		"session_id": scope.SessionID,
		"at":         l.At.Format("2006-01-02"),
	}

	return s.start(ctx, scope, ExportStatement, filters, func(ctx context.Context, progress func(float64)) (*excelize.File, string, error) {
		var history []domain.PaymentAllocation
		if h, ok := s.payments.(StatementHistory); ok {
			rows, err := h.Allocations(ctx, scope, studentID)
			if err != nil {
				return nil, "", err
			}
			history = rows
		}
		f, err := statementWorkbook(l, history, progress)
		if err != nil {
			return nil, "", err
		}
		name := l.Student.AdmissionNumber
		if name == "" {
			name = l.Student.ID
		}
		return f, fmt.Sprintf("statement_%s_%s.xlsx", name, l.At.Format("20060102")), nil
	})
}

func statementWorkbook(l StudentLedger, history []domain.PaymentAllocation, progress func(float64)) (*excelize.File, error) {
	f := excelize.NewFile()
	styles, err := newSheetStyles(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	sheet := "Ledger"
	f.SetSheetName(f.GetSheetName(0), sheet)
	_ = f.SetDocProps(&excelize.DocProperties{
		Creator: "fee-ledger",
		Title:   "Fee statement " + l.Student.Name,
	})

	writeHeader(f, sheet, statementHeaders, styles.header)

	row := 2
	for i, it := range l.Items {
		applied := ""
		for j, c := range it.AppliedConcessions {
			if j > 0 {
				applied += ", "
			}
			applied += c.Name
		}
		values := []any{
			it.FeeTermName,
			it.FeeHeadName,
			formatDate(&it.DueDate),
			it.OriginalAmount.InexactFloat64(),
			it.ConcessionAmount.InexactFloat64(),
			it.TotalAmount.InexactFloat64(),
			it.PaidAmount.InexactFloat64(),
			it.OutstandingAmount.InexactFloat64(),
			string(it.Status),
			applied,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		from, _ := excelize.CoordinatesToCellName(4, row)
		to, _ := excelize.CoordinatesToCellName(8, row)
		_ = f.SetCellStyle(sheet, from, to, styles.money)
		row++

		progress(float64(i+1) / float64(len(l.Items)) * 80)
	}

	sum := l.Summary
	totals := []any{
		"Total", "", "",
		sum.TotalOriginal.InexactFloat64(),
		sum.TotalConcession.InexactFloat64(),
		sum.TotalNet.InexactFloat64(),
		sum.TotalPaid.InexactFloat64(),
		sum.TotalOutstanding.InexactFloat64(),
	}
	for col, v := range totals {
		cell, _ := excelize.CoordinatesToCellName(col+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
	from, _ := excelize.CoordinatesToCellName(1, row)
	to, _ := excelize.CoordinatesToCellName(8, row)
	_ = f.SetCellStyle(sheet, from, to, styles.total)

	receipts := "Receipts"
	if _, err := f.NewSheet(receipts); err != nil {
		f.Close()
		return nil, err
	}
	writeHeader(f, receipts, receiptHeaders, styles.header)

	names := make(map[string]domain.FeeItem, len(l.Items))
	for _, it := range l.Items {
		names[it.ID] = it
	}
	for i, h := range history {
		it := names[domain.ItemID(h.FeeHeadID, h.FeeTermID)]
		head, term := it.FeeHeadName, it.FeeTermName
		if head == "" {
			head = h.FeeHeadID
		}
		if term == "" {
			term = h.FeeTermID
		}
		values := []any{h.ReceiptNumber, formatDate(h.PaidAt), term, head, h.Amount.InexactFloat64()}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			_ = f.SetCellValue(receipts, cell, v)
		}
		cell, _ := excelize.CoordinatesToCellName(5, i+2)
		_ = f.SetCellStyle(receipts, cell, cell, styles.money)
	}
	progress(90)

	return f, nil
}
