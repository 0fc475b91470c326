package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fee-ledger/internal/domain"
	"fee-ledger/internal/ledger"
	"fee-ledger/internal/repository"

	"github.com/xuri/excelize/v2"
)

var (
	ErrTooManyRows        = errors.New("too many receipts to export")
	ErrUnknownExportField = errors.New("unknown export field")
)

type CollectionsSource interface {
	List(ctx context.Context, f repository.CollectionsFilter) ([]domain.PaymentRecord, error)
	HasMoreThan(ctx context.Context, limit int64, f repository.CollectionsFilter) (bool, error)
}

type CollectionColumn struct {
	Header string
	Money  bool
	Value  func(p domain.PaymentRecord) any
}

func strPtr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

var collectionColumns = map[string]CollectionColumn{
	"receipt_number": {Header: "Receipt", Value: func(p domain.PaymentRecord) any { return p.ReceiptNumber }},
	"paid_at":        {Header: "Paid At", Value: func(p domain.PaymentRecord) any { return formatDate(p.PaidAt) }},
	"student_id":     {Header: "Student ID", Value: func(p domain.PaymentRecord) any { return p.StudentID }},
	"student_name":   {Header: "Student", Value: func(p domain.PaymentRecord) any { return strPtr(p.StudentName) }},
	"mode":           {Header: "Mode", Value: func(p domain.PaymentRecord) any { return string(p.Mode) }},
	"reference":      {Header: "Reference", Value: func(p domain.PaymentRecord) any { return strPtr(p.Reference) }},
	"notes":          {Header: "Notes", Value: func(p domain.PaymentRecord) any { return strPtr(p.Notes) }},
	"amount":         {Header: "Amount", Money: true, Value: func(p domain.PaymentRecord) any { return p.TotalAmount.InexactFloat64() }},
	"amount_in_words": {Header: "Amount In Words", Value: func(p domain.PaymentRecord) any {
		return ledger.ToWords(p.TotalAmount)
	}},
	"created_at": {Header: "Recorded At", Value: func(p domain.PaymentRecord) any { return formatDate(p.CreatedAt) }},
}

var defaultCollectionFields = []string{"paid_at", "receipt_number", "student_id", "student_name", "mode", "reference", "amount"}

const maxCollectionsForExport = 100_000

// StartCollectionsExport queues a report of recorded receipts matching the filter, one column per
// requested field.
func (s *ExportService) StartCollectionsExport(ctx context.Context, filter repository.CollectionsFilter, fields []string) (string, error) {
	if len(fields) == 0 {
		fields = defaultCollectionFields
	}
	cols := make([]CollectionColumn, 0, len(fields))
	for _, key := range fields {
		col, ok := collectionColumns[key]
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrUnknownExportField, key)
		}
		cols = append(cols, col)
	}

	tooMany, err := s.payments.HasMoreThan(ctx, maxCollectionsForExport, filter)
	if err != nil {
		return "", err
	}
	if tooMany {
		return "", fmt.Errorf("%w (more than %d)", ErrTooManyRows, maxCollectionsForExport)
	}

	return s.start(ctx, filter.Scope, ExportCollections, collectionsFiltersMap(filter, fields), func(ctx context.Context, progress func(float64)) (*excelize.File, string, error) {
		records, err := s.payments.List(ctx, filter)
		if err != nil {
			return nil, "", err
		}
		f, err := collectionsWorkbook(records, cols, progress)
		if err != nil {
			return nil, "", err
		}
		return f, collectionsFileName(filter, s.now().Format("20060102_150405")), nil
	})
}

func collectionsWorkbook(records []domain.PaymentRecord, cols []CollectionColumn, progress func(float64)) (*excelize.File, error) {
	f := excelize.NewFile()
	styles, err := newSheetStyles(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	sheet := "Collections"
	f.SetSheetName(f.GetSheetName(0), sheet)
	_ = f.SetDocProps(&excelize.DocProperties{Creator: "fee-ledger", Title: "Fee collections"})

	headers := make([]string, len(cols))
	for i, c := range cols {
		headers[i] = c.Header
	}
	writeHeader(f, sheet, headers, styles.header)

	const chunkSize = 1000
	total := len(records)
	for i, p := range records {
		row := i + 2
		for colIdx, col := range cols {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, row)
			_ = f.SetCellValue(sheet, cell, col.Value(p))
			if col.Money {
				_ = f.SetCellStyle(sheet, cell, cell, styles.money)
			}
		}
		if (i+1)%chunkSize == 0 || i == total-1 {
			progress(float64(i+1) / float64(total) * 100)
		}
	}

	return f, nil
}

func collectionsFiltersMap(f repository.CollectionsFilter, fields []string) map[string]any {
	m := map[string]any{
		"session_id": f.Scope.SessionID,
		"fields":     fields,
	}
	if f.StudentID != nil {
		m["student_id"] = *f.StudentID
	}
	if f.Mode != nil {
		m["mode"] = string(*f.Mode)
	}
	if f.From != nil {
		m["from"] = f.From.Format("2006-01-02")
	}
	if f.To != nil {
		m["to"] = f.To.Format("2006-01-02")
	}
	return m
}

func collectionsFileName(f repository.CollectionsFilter, stamp string) string {
	parts := []string{"collections"}
	if f.From != nil {
		parts = append(parts, f.From.Format("20060102"))
	}
	if f.To != nil {
		parts = append(parts, f.To.Format("20060102"))
	}
	if f.From == nil && f.To == nil {
		parts = append(parts, stamp)
	}
	return strings.Join(parts, "_") + ".xlsx"
}
