package rest

import (
	"time"

	"fee-ledger/internal/domain"
	"fee-ledger/internal/ledger"
	"fee-ledger/internal/service"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

type PaymentRequest struct {
	SelectedIDs   []string                   `json:"selected_ids" validate:"required,dive,required"`
	AmountMode    string                     `json:"amount_mode" validate:"omitempty,oneof=auto manual"`
	CustomAmounts map[string]decimal.Decimal `json:"custom_amounts"`
	PaymentMode   string                     `json:"payment_mode" validate:"required,payment_mode"`
	Reference     string                     `json:"reference" validate:"max=100"`
	Notes         string                     `json:"notes" validate:"max=500"`
	Date          string                     `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

func (p PaymentRequest) toAllocation(loc *time.Location) ledger.AllocationRequest {
	mode := ledger.AmountMode(p.AmountMode)
	if mode == "" {
		mode = ledger.ModeAuto
	}
	return ledger.AllocationRequest{
		SelectedIDs:   p.SelectedIDs,
		Mode:          mode,
		CustomAmounts: p.CustomAmounts,
		PaymentMode:   domain.PaymentMode(p.PaymentMode),
		Reference:     p.Reference,
		Notes:         p.Notes,
		Date:          parseDate(p.Date, loc),
	}
}

type StatementRequest struct {
	Date string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

type CollectionsExportRequest struct {
	Fields    []string `json:"fields" validate:"omitempty,dive,required"`
	StudentID *string  `json:"student_id" validate:"omitempty,min=1"`
	Mode      *string  `json:"mode" validate:"omitempty,payment_mode"`
	From      *string  `json:"from" validate:"omitempty,datetime=2006-01-02"`
	To        *string  `json:"to" validate:"omitempty,datetime=2006-01-02"`
}

// parseDate reads a validated YYYY-MM-DD value as midnight in loc. Empty means now.
func parseDate(s string, loc *time.Location) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation(dateLayout, s, loc)
	if err != nil {
		return time.Time{}
	}
	return t
}

func datePtr(s *string, loc *time.Location) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	t := parseDate(*s, loc)
	return &t
}

type appliedConcessionResponse struct {
	ConcessionTypeID string          `json:"concession_type_id"`
	Name             string          `json:"name"`
	Kind             string          `json:"kind"`
	Value            decimal.Decimal `json:"value"`
	Amount           decimal.Decimal `json:"amount"`
}

type itemResponse struct {
	ID                 string                      `json:"id"`
	FeeHeadID          string                      `json:"fee_head_id"`
	FeeHeadName        string                      `json:"fee_head_name"`
	FeeTermID          string                      `json:"fee_term_id"`
	FeeTermName        string                      `json:"fee_term_name"`
	DueDate            string                      `json:"due_date,omitempty"`
	OriginalAmount     decimal.Decimal             `json:"original_amount"`
	ConcessionAmount   decimal.Decimal             `json:"concession_amount"`
	TotalAmount        decimal.Decimal             `json:"total_amount"`
	PaidAmount         decimal.Decimal             `json:"paid_amount"`
	OutstandingAmount  decimal.Decimal             `json:"outstanding_amount"`
	Status             domain.ItemStatus           `json:"status"`
	Selectable         bool                        `json:"selectable"`
	InStructure        bool                        `json:"in_structure"`
	AppliedConcessions []appliedConcessionResponse `json:"applied_concessions"`
}

type summaryResponse struct {
	TotalOriginal    decimal.Decimal `json:"total_original"`
	TotalConcession  decimal.Decimal `json:"total_concession"`
	TotalNet         decimal.Decimal `json:"total_net"`
	TotalPaid        decimal.Decimal `json:"total_paid"`
	TotalOutstanding decimal.Decimal `json:"total_outstanding"`
	OverdueItems     int             `json:"overdue_items"`
	PendingItems     int             `json:"pending_items"`
}

type studentResponse struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	AdmissionNumber string `json:"admission_number"`
	ClassID         string `json:"class_id"`
}

type ledgerResponse struct {
	Student studentResponse `json:"student"`
	Date    string          `json:"date"`
	Items   []itemResponse  `json:"items"`
	Summary summaryResponse `json:"summary"`
}

type lineResponse struct {
	FeeItemID        string          `json:"fee_item_id"`
	FeeHeadName      string          `json:"fee_head_name"`
	FeeTermName      string          `json:"fee_term_name"`
	OriginalAmount   decimal.Decimal `json:"original_amount"`
	ConcessionAmount decimal.Decimal `json:"concession_amount"`
	NetAmount        decimal.Decimal `json:"net_amount"`
	PaidBefore       decimal.Decimal `json:"paid_before"`
	Amount           decimal.Decimal `json:"amount"`
}

type totalsResponse struct {
	TotalOriginalAmount   decimal.Decimal `json:"total_original_amount"`
	TotalConcessionAmount decimal.Decimal `json:"total_concession_amount"`
	TotalNetAmount        decimal.Decimal `json:"total_net_amount"`
	TotalPaidAmount       decimal.Decimal `json:"total_paid_amount"`
}

type previewResponse struct {
	Lines         []lineResponse `json:"lines"`
	Totals        totalsResponse `json:"totals"`
	AmountInWords string         `json:"amount_in_words"`
}

type receiptResponse struct {
	ReceiptNumber string         `json:"receipt_number"`
	StudentID     string         `json:"student_id"`
	Date          time.Time      `json:"date"`
	Mode          string         `json:"payment_mode"`
	Reference     string         `json:"reference,omitempty"`
	Notes         string         `json:"notes,omitempty"`
	Lines         []lineResponse `json:"lines"`
	Totals        totalsResponse `json:"totals"`
	AmountInWords string         `json:"amount_in_words"`
}

type collectResponse struct {
	Receipt  receiptResponse  `json:"receipt"`
	Items    []itemResponse   `json:"items"`
	Summary  *summaryResponse `json:"summary,omitempty"`
	Warnings []string         `json:"warnings"`
}

type exportStartedResponse struct {
	ExportID string `json:"export_id"`
}

type gatewayResponse struct {
	Type     string   `json:"type"`
	Warnings []string `json:"warnings"`
}

func toItems(items []domain.FeeItem) []itemResponse {
	out := make([]itemResponse, 0, len(items))
	for _, it := range items {
		r := itemResponse{
			ID:                 it.ID,
			FeeHeadID:          it.FeeHeadID,
			FeeHeadName:        it.FeeHeadName,
			FeeTermID:          it.FeeTermID,
			FeeTermName:        it.FeeTermName,
			OriginalAmount:     it.OriginalAmount,
			ConcessionAmount:   it.ConcessionAmount,
			TotalAmount:        it.TotalAmount,
			PaidAmount:         it.PaidAmount,
			OutstandingAmount:  it.OutstandingAmount,
			Status:             it.Status,
			Selectable:         it.Selectable(),
			InStructure:        it.InStructure,
			AppliedConcessions: make([]appliedConcessionResponse, 0, len(it.AppliedConcessions)),
		}
		if !it.DueDate.IsZero() {
			r.DueDate = it.DueDate.Format(dateLayout)
		}
		for _, c := range it.AppliedConcessions {
			r.AppliedConcessions = append(r.AppliedConcessions, appliedConcessionResponse{
				ConcessionTypeID: c.ConcessionTypeID,
				Name:             c.Name,
				Kind:             string(c.Kind),
				Value:            c.Value,
				Amount:           c.Amount,
			})
		}
		out = append(out, r)
	}
	return out
}

func toSummary(s domain.LedgerSummary) summaryResponse {
	return summaryResponse{
		TotalOriginal:    s.TotalOriginal,
		TotalConcession:  s.TotalConcession,
		TotalNet:         s.TotalNet,
		TotalPaid:        s.TotalPaid,
		TotalOutstanding: s.TotalOutstanding,
		OverdueItems:     s.OverdueItems,
		PendingItems:     s.PendingItems,
	}
}

func toLedger(l service.StudentLedger) ledgerResponse {
	return ledgerResponse{
		Student: studentResponse{
			ID:              l.Student.ID,
			Name:            l.Student.Name,
			AdmissionNumber: l.Student.AdmissionNumber,
			ClassID:         l.Student.ClassID,
		},
		Date:    l.At.Format(dateLayout),
		Items:   toItems(l.Items),
		Summary: toSummary(l.Summary),
	}
}

func toLines(lines []domain.SelectionLine) []lineResponse {
	out := make([]lineResponse, 0, len(lines))
	for _, l := range lines {
		out = append(out, lineResponse{
			FeeItemID:        l.FeeItemID,
			FeeHeadName:      l.FeeHeadName,
			FeeTermName:      l.FeeTermName,
			OriginalAmount:   l.OriginalAmount,
			ConcessionAmount: l.ConcessionAmount,
			NetAmount:        l.NetAmount,
			PaidBefore:       l.PaidBefore,
			Amount:           l.Amount,
		})
	}
	return out
}

func toTotals(t domain.ReceiptTotals) totalsResponse {
	return totalsResponse{
		TotalOriginalAmount:   t.TotalOriginalAmount,
		TotalConcessionAmount: t.TotalConcessionAmount,
		TotalNetAmount:        t.TotalNetAmount,
		TotalPaidAmount:       t.TotalPaidAmount,
	}
}

func toPreview(p service.Preview) previewResponse {
	return previewResponse{
		Lines:         toLines(p.Selection.Lines),
		Totals:        toTotals(p.Totals),
		AmountInWords: p.AmountInWords,
	}
}

func toCollect(res service.CollectResult) collectResponse {
	r := res.Receipt
	out := collectResponse{
		Receipt: receiptResponse{
			ReceiptNumber: r.ReceiptNumber,
			StudentID:     r.StudentID,
			Date:          r.Date,
			Mode:          string(r.Mode),
			Reference:     r.Reference,
			Notes:         r.Notes,
			Lines:         toLines(r.Lines),
			Totals:        toTotals(r.Totals),
			AmountInWords: r.AmountInWords,
		},
		Items:    toItems(res.Items),
		Warnings: res.Warnings,
	}
	if res.Items != nil {
		sum := toSummary(res.Summary)
		out.Summary = &sum
	}
	if out.Warnings == nil {
		out.Warnings = []string{}
	}
	return out
}
