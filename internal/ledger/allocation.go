package ledger

import (
	"time"

	"fee-ledger/internal/domain"

	"github.com/shopspring/decimal"
)

type AmountMode string

const (
	// ModeAuto pays each selected item's full outstanding amount.
	ModeAuto AmountMode = "auto"
	// ModeManual pays a caller-supplied amount per item, capped by the outstanding amount.
	ModeManual AmountMode = "manual"
)

const (
	FieldSelection   = "selection"
	FieldPaymentMode = "payment_mode"
	FieldAmountMode  = "amount_mode"
)

type AllocationRequest struct {
	StudentID     string
	SelectedIDs   []string
	Mode          AmountMode
	CustomAmounts map[string]decimal.Decimal
	PaymentMode   domain.PaymentMode
	Reference     string
	Notes         string
	Date          time.Time
}

// Allocate validates a selection against the current items and returns the batch to record.
// Any invalid field fails the whole batch with a *ValidationError.
func Allocate(items []domain.FeeItem, req AllocationRequest) (domain.PaymentSelection, error) {
	verr := &ValidationError{}

	if len(req.SelectedIDs) == 0 {
		verr.add(FieldSelection, "select at least one fee item")
	}
	if req.PaymentMode == "" {
		verr.add(FieldPaymentMode, "choose a payment mode")
	} else if !req.PaymentMode.Valid() {
		verr.add(FieldPaymentMode, "unknown payment mode "+string(req.PaymentMode))
	}
	if req.Mode != ModeAuto && req.Mode != ModeManual {
		verr.add(FieldAmountMode, "amount mode must be auto or manual")
	}

	byID := make(map[string]int, len(items))
	for i, it := range items {
		byID[it.ID] = i
	}

	chosen := make(map[string]decimal.Decimal, len(req.SelectedIDs))
	for _, id := range req.SelectedIDs {
		if _, dup := chosen[id]; dup {
			verr.add(id, "fee item selected more than once")
			continue
		}
		idx, ok := byID[id]
		if !ok {
			verr.add(id, "unknown fee item")
			continue
		}
		it := items[idx]
		if !it.Selectable() {
			verr.add(id, "fee item has nothing outstanding")
			continue
		}

		amount := it.OutstandingAmount
		if req.Mode == ModeManual {
			custom, ok := req.CustomAmounts[id]
			switch {
			case !ok:
				verr.add(id, "enter an amount to pay")
				continue
			case !custom.IsPositive():
				verr.add(id, "amount must be greater than zero")
				continue
			case !custom.Equal(custom.Round(2)):
				verr.add(id, "amount cannot have more than 2 decimal places")
				continue
			case custom.GreaterThan(it.OutstandingAmount):
				verr.add(id, "amount cannot exceed outstanding "+it.OutstandingAmount.StringFixed(2))
				continue
			}
			amount = custom
		}
		chosen[id] = amount
	}

	if err := verr.orNil(); err != nil {
		return domain.PaymentSelection{}, err
	}

	sel := domain.PaymentSelection{
		StudentID: req.StudentID,
		Lines:     make([]domain.SelectionLine, 0, len(chosen)),
		Mode:      req.PaymentMode,
		Reference: req.Reference,
		Notes:     req.Notes,
		Date:      req.Date,
	}
	for _, it := range items {
		amount, ok := chosen[it.ID]
		if !ok {
			continue
		}
		sel.Lines = append(sel.Lines, domain.SelectionLine{
			FeeItemID:        it.ID,
			FeeHeadID:        it.FeeHeadID,
			FeeHeadName:      it.FeeHeadName,
			FeeTermID:        it.FeeTermID,
			FeeTermName:      it.FeeTermName,
			OriginalAmount:   it.OriginalAmount,
			ConcessionAmount: it.ConcessionAmount,
			NetAmount:        it.TotalAmount,
			PaidBefore:       it.PaidAmount,
			Amount:           amount,
		})
	}
	return sel, nil
}

// Selection tracks which items an operator has ticked. Unselectable items can never be
// selected.
type Selection struct {
	items    []domain.FeeItem
	selected map[string]bool
}

func NewSelection(items []domain.FeeItem) *Selection {
	return &Selection{items: items, selected: make(map[string]bool)}
}

// Toggle flips one item and reports whether it is selected afterwards.
func (s *Selection) Toggle(id string) bool {
	if s.selected[id] {
		delete(s.selected, id)
		return false
	}
	for _, it := range s.items {
		if it.ID == id && it.Selectable() {
			s.selected[id] = true
			return true
		}
	}
	return false
}

// ToggleTerm selects every selectable item of the term, or clears them all when they are
// already all selected. Items of other terms are untouched.
func (s *Selection) ToggleTerm(termID string) {
	var ids []string
	allSelected := true
	for _, it := range s.items {
		if it.FeeTermID != termID || !it.Selectable() {
			continue
		}
		ids = append(ids, it.ID)
		if !s.selected[it.ID] {
			allSelected = false
		}
	}
	for _, id := range ids {
		if allSelected {
			delete(s.selected, id)
		} else {
			s.selected[id] = true
		}
	}
}

func (s *Selection) IsSelected(id string) bool { return s.selected[id] }

func (s *Selection) Clear() { s.selected = make(map[string]bool) }

// IDs returns the selected ids in ledger order.
func (s *Selection) IDs() []string {
	ids := make([]string, 0, len(s.selected))
	for _, it := range s.items {
		if s.selected[it.ID] {
			ids = append(ids, it.ID)
		}
	}
	return ids
}

// Total is the running amount shown while selecting. Manual amounts that are missing or out
// of range count as zero; Allocate reports them.
func (s *Selection) Total(mode AmountMode, custom map[string]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, it := range s.items {
		if !s.selected[it.ID] {
			continue
		}
		if mode != ModeManual {
			total = total.Add(it.OutstandingAmount)
			continue
		}
		amount, ok := custom[it.ID]
		if ok && amount.IsPositive() && !amount.GreaterThan(it.OutstandingAmount) {
			total = total.Add(amount)
		}
	}
	return total
}
