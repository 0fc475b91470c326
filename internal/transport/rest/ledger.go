package rest

import (
	"net/http"

	"fee-ledger/internal/domain"
	"fee-ledger/internal/ledger"
	"fee-ledger/internal/transport/auth"

	"github.com/go-chi/chi/v5"
)

// requestScope returns the scope and student of a /students/{student_id} request, answering
// the error itself when either is missing.
func requestScope(w http.ResponseWriter, r *http.Request) (domain.Scope, string, bool) {
	scope, err := auth.GetScope(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "branch is required")
		return domain.Scope{}, "", false
	}
	studentID := chi.URLParam(r, "student_id")
	if studentID == "" {
		ErrorBadRequest(w, "student_id is required")
		return domain.Scope{}, "", false
	}
	return scope, studentID, true
}

func (h *Handler) getLedger(w http.ResponseWriter, r *http.Request) {
	scope, studentID, ok := requestScope(w, r)
	if !ok {
		return
	}

	q := StatementRequest{Date: r.URL.Query().Get("date")}
	if err := h.validate.Struct(q); err != nil {
		writeError(w, "load ledger", err)
		return
	}

	l, err := h.fees.Ledger(r.Context(), scope, studentID, parseDate(q.Date, h.loc))
	if err != nil {
		writeError(w, "load ledger", err)
		return
	}
	Success(w, "", toLedger(l))
}

func (h *Handler) decodePayment(w http.ResponseWriter, r *http.Request) (ledger.AllocationRequest, bool) {
	var req PaymentRequest
	if err := decodeJSON(r, &req, false); err != nil {
		ErrorBadRequest(w, "invalid request body: "+err.Error())
		return ledger.AllocationRequest{}, false
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, "validate payment", err)
		return ledger.AllocationRequest{}, false
	}
	return req.toAllocation(h.loc), true
}

func (h *Handler) previewPayment(w http.ResponseWriter, r *http.Request) {
	scope, studentID, ok := requestScope(w, r)
	if !ok {
		return
	}
	req, ok := h.decodePayment(w, r)
	if !ok {
		return
	}

	p, err := h.fees.Preview(r.Context(), scope, studentID, req)
	if err != nil {
		writeError(w, "preview payment", err)
		return
	}
	Success(w, "", toPreview(p))
}

func (h *Handler) collectPayment(w http.ResponseWriter, r *http.Request) {
	scope, studentID, ok := requestScope(w, r)
	if !ok {
		return
	}
	req, ok := h.decodePayment(w, r)
	if !ok {
		return
	}

	res, err := h.fees.Collect(r.Context(), scope, studentID, req)
	if err != nil {
		writeError(w, "record payment", err)
		return
	}
	Response(w, "payment recorded", toCollect(res), 0, "success", http.StatusCreated)
}

func (h *Handler) exportStatement(w http.ResponseWriter, r *http.Request) {
	scope, studentID, ok := requestScope(w, r)
	if !ok {
		return
	}

	var req StatementRequest
	if err := decodeJSON(r, &req, true); err != nil {
		ErrorBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, "export statement", err)
		return
	}

	id, err := h.exports.StartStatementExport(r.Context(), scope, studentID, parseDate(req.Date, h.loc))
	if err != nil {
		writeError(w, "export statement", err)
		return
	}
	SuccessAccepted(w, "export started", exportStartedResponse{ExportID: id})
}
