package rest

import (
	"net/http"
	"strings"

	"fee-ledger/internal/domain"
	"fee-ledger/internal/ledger"
	"fee-ledger/internal/repository"
	"fee-ledger/internal/transport/auth"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) listExports(w http.ResponseWriter, r *http.Request) {
	scope, err := auth.GetScope(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "branch is required")
		return
	}

	exports, err := h.exports.GetExports(r.Context(), scope.BranchID)
	if err != nil {
		writeError(w, "get exports", err)
		return
	}

	Success(w, "", exports)
}

func (h *Handler) getExport(w http.ResponseWriter, r *http.Request) {
	scope, err := auth.GetScope(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "branch is required")
		return
	}

	exportIDParam := chi.URLParam(r, "export_id")
	if exportIDParam == "" {
		ErrorBadRequest(w, "export_id is required")
		return
	}
	exportID := exportIDParam
	if prefix := h.exports.KeyPrefix(); !strings.HasPrefix(exportID, prefix) {
		exportID = prefix + exportID
	}

	export, err := h.exports.GetExport(r.Context(), exportID, scope.BranchID)
	if err != nil {
		writeError(w, "get export", err)
		return
	}

	Success(w, "", export)
}

func (h *Handler) exportCollections(w http.ResponseWriter, r *http.Request) {
	scope, err := auth.GetScope(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "branch is required")
		return
	}

	var req CollectionsExportRequest
	if err := decodeJSON(r, &req, true); err != nil {
		ErrorBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, "export collections", err)
		return
	}

	filter := repository.CollectionsFilter{
		Scope:     scope,
		StudentID: req.StudentID,
		From:      datePtr(req.From, h.loc),
		To:        datePtr(req.To, h.loc),
	}
	if req.Mode != nil {
		mode := domain.PaymentMode(*req.Mode)
		filter.Mode = &mode
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		ErrorValidation(w, "validation failed", []ledger.FieldError{{Field: "to", Error: "to must not be before from"}})
		return
	}

	id, err := h.exports.StartCollectionsExport(r.Context(), filter, req.Fields)
	if err != nil {
		writeError(w, "export collections", err)
		return
	}
	SuccessAccepted(w, "export started", exportStartedResponse{ExportID: id})
}
