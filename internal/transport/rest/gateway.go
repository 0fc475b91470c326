package rest

import (
	"io"
	"net/http"

	"fee-ledger/internal/domain"
	"fee-ledger/internal/transport/auth"
)

const maxGatewayBody = 64 << 10

func (h *Handler) gatewayEvent(w http.ResponseWriter, r *http.Request) {
	scope, err := auth.GetScope(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "branch is required")
		return
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxGatewayBody))
	if err != nil {
		ErrorBadRequest(w, "failed to read body")
		return
	}
	ev, err := domain.DecodeGatewayEvent(raw)
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	warnings, err := h.fees.HandleGatewayEvent(r.Context(), scope, ev)
	if err != nil {
		writeError(w, "handle gateway event", err)
		return
	}
	if warnings == nil {
		warnings = []string{}
	}
	Success(w, "", gatewayResponse{Type: ev.EventType(), Warnings: warnings})
}
