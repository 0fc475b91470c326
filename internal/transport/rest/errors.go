package rest

import (
	"errors"
	"log"
	"net/http"

	"fee-ledger/internal/domain"
	"fee-ledger/internal/ledger"
	"fee-ledger/internal/repository"
	"fee-ledger/internal/service"
)

// writeError maps service errors to the response envelope. Unknown errors are logged and hidden.
func writeError(w http.ResponseWriter, op string, err error) {
	var verr *ledger.ValidationError
	switch {
	case errors.As(err, &verr):
		ErrorValidation(w, "validation failed", verr.Fields)
	case errors.Is(err, repository.ErrStudentNotFound):
		ErrorNotFound(w, "student not found")
	case errors.Is(err, service.ErrExportNotFound):
		ErrorNotFound(w, "export not found")
	case errors.Is(err, service.ErrConflict):
		ErrorConflict(w, service.ErrConflict.Error())
	case errors.Is(err, service.ErrPaymentInProgress):
		ErrorTooManyRequests(w, service.ErrPaymentInProgress.Error())
	case errors.Is(err, domain.ErrUnknownGatewayEvent):
		ErrorBadRequest(w, err.Error())
	case errors.Is(err, service.ErrUnknownExportField):
		ErrorValidation(w, "validation failed", []ledger.FieldError{{Field: "fields", Error: err.Error()}})
	case errors.Is(err, service.ErrTooManyRows):
		ErrorBadRequest(w, err.Error())
	default:
		log.Printf("[HTTP] %s error: %v", op, err)
		ErrorInternal(w, "failed to "+op)
	}
}
