package rest

import (
	"context"
	"net/http"
	"time"

	"fee-ledger/internal/domain"
	"fee-ledger/internal/ledger"
	"fee-ledger/internal/repository"
	"fee-ledger/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type LedgerService interface {
	Ledger(ctx context.Context, scope domain.Scope, studentID string, at time.Time) (service.StudentLedger, error)
	Preview(ctx context.Context, scope domain.Scope, studentID string, req ledger.AllocationRequest) (service.Preview, error)
	Collect(ctx context.Context, scope domain.Scope, studentID string, req ledger.AllocationRequest) (service.CollectResult, error)
	HandleGatewayEvent(ctx context.Context, scope domain.Scope, ev domain.GatewayEvent) ([]string, error)
}

type Exporter interface {
	StartStatementExport(ctx context.Context, scope domain.Scope, studentID string, at time.Time) (string, error)
	StartCollectionsExport(ctx context.Context, filter repository.CollectionsFilter, fields []string) (string, error)
	GetExports(ctx context.Context, branchID string) ([]service.ExportView, error)
	GetExport(ctx context.Context, exportID, branchID string) (service.ExportView, error)
	KeyPrefix() string
}

type Handler struct {
	fees     LedgerService
	exports  Exporter
	validate *Validator
	loc      *time.Location
}

func NewHandler(fees LedgerService, exports Exporter, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{
		fees:     fees,
		exports:  exports,
		validate: NewValidator(),
		loc:      loc,
	}
}

func (h *Handler) InitRouter() *chi.Mux {
	return h.InitRouterWithScope(nil)
}

func (h *Handler) InitRouterWithScope(scopeMiddleware func(http.Handler) http.Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
	)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		Success(w, "ok", nil)
	})

	r.Group(func(r chi.Router) {
		if scopeMiddleware != nil {
			r.Use(scopeMiddleware)
		}

		r.Route("/students/{student_id}", func(r chi.Router) {
			r.Get("/ledger", h.getLedger)
			r.Post("/payments/preview", h.previewPayment)
			r.Post("/payments", h.collectPayment)
			r.Post("/statement", h.exportStatement)
		})

		r.Post("/gateway/events", h.gatewayEvent)

		r.Route("/export", func(r chi.Router) {
			r.Get("/", h.listExports)
			r.Get("/{export_id}", h.getExport)
			r.Post("/collections", h.exportCollections)
		})
	})

	return r
}
