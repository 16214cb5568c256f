package transport

import (
	"context"
	"net/http"

	"catalog-mirror/internal/middleware"
	"catalog-mirror/internal/reconcile"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// SyncEngine is the part of the reconciliation engine exposed over HTTP.
type SyncEngine interface {
	Pull(ctx context.Context) (*reconcile.PullReport, error)
	PullCategories(ctx context.Context) (*reconcile.PullReport, error)
	PullProducts(ctx context.Context) (*reconcile.PullReport, error)
	Push(ctx context.Context) (*reconcile.PushReport, error)
	CheckConnection(ctx context.Context) (*reconcile.ConnectionStatus, error)
}

// SyncHandler triggers inbound and outbound syncs.
type SyncHandler struct {
	engine SyncEngine
	logger *zap.Logger
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(engine SyncEngine, logger *zap.Logger) *SyncHandler {
	return &SyncHandler{engine: engine, logger: logger}
}

// RegisterRoutes registers sync routes. trigger guards every route that
// starts a run.
func (h *SyncHandler) RegisterRoutes(r chi.Router, trigger ...func(http.Handler) http.Handler) {
	r.With(trigger...).Post("/changes/sync-to-remote", h.Push)

	r.Route("/remote", func(r chi.Router) {
		r.Get("/test-connection", h.TestConnection)

		r.With(trigger...).Post("/sync", h.Pull)
		r.With(trigger...).Post("/sync/categories", h.PullCategories)
		r.With(trigger...).Post("/sync/products", h.PullProducts)
	})
}

// Push handles POST /changes/sync-to-remote
func (h *SyncHandler) Push(w http.ResponseWriter, r *http.Request) {
	report, err := h.engine.Push(r.Context())
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err, reportDetails(report))
		return
	}

	middleware.RespondWithSuccess(w, http.StatusOK, report)
}

// Pull handles POST /remote/sync
func (h *SyncHandler) Pull(w http.ResponseWriter, r *http.Request) {
	h.respondPull(w, r, h.engine.Pull)
}

// PullCategories handles POST /remote/sync/categories
func (h *SyncHandler) PullCategories(w http.ResponseWriter, r *http.Request) {
	h.respondPull(w, r, h.engine.PullCategories)
}

// PullProducts handles POST /remote/sync/products
func (h *SyncHandler) PullProducts(w http.ResponseWriter, r *http.Request) {
	h.respondPull(w, r, h.engine.PullProducts)
}

func (h *SyncHandler) respondPull(w http.ResponseWriter, r *http.Request, run func(context.Context) (*reconcile.PullReport, error)) {
	report, err := run(r.Context())
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err, reportDetails(report))
		return
	}

	middleware.RespondWithSuccess(w, http.StatusOK, report)
}

// TestConnection handles GET /remote/test-connection
func (h *SyncHandler) TestConnection(w http.ResponseWriter, r *http.Request) {
	status, err := h.engine.CheckConnection(r.Context())
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err, map[string]interface{}{"connected": false})
		return
	}

	middleware.RespondWithSuccess(w, http.StatusOK, status)
}

// reportDetails carries a partial report into an error response.
func reportDetails[T any](report *T) map[string]interface{} {
	if report == nil {
		return nil
	}
	return map[string]interface{}{"report": report}
}
