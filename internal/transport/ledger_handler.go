package transport

import (
	"net/http"

	"catalog-mirror/internal/domain"
	"catalog-mirror/internal/middleware"
	"catalog-mirror/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// LedgerHandler serves the change ledger.
type LedgerHandler struct {
	catalog service.CatalogService
	logger  *zap.Logger
}

// NewLedgerHandler creates a new LedgerHandler
func NewLedgerHandler(catalog service.CatalogService, logger *zap.Logger) *LedgerHandler {
	return &LedgerHandler{catalog: catalog, logger: logger}
}

// RegisterRoutes registers the ledger read routes.
func (h *LedgerHandler) RegisterRoutes(r chi.Router) {
	r.Get("/changes", h.ListChanges)
	r.Get("/changes/pending-sync", h.ListPending)
}

// ListChanges handles GET /changes?synced=&category_id=, newest first.
func (h *LedgerHandler) ListChanges(w http.ResponseWriter, r *http.Request) {
	synced, err := queryBool(r, "synced")
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err, nil)
		return
	}
	categoryID, err := queryID(r, "category_id")
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err, nil)
		return
	}

	filter := domain.LedgerFilter{CategoryID: categoryID, Order: domain.NewestFirst}
	if synced != nil {
		status := domain.SyncStatusPending
		if *synced {
			status = domain.SyncStatusSynced
		}
		filter.Status = &status
	}

	entries, err := h.catalog.ListChanges(r.Context(), filter)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err, nil)
		return
	}

	middleware.RespondWithList(w, entries, len(entries))
}

// ListPending handles GET /changes/pending-sync, oldest first.
func (h *LedgerHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	entries, err := h.catalog.ListPending(r.Context())
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err, nil)
		return
	}

	middleware.RespondWithList(w, entries, len(entries))
}
