package transport

import (
	"encoding/json"
	"net/http"
	"strconv"

	"catalog-mirror/internal/domain"
	"catalog-mirror/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CostRequest is the body of both cost edit endpoints. NewCost accepts a
// JSON string or number.
type CostRequest struct {
	NewCost json.Number `json:"new_cost" validate:"required,cost"`
}

// decodeCost reads and validates a CostRequest. On failure the response has
// already been written.
func decodeCost(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (decimal.Decimal, bool) {
	var req CostRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		logger.Debug("Cost request validation failed", zap.Error(err))

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return decimal.Decimal{}, false
		}

		middleware.RespondWithDomainError(w, logger, domain.NewValidationError("", nil, "invalid request body"), nil)
		return decimal.Decimal{}, false
	}

	cost, err := decimal.NewFromString(req.NewCost.String())
	if err != nil {
		middleware.RespondWithDomainError(w, logger, domain.NewValidationError("new_cost", req.NewCost.String(), "not a decimal"), nil)
		return decimal.Decimal{}, false
	}
	return cost, true
}

// pathID parses an external id from the route. On failure the response has
// already been written.
func pathID(w http.ResponseWriter, r *http.Request, logger *zap.Logger, param string) (int64, bool) {
	raw := chi.URLParam(r, param)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		middleware.RespondWithDomainError(w, logger, domain.NewValidationError(param, raw, "must be a positive integer"), nil)
		return 0, false
	}
	return id, true
}

// queryID parses an optional id query parameter.
func queryID(r *http.Request, name string) (*int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, domain.NewValidationError(name, raw, "must be a positive integer")
	}
	return &id, nil
}

// queryBool parses an optional boolean query parameter.
func queryBool(r *http.Request, name string) (*bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, domain.NewValidationError(name, raw, "must be true or false")
	}
	return &b, nil
}
