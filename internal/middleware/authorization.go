package middleware

import (
	"net/http"

	"catalog-mirror/internal/service"

	"go.uber.org/zap"
)

// RequireRole middleware ensures the operator has one of the specified roles
func RequireRole(allowedRoles []string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := GetOperatorRole(r.Context())
			if !ok {
				logger.Warn("Role not found in context")
				RespondWithError(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			allowed := false
			for _, allowedRole := range allowedRoles {
				if role == allowedRole {
					allowed = true
					break
				}
			}

			if !allowed {
				logger.Warn("Operator role not authorized",
					zap.String("role", role),
					zap.Strings("allowed_roles", allowedRoles),
				)
				RespondWithError(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireOperator lets through operators and admins, the roles allowed to
// change costs and trigger syncs.
func RequireOperator(logger *zap.Logger) func(http.Handler) http.Handler {
	return RequireRole([]string{service.RoleOperator, service.RoleAdmin}, logger)
}
