package middleware

import (
	"net/http"
	"slices"

	"go.uber.org/zap"
)

// RequireManager allows only operators with the manager role. Voiding records
// and editing the catalog go through it.
func RequireManager(logger *zap.Logger) func(http.Handler) http.Handler {
	return RequireRole([]string{RoleManager}, logger)
}

// RequireRole middleware ensures the operator has one of the specified roles
func RequireRole(allowedRoles []string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := GetUserRole(r.Context())
			if !ok {
				logger.Warn("Role not found in context")
				RespondWithError(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			if !slices.Contains(allowedRoles, role) {
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
