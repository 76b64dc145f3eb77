package middleware

import (
	"net/http"

	"go.uber.org/zap"
)

// RoleAdmin is the role allowed to manage the catalog and inspect
// store routing.
const RoleAdmin = "admin"

// RequireAdmin middleware ensures the user has admin role
func RequireAdmin(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := GetUserRole(r.Context())
			if !ok || role != RoleAdmin {
				owner, _ := GetOwner(r.Context())
				logger.Warn("Non-admin caller rejected",
					zap.String("owner", owner),
					zap.String("role", role),
					zap.String("path", r.URL.Path),
				)
				RespondWithError(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
