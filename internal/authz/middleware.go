package authz

import (
	"net/http"

	"github.com/stanstork/campus-api/internal/models"
)

// RequireAnyRole returns a middleware that lets the request through when the
// requester holds at least one of the allowed roles.
func RequireAnyRole(allowed ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			roles, ok := RolesFromRequest(r)
			if !ok || !hasAny(roles, allowed) {
				http.Error(w, "insufficient permissions", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAnyRoleHandler applies the role middleware inline when registering routes.
func RequireAnyRoleHandler(next http.Handler, allowed ...models.Role) http.Handler {
	return RequireAnyRole(allowed...)(next)
}

func hasAny(held, allowed []models.Role) bool {
	for _, h := range held {
		for _, a := range allowed {
			if h == a {
				return true
			}
		}
	}
	return false
}
