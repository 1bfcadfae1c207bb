package authz

import (
	"context"
	"net/http"

	"github.com/stanstork/campus-api/internal/models"
)

type contextKey string

const (
	userIDKey    contextKey = "user_id"
	userRolesKey contextKey = "user_roles"
)

// WithIdentity stores user and role information on the context.
func WithIdentity(ctx context.Context, userID string, roles []models.Role) context.Context {
	if userID != "" {
		ctx = context.WithValue(ctx, userIDKey, userID)
	}
	normalized := make([]models.Role, 0, len(roles))
	for _, role := range roles {
		role = models.NormalizeRole(role)
		if models.IsValidRole(role) {
			normalized = append(normalized, role)
		}
	}
	return context.WithValue(ctx, userRolesKey, normalized)
}

func UserIDFromRequest(r *http.Request) (string, bool) {
	uid, ok := r.Context().Value(userIDKey).(string)
	if !ok || uid == "" {
		return "", false
	}
	return uid, true
}

func RolesFromRequest(r *http.Request) ([]models.Role, bool) {
	roles, ok := r.Context().Value(userRolesKey).([]models.Role)
	if !ok || len(roles) == 0 {
		return nil, false
	}
	return roles, true
}
