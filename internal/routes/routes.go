package routes

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stanstork/campus-api/internal/authz"
	"github.com/stanstork/campus-api/internal/handlers"
	"github.com/stanstork/campus-api/internal/models"
)

// dispatchRoles may send notifications; every authenticated user may read
// their own.
var dispatchRoles = []models.Role{models.RoleAdmin, models.RoleTeacher, models.RoleStaff}

// NewRouter sets up the API routes.
func NewRouter(jwtSecret string, db handlers.Pinger, notifications *handlers.NotificationHandler) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", handlers.HealthCheck(db)).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(authz.JWTMiddleware(jwtSecret))

	api.HandleFunc("/notifications", notifications.List).Methods(http.MethodGet)
	api.HandleFunc("/notifications/read-all", notifications.MarkAllRead).Methods(http.MethodPut)
	api.HandleFunc("/notifications/{notificationID}/read", notifications.MarkRead).Methods(http.MethodPut)
	api.Handle("/notifications/dispatch",
		authz.RequireAnyRoleHandler(http.HandlerFunc(notifications.Dispatch), dispatchRoles...)).Methods(http.MethodPost)
	api.Handle("/notifications/dispatch/retry",
		authz.RequireAnyRoleHandler(http.HandlerFunc(notifications.Retry), dispatchRoles...)).Methods(http.MethodPost)

	return router
}
