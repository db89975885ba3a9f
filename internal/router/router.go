package router

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"go-org-access/internal/config"
	"go-org-access/internal/handler"
	"go-org-access/internal/metrics"
	"go-org-access/internal/middleware"
	"go-org-access/internal/model"
)

type Handlers struct {
	Auth       *handler.AuthHandler
	User       *handler.UserHandler
	Department *handler.DepartmentHandler
	Grant      *handler.GrantHandler
	Activity   *handler.ActivityHandler
	Docs       *handler.DocsHandler

	// ActivityStream upgrades to a websocket; it is mounted outside the
	// request timeout because the connection is long lived.
	ActivityStream http.HandlerFunc
}

// HealthFunc reports whether the backing store is reachable. Nil means the
// service has nothing to check.
type HealthFunc func(ctx context.Context) error

func New(cfg *config.Config, authMiddleware *middleware.AuthMiddleware, h Handlers, m *metrics.Metrics, health HealthFunc) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)

	r.Use(middleware.Logging)
	r.Use(middleware.Recovery)
	r.Use(m.Instrument)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if health != nil {
			ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
			defer cancel()
			if err := health(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("unavailable"))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", m.Handler())
	if h.Docs != nil {
		r.Get("/openapi.yaml", h.Docs.OpenAPI)
	}

	r.Route("/api/v1", func(api chi.Router) {
		if h.ActivityStream != nil {
			api.With(authMiddleware.RequireAuth, authMiddleware.RequireRoles(model.RoleAdmin)).Get("/activity/stream", h.ActivityStream)
		}

		api.Group(func(timed chi.Router) {
			timed.Use(middleware.Timeout(cfg.RequestTimeout))

			timed.Route("/auth", func(auth chi.Router) {
				auth.Post("/login", h.Auth.Login)
				auth.Post("/refresh", h.Auth.Refresh)
				auth.Post("/logout", h.Auth.Logout)
				auth.With(authMiddleware.RequireAuth).Get("/me", h.Auth.Me)
			})

			timed.Group(func(private chi.Router) {
				private.Use(authMiddleware.RequireAuth)

				private.Get("/departments", h.Department.List)
				private.Post("/departments", h.Department.Create)
				private.Patch("/departments/{id}", h.Department.Update)

				private.Get("/users", h.User.List)
				private.Post("/users", h.User.Create)
				private.Get("/users/{id}", h.User.Get)
				private.Patch("/users/{id}", h.User.Update)
				private.Post("/users/{id}/deactivate", h.User.Deactivate)

				private.Get("/access-grants", h.Grant.List)
				private.With(authMiddleware.RequireRoles(model.RoleAdmin, model.RoleManager)).Post("/access-grants", h.Grant.Create)
				private.With(authMiddleware.RequireRoles(model.RoleAdmin, model.RoleManager)).Delete("/access-grants/{id}", h.Grant.Revoke)

				private.Get("/activity", h.Activity.List)
			})
		})
	})

	return r
}
