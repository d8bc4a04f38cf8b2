package api

import (
	"net/http"
	"time"

	"leadpilot-backend/internal/config"
	"leadpilot-backend/internal/handlers"
	"leadpilot-backend/internal/ratelimit"
	"leadpilot-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterDependencies holds the handlers and configuration the router wires up.
type RouterDependencies struct {
	AuthHandler   *handlers.AuthHandler
	ChatHandler   *handlers.ChatHandlers
	LeadHandler   *handlers.LeadHandler
	KBHandler     *handlers.KBHandler
	TenantHandler *handlers.TenantHandler
	ChatLimiter   ratelimit.Limiter
	Config        *config.Config
}

// NewRouter creates and configures the main Chi router for the application.
func NewRouter(deps RouterDependencies) *chi.Mux {
	r := chi.NewRouter()

	// --- Base Middleware Stack ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// The widget is embedded on customer sites, so origins come from config.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// --- Public Routes (No JWT Required) ---
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1/auth", func(r chi.Router) {
		r.With(OptionalJwtAuth(deps.Config.JWTSecret)).Post("/register", deps.AuthHandler.HandleRegister)
		r.Post("/login", deps.AuthHandler.HandleLogin)
	})

	r.Route("/v1/chat", func(r chi.Router) {
		if deps.ChatLimiter != nil {
			r.Use(RateLimitMiddleware(deps.ChatLimiter))
		}
		r.Post("/message", deps.ChatHandler.HandleMessage)
	})
	r.Get("/v1/widget/config", deps.ChatHandler.HandleWidgetConfig)

	// --- Authenticated Routes (JWT Required) ---
	r.Group(func(r chi.Router) {
		r.Use(JwtAuthMiddleware(deps.Config.JWTSecret))

		r.Route("/v1/leads", func(r chi.Router) {
			r.Get("/", deps.LeadHandler.HandleListLeads)
			r.Get("/stats/summary", deps.LeadHandler.HandleLeadStats)
			r.Get("/{leadID}", deps.LeadHandler.HandleGetLead)
			r.With(RequireRole(services.RoleAdmin, services.RoleSalesRep)).Patch("/{leadID}", deps.LeadHandler.HandleUpdateLead)
		})

		r.Route("/v1/knowledge-base", func(r chi.Router) {
			r.Get("/documents", deps.KBHandler.HandleListDocuments)
			r.Get("/stats", deps.KBHandler.HandleStats)
			r.Group(func(r chi.Router) {
				r.Use(RequireRole(services.RoleAdmin))
				r.Post("/documents", deps.KBHandler.HandleUploadDocument)
				r.Delete("/documents/{documentID}", deps.KBHandler.HandleDeleteDocument)
				r.Post("/notion", deps.KBHandler.HandleImportNotion)
			})
		})

		r.Route("/v1/tenant", func(r chi.Router) {
			r.Get("/", deps.TenantHandler.HandleGetTenant)
			r.With(RequireRole(services.RoleAdmin)).Put("/settings", deps.TenantHandler.HandleUpdateSettings)
			r.With(RequireRole(services.RoleAdmin)).Post("/slack/test", deps.TenantHandler.HandleTestSlack)
		})
	})

	return r
}
