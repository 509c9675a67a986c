package api

import (
	"net/http"

	"github.com/Priya8975/forge-storefront/internal/auth"
	"github.com/Priya8975/forge-storefront/internal/cart"
	"github.com/Priya8975/forge-storefront/internal/catalog"
	"github.com/Priya8975/forge-storefront/internal/ingest"
	"github.com/Priya8975/forge-storefront/internal/logger"
	ws "github.com/Priya8975/forge-storefront/internal/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Deps are the services the HTTP layer is built from. Limiter, Lockout and
// Hub may be nil.
type Deps struct {
	Logger           *zap.Logger
	Ingest           *ingest.Service
	Catalog          *catalog.Service
	Carts            *cart.Registry
	Auth             *auth.Service
	Events           EventReader
	Hub              *ws.Hub
	Limiter          Limiter
	Lockout          Guard
	WebhookRateLimit int
	Health           map[string]Pinger
}

// NewRouter creates and configures the HTTP router.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logger.RequestLogger(d.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(corsMiddleware)

	webhookHandler := NewWebhookHandler(d.Ingest, d.Lockout)
	productHandler := NewProductHandler(d.Catalog, d.Logger)
	cartHandler := NewCartHandler(d.Carts, d.Catalog, d.Logger)
	authHandler := NewAuthHandler(d.Auth, d.Lockout, d.Logger)
	eventHandler := NewEventHandler(d.Events, d.Logger)
	requireAuth := RequireAuth(d.Auth.Tokens())

	if d.Hub != nil {
		r.Get("/ws/events", d.Hub.HandleWebSocket)
	}

	r.Get("/api/v1/health", HealthHandler(d.Health))

	r.Route("/api", func(r chi.Router) {
		r.With(RateLimit(d.Limiter, scopeWebhook, d.WebhookRateLimit)).
			Post("/webhook", webhookHandler.Receive)

		r.Route("/products", func(r chi.Router) {
			r.Get("/", productHandler.List)
			r.Get("/{slug}", productHandler.Get)
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.Get)
			r.Delete("/", cartHandler.Clear)
			r.Post("/items", cartHandler.AddItem)
			r.Patch("/items/{productID}", cartHandler.UpdateItem)
			r.Delete("/items/{productID}", cartHandler.RemoveItem)
		})

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/user/profile", authHandler.Profile)
			r.Get("/events", eventHandler.List)
			r.Get("/events/{id}", eventHandler.Get)
		})
	})

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+HeaderCartSession)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
