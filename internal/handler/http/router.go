package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/soss111/maker-set-sub000/pkg/health"
	"github.com/soss111/maker-set-sub000/pkg/middleware"

	"github.com/soss111/maker-set-sub000/internal/service"
)

// RouterConfig carries the router's cross-cutting settings.
type RouterConfig struct {
	PprofCIDRs  []string
	CORSOrigins []string
}

// NewRouter creates a chi router with all cart service routes registered.
func NewRouter(
	cartService *service.CartService,
	healthHandler *health.Handler,
	logger *slog.Logger,
	cfg RouterConfig,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.CORS(middleware.CORSConfig{AllowedOrigins: cfg.CORSOrigins}))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("cart"))
	r.Use(middleware.Tracing("cart"))
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// Pprof debug endpoints with IP allowlist.
	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	// Cart API endpoints
	cartHandler := NewCartHandler(cartService, logger)

	r.Route("/api/v1/cart", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(RequireUser)

		r.Get("/", cartHandler.GetCart)
		r.Delete("/", cartHandler.ClearCart)

		r.Post("/items", cartHandler.AddItem)
		r.Put("/items/{setID}", cartHandler.UpdateItemQuantity)
		r.Delete("/items/{setID}", cartHandler.RemoveItem)

		r.Post("/discount", cartHandler.ApplyDiscount)
		r.Delete("/discount", cartHandler.RemoveDiscount)

		r.Post("/validate-stock", cartHandler.ValidateStock)
		r.Post("/expiry-check", cartHandler.CheckExpiry)
	})

	return r
}
