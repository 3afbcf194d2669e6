package chi

import (
	"net/http"
	"time"

	"github.com/colinloretz/railsconf-webhooks/inbound"
	"github.com/colinloretz/railsconf-webhooks/providers"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"
)

// Handlers sets up the webhook ingestion routes
func Handlers(service inbound.UseCase, loader *providers.Loader, maxBodyBytes int64) *chi.Mux {
	logger := httplog.NewLogger("railsconf-webhooks", httplog.Options{
		JSON: true,
	})

	r := chi.NewRouter()
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	// One ingestion endpoint per configured provider
	r.Post("/webhooks/{provider}", postWebhook(service, loader, maxBodyBytes, logger).ServeHTTP)

	return r
}
