package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/arkivo/arkivo/internal/api"
	"github.com/arkivo/arkivo/internal/identity"
	"github.com/arkivo/arkivo/internal/observability"
)

// RouterParams groups dependencies for building the RPC router.
type RouterParams struct {
	Logger     *slog.Logger
	Config     *Config
	Resolver   *identity.Resolver
	APIHandler *api.Handler
	Metrics    *observability.Metrics
}

// NewRouter constructs the chi.Router for the RPC surface.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(identity.Middleware(params.Resolver, params.Logger))
		params.APIHandler.MountRoutes(r)
	})

	return r
}
