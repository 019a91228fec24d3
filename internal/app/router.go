package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/greengate-erp/greengate-erp/internal/catalog"
	"github.com/greengate-erp/greengate-erp/internal/directory"
	"github.com/greengate-erp/greengate-erp/internal/observability"
	"github.com/greengate-erp/greengate-erp/internal/orders"
	"github.com/greengate-erp/greengate-erp/internal/pricing"
	"github.com/greengate-erp/greengate-erp/internal/procurement"
	"github.com/greengate-erp/greengate-erp/internal/stock"
	"github.com/greengate-erp/greengate-erp/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	CatalogHandler     *catalog.Handler
	DirectoryHandler   *directory.Handler
	PricingHandler     *pricing.Handler
	OrdersHandler      *orders.Handler
	StockHandler       *stock.Handler
	ProcurementHandler *procurement.Handler
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with Greengate defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Handle("/metrics", params.Metrics.Handler())
	}

	if params.CatalogHandler != nil {
		r.Route("/catalog", func(r chi.Router) {
			params.CatalogHandler.MountRoutes(r)
		})
	}
	if params.DirectoryHandler != nil {
		r.Route("/directory", func(r chi.Router) {
			params.DirectoryHandler.MountRoutes(r)
		})
	}
	if params.PricingHandler != nil {
		r.Route("/pricing", func(r chi.Router) {
			params.PricingHandler.MountRoutes(r)
		})
	}
	if params.OrdersHandler != nil {
		r.Route("/orders", func(r chi.Router) {
			params.OrdersHandler.MountRoutes(r)
		})
	}
	if params.StockHandler != nil {
		r.Route("/stock", func(r chi.Router) {
			params.StockHandler.MountRoutes(r)
		})
	}
	if params.ProcurementHandler != nil {
		r.Route("/procurement", func(r chi.Router) {
			params.ProcurementHandler.MountRoutes(r)
		})
	}
	if params.JobHandler != nil {
		r.Route("/jobs", func(r chi.Router) {
			params.JobHandler.MountRoutes(r)
		})
	}

	return r
}
