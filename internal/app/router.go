package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/grandlivre-erp/grandlivre/internal/fiscal"
	"github.com/grandlivre-erp/grandlivre/internal/invoicing"
	"github.com/grandlivre-erp/grandlivre/internal/ledger"
	"github.com/grandlivre-erp/grandlivre/internal/masterdata/clients"
	"github.com/grandlivre-erp/grandlivre/internal/masterdata/organizations"
	"github.com/grandlivre-erp/grandlivre/internal/masterdata/suppliers"
	"github.com/grandlivre-erp/grandlivre/internal/users"
	"github.com/grandlivre-erp/grandlivre/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	LedgerHandler        *ledger.Handler
	FiscalHandler        *fiscal.Handler
	InvoicingHandler     *invoicing.Handler
	OrganizationsHandler *organizations.Handler
	ClientsHandler       *clients.Handler
	SuppliersHandler     *suppliers.Handler
	UsersHandler         *users.Handler
	JobsHandler          *jobs.Handler
}

// NewRouter constructs the chi.Router for the JSON API.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if params.LedgerHandler != nil {
			params.LedgerHandler.MountRoutes(r)
		}
		if params.FiscalHandler != nil {
			params.FiscalHandler.MountRoutes(r)
		}
		if params.InvoicingHandler != nil {
			params.InvoicingHandler.MountRoutes(r)
		}
		if params.OrganizationsHandler != nil {
			params.OrganizationsHandler.MountRoutes(r)
		}
		if params.ClientsHandler != nil {
			params.ClientsHandler.MountRoutes(r)
		}
		if params.SuppliersHandler != nil {
			params.SuppliersHandler.MountRoutes(r)
		}
		if params.UsersHandler != nil {
			params.UsersHandler.MountRoutes(r)
		}
	})
	if params.JobsHandler != nil {
		r.Route("/jobs", func(r chi.Router) {
			params.JobsHandler.MountRoutes(r)
		})
	}

	return r
}
