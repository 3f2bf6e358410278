package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/shiva/moveops/internal/metrics"
	"github.com/shiva/moveops/internal/middleware"
)

// Routes bundles everything NewRouter mounts.
type Routes struct {
	Jobs     *JobHandler
	Payments *PaymentHandler
	Invoices *InvoiceHandler
	Pricing  *PricingHandler
	Health   http.Handler
	Metrics  http.Handler // optional
}

// NewRouter builds the API router.
//
// Everything under /api/v1 requires the gateway identity headers except the
// price estimate and the payment webhook.
func NewRouter(rt Routes, corsOrigin string, log zerolog.Logger, sink metrics.Sink) http.Handler {
	router := mux.NewRouter()
	router.Use(middleware.Recoverer(log), middleware.RequestLogger(log, sink))

	router.Handle("/health", rt.Health).Methods(http.MethodGet)
	if rt.Metrics != nil {
		router.Handle("/metrics", rt.Metrics).Methods(http.MethodGet)
	}

	api := router.PathPrefix("/api/v1").Subrouter()

	// Public.
	api.HandleFunc("/pricing/estimate", rt.Pricing.Estimate).Methods(http.MethodPost)
	api.HandleFunc("/payments/webhook", rt.Payments.Webhook).Methods(http.MethodPost)

	// Authenticated.
	authed := api.NewRoute().Subrouter()
	authed.Use(middleware.Authenticate)

	// Jobs
	authed.HandleFunc("/jobs", rt.Jobs.CreateJob).Methods(http.MethodPost)
	authed.HandleFunc("/jobs", rt.Jobs.ListJobs).Methods(http.MethodGet)
	authed.HandleFunc("/jobs/{id}", rt.Jobs.GetJob).Methods(http.MethodGet)
	authed.HandleFunc("/jobs/{id}", rt.Jobs.UpdateStatus).Methods(http.MethodPatch)
	authed.HandleFunc("/jobs/{id}/assign", rt.Jobs.AssignDriver).Methods(http.MethodPost)
	authed.HandleFunc("/jobs/{id}/complete", rt.Jobs.Complete).Methods(http.MethodPost)
	authed.HandleFunc("/jobs/{id}/cancel", rt.Jobs.Cancel).Methods(http.MethodPost)
	authed.HandleFunc("/jobs/{id}/location", rt.Jobs.GetLocation).Methods(http.MethodGet)
	authed.HandleFunc("/jobs/{id}/location", rt.Jobs.RecordLocation).Methods(http.MethodPost)
	// Payments
	authed.HandleFunc("/payments/intents", rt.Payments.CreateIntent).Methods(http.MethodPost)
	// Invoices
	authed.HandleFunc("/invoices", rt.Invoices.List).Methods(http.MethodGet)
	authed.HandleFunc("/invoices/{id}", rt.Invoices.Get).Methods(http.MethodGet)
	authed.HandleFunc("/invoices/{id}/send", rt.Invoices.Send).Methods(http.MethodPost)

	// CORS wraps the router so preflight requests never reach route matching.
	return middleware.CORS(corsOrigin)(router)
}
