package handler

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/shiva/moveops/internal/model"
)

// InvoiceService lists, reads and sends invoices.
type InvoiceService interface {
	List(ctx context.Context, actor model.Actor, status model.InvoiceStatus) ([]model.Invoice, error)
	Get(ctx context.Context, actor model.Actor, id string) (*model.Invoice, error)
	Send(ctx context.Context, actor model.Actor, id string) (*model.Invoice, error)
}

// InvoiceHandler handles invoice requests.
type InvoiceHandler struct {
	invoices InvoiceService
	log      zerolog.Logger
}

// NewInvoiceHandler creates a new invoice handler.
func NewInvoiceHandler(invoices InvoiceService, log zerolog.Logger) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices, log: log}
}

// List handles GET /api/v1/invoices?status=
func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	status := model.InvoiceStatus(r.URL.Query().Get("status"))
	invoices, err := h.invoices.List(r.Context(), actor(r.Context()), status)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"invoices": invoices, "count": len(invoices)})
}

// Get handles GET /api/v1/invoices/{id}
func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	inv, err := h.invoices.Get(r.Context(), actor(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

// Send handles POST /api/v1/invoices/{id}/send
func (h *InvoiceHandler) Send(w http.ResponseWriter, r *http.Request) {
	inv, err := h.invoices.Send(r.Context(), actor(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}
