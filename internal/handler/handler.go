// Package handler contains HTTP request handlers for the moving operations API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/shiva/moveops/internal/middleware"
	"github.com/shiva/moveops/internal/model"
	"github.com/shiva/moveops/internal/service"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error   string            `json:"error"`
	Message string            `json:"message,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// writeJSON is a helper that writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad_request", Message: msg})
}

// writeError maps service errors to status codes. Anything unrecognised is
// logged and reported as a generic 500.
//
// Response codes:
//
//	400  validation failure (with details) or bad webhook signature
//	403  caller may not access the resource
//	404  job, invoice or location not found
//	409  already paid / invoice not sendable
//	422  illegal status transition, job not completed or not in progress, amount out of range
//	502  maps or payment provider failure
//	500  unexpected error
func writeError(w http.ResponseWriter, log zerolog.Logger, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error: "validation_error", Message: "Request validation failed.", Details: verr.Fields,
		})
	case errors.Is(err, model.ErrInvalidSignature):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid_signature", Message: "Webhook signature verification failed."})
	case errors.Is(err, service.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorBody{Error: "forbidden", Message: "You do not have access to this resource."})
	case errors.Is(err, service.ErrJobNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not_found", Message: "Job not found."})
	case errors.Is(err, service.ErrInvoiceNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not_found", Message: "Invoice not found."})
	case errors.Is(err, service.ErrLocationNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not_found", Message: "No location recorded for this job yet."})
	case errors.Is(err, service.ErrDepositAlreadyPaid):
		writeJSON(w, http.StatusConflict, errorBody{Error: "deposit_already_paid", Message: "The deposit for this job has already been paid."})
	case errors.Is(err, service.ErrFinalAlreadyPaid):
		writeJSON(w, http.StatusConflict, errorBody{Error: "final_already_paid", Message: "This job has already been paid in full."})
	case errors.Is(err, service.ErrInvoiceNotSendable):
		writeJSON(w, http.StatusConflict, errorBody{Error: "invoice_not_sendable", Message: "A paid invoice cannot be sent again."})
	case errors.Is(err, service.ErrIllegalTransition):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "illegal_transition", Message: err.Error()})
	case errors.Is(err, service.ErrJobNotCompleted):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "job_not_completed", Message: "The final payment is due once the move is completed."})
	case errors.Is(err, service.ErrJobNotActive):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "job_not_active", Message: "The job is not in progress."})
	case errors.Is(err, service.ErrAmountOutOfRange):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "amount_out_of_range", Message: err.Error()})
	case errors.Is(err, service.ErrUpstream):
		log.Warn().Err(err).Msg("upstream provider failure")
		writeJSON(w, http.StatusBadGateway, errorBody{Error: "upstream_error", Message: "A downstream provider failed. Please retry."})
	default:
		log.Error().Err(err).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal_error"})
	}
}

func missingField(name string) error {
	return &service.ValidationError{Fields: map[string]string{name: "is required"}}
}

// decodeJSON reads a JSON body into dst, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// actor returns the caller set by middleware.Authenticate. Routes are always
// mounted behind it, so a missing actor is a wiring bug.
func actor(ctx context.Context) model.Actor {
	a, _ := middleware.ActorFrom(ctx)
	return a
}
