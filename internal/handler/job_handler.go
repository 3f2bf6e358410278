package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/shiva/moveops/internal/model"
	"github.com/shiva/moveops/internal/service"
)

// JobService is the job workflow the handler drives.
type JobService interface {
	CreateJob(ctx context.Context, actor model.Actor, req service.BookingRequest) (*model.Job, *model.Invoice, error)
	GetJobDetail(ctx context.Context, actor model.Actor, id string) (*model.JobDetail, error)
	ListJobs(ctx context.Context, actor model.Actor, status model.JobStatus) ([]model.Job, error)
	AssignDriver(ctx context.Context, actor model.Actor, id, driverID string) (*model.Job, error)
	UpdateStatus(ctx context.Context, actor model.Actor, id string, target model.JobStatus, notes string) (*model.Job, error)
	Complete(ctx context.Context, actor model.Actor, id, notes string) (*model.Job, error)
	Cancel(ctx context.Context, actor model.Actor, id, reason string) (*model.Job, error)
}

// TrackingService ingests and serves driver locations.
type TrackingService interface {
	RecordFix(ctx context.Context, fix model.DriverLocation) error
	Latest(ctx context.Context, actor model.Actor, jobID string) (*model.LiveLocation, error)
}

// ─── Request/Response DTOs ──────────────────────────────────

// CreateJobResponse is returned by POST /api/v1/jobs.
type CreateJobResponse struct {
	Job     *model.Job     `json:"job"`
	Invoice *model.Invoice `json:"invoice"`
}

// UpdateStatusBody is the JSON body for PATCH /api/v1/jobs/{id}.
type UpdateStatusBody struct {
	Status model.JobStatus `json:"status"`
	Notes  string          `json:"notes"`
}

// AssignBody is the JSON body for POST /api/v1/jobs/{id}/assign.
type AssignBody struct {
	DriverID string `json:"driver_id"`
}

// NotesBody is the optional JSON body for complete and cancel.
type NotesBody struct {
	Notes string `json:"notes"`
}

// LocationBody is the JSON body for POST /api/v1/jobs/{id}/location.
type LocationBody struct {
	Lat        *float64   `json:"lat"`
	Lng        *float64   `json:"lng"`
	Accuracy   *float64   `json:"accuracy,omitempty"`
	Heading    *float64   `json:"heading,omitempty"`
	Speed      *float64   `json:"speed,omitempty"`
	RecordedAt *time.Time `json:"recorded_at,omitempty"`
}

// ─── JobHandler ─────────────────────────────────────────────

// JobHandler handles bookings, dispatch and tracking requests.
type JobHandler struct {
	jobs     JobService
	tracking TrackingService
	log      zerolog.Logger
}

// NewJobHandler creates a new job handler.
func NewJobHandler(jobs JobService, tracking TrackingService, log zerolog.Logger) *JobHandler {
	return &JobHandler{jobs: jobs, tracking: tracking, log: log}
}

// CreateJob handles POST /api/v1/jobs
//
// Books a move for the calling customer. Returns 201 with the PENDING job
// and its DRAFT invoice.
func (h *JobHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req service.BookingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	job, inv, err := h.jobs.CreateJob(r.Context(), actor(r.Context()), req)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreateJobResponse{Job: job, Invoice: inv})
}

// ListJobs handles GET /api/v1/jobs?status=
func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	status := model.JobStatus(r.URL.Query().Get("status"))
	jobs, err := h.jobs.ListJobs(r.Context(), actor(r.Context()), status)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": jobs, "count": len(jobs)})
}

// GetJob handles GET /api/v1/jobs/{id}
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	detail, err := h.jobs.GetJobDetail(r.Context(), actor(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// UpdateStatus handles PATCH /api/v1/jobs/{id}
//
//	Request body:
//	{ "status": "LOADING", "notes": "Crew on site" }
func (h *JobHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var body UpdateStatusBody
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.Status == "" {
		writeError(w, h.log, missingField("status"))
		return
	}
	job, err := h.jobs.UpdateStatus(r.Context(), actor(r.Context()), mux.Vars(r)["id"], body.Status, body.Notes)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// AssignDriver handles POST /api/v1/jobs/{id}/assign
func (h *JobHandler) AssignDriver(w http.ResponseWriter, r *http.Request) {
	var body AssignBody
	if !decodeJSON(w, r, &body) {
		return
	}
	job, err := h.jobs.AssignDriver(r.Context(), actor(r.Context()), mux.Vars(r)["id"], body.DriverID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// Complete handles POST /api/v1/jobs/{id}/complete
func (h *JobHandler) Complete(w http.ResponseWriter, r *http.Request) {
	body, ok := optionalNotes(w, r)
	if !ok {
		return
	}
	job, err := h.jobs.Complete(r.Context(), actor(r.Context()), mux.Vars(r)["id"], body.Notes)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// Cancel handles POST /api/v1/jobs/{id}/cancel
func (h *JobHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	body, ok := optionalNotes(w, r)
	if !ok {
		return
	}
	job, err := h.jobs.Cancel(r.Context(), actor(r.Context()), mux.Vars(r)["id"], body.Notes)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func optionalNotes(w http.ResponseWriter, r *http.Request) (NotesBody, bool) {
	var body NotesBody
	if r.ContentLength == 0 {
		return body, true
	}
	return body, decodeJSON(w, r, &body)
}

// GetLocation handles GET /api/v1/jobs/{id}/location
//
// Returns the latest driver fix with straight-line miles and minutes left to
// the dropoff.
func (h *JobHandler) GetLocation(w http.ResponseWriter, r *http.Request) {
	live, err := h.tracking.Latest(r.Context(), actor(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, live)
}

// RecordLocation handles POST /api/v1/jobs/{id}/location
//
// HTTP ingest for drivers whose app cannot reach the MQTT broker. The caller
// must be the assigned driver.
func (h *JobHandler) RecordLocation(w http.ResponseWriter, r *http.Request) {
	var body LocationBody
	if !decodeJSON(w, r, &body) {
		return
	}
	a := actor(r.Context())
	if a.Role != model.RoleDriver {
		writeError(w, h.log, service.ErrForbidden)
		return
	}
	if body.Lat == nil {
		writeError(w, h.log, missingField("lat"))
		return
	}
	if body.Lng == nil {
		writeError(w, h.log, missingField("lng"))
		return
	}
	fix := model.DriverLocation{
		DriverID:   a.UserID,
		JobID:      mux.Vars(r)["id"],
		Lat:        *body.Lat,
		Lng:        *body.Lng,
		Accuracy:   body.Accuracy,
		Heading:    body.Heading,
		Speed:      body.Speed,
		RecordedAt: time.Now().UTC(),
	}
	if body.RecordedAt != nil {
		fix.RecordedAt = body.RecordedAt.UTC()
	}
	if err := h.tracking.RecordFix(r.Context(), fix); err != nil {
		writeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
