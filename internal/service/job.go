package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/shiva/moveops/internal/metrics"
	"github.com/shiva/moveops/internal/model"
	"github.com/shiva/moveops/internal/repository"
	"github.com/shiva/moveops/pkg/geo"
)

// JobConfig holds the booking constants that are not part of pricing.
type JobConfig struct {
	DepositAmount        float64
	LocationHistoryLimit int
	ListLimit            int
}

// DefaultJobConfig returns the production booking constants.
func DefaultJobConfig() JobConfig {
	return JobConfig{
		DepositAmount:        50,
		LocationHistoryLimit: 50,
		ListLimit:            200,
	}
}

// ─── JobService ─────────────────────────────────────────────

// JobService handles bookings and dispatch.
//
// Every status change goes through Transition inside a JobStore.UpdateJob
// mutation, so the check and the write happen under the same row lock.
type JobService struct {
	jobs      JobStore
	geocoder  Geocoder
	pricing   *PricingService
	notifier  Notifier
	publisher StatusPublisher
	metrics   metrics.Sink
	log       zerolog.Logger
	cfg       JobConfig
	now       func() time.Time
}

// NewJobService creates a job service. publisher may be nil.
func NewJobService(
	jobs JobStore,
	geocoder Geocoder,
	pricing *PricingService,
	notifier Notifier,
	publisher StatusPublisher,
	sink metrics.Sink,
	log zerolog.Logger,
	cfg JobConfig,
) *JobService {
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &JobService{
		jobs:      jobs,
		geocoder:  geocoder,
		pricing:   pricing,
		notifier:  notifier,
		publisher: publisher,
		metrics:   sink,
		log:       log,
		cfg:       cfg,
		now:       time.Now,
	}
}

// ─── Create ─────────────────────────────────────────────────

// CreateJob books a move for the calling customer.
//
// Flow:
//  1. Sanitize and validate the request.
//  2. Geocode both addresses and fetch the driving route.
//  3. Price the move with mileage = route miles.
//  4. Persist the PENDING job and its DRAFT invoice in one transaction.
//  5. Enqueue the booking confirmation. A failed enqueue is logged only.
func (s *JobService) CreateJob(ctx context.Context, actor model.Actor, req BookingRequest) (*model.Job, *model.Invoice, error) {
	if actor.Role != model.RoleCustomer && actor.Role != model.RoleAdmin {
		return nil, nil, ErrForbidden
	}

	// ── Step 1: Validate ────────────────────────────────
	req.Normalize()
	now := s.now()
	if err := req.Validate(now); err != nil {
		return nil, nil, err
	}
	scheduled, _ := time.Parse(scheduledDateLayout, req.ScheduledDate)

	// ── Step 2: Geocode + route ─────────────────────────
	pickup, err := s.geocode(ctx, "pickup_address", req.PickupAddress)
	if err != nil {
		return nil, nil, err
	}
	dropoff, err := s.geocode(ctx, "dropoff_address", req.DropoffAddress)
	if err != nil {
		return nil, nil, err
	}
	route, err := s.geocoder.Route(ctx, pickup.Location(), dropoff.Location())
	if err != nil {
		return nil, nil, fmt.Errorf("%w: route: %v", ErrUpstream, err)
	}

	// ── Step 3: Price ───────────────────────────────────
	pricing := s.pricing.Estimate(req.Services.PricingInput(route.DistanceMiles))

	// ── Step 4: Persist ─────────────────────────────────
	jobNumber := newJobNumber(now)
	job := &model.Job{
		ID:         uuid.NewString(),
		JobNumber:  jobNumber,
		CustomerID: actor.UserID,
		Contact: model.Contact{
			Name:  req.Contact.Name,
			Phone: req.Contact.Phone,
			Email: req.Contact.Email,
		},
		Status:               model.JobPending,
		MoveType:             req.MoveType,
		Pickup:               *pickup,
		Dropoff:              *dropoff,
		DistanceMiles:        route.DistanceMiles,
		EstimatedDurationMin: route.DurationMinutes,
		ScheduledDate:        scheduled,
		ScheduledTime:        req.ScheduledTime,
		Notes:                req.Notes,
		SpecialItems:         req.SpecialItems,
		Pricing:              pricing,
		EstimatedTotal:       pricing.TotalEstimated,
		DepositAmount:        s.cfg.DepositAmount,
	}
	inv := &model.Invoice{
		ID:            uuid.NewString(),
		JobID:         job.ID,
		InvoiceNumber: "INV-" + jobNumber,
		Subtotal:      pricing.Subtotal,
		TaxAmount:     pricing.TaxAmount,
		Total:         pricing.TotalEstimated,
		DepositAmount: s.cfg.DepositAmount,
		FinalAmount:   pricing.TotalEstimated - s.cfg.DepositAmount,
		Status:        model.InvoiceDraft,
	}
	if err := s.jobs.CreateJob(ctx, job, inv); err != nil {
		return nil, nil, fmt.Errorf("job: create: %w", err)
	}

	s.log.Info().
		Str("job_id", job.ID).
		Str("job_number", job.JobNumber).
		Float64("total", job.EstimatedTotal).
		Float64("miles", job.DistanceMiles).
		Msg("job booked")

	// ── Step 5: Notify ──────────────────────────────────
	err = s.notifier.BookingConfirmed(ctx, model.BookingConfirmation{
		To:             job.Contact.Email,
		CustomerName:   job.Contact.Name,
		JobNumber:      job.JobNumber,
		PickupAddress:  job.Pickup.Address,
		DropoffAddress: job.Dropoff.Address,
		ScheduledDate:  req.ScheduledDate,
		ScheduledTime:  job.ScheduledTime,
		EstimatedTotal: job.EstimatedTotal,
		DepositAmount:  job.DepositAmount,
	})
	if err != nil {
		s.log.Warn().Err(err).Str("job_id", job.ID).Msg("booking confirmation not enqueued")
	}

	return job, inv, nil
}

// geocode resolves one address. An address with no match is a validation
// failure on field; anything else is an upstream failure.
func (s *JobService) geocode(ctx context.Context, field, address string) (*model.Place, error) {
	place, err := s.geocoder.Geocode(ctx, address)
	switch {
	case errors.Is(err, model.ErrAddressNotFound):
		verr := &ValidationError{}
		verr.add(field, "could not be geocoded")
		return nil, verr
	case err != nil:
		return nil, fmt.Errorf("%w: geocode %s: %v", ErrUpstream, field, err)
	}
	return place, nil
}

// newJobNumber returns "JM" followed by the last 8 digits of the unix
// millisecond clock.
func newJobNumber(now time.Time) string {
	ms := strconv.FormatInt(now.UnixMilli(), 10)
	if len(ms) > 8 {
		ms = ms[len(ms)-8:]
	}
	return "JM" + ms
}

// ─── Read ───────────────────────────────────────────────────

// GetJobDetail returns the job with its invoice, payments, history and
// recent locations. Only the owner, the assigned driver and admins may read it.
func (s *JobService) GetJobDetail(ctx context.Context, actor model.Actor, id string) (*model.JobDetail, error) {
	detail, err := s.jobs.GetJobDetail(ctx, id, s.cfg.LocationHistoryLimit)
	if err != nil {
		return nil, classifyJobError(err)
	}
	if !detail.Job.CanView(actor) {
		return nil, ErrForbidden
	}

	trail := make([]model.Location, len(detail.Locations))
	for i, l := range detail.Locations {
		trail[i] = model.Location{Lat: l.Lat, Lng: l.Lng}
	}
	detail.MilesTracked = geo.TrailMiles(trail)
	return detail, nil
}

// ListJobs scopes the listing by role: customers see their own jobs newest
// first, drivers their assigned jobs in schedule order, admins everything.
func (s *JobService) ListJobs(ctx context.Context, actor model.Actor, status model.JobStatus) ([]model.Job, error) {
	if status != "" && !status.IsValid() {
		return nil, &ValidationError{Fields: map[string]string{"status": "is not a known job status"}}
	}

	filter := model.JobFilter{Status: status, Limit: s.cfg.ListLimit}
	switch actor.Role {
	case model.RoleCustomer:
		filter.CustomerID = actor.UserID
	case model.RoleDriver:
		filter.DriverID = actor.UserID
		filter.OrderBySchedule = true
	case model.RoleAdmin:
	default:
		return nil, ErrForbidden
	}

	jobs, err := s.jobs.ListJobs(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("job: list: %w", err)
	}
	return jobs, nil
}

// ─── Dispatch ───────────────────────────────────────────────

// AssignDriver attaches a driver to a confirmed or scheduled job. Admin only.
func (s *JobService) AssignDriver(ctx context.Context, actor model.Actor, id, driverID string) (*model.Job, error) {
	if actor.Role != model.RoleAdmin {
		return nil, ErrForbidden
	}
	if driverID == "" {
		return nil, &ValidationError{Fields: map[string]string{"driver_id": "is required"}}
	}

	return s.update(ctx, id, func(job *model.Job) (*model.StatusChange, error) {
		change, err := applyTransition(job, TriggerAssignDriver, "", actor.UserID, "Driver assigned: "+driverID)
		if err != nil {
			return nil, err
		}
		job.DriverID = &driverID
		return change, nil
	})
}

// UpdateStatus moves a job to target through the transition table.
//
// Permissions:
//   - Advancing through the in-progress states: the assigned driver or an admin.
//   - COMPLETED: the assigned driver or an admin.
//   - CANCELLED: the owning customer or an admin.
//
// PAID, CONFIRMED and SCHEDULED are only reachable through payments and
// driver assignment.
func (s *JobService) UpdateStatus(ctx context.Context, actor model.Actor, id string, target model.JobStatus, notes string) (*model.Job, error) {
	if !target.IsValid() {
		return nil, &ValidationError{Fields: map[string]string{"status": "is not a known job status"}}
	}
	trigger, ok := TriggerFor(target)
	if !ok {
		return nil, fmt.Errorf("%w: %s cannot be set manually", ErrIllegalTransition, target)
	}
	notes = sanitizeInput(notes)

	return s.update(ctx, id, func(job *model.Job) (*model.StatusChange, error) {
		if !mayTrigger(actor, job, trigger) {
			return nil, ErrForbidden
		}
		change, err := applyTransition(job, trigger, target, actor.UserID, notes)
		if err != nil {
			return nil, err
		}
		if target == model.JobCompleted {
			at := s.now().UTC()
			job.CompletedAt = &at
		}
		return change, nil
	})
}

// Complete marks an unloading job as done.
func (s *JobService) Complete(ctx context.Context, actor model.Actor, id, notes string) (*model.Job, error) {
	return s.UpdateStatus(ctx, actor, id, model.JobCompleted, notes)
}

// Cancel cancels a job that has not started moving.
func (s *JobService) Cancel(ctx context.Context, actor model.Actor, id, reason string) (*model.Job, error) {
	return s.UpdateStatus(ctx, actor, id, model.JobCancelled, reason)
}

func mayTrigger(actor model.Actor, job *model.Job, trigger Trigger) bool {
	if actor.Role == model.RoleAdmin {
		return true
	}
	switch trigger {
	case TriggerAdvance, TriggerComplete:
		return actor.Role == model.RoleDriver && job.DriverID != nil && *job.DriverID == actor.UserID
	case TriggerCancel:
		return actor.Role == model.RoleCustomer && job.CustomerID == actor.UserID
	}
	return false
}

// update runs mutate under the job lock, then records metrics and publishes
// the new status.
func (s *JobService) update(ctx context.Context, id string, mutate model.JobMutation) (*model.Job, error) {
	var change *model.StatusChange
	job, err := s.jobs.UpdateJob(ctx, id, func(job *model.Job) (*model.StatusChange, error) {
		c, err := mutate(job)
		change = c
		return c, err
	})
	if err != nil {
		return nil, classifyJobError(err)
	}

	if change != nil {
		s.metrics.RecordJobTransition(string(change.From), string(change.To))
		s.log.Info().
			Str("job_id", job.ID).
			Str("from", string(change.From)).
			Str("to", string(change.To)).
			Str("by", change.ChangedBy).
			Msg("job status changed")
		s.publish(ctx, job)
	}
	return job, nil
}

func (s *JobService) publish(ctx context.Context, job *model.Job) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishJobStatus(ctx, job); err != nil {
		s.log.Warn().Err(err).Str("job_id", job.ID).Msg("status publish failed")
	}
}

// classifyJobError maps storage errors to service errors.
func classifyJobError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrJobNotFound
	}
	return err
}
