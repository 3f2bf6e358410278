package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/shiva/moveops/internal/metrics"
	"github.com/shiva/moveops/internal/model"
	"github.com/shiva/moveops/internal/repository"
	"github.com/shiva/moveops/pkg/geo"
)

// TrackingService ingests driver location fixes and serves the live view.
type TrackingService struct {
	jobs      JobStore
	locations LocationStore
	metrics   metrics.Sink
	log       zerolog.Logger
}

// NewTrackingService creates a tracking service.
func NewTrackingService(jobs JobStore, locations LocationStore, sink metrics.Sink, log zerolog.Logger) *TrackingService {
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &TrackingService{jobs: jobs, locations: locations, metrics: sink, log: log}
}

// RecordFix stores a fix reported by a driver. The driver must be assigned
// to the job and the job must be on the road (SCHEDULED through UNLOADING).
func (s *TrackingService) RecordFix(ctx context.Context, fix model.DriverLocation) error {
	if !geo.Valid(model.Location{Lat: fix.Lat, Lng: fix.Lng}) {
		s.metrics.RecordLocationFix("invalid")
		return &ValidationError{Fields: map[string]string{"lat/lng": "out of range"}}
	}

	job, err := s.jobs.GetJob(ctx, fix.JobID)
	if err != nil {
		s.metrics.RecordLocationFix("rejected")
		return classifyJobError(err)
	}
	if job.DriverID == nil || *job.DriverID != fix.DriverID {
		s.metrics.RecordLocationFix("rejected")
		return ErrForbidden
	}
	if !onTheRoad(job.Status) {
		s.metrics.RecordLocationFix("rejected")
		return fmt.Errorf("%w: %s", ErrJobNotActive, job.Status)
	}
	if fix.Status == "" {
		fix.Status = string(job.Status)
	}

	if err := s.locations.RecordLocation(ctx, fix); err != nil {
		s.metrics.RecordLocationFix("error")
		return fmt.Errorf("tracking: record: %w", err)
	}
	s.metrics.RecordLocationFix("recorded")
	return nil
}

// Latest returns the most recent fix for a job and the straight-line miles
// left to the dropoff.
func (s *TrackingService) Latest(ctx context.Context, actor model.Actor, jobID string) (*model.LiveLocation, error) {
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, classifyJobError(err)
	}
	if !job.CanView(actor) {
		return nil, ErrForbidden
	}

	loc, err := s.locations.LatestLocation(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrLocationNotFound
		}
		return nil, fmt.Errorf("tracking: latest: %w", err)
	}

	here := model.Location{Lat: loc.Lat, Lng: loc.Lng}
	return &model.LiveLocation{
		Location:       *loc,
		MilesRemaining: geo.HaversineMiles(here, job.Dropoff.Location()),
		ETAMinutes:     geo.EstimateMinutes(here, job.Dropoff.Location()),
	}, nil
}

func onTheRoad(s model.JobStatus) bool {
	switch s {
	case model.JobScheduled, model.JobHeadingToPickup, model.JobAtPickup, model.JobLoading,
		model.JobInTransit, model.JobAtDropoff, model.JobUnloading:
		return true
	}
	return false
}
