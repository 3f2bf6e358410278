package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/shiva/moveops/internal/model"
)

// LocationRepository stores driver location fixes. History goes to Postgres;
// the latest fix per job is also kept in Redis for the live tracking view.
type LocationRepository struct {
	pool  *pgxpool.Pool
	redis *redis.Client
	ttl   time.Duration
}

// NewLocationRepository creates a new location repository. ttl bounds how
// long a latest fix stays in Redis without a newer one.
func NewLocationRepository(pool *pgxpool.Pool, redis *redis.Client, ttl time.Duration) *LocationRepository {
	return &LocationRepository{pool: pool, redis: redis, ttl: ttl}
}

const redisLatestLocationPrefix = "tracking:latest:"

// RecordLocation appends a fix to the history table and refreshes the cached
// latest fix.
func (r *LocationRepository) RecordLocation(ctx context.Context, loc model.DriverLocation) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO job_locations (job_id, driver_id, lat, lng, accuracy, heading, speed, status, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, loc.JobID, loc.DriverID, loc.Lat, loc.Lng, loc.Accuracy, loc.Heading, loc.Speed, loc.Status, loc.RecordedAt)
	if err != nil {
		return fmt.Errorf("record location for job %s: %w", loc.JobID, err)
	}

	// Cache write is fire-and-forget; the slow path below recovers from a miss.
	if payload, err := json.Marshal(loc); err == nil {
		_ = r.redis.Set(ctx, redisLatestLocationPrefix+loc.JobID, payload, r.ttl).Err()
	}
	return nil
}

// LatestLocation returns the most recent fix for a job.
//
// Strategy:
//  1. Try Redis first (fast path).
//  2. On a miss, read the newest history row and re-cache it.
func (r *LocationRepository) LatestLocation(ctx context.Context, jobID string) (*model.DriverLocation, error) {
	// ── Fast path: Redis ────────────────────────────────
	raw, err := r.redis.Get(ctx, redisLatestLocationPrefix+jobID).Bytes()
	if err == nil {
		var loc model.DriverLocation
		if json.Unmarshal(raw, &loc) == nil {
			return &loc, nil
		}
	}

	// ── Slow path: Postgres ─────────────────────────────
	locs, err := listLocations(ctx, r.pool, jobID, 1)
	if err != nil {
		return nil, err
	}
	if len(locs) == 0 {
		return nil, fmt.Errorf("latest location for job %s: %w", jobID, ErrNotFound)
	}
	if payload, err := json.Marshal(locs[0]); err == nil {
		_ = r.redis.Set(ctx, redisLatestLocationPrefix+jobID, payload, r.ttl).Err()
	}
	return &locs[0], nil
}

// listLocations returns up to limit fixes for a job, newest first.
func listLocations(ctx context.Context, pool *pgxpool.Pool, jobID string, limit int) ([]model.DriverLocation, error) {
	rows, err := pool.Query(ctx, `
		SELECT driver_id, job_id, lat, lng, accuracy, heading, speed, status, recorded_at
		FROM job_locations
		WHERE job_id = $1
		ORDER BY recorded_at DESC
		LIMIT $2
	`, jobID, limit)
	if err != nil {
		return nil, fmt.Errorf("list locations %s: %w", jobID, err)
	}

	locs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.DriverLocation, error) {
		var l model.DriverLocation
		err := row.Scan(&l.DriverID, &l.JobID, &l.Lat, &l.Lng, &l.Accuracy, &l.Heading, &l.Speed, &l.Status, &l.RecordedAt)
		return l, err
	})
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("list locations %s: scan: %w", jobID, err)
	}
	if locs == nil {
		locs = []model.DriverLocation{}
	}
	return locs, nil
}
