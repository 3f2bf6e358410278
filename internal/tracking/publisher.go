package tracking

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shiva/moveops/internal/model"
)

// StatusMessage is published on <prefix>/jobs/{jobId}/status.
type StatusMessage struct {
	JobID     string          `json:"job_id"`
	JobNumber string          `json:"job_number"`
	Status    model.JobStatus `json:"status"`
	DriverID  *string         `json:"driver_id,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// StatusPublisher fans job status changes out to subscribers. Messages are
// retained so a late subscriber sees the current status immediately.
type StatusPublisher struct {
	broker *Broker
}

// NewStatusPublisher creates a publisher on broker.
func NewStatusPublisher(broker *Broker) *StatusPublisher {
	return &StatusPublisher{broker: broker}
}

// PublishJobStatus publishes the job's current status.
func (p *StatusPublisher) PublishJobStatus(ctx context.Context, job *model.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(StatusMessage{
		JobID:     job.ID,
		JobNumber: job.JobNumber,
		Status:    job.Status,
		DriverID:  job.DriverID,
		UpdatedAt: job.UpdatedAt,
	})
	if err != nil {
		return err
	}
	return p.broker.publish(p.broker.Topic("jobs", job.ID, "status"), payload, true)
}
