// Package tasks runs notification delivery as asynq background tasks.
package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/shiva/moveops/config"
	"github.com/shiva/moveops/internal/model"
)

// TypeEmailDelivery is the task type for rendered notification emails.
const TypeEmailDelivery = "email:deliver"

// Template ids.
const (
	TemplateBookingConfirmation = "booking_confirmation"
	TemplateInvoiceReady        = "invoice_ready"
)

// EmailTaskPayload is the serialized task body. Data is the template data of
// the named template.
type EmailTaskPayload struct {
	To       string          `json:"to"`
	Template string          `json:"template"`
	Data     json.RawMessage `json:"data"`
}

// ─── Task Client (Enqueuing tasks) ──────────────────────────

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// NewClient creates an asynq client sharing the application's Redis pool.
func NewClient(rdb *redis.Client) *asynq.Client {
	return asynq.NewClientFromRedisClient(rdb)
}

// Notifier enqueues notification emails.
type Notifier struct {
	client   Enqueuer
	queue    string
	maxRetry int
	log      zerolog.Logger
}

// NewNotifier creates a notifier that enqueues onto cfg.Queue.
func NewNotifier(client Enqueuer, cfg config.WorkerConfig, log zerolog.Logger) *Notifier {
	return &Notifier{client: client, queue: cfg.Queue, maxRetry: cfg.MaxRetry, log: log}
}

// BookingConfirmed enqueues the booking confirmation email.
func (n *Notifier) BookingConfirmed(ctx context.Context, c model.BookingConfirmation) error {
	return n.enqueue(ctx, c.To, TemplateBookingConfirmation, c)
}

// InvoiceReady enqueues the invoice email.
func (n *Notifier) InvoiceReady(ctx context.Context, r model.InvoiceReady) error {
	return n.enqueue(ctx, r.To, TemplateInvoiceReady, r)
}

func (n *Notifier) enqueue(ctx context.Context, to, template string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("tasks: marshal %s data: %w", template, err)
	}
	payload, err := json.Marshal(EmailTaskPayload{To: to, Template: template, Data: raw})
	if err != nil {
		return fmt.Errorf("tasks: marshal payload: %w", err)
	}

	info, err := n.client.EnqueueContext(ctx, asynq.NewTask(TypeEmailDelivery, payload),
		asynq.Queue(n.queue),
		asynq.MaxRetry(n.maxRetry),
		asynq.Timeout(30*time.Second),
	)
	if err != nil {
		return fmt.Errorf("tasks: enqueue %s: %w", template, err)
	}
	n.log.Debug().Str("task_id", info.ID).Str("template", template).Msg("email enqueued")
	return nil
}

// ─── Task Server (Processing tasks) ─────────────────────────

// NewServer creates an asynq server and a mux with the email handler
// registered. The caller runs it with srv.Run(mux).
func NewServer(rdb *redis.Client, cfg config.WorkerConfig, p *Processor, log zerolog.Logger) (*asynq.Server, *asynq.ServeMux) {
	srv := asynq.NewServerFromRedisClient(rdb, asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues:      map[string]int{cfg.Queue: 1},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			log.Error().Err(err).Str("type", task.Type()).Msg("task failed")
		}),
		Logger: asynqLogger{log: log},
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeEmailDelivery, p.HandleEmailDeliveryTask)
	return srv, mux
}

// asynqLogger adapts zerolog to asynq.Logger.
type asynqLogger struct {
	log zerolog.Logger
}

func (l asynqLogger) Debug(args ...interface{}) { l.log.Debug().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...interface{})  { l.log.Info().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...interface{})  { l.log.Warn().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...interface{}) { l.log.Error().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Fatal(args ...interface{}) { l.log.Fatal().Msg(fmt.Sprint(args...)) }
