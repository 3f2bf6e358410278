package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shiva/moveops/config"
	"github.com/shiva/moveops/internal/model"
)

// --- Mocks ---

type MockEnqueuer struct {
	mock.Mock
}

func (m *MockEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	args := m.Called(ctx, task)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*asynq.TaskInfo), args.Error(1)
}

type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	args := m.Called(ctx, to, subject, rawMessage)
	return args.Error(0)
}

// --- Notifier ---

func TestNotifier_BookingConfirmedEnqueuesEmailTask(t *testing.T) {
	enq := new(MockEnqueuer)
	n := NewNotifier(enq, config.WorkerConfig{Queue: "notifications", MaxRetry: 3}, zerolog.Nop())

	var captured *asynq.Task
	enq.On("EnqueueContext", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { captured = args.Get(1).(*asynq.Task) }).
		Return(&asynq.TaskInfo{ID: "task-1"}, nil)

	err := n.BookingConfirmed(context.Background(), model.BookingConfirmation{
		To: "c@example.com", CustomerName: "Casey", JobNumber: "JM00000001",
	})
	require.NoError(t, err)
	require.NotNil(t, captured)
	assert.Equal(t, TypeEmailDelivery, captured.Type())

	var payload EmailTaskPayload
	require.NoError(t, json.Unmarshal(captured.Payload(), &payload))
	assert.Equal(t, "c@example.com", payload.To)
	assert.Equal(t, TemplateBookingConfirmation, payload.Template)
	assert.Contains(t, string(payload.Data), `"job_number":"JM00000001"`)
	enq.AssertExpectations(t)
}

func TestNotifier_EnqueueFailure(t *testing.T) {
	enq := new(MockEnqueuer)
	n := NewNotifier(enq, config.WorkerConfig{Queue: "notifications"}, zerolog.Nop())
	enq.On("EnqueueContext", mock.Anything, mock.Anything).Return(nil, errors.New("redis down"))

	err := n.InvoiceReady(context.Background(), model.InvoiceReady{To: "c@example.com"})
	assert.ErrorContains(t, err, "redis down")
}

// --- Processor ---

func emailTask(t *testing.T, template string, data any) *asynq.Task {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	payload, err := json.Marshal(EmailTaskPayload{To: "c@example.com", Template: template, Data: raw})
	require.NoError(t, err)
	return asynq.NewTask(TypeEmailDelivery, payload)
}

func TestHandleEmailDeliveryTask_BookingConfirmation(t *testing.T) {
	sender := new(MockEmailSender)
	p := NewProcessor(sender, "MoveOps <no-reply@moveops.local>", zerolog.Nop())
	p.now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }

	task := emailTask(t, TemplateBookingConfirmation, model.BookingConfirmation{
		To:             "c@example.com",
		CustomerName:   "Casey",
		JobNumber:      "JM12345678",
		PickupAddress:  "1 Old St",
		DropoffAddress: "2 New Ave",
		ScheduledDate:  "2026-03-10",
		ScheduledTime:  "09:00",
		EstimatedTotal: 513.6,
		DepositAmount:  50,
	})

	sender.On("Send", mock.Anything, []string{"c@example.com"}, "Booking Confirmed - Job #JM12345678",
		mock.MatchedBy(func(raw []byte) bool {
			s := string(raw)
			return strings.Contains(s, "Hi Casey,") &&
				strings.Contains(s, "Estimated total: $513.60") &&
				strings.Contains(s, "Deposit due:     $50.00") &&
				strings.Contains(s, "From: MoveOps <no-reply@moveops.local>")
		})).Return(nil)

	require.NoError(t, p.HandleEmailDeliveryTask(context.Background(), task))
	sender.AssertExpectations(t)
}

func TestHandleEmailDeliveryTask_InvoiceReady(t *testing.T) {
	sender := new(MockEmailSender)
	p := NewProcessor(sender, "billing@moveops.local", zerolog.Nop())

	task := emailTask(t, TemplateInvoiceReady, model.InvoiceReady{
		To:            "c@example.com",
		CustomerName:  "Casey",
		JobNumber:     "JM12345678",
		InvoiceNumber: "INV-JM12345678",
		Total:         513.6,
		DepositAmount: 50,
		FinalAmount:   463.6,
		InvoiceURL:    "https://moveops.example/invoices/inv-1",
		CompletedDate: "March 10, 2026",
	})

	sender.On("Send", mock.Anything, []string{"c@example.com"}, "Invoice INV-JM12345678 for Job #JM12345678",
		mock.MatchedBy(func(raw []byte) bool {
			s := string(raw)
			return strings.Contains(s, "Balance due:  $463.60") &&
				strings.Contains(s, "Completed: March 10, 2026") &&
				strings.Contains(s, "https://moveops.example/invoices/inv-1")
		})).Return(nil)

	require.NoError(t, p.HandleEmailDeliveryTask(context.Background(), task))
	sender.AssertExpectations(t)
}

func TestHandleEmailDeliveryTask_SkipRetry(t *testing.T) {
	p := NewProcessor(new(MockEmailSender), "x@y.z", zerolog.Nop())

	err := p.HandleEmailDeliveryTask(context.Background(), asynq.NewTask(TypeEmailDelivery, []byte("{not json")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = p.HandleEmailDeliveryTask(context.Background(), emailTask(t, "welcome", map[string]string{}))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleEmailDeliveryTask_SendFailureRetries(t *testing.T) {
	sender := new(MockEmailSender)
	p := NewProcessor(sender, "x@y.z", zerolog.Nop())
	sender.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("smtp: 421"))

	err := p.HandleEmailDeliveryTask(context.Background(),
		emailTask(t, TemplateInvoiceReady, model.InvoiceReady{To: "c@example.com"}))
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}
