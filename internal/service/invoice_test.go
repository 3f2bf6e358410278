package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shiva/moveops/internal/model"
)

func newInvoiceFixture(status model.JobStatus) (*memStore, *MockNotifier, *InvoiceService, string) {
	store := newMemStore()
	_, invID := seedJob(store, status)
	notifier := &MockNotifier{}
	svc := NewInvoiceService(store, store, notifier, "https://moveops.example/", zerolog.Nop())
	svc.now = func() time.Time { return testNow }
	return store, notifier, svc, invID
}

func TestInvoiceSend(t *testing.T) {
	store, notifier, svc, invID := newInvoiceFixture(model.JobCompleted)
	completed := time.Date(2026, 2, 27, 16, 0, 0, 0, time.UTC)
	j := store.jobs["job-1"]
	j.CompletedAt = &completed
	store.jobs["job-1"] = j

	notifier.On("InvoiceReady", mock.Anything, model.InvoiceReady{
		To:             "ada@example.com",
		CustomerName:   "Ada Lovelace",
		JobNumber:      "JM00000001",
		InvoiceNumber:  "INV-JM00000001",
		Total:          513.60,
		DepositAmount:  50,
		FinalAmount:    463.60,
		InvoiceURL:     "https://moveops.example/invoices/" + invID,
		PickupAddress:  "1 Start St",
		DropoffAddress: "9 End Ave",
		CompletedDate:  "February 27, 2026",
	}).Return(nil)

	inv, err := svc.Send(context.Background(), admin, invID)
	require.NoError(t, err)
	assert.Equal(t, model.InvoicePartial, inv.Status, "deposit already paid")
	require.NotNil(t, inv.SentAt)
	assert.True(t, testNow.Equal(*inv.SentAt))
	assert.Equal(t, model.InvoicePartial, store.invoices[invID].Status)
	notifier.AssertExpectations(t)
}

func TestInvoiceSend_DraftBecomesSent(t *testing.T) {
	store, notifier, svc, invID := newInvoiceFixture(model.JobPending)
	require.Equal(t, model.InvoiceDraft, store.invoices[invID].Status)
	notifier.On("InvoiceReady", mock.Anything, mock.Anything).Return(nil)

	inv, err := svc.Send(context.Background(), admin, invID)
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceSent, inv.Status)
	require.NotNil(t, inv.SentAt)
}

func TestInvoiceSend_Rejections(t *testing.T) {
	store, notifier, svc, invID := newInvoiceFixture(model.JobCompleted)
	ctx := context.Background()

	_, err := svc.Send(ctx, customer, invID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Send(ctx, admin, "missing")
	assert.ErrorIs(t, err, ErrInvoiceNotFound)

	inv := store.invoices[invID]
	inv.Status = model.InvoicePaid
	store.invoices[invID] = inv
	_, err = svc.Send(ctx, admin, invID)
	assert.ErrorIs(t, err, ErrInvoiceNotSendable)

	notifier.AssertNotCalled(t, "InvoiceReady", mock.Anything, mock.Anything)
}

func TestInvoiceSend_EnqueueFailureLeavesStatus(t *testing.T) {
	store, notifier, svc, invID := newInvoiceFixture(model.JobCompleted)
	notifier.On("InvoiceReady", mock.Anything, mock.Anything).Return(errors.New("redis down"))

	_, err := svc.Send(context.Background(), admin, invID)
	assert.Error(t, err)
	assert.Equal(t, model.InvoicePartial, store.invoices[invID].Status)
	assert.Nil(t, store.invoices[invID].SentAt)
}

func TestInvoiceGet_OwnerMarksViewed(t *testing.T) {
	store, _, svc, invID := newInvoiceFixture(model.JobCompleted)
	inv := store.invoices[invID]
	inv.Status = model.InvoiceSent
	store.invoices[invID] = inv
	ctx := context.Background()

	// Admin reads do not count as a view.
	got, err := svc.Get(ctx, admin, invID)
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceSent, got.Status)

	got, err = svc.Get(ctx, customer, invID)
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceViewed, got.Status)
	require.NotNil(t, got.ViewedAt)

	_, err = svc.Get(ctx, stranger, invID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Get(ctx, driver, invID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestInvoiceList(t *testing.T) {
	_, _, svc, _ := newInvoiceFixture(model.JobCompleted)
	ctx := context.Background()

	list, err := svc.List(ctx, customer, "")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	list, err = svc.List(ctx, stranger, "")
	require.NoError(t, err)
	assert.Empty(t, list)

	list, err = svc.List(ctx, admin, model.InvoicePaid)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = svc.List(ctx, driver, "")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.List(ctx, admin, "LOST")
	validationFields(t, err)
}
