package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shiva/moveops/internal/model"
)

func newPaymentFixture() (*memStore, *MockProvider, *PaymentService) {
	store := newMemStore()
	provider := &MockProvider{}
	svc := NewPaymentService(store, store, store, provider, nil, zerolog.Nop(), DefaultPaymentConfig())
	return store, provider, svc
}

func TestCreateIntent_Deposit(t *testing.T) {
	store, provider, svc := newPaymentFixture()
	jobID, invID := seedJob(store, model.JobPending)

	provider.On("CreateIntent", mock.Anything, mock.MatchedBy(func(r model.IntentRequest) bool {
		meta := r.Purpose.Metadata()
		return r.AmountCents == 5000 &&
			r.Currency == "usd" &&
			r.Description == "Deposit Payment for Job #JM00000001" &&
			r.ReceiptEmail == "ada@example.com" &&
			meta[model.MetaJobID] == jobID &&
			meta[model.MetaPaymentType] == "deposit"
	})).Return(&model.Intent{ProviderID: "pi_1", ClientSecret: "pi_1_secret"}, nil)

	intent, err := svc.CreateIntent(context.Background(), customer, jobID, model.PaymentDeposit)
	require.NoError(t, err)
	assert.Equal(t, "pi_1_secret", intent.ClientSecret)

	p, ok := store.payments["pi_1"]
	require.True(t, ok)
	assert.Equal(t, model.PaymentPending, p.Status)
	assert.Equal(t, invID, p.InvoiceID)
	assert.Equal(t, 50.0, p.Amount)
	assert.Equal(t, model.PaymentMethodStripe, p.Method)
	provider.AssertExpectations(t)
}

func TestCreateIntent_Final(t *testing.T) {
	store, provider, svc := newPaymentFixture()
	jobID, _ := seedJob(store, model.JobCompleted)

	provider.On("CreateIntent", mock.Anything, mock.MatchedBy(func(r model.IntentRequest) bool {
		return r.AmountCents == 46360 && r.Purpose.Type() == model.PaymentFinal
	})).Return(&model.Intent{ProviderID: "pi_2", ClientSecret: "s"}, nil)

	_, err := svc.CreateIntent(context.Background(), admin, jobID, model.PaymentFinal)
	require.NoError(t, err)
	assert.Equal(t, 463.60, store.payments["pi_2"].Amount)
}

func TestCreateIntent_DepositAlreadyPaid(t *testing.T) {
	store, provider, svc := newPaymentFixture()
	jobID, _ := seedJob(store, model.JobConfirmed)

	_, err := svc.CreateIntent(context.Background(), customer, jobID, model.PaymentDeposit)
	assert.ErrorIs(t, err, ErrDepositAlreadyPaid)
	assert.Empty(t, store.payments)
	provider.AssertNotCalled(t, "CreateIntent", mock.Anything, mock.Anything)
}

func TestCreateIntent_FinalBeforeCompletion(t *testing.T) {
	store, provider, svc := newPaymentFixture()
	jobID, _ := seedJob(store, model.JobUnloading)

	_, err := svc.CreateIntent(context.Background(), customer, jobID, model.PaymentFinal)
	assert.ErrorIs(t, err, ErrJobNotCompleted)
	provider.AssertNotCalled(t, "CreateIntent", mock.Anything, mock.Anything)
}

func TestCreateIntent_FinalAlreadyPaid(t *testing.T) {
	store, _, svc := newPaymentFixture()
	jobID, invID := seedJob(store, model.JobPaid)
	inv := store.invoices[invID]
	inv.FinalPaid = true
	store.invoices[invID] = inv

	_, err := svc.CreateIntent(context.Background(), customer, jobID, model.PaymentFinal)
	assert.ErrorIs(t, err, ErrFinalAlreadyPaid)
}

func TestCreateIntent_DepositOnCancelledJob(t *testing.T) {
	store, _, svc := newPaymentFixture()
	jobID, _ := seedJob(store, model.JobCancelled)

	_, err := svc.CreateIntent(context.Background(), customer, jobID, model.PaymentDeposit)
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestCreateIntent_AmountOutOfRange(t *testing.T) {
	store, _, svc := newPaymentFixture()
	svc.cfg.MaxAmount = 400
	jobID, _ := seedJob(store, model.JobCompleted)

	_, err := svc.CreateIntent(context.Background(), customer, jobID, model.PaymentFinal)
	assert.ErrorIs(t, err, ErrAmountOutOfRange)
}

func TestCreateIntent_Rejections(t *testing.T) {
	store, _, svc := newPaymentFixture()
	jobID, _ := seedJob(store, model.JobPending)
	ctx := context.Background()

	_, err := svc.CreateIntent(ctx, stranger, jobID, model.PaymentDeposit)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.CreateIntent(ctx, driver, jobID, model.PaymentDeposit)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.CreateIntent(ctx, customer, jobID, "tip")
	fields := validationFields(t, err)
	assert.Contains(t, fields, "payment_type")

	_, err = svc.CreateIntent(ctx, customer, "missing", model.PaymentDeposit)
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestCreateIntent_ProviderFailure(t *testing.T) {
	store, provider, svc := newPaymentFixture()
	jobID, _ := seedJob(store, model.JobPending)
	provider.On("CreateIntent", mock.Anything, mock.Anything).Return(nil, errors.New("card_declined"))

	_, err := svc.CreateIntent(context.Background(), customer, jobID, model.PaymentDeposit)
	assert.ErrorIs(t, err, ErrUpstream)
	assert.Empty(t, store.payments)
}

// racingProvider marks the deposit paid while the intent is being created,
// the way a concurrent webhook would.
type racingProvider struct {
	store *memStore
	invID string
}

func (p *racingProvider) CreateIntent(context.Context, model.IntentRequest) (*model.Intent, error) {
	p.store.mu.Lock()
	inv := p.store.invoices[p.invID]
	inv.DepositPaid = true
	p.store.invoices[p.invID] = inv
	p.store.mu.Unlock()
	return &model.Intent{ProviderID: "pi_late"}, nil
}

func TestCreateIntent_PaidConcurrently(t *testing.T) {
	store := newMemStore()
	jobID, invID := seedJob(store, model.JobPending)
	svc := NewPaymentService(store, store, store, &racingProvider{store: store, invID: invID},
		nil, zerolog.Nop(), DefaultPaymentConfig())

	_, err := svc.CreateIntent(context.Background(), customer, jobID, model.PaymentDeposit)
	assert.ErrorIs(t, err, ErrDepositAlreadyPaid)
	assert.Empty(t, store.payments)
}
