package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/shiva/moveops/internal/model"
	"github.com/shiva/moveops/internal/repository"
)

// memStore is an in-memory JobStore, InvoiceStore, PaymentStore and
// LocationStore. A single mutex stands in for the row locks.
type memStore struct {
	mu        sync.Mutex
	jobs      map[string]model.Job
	invoices  map[string]model.Invoice
	payments  map[string]model.Payment // by provider id
	history   map[string][]model.StatusHistory
	locations map[string][]model.DriverLocation
}

func newMemStore() *memStore {
	return &memStore{
		jobs:      map[string]model.Job{},
		invoices:  map[string]model.Invoice{},
		payments:  map[string]model.Payment{},
		history:   map[string][]model.StatusHistory{},
		locations: map[string][]model.DriverLocation{},
	}
}

func (m *memStore) CreateJob(_ context.Context, job *model.Job, inv *model.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	job.CreatedAt, job.UpdatedAt = now, now
	inv.CreatedAt, inv.UpdatedAt = now, now
	m.jobs[job.ID] = *job
	m.invoices[inv.ID] = *inv
	return nil
}

func (m *memStore) GetJob(_ context.Context, id string) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &j, nil
}

func (m *memStore) GetJobDetail(_ context.Context, id string, limit int) (*model.JobDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	d := &model.JobDetail{Job: j, Payments: []model.Payment{}, Locations: []model.DriverLocation{}}
	for _, inv := range m.invoices {
		if inv.JobID == id {
			inv := inv
			d.Invoice = &inv
		}
	}
	for _, p := range m.payments {
		if p.JobID == id {
			d.Payments = append(d.Payments, p)
		}
	}
	d.History = append([]model.StatusHistory{}, m.history[id]...)
	locs := m.locations[id]
	for i := len(locs) - 1; i >= 0 && len(d.Locations) < limit; i-- {
		d.Locations = append(d.Locations, locs[i])
	}
	return d, nil
}

func (m *memStore) ListJobs(_ context.Context, f model.JobFilter) ([]model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Job{}
	for _, j := range m.jobs {
		if f.CustomerID != "" && j.CustomerID != f.CustomerID {
			continue
		}
		if f.DriverID != "" && (j.DriverID == nil || *j.DriverID != f.DriverID) {
			continue
		}
		if f.Status != "" && j.Status != f.Status {
			continue
		}
		out = append(out, j)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *memStore) UpdateJob(_ context.Context, id string, mutate model.JobMutation) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	before := j.Status
	change, err := mutate(&j)
	if err != nil {
		return nil, err
	}
	if change == nil && j.Status != before {
		return nil, repository.ErrUnrecordedStatusChange
	}
	j.UpdatedAt = time.Now().UTC()
	m.jobs[id] = j
	m.recordHistory(id, change)
	return &j, nil
}

func (m *memStore) recordHistory(jobID string, c *model.StatusChange) {
	if c == nil {
		return
	}
	m.history[jobID] = append(m.history[jobID], model.StatusHistory{
		JobID: jobID, FromStatus: c.From, ToStatus: c.To, ChangedBy: c.ChangedBy, Notes: c.Notes,
	})
}

func (m *memStore) GetInvoice(_ context.Context, id string) (*model.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &inv, nil
}

func (m *memStore) GetInvoiceByJob(_ context.Context, jobID string) (*model.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.invoiceByJob(jobID)
}

func (m *memStore) invoiceByJob(jobID string) (*model.Invoice, error) {
	for _, inv := range m.invoices {
		if inv.JobID == jobID {
			return &inv, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) ListInvoices(_ context.Context, f model.InvoiceFilter) ([]model.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Invoice{}
	for _, inv := range m.invoices {
		if f.CustomerID != "" && m.jobs[inv.JobID].CustomerID != f.CustomerID {
			continue
		}
		if f.Status != "" && inv.Status != f.Status {
			continue
		}
		out = append(out, inv)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out, nil
}

func (m *memStore) UpdateInvoice(_ context.Context, id string, mutate model.InvoiceMutation) (*model.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if err := mutate(&inv); err != nil {
		return nil, err
	}
	m.invoices[id] = inv
	return &inv, nil
}

func (m *memStore) CreatePayment(_ context.Context, p *model.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[p.InvoiceID]
	if !ok {
		return repository.ErrNotFound
	}
	if (p.Type == model.PaymentDeposit && inv.DepositPaid) || (p.Type == model.PaymentFinal && inv.FinalPaid) {
		return repository.ErrAlreadyPaid
	}
	m.payments[p.ProviderID] = *p
	return nil
}

func (m *memStore) ReconcilePayment(_ context.Context, providerID string, mutate model.LedgerMutation) (*model.Ledger, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[providerID]
	if !ok {
		return nil, false, repository.ErrNotFound
	}
	inv, err := m.invoiceByJob(p.JobID)
	if err != nil {
		return nil, false, err
	}
	l := &model.Ledger{Payment: p, Job: m.jobs[p.JobID], Invoice: *inv}
	before := l.Job.Status

	update, err := mutate(l)
	if err != nil {
		return nil, false, err
	}
	if update == nil {
		return &model.Ledger{Payment: p, Job: m.jobs[p.JobID], Invoice: *inv}, false, nil
	}
	if update.Change == nil && l.Job.Status != before {
		return nil, false, repository.ErrUnrecordedStatusChange
	}
	m.payments[providerID] = l.Payment
	m.jobs[l.Job.ID] = l.Job
	m.invoices[l.Invoice.ID] = l.Invoice
	m.recordHistory(l.Job.ID, update.Change)
	return l, true, nil
}

func (m *memStore) RecordLocation(_ context.Context, loc model.DriverLocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations[loc.JobID] = append(m.locations[loc.JobID], loc)
	return nil
}

func (m *memStore) LatestLocation(_ context.Context, jobID string) (*model.DriverLocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	locs := m.locations[jobID]
	if len(locs) == 0 {
		return nil, repository.ErrNotFound
	}
	l := locs[len(locs)-1]
	return &l, nil
}

// ─── Collaborator mocks ─────────────────────────────────────

type MockGeocoder struct{ mock.Mock }

func (m *MockGeocoder) Geocode(ctx context.Context, address string) (*model.Place, error) {
	args := m.Called(ctx, address)
	p, _ := args.Get(0).(*model.Place)
	return p, args.Error(1)
}

func (m *MockGeocoder) Route(ctx context.Context, origin, destination model.Location) (*model.Route, error) {
	args := m.Called(ctx, origin, destination)
	r, _ := args.Get(0).(*model.Route)
	return r, args.Error(1)
}

type MockNotifier struct{ mock.Mock }

func (m *MockNotifier) BookingConfirmed(ctx context.Context, n model.BookingConfirmation) error {
	return m.Called(ctx, n).Error(0)
}

func (m *MockNotifier) InvoiceReady(ctx context.Context, n model.InvoiceReady) error {
	return m.Called(ctx, n).Error(0)
}

type MockProvider struct{ mock.Mock }

func (m *MockProvider) CreateIntent(ctx context.Context, req model.IntentRequest) (*model.Intent, error) {
	args := m.Called(ctx, req)
	i, _ := args.Get(0).(*model.Intent)
	return i, args.Error(1)
}

type MockVerifier struct{ mock.Mock }

func (m *MockVerifier) ParseEvent(payload []byte, signature string) (*model.PaymentEvent, error) {
	args := m.Called(payload, signature)
	ev, _ := args.Get(0).(*model.PaymentEvent)
	return ev, args.Error(1)
}

// recordingPublisher keeps every published job.
type recordingPublisher struct {
	mu   sync.Mutex
	jobs []model.Job
}

func (p *recordingPublisher) PublishJobStatus(_ context.Context, job *model.Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.jobs = append(p.jobs, *job)
	return nil
}

func (p *recordingPublisher) statuses() []model.JobStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.JobStatus, len(p.jobs))
	for i, j := range p.jobs {
		out[i] = j.Status
	}
	return out
}

// ─── Fixtures ───────────────────────────────────────────────

var (
	customer  = model.Actor{UserID: "cust-1", Role: model.RoleCustomer}
	stranger  = model.Actor{UserID: "cust-2", Role: model.RoleCustomer}
	driver    = model.Actor{UserID: "drv-1", Role: model.RoleDriver}
	admin     = model.Actor{UserID: "admin-1", Role: model.RoleAdmin}
	otherDrvr = model.Actor{UserID: "drv-2", Role: model.RoleDriver}
)

// seedJob stores a job in status with its invoice and returns both ids.
func seedJob(m *memStore, status model.JobStatus) (jobID, invoiceID string) {
	jobID, invoiceID = "job-1", "inv-1"
	driverID := driver.UserID
	j := model.Job{
		ID:             jobID,
		JobNumber:      "JM00000001",
		CustomerID:     customer.UserID,
		Contact:        model.Contact{Name: "Ada Lovelace", Phone: "555-123-4567", Email: "ada@example.com"},
		Status:         status,
		MoveType:       model.MoveStandard,
		Pickup:         model.Place{Address: "1 Start St", Lat: 41.8781, Lng: -87.6298},
		Dropoff:        model.Place{Address: "9 End Ave", Lat: 41.9742, Lng: -87.9073},
		EstimatedTotal: 513.60,
		DepositAmount:  50,
	}
	switch status {
	case model.JobPending, model.JobConfirmed:
	default:
		j.DriverID = &driverID
	}
	if status != model.JobPending && status != model.JobCancelled {
		j.DepositPaid = true
	}
	inv := model.Invoice{
		ID:            invoiceID,
		JobID:         jobID,
		InvoiceNumber: "INV-JM00000001",
		Subtotal:      480,
		TaxAmount:     33.60,
		Total:         513.60,
		DepositAmount: 50,
		FinalAmount:   463.60,
		Status:        model.InvoiceDraft,
		DepositPaid:   j.DepositPaid,
	}
	if inv.DepositPaid {
		inv.Status = model.InvoicePartial
	}
	_ = m.CreateJob(context.Background(), &j, &inv)
	return jobID, invoiceID
}
