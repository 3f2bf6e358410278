package model

import (
	"errors"
	"fmt"
)

// PaymentType distinguishes the two halves of a job's payment split.
type PaymentType string

const (
	PaymentDeposit PaymentType = "deposit"
	PaymentFinal   PaymentType = "final"
)

// Metadata keys attached to provider transactions.
const (
	MetaJobID       = "jobId"
	MetaJobNumber   = "jobNumber"
	MetaCustomerID  = "customerId"
	MetaPaymentType = "paymentType"
)

var (
	// ErrMissingJobID is returned when provider metadata carries no job id.
	ErrMissingJobID = errors.New("payment metadata: missing jobId")

	// ErrUnknownPaymentType is returned for a paymentType other than deposit or final.
	ErrUnknownPaymentType = errors.New("payment metadata: unknown paymentType")
)

// PaymentPurpose says what a provider transaction pays for. It is a closed
// set: DepositPayment or FinalPayment.
type PaymentPurpose interface {
	Type() PaymentType
	JobID() string
	Metadata() map[string]string
	isPaymentPurpose()
}

// DepositPayment is the booking-time deposit for a job.
type DepositPayment struct {
	Job        string
	JobNumber  string
	CustomerID string
}

func (DepositPayment) Type() PaymentType { return PaymentDeposit }
func (d DepositPayment) JobID() string   { return d.Job }
func (DepositPayment) isPaymentPurpose() {}

// Metadata returns the provider metadata for the deposit.
func (d DepositPayment) Metadata() map[string]string {
	return purposeMetadata(PaymentDeposit, d.Job, d.JobNumber, d.CustomerID)
}

// FinalPayment is the post-completion balance for a job.
type FinalPayment struct {
	Job        string
	JobNumber  string
	CustomerID string
}

func (FinalPayment) Type() PaymentType { return PaymentFinal }
func (f FinalPayment) JobID() string   { return f.Job }
func (FinalPayment) isPaymentPurpose() {}

// Metadata returns the provider metadata for the final payment.
func (f FinalPayment) Metadata() map[string]string {
	return purposeMetadata(PaymentFinal, f.Job, f.JobNumber, f.CustomerID)
}

// NewPaymentPurpose builds the purpose for a job and payment type.
func NewPaymentPurpose(t PaymentType, job *Job) (PaymentPurpose, error) {
	switch t {
	case PaymentDeposit:
		return DepositPayment{Job: job.ID, JobNumber: job.JobNumber, CustomerID: job.CustomerID}, nil
	case PaymentFinal:
		return FinalPayment{Job: job.ID, JobNumber: job.JobNumber, CustomerID: job.CustomerID}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownPaymentType, t)
}

// ParsePaymentPurpose decodes provider metadata.
func ParsePaymentPurpose(meta map[string]string) (PaymentPurpose, error) {
	jobID := meta[MetaJobID]
	if jobID == "" {
		return nil, ErrMissingJobID
	}
	switch PaymentType(meta[MetaPaymentType]) {
	case PaymentDeposit:
		return DepositPayment{Job: jobID, JobNumber: meta[MetaJobNumber], CustomerID: meta[MetaCustomerID]}, nil
	case PaymentFinal:
		return FinalPayment{Job: jobID, JobNumber: meta[MetaJobNumber], CustomerID: meta[MetaCustomerID]}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownPaymentType, meta[MetaPaymentType])
}

func purposeMetadata(t PaymentType, jobID, jobNumber, customerID string) map[string]string {
	return map[string]string{
		MetaJobID:       jobID,
		MetaJobNumber:   jobNumber,
		MetaCustomerID:  customerID,
		MetaPaymentType: string(t),
	}
}

// ─── Provider events ────────────────────────────────────────

// PaymentEventKind is the provider event type string.
type PaymentEventKind string

const (
	EventPaymentSucceeded PaymentEventKind = "payment_intent.succeeded"
	EventPaymentFailed    PaymentEventKind = "payment_intent.payment_failed"
	EventChargeRefunded   PaymentEventKind = "charge.refunded"
)

// PaymentEvent is a verified, decoded provider webhook event.
type PaymentEvent struct {
	ID            string
	Kind          PaymentEventKind
	ProviderID    string         // Payment intent id the event refers to.
	Purpose       PaymentPurpose // Nil for refunds, whose charge carries no metadata we rely on.
	ReceiptURL    string
	FailureReason string
}

// ─── Ledger ─────────────────────────────────────────────────

// Ledger is the Payment/Job/Invoice triple a payment event updates together.
type Ledger struct {
	Payment Payment
	Job     Job
	Invoice Invoice
}

// StatusChange describes a job status change to record in history.
type StatusChange struct {
	From      JobStatus
	To        JobStatus
	ChangedBy string
	Notes     string
}

// LedgerUpdate is returned by a LedgerMutation that changed the ledger.
// A nil update means the event was already applied.
type LedgerUpdate struct {
	Change *StatusChange // Nil when the job status is untouched.
}

// LedgerMutation mutates a locked ledger in place.
type LedgerMutation func(l *Ledger) (*LedgerUpdate, error)

// JobMutation mutates a locked job in place and reports the status change it
// made, if any.
type JobMutation func(job *Job) (*StatusChange, error)

// InvoiceMutation mutates a locked invoice in place.
type InvoiceMutation func(inv *Invoice) error

// ─── Provider intents ───────────────────────────────────────

// IntentRequest asks the payment provider for a new payment intent.
type IntentRequest struct {
	Purpose      PaymentPurpose
	AmountCents  int64
	Currency     string
	Description  string
	ReceiptEmail string
}

// Intent is a created provider payment intent.
type Intent struct {
	ProviderID   string `json:"payment_intent_id"`
	ClientSecret string `json:"client_secret"`
}
