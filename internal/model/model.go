// Package model contains domain models for the moving operations platform.
// These structs map to the PostgreSQL schema defined in migrations/001_create_schema.up.sql.
package model

import "time"

// ─── Enums ──────────────────────────────────────────────────

type UserRole string

const (
	RoleCustomer UserRole = "CUSTOMER"
	RoleDriver   UserRole = "DRIVER"
	RoleAdmin    UserRole = "ADMIN"
)

// IsValid reports whether r is a known role.
func (r UserRole) IsValid() bool {
	switch r {
	case RoleCustomer, RoleDriver, RoleAdmin:
		return true
	}
	return false
}

// JobStatus is ordered: the declaration order below is the operational order
// of a move, with CANCELLED sitting outside the forward path.
type JobStatus string

const (
	JobPending         JobStatus = "PENDING"
	JobConfirmed       JobStatus = "CONFIRMED"
	JobScheduled       JobStatus = "SCHEDULED"
	JobHeadingToPickup JobStatus = "HEADING_TO_PICKUP"
	JobAtPickup        JobStatus = "AT_PICKUP"
	JobLoading         JobStatus = "LOADING"
	JobInTransit       JobStatus = "IN_TRANSIT"
	JobAtDropoff       JobStatus = "AT_DROPOFF"
	JobUnloading       JobStatus = "UNLOADING"
	JobCompleted       JobStatus = "COMPLETED"
	JobPaid            JobStatus = "PAID"
	JobCancelled       JobStatus = "CANCELLED"
)

// JobStatuses lists every job status in operational order.
var JobStatuses = []JobStatus{
	JobPending, JobConfirmed, JobScheduled,
	JobHeadingToPickup, JobAtPickup, JobLoading, JobInTransit, JobAtDropoff, JobUnloading,
	JobCompleted, JobPaid, JobCancelled,
}

// IsValid reports whether s is a known job status.
func (s JobStatus) IsValid() bool {
	for _, v := range JobStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the operational workflow has ended.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobPaid || s == JobCancelled
}

type InvoiceStatus string

const (
	InvoiceDraft   InvoiceStatus = "DRAFT"
	InvoiceSent    InvoiceStatus = "SENT"
	InvoiceViewed  InvoiceStatus = "VIEWED"
	InvoicePartial InvoiceStatus = "PARTIAL"
	InvoicePaid    InvoiceStatus = "PAID"
)

// IsValid reports whether s is a known invoice status.
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceDraft, InvoiceSent, InvoiceViewed, InvoicePartial, InvoicePaid:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentRefunded  PaymentStatus = "REFUNDED"
)

type PaymentMethod string

const PaymentMethodStripe PaymentMethod = "STRIPE"

type MoveType string

const (
	MoveStandard     MoveType = "STANDARD"
	MoveHeavy        MoveType = "HEAVY"
	MoveCommercial   MoveType = "COMMERCIAL"
	MoveLongDistance MoveType = "LONG_DISTANCE"
)

// IsValid reports whether m is a known move type.
func (m MoveType) IsValid() bool {
	switch m {
	case MoveStandard, MoveHeavy, MoveCommercial, MoveLongDistance:
		return true
	}
	return false
}

type TruckSize string

const (
	TruckSmall  TruckSize = "SMALL"
	TruckMedium TruckSize = "MEDIUM"
	TruckLarge  TruckSize = "LARGE"
	TruckXLarge TruckSize = "XLARGE"
)

// IsValid reports whether t is a known truck size. The empty size (no truck)
// is valid.
func (t TruckSize) IsValid() bool {
	switch t {
	case "", TruckSmall, TruckMedium, TruckLarge, TruckXLarge:
		return true
	}
	return false
}

// ─── Location ───────────────────────────────────────────────

// Location represents a WGS-84 geographic point.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Place is a geocoded address.
type Place struct {
	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	City    string  `json:"city,omitempty"`
	State   string  `json:"state,omitempty"`
	Zip     string  `json:"zip,omitempty"`
}

// Location returns the coordinates of the place.
func (p Place) Location() Location {
	return Location{Lat: p.Lat, Lng: p.Lng}
}

// Route is a driving distance/duration between two points.
type Route struct {
	DistanceMeters  float64 `json:"distance_meters"`
	DistanceMiles   float64 `json:"distance_miles"`
	DurationSeconds float64 `json:"duration_seconds"`
	DurationMinutes int     `json:"duration_minutes"`
}

// ─── Pricing ────────────────────────────────────────────────

// PricingInput is the set of service selections priced for one booking.
type PricingInput struct {
	LaborHoursEst float64   `json:"labor_hours_est"`
	MileageEst    float64   `json:"mileage_est"`
	TruckSize     TruckSize `json:"truck_size,omitempty"`
	HasStairs     bool      `json:"has_stairs"`
	StairsFlights int       `json:"stairs_flights"`
	HasAssembly   bool      `json:"has_assembly"`
	AssemblyCount int       `json:"assembly_count"`
	HasPacking    bool      `json:"has_packing"`
	HasHeavyItems bool      `json:"has_heavy_items"`
}

// PricingResult is an itemised fee breakdown. It echoes the inputs and the
// rates that produced it so it can be displayed without recomputation.
type PricingResult struct {
	LaborHoursEst  float64   `json:"labor_hours_est"`
	LaborRate      float64   `json:"labor_rate"`
	MinLabor       float64   `json:"min_labor"`
	LaborFee       float64   `json:"labor_fee"`
	MileageEst     float64   `json:"mileage_est"`
	MileageRate    float64   `json:"mileage_rate"`
	MileageFee     float64   `json:"mileage_fee"`
	TruckSize      TruckSize `json:"truck_size,omitempty"`
	TruckFee       float64   `json:"truck_fee"`
	HasStairs      bool      `json:"has_stairs"`
	StairsFlights  int       `json:"stairs_flights"`
	StairsFee      float64   `json:"stairs_fee"`
	HasAssembly    bool      `json:"has_assembly"`
	AssemblyCount  int       `json:"assembly_count"`
	AssemblyFee    float64   `json:"assembly_fee"`
	HasPacking     bool      `json:"has_packing"`
	PackingFee     float64   `json:"packing_fee"`
	HasHeavyItems  bool      `json:"has_heavy_items"`
	HeavyFee       float64   `json:"heavy_fee"`
	Subtotal       float64   `json:"subtotal"`
	TaxRate        float64   `json:"tax_rate"`
	TaxAmount      float64   `json:"tax_amount"`
	TotalEstimated float64   `json:"total_estimated"`
}

// ─── Domain Models ──────────────────────────────────────────

// Contact is the customer contact captured at booking time.
type Contact struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

// Job maps to the `jobs` table.
type Job struct {
	ID                   string        `json:"id"`
	JobNumber            string        `json:"job_number"`
	CustomerID           string        `json:"customer_id"`
	Contact              Contact       `json:"contact"`
	DriverID             *string       `json:"driver_id,omitempty"`
	Status               JobStatus     `json:"status"`
	MoveType             MoveType      `json:"move_type"`
	Pickup               Place         `json:"pickup"`
	Dropoff              Place         `json:"dropoff"`
	DistanceMiles        float64       `json:"distance_miles"`
	EstimatedDurationMin int           `json:"estimated_duration_min"`
	ScheduledDate        time.Time     `json:"scheduled_date"`
	ScheduledTime        string        `json:"scheduled_time"`
	Notes                string        `json:"notes,omitempty"`
	SpecialItems         string        `json:"special_items,omitempty"`
	Pricing              PricingResult `json:"pricing"`
	EstimatedTotal       float64       `json:"estimated_total"`
	DepositAmount        float64       `json:"deposit_amount"`
	DepositPaid          bool          `json:"deposit_paid"`
	CompletedAt          *time.Time    `json:"completed_at,omitempty"`
	CreatedAt            time.Time     `json:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"`
}

// CanView reports whether the actor may read the job.
func (j *Job) CanView(a Actor) bool {
	switch a.Role {
	case RoleAdmin:
		return true
	case RoleDriver:
		return j.DriverID != nil && *j.DriverID == a.UserID
	case RoleCustomer:
		return j.CustomerID == a.UserID
	}
	return false
}

// StatusHistory maps to the `job_status_history` table.
type StatusHistory struct {
	ID         string    `json:"id"`
	JobID      string    `json:"job_id"`
	FromStatus JobStatus `json:"from_status"`
	ToStatus   JobStatus `json:"to_status"`
	ChangedBy  string    `json:"changed_by"`
	Notes      string    `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Invoice maps to the `invoices` table.
type Invoice struct {
	ID               string        `json:"id"`
	JobID            string        `json:"job_id"`
	InvoiceNumber    string        `json:"invoice_number"`
	Subtotal         float64       `json:"subtotal"`
	TaxAmount        float64       `json:"tax_amount"`
	Total            float64       `json:"total"`
	DepositAmount    float64       `json:"deposit_amount"`
	FinalAmount      float64       `json:"final_amount"`
	Status           InvoiceStatus `json:"status"`
	DepositPaid      bool          `json:"deposit_paid"`
	DepositPaidAt    *time.Time    `json:"deposit_paid_at,omitempty"`
	DepositPaymentID *string       `json:"deposit_payment_id,omitempty"`
	FinalPaid        bool          `json:"final_paid"`
	FinalPaidAt      *time.Time    `json:"final_paid_at,omitempty"`
	FinalPaymentID   *string       `json:"final_payment_id,omitempty"`
	SentAt           *time.Time    `json:"sent_at,omitempty"`
	ViewedAt         *time.Time    `json:"viewed_at,omitempty"`
	PaidAt           *time.Time    `json:"paid_at,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// Payment maps to the `payments` table. One row per payment attempt.
type Payment struct {
	ID            string        `json:"id"`
	JobID         string        `json:"job_id"`
	InvoiceID     string        `json:"invoice_id"`
	CustomerID    string        `json:"customer_id"`
	Type          PaymentType   `json:"type"`
	Amount        float64       `json:"amount"`
	Currency      string        `json:"currency"`
	Method        PaymentMethod `json:"method"`
	ProviderID    string        `json:"provider_id"`
	Status        PaymentStatus `json:"status"`
	ReceiptURL    string        `json:"receipt_url,omitempty"`
	FailureReason string        `json:"failure_reason,omitempty"`
	ProcessedAt   *time.Time    `json:"processed_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// DriverLocation maps to the `job_locations` table.
type DriverLocation struct {
	DriverID   string    `json:"driver_id"`
	JobID      string    `json:"job_id"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	Accuracy   *float64  `json:"accuracy,omitempty"`
	Heading    *float64  `json:"heading,omitempty"`
	Speed      *float64  `json:"speed,omitempty"`
	Status     string    `json:"status,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// ─── Read models ────────────────────────────────────────────

// LiveLocation is the latest fix for a job with the straight-line distance
// and time left to the dropoff.
type LiveLocation struct {
	Location       DriverLocation `json:"location"`
	MilesRemaining float64        `json:"miles_remaining"`
	ETAMinutes     int            `json:"eta_minutes"`
}

// JobDetail is a job with everything the detail view shows.
type JobDetail struct {
	Job       Job              `json:"job"`
	Invoice   *Invoice         `json:"invoice,omitempty"`
	Payments  []Payment        `json:"payments"`
	History   []StatusHistory  `json:"status_history"`
	Locations []DriverLocation `json:"locations"`
	// MilesTracked is the length of the trail formed by Locations.
	MilesTracked float64 `json:"miles_tracked"`
}

// JobFilter scopes a job listing.
type JobFilter struct {
	CustomerID string
	DriverID   string
	Status     JobStatus
	// OrderBySchedule sorts by scheduled date ascending instead of newest first.
	OrderBySchedule bool
	Limit           int
}

// InvoiceFilter scopes an invoice listing.
type InvoiceFilter struct {
	CustomerID string
	Status     InvoiceStatus
	Limit      int
}

// ─── Caller identity ────────────────────────────────────────

// Actor is the authenticated caller as asserted by the upstream gateway.
type Actor struct {
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
}

// SystemActor is recorded on history entries written by webhooks.
const SystemActor = "system:payments"
