package model

// BookingConfirmation is the template data for the booking confirmation email.
type BookingConfirmation struct {
	To             string  `json:"to"`
	CustomerName   string  `json:"customer_name"`
	JobNumber      string  `json:"job_number"`
	PickupAddress  string  `json:"pickup_address"`
	DropoffAddress string  `json:"dropoff_address"`
	ScheduledDate  string  `json:"scheduled_date"`
	ScheduledTime  string  `json:"scheduled_time"`
	EstimatedTotal float64 `json:"estimated_total"`
	DepositAmount  float64 `json:"deposit_amount"`
}

// InvoiceReady is the template data for the invoice email.
type InvoiceReady struct {
	To             string  `json:"to"`
	CustomerName   string  `json:"customer_name"`
	JobNumber      string  `json:"job_number"`
	InvoiceNumber  string  `json:"invoice_number"`
	Total          float64 `json:"total"`
	DepositAmount  float64 `json:"deposit_amount"`
	FinalAmount    float64 `json:"final_amount"`
	InvoiceURL     string  `json:"invoice_url"`
	PickupAddress  string  `json:"pickup_address"`
	DropoffAddress string  `json:"dropoff_address"`
	CompletedDate  string  `json:"completed_date,omitempty"`
}
