package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ─── Service Errors ─────────────────────────────────────────

var (
	// ErrJobNotFound is returned when the job does not exist.
	ErrJobNotFound = errors.New("job not found")

	// ErrInvoiceNotFound is returned when the invoice does not exist.
	ErrInvoiceNotFound = errors.New("invoice not found")

	// ErrForbidden is returned when the caller may not read or change the resource.
	ErrForbidden = errors.New("forbidden")

	// ErrIllegalTransition is returned when the transition table has no entry
	// for the requested status change.
	ErrIllegalTransition = errors.New("illegal job status transition")

	// ErrDepositAlreadyPaid is returned for a deposit intent on a job whose
	// deposit has already been accepted.
	ErrDepositAlreadyPaid = errors.New("deposit already paid")

	// ErrFinalAlreadyPaid is returned for a final intent on a fully paid job.
	ErrFinalAlreadyPaid = errors.New("final payment already paid")

	// ErrJobNotCompleted is returned for a final intent before the move is done.
	ErrJobNotCompleted = errors.New("job is not completed")

	// ErrAmountOutOfRange is returned when a payment amount falls outside the
	// configured limits.
	ErrAmountOutOfRange = errors.New("payment amount out of range")

	// ErrUpstream is returned when a maps or payment provider call fails.
	ErrUpstream = errors.New("upstream provider failure")

	// ErrInvoiceNotSendable is returned when a paid invoice is sent again.
	ErrInvoiceNotSendable = errors.New("invoice cannot be sent in its current status")

	// ErrJobNotActive is returned for a location fix on a job that is not
	// between SCHEDULED and UNLOADING.
	ErrJobNotActive = errors.New("job is not in progress")

	// ErrLocationNotFound is returned when a job has no recorded location.
	ErrLocationNotFound = errors.New("no location recorded for job")
)

// ValidationError carries field-level validation failures.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// add records a failure for field, keeping the first message.
func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

// errOrNil returns e when it holds failures.
func (e *ValidationError) errOrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}
