package service

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiva/moveops/internal/model"
)

var testNow = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

func validBooking() BookingRequest {
	return BookingRequest{
		MoveType:       model.MoveStandard,
		PickupAddress:  "233 S Wacker Dr, Chicago, IL",
		DropoffAddress: "10000 W O'Hare Ave, Chicago, IL",
		ScheduledDate:  "2026-03-15",
		ScheduledTime:  "09:00",
		Contact: BookingContact{
			Name:  "Ada Lovelace",
			Phone: "(555) 123-4567",
			Email: "ada@example.com",
		},
		Services: BookingServices{LaborHoursEst: 3, TruckSize: model.TruckMedium},
	}
}

func validationFields(t *testing.T, err error) map[string]string {
	t.Helper()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected *ValidationError, got %v", err)
	return verr.Fields
}

func TestBookingValidate_OK(t *testing.T) {
	r := validBooking()
	assert.NoError(t, r.Validate(testNow))

	r.ScheduledDate = "2026-03-01"
	assert.NoError(t, r.Validate(testNow), "today is allowed")
}

func TestBookingValidate_CollectsEveryField(t *testing.T) {
	r := BookingRequest{
		MoveType:      "SPACESHIP",
		ScheduledDate: "15/03/2026",
		ScheduledTime: "25:00",
		Contact:       BookingContact{Name: "A", Phone: "12", Email: "nope"},
		Services:      BookingServices{LaborHoursEst: 30, StairsFlights: 11, AssemblyCount: -1, TruckSize: "HUGE"},
	}
	fields := validationFields(t, r.Validate(testNow))

	for _, f := range []string{
		"move_type", "pickup_address", "dropoff_address", "scheduled_date", "scheduled_time",
		"contact.name", "contact.phone", "contact.email",
		"services.labor_hours_est", "services.stairs_flights", "services.assembly_count", "services.truck_size",
	} {
		assert.Contains(t, fields, f)
	}
	assert.Equal(t, "must be a date in YYYY-MM-DD format", fields["scheduled_date"])
}

func TestBookingValidate_PastDate(t *testing.T) {
	r := validBooking()
	r.ScheduledDate = "2026-02-28"
	fields := validationFields(t, r.Validate(testNow))
	assert.Equal(t, "must not be in the past", fields["scheduled_date"])
}

func TestBookingValidate_PhoneFormats(t *testing.T) {
	for _, p := range []string{"555-123-4567", "5551234567", "555.123.4567", "(555)123-4567"} {
		r := validBooking()
		r.Contact.Phone = p
		assert.NoError(t, r.Validate(testNow), p)
	}
}

func TestBookingNormalize(t *testing.T) {
	r := validBooking()
	r.PickupAddress = "  <b>1 Main St</b>  "
	r.Contact.Email = " ada@example.com "
	r.Normalize()
	assert.Equal(t, "b1 Main St/b", r.PickupAddress)
	assert.Equal(t, "ada@example.com", r.Contact.Email)
}

func TestValidationError_Message(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{"b": "bad", "a": "worse"}}
	assert.Equal(t, "validation failed: a: worse; b: bad", err.Error())
}
