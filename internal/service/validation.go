package service

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/shiva/moveops/internal/model"
)

// ─── Booking Request ────────────────────────────────────────

// BookingRequest is a customer's booking submission.
type BookingRequest struct {
	MoveType       model.MoveType  `json:"move_type" validate:"required,oneof=STANDARD HEAVY COMMERCIAL LONG_DISTANCE"`
	PickupAddress  string          `json:"pickup_address" validate:"required,min=5,max=1000"`
	DropoffAddress string          `json:"dropoff_address" validate:"required,min=5,max=1000"`
	ScheduledDate  string          `json:"scheduled_date" validate:"required,datetime=2006-01-02"`
	ScheduledTime  string          `json:"scheduled_time" validate:"required,clock"`
	Notes          string          `json:"notes" validate:"max=500"`
	SpecialItems   string          `json:"special_items" validate:"max=500"`
	Contact        BookingContact  `json:"contact"`
	Services       BookingServices `json:"services"`
}

// BookingContact is the contact block of a booking.
type BookingContact struct {
	Name  string `json:"name" validate:"required,min=2,max=200"`
	Phone string `json:"phone" validate:"required,usphone"`
	Email string `json:"email" validate:"required,email"`
}

// BookingServices are the priced selections of a booking. Mileage is not
// part of the request; it comes from the route between the two addresses.
type BookingServices struct {
	LaborHoursEst float64         `json:"labor_hours_est" validate:"gte=1,lte=24"`
	TruckSize     model.TruckSize `json:"truck_size" validate:"omitempty,oneof=SMALL MEDIUM LARGE XLARGE"`
	HasStairs     bool            `json:"has_stairs"`
	StairsFlights int             `json:"stairs_flights" validate:"gte=0,lte=10"`
	HasAssembly   bool            `json:"has_assembly"`
	AssemblyCount int             `json:"assembly_count" validate:"gte=0,lte=20"`
	HasPacking    bool            `json:"has_packing"`
	HasHeavyItems bool            `json:"has_heavy_items"`
}

// PricingInput combines the selections with a route distance.
func (s BookingServices) PricingInput(miles float64) model.PricingInput {
	return model.PricingInput{
		LaborHoursEst: s.LaborHoursEst,
		MileageEst:    miles,
		TruckSize:     s.TruckSize,
		HasStairs:     s.HasStairs,
		StairsFlights: s.StairsFlights,
		HasAssembly:   s.HasAssembly,
		AssemblyCount: s.AssemblyCount,
		HasPacking:    s.HasPacking,
		HasHeavyItems: s.HasHeavyItems,
	}
}

// ─── Validation ─────────────────────────────────────────────

const scheduledDateLayout = "2006-01-02"

var (
	clockPattern   = regexp.MustCompile(`^([0-1]?[0-9]|2[0-3]):[0-5][0-9]$`)
	usPhonePattern = regexp.MustCompile(`^\(?([0-9]{3})\)?[-. ]?([0-9]{3})[-. ]?([0-9]{4})$`)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		return clockPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("usphone", func(fl validator.FieldLevel) bool {
		return usPhonePattern.MatchString(fl.Field().String())
	})
	return v
}

// sanitizeInput trims free text and strips angle brackets.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.NewReplacer("<", "", ">", "").Replace(s)
}

// Normalize sanitizes the free-text fields in place.
func (r *BookingRequest) Normalize() {
	r.PickupAddress = sanitizeInput(r.PickupAddress)
	r.DropoffAddress = sanitizeInput(r.DropoffAddress)
	r.Notes = sanitizeInput(r.Notes)
	r.SpecialItems = sanitizeInput(r.SpecialItems)
	r.Contact.Name = sanitizeInput(r.Contact.Name)
	r.Contact.Email = strings.TrimSpace(r.Contact.Email)
	r.Contact.Phone = strings.TrimSpace(r.Contact.Phone)
}

// Validate checks the request and returns a *ValidationError listing every
// failing field. The scheduled date may not be before today in now's
// location.
func (r *BookingRequest) Validate(now time.Time) error {
	verr := &ValidationError{}

	if err := validate.Struct(r); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("booking: validate: %w", err)
		}
		for _, fe := range fieldErrs {
			verr.add(fieldPath(fe), fieldMessage(fe))
		}
	}

	if _, bad := verr.Fields["scheduled_date"]; !bad {
		date, err := time.ParseInLocation(scheduledDateLayout, r.ScheduledDate, now.Location())
		if err == nil {
			today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
			if date.Before(today) {
				verr.add("scheduled_date", "must not be in the past")
			}
		}
	}

	return verr.errOrNil()
}

// fieldPath drops the root struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "gte":
		return "must be >= " + fe.Param()
	case "lte":
		return "must be <= " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	case "email":
		return "must be a valid email address"
	case "usphone":
		return "must be a valid phone number"
	case "clock":
		return "must be a time in HH:MM format"
	case "datetime":
		return "must be a date in YYYY-MM-DD format"
	}
	return "is invalid"
}
