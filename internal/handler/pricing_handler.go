package handler

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/shiva/moveops/internal/model"
	"github.com/shiva/moveops/internal/service"
)

// Estimator prices a set of service selections.
type Estimator interface {
	Estimate(in model.PricingInput) model.PricingResult
}

// PricingHandler handles price estimate requests.
type PricingHandler struct {
	pricing Estimator
	log     zerolog.Logger
}

// NewPricingHandler creates a new pricing handler.
func NewPricingHandler(pricing Estimator, log zerolog.Logger) *PricingHandler {
	return &PricingHandler{pricing: pricing, log: log}
}

// Estimate handles POST /api/v1/pricing/estimate
//
// Request body:
//
//	{
//	  "labor_hours_est": 3, "mileage_est": 20, "truck_size": "MEDIUM",
//	  "has_stairs": true, "stairs_flights": 1
//	}
//
// Response: PricingResult with the itemised breakdown.
func (h *PricingHandler) Estimate(w http.ResponseWriter, r *http.Request) {
	var in model.PricingInput
	if !decodeJSON(w, r, &in) {
		return
	}

	verr := &service.ValidationError{Fields: map[string]string{}}
	if in.LaborHoursEst < 0 {
		verr.Fields["labor_hours_est"] = "must be >= 0"
	}
	if in.MileageEst < 0 {
		verr.Fields["mileage_est"] = "must be >= 0"
	}
	if in.StairsFlights < 0 {
		verr.Fields["stairs_flights"] = "must be >= 0"
	}
	if in.AssemblyCount < 0 {
		verr.Fields["assembly_count"] = "must be >= 0"
	}
	if !in.TruckSize.IsValid() {
		verr.Fields["truck_size"] = "must be one of SMALL MEDIUM LARGE XLARGE"
	}
	if len(verr.Fields) > 0 {
		writeError(w, h.log, verr)
		return
	}

	writeJSON(w, http.StatusOK, h.pricing.Estimate(in))
}
