package service

import (
	"github.com/shiva/moveops/internal/model"
)

// ─── Pricing Configuration ──────────────────────────────────

// PricingConfig holds the rate card used by the pricing engine.
// All amounts are in US dollars.
type PricingConfig struct {
	LaborRate           float64 // Per estimated labor hour.
	MinLabor            float64 // Labor fee floor.
	MileageRate         float64 // Per mile of route distance.
	TruckFees           map[model.TruckSize]float64
	StairsFeePerFlight  float64
	AssemblyRatePerItem float64
	PackingFlatFee      float64
	HeavyItemsFlatFee   float64
	TaxRate             float64
}

// DefaultPricingConfig returns the standard rate card.
func DefaultPricingConfig() PricingConfig {
	return PricingConfig{
		LaborRate:   100,
		MinLabor:    200,
		MileageRate: 1.5,
		TruckFees: map[model.TruckSize]float64{
			model.TruckSmall:  0,
			model.TruckMedium: 50,
			model.TruckLarge:  100,
			model.TruckXLarge: 150,
		},
		StairsFeePerFlight:  50,
		AssemblyRatePerItem: 25,
		PackingFlatFee:      100,
		HeavyItemsFlatFee:   75,
		TaxRate:             0.07,
	}
}

// ─── Pricing Engine ─────────────────────────────────────────

// CalculateJobPricing prices a booking's service selections.
//
// Formula:
//
//	labor    = max(hours × LaborRate, MinLabor)
//	mileage  = miles × MileageRate
//	truck    = TruckFees[size]            (0 when no truck)
//	stairs   = max(flights, 1) × perFlight (only with stairs)
//	assembly = max(items, 1) × perItem     (only with assembly)
//	packing, heavy = flat fees
//	total    = subtotal × (1 + TaxRate)
//
// Inputs are never rejected; validation happens before pricing.
func CalculateJobPricing(in model.PricingInput, cfg PricingConfig) model.PricingResult {
	laborFee := in.LaborHoursEst * cfg.LaborRate
	if laborFee < cfg.MinLabor {
		laborFee = cfg.MinLabor
	}

	mileageFee := in.MileageEst * cfg.MileageRate

	// Unknown sizes price like no truck.
	truckFee := cfg.TruckFees[in.TruckSize]

	var stairsFee float64
	if in.HasStairs {
		stairsFee = float64(atLeastOne(in.StairsFlights)) * cfg.StairsFeePerFlight
	}

	var assemblyFee float64
	if in.HasAssembly {
		assemblyFee = float64(atLeastOne(in.AssemblyCount)) * cfg.AssemblyRatePerItem
	}

	var packingFee float64
	if in.HasPacking {
		packingFee = cfg.PackingFlatFee
	}

	var heavyFee float64
	if in.HasHeavyItems {
		heavyFee = cfg.HeavyItemsFlatFee
	}

	subtotal := laborFee + mileageFee + truckFee + stairsFee + assemblyFee + packingFee + heavyFee
	taxAmount := subtotal * cfg.TaxRate

	return model.PricingResult{
		LaborHoursEst:  in.LaborHoursEst,
		LaborRate:      cfg.LaborRate,
		MinLabor:       cfg.MinLabor,
		LaborFee:       laborFee,
		MileageEst:     in.MileageEst,
		MileageRate:    cfg.MileageRate,
		MileageFee:     mileageFee,
		TruckSize:      in.TruckSize,
		TruckFee:       truckFee,
		HasStairs:      in.HasStairs,
		StairsFlights:  in.StairsFlights,
		StairsFee:      stairsFee,
		HasAssembly:    in.HasAssembly,
		AssemblyCount:  in.AssemblyCount,
		AssemblyFee:    assemblyFee,
		HasPacking:     in.HasPacking,
		PackingFee:     packingFee,
		HasHeavyItems:  in.HasHeavyItems,
		HeavyFee:       heavyFee,
		Subtotal:       subtotal,
		TaxRate:        cfg.TaxRate,
		TaxAmount:      taxAmount,
		TotalEstimated: subtotal + taxAmount,
	}
}

// atLeastOne treats a zero or negative count as one unit.
func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// ─── PricingService ─────────────────────────────────────────

// PricingService exposes the engine with a fixed rate card.
type PricingService struct {
	config PricingConfig
}

// NewPricingService creates a pricing service with the given config.
func NewPricingService(config PricingConfig) *PricingService {
	return &PricingService{config: config}
}

// Estimate prices the input with the service's rate card.
func (s *PricingService) Estimate(in model.PricingInput) model.PricingResult {
	return CalculateJobPricing(in, s.config)
}

// Config returns the rate card in use.
func (s *PricingService) Config() PricingConfig {
	return s.config
}
