package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shiva/moveops/internal/model"
)

const moneyDelta = 1e-9

func TestCalculateJobPricing_EndToEnd(t *testing.T) {
	got := CalculateJobPricing(model.PricingInput{
		LaborHoursEst: 3,
		MileageEst:    20,
		TruckSize:     model.TruckMedium,
		HasStairs:     true,
		StairsFlights: 1,
		HasAssembly:   true,
		AssemblyCount: 2,
	}, DefaultPricingConfig())

	assert.InDelta(t, 300, got.LaborFee, moneyDelta)
	assert.InDelta(t, 30, got.MileageFee, moneyDelta)
	assert.InDelta(t, 50, got.TruckFee, moneyDelta)
	assert.InDelta(t, 50, got.StairsFee, moneyDelta)
	assert.InDelta(t, 50, got.AssemblyFee, moneyDelta)
	assert.Zero(t, got.PackingFee)
	assert.Zero(t, got.HeavyFee)
	assert.InDelta(t, 480, got.Subtotal, moneyDelta)
	assert.InDelta(t, 33.60, got.TaxAmount, 1e-6)
	assert.InDelta(t, 513.60, got.TotalEstimated, 1e-6)
}

func TestCalculateJobPricing_TotalIsSubtotalPlusTax(t *testing.T) {
	inputs := []model.PricingInput{
		{LaborHoursEst: 0, MileageEst: 0},
		{LaborHoursEst: 1.5, MileageEst: 7.3, TruckSize: model.TruckSmall},
		{LaborHoursEst: 8, MileageEst: 120, TruckSize: model.TruckXLarge, HasPacking: true, HasHeavyItems: true},
		{LaborHoursEst: 24, MileageEst: 0.4, HasStairs: true, StairsFlights: 10, HasAssembly: true, AssemblyCount: 20},
	}
	for _, in := range inputs {
		got := CalculateJobPricing(in, DefaultPricingConfig())
		sum := got.LaborFee + got.MileageFee + got.TruckFee + got.StairsFee +
			got.AssemblyFee + got.PackingFee + got.HeavyFee
		assert.InDelta(t, sum, got.Subtotal, moneyDelta, "input %+v", in)
		assert.InDelta(t, got.Subtotal*1.07, got.TotalEstimated, 1e-6, "input %+v", in)
	}
}

func TestCalculateJobPricing_MinimumLabor(t *testing.T) {
	got := CalculateJobPricing(model.PricingInput{LaborHoursEst: 1, MileageEst: 5}, DefaultPricingConfig())
	assert.Equal(t, 200.0, got.LaborFee)

	got = CalculateJobPricing(model.PricingInput{LaborHoursEst: 0}, DefaultPricingConfig())
	assert.Equal(t, 200.0, got.LaborFee)
}

func TestCalculateJobPricing_Stairs(t *testing.T) {
	cfg := DefaultPricingConfig()

	got := CalculateJobPricing(model.PricingInput{LaborHoursEst: 2, HasStairs: true, StairsFlights: 3}, cfg)
	assert.Equal(t, 150.0, got.StairsFee)

	// Zero flights with stairs still charges one flight.
	got = CalculateJobPricing(model.PricingInput{LaborHoursEst: 2, HasStairs: true, StairsFlights: 0}, cfg)
	assert.Equal(t, 50.0, got.StairsFee)
	assert.Equal(t, 0, got.StairsFlights)

	got = CalculateJobPricing(model.PricingInput{LaborHoursEst: 2, HasStairs: false, StairsFlights: 4}, cfg)
	assert.Zero(t, got.StairsFee)
}

func TestCalculateJobPricing_Assembly(t *testing.T) {
	cfg := DefaultPricingConfig()

	got := CalculateJobPricing(model.PricingInput{HasAssembly: true, AssemblyCount: 0}, cfg)
	assert.Equal(t, 25.0, got.AssemblyFee)

	got = CalculateJobPricing(model.PricingInput{HasAssembly: true, AssemblyCount: 5}, cfg)
	assert.Equal(t, 125.0, got.AssemblyFee)
}

func TestCalculateJobPricing_TruckSize(t *testing.T) {
	cfg := DefaultPricingConfig()
	base := model.PricingInput{LaborHoursEst: 2, MileageEst: 10}
	withTruck := base
	withTruck.TruckSize = model.TruckLarge

	a := CalculateJobPricing(base, cfg)
	b := CalculateJobPricing(withTruck, cfg)
	assert.Equal(t, 100.0, b.TruckFee)
	assert.InDelta(t, 100, b.Subtotal-a.Subtotal, moneyDelta)

	unknown := base
	unknown.TruckSize = "HUGE"
	assert.Zero(t, CalculateJobPricing(unknown, cfg).TruckFee)
}

func TestCalculateJobPricing_FlatFees(t *testing.T) {
	got := CalculateJobPricing(model.PricingInput{HasPacking: true, HasHeavyItems: true}, DefaultPricingConfig())
	assert.Equal(t, 100.0, got.PackingFee)
	assert.Equal(t, 75.0, got.HeavyFee)
}

func TestCalculateJobPricing_EchoesInputsAndRates(t *testing.T) {
	in := model.PricingInput{LaborHoursEst: 4, MileageEst: 12, TruckSize: model.TruckSmall, HasPacking: true}
	got := CalculateJobPricing(in, DefaultPricingConfig())

	assert.Equal(t, in.LaborHoursEst, got.LaborHoursEst)
	assert.Equal(t, in.MileageEst, got.MileageEst)
	assert.Equal(t, in.TruckSize, got.TruckSize)
	assert.True(t, got.HasPacking)
	assert.Equal(t, 100.0, got.LaborRate)
	assert.Equal(t, 200.0, got.MinLabor)
	assert.Equal(t, 1.5, got.MileageRate)
	assert.Equal(t, 0.07, got.TaxRate)
}

func TestCalculateJobPricing_Deterministic(t *testing.T) {
	in := model.PricingInput{LaborHoursEst: 3.25, MileageEst: 17.9, TruckSize: model.TruckMedium, HasStairs: true}
	assert.Equal(t, CalculateJobPricing(in, DefaultPricingConfig()), CalculateJobPricing(in, DefaultPricingConfig()))
}
