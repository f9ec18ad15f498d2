// Package house models a single household: the set of appliances it owns
// and the three aggregate demand curves (smart/uncontrolled/spread-out)
// those appliances produce. Grounded on
// original_source/simulator/simulator/house.py.
package house

import (
	"math/rand/v2"
	"time"

	"gridsim/internal/appliance"
	"gridsim/internal/profile"
	"gridsim/internal/simutil"
	"gridsim/internal/stats"
)

// House owns a set of appliances and aggregates their demand.
type House struct {
	currentDT time.Time

	Appliances []appliance.Appliance

	priceProfile       *profile.Profile
	smartDemand        *profile.Profile
	uncontrolledDemand *profile.Profile
	spreadOutDemand    *profile.Profile
}

// New returns an empty house with no appliances.
func New() *House {
	return &House{
		priceProfile:       profile.New(),
		smartDemand:        profile.New(),
		uncontrolledDemand: profile.New(),
		spreadOutDemand:    profile.New(),
	}
}

// Random builds a house with a randomly sampled appliance fleet, per the
// ownership ratios and car-count distribution in bundle, mirroring
// House.random().
func Random(bundle *stats.Bundle, rng *rand.Rand) *House {
	h := New()

	carCount := simutil.RandomIndex(rng, bundle.CarCountProbabilities)
	for car := 0; car < carCount; car++ {
		h.AddAppliance(appliance.RandomBattery(bundle.Cars[car], rng))
	}

	type ownedAccumulator struct {
		ratio float64
		stats *stats.AccumulatorStats
	}
	for _, oa := range []ownedAccumulator{
		{bundle.OwnershipRatios.AirConditioning, bundle.AirConditioning},
		{bundle.OwnershipRatios.ElectricalHeating, bundle.ElectricalHeating},
		{bundle.OwnershipRatios.WaterHeater, bundle.WaterHeater},
		{bundle.OwnershipRatios.Fridge, bundle.Fridge},
	} {
		if rng.Float64() < oa.ratio {
			h.AddAppliance(appliance.RandomAccumulator(oa.stats, rng))
		}
	}

	if rng.Float64() < bundle.OwnershipRatios.WashingMachine {
		h.AddAppliance(appliance.NewMachine(bundle.WashingMachine))
	}
	if rng.Float64() < bundle.OwnershipRatios.Dishwasher {
		h.AddAppliance(appliance.NewMachine(bundle.Dishwasher))
	}

	return h
}

func (h *House) AddAppliance(a appliance.Appliance) {
	h.Appliances = append(h.Appliances, a)
}

func (h *House) SetUp(dt time.Time, rng *rand.Rand) {
	h.currentDT = dt
	for _, a := range h.Appliances {
		a.SetUp(dt, rng)
	}
}

func (h *House) Tick(rng *rand.Rand) {
	cutoff := h.currentDT.Add(-simutil.OneDay)
	h.priceProfile.Prune(cutoff)
	h.smartDemand.Prune(cutoff)
	h.uncontrolledDemand.Prune(cutoff)
	h.spreadOutDemand.Prune(cutoff)

	for _, a := range h.Appliances {
		a.Tick(rng)
	}

	h.currentDT = h.currentDT.Add(simutil.OneDay)
	h.collectApplianceDemand(h.currentDT.Add(-simutil.OneDay), h.currentDT)
}

// SetPriceProfile propagates the grid's price signal to every appliance.
func (h *House) SetPriceProfile(from time.Time, prices []float64) {
	h.priceProfile.Set(from, prices)
	for _, a := range h.Appliances {
		a.SetPriceProfile(from, prices)
	}
}

func (h *House) SmartDemand(from, to time.Time) []float64 {
	return h.smartDemand.Get(from, to)
}

func (h *House) UncontrolledDemand(from, to time.Time) []float64 {
	return h.uncontrolledDemand.Get(from, to)
}

func (h *House) SpreadOutDemand(from, to time.Time) []float64 {
	return h.spreadOutDemand.Get(from, to)
}

func (h *House) collectApplianceDemand(from, to time.Time) {
	for _, a := range h.Appliances {
		h.smartDemand.Add(from, a.SmartDemand(from, to))
		h.uncontrolledDemand.Add(from, a.UncontrolledDemand(from, to))
		h.spreadOutDemand.Add(from, a.SpreadOutDemand(from, to))
	}
}
