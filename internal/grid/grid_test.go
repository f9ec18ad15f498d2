package grid

import (
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridsim/internal/profile"
	"gridsim/internal/stats"
)

var day0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func minimalBundle() *stats.Bundle {
	n := 10 * 24 * 60
	sineDemand := profile.New()
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = 1000 + 500*math.Sin(2*math.Pi*float64(i)/(24*60))
	}
	sineDemand.Set(day0.Add(-5*24*time.Hour), vals)

	flatDraw := profile.New()
	draw := make([]float64, n)
	for i := range draw {
		draw[i] = 1.0
	}
	flatDraw.Set(day0.Add(-5*24*time.Hour), draw)

	avail := profile.New()
	availVals := make([]float64, n)
	for i := range availVals {
		availVals[i] = 0.5
	}
	avail.Set(day0.Add(-5*24*time.Hour), availVals)

	dates := map[time.Time]float64{}
	for d := day0.Add(-5 * 24 * time.Hour); !d.After(day0.Add(10 * 24 * time.Hour)); d = d.Add(24 * time.Hour) {
		dates[d] = 1.0
	}

	car := &stats.BatteryStats{
		UsageProbabilities:  dates,
		AverageNeededCharge: dates,
		AvailabilityProfile: avail,
	}

	acc := &stats.AccumulatorStats{AverageDailyCharge: dates}
	machine := &stats.MachineStats{AveragePowerNeeded: dates}

	return &stats.Bundle{
		Cars:                 [4]*stats.BatteryStats{car, car, car, car},
		AtLeastThisManyCarsProbability: []float64{1, 0.5, 0.2, 0.05, 0.01},
		AirConditioning:      acc,
		ElectricalHeating:    acc,
		Fridge:               acc,
		WaterHeater:          acc,
		Dishwasher:           machine,
		WashingMachine:       machine,
		DemandForecast:       stats.GridDemandStatistics{Demand: sineDemand, HouseholdCount: 1000},
		ActualDemand:         stats.GridDemandStatistics{Demand: sineDemand, HouseholdCount: 1000},
		AverageHouseholdDraw: flatDraw,
	}
}

func TestGrid_PredictBaseDemand_ZeroConnectionsIsZeroDraw(t *testing.T) {
	g := New(minimalBundle())
	g.predictBaseDemand(day0.Add(-3*24*time.Hour), day0.Add(4*24*time.Hour))
	demand := g.predictedBaseDemand.Get(day0, day0.Add(24*time.Hour))
	for _, v := range demand {
		assert.Equal(t, 0.0, v)
	}
}

func TestGrid_CalculateTargetDemand_ProducesNonNegativeDemand(t *testing.T) {
	g := New(minimalBundle())
	rng := rand.New(rand.NewPCG(1, 1))

	g.predictBaseDemand(day0.Add(-3*24*time.Hour), day0.Add(4*24*time.Hour))
	g.calculateTargetDemand(day0.Add(-2*24*time.Hour), day0.Add(3*24*time.Hour), rng)

	demand := g.targetDemand.Get(day0, day0.Add(24*time.Hour))
	require.NotEmpty(t, demand)
	for _, v := range demand {
		assert.GreaterOrEqual(t, v, 0.0)
	}
}

func TestGrid_CollectDemands_SumsZeroConnections(t *testing.T) {
	g := New(minimalBundle())
	g.collectDemands(day0, day0.Add(24*time.Hour))
	demand := g.smartDemand.Get(day0, day0.Add(24*time.Hour))
	for _, v := range demand {
		assert.Equal(t, 0.0, v)
	}
}
