package appliance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridsim/internal/profile"
	"gridsim/internal/stats"
)

func newTestAccumulator(capacity, chargingPowerKW float64) *Accumulator {
	a := &Accumulator{
		base:               newBase(),
		Stats:              &stats.AccumulatorStats{},
		ChargingPowerKW:    chargingPowerKW,
		CapacityKWh:        capacity,
		DischargingScale:   1,
		dischargingProfile: profile.New(),
	}
	return a
}

func TestAccumulator_SmartDemand_NeverExceedsCapacityOrGoesNegative(t *testing.T) {
	a := newTestAccumulator(2.0, 1.0)
	a.smartCharge = 1.0

	n := minutesPerDay + int(oneDay/time.Minute)
	discharging := make([]float64, n)
	for i := range discharging {
		discharging[i] = 1.0 // kW, constant draw
	}
	a.dischargingProfile.Set(day0, discharging)

	prices := make([]float64, n)
	for i := range prices {
		prices[i] = float64(i % 7)
	}
	a.priceProfile.Set(day0, prices)

	a.calculateSmartDemand(day0, day0.Add(oneDay))

	require.Equal(t, minutesPerDay, a.smartDemand.Len())
	charge := 1.0
	for i := 0; i < minutesPerDay; i++ {
		charge += a.smartDemand.Get(day0.Add(time.Duration(i)*time.Minute), day0.Add(time.Duration(i+1)*time.Minute))[0] / 60
		charge -= discharging[i] / 60
		assert.GreaterOrEqual(t, charge, -1e-9)
		assert.LessOrEqual(t, charge, a.CapacityKWh+1e-9)
	}
}

func TestAccumulator_SmartDemand_PrefersCheaperSlots(t *testing.T) {
	a := newTestAccumulator(10.0, 1.0)
	a.smartCharge = 0.0

	n := minutesPerDay + int(oneDay/time.Minute)
	discharging := make([]float64, n)
	// A single 1/60 kWh draw in the last minute of the look-ahead creates a
	// need for exactly one charging slot; without any need SMART charges nothing.
	discharging[n-1] = 1.0
	a.dischargingProfile.Set(day0, discharging)

	prices := make([]float64, n)
	for i := range prices {
		prices[i] = 10
	}
	prices[0] = 0.01 // cheapest slot should be charged first
	a.priceProfile.Set(day0, prices)

	a.calculateSmartDemand(day0, day0.Add(oneDay))
	demand := a.smartDemand.Get(day0, day0.Add(oneDay))
	assert.Equal(t, a.ChargingPowerKW, demand[0])
}

func TestAccumulator_UncontrolledDemand_ChargesWhenEmpty(t *testing.T) {
	a := newTestAccumulator(1.0, 6.0) // 6kW charger fully refills in 10 minutes
	a.uncontrolledCharge = 0.0

	discharging := make([]float64, minutesPerDay)
	a.dischargingProfile.Set(day0, discharging)

	a.calculateUncontrolledDemand(day0, day0.Add(oneDay))
	demand := a.uncontrolledDemand.Get(day0, day0.Add(oneDay))
	assert.Equal(t, 6.0, demand[0])
}

func TestAccumulator_SpreadOutDemand_TogglesAtBounds(t *testing.T) {
	a := newTestAccumulator(0.15, 6.0)
	a.spreadOutCharge = 0.15
	a.spreadOutCharging = false

	discharging := make([]float64, minutesPerDay)
	for i := range discharging {
		discharging[i] = 6.0
	}
	a.dischargingProfile.Set(day0, discharging)

	a.calculateSpreadOutDemand(day0, day0.Add(oneDay))
	demand := a.spreadOutDemand.Get(day0, day0.Add(oneDay))
	// Starts full and not charging; minute 0's discharge (0.1kWh) still
	// leaves it above empty, but minute 1's discharge pushes it to/below
	// empty, so charging turns on within that same minute.
	assert.Equal(t, 0.0, demand[0])
	assert.Equal(t, 6.0, demand[1])
}
