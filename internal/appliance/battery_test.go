package appliance

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridsim/internal/stats"
)

var day0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func newTestBattery() *Battery {
	return NewBattery(&stats.BatteryStats{
		ChargingPowers:     []float64{7.2},
		UsageProbabilities: map[time.Time]float64{},
		NeededCharges:      map[time.Time][]float64{},
		UsageIntervals:     map[time.Time][]stats.UsageInterval{},
	}, 7.2)
}

func TestBattery_SmartDemand_FitsEntirelyWithinCheapestSlots(t *testing.T) {
	b := newTestBattery()
	b.usages[day0] = batteryUsage{connectMinute: 18 * 60, disconnectMinute: -1, chargeNeededKWh: 7.2}
	b.usages[day0.Add(oneDay)] = batteryUsage{disconnectMinute: 6 * 60}

	flatPrices := make([]float64, 2*minutesPerDay)
	for i := range flatPrices {
		flatPrices[i] = 1.0
	}
	b.SetPriceProfile(day0, flatPrices)

	b.calculateSmartDemand(day0, day0.Add(oneDay))
	demand := b.smartDemand.Get(day0, day0.Add(2*oneDay))

	var totalKWh float64
	for _, kw := range demand {
		totalKWh += kw / 60
	}
	assert.InDelta(t, 7.2, totalKWh, 1e-9)
}

func TestBattery_SmartDemand_PrefersCheaperSlots(t *testing.T) {
	b := newTestBattery()
	b.usages[day0] = batteryUsage{connectMinute: 0, disconnectMinute: -1, chargeNeededKWh: 7.2}
	b.usages[day0.Add(oneDay)] = batteryUsage{disconnectMinute: 23*60 + 59}

	prices := make([]float64, 2*minutesPerDay)
	for i := range prices {
		prices[i] = 2.0
	}
	// One cheap minute deep into the window; SMART must pick it over the
	// early, expensive slots even though those come first chronologically.
	prices[500] = 0.01
	b.SetPriceProfile(day0, prices)

	b.calculateSmartDemand(day0, day0.Add(oneDay))
	demand := b.smartDemand.Get(day0, day0.Add(2*oneDay))
	assert.Greater(t, demand[500], 0.0)
}

func TestBattery_UncontrolledDemand_OffByOneGapBeforeRemainder(t *testing.T) {
	b := newTestBattery()
	b.usages[day0] = batteryUsage{connectMinute: 100, disconnectMinute: -1, chargeNeededKWh: 1.0}
	b.usages[day0.Add(oneDay)] = batteryUsage{disconnectMinute: 23*60 + 59}

	b.calculateUncontrolledDemand(day0, day0.Add(oneDay))
	demand := b.uncontrolledDemand.Get(day0, day0.Add(2*oneDay))

	chargePerSlot := b.ChargingPowerKW / 60
	slotsNeeded := int(1.0/chargePerSlot) + 1
	require.Greater(t, slotsNeeded, 1)
	// The slot immediately before the remainder slot is left at zero.
	assert.Equal(t, 0.0, demand[100+slotsNeeded-1])
	assert.Greater(t, demand[100+slotsNeeded], 0.0)
}

func TestBattery_SpreadOutDemand_ConstantOverWindow(t *testing.T) {
	b := newTestBattery()
	// Connect at 23:59, disconnect (tomorrow) at 00:59: an exact 60-minute window.
	b.usages[day0] = batteryUsage{connectMinute: 23*60 + 59, disconnectMinute: -1, chargeNeededKWh: 1.0}
	b.usages[day0.Add(oneDay)] = batteryUsage{disconnectMinute: 59}

	b.calculateSpreadOutDemand(day0, day0.Add(oneDay))
	demand := b.spreadOutDemand.Get(day0, day0.Add(2*oneDay))

	window := demand[23*60+59 : minutesPerDay+59]
	require.Len(t, window, 60)
	for _, v := range window {
		assert.InDelta(t, 1.0, v, 1e-9)
	}
}

func TestBattery_GenerateUsage_MemoizesPerDay(t *testing.T) {
	b := newTestBattery()
	b.Stats.UsageIntervals[day0] = []stats.UsageInterval{{DisconnectMinute: 18 * 60, ConnectMinute: 6 * 60}}
	rng := rand.New(rand.NewPCG(1, 2))

	b.generateUsage(day0, day0.Add(oneDay), rng)
	first := b.usages[day0]
	b.generateUsage(day0, day0.Add(oneDay), rng)
	assert.Equal(t, first, b.usages[day0])
}
