package appliance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"gridsim/internal/stats"
)

func newTestMachine() *Machine {
	return NewMachine(&stats.MachineStats{
		StartAfterMean: 21 * 60, StartAfterStd: 60,
		FinishByMean: 5 * 60, FinishByStd: 60,
		UsageProbabilities: map[time.Time]float64{},
	})
}

func TestMachine_SmartDemand_PicksCheapestStart(t *testing.T) {
	m := newTestMachine()
	runtime := []float64{1, 1, 1}
	m.usages[day0] = machineUsage{used: true, startAfterMinute: 0, finishByMinute: 23*60 + 59, usageProfile: runtime}

	prices := make([]float64, 2*minutesPerDay)
	for i := range prices {
		prices[i] = 10
	}
	// Cheap 3-minute window starting at slot 500.
	prices[500], prices[501], prices[502] = 0.1, 0.1, 0.1
	m.SetPriceProfile(day0, prices)

	m.calculateSmartDemand(day0, day0.Add(oneDay))
	demand := m.smartDemand.Get(day0, day0.Add(2*oneDay))
	assert.Equal(t, 1.0, demand[500])
	assert.Equal(t, 1.0, demand[501])
	assert.Equal(t, 1.0, demand[502])
	assert.Equal(t, 0.0, demand[0])
}

func TestMachine_UncontrolledDemand_StartsImmediatelyAfterAllowed(t *testing.T) {
	m := newTestMachine()
	runtime := []float64{2, 2}
	m.usages[day0] = machineUsage{used: true, startAfterMinute: 300, finishByMinute: 23*60 + 59, usageProfile: runtime}

	m.calculateUncontrolledDemand(day0, day0.Add(oneDay))
	demand := m.uncontrolledDemand.Get(day0, day0.Add(2*oneDay))
	assert.Equal(t, 2.0, demand[300])
	assert.Equal(t, 2.0, demand[301])
	assert.Equal(t, 0.0, demand[299])
}

func TestMachine_SpreadOutDemand_CentersInWindow(t *testing.T) {
	m := newTestMachine()
	runtime := []float64{1}
	m.usages[day0] = machineUsage{used: true, startAfterMinute: 100, finishByMinute: 299, usageProfile: runtime}

	m.calculateSpreadOutDemand(day0, day0.Add(oneDay))
	demand := m.spreadOutDemand.Get(day0, day0.Add(2*oneDay))

	finishBySlot := minutesPerDay + 299
	slack := finishBySlot - 100 - 1
	expectedStart := 100 + slack/2
	assert.Equal(t, 1.0, demand[expectedStart])
}

func TestMachine_NotUsed_ZeroDemand(t *testing.T) {
	m := newTestMachine()
	m.usages[day0] = machineUsage{used: false}

	m.calculateSmartDemand(day0, day0.Add(oneDay))
	m.calculateUncontrolledDemand(day0, day0.Add(oneDay))
	m.calculateSpreadOutDemand(day0, day0.Add(oneDay))

	for _, v := range m.smartDemand.Get(day0, day0.Add(2*oneDay)) {
		assert.Equal(t, 0.0, v)
	}
}
