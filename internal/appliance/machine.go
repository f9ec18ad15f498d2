package appliance

import (
	"math/rand/v2"
	"time"

	"gridsim/internal/stats"
)

// machineUsage records whether the appliance is used on a given day and, if
// so, its allowed start-after/finish-by window and the fixed power curve it
// will run once started.
type machineUsage struct {
	used             bool
	startAfterMinute int
	finishByMinute   int
	usageProfile     []float64
}

// Machine models a fixed-duration, fixed-power-curve appliance run (a
// dishwasher or washing machine cycle) that must start within an allowed
// window. Grounded on appliance.py's Machine class.
type Machine struct {
	base

	Stats  *stats.MachineStats
	usages map[time.Time]machineUsage
}

func NewMachine(machineStats *stats.MachineStats) *Machine {
	return &Machine{
		base:   newBase(),
		Stats:  machineStats,
		usages: make(map[time.Time]machineUsage),
	}
}

func (m *Machine) SetUp(dt time.Time, rng *rand.Rand) {
	m.currentDT = dt
	m.generateUsage(dt, dt.Add(oneDay), rng)
}

func (m *Machine) Tick(rng *rand.Rand) {
	m.pruneDemandProfiles(m.currentDT.Add(-oneDay))
	m.generateUsage(m.currentDT.Add(oneDay), m.currentDT.Add(2*oneDay), rng)
	m.calculateDemand(m.currentDT, m.currentDT.Add(oneDay))
	m.currentDT = m.currentDT.Add(oneDay)
}

func (m *Machine) generateUsage(from, to time.Time, rng *rand.Rand) {
	for _, day := range midnightsBetween(from, to) {
		if _, ok := m.usages[day]; ok {
			continue
		}
		if rng.Float64() >= m.Stats.UsageProbabilities[day] {
			m.usages[day] = machineUsage{used: false}
			continue
		}
		m.usages[day] = machineUsage{
			used:             true,
			startAfterMinute: clampedGaussianMinute(rng, m.Stats.StartAfterMean, m.Stats.StartAfterStd),
			finishByMinute:   clampedGaussianMinute(rng, m.Stats.FinishByMean, m.Stats.FinishByStd),
			usageProfile:     m.Stats.UsageProfiles[rng.IntN(len(m.Stats.UsageProfiles))],
		}
	}
}

func (m *Machine) calculateDemand(from, to time.Time) {
	m.calculateSmartDemand(from, to)
	m.calculateUncontrolledDemand(from, to)
	m.calculateSpreadOutDemand(from, to)
}

func (m *Machine) calculateSmartDemand(from, to time.Time) {
	for _, day := range midnightsBetween(from, to) {
		usage := m.usages[day]
		powerProfile := make([]float64, 2*minutesPerDay)

		if usage.used {
			prices := m.priceProfile.Get(day, day.Add(2*oneDay))
			startAfter := usage.startAfterMinute
			finishBy := minutesPerDay + usage.finishByMinute
			runtime := len(usage.usageProfile)

			startSlot := startAfter
			if finishBy-startAfter > runtime {
				bestCost := dot(usage.usageProfile, prices[startAfter:startAfter+runtime])
				bestSlot := startAfter
				for s := startAfter + 1; s < finishBy-runtime; s++ {
					cost := dot(usage.usageProfile, prices[s:s+runtime])
					if cost < bestCost {
						bestCost = cost
						bestSlot = s
					}
				}
				startSlot = bestSlot
			}
			copy(powerProfile[startSlot:startSlot+runtime], usage.usageProfile)
		}

		m.smartDemand.Add(day, powerProfile)
	}
}

func (m *Machine) calculateUncontrolledDemand(from, to time.Time) {
	for _, day := range midnightsBetween(from, to) {
		usage := m.usages[day]
		powerProfile := make([]float64, 2*minutesPerDay)
		if usage.used {
			copy(powerProfile[usage.startAfterMinute:usage.startAfterMinute+len(usage.usageProfile)], usage.usageProfile)
		}
		m.uncontrolledDemand.Add(day, powerProfile)
	}
}

func (m *Machine) calculateSpreadOutDemand(from, to time.Time) {
	for _, day := range midnightsBetween(from, to) {
		usage := m.usages[day]
		powerProfile := make([]float64, 2*minutesPerDay)
		if usage.used {
			startAfter := usage.startAfterMinute
			finishBy := minutesPerDay + usage.finishByMinute
			runtime := len(usage.usageProfile)

			slack := finishBy - startAfter - runtime
			if slack < 0 {
				slack = 0
			}
			startSlot := startAfter + slack/2
			copy(powerProfile[startSlot:startSlot+runtime], usage.usageProfile)
		}
		m.spreadOutDemand.Add(day, powerProfile)
	}
}
