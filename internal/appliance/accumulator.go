package appliance

import (
	"math"
	"math/rand/v2"
	"time"

	"gridsim/internal/profile"
	"gridsim/internal/stats"
)

// Accumulator models the "charge bucket with passive discharge" appliances:
// water heaters, fridges, air conditioning and electrical heating. Grounded
// on appliance.py's Accumulator class.
type Accumulator struct {
	base

	Stats              *stats.AccumulatorStats
	ChargingPowerKW    float64
	CapacityKWh        float64
	DischargingScale   float64
	dischargingProfile *profile.Profile

	smartCharge        float64
	uncontrolledCharge float64
	spreadOutCharge    float64
	spreadOutCharging  bool
}

// NewAccumulator builds an Accumulator with explicit physical parameters.
// The SMART and SPREAD-OUT initial charges and the SPREAD-OUT charging flag
// are randomized per appliance.py's constructor so the fleet doesn't start
// in lockstep; the UNCONTROLLED charge starts full.
func NewAccumulator(classStats *stats.AccumulatorStats, chargingPowerKW, capacityKWh, dischargingScale float64, rng *rand.Rand) *Accumulator {
	return &Accumulator{
		base:               newBase(),
		Stats:              classStats,
		ChargingPowerKW:    chargingPowerKW,
		CapacityKWh:        capacityKWh,
		DischargingScale:   dischargingScale,
		dischargingProfile: profile.New(),
		smartCharge:        rng.Float64() * capacityKWh,
		uncontrolledCharge: capacityKWh,
		spreadOutCharge:    rng.Float64() * capacityKWh,
		spreadOutCharging:  rng.IntN(2) == 1,
	}
}

// RandomAccumulator samples charging power, capacity and discharge scale
// from the class's fitted distributions, mirroring Accumulator.random().
func RandomAccumulator(classStats *stats.AccumulatorStats, rng *rand.Rand) *Accumulator {
	power := classStats.ChargingPowers[rng.IntN(len(classStats.ChargingPowers))]
	capacity := classStats.CapacityMean + classStats.CapacityStd*rng.NormFloat64()
	if min := 1.1 * power / 60; capacity < min {
		capacity = min
	}
	scale := classStats.ScaleMean + classStats.ScaleStd*rng.NormFloat64()
	if classStats.AverageChargingPower > 0 {
		scale *= power / classStats.AverageChargingPower
	}
	return NewAccumulator(classStats, power, capacity, scale, rng)
}

func (a *Accumulator) SetUp(dt time.Time, rng *rand.Rand) {
	a.currentDT = dt
	a.generateUsage(dt, dt.Add(oneDay))
}

func (a *Accumulator) Tick(rng *rand.Rand) {
	cutoff := a.currentDT.Add(-oneDay)
	a.pruneDemandProfiles(cutoff)
	a.dischargingProfile.Prune(cutoff)

	a.generateUsage(a.currentDT.Add(oneDay), a.currentDT.Add(2*oneDay))
	a.calculateDemand(a.currentDT, a.currentDT.Add(oneDay))
	a.currentDT = a.currentDT.Add(oneDay)
}

// generateUsage realizes this instance's scaled discharging curve for the
// window, overwriting (not accumulating) per appliance.py's use of set().
func (a *Accumulator) generateUsage(from, to time.Time) {
	classCurve := a.Stats.DischargingProfile.Get(from, to)
	scaled := make([]float64, len(classCurve))
	for i, v := range classCurve {
		scaled[i] = v * a.DischargingScale
	}
	a.dischargingProfile.Set(from, scaled)
}

func (a *Accumulator) calculateDemand(from, to time.Time) {
	a.calculateSmartDemand(from, to)
	a.calculateUncontrolledDemand(from, to)
	a.calculateSpreadOutDemand(from, to)
}

// calculateSmartDemand solves the cheapest feasible charging schedule that
// keeps the bucket's charge within [0, capacity] at every minute, given the
// known discharging curve a day ahead. The core of this is a greedy,
// price-ascending slot acceptance over a pair of monotone bound arrays,
// grounded directly on appliance.py's Accumulator.calculateSmartDemand —
// the algorithm is unusual enough that this is a careful line-by-line port
// rather than a reinterpretation.
func (a *Accumulator) calculateSmartDemand(from, to time.Time) {
	endMargin := oneDay
	wantedSlots := minutesBetween(from, to)
	totalSlots := minutesBetween(from, to.Add(endMargin))
	if wantedSlots <= 0 || totalSlots <= 0 {
		return
	}

	chargingRate := a.ChargingPowerKW / 60
	prices := a.priceProfile.Get(from, to.Add(endMargin))
	dischargingRaw := a.dischargingProfile.Get(from, to.Add(endMargin))

	dischargingSum := make([]float64, totalSlots)
	running := 0.0
	for i := 0; i < totalSlots; i++ {
		running += dischargingRaw[i] / 60
		dischargingSum[i] = running
	}

	startingCharge := a.smartCharge

	// Extended arrays prepend a synthetic index 0 (the "before slot 0" bound)
	// so the backward pass and the run searches below can look one index
	// earlier without a special case.
	lowerLimit := make([]int, totalSlots+1)
	upperLimit := make([]int, totalSlots+1)
	for i := 0; i < totalSlots; i++ {
		ll := int(math.Ceil((0 - startingCharge + dischargingSum[i]) / chargingRate))
		if ll < 0 {
			ll = 0
		}
		lowerLimit[i+1] = ll

		ul := int(math.Floor((a.CapacityKWh - startingCharge + dischargingSum[i]) / chargingRate))
		if ul > totalSlots {
			ul = totalSlots
		}
		upperLimit[i+1] = ul
	}

	// Forward pass: both bounds are non-decreasing in time.
	for i := 1; i < len(lowerLimit); i++ {
		if lowerLimit[i] < lowerLimit[i-1] {
			lowerLimit[i] = lowerLimit[i-1]
		}
		if upperLimit[i] < upperLimit[i-1] {
			upperLimit[i] = upperLimit[i-1]
		}
	}
	// Backward pass: a bound can advance by at most one accepted slot per step.
	for i := len(lowerLimit) - 2; i >= 0; i-- {
		if lowerLimit[i] < lowerLimit[i+1]-1 {
			lowerLimit[i] = lowerLimit[i+1] - 1
		}
		if upperLimit[i] < upperLimit[i+1]-1 {
			upperLimit[i] = upperLimit[i+1] - 1
		}
	}
	// Prefix cap: the bound at extended index i can never exceed i itself,
	// since at most i slots have been decided by then. Stops at the first
	// index that already satisfies this (the rest are guaranteed to as well).
	for i := 0; i < len(lowerLimit); i++ {
		if lowerLimit[i] > i {
			lowerLimit[i] = i
		} else {
			break
		}
	}
	for i := 0; i < len(upperLimit); i++ {
		if upperLimit[i] > i {
			upperLimit[i] = i
		} else {
			break
		}
	}

	chargingProfile := make([]float64, totalSlots)
	order := argsortAscending(prices)
	for _, slot := range order {
		if lowerLimit[slot] >= upperLimit[slot+1] || lowerLimit[slot] >= lowerLimit[totalSlots] {
			continue
		}
		chargingProfile[slot] = 1

		lowerSlot := firstIndexWhere(lowerLimit, func(v int) bool { return v > lowerLimit[slot] })
		for i := lowerSlot; i < len(lowerLimit); i++ {
			lowerLimit[i]--
		}

		upperSlot := firstIndexWhere(upperLimit, func(v int) bool { return v == upperLimit[slot+1] })
		for i := upperSlot; i < len(upperLimit); i++ {
			upperLimit[i]--
		}
	}

	var acceptedInWanted float64
	for i := 0; i < wantedSlots; i++ {
		acceptedInWanted += chargingProfile[i]
	}
	a.smartCharge = startingCharge - dischargingSum[wantedSlots-1] + acceptedInWanted*chargingRate

	powerProfile := make([]float64, wantedSlots)
	for i := 0; i < wantedSlots; i++ {
		powerProfile[i] = chargingProfile[i] * a.ChargingPowerKW
	}
	a.smartDemand.Set(from, powerProfile)
}

// firstIndexWhere returns the first index whose value satisfies cond, or 0
// if none does (matching numpy argmax over an all-False boolean array).
func firstIndexWhere(xs []int, cond func(int) bool) int {
	for i, v := range xs {
		if cond(v) {
			return i
		}
	}
	return 0
}

func (a *Accumulator) calculateUncontrolledDemand(from, to time.Time) {
	n := minutesBetween(from, to)
	if n <= 0 {
		return
	}
	chargingRate := a.ChargingPowerKW / 60
	discharging := a.dischargingProfile.Get(from, to)

	powerProfile := make([]float64, n)
	charge := a.uncontrolledCharge
	for i := 0; i < n; i++ {
		charge -= discharging[i] / 60
		if charge+chargingRate < a.CapacityKWh {
			charge += chargingRate
			powerProfile[i] = a.ChargingPowerKW
		}
	}
	a.uncontrolledCharge = charge
	a.uncontrolledDemand.Set(from, powerProfile)
}

func (a *Accumulator) calculateSpreadOutDemand(from, to time.Time) {
	n := minutesBetween(from, to)
	if n <= 0 {
		return
	}
	chargingRate := a.ChargingPowerKW / 60
	discharging := a.dischargingProfile.Get(from, to)

	powerProfile := make([]float64, n)
	charge := a.spreadOutCharge
	charging := a.spreadOutCharging
	for i := 0; i < n; i++ {
		charge -= discharging[i] / 60
		if charging {
			if charge+chargingRate > a.CapacityKWh {
				charging = false
			}
		} else {
			if charge <= 0 {
				charging = true
			}
		}

		if charging {
			charge += chargingRate
			powerProfile[i] = a.ChargingPowerKW
		}
	}
	a.spreadOutCharge = charge
	a.spreadOutCharging = charging
	a.spreadOutDemand.Set(from, powerProfile)
}
