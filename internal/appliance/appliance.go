// Package appliance implements the three household appliance variants
// (Battery, Accumulator, Machine) and their SMART / UNCONTROLLED /
// SPREAD-OUT demand-scheduling algorithms, grounded on
// original_source/simulator/simulator/appliance.py.
package appliance

import (
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"gridsim/internal/profile"
)

const oneDay = 24 * time.Hour
const minutesPerDay = 1440

// Appliance is satisfied by Battery, Accumulator and Machine: the tagged
// variant dispatch the design notes call for, modeled here as three
// concrete types behind one interface rather than a class hierarchy.
type Appliance interface {
	SetUp(dt time.Time, rng *rand.Rand)
	Tick(rng *rand.Rand)
	SetPriceProfile(from time.Time, prices []float64)
	SmartDemand(from, to time.Time) []float64
	UncontrolledDemand(from, to time.Time) []float64
	SpreadOutDemand(from, to time.Time) []float64
}

// base holds the state common to every appliance variant: the simulated
// clock and the four profiles (price in, three demand variants out).
type base struct {
	currentDT          time.Time
	priceProfile       *profile.Profile
	smartDemand        *profile.Profile
	uncontrolledDemand *profile.Profile
	spreadOutDemand    *profile.Profile
}

func newBase() base {
	return base{
		priceProfile:       profile.New(),
		smartDemand:        profile.New(),
		uncontrolledDemand: profile.New(),
		spreadOutDemand:    profile.New(),
	}
}

func (b *base) SetPriceProfile(from time.Time, prices []float64) {
	b.priceProfile.Set(from, prices)
}

func (b *base) SmartDemand(from, to time.Time) []float64 {
	return b.smartDemand.Get(from, to)
}

func (b *base) UncontrolledDemand(from, to time.Time) []float64 {
	return b.uncontrolledDemand.Get(from, to)
}

func (b *base) SpreadOutDemand(from, to time.Time) []float64 {
	return b.spreadOutDemand.Get(from, to)
}

func (b *base) pruneDemandProfiles(cutoff time.Time) {
	b.priceProfile.Prune(cutoff)
	b.smartDemand.Prune(cutoff)
	b.uncontrolledDemand.Prune(cutoff)
	b.spreadOutDemand.Prune(cutoff)
}

// midnightsBetween returns every calendar-day midnight in [from, to).
func midnightsBetween(from, to time.Time) []time.Time {
	if !from.Equal(dateOnly(from)) {
		from = dateOnly(from).Add(oneDay)
	}
	var out []time.Time
	for d := dateOnly(from); d.Before(to); d = d.Add(oneDay) {
		out = append(out, d)
	}
	return out
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func minutesBetween(from, to time.Time) int {
	return int(to.Sub(from) / time.Minute)
}

// clampedGaussianMinute samples floor(mean + std*Z) clipped to [0, 1439],
// matching BatteryStatistics/MachineStatistics's randomStartAfter/randomFinishBy.
func clampedGaussianMinute(rng *rand.Rand, mean, std float64) int {
	m := int(math.Floor(mean + std*rng.NormFloat64()))
	if m < 0 {
		m = 0
	}
	if m > minutesPerDay-1 {
		m = minutesPerDay - 1
	}
	return m
}

// argsortAscending returns the permutation of [0,len(xs)) that would sort
// xs ascending. Ties keep their original relative order (stable), so the
// small per-minute price jitter applied upstream is what actually breaks
// ties rather than sort implementation details.
func argsortAscending(xs []float64) []int {
	idx := make([]int, len(xs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool { return xs[idx[i]] < xs[idx[j]] })
	return idx
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
