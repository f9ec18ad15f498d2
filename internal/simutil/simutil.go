// Package simutil collects the small numeric/date helpers shared by Grid
// and Connection, grounded on original_source/simulator/simulator/utils.py.
package simutil

import (
	"math"
	"math/rand/v2"
	"time"
)

const OneDay = 24 * time.Hour

func MinutesIn(d time.Duration) int {
	return int(d / time.Minute)
}

func MinutesBetween(from, to time.Time) int {
	return MinutesIn(to.Sub(from))
}

func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// MidnightsBetween returns every calendar-day midnight in [from, to),
// including from itself when it already falls on a midnight.
func MidnightsBetween(from, to time.Time) []time.Time {
	var out []time.Time
	if from.Equal(DateOnly(from)) {
		out = append(out, from)
	}
	for d := DateOnly(from).Add(OneDay); d.Before(to); d = d.Add(OneDay) {
		out = append(out, d)
	}
	return out
}

// DayPortion is one calendar day together with the fraction of it covered
// by the queried interval.
type DayPortion struct {
	Fraction float64
	Day      time.Time
}

// DayPortionsBetween splits [from, to) into per-calendar-day fractions.
func DayPortionsBetween(from, to time.Time) []DayPortion {
	if !from.Before(to) {
		return nil
	}
	if DateOnly(from).Equal(DateOnly(to)) {
		return []DayPortion{{Fraction: to.Sub(from).Hours() / 24, Day: DateOnly(from)}}
	}

	var out []DayPortion
	current := from
	nextMidnight := DateOnly(from).Add(OneDay)
	for !nextMidnight.After(to) {
		out = append(out, DayPortion{Fraction: nextMidnight.Sub(current).Hours() / 24, Day: DateOnly(current)})
		current = nextMidnight
		nextMidnight = current.Add(OneDay)
	}
	if current.Before(to) {
		out = append(out, DayPortion{Fraction: to.Sub(current).Hours() / 24, Day: DateOnly(current)})
	}
	return out
}

// RandomIndex picks a single index with probability proportional to
// relativeProbs, matching utils.randomWithRelativeProbs(count=None).
func RandomIndex(rng *rand.Rand, relativeProbs []float64) int {
	var total float64
	for _, p := range relativeProbs {
		total += p
	}
	r := rng.Float64() * total
	var cum float64
	for i, p := range relativeProbs {
		cum += p
		if r < cum {
			return i
		}
	}
	return len(relativeProbs) - 1
}

// RandomIndicesWithoutReplacement draws count distinct indices, each round
// weighted by the remaining relativeProbs, matching
// utils.randomWithRelativeProbs(count=N) (numpy.random.choice replace=False).
func RandomIndicesWithoutReplacement(rng *rand.Rand, relativeProbs []float64, count int) []int {
	weights := append([]float64(nil), relativeProbs...)
	chosen := make([]int, 0, count)
	for c := 0; c < count && c < len(weights); c++ {
		var total float64
		for _, w := range weights {
			total += w
		}
		if total <= 0 {
			break
		}
		r := rng.Float64() * total
		var cum float64
		pick := -1
		for i, w := range weights {
			if w <= 0 {
				continue
			}
			cum += w
			if r < cum {
				pick = i
				break
			}
		}
		if pick == -1 {
			for i := len(weights) - 1; i >= 0; i-- {
				if weights[i] > 0 {
					pick = i
					break
				}
			}
		}
		chosen = append(chosen, pick)
		weights[pick] = 0
	}
	return chosen
}

// CosineInterpolation performs a piecewise cosine interpolation through the
// anchor points (xs[i], ys[i]), producing one value per integer position
// from xs[0] to xs[len(xs)-1] inclusive. Shares its crossfade formula with
// profile.Profile.Transition.
func CosineInterpolation(xs []int, ys []float64) []float64 {
	if len(xs) == 0 {
		return nil
	}
	var out []float64
	for i := 0; i < len(xs)-1; i++ {
		length := xs[i+1] - xs[i]
		y1, y2 := ys[i], ys[i+1]
		for k := 0; k < length; k++ {
			ratio := (math.Cos(math.Pi*float64(k)/float64(length)) + 1) / 2
			out = append(out, y1*ratio+y2*(1-ratio))
		}
	}
	out = append(out, ys[len(ys)-1])
	return out
}
