// Package profile implements the minute-resolution time series used
// throughout the simulator: power demands, prices, availability ratios and
// every other signal that flows between Grid, Connection, House and
// Appliance all share this one representation.
package profile

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// Minute is the atomic simulation timestep.
const Minute = time.Minute

// Profile is a contiguous, minute-aligned sequence of float64 values anchored
// at t0. Reads outside [t0, t0+len(values)) are zero-padded; writes may
// extend the backing slice.
type Profile struct {
	t0     time.Time
	values []float64
}

// New returns an empty profile. t0 is only meaningful once the first value
// is written; an empty profile reads as all-zero everywhere.
func New() *Profile {
	return &Profile{}
}

// minutesBetween returns how many whole minutes separate from and to. A
// negative result means to precedes from.
func minutesBetween(from, to time.Time) int {
	return int(to.Sub(from) / Minute)
}

// index returns the slice index corresponding to dt, valid or not.
func (p *Profile) index(dt time.Time) int {
	if p.values == nil {
		return 0
	}
	return minutesBetween(p.t0, dt)
}

func (p *Profile) ensureLen(n int) {
	if n <= len(p.values) {
		return
	}
	grown := make([]float64, n)
	copy(grown, p.values)
	p.values = grown
}

// Get returns a freshly allocated vector of length minutes(to-from), zero
// padded wherever it falls outside the stored range.
func (p *Profile) Get(from, to time.Time) []float64 {
	n := minutesBetween(from, to)
	if n <= 0 {
		return []float64{}
	}
	out := make([]float64, n)
	if p.values == nil {
		return out
	}

	startIdx := minutesBetween(p.t0, from)
	for i := 0; i < n; i++ {
		srcIdx := startIdx + i
		if srcIdx >= 0 && srcIdx < len(p.values) {
			out[i] = p.values[srcIdx]
		}
	}
	return out
}

// Set overwrites the window starting at from with values, extending storage
// (and, if the profile was empty, anchoring t0) as needed.
func (p *Profile) Set(from time.Time, values []float64) {
	if len(values) == 0 {
		return
	}
	if p.values == nil {
		p.t0 = from
	}
	startIdx := p.index(from)
	if startIdx < 0 {
		// Writing before t0: shift the anchor back and pad the gap with zero.
		p.shiftStartTo(from)
		startIdx = 0
	}
	p.ensureLen(startIdx + len(values))
	copy(p.values[startIdx:startIdx+len(values)], values)
}

// Add accumulates values element-wise into the window starting at from,
// extending and zero-initializing new cells as needed.
func (p *Profile) Add(from time.Time, values []float64) {
	if len(values) == 0 {
		return
	}
	if p.values == nil {
		p.t0 = from
	}
	startIdx := p.index(from)
	if startIdx < 0 {
		p.shiftStartTo(from)
		startIdx = 0
	}
	p.ensureLen(startIdx + len(values))
	for i, v := range values {
		p.values[startIdx+i] += v
	}
}

// shiftStartTo moves t0 earlier to newT0, prepending zeros so existing data
// keeps its absolute position.
func (p *Profile) shiftStartTo(newT0 time.Time) {
	shift := minutesBetween(newT0, p.t0)
	if shift <= 0 {
		return
	}
	grown := make([]float64, shift+len(p.values))
	copy(grown[shift:], p.values)
	p.values = grown
	p.t0 = newT0
}

// Transition smoothly cosine-crossfades the stored tail (from `from` to the
// current end) into newValues over their overlap, then appends whatever of
// newValues extends beyond the previous end. Ratio at offset k of an overlap
// of length L is (cos(pi*k/L)+1)/2, applied to the old value; the
// complement applies to the new one.
func (p *Profile) Transition(from time.Time, newValues []float64) {
	if len(newValues) == 0 {
		return
	}
	if p.values == nil {
		p.Set(from, newValues)
		return
	}

	startIdx := p.index(from)
	if startIdx < 0 {
		p.shiftStartTo(from)
		startIdx = 0
	}

	overlap := len(p.values) - startIdx
	if overlap < 0 {
		overlap = 0
	}
	if overlap > len(newValues) {
		overlap = len(newValues)
	}

	p.ensureLen(startIdx + len(newValues))

	if overlap > 0 {
		for k := 0; k < overlap; k++ {
			ratio := (math.Cos(math.Pi*float64(k)/float64(overlap)) + 1) / 2
			old := p.values[startIdx+k]
			p.values[startIdx+k] = old*ratio + newValues[k]*(1-ratio)
		}
	}
	for k := overlap; k < len(newValues); k++ {
		p.values[startIdx+k] = newValues[k]
	}
}

// Prune advances t0 to toDT, dropping everything strictly before it.
func (p *Profile) Prune(toDT time.Time) {
	if p.values == nil {
		p.t0 = toDT
		return
	}
	cut := minutesBetween(p.t0, toDT)
	if cut <= 0 {
		return
	}
	if cut >= len(p.values) {
		p.values = nil
		p.t0 = toDT
		return
	}
	p.values = append([]float64(nil), p.values[cut:]...)
	p.t0 = toDT
}

// DailyAverages returns the arithmetic mean of every calendar day covered by
// the profile, using whatever cells exist within that day.
func (p *Profile) DailyAverages() map[time.Time]float64 {
	result := make(map[time.Time]float64)
	if p.values == nil {
		return result
	}

	sums := make(map[time.Time]float64)
	counts := make(map[time.Time]int)
	for i, v := range p.values {
		dt := p.t0.Add(time.Duration(i) * Minute)
		day := time.Date(dt.Year(), dt.Month(), dt.Day(), 0, 0, 0, 0, dt.Location())
		sums[day] += v
		counts[day]++
	}
	for day, sum := range sums {
		result[day] = sum / float64(counts[day])
	}
	return result
}

// T0 reports the profile's current anchor. Valid only when the profile has
// been written to at least once.
func (p *Profile) T0() time.Time {
	return p.t0
}

// Len reports how many minute slots are currently stored.
func (p *Profile) Len() int {
	return len(p.values)
}

// FromCSV loads a two-column (timestamp,value) CSV into a new Profile. The
// first row's timestamp becomes t0; rows must be minute-spaced and strictly
// ascending, mirroring the fixed-input datasets described in the external
// interfaces section.
func FromCSV(path string) (*Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening profile csv %s: %w", path, err)
	}
	defer f.Close()

	var values []float64
	var t0 time.Time
	first := true
	lineNo := 0

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		cols := strings.SplitN(line, ",", 2)
		if len(cols) != 2 {
			return nil, fmt.Errorf("%s:%d: expected 2 columns, got %d", path, lineNo, len(cols))
		}
		ts, err := parseTimestamp(strings.TrimSpace(cols[0]))
		if err != nil {
			return nil, fmt.Errorf("%s:%d: parsing timestamp: %w", path, lineNo, err)
		}
		val, err := strconv.ParseFloat(strings.TrimSpace(cols[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: parsing value: %w", path, lineNo, err)
		}

		if first {
			t0 = ts
			first = false
		} else {
			expected := t0.Add(time.Duration(len(values)) * Minute)
			if !ts.Equal(expected) {
				return nil, fmt.Errorf("%s:%d: rows must be minute-spaced and strictly ascending, got %s want %s", path, lineNo, ts, expected)
			}
		}
		values = append(values, val)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading profile csv %s: %w", path, err)
	}
	if first {
		return nil, fmt.Errorf("profile csv %s has no data rows", path)
	}

	return &Profile{t0: t0, values: values}, nil
}

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02",
}

func parseTimestamp(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, lastErr
}
