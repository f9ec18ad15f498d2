package profile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestProfile_GetZeroPadsOutOfRange(t *testing.T) {
	p := New()
	p.Set(t0, []float64{1, 2, 3})

	before := p.Get(t0.Add(-2*Minute), t0)
	assert.Equal(t, []float64{0, 0}, before)

	after := p.Get(t0.Add(3*Minute), t0.Add(5*Minute))
	assert.Equal(t, []float64{0, 0}, after)
}

func TestProfile_GetConcatenationInvariant(t *testing.T) {
	p := New()
	p.Set(t0, []float64{1, 2, 3, 4, 5, 6})

	t1 := t0.Add(-1 * Minute)
	t2 := t0.Add(3 * Minute)
	t3 := t0.Add(8 * Minute)

	whole := p.Get(t1, t3)
	left := p.Get(t1, t2)
	right := p.Get(t2, t3)
	assert.Equal(t, whole, append(append([]float64{}, left...), right...))
}

func TestProfile_Add(t *testing.T) {
	p := New()
	p.Set(t0, []float64{1, 1, 1})
	p.Add(t0.Add(1*Minute), []float64{10, 10, 10})

	assert.Equal(t, []float64{1, 11, 11, 10}, p.Get(t0, t0.Add(4*Minute)))
}

func TestProfile_Prune(t *testing.T) {
	p := New()
	p.Set(t0, []float64{1, 2, 3, 4})
	before := p.Get(t0.Add(2*Minute), t0.Add(4*Minute))

	p.Prune(t0.Add(2 * Minute))
	after := p.Get(t0.Add(2*Minute), t0.Add(4*Minute))

	assert.Equal(t, before, after)
	assert.Equal(t, []float64{3, 4}, after)
}

func TestProfile_TransitionCosineCrossfade(t *testing.T) {
	p := New()
	p.Set(t0, []float64{1, 1, 1, 1})
	p.Transition(t0.Add(2*Minute), []float64{0, 0, 0, 0})

	got := p.Get(t0, t0.Add(6*Minute))
	assert.InDelta(t, 1.0, got[0], 1e-9)
	assert.InDelta(t, 1.0, got[1], 1e-9)
	assert.InDelta(t, 1.0, got[2], 1e-9)
	assert.InDelta(t, 0.5, got[3], 1e-9)
	assert.InDelta(t, 0.0, got[4], 1e-9)
	assert.InDelta(t, 0.0, got[5], 1e-9)
}

func TestProfile_TransitionExtendsBeyondOverlap(t *testing.T) {
	p := New()
	p.Set(t0, []float64{5, 5})
	p.Transition(t0, []float64{1, 2, 3, 4, 5})

	got := p.Get(t0, t0.Add(5*Minute))
	assert.InDelta(t, 5, got[4], 1e-9)
}

func TestProfile_DailyAverages(t *testing.T) {
	p := New()
	p.Set(t0, []float64{0, 2, 4, 6})
	avgs := p.DailyAverages()
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.InDelta(t, 3.0, avgs[day], 1e-9)
}

func TestProfile_SetBeforeT0ShiftsAnchor(t *testing.T) {
	p := New()
	p.Set(t0, []float64{1, 2})
	p.Set(t0.Add(-2*Minute), []float64{9, 9})

	assert.Equal(t, t0.Add(-2*Minute), p.T0())
	assert.Equal(t, []float64{9, 9, 1, 2}, p.Get(t0.Add(-2*Minute), t0.Add(2*Minute)))
}
