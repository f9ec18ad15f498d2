package connection

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridsim/internal/house"
	"gridsim/internal/simutil"
	"gridsim/internal/stats"
)

var day0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func TestConnection_GenerateRandomCheaperIntervals_MeetsFloor(t *testing.T) {
	c := New(house.New(), stats.PriceConfig{
		CheapIntervalLength: 60, CheapMinutesCount: 360,
		LowerPrice: 1.0, HigherPrice: 2.0,
	})
	rng := rand.New(rand.NewPCG(1, 1))

	dayMinutes := simutil.MinutesIn(simutil.OneDay)
	probs := make([]float64, 3*dayMinutes)
	for i := range probs {
		probs[i] = 0.5
	}
	c.cheaperPriceRatioProfile.Set(day0.Add(-simutil.OneDay), probs)

	c.generateRandomCheaperIntervals(day0, day0.Add(simutil.OneDay), rng)

	mask := c.cheaperMinutesProfile.Get(day0, day0.Add(simutil.OneDay))
	var count float64
	for _, v := range mask {
		if v >= 1 {
			count++
		}
	}
	assert.GreaterOrEqual(t, count, 360.0)
}

func TestConnection_GeneratePriceProfile_MatchesMask(t *testing.T) {
	c := New(house.New(), stats.PriceConfig{LowerPrice: 1.0, HigherPrice: 5.0})
	rng := rand.New(rand.NewPCG(2, 2))

	c.cheaperMinutesProfile.Set(day0, []float64{0, 1, 0, 1})
	c.generatePriceProfile(day0, day0.Add(4*time.Minute), rng)

	prices := c.priceProfile.Get(day0, day0.Add(4*time.Minute))
	assert.InDelta(t, 5.0, prices[0], 0.01)
	assert.InDelta(t, 1.0, prices[1], 0.01)
	assert.InDelta(t, 5.0, prices[2], 0.01)
	assert.InDelta(t, 1.0, prices[3], 0.01)
}

// priceRecorder is an appliance stub that records the last price profile its
// house forwarded to it.
type priceRecorder struct {
	from   time.Time
	prices []float64
}

func (r *priceRecorder) SetUp(dt time.Time, rng *rand.Rand) {}
func (r *priceRecorder) Tick(rng *rand.Rand)                {}
func (r *priceRecorder) SetPriceProfile(from time.Time, prices []float64) {
	r.from, r.prices = from, prices
}
func (r *priceRecorder) SmartDemand(from, to time.Time) []float64        { return nil }
func (r *priceRecorder) UncontrolledDemand(from, to time.Time) []float64 { return nil }
func (r *priceRecorder) SpreadOutDemand(from, to time.Time) []float64    { return nil }

func TestConnection_SetUp_ForwardsPriceToHouse(t *testing.T) {
	h := house.New()
	rec := &priceRecorder{}
	h.AddAppliance(rec)
	c := New(h, stats.PriceConfig{
		CheapIntervalLength: 60, CheapMinutesCount: 0,
		LowerPrice: 1.0, HigherPrice: 2.0,
	})
	rng := rand.New(rand.NewPCG(3, 3))

	c.SetUp(day0, rng)

	// No price ratio was set, so every minute is expensive: 2.0 plus jitter
	// in [0, 0.01), over the three days [day0-1d, day0+2d).
	assert.Equal(t, day0.Add(-simutil.OneDay), rec.from)
	require.Len(t, rec.prices, 3*simutil.MinutesIn(simutil.OneDay))
	for _, p := range rec.prices {
		assert.InDelta(t, 2.005, p, 0.005)
	}
}
