// Package connection models the link between the grid and a single house:
// it turns the grid's cheap-price probability signal into a concrete,
// stochastic minute-by-minute price profile and forwards it to the house.
// Grounded on original_source/simulator/simulator/connection.py.
package connection

import (
	"math/rand/v2"
	"time"

	"gridsim/internal/house"
	"gridsim/internal/profile"
	"gridsim/internal/simutil"
	"gridsim/internal/stats"
)

// Connection realizes one house's actual price profile from the grid's
// cheap-price-ratio signal.
type Connection struct {
	currentDT time.Time

	House *house.House
	Price stats.PriceConfig

	cheaperPriceRatioProfile *profile.Profile
	cheaperMinutesProfile    *profile.Profile
	priceProfile             *profile.Profile
}

func New(h *house.House, priceConfig stats.PriceConfig) *Connection {
	return &Connection{
		House:                    h,
		Price:                    priceConfig,
		cheaperPriceRatioProfile: profile.New(),
		cheaperMinutesProfile:    profile.New(),
		priceProfile:             profile.New(),
	}
}

func (c *Connection) SetUp(dt time.Time, rng *rand.Rand) {
	c.currentDT = dt
	c.House.SetUp(dt, rng)

	c.generateRandomCheaperIntervals(dt.Add(-simutil.OneDay), dt.Add(2*simutil.OneDay), rng)
	c.generatePriceProfile(dt.Add(-simutil.OneDay), dt.Add(2*simutil.OneDay), rng)
	c.sendPriceProfile(dt.Add(-simutil.OneDay), dt.Add(2*simutil.OneDay))
}

func (c *Connection) Tick(rng *rand.Rand) {
	cutoff := c.currentDT.Add(-simutil.OneDay)
	c.cheaperPriceRatioProfile.Prune(cutoff)
	c.cheaperMinutesProfile.Prune(cutoff)
	c.priceProfile.Prune(cutoff)

	c.currentDT = c.currentDT.Add(simutil.OneDay)
	cdt := c.currentDT

	c.generateRandomCheaperIntervals(cdt.Add(simutil.OneDay), cdt.Add(2*simutil.OneDay), rng)
	c.generatePriceProfile(cdt.Add(simutil.OneDay), cdt.Add(2*simutil.OneDay), rng)
	c.sendPriceProfile(cdt.Add(simutil.OneDay), cdt.Add(2*simutil.OneDay))

	c.House.Tick(rng)
}

// generateRandomCheaperIntervals realizes concrete cheap-minute positions
// from the grid's cheap-price-ratio probabilities, guaranteeing at least
// Price.CheapMinutesCount cheap minutes per day once that floor is
// configured, per connection.py's two sampling strategies.
func (c *Connection) generateRandomCheaperIntervals(from, to time.Time, rng *rand.Rand) {
	if c.Price.CheapMinutesCount == 0 {
		probs := c.cheaperPriceRatioProfile.Get(from, to)
		mask := make([]float64, len(probs))
		for i, p := range probs {
			if rng.Float64() < p {
				mask[i] = 1
			}
		}
		c.cheaperMinutesProfile.Add(from, mask)
		return
	}

	intervalLen := c.Price.CheapIntervalLength
	dayMinutes := simutil.MinutesIn(simutil.OneDay)
	shift := time.Duration(intervalLen) * time.Minute

	for _, midnight := range simutil.MidnightsBetween(from, to) {
		cheaperIntervals := make([]float64, dayMinutes+2*intervalLen)
		probs := c.cheaperPriceRatioProfile.Get(midnight.Add(shift), midnight.Add(shift).Add(simutil.OneDay))

		if intervalLen == 1 {
			positions := simutil.RandomIndicesWithoutReplacement(rng, probs, c.Price.CheapMinutesCount)
			for _, pos := range positions {
				cheaperIntervals[pos] = 1
			}
		} else {
			shiftMinutes := simutil.MinutesIn(shift)
			var total float64
			for {
				for _, v := range cheaperIntervals {
					total += v
				}
				if total >= float64(c.Price.CheapMinutesCount) {
					break
				}
				total = 0
				start := shiftMinutes + simutil.RandomIndex(rng, probs) - intervalLen/2
				for i := start; i < start+intervalLen; i++ {
					if i >= 0 && i < len(cheaperIntervals) {
						cheaperIntervals[i] = 1
					}
				}
			}
		}

		c.cheaperMinutesProfile.Add(midnight, cheaperIntervals)
	}
}

// generatePriceProfile turns the realized cheap-minute mask into concrete
// prices, with a small uniform jitter so ties between cheap minutes don't
// always resolve in chronological order.
func (c *Connection) generatePriceProfile(from, to time.Time, rng *rand.Rand) {
	mask := c.cheaperMinutesProfile.Get(from, to)
	prices := make([]float64, len(mask))
	for i, m := range mask {
		if m >= 1 {
			prices[i] = c.Price.LowerPrice
		} else {
			prices[i] = c.Price.HigherPrice
		}
		prices[i] += rng.Float64() * 0.01
	}
	c.priceProfile.Set(from, prices)
}

func (c *Connection) sendPriceProfile(from, to time.Time) {
	c.House.SetPriceProfile(from, c.priceProfile.Get(from, to))
}

// SetPriceRatio receives the grid's cheap-price probability signal.
func (c *Connection) SetPriceRatio(from time.Time, ratio []float64) {
	c.cheaperPriceRatioProfile.Set(from, ratio)
}

func (c *Connection) SmartDemand(from, to time.Time) []float64 {
	return c.House.SmartDemand(from, to)
}

func (c *Connection) UncontrolledDemand(from, to time.Time) []float64 {
	return c.House.UncontrolledDemand(from, to)
}

func (c *Connection) SpreadOutDemand(from, to time.Time) []float64 {
	return c.House.SpreadOutDemand(from, to)
}
