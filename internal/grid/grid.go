// Package grid implements the smart grid: it forecasts base (non-household)
// demand, derives a smoothed target demand the connected households should
// collectively aim for, turns that into a per-minute cheap-price
// probability signal, and collects the resulting demand back from every
// connection. Grounded on original_source/simulator/simulator/grid.py.
package grid

import (
	"math/rand/v2"
	"time"

	"gridsim/internal/connection"
	"gridsim/internal/profile"
	"gridsim/internal/simutil"
	"gridsim/internal/stats"
)

const findPeaksDistance = 18 * 60
const findPeaksWidth = 10

// Grid is the smart grid coordinating every connected household.
type Grid struct {
	currentDT time.Time

	Bundle *stats.Bundle

	predictedBaseDemand *profile.Profile
	targetDemand         *profile.Profile
	smartDemand          *profile.Profile
	uncontrolledDemand   *profile.Profile
	spreadOutDemand      *profile.Profile
	cheapPriceRatio      *profile.Profile

	Connections []*connection.Connection
}

func New(bundle *stats.Bundle) *Grid {
	return &Grid{
		Bundle:               bundle,
		predictedBaseDemand:  profile.New(),
		targetDemand:         profile.New(),
		smartDemand:          profile.New(),
		uncontrolledDemand:   profile.New(),
		spreadOutDemand:      profile.New(),
		cheapPriceRatio:      profile.New(),
	}
}

func (g *Grid) ConnectHouse(h *connection.Connection) {
	g.Connections = append(g.Connections, h)
}

func (g *Grid) SetUp(dt time.Time, rng *rand.Rand) {
	g.currentDT = dt

	g.predictBaseDemand(dt.Add(-3*simutil.OneDay), dt.Add(4*simutil.OneDay))
	g.calculateTargetDemand(dt.Add(-2*simutil.OneDay), addDays(dt, 3.5), rng)
	g.calculatePriceRatio(dt.Add(-1*simutil.OneDay), addDays(dt, 2.5))

	g.distributePriceRatios(dt.Add(-1*simutil.OneDay), addDays(dt, 2.5))

	for _, conn := range g.Connections {
		conn.SetUp(dt, rng)
	}
}

func (g *Grid) Tick(rng *rand.Rand) {
	g.currentDT = g.currentDT.Add(simutil.OneDay)
	cdt := g.currentDT

	g.collectDemands(cdt.Add(-simutil.OneDay), cdt)

	g.predictBaseDemand(cdt.Add(3*simutil.OneDay), cdt.Add(4*simutil.OneDay))
	g.calculateTargetDemand(addDays(cdt, 2.5), addDays(cdt, 3.5), rng)
	g.calculatePriceRatio(addDays(cdt, 1.5), addDays(cdt, 2.5))

	g.distributePriceRatios(addDays(cdt, 1.5), addDays(cdt, 2.5))

	for _, conn := range g.Connections {
		conn.Tick(rng)
	}
}

func addDays(t time.Time, days float64) time.Time {
	return t.Add(time.Duration(days * float64(simutil.OneDay)))
}

// predictBaseDemand scales the historical demand forecast to the simulated
// household count and subtracts their own expected draw, per
// Grid.predictBaseDemand.
func (g *Grid) predictBaseDemand(from, to time.Time) {
	n := len(g.Connections)
	forecast := g.Bundle.DemandForecast.Demand.Get(from, to)
	draw := g.Bundle.AverageHouseholdDraw.Get(from, to)

	scale := float64(n) / g.Bundle.DemandForecast.HouseholdCount
	base := make([]float64, len(forecast))
	for i := range forecast {
		base[i] = forecast[i]*scale - draw[i]*float64(n)
	}
	g.predictedBaseDemand.Set(from, base)
}

// calculateTargetDemand smooths the predicted base demand through its
// peaks to get a target curve, then scales or shifts it so its integral
// over [from,to) matches the expected household consumption. Grounded on
// Grid.calculateTargetDemand; the scipy peak-find/interp1d pipeline is
// replaced with a local-maximum scan and cosine interpolation (see
// DESIGN.md).
func (g *Grid) calculateTargetDemand(from, to time.Time, rng *rand.Rand) {
	n := len(g.Connections)

	var totalExpectedConsumption float64
	for _, dp := range simutil.DayPortionsBetween(from, to) {
		totalExpectedConsumption += dp.Fraction * float64(n) * g.expectedDayConsumption(dp.Day)
	}
	totalExpectedConsumption *= 0.9 + rng.Float64()*0.2

	startMargin := simutil.OneDay
	endMargin := simutil.OneDay / 2
	startIndex := simutil.MinutesIn(startMargin)

	baseDemand := g.predictedBaseDemand.Get(from.Add(-startMargin), to.Add(endMargin))
	if len(baseDemand) < 3 {
		return
	}

	peaks := findPeaks(baseDemand, findPeaksDistance, findPeaksWidth)
	peakLocs, peakVals := anchorPoints(baseDemand, peaks)

	smoothDemand := simutil.CosineInterpolation(peakLocs, peakVals)

	targetDemand := make([]float64, len(smoothDemand)-startIndex)
	for i := range targetDemand {
		targetDemand[i] = smoothDemand[startIndex+i] - baseDemand[startIndex+i]
	}

	intervalLength := simutil.MinutesBetween(from, to)
	var totalTargetIntervalConsumption float64
	limit := intervalLength
	if limit > len(targetDemand) {
		limit = len(targetDemand)
	}
	for _, v := range targetDemand[:limit] {
		totalTargetIntervalConsumption += v / 60
	}

	if totalExpectedConsumption <= totalTargetIntervalConsumption {
		if totalTargetIntervalConsumption > 0 {
			factor := totalExpectedConsumption / totalTargetIntervalConsumption
			for i := range targetDemand {
				targetDemand[i] *= factor
			}
		}
	} else {
		shift := (totalExpectedConsumption - totalTargetIntervalConsumption) / (float64(intervalLength) / 60)
		for i := range targetDemand {
			targetDemand[i] += shift
		}
	}

	for i, v := range targetDemand {
		if v < 0 {
			targetDemand[i] = 0
		}
	}

	g.targetDemand.Transition(from, targetDemand)
}

// expectedDayConsumption sums the per-class expected energy use for a
// calendar day, weighted by ownership/availability statistics.
func (g *Grid) expectedDayConsumption(day time.Time) float64 {
	var total float64
	for carIndex := 0; carIndex < 4; carIndex++ {
		total += g.Bundle.AtLeastThisManyCarsProbability[carIndex+1] * g.Bundle.Cars[carIndex].AverageNeededCharge[day]
	}
	total += g.Bundle.OwnershipRatios.AirConditioning * g.Bundle.AirConditioning.AverageDailyCharge[day]
	total += g.Bundle.OwnershipRatios.ElectricalHeating * g.Bundle.ElectricalHeating.AverageDailyCharge[day]
	total += g.Bundle.OwnershipRatios.Fridge * g.Bundle.Fridge.AverageDailyCharge[day]
	total += g.Bundle.OwnershipRatios.WaterHeater * g.Bundle.WaterHeater.AverageDailyCharge[day]
	total += g.Bundle.OwnershipRatios.Dishwasher * g.Bundle.Dishwasher.AveragePowerNeeded[day]
	total += g.Bundle.OwnershipRatios.WashingMachine * g.Bundle.WashingMachine.AveragePowerNeeded[day]
	return total
}

// calculatePriceRatio scales the target demand by car availability (fewer
// cars at home needs more households given a cheap price to cover the
// target) and normalizes each day's peak to 1, producing the fraction of
// households that should see a cheap price at each minute. Grounded on
// Grid.calculatePriceRatio.
func (g *Grid) calculatePriceRatio(from, to time.Time) {
	n := len(g.Connections)
	startMargin := simutil.OneDay
	endMargin := simutil.OneDay
	startIndex := simutil.MinutesIn(startMargin)

	targetDemand := g.targetDemand.Get(from.Add(-startMargin), to.Add(endMargin))
	if len(targetDemand) == 0 {
		return
	}

	var totalExpectedCarConsumption float64
	for _, dp := range simutil.DayPortionsBetween(from.Add(-startMargin), to.Add(endMargin)) {
		for carIndex := 0; carIndex < 4; carIndex++ {
			totalExpectedCarConsumption += dp.Fraction * float64(n) *
				g.Bundle.AtLeastThisManyCarsProbability[carIndex+1] * g.Bundle.Cars[carIndex].AverageNeededCharge[dp.Day]
		}
	}
	var targetSum float64
	for _, v := range targetDemand {
		targetSum += v
	}
	carDemandRatio := 0.0
	if targetSum != 0 {
		carDemandRatio = totalExpectedCarConsumption / targetSum
	}

	windowLen := simutil.MinutesBetween(from.Add(-startMargin), to.Add(endMargin))
	carsAtHome := make([]float64, windowLen)
	var totalNeedChargingRatio float64
	for carIndex := 0; carIndex < 4; carIndex++ {
		var needChargingRatio, totalFraction float64
		for _, dp := range simutil.DayPortionsBetween(from.Add(-startMargin), to.Add(endMargin)) {
			needChargingRatio += dp.Fraction * g.Bundle.Cars[carIndex].UsageProbabilities[dp.Day]
			totalFraction += dp.Fraction
		}
		if totalFraction > 0 {
			needChargingRatio /= totalFraction
		}
		avail := g.Bundle.Cars[carIndex].AvailabilityProfile.Get(from.Add(-startMargin), to.Add(endMargin))
		for i := range carsAtHome {
			carsAtHome[i] += needChargingRatio * avail[i]
		}
		totalNeedChargingRatio += needChargingRatio
	}
	if totalNeedChargingRatio > 0 {
		for i := range carsAtHome {
			carsAtHome[i] /= totalNeedChargingRatio
		}
	}

	relativeTargetDemand := make([]float64, len(targetDemand))
	for i := range targetDemand {
		availabilityScale := (1 - carDemandRatio) + carDemandRatio*carsAtHome[i]
		if availabilityScale == 0 {
			continue
		}
		relativeTargetDemand[i] = targetDemand[i] / availabilityScale
	}

	if len(relativeTargetDemand) < 3 {
		return
	}
	peaks := findPeaks(relativeTargetDemand, findPeaksDistance, findPeaksWidth)
	peakLocs, peakVals := anchorPoints(relativeTargetDemand, peaks)
	demandScale := simutil.CosineInterpolation(peakLocs, peakVals)

	scaledDemand := make([]float64, len(relativeTargetDemand))
	for i := range scaledDemand {
		if demandScale[i] != 0 {
			scaledDemand[i] = relativeTargetDemand[i] / demandScale[i]
		}
	}

	cheapPriceRatio := scaledDemand[startIndex:]
	g.cheapPriceRatio.Transition(from, cheapPriceRatio)
}

// anchorPoints builds the (locations, values) pairs find_peaks/interp1d
// would feed to interpolation: peak locations padded with the series'
// first and last index so the smoothed curve spans the whole series.
func anchorPoints(x []float64, peaks []int) ([]int, []float64) {
	if len(peaks) == 0 {
		return []int{0, len(x) - 1}, []float64{x[0], x[len(x)-1]}
	}
	locs := make([]int, 0, len(peaks)+2)
	vals := make([]float64, 0, len(peaks)+2)
	locs = append(locs, 0)
	vals = append(vals, x[peaks[0]])
	for _, p := range peaks {
		locs = append(locs, p)
		vals = append(vals, x[p])
	}
	locs = append(locs, len(x)-1)
	vals = append(vals, x[peaks[len(peaks)-1]])
	return locs, vals
}

func (g *Grid) distributePriceRatios(from, to time.Time) {
	ratio := g.cheapPriceRatio.Get(from, to)
	for _, conn := range g.Connections {
		conn.SetPriceRatio(from, ratio)
	}
}

func (g *Grid) collectDemands(from, to time.Time) {
	n := simutil.MinutesBetween(from, to)
	smart := make([]float64, n)
	uncontrolled := make([]float64, n)
	spreadOut := make([]float64, n)
	for _, conn := range g.Connections {
		addInto(smart, conn.SmartDemand(from, to))
		addInto(uncontrolled, conn.UncontrolledDemand(from, to))
		addInto(spreadOut, conn.SpreadOutDemand(from, to))
	}
	g.smartDemand.Set(from, smart)
	g.uncontrolledDemand.Set(from, uncontrolled)
	g.spreadOutDemand.Set(from, spreadOut)
}

func addInto(dst, src []float64) {
	for i, v := range src {
		dst[i] += v
	}
}

func (g *Grid) PredictedBaseDemand(from, to time.Time) []float64 { return g.predictedBaseDemand.Get(from, to) }
func (g *Grid) TargetDemand(from, to time.Time) []float64         { return g.targetDemand.Get(from, to) }
func (g *Grid) SmartDemand(from, to time.Time) []float64          { return g.smartDemand.Get(from, to) }
func (g *Grid) UncontrolledDemand(from, to time.Time) []float64   { return g.uncontrolledDemand.Get(from, to) }
func (g *Grid) SpreadOutDemand(from, to time.Time) []float64      { return g.spreadOutDemand.Get(from, to) }
func (g *Grid) CheapPriceRatio(from, to time.Time) []float64      { return g.cheapPriceRatio.Get(from, to) }
