package appliance

import (
	"math"
	"math/rand/v2"
	"time"

	"gridsim/internal/stats"
)

// batteryUsage records one day's charging window and energy need, populated
// a day ahead of need by generateUsage (grounded on
// appliance.py Battery.generateUsage).
type batteryUsage struct {
	disconnectMinute int
	connectMinute     int
	chargeNeededKWh   float64
}

// Battery models a car's overnight charging demand under all three
// control policies, grounded on appliance.py's Battery class.
type Battery struct {
	base

	Stats           *stats.BatteryStats
	ChargingPowerKW float64

	usages map[time.Time]batteryUsage
}

// NewBattery builds a Battery with a fixed charging power drawn from the
// class statistics.
func NewBattery(carStats *stats.BatteryStats, chargingPowerKW float64) *Battery {
	return &Battery{
		base:            newBase(),
		Stats:           carStats,
		ChargingPowerKW: chargingPowerKW,
		usages:          make(map[time.Time]batteryUsage),
	}
}

// RandomBattery samples a charging power uniformly from the class's observed
// fleet, mirroring Battery.random().
func RandomBattery(carStats *stats.BatteryStats, rng *rand.Rand) *Battery {
	power := carStats.ChargingPowers[rng.IntN(len(carStats.ChargingPowers))]
	return NewBattery(carStats, power)
}

func (b *Battery) SetUp(dt time.Time, rng *rand.Rand) {
	b.currentDT = dt
	b.generateUsage(dt, dt.Add(oneDay), rng)
}

func (b *Battery) Tick(rng *rand.Rand) {
	b.pruneDemandProfiles(b.currentDT.Add(-oneDay))
	b.generateUsage(b.currentDT.Add(oneDay), b.currentDT.Add(2*oneDay), rng)
	b.calculateDemand(b.currentDT, b.currentDT.Add(oneDay))
	b.currentDT = b.currentDT.Add(oneDay)
}

// generateUsage realizes, for every not-yet-populated day in [from,to), a
// random overnight connect/disconnect window and a Bernoulli-gated needed
// charge. Results are memoized per calendar day so the SMART policy's
// lookahead into tomorrow always sees a stable value.
func (b *Battery) generateUsage(from, to time.Time, rng *rand.Rand) {
	for _, day := range midnightsBetween(from, to) {
		if _, ok := b.usages[day]; ok {
			continue
		}

		intervals := b.Stats.UsageIntervals[day]
		var iv stats.UsageInterval
		if len(intervals) == 0 {
			iv = stats.UsageInterval{DisconnectMinute: -1, ConnectMinute: -1}
		} else {
			iv = intervals[rng.IntN(len(intervals))]
		}

		disconnect := iv.DisconnectMinute
		if disconnect < 0 {
			disconnect = minutesPerDay - 1
		}
		connect := iv.ConnectMinute
		if connect < 0 {
			connect = 0
		}

		var chargeNeeded float64
		if rng.Float64() < b.Stats.UsageProbabilities[day] {
			charges := b.Stats.NeededCharges[day]
			if len(charges) > 0 {
				chargeNeeded = charges[rng.IntN(len(charges))]
			}
		}

		b.usages[day] = batteryUsage{
			disconnectMinute: disconnect,
			connectMinute:    connect,
			chargeNeededKWh:  chargeNeeded,
		}
	}
}

func (b *Battery) calculateDemand(from, to time.Time) {
	b.calculateSmartDemand(from, to)
	b.calculateUncontrolledDemand(from, to)
	b.calculateSpreadOutDemand(from, to)
}

// connectionAndChargeFor reads connectionTime from today's memory record and
// disconnectionTime from tomorrow's, matching the cross-day lookup in
// appliance.py's three calculate*Demand methods.
func (b *Battery) connectionAndChargeFor(day time.Time) (connectSlot, disconnectSlot int, chargeNeeded float64) {
	today := b.usages[day]
	tomorrow := b.usages[day.Add(oneDay)]
	return today.connectMinute, minutesPerDay + tomorrow.disconnectMinute, today.chargeNeededKWh
}

func (b *Battery) calculateSmartDemand(from, to time.Time) {
	chargePerSlot := b.ChargingPowerKW / 60
	for _, day := range midnightsBetween(from, to) {
		connectSlot, disconnectSlot, chargeNeeded := b.connectionAndChargeFor(day)
		powerProfile := make([]float64, 2*minutesPerDay)

		slotsNeeded := 0
		if chargePerSlot > 0 {
			slotsNeeded = int(math.Ceil(chargeNeeded / chargePerSlot))
		}

		if slotsNeeded > 0 {
			if disconnectSlot-connectSlot <= slotsNeeded {
				for s := connectSlot; s < disconnectSlot; s++ {
					powerProfile[s] = b.ChargingPowerKW
				}
			} else {
				prices := b.priceProfile.Get(day, day.Add(2*oneDay))
				window := prices[connectSlot:disconnectSlot]
				order := argsortAscending(window)
				cheapest := order[:slotsNeeded]
				for _, wi := range cheapest[:len(cheapest)-1] {
					powerProfile[connectSlot+wi] = b.ChargingPowerKW
				}
				lastWi := cheapest[len(cheapest)-1]
				lastCharge := chargeNeeded - chargePerSlot*float64(slotsNeeded-1)
				powerProfile[connectSlot+lastWi] = lastCharge * 60
			}
		}

		b.smartDemand.Add(day, powerProfile)
	}
}

func (b *Battery) calculateUncontrolledDemand(from, to time.Time) {
	chargePerSlot := b.ChargingPowerKW / 60
	for _, day := range midnightsBetween(from, to) {
		connectSlot, disconnectSlot, chargeNeeded := b.connectionAndChargeFor(day)
		powerProfile := make([]float64, 2*minutesPerDay)

		slotsNeeded := 0
		if chargePerSlot > 0 {
			slotsNeeded = int(math.Ceil(chargeNeeded / chargePerSlot))
		}

		if slotsNeeded > 0 {
			if disconnectSlot-connectSlot < slotsNeeded {
				for s := connectSlot; s < disconnectSlot; s++ {
					powerProfile[s] = b.ChargingPowerKW
				}
			} else {
				// Matches the source's off-by-one: only slotsNeeded-1 slots are
				// filled contiguously, and the fractional remainder lands one
				// slot past the filled range, leaving a zero slot between them.
				for s := connectSlot; s < connectSlot+slotsNeeded-1; s++ {
					powerProfile[s] = b.ChargingPowerKW
				}
				lastCharge := chargeNeeded - chargePerSlot*float64(slotsNeeded-1)
				powerProfile[connectSlot+slotsNeeded] = lastCharge * 60
			}
		}

		b.uncontrolledDemand.Add(day, powerProfile)
	}
}

func (b *Battery) calculateSpreadOutDemand(from, to time.Time) {
	for _, day := range midnightsBetween(from, to) {
		connectSlot, disconnectSlot, chargeNeeded := b.connectionAndChargeFor(day)
		powerProfile := make([]float64, 2*minutesPerDay)

		slotsNeeded := 0
		if b.ChargingPowerKW > 0 {
			slotsNeeded = int(math.Ceil(chargeNeeded / (b.ChargingPowerKW / 60)))
		}

		if slotsNeeded > 0 {
			if disconnectSlot-connectSlot < slotsNeeded {
				for s := connectSlot; s < disconnectSlot; s++ {
					powerProfile[s] = b.ChargingPowerKW
				}
			} else {
				hours := float64(disconnectSlot-connectSlot) / 60
				constantKW := chargeNeeded / hours
				for s := connectSlot; s < disconnectSlot; s++ {
					powerProfile[s] = constantKW
				}
			}
		}

		b.spreadOutDemand.Add(day, powerProfile)
	}
}
