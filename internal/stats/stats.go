// Package stats loads the immutable empirical data that drives the
// simulator: appliance ownership ratios, charging powers, usage
// probabilities, discharging profiles and grid-wide demand baselines. A
// Bundle is loaded once at startup and shared read-only by every Appliance
// of the matching class, mirroring original_source's module-level globals
// in simulator/applianceStatistics.py and simulator/gridStatistics.py.
package stats

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gridsim/internal/profile"
)

// UsageInterval is a (disconnect, connect) pair of minute-of-day offsets for
// a car's overnight charging window. A value of -1 marks a null endpoint
// (replaced per §4.2/§7 by the scheduler, not by the loader).
type UsageInterval struct {
	DisconnectMinute int
	ConnectMinute    int
}

// BatteryStats holds per-car-index statistics (battery-type appliances).
type BatteryStats struct {
	ChargingPowers      []float64
	UsageProbabilities  map[time.Time]float64
	NeededCharges       map[time.Time][]float64
	AverageNeededCharge map[time.Time]float64
	UsageIntervals      map[time.Time][]UsageInterval
	AvailabilityProfile *profile.Profile
}

// AccumulatorStats holds statistics shared by water heaters, fridges, air
// conditioning and electrical heating.
type AccumulatorStats struct {
	ChargingPowers             []float64
	AverageChargingPower       float64
	CapacityMean, CapacityStd  float64
	ScaleMean, ScaleStd        float64
	DischargingProfile         *profile.Profile
	AverageDailyCharge         map[time.Time]float64
}

// MachineStats holds statistics for dishwasher/washing-machine appliances.
type MachineStats struct {
	StartAfterMean, StartAfterStd float64
	FinishByMean, FinishByStd     float64
	UsageProbabilities            map[time.Time]float64
	UsageProfiles                 [][]float64
	AveragePowerNeeded            map[time.Time]float64
}

// OwnershipRatios is the fraction of households owning each appliance class.
type OwnershipRatios struct {
	AirConditioning   float64 `json:"airConditioning"`
	ElectricalHeating float64 `json:"electricalHeating"`
	Fridge            float64 `json:"fridge"`
	WaterHeater       float64 `json:"waterHeater"`
	Dishwasher        float64 `json:"dishwasher"`
	WashingMachine    float64 `json:"washingMachine"`
}

// PriceConfig is the grid's fixed pricing policy.
type PriceConfig struct {
	CheapIntervalLength int     `json:"cheapIntervalLength"`
	CheapMinutesCount   int     `json:"cheapMinutesCount"`
	LowerPrice          float64 `json:"lowerPrice"`
	HigherPrice         float64 `json:"higherPrice"`
}

type capacityParams struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

// GridDemandStatistics pairs a demand Profile with the household count it
// was measured against, so Grid can rescale it to the simulated population.
type GridDemandStatistics struct {
	Demand         *profile.Profile
	HouseholdCount float64
}

// Bundle is the complete set of empirical inputs loaded once at startup.
type Bundle struct {
	Cars                            [4]*BatteryStats
	CarCountProbabilities           []float64
	AtLeastThisManyCarsProbability  []float64

	OwnershipRatios OwnershipRatios

	AirConditioning   *AccumulatorStats
	ElectricalHeating *AccumulatorStats
	Fridge            *AccumulatorStats
	WaterHeater       *AccumulatorStats

	Dishwasher     *MachineStats
	WashingMachine *MachineStats

	DemandForecast       GridDemandStatistics
	ActualDemand         GridDemandStatistics
	AverageHouseholdDraw *profile.Profile

	PriceConfig PriceConfig
}

// Load reads every fixed input dataset rooted at dataDir, per the layout
// described in the external interfaces section.
func Load(dataDir string) (*Bundle, error) {
	b := &Bundle{}

	var err error
	if b.OwnershipRatios, err = loadOwnershipRatios(dataDir + "/manual/ownershipRatios.json"); err != nil {
		return nil, err
	}

	var capacities map[string]capacityParams
	if capacities, err = loadCapacities(dataDir + "/manual/applianceCapacities.json"); err != nil {
		return nil, err
	}

	if b.PriceConfig, err = loadPriceConfig(dataDir + "/manual/priceConfig.json"); err != nil {
		return nil, err
	}

	if b.CarCountProbabilities, err = loadCarCountProbabilities(dataDir + "/nhts/cars/ownershipRatios.csv"); err != nil {
		return nil, err
	}
	b.AtLeastThisManyCarsProbability = atLeastThisManyCarsProbability(b.CarCountProbabilities)

	for i := 0; i < 4; i++ {
		cs, err := loadCarStatistics(dataDir, i)
		if err != nil {
			return nil, fmt.Errorf("loading car %d statistics: %w", i+1, err)
		}
		b.Cars[i] = cs
	}

	for _, acc := range []struct {
		target **AccumulatorStats
		dir     string
		cap     string
	}{
		{&b.AirConditioning, "accumulators/airconditioning", "airConditioning"},
		{&b.ElectricalHeating, "accumulators/electricalheating", "electricalHeating"},
		{&b.Fridge, "accumulators/fridge", "fridge"},
		{&b.WaterHeater, "accumulators/waterheater", "waterHeater"},
	} {
		cp, ok := capacities[acc.cap]
		if !ok {
			return nil, fmt.Errorf("missing capacity parameters for %s", acc.cap)
		}
		as, err := loadAccumulatorStatistics(dataDir, acc.dir, cp)
		if err != nil {
			return nil, fmt.Errorf("loading %s statistics: %w", acc.cap, err)
		}
		*acc.target = as
	}

	if b.Dishwasher, err = loadMachineStatistics(dataDir, "machines/dishwasher"); err != nil {
		return nil, fmt.Errorf("loading dishwasher statistics: %w", err)
	}
	if b.WashingMachine, err = loadMachineStatistics(dataDir, "machines/washingmachine"); err != nil {
		return nil, fmt.Errorf("loading washing machine statistics: %w", err)
	}

	forecastDemand, err := profile.FromCSV(dataDir + "/dataport/ercot/predictions/96.csv")
	if err != nil {
		return nil, fmt.Errorf("loading demand forecast: %w", err)
	}
	b.DemandForecast = GridDemandStatistics{Demand: forecastDemand, HouseholdCount: 9500000}

	actualDemand, err := profile.FromCSV(dataDir + "/dataport/ercot/actual/systemLoad.csv")
	if err != nil {
		return nil, fmt.Errorf("loading actual demand: %w", err)
	}
	b.ActualDemand = GridDemandStatistics{Demand: actualDemand, HouseholdCount: 9500000}

	if b.AverageHouseholdDraw, err = profile.FromCSV(dataDir + "/dataport/household/averageDraw.csv"); err != nil {
		return nil, fmt.Errorf("loading average household draw: %w", err)
	}

	return b, nil
}

func loadOwnershipRatios(path string) (OwnershipRatios, error) {
	var out OwnershipRatios
	data, err := os.ReadFile(path)
	if err != nil {
		return out, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("parsing %s: %w", path, err)
	}
	return out, nil
}

func loadCapacities(path string) (map[string]capacityParams, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var out map[string]capacityParams
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return out, nil
}

func loadPriceConfig(path string) (PriceConfig, error) {
	var out PriceConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return out, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("parsing %s: %w", path, err)
	}
	return out, nil
}

func loadCarCountProbabilities(path string) ([]float64, error) {
	rows, err := readCSVRows(path, true)
	if err != nil {
		return nil, err
	}
	out := make([]float64, 0, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		ratio, err := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		out = append(out, ratio)
	}
	return out, nil
}

// atLeastThisManyCarsProbability[i] = sum(carCountProbabilities[i:]).
func atLeastThisManyCarsProbability(carCountProbabilities []float64) []float64 {
	out := make([]float64, len(carCountProbabilities))
	for i := range out {
		var sum float64
		for _, p := range carCountProbabilities[i:] {
			sum += p
		}
		out[i] = sum
	}
	return out
}

func loadCarStatistics(dataDir string, index int) (*BatteryStats, error) {
	cs := &BatteryStats{}
	carDir := fmt.Sprintf("%s/nhts/cars/car%d", dataDir, index+1)

	probs, err := loadDateFloatCSV(carDir + "/usageRatios.csv")
	if err != nil {
		return nil, err
	}
	cs.UsageProbabilities = probs

	intervals, err := loadUsageIntervals(carDir + "/trips.txt")
	if err != nil {
		return nil, err
	}
	cs.UsageIntervals = intervals

	avail, err := profile.FromCSV(carDir + "/availability.csv")
	if err != nil {
		return nil, err
	}
	cs.AvailabilityProfile = avail

	charges, avgCharge, err := loadNeededCharges(dataDir+"/dataport/cars/charges.txt", probs)
	if err != nil {
		return nil, err
	}
	cs.NeededCharges = charges
	cs.AverageNeededCharge = avgCharge

	powers, err := loadFloatLines(dataDir + "/dataport/cars/maxPowers.txt")
	if err != nil {
		return nil, err
	}
	cs.ChargingPowers = powers

	return cs, nil
}

func loadAccumulatorStatistics(dataDir, subdir string, cap capacityParams) (*AccumulatorStats, error) {
	as := &AccumulatorStats{
		CapacityMean: cap.Mean,
		CapacityStd:  cap.Std,
		ScaleMean:    1,
		ScaleStd:     0.3,
	}

	powers, err := loadFloatLines(fmt.Sprintf("%s/dataport/%s/maxPowers.txt", dataDir, subdir))
	if err != nil {
		return nil, err
	}
	as.ChargingPowers = powers
	as.AverageChargingPower = mean(powers)

	discharging, err := profile.FromCSV(fmt.Sprintf("%s/dataport/%s/averageUsage.csv", dataDir, subdir))
	if err != nil {
		return nil, err
	}
	as.DischargingProfile = discharging

	as.AverageDailyCharge = make(map[time.Time]float64)
	for day, avgKW := range discharging.DailyAverages() {
		as.AverageDailyCharge[day] = avgKW * 24
	}

	return as, nil
}

func lastSegment(s string) string {
	idx := strings.LastIndex(s, "/")
	if idx < 0 {
		return s
	}
	return s[idx+1:]
}

func loadMachineStatistics(dataDir, subdir string) (*MachineStats, error) {
	ms := &MachineStats{
		StartAfterMean: 21 * 60, StartAfterStd: 60,
		FinishByMean: 5 * 60, FinishByStd: 60,
	}

	probs, err := loadDateFloatCSV(fmt.Sprintf("%s/dataport/%s/usages.csv", dataDir, subdir))
	if err != nil {
		return nil, err
	}
	ms.UsageProbabilities = probs

	profiles, sums, err := loadMachineProfiles(fmt.Sprintf("%s/dataport/%s/profiles.txt", dataDir, subdir))
	if err != nil {
		return nil, err
	}
	ms.UsageProfiles = profiles

	avgPowerNeeded := mean(sums)
	ms.AveragePowerNeeded = make(map[time.Time]float64, len(probs))
	for day, p := range probs {
		ms.AveragePowerNeeded[day] = avgPowerNeeded * p
	}

	return ms, nil
}

func loadMachineProfiles(path string) ([][]float64, []float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var profiles [][]float64
	var sums []float64

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		values, err := parseFloatCSVLine(line)
		if err != nil {
			return nil, nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		profiles = append(profiles, values)
		sums = append(sums, sum(values)/60)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return profiles, sums, nil
}

func parseFloatCSVLine(line string) ([]float64, error) {
	parts := strings.Split(line, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func loadFloatLines(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var out []float64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		v, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		out = append(out, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return out, nil
}

// loadDateFloatCSV reads a (date,value) CSV such as usageRatios.csv or
// usages.csv, keyed by calendar date (midnight UTC).
func loadDateFloatCSV(path string) (map[time.Time]float64, error) {
	rows, err := readCSVRows(path, true)
	if err != nil {
		return nil, err
	}
	out := make(map[time.Time]float64, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		day, err := parseDate(strings.TrimSpace(row[0]))
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		val, err := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		out[day] = val
	}
	return out, nil
}

func readCSVRows(path string, hasHeader bool) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var rows [][]string
	scanner := bufio.NewScanner(f)
	first := true
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if first && hasHeader {
			first = false
			continue
		}
		first = false
		rows = append(rows, strings.Split(line, ","))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return rows, nil
}

func parseDate(s string) (time.Time, error) {
	if len(s) > 10 {
		s = s[:10]
	}
	return time.ParseInLocation("2006-01-02", s, time.UTC)
}

// loadNeededCharges reads lines of the form "YYYY-MM-DD: [f, f, ...]" and
// returns both the raw per-date charge lists and, weighted by usage
// probability, the precomputed daily average.
func loadNeededCharges(path string, usageProbabilities map[time.Time]float64) (map[time.Time][]float64, map[time.Time]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	charges := make(map[time.Time][]float64)
	averages := make(map[time.Time]float64)

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		day, values, err := parseDateBracketLine(line)
		if err != nil {
			return nil, nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		charges[day] = values
		averages[day] = mean(values) * usageProbabilities[day]
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return charges, averages, nil
}

func parseDateBracketLine(line string) (time.Time, []float64, error) {
	day, err := parseDate(line)
	if err != nil {
		return time.Time{}, nil, err
	}
	rest := strings.TrimSpace(line[10:])
	rest = strings.TrimPrefix(rest, ":")
	rest = strings.TrimSpace(rest)
	rest = strings.Trim(rest, "[] \t\n")
	if rest == "" {
		return day, nil, nil
	}
	values, err := parseFloatCSVLine(rest)
	if err != nil {
		return time.Time{}, nil, err
	}
	return day, values, nil
}

// loadUsageIntervals reads lines of the form
// "YYYY-MM-DD: [HH:MM-HH:MM, HH:MM-HH:MM, ...]" with an optional empty
// bracket list, recording -1 for absent endpoints.
func loadUsageIntervals(path string) (map[time.Time][]UsageInterval, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	out := make(map[time.Time][]UsageInterval)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		day, err := parseDate(line)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		rest := strings.TrimSpace(line[10:])
		rest = strings.TrimPrefix(rest, ":")
		rest = strings.TrimSpace(rest)
		rest = strings.Trim(rest, "[] \t\n")

		var intervals []UsageInterval
		if rest != "" {
			for _, token := range strings.Split(rest, ", ") {
				token = strings.TrimSpace(token)
				iv, err := parseUsageInterval(token)
				if err != nil {
					return nil, fmt.Errorf("parsing %s: %w", path, err)
				}
				intervals = append(intervals, iv)
			}
		}
		out[day] = append(out[day], intervals...)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return out, nil
}

func parseUsageInterval(token string) (UsageInterval, error) {
	if len(token) < 10 {
		return UsageInterval{DisconnectMinute: -1, ConnectMinute: -1}, nil
	}
	parts := strings.SplitN(token, "-", 2)
	if len(parts) != 2 {
		return UsageInterval{}, fmt.Errorf("malformed interval %q", token)
	}
	start, err := parseMinuteOfDay(strings.TrimSpace(parts[0]))
	if err != nil {
		return UsageInterval{}, err
	}
	end, err := parseMinuteOfDay(strings.TrimSpace(parts[1]))
	if err != nil {
		return UsageInterval{}, err
	}
	return UsageInterval{DisconnectMinute: start, ConnectMinute: end}, nil
}

func parseMinuteOfDay(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("malformed time %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, err
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, err
	}
	return h*60 + m, nil
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return sum(xs) / float64(len(xs))
}

func sum(xs []float64) float64 {
	var s float64
	for _, x := range xs {
		s += x
	}
	return s
}
