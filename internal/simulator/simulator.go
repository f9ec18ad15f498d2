// Package simulator drives the day-by-day simulation loop: it builds a
// Grid and a fleet of random houses, ticks them forward one day at a time,
// and collects the resulting demand/price curves into a Result. Grounded
// on original_source/simulator/simulator/simulator.py's Simulator.run.
package simulator

import (
	"fmt"
	"math/rand/v2"
	"time"

	"gridsim/internal/connection"
	"gridsim/internal/grid"
	"gridsim/internal/house"
	"gridsim/internal/stats"
)

// Callback receives progress notifications during a run. The zero value
// (NoopCallback) does nothing, so callers that don't need progress
// reporting can simply omit one.
type Callback interface {
	OnDayComplete(day, total int)
	OnSimulationDone(result Result)
}

// NoopCallback is the default Callback: every method is a no-op.
type NoopCallback struct{}

func (NoopCallback) OnDayComplete(day, total int)  {}
func (NoopCallback) OnSimulationDone(result Result) {}

// RunConfig parameterizes one simulation run.
type RunConfig struct {
	StartingDT           time.Time
	SimulationLengthDays int
	HouseCount           int
	Seed                 uint64
	Callback             Callback
}

// Row is one minute of simulation output.
type Row struct {
	Datetime            time.Time
	PredictedBaseDemand float64
	ActualBaseDemand    float64
	TargetDemand        float64
	SmartDemand         float64
	UncontrolledDemand  float64
	SpreadOutDemand     float64
	PriceRatio          float64
}

// Result is the complete output of one run.
type Result struct {
	RunID string
	Rows  []Row
}

// Run validates cfg, simulates SimulationLengthDays of grid activity for
// HouseCount random households, and returns the resulting minute-resolution
// demand and price curves.
func Run(cfg RunConfig, bundle *stats.Bundle, runID string) (Result, error) {
	if cfg.SimulationLengthDays < 0 {
		return Result{}, fmt.Errorf("simulation length must be non-negative, got %d", cfg.SimulationLengthDays)
	}
	if cfg.HouseCount < 0 {
		return Result{}, fmt.Errorf("house count must be non-negative, got %d", cfg.HouseCount)
	}
	if bundle == nil {
		return Result{}, fmt.Errorf("missing statistics bundle")
	}

	callback := cfg.Callback
	if callback == nil {
		callback = NoopCallback{}
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))

	g := grid.New(bundle)
	for i := 0; i < cfg.HouseCount; i++ {
		h := house.Random(bundle, rng)
		g.ConnectHouse(connection.New(h, bundle.PriceConfig))
	}

	g.SetUp(cfg.StartingDT, rng)

	for day := 0; day < cfg.SimulationLengthDays; day++ {
		g.Tick(rng)
		callback.OnDayComplete(day+1, cfg.SimulationLengthDays)
	}

	endDT := cfg.StartingDT.Add(time.Duration(cfg.SimulationLengthDays) * 24 * time.Hour)

	predicted := g.PredictedBaseDemand(cfg.StartingDT, endDT)
	target := g.TargetDemand(cfg.StartingDT, endDT)
	priceRatio := g.CheapPriceRatio(cfg.StartingDT, endDT)
	smart := g.SmartDemand(cfg.StartingDT, endDT)
	uncontrolled := g.UncontrolledDemand(cfg.StartingDT, endDT)
	spreadOut := g.SpreadOutDemand(cfg.StartingDT, endDT)
	actualBase := actualBaseDemand(bundle, cfg.StartingDT, endDT, cfg.HouseCount)

	n := cfg.SimulationLengthDays * 24 * 60
	rows := make([]Row, n)
	for i := 0; i < n; i++ {
		rows[i] = Row{
			Datetime:            cfg.StartingDT.Add(time.Duration(i) * time.Minute),
			PredictedBaseDemand: at(predicted, i),
			ActualBaseDemand:    at(actualBase, i),
			TargetDemand:        at(target, i),
			SmartDemand:         at(smart, i),
			UncontrolledDemand:  at(uncontrolled, i),
			SpreadOutDemand:     at(spreadOut, i),
			PriceRatio:          at(priceRatio, i),
		}
	}

	result := Result{RunID: runID, Rows: rows}
	callback.OnSimulationDone(result)
	return result, nil
}

func at(xs []float64, i int) float64 {
	if i < 0 || i >= len(xs) {
		return 0
	}
	return xs[i]
}

// actualBaseDemand restores the measured (as opposed to predicted) base
// demand column the source computes in Simulator.run but spec.md's
// distillation dropped; reinstated per SPEC_FULL.md §4.8.
func actualBaseDemand(bundle *stats.Bundle, from, to time.Time, houseCount int) []float64 {
	actual := bundle.ActualDemand.Demand.Get(from, to)
	draw := bundle.AverageHouseholdDraw.Get(from, to)
	scale := float64(houseCount) / bundle.ActualDemand.HouseholdCount

	out := make([]float64, len(actual))
	for i := range actual {
		out[i] = actual[i]*scale - draw[i]*float64(houseCount)
	}
	return out
}
