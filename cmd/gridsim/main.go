// gridsim runs a discrete-time simulation of a residential smart grid over
// a random fleet of houses, writing the resulting minute-resolution demand
// and price curves to a CSV file.
//
// Usage:
//
//	gridsim <startingDate> <simulationLengthDays> <houseCount> <outputFolder>
//	gridsim -seed 42 -dataDir ./data 2024-03-01 7 500 ./out
//	gridsim -live -liveAddr :8090 2024-03-01 30 2000 ./out
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"gridsim/internal/progress"
	"gridsim/internal/simulator"
	"gridsim/internal/stats"
)

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: gridsim [flags] <startingDate YYYY-MM-DD> <simulationLengthDays> <houseCount> <outputFolder>")
	flag.PrintDefaults()
}

func main() {
	seed := flag.Uint64("seed", 0, "random seed (0 = derive from current time)")
	dataDir := flag.String("dataDir", "data", "path to the fixed statistics dataset")
	live := flag.Bool("live", false, "broadcast day-by-day progress over a websocket")
	liveAddr := flag.String("liveAddr", ":8090", "address to serve the live progress websocket on, when -live is set")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) != 4 {
		usage()
		os.Exit(1)
	}

	startingDT, err := time.ParseInLocation("2006-01-02", args[0], time.UTC)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing starting date %q: %v\n", args[0], err)
		os.Exit(1)
	}
	simulationLengthDays, err := strconv.Atoi(args[1])
	if err != nil || simulationLengthDays < 0 {
		fmt.Fprintf(os.Stderr, "Error: simulationLengthDays must be a non-negative integer, got %q\n", args[1])
		os.Exit(1)
	}
	houseCount, err := strconv.Atoi(args[2])
	if err != nil || houseCount < 0 {
		fmt.Fprintf(os.Stderr, "Error: houseCount must be a non-negative integer, got %q\n", args[2])
		os.Exit(1)
	}
	outputFolder := args[3]

	if *seed == 0 {
		*seed = uint64(time.Now().UnixNano())
	}

	bundle, err := stats.Load(*dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading statistics from %s: %v\n", *dataDir, err)
		os.Exit(1)
	}

	runID := uuid.NewString()

	var hub *progress.Hub
	if *live {
		hub = progress.NewHub()
		go func() {
			if err := http.ListenAndServe(*liveAddr, hub); err != nil {
				fmt.Fprintf(os.Stderr, "Error serving live progress: %v\n", err)
			}
		}()
		fmt.Printf("Serving live progress on %s\n", *liveAddr)
	}

	cfg := simulator.RunConfig{
		StartingDT:           startingDT,
		SimulationLengthDays: simulationLengthDays,
		HouseCount:           houseCount,
		Seed:                 *seed,
		Callback:             callback{hub: hub, runID: runID},
	}

	st := time.Now()
	fmt.Println("Creating grid and houses...")
	result, err := simulator.Run(cfg, bundle, runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error running simulation: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Simulation took %.3fs in total\n\n", time.Since(st).Seconds())

	if err := writeOutput(outputFolder, cfg, result); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing output: %v\n", err)
		os.Exit(1)
	}
}

type callback struct {
	hub   *progress.Hub
	runID string
}

func (c callback) OnDayComplete(day, total int) {
	fmt.Printf("Completed day %d/%d\n", day, total)
	if c.hub != nil {
		c.hub.Broadcast(progress.DayProgress{RunID: c.runID, Day: day, Total: total})
	}
}

func (c callback) OnSimulationDone(result simulator.Result) {}
