// gridsim-plot renders a chart of a finished gridsim run's demand and price
// curves, reading the data.csv produced by gridsim and writing a PNG.
//
// Usage:
//
//	gridsim-plot <runFolder> <outputPNG>
//	gridsim-plot -width 1600 -height 800 ./out ./out/demand.png
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: gridsim-plot [flags] <runFolder> <outputPNG>")
	flag.PrintDefaults()
}

func main() {
	width := flag.Float64("width", 1400, "chart width in points")
	height := flag.Float64("height", 700, "chart height in points")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) != 2 {
		usage()
		os.Exit(1)
	}
	runFolder, outputPNG := args[0], args[1]

	rows, err := readDataCSV(filepath.Join(runFolder, "data.csv"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading data.csv: %v\n", err)
		os.Exit(1)
	}
	if len(rows) == 0 {
		fmt.Fprintln(os.Stderr, "Error: data.csv contains no rows")
		os.Exit(1)
	}

	if err := renderDemandChart(rows, *width, *height, outputPNG); err != nil {
		fmt.Fprintf(os.Stderr, "Error rendering chart: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Wrote %s\n", outputPNG)
}

type dataRow struct {
	minutesSinceStart float64
	targetDemand      float64
	smartDemand       float64
	uncontrolled      float64
	spreadOut         float64
	priceRatio        float64
}

func readDataCSV(path string) ([]dataRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	cols := map[string]int{}
	for i, name := range header {
		cols[name] = i
	}

	var rows []dataRow
	var start time.Time
	for i := 0; ; i++ {
		record, err := r.Read()
		if err != nil {
			break
		}
		dt, err := time.Parse(time.RFC3339, record[cols["datetime"]])
		if err != nil {
			return nil, fmt.Errorf("parsing datetime on row %d: %w", i, err)
		}
		if i == 0 {
			start = dt
		}
		rows = append(rows, dataRow{
			minutesSinceStart: dt.Sub(start).Minutes(),
			targetDemand:      parseFloat(record[cols["target_demand"]]),
			smartDemand:       parseFloat(record[cols["smart_demand"]]),
			uncontrolled:      parseFloat(record[cols["uncontrolled_demand"]]),
			spreadOut:         parseFloat(record[cols["spread_out_demand"]]),
			priceRatio:        parseFloat(record[cols["price_ratio"]]),
		})
	}
	return rows, nil
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

// renderDemandChart plots the three control-policy demand curves against
// the grid's target demand on a single panel. The price ratio is not plotted.
func renderDemandChart(rows []dataRow, width, height float64, outputPNG string) error {
	p, err := plot.New()
	if err != nil {
		return fmt.Errorf("creating plot: %w", err)
	}
	p.Title.Text = "Simulated household demand"
	p.X.Label.Text = "minutes since start"
	p.Y.Label.Text = "kW"

	target := make(plotter.XYs, len(rows))
	smart := make(plotter.XYs, len(rows))
	uncontrolled := make(plotter.XYs, len(rows))
	spreadOut := make(plotter.XYs, len(rows))
	for i, row := range rows {
		target[i] = plotter.XY{X: row.minutesSinceStart, Y: row.targetDemand}
		smart[i] = plotter.XY{X: row.minutesSinceStart, Y: row.smartDemand}
		uncontrolled[i] = plotter.XY{X: row.minutesSinceStart, Y: row.uncontrolled}
		spreadOut[i] = plotter.XY{X: row.minutesSinceStart, Y: row.spreadOut}
	}

	if err := plotutil.AddLines(p,
		"target", target,
		"smart", smart,
		"uncontrolled", uncontrolled,
		"spread-out", spreadOut,
	); err != nil {
		return err
	}

	return p.Save(vg.Length(width), vg.Length(height), outputPNG)
}
