package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gridsim/internal/simulator"
)

// writeOutput writes desc.txt and data.csv into outputFolder. Both files are
// written to a temporary path first and renamed into place, so a failure
// partway through never leaves a partial data.csv or desc.txt behind.
func writeOutput(outputFolder string, cfg simulator.RunConfig, result simulator.Result) error {
	if err := os.MkdirAll(outputFolder, 0755); err != nil {
		return fmt.Errorf("creating output folder: %w", err)
	}

	if err := writeAtomic(filepath.Join(outputFolder, "desc.txt"), func(w *bufio.Writer) error {
		return writeDesc(w, cfg, result)
	}); err != nil {
		return fmt.Errorf("writing desc.txt: %w", err)
	}

	if err := writeAtomic(filepath.Join(outputFolder, "data.csv"), func(w *bufio.Writer) error {
		return writeDataCSV(w, result)
	}); err != nil {
		return fmt.Errorf("writing data.csv: %w", err)
	}

	return nil
}

// writeAtomic writes to a temp file in the same directory as path, then
// renames it into place, so readers never observe a half-written file.
func writeAtomic(path string, write func(w *bufio.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	w := bufio.NewWriter(tmp)
	if err := write(w); err != nil {
		tmp.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func writeDesc(w *bufio.Writer, cfg simulator.RunConfig, result simulator.Result) error {
	fmt.Fprintf(w, "runId=%s\n", result.RunID)
	fmt.Fprintf(w, "startingDate=%s\n", cfg.StartingDT.Format("2006-01-02"))
	fmt.Fprintf(w, "simulationLengthDays=%d\n", cfg.SimulationLengthDays)
	fmt.Fprintf(w, "houseCount=%d\n", cfg.HouseCount)
	fmt.Fprintf(w, "seed=%d\n", cfg.Seed)
	fmt.Fprintf(w, "rowCount=%d\n", len(result.Rows))
	fmt.Fprintf(w, "generatedAt=%s\n", time.Now().UTC().Format(time.RFC3339))
	return nil
}

func writeDataCSV(w *bufio.Writer, result simulator.Result) error {
	fmt.Fprintln(w, "datetime,predicted_base_demand,actual_base_demand,target_demand,smart_demand,uncontrolled_demand,spread_out_demand,price_ratio")
	for _, row := range result.Rows {
		fmt.Fprintf(w, "%s,%g,%g,%g,%g,%g,%g,%g\n",
			row.Datetime.Format(time.RFC3339),
			row.PredictedBaseDemand,
			row.ActualBaseDemand,
			row.TargetDemand,
			row.SmartDemand,
			row.UncontrolledDemand,
			row.SpreadOutDemand,
			row.PriceRatio,
		)
	}
	return nil
}
