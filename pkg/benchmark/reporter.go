package benchmark

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// Reporter formats and outputs benchmark reports.
type Reporter struct {
	writer io.Writer
}

// NewReporter creates a new reporter that writes to w.
func NewReporter(w io.Writer) *Reporter {
	if w == nil {
		w = os.Stdout
	}
	return &Reporter{writer: w}
}

// PrintSummary prints a human-readable summary of a benchmark report.
func (r *Reporter) PrintSummary(report *Report) {
	w := r.writer

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Delta Matrix Multiply Benchmark ===")
	fmt.Fprintf(w, "Dims: %d x %d   F rows: %d   Runs: %d\n",
		report.Config.Dims, report.Config.Dims, report.Config.FRows, report.Config.Runs)
	fmt.Fprintf(w, "Density: %.2e   M+ density: %.2e   M- density: %.2e\n",
		report.Config.Density, report.Config.PlusDensity, report.Config.MinusDensity)
	fmt.Fprintln(w)

	for i, run := range report.Runs {
		status := "OK"
		if !run.OutputsEqual {
			status = "MISMATCH"
		}
		fmt.Fprintf(w, "  run %2d: standard=%-12v delta=%-12v improvement=%+7.2f%%  %s\n",
			i+1, run.StandardTime.Round(time.Microsecond), run.DeltaTime.Round(time.Microsecond),
			run.PercentImprovement*100, status)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Average improvement: %+.2f%% over %d runs\n", report.AverageImprovement*100, len(report.Runs))
	if report.AllOutputsEqual {
		fmt.Fprintln(w, "All delta outputs matched the standard-multiply reference.")
	} else {
		fmt.Fprintln(w, "WARNING: at least one run's delta output did not match the reference.")
	}
	fmt.Fprintf(w, "Total duration: %v\n", report.Duration.Round(time.Millisecond))
	fmt.Fprintln(w)
}

// PrintCompact prints a one-line summary.
func (r *Reporter) PrintCompact(report *Report) {
	status := "PASS"
	if !report.AllOutputsEqual {
		status = "FAIL"
	}
	fmt.Fprintf(r.writer, "[%s] avg improvement=%+.2f%% over %d runs | %v\n",
		status, report.AverageImprovement*100, len(report.Runs), report.Duration.Round(time.Millisecond))
}

// PrintJSON writes the report as indented JSON.
func (r *Reporter) PrintJSON(report *Report) error {
	encoder := json.NewEncoder(r.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

// SaveJSON writes the report as JSON to path.
func (r *Reporter) SaveJSON(report *Report, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
