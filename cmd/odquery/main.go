// Command odquery runs one flow selection over an OD table from the command
// line. It prints the ranked flows and the mode and purpose breakdowns,
// optionally writes the CSV export, and checks the table and the selection
// for consistency.
//
// Usage:
//
//	go run ./cmd/odquery \
//	  -data data/mock/trip_od_within_fl.csv \
//	  -origin "Miami-Fort Lauderdale-West Palm Beach, FL" \
//	  -top 10 -export selected_od_data_export.csv -check
package main

import (
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"text/tabwriter"

	"github.com/couchcryptid/od-flow-service/internal/adapter/csvfile"
	"github.com/couchcryptid/od-flow-service/internal/domain"
	"github.com/dustin/go-humanize"
)

// tolerance for comparing breakdown sums against annual totals, in trips.
const sumTolerance = 1.0

// phase tracks pass/fail for a check phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dataPath := flag.String("data", "", "path to the OD CSV")
	excludeSame := flag.Bool("exclude-same-zone", true, "drop rows whose origin and destination zone are equal")
	origin := flag.String("origin", domain.AllZonesLabel, "origin zone, or \"all\"")
	destination := flag.String("destination", domain.AllZonesLabel, "destination zone, or \"all\"")
	top := flag.Int("top", 0, "keep only the N largest flows (0 keeps all)")
	exportPath := flag.String("export", "", "write the selected flows as CSV to this path")
	check := flag.Bool("check", false, "run consistency checks and exit non-zero on failure")
	flag.Parse()

	if *dataPath == "" || *top < 0 {
		flag.Usage()
		os.Exit(1)
	}

	params := domain.SelectionParams{
		ExcludeSameZone: *excludeSame,
		Origin:          *origin,
		Destination:     *destination,
		TopN:            *top,
	}
	if code := run(*dataPath, params, *exportPath, *check); code != 0 {
		os.Exit(code)
	}
}

func run(dataPath string, params domain.SelectionParams, exportPath string, check bool) int {
	records, err := csvfile.Load(dataPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	sel := domain.Select(records, params)
	printSelection(os.Stdout, len(records), sel)

	if exportPath != "" {
		if err := writeExport(exportPath, sel.Flows); err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: export: %v\n", err)
			return 1
		}
		fmt.Printf("\nWrote %d rows to %s\n", len(sel.Flows), exportPath)
	}

	if !check {
		return 0
	}

	phases := []*phase{
		checkRecords(records),
		checkSelection(sel),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-32s %s\n", p.name, status)
	}
	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}
	if !allPassed {
		fmt.Println("\nChecks FAILED.")
		return 1
	}
	fmt.Println("\nAll checks passed.")
	return 0
}

func printSelection(w io.Writer, total int, sel domain.Selection) {
	fmt.Fprintf(w, "Origin: %s\nDestination: %s\nExclude same zone: %t\n",
		sel.Params.Origin, sel.Params.Destination, sel.Params.ExcludeSameZone)
	fmt.Fprintf(w, "Rows: %d of %d matched, %s total (%s trips)\n\n",
		sel.RowCount, sel.MatchedCount, humanize.Comma(int64(total)), humanize.Commaf(sel.TotalTrips))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Origin\tDestination\tTrips\tShare %\tWidth\tKm\t")
	for _, f := range sel.Flows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%.2f\t%.0f\t\n",
			f.OriginZone, f.DestinationZone, humanize.Commaf(f.AnnualTotalTrips),
			f.PercentageOfTotal, f.NormalizedWidth, f.DistanceKm)
	}
	tw.Flush()

	printBreakdown(w, "Mode", sel.ModeBreakdown)
	printBreakdown(w, "Purpose", sel.PurposeBreakdown)
}

func printBreakdown(w io.Writer, title string, rows []domain.BreakdownRow) {
	fmt.Fprintf(w, "\n%s\n", title)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%.2f%%\t\n", r.Label, r.TotalFormatted, r.Percentage)
	}
	tw.Flush()
}

func writeExport(path string, flows []domain.Flow) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := csvfile.WriteExport(f, flows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// checkRecords verifies that each row's mode and purpose columns add up to
// its annual total.
func checkRecords(records []domain.ODRecord) *phase {
	p := &phase{name: "Row breakdown sums"}
	for i, r := range records {
		modes := r.ModeAir + r.ModeRail + r.ModeVehicle + r.ModeATF
		if math.Abs(modes-r.AnnualTotalTrips) > sumTolerance {
			p.errorf("row %d (%s): modes sum to %.0f, total is %.0f", i+2, r.PairKey(), modes, r.AnnualTotalTrips)
		}
		purposes := r.PurposeWork + r.PurposeNonWork
		if math.Abs(purposes-r.AnnualTotalTrips) > sumTolerance {
			p.errorf("row %d (%s): purposes sum to %.0f, total is %.0f", i+2, r.PairKey(), purposes, r.AnnualTotalTrips)
		}
	}
	return p
}

// checkSelection verifies the display invariants of a computed selection.
func checkSelection(sel domain.Selection) *phase {
	p := &phase{name: "Selection invariants"}
	if len(sel.Flows) == 0 {
		return p
	}

	var share float64
	for i, f := range sel.Flows {
		share += f.PercentageOfTotal
		if f.NormalizedWidth < sel.MinWidth-1e-9 || f.NormalizedWidth > sel.MaxWidth+1e-9 {
			p.errorf("flow %d (%s): width %.4f outside [%g, %g]", i, f.PairKey(), f.NormalizedWidth, sel.MinWidth, sel.MaxWidth)
		}
		if i > 0 && f.AnnualTotalTrips > sel.Flows[i-1].AnnualTotalTrips {
			p.errorf("flow %d (%s): not in descending trip order", i, f.PairKey())
		}
		if sel.Params.ExcludeSameZone && f.SameZone() {
			p.errorf("flow %d (%s): same-zone row in a cross-zone selection", i, f.PairKey())
		}
	}
	if sel.TotalTrips > 0 && math.Abs(share-100) > 0.01*float64(len(sel.Flows)) {
		p.errorf("shares sum to %.4f%%, want 100%%", share)
	}
	return p
}
