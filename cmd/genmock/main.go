// Command genmock writes a deterministic mock of the NHTS Florida OD table:
// every ordered pair of the chosen metro zones, including same-zone trips,
// with mode and purpose splits that sum to the annual total. It can also
// emit the rows as JSON lines for producing to the source topic.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -zones 8 -seed 42 \
//	  -out data/mock/trip_od_within_fl.csv \
//	  -jsonl-out data/mock/trip_od_within_fl.jsonl
package main

import (
	"bufio"
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"

	"github.com/couchcryptid/od-flow-service/internal/domain"
	"github.com/dustin/go-humanize"
	"github.com/goccy/go-json"
)

type zone struct {
	id   string
	name string
	lon  float64
	lat  float64
	pop  float64 // relative weight, millions
}

var floridaZones = []zone{
	{"33100", "Miami-Fort Lauderdale-West Palm Beach, FL", -80.1918, 25.7617, 6.1},
	{"45300", "Tampa-St. Petersburg-Clearwater, FL", -82.4572, 27.9506, 3.2},
	{"36740", "Orlando-Kissimmee-Sanford, FL", -81.3792, 28.5383, 2.7},
	{"27260", "Jacksonville, FL", -81.6557, 30.3322, 1.6},
	{"35840", "North Port-Sarasota-Bradenton, FL", -82.5307, 27.3364, 0.8},
	{"15980", "Cape Coral-Fort Myers, FL", -81.8723, 26.6406, 0.8},
	{"29460", "Lakeland-Winter Haven, FL", -81.9498, 28.0395, 0.7},
	{"19660", "Deltona-Daytona Beach-Ormond Beach, FL", -81.0228, 29.2108, 0.7},
	{"37340", "Palm Bay-Melbourne-Titusville, FL", -80.6081, 28.0836, 0.6},
	{"38940", "Port St. Lucie, FL", -80.3582, 27.2730, 0.5},
	{"37860", "Pensacola-Ferry Pass-Brent, FL", -87.2169, 30.4213, 0.5},
	{"45220", "Tallahassee, FL", -84.2807, 30.4383, 0.4},
	{"34940", "Naples-Marco Island, FL", -81.7948, 26.1420, 0.4},
	{"36100", "Ocala, FL", -82.1401, 29.1872, 0.4},
	{"23540", "Gainesville, FL", -82.3248, 29.6516, 0.3},
	{"99999", "Rest of FL", -82.0, 28.5, 1.2},
}

var header = []string{
	"zone_id_x", "zone_id_y",
	"origin_zone_name", "destination_zone_name",
	"origin_state", "destination_state",
	"annual_total_trips",
	"mode_air", "mode_rail", "mode_vehicle", "mode_atf",
	"purpose_work", "purpose_nonwork",
	"o_x", "o_y", "d_x", "d_y",
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	nZones := flag.Int("zones", len(floridaZones), "number of metro zones to include (1-16)")
	seed := flag.Uint64("seed", 42, "random seed; equal seeds give identical output")
	out := flag.String("out", "", "output path for the OD CSV")
	jsonlOut := flag.String("jsonl-out", "", "optional output path for JSON lines (one OD row per line)")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	if *nZones < 1 || *nZones > len(floridaZones) {
		return fmt.Errorf("-zones must be between 1 and %d", len(floridaZones))
	}

	records := generate(floridaZones[:*nZones], rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15)))

	if err := writeCSV(*out, records); err != nil {
		return fmt.Errorf("writing CSV: %w", err)
	}
	log.Printf("wrote %d rows: %s", len(records), *out)

	if *jsonlOut != "" {
		if err := writeJSONLines(*jsonlOut, records); err != nil {
			return fmt.Errorf("writing JSON lines: %w", err)
		}
		log.Printf("wrote JSON lines: %s", *jsonlOut)
	}

	printStats(records)
	return nil
}

// generate builds a gravity-model volume for each ordered zone pair with
// multiplicative noise. Same-zone volumes are an order of magnitude larger.
func generate(zones []zone, rng *rand.Rand) []domain.ODRecord {
	records := make([]domain.ODRecord, 0, len(zones)*len(zones))
	for _, o := range zones {
		for _, d := range zones {
			origin := domain.Coord{X: o.lon, Y: o.lat}
			dest := domain.Coord{X: d.lon, Y: d.lat}

			var trips float64
			if o.id == d.id {
				trips = o.pop * 4e7 * (0.8 + 0.4*rng.Float64())
			} else {
				km := math.Max(domain.GreatCircleKm(origin, dest), 25)
				trips = o.pop * d.pop * 4e8 / (km * km) * math.Exp(rng.NormFloat64()*0.3)
			}
			trips = math.Round(trips)

			air := 0.0
			if km := domain.GreatCircleKm(origin, dest); km > 300 {
				air = math.Round(trips * (0.05 + 0.15*rng.Float64()))
			}
			rail := math.Round(trips * 0.01 * rng.Float64())
			atf := 0.0
			if o.id == d.id {
				atf = math.Round(trips * (0.05 + 0.05*rng.Float64()))
			}
			vehicle := trips - air - rail - atf

			work := math.Round(trips * (0.25 + 0.15*rng.Float64()))

			records = append(records, domain.ODRecord{
				OriginZone:        o.name,
				DestinationZone:   d.name,
				OriginZoneID:      o.id,
				DestinationZoneID: d.id,
				OriginState:       "FL",
				DestinationState:  "FL",
				AnnualTotalTrips:  trips,
				ModeAir:           air,
				ModeRail:          rail,
				ModeVehicle:       vehicle,
				ModeATF:           atf,
				PurposeWork:       work,
				PurposeNonWork:    trips - work,
				Origin:            origin,
				Destination:       dest,
			})
		}
	}
	return records
}

func writeCSV(path string, records []domain.ODRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	for i := range records {
		if err := w.Write(csvRow(&records[i])); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func csvRow(r *domain.ODRecord) []string {
	num := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return []string{
		r.OriginZoneID, r.DestinationZoneID,
		r.OriginZone, r.DestinationZone,
		r.OriginState, r.DestinationState,
		num(r.AnnualTotalTrips),
		num(r.ModeAir), num(r.ModeRail), num(r.ModeVehicle), num(r.ModeATF),
		num(r.PurposeWork), num(r.PurposeNonWork),
		num(r.Origin.X), num(r.Origin.Y), num(r.Destination.X), num(r.Destination.Y),
	}
}

// writeJSONLines writes rows in the flat column-keyed shape the source topic
// carries.
func writeJSONLines(path string, records []domain.ODRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	enc := json.NewEncoder(bw)
	for i := range records {
		row := make(map[string]string, len(header))
		for j, v := range csvRow(&records[i]) {
			row[header[j]] = v
		}
		if err := enc.Encode(row); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func printStats(records []domain.ODRecord) {
	sel := domain.Select(records, domain.SelectionParams{ExcludeSameZone: true, TopN: 5})
	all := domain.Select(records, domain.SelectionParams{ExcludeSameZone: true})

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Rows: %d (cross-zone: %d)\n", len(records), all.MatchedCount)
	fmt.Printf("Cross-zone trips: %s\n", humanize.Commaf(all.TotalTrips))
	fmt.Println("Top 5 cross-zone flows:")
	for _, f := range sel.Flows {
		fmt.Printf("  %-45s -> %-45s %14s  %6.2f%%  width=%.2f  %5.0f km\n",
			f.OriginZone, f.DestinationZone, humanize.Commaf(f.AnnualTotalTrips),
			f.PercentageOfTotal, f.NormalizedWidth, f.DistanceKm)
	}
	fmt.Println("Mode breakdown (cross-zone):")
	for _, b := range all.ModeBreakdown {
		fmt.Printf("  %-30s %16s  %6.2f%%\n", b.Label, b.TotalFormatted, b.Percentage)
	}
}
