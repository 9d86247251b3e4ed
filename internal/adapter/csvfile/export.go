package csvfile

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/couchcryptid/od-flow-service/internal/domain"
)

// ExportFileName is the download name offered for selection exports.
const ExportFileName = "selected_od_data_export.csv"

// ExportColumns is the header of an export. Coordinates, zone ids, states and
// arc widths are render-only and left out.
var ExportColumns = []string{
	"origin_zone_name",
	"destination_zone_name",
	"annual_total_trips",
	"mode_air",
	"mode_rail",
	"mode_vehicle",
	"mode_atf",
	"purpose_work",
	"purpose_nonwork",
	"selected_trips_total",
	"percentage_of_total",
}

// WriteExport writes the selected flows as CSV, one row per flow, in the
// order given.
func WriteExport(w io.Writer, flows []domain.Flow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ExportColumns); err != nil {
		return fmt.Errorf("write export header: %w", err)
	}

	row := make([]string, len(ExportColumns))
	for _, f := range flows {
		row[0] = f.OriginZone
		row[1] = f.DestinationZone
		row[2] = formatNumber(f.AnnualTotalTrips)
		row[3] = formatNumber(f.ModeAir)
		row[4] = formatNumber(f.ModeRail)
		row[5] = formatNumber(f.ModeVehicle)
		row[6] = formatNumber(f.ModeATF)
		row[7] = formatNumber(f.PurposeWork)
		row[8] = formatNumber(f.PurposeNonWork)
		row[9] = formatNumber(f.SelectedTripsTotal)
		row[10] = formatNumber(f.PercentageOfTotal)
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write export row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush export: %w", err)
	}
	return nil
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
