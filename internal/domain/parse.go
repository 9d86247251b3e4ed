package domain

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// ErrInvalidRecord is wrapped by every row-level parse failure.
var ErrInvalidRecord = errors.New("invalid OD record")

// Column names as they appear in the NHTS OD export. Some columns have an
// alternative spelling; the first name of each alias list is canonical.
var (
	colOriginZone      = []string{"origin_zone_name", "origin_zone"}
	colDestinationZone = []string{"destination_zone_name", "destination_zone"}
	colOriginX         = []string{"o_x", "origin_x"}
	colOriginY         = []string{"o_y", "origin_y"}
	colDestinationX    = []string{"d_x", "destination_x"}
	colDestinationY    = []string{"d_y", "destination_y"}
)

// RequiredColumns lists the columns every input table must carry. Each entry
// is an alias list; any one spelling satisfies it.
var RequiredColumns = [][]string{
	colOriginZone,
	colDestinationZone,
	{"annual_total_trips"},
	{"mode_air"},
	{"mode_rail"},
	{"mode_vehicle"},
	{"mode_atf"},
	{"purpose_work"},
	{"purpose_nonwork"},
}

// MissingColumns returns the canonical names of required columns absent from header.
func MissingColumns(header []string) []string {
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[strings.TrimSpace(h)] = true
	}
	var missing []string
	for _, aliases := range RequiredColumns {
		found := false
		for _, a := range aliases {
			if present[a] {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, aliases[0])
		}
	}
	return missing
}

// ParseFields builds an ODRecord from a column-name to cell-value mapping.
// Empty numeric cells count as zero; malformed or negative ones are rejected.
func ParseFields(fields map[string]string) (ODRecord, error) {
	rec := ODRecord{
		OriginZone:        lookup(fields, colOriginZone...),
		DestinationZone:   lookup(fields, colDestinationZone...),
		OriginZoneID:      lookup(fields, "zone_id_x"),
		DestinationZoneID: lookup(fields, "zone_id_y"),
		OriginState:       lookup(fields, "origin_state"),
		DestinationState:  lookup(fields, "destination_state"),
	}
	if rec.OriginZone == "" || rec.DestinationZone == "" {
		return ODRecord{}, fmt.Errorf("%w: origin and destination zone are required", ErrInvalidRecord)
	}

	quantities := []struct {
		col string
		dst *float64
	}{
		{"annual_total_trips", &rec.AnnualTotalTrips},
		{"mode_air", &rec.ModeAir},
		{"mode_rail", &rec.ModeRail},
		{"mode_vehicle", &rec.ModeVehicle},
		{"mode_atf", &rec.ModeATF},
		{"purpose_work", &rec.PurposeWork},
		{"purpose_nonwork", &rec.PurposeNonWork},
	}
	for _, q := range quantities {
		v, err := parseQuantity(q.col, lookup(fields, q.col))
		if err != nil {
			return ODRecord{}, err
		}
		*q.dst = v
	}

	coords := []struct {
		aliases []string
		dst     *float64
	}{
		{colOriginX, &rec.Origin.X},
		{colOriginY, &rec.Origin.Y},
		{colDestinationX, &rec.Destination.X},
		{colDestinationY, &rec.Destination.Y},
	}
	for _, c := range coords {
		v, err := parseCoordinate(c.aliases[0], lookup(fields, c.aliases...))
		if err != nil {
			return ODRecord{}, err
		}
		*c.dst = v
	}

	return rec, nil
}

// ParseRawEvent deserializes a RawEvent's value into an ODRecord. The value
// is a flat JSON object keyed by the same column names as the CSV export;
// cells may be JSON strings or numbers.
func ParseRawEvent(raw RawEvent) (ODRecord, error) {
	dec := json.NewDecoder(bytes.NewReader(raw.Value))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return ODRecord{}, fmt.Errorf("parse raw event: %w", err)
	}

	fields := make(map[string]string, len(obj))
	for k, v := range obj {
		switch val := v.(type) {
		case nil:
			fields[k] = ""
		case string:
			fields[k] = val
		case json.Number:
			fields[k] = val.String()
		default:
			return ODRecord{}, fmt.Errorf("parse raw event: %w: column %q has unsupported type %T", ErrInvalidRecord, k, v)
		}
	}

	rec, err := ParseFields(fields)
	if err != nil {
		return ODRecord{}, fmt.Errorf("parse raw event: %w", err)
	}
	return rec, nil
}

func lookup(fields map[string]string, aliases ...string) string {
	for _, a := range aliases {
		if v, ok := fields[a]; ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func parseQuantity(col, s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: column %q: %q is not a number", ErrInvalidRecord, col, s)
	}
	if v < 0 {
		return 0, fmt.Errorf("%w: column %q: negative value %g", ErrInvalidRecord, col, v)
	}
	return v, nil
}

func parseCoordinate(col, s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: column %q: %q is not a coordinate", ErrInvalidRecord, col, s)
	}
	return v, nil
}
