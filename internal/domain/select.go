package domain

import (
	"strings"
	"time"

	"github.com/samber/lo"
)

// AllZonesLabel is the selector entry that stands for "no zone restriction".
const AllZonesLabel = "All FL NHTS zones"

// IsAllZones reports whether a zone selector value means "every zone": the
// empty string, "all" in any case, or AllZonesLabel.
func IsAllZones(zone string) bool {
	z := strings.TrimSpace(zone)
	return z == "" || strings.EqualFold(z, "all") || z == AllZonesLabel
}

// SelectionParams carries the state of the interactive controls.
type SelectionParams struct {
	ExcludeSameZone bool   `json:"exclude_same_zone"`
	Origin          string `json:"origin"`
	Destination     string `json:"destination"`
	// TopN limits the result to the largest flows; 0 keeps every row and a
	// negative value is clamped to one row.
	TopN int `json:"top_n"`
}

// Selection is the full recomputed view for one set of control values.
type Selection struct {
	Params           SelectionParams `json:"params"`
	Flows            []Flow          `json:"flows"`
	RowCount         int             `json:"row_count"`
	MatchedCount     int             `json:"matched_count"`
	TotalTrips       float64         `json:"total_trips"`
	MinWidth         float64         `json:"min_width"`
	MaxWidth         float64         `json:"max_width"`
	ModeBreakdown    []BreakdownRow  `json:"mode_breakdown"`
	PurposeBreakdown []BreakdownRow  `json:"purpose_breakdown"`
	ComputedAt       time.Time       `json:"computed_at"`
}

// Select runs the whole selection pipeline over the base records: filter,
// top-N truncation, share of subtotal, width normalization, arc distance,
// and the mode and purpose breakdowns of the truncated set.
// The base records are read only.
func Select(records []ODRecord, p SelectionParams) Selection {
	matched := Filter(records, p.ExcludeSameZone, p.Origin, p.Destination)

	n := p.TopN
	if n == 0 {
		n = len(matched)
	}
	top := SelectTopN(matched, n)

	maxWidth := MaxWidthFor(p.ExcludeSameZone)
	flows := NormalizeWidth(ComputeShare(top), MinWidth, maxWidth)
	for i := range flows {
		flows[i].DistanceKm = GreatCircleKm(flows[i].Origin, flows[i].Destination)
	}

	return Selection{
		Params:           p,
		Flows:            flows,
		RowCount:         len(flows),
		MatchedCount:     len(matched),
		TotalTrips:       TotalTrips(top),
		MinWidth:         MinWidth,
		MaxWidth:         maxWidth,
		ModeBreakdown:    AggregateByMode(top),
		PurposeBreakdown: AggregateByPurpose(top),
		ComputedAt:       clock.Now().UTC(),
	}
}

// Zones lists the distinct origin and destination zone names in the order
// they first appear.
func Zones(records []ODRecord) (origins, destinations []string) {
	origins = lo.Uniq(lo.Map(records, func(r ODRecord, _ int) string { return r.OriginZone }))
	destinations = lo.Uniq(lo.Map(records, func(r ODRecord, _ int) string { return r.DestinationZone }))
	return origins, destinations
}
