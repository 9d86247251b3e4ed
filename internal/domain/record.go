package domain

import (
	"context"
	"time"
)

// RawEvent represents an unprocessed OD row message from the source topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// Coord is an arc endpoint in the source projection: X is longitude, Y is latitude.
type Coord struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// IsZero reports whether the coordinate was never set.
func (c Coord) IsZero() bool {
	return c.X == 0 && c.Y == 0
}

// Coordinate provenance values for ODRecord.CoordSource.
const (
	CoordOriginal = "original"
	CoordGeocoded = "geocoded"
	CoordFailed   = "failed"
	CoordMissing  = "missing"
)

// ODRecord is one origin-zone/destination-zone pair with its annual trip
// volume and the mode and purpose breakdowns of that volume.
type ODRecord struct {
	OriginZone        string `json:"origin_zone_name"`
	DestinationZone   string `json:"destination_zone_name"`
	OriginZoneID      string `json:"zone_id_x,omitempty"`
	DestinationZoneID string `json:"zone_id_y,omitempty"`
	OriginState       string `json:"origin_state,omitempty"`
	DestinationState  string `json:"destination_state,omitempty"`

	AnnualTotalTrips float64 `json:"annual_total_trips"`

	ModeAir     float64 `json:"mode_air"`
	ModeRail    float64 `json:"mode_rail"`
	ModeVehicle float64 `json:"mode_vehicle"`
	ModeATF     float64 `json:"mode_atf"` // active transportation and ferry

	PurposeWork    float64 `json:"purpose_work"`
	PurposeNonWork float64 `json:"purpose_nonwork"`

	Origin      Coord  `json:"origin"`
	Destination Coord  `json:"destination"`
	CoordSource string `json:"coord_source,omitempty"`
}

// SameZone reports whether the trip starts and ends in the same zone.
func (r ODRecord) SameZone() bool {
	return r.OriginZone == r.DestinationZone
}

// PairKey identifies the record's zone pair.
func (r ODRecord) PairKey() string {
	return r.OriginZone + "|" + r.DestinationZone
}

// Flow is an ODRecord annotated for display: its share of the selected total,
// its normalized arc width, and the great-circle length of the arc.
type Flow struct {
	ODRecord

	SelectedTripsTotal float64 `json:"selected_trips_total"`
	PercentageOfTotal  float64 `json:"percentage_of_total"`
	NormalizedWidth    float64 `json:"normalized_width"`
	DistanceKm         float64 `json:"distance_km,omitempty"`
}

// BreakdownRow is one line of the mode or purpose summary table.
type BreakdownRow struct {
	Label          string  `json:"label"`
	Total          float64 `json:"total"`
	TotalFormatted string  `json:"total_formatted"`
	Percentage     float64 `json:"percentage"`
}
