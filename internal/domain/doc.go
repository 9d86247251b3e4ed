// Package domain models National Household Travel Survey (NHTS) origin-destination
// flow data and the selection pipeline that turns it into map-ready views.
//
// # Data Source
//
// OD tables come from the NHTS 2022 OD product, available at
// https://nhts.ornl.gov/od/. Each row is one (origin zone, destination zone) pair
// with an annual trip estimate and its split by travel mode and trip purpose. The
// service reads the table from a CSV file at startup and can additionally consume
// rows published as flat JSON to a Kafka topic.
//
// # Column Conventions
//
// Zones:
//
//	origin_zone_name / destination_zone_name carry the zone label, e.g.
//	"Miami-Fort Lauderdale-West Palm Beach, FL". The label is the zone key; zone
//	ids (zone_id_x, zone_id_y) are carried through but never used for matching.
//
// Volumes:
//
//	annual_total_trips       total annual trips for the pair
//	mode_air, mode_rail,     split by travel mode; mode_atf is active
//	mode_vehicle, mode_atf   transportation and ferry combined
//	purpose_work,            split by trip purpose
//	purpose_nonwork
//
//	The mode and purpose columns conceptually sum to annual_total_trips but the
//	survey estimates are not guaranteed to, so no cross-check is applied.
//
// Coordinates:
//
//	o_x/o_y and d_x/d_y are WGS-84 longitude/latitude of the zone centroids used
//	as arc endpoints. Missing endpoints can be filled by forward geocoding the
//	zone label (see [EnrichWithGeocoding]).
//
// # Selection Pipeline
//
// [Select] recomputes the whole view from the immutable base records on every
// control change:
//
//	Filter          drop same-zone rows (optional), restrict origin and destination
//	SelectTopN      stable sort by annual_total_trips descending, keep n rows
//	ComputeShare    percentage of the selected subtotal, 2 decimals
//	NormalizeWidth  linear rescale of trips onto [0.5, 10] (cross-zone only)
//	                or [0.5, 1000] (same-zone trips included)
//	Aggregate*      mode and purpose totals with percentage of the table total
//
// Degenerate inputs are valid states: an empty selection yields no flows and
// breakdowns of zero, a zero total yields 0% shares, and equal volumes (including
// a single row) all get the midpoint width.
package domain
