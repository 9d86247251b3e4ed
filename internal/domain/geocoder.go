package domain

import "context"

// GeocodingResult is the best match a provider returned for a zone name.
// A zero result means nothing matched.
type GeocodingResult struct {
	Lat              float64
	Lon              float64
	FormattedAddress string
	PlaceName        string
	Confidence       float64 // provider relevance, 0 to 1
}

// Found reports whether the result carries a usable centroid.
func (r GeocodingResult) Found() bool {
	return r.Lat != 0 || r.Lon != 0
}

// Coord returns the centroid as an arc endpoint.
func (r GeocodingResult) Coord() Coord {
	return Coord{X: r.Lon, Y: r.Lat}
}

// Geocoder resolves OD zone names to centroid coordinates for drawing arcs.
type Geocoder interface {
	ForwardGeocode(ctx context.Context, zone, state string) (GeocodingResult, error)
}
