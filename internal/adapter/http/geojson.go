package http

import (
	"github.com/couchcryptid/od-flow-service/internal/domain"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// flowsToGeoJSON renders each flow as a LineString from origin to
// destination. Flows without both endpoints are left out; same-zone flows
// become a degenerate two-point line at the zone centroid.
func flowsToGeoJSON(flows []domain.Flow) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, f := range flows {
		if f.Origin.IsZero() || f.Destination.IsZero() {
			continue
		}
		feature := geojson.NewFeature(orb.LineString{
			{f.Origin.X, f.Origin.Y},
			{f.Destination.X, f.Destination.Y},
		})
		feature.Properties["origin"] = f.OriginZone
		feature.Properties["destination"] = f.DestinationZone
		feature.Properties["trips"] = f.AnnualTotalTrips
		feature.Properties["percentage"] = f.PercentageOfTotal
		feature.Properties["width"] = f.NormalizedWidth
		feature.Properties["distance_km"] = f.DistanceKm
		fc.Append(feature)
	}
	return fc
}
