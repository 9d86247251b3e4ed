package domain

import (
	"context"
	"log/slog"
)

// EnrichWithGeocoding fills in arc endpoints that have no coordinates by
// forward-geocoding the zone name. CoordSource records the outcome:
// "original" when both endpoints already had coordinates, "geocoded" when
// every missing endpoint was resolved, "failed" when a lookup errored and
// "missing" when an endpoint stays unresolved. Lookup errors are logged and
// never fail the record.
func EnrichWithGeocoding(ctx context.Context, rec ODRecord, geocoder Geocoder, logger *slog.Logger) ODRecord {
	if !rec.Origin.IsZero() && !rec.Destination.IsZero() {
		rec.CoordSource = CoordOriginal
		return rec
	}
	if geocoder == nil {
		rec.CoordSource = CoordMissing
		return rec
	}

	endpoints := []struct {
		zone  string
		state string
		coord *Coord
	}{
		{rec.OriginZone, rec.OriginState, &rec.Origin},
		{rec.DestinationZone, rec.DestinationState, &rec.Destination},
	}

	source := CoordGeocoded
	for _, ep := range endpoints {
		if !ep.coord.IsZero() {
			continue
		}
		result, err := geocoder.ForwardGeocode(ctx, ep.zone, ep.state)
		if err != nil {
			logger.Warn("forward geocoding failed",
				"zone", ep.zone,
				"state", ep.state,
				"error", err,
			)
			source = CoordFailed
			continue
		}
		if !result.Found() {
			if source != CoordFailed {
				source = CoordMissing
			}
			continue
		}
		*ep.coord = result.Coord()
	}

	rec.CoordSource = source
	return rec
}
