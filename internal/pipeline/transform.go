package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/od-flow-service/internal/domain"
)

// ODTransformer implements Transformer: it parses a JSON OD row and fills
// missing arc endpoints through the optional geocoder.
type ODTransformer struct {
	geocoder domain.Geocoder
	logger   *slog.Logger
}

// NewTransformer creates an ODTransformer. Pass a nil geocoder to disable
// geocoding enrichment.
func NewTransformer(geocoder domain.Geocoder, logger *slog.Logger) *ODTransformer {
	return &ODTransformer{
		geocoder: geocoder,
		logger:   logger,
	}
}

func (t *ODTransformer) Transform(ctx context.Context, raw domain.RawEvent) (domain.ODRecord, error) {
	rec, err := domain.ParseRawEvent(raw)
	if err != nil {
		return domain.ODRecord{}, err
	}
	return domain.EnrichWithGeocoding(ctx, rec, t.geocoder, t.logger), nil
}
