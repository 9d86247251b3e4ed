package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/couchcryptid/od-flow-service/internal/domain"
	"github.com/couchcryptid/od-flow-service/internal/observability"
)

// Retry delays after a failed extract or load: doubled per attempt, capped.
const (
	initialBackoff  = 200 * time.Millisecond
	maxBackoffDelay = 5 * time.Second
)

// BatchExtractor reads up to batchSize raw OD row messages from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error)
}

// Transformer turns one raw message into an OD record.
type Transformer interface {
	Transform(ctx context.Context, raw domain.RawEvent) (domain.ODRecord, error)
}

// BatchLoader installs OD records into the dataset.
type BatchLoader interface {
	LoadBatch(ctx context.Context, records []domain.ODRecord) error
}

// Pipeline feeds OD rows from the source topic into the dataset, one batch
// at a time. A message's offset is committed once its row is either loaded
// or rejected as malformed.
type Pipeline struct {
	extractor   BatchExtractor
	transformer Transformer
	loader      BatchLoader
	logger      *slog.Logger
	metrics     *observability.Metrics
	batchSize   int
	retry       *backoff.ExponentialBackOff
}

// New creates a Pipeline over the given stages.
func New(e BatchExtractor, t Transformer, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Pipeline {
	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = initialBackoff
	retry.MaxInterval = maxBackoffDelay
	retry.Multiplier = 2
	retry.RandomizationFactor = 0
	retry.MaxElapsedTime = 0
	retry.Reset()

	return &Pipeline{
		extractor:   e,
		transformer: t,
		loader:      l,
		logger:      logger,
		metrics:     metrics,
		batchSize:   batchSize,
		retry:       retry,
	}
}

// Run consumes batches until the context is cancelled. Extract and load
// failures are retried with exponential backoff; Run itself only returns nil.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.batchSize)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	p.retry.Reset()
	for ctx.Err() == nil {
		err := p.cycle(ctx)
		if err == nil {
			p.retry.Reset()
			continue
		}
		if ctx.Err() != nil {
			break
		}
		p.logger.Error("ingest cycle failed", "error", err)
		if !p.wait(ctx, p.retry.NextBackOff()) {
			break
		}
	}

	p.logger.Info("pipeline stopping", "reason", context.Cause(ctx))
	return nil
}

// cycle runs one extract, transform, load and commit round.
func (p *Pipeline) cycle(ctx context.Context) error {
	start := time.Now()

	batch, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		return fmt.Errorf("extract batch: %w", err)
	}
	if len(batch) == 0 {
		return nil
	}
	p.metrics.MessagesConsumed.Add(float64(len(batch)))
	p.metrics.BatchSize.Observe(float64(len(batch)))

	records, accepted := p.transformBatch(ctx, batch)
	if len(records) == 0 {
		return nil
	}

	if err := p.loader.LoadBatch(ctx, records); err != nil {
		return fmt.Errorf("load %d od rows: %w", len(records), err)
	}
	for _, raw := range accepted {
		p.commit(ctx, raw)
	}

	p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
	p.logger.Debug("od records loaded", "records", len(records), "rejected", len(batch)-len(records))
	return nil
}

// transformBatch returns the parsed records and the messages they came from.
// Rejected messages are committed immediately so a malformed row is never
// redelivered.
func (p *Pipeline) transformBatch(ctx context.Context, batch []domain.RawEvent) ([]domain.ODRecord, []domain.RawEvent) {
	records := make([]domain.ODRecord, 0, len(batch))
	accepted := make([]domain.RawEvent, 0, len(batch))

	for _, raw := range batch {
		rec, err := p.transformer.Transform(ctx, raw)
		if err != nil {
			p.metrics.TransformErrors.Inc()
			p.logger.Warn("od row rejected, skipping message",
				"error", err,
				"key", string(raw.Key),
				"topic", raw.Topic,
				"partition", raw.Partition,
				"offset", raw.Offset,
			)
			p.commit(ctx, raw)
			continue
		}
		records = append(records, rec)
		accepted = append(accepted, raw)
	}
	return records, accepted
}

func (p *Pipeline) commit(ctx context.Context, raw domain.RawEvent) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}

// wait sleeps for d and reports false if the context ended first.
func (p *Pipeline) wait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
