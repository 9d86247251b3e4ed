// Command odflows serves origin-destination flow selections over the NHTS
// trip table: filtered, ranked, width-normalized flows with mode and purpose
// breakdowns, as JSON, CSV, or GeoJSON.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/od-flow-service/internal/adapter/csvfile"
	httpadapter "github.com/couchcryptid/od-flow-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/od-flow-service/internal/adapter/kafka"
	"github.com/couchcryptid/od-flow-service/internal/adapter/mapbox"
	"github.com/couchcryptid/od-flow-service/internal/config"
	"github.com/couchcryptid/od-flow-service/internal/dataset"
	"github.com/couchcryptid/od-flow-service/internal/domain"
	"github.com/couchcryptid/od-flow-service/internal/observability"
	"github.com/couchcryptid/od-flow-service/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	// Initialize geocoder (feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN).
	var geocoder domain.Geocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
		geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	store := dataset.NewStore(metrics, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.DataFile != "" {
		records, err := csvfile.Load(cfg.DataFile)
		if err != nil {
			logger.Error("failed to load dataset", "path", cfg.DataFile, "error", err)
			os.Exit(1)
		}
		if geocoder != nil {
			records = geocodeMissing(ctx, records, geocoder, logger)
		}
		store.Replace(records, dataset.SourceCSV)
		logger.Info("dataset loaded", "path", cfg.DataFile, "records", len(records))
	}

	opts := httpadapter.Options{
		DefaultOrigin:      cfg.DefaultOriginZone,
		Metrics:            metrics,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	}

	var (
		reader *kafkaadapter.Reader
		writer *kafkaadapter.Writer
		p      *pipeline.Pipeline
	)
	if cfg.KafkaEnabled {
		reader = kafkaadapter.NewReader(cfg, logger)
		writer = kafkaadapter.NewWriter(cfg, metrics, logger)
		transformer := pipeline.NewTransformer(geocoder, logger)
		p = pipeline.New(reader, transformer, store, logger, metrics, cfg.BatchSize)
		opts.Publisher = writer
		logger.Info("kafka enabled",
			"brokers", cfg.KafkaBrokers,
			"source_topic", cfg.KafkaSourceTopic,
			"sink_topic", cfg.KafkaSinkTopic,
		)
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, store, opts, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	// Start ingest pipeline.
	if p != nil {
		go func() {
			if err := p.Run(ctx); err != nil {
				logger.Error("pipeline error", "error", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if reader != nil {
		if err := reader.Close(); err != nil {
			logger.Error("kafka reader close error", "error", err)
		}
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

// geocodeMissing fills arc endpoints for CSV rows that shipped without
// coordinates. Rows that already have both endpoints are left alone.
func geocodeMissing(ctx context.Context, records []domain.ODRecord, geocoder domain.Geocoder, logger *slog.Logger) []domain.ODRecord {
	resolved := 0
	for i := range records {
		records[i] = domain.EnrichWithGeocoding(ctx, records[i], geocoder, logger)
		if records[i].CoordSource == domain.CoordGeocoded {
			resolved++
		}
	}
	if resolved > 0 {
		logger.Info("geocoded zone endpoints", "records", resolved)
	}
	return records
}
