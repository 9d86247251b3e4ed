// Package dataset holds the in-memory OD record set that every selection is
// computed from.
package dataset

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/od-flow-service/internal/domain"
	"github.com/couchcryptid/od-flow-service/internal/observability"
)

// Sources recorded on a snapshot.
const (
	SourceCSV   = "csv"
	SourceKafka = "kafka"
)

// ErrNotLoaded is returned by CheckReadiness until records are available.
var ErrNotLoaded = errors.New("dataset has no records loaded")

// Snapshot is an immutable view of the dataset. Callers must not modify Records.
type Snapshot struct {
	Records  []domain.ODRecord
	LoadedAt time.Time
	Source   string
}

// Len returns the number of records in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.Records)
}

// Store publishes dataset snapshots to concurrent readers. Readers never lock;
// writers build a new snapshot and swap it in.
type Store struct {
	current atomic.Pointer[Snapshot]
	writeMu sync.Mutex
	index   map[string]int // pair key -> position in current Records; guarded by writeMu

	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewStore creates an empty store.
func NewStore(metrics *observability.Metrics, logger *slog.Logger) *Store {
	s := &Store{
		index:   make(map[string]int),
		metrics: metrics,
		logger:  logger,
	}
	s.current.Store(&Snapshot{Records: []domain.ODRecord{}})
	return s
}

// Snapshot returns the current snapshot. It is never nil.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// Replace installs records as the whole dataset.
func (s *Store) Replace(records []domain.ODRecord, source string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	recs := slices.Clone(records)
	index := make(map[string]int, len(recs))
	for i, r := range recs {
		index[r.PairKey()] = i
	}
	s.index = index
	s.install(recs, source)
}

// LoadBatch upserts records by zone pair. New pairs are appended in arrival
// order and known pairs are replaced in place, so the relative order of
// existing rows never changes. It implements pipeline.BatchLoader.
func (s *Store) LoadBatch(_ context.Context, records []domain.ODRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	recs := slices.Clone(s.current.Load().Records)
	added := 0
	for _, r := range records {
		key := r.PairKey()
		if i, ok := s.index[key]; ok {
			recs[i] = r
			continue
		}
		s.index[key] = len(recs)
		recs = append(recs, r)
		added++
	}
	s.install(recs, SourceKafka)
	s.metrics.RecordsIngested.Add(float64(len(records)))
	s.logger.Debug("dataset batch applied", "received", len(records), "added", added, "total", len(recs))
	return nil
}

// install must be called with writeMu held.
func (s *Store) install(records []domain.ODRecord, source string) {
	s.current.Store(&Snapshot{
		Records:  records,
		LoadedAt: domain.Now().UTC(),
		Source:   source,
	})
	s.metrics.RecordsLoaded.Set(float64(len(records)))
	s.metrics.DatasetLoads.WithLabelValues(source).Inc()
}

// CheckReadiness returns ErrNotLoaded until at least one record is present.
func (s *Store) CheckReadiness(_ context.Context) error {
	if s.Snapshot().Len() == 0 {
		return ErrNotLoaded
	}
	return nil
}
