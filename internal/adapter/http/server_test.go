package http_test

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	httpadapter "github.com/couchcryptid/od-flow-service/internal/adapter/http"
	"github.com/couchcryptid/od-flow-service/internal/dataset"
	"github.com/couchcryptid/od-flow-service/internal/domain"
	"github.com/couchcryptid/od-flow-service/internal/observability"
	"github.com/goccy/go-json"
	"github.com/paulmach/orb/geojson"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	miami        = "Miami-Fort Lauderdale-West Palm Beach, FL"
	orlando      = "Orlando-Kissimmee-Sanford, FL"
	tampa        = "Tampa-St. Petersburg-Clearwater, FL"
	jacksonville = "Jacksonville, FL"
)

var (
	miamiXY   = domain.Coord{X: -80.1918, Y: 25.7617}
	orlandoXY = domain.Coord{X: -81.3792, Y: 28.5383}
	tampaXY   = domain.Coord{X: -82.4572, Y: 27.9506}
)

type mockPublisher struct {
	err       error
	published []domain.Selection
}

func (m *mockPublisher) PublishSelection(_ context.Context, sel domain.Selection) error {
	if m.err != nil {
		return m.err
	}
	m.published = append(m.published, sel)
	return nil
}

func testRecords() []domain.ODRecord {
	return []domain.ODRecord{
		{OriginZone: miami, DestinationZone: orlando, AnnualTotalTrips: 300, ModeAir: 60, ModeVehicle: 240, PurposeWork: 100, PurposeNonWork: 200, Origin: miamiXY, Destination: orlandoXY},
		{OriginZone: miami, DestinationZone: tampa, AnnualTotalTrips: 100, ModeVehicle: 100, PurposeNonWork: 100, Origin: miamiXY, Destination: tampaXY},
		{OriginZone: miami, DestinationZone: miami, AnnualTotalTrips: 5000, ModeVehicle: 5000, PurposeWork: 5000, Origin: miamiXY, Destination: miamiXY},
		{OriginZone: orlando, DestinationZone: tampa, AnnualTotalTrips: 250, ModeVehicle: 250, PurposeWork: 250, Origin: orlandoXY, Destination: tampaXY},
		{OriginZone: jacksonville, DestinationZone: orlando, AnnualTotalTrips: 120, ModeVehicle: 120, PurposeNonWork: 120},
	}
}

type testEnv struct {
	srv       *httpadapter.Server
	store     *dataset.Store
	metrics   *observability.Metrics
	publisher *mockPublisher
}

func newTestEnv(t *testing.T, loaded bool, publisher *mockPublisher) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetricsForTesting()
	store := dataset.NewStore(metrics, logger)
	if loaded {
		store.Replace(testRecords(), dataset.SourceCSV)
	}
	opts := httpadapter.Options{DefaultOrigin: miami, Metrics: metrics}
	if publisher != nil {
		opts.Publisher = publisher
	}
	return &testEnv{
		srv:       httpadapter.NewServer(":0", store, opts, logger),
		store:     store,
		metrics:   metrics,
		publisher: publisher,
	}
}

func (e *testEnv) do(method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func decodeSelection(t *testing.T, rec *httptest.ResponseRecorder) domain.Selection {
	t.Helper()
	var sel domain.Selection
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sel))
	return sel
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealthzReturns200(t *testing.T) {
	env := newTestEnv(t, false, nil)
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/healthz").Code)
}

func TestReadyzReturns200WhenLoaded(t *testing.T) {
	env := newTestEnv(t, true, nil)
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/readyz").Code)
}

func TestReadyzReturns503BeforeLoad(t *testing.T) {
	env := newTestEnv(t, false, nil)
	assert.Equal(t, http.StatusServiceUnavailable, env.do(http.MethodGet, "/readyz").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, false, nil)
	rec := env.do(http.MethodGet, "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestZones(t *testing.T) {
	env := newTestEnv(t, true, nil)
	rec := env.do(http.MethodGet, "/api/v1/zones")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Origins       []string `json:"origins"`
		Destinations  []string `json:"destinations"`
		DefaultOrigin string   `json:"default_origin"`
		AllZonesLabel string   `json:"all_zones_label"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{miami, orlando, jacksonville}, body.Origins)
	assert.Equal(t, []string{orlando, tampa}, body.Destinations, "miami only receives same-zone trips")
	assert.Equal(t, miami, body.DefaultOrigin)
	assert.Equal(t, domain.AllZonesLabel, body.AllZonesLabel)
	assert.True(t, body.ExcludeSameZone)
}

func TestZones_IncludingSameZone(t *testing.T) {
	env := newTestEnv(t, true, nil)
	rec := env.do(http.MethodGet, "/api/v1/zones?exclude_same_zone=false")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Destinations    []string `json:"destinations"`
		ExcludeSameZone bool     `json:"exclude_same_zone"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{orlando, tampa, miami}, body.Destinations)
	assert.False(t, body.ExcludeSameZone)
}

func TestZones_InvalidToggle(t *testing.T) {
	env := newTestEnv(t, true, nil)
	rec := env.do(http.MethodGet, "/api/v1/zones?exclude_same_zone=maybe")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "exclude_same_zone", decodeError(t, rec)["field"])
}

func TestZones_NotLoaded(t *testing.T) {
	env := newTestEnv(t, false, nil)
	rec := env.do(http.MethodGet, "/api/v1/zones")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "DATASET_NOT_LOADED", decodeError(t, rec)["code"])
}

func TestFlows_Defaults(t *testing.T) {
	env := newTestEnv(t, true, nil)
	rec := env.do(http.MethodGet, "/api/v1/flows")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	sel := decodeSelection(t, rec)
	assert.True(t, sel.Params.ExcludeSameZone)
	assert.Equal(t, miami, sel.Params.Origin)
	require.Equal(t, 2, sel.RowCount)
	assert.Equal(t, orlando, sel.Flows[0].DestinationZone)
	assert.InDelta(t, 75.0, sel.Flows[0].PercentageOfTotal, 1e-9)
	assert.InDelta(t, 25.0, sel.Flows[1].PercentageOfTotal, 1e-9)
	assert.InDelta(t, domain.MaxWidthCrossZone, sel.Flows[0].NormalizedWidth, 1e-9)
	assert.InDelta(t, domain.MinWidth, sel.Flows[1].NormalizedWidth, 1e-9)
	assert.InDelta(t, 400.0, sel.TotalTrips, 1e-9)
	require.Len(t, sel.ModeBreakdown, 4)
	require.Len(t, sel.PurposeBreakdown, 2)

	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.Selections.WithLabelValues("flows")))
}

func TestFlows_AllZonesIncludingSameZone(t *testing.T) {
	env := newTestEnv(t, true, nil)
	rec := env.do(http.MethodGet, "/api/v1/flows?origin=all&exclude_same_zone=false&top_n=2")
	require.Equal(t, http.StatusOK, rec.Code)

	sel := decodeSelection(t, rec)
	assert.Equal(t, 5, sel.MatchedCount)
	require.Equal(t, 2, sel.RowCount)
	assert.True(t, sel.Flows[0].SameZone())
	assert.InDelta(t, domain.MaxWidthAllZones, sel.MaxWidth, 1e-9)
	assert.InDelta(t, 5300.0, sel.TotalTrips, 1e-9)
}

func TestFlows_EmptyOriginMeansAllZones(t *testing.T) {
	env := newTestEnv(t, true, nil)
	rec := env.do(http.MethodGet, "/api/v1/flows?origin=&destination="+strings.ReplaceAll(orlando, " ", "+"))
	require.Equal(t, http.StatusOK, rec.Code)

	sel := decodeSelection(t, rec)
	require.Equal(t, 2, sel.RowCount)
	assert.Equal(t, miami, sel.Flows[0].OriginZone)
	assert.Equal(t, jacksonville, sel.Flows[1].OriginZone)
}

func TestFlows_UnknownZoneIsEmptySelection(t *testing.T) {
	env := newTestEnv(t, true, nil)
	rec := env.do(http.MethodGet, "/api/v1/flows?origin=Atlantis")
	require.Equal(t, http.StatusOK, rec.Code)

	sel := decodeSelection(t, rec)
	assert.Equal(t, 0, sel.RowCount)
	assert.NotNil(t, sel.Flows)
	assert.Contains(t, rec.Body.String(), `"flows":[]`)
}

func TestFlows_InvalidParams(t *testing.T) {
	env := newTestEnv(t, true, nil)

	tests := []struct {
		query string
		field string
	}{
		{"top_n=abc", "top_n"},
		{"top_n=-1", "top_n"},
		{"exclude_same_zone=maybe", "exclude_same_zone"},
		{"origin=" + strings.Repeat("x", 201), "origin"},
	}
	for _, tc := range tests {
		t.Run(tc.query[:min(len(tc.query), 30)], func(t *testing.T) {
			rec := env.do(http.MethodGet, "/api/v1/flows?"+tc.query)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, "INVALID_PARAMETER", body["code"])
			assert.Equal(t, tc.field, body["field"])
			assert.NotEmpty(t, body["message"])
		})
	}
}

func TestFlows_LargeTopNKeepsAllMatches(t *testing.T) {
	env := newTestEnv(t, true, nil)
	rec := env.do(http.MethodGet, "/api/v1/flows?origin=all&top_n=1000001")
	require.Equal(t, http.StatusOK, rec.Code)

	sel := decodeSelection(t, rec)
	assert.Equal(t, 4, sel.MatchedCount)
	assert.Equal(t, 4, sel.RowCount)
	assert.Equal(t, 1000001, sel.Params.TopN)
}

func TestFlows_NotLoaded(t *testing.T) {
	env := newTestEnv(t, false, nil)
	rec := env.do(http.MethodGet, "/api/v1/flows")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "DATASET_NOT_LOADED", decodeError(t, rec)["code"])
}

func TestExport(t *testing.T) {
	env := newTestEnv(t, true, nil)
	rec := env.do(http.MethodGet, "/api/v1/flows/export")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="selected_od_data_export.csv"`, rec.Header().Get("Content-Disposition"))

	rows, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "origin_zone_name", rows[0][0])
	assert.Equal(t, "percentage_of_total", rows[0][len(rows[0])-1])
	assert.Equal(t, []string{miami, orlando}, rows[1][:2])
	assert.Equal(t, "75", rows[1][len(rows[1])-1])
}

func TestGeoJSON(t *testing.T) {
	env := newTestEnv(t, true, nil)
	rec := env.do(http.MethodGet, "/api/v1/flows/geojson?origin=all")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/geo+json", rec.Header().Get("Content-Type"))

	fc, err := geojson.UnmarshalFeatureCollection(rec.Body.Bytes())
	require.NoError(t, err)
	// Jacksonville has no coordinates and the same-zone row is excluded.
	require.Len(t, fc.Features, 3)

	first := fc.Features[0]
	assert.Equal(t, "LineString", first.Geometry.GeoJSONType())
	assert.Equal(t, miami, first.Properties["origin"])
	assert.Equal(t, orlando, first.Properties["destination"])
	assert.InDelta(t, 300.0, first.Properties["trips"], 1e-9)
	assert.InDelta(t, domain.MaxWidthCrossZone, first.Properties["width"], 1e-9)
	assert.Greater(t, first.Properties["distance_km"], 250.0)
}

func TestPublish_Disabled(t *testing.T) {
	env := newTestEnv(t, true, nil)
	rec := env.do(http.MethodPost, "/api/v1/flows/publish")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "PUBLISHER_DISABLED", decodeError(t, rec)["code"])
}

func TestPublish_Success(t *testing.T) {
	pub := &mockPublisher{}
	env := newTestEnv(t, true, pub)
	rec := env.do(http.MethodPost, "/api/v1/flows/publish?top_n=1")
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Len(t, pub.published, 1)
	assert.Equal(t, 1, pub.published[0].RowCount)
	assert.Equal(t, miami, pub.published[0].Params.Origin)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "published", body["status"])
	assert.EqualValues(t, 1, body["rows"])
}

func TestPublish_Failure(t *testing.T) {
	pub := &mockPublisher{err: errors.New("broker unavailable")}
	env := newTestEnv(t, true, pub)
	rec := env.do(http.MethodPost, "/api/v1/flows/publish")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "PUBLISH_FAILED", decodeError(t, rec)["code"])
}

func TestPublish_WrongMethod(t *testing.T) {
	env := newTestEnv(t, true, &mockPublisher{})
	rec := env.do(http.MethodGet, "/api/v1/flows/publish")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestSelectionReflectsStoreUpdates(t *testing.T) {
	env := newTestEnv(t, true, nil)
	require.NoError(t, env.store.LoadBatch(context.Background(), []domain.ODRecord{
		{OriginZone: miami, DestinationZone: jacksonville, AnnualTotalTrips: 1000, ModeVehicle: 1000, PurposeWork: 1000},
	}))

	sel := decodeSelection(t, env.do(http.MethodGet, "/api/v1/flows"))
	require.Equal(t, 3, sel.RowCount)
	assert.Equal(t, jacksonville, sel.Flows[0].DestinationZone)
}

func newServerWithOptions(t *testing.T, opts httpadapter.Options) *httpadapter.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts.Metrics = observability.NewMetricsForTesting()
	store := dataset.NewStore(opts.Metrics, logger)
	store.Replace(testRecords(), dataset.SourceCSV)
	return httpadapter.NewServer(":0", store, opts, logger)
}

func TestCORS_Preflight(t *testing.T) {
	srv := newServerWithOptions(t, httpadapter.Options{CORSAllowedOrigins: []string{"https://maps.example.org"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/flows", nil)
	req.Header.Set("Origin", "https://maps.example.org")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, "https://maps.example.org", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/flows", nil)
	req.Header.Set("Origin", "https://elsewhere.example.com")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	srv := newServerWithOptions(t, httpadapter.Options{RateLimitPerMinute: 2})

	codes := make([]int, 0, 3)
	for range 3 {
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/zones", nil))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "health endpoints are not rate limited")
}
