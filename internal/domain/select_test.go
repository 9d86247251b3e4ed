package domain

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecords() []ODRecord {
	return []ODRecord{
		{
			OriginZone: "Miami", DestinationZone: "Orlando", AnnualTotalTrips: 300,
			ModeAir: 30, ModeVehicle: 270, PurposeWork: 100, PurposeNonWork: 200,
			Origin: Coord{X: -80.19, Y: 25.76}, Destination: Coord{X: -81.38, Y: 28.54},
		},
		{
			OriginZone: "Miami", DestinationZone: "Miami", AnnualTotalTrips: 5000,
			ModeVehicle: 4900, ModeATF: 100, PurposeWork: 2000, PurposeNonWork: 3000,
		},
		{
			OriginZone: "Miami", DestinationZone: "Tampa", AnnualTotalTrips: 100,
			ModeAir: 50, ModeVehicle: 50, PurposeWork: 25, PurposeNonWork: 75,
		},
		{
			OriginZone: "Tampa", DestinationZone: "Orlando", AnnualTotalTrips: 200,
			ModeRail: 20, ModeVehicle: 180, PurposeWork: 60, PurposeNonWork: 140,
		},
	}
}

func freezeClock(t *testing.T) time.Time {
	t.Helper()
	now := time.Date(2024, time.May, 1, 12, 0, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(now))
	t.Cleanup(func() { SetClock(nil) })
	return now
}

func TestSelect_CrossZoneFromOrigin(t *testing.T) {
	now := freezeClock(t)

	sel := Select(sampleRecords(), SelectionParams{ExcludeSameZone: true, Origin: "Miami"})

	require.Len(t, sel.Flows, 2)
	assert.Equal(t, "Miami|Orlando", sel.Flows[0].PairKey())
	assert.Equal(t, "Miami|Tampa", sel.Flows[1].PairKey())
	assert.Equal(t, 2, sel.RowCount)
	assert.Equal(t, 2, sel.MatchedCount)
	assert.Equal(t, 400.0, sel.TotalTrips)
	assert.Equal(t, 75.0, sel.Flows[0].PercentageOfTotal)
	assert.Equal(t, 25.0, sel.Flows[1].PercentageOfTotal)
	assert.Equal(t, MaxWidthCrossZone, sel.Flows[0].NormalizedWidth)
	assert.Equal(t, MinWidth, sel.Flows[1].NormalizedWidth)
	assert.Equal(t, MinWidth, sel.MinWidth)
	assert.Equal(t, MaxWidthCrossZone, sel.MaxWidth)
	assert.Equal(t, now, sel.ComputedAt)

	// Miami to Orlando is roughly 330 km as the crow flies.
	assert.InDelta(t, 330, sel.Flows[0].DistanceKm, 20)
	assert.Zero(t, sel.Flows[1].DistanceKm)

	assert.Equal(t, 80.0, sel.ModeBreakdown[0].Total)
	assert.Equal(t, 20.0, sel.ModeBreakdown[0].Percentage)
	assert.Equal(t, 125.0, sel.PurposeBreakdown[0].Total)
}

func TestSelect_IncludeSameZoneUsesWideRange(t *testing.T) {
	freezeClock(t)

	sel := Select(sampleRecords(), SelectionParams{ExcludeSameZone: false})

	require.Len(t, sel.Flows, 4)
	assert.Equal(t, "Miami|Miami", sel.Flows[0].PairKey())
	assert.Equal(t, MaxWidthAllZones, sel.MaxWidth)
	assert.Equal(t, MaxWidthAllZones, sel.Flows[0].NormalizedWidth)
	assert.Equal(t, MinWidth, sel.Flows[3].NormalizedWidth)
}

func TestSelect_TopNAggregatesTruncatedSet(t *testing.T) {
	freezeClock(t)

	sel := Select(sampleRecords(), SelectionParams{ExcludeSameZone: true, TopN: 1})

	require.Len(t, sel.Flows, 1)
	assert.Equal(t, 3, sel.MatchedCount)
	assert.Equal(t, 300.0, sel.TotalTrips)
	assert.Equal(t, 100.0, sel.Flows[0].PercentageOfTotal)
	assert.Equal(t, (MinWidth+MaxWidthCrossZone)/2, sel.Flows[0].NormalizedWidth)
	assert.Equal(t, 30.0, sel.ModeBreakdown[0].Total)
	assert.Equal(t, 10.0, sel.ModeBreakdown[0].Percentage)
}

func TestSelect_NegativeTopNKeepsOneRow(t *testing.T) {
	freezeClock(t)

	all := Select(sampleRecords(), SelectionParams{ExcludeSameZone: true})
	require.NotEmpty(t, all.Flows)

	sel := Select(sampleRecords(), SelectionParams{ExcludeSameZone: true, TopN: -3})
	require.Len(t, sel.Flows, 1)
	assert.Equal(t, 1, sel.RowCount)
	assert.Equal(t, all.MatchedCount, sel.MatchedCount)
	assert.Equal(t, all.Flows[0].PairKey(), sel.Flows[0].PairKey())
}

func TestSelect_EmptySelectionIsValid(t *testing.T) {
	freezeClock(t)

	sel := Select(sampleRecords(), SelectionParams{ExcludeSameZone: true, Origin: "Orlando"})

	assert.Empty(t, sel.Flows)
	assert.Zero(t, sel.RowCount)
	assert.Zero(t, sel.TotalTrips)
	require.Len(t, sel.ModeBreakdown, 4)
	require.Len(t, sel.PurposeBreakdown, 2)
	for _, row := range append(sel.ModeBreakdown, sel.PurposeBreakdown...) {
		assert.Zero(t, row.Percentage)
		assert.Equal(t, "0", row.TotalFormatted)
	}
}

func TestSelect_DoesNotMutateBase(t *testing.T) {
	freezeClock(t)
	base := sampleRecords()
	before := zonePairs(base)

	_ = Select(base, SelectionParams{TopN: 2})

	assert.Equal(t, before, zonePairs(base))
}

func TestIsAllZones(t *testing.T) {
	for _, z := range []string{"", "  ", "all", "ALL", "All", AllZonesLabel} {
		assert.True(t, IsAllZones(z), z)
	}
	for _, z := range []string{"Miami", "allapattah"} {
		assert.False(t, IsAllZones(z), z)
	}
}

func TestZones(t *testing.T) {
	origins, destinations := Zones(sampleRecords())
	assert.Equal(t, []string{"Miami", "Tampa"}, origins)
	assert.Equal(t, []string{"Orlando", "Miami", "Tampa"}, destinations)
}

func TestGreatCircleKm(t *testing.T) {
	assert.Zero(t, GreatCircleKm(Coord{}, Coord{X: -81, Y: 28}))
	assert.InDelta(t, 0, GreatCircleKm(Coord{X: -81, Y: 28}, Coord{X: -81, Y: 28}), 1e-9)
	// One degree of latitude is about 111 km.
	assert.InDelta(t, 111.2, GreatCircleKm(Coord{X: -81, Y: 28}, Coord{X: -81, Y: 29}), 0.5)
}
