package domain

import (
	"cmp"
	"math"
	"slices"

	"github.com/samber/lo"
)

// Arc width bounds. The upper bound depends on whether same-zone trips are
// shown: same-zone volumes dwarf cross-zone ones, so the wide range keeps the
// cross-zone arcs visible next to them.
const (
	MinWidth          = 0.5
	MaxWidthCrossZone = 10.0
	MaxWidthAllZones  = 1000.0
)

// MaxWidthFor returns the upper arc width bound for the same-zone toggle state.
func MaxWidthFor(excludeSameZone bool) float64 {
	if excludeSameZone {
		return MaxWidthCrossZone
	}
	return MaxWidthAllZones
}

// Filter drops same-zone rows when excludeSameZone is set and keeps only rows
// matching origin and destination. A zone for which IsAllZones is true does
// not restrict. The input slice is never modified.
func Filter(records []ODRecord, excludeSameZone bool, origin, destination string) []ODRecord {
	anyOrigin := IsAllZones(origin)
	anyDestination := IsAllZones(destination)

	return lo.Filter(records, func(r ODRecord, _ int) bool {
		if excludeSameZone && r.SameZone() {
			return false
		}
		if !anyOrigin && r.OriginZone != origin {
			return false
		}
		if !anyDestination && r.DestinationZone != destination {
			return false
		}
		return true
	})
}

// SelectTopN returns the n rows with the largest AnnualTotalTrips in
// descending order. Ties keep their input order. n is clamped to
// [1, len(records)], so a non-empty input always yields at least one row.
func SelectTopN(records []ODRecord, n int) []ODRecord {
	if len(records) == 0 {
		return []ODRecord{}
	}

	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b ODRecord) int {
		return cmp.Compare(b.AnnualTotalTrips, a.AnnualTotalTrips)
	})

	n = lo.Clamp(n, 1, len(sorted))
	return sorted[:n]
}

// ComputeShare annotates each record with the selected total and its share
// of that total in percent, rounded to two decimals. A zero total yields a
// zero share for every row.
func ComputeShare(records []ODRecord) []Flow {
	total := TotalTrips(records)

	flows := make([]Flow, len(records))
	for i, r := range records {
		flows[i] = Flow{ODRecord: r, SelectedTripsTotal: total}
		if total > 0 {
			flows[i].PercentageOfTotal = round2(r.AnnualTotalTrips / total * 100)
		}
	}
	return flows
}

// NormalizeWidth maps AnnualTotalTrips linearly onto [minWidth, maxWidth]:
// the smallest volume gets minWidth and the largest gets maxWidth. When all
// volumes are equal, including the single-row case, every row gets the
// midpoint of the range.
func NormalizeWidth(flows []Flow, minWidth, maxWidth float64) []Flow {
	out := slices.Clone(flows)
	if len(out) == 0 {
		return out
	}

	minTrips, maxTrips := out[0].AnnualTotalTrips, out[0].AnnualTotalTrips
	for _, f := range out[1:] {
		minTrips = math.Min(minTrips, f.AnnualTotalTrips)
		maxTrips = math.Max(maxTrips, f.AnnualTotalTrips)
	}

	if maxTrips == minTrips {
		mid := (minWidth + maxWidth) / 2
		for i := range out {
			out[i].NormalizedWidth = mid
		}
		return out
	}

	span := maxWidth - minWidth
	for i := range out {
		v := out[i].AnnualTotalTrips
		switch v {
		case minTrips:
			out[i].NormalizedWidth = minWidth
		case maxTrips:
			out[i].NormalizedWidth = maxWidth
		default:
			w := minWidth + (v-minTrips)/(maxTrips-minTrips)*span
			out[i].NormalizedWidth = math.Min(math.Max(w, minWidth), maxWidth)
		}
	}
	return out
}

// TotalTrips sums AnnualTotalTrips over records.
func TotalTrips(records []ODRecord) float64 {
	return lo.SumBy(records, func(r ODRecord) float64 { return r.AnnualTotalTrips })
}

// round2 rounds half away from zero to two decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
