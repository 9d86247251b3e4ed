package domain

import (
	"github.com/dustin/go-humanize"
	"github.com/samber/lo"
)

// Breakdown labels, in table order.
const (
	LabelAir     = "Air"
	LabelRail    = "Rail"
	LabelVehicle = "Vehicle"
	LabelATF     = "Active Transportation/Ferry"

	LabelWork    = "Work"
	LabelNonWork = "Non-Work"
)

type component struct {
	label string
	value func(ODRecord) float64
}

var modeComponents = []component{
	{LabelAir, func(r ODRecord) float64 { return r.ModeAir }},
	{LabelRail, func(r ODRecord) float64 { return r.ModeRail }},
	{LabelVehicle, func(r ODRecord) float64 { return r.ModeVehicle }},
	{LabelATF, func(r ODRecord) float64 { return r.ModeATF }},
}

var purposeComponents = []component{
	{LabelWork, func(r ODRecord) float64 { return r.PurposeWork }},
	{LabelNonWork, func(r ODRecord) float64 { return r.PurposeNonWork }},
}

// AggregateByMode sums each travel mode column over records and reports each
// sum's share of the four-mode total. Rows come in the fixed order Air, Rail,
// Vehicle, Active Transportation/Ferry.
func AggregateByMode(records []ODRecord) []BreakdownRow {
	return aggregate(records, modeComponents)
}

// AggregateByPurpose is AggregateByMode over the Work and Non-Work columns.
func AggregateByPurpose(records []ODRecord) []BreakdownRow {
	return aggregate(records, purposeComponents)
}

// aggregate reports 0% for every row when the component total is zero.
func aggregate(records []ODRecord, components []component) []BreakdownRow {
	sums := make([]float64, len(components))
	for i, c := range components {
		sums[i] = lo.SumBy(records, c.value)
	}
	total := lo.Sum(sums)

	rows := make([]BreakdownRow, len(components))
	for i, c := range components {
		rows[i] = BreakdownRow{
			Label:          c.label,
			Total:          sums[i],
			TotalFormatted: humanize.Commaf(sums[i]),
		}
		if total > 0 {
			rows[i].Percentage = round2(sums[i] / total * 100)
		}
	}
	return rows
}
