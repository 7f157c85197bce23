package server

import (
	"github.com/sells-group/greenspace/internal/dataset"
)

// Summary holds min, max and mean of a column. All three are nil when the
// column has no numeric values.
type Summary struct {
	Min  *float64 `json:"min"`
	Max  *float64 `json:"max"`
	Mean *float64 `json:"mean"`
}

// ColumnStats summarises one socio-economic column.
type ColumnStats struct {
	AvailableRecords int `json:"available_records"`
	Summary
}

// Statistics is the /api/statistics payload.
type Statistics struct {
	TotalPostcodes int                    `json:"total_postcodes"`
	GreeneryStats  map[string]Summary     `json:"greenery_stats"`
	TotalGreenery  Summary                `json:"total_greenery"`
	BalanceScore   Summary                `json:"balance_score"`
	CBSData        map[string]ColumnStats `json:"cbs_data"`
}

func summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	lo, hi, sum := values[0], values[0], 0.0
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
		sum += v
	}
	mean := sum / float64(len(values))
	return Summary{Min: &lo, Max: &hi, Mean: &mean}
}

// Compute derives the summary statistics of d. It fails when a metric
// column is missing from the schema. An empty dataset yields nil summaries.
func Compute(d *dataset.Dataset) (*Statistics, error) {
	if err := d.Require("statistics",
		dataset.ColTrees, dataset.ColBushes, dataset.ColGrass,
		dataset.ColTotalGreenery, dataset.ColBalanceScore,
	); err != nil {
		return nil, err
	}

	n := d.Len()
	trees := make([]float64, 0, n)
	bushes := make([]float64, 0, n)
	grass := make([]float64, 0, n)
	var total, balance []float64
	for _, a := range d.Areas {
		trees = append(trees, a.TreesPct)
		bushes = append(bushes, a.BushesPct)
		grass = append(grass, a.GrassPct)
		if a.TotalGreenery != nil {
			total = append(total, *a.TotalGreenery)
		}
		if a.BalanceScore != nil {
			balance = append(balance, *a.BalanceScore)
		}
	}

	stats := &Statistics{
		TotalPostcodes: n,
		GreeneryStats: map[string]Summary{
			"trees":  summarize(trees),
			"bushes": summarize(bushes),
			"grass":  summarize(grass),
		},
		TotalGreenery: summarize(total),
		BalanceScore:  summarize(balance),
		CBSData:       make(map[string]ColumnStats),
	}
	for _, c := range d.SocioColumns() {
		stats.CBSData[c] = socioStats(d, c)
	}
	return stats, nil
}

// socioStats counts the non-null values of a column. Numeric summaries are
// only given when every non-null value is a number.
func socioStats(d *dataset.Dataset, column string) ColumnStats {
	var (
		values  []float64
		count   int
		numeric = true
	)
	for _, a := range d.Areas {
		v := a.Socio[column]
		if v == nil {
			continue
		}
		count++
		f, ok := dataset.ToFloat(v)
		if !ok {
			numeric = false
			continue
		}
		values = append(values, f)
	}

	cs := ColumnStats{AvailableRecords: count}
	if numeric {
		cs.Summary = summarize(values)
	}
	return cs
}
