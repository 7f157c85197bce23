package pipeline

import (
	"context"
	"math"

	"github.com/sells-group/greenspace/internal/dataset"
)

// TotalGreenery is the plain sum of the three percentages. Values above 100
// are kept.
func TotalGreenery(trees, bushes, grass float64) float64 {
	return trees + bushes + grass
}

// BalanceScore is the population standard deviation (divide by 3) of the
// three percentages. 0 means perfectly balanced.
func BalanceScore(trees, bushes, grass float64) float64 {
	if trees == bushes && bushes == grass {
		return 0
	}
	mean := (trees + bushes + grass) / 3
	dt, db, dg := trees-mean, bushes-mean, grass-mean
	return math.Sqrt((dt*dt + db*db + dg*dg) / 3)
}

// MetricsStage derives total_greenery and balance_score for every area.
func MetricsStage() Stage {
	return Stage{
		Name:     "metrics",
		Requires: []string{dataset.ColTrees, dataset.ColBushes, dataset.ColGrass},
		Apply: func(_ context.Context, d *dataset.Dataset) error {
			for _, a := range d.Areas {
				total := TotalGreenery(a.TreesPct, a.BushesPct, a.GrassPct)
				balance := BalanceScore(a.TreesPct, a.BushesPct, a.GrassPct)
				a.TotalGreenery = &total
				a.BalanceScore = &balance
			}
			d.AddColumns(dataset.ColTotalGreenery, dataset.ColBalanceScore)
			return nil
		},
	}
}
