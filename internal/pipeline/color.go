package pipeline

import (
	"context"
	"fmt"
	"math"

	"github.com/sells-group/greenspace/internal/dataset"
)

// Color encodes the percentages as #RRGGBB: trees to red, bushes to green,
// grass to blue.
func Color(trees, bushes, grass float64) string {
	return fmt.Sprintf("#%02X%02X%02X", channel(trees), channel(bushes), channel(grass))
}

// channel maps a percentage to 0..255 as round(pct*2.55), half away from
// zero. Out-of-range values are clamped and NaN maps to 0.
func channel(pct float64) int {
	if math.IsNaN(pct) {
		return 0
	}
	v := math.Round(pct * 2.55)
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	}
	return int(v)
}

// ColorStage sets the trivariate colour of every area.
func ColorStage() Stage {
	return Stage{
		Name:     "color",
		Requires: []string{dataset.ColTrees, dataset.ColBushes, dataset.ColGrass},
		Apply: func(_ context.Context, d *dataset.Dataset) error {
			for _, a := range d.Areas {
				a.Color = Color(a.TreesPct, a.BushesPct, a.GrassPct)
			}
			d.AddColumns(dataset.ColColor)
			return nil
		},
	}
}
