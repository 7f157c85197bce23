// Package pipeline implements the batch stages that build the PC4
// green-space dataset: acquisition, base join, metrics, CBS join and colour.
package pipeline

import (
	"context"
	"slices"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/greenspace/internal/dataset"
)

// Stage is one artifact-to-artifact transformation. Apply enriches the
// dataset in place; it may add columns and fill fields but never removes
// rows or columns.
type Stage struct {
	Name     string
	Requires []string
	Apply    func(ctx context.Context, d *dataset.Dataset) error
}

// Run applies the stage to an in-memory dataset and checks that the
// result is additive: same rows, and a schema that is a superset of the input.
func (s Stage) Run(ctx context.Context, d *dataset.Dataset) error {
	if err := d.Require(s.Name+" input", s.Requires...); err != nil {
		return err
	}

	before := slices.Clone(d.Columns)
	rows := d.Len()

	if err := s.Apply(ctx, d); err != nil {
		return err
	}

	if d.Len() != rows {
		return eris.Errorf("pipeline: %s changed row count from %d to %d", s.Name, rows, d.Len())
	}
	for _, c := range before {
		if !d.HasColumn(c) {
			return eris.Errorf("pipeline: %s dropped column %q", s.Name, c)
		}
	}
	return nil
}

// Transform reads the artifact at in, runs the stage and writes the result
// to out. The output file is only created when the whole stage succeeded.
func Transform(ctx context.Context, in, out string, s Stage) (*dataset.Dataset, error) {
	log := zap.L().With(zap.String("stage", s.Name), zap.String("in", in), zap.String("out", out))
	log.Info("pipeline: stage starting")
	start := time.Now()

	d, err := dataset.ReadFile(in)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: %s: read input", s.Name)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := s.Run(ctx, d); err != nil {
		log.Error("pipeline: stage failed",
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			zap.Error(err),
		)
		return nil, err
	}

	if err := dataset.WriteFile(out, d); err != nil {
		return nil, eris.Wrapf(err, "pipeline: %s: write output", s.Name)
	}

	log.Info("pipeline: stage complete",
		zap.Int("rows", d.Len()),
		zap.Int("columns", len(d.Columns)),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return d, nil
}
