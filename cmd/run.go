package main

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/greenspace/internal/config"
	"github.com/sells-group/greenspace/internal/fetcher"
	"github.com/sells-group/greenspace/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every pipeline stage in order",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("pipeline"); err != nil {
			return err
		}
		return runPipeline(cmd.Context(), cfg, newFetcher(cfg))
	},
}

// runPipeline runs the stages one after another; each stage reads the
// artifact the previous one wrote.
func runPipeline(ctx context.Context, c *config.Config, f fetcher.Fetcher) error {
	runID := uuid.NewString()
	restore := zap.ReplaceGlobals(zap.L().With(zap.String("run_id", runID)))
	defer restore()

	start := time.Now()
	zap.L().Info("run: starting pipeline")

	if err := joinBase(ctx, c, f, c.Stages.BasePath); err != nil {
		return err
	}
	if _, err := pipeline.Transform(ctx, c.Stages.BasePath, c.Stages.MetricsPath, pipeline.MetricsStage()); err != nil {
		return err
	}
	if err := joinCBS(ctx, c, c.Stages.MetricsPath, c.Stages.CBSPath); err != nil {
		return err
	}
	d, err := pipeline.Transform(ctx, c.Stages.CBSPath, c.Stages.FinalPath, pipeline.ColorStage())
	if err != nil {
		return err
	}

	zap.L().Info("run: pipeline complete",
		zap.String("output", c.Stages.FinalPath),
		zap.Int("rows", d.Len()),
		zap.Strings("columns", d.Columns),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return nil
}

func init() {
	rootCmd.AddCommand(runCmd)
}
