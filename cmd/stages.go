package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/greenspace/internal/config"
	"github.com/sells-group/greenspace/internal/fetcher"
	"github.com/sells-group/greenspace/internal/pipeline"
)

var (
	stageIn  string
	stageOut string
)

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func acquireGeometry(ctx context.Context, c *config.Config, f fetcher.Fetcher) (*pipeline.AcquireResult, error) {
	return pipeline.Acquire(ctx, f, c.Geometry.URL, c.Geometry.CachePath)
}

func joinBase(ctx context.Context, c *config.Config, f fetcher.Fetcher, out string) error {
	res, err := acquireGeometry(ctx, c, f)
	if err != nil {
		return err
	}
	_, err = pipeline.RunBaseJoin(ctx, pipeline.BaseJoinInput{
		GeometryPath:  res.Path,
		KeyCandidates: c.Geometry.KeyCandidates,
		CoveragePath:  c.Greenery.CSVPath,
		Coverage:      coverageOptions(c),
	}, out)
	return err
}

func joinCBS(ctx context.Context, c *config.Config, in, out string) error {
	tbl, err := pipeline.LoadCBS(c.CBS.XLSXPath, c.CBS.SheetIndex, headerOptions(c))
	if err != nil {
		return err
	}
	_, err = pipeline.Transform(ctx, in, out, pipeline.CBSStage(tbl))
	return err
}

var acquireCmd = &cobra.Command{
	Use:   "acquire",
	Short: "Download the PC4 polygons unless already cached",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("pipeline"); err != nil {
			return err
		}
		res, err := acquireGeometry(cmd.Context(), cfg, newFetcher(cfg))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "geometry source: %s (cached=%t, %d bytes)\n", res.Path, res.Cached, res.Bytes)
		return nil
	},
}

var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "Join PC4 polygons with the green-space percentages",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("pipeline"); err != nil {
			return err
		}
		return joinBase(cmd.Context(), cfg, newFetcher(cfg), orDefault(stageOut, cfg.Stages.BasePath))
	},
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Derive total greenery and balance score",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := pipeline.Transform(cmd.Context(),
			orDefault(stageIn, cfg.Stages.BasePath),
			orDefault(stageOut, cfg.Stages.MetricsPath),
			pipeline.MetricsStage(),
		)
		return err
	},
}

var cbsCmd = &cobra.Command{
	Use:   "cbs",
	Short: "Join CBS socio-economic data",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("pipeline"); err != nil {
			return err
		}
		return joinCBS(cmd.Context(), cfg,
			orDefault(stageIn, cfg.Stages.MetricsPath),
			orDefault(stageOut, cfg.Stages.CBSPath),
		)
	},
}

var colorCmd = &cobra.Command{
	Use:   "color",
	Short: "Add the trivariate colour and write the final dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := pipeline.Transform(cmd.Context(),
			orDefault(stageIn, cfg.Stages.CBSPath),
			orDefault(stageOut, cfg.Stages.FinalPath),
			pipeline.ColorStage(),
		)
		return err
	},
}

func init() {
	for _, c := range []*cobra.Command{metricsCmd, cbsCmd, colorCmd} {
		c.Flags().StringVar(&stageIn, "in", "", "input artifact (default from config)")
	}
	for _, c := range []*cobra.Command{joinCmd, metricsCmd, cbsCmd, colorCmd} {
		c.Flags().StringVar(&stageOut, "out", "", "output artifact (default from config)")
	}
	rootCmd.AddCommand(acquireCmd, joinCmd, metricsCmd, cbsCmd, colorCmd)
}
