package pipeline

import (
	"context"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/greenspace/internal/dataset"
	"github.com/sells-group/greenspace/internal/failure"
	"github.com/sells-group/greenspace/internal/fetcher"
	"github.com/sells-group/greenspace/internal/geometry"
)

// CoverageOptions describes the layout of the coverage-percentage CSV.
type CoverageOptions struct {
	Delimiter    rune
	Decimal      string // decimal separator, "," for Dutch exports
	Encoding     string
	KeyColumn    string
	TreesColumn  string
	BushesColumn string
	GrassColumn  string
}

// Coverage holds the three green-space percentages of one postcode.
type Coverage struct {
	Trees  float64
	Bushes float64
	Grass  float64
}

// JoinStats counts rows on both sides of a join.
type JoinStats struct {
	Left    int
	Right   int
	Matched int
}

// ReadCoverage parses the coverage CSV into a map keyed by postcode.
// Rows with an empty key are skipped; duplicate keys keep the last row.
func ReadCoverage(r io.Reader, opts CoverageOptions) (map[string]Coverage, error) {
	header, rows, err := fetcher.ReadCSV(r, fetcher.CSVOptions{
		Delimiter: opts.Delimiter,
		Encoding:  opts.Encoding,
		TrimSpace: true,
	})
	if err != nil {
		return nil, err
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[h] = i
	}
	cols := [4]int{}
	for i, name := range []string{opts.KeyColumn, opts.TreesColumn, opts.BushesColumn, opts.GrassColumn} {
		pos, ok := idx[name]
		if !ok {
			return nil, failure.NewSchemaError("coverage table", name, header)
		}
		cols[i] = pos
	}

	out := make(map[string]Coverage, len(rows))
	for _, row := range rows {
		key, ok := dataset.NormalizeKey(cell(row, cols[0]))
		if !ok {
			continue
		}
		var pct [3]float64
		for i, name := range []string{opts.TreesColumn, opts.BushesColumn, opts.GrassColumn} {
			raw := cell(row, cols[i+1])
			v, ok := parseDecimal(raw, opts.Decimal)
			if !ok {
				return nil, failure.NewTypeConversionError(name, key, raw)
			}
			pct[i] = v
		}
		out[key] = Coverage{Trees: pct[0], Bushes: pct[1], Grass: pct[2]}
	}
	return out, nil
}

// ReadCoverageFile opens path and parses it with ReadCoverage.
func ReadCoverageFile(path string, opts CoverageOptions) (map[string]Coverage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "basejoin: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	return ReadCoverage(f, opts)
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

// parseDecimal parses a number written with the given decimal separator.
// NaN and infinities are rejected.
func parseDecimal(s, decimal string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if decimal != "" && decimal != "." {
		s = strings.Replace(s, decimal, ".", 1)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// BaseJoin inner-joins geometries with coverage rows on the postcode key.
// Keys found on one side only are dropped. Duplicate geometry keys keep the
// last geometry at the position of the first occurrence; output order
// follows the geometry source.
func BaseJoin(src *geometry.Source, coverage map[string]Coverage) (*dataset.Dataset, JoinStats) {
	order := make([]string, 0, len(src.Features))
	geoms := make(map[string]*geometry.Feature, len(src.Features))
	for i := range src.Features {
		f := &src.Features[i]
		if _, seen := geoms[f.Key]; !seen {
			order = append(order, f.Key)
		}
		geoms[f.Key] = f
	}

	d := dataset.New(dataset.BaseColumns...)
	for _, key := range order {
		cov, ok := coverage[key]
		if !ok {
			continue
		}
		d.Areas = append(d.Areas, &dataset.Area{
			PC4:       key,
			Geometry:  geoms[key].Geometry,
			TreesPct:  cov.Trees,
			BushesPct: cov.Bushes,
			GrassPct:  cov.Grass,
		})
	}

	return d, JoinStats{Left: len(order), Right: len(coverage), Matched: d.Len()}
}

// BaseJoinInput names the sources of the base join.
type BaseJoinInput struct {
	GeometryPath  string
	KeyCandidates []string
	CoveragePath  string
	Coverage      CoverageOptions
}

// RunBaseJoin loads both sources, joins them and writes the first artifact to out.
func RunBaseJoin(ctx context.Context, in BaseJoinInput, out string) (*dataset.Dataset, error) {
	log := zap.L().With(zap.String("stage", "basejoin"), zap.String("out", out))
	log.Info("pipeline: stage starting")
	start := time.Now()

	src, err := geometry.Load(in.GeometryPath, in.KeyCandidates)
	if err != nil {
		return nil, err
	}
	if src.Skipped > 0 {
		log.Warn("basejoin: skipped geometry features without key or geometry", zap.Int("skipped", src.Skipped))
	}

	coverage, err := ReadCoverageFile(in.CoveragePath, in.Coverage)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d, stats := BaseJoin(src, coverage)
	log.Info("basejoin: joined sources",
		zap.String("key_column", src.KeyColumn),
		zap.Int("geometries", stats.Left),
		zap.Int("coverage_rows", stats.Right),
		zap.Int("matched", stats.Matched),
		zap.Int("dropped_geometries", stats.Left-stats.Matched),
		zap.Int("dropped_coverage_rows", stats.Right-stats.Matched),
	)

	if err := dataset.WriteFile(out, d); err != nil {
		return nil, eris.Wrap(err, "pipeline: basejoin: write output")
	}
	log.Info("pipeline: stage complete",
		zap.Int("rows", d.Len()),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return d, nil
}
