// Package geometry loads postcode polygons from GeoJSON files and ESRI shapefiles.
package geometry

import (
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/greenspace/internal/failure"
)

// Feature is one polygon record of a geometry source.
type Feature struct {
	Key      string
	Geometry geom.T
}

// Source holds the polygons of a geometry file keyed by its postcode column.
type Source struct {
	Path      string
	KeyColumn string
	Features  []Feature
	Skipped   int
}

// Load reads the geometry file at path. GeoJSON (.geojson, .json) and
// shapefiles (.shp) are supported. The postcode column is detected with
// DetectKeyColumn; a missing column is a failure.SchemaError.
func Load(path string, candidates []string) (*Source, error) {
	var (
		src *Source
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		src, err = loadGeoJSON(path, candidates)
	case ".shp":
		src, err = loadShapefile(path, candidates)
	default:
		return nil, eris.Errorf("geometry: unsupported source format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	src.Path = path
	if src.Skipped > 0 {
		zap.L().Debug("geometry: skipped records without key or geometry",
			zap.String("path", path),
			zap.Int("skipped", src.Skipped),
		)
	}
	return src, nil
}

// DetectKeyColumn returns the first candidate that names one of columns,
// compared case-insensitively. Candidates are tried in order, so the
// candidate list decides priority, not the column order.
func DetectKeyColumn(columns, candidates []string) (string, bool) {
	for _, cand := range candidates {
		for _, col := range columns {
			if strings.EqualFold(col, cand) {
				return col, true
			}
		}
	}
	return "", false
}

func missingKey(columns []string) error {
	return failure.NewSchemaError("geometry source", "postcode", columns)
}
