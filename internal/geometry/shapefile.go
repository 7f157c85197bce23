package geometry

import (
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"

	"github.com/sells-group/greenspace/internal/dataset"
)

func loadShapefile(path string, candidates []string) (*Source, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "geometry: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = strings.TrimRight(f.String(), "\x00")
	}

	keyCol, ok := DetectKeyColumn(columns, candidates)
	if !ok {
		return nil, missingKey(columns)
	}
	keyIdx := 0
	for i, c := range columns {
		if c == keyCol {
			keyIdx = i
			break
		}
	}

	numeric := fields[keyIdx].Fieldtype == 'N' || fields[keyIdx].Fieldtype == 'F'
	src := &Source{KeyColumn: keyCol}
	for reader.Next() {
		_, shape := reader.Shape()

		key, ok := attributeKey(reader.Attribute(keyIdx), numeric)
		g := shapeToMultiPolygon(shape)
		if !ok || g == nil {
			src.Skipped++
			continue
		}
		src.Features = append(src.Features, Feature{Key: key, Geometry: g})
	}
	return src, nil
}

// attributeKey normalises a DBF key value like a GeoJSON property: numeric
// fields such as "1234.000000" lose their fraction, character fields keep
// leading zeros.
func attributeKey(raw string, numeric bool) (string, bool) {
	raw = strings.TrimSpace(strings.TrimRight(raw, "\x00"))
	if numeric {
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return dataset.NormalizeKey(f)
		}
	}
	return dataset.NormalizeKey(raw)
}

// shapeToMultiPolygon converts a shapefile polygon to a geom.MultiPolygon.
// Returns nil for nil, empty, or non-polygon shapes.
func shapeToMultiPolygon(shape shp.Shape) *geom.MultiPolygon {
	switch s := shape.(type) {
	case *shp.Polygon:
		if s == nil {
			return nil
		}
		return ringsToMultiPolygon(s.Parts, s.Points)
	case *shp.PolygonZ:
		if s == nil {
			return nil
		}
		return ringsToMultiPolygon(s.Parts, s.Points)
	default:
		return nil
	}
}

// ringsToMultiPolygon groups shapefile rings into polygons. Shapefile
// shells run clockwise and each counter-clockwise ring is a hole of the
// shell before it.
func ringsToMultiPolygon(parts []int32, points []shp.Point) *geom.MultiPolygon {
	if len(parts) == 0 || len(points) == 0 {
		return nil
	}

	var polys [][][]geom.Coord
	for i, start := range parts {
		end := int32(len(points))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		if start < 0 || start >= end || end > int32(len(points)) {
			continue
		}

		ring := make([]geom.Coord, 0, end-start)
		flat := make([]float64, 0, 2*(end-start))
		for j := start; j < end; j++ {
			ring = append(ring, geom.Coord{points[j].X, points[j].Y})
			flat = append(flat, points[j].X, points[j].Y)
		}
		if len(ring) < 4 {
			zap.L().Debug("geometry: skipping degenerate ring", zap.Int("part", i))
			continue
		}

		if xy.IsRingCounterClockwise(geom.XY, flat) && len(polys) > 0 {
			last := len(polys) - 1
			polys[last] = append(polys[last], ring)
			continue
		}
		polys = append(polys, [][]geom.Coord{ring})
	}

	if len(polys) == 0 {
		return nil
	}
	mp, err := geom.NewMultiPolygon(geom.XY).SetCoords(polys)
	if err != nil {
		zap.L().Debug("geometry: skipping malformed polygon", zap.Error(err))
		return nil
	}
	return mp
}
