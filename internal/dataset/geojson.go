package dataset

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/greenspace/internal/failure"
)

const featureCollectionType = "FeatureCollection"

// collection is the artifact envelope. Columns is a GeoJSON foreign member
// that records the schema order, which feature property maps cannot carry.
type collection struct {
	Type     string             `json:"type"`
	Columns  []string           `json:"columns,omitempty"`
	Features []*geojson.Feature `json:"features"`
}

// Features converts every area to a GeoJSON feature carrying all schema columns.
func (d *Dataset) Features() []*geojson.Feature {
	features := make([]*geojson.Feature, 0, len(d.Areas))
	for _, a := range d.Areas {
		features = append(features, d.feature(a))
	}
	return features
}

func (d *Dataset) feature(a *Area) *geojson.Feature {
	props := make(map[string]any, len(d.Columns))
	for _, c := range d.Columns {
		switch c {
		case ColGeometry:
		case ColPC4:
			props[c] = a.PC4
		case ColTrees:
			props[c] = a.TreesPct
		case ColBushes:
			props[c] = a.BushesPct
		case ColGrass:
			props[c] = a.GrassPct
		case ColTotalGreenery:
			props[c] = floatOrNil(a.TotalGreenery)
		case ColBalanceScore:
			props[c] = floatOrNil(a.BalanceScore)
		case ColColor:
			props[c] = a.Color
		default:
			props[c] = a.Socio[c]
		}
	}
	return &geojson.Feature{
		ID:         a.PC4,
		Geometry:   a.Geometry,
		Properties: props,
	}
}

func floatOrNil(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

// Encode writes the dataset as a GeoJSON FeatureCollection.
func Encode(w io.Writer, d *Dataset) error {
	fc := collection{
		Type:     featureCollectionType,
		Columns:  d.Columns,
		Features: d.Features(),
	}
	if err := json.NewEncoder(w).Encode(fc); err != nil {
		return eris.Wrap(err, "dataset: encode geojson")
	}
	return nil
}

// Decode reads a GeoJSON FeatureCollection written by Encode. Collections
// without a columns member get a derived schema: known columns first, the
// remaining properties sorted by name.
func Decode(r io.Reader) (*Dataset, error) {
	var fc collection
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return nil, eris.Wrap(err, "dataset: decode geojson")
	}
	if fc.Type != featureCollectionType {
		return nil, eris.Errorf("dataset: expected %s, got %q", featureCollectionType, fc.Type)
	}

	columns := fc.Columns
	if len(columns) == 0 {
		columns = deriveColumns(fc.Features)
	}

	d := New(columns...)
	d.Areas = make([]*Area, 0, len(fc.Features))
	for i, f := range fc.Features {
		a, err := d.decodeArea(f)
		if err != nil {
			return nil, fmt.Errorf("dataset: feature %d: %w", i, err)
		}
		d.Areas = append(d.Areas, a)
	}
	return d, nil
}

func deriveColumns(features []*geojson.Feature) []string {
	seen := make(map[string]bool)
	for _, f := range features {
		for k := range f.Properties {
			seen[k] = true
		}
	}
	seen[ColGeometry] = true

	var columns []string
	for _, c := range CoreColumns {
		if seen[c] {
			columns = append(columns, c)
		}
	}
	var extra []string
	for k := range seen {
		if !IsCore(k) {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	return append(columns, extra...)
}

func (d *Dataset) decodeArea(f *geojson.Feature) (*Area, error) {
	key, ok := NormalizeKey(f.Properties[ColPC4])
	if !ok {
		return nil, failure.NewSchemaError("feature", ColPC4, nil)
	}

	a := &Area{PC4: key, Geometry: f.Geometry}
	for _, c := range d.Columns {
		v := f.Properties[c]
		switch c {
		case ColGeometry, ColPC4:
		case ColTrees, ColBushes, ColGrass:
			pct, ok := ToFloat(v)
			if !ok {
				return nil, failure.NewTypeConversionError(c, key, v)
			}
			a.setPct(c, pct)
		case ColTotalGreenery, ColBalanceScore:
			if v == nil {
				continue
			}
			n, ok := ToFloat(v)
			if !ok {
				return nil, failure.NewTypeConversionError(c, key, v)
			}
			if c == ColTotalGreenery {
				a.TotalGreenery = &n
			} else {
				a.BalanceScore = &n
			}
		case ColColor:
			if s, ok := v.(string); ok {
				a.Color = s
			}
		default:
			if a.Socio == nil {
				a.Socio = make(map[string]any)
			}
			a.Socio[c] = v
		}
	}
	return a, nil
}

func (a *Area) setPct(column string, v float64) {
	switch column {
	case ColTrees:
		a.TreesPct = v
	case ColBushes:
		a.BushesPct = v
	case ColGrass:
		a.GrassPct = v
	}
}

// ReadFile decodes the artifact at path.
func ReadFile(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	return Decode(f)
}

// WriteFile writes the artifact to path atomically: the data goes to a
// temporary file in the same directory that is renamed into place only
// after a complete, synced write. A failed write leaves no file behind.
func WriteFile(path string, d *Dataset) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrap(err, "dataset: create output dir")
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return eris.Wrap(err, "dataset: create temp file")
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) //nolint:errcheck

	if err := Encode(tmp, d); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return eris.Wrap(err, "dataset: sync temp file")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "dataset: close temp file")
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return eris.Wrapf(err, "dataset: rename into %s", path)
	}
	return nil
}
