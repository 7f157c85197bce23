// Package dataset models the per-postcode green-space dataset and its on-disk
// GeoJSON artifact.
package dataset

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/twpayne/go-geom"

	"github.com/sells-group/greenspace/internal/failure"
)

// Column names of the artifact schema.
const (
	ColPC4           = "pc4"
	ColGeometry      = "geometry"
	ColTrees         = "trees_pct"
	ColBushes        = "bushes_pct"
	ColGrass         = "grass_pct"
	ColTotalGreenery = "total_greenery"
	ColBalanceScore  = "balance_score"
	ColColor         = "color"
)

// CoreColumns lists the fixed columns in artifact order. Every other column
// is a socio-economic attribute discovered at runtime.
var CoreColumns = []string{
	ColPC4, ColGeometry, ColTrees, ColBushes, ColGrass,
	ColTotalGreenery, ColBalanceScore, ColColor,
}

// BaseColumns are the columns produced by the base join.
var BaseColumns = []string{ColPC4, ColGeometry, ColTrees, ColBushes, ColGrass}

// IsCore reports whether name is one of the fixed columns.
func IsCore(name string) bool {
	return slices.Contains(CoreColumns, name)
}

// Area is one PC4 postcode area. Fields are filled progressively by the
// pipeline stages and never changed once set.
type Area struct {
	PC4       string
	Geometry  geom.T
	TreesPct  float64
	BushesPct float64
	GrassPct  float64

	// Set by metric derivation.
	TotalGreenery *float64
	BalanceScore  *float64

	// Set by colour encoding.
	Color string

	// Socio-economic attributes keyed by column name. Values are float64,
	// string, or nil when no match was found.
	Socio map[string]any
}

// Dataset is an ordered collection of areas plus the ordered artifact schema.
type Dataset struct {
	Areas   []*Area
	Columns []string
}

// New creates an empty dataset with the given columns.
func New(columns ...string) *Dataset {
	return &Dataset{Columns: slices.Clone(columns)}
}

// Len returns the number of areas.
func (d *Dataset) Len() int {
	return len(d.Areas)
}

// HasColumn reports whether the schema contains name.
func (d *Dataset) HasColumn(name string) bool {
	return slices.Contains(d.Columns, name)
}

// AddColumns appends the names that are not yet part of the schema.
// Existing columns keep their position.
func (d *Dataset) AddColumns(names ...string) {
	for _, n := range names {
		if !d.HasColumn(n) {
			d.Columns = append(d.Columns, n)
		}
	}
}

// SocioColumns returns the non-core columns in schema order.
func (d *Dataset) SocioColumns() []string {
	var out []string
	for _, c := range d.Columns {
		if !IsCore(c) {
			out = append(out, c)
		}
	}
	return out
}

// Require returns a SchemaError naming the first column missing from the schema.
func (d *Dataset) Require(source string, names ...string) error {
	for _, n := range names {
		if !d.HasColumn(n) {
			return failure.NewSchemaError(source, n, d.Columns)
		}
	}
	return nil
}

// NormalizeKey converts a raw postcode value to its canonical string form.
// Strings are trimmed (leading zeros kept); integral numbers print without
// a decimal part. ok is false for empty or nil values.
func NormalizeKey(v any) (key string, ok bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		key = strings.TrimSpace(val)
	case float64:
		key = formatNumber(val)
	case float32:
		key = formatNumber(float64(val))
	case int:
		key = strconv.Itoa(val)
	case int64:
		key = strconv.FormatInt(val, 10)
	case json.Number:
		if f, err := val.Float64(); err == nil {
			key = formatNumber(f)
		} else {
			key = val.String()
		}
	default:
		key = strings.TrimSpace(fmt.Sprint(val))
	}
	return key, key != ""
}

func formatNumber(f float64) string {
	if f == math.Trunc(f) && !math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'f', 0, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ToFloat converts a decoded JSON value to float64. Only numbers convert;
// strings, booleans and nil do not.
func ToFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
