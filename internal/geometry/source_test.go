package geometry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/greenspace/internal/failure"
)

var defaultCandidates = []string{"postcode", "pc4_code", "pc4", "code", "pc4_cd"}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const pc4GeoJSON = `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{"pc4_code":1011,"gem_name":"Amsterdam"},
  "geometry":{"type":"Polygon","coordinates":[[[4.9,52.37],[4.91,52.37],[4.91,52.38],[4.9,52.37]]]}},
 {"type":"Feature","properties":{"pc4_code":"2511","gem_name":"Den Haag"},
  "geometry":{"type":"MultiPolygon","coordinates":[[[[4.3,52.07],[4.31,52.07],[4.31,52.08],[4.3,52.07]]]]}},
 {"type":"Feature","properties":{"pc4_code":"9999"},"geometry":null},
 {"type":"Feature","properties":{"gem_name":"nowhere"},
  "geometry":{"type":"Point","coordinates":[1,2]}}
]}`

func TestDetectKeyColumn(t *testing.T) {
	col, ok := DetectKeyColumn([]string{"Code", "PC4"}, defaultCandidates)
	assert.True(t, ok)
	assert.Equal(t, "PC4", col, "candidate order wins over column order")

	col, ok = DetectKeyColumn([]string{"name", "PC4_CD"}, defaultCandidates)
	assert.True(t, ok)
	assert.Equal(t, "PC4_CD", col)

	_, ok = DetectKeyColumn([]string{"postcode4", "pc"}, defaultCandidates)
	assert.False(t, ok, "match is exact, not substring")
}

func TestLoad_GeoJSON(t *testing.T) {
	path := writeFile(t, "pc4.geojson", pc4GeoJSON)

	src, err := Load(path, defaultCandidates)
	require.NoError(t, err)

	assert.Equal(t, "pc4_code", src.KeyColumn)
	require.Len(t, src.Features, 2)
	assert.Equal(t, "1011", src.Features[0].Key)
	assert.IsType(t, &geom.Polygon{}, src.Features[0].Geometry)
	assert.Equal(t, "2511", src.Features[1].Key)
	assert.IsType(t, &geom.MultiPolygon{}, src.Features[1].Geometry)
	assert.Equal(t, 2, src.Skipped)
}

func TestLoad_GeoJSONNoKeyColumn(t *testing.T) {
	path := writeFile(t, "pc4.geojson", `{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{"name":"x"},"geometry":{"type":"Point","coordinates":[1,2]}}]}`)

	_, err := Load(path, defaultCandidates)
	require.Error(t, err)
	assert.True(t, failure.IsSchema(err))
}

func TestLoad_UnsupportedFormat(t *testing.T) {
	_, err := Load(writeFile(t, "pc4.gpkg", "x"), defaultCandidates)
	assert.ErrorContains(t, err, "unsupported source format")
}

func TestLoad_InvalidJSON(t *testing.T) {
	_, err := Load(writeFile(t, "pc4.json", "{"), defaultCandidates)
	assert.ErrorContains(t, err, "decode geojson")
}

func writeShapefile(t *testing.T, fieldName string, records map[string][][]shp.Point) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pc4.shp")
	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{shp.StringField(fieldName, 6)}))

	keys := []string{"1011", "2511"}
	for _, key := range keys {
		parts, ok := records[key]
		if !ok {
			continue
		}
		poly := shp.Polygon(*shp.NewPolyLine(parts))
		idx := w.Write(&poly)
		require.NoError(t, w.WriteAttribute(int(idx), 0, key))
	}
	w.Close()
	return path
}

func TestLoad_ShapefileWithHole(t *testing.T) {
	shell := []shp.Point{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 0}, {X: 0, Y: 0}}
	hole := []shp.Point{{X: 0.2, Y: 0.2}, {X: 0.8, Y: 0.2}, {X: 0.8, Y: 0.8}, {X: 0.2, Y: 0.8}, {X: 0.2, Y: 0.2}}
	island := []shp.Point{{X: 2, Y: 2}, {X: 2, Y: 3}, {X: 3, Y: 3}, {X: 3, Y: 2}, {X: 2, Y: 2}}

	path := writeShapefile(t, "PC4", map[string][][]shp.Point{
		"1011": {shell, hole, island},
		"2511": {island},
	})

	src, err := Load(path, defaultCandidates)
	require.NoError(t, err)
	assert.Equal(t, "PC4", src.KeyColumn)
	require.Len(t, src.Features, 2)

	mp, ok := src.Features[0].Geometry.(*geom.MultiPolygon)
	require.True(t, ok)
	require.Equal(t, 2, mp.NumPolygons())
	assert.Equal(t, 2, mp.Polygon(0).NumLinearRings(), "hole attached to shell")
	assert.Equal(t, 1, mp.Polygon(1).NumLinearRings())
	assert.Equal(t, "2511", src.Features[1].Key)
}

func TestLoad_ShapefileNoKeyColumn(t *testing.T) {
	square := []shp.Point{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 0}, {X: 0, Y: 0}}
	path := writeShapefile(t, "NAAM", map[string][][]shp.Point{"1011": {square}})

	_, err := Load(path, defaultCandidates)
	require.Error(t, err)
	assert.True(t, failure.IsSchema(err))
}

func TestLoad_ShapefileNumericKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pc4.shp")
	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{shp.FloatField("PC4", 12, 6)}))

	square := []shp.Point{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 0}, {X: 0, Y: 0}}
	poly := shp.Polygon(*shp.NewPolyLine([][]shp.Point{square}))
	idx := w.Write(&poly)
	require.NoError(t, w.WriteAttribute(int(idx), 0, 1234.0))
	w.Close()

	src, err := Load(path, defaultCandidates)
	require.NoError(t, err)
	require.Len(t, src.Features, 1)
	assert.Equal(t, "1234", src.Features[0].Key, "DBF padding and fraction are dropped")
}

func TestAttributeKey(t *testing.T) {
	tests := []struct {
		raw     string
		numeric bool
		want    string
		ok      bool
	}{
		{"1234.000000", true, "1234", true},
		{"  5611", true, "5611", true},
		{"0123", false, "0123", true},
		{"1011\x00\x00", false, "1011", true},
		{"   ", true, "", false},
		{"n/a", true, "n/a", true},
	}
	for _, tt := range tests {
		got, ok := attributeKey(tt.raw, tt.numeric)
		assert.Equal(t, tt.want, got, tt.raw)
		assert.Equal(t, tt.ok, ok, tt.raw)
	}
}

func TestShapeToMultiPolygon_Unsupported(t *testing.T) {
	assert.Nil(t, shapeToMultiPolygon(&shp.Point{X: 1, Y: 2}))
	assert.Nil(t, shapeToMultiPolygon(nil))
	assert.Nil(t, ringsToMultiPolygon(nil, nil))
}

func TestRingsToMultiPolygon_DegenerateRing(t *testing.T) {
	pts := []shp.Point{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 0}}
	assert.Nil(t, ringsToMultiPolygon([]int32{0}, pts))
}
