package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/greenspace/internal/dataset"
)

func square(x, y float64) *geom.Polygon {
	return geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{{
		{x, y}, {x + 1, y}, {x + 1, y + 1}, {x, y + 1}, {x, y},
	}})
}

func ptr(f float64) *float64 { return &f }

func defaultCoverageOptions() CoverageOptions {
	return CoverageOptions{
		Delimiter:    ';',
		Decimal:      ",",
		KeyColumn:    "Postcode",
		TreesColumn:  "PercentageTrees",
		BushesColumn: "PercentageBushes",
		GrassColumn:  "PercentageGrass",
	}
}

// writePC4GeoJSON writes a polygon collection keyed by pc4_code.
func writePC4GeoJSON(t *testing.T, dir string, keys ...string) string {
	t.Helper()
	features := make([]string, 0, len(keys))
	for i, k := range keys {
		x := float64(i)
		features = append(features, fmt.Sprintf(
			`{"type":"Feature","properties":{"pc4_code":%q},"geometry":{"type":"Polygon","coordinates":[[[%g,0],[%g,0],[%g,1],[%g,0]]]}}`,
			k, x, x+1, x+1, x))
	}
	path := filepath.Join(dir, "pc4.geojson")
	body := `{"type":"FeatureCollection","features":[` + strings.Join(features, ",") + `]}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func writeCoverageCSV(t *testing.T, dir string, rows ...string) string {
	t.Helper()
	path := filepath.Join(dir, "coverage.csv")
	body := "Postcode;PercentageTrees;PercentageBushes;PercentageGrass\n" + strings.Join(rows, "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// cbsGrid builds a CBS-style sheet: seven metadata rows with blank spacer
// rows in between, the header at offset 7, then data rows.
func cbsGrid(data ...[]string) [][]string {
	grid := [][]string{
		{"Kerncijfers per postcode-4, 2024"},
		{},
		{"Bron: CBS"},
		{"Peildatum 1 januari 2024"},
		{},
		{"Voorlopige cijfers"},
		{"Afgerond op tientallen"},
		{"Geheim: minder dan 5 inwoners"},
		{"Bewerking: CBS/Kadaster"},
		{},
		{"Postcode-4", "Aantal inwoners", "Gemiddelde WOZ-waarde", "Oppervlakte land", "Stedelijkheid", "Gemiddeld inkomen"},
	}
	return append(grid, data...)
}

func createCBSXLSX(t *testing.T, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("PC4")
	require.NoError(t, err)
	for _, rowData := range rows {
		row := sheet.AddRow()
		for _, cellData := range rowData {
			row.AddCell().SetString(cellData)
		}
	}
	path := filepath.Join(t.TempDir(), "pc4_2024_v1.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func baseDataset(areas ...*dataset.Area) *dataset.Dataset {
	d := dataset.New(dataset.BaseColumns...)
	d.Areas = areas
	return d
}
