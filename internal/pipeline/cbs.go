package pipeline

import (
	"context"
	"math"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/greenspace/internal/dataset"
	"github.com/sells-group/greenspace/internal/failure"
	"github.com/sells-group/greenspace/internal/fetcher"
)

// Column vocabularies, matched as case-insensitive substrings of the labels.
var (
	postcodeTerms    = []string{"pc4", "postcode", "code"}
	economicTerms    = []string{"inkomen", "income", "woz", "waarde", "vermogen"}
	demographicTerms = []string{"bevolking", "inwoners", "households", "huishoudens", "leeftijd", "age"}
)

var pc4Pattern = regexp.MustCompile(`\d{4}`)

// CleanKey extracts the first run of four digits from a raw postcode cell.
func CleanKey(raw string) (string, bool) {
	m := pc4Pattern.FindString(raw)
	if len(m) != 4 {
		return "", false
	}
	return m, true
}

// ParseValue converts a CBS cell: empty cells become nil, numbers (decimal
// point or comma) become float64 and anything else is kept as text.
func ParseValue(raw string) any {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	if v, ok := parseNumber(s); ok {
		return v
	}
	return s
}

func parseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil && strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		v, err = strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	}
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Selection is the set of CBS columns taken into the join.
type Selection struct {
	KeyColumn string
	// Columns are the economic then demographic labels, without the key.
	Columns []string
}

// SelectColumns classifies header labels by keyword. The first postcode-like
// label is the join key.
func SelectColumns(labels []string) (Selection, error) {
	var sel Selection
	lower := make([]string, len(labels))
	for i, l := range labels {
		lower[i] = strings.ToLower(l)
		if sel.KeyColumn == "" && containsAny(lower[i], postcodeTerms) {
			sel.KeyColumn = l
		}
	}
	if sel.KeyColumn == "" {
		return sel, failure.NewSchemaError("cbs sheet", "postcode", labels)
	}

	seen := map[string]bool{sel.KeyColumn: true}
	for _, terms := range [][]string{economicTerms, demographicTerms} {
		for i, l := range labels {
			if !seen[l] && containsAny(lower[i], terms) {
				seen[l] = true
				sel.Columns = append(sel.Columns, l)
			}
		}
	}
	return sel, nil
}

// CBSTable is the cleaned socio-economic table keyed by PC4.
type CBSTable struct {
	Header    HeaderResult
	Labels    []string
	Selection Selection
	Records   map[string]map[string]any
	Rows      int
	Dropped   int
}

// ParseCBS detects the header of a raw sheet grid, selects the relevant
// columns and indexes the rows by cleaned postcode. Rows without a
// four-digit postcode are dropped; duplicate postcodes keep the last row.
func ParseCBS(rows [][]string, opts HeaderOptions) (*CBSTable, error) {
	sheet := NewSheet(rows)
	header := DetectHeader(sheet, HeaderStrategies(opts))

	labels, ok := sheet.Labels(header.Row)
	if !ok {
		return nil, failure.NewSchemaError("cbs sheet", "postcode", nil)
	}
	sel, err := SelectColumns(labels)
	if err != nil {
		return nil, err
	}

	pos := make(map[string]int, len(labels))
	for i, l := range labels {
		pos[l] = i
	}

	t := &CBSTable{
		Header:    header,
		Labels:    labels,
		Selection: sel,
		Records:   make(map[string]map[string]any),
	}
	for _, r := range sheet.Records(header.Row) {
		t.Rows++
		key, ok := CleanKey(cell(r, pos[sel.KeyColumn]))
		if !ok {
			t.Dropped++
			continue
		}
		rec := make(map[string]any, len(sel.Columns))
		for _, c := range sel.Columns {
			rec[c] = ParseValue(cell(r, pos[c]))
		}
		t.Records[key] = rec
	}
	return t, nil
}

// LoadCBS reads the given sheet of the CBS workbook and parses it.
func LoadCBS(path string, sheetIndex int, opts HeaderOptions) (*CBSTable, error) {
	rows, err := fetcher.ReadXLSX(path, fetcher.XLSXOptions{SheetIndex: sheetIndex})
	if err != nil {
		return nil, err
	}
	t, err := ParseCBS(rows, opts)
	if err != nil {
		return nil, err
	}

	zap.L().Info("cbs: parsed sheet",
		zap.String("path", path),
		zap.Int("header_row", t.Header.Row),
		zap.String("header_strategy", t.Header.Strategy),
		zap.String("key_column", t.Selection.KeyColumn),
		zap.Strings("columns", t.Selection.Columns),
		zap.Int("rows", t.Rows),
		zap.Int("dropped_rows", t.Dropped),
		zap.Int("postcodes", len(t.Records)),
	)
	return t, nil
}

// JoinCBS left-joins the table onto the dataset. Every area keeps its row;
// areas without a CBS record get nil for every selected column. Columns
// whose label already exists in the dataset are skipped and returned.
func JoinCBS(d *dataset.Dataset, t *CBSTable) (stats JoinStats, skipped []string) {
	var added []string
	for _, c := range t.Selection.Columns {
		if d.HasColumn(c) {
			skipped = append(skipped, c)
			continue
		}
		added = append(added, c)
	}

	for _, a := range d.Areas {
		rec, ok := t.Records[a.PC4]
		if ok {
			stats.Matched++
		}
		if a.Socio == nil {
			a.Socio = make(map[string]any, len(added))
		}
		for _, c := range added {
			a.Socio[c] = rec[c]
		}
	}
	d.AddColumns(added...)

	stats.Left = d.Len()
	stats.Right = len(t.Records)
	return stats, skipped
}

// CBSStage joins the parsed CBS table onto the metric-enriched dataset.
func CBSStage(t *CBSTable) Stage {
	return Stage{
		Name:     "cbs",
		Requires: []string{dataset.ColPC4, dataset.ColTotalGreenery, dataset.ColBalanceScore},
		Apply: func(_ context.Context, d *dataset.Dataset) error {
			stats, skipped := JoinCBS(d, t)
			log := zap.L().With(zap.String("stage", "cbs"))
			if len(skipped) > 0 {
				log.Warn("cbs: skipped columns already present in dataset", zap.Strings("columns", skipped))
			}
			log.Info("cbs: joined socio-economic data",
				zap.Int("rows", stats.Left),
				zap.Int("matched", stats.Matched),
				zap.Int("unmatched", stats.Left-stats.Matched),
			)
			return nil
		},
	}
}
