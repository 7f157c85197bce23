package pipeline

import (
	"strconv"
	"strings"
)

const placeholderMarker = "unnamed"

// headerIndicators mark a label row that holds the postcode column.
var headerIndicators = []string{"postcode-4", "pc4"}

// HeaderOptions tunes header-row detection.
type HeaderOptions struct {
	PreferredRow   int
	ScanRows       int
	StructuralRows []int
	MinColumns     int
}

// DefaultHeaderOptions matches the layout of recent CBS PC4 exports.
func DefaultHeaderOptions() HeaderOptions {
	return HeaderOptions{
		PreferredRow:   7,
		ScanRows:       10,
		StructuralRows: []int{3, 4, 5, 6, 8},
		MinColumns:     5,
	}
}

// Sheet is a raw spreadsheet grid.
type Sheet struct {
	rows  [][]string
	width int
}

// NewSheet wraps raw rows. Rows whose cells are all empty are dropped, so
// header offsets count non-blank rows only. The sheet width is that of its
// widest row.
func NewSheet(rows [][]string) *Sheet {
	s := &Sheet{rows: make([][]string, 0, len(rows))}
	for _, r := range rows {
		if blank(r) {
			continue
		}
		s.rows = append(s.rows, r)
		s.width = max(s.width, len(r))
	}
	return s
}

// Labels returns the column labels when row offset is the header. Empty
// cells become unnamed_<col> and repeated labels get a .N suffix. ok is
// false when the sheet has no such row.
func (s *Sheet) Labels(offset int) (labels []string, ok bool) {
	if offset < 0 || offset >= len(s.rows) {
		return nil, false
	}
	row := s.rows[offset]
	labels = make([]string, s.width)
	seen := make(map[string]int, s.width)
	for i := range labels {
		l := ""
		if i < len(row) {
			l = strings.TrimSpace(row[i])
		}
		if l == "" {
			l = placeholderMarker + "_" + strconv.Itoa(i)
		}
		if n := seen[l]; n > 0 {
			seen[l] = n + 1
			l = l + "." + strconv.Itoa(n)
		} else {
			seen[l] = 1
		}
		labels[i] = l
	}
	return labels, true
}

// Records returns the data rows below the header at offset.
func (s *Sheet) Records(offset int) [][]string {
	if offset < -1 || offset+1 >= len(s.rows) {
		return nil
	}
	return s.rows[offset+1:]
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func isPlaceholder(label string) bool {
	return strings.HasPrefix(label, placeholderMarker+"_")
}

func allPlaceholders(labels []string) bool {
	for _, l := range labels {
		if !isPlaceholder(l) {
			return false
		}
	}
	return true
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

// HeaderStrategy proposes a header offset. Strategies are tried in order and
// the first one that returns ok wins.
type HeaderStrategy struct {
	Name   string
	Detect func(s *Sheet) (offset int, ok bool)
}

// HeaderStrategies returns the detection rules in priority order.
func HeaderStrategies(opts HeaderOptions) []HeaderStrategy {
	return []HeaderStrategy{
		{Name: "preferred", Detect: preferredRow(opts.PreferredRow)},
		{Name: "scan", Detect: scanRows(opts.ScanRows)},
		{Name: "structural", Detect: structuralRows(opts.StructuralRows, opts.MinColumns)},
		{Name: "fallback", Detect: func(*Sheet) (int, bool) { return 0, true }},
	}
}

func preferredRow(offset int) func(*Sheet) (int, bool) {
	return func(s *Sheet) (int, bool) {
		labels, ok := s.Labels(offset)
		if !ok || allPlaceholders(labels) {
			return 0, false
		}
		for _, l := range labels {
			if containsAny(strings.ToLower(l), headerIndicators) {
				return offset, true
			}
		}
		return 0, false
	}
}

func scanRows(n int) func(*Sheet) (int, bool) {
	return func(s *Sheet) (int, bool) {
		for i := 0; i < n; i++ {
			labels, ok := s.Labels(i)
			if !ok {
				break
			}
			joined := strings.ToLower(strings.Join(labels, " "))
			if containsAny(joined, headerIndicators) && !strings.Contains(joined, placeholderMarker) {
				return i, true
			}
		}
		return 0, false
	}
}

func structuralRows(offsets []int, minColumns int) func(*Sheet) (int, bool) {
	return func(s *Sheet) (int, bool) {
		for _, i := range offsets {
			labels, ok := s.Labels(i)
			if ok && len(labels) > minColumns && !allPlaceholders(labels) {
				return i, true
			}
		}
		return 0, false
	}
}

// HeaderResult is the detected header row and the rule that chose it.
type HeaderResult struct {
	Row      int
	Strategy string
}

// DetectHeader runs the strategies in order and returns the first match.
func DetectHeader(s *Sheet, strategies []HeaderStrategy) HeaderResult {
	for _, st := range strategies {
		if row, ok := st.Detect(s); ok {
			return HeaderResult{Row: row, Strategy: st.Name}
		}
	}
	return HeaderResult{Row: 0, Strategy: "none"}
}
