package geometry

import (
	"encoding/json"
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/greenspace/internal/dataset"
)

type rawFeature struct {
	Geometry   *geojson.Geometry `json:"geometry"`
	Properties map[string]any    `json:"properties"`
}

type rawCollection struct {
	Type     string       `json:"type"`
	Features []rawFeature `json:"features"`
}

func loadGeoJSON(path string, candidates []string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "geometry: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	var fc rawCollection
	if err := json.NewDecoder(f).Decode(&fc); err != nil {
		return nil, eris.Wrap(err, "geometry: decode geojson")
	}

	seen := make(map[string]bool)
	for _, rf := range fc.Features {
		for k := range rf.Properties {
			seen[k] = true
		}
	}
	columns := make([]string, 0, len(seen))
	for k := range seen {
		columns = append(columns, k)
	}
	sort.Strings(columns)

	keyCol, ok := DetectKeyColumn(columns, candidates)
	if !ok {
		return nil, missingKey(columns)
	}

	src := &Source{KeyColumn: keyCol}
	for _, rf := range fc.Features {
		key, ok := dataset.NormalizeKey(rf.Properties[keyCol])
		if !ok || rf.Geometry == nil {
			src.Skipped++
			continue
		}
		g, err := rf.Geometry.Decode()
		if err != nil {
			src.Skipped++
			continue
		}
		src.Features = append(src.Features, Feature{Key: key, Geometry: g})
	}
	return src, nil
}
