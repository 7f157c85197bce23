package server

import (
	"net/http"

	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
)

type metadata struct {
	TotalFeatures int               `json:"total_features"`
	DataSource    string            `json:"data_source"`
	DateGenerated string            `json:"date_generated"`
	Attributes    map[string]string `json:"attributes"`
}

type greenSpaceResponse struct {
	Type     string             `json:"type"`
	Metadata metadata           `json:"metadata"`
	Features []*geojson.Feature `json:"features"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, s.opts.IndexFile)
}

func (s *Server) handleGreenSpace(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, greenSpaceResponse{
		Type: "FeatureCollection",
		Metadata: metadata{
			TotalFeatures: s.data.Len(),
			DataSource:    s.opts.DataSource,
			DateGenerated: s.opts.DateGenerated,
			Attributes:    s.attributes,
		},
		Features: s.data.Features(),
	})
}

func (s *Server) handleStatistics(w http.ResponseWriter, _ *http.Request) {
	stats, err := Compute(s.data)
	if err != nil {
		zap.L().Error("server: statistics failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to calculate statistics: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "healthy",
		"data_loaded": true,
		"records":     s.data.Len(),
	})
}
