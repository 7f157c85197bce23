package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/greenspace/internal/fetcher"
)

// AcquireResult describes the geometry source on disk after acquisition.
type AcquireResult struct {
	// Path is the file to load geometries from. For zip archives this is
	// the extracted .geojson or .shp, otherwise the cache path itself.
	Path   string
	Cached bool
	Bytes  int64
}

// Acquire makes the PC4 polygon source available at cachePath. An existing
// non-empty cache file is used as is; otherwise url is downloaded once.
// Download failures are returned as-is and never retried.
func Acquire(ctx context.Context, f fetcher.Fetcher, url, cachePath string) (*AcquireResult, error) {
	log := zap.L().With(zap.String("cache_path", cachePath))

	res := &AcquireResult{Path: cachePath}
	if info, err := os.Stat(cachePath); err == nil && info.Size() > 0 && !info.IsDir() {
		log.Info("acquire: using cached geometry", zap.Int64("bytes", info.Size()))
		res.Cached = true
		res.Bytes = info.Size()
	} else {
		if url == "" {
			return nil, eris.Errorf("acquire: %s missing and no download url configured", cachePath)
		}
		log.Info("acquire: downloading geometry", zap.String("url", url))
		n, err := f.DownloadToFile(ctx, url, cachePath)
		if err != nil {
			return nil, err
		}
		res.Bytes = n
		log.Info("acquire: saved geometry", zap.Int64("bytes", n))
	}

	if !strings.EqualFold(filepath.Ext(cachePath), ".zip") {
		return res, nil
	}

	dest := strings.TrimSuffix(cachePath, filepath.Ext(cachePath))
	files, err := fetcher.ExtractZIP(cachePath, dest)
	if err != nil {
		return nil, eris.Wrapf(err, "acquire: extract %s", cachePath)
	}
	src, ok := fetcher.FindByExt(files, ".geojson", ".json", ".shp")
	if !ok {
		return nil, eris.Errorf("acquire: %s contains no .geojson or .shp file", cachePath)
	}
	log.Info("acquire: extracted archive", zap.String("source", src), zap.Int("files", len(files)))
	res.Path = src
	return res, nil
}
