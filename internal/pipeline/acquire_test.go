package pipeline

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/greenspace/internal/failure"
)

const pc4URL = "https://example.com/pc4.geojson"

func TestAcquire_UsesCache(t *testing.T) {
	cache := filepath.Join(t.TempDir(), "pc4_nl.geojson")
	require.NoError(t, os.WriteFile(cache, []byte(`{"type":"FeatureCollection","features":[]}`), 0o644))

	f := new(mockFetcher)
	res, err := Acquire(context.Background(), f, pc4URL, cache)
	require.NoError(t, err)

	assert.True(t, res.Cached)
	assert.Equal(t, cache, res.Path)
	assert.Positive(t, res.Bytes)
	f.AssertNotCalled(t, "DownloadToFile", mock.Anything, mock.Anything, mock.Anything)
}

func TestAcquire_DownloadsOnce(t *testing.T) {
	cache := filepath.Join(t.TempDir(), "data", "pc4_nl.geojson")
	body := `{"type":"FeatureCollection","features":[]}`

	f := new(mockFetcher)
	f.On("DownloadToFile", mock.Anything, pc4URL, cache).
		Run(func(args mock.Arguments) {
			path := args.String(2)
			require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
		}).
		Return(int64(len(body)), nil).Once()

	res, err := Acquire(context.Background(), f, pc4URL, cache)
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, int64(len(body)), res.Bytes)

	res, err = Acquire(context.Background(), f, pc4URL, cache)
	require.NoError(t, err)
	assert.True(t, res.Cached)

	f.AssertExpectations(t)
	f.AssertNumberOfCalls(t, "DownloadToFile", 1)
}

func TestAcquire_EmptyCacheIsRefetched(t *testing.T) {
	cache := filepath.Join(t.TempDir(), "pc4_nl.geojson")
	require.NoError(t, os.WriteFile(cache, nil, 0o644))

	f := new(mockFetcher)
	f.On("DownloadToFile", mock.Anything, pc4URL, cache).Return(int64(10), nil).Once()

	res, err := Acquire(context.Background(), f, pc4URL, cache)
	require.NoError(t, err)
	assert.False(t, res.Cached)
	f.AssertExpectations(t)
}

func TestAcquire_NetworkErrorIsFatal(t *testing.T) {
	cache := filepath.Join(t.TempDir(), "pc4_nl.geojson")
	netErr := failure.NewNetworkError(errors.New("unexpected status"), pc4URL, 503)

	f := new(mockFetcher)
	f.On("DownloadToFile", mock.Anything, pc4URL, cache).Return(int64(0), netErr).Once()

	_, err := Acquire(context.Background(), f, pc4URL, cache)
	require.Error(t, err)
	assert.True(t, failure.IsNetwork(err))
	assert.NoFileExists(t, cache)
	f.AssertNumberOfCalls(t, "DownloadToFile", 1)
}

func TestAcquire_NoURL(t *testing.T) {
	_, err := Acquire(context.Background(), new(mockFetcher), "", filepath.Join(t.TempDir(), "x.geojson"))
	assert.ErrorContains(t, err, "no download url")
}

func writeZIP(t *testing.T, path string, files map[string]string) {
	t.Helper()
	out, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(out)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, out.Close())
}

func TestAcquire_ExtractsArchive(t *testing.T) {
	cache := filepath.Join(t.TempDir(), "pc4.zip")
	writeZIP(t, cache, map[string]string{
		"README.txt":  "PC4 polygons",
		"pc4.geojson": `{"type":"FeatureCollection","features":[]}`,
	})

	res, err := Acquire(context.Background(), new(mockFetcher), pc4URL, cache)
	require.NoError(t, err)
	assert.True(t, res.Cached)
	assert.Equal(t, "pc4.geojson", filepath.Base(res.Path))
	assert.FileExists(t, res.Path)
}

func TestAcquire_ArchiveWithoutGeometry(t *testing.T) {
	cache := filepath.Join(t.TempDir(), "pc4.zip")
	writeZIP(t, cache, map[string]string{"README.txt": "nothing here"})

	_, err := Acquire(context.Background(), new(mockFetcher), pc4URL, cache)
	assert.ErrorContains(t, err, "contains no .geojson or .shp")
}
