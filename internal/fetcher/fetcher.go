// Package fetcher downloads remote files and parses CSV, XLSX and ZIP sources.
package fetcher

import (
	"context"
	"io"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and writes it to the given path. Returns bytes written.
	// The file only appears at path once the whole body has been received.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}
