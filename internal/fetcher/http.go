package fetcher

import (
	"context"
	"io"
	"maps"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/greenspace/internal/failure"
)

const (
	defaultTimeout   = 60 * time.Second
	defaultUserAgent = "greenspace/1.0"
)

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent string
	Timeout   time.Duration
	// RateLimiters maps a host name to its limiter. Hosts not listed share
	// a fallback limiter.
	RateLimiters map[string]*rate.Limiter
}

// HTTPFetcher downloads over plain HTTP(S). There are no retries: a
// transport error, a non-2xx status or a short body is reported once as a
// failure.NetworkError.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	limiters  map[string]*rate.Limiter
	fallback  *rate.Limiter
}

// NewHTTPFetcher applies defaults to opts and returns a ready fetcher.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	f := &HTTPFetcher{
		client:    &http.Client{Timeout: opts.Timeout},
		userAgent: opts.UserAgent,
		limiters:  maps.Clone(opts.RateLimiters),
		fallback:  rate.NewLimiter(5, 5),
	}
	if f.client.Timeout <= 0 {
		f.client.Timeout = defaultTimeout
	}
	if f.userAgent == "" {
		f.userAgent = defaultUserAgent
	}
	return f
}

// DefaultRateLimiters throttles the public PC4 and CBS download hosts.
func DefaultRateLimiters() map[string]*rate.Limiter {
	hosts := []string{"public.opendatasoft.com", "service.pdok.nl", "www.cbs.nl"}
	out := make(map[string]*rate.Limiter, len(hosts))
	for _, h := range hosts {
		out[h] = rate.NewLimiter(2, 2)
	}
	return out
}

func (f *HTTPFetcher) limiterFor(rawURL string) *rate.Limiter {
	if u, err := url.Parse(rawURL); err == nil {
		if lim, ok := f.limiters[u.Host]; ok {
			return lim
		}
	}
	return f.fallback
}

// Download issues a GET for rawURL. The caller closes the returned body.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	if err := f.limiterFor(rawURL).Wait(ctx); err != nil {
		return nil, failure.NewNetworkError(eris.Wrap(err, "rate limit"), rawURL, 0)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: build request for %s", rawURL)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, failure.NewNetworkError(err, rawURL, 0)
	}
	if resp.StatusCode/100 != 2 {
		_ = resp.Body.Close()
		zap.L().Warn("fetcher: non-success status",
			zap.String("url", rawURL),
			zap.Int("status", resp.StatusCode),
		)
		return nil, failure.NewNetworkError(eris.New(resp.Status), rawURL, resp.StatusCode)
	}
	return resp.Body, nil
}

// DownloadToFile streams rawURL into path and returns the byte count. The
// file appears at path only after the whole body was received.
func (f *HTTPFetcher) DownloadToFile(ctx context.Context, rawURL string, path string) (int64, error) {
	body, err := f.Download(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	defer body.Close() //nolint:errcheck

	n, err := writeAtomic(path, body)
	var rerr *readError
	if eris.As(err, &rerr) {
		return n, failure.NewNetworkError(rerr.err, rawURL, 0)
	}
	return n, err
}

// readError marks a failure on the source side of a copy.
type readError struct{ err error }

func (e *readError) Error() string { return e.err.Error() }
func (e *readError) Unwrap() error { return e.err }

type sourceReader struct{ r io.Reader }

func (s sourceReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil && err != io.EOF {
		err = &readError{err: err}
	}
	return n, err
}

func writeAtomic(path string, r io.Reader) (int64, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, eris.Wrapf(err, "fetcher: create %s", dir)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.part")
	if err != nil {
		return 0, eris.Wrap(err, "fetcher: create temp file")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	n, err := io.Copy(tmp, sourceReader{r})
	if err != nil {
		_ = tmp.Close()
		return n, err
	}
	if err := tmp.Close(); err != nil {
		return n, eris.Wrap(err, "fetcher: close temp file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return n, eris.Wrapf(err, "fetcher: rename into %s", path)
	}
	return n, nil
}
