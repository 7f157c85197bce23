// Package server exposes the final green-space dataset over a read-only
// HTTP API.
package server

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/greenspace/internal/dataset"
)

//go:embed attributes.yaml
var attributesYAML []byte

const shutdownTimeout = 10 * time.Second

// Options configures the server.
type Options struct {
	StaticDir      string
	IndexFile      string
	AllowedOrigins []string
	DataSource     string
	DateGenerated  string
}

// Server answers read-only queries against a dataset loaded once at
// startup. The dataset is never modified after New.
type Server struct {
	data       *dataset.Dataset
	opts       Options
	attributes map[string]string
}

// New creates a server for d.
func New(d *dataset.Dataset, opts Options) (*Server, error) {
	if d == nil {
		return nil, eris.New("server: dataset is nil")
	}
	attrs, err := parseAttributes(attributesYAML)
	if err != nil {
		return nil, err
	}
	return &Server{data: d, opts: opts, attributes: attrs}, nil
}

func parseAttributes(doc []byte) (map[string]string, error) {
	attrs := make(map[string]string)
	if err := yaml.Unmarshal(doc, &attrs); err != nil {
		return nil, eris.Wrap(err, "server: parse attribute descriptions")
	}
	return attrs, nil
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/", s.handleIndex)
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(s.opts.StaticDir))))

	r.Route("/api", func(r chi.Router) {
		r.Get("/green_space_advanced", s.handleGreenSpace)
		r.Get("/statistics", s.handleStatistics)
		r.Get("/health", s.handleHealth)
	})
	return r
}

// Serve runs the server on ln until ctx is cancelled, then shuts it down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zap.L().Info("server: listening", zap.String("addr", ln.Addr().String()), zap.Int("records", s.data.Len()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server: serve")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		zap.L().Info("server: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return eris.Wrap(err, "server: shutdown")
		}
		return nil
	})
	return g.Wait()
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return eris.Wrapf(err, "server: listen on %s", addr)
	}
	return s.Serve(ctx, ln)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("server: request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encode response: "+err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	body, _ := json.Marshal(map[string]string{"error": msg})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
