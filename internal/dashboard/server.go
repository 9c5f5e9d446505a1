package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"sync/atomic"
	"time"

	"github.com/ppiankov/rulinstat/internal/cache"
	"github.com/ppiankov/rulinstat/internal/pipeline"
)

// artifacts is the allowlist of files served from the output directory
var artifacts = slices.Concat(
	pipeline.ChartFiles,
	[]string{pipeline.MapFile},
	pipeline.TableFiles,
	[]string{pipeline.LLMSummaryFile, pipeline.ManifestFile},
)

// watchRetryInterval is how often a missing output directory is checked for
var watchRetryInterval = 5 * time.Second

// Server is the read-only dashboard over one output directory
type Server struct {
	dir    string
	title  string
	logger *slog.Logger

	tables   *cache.MemoryCache
	watching atomic.Bool // rendered tables are cached only while set
	mux      *http.ServeMux
}

// NewServer creates a dashboard for dir
func NewServer(dir, title string, logger *slog.Logger) *Server {
	s := &Server{
		dir:    dir,
		title:  title,
		logger: logger,
		tables: cache.NewMemoryCache(10*time.Minute, 10*time.Minute),
		mux:    http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /artifacts/{name}", s.handleArtifact)
	s.mux.HandleFunc("GET /tables/{name}", s.handleTable)
	s.mux.HandleFunc("GET /health", s.handleHealth)

	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves on addr until ctx is cancelled, watching the output
// directory to invalidate rendered tables.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ctx, cancel := context.WithCancel(ctx)
	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		s.watch(ctx)
	}()
	defer func() {
		cancel()
		<-watchDone
	}()

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("dashboard listen: %w", err)
	}

	server := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("dashboard listening", "address", listener.Addr().String(), "dir", s.dir)
	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("dashboard serve: %w", err)
	}
	return nil
}

// watch keeps a watcher on the output directory until ctx is done. While the
// directory is missing it retries every watchRetryInterval and tables are
// rendered without caching.
func (s *Server) watch(ctx context.Context) {
	warned := false
	for {
		w, err := NewWatcher(s.dir, s.tables, s.logger)
		if err == nil {
			w.Start(ctx)
			// Anything rendered before the watcher existed may be stale.
			s.tables.DeletePrefix(cache.TableKey(""))
			s.watching.Store(true)
			if warned {
				s.logger.Info("table cache enabled", "dir", s.dir)
			}

			<-ctx.Done()
			s.watching.Store(false)
			w.Stop()
			return
		}

		if !warned {
			s.logger.Warn("table cache disabled until the output directory can be watched", "dir", s.dir, "error", err)
			warned = true
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(watchRetryInterval):
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if !slices.Contains(artifacts, name) {
		http.NotFound(w, r)
		return
	}

	path := filepath.Join(s.dir, name)
	if _, err := os.Stat(path); err != nil {
		http.NotFound(w, r)
		return
	}

	switch filepath.Ext(name) {
	case ".md":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	case ".csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	}
	http.ServeFile(w, r, path)
}

func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if !slices.Contains(pipeline.TableFiles, name) {
		http.NotFound(w, r)
		return
	}

	table, err := s.renderTable(name)
	if errors.Is(err, os.ErrNotExist) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		s.logger.Error("render table failed", "table", name, "error", err)
		http.Error(w, "failed to render table", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = fmt.Fprintf(w, "<!DOCTYPE html><html><head><meta charset=\"utf-8\"><title>%s</title><style>%s</style></head><body>%s</body></html>",
		name, tableCSS, table)
}

func (s *Server) exists(name string) bool {
	info, err := os.Stat(filepath.Join(s.dir, name))
	return err == nil && !info.IsDir()
}
