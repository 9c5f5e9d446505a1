package dashboard

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/rulinstat/internal/cache"
	"github.com/ppiankov/rulinstat/internal/logging"
	"github.com/ppiankov/rulinstat/internal/pipeline"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func get(t *testing.T, srv *Server, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	body, _ := io.ReadAll(rec.Result().Body)
	return rec.Code, string(body)
}

func TestIndex_AllMissing(t *testing.T) {
	srv := NewServer(t.TempDir(), "测试", logging.Discard())

	code, body := get(t, srv, "/")
	if code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	if !strings.Contains(body, "<title>测试</title>") {
		t.Error("Expected page title")
	}
	for _, name := range append(append([]string{}, pipeline.ChartFiles...), pipeline.MapFile, pipeline.PlaceTotalsFile) {
		if !strings.Contains(body, "未找到 "+name) {
			t.Errorf("Expected placeholder for %s", name)
		}
	}
	if strings.Contains(body, "<iframe") {
		t.Error("Expected no iframes when nothing exists")
	}
}

func TestIndex_MissingDirectory(t *testing.T) {
	srv := NewServer(filepath.Join(t.TempDir(), "nope"), "t", logging.Discard())
	if code, _ := get(t, srv, "/"); code != http.StatusOK {
		t.Fatalf("Expected 200 for a missing output dir, got %d", code)
	}
}

func TestIndex_PartialArtifacts(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, pipeline.TotalsBarFile, "<html>echarts</html>")
	writeFile(t, dir, pipeline.PlaceTotalsFile, "\ufeffplace,total_mentions\n南京,2\n苏州,1\n")
	writeFile(t, dir, pipeline.LLMSummaryFile, "# LLM Summary\n南京 <b>leads</b>")

	srv := NewServer(dir, "t", logging.Discard())
	code, body := get(t, srv, "/")
	if code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}

	if !strings.Contains(body, `src="/artifacts/totals_bar.html"`) {
		t.Error("Expected iframe for present chart")
	}
	if !strings.Contains(body, "未找到 "+pipeline.ChapterHeatmapFile) {
		t.Error("Expected placeholder for missing chart")
	}
	if !strings.Contains(body, "rulinstat-table") || !strings.Contains(body, "南京") {
		t.Error("Expected rendered place totals table")
	}
	if !strings.Contains(body, "未找到 "+pipeline.MatrixFile) {
		t.Error("Expected placeholder for missing table")
	}
	if !strings.Contains(body, "&lt;b&gt;leads&lt;/b&gt;") {
		t.Error("Expected escaped LLM summary")
	}
}

func TestIndex_Manifest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, pipeline.ManifestFile, `{"run_id":"r1","source":"rulinwaishi.txt","generated_at":"2026-01-02T03:04:05Z","segment_mode":"marker","chapters_found":56,"chapters_used":20}`)

	_, body := get(t, NewServer(dir, "t", logging.Discard()), "/")
	if !strings.Contains(body, "rulinwaishi.txt") || !strings.Contains(body, "20 / 56") {
		t.Errorf("Expected manifest details in page")
	}
}

func TestArtifact(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, pipeline.MapFile, "<html>map</html>")
	writeFile(t, dir, "secret.txt", "secret")
	srv := NewServer(dir, "t", logging.Discard())

	tests := []struct {
		path string
		code int
	}{
		{"/artifacts/map.html", http.StatusOK},
		{"/artifacts/totals_bar.html", http.StatusNotFound},
		{"/artifacts/secret.txt", http.StatusNotFound},
		{"/nothing", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			code, body := get(t, srv, tt.path)
			if code != tt.code {
				t.Errorf("Expected %d, got %d", tt.code, code)
			}
			if strings.Contains(body, "secret") {
				t.Error("Leaked a file outside the allowlist")
			}
		})
	}
}

func TestTable(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, pipeline.PlaceTotalsFile, "place,total_mentions\n南京,2\n")
	srv := NewServer(dir, "t", logging.Discard())

	code, body := get(t, srv, "/tables/place_totals.csv")
	if code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	if !strings.Contains(body, "<table") || !strings.Contains(body, "南京") || !strings.Contains(body, "total_mentions") {
		t.Errorf("Unexpected table page: %s", body)
	}

	if code, _ := get(t, srv, "/tables/character_place_matrix.csv"); code != http.StatusNotFound {
		t.Errorf("Expected 404 for missing table, got %d", code)
	}
	if code, _ := get(t, srv, "/tables/manifest.json"); code != http.StatusNotFound {
		t.Errorf("Expected 404 for non-table artifact, got %d", code)
	}
}

// startWatch runs the server's watch loop for the duration of the test
func startWatch(t *testing.T, srv *Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.watch(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

func TestTable_NotCachedWithoutWatcher(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, pipeline.PlaceTotalsFile, "place,total_mentions\n南京,2\n")
	srv := NewServer(dir, "t", logging.Discard())

	if _, body := get(t, srv, "/tables/place_totals.csv"); !strings.Contains(body, "南京") {
		t.Fatal("Expected first render")
	}
	if srv.tables.Len() != 0 {
		t.Fatalf("Expected no cached table without a watcher, got %d", srv.tables.Len())
	}

	writeFile(t, dir, pipeline.PlaceTotalsFile, "place,total_mentions\n杭州,5\n")
	if _, body := get(t, srv, "/tables/place_totals.csv"); !strings.Contains(body, "杭州") {
		t.Errorf("Expected fresh render, got %s", body)
	}
}

func TestWatcher_InvalidatesTable(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, pipeline.PlaceTotalsFile, "place,total_mentions\n南京,2\n")
	srv := NewServer(dir, "t", logging.Discard())

	startWatch(t, srv)
	waitFor(t, "watcher", srv.watching.Load)

	if _, body := get(t, srv, "/tables/place_totals.csv"); !strings.Contains(body, "南京") {
		t.Fatal("Expected first render")
	}
	if srv.tables.Len() != 1 {
		t.Fatalf("Expected 1 cached table while watching, got %d", srv.tables.Len())
	}

	writeFile(t, dir, pipeline.PlaceTotalsFile, "place,total_mentions\n杭州,5\n")
	waitFor(t, "invalidation", func() bool {
		_, ok := srv.tables.Get(cache.TableKey(pipeline.PlaceTotalsFile))
		return !ok
	})

	if _, body := get(t, srv, "/tables/place_totals.csv"); !strings.Contains(body, "杭州") {
		t.Errorf("Expected fresh render after change, got %s", body)
	}
}

func TestWatch_DirectoryCreatedLater(t *testing.T) {
	orig := watchRetryInterval
	watchRetryInterval = 20 * time.Millisecond
	t.Cleanup(func() { watchRetryInterval = orig })

	dir := filepath.Join(t.TempDir(), "outputs")
	srv := NewServer(dir, "t", logging.Discard())
	startWatch(t, srv)

	time.Sleep(50 * time.Millisecond)
	if srv.watching.Load() {
		t.Fatal("Expected no watcher while the directory is missing")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, dir, pipeline.PlaceTotalsFile, "place,total_mentions\n南京,2\n")
	waitFor(t, "watcher after directory creation", srv.watching.Load)

	if _, body := get(t, srv, "/tables/place_totals.csv"); !strings.Contains(body, "南京") {
		t.Fatal("Expected first render")
	}

	writeFile(t, dir, pipeline.PlaceTotalsFile, "place,total_mentions\n杭州,5\n")
	waitFor(t, "invalidation", func() bool {
		_, ok := srv.tables.Get(cache.TableKey(pipeline.PlaceTotalsFile))
		return !ok
	})

	if _, body := get(t, srv, "/tables/place_totals.csv"); !strings.Contains(body, "杭州") {
		t.Errorf("Expected fresh render after change, got %s", body)
	}
}

func TestNewWatcher_MissingDir(t *testing.T) {
	if _, err := NewWatcher(filepath.Join(t.TempDir(), "nope"), cache.NewMemoryCache(time.Minute, time.Minute), logging.Discard()); err == nil {
		t.Fatal("Expected error for missing directory")
	}
}

func TestHealth(t *testing.T) {
	code, body := get(t, NewServer(t.TempDir(), "t", logging.Discard()), "/health")
	if code != http.StatusOK || strings.TrimSpace(body) != "ok" {
		t.Errorf("Unexpected health response: %d %q", code, body)
	}
}

func TestCSVToHTML_Escapes(t *testing.T) {
	html, err := csvToHTML([]byte("name\n<script>x</script>\n"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(html, "<script>") {
		t.Error("Expected cell text to be escaped")
	}
}

func TestListenAndServe_Shutdown(t *testing.T) {
	srv := NewServer(t.TempDir(), "t", logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Server did not shut down")
	}
}
