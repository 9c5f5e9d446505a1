package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ppiankov/rulinstat/internal/logging"
	"github.com/ppiankov/rulinstat/internal/model"
)

func writeSource(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rulinwaishi.txt")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPipeline_Run(t *testing.T) {
	source := writeSource(t, "*Ch1\n南京南京\n*Ch2\n苏州")
	outDir := filepath.Join(t.TempDir(), "outputs")

	p := NewPipeline(testConfig(t), model.DefaultDictionary(), logging.Discard())
	result, err := p.Run(context.Background(), source, outDir)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	rows := result.Report.Chapters
	if len(rows) != 2 {
		t.Fatalf("Expected 2 chapters, got %d", len(rows))
	}
	if rows[0].Title != "Ch1" || rows[0].PlaceCounts["南京"] != 2 || rows[0].PlaceCounts["苏州"] != 0 || rows[0].TotalPlaceMentions != 2 {
		t.Errorf("Unexpected first row: %+v", rows[0])
	}
	if rows[1].Title != "Ch2" || rows[1].PlaceCounts["南京"] != 0 || rows[1].PlaceCounts["苏州"] != 1 || rows[1].TotalPlaceMentions != 1 {
		t.Errorf("Unexpected second row: %+v", rows[1])
	}

	m := result.Manifest
	if m.SegmentMode != model.SegmentByMarker || m.ChaptersFound != 2 || m.ChaptersUsed != 2 {
		t.Errorf("Unexpected manifest: %+v", m)
	}
	if m.RunID == "" {
		t.Error("Expected a run ID")
	}

	expected := append(append(append([]string{}, TableFiles...), ChartFiles...), MapFile, ManifestFile)
	for _, name := range expected {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Errorf("Expected %s to exist: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(outDir, LLMSummaryFile)); !os.IsNotExist(err) {
		t.Error("Expected no LLM summary without a provider")
	}

	onDisk, err := ReadManifest(outDir)
	if err != nil {
		t.Fatal(err)
	}
	if onDisk.RunID != m.RunID || len(onDisk.Files) != len(TableFiles)+len(ChartFiles)+1 {
		t.Errorf("Unexpected manifest on disk: %+v", onDisk)
	}
}

func TestPipeline_ChapterLimit(t *testing.T) {
	source := writeSource(t, "*一\n南京\n*二\n南京\n*三\n南京")
	cfg := testConfig(t)
	cfg.Analysis.ChapterLimit = 2

	result, err := NewPipeline(cfg, model.DefaultDictionary(), logging.Discard()).Run(context.Background(), source, t.TempDir())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Manifest.ChaptersFound != 3 || result.Manifest.ChaptersUsed != 2 {
		t.Errorf("Expected 2 of 3 chapters, got %+v", result.Manifest)
	}
	if result.Report.PlaceTotals[0].Total != 2 {
		t.Errorf("Expected 南京 total 2, got %d", result.Report.PlaceTotals[0].Total)
	}
}

func TestPipeline_WholeTextWarns(t *testing.T) {
	source := writeSource(t, "南京 no headers here")
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	cfg := testConfig(t)
	cfg.Output.Charts = false
	cfg.Output.Map = false

	outDir := t.TempDir()
	result, err := NewPipeline(cfg, model.DefaultDictionary(), logger).Run(context.Background(), source, outDir)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(result.Report.Chapters) != 1 || result.Report.Chapters[0].Title != "whole text" {
		t.Errorf("Expected single whole text chapter, got %+v", result.Report.Chapters)
	}
	if result.Manifest.SegmentMode != model.SegmentByWholeText {
		t.Errorf("Expected whole_text mode, got %s", result.Manifest.SegmentMode)
	}
	if !strings.Contains(logs.String(), `"level":"WARN"`) {
		t.Errorf("Expected a warning, got logs: %s", logs.String())
	}
	if _, err := os.Stat(filepath.Join(outDir, TotalsBarFile)); !os.IsNotExist(err) {
		t.Error("Expected no charts when disabled")
	}
	if _, err := os.Stat(filepath.Join(outDir, MapFile)); !os.IsNotExist(err) {
		t.Error("Expected no map when disabled")
	}
}

func TestPipeline_MissingInputWritesNothing(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "outputs")

	_, err := NewPipeline(testConfig(t), model.DefaultDictionary(), logging.Discard()).
		Run(context.Background(), filepath.Join(t.TempDir(), "missing.txt"), outDir)
	if err == nil {
		t.Fatal("Expected error for missing input")
	}
	if _, err := os.Stat(outDir); !os.IsNotExist(err) {
		t.Error("Expected no output directory")
	}
}

func TestPipeline_LLMSummary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			_, _ = w.Write([]byte(`{"models": []}`))
		case "/api/generate":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"model":    "qwen2.5:7b",
				"response": "南京 leads with 2 mentions.",
				"done":     true,
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	cfg := testConfig(t)
	cfg.Output.Charts = false
	cfg.LLM.Provider = "ollama"
	cfg.LLM.Model = "qwen2.5:7b"
	cfg.LLM.BaseURL = server.URL

	source := writeSource(t, "*Ch1\n南京南京\n*Ch2\n苏州")
	outDir := t.TempDir()
	result, err := NewPipeline(cfg, model.DefaultDictionary(), logging.Discard()).Run(context.Background(), source, outDir)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Manifest.LLM == nil || !result.Manifest.LLM.Enabled {
		t.Fatalf("Expected LLM summary in manifest, got %+v", result.Manifest.LLM)
	}
	data, err := os.ReadFile(filepath.Join(outDir, LLMSummaryFile))
	if err != nil {
		t.Fatalf("Expected %s: %v", LLMSummaryFile, err)
	}
	if !strings.Contains(string(data), "南京 leads with 2 mentions.") {
		t.Errorf("Unexpected summary file: %s", data)
	}
}

func TestPipeline_LLMFigureLeakLogsWarning(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			_, _ = w.Write([]byte(`{"models": []}`))
		case "/api/generate":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"model":    "qwen2.5:7b",
				"response": "南京 has 999 mentions.",
				"done":     true,
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	cfg := testConfig(t)
	cfg.Output.Charts = false
	cfg.Output.Map = false
	cfg.LLM.Provider = "ollama"
	cfg.LLM.Model = "qwen2.5:7b"
	cfg.LLM.BaseURL = server.URL
	cfg.LLM.StrictFigures = true

	var logs bytes.Buffer
	logger, err := logging.New(&logs, logging.Options{Level: "info", Format: "json"})
	if err != nil {
		t.Fatal(err)
	}

	source := writeSource(t, "*Ch1\n南京南京\n*Ch2\n苏州")
	result, err := NewPipeline(cfg, model.DefaultDictionary(), logger).Run(context.Background(), source, t.TempDir())
	if err != nil {
		t.Fatalf("LLM failure must not fail the run, got %v", err)
	}

	s := result.Manifest.LLM
	if s == nil || s.SummaryMD != "" || !strings.Contains(s.Error, "FIGURE LEAK") {
		t.Fatalf("Expected rejected summary in manifest, got %+v", s)
	}

	var found bool
	for _, line := range strings.Split(strings.TrimSpace(logs.String()), "\n") {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("Invalid log line %q: %v", line, err)
		}
		if entry["level"] == slog.LevelWarn.String() && strings.Contains(fmt.Sprint(entry["error"]), "FIGURE LEAK") {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected a WARN line carrying the figure leak, got:\n%s", logs.String())
	}
}

func TestPipeline_Analyze(t *testing.T) {
	source := writeSource(t, "*Ch1\n杭州")
	cfg := testConfig(t)
	cfg.Output.Charts = false
	cfg.Output.Map = false

	m, err := NewPipeline(cfg, model.DefaultDictionary(), logging.Discard()).Analyze(context.Background(), source, t.TempDir())
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if m.Source != source || m.ChaptersUsed != 1 {
		t.Errorf("Unexpected manifest: %+v", m)
	}
}

func TestRenderSummary(t *testing.T) {
	report, _ := scenarioReport(t)
	var buf bytes.Buffer

	RenderSummary(&buf, report, &model.Manifest{Source: "book.txt", ChaptersFound: 2, ChaptersUsed: 2, SegmentMode: model.SegmentByMarker})

	out := buf.String()
	for _, want := range []string{"book.txt", "2 used of 2 found", "Place totals", "南京", "Top character-place pairs", "杜少卿"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected summary to contain %q:\n%s", want, out)
		}
	}
}
