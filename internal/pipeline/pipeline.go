package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/rulinstat/internal/aggregate"
	"github.com/ppiankov/rulinstat/internal/cache"
	"github.com/ppiankov/rulinstat/internal/extract"
	"github.com/ppiankov/rulinstat/internal/llm"
	"github.com/ppiankov/rulinstat/internal/model"
	"github.com/ppiankov/rulinstat/internal/worker"
)

// Pipeline runs read, segment, count, aggregate and export for one source
type Pipeline struct {
	config     *model.Config
	dict       *model.Dictionary
	reader     *SourceReader
	segmenter  *extract.Segmenter
	aggregator *aggregate.Aggregator
	exporter   *Exporter
	summarizer *llm.Summarizer // Optional LLM summarizer (nil if disabled)
	logger     *slog.Logger
	now        func() time.Time
}

// NewPipeline creates a pipeline. One pipeline may run many sources
// concurrently; they share its rate limiter and source cache.
func NewPipeline(cfg *model.Config, dict *model.Dictionary, logger *slog.Logger) *Pipeline {
	var sourceCache cache.Cache
	if cfg.Cache.Enabled {
		sourceCache = cache.NewLayeredCache(cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Cache.DiskTTL)
	}
	limiter := worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)

	var summarizer *llm.Summarizer
	if cfg.LLM.Provider != "" {
		s, err := llm.NewSummarizer(llm.ConfigFromModel(cfg))
		if err != nil {
			logger.Warn("failed to initialize LLM provider", "provider", cfg.LLM.Provider, "error", err)
		} else {
			summarizer = s
		}
	}

	return &Pipeline{
		config:     cfg,
		dict:       dict,
		reader:     NewSourceReader(cfg, limiter, sourceCache),
		segmenter:  extract.NewSegmenter(cfg.Input.Marker),
		aggregator: aggregate.NewAggregator(dict),
		exporter:   NewExporter(cfg.Output.BOM),
		summarizer: summarizer,
		logger:     logger,
		now:        time.Now,
	}
}

// Result is the outcome of one run
type Result struct {
	Report   *model.Report
	Manifest *model.Manifest
	OutDir   string
}

// Run analyzes source and writes every artifact to outDir.
// Nothing is written when no chapter is selected.
func (p *Pipeline) Run(ctx context.Context, source, outDir string) (*Result, error) {
	logger := p.logger.With("source", source)

	// 1. Read
	text, err := p.reader.Read(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}

	// 2. Segment
	seg := p.segmenter.Segment(text)
	switch seg.Mode {
	case model.SegmentByWholeText:
		logger.Warn("no chapter headers or numbered headings found, treating input as one chapter")
	case model.SegmentByPattern:
		logger.Info("no marker headers found, split on numbered headings", "chapters", len(seg.Chapters))
	default:
		logger.Debug("split on marker headers", "chapters", len(seg.Chapters))
	}

	// 3. Count and aggregate
	selected := aggregate.Select(seg.Chapters, p.config.Analysis.ChapterLimit)
	report, err := p.aggregator.Aggregate(selected)
	if err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}

	manifest := &model.Manifest{
		RunID:          uuid.NewString(),
		Source:         source,
		GeneratedAt:    p.now().UTC(),
		SegmentMode:    seg.Mode,
		ChaptersFound:  len(seg.Chapters),
		ChaptersUsed:   len(selected),
		PlaceNames:     len(report.Places),
		CharacterNames: len(report.Characters),
	}

	// 4. Export tables, charts and map
	files, err := p.exporter.WriteTables(report, outDir)
	if err != nil {
		return nil, fmt.Errorf("export tables: %w", err)
	}
	manifest.Files = append(manifest.Files, files...)

	if p.config.Output.Charts {
		files, err := WriteCharts(report, outDir)
		if err != nil {
			return nil, fmt.Errorf("export charts: %w", err)
		}
		manifest.Files = append(manifest.Files, files...)
	}

	if p.config.Output.Map {
		name, err := WriteMap(report, p.dict, outDir)
		if err != nil {
			return nil, fmt.Errorf("export map: %w", err)
		}
		manifest.Files = append(manifest.Files, name)
	}

	// 5. Optional commentary (after export, never changes a table)
	if p.summarizer.IsEnabled() {
		summary, err := p.summarizer.GenerateSummary(ctx, *report)
		if err != nil {
			logger.Warn("LLM summary generation failed", "error", err)
		} else if summary != nil {
			manifest.LLM = summary
			if summary.Error != "" {
				logger.Warn("LLM summary not generated", "provider", summary.Provider, "error", summary.Error)
			} else {
				for _, w := range summary.Warnings {
					logger.Debug("llm", "note", w)
				}
			}
			if md := llm.RenderSeparateMarkdown(summary); md != "" {
				if err := p.exporter.WriteLLMSummary(md, outDir); err != nil {
					logger.Warn("failed to write LLM summary", "error", err)
				} else {
					manifest.Files = append(manifest.Files, LLMSummaryFile)
				}
			}
		}
	}

	// 6. Manifest
	if err := p.exporter.WriteManifest(manifest, outDir); err != nil {
		return nil, err
	}

	logger.Info("analysis complete",
		"chapters", manifest.ChaptersUsed,
		"mode", manifest.SegmentMode,
		"files", len(manifest.Files),
		"out", outDir,
	)

	return &Result{Report: report, Manifest: manifest, OutDir: outDir}, nil
}

// Analyze runs source into outDir and returns its manifest
func (p *Pipeline) Analyze(ctx context.Context, source, outDir string) (*model.Manifest, error) {
	result, err := p.Run(ctx, source, outDir)
	if err != nil {
		return nil, err
	}
	return result.Manifest, nil
}
