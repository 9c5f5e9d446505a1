package worker

import (
	"bufio"
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/ppiankov/rulinstat/internal/model"
)

// Analyzer runs one complete analysis of a source into an output directory
type Analyzer interface {
	Analyze(ctx context.Context, source, outDir string) (*model.Manifest, error)
}

// AnalyzeJob analyzes one source
type AnalyzeJob struct {
	Source   string
	OutDir   string
	Analyzer Analyzer
}

// Execute runs the analysis
func (j *AnalyzeJob) Execute(ctx context.Context) Result {
	manifest, err := j.Analyzer.Analyze(ctx, j.Source, j.OutDir)
	return &AnalyzeResult{
		Source:   j.Source,
		OutDir:   j.OutDir,
		Manifest: manifest,
		Error:    err,
	}
}

// AnalyzeResult is the outcome of one source in a batch
type AnalyzeResult struct {
	Source   string
	OutDir   string
	Manifest *model.Manifest
	Error    error
}

// GetError returns the analysis error
func (r *AnalyzeResult) GetError() error {
	return r.Error
}

// BatchProcessor analyzes many sources concurrently
type BatchProcessor struct {
	analyzer    Analyzer
	concurrency int
}

// NewBatchProcessor creates a batch processor
func NewBatchProcessor(analyzer Analyzer, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		analyzer:    analyzer,
		concurrency: concurrency,
	}
}

// ProcessSources analyzes every source into baseDir/<slug>; results follow input order
func (b *BatchProcessor) ProcessSources(ctx context.Context, sources []string, baseDir string) []*AnalyzeResult {
	if len(sources) == 0 {
		return []*AnalyzeResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	out := make([]*AnalyzeResult, len(sources))
	accepted := make([]int, 0, len(sources))
	for i, slug := range outputSlugs(sources) {
		job := &AnalyzeJob{
			Source:   sources[i],
			OutDir:   filepath.Join(baseDir, slug),
			Analyzer: b.analyzer,
		}

		if !pool.Submit(job) {
			err := ctx.Err()
			if err == nil {
				err = context.Canceled
			}
			out[i] = &AnalyzeResult{
				Source: job.Source,
				OutDir: job.OutDir,
				Error:  fmt.Errorf("not started: %w", err),
			}
			continue
		}
		accepted = append(accepted, i)
	}

	// Accepted jobs come back in submission order
	for n, r := range pool.Wait() {
		out[accepted[n]] = r.(*AnalyzeResult)
	}
	return out
}

// outputSlugs gives every source a distinct directory name. Collisions get a
// -N suffix that is itself checked against every name already taken.
func outputSlugs(sources []string) []string {
	used := make(map[string]bool, len(sources))
	slugs := make([]string, len(sources))
	for i, source := range sources {
		base := Slug(source)
		slug := base
		for n := 2; used[slug]; n++ {
			slug = fmt.Sprintf("%s-%d", base, n)
		}
		used[slug] = true
		slugs[i] = slug
	}
	return slugs
}

// ProcessFile reads a source list and analyzes it
func (b *BatchProcessor) ProcessFile(ctx context.Context, listPath, baseDir string) ([]*AnalyzeResult, error) {
	sources, err := ReadSourcesFromFile(listPath)
	if err != nil {
		return nil, fmt.Errorf("read sources: %w", err)
	}
	return b.ProcessSources(ctx, sources, baseDir), nil
}

// ReadSourcesFromFile reads one source (path or URL) per line.
// Blank lines and # comments are skipped; duplicates are dropped.
func ReadSourcesFromFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var sources []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || seen[line] {
			continue
		}
		seen[line] = true
		sources = append(sources, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}
	return sources, nil
}

// Slug turns a path or URL into a directory name.
// Letters (including CJK) and digits are kept; everything else becomes '-'.
func Slug(source string) string {
	name := source
	if u, err := url.Parse(source); err == nil && u.Host != "" {
		name = u.Host + u.Path
	} else {
		name = strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	}

	var b strings.Builder
	dash := false
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}

	slug := strings.TrimRight(b.String(), "-")
	if slug == "" {
		return "source"
	}
	if r := []rune(slug); len(r) > 80 {
		slug = strings.TrimRight(string(r[:80]), "-")
	}
	return slug
}
