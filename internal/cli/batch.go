package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/rulinstat/internal/model"
	"github.com/ppiankov/rulinstat/internal/pipeline"
	"github.com/ppiankov/rulinstat/internal/worker"
)

var batchTimeout time.Duration

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Analyze multiple sources from a file in parallel",
	Long: `Batch analyzes multiple sources concurrently:
- Read sources from input file (one path or URL per line, # for comments)
- Process sources in parallel with configurable worker count
- Remote sources share one per-host rate limiter and one cache
- Write each source's artifacts to its own directory under --output-dir

Example:
  rulinstat batch sources.txt
  rulinstat batch sources.txt --concurrency 8 --output-dir ./runs
  rulinstat batch sources.txt --limit 0 --timeout 20m`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	defaults := model.DefaultConfig()

	// Concurrency flags
	batchCmd.Flags().Int("concurrency", defaults.Concurrency.Workers, "number of concurrent workers")
	batchCmd.Flags().String("output-dir", "./rulinstat-batch", "base directory for per-source outputs")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 10*time.Minute, "total timeout for batch processing")

	// Same analysis knobs as analyze
	batchCmd.Flags().IntP("limit", "k", defaults.Analysis.ChapterLimit, "number of leading chapters to analyze (0 = all)")
	batchCmd.Flags().String("encoding", defaults.Input.Encoding, "source encoding (utf-8, gb18030, big5)")
	batchCmd.Flags().String("dict", "", "entity dictionary YAML (default: built-in table)")
	batchCmd.Flags().BoolVar(&noBOM, "no-bom", false, "write CSV tables without a UTF-8 BOM")
	batchCmd.Flags().BoolVar(&noCharts, "no-charts", false, "skip chart documents")
	batchCmd.Flags().BoolVar(&noMap, "no-map", false, "skip the map document")
	batchCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable cache (force fresh fetch)")
	addLLMFlags(batchCmd)

	bindFlag(batchCmd, "concurrency", "concurrency.workers")
	bindFlag(batchCmd, "limit", "analysis.chapter_limit")
	bindFlag(batchCmd, "encoding", "input.encoding")
	bindFlag(batchCmd, "dict", "analysis.dictionary")
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]
	outputDir, _ := cmd.Flags().GetString("output-dir")

	applyOutputFlags(cfg)
	if err := applyLLMFlags(cmd, cfg); err != nil {
		return err
	}

	dict, err := model.LoadDictionaryFor(cfg)
	if err != nil {
		return fmt.Errorf("load dictionary: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	workers := cfg.Concurrency.Workers

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Rulinstat Batch Processing\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", workers)
	fmt.Fprintf(os.Stderr, "  Chapters:     %s\n", describeLimit(cfg.Analysis.ChapterLimit))
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	if cfg.LLM.Provider != "" {
		fmt.Fprintf(os.Stderr, "  LLM:          %s/%s\n", cfg.LLM.Provider, cfg.LLM.Model)
	}
	fmt.Fprintf(os.Stderr, "\n")

	// Create output directory
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	// One pipeline shares its limiter and cache across workers
	p := pipeline.NewPipeline(cfg, dict, logger)
	processor := worker.NewBatchProcessor(p, workers)

	fmt.Fprintf(os.Stderr, "⚙️  Processing sources with %d workers...\n", workers)
	fmt.Fprintf(os.Stderr, "\n")

	results, err := processor.ProcessFile(ctx, file, outputDir)
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}

	successCount := 0
	failureCount := 0

	for _, result := range results {
		if result.Error != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Source, result.Error)
			continue
		}

		successCount++
		fmt.Fprintf(os.Stderr, "✓ %s (%d chapters, %s) → %s\n",
			result.Source, result.Manifest.ChaptersUsed, result.Manifest.SegmentMode, result.OutDir)
	}

	// Summary
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d sources\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", successCount)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "  Output:    %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	if failureCount > 0 && successCount == 0 {
		return fmt.Errorf("all %d sources failed", failureCount)
	}

	return nil
}
