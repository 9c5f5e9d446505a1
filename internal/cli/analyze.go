package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/rulinstat/internal/model"
	"github.com/ppiankov/rulinstat/internal/pipeline"
)

var (
	timeout     time.Duration
	noBOM       bool
	noCharts    bool
	noMap       bool
	noCache     bool
	llmEnabled  bool
	llmProvider string
	llmModel    string
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze [source]",
	Short: "Count place and character names per chapter",
	Long: `Analyze reads one text and exports frequency tables, charts and a map:
- Read the source (local file or http(s) URL; utf-8, gb18030 or big5)
- Split it into chapters on marker headers or numbered headings
- Count every spelling variant in the entity dictionary per chapter
- Export chapter_place_frequency.csv, place_totals.csv,
  character_place_cooccurrence.csv and character_place_matrix.csv plus
  HTML charts, a map and manifest.json

Counts are literal substring matches. Co-occurrence means both names appear
in the same chapter, not in the same scene.

Example:
  rulinstat analyze rulinwaishi.txt
  rulinstat analyze rulinwaishi.txt --limit 0 --out ./all-chapters
  rulinstat analyze https://example.org/rulinwaishi.txt --encoding gb18030
  rulinstat analyze rulinwaishi.txt --llm --llm-provider ollama --llm-model qwen2.5:7b`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	defaults := model.DefaultConfig()

	analyzeCmd.Flags().StringP("out", "o", defaults.Output.Dir, "output directory")
	analyzeCmd.Flags().IntP("limit", "k", defaults.Analysis.ChapterLimit, "number of leading chapters to analyze (0 = all)")
	analyzeCmd.Flags().String("encoding", defaults.Input.Encoding, "source encoding (utf-8, gb18030, big5)")
	analyzeCmd.Flags().String("marker", defaults.Input.Marker, "chapter header marker glyph")
	analyzeCmd.Flags().String("dict", "", "entity dictionary YAML (default: built-in table)")
	analyzeCmd.Flags().String("ua", defaults.HTTP.UserAgent, "HTTP User-Agent")
	analyzeCmd.Flags().String("http-proxy", "", "HTTP proxy URL (overrides HTTP_PROXY env var)")
	analyzeCmd.Flags().String("https-proxy", "", "HTTPS proxy URL (overrides HTTPS_PROXY env var)")
	analyzeCmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "total timeout for the run")
	analyzeCmd.Flags().BoolVar(&noBOM, "no-bom", false, "write CSV tables without a UTF-8 BOM")
	analyzeCmd.Flags().BoolVar(&noCharts, "no-charts", false, "skip chart documents")
	analyzeCmd.Flags().BoolVar(&noMap, "no-map", false, "skip the map document")
	analyzeCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable cache (force fresh fetch)")
	addLLMFlags(analyzeCmd)

	bindFlag(analyzeCmd, "out", "output.dir")
	bindFlag(analyzeCmd, "limit", "analysis.chapter_limit")
	bindFlag(analyzeCmd, "encoding", "input.encoding")
	bindFlag(analyzeCmd, "marker", "input.marker")
	bindFlag(analyzeCmd, "dict", "analysis.dictionary")
	bindFlag(analyzeCmd, "ua", "http.user_agent")
	bindFlag(analyzeCmd, "http-proxy", "http.http_proxy")
	bindFlag(analyzeCmd, "https-proxy", "http.https_proxy")
}

// addLLMFlags registers the commentary flags shared by analyze and batch
func addLLMFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&llmEnabled, "llm", false, "enable LLM commentary")
	cmd.Flags().StringVar(&llmProvider, "llm-provider", "openai", "LLM provider (openai, ollama)")
	cmd.Flags().StringVar(&llmModel, "llm-model", "gpt-4o-mini", "LLM model name")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	source := cfg.Input.Path
	if len(args) == 1 {
		source = args[0]
	}

	applyOutputFlags(cfg)
	if err := applyLLMFlags(cmd, cfg); err != nil {
		return err
	}

	dict, err := model.LoadDictionaryFor(cfg)
	if err != nil {
		return fmt.Errorf("load dictionary: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if cfg.Output.Verbose {
		fmt.Fprintf(os.Stderr, "⚙️  Analyzing %s (chapters: %s)\n", source, describeLimit(cfg.Analysis.ChapterLimit))
		if cfg.LLM.Provider != "" {
			fmt.Fprintf(os.Stderr, "⚙️  LLM commentary: %s/%s\n", cfg.LLM.Provider, cfg.LLM.Model)
		}
	}

	p := pipeline.NewPipeline(cfg, dict, logger)
	result, err := p.Run(ctx, source, cfg.Output.Dir)
	if err != nil {
		return fmt.Errorf("analyze failed: %w", err)
	}

	pipeline.RenderSummary(os.Stdout, result.Report, result.Manifest)

	fmt.Fprintf(os.Stderr, "\n")
	for _, name := range result.Manifest.Files {
		fmt.Fprintf(os.Stderr, "✓ Wrote %s\n", filepath.Join(result.OutDir, name))
	}
	fmt.Fprintf(os.Stderr, "✓ Wrote %s\n", filepath.Join(result.OutDir, pipeline.ManifestFile))

	if result.Manifest.SegmentMode == model.SegmentByWholeText {
		fmt.Fprintf(os.Stderr, "⚠️  No chapter headers found; the whole input was counted as one chapter\n")
	}
	if s := result.Manifest.LLM; s != nil && s.Error != "" {
		fmt.Fprintf(os.Stderr, "⚠️  %s\n", s.Error)
	}

	return nil
}

// applyOutputFlags turns the negative output flags into configuration
func applyOutputFlags(c *model.Config) {
	if noBOM {
		c.Output.BOM = false
	}
	if noCharts {
		c.Output.Charts = false
	}
	if noMap {
		c.Output.Map = false
	}
	if noCache {
		c.Cache.Enabled = false
	}
}

// applyLLMFlags enables commentary from flags and resolves credentials from the environment
func applyLLMFlags(cmd *cobra.Command, c *model.Config) error {
	if llmEnabled {
		if cmd.Flags().Changed("llm-provider") || c.LLM.Provider == "" {
			c.LLM.Provider = llmProvider
		}
		if cmd.Flags().Changed("llm-model") || c.LLM.Model == "" {
			c.LLM.Model = llmModel
		}
	}

	return resolveLLMEnv(c)
}

// resolveLLMEnv fills provider credentials from well-known environment variables
func resolveLLMEnv(c *model.Config) error {
	switch c.LLM.Provider {
	case "":
		return nil
	case "openai":
		if c.LLM.APIKey == "" {
			c.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		}
		if c.LLM.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
	case "ollama":
		// Ollama doesn't need an API key
		if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" && c.LLM.BaseURL == "" {
			c.LLM.BaseURL = baseURL
		}
	default:
		return fmt.Errorf("unknown LLM provider: %s (supported: openai, ollama)", c.LLM.Provider)
	}
	return nil
}

func describeLimit(limit int) string {
	if limit <= 0 {
		return "all"
	}
	return fmt.Sprintf("first %d", limit)
}
