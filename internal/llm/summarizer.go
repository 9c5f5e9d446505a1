package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/rulinstat/internal/model"
)

// Summarizer produces optional commentary; it never alters the report
type Summarizer struct {
	provider Provider
	config   Config
}

// NewSummarizer creates a summarizer; an empty provider disables it
func NewSummarizer(config Config) (*Summarizer, error) {
	provider, err := NewProvider(config)
	if err != nil {
		return nil, err
	}
	return &Summarizer{provider: provider, config: config}, nil
}

// IsEnabled reports whether a provider is configured
func (s *Summarizer) IsEnabled() bool {
	return s != nil && s.provider != nil
}

// ProviderName returns the provider name, or "" when disabled
func (s *Summarizer) ProviderName() string {
	if !s.IsEnabled() {
		return ""
	}
	return s.provider.Name()
}

// GenerateSummary returns commentary for report. Provider failures are
// reported as warnings on the returned summary, not as errors.
func (s *Summarizer) GenerateSummary(ctx context.Context, report model.Report) (*model.LLMSummary, error) {
	if !s.IsEnabled() {
		return nil, nil
	}

	summary := &model.LLMSummary{
		Provider:      s.provider.Name(),
		Model:         s.config.Model,
		StrictFigures: s.config.StrictFigures,
	}

	if !s.provider.IsAvailable(ctx) {
		summary.Error = fmt.Sprintf("LLM provider %s is not available", s.provider.Name())
		summary.Warnings = append(summary.Warnings, summary.Error)
		return summary, nil
	}
	summary.Enabled = true

	allowed := AllowedFigures(report)
	resp, err := s.provider.Summarize(ctx, SummarizeRequest{
		Report:         report,
		AllowedFigures: allowed,
		Model:          s.config.Model,
		MaxTokens:      s.config.MaxTokens,
	})
	if err != nil {
		summary.Error = fmt.Sprintf("LLM summary generation failed: %v", err)
		summary.Warnings = append(summary.Warnings, summary.Error)
		return summary, nil
	}

	summary.SummaryMD = resp.Summary
	if resp.Model != "" {
		summary.Model = resp.Model
	}
	summary.Warnings = append(summary.Warnings, fmt.Sprintf("Tokens used: %d", resp.TokensUsed))
	if s.config.StrictFigures {
		summary.Warnings = append(summary.Warnings, fmt.Sprintf("Verified %d cited figures against the tables", len(resp.CitedFigures)))
	}

	return summary, nil
}

// RenderSeparateMarkdown renders the commentary file; empty when disabled
func RenderSeparateMarkdown(summary *model.LLMSummary) string {
	if summary == nil || !summary.Enabled {
		return ""
	}

	var b strings.Builder
	b.WriteString("# LLM Summary\n\n")
	b.WriteString("> GENERATED CONTENT. All counts in the exported tables were determined independently of this text.\n\n")
	fmt.Fprintf(&b, "- **Provider:** %s\n", summary.Provider)
	fmt.Fprintf(&b, "- **Model:** %s\n", summary.Model)
	fmt.Fprintf(&b, "- **Strict Figures Mode:** %t\n\n", summary.StrictFigures)

	if summary.SummaryMD == "" {
		b.WriteString("_No summary generated._\n")
	} else {
		b.WriteString(summary.SummaryMD)
		b.WriteString("\n")
	}

	if len(summary.Warnings) > 0 {
		b.WriteString("\n## Notes\n\n")
		for _, w := range summary.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}

	return b.String()
}
