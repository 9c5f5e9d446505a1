package llm

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ppiankov/rulinstat/internal/model"
)

// Provider generates commentary from an aggregated report
type Provider interface {
	// Name returns the provider name
	Name() string

	// Summarize generates commentary for the request
	Summarize(ctx context.Context, req SummarizeRequest) (*SummarizeResponse, error)

	// IsAvailable checks if the provider is configured and reachable
	IsAvailable(ctx context.Context) bool
}

// SummarizeRequest is the input of one commentary call
type SummarizeRequest struct {
	Report model.Report

	// AllowedFigures is the set of integers the commentary may cite
	AllowedFigures map[int]bool

	Prompt    string // Empty means BuildPrompt
	Model     string
	MaxTokens int
}

// SummarizeResponse is the provider output
type SummarizeResponse struct {
	Summary      string
	CitedFigures []int
	Model        string
	TokensUsed   int
}

// Config holds provider configuration
type Config struct {
	Provider string // openai, ollama, "" (disabled)
	Model    string
	APIKey   string
	BaseURL  string
	Timeout  int // seconds

	// StrictFigures rejects commentary citing numbers absent from the tables
	StrictFigures bool

	MaxTokens int

	HTTPProxy  string
	HTTPSProxy string
}

// DefaultConfig returns the disabled default
func DefaultConfig() Config {
	return Config{
		Timeout:       30,
		StrictFigures: true,
		MaxTokens:     800,
	}
}

const systemPrompt = "You are a literary data assistant. Describe frequency tables of a classical Chinese novel without inventing numbers."

// BuildPrompt describes the report tables for the model
func BuildPrompt(report model.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, `You are commenting on place-name and character-name frequencies in the first %d chapters of a classical Chinese novel.

RULES:
1. Only cite numbers that appear in the tables below.
2. Counts are literal string matches per chapter; co-occurrence means both names appear somewhere in the same chapter, not in the same scene.
3. Do not speculate about plot events that the numbers do not show.

Place totals:
`, len(report.Chapters))

	for _, pt := range report.PlaceTotals {
		fmt.Fprintf(&b, "- %s: %d\n", pt.Place, pt.Total)
	}

	b.WriteString("\nChapters with the most place mentions:\n")
	for _, row := range topChapters(report.Chapters, 5) {
		fmt.Fprintf(&b, "- Chapter %d (%s): %d mentions\n", row.Index, row.Title, row.TotalPlaceMentions)
	}

	b.WriteString("\nCharacter-place co-occurrence (chapters):\n")
	m := report.Matrix
	lines := 0
	for ci, character := range m.Characters {
		for pi, place := range m.Places {
			if n := m.Cells[ci][pi]; n > 0 {
				fmt.Fprintf(&b, "- %s / %s: %d\n", character, place, n)
				lines++
			}
		}
	}
	if lines == 0 {
		b.WriteString("- (none)\n")
	}

	b.WriteString("\nWrite 3-5 sentences on where the narrative's attention falls.")
	return b.String()
}

// AllowedFigures collects every integer present in the report tables
func AllowedFigures(report model.Report) map[int]bool {
	allowed := map[int]bool{len(report.Chapters): true}

	for _, row := range report.Chapters {
		allowed[row.Index] = true
		allowed[row.TotalPlaceMentions] = true
		allowed[row.CharCount] = true
		for _, n := range row.PlaceCounts {
			allowed[n] = true
		}
		for _, n := range row.CharacterCounts {
			allowed[n] = true
		}
	}
	for _, pt := range report.PlaceTotals {
		allowed[pt.Total] = true
	}
	for _, cells := range report.Matrix.Cells {
		for _, n := range cells {
			allowed[n] = true
		}
	}

	return allowed
}

var figurePattern = regexp.MustCompile(`\d+`)

// extractFigures returns the distinct integers in text, ascending
func extractFigures(text string) []int {
	seen := make(map[int]bool)
	var out []int
	for _, m := range figurePattern.FindAllString(text, -1) {
		n, err := strconv.Atoi(m)
		if err != nil || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// verifyFigures fails on the first cited figure not in allowed
func verifyFigures(cited []int, allowed map[int]bool) error {
	for _, n := range cited {
		if !allowed[n] {
			return fmt.Errorf("FIGURE LEAK: LLM cited a number not in the tables: %d", n)
		}
	}
	return nil
}

func topChapters(rows []model.ChapterRow, n int) []model.ChapterRow {
	sorted := make([]model.ChapterRow, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TotalPlaceMentions > sorted[j].TotalPlaceMentions
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
