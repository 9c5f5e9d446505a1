package model

import "time"

// Report is the aggregated result of one analysis run
type Report struct {
	Places     []string `json:"places"`     // Normalized place names, column order
	Characters []string `json:"characters"` // Canonical character names, row order

	Chapters      []ChapterRow    `json:"chapters"`
	PlaceTotals   []PlaceTotal    `json:"place_totals"`
	Cooccurrences []Cooccurrence  `json:"cooccurrences"`
	Matrix        CharacterMatrix `json:"matrix"`
}

// ChapterRow is one row of the chapter frequency table
type ChapterRow struct {
	Index              int    `json:"chapter_index"`
	Title              string `json:"chapter_title"`
	PlaceCounts        Counts `json:"place_counts"`
	CharacterCounts    Counts `json:"character_counts"`
	TotalPlaceMentions int    `json:"total_place_mentions"`
	CharCount          int    `json:"char_count"` // Body length in runes
}

// PlaceTotal is a place's mention count across all selected chapters
type PlaceTotal struct {
	Place string `json:"place"`
	Total int    `json:"total_mentions"`
}

// Cooccurrence records a place and a character both mentioned in a chapter.
// It is a chapter-level proxy, not a syntactic relation.
type Cooccurrence struct {
	ChapterIndex      int    `json:"chapter_index"`
	ChapterTitle      string `json:"chapter_title"`
	Place             string `json:"place"`
	Character         string `json:"character"`
	PlaceMentions     int    `json:"place_mentions"`
	CharacterMentions int    `json:"character_mentions"`
}

// CharacterMatrix counts, per (character, place), the chapters in which they co-occur
type CharacterMatrix struct {
	Characters []string `json:"characters"`
	Places     []string `json:"places"`
	Cells      [][]int  `json:"cells"` // Cells[character][place]
}

// Cell returns the matrix value for a character and place
func (m CharacterMatrix) Cell(character, place string) int {
	ci, pi := indexOf(m.Characters, character), indexOf(m.Places, place)
	if ci < 0 || pi < 0 {
		return 0
	}
	return m.Cells[ci][pi]
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

// Manifest describes one export run
type Manifest struct {
	RunID          string      `json:"run_id"`
	Source         string      `json:"source"`
	GeneratedAt    time.Time   `json:"generated_at"`
	SegmentMode    SegmentMode `json:"segment_mode"`
	ChaptersFound  int         `json:"chapters_found"`
	ChaptersUsed   int         `json:"chapters_used"`
	PlaceNames     int         `json:"place_names"`
	CharacterNames int         `json:"character_names"`
	Files          []string    `json:"files"`
	LLM            *LLMSummary `json:"llm,omitempty"`
}

// LLMSummary contains optional LLM-generated commentary.
// It never changes any exported table.
type LLMSummary struct {
	Enabled       bool     `json:"enabled"`
	Provider      string   `json:"provider,omitempty"`
	Model         string   `json:"model,omitempty"`
	StrictFigures bool     `json:"strict_figures"`
	SummaryMD     string   `json:"summary_md,omitempty"`
	Error         string   `json:"error,omitempty"` // why no summary was produced
	Warnings      []string `json:"warnings,omitempty"`
}
