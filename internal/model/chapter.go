package model

// Chapter is one segment of the source text
type Chapter struct {
	Index int    `json:"index"` // 1-based position in the source
	Title string `json:"title"`
	Body  string `json:"-"`
}

// SegmentMode records which rule produced the chapters
type SegmentMode string

const (
	SegmentByMarker    SegmentMode = "marker"     // Lines starting with the header marker
	SegmentByPattern   SegmentMode = "pattern"    // 第N回 numbering pattern
	SegmentByWholeText SegmentMode = "whole_text" // Sentinel: the whole text is one chapter
)

// Counts maps a normalized entity name to its occurrence count
type Counts map[string]int

// Sum returns the total of all counts
func (c Counts) Sum() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

// ChapterCounts holds the place and character counts of one chapter
type ChapterCounts struct {
	Places     Counts
	Characters Counts
}
