package extract

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/rulinstat/internal/model"
	"golang.org/x/text/width"
)

const (
	// DefaultMarker starts a chapter header line
	DefaultMarker = '*'

	// WholeTextTitle is the sentinel title used when no chapter structure is found
	WholeTextTitle = "whole text"
)

// chapterPattern matches 第…回 headings (Chinese, ASCII or full-width numerals)
var chapterPattern = regexp.MustCompile(`第[一二三四五六七八九十百千零〇兩两0-9０-９]+回.*`)

// Segmentation is the result of splitting a text into chapters
type Segmentation struct {
	Chapters []model.Chapter
	Mode     model.SegmentMode
}

// Segmenter splits raw text into chapters
type Segmenter struct {
	marker rune
}

// NewSegmenter creates a segmenter for the given header marker.
// Only the first rune of marker is used; an empty marker means '*'.
func NewSegmenter(marker string) *Segmenter {
	r, _ := utf8.DecodeRuneInString(marker)
	if r == utf8.RuneError {
		r = DefaultMarker
	}
	return &Segmenter{marker: foldRune(r)}
}

// Segment splits raw into chapters: by header marker lines, then by the
// numbering pattern, then as a single whole-text chapter.
func (s *Segmenter) Segment(raw string) Segmentation {
	text := normalizeNewlines(raw)
	lines := strings.Split(text, "\n")

	var headers []int
	for i, line := range lines {
		if s.isHeader(line) {
			headers = append(headers, i)
		}
	}

	if len(headers) > 0 {
		return Segmentation{Chapters: s.byMarker(lines, headers), Mode: model.SegmentByMarker}
	}

	if chapters := byPattern(text); len(chapters) > 0 {
		return Segmentation{Chapters: chapters, Mode: model.SegmentByPattern}
	}

	return Segmentation{
		Chapters: []model.Chapter{{Index: 1, Title: WholeTextTitle, Body: text}},
		Mode:     model.SegmentByWholeText,
	}
}

func (s *Segmenter) byMarker(lines []string, headers []int) []model.Chapter {
	chapters := make([]model.Chapter, 0, len(headers))

	for i, start := range headers {
		end := len(lines)
		if i+1 < len(headers) {
			end = headers[i+1]
		}

		title := s.stripMarkers(strings.TrimSpace(lines[start]))
		if title == "" {
			title = fmt.Sprintf("Chapter %d", i+1)
		}

		chapters = append(chapters, model.Chapter{
			Index: i + 1,
			Title: title,
			Body:  strings.TrimSpace(strings.Join(lines[start+1:end], "\n")),
		})
	}

	return chapters
}

func byPattern(text string) []model.Chapter {
	matches := chapterPattern.FindAllStringIndex(text, -1)
	chapters := make([]model.Chapter, 0, len(matches))

	for i, m := range matches {
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		chapters = append(chapters, model.Chapter{
			Index: i + 1,
			Title: strings.TrimSpace(text[m[0]:m[1]]),
			Body:  strings.TrimSpace(text[m[1]:end]),
		})
	}

	return chapters
}

// isHeader reports whether the first non-space character is the marker
func (s *Segmenter) isHeader(line string) bool {
	trimmed := strings.TrimSpace(line)
	r, _ := utf8.DecodeRuneInString(trimmed)
	return trimmed != "" && foldRune(r) == s.marker
}

func (s *Segmenter) stripMarkers(line string) string {
	for line != "" {
		r, size := utf8.DecodeRuneInString(line)
		if foldRune(r) != s.marker {
			break
		}
		line = line[size:]
	}
	return strings.TrimSpace(line)
}

// foldRune maps full-width forms (e.g. '＊') to their narrow equivalent
func foldRune(r rune) rune {
	folded, _ := utf8.DecodeRuneInString(width.Fold.String(string(r)))
	return folded
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
