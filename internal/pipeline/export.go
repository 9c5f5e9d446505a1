package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/ppiankov/rulinstat/internal/model"
)

// Output file names
const (
	ChapterFrequencyFile = "chapter_place_frequency.csv"
	PlaceTotalsFile      = "place_totals.csv"
	CooccurrenceFile     = "character_place_cooccurrence.csv"
	MatrixFile           = "character_place_matrix.csv"
	ManifestFile         = "manifest.json"
	LLMSummaryFile       = "summary.llm.md"
)

// TableFiles lists the CSV tables in export order
var TableFiles = []string{ChapterFrequencyFile, PlaceTotalsFile, CooccurrenceFile, MatrixFile}

// Exporter writes report tables and documents to an output directory
type Exporter struct {
	bom bool
}

// NewExporter creates an exporter; bom prefixes every CSV with a UTF-8 byte order mark
func NewExporter(bom bool) *Exporter {
	return &Exporter{bom: bom}
}

// WriteTables writes the four CSV tables to dir and returns their names
func (e *Exporter) WriteTables(report *model.Report, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	tables := []struct {
		name string
		rows [][]string
	}{
		{ChapterFrequencyFile, chapterFrequencyRows(report)},
		{PlaceTotalsFile, placeTotalRows(report)},
		{CooccurrenceFile, cooccurrenceRows(report)},
		{MatrixFile, matrixRows(report)},
	}

	written := make([]string, 0, len(tables))
	for _, t := range tables {
		if err := e.writeCSV(filepath.Join(dir, t.name), t.rows); err != nil {
			return written, fmt.Errorf("write %s: %w", t.name, err)
		}
		written = append(written, t.name)
	}
	return written, nil
}

func (e *Exporter) writeCSV(path string, rows [][]string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	var out io.Writer = f
	if e.bom {
		enc := transform.NewWriter(f, unicode.UTF8BOM.NewEncoder())
		defer func() {
			if cerr := enc.Close(); err == nil {
				err = cerr
			}
		}()
		out = enc
	}

	w := csv.NewWriter(out)
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return nil
}

func chapterFrequencyRows(report *model.Report) [][]string {
	header := []string{"chapter_index", "chapter_title"}
	header = append(header, report.Places...)
	header = append(header, "total_place_mentions", "char_count")

	rows := [][]string{header}
	for _, ch := range report.Chapters {
		row := []string{strconv.Itoa(ch.Index), ch.Title}
		for _, place := range report.Places {
			row = append(row, strconv.Itoa(ch.PlaceCounts[place]))
		}
		row = append(row, strconv.Itoa(ch.TotalPlaceMentions), strconv.Itoa(ch.CharCount))
		rows = append(rows, row)
	}
	return rows
}

func placeTotalRows(report *model.Report) [][]string {
	rows := [][]string{{"place", "total_mentions"}}
	for _, pt := range report.PlaceTotals {
		rows = append(rows, []string{pt.Place, strconv.Itoa(pt.Total)})
	}
	return rows
}

func cooccurrenceRows(report *model.Report) [][]string {
	rows := [][]string{{"chapter_index", "chapter_title", "place", "character", "place_mentions", "character_mentions"}}
	for _, c := range report.Cooccurrences {
		rows = append(rows, []string{
			strconv.Itoa(c.ChapterIndex),
			c.ChapterTitle,
			c.Place,
			c.Character,
			strconv.Itoa(c.PlaceMentions),
			strconv.Itoa(c.CharacterMentions),
		})
	}
	return rows
}

func matrixRows(report *model.Report) [][]string {
	m := report.Matrix
	header := append([]string{"character"}, m.Places...)

	rows := [][]string{header}
	for ci, character := range m.Characters {
		row := []string{character}
		for pi := range m.Places {
			row = append(row, strconv.Itoa(m.Cells[ci][pi]))
		}
		rows = append(rows, row)
	}
	return rows
}

// WriteManifest writes manifest.json to dir
func (e *Exporter) WriteManifest(manifest *model.Manifest, dir string) error {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, ManifestFile), data, 0644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// WriteLLMSummary writes the commentary markdown to dir
func (e *Exporter) WriteLLMSummary(markdown, dir string) error {
	if err := os.WriteFile(filepath.Join(dir, LLMSummaryFile), []byte(markdown), 0644); err != nil {
		return fmt.Errorf("write LLM summary: %w", err)
	}
	return nil
}

// ReadManifest loads manifest.json from dir
func ReadManifest(dir string) (*model.Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m model.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}
