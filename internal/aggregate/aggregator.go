package aggregate

import (
	"errors"
	"unicode/utf8"

	"github.com/ppiankov/rulinstat/internal/extract"
	"github.com/ppiankov/rulinstat/internal/model"
)

// ErrNoChapters is returned when there is nothing to aggregate
var ErrNoChapters = errors.New("no chapters to process")

// Aggregator builds the summary tables from selected chapters
type Aggregator struct {
	dict    *model.Dictionary
	counter *extract.Counter
}

// NewAggregator creates an aggregator over the given dictionary
func NewAggregator(dict *model.Dictionary) *Aggregator {
	return &Aggregator{
		dict:    dict,
		counter: extract.NewCounter(dict),
	}
}

// Select returns the first k chapters; k <= 0 selects all of them
func Select(chapters []model.Chapter, k int) []model.Chapter {
	if k <= 0 || k >= len(chapters) {
		return chapters
	}
	return chapters[:k]
}

// Aggregate counts every chapter and builds the chapter table, place totals,
// co-occurrence list and character-place matrix.
func (a *Aggregator) Aggregate(chapters []model.Chapter) (*model.Report, error) {
	if len(chapters) == 0 {
		return nil, ErrNoChapters
	}

	places := a.dict.Places.Names()
	characters := a.dict.Characters.Names()

	report := &model.Report{
		Places:     places,
		Characters: characters,
		Chapters:   make([]model.ChapterRow, 0, len(chapters)),
	}

	for _, ch := range chapters {
		counts := a.counter.Count(ch.Body)
		report.Chapters = append(report.Chapters, model.ChapterRow{
			Index:              ch.Index,
			Title:              ch.Title,
			PlaceCounts:        counts.Places,
			CharacterCounts:    counts.Characters,
			TotalPlaceMentions: counts.Places.Sum(),
			CharCount:          utf8.RuneCountInString(ch.Body),
		})
	}

	report.PlaceTotals = placeTotals(report.Chapters, places)
	report.Cooccurrences = cooccurrences(report.Chapters, places, characters)
	report.Matrix = matrix(report.Cooccurrences, places, characters)

	return report, nil
}

// placeTotals sums each place over all chapter rows
func placeTotals(rows []model.ChapterRow, places []string) []model.PlaceTotal {
	totals := make([]model.PlaceTotal, len(places))
	for i, place := range places {
		totals[i].Place = place
		for _, row := range rows {
			totals[i].Total += row.PlaceCounts[place]
		}
	}
	return totals
}

// cooccurrences emits one record per chapter, place and character with both counts positive
func cooccurrences(rows []model.ChapterRow, places, characters []string) []model.Cooccurrence {
	var out []model.Cooccurrence

	for _, row := range rows {
		for _, place := range places {
			pc := row.PlaceCounts[place]
			if pc <= 0 {
				continue
			}
			for _, character := range characters {
				cc := row.CharacterCounts[character]
				if cc <= 0 {
					continue
				}
				out = append(out, model.Cooccurrence{
					ChapterIndex:      row.Index,
					ChapterTitle:      row.Title,
					Place:             place,
					Character:         character,
					PlaceMentions:     pc,
					CharacterMentions: cc,
				})
			}
		}
	}

	return out
}

// matrix counts the chapters in which each character co-occurs with each place
func matrix(records []model.Cooccurrence, places, characters []string) model.CharacterMatrix {
	placeIdx := make(map[string]int, len(places))
	for i, p := range places {
		placeIdx[p] = i
	}
	charIdx := make(map[string]int, len(characters))
	for i, c := range characters {
		charIdx[c] = i
	}

	cells := make([][]int, len(characters))
	for i := range cells {
		cells[i] = make([]int, len(places))
	}

	// One record exists per (chapter, place, character), so counting records counts chapters.
	for _, r := range records {
		cells[charIdx[r.Character]][placeIdx[r.Place]]++
	}

	return model.CharacterMatrix{
		Characters: characters,
		Places:     places,
		Cells:      cells,
	}
}
