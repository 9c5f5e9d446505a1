package extract

import (
	"strings"

	"github.com/ppiankov/rulinstat/internal/model"
)

// Counter counts literal dictionary spellings in chapter bodies.
// Matching is case-sensitive, non-overlapping and ignores word boundaries.
type Counter struct {
	dict *model.Dictionary
}

// NewCounter creates a counter over the given dictionary
func NewCounter(dict *model.Dictionary) *Counter {
	return &Counter{dict: dict}
}

// Count returns the place and character counts of a chapter body
func (c *Counter) Count(body string) model.ChapterCounts {
	return model.ChapterCounts{
		Places:     c.CountPlaces(body),
		Characters: c.CountCharacters(body),
	}
}

// CountPlaces counts normalized place names; every place is present in the result
func (c *Counter) CountPlaces(body string) model.Counts {
	return countTable(c.dict.Places, body)
}

// CountCharacters counts canonical character names; every character is present in the result
func (c *Counter) CountCharacters(body string) model.Counts {
	return countTable(c.dict.Characters, body)
}

func countTable(table *model.EntityTable, body string) model.Counts {
	counts := make(model.Counts, table.Len())
	for _, name := range table.Names() {
		counts[name] = 0
	}

	table.Each(func(variant, name string) {
		counts[name] += strings.Count(body, variant)
	})

	return counts
}
