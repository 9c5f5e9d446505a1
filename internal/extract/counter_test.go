package extract

import (
	"testing"

	"github.com/ppiankov/rulinstat/internal/model"
)

func testDictionary(t *testing.T) *model.Dictionary {
	t.Helper()
	d, err := model.NewDictionary(model.DictionaryFile{
		Places: []model.EntityEntry{
			{Name: "Nanjing"},
			{Name: "Suzhou", Variants: []string{"Suzhou", "Soochow"}},
		},
		Characters: []model.EntityEntry{
			{Name: "Fan Jin"},
			{Name: "Wang Mian"},
		},
	})
	if err != nil {
		t.Fatalf("build dictionary: %v", err)
	}
	return d
}

func TestCounter_CountPlaces(t *testing.T) {
	c := NewCounter(testDictionary(t))

	counts := c.CountPlaces("Nanjing Nanjing")

	if counts["Nanjing"] != 2 {
		t.Errorf("Expected Nanjing=2, got %d", counts["Nanjing"])
	}
	if v, ok := counts["Suzhou"]; !ok || v != 0 {
		t.Errorf("Expected Suzhou=0 present, got %d (%v)", v, ok)
	}
}

func TestCounter_VariantsAreSummed(t *testing.T) {
	c := NewCounter(testDictionary(t))

	counts := c.CountPlaces("Suzhou, Soochow and Suzhou again")

	if counts["Suzhou"] != 3 {
		t.Errorf("Expected Suzhou=3, got %d", counts["Suzhou"])
	}
	if _, ok := counts["Soochow"]; ok {
		t.Error("Expected variants not to appear as keys")
	}
}

func TestCounter_LiteralMatching(t *testing.T) {
	c := NewCounter(testDictionary(t))

	tests := []struct {
		name string
		body string
		want int
	}{
		{"case sensitive", "nanjing NANJING", 0},
		{"substring of a longer token", "GreaterNanjingArea", 1},
		{"non-overlapping", "NanjingNanjing", 2},
		{"empty body", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.CountPlaces(tt.body)["Nanjing"]; got != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestCounter_NonOverlappingRepeats(t *testing.T) {
	d, err := model.NewDictionary(model.DictionaryFile{
		Places: []model.EntityEntry{{Name: "aa"}},
	})
	if err != nil {
		t.Fatal(err)
	}

	if got := NewCounter(d).CountPlaces("aaaa")["aa"]; got != 2 {
		t.Errorf("Expected 2 non-overlapping matches, got %d", got)
	}
}

func TestCounter_Characters(t *testing.T) {
	c := NewCounter(testDictionary(t))

	counts := c.Count("Fan Jin met Fan Jin; Wang Mian stayed home.")

	if counts.Characters["Fan Jin"] != 2 || counts.Characters["Wang Mian"] != 1 {
		t.Errorf("Unexpected character counts: %v", counts.Characters)
	}
	if counts.Places.Sum() != 0 {
		t.Errorf("Expected no place mentions, got %d", counts.Places.Sum())
	}
}

func TestCounter_DefaultDictionaryTraditionalForms(t *testing.T) {
	c := NewCounter(model.DefaultDictionary())

	counts := c.Count("范進到濟南，又往蘇州、苏州、揚州。王冕在南京。")

	if counts.Places["济南"] != 1 {
		t.Errorf("Expected 济南=1, got %d", counts.Places["济南"])
	}
	if counts.Places["苏州"] != 2 {
		t.Errorf("Expected 苏州=2, got %d", counts.Places["苏州"])
	}
	if counts.Places["扬州"] != 1 || counts.Places["南京"] != 1 {
		t.Errorf("Unexpected place counts: %v", counts.Places)
	}
	if counts.Characters["范進"] != 1 || counts.Characters["王冕"] != 1 {
		t.Errorf("Unexpected character counts: %v", counts.Characters)
	}
}
