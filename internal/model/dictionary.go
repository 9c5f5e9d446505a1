package model

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidDictionary is returned when a dictionary fails validation
var ErrInvalidDictionary = errors.New("invalid dictionary")

// Coord is a WGS84 coordinate
type Coord struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// EntityEntry declares one normalized name and the spellings that map to it
type EntityEntry struct {
	Name     string   `yaml:"name"`
	Variants []string `yaml:"variants,omitempty"` // Defaults to [Name]
	Lat      float64  `yaml:"lat,omitempty"`
	Lon      float64  `yaml:"lon,omitempty"`
}

// EntityTable is an immutable variant -> normalized name lookup table.
// Names keep their declaration order.
type EntityTable struct {
	names    []string
	variants map[string]string
	ordered  []string // variants sorted for deterministic iteration
}

// NewEntityTable builds a lookup table from entries
func NewEntityTable(entries []EntityEntry) (*EntityTable, error) {
	t := &EntityTable{variants: make(map[string]string)}
	seenNames := make(map[string]bool)

	for _, e := range entries {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: entry with empty name", ErrInvalidDictionary)
		}
		if seenNames[name] {
			return nil, fmt.Errorf("%w: duplicate name %q", ErrInvalidDictionary, name)
		}
		seenNames[name] = true
		t.names = append(t.names, name)

		variants := e.Variants
		if len(variants) == 0 {
			variants = []string{name}
		}
		for _, v := range variants {
			if v == "" {
				return nil, fmt.Errorf("%w: empty variant for %q", ErrInvalidDictionary, name)
			}
			if prev, ok := t.variants[v]; ok {
				return nil, fmt.Errorf("%w: variant %q maps to both %q and %q", ErrInvalidDictionary, v, prev, name)
			}
			t.variants[v] = name
			t.ordered = append(t.ordered, v)
		}
	}

	sort.Strings(t.ordered)
	return t, nil
}

// Names returns the normalized names in declaration order
func (t *EntityTable) Names() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// Normalize returns the normalized name for a variant
func (t *EntityTable) Normalize(variant string) (string, bool) {
	name, ok := t.variants[variant]
	return name, ok
}

// Each calls fn for every variant with its normalized name
func (t *EntityTable) Each(fn func(variant, name string)) {
	for _, v := range t.ordered {
		fn(v, t.variants[v])
	}
}

// VariantsOf returns the spellings of a normalized name, sorted
func (t *EntityTable) VariantsOf(name string) []string {
	var out []string
	for _, v := range t.ordered {
		if t.variants[v] == name {
			out = append(out, v)
		}
	}
	return out
}

// Len returns the number of normalized names
func (t *EntityTable) Len() int {
	return len(t.names)
}

// Dictionary holds the place and character tables.
// A Dictionary is never mutated after construction.
type Dictionary struct {
	Places     *EntityTable
	Characters *EntityTable
	coords     map[string]Coord
}

// Coord returns the coordinate of a normalized place name
func (d *Dictionary) Coord(place string) (Coord, bool) {
	c, ok := d.coords[place]
	return c, ok
}

// DictionaryFile is the YAML layout of a dictionary file
type DictionaryFile struct {
	Places     []EntityEntry `yaml:"places"`
	Characters []EntityEntry `yaml:"characters"`
}

// NewDictionary validates the file layout and builds a Dictionary
func NewDictionary(f DictionaryFile) (*Dictionary, error) {
	if len(f.Places) == 0 {
		return nil, fmt.Errorf("%w: no places", ErrInvalidDictionary)
	}

	places, err := NewEntityTable(f.Places)
	if err != nil {
		return nil, fmt.Errorf("places: %w", err)
	}
	characters, err := NewEntityTable(f.Characters)
	if err != nil {
		return nil, fmt.Errorf("characters: %w", err)
	}

	coords := make(map[string]Coord)
	for _, p := range f.Places {
		if p.Lat != 0 || p.Lon != 0 {
			coords[strings.TrimSpace(p.Name)] = Coord{Lat: p.Lat, Lon: p.Lon}
		}
	}

	return &Dictionary{
		Places:     places,
		Characters: characters,
		coords:     coords,
	}, nil
}

// LoadDictionary reads a YAML dictionary file
func LoadDictionary(path string) (*Dictionary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dictionary: %w", err)
	}

	var f DictionaryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse dictionary: %w", err)
	}

	return NewDictionary(f)
}

// defaultDictionaryFile is the built-in 儒林外史 table.
// Traditional spellings normalize to the simplified place name.
var defaultDictionaryFile = DictionaryFile{
	Places: []EntityEntry{
		{Name: "南京", Variants: []string{"南京"}, Lat: 32.0603, Lon: 118.7969},
		{Name: "苏州", Variants: []string{"蘇州", "苏州"}, Lat: 31.2989, Lon: 120.5853},
		{Name: "杭州", Variants: []string{"杭州"}, Lat: 30.2741, Lon: 120.1551},
		{Name: "北京", Variants: []string{"北京"}, Lat: 39.9042, Lon: 116.4074},
		{Name: "扬州", Variants: []string{"揚州", "扬州"}, Lat: 32.3936, Lon: 119.4127},
		{Name: "济南", Variants: []string{"濟南", "济南"}, Lat: 36.6512, Lon: 117.1201},
		{Name: "湖州", Variants: []string{"湖州"}, Lat: 30.8943, Lon: 120.0868},
	},
	Characters: []EntityEntry{
		{Name: "范進"},
		{Name: "嚴監生"},
		{Name: "匡超人"},
		{Name: "杜少卿"},
		{Name: "王冕"},
		{Name: "莊紹光"},
		{Name: "魯編修"},
	},
}

// DefaultDictionaryFile returns a copy of the built-in dictionary layout
func DefaultDictionaryFile() DictionaryFile {
	f := DictionaryFile{
		Places:     make([]EntityEntry, len(defaultDictionaryFile.Places)),
		Characters: make([]EntityEntry, len(defaultDictionaryFile.Characters)),
	}
	for i, e := range defaultDictionaryFile.Places {
		e.Variants = append([]string(nil), e.Variants...)
		f.Places[i] = e
	}
	for i, e := range defaultDictionaryFile.Characters {
		e.Variants = append([]string(nil), e.Variants...)
		f.Characters[i] = e
	}
	return f
}

// DefaultDictionary returns the built-in dictionary
func DefaultDictionary() *Dictionary {
	d, err := NewDictionary(DefaultDictionaryFile())
	if err != nil {
		panic("built-in dictionary: " + err.Error())
	}
	return d
}
