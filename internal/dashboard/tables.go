package dashboard

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/ppiankov/rulinstat/internal/cache"
	"github.com/ppiankov/rulinstat/internal/extract"
)

const tableCSS = `
table.rulinstat-table { border-collapse: collapse; font-size: 14px; }
table.rulinstat-table th, table.rulinstat-table td { border: 1px solid #ddd; padding: 4px 8px; }
table.rulinstat-table th { background: #f4f4f4; }
table.rulinstat-table td[align="right"] { font-variant-numeric: tabular-nums; }
`

// renderTable renders a CSV from the output directory as an HTML table.
// Results are cached only while a watcher can invalidate them.
func (s *Server) renderTable(name string) (string, error) {
	key := cache.TableKey(name)
	if html, ok := s.tables.Get(key); ok {
		return string(html), nil
	}

	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return "", err
	}

	html, err := csvToHTML(data)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}

	if s.watching.Load() {
		_ = s.tables.Set(key, []byte(html), 0)
	}
	return html, nil
}

// csvToHTML converts a UTF-8 CSV (optionally BOM-prefixed) to an HTML table
func csvToHTML(data []byte) (string, error) {
	text, err := extract.Decode(data, "utf-8")
	if err != nil {
		return "", err
	}

	records, err := csv.NewReader(strings.NewReader(text)).ReadAll()
	if err != nil {
		return "", fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return "", nil
	}

	tw := table.NewWriter()
	tw.Style().HTML.CSSClass = "rulinstat-table"

	tw.AppendHeader(toRow(records[0]))
	for _, rec := range records[1:] {
		tw.AppendRow(toRow(rec))
	}
	return tw.RenderHTML(), nil
}

func toRow(rec []string) table.Row {
	row := make(table.Row, len(rec))
	for i, v := range rec {
		row[i] = v
	}
	return row
}
