package pipeline

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"github.com/ppiankov/rulinstat/internal/model"
)

// Chart document names, in dashboard order
const (
	TotalsBarFile        = "totals_bar.html"
	ChapterHeatmapFile   = "chapter_heatmap.html"
	CharacterHeatmapFile = "character_place_heatmap.html"
	TrendsLineFile       = "place_trends_line.html"
	StackedAreaFile      = "place_stacked_area.html"
	CumulativeFile       = "place_cumulative.html"
	MapFile              = "map.html"
)

// ChartFiles lists the six chart documents
var ChartFiles = []string{
	TotalsBarFile,
	ChapterHeatmapFile,
	CharacterHeatmapFile,
	TrendsLineFile,
	StackedAreaFile,
	CumulativeFile,
}

type renderer interface {
	Render(w io.Writer) error
}

// WriteCharts renders the six chart documents into dir and returns their names
func WriteCharts(report *model.Report, dir string) ([]string, error) {
	docs := []struct {
		name  string
		chart renderer
	}{
		{TotalsBarFile, totalsBar(report)},
		{ChapterHeatmapFile, chapterHeatmap(report)},
		{CharacterHeatmapFile, characterHeatmap(report)},
		{TrendsLineFile, trendsLine(report)},
		{StackedAreaFile, stackedArea(report)},
		{CumulativeFile, cumulativeLine(report)},
	}

	written := make([]string, 0, len(docs))
	for _, d := range docs {
		if err := renderFile(filepath.Join(dir, d.name), d.chart); err != nil {
			return written, fmt.Errorf("render %s: %w", d.name, err)
		}
		written = append(written, d.name)
	}
	return written, nil
}

// WriteMap renders the place map into dir. Places without a coordinate are left off the map.
func WriteMap(report *model.Report, dict *model.Dictionary, dir string) (string, error) {
	if err := renderFile(filepath.Join(dir, MapFile), placeMap(report, dict)); err != nil {
		return "", fmt.Errorf("render %s: %w", MapFile, err)
	}
	return MapFile, nil
}

func renderFile(path string, r renderer) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return r.Render(f)
}

func pageOpts(title string) []charts.GlobalOpts {
	return []charts.GlobalOpts{
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: title,
			Width:     "1100px",
			Height:    "600px",
		}),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	}
}

func chapterAxis(report *model.Report) []string {
	axis := make([]string, len(report.Chapters))
	for i, ch := range report.Chapters {
		axis[i] = strconv.Itoa(ch.Index)
	}
	return axis
}

func totalsBar(report *model.Report) *charts.Bar {
	totals := make([]model.PlaceTotal, len(report.PlaceTotals))
	copy(totals, report.PlaceTotals)
	sort.SliceStable(totals, func(i, j int) bool { return totals[i].Total > totals[j].Total })

	names := make([]string, len(totals))
	data := make([]opts.BarData, len(totals))
	for i, pt := range totals {
		names[i] = pt.Place
		data[i] = opts.BarData{Value: pt.Total}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(pageOpts(fmt.Sprintf("前%d章地名总体频率", len(report.Chapters)))...)
	bar.SetXAxis(names).AddSeries("total_mentions", data,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}))
	return bar
}

func heatmap(title string, xs, ys []string, value func(x, y int) int, colors []string) *charts.HeatMap {
	var data []opts.HeatMapData
	peak := 1
	for y := range ys {
		for x := range xs {
			v := value(x, y)
			if v > peak {
				peak = v
			}
			data = append(data, opts.HeatMapData{Value: [3]interface{}{x, y, v}})
		}
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(append(pageOpts(title),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Data: xs, SplitArea: &opts.SplitArea{Show: opts.Bool(true)}}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: ys}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(peak),
			Orient:     "horizontal",
			Left:       "center",
			Bottom:     "0",
			InRange:    &opts.VisualMapInRange{Color: colors},
		}),
	)...)
	hm.SetXAxis(xs).AddSeries("count", data,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true)}))
	return hm
}

func chapterHeatmap(report *model.Report) *charts.HeatMap {
	titles := make([]string, len(report.Chapters))
	for i, ch := range report.Chapters {
		titles[i] = ch.Title
	}

	return heatmap(
		fmt.Sprintf("前%d章 章节-地名频率热力图", len(report.Chapters)),
		report.Places, titles,
		func(x, y int) int { return report.Chapters[y].PlaceCounts[report.Places[x]] },
		[]string{"#fff5f0", "#fb6a4a", "#67000d"},
	)
}

func characterHeatmap(report *model.Report) *charts.HeatMap {
	m := report.Matrix
	return heatmap(
		"人物-地名共现热力图",
		m.Places, m.Characters,
		func(x, y int) int { return m.Cells[y][x] },
		[]string{"#f7fbff", "#6baed6", "#08306b"},
	)
}

// placeLines builds one line chart with a series per place; values maps a
// place's per-chapter counts to the plotted values.
func placeLines(report *model.Report, title string, values func([]int) []int, seriesOpts ...charts.SeriesOpts) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(append(pageOpts(title),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "30px"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Name: "chapter_index"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
	)...)
	line.SetXAxis(chapterAxis(report))

	for _, place := range report.Places {
		counts := make([]int, len(report.Chapters))
		for i, ch := range report.Chapters {
			counts[i] = ch.PlaceCounts[place]
		}

		plotted := values(counts)
		data := make([]opts.LineData, len(plotted))
		for i, v := range plotted {
			data[i] = opts.LineData{Value: v}
		}
		line.AddSeries(place, data, seriesOpts...)
	}
	return line
}

func identity(counts []int) []int { return counts }

func cumulative(counts []int) []int {
	out := make([]int, len(counts))
	sum := 0
	for i, n := range counts {
		sum += n
		out[i] = sum
	}
	return out
}

func trendsLine(report *model.Report) *charts.Line {
	return placeLines(report,
		fmt.Sprintf("各地名在前%d章的章节频率变化", len(report.Chapters)),
		identity,
	)
}

func stackedArea(report *model.Report) *charts.Line {
	return placeLines(report,
		fmt.Sprintf("前%d章地名关注度构成（堆叠面积图）", len(report.Chapters)),
		identity,
		charts.WithLineChartOpts(opts.LineChart{Stack: "total", ShowSymbol: opts.Bool(false)}),
		charts.WithAreaStyleOpts(opts.AreaStyle{Opacity: opts.Float(0.6)}),
	)
}

func cumulativeLine(report *model.Report) *charts.Line {
	return placeLines(report,
		fmt.Sprintf("前%d章地名累计出现次数", len(report.Chapters)),
		cumulative,
	)
}

func placeMap(report *model.Report, dict *model.Dictionary) *charts.Geo {
	var data []opts.GeoData
	for _, pt := range report.PlaceTotals {
		c, ok := dict.Coord(pt.Place)
		if !ok {
			continue
		}
		data = append(data, opts.GeoData{Name: pt.Place, Value: []float64{c.Lon, c.Lat, float64(pt.Total)}})
	}

	geo := charts.NewGeo()
	geo.SetGlobalOptions(append(pageOpts(fmt.Sprintf("前%d章地名分布", len(report.Chapters))),
		charts.WithGeoComponentOpts(opts.GeoComponent{Map: "china"}),
	)...)
	geo.AddSeries("total_mentions", types.ChartEffectScatter, data)
	return geo
}
