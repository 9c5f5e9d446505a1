package dashboard

import (
	"bytes"
	"html/template"
	"net/http"
	"os"
	"path/filepath"

	"github.com/ppiankov/rulinstat/internal/model"
	"github.com/ppiankov/rulinstat/internal/pipeline"
)

// captions of the chart documents, in display order
var chartCaptions = map[string]string{
	pipeline.TotalsBarFile:        "地名总体频率柱状图",
	pipeline.ChapterHeatmapFile:   "章节-地名频率热力图",
	pipeline.CharacterHeatmapFile: "人物-地名共现热力图",
	pipeline.TrendsLineFile:       "各地名的章节频率变化（折线图）",
	pipeline.StackedAreaFile:      "地名关注度构成（堆叠面积图）",
	pipeline.CumulativeFile:       "地名累计出现次数（增长曲线）",
}

var tableCaptions = map[string]string{
	pipeline.ChapterFrequencyFile: "章节-地名频率表",
	pipeline.PlaceTotalsFile:      "地名总频率表",
	pipeline.CooccurrenceFile:     "人物-地名共现记录",
	pipeline.MatrixFile:           "人物-地名共现矩阵",
}

type panel struct {
	Name    string
	Caption string
	Present bool
	Table   template.HTML
	Error   string
}

type pageData struct {
	Title    string
	Manifest *model.Manifest
	Charts   []panel
	Map      panel
	Tables   []panel
	Summary  string
}

var pageTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="zh">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; margin: 24px auto; max-width: 1200px; }
.placeholder { background: #eef5ff; border-left: 4px solid #4a90d9; padding: 12px; margin: 12px 0; }
.warning { background: #fff6e5; border-left: 4px solid #e6a23c; padding: 12px; margin: 12px 0; }
iframe { border: 0; width: 100%; }
figure { margin: 0 0 24px 0; }
pre { white-space: pre-wrap; background: #f8f8f8; padding: 12px; }
{{.CSS}}
</style>
</head>
<body>
<h1>{{.Title}}</h1>
{{with .Manifest}}<p>来源：{{.Source}} · 章节：{{.ChaptersUsed}} / {{.ChaptersFound}}（{{.SegmentMode}}）· 生成时间：{{.GeneratedAt.Format "2006-01-02 15:04:05"}}</p>{{end}}

<h2>可视化图表</h2>
{{range .Charts}}
{{if .Present}}<figure><iframe src="/artifacts/{{.Name}}" height="640"></iframe><figcaption>{{.Caption}}</figcaption></figure>
{{else}}<div class="placeholder">未找到 {{.Name}}，请先运行 rulinstat analyze 生成。</div>
{{end}}
{{end}}

<h2>GIS 地图</h2>
{{with .Map}}{{if .Present}}<iframe src="/artifacts/{{.Name}}" height="640"></iframe>
{{else}}<div class="placeholder">未找到 {{.Name}}，请先运行 rulinstat analyze 生成地图。</div>
{{end}}{{end}}

<h2>数据表</h2>
{{range .Tables}}
<h3>{{.Caption}} <small><a href="/artifacts/{{.Name}}">{{.Name}}</a></small></h3>
{{if .Error}}<div class="warning">无法显示 {{.Name}}：{{.Error}}</div>
{{else if .Present}}{{.Table}}
{{else}}<div class="placeholder">未找到 {{.Name}}，请先运行 rulinstat analyze 生成。</div>
{{end}}
{{end}}

{{if .Summary}}
<h2>LLM 摘要</h2>
<pre>{{.Summary}}</pre>
{{end}}
</body>
</html>
`))

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := pageData{Title: s.title}

	if m, err := pipeline.ReadManifest(s.dir); err == nil {
		data.Manifest = m
	}

	for _, name := range pipeline.ChartFiles {
		data.Charts = append(data.Charts, panel{Name: name, Caption: chartCaptions[name], Present: s.exists(name)})
	}
	data.Map = panel{Name: pipeline.MapFile, Present: s.exists(pipeline.MapFile)}

	for _, name := range pipeline.TableFiles {
		p := panel{Name: name, Caption: tableCaptions[name], Present: s.exists(name)}
		if p.Present {
			html, err := s.renderTable(name)
			if err != nil {
				s.logger.Warn("render table failed", "table", name, "error", err)
				p.Error = err.Error()
			}
			// go-pretty escapes cell text
			p.Table = template.HTML(html)
		}
		data.Tables = append(data.Tables, p)
	}

	if md, err := os.ReadFile(filepath.Join(s.dir, pipeline.LLMSummaryFile)); err == nil {
		data.Summary = string(md)
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, struct {
		pageData
		CSS template.CSS
	}{data, template.CSS(tableCSS)}); err != nil {
		s.logger.Error("render page failed", "error", err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
