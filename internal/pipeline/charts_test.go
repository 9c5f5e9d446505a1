package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteCharts(t *testing.T) {
	report, _ := scenarioReport(t)
	dir := t.TempDir()

	files, err := WriteCharts(report, dir)
	if err != nil {
		t.Fatalf("WriteCharts failed: %v", err)
	}
	if len(files) != 6 {
		t.Fatalf("Expected 6 charts, got %v", files)
	}

	for _, name := range ChartFiles {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("Missing %s: %v", name, err)
		}
		doc := string(data)
		if !strings.Contains(doc, "echarts") {
			t.Errorf("%s: expected an echarts document", name)
		}
		if !strings.Contains(doc, "南京") {
			t.Errorf("%s: expected place labels in document", name)
		}
	}
}

func TestWriteMap(t *testing.T) {
	report, dict := scenarioReport(t)
	dir := t.TempDir()

	name, err := WriteMap(report, dict, dir)
	if err != nil {
		t.Fatalf("WriteMap failed: %v", err)
	}
	if name != MapFile {
		t.Errorf("Expected %s, got %s", MapFile, name)
	}

	data, err := os.ReadFile(filepath.Join(dir, MapFile))
	if err != nil {
		t.Fatal(err)
	}
	doc := string(data)
	if !strings.Contains(doc, "南京") {
		t.Error("Expected place with coordinates on the map")
	}
	// 苏州 has no coordinate in this dictionary
	if strings.Contains(doc, "苏州") {
		t.Error("Expected place without coordinates to be omitted")
	}
}

func TestCumulative(t *testing.T) {
	got := cumulative([]int{2, 0, 3, 1})
	want := []int{2, 2, 5, 6}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("cumulative = %v, want %v", got, want)
		}
	}
	if len(cumulative(nil)) != 0 {
		t.Error("Expected empty result for no chapters")
	}
}

func TestChapterAxis(t *testing.T) {
	report, _ := scenarioReport(t)
	axis := chapterAxis(report)
	if len(axis) != 2 || axis[0] != "1" || axis[1] != "2" {
		t.Errorf("Unexpected axis: %v", axis)
	}
}
