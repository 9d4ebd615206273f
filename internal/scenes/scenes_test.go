package scenes

import (
	"fmt"
	"testing"
	"time"

	"github.com/TobiSchelling/drivereport/internal/catalog"
	"github.com/TobiSchelling/drivereport/internal/telemetry"
)

func sceneAt(ts string) telemetry.Scene {
	return telemetry.Scene{CapturedAt: ts}
}

func flatten(pages []Page) []string {
	var out []string
	for _, p := range pages {
		for _, g := range p.Groups {
			for _, d := range g.Dates {
				for _, s := range d.Scenes {
					out = append(out, s.CapturedAt)
				}
			}
		}
	}
	return out
}

func TestSortNewestFirst(t *testing.T) {
	in := []Scene{
		Annotate(sceneAt("2024-03-01T10:00:00+09:00"), nil),
		Annotate(sceneAt("not a date"), nil),
		Annotate(sceneAt("2024-03-05T08:00:00+09:00"), nil),
		Annotate(sceneAt("2024-03-03T12:00:00+09:00"), nil),
	}
	got := Sort(in)
	want := []string{
		"2024-03-05T08:00:00+09:00",
		"2024-03-03T12:00:00+09:00",
		"2024-03-01T10:00:00+09:00",
		"not a date",
	}
	for i := range want {
		if got[i].CapturedAt != want[i] {
			t.Errorf("position %d: got %q, want %q", i, got[i].CapturedAt, want[i])
		}
	}
	if in[0].CapturedAt != "2024-03-01T10:00:00+09:00" {
		t.Error("Sort must not reorder its input")
	}
}

func TestGroupUsesJST(t *testing.T) {
	// 2023-12-31T16:00Z is already 2024-01-01 in JST.
	scenes := Sort([]Scene{
		Annotate(sceneAt("2023-12-31T16:00:00Z"), nil),
		Annotate(sceneAt("2023-12-31T10:00:00Z"), nil),
		Annotate(sceneAt("2023-12-30T10:00:00Z"), nil),
	})
	groups := Group(scenes)
	if len(groups) != 2 {
		t.Fatalf("expected 2 year groups, got %d", len(groups))
	}
	if groups[0].Year != 2024 || groups[0].Dates[0].DateLabel != "1/1" {
		t.Errorf("unexpected first group: %+v", groups[0])
	}
	if groups[1].Year != 2023 || len(groups[1].Dates) != 2 {
		t.Fatalf("unexpected second group: %+v", groups[1])
	}
	if groups[1].Dates[0].DateLabel != "12/31" || groups[1].Dates[1].DateLabel != "12/30" {
		t.Errorf("unexpected date labels: %+v", groups[1].Dates)
	}
}

func TestAnnotate(t *testing.T) {
	doc := &catalog.Document{Labels: map[string]map[string]string{"risk_type": {"high": "高"}}}
	s := Annotate(telemetry.Scene{
		CapturedAt: "2024-03-05T14:03:00+09:00",
		MapViewURL: "https://www.google.com/maps/search/?api=1&query=35.6,139.7",
		RiskType:   "high",
		Timing:     "late",
	}, doc)
	if s.DateLabel != "3/5" || s.TimeLabel != "14:03" {
		t.Errorf("unexpected labels: %q %q", s.DateLabel, s.TimeLabel)
	}
	if s.RiskLabel != "高" || s.TimingLabel != "late" {
		t.Errorf("unexpected field labels: %q %q", s.RiskLabel, s.TimingLabel)
	}
	if !s.HasCoordinates() || *s.Lat != 35.6 || *s.Lon != 139.7 {
		t.Errorf("expected coordinates, got %+v", s.Location)
	}
}

func TestPaginateSplitsOversizedChunk(t *testing.T) {
	raw := make([]telemetry.Scene, 15)
	for i := range raw {
		raw[i] = sceneAt(fmt.Sprintf("2024-05-10T%02d:00:00+09:00", i+1))
	}
	pages := Build(raw, nil, catalog.PageLimits{First: 13, Other: 16, Mode: catalog.PageModeSplit})
	if len(pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(pages))
	}
	if pages[0].Count() != 13 || pages[1].Count() != 2 {
		t.Errorf("expected 13 + 2 scenes, got %d + %d", pages[0].Count(), pages[1].Count())
	}
	if pages[0].Limit != 13 || pages[1].Limit != 16 {
		t.Errorf("unexpected limits: %d, %d", pages[0].Limit, pages[1].Limit)
	}
}

func TestPaginateChunkModeKeepsChunksWhole(t *testing.T) {
	var raw []telemetry.Scene
	for i := 0; i < 3; i++ {
		raw = append(raw, sceneAt(fmt.Sprintf("2024-05-10T%02d:00:00+09:00", i+1)))
	}
	for i := 0; i < 5; i++ {
		raw = append(raw, sceneAt(fmt.Sprintf("2024-05-09T%02d:00:00+09:00", i+1)))
	}
	pages := Build(raw, nil, catalog.PageLimits{First: 4, Other: 4, Mode: catalog.PageModeChunk})
	if len(pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(pages))
	}
	if pages[0].Count() != 3 || pages[1].Count() != 5 {
		t.Errorf("expected 3 + 5 scenes, got %d + %d", pages[0].Count(), pages[1].Count())
	}
}

func TestPaginateMovesFittingChunkToNextPage(t *testing.T) {
	var raw []telemetry.Scene
	for i := 0; i < 3; i++ {
		raw = append(raw, sceneAt(fmt.Sprintf("2024-05-10T%02d:00:00+09:00", i+1)))
	}
	for i := 0; i < 4; i++ {
		raw = append(raw, sceneAt(fmt.Sprintf("2024-05-09T%02d:00:00+09:00", i+1)))
	}
	pages := Build(raw, nil, catalog.PageLimits{First: 5, Other: 5})
	if len(pages) != 2 || pages[0].Count() != 3 || pages[1].Count() != 4 {
		t.Fatalf("unexpected layout: %d pages", len(pages))
	}
	if pages[1].Groups[0].Dates[0].DateLabel != "5/9" {
		t.Errorf("expected 5/9 on second page, got %+v", pages[1].Groups)
	}
}

func TestPaginateMergesSameYear(t *testing.T) {
	raw := []telemetry.Scene{
		sceneAt("2024-05-10T10:00:00+09:00"),
		sceneAt("2024-05-09T10:00:00+09:00"),
		sceneAt("2023-05-09T10:00:00+09:00"),
	}
	pages := Build(raw, nil, catalog.PageLimits{First: 10, Other: 10})
	if len(pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(pages))
	}
	g := pages[0].Groups
	if len(g) != 2 || g[0].Year != 2024 || len(g[0].Dates) != 2 || g[1].Year != 2023 {
		t.Errorf("unexpected groups: %+v", g)
	}
}

func TestPaginateEmpty(t *testing.T) {
	if pages := Build(nil, nil, catalog.PageLimits{}); len(pages) != 0 {
		t.Errorf("expected no pages, got %d", len(pages))
	}
}

func TestPaginationProperties(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, telemetry.JST)
	// Chunk sizes chosen to exercise fits, moves and splits.
	sizes := []int{1, 5, 12, 30, 2, 7, 22, 3, 0, 9}
	var raw []telemetry.Scene
	day := 0
	for _, n := range sizes {
		day++
		for i := 0; i < n; i++ {
			ts := base.AddDate(0, 0, day).Add(time.Duration(i) * time.Minute)
			raw = append(raw, sceneAt(ts.Format(time.RFC3339)))
		}
	}

	for _, mode := range []catalog.PageMode{catalog.PageModeSplit, catalog.PageModeChunk} {
		limits := catalog.PageLimits{First: 13, Other: 16, Mode: mode}
		pages := Build(raw, nil, limits)

		annotated := make([]Scene, len(raw))
		for i, s := range raw {
			annotated[i] = Annotate(s, nil)
		}
		var want []string
		for _, s := range Sort(annotated) {
			want = append(want, s.CapturedAt)
		}
		got := flatten(pages)
		if len(got) != len(want) {
			t.Fatalf("%s: expected %d scenes, got %d", mode, len(want), len(got))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("%s: scene %d out of order: %q vs %q", mode, i, got[i], want[i])
			}
		}

		for i, p := range pages {
			if p.Count() == 0 {
				t.Errorf("%s: page %d is empty", mode, i)
			}
			if p.Count() != p.Rows {
				t.Errorf("%s: page %d rows %d != count %d", mode, i, p.Rows, p.Count())
			}
			if mode == catalog.PageModeSplit && p.Count() > p.Limit {
				t.Errorf("%s: page %d holds %d > %d", mode, i, p.Count(), p.Limit)
			}
			if mode == catalog.PageModeChunk && p.Count() > p.Limit {
				dates := 0
				for _, g := range p.Groups {
					dates += len(g.Dates)
				}
				if dates != 1 {
					t.Errorf("%s: page %d exceeds limit without a single oversized chunk", mode, i)
				}
			}
		}
	}
}
