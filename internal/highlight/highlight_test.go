package highlight

import (
	"testing"

	"github.com/TobiSchelling/drivereport/internal/catalog"
	"github.com/TobiSchelling/drivereport/internal/telemetry"
	"github.com/TobiSchelling/drivereport/internal/tone"
)

func sampleDoc(t *testing.T) *catalog.Document {
	t.Helper()
	doc, err := catalog.Parse(catalog.SampleDocumentJSON)
	if err != nil {
		t.Fatalf("failed to parse sample document: %v", err)
	}
	return doc
}

func TestExpand(t *testing.T) {
	ev := telemetry.Event{ID: 1, Violations: 1, Total: 4, Risk: 7.25}
	tests := []struct {
		template string
		want     string
	}{
		{"%TOTAL%回中%VIOLATIONS%回（%RATE%%）", "4回中1回（25%）"},
		{"%VIOLATIONS%/%VIOLATIONS%", "1/1"},
		{"risk %RISK%", "risk 7.3"},
		{"%calc:total-violations%回", "3回"},
		{"%calc:(total-violations)*100/total%%", "75%"},
		{"%calc:alert(1)%", "-"},
		{"plain", "plain"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Expand(tt.template, ev); got != tt.want {
			t.Errorf("Expand(%q) = %q, want %q", tt.template, got, tt.want)
		}
	}
}

func TestExpandZeroTotal(t *testing.T) {
	ev := telemetry.Event{ID: 2, Violations: 0, Total: 0}
	if got := Expand("%RATE%% %calc:violations/total%", ev); got != "0% 0" {
		t.Errorf("unexpected expansion: %q", got)
	}
}

func TestFromTemplate(t *testing.T) {
	doc := sampleDoc(t)
	ev := telemetry.Event{ID: 1, Violations: 1, Total: 4}
	meta := doc.Highlights[catalog.OverviewKey]["danger"]

	h := FromTemplate(doc, "danger", meta, ev)
	if h.Title != "左折前の安全確認" {
		t.Errorf("expected item name title, got %q", h.Title)
	}
	if h.Badge != "要注意" {
		t.Errorf("expected badge, got %q", h.Badge)
	}
	if h.Text != "4回中1回、確認不足の疑いがありました（25%）。" {
		t.Errorf("unexpected text: %q", h.Text)
	}
	if h.Rate == nil || *h.Rate != 25 {
		t.Errorf("expected rate 25, got %v", h.Rate)
	}
}

func TestFromTemplateSentinels(t *testing.T) {
	doc := sampleDoc(t)
	h := FromTemplate(doc, "warn", catalog.HighlightMeta{}, telemetry.Event{ID: 99})
	if h.Title != TitleUnset {
		t.Errorf("expected title sentinel, got %q", h.Title)
	}
	if h.Text != BodyUnset {
		t.Errorf("expected body sentinel, got %q", h.Text)
	}
	if h.Badge != "" {
		t.Errorf("expected empty badge, got %q", h.Badge)
	}
}

func TestDirectTitleFallback(t *testing.T) {
	doc := sampleDoc(t)
	metric := "25%"

	h := Direct(doc, "danger", catalog.HighlightMeta{Badge: "b"}, telemetry.OverviewEntry{
		Kind: "danger", Body: "本文", Metric: &metric, EventIDs: []int{4},
	}, nil)
	if h.Title != "右折時の対向車確認" {
		t.Errorf("expected item map title, got %q", h.Title)
	}
	if h.Metric == nil || *h.Metric != "25%" {
		t.Errorf("expected metric passthrough, got %v", h.Metric)
	}

	doc.ItemMap = nil
	h = Direct(doc, "danger", catalog.HighlightMeta{}, telemetry.OverviewEntry{EventIDs: []int{2}}, nil)
	if h.Title != "左折中" {
		t.Errorf("expected detail section title, got %q", h.Title)
	}
	if h.Text != BodyUnset {
		t.Errorf("expected body sentinel, got %q", h.Text)
	}

	h = Direct(doc, "danger", catalog.HighlightMeta{}, telemetry.OverviewEntry{Title: "  "}, nil)
	if h.Title != TitleUnset {
		t.Errorf("expected title sentinel, got %q", h.Title)
	}
}

func TestDirectBodyFallsBackToTemplate(t *testing.T) {
	doc := sampleDoc(t)
	ev := &telemetry.Event{ID: 3, Violations: 2, Total: 8}
	meta := doc.Highlights[catalog.OverviewKey]["warn"]
	h := Direct(doc, "warn", meta, telemetry.OverviewEntry{Title: "停止"}, ev)
	if h.Title != "停止" {
		t.Errorf("expected direct title, got %q", h.Title)
	}
	if h.Text != "8回中2回、停止が不十分でした。" {
		t.Errorf("unexpected text: %q", h.Text)
	}
}

func TestOverview(t *testing.T) {
	doc := sampleDoc(t)
	d := &telemetry.Driver{
		ID: "d1",
		Events: []telemetry.Event{
			{ID: 1, Violations: 1, Total: 4},
			{ID: 3, Violations: 0, Total: 5},
			{ID: 4, Violations: 0, Total: 6},
		},
		Stats: &telemetry.Stats{Overview: []telemetry.OverviewEntry{
			{Kind: "warn", Title: "", Body: "直接の本文", EventIDs: []int{1}},
		}},
	}

	hs, overrides := Overview(doc, d)
	if len(hs) != 3 {
		t.Fatalf("expected 3 highlights, got %d", len(hs))
	}
	kinds := []string{hs[0].Kind, hs[1].Kind, hs[2].Kind}
	if kinds[0] != "danger" || kinds[1] != "warn" || kinds[2] != "good" {
		t.Errorf("unexpected kind order: %v", kinds)
	}
	if hs[1].Text != "直接の本文" || hs[1].Title != "左折前の安全確認" {
		t.Errorf("unexpected direct highlight: %+v", hs[1])
	}
	if hs[2].Text != "6回中6回、適切に確認できています。" {
		t.Errorf("unexpected good text: %q", hs[2].Text)
	}
	for _, h := range hs {
		if h.Title == "" || h.Text == "" {
			t.Errorf("highlight with empty title or text: %+v", h)
		}
	}

	// Only the driver's own entry tags events; the configured ids 1 and 4
	// just select template events.
	tags := overrides.Tones(1)
	if len(tags) != 1 || tags[0] != tone.Warn {
		t.Errorf("unexpected tags for event 1: %v", tags)
	}
	if tags := overrides.Tones(4); len(tags) != 0 {
		t.Errorf("expected no tags for template-only event 4, got %v", tags)
	}
}

func TestOverviewSkipsUnmatchedKinds(t *testing.T) {
	doc := sampleDoc(t)
	d := &telemetry.Driver{ID: "d1", Events: []telemetry.Event{{ID: 4, Total: 2}}}
	hs, overrides := Overview(doc, d)
	if len(hs) != 1 || hs[0].Kind != "good" {
		t.Fatalf("expected only the good highlight, got %+v", hs)
	}
	if len(overrides.Tones(1)) != 0 {
		t.Error("expected no override for missing event")
	}
}

func TestSection(t *testing.T) {
	doc := sampleDoc(t)
	ev := &telemetry.Event{ID: 1, Violations: 3, Total: 12, Risk: 4.5}
	hs := Section(doc, doc.Highlights["highlights_sasetumae"], ev)
	if len(hs) != 2 {
		t.Fatalf("expected 2 highlights, got %d", len(hs))
	}
	if hs[0].Risk == nil || *hs[0].Risk != 4.5 {
		t.Errorf("expected risk on danger highlight, got %v", hs[0].Risk)
	}
	if hs[1].Detail != "(3回/12回)" {
		t.Errorf("unexpected warn detail: %q", hs[1].Detail)
	}
	if hs[1].Text != "違反率は25%です。" {
		t.Errorf("unexpected warn text: %q", hs[1].Text)
	}
	if Section(doc, doc.Highlights["highlights_sasetumae"], nil) != nil {
		t.Error("expected no highlights without event")
	}
}
