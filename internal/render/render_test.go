package render

import (
	"bytes"
	"io/fs"
	"strings"
	"testing"
	"time"

	"github.com/TobiSchelling/drivereport/internal/catalog"
	"github.com/TobiSchelling/drivereport/internal/report"
	"github.com/TobiSchelling/drivereport/internal/telemetry"
)

func strPtr(s string) *string { return &s }

func buildReport(t *testing.T) *report.Report {
	t.Helper()
	doc, err := catalog.Parse(catalog.SampleDocumentJSON)
	if err != nil {
		t.Fatalf("parse catalog: %v", err)
	}
	b, err := report.New(doc, report.Options{})
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	drivers := []telemetry.Driver{{
		ID:         "d1",
		Name:       "山田 太郎",
		OfficeName: "本社",
		Period:     telemetry.Period{Start: strPtr("2024-04-01"), End: strPtr("2024-04-30")},
		Events: []telemetry.Event{
			{ID: 1, Violations: 1, Total: 4, Scenes: []telemetry.Scene{
				{CapturedAt: "2024-04-02T08:15:00+09:00", MapViewURL: "https://www.google.com/maps/search/?api=1&query=35.6,139.7", RiskType: "high"},
			}},
			{ID: 2, Violations: 0, Total: 10},
		},
	}}
	r, err := b.BuildDriver(drivers, "d1")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return r
}

func TestRenderReport(t *testing.T) {
	rnd, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var buf bytes.Buffer
	err = rnd.Render(&buf, PageReport, map[string]any{
		"Report": buildReport(t),
		"PDFURL": "/datasets/x/reports/d1/pdf",
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	html := buf.String()
	for _, want := range []string{
		"安全運転診断レポート",
		"山田 太郎",
		"2024/4/1 - 2024/4/30",
		"左折前の安全確認",
		`id="page-2"`,
		`href="#page-2"`,
		"4/2",
		"08:15",
		"高",
		"/datasets/x/reports/d1/pdf",
		"tone-danger",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("expected %q in rendered report", want)
		}
	}
}

func TestRenderIndexAndDataset(t *testing.T) {
	rnd, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var buf bytes.Buffer
	if err := rnd.Render(&buf, PageIndex, map[string]any{
		"Drivers": []telemetry.Driver{{ID: "d1", Name: "山田"}},
		"TTL":     "30m0s",
	}); err != nil {
		t.Fatalf("Render index: %v", err)
	}
	if !strings.Contains(buf.String(), `/report?driver=d1`) {
		t.Error("expected driver link on index")
	}

	buf.Reset()
	if err := rnd.Render(&buf, PageDataset, map[string]any{
		"Token":     "tok",
		"Size":      2048,
		"ExpiresAt": time.Now().Add(10 * time.Minute),
		"Drivers":   []telemetry.Driver{{ID: "d1", Name: "山田"}},
	}); err != nil {
		t.Fatalf("Render dataset: %v", err)
	}
	if !strings.Contains(buf.String(), "/datasets/tok/reports/d1/pdf") || !strings.Contains(buf.String(), "2.0 kB") {
		t.Errorf("unexpected dataset page: %s", buf.String())
	}
}

func TestRenderUnknownPage(t *testing.T) {
	rnd, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := rnd.Render(&bytes.Buffer{}, "missing.html", nil); err == nil {
		t.Error("expected error for unknown page")
	}
}

func TestRenderMarkdown(t *testing.T) {
	got := string(renderMarkdown("**注意**"))
	if !strings.Contains(got, "<strong>注意</strong>") {
		t.Errorf("unexpected markdown output: %q", got)
	}
}

func TestStaticStylesheet(t *testing.T) {
	if _, err := fs.Stat(Static(), "report.css"); err != nil {
		t.Errorf("expected embedded stylesheet: %v", err)
	}
}

func TestFormatPeriodDisplay(t *testing.T) {
	days := 30
	minutes := 750.0
	tests := []struct {
		p    telemetry.Period
		want string
	}{
		{telemetry.Period{Start: strPtr("2024-04-01"), End: strPtr("2024-04-30"), Days: &days}, "2024/4/1 - 2024/4/30 (30日間)"},
		{telemetry.Period{Start: strPtr("2024-04-01"), End: strPtr("2024-04-01")}, "2024/4/1"},
		{telemetry.Period{End: strPtr("sometime")}, "sometime"},
		{telemetry.Period{TotalMinutes: &minutes}, "(運転時間 12.5時間)"},
		{telemetry.Period{}, ""},
	}
	for _, tt := range tests {
		if got := FormatPeriodDisplay(tt.p); got != tt.want {
			t.Errorf("FormatPeriodDisplay() = %q, want %q", got, tt.want)
		}
	}
}
