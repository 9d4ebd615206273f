// Package scenes sorts a section's scenes, buckets them by civil date and
// lays them out on fixed-capacity pages.
package scenes

import (
	"fmt"
	"sort"
	"time"

	"github.com/TobiSchelling/drivereport/internal/catalog"
	"github.com/TobiSchelling/drivereport/internal/geo"
	"github.com/TobiSchelling/drivereport/internal/telemetry"
)

// Scene is a scene prepared for display.
type Scene struct {
	CapturedAt      string    `json:"capturedAt"`
	Time            time.Time `json:"-"`
	DateLabel       string    `json:"dateLabel"`
	TimeLabel       string    `json:"timeLabel"`
	MapViewURL      string    `json:"mapViewUrl,omitempty"`
	StreetViewURL   string    `json:"streetViewUrl,omitempty"`
	MovieURL        string    `json:"movieUrl,omitempty"`
	RiskType        string    `json:"riskType,omitempty"`
	ViolationType   string    `json:"violationType,omitempty"`
	Timing          string    `json:"timing,omitempty"`
	AccelDecel      string    `json:"accelDecel,omitempty"`
	RiskLabel       string    `json:"riskLabel,omitempty"`
	ViolationLabel  string    `json:"violationLabel,omitempty"`
	TimingLabel     string    `json:"timingLabel,omitempty"`
	AccelDecelLabel string    `json:"accelDecelLabel,omitempty"`
	Latest          bool      `json:"latest,omitempty"`
	geo.Location
}

// DateGroup holds the scenes of one "M/D" label.
type DateGroup struct {
	DateLabel string  `json:"dateLabel"`
	Scenes    []Scene `json:"scenes"`
}

// YearGroup holds the date groups of one year.
type YearGroup struct {
	Year  int         `json:"year"`
	Dates []DateGroup `json:"dates"`
}

// Annotate resolves a scene's time, coordinates and labels.
func Annotate(s telemetry.Scene, doc *catalog.Document) Scene {
	t := s.Time()
	local := t.In(telemetry.JST)
	return Scene{
		CapturedAt:      s.CapturedAt,
		Time:            t,
		DateLabel:       dateLabel(local),
		TimeLabel:       local.Format("15:04"),
		MapViewURL:      s.MapViewURL,
		StreetViewURL:   s.StreetViewURL,
		MovieURL:        s.MovieURL,
		RiskType:        s.RiskType,
		ViolationType:   s.ViolationType,
		Timing:          s.Timing,
		AccelDecel:      s.AccelDecel,
		RiskLabel:       doc.Label("risk_type", s.RiskType),
		ViolationLabel:  doc.Label("violation_type", s.ViolationType),
		TimingLabel:     doc.Label("timing", s.Timing),
		AccelDecelLabel: doc.Label("accel_decel", s.AccelDecel),
		Latest:          s.Latest,
		Location:        geo.Extract(s.MapViewURL, s.StreetViewURL),
	}
}

// Sort returns a copy of scenes ordered newest first. Scenes with equal
// times keep their input order.
func Sort(scenes []Scene) []Scene {
	out := append([]Scene(nil), scenes...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Time.After(out[j].Time)
	})
	return out
}

// Group buckets sorted scenes by JST year and then by "M/D" label, keeping
// the first-seen order of both.
func Group(sorted []Scene) []YearGroup {
	var years []YearGroup
	yearIdx := map[int]int{}
	dateIdx := map[int]map[string]int{}

	for _, s := range sorted {
		local := s.Time.In(telemetry.JST)
		year, label := local.Year(), dateLabel(local)

		yi, ok := yearIdx[year]
		if !ok {
			yi = len(years)
			yearIdx[year] = yi
			dateIdx[year] = map[string]int{}
			years = append(years, YearGroup{Year: year})
		}
		di, ok := dateIdx[year][label]
		if !ok {
			di = len(years[yi].Dates)
			dateIdx[year][label] = di
			years[yi].Dates = append(years[yi].Dates, DateGroup{DateLabel: label})
		}
		years[yi].Dates[di].Scenes = append(years[yi].Dates[di].Scenes, s)
	}
	return years
}

// Build annotates, sorts, groups and paginates the scenes of one section.
func Build(raw []telemetry.Scene, doc *catalog.Document, limits catalog.PageLimits) []Page {
	annotated := make([]Scene, len(raw))
	for i, s := range raw {
		annotated[i] = Annotate(s, doc)
	}
	return Paginate(Group(Sort(annotated)), limits)
}

func dateLabel(t time.Time) string {
	return fmt.Sprintf("%d/%d", int(t.Month()), t.Day())
}
