// Package report assembles per-driver report objects from telemetry, the
// batch ranking and the configuration document.
package report

import (
	"github.com/TobiSchelling/drivereport/internal/highlight"
	"github.com/TobiSchelling/drivereport/internal/scenes"
	"github.com/TobiSchelling/drivereport/internal/telemetry"
	"github.com/TobiSchelling/drivereport/internal/tone"
)

// Legacy detail section keys mirrored onto top-level report fields.
const (
	KeyBeforeTurn = "sasetumae"
	KeyDuringTurn = "sasetuchuu"
)

// Report is the data model of one driver's report.
type Report struct {
	DriverID            string                `json:"driverId"`
	DriverName          string                `json:"driverName"`
	OfficeName          string                `json:"officeName"`
	CompanyName         string                `json:"companyName"`
	PageTitle           string                `json:"pageTitle"`
	Period              telemetry.Period      `json:"period"`
	AvgViolationRatePct float64               `json:"avgViolationRatePct"`
	Rank                Rank                  `json:"rank"`
	Highlights          []highlight.Highlight `json:"highlights_gaiyou"`
	Sections            []Section             `json:"sections"`
	DetailSections      []DetailSection       `json:"detailSections"`
	MapPoints           []MapPoint            `json:"mapPoints"`

	BeforeTurnPages      []scenes.Page         `json:"sasetumaePages"`
	DuringTurnPages      []scenes.Page         `json:"sasetuchuuPages"`
	BeforeTurnHighlights []highlight.Highlight `json:"highlights_sasetumae"`
	DuringTurnHighlights []highlight.Highlight `json:"highlights_sasetuchuu"`
}

// Rank is a driver's position within the batch it was computed against.
type Rank struct {
	Position int `json:"position"`
	Total    int `json:"total"`
}

// Section groups overview rows sharing a maneuver.
type Section struct {
	Title string `json:"title"`
	Rows  []Row  `json:"rows"`
}

// Row is one event line of the overview table.
type Row struct {
	No         int         `json:"no"`
	Name       string      `json:"name"`
	Tag        string      `json:"tag"`
	Tone       tone.Tone   `json:"tone"`
	Tags       []tone.Tone `json:"tags"`
	Rate       int         `json:"rate"`
	Detail     string      `json:"detail"`
	Count      int         `json:"count"`
	Risk       float64     `json:"risk"`
	PageNumber *int        `json:"pageNumber,omitempty"`
}

// DetailSection is one configured, paginated scene listing.
type DetailSection struct {
	Key        string                `json:"key"`
	Title      string                `json:"title"`
	EventID    *int                  `json:"eventId"`
	Pages      []scenes.Page         `json:"pages"`
	Highlights []highlight.Highlight `json:"highlights"`
	StartPage  int                   `json:"startPage,omitempty"`
}

// MapPoint is a scene position plotted on the overview map.
type MapPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// PageCount is the number of printed pages the section occupies. An empty
// section still takes one page.
func (s DetailSection) PageCount() int {
	return max(1, len(s.Pages))
}
