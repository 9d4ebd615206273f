package telemetry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrEmptyPayload is returned when Decode receives no data.
var ErrEmptyPayload = errors.New("empty driver payload")

// Decode parses a driver payload into canonical records. The payload may be a
// single driver object, an array of drivers, or an object with a "drivers"
// array. Field names are accepted in camelCase or snake_case.
func Decode(data []byte) ([]Driver, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrEmptyPayload
	}

	var raws []rawDriver
	switch data[0] {
	case '[':
		if err := jsonAPI.Unmarshal(data, &raws); err != nil {
			return nil, fmt.Errorf("parsing driver list: %w", err)
		}
	case '{':
		var envelope struct {
			Drivers []rawDriver `json:"drivers"`
		}
		if err := jsonAPI.Unmarshal(data, &envelope); err != nil {
			return nil, fmt.Errorf("parsing driver payload: %w", err)
		}
		if envelope.Drivers != nil {
			raws = envelope.Drivers
			break
		}
		var single rawDriver
		if err := jsonAPI.Unmarshal(data, &single); err != nil {
			return nil, fmt.Errorf("parsing driver: %w", err)
		}
		raws = []rawDriver{single}
	default:
		return nil, fmt.Errorf("parsing driver payload: unexpected leading %q", data[0])
	}

	drivers := make([]Driver, 0, len(raws))
	for _, r := range raws {
		drivers = append(drivers, r.normalize())
	}
	return drivers, nil
}

type rawDriver struct {
	DriverID         flexString `json:"driverId"`
	DriverIDSnake    flexString `json:"driver_id"`
	DriverName       flexString `json:"driverName"`
	DriverNameSnake  flexString `json:"driver_name"`
	OfficeName       flexString `json:"officeName"`
	OfficeNameSnake  flexString `json:"office_name"`
	CompanyName      flexString `json:"companyName"`
	CompanyNameSnake flexString `json:"company_name"`
	Period           *rawPeriod `json:"period"`
	Events           []rawEvent `json:"events"`
	Stats            *rawStats  `json:"stats"`
}

type rawPeriod struct {
	Start             flexString `json:"start"`
	StartDate         flexString `json:"startDate"`
	StartDateSnake    flexString `json:"start_date"`
	End               flexString `json:"end"`
	EndDate           flexString `json:"endDate"`
	EndDateSnake      flexString `json:"end_date"`
	Days              flexNumber `json:"days"`
	DayCount          flexNumber `json:"dayCount"`
	DayCountSnake     flexNumber `json:"day_count"`
	TotalMinutes      flexNumber `json:"totalMinutes"`
	TotalMinutesSnake flexNumber `json:"total_minutes"`
}

type rawEvent struct {
	ID         flexNumber `json:"id"`
	Violations flexNumber `json:"violations"`
	Total      flexNumber `json:"total"`
	Risk       flexNumber `json:"risk"`
	Scenes     []rawScene `json:"scenes"`
}

type rawScene struct {
	CapturedAt         flexString `json:"capturedAt"`
	CapturedAtSnake    flexString `json:"captured_at"`
	Datetime           flexString `json:"datetime"`
	MapViewURL         flexString `json:"mapViewUrl"`
	MapViewURLSnake    flexString `json:"map_view_url"`
	MapURL             flexString `json:"map_url"`
	StreetViewURL      flexString `json:"streetViewUrl"`
	StreetViewURLSnake flexString `json:"street_view_url"`
	MovieURL           flexString `json:"movieUrl"`
	MovieURLSnake      flexString `json:"movie_url"`
	RiskType           flexString `json:"riskType"`
	RiskTypeSnake      flexString `json:"risk_type"`
	ViolationType      flexString `json:"violationType"`
	ViolationTypeSnake flexString `json:"violation_type"`
	Timing             flexString `json:"timing"`
	TimingType         flexString `json:"timing_type"`
	AccelDecel         flexString `json:"accelDecel"`
	AccelDecelSnake    flexString `json:"accel_decel"`
	Latest             *bool      `json:"latest"`
	LatestViolation    *bool      `json:"latestViolation"`
	LatestViolationSn  *bool      `json:"latest_violation"`
}

type rawStats struct {
	AvgViolationRatePct      flexNumber                  `json:"avgViolationRatePct"`
	AvgViolationRatePctSnake flexNumber                  `json:"avg_violation_rate_pct"`
	Highlights               map[string]rawOverviewEntry `json:"highlights"`
	HighlightsGaiyou         map[string]rawOverviewEntry `json:"highlights_gaiyou"`
}

type rawOverviewEntry struct {
	Title         flexString   `json:"title"`
	Body          flexString   `json:"body"`
	Text          flexString   `json:"text"`
	Metric        flexString   `json:"metric"`
	EventID       flexNumber   `json:"eventId"`
	EventIDSnake  flexNumber   `json:"event_id"`
	EventIDs      []flexNumber `json:"eventIds"`
	EventIDsSnake []flexNumber `json:"event_ids"`
}

func (r rawDriver) normalize() Driver {
	d := Driver{
		ID:          first(r.DriverID, r.DriverIDSnake),
		Name:        first(r.DriverName, r.DriverNameSnake),
		OfficeName:  first(r.OfficeName, r.OfficeNameSnake),
		CompanyName: first(r.CompanyName, r.CompanyNameSnake),
	}
	if r.Period != nil {
		d.Period = r.Period.normalize()
	}
	d.Events = make([]Event, 0, len(r.Events))
	for _, e := range r.Events {
		d.Events = append(d.Events, e.normalize())
	}
	if r.Stats != nil {
		d.Stats = r.Stats.normalize()
	}
	return d
}

func (p rawPeriod) normalize() Period {
	var out Period
	if s := first(p.Start, p.StartDate, p.StartDateSnake); s != "" {
		out.Start = &s
	}
	if s := first(p.End, p.EndDate, p.EndDateSnake); s != "" {
		out.End = &s
	}
	if n, ok := firstNumber(p.Days, p.DayCount, p.DayCountSnake); ok {
		days := int(n)
		out.Days = &days
	}
	if n, ok := firstNumber(p.TotalMinutes, p.TotalMinutesSnake); ok {
		out.TotalMinutes = &n
	}
	return out
}

func (e rawEvent) normalize() Event {
	out := Event{
		ID:         int(e.ID.value),
		Violations: int(e.Violations.value),
		Total:      int(e.Total.value),
		Risk:       e.Risk.value,
		Scenes:     make([]Scene, 0, len(e.Scenes)),
	}
	for _, s := range e.Scenes {
		out.Scenes = append(out.Scenes, s.normalize())
	}
	return out
}

func (s rawScene) normalize() Scene {
	out := Scene{
		CapturedAt:    first(s.CapturedAt, s.CapturedAtSnake, s.Datetime),
		MapViewURL:    first(s.MapViewURL, s.MapViewURLSnake, s.MapURL),
		StreetViewURL: first(s.StreetViewURL, s.StreetViewURLSnake),
		MovieURL:      first(s.MovieURL, s.MovieURLSnake),
		RiskType:      first(s.RiskType, s.RiskTypeSnake),
		ViolationType: first(s.ViolationType, s.ViolationTypeSnake),
		Timing:        first(s.Timing, s.TimingType),
		AccelDecel:    first(s.AccelDecel, s.AccelDecelSnake),
	}
	for _, b := range []*bool{s.Latest, s.LatestViolation, s.LatestViolationSn} {
		if b != nil {
			out.Latest = *b
			break
		}
	}
	return out
}

func (s rawStats) normalize() *Stats {
	out := &Stats{}
	if n, ok := firstNumber(s.AvgViolationRatePct, s.AvgViolationRatePctSnake); ok {
		out.AvgViolationRatePct = &n
	}
	entries := s.HighlightsGaiyou
	if len(entries) == 0 {
		entries = s.Highlights
	}
	kinds := make([]string, 0, len(entries))
	for k := range entries {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		out.Overview = append(out.Overview, entries[kind].normalize(kind))
	}
	return out
}

func (e rawOverviewEntry) normalize(kind string) OverviewEntry {
	out := OverviewEntry{
		Kind:  kind,
		Title: first(e.Title),
		Body:  first(e.Body, e.Text),
	}
	if e.Metric.set {
		m := e.Metric.value
		out.Metric = &m
	}
	if id, ok := firstNumber(e.EventID, e.EventIDSnake); ok {
		out.EventIDs = append(out.EventIDs, int(id))
	}
	for _, list := range [][]flexNumber{e.EventIDs, e.EventIDsSnake} {
		for _, id := range list {
			if id.set {
				out.EventIDs = append(out.EventIDs, int(id.value))
			}
		}
	}
	return out
}

// flexString accepts a JSON string, number or boolean and keeps its text.
type flexString struct {
	value string
	set   bool
}

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		f.value, f.set = s, true
		return nil
	}
	f.value, f.set = string(b), true
	return nil
}

// flexNumber accepts a JSON number or a numeric string. Anything else is
// treated as absent rather than failing the whole payload.
type flexNumber struct {
	value float64
	set   bool
}

func (f *flexNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	text := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &text); err != nil {
			return err
		}
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return nil
	}
	f.value, f.set = n, true
	return nil
}

func first(values ...flexString) string {
	for _, v := range values {
		if s := strings.TrimSpace(v.value); v.set && s != "" {
			return s
		}
	}
	return ""
}

func firstNumber(values ...flexNumber) (float64, bool) {
	for _, v := range values {
		if v.set {
			return v.value, true
		}
	}
	return 0, false
}
