// Package tone classifies violation rates into display severities.
package tone

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// Tone is a severity class driving row and highlight styling.
type Tone string

const (
	None   Tone = ""
	Danger Tone = "danger"
	Warn   Tone = "warn"
	Good   Tone = "good"
)

// Priority orders tones when several apply to one event.
func (t Tone) Priority() int {
	switch t {
	case Danger:
		return 3
	case Warn:
		return 2
	case Good:
		return 1
	}
	return 0
}

// Tag is the short marker shown next to a row.
func (t Tone) Tag() string {
	switch t {
	case Danger, Warn:
		return "!"
	case Good:
		return "good"
	}
	return ""
}

// Parse maps a kind name onto a tone. Unknown names yield None.
func Parse(s string) Tone {
	switch Tone(strings.ToLower(strings.TrimSpace(s))) {
	case Danger:
		return Danger
	case Warn:
		return Warn
	case Good:
		return Good
	}
	return None
}

// Thresholds are the rate boundaries for threshold classification.
type Thresholds struct {
	Danger float64 `json:"danger"`
	Warn   float64 `json:"warn"`
	Good   float64 `json:"good"`
}

// DefaultThresholds returns the 10/5/0 boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{Danger: 10, Warn: 5, Good: 0}
}

// CoerceThresholds builds thresholds from loosely typed configuration values.
// Missing, non-numeric or non-finite values keep their default.
func CoerceThresholds(raw map[string]any) Thresholds {
	th := DefaultThresholds()
	th.Danger = coerce(raw["danger"], th.Danger)
	th.Warn = coerce(raw["warn"], th.Warn)
	th.Good = coerce(raw["good"], th.Good)
	return th
}

// Classify applies the threshold rule: rate >= danger, then >= warn, then
// <= good. Rates between good and warn have no tone.
func Classify(rate float64, th Thresholds) Tone {
	switch {
	case rate >= th.Danger:
		return Danger
	case rate >= th.Warn:
		return Warn
	case rate <= th.Good:
		return Good
	}
	return None
}

// Overrides records explicit tones assigned to events, typically because an
// overview highlight of that kind references the event.
type Overrides map[int][]Tone

// Add tags an event with a tone. Duplicates and None are ignored.
func (o Overrides) Add(eventID int, t Tone) {
	if t == None {
		return
	}
	for _, existing := range o[eventID] {
		if existing == t {
			return
		}
	}
	o[eventID] = append(o[eventID], t)
}

// Tones returns the tones assigned to an event, highest priority first.
func (o Overrides) Tones(eventID int) []Tone {
	tones := append([]Tone(nil), o[eventID]...)
	sort.SliceStable(tones, func(i, j int) bool {
		return tones[i].Priority() > tones[j].Priority()
	})
	return tones
}

// Mode selects how the classifier resolves an event's tone.
type Mode string

const (
	// ModeOverride uses override tags when an event has any and falls back
	// to thresholds otherwise.
	ModeOverride Mode = "override"
	// ModeThreshold ignores overrides.
	ModeThreshold Mode = "threshold"
)

// Classifier resolves the tone of an event row.
type Classifier struct {
	Mode       Mode
	Thresholds Thresholds
	Overrides  Overrides
}

// Resolve returns the primary tone of an event and its ordered tag list.
func (c Classifier) Resolve(eventID int, rate float64) (Tone, []Tone) {
	if c.Mode != ModeThreshold {
		if tags := c.Overrides.Tones(eventID); len(tags) > 0 {
			return tags[0], tags
		}
	}
	t := Classify(rate, c.Thresholds)
	if t == None {
		return None, nil
	}
	return t, []Tone{t}
}

func coerce(v any, def float64) float64 {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return def
		}
		f = parsed
	default:
		return def
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	return f
}
