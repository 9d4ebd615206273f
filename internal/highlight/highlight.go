// Package highlight builds the callout texts shown on overview and detail
// pages from configured templates and per-driver precomputed texts.
package highlight

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/TobiSchelling/drivereport/internal/catalog"
	"github.com/TobiSchelling/drivereport/internal/ranking"
	"github.com/TobiSchelling/drivereport/internal/telemetry"
	"github.com/TobiSchelling/drivereport/internal/tone"
)

// Placeholder texts used when a title or body cannot be resolved.
const (
	TitleUnset = "タイトル未設定"
	BodyUnset  = "本文未設定"
)

// uncomputableText replaces calc placeholders that cannot be evaluated.
const uncomputableText = "-"

var calcPattern = regexp.MustCompile(`%calc:([^%]*)%`)

// Highlight is one rendered callout.
type Highlight struct {
	Kind       string   `json:"kind"`
	Badge      string   `json:"badge"`
	Title      string   `json:"title"`
	Text       string   `json:"text"`
	EventID    *int     `json:"eventId,omitempty"`
	Risk       *float64 `json:"risk,omitempty"`
	Rate       *int     `json:"rate,omitempty"`
	Violations *int     `json:"violations,omitempty"`
	Total      *int     `json:"total,omitempty"`
	Detail     string   `json:"detail,omitempty"`
	Metric     *string  `json:"metric,omitempty"`
}

// Fields exposes an event's counts to templates and calc expressions.
func Fields(ev telemetry.Event) map[string]float64 {
	return map[string]float64{
		"total":      float64(ev.Total),
		"violations": float64(ev.Violations),
		"rate":       float64(ranking.Percent(ev.Violations, ev.Total)),
		"risk":       ev.Risk,
	}
}

// Expand fills a text template from an event's counts. %TOTAL%, %VIOLATIONS%,
// %RATE% (whole percent) and %RISK% are replaced literally; %calc:<expr>% is
// evaluated with Evaluate and renders as "-" when uncomputable.
func Expand(template string, ev telemetry.Event) string {
	if template == "" {
		return ""
	}
	fields := Fields(ev)
	text := strings.NewReplacer(
		"%TOTAL%", strconv.Itoa(ev.Total),
		"%VIOLATIONS%", strconv.Itoa(ev.Violations),
		"%RATE%", strconv.Itoa(ranking.Percent(ev.Violations, ev.Total)),
		"%RISK%", formatNumber(ev.Risk),
	).Replace(template)

	return calcPattern.ReplaceAllStringFunc(text, func(m string) string {
		expr := calcPattern.FindStringSubmatch(m)[1]
		v, err := Evaluate(expr, fields)
		if err != nil {
			return uncomputableText
		}
		return formatNumber(v)
	})
}

// ResolveTitle returns title when set, else the item name of the first
// referenced event, else the title of a detail section bound to it, else
// TitleUnset.
func ResolveTitle(doc *catalog.Document, title string, eventIDs ...int) string {
	if t := strings.TrimSpace(title); t != "" {
		return t
	}
	for _, id := range eventIDs {
		if it, ok := doc.Item(id); ok && strings.TrimSpace(it.Name) != "" {
			return it.Name
		}
	}
	for _, id := range eventIDs {
		if t, ok := doc.SectionTitle(id); ok {
			return t
		}
	}
	return TitleUnset
}

// FromTemplate builds a highlight by substituting an event's counts into the
// kind's text template. The title comes from the event's item name.
func FromTemplate(doc *catalog.Document, kind string, meta catalog.HighlightMeta, ev telemetry.Event) Highlight {
	h := Highlight{
		Kind:  kind,
		Badge: meta.Badge,
		Title: ResolveTitle(doc, "", ev.ID),
		Text:  Expand(meta.TextTemplate, ev),
	}
	h.attachCounts(ev)
	return h.finalize()
}

// Direct builds a highlight from a precomputed overview entry. A blank body
// falls back to the kind's template when the referenced event exists.
func Direct(doc *catalog.Document, kind string, meta catalog.HighlightMeta, entry telemetry.OverviewEntry, ev *telemetry.Event) Highlight {
	ids := entry.EventIDs
	if ev != nil {
		ids = append([]int{ev.ID}, ids...)
	}
	h := Highlight{
		Kind:   kind,
		Badge:  meta.Badge,
		Title:  ResolveTitle(doc, entry.Title, ids...),
		Text:   strings.TrimSpace(entry.Body),
		Metric: entry.Metric,
	}
	if ev != nil {
		if h.Text == "" {
			h.Text = Expand(meta.TextTemplate, *ev)
		}
		h.attachCounts(*ev)
	}
	return h.finalize()
}

// Overview builds the overview highlights for a driver. Events named by the
// driver's own overview entries are tagged with the entry's tone in the
// returned overrides. The configured template id only picks the event a
// template highlight is filled from.
func Overview(doc *catalog.Document, d *telemetry.Driver) ([]Highlight, tone.Overrides) {
	overrides := tone.Overrides{}
	set := doc.Highlights[catalog.OverviewKey]
	out := make([]Highlight, 0, len(set))

	for _, kind := range set.Kinds() {
		meta := set[kind]
		entry, hasEntry := d.OverviewFor(kind)

		var refs []int
		if hasEntry {
			refs = append(refs, entry.EventIDs...)
		}
		if meta.ID != nil {
			refs = append(refs, *meta.ID)
		}
		var ev *telemetry.Event
		for _, id := range refs {
			if found, ok := d.EventByID(id); ok {
				ev = found
				break
			}
		}

		var h Highlight
		switch {
		case hasEntry:
			h = Direct(doc, kind, meta, *entry, ev)
		case ev != nil:
			h = FromTemplate(doc, kind, meta, *ev)
		default:
			continue
		}
		out = append(out, h)

		if !hasEntry {
			continue
		}
		t := tone.Parse(kind)
		for _, id := range entry.EventIDs {
			if _, ok := d.EventByID(id); ok {
				overrides.Add(id, t)
			}
		}
	}
	return out, overrides
}

// Section builds the highlights of one detail section from its event. Danger
// highlights carry the risk score, warn highlights the rate detail.
func Section(doc *catalog.Document, set catalog.HighlightSet, ev *telemetry.Event) []Highlight {
	if ev == nil || len(set) == 0 {
		return nil
	}
	out := make([]Highlight, 0, len(set))
	for _, kind := range set.Kinds() {
		h := FromTemplate(doc, kind, set[kind], *ev)
		switch tone.Parse(kind) {
		case tone.Danger:
			risk := ev.Risk
			h.Risk = &risk
		case tone.Warn:
			h.Detail = CountDetail(ev.Violations, ev.Total)
		}
		out = append(out, h)
	}
	return out
}

// CountDetail renders "(v回/t回)".
func CountDetail(violations, total int) string {
	return fmt.Sprintf("(%d回/%d回)", violations, total)
}

func (h *Highlight) attachCounts(ev telemetry.Event) {
	id, v, t := ev.ID, ev.Violations, ev.Total
	rate := ranking.Percent(v, t)
	h.EventID = &id
	h.Violations = &v
	h.Total = &t
	h.Rate = &rate
}

func (h Highlight) finalize() Highlight {
	if strings.TrimSpace(h.Title) == "" {
		h.Title = TitleUnset
	}
	if strings.TrimSpace(h.Text) == "" {
		h.Text = BodyUnset
	}
	return h
}
