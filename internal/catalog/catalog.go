// Package catalog loads the site-configurable report document: item names,
// highlight templates, detail sections, tone thresholds and page limits.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/TobiSchelling/drivereport/internal/tone"
)

//go:embed sample.json
var SampleDocumentJSON []byte

// ErrNoDocument is returned when no configuration document is supplied.
var ErrNoDocument = errors.New("report configuration document is missing")

// OverviewKey is the highlight set used on the overview page.
const OverviewKey = "highlights_gaiyou"

const highlightPrefix = "highlights_"

// Default page capacities, in scene rows.
const (
	DefaultFirstPageLimit = 14
	DefaultOtherPageLimit = 22
)

// PageMode selects how oversized date chunks are paginated.
type PageMode string

const (
	// PageModeSplit slices a date chunk across pages when it exceeds a page.
	PageModeSplit PageMode = "split"
	// PageModeChunk keeps each date chunk on one page.
	PageModeChunk PageMode = "chunk"
)

// Document is the parsed configuration. It is shared read-only across a run.
type Document struct {
	PageTitle      string
	ItemMap        map[string]Item
	DetailSections []DetailSection
	Highlights     map[string]HighlightSet
	Thresholds     tone.Thresholds
	ToneMode       tone.Mode
	PageLimits     PageLimits
	Labels         map[string]map[string]string
}

// Item describes one event id.
type Item struct {
	Name     string `yaml:"name"`
	Maneuver string `yaml:"maneuver"`
	Page     int    `yaml:"page"`
}

// DetailSection configures one paginated scene listing.
type DetailSection struct {
	Key           string `yaml:"key"`
	Title         string `yaml:"title"`
	EventID       *int   `yaml:"eventId"`
	HighlightsKey string `yaml:"highlightsKey"`
}

// HighlightMeta is the configuration of one highlight kind.
type HighlightMeta struct {
	ID           *int
	Badge        string
	TextTemplate string
}

// HighlightSet maps kind names to their configuration.
type HighlightSet map[string]HighlightMeta

// PageLimits are the row capacities of detail pages.
type PageLimits struct {
	First int
	Other int
	Mode  PageMode
}

// knownKinds fixes the iteration order of highlight kinds.
var knownKinds = []string{string(tone.Danger), string(tone.Warn), string(tone.Good)}

// Kinds returns the kinds of the set in a deterministic order: danger, warn,
// good, then any other kinds sorted by name.
func (s HighlightSet) Kinds() []string {
	out := make([]string, 0, len(s))
	for _, k := range knownKinds {
		if _, ok := s[k]; ok {
			out = append(out, k)
		}
	}
	var extra []string
	for k := range s {
		if !slices.Contains(knownKinds, k) {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}

// Item returns the item-map entry for an event id.
func (d *Document) Item(eventID int) (Item, bool) {
	if d == nil {
		return Item{}, false
	}
	it, ok := d.ItemMap[strconv.Itoa(eventID)]
	return it, ok
}

// SectionTitle returns the title of the first detail section bound to eventID.
func (d *Document) SectionTitle(eventID int) (string, bool) {
	if d == nil {
		return "", false
	}
	for _, s := range d.DetailSections {
		if s.EventID != nil && *s.EventID == eventID && strings.TrimSpace(s.Title) != "" {
			return s.Title, true
		}
	}
	return "", false
}

// Label returns the display label of an enumerated scene field, or the raw
// value when no label is configured.
func (d *Document) Label(field, value string) string {
	if d == nil || value == "" {
		return value
	}
	if label, ok := d.Labels[field][value]; ok && label != "" {
		return label
	}
	return value
}

// Load reads a configuration document from disk.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report config: %w", err)
	}
	return Parse(data)
}

type rawDocument struct {
	PageTitle        string                       `yaml:"pageTitle"`
	ItemMap          map[string]Item              `yaml:"itemMap"`
	DetailSections   []DetailSection              `yaml:"detailSections"`
	Thresholds       map[string]any               `yaml:"thresholds"`
	ToneMode         string                       `yaml:"toneMode"`
	DetailPageLimits map[string]any               `yaml:"detailPageLimits"`
	Labels           map[string]map[string]string `yaml:"labels"`
}

type rawHighlightMeta struct {
	ID           any    `yaml:"id"`
	Badge        string `yaml:"badge"`
	TextTemplate string `yaml:"text_template"`
}

// Parse decodes a configuration document. JSON input is accepted.
func Parse(data []byte) (*Document, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrNoDocument
	}
	if data[0] == '{' {
		// JSON cannot hold raw tabs inside strings, and YAML rejects them as indentation.
		data = bytes.ReplaceAll(data, []byte("\t"), []byte(" "))
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parsing report config: %w", err)
	}
	if len(root.Content) == 0 || root.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parsing report config: top level must be an object")
	}
	mapping := root.Content[0]

	var raw rawDocument
	if err := mapping.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parsing report config: %w", err)
	}

	doc := &Document{
		PageTitle:      raw.PageTitle,
		ItemMap:        raw.ItemMap,
		DetailSections: raw.DetailSections,
		Highlights:     make(map[string]HighlightSet),
		Thresholds:     tone.CoerceThresholds(raw.Thresholds),
		ToneMode:       parseToneMode(raw.ToneMode),
		PageLimits:     coercePageLimits(raw.DetailPageLimits),
		Labels:         raw.Labels,
	}
	if doc.ItemMap == nil {
		doc.ItemMap = make(map[string]Item)
	}

	for i := 0; i+1 < len(mapping.Content); i += 2 {
		key := mapping.Content[i].Value
		if !strings.HasPrefix(key, highlightPrefix) {
			continue
		}
		var metas map[string]rawHighlightMeta
		if err := mapping.Content[i+1].Decode(&metas); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", key, err)
		}
		set := make(HighlightSet, len(metas))
		for kind, m := range metas {
			set[kind] = HighlightMeta{
				ID:           coerceID(m.ID),
				Badge:        m.Badge,
				TextTemplate: m.TextTemplate,
			}
		}
		doc.Highlights[key] = set
	}

	return doc, nil
}

func parseToneMode(s string) tone.Mode {
	if tone.Mode(strings.ToLower(strings.TrimSpace(s))) == tone.ModeThreshold {
		return tone.ModeThreshold
	}
	return tone.ModeOverride
}

func coercePageLimits(raw map[string]any) PageLimits {
	limits := PageLimits{
		First: DefaultFirstPageLimit,
		Other: DefaultOtherPageLimit,
		Mode:  PageModeSplit,
	}
	if n, ok := positiveInt(raw["first"]); ok {
		limits.First = n
	}
	if n, ok := positiveInt(raw["other"]); ok {
		limits.Other = n
	}
	if mode, ok := raw["mode"].(string); ok && PageMode(strings.ToLower(mode)) == PageModeChunk {
		limits.Mode = PageModeChunk
	}
	return limits
}

func positiveInt(v any) (int, bool) {
	var n int
	switch x := v.(type) {
	case int:
		n = x
	case float64:
		n = int(x)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return 0, false
		}
		n = parsed
	default:
		return 0, false
	}
	return n, n > 0
}

func coerceID(v any) *int {
	switch x := v.(type) {
	case int:
		return &x
	case float64:
		n := int(x)
		return &n
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(x)); err == nil {
			return &n
		}
	}
	return nil
}
