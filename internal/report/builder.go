package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/TobiSchelling/drivereport/internal/catalog"
	"github.com/TobiSchelling/drivereport/internal/geo"
	"github.com/TobiSchelling/drivereport/internal/highlight"
	"github.com/TobiSchelling/drivereport/internal/metrics"
	"github.com/TobiSchelling/drivereport/internal/ranking"
	"github.com/TobiSchelling/drivereport/internal/scenes"
	"github.com/TobiSchelling/drivereport/internal/telemetry"
	"github.com/TobiSchelling/drivereport/internal/tone"
)

// ErrDriverNotFound is returned when a requested driver is not in the batch.
var ErrDriverNotFound = errors.New("driver not found")

// Options configures a Builder.
type Options struct {
	Logger  *log.Logger
	Verbose bool
	Workers int
	Metrics *metrics.Metrics
}

// Builder turns driver batches into reports. It is safe for concurrent use.
type Builder struct {
	doc     *catalog.Document
	logger  *log.Logger
	verbose bool
	workers int
	metrics *metrics.Metrics

	// section assembles one detail section; replaced in tests.
	section func(d *telemetry.Driver, sec catalog.DetailSection) DetailSection
}

// New creates a builder for a configuration document.
func New(doc *catalog.Document, opts Options) (*Builder, error) {
	if doc == nil {
		return nil, catalog.ErrNoDocument
	}
	b := &Builder{
		doc:     doc,
		logger:  opts.Logger,
		verbose: opts.Verbose,
		workers: opts.Workers,
		metrics: opts.Metrics,
	}
	if b.logger == nil {
		b.logger = log.New(io.Discard, "", 0)
	}
	if b.workers <= 0 {
		b.workers = 4
	}
	b.section = b.buildSection
	return b, nil
}

// BuildAll ranks the batch once and assembles every driver's report
// concurrently. Reports are returned in input order.
func (b *Builder) BuildAll(ctx context.Context, drivers []telemetry.Driver) ([]*Report, error) {
	start := time.Now()
	rk := ranking.Compute(drivers)
	out := make([]*Report, len(drivers))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for i := range drivers {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			st, _ := rk.At(i)
			out[i] = b.Build(&drivers[i], st, rk.Total())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("building reports: %w", err)
	}
	b.metrics.BatchBuilt(time.Since(start))
	return out, nil
}

// BuildDriver assembles one driver's report ranked against the whole batch.
func (b *Builder) BuildDriver(drivers []telemetry.Driver, driverID string) (*Report, error) {
	rk := ranking.Compute(drivers)
	for i := range drivers {
		if drivers[i].ID != driverID {
			continue
		}
		st, _ := rk.At(i)
		return b.Build(&drivers[i], st, rk.Total()), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrDriverNotFound, driverID)
}

// Build assembles one report from a driver and its precomputed standing.
func (b *Builder) Build(d *telemetry.Driver, st ranking.Standing, total int) *Report {
	r := &Report{
		DriverID:             d.ID,
		DriverName:           d.Name,
		OfficeName:           d.OfficeName,
		CompanyName:          d.CompanyName,
		PageTitle:            b.doc.PageTitle,
		Period:               d.Period,
		AvgViolationRatePct:  st.Rate,
		Rank:                 Rank{Position: st.Rank, Total: total},
		Sections:             []Section{},
		DetailSections:       []DetailSection{},
		BeforeTurnPages:      []scenes.Page{},
		DuringTurnPages:      []scenes.Page{},
		BeforeTurnHighlights: []highlight.Highlight{},
		DuringTurnHighlights: []highlight.Highlight{},
	}

	hs, overrides := highlight.Overview(b.doc, d)
	r.Highlights = hs
	r.MapPoints = mapPoints(d)
	r.Sections = b.overviewSections(d, overrides)

	details, err := b.detailSections(d)
	if err != nil {
		b.logger.Printf("driver=%s detail sections failed: %v", d.ID, err)
		b.metrics.DetailFailure()
	} else {
		r.DetailSections = details
		r.applyAliases()
		r.assignPageNumbers()
	}

	b.metrics.ReportBuilt()
	return r
}

// overviewSections groups event rows by maneuver in first-seen order. Events
// without an item-map entry are skipped.
func (b *Builder) overviewSections(d *telemetry.Driver, overrides tone.Overrides) []Section {
	cls := tone.Classifier{Mode: b.doc.ToneMode, Thresholds: b.doc.Thresholds, Overrides: overrides}
	out := []Section{}
	idx := map[string]int{}

	for _, ev := range d.Events {
		item, ok := b.doc.Item(ev.ID)
		if !ok {
			continue
		}
		rate := ranking.Percent(ev.Violations, ev.Total)
		primary, tags := cls.Resolve(ev.ID, float64(rate))
		if tags == nil {
			tags = []tone.Tone{}
		}

		i, ok := idx[item.Maneuver]
		if !ok {
			i = len(out)
			idx[item.Maneuver] = i
			out = append(out, Section{Title: item.Maneuver})
		}
		out[i].Rows = append(out[i].Rows, Row{
			No:     ev.ID,
			Name:   item.Name,
			Tag:    primary.Tag(),
			Tone:   primary,
			Tags:   tags,
			Rate:   rate,
			Detail: highlight.CountDetail(ev.Violations, ev.Total),
			Count:  ev.Violations,
			Risk:   ev.Risk,
		})
	}
	return out
}

// detailSections builds every configured section in order. A panic in any
// section fails the whole list.
func (b *Builder) detailSections(d *telemetry.Driver) (out []DetailSection, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			out, err = nil, fmt.Errorf("assembling detail sections: %v", rec)
		}
	}()

	out = make([]DetailSection, 0, len(b.doc.DetailSections))
	for _, sec := range b.doc.DetailSections {
		out = append(out, b.section(d, sec))
	}
	return out, nil
}

func (b *Builder) buildSection(d *telemetry.Driver, sec catalog.DetailSection) DetailSection {
	var ev *telemetry.Event
	if sec.EventID != nil {
		ev, _ = d.EventByID(*sec.EventID)
	}

	var raw []telemetry.Scene
	if ev != nil {
		raw = ev.Scenes
	}
	pages := scenes.Build(raw, b.doc, b.doc.PageLimits)
	if pages == nil {
		pages = []scenes.Page{}
	}

	hs := highlight.Section(b.doc, b.doc.Highlights[sec.HighlightsKey], ev)
	if hs == nil {
		hs = []highlight.Highlight{}
	}

	if b.verbose {
		eventID := "-"
		if sec.EventID != nil {
			eventID = fmt.Sprint(*sec.EventID)
		}
		b.logger.Printf("driver=%s section=%s event=%s scenes=%d pages=%d highlights=%d",
			d.ID, sec.Key, eventID, len(raw), len(pages), len(hs))
	}

	return DetailSection{
		Key:        sec.Key,
		Title:      sec.Title,
		EventID:    sec.EventID,
		Pages:      pages,
		Highlights: hs,
	}
}

// applyAliases mirrors the first section of each legacy key onto the
// top-level fields older templates read.
func (r *Report) applyAliases() {
	if s, ok := r.findSection(KeyBeforeTurn); ok {
		r.BeforeTurnPages = s.Pages
		r.BeforeTurnHighlights = s.Highlights
	}
	if s, ok := r.findSection(KeyDuringTurn); ok {
		r.DuringTurnPages = s.Pages
		r.DuringTurnHighlights = s.Highlights
	}
}

func (r *Report) findSection(key string) (DetailSection, bool) {
	for _, s := range r.DetailSections {
		if s.Key == key {
			return s, true
		}
	}
	return DetailSection{}, false
}

// StartPages returns the first page of each section's event. The overview is
// page 1 and every section occupies at least one page. When several sections
// share an event the later one wins.
func (r *Report) StartPages() map[int]int {
	starts := map[int]int{}
	counter := 1
	for _, s := range r.DetailSections {
		if s.EventID != nil {
			starts[*s.EventID] = counter + 1
		}
		counter += s.PageCount()
	}
	return starts
}

func (r *Report) assignPageNumbers() {
	counter := 1
	for i := range r.DetailSections {
		r.DetailSections[i].StartPage = counter + 1
		counter += r.DetailSections[i].PageCount()
	}

	starts := r.StartPages()
	for i := range r.Sections {
		for j := range r.Sections[i].Rows {
			row := &r.Sections[i].Rows[j]
			if p, ok := starts[row.No]; ok {
				row.PageNumber = &p
			}
		}
	}
}

// mapPoints collects every scene position with finite coordinates.
func mapPoints(d *telemetry.Driver) []MapPoint {
	out := []MapPoint{}
	for _, ev := range d.Events {
		for _, s := range ev.Scenes {
			loc := geo.Extract(s.MapViewURL, s.StreetViewURL)
			if loc.HasCoordinates() {
				out = append(out, MapPoint{Lat: *loc.Lat, Lon: *loc.Lon})
			}
		}
	}
	return out
}
