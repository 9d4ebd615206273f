package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/zeebo/xxh3"

	"github.com/TobiSchelling/drivereport/internal/catalog"
	"github.com/TobiSchelling/drivereport/internal/config"
	"github.com/TobiSchelling/drivereport/internal/database"
	"github.com/TobiSchelling/drivereport/internal/metrics"
	"github.com/TobiSchelling/drivereport/internal/render"
	"github.com/TobiSchelling/drivereport/internal/report"
	"github.com/TobiSchelling/drivereport/internal/telemetry"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of a full pipeline run.
type Result struct {
	Source    string
	OutputDir string
	Reports   []*report.Report
	Steps     []StepResult
}

// Failed reports whether any step returned an error.
func (r *Result) Failed() bool {
	for _, s := range r.Steps {
		if s.Err != nil {
			return true
		}
	}
	return false
}

// Pipeline builds report files for a batch of drivers.
type Pipeline struct {
	cfg     *config.Config
	db      *database.DB
	metrics *metrics.Metrics
	verbose bool
	now     func() time.Time

	doc     *catalog.Document
	drivers []telemetry.Driver
}

// New creates a new pipeline. db may be nil, in which case runs are not
// recorded.
func New(cfg *config.Config, db *database.DB, m *metrics.Metrics, verbose bool) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		db:      db,
		metrics: m,
		verbose: verbose,
		now:     time.Now,
	}
}

// Run executes the five build steps against the data file at source.
func (p *Pipeline) Run(ctx context.Context, source, outDir string) *Result {
	r := &Result{Source: source, OutputDir: outDir}
	start := p.now()

	// Step 1: Load configuration document
	step := p.runLoadCatalog()
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		return r
	}

	// Step 2: Decode driver data
	step = p.runDecode(source)
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		return r
	}

	// Step 3: Build reports
	reports, step := p.runBuild(ctx)
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		return r
	}
	r.Reports = reports

	// Step 4: Write output
	step = p.runWrite(reports, outDir)
	r.Steps = append(r.Steps, step)

	// Step 5: Record run
	r.Steps = append(r.Steps, p.runRecord(source, reports, p.now().Sub(start)))

	return r
}

// DryRun shows what would be done without building or writing anything.
func (p *Pipeline) DryRun(source, outDir string) *Result {
	r := &Result{Source: source, OutputDir: outDir}

	step := p.runLoadCatalog()
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		return r
	}

	step = p.runDecode(source)
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		return r
	}

	r.Steps = append(r.Steps,
		StepResult{
			Name:    "Build",
			Summary: fmt.Sprintf("[dry-run] Would build %d reports with %d detail sections each", len(p.drivers), len(p.doc.DetailSections)),
		},
		StepResult{
			Name:    "Write",
			Summary: fmt.Sprintf("[dry-run] Would write %d files to %s", 2*len(p.drivers)+1, outDir),
		},
	)
	return r
}

func (p *Pipeline) runLoadCatalog() StepResult {
	log.Println("Step 1/5: Loading configuration document...")
	doc, err := catalog.Load(p.cfg.Report.CatalogPath)
	if err != nil {
		return StepResult{Name: "Catalog", Err: err}
	}
	p.doc = doc
	return StepResult{
		Name:    "Catalog",
		Summary: fmt.Sprintf("Loaded %d items, %d detail sections", len(doc.ItemMap), len(doc.DetailSections)),
	}
}

func (p *Pipeline) runDecode(source string) StepResult {
	log.Println("Step 2/5: Decoding driver data...")
	data, err := os.ReadFile(source)
	if err != nil {
		return StepResult{Name: "Decode", Err: fmt.Errorf("reading driver data: %w", err)}
	}
	drivers, err := telemetry.Decode(data)
	if err != nil {
		return StepResult{Name: "Decode", Err: err}
	}
	p.drivers = drivers

	events := 0
	for _, d := range drivers {
		events += len(d.Events)
	}
	return StepResult{
		Name:    "Decode",
		Summary: fmt.Sprintf("Decoded %d drivers, %d events", len(drivers), events),
	}
}

func (p *Pipeline) runBuild(ctx context.Context) ([]*report.Report, StepResult) {
	log.Println("Step 3/5: Building reports...")
	builder, err := report.New(p.doc, report.Options{
		Logger:  log.Default(),
		Verbose: p.verbose,
		Workers: p.cfg.Report.Workers,
		Metrics: p.metrics,
	})
	if err != nil {
		return nil, StepResult{Name: "Build", Err: err}
	}
	reports, err := builder.BuildAll(ctx, p.drivers)
	if err != nil {
		return nil, StepResult{Name: "Build", Err: err}
	}

	pages := 0
	for _, rep := range reports {
		for _, sec := range rep.DetailSections {
			pages += sec.PageCount()
		}
	}
	summary := fmt.Sprintf("Built %d reports, %d detail pages", len(reports), pages)
	if n := p.detailFailures(reports); n > 0 {
		summary += fmt.Sprintf(", %d without detail sections", n)
	}
	return reports, StepResult{Name: "Build", Summary: summary}
}

// runWrite writes reports.json plus one JSON and one HTML file per driver.
func (p *Pipeline) runWrite(reports []*report.Report, outDir string) StepResult {
	log.Println("Step 4/5: Writing output...")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return StepResult{Name: "Write", Err: fmt.Errorf("creating output directory: %w", err)}
	}
	rnd, err := render.New()
	if err != nil {
		return StepResult{Name: "Write", Err: err}
	}

	written := 0
	if err := writeJSON(filepath.Join(outDir, "reports.json"), reports); err != nil {
		return StepResult{Name: "Write", Err: err}
	}
	written++

	names := fileNames(reports)
	for i, rep := range reports {
		base := filepath.Join(outDir, names[i])
		if err := writeJSON(base+".json", rep); err != nil {
			return StepResult{Name: "Write", Err: err}
		}
		var buf bytes.Buffer
		if err := rnd.Render(&buf, render.PageReport, map[string]any{"Report": rep}); err != nil {
			return StepResult{Name: "Write", Err: fmt.Errorf("rendering %s: %w", rep.DriverID, err)}
		}
		if err := os.WriteFile(base+".html", buf.Bytes(), 0o644); err != nil {
			return StepResult{Name: "Write", Err: fmt.Errorf("writing %s: %w", base+".html", err)}
		}
		written += 2
	}

	return StepResult{
		Name:    "Write",
		Summary: fmt.Sprintf("Wrote %d files to %s", written, outDir),
	}
}

func (p *Pipeline) runRecord(source string, reports []*report.Report, elapsed time.Duration) StepResult {
	log.Println("Step 5/5: Recording run...")
	if p.db == nil {
		return StepResult{Name: "Record", Summary: "Skipped (no database)"}
	}
	run := database.ReportRun{
		Source:         source,
		DriverCount:    len(reports),
		DetailFailures: p.detailFailures(reports),
		DurationMS:     elapsed.Milliseconds(),
	}
	if len(p.drivers) > 0 {
		run.PeriodStart = p.drivers[0].Period.Start
		run.PeriodEnd = p.drivers[0].Period.End
	}
	id, err := p.db.InsertRun(run)
	if err != nil {
		return StepResult{Name: "Record", Err: fmt.Errorf("recording run: %w", err)}
	}
	return StepResult{
		Name:    "Record",
		Summary: fmt.Sprintf("Recorded run #%d (%dms)", id, run.DurationMS),
	}
}

// detailFailures counts reports whose detail sections were dropped.
func (p *Pipeline) detailFailures(reports []*report.Report) int {
	if p.doc == nil || len(p.doc.DetailSections) == 0 {
		return 0
	}
	n := 0
	for _, rep := range reports {
		if len(rep.DetailSections) == 0 {
			n++
		}
	}
	return n
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// fileNames returns one distinct file stem per report. IDs that had to be
// rewritten get a hash suffix of the raw ID; repeated IDs get their batch
// position.
func fileNames(reports []*report.Report) []string {
	out := make([]string, len(reports))
	used := make(map[string]bool, len(reports))
	for i, rep := range reports {
		stem := fileName(rep.DriverID)
		if stem != rep.DriverID {
			stem = fmt.Sprintf("%s-%08x", stem, uint32(xxh3.HashString(rep.DriverID)))
		}
		for n := i + 1; used[stem]; n++ {
			stem = fmt.Sprintf("%s-%d", fileName(rep.DriverID), n)
		}
		used[stem] = true
		out[i] = stem
	}
	return out
}

// fileName maps a driver ID onto a safe file stem.
func fileName(id string) string {
	if id == "" {
		return "driver"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, id)
}
