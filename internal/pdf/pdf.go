// Package pdf prints rendered report pages to PDF with headless Chrome.
package pdf

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// Renderer converts the page at a URL into PDF bytes.
type Renderer interface {
	RenderURL(ctx context.Context, url string) ([]byte, error)
}

// Margins are CSS lengths such as "15mm".
type Margins struct {
	Top    string `yaml:"top"`
	Right  string `yaml:"right"`
	Bottom string `yaml:"bottom"`
	Left   string `yaml:"left"`
}

// Options are the fixed page settings applied to every render.
type Options struct {
	Format          string        `yaml:"format"`
	PrintBackground bool          `yaml:"print_background"`
	Margin          Margins       `yaml:"margin"`
	Timeout         time.Duration `yaml:"timeout"`
}

// DefaultOptions match the report stylesheet's @page rules.
func DefaultOptions() Options {
	return Options{
		Format:          "A4",
		PrintBackground: true,
		Margin:          Margins{Top: "15mm", Right: "12mm", Bottom: "15mm", Left: "12mm"},
		Timeout:         60 * time.Second,
	}
}

// paper sizes in inches (width, height).
var paperSizes = map[string][2]float64{
	"a3":     {11.69, 16.54},
	"a4":     {8.27, 11.69},
	"a5":     {5.83, 8.27},
	"letter": {8.5, 11},
	"legal":  {8.5, 14},
}

// ChromeRenderer launches a headless browser per render.
type ChromeRenderer struct {
	opts      Options
	allocOpts []chromedp.ExecAllocatorOption
}

// NewChromeRenderer validates opts and prepares the browser flags.
func NewChromeRenderer(opts Options) (*ChromeRenderer, error) {
	if _, err := opts.params(); err != nil {
		return nil, err
	}
	alloc := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("disable-setuid-sandbox", true),
	)
	return &ChromeRenderer{opts: opts, allocOpts: alloc}, nil
}

// RenderURL navigates to url, waits for the document and prints it.
func (r *ChromeRenderer) RenderURL(ctx context.Context, url string) ([]byte, error) {
	params, err := r.opts.params()
	if err != nil {
		return nil, err
	}
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, r.allocOpts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	var buf []byte
	err = chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			data, _, err := params.Do(ctx)
			if err != nil {
				return err
			}
			buf = data
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("rendering %s to pdf: %w", url, err)
	}
	return buf, nil
}

// params converts the options into a print command.
func (o Options) params() (*page.PrintToPDFParams, error) {
	size, ok := paperSizes[strings.ToLower(strings.TrimSpace(o.Format))]
	if !ok {
		return nil, fmt.Errorf("unknown paper format %q", o.Format)
	}
	var margins [4]float64
	for i, m := range []string{o.Margin.Top, o.Margin.Right, o.Margin.Bottom, o.Margin.Left} {
		v, err := ParseLength(m)
		if err != nil {
			return nil, fmt.Errorf("invalid margin: %w", err)
		}
		margins[i] = v
	}
	return page.PrintToPDF().
		WithPrintBackground(o.PrintBackground).
		WithPaperWidth(size[0]).
		WithPaperHeight(size[1]).
		WithMarginTop(margins[0]).
		WithMarginRight(margins[1]).
		WithMarginBottom(margins[2]).
		WithMarginLeft(margins[3]).
		WithPreferCSSPageSize(false), nil
}

// ParseLength converts a CSS length (mm, cm, in, px or a bare number of
// pixels) into inches. An empty string is zero.
func ParseLength(s string) (float64, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, nil
	}
	units := []struct {
		suffix string
		perIn  float64
	}{
		{"mm", 25.4},
		{"cm", 2.54},
		{"in", 1},
		{"px", 96},
	}
	perIn := 96.0
	for _, u := range units {
		if strings.HasSuffix(s, u.suffix) {
			s = strings.TrimSpace(strings.TrimSuffix(s, u.suffix))
			perIn = u.perIn
			break
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("bad length %q", s)
	}
	return v / perIn, nil
}
