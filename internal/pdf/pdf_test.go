package pdf

import (
	"math"
	"testing"
)

func TestParseLength(t *testing.T) {
	tests := map[string]float64{
		"":       0,
		"25.4mm": 1,
		"2.54cm": 1,
		"2in":    2,
		"96px":   1,
		"48":     0.5,
		" 15MM ": 15 / 25.4,
	}
	for in, want := range tests {
		got, err := ParseLength(in)
		if err != nil {
			t.Errorf("ParseLength(%q) error: %v", in, err)
			continue
		}
		if math.Abs(got-want) > 1e-9 {
			t.Errorf("ParseLength(%q) = %v, want %v", in, got, want)
		}
	}
	for _, bad := range []string{"mm", "-1mm", "ten px"} {
		if _, err := ParseLength(bad); err == nil {
			t.Errorf("ParseLength(%q) expected error", bad)
		}
	}
}

func TestOptionsParams(t *testing.T) {
	p, err := DefaultOptions().params()
	if err != nil {
		t.Fatalf("params: %v", err)
	}
	if p.PaperWidth != 8.27 || p.PaperHeight != 11.69 {
		t.Errorf("unexpected paper size: %v x %v", p.PaperWidth, p.PaperHeight)
	}
	if !p.PrintBackground {
		t.Error("expected background printing")
	}
	if math.Abs(p.MarginTop-15/25.4) > 1e-9 || math.Abs(p.MarginLeft-12/25.4) > 1e-9 {
		t.Errorf("unexpected margins: %v %v", p.MarginTop, p.MarginLeft)
	}
}

func TestNewChromeRendererValidates(t *testing.T) {
	opts := DefaultOptions()
	opts.Format = "B7"
	if _, err := NewChromeRenderer(opts); err == nil {
		t.Error("expected unknown format error")
	}
	opts = DefaultOptions()
	opts.Margin.Top = "wide"
	if _, err := NewChromeRenderer(opts); err == nil {
		t.Error("expected margin error")
	}
	if _, err := NewChromeRenderer(DefaultOptions()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
