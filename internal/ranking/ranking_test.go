package ranking

import (
	"testing"

	"github.com/TobiSchelling/drivereport/internal/telemetry"
)

func driver(id string, counts ...[2]int) telemetry.Driver {
	d := telemetry.Driver{ID: id}
	for i, c := range counts {
		d.Events = append(d.Events, telemetry.Event{ID: i + 1, Violations: c[0], Total: c[1]})
	}
	return d
}

func TestRate(t *testing.T) {
	tests := []struct {
		violations, total int
		want              float64
	}{
		{1, 4, 25},
		{1, 3, 33.3},
		{2, 3, 66.7},
		{1, 8, 12.5},
		{0, 10, 0},
		{5, 0, 0},
		{0, 0, 0},
	}
	for _, tt := range tests {
		if got := Rate(tt.violations, tt.total); got != tt.want {
			t.Errorf("Rate(%d, %d) = %v, want %v", tt.violations, tt.total, got, tt.want)
		}
	}
}

func TestPercent(t *testing.T) {
	if got := Percent(1, 4); got != 25 {
		t.Errorf("expected 25, got %d", got)
	}
	if got := Percent(1, 8); got != 13 {
		t.Errorf("expected 13 (half rounds up), got %d", got)
	}
	if got := Percent(3, 0); got != 0 {
		t.Errorf("expected 0 for zero total, got %d", got)
	}
}

func TestComputeSumsAcrossEvents(t *testing.T) {
	r := Compute([]telemetry.Driver{driver("A", [2]int{1, 4}, [2]int{0, 10})})
	s, ok := r.Lookup("A")
	if !ok {
		t.Fatal("expected standing for A")
	}
	if s.Violations != 1 || s.Total != 14 {
		t.Errorf("expected 1/14, got %d/%d", s.Violations, s.Total)
	}
	if s.Rate != 7.1 {
		t.Errorf("expected 7.1, got %v", s.Rate)
	}
	if s.Rank != 1 || r.Total() != 1 {
		t.Errorf("expected rank 1 of 1, got %d of %d", s.Rank, r.Total())
	}
}

func TestComputeTiesShareRank(t *testing.T) {
	r := Compute([]telemetry.Driver{
		driver("high", [2]int{5, 10}),
		driver("low1", [2]int{1, 10}),
		driver("low2", [2]int{2, 20}),
		driver("mid", [2]int{3, 10}),
	})
	want := map[string]int{"low1": 1, "low2": 1, "mid": 3, "high": 4}
	for id, rank := range want {
		s, _ := r.Lookup(id)
		if s.Rank != rank {
			t.Errorf("%s: expected rank %d, got %d", id, rank, s.Rank)
		}
	}
	if r.Total() != 4 {
		t.Errorf("expected total 4, got %d", r.Total())
	}
}

func TestComputeRankMonotonic(t *testing.T) {
	drivers := []telemetry.Driver{
		driver("a", [2]int{3, 7}),
		driver("b", [2]int{0, 0}),
		driver("c", [2]int{9, 10}),
		driver("d", [2]int{3, 7}),
		driver("e", [2]int{1, 2}),
		driver("f", [2]int{0, 5}),
	}
	r := Compute(drivers)
	all := r.Standings()
	for i := range all {
		for j := range all {
			a, b := all[i], all[j]
			if a.Rate < b.Rate && a.Rank >= b.Rank {
				t.Errorf("%s (%v, rank %d) should rank before %s (%v, rank %d)", a.DriverID, a.Rate, a.Rank, b.DriverID, b.Rate, b.Rank)
			}
			if a.Rate == b.Rate && a.Rank != b.Rank {
				t.Errorf("%s and %s share rate %v but ranks differ: %d vs %d", a.DriverID, b.DriverID, a.Rate, a.Rank, b.Rank)
			}
		}
	}
}

func TestAtFollowsBatchOrder(t *testing.T) {
	r := Compute([]telemetry.Driver{driver("x", [2]int{1, 1}), driver("y", [2]int{0, 1})})
	s, ok := r.At(0)
	if !ok || s.DriverID != "x" || s.Rank != 2 {
		t.Errorf("unexpected standing at 0: %+v", s)
	}
	if _, ok := r.At(2); ok {
		t.Error("expected out of range lookup to fail")
	}
	if _, ok := r.Lookup("missing"); ok {
		t.Error("expected unknown driver lookup to fail")
	}
}
