// Package ranking aggregates per-driver violation rates and ranks a batch.
package ranking

import (
	"math"
	"sort"

	"github.com/TobiSchelling/drivereport/internal/telemetry"
)

// Standing is a driver's aggregate rate and its rank within the batch.
type Standing struct {
	DriverID   string
	Violations int
	Total      int
	Rate       float64
	Rank       int
}

// Ranking is computed once per batch. Lower rates rank first.
type Ranking struct {
	standings []Standing
	byID      map[string]int
}

// Rate returns violations/total as a percentage rounded to one decimal.
// A zero total yields 0.
func Rate(violations, total int) float64 {
	if total <= 0 {
		return 0
	}
	return roundHalfUp(float64(violations)/float64(total)*1000) / 10
}

// Percent returns violations/total as a whole-number percentage.
// A zero total yields 0.
func Percent(violations, total int) int {
	if total <= 0 {
		return 0
	}
	return int(roundHalfUp(float64(violations) / float64(total) * 100))
}

// Compute ranks every driver of the batch. Equal rates share a rank; the next
// distinct rate takes its 1-based position in the ascending order (1, 1, 3).
func Compute(drivers []telemetry.Driver) *Ranking {
	r := &Ranking{
		standings: make([]Standing, len(drivers)),
		byID:      make(map[string]int, len(drivers)),
	}
	for i := range drivers {
		v, t := drivers[i].Totals()
		r.standings[i] = Standing{
			DriverID:   drivers[i].ID,
			Violations: v,
			Total:      t,
			Rate:       Rate(v, t),
		}
		if _, exists := r.byID[drivers[i].ID]; !exists {
			r.byID[drivers[i].ID] = i
		}
	}

	order := make([]int, len(drivers))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return r.standings[order[a]].Rate < r.standings[order[b]].Rate
	})
	for pos, idx := range order {
		if pos > 0 && r.standings[order[pos-1]].Rate == r.standings[idx].Rate {
			r.standings[idx].Rank = r.standings[order[pos-1]].Rank
			continue
		}
		r.standings[idx].Rank = pos + 1
	}
	return r
}

// Total is the number of drivers the ranking was computed against.
func (r *Ranking) Total() int {
	if r == nil {
		return 0
	}
	return len(r.standings)
}

// At returns the standing of the i-th driver of the batch.
func (r *Ranking) At(i int) (Standing, bool) {
	if r == nil || i < 0 || i >= len(r.standings) {
		return Standing{}, false
	}
	return r.standings[i], true
}

// Lookup returns the standing of the first driver with the given id.
func (r *Ranking) Lookup(driverID string) (Standing, bool) {
	if r == nil {
		return Standing{}, false
	}
	idx, ok := r.byID[driverID]
	if !ok {
		return Standing{}, false
	}
	return r.standings[idx], true
}

// Standings returns a copy of all standings in batch order.
func (r *Ranking) Standings() []Standing {
	if r == nil {
		return nil
	}
	out := make([]Standing, len(r.standings))
	copy(out, r.standings)
	return out
}

func roundHalfUp(x float64) float64 {
	return math.Floor(x + 0.5)
}
