// Package telemetry holds the canonical driver/event/scene records the report
// engine reads. Records are produced by Decode and treated as read-only.
package telemetry

// Driver is one subject's telemetry for a reporting period.
type Driver struct {
	ID          string  `json:"driverId"`
	Name        string  `json:"driverName"`
	OfficeName  string  `json:"officeName"`
	CompanyName string  `json:"companyName"`
	Period      Period  `json:"period"`
	Events      []Event `json:"events"`
	Stats       *Stats  `json:"stats,omitempty"`
}

// Period describes the reporting window. Every field is optional.
type Period struct {
	Start        *string  `json:"start"`
	End          *string  `json:"end"`
	Days         *int     `json:"days"`
	TotalMinutes *float64 `json:"totalMinutes"`
}

// Event is one maneuver/check type with its counts and captured scenes.
type Event struct {
	ID         int     `json:"id"`
	Violations int     `json:"violations"`
	Total      int     `json:"total"`
	Risk       float64 `json:"risk"`
	Scenes     []Scene `json:"scenes"`
}

// Scene is a single captured occurrence of an event.
type Scene struct {
	CapturedAt    string `json:"capturedAt"`
	MapViewURL    string `json:"mapViewUrl,omitempty"`
	StreetViewURL string `json:"streetViewUrl,omitempty"`
	MovieURL      string `json:"movieUrl,omitempty"`
	RiskType      string `json:"riskType,omitempty"`
	ViolationType string `json:"violationType,omitempty"`
	Timing        string `json:"timing,omitempty"`
	AccelDecel    string `json:"accelDecel,omitempty"`
	Latest        bool   `json:"latest,omitempty"`
}

// Stats carries values a caller precomputed for a driver.
type Stats struct {
	AvgViolationRatePct *float64        `json:"avgViolationRatePct,omitempty"`
	Overview            []OverviewEntry `json:"overview,omitempty"`
}

// OverviewEntry is a precomputed overview highlight text for one kind.
// EventIDs reference the events the highlight talks about.
type OverviewEntry struct {
	Kind     string  `json:"kind"`
	Title    string  `json:"title"`
	Body     string  `json:"body"`
	Metric   *string `json:"metric,omitempty"`
	EventIDs []int   `json:"eventIds,omitempty"`
}

// EventByID returns the first event with the given id.
func (d *Driver) EventByID(id int) (*Event, bool) {
	for i := range d.Events {
		if d.Events[i].ID == id {
			return &d.Events[i], true
		}
	}
	return nil, false
}

// OverviewFor returns the precomputed overview entry for kind, if any.
func (d *Driver) OverviewFor(kind string) (*OverviewEntry, bool) {
	if d.Stats == nil {
		return nil, false
	}
	for i := range d.Stats.Overview {
		if d.Stats.Overview[i].Kind == kind {
			return &d.Stats.Overview[i], true
		}
	}
	return nil, false
}

// Totals sums violations and observed counts across all events.
func (d *Driver) Totals() (violations, total int) {
	for _, e := range d.Events {
		violations += e.Violations
		total += e.Total
	}
	return violations, total
}
