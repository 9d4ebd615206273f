package telemetry

import (
	"strings"
	"time"
)

// JST is the fixed civil zone used for date labels, independent of the host.
var JST = time.FixedZone("JST", 9*60*60)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999-0700",
	"2006-01-02 15:04:05.999999999-0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"2006-01-02",
	"2006/01/02",
}

// ParseTimestamp parses a scene timestamp. Values without a zone are read as
// JST. Unparseable values return the Unix epoch and false.
func ParseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Unix(0, 0).UTC(), false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, raw, JST); err == nil {
			return t, true
		}
	}
	return time.Unix(0, 0).UTC(), false
}

// Time returns the parsed capture time of the scene.
func (s Scene) Time() time.Time {
	t, _ := ParseTimestamp(s.CapturedAt)
	return t
}
