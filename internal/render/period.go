package render

import (
	"fmt"
	"strings"

	"github.com/TobiSchelling/drivereport/internal/telemetry"
)

// FormatPeriodDisplay formats a reporting period for report headers.
// Range: "2024/4/1 - 2024/4/30 (30日間)"
// Single day: "2024/4/1"
// Unparseable dates are shown as given.
func FormatPeriodDisplay(p telemetry.Period) string {
	start := formatDate(p.Start)
	end := formatDate(p.End)

	var out string
	switch {
	case start != "" && end != "" && start != end:
		out = start + " - " + end
	case start != "":
		out = start
	default:
		out = end
	}

	var extra []string
	if p.Days != nil && *p.Days > 0 {
		extra = append(extra, fmt.Sprintf("%d日間", *p.Days))
	}
	if p.TotalMinutes != nil && *p.TotalMinutes > 0 {
		extra = append(extra, fmt.Sprintf("運転時間 %.1f時間", *p.TotalMinutes/60))
	}
	if len(extra) > 0 {
		if out != "" {
			out += " "
		}
		out += "(" + strings.Join(extra, ", ") + ")"
	}
	return out
}

func formatDate(s *string) string {
	if s == nil {
		return ""
	}
	raw := strings.TrimSpace(*s)
	t, ok := telemetry.ParseTimestamp(raw)
	if !ok {
		return raw
	}
	t = t.In(telemetry.JST)
	return fmt.Sprintf("%d/%d/%d", t.Year(), int(t.Month()), t.Day())
}
