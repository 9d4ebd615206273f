// Package geo recovers coordinates from the map links attached to scenes.
package geo

import (
	"math"
	"net/url"
	"strconv"
	"strings"
)

// SearchURL is the canonical map search endpoint; coordinates are appended as "lat,lng".
const SearchURL = "https://www.google.com/maps/search/?api=1&query="

// Location is the resolved position of a scene. Lat and Lon are nil when no
// coordinates could be recovered; MapURL is nil when no usable link exists.
type Location struct {
	Lat    *float64 `json:"lat"`
	Lon    *float64 `json:"lon"`
	MapURL *string  `json:"mapUrl"`
}

// HasCoordinates reports whether both coordinates were recovered.
func (l Location) HasCoordinates() bool {
	return l.Lat != nil && l.Lon != nil
}

// Extract reads coordinates from a map view link ("query=lat,lng") and falls
// back to a street view link ("viewpoint=lat,lng"). It never fails: anything
// that cannot be parsed is treated as absent.
func Extract(mapViewURL, streetViewURL string) Location {
	var loc Location

	if mapViewURL != "" {
		if u, err := url.Parse(mapViewURL); err == nil {
			if lat, lon, ok := parsePair(u.Query().Get("query")); ok {
				loc.Lat, loc.Lon = &lat, &lon
				loc.MapURL = strPtr(CanonicalURL(lat, lon))
			}
		}
	}

	if !loc.HasCoordinates() && streetViewURL != "" {
		if lat, lon, ok := parsePair(viewpoint(streetViewURL)); ok {
			if loc.Lat == nil {
				loc.Lat = &lat
			}
			if loc.Lon == nil {
				loc.Lon = &lon
			}
			if loc.MapURL == nil {
				loc.MapURL = strPtr(CanonicalURL(lat, lon))
			}
		}
	}

	if loc.MapURL == nil {
		switch {
		case wellFormed(mapViewURL):
			loc.MapURL = strPtr(mapViewURL)
		case wellFormed(streetViewURL):
			loc.MapURL = strPtr(streetViewURL)
		}
	}
	return loc
}

// CanonicalURL builds the normalized map search link for a coordinate pair.
func CanonicalURL(lat, lon float64) string {
	return SearchURL + formatCoord(lat) + "," + formatCoord(lon)
}

// viewpoint returns the raw viewpoint parameter, first through URL parsing and
// then by scanning the string up to the next '&' or '#'.
func viewpoint(raw string) string {
	if u, err := url.Parse(raw); err == nil {
		if vp := u.Query().Get("viewpoint"); vp != "" {
			return vp
		}
	}
	_, after, found := strings.Cut(raw, "viewpoint=")
	if !found {
		return ""
	}
	if i := strings.IndexAny(after, "&#"); i >= 0 {
		after = after[:i]
	}
	if unescaped, err := url.QueryUnescape(after); err == nil {
		return unescaped
	}
	return after
}

func parsePair(s string) (lat, lon float64, ok bool) {
	if s == "" {
		return 0, 0, false
	}
	parts := strings.Split(s, ",")
	if len(parts) < 2 {
		return 0, 0, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil || !finite(lat) {
		return 0, 0, false
	}
	lon, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil || !finite(lon) {
		return 0, 0, false
	}
	return lat, lon, true
}

// wellFormed accepts only absolute links; free text is not a usable fallback.
func wellFormed(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	return err == nil && u.Scheme != "" && u.Host != ""
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func strPtr(s string) *string { return &s }
