package geo

import "testing"

func TestExtractMapViewURL(t *testing.T) {
	loc := Extract("https://www.google.com/maps/search/?api=1&query=35.6,139.7", "")
	if loc.Lat == nil || *loc.Lat != 35.6 {
		t.Fatalf("expected lat 35.6, got %v", loc.Lat)
	}
	if loc.Lon == nil || *loc.Lon != 139.7 {
		t.Fatalf("expected lon 139.7, got %v", loc.Lon)
	}
	want := "https://www.google.com/maps/search/?api=1&query=35.6,139.7"
	if loc.MapURL == nil || *loc.MapURL != want {
		t.Errorf("expected map url %q, got %v", want, loc.MapURL)
	}
}

func TestExtractNormalizesMapURL(t *testing.T) {
	loc := Extract("https://maps.example.com/?query=%2035.60%2C%20139.70&zoom=3", "")
	want := "https://www.google.com/maps/search/?api=1&query=35.6,139.7"
	if loc.MapURL == nil || *loc.MapURL != want {
		t.Errorf("expected normalized url %q, got %v", want, loc.MapURL)
	}
}

func TestExtractMalformedWithoutFallback(t *testing.T) {
	loc := Extract("not a url at all", "")
	if loc.Lat != nil || loc.Lon != nil {
		t.Errorf("expected nil coordinates, got %v/%v", loc.Lat, loc.Lon)
	}
	if loc.MapURL != nil {
		t.Errorf("expected nil map url, got %q", *loc.MapURL)
	}
}

func TestExtractNothing(t *testing.T) {
	loc := Extract("", "")
	if loc.Lat != nil || loc.Lon != nil || loc.MapURL != nil {
		t.Errorf("expected empty location, got %+v", loc)
	}
}

func TestExtractStreetViewFallback(t *testing.T) {
	loc := Extract("", "https://www.google.com/maps/@?api=1&map_action=pano&viewpoint=34.7,135.5&heading=90")
	if !loc.HasCoordinates() {
		t.Fatal("expected coordinates from viewpoint")
	}
	if *loc.Lat != 34.7 || *loc.Lon != 135.5 {
		t.Errorf("expected 34.7/135.5, got %v/%v", *loc.Lat, *loc.Lon)
	}
	want := CanonicalURL(34.7, 135.5)
	if *loc.MapURL != want {
		t.Errorf("expected %q, got %q", want, *loc.MapURL)
	}
}

func TestExtractStreetViewRawScan(t *testing.T) {
	// Not a parseable URL, but the viewpoint can still be scanned.
	loc := Extract("", "pano viewpoint=33.5,130.4#frag")
	if !loc.HasCoordinates() {
		t.Fatal("expected coordinates from raw scan")
	}
	if *loc.Lat != 33.5 || *loc.Lon != 130.4 {
		t.Errorf("expected 33.5/130.4, got %v/%v", *loc.Lat, *loc.Lon)
	}
}

func TestExtractPrefersMapView(t *testing.T) {
	loc := Extract(
		"https://www.google.com/maps/search/?api=1&query=35.0,139.0",
		"https://www.google.com/maps/@?api=1&viewpoint=1.0,2.0",
	)
	if *loc.Lat != 35 || *loc.Lon != 139 {
		t.Errorf("expected map view coordinates, got %v/%v", *loc.Lat, *loc.Lon)
	}
}

func TestExtractRawURLFallback(t *testing.T) {
	raw := "https://www.google.com/maps/place/Tokyo+Station"
	loc := Extract(raw, "")
	if loc.HasCoordinates() {
		t.Error("expected no coordinates")
	}
	if loc.MapURL == nil || *loc.MapURL != raw {
		t.Errorf("expected raw url fallback, got %v", loc.MapURL)
	}

	sv := "https://www.google.com/maps/@?api=1&map_action=pano"
	loc = Extract("", sv)
	if loc.MapURL == nil || *loc.MapURL != sv {
		t.Errorf("expected street view url fallback, got %v", loc.MapURL)
	}
}

func TestExtractRejectsNonFinite(t *testing.T) {
	loc := Extract("https://www.google.com/maps/search/?api=1&query=NaN,Inf", "")
	if loc.HasCoordinates() {
		t.Error("expected non-finite coordinates to be rejected")
	}
}
