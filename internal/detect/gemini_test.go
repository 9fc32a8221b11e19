package detect

import (
	"image"
	"testing"
)

func TestParseGeminiFaces(t *testing.T) {
	content := `[
		{"box_2d": [100, 200, 500, 600], "confidence": 0.92},
		{"box_2d": [0, 0], "confidence": 0.5},
		{"box_2d": [250, 250, 750, 750], "confidence": 0.4}
	]`

	candidates, err := parseGeminiFaces(content, 1000, 500)
	if err != nil {
		t.Fatalf("parseGeminiFaces() unexpected error: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("got %d candidates, want 2 (malformed box skipped)", len(candidates))
	}

	// box_2d is [ymin, xmin, ymax, xmax] normalized to 0-1000.
	if want := image.Rect(200, 50, 600, 250); candidates[0].Box != want {
		t.Errorf("box = %v, want %v", candidates[0].Box, want)
	}
	if candidates[0].Confidence != 0.92 {
		t.Errorf("confidence = %v, want 0.92", candidates[0].Confidence)
	}
	if want := image.Rect(250, 125, 750, 375); candidates[1].Box != want {
		t.Errorf("box = %v, want %v", candidates[1].Box, want)
	}
}

func TestParseGeminiFacesEmpty(t *testing.T) {
	candidates, err := parseGeminiFaces("[]", 800, 600)
	if err != nil {
		t.Fatalf("parseGeminiFaces() unexpected error: %v", err)
	}
	if len(candidates) != 0 {
		t.Errorf("got %d candidates, want 0", len(candidates))
	}
}

func TestParseGeminiFacesBadJSON(t *testing.T) {
	if _, err := parseGeminiFaces("the faces are nice", 800, 600); err == nil {
		t.Error("parseGeminiFaces() must fail on non-JSON output")
	}
}
