// Package detect finds the dominant face in a query image. A fast local
// detector runs first; when it is not confident enough the localizer can
// escalate to a cloud detector, guarded by a circuit breaker.
package detect

import (
	"context"
	"errors"
	"image"
)

// Kind identifies which detector produced a crop.
type Kind string

const (
	KindLocal Kind = "local"
	KindCloud Kind = "cloud"
)

var (
	// ErrNoFaceDetected means no detector produced any candidate.
	ErrNoFaceDetected = errors.New("no face detected")

	// ErrLowConfidence means candidates existed but none reached the
	// confidence threshold and no further escalation was possible.
	ErrLowConfidence = errors.New("face confidence below threshold")
)

// Candidate is a single face proposal from a detector.
type Candidate struct {
	Box        image.Rectangle
	Confidence float64
}

// Detector proposes face bounding boxes for an image. An empty candidate
// slice with a nil error means the detector ran fine and found nothing.
type Detector interface {
	Detect(ctx context.Context, imageData []byte) ([]Candidate, error)
	Version() string
}

// pickBest selects among candidates at or above the confidence threshold:
// largest box area wins, ties go to the leftmost then topmost corner.
func pickBest(candidates []Candidate, threshold float64) (Candidate, bool) {
	var best Candidate
	found := false
	for _, c := range candidates {
		if c.Confidence < threshold {
			continue
		}
		if !found || better(c, best) {
			best = c
			found = true
		}
	}
	return best, found
}

func better(a, b Candidate) bool {
	areaA := a.Box.Dx() * a.Box.Dy()
	areaB := b.Box.Dx() * b.Box.Dy()
	if areaA != areaB {
		return areaA > areaB
	}
	if a.Box.Min.X != b.Box.Min.X {
		return a.Box.Min.X < b.Box.Min.X
	}
	return a.Box.Min.Y < b.Box.Min.Y
}
