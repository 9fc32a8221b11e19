// Package embed turns face crops into embedding vectors through an external
// provider. The client adds bounded retries, response validation and an
// optional same-model fallback; vectors are pure per model version, which is
// what makes caching by content hash sound.
package embed

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// ErrUnavailable is returned when every provider in the chain has been
// exhausted. Callers map it to the embedding_unavailable status.
var ErrUnavailable = errors.New("embedding unavailable")

// Provider computes an embedding vector for a JPEG image crop.
type Provider interface {
	Embed(ctx context.Context, imageData []byte) ([]float32, error)
	ModelVersion() string
}

// validateVector rejects partial or garbled provider responses. A failed
// validation counts as a provider error and is retried like one.
func validateVector(vec []float32, wantDim int) error {
	if len(vec) == 0 {
		return errors.New("empty embedding returned")
	}
	if wantDim > 0 && len(vec) != wantDim {
		return fmt.Errorf("embedding dimension %d, expected %d", len(vec), wantDim)
	}
	for _, v := range vec {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return errors.New("embedding contains non-finite values")
		}
	}
	return nil
}
