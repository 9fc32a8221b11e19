// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Result limits
const (
	// DefaultK is the number of matches returned when the request does not
	// ask for a specific count
	DefaultK = 5

	// MaxK is the largest number of matches a single request may ask for
	MaxK = 50
)

// Request limits
const (
	// MaxImageBytes is the maximum accepted size of an uploaded image
	MaxImageBytes = 10 << 20

	// MaxRequestBytes bounds the whole multipart request body, leaving room
	// for form fields next to the image
	MaxRequestBytes = MaxImageBytes + 1<<20
)

// Embedding constants
const (
	// DefaultEmbeddingDim is the vector dimension of the default embedding
	// model (CLIP ViT-B/32)
	DefaultEmbeddingDim = 512
)
