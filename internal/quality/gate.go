// Package quality screens uploaded images before any detector or embedding
// work happens. The gate is a pure function of the input bytes: the same
// image always yields the same verdict.
package quality

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Rejection reasons. The set is closed; every rejection wraps exactly one of
// these sentinels.
var (
	ErrUndecodable = errors.New("image cannot be decoded")
	ErrTooSmall    = errors.New("image resolution below minimum")
	ErrTooDark     = errors.New("image too dark")
	ErrTooLarge    = errors.New("image exceeds size limit")
)

// Reason maps a gate rejection to its machine-readable code, or "" when the
// error is not a gate rejection.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrUndecodable):
		return "undecodable"
	case errors.Is(err, ErrTooSmall):
		return "too_small"
	case errors.Is(err, ErrTooDark):
		return "too_dark"
	case errors.Is(err, ErrTooLarge):
		return "too_large"
	}
	return ""
}

const (
	// statsSize is the edge length images are downsampled to before the
	// brightness statistics run, so the gate cost does not scale with input
	// resolution.
	statsSize = 64

	defaultMinDimension = 100
	defaultMinMeanLuma  = 16.0
	defaultMaxBytes     = 10 << 20
)

// Config holds the gate thresholds. Zero fields fall back to defaults.
type Config struct {
	MinDimension int     // minimum width and height in pixels
	MinMeanLuma  float64 // minimum mean luma on the 0-255 scale
	MaxBytes     int     // maximum input size in bytes
}

// Report describes an accepted image. Contrast is informational only and
// never rejects.
type Report struct {
	Format   string  `json:"format"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Bytes    int     `json:"bytes"`
	MeanLuma float64 `json:"mean_luma"`
	Contrast float64 `json:"contrast"`
}

// Gate screens images against the configured thresholds.
type Gate struct {
	cfg Config
}

// New builds a gate, filling unset config fields with defaults.
func New(cfg Config) *Gate {
	if cfg.MinDimension <= 0 {
		cfg.MinDimension = defaultMinDimension
	}
	if cfg.MinMeanLuma <= 0 {
		cfg.MinMeanLuma = defaultMinMeanLuma
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = defaultMaxBytes
	}
	return &Gate{cfg: cfg}
}

// Assess runs the checks in fixed order (decodable, resolution, brightness,
// size ceiling) and stops at the first failure, so the reported reason is
// deterministic for any given input.
func (g *Gate) Assess(data []byte) (*Report, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width < g.cfg.MinDimension || height < g.cfg.MinDimension {
		return nil, fmt.Errorf("%w: %dx%d, minimum %dpx", ErrTooSmall, width, height, g.cfg.MinDimension)
	}

	mean, contrast := lumaStats(img)
	if mean < g.cfg.MinMeanLuma {
		return nil, fmt.Errorf("%w: mean luma %.1f below %.1f", ErrTooDark, mean, g.cfg.MinMeanLuma)
	}

	if len(data) > g.cfg.MaxBytes {
		return nil, fmt.Errorf("%w: %d bytes, maximum %d", ErrTooLarge, len(data), g.cfg.MaxBytes)
	}

	return &Report{
		Format:   format,
		Width:    width,
		Height:   height,
		Bytes:    len(data),
		MeanLuma: mean,
		Contrast: contrast,
	}, nil
}

// lumaStats returns the mean and standard deviation of the image luma on a
// downsampled copy.
func lumaStats(img image.Image) (mean, stddev float64) {
	small := image.NewRGBA(image.Rect(0, 0, statsSize, statsSize))
	draw.BiLinear.Scale(small, small.Bounds(), img, img.Bounds(), draw.Over, nil)

	var sum, sumSq float64
	for y := range statsSize {
		for x := range statsSize {
			r, g, b, _ := small.At(x, y).RGBA()
			// ITU-R BT.601 luma formula.
			luma := 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
			sum += luma
			sumSq += luma * luma
		}
	}

	n := float64(statsSize * statsSize)
	mean = sum / n
	variance := sumSq/n - mean*mean
	if variance < 0 {
		variance = 0
	}
	return mean, math.Sqrt(variance)
}
