// Package analyzer runs the full image-to-matches pipeline: quality gate,
// face localization, embedding (cached), and the similarity query.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/derm-match/internal/cache"
	"github.com/kozaktomas/derm-match/internal/constants"
	"github.com/kozaktomas/derm-match/internal/detect"
	"github.com/kozaktomas/derm-match/internal/embed"
	"github.com/kozaktomas/derm-match/internal/index"
	"github.com/kozaktomas/derm-match/internal/quality"
	"github.com/kozaktomas/derm-match/internal/taxonomy"
)

// Status classifies the outcome of an analysis run.
type Status string

const (
	StatusOK                   Status = "ok"
	StatusLowQuality           Status = "low_quality"
	StatusNoFaceDetected       Status = "no_face_detected"
	StatusIndexUnavailable     Status = "index_unavailable"
	StatusEmbeddingUnavailable Status = "embedding_unavailable"
	StatusTimeout              Status = "timeout"
)

var (
	// ErrInvalidK rejects match counts outside 1..MaxK.
	ErrInvalidK = errors.New("invalid match count")

	// ErrEmptyImage rejects requests without image data.
	ErrEmptyImage = errors.New("empty image")
)

// Localizer finds the best face in an image.
type Localizer interface {
	Localize(ctx context.Context, imageData []byte) detect.Outcome
	Version() string
}

// Embedder turns a face crop into a vector.
type Embedder interface {
	Embed(ctx context.Context, imageData []byte) ([]float32, error)
	ModelVersion() string
}

// Searcher answers nearest neighbor queries over the corpus.
type Searcher interface {
	Query(vector []float32, k int, hint taxonomy.Hint) ([]index.Result, error)
}

// Request is one image to analyze. Age and Ethnicity are free-form labels
// resolved through the taxonomy; unrecognized values simply disable the
// demographic boost.
type Request struct {
	Image     []byte
	Age       string
	Ethnicity string
	K         int
}

// Report is the outcome of one analysis run. Detector provenance fields are
// set whenever a face was localized, also on cache hits, where they describe
// the original computation.
type Report struct {
	ID              string          `json:"id"`
	Status          Status          `json:"status"`
	Reason          string          `json:"reason,omitempty"`
	Detector        detect.Kind     `json:"detector,omitempty"`
	DetectorVersion string          `json:"detector_version,omitempty"`
	Confidence      float64         `json:"confidence,omitempty"`
	Cached          bool            `json:"cached"`
	Quality         *quality.Report `json:"quality,omitempty"`
	ElapsedMS       int64           `json:"elapsed_ms"`
	Results         []index.Result  `json:"results"`
}

// analysis is the cacheable product of the detection and embedding stages.
type analysis struct {
	Vector          []float32
	Detector        detect.Kind
	DetectorVersion string
	Confidence      float64
}

// Config sizes the embedding cache.
type Config struct {
	CacheCapacity int
	CacheTTL      time.Duration
}

// Analyzer wires the pipeline stages together.
type Analyzer struct {
	gate      *quality.Gate
	localizer Localizer
	embedder  Embedder
	searcher  Searcher
	cache     *cache.Cache[analysis]
}

// New assembles an analyzer from its stages.
func New(gate *quality.Gate, localizer Localizer, embedder Embedder, searcher Searcher, cfg Config) *Analyzer {
	return &Analyzer{
		gate:      gate,
		localizer: localizer,
		embedder:  embedder,
		searcher:  searcher,
		cache:     cache.New[analysis](cfg.CacheCapacity, cfg.CacheTTL),
	}
}

// CacheStats exposes the embedding cache counters.
func (a *Analyzer) CacheStats() cache.Stats {
	return a.cache.Stats()
}

// Analyze runs the pipeline for one request. Invalid input comes back as an
// error; every pipeline outcome, including failures, comes back as a Report
// with the matching status.
func (a *Analyzer) Analyze(ctx context.Context, req Request) (*Report, error) {
	start := time.Now()

	k := req.K
	if k == 0 {
		k = constants.DefaultK
	}
	if k < 1 || k > constants.MaxK {
		return nil, fmt.Errorf("%w: %d not in 1..%d", ErrInvalidK, req.K, constants.MaxK)
	}
	if len(req.Image) == 0 {
		return nil, ErrEmptyImage
	}

	report := &Report{
		ID:      uuid.NewString(),
		Results: []index.Result{},
	}
	finish := func() *Report {
		report.ElapsedMS = time.Since(start).Milliseconds()
		return report
	}

	qr, err := a.gate.Assess(req.Image)
	if err != nil {
		report.Status = StatusLowQuality
		report.Reason = quality.Reason(err)
		return finish(), nil
	}
	report.Quality = qr

	// The key covers the image bytes and both pipeline versions, so a hit is
	// valid regardless of which detector produced it and never survives a
	// model upgrade.
	key := cache.NewKey(req.Image, a.localizer.Version(), a.embedder.ModelVersion())
	var computed atomic.Bool
	result, err := a.cache.GetOrCompute(ctx, key, func(fctx context.Context) (analysis, error) {
		computed.Store(true)
		return a.compute(fctx, req.Image)
	})
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
			report.Status = StatusTimeout
		case errors.Is(err, detect.ErrLowConfidence):
			report.Status = StatusNoFaceDetected
			report.Reason = "low_confidence"
		case errors.Is(err, detect.ErrNoFaceDetected):
			report.Status = StatusNoFaceDetected
			report.Reason = "no_face_detected"
		case errors.Is(err, embed.ErrUnavailable):
			report.Status = StatusEmbeddingUnavailable
		default:
			return nil, fmt.Errorf("failed to analyze image: %w", err)
		}
		return finish(), nil
	}

	report.Detector = result.Detector
	report.DetectorVersion = result.DetectorVersion
	report.Confidence = result.Confidence
	report.Cached = !computed.Load()

	matches, err := a.searcher.Query(result.Vector, k, taxonomy.ParseHint(req.Age, req.Ethnicity))
	if err != nil {
		if errors.Is(err, index.ErrUnavailable) {
			report.Status = StatusIndexUnavailable
			return finish(), nil
		}
		return nil, fmt.Errorf("failed to query index: %w", err)
	}

	report.Status = StatusOK
	report.Results = matches
	return finish(), nil
}

func (a *Analyzer) compute(ctx context.Context, imageData []byte) (analysis, error) {
	outcome := a.localizer.Localize(ctx, imageData)
	if outcome.Err != nil {
		return analysis{}, outcome.Err
	}

	vector, err := a.embedder.Embed(ctx, outcome.Crop.Image)
	if err != nil {
		return analysis{}, err
	}

	return analysis{
		Vector:          vector,
		Detector:        outcome.Crop.Detector,
		DetectorVersion: outcome.Crop.DetectorVersion,
		Confidence:      outcome.Crop.Confidence,
	}, nil
}
