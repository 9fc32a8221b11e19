package detect

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/kozaktomas/derm-match/internal/breaker"
)

// State identifies a localizer phase. Transitions are enumerated in
// Localize; every run ends in StateSucceeded or StateFailed.
type State int

const (
	StateInit State = iota
	StateLocalAttempt
	StateEscalateToCloud
	StateCloudAttempt
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateLocalAttempt:
		return "local_attempt"
	case StateEscalateToCloud:
		return "escalate_to_cloud"
	case StateCloudAttempt:
		return "cloud_attempt"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

const (
	defaultConfidenceThreshold = 0.5
	defaultCropMargin          = 0.20
	defaultCloudTimeout        = 5 * time.Second
)

// Config holds localizer tuning. Zero fields fall back to defaults.
type Config struct {
	ConfidenceThreshold float64       // minimum eligible detector confidence
	CropMargin          float64       // padding around the face box, fraction per side
	CloudTimeout        time.Duration // deadline for a single cloud call
	Breaker             breaker.Config
}

// FaceCrop is the product of a successful localization.
type FaceCrop struct {
	Image           []byte          // JPEG-encoded padded crop
	Bounds          image.Rectangle // padded bounds in source pixel space
	Confidence      float64
	Detector        Kind
	DetectorVersion string
}

// Outcome reports a finished localization run. Trace lists the visited
// states in order; Err is nil exactly when Crop is set.
type Outcome struct {
	Crop  *FaceCrop
	Trace []State
	Err   error
}

// BreakerStatus describes the cloud breaker for the stats endpoint.
type BreakerStatus struct {
	Enabled bool             `json:"enabled"`
	State   string           `json:"state"`
	Counts  gobreaker.Counts `json:"counts"`
}

// Localizer runs the face localization state machine over a local detector
// and an optional breaker-guarded cloud detector.
type Localizer struct {
	local Detector
	cloud Detector // nil when no cloud fallback is configured
	cfg   Config
	cb    *gobreaker.CircuitBreaker[[]Candidate]
}

// NewLocalizer builds a localizer. cloud may be nil, in which case low local
// confidence fails directly without escalation.
func NewLocalizer(local Detector, cloud Detector, cfg Config) *Localizer {
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = defaultConfidenceThreshold
	}
	if cfg.CropMargin <= 0 {
		cfg.CropMargin = defaultCropMargin
	}
	if cfg.CloudTimeout <= 0 {
		cfg.CloudTimeout = defaultCloudTimeout
	}

	l := &Localizer{local: local, cloud: cloud, cfg: cfg}
	if cloud != nil {
		l.cb = breaker.New[[]Candidate]("cloud-detector", cfg.Breaker)
	}
	return l
}

// Version identifies the configured detector stack. It feeds cache keys, so
// it changes whenever either detector is upgraded.
func (l *Localizer) Version() string {
	if l.cloud == nil {
		return l.local.Version()
	}
	return l.local.Version() + "+" + l.cloud.Version()
}

// BreakerStatus reports the cloud breaker state for observability.
func (l *Localizer) BreakerStatus() BreakerStatus {
	if l.cb == nil {
		return BreakerStatus{}
	}
	return BreakerStatus{
		Enabled: true,
		State:   l.cb.State().String(),
		Counts:  l.cb.Counts(),
	}
}

// Localize runs the state machine for one image. The request context bounds
// the whole run; the cloud attempt additionally gets its own timeout.
func (l *Localizer) Localize(ctx context.Context, imageData []byte) Outcome {
	out := Outcome{Trace: []State{StateInit}}

	var (
		best     Candidate
		bestKind Kind
		weak     bool  // some candidate existed below the threshold
		failErr  error // overrides the weak/none distinction when set
	)

	state := StateLocalAttempt
	for {
		out.Trace = append(out.Trace, state)

		switch state {
		case StateLocalAttempt:
			cands, err := l.local.Detect(ctx, imageData)
			if err != nil {
				if ctx.Err() != nil {
					return l.fail(out, ctx.Err())
				}
				log.Printf("local detector error: %v", err)
				state = StateEscalateToCloud
				continue
			}
			if c, ok := pickBest(cands, l.cfg.ConfidenceThreshold); ok {
				best, bestKind = c, KindLocal
				state = StateSucceeded
				continue
			}
			weak = len(cands) > 0
			state = StateEscalateToCloud

		case StateEscalateToCloud:
			if l.cloud == nil || l.cb.State() == gobreaker.StateOpen {
				state = StateFailed
				continue
			}
			state = StateCloudAttempt

		case StateCloudAttempt:
			cands, err := l.cloudDetect(ctx, imageData)
			if err != nil {
				if ctx.Err() != nil {
					return l.fail(out, ctx.Err())
				}
				if !errors.Is(err, gobreaker.ErrOpenState) && !errors.Is(err, gobreaker.ErrTooManyRequests) {
					// Counted as a breaker failure; the cloud verdict
					// supersedes any weak local candidate.
					log.Printf("cloud detector error: %v", err)
					failErr = ErrNoFaceDetected
				}
				state = StateFailed
				continue
			}
			if c, ok := pickBest(cands, l.cfg.ConfidenceThreshold); ok {
				best, bestKind = c, KindCloud
				state = StateSucceeded
				continue
			}
			weak = true
			state = StateFailed

		case StateSucceeded:
			crop, bounds, err := cropFace(imageData, best.Box, l.cfg.CropMargin)
			if err != nil {
				out.Err = fmt.Errorf("failed to crop face: %w", err)
				return out
			}
			out.Crop = &FaceCrop{
				Image:           crop,
				Bounds:          bounds,
				Confidence:      best.Confidence,
				Detector:        bestKind,
				DetectorVersion: l.detectorVersion(bestKind),
			}
			return out

		case StateFailed:
			if failErr != nil {
				out.Err = failErr
			} else if weak {
				out.Err = ErrLowConfidence
			} else {
				out.Err = ErrNoFaceDetected
			}
			return out
		}
	}
}

// cloudDetect runs one breaker-guarded cloud call under the cloud timeout.
// A clean call that finds zero candidates counts as a breaker failure; a
// call that finds only weak candidates counts as a success.
func (l *Localizer) cloudDetect(ctx context.Context, imageData []byte) ([]Candidate, error) {
	cctx, cancel := context.WithTimeout(ctx, l.cfg.CloudTimeout)
	defer cancel()

	return l.cb.Execute(func() ([]Candidate, error) {
		cands, err := l.cloud.Detect(cctx, imageData)
		if err != nil {
			return nil, err
		}
		if len(cands) == 0 {
			return nil, ErrNoFaceDetected
		}
		return cands, nil
	})
}

func (l *Localizer) fail(out Outcome, err error) Outcome {
	out.Trace = append(out.Trace, StateFailed)
	out.Err = err
	return out
}

func (l *Localizer) detectorVersion(kind Kind) string {
	if kind == KindCloud {
		return l.cloud.Version()
	}
	return l.local.Version()
}
