package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/derm-match/internal/analyzer"
	"github.com/kozaktomas/derm-match/internal/breaker"
	"github.com/kozaktomas/derm-match/internal/config"
	"github.com/kozaktomas/derm-match/internal/corpus"
	"github.com/kozaktomas/derm-match/internal/corpus/mariadb"
	"github.com/kozaktomas/derm-match/internal/corpus/postgres"
	"github.com/kozaktomas/derm-match/internal/detect"
	"github.com/kozaktomas/derm-match/internal/embed"
	"github.com/kozaktomas/derm-match/internal/index"
	"github.com/kozaktomas/derm-match/internal/quality"
)

// pipeline bundles the long-lived components the serve and analyze commands
// assemble from configuration.
type pipeline struct {
	analyzer  *analyzer.Analyzer
	localizer *detect.Localizer
	embedder  *embed.Client
	index     *index.Index
	loader    *corpus.Loader
	closeFns  []func() error
}

// close releases pipeline resources, keeping the first error.
func (p *pipeline) close() error {
	var first error
	for _, fn := range p.closeFns {
		if err := fn(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// newPipeline wires the full matching pipeline from configuration: quality
// gate, detectors, embedding providers, cache, index and corpus loader. The
// context only bounds construction-time calls (cloud client setup), not the
// pipeline's lifetime.
func newPipeline(ctx context.Context, cfg *config.Config) (*pipeline, error) {
	gate := quality.New(quality.Config{})

	local := detect.NewLocalDetector(cfg.Detector.URL, cfg.Detector.Version)

	var cloud detect.Detector
	if cfg.Gemini.APIKey != "" {
		gd, err := detect.NewGeminiDetector(ctx, cfg.Gemini.APIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini detector: %w", err)
		}
		cloud = gd
		fmt.Printf("Cloud face detection enabled (%s)\n", gd.Version())
	}

	brk := breaker.Config{
		FailureThreshold: uint32(cfg.Breaker.FailureThreshold),
		Cooldown:         cfg.Breaker.Cooldown,
	}
	localizer := detect.NewLocalizer(local, cloud, detect.Config{
		ConfidenceThreshold: cfg.Detector.Confidence,
		CropMargin:          cfg.Detector.CropMargin,
		CloudTimeout:        cfg.Detector.CloudTimeout,
		Breaker:             brk,
	})

	primary := embed.NewHTTPProvider(cfg.Embedding.URL, cfg.Embedding.Model)

	var fallback embed.Provider
	if cfg.OpenAI.Token != "" {
		fallback = embed.NewOpenAIProvider(cfg.OpenAI.BaseURL, cfg.OpenAI.Token, cfg.Embedding.Model)
		fmt.Printf("OpenAI embedding fallback enabled\n")
	}

	dim := cfg.EmbeddingDim()
	embedder, err := embed.NewClient(primary, fallback, embed.Config{Dim: dim, Breaker: brk})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}

	idx, err := index.New(dim, index.Config{
		HNSWThreshold: cfg.Index.HNSWThreshold,
		Boost:         cfg.Index.Boost,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create similarity index: %w", err)
	}

	p := &pipeline{
		localizer: localizer,
		embedder:  embedder,
		index:     idx,
	}

	source, closeFn, err := newCorpusSource(cfg)
	if err != nil {
		return nil, err
	}
	if closeFn != nil {
		p.closeFns = append(p.closeFns, closeFn)
	}
	p.loader = corpus.NewLoader(source, idx)

	p.analyzer = analyzer.New(gate, localizer, embedder, idx, analyzer.Config{
		CacheCapacity: cfg.Cache.Capacity,
		CacheTTL:      cfg.Cache.TTL,
	})
	return p, nil
}

// newCorpusSource picks the corpus backend from configuration. The second
// return value closes the backend's connections when non-nil.
func newCorpusSource(cfg *config.Config) (corpus.Source, func() error, error) {
	switch cfg.Corpus.Source {
	case "", "file":
		if cfg.Corpus.Path == "" {
			return nil, nil, errors.New("CORPUS_PATH environment variable is required for the file corpus source")
		}
		return corpus.NewFileSource(cfg.Corpus.Path), nil, nil

	case "postgres":
		if cfg.Database.URL == "" {
			return nil, nil, errors.New("DATABASE_URL environment variable is required for the postgres corpus source")
		}
		src, err := postgres.New(cfg.Database.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		return src, src.Close, nil

	case "mariadb":
		if cfg.Archive.DSN == "" {
			return nil, nil, errors.New("ARCHIVE_DATABASE_URL environment variable is required for the mariadb corpus source")
		}
		src, err := mariadb.New(cfg.Archive.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to MariaDB: %w", err)
		}
		return src, src.Close, nil
	}

	return nil, nil, fmt.Errorf("unknown corpus source %q (want file, postgres or mariadb)", cfg.Corpus.Source)
}
