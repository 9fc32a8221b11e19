package config

import (
	_ "embed"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kozaktomas/derm-match/internal/constants"
)

//go:embed models.yaml
var modelsYAML []byte

type Config struct {
	Detector  DetectorConfig
	Gemini    GeminiConfig
	Embedding EmbeddingConfig
	OpenAI    OpenAIConfig
	Cache     CacheConfig
	Index     IndexConfig
	Breaker   BreakerConfig
	Corpus    CorpusConfig
	Database  DatabaseConfig
	Archive   ArchiveConfig
	Server    ServerConfig
	Models    ModelsConfig
}

type DetectorConfig struct {
	URL          string        // local detector sidecar (defaults to http://localhost:9010)
	Version      string        // detector version reported in analysis provenance
	Confidence   float64       // acceptance threshold; zero keeps the built-in 0.5
	CropMargin   float64       // crop padding around the detected box; zero keeps the built-in 0.20
	CloudTimeout time.Duration // per-call budget for the cloud fallback; zero keeps the built-in 5s
}

type GeminiConfig struct {
	APIKey string // enables the cloud fallback detector when set
}

type EmbeddingConfig struct {
	URL   string // embedding sidecar (defaults to http://localhost:8000)
	Model string // defaults to clip
	Dim   int    // zero means derive from the model registry
}

type OpenAIConfig struct {
	Token   string // enables the OpenAI embedding fallback when set
	BaseURL string // defaults to https://api.openai.com/v1
}

type CacheConfig struct {
	Capacity int           // zero keeps the built-in 1024
	TTL      time.Duration // zero keeps the built-in 24h
}

type IndexConfig struct {
	HNSWThreshold int     // zero keeps the built-in 10000
	Boost         float64 // demographic boost multiplier; zero keeps the built-in 1.1
}

type BreakerConfig struct {
	FailureThreshold int           // consecutive failures before the breaker opens; zero keeps the built-in 3
	Cooldown         time.Duration // open interval before a half-open probe; zero keeps the built-in 60s
}

type CorpusConfig struct {
	Source         string        // file, postgres or mariadb (defaults to file)
	Path           string        // snapshot path for the file source
	ReloadInterval time.Duration // zero disables periodic reloads
}

type DatabaseConfig struct {
	URL string // PostgreSQL connection URL for the postgres corpus source
}

type ArchiveConfig struct {
	DSN string // MariaDB DSN for the legacy archive corpus source
}

type ServerConfig struct {
	Port           int      // defaults to 8080
	AllowedOrigins []string // CORS whitelist; localhost is always allowed
}

type ModelsConfig struct {
	Models map[string]ModelSpec `yaml:"models"`
}

type ModelSpec struct {
	Dim int `yaml:"dim"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a positive float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

// envList reads a comma-separated environment variable into a slice,
// dropping empty entries.
func envList(key string) []string {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// envDuration reads an environment variable and parses it as a Go duration
// such as "30s" or "24h". Returns the default value if the env var is unset,
// empty, or invalid.
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

func Load() *Config {
	var models ModelsConfig
	if err := yaml.Unmarshal(modelsYAML, &models); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded models.yaml: " + err.Error())
	}

	return &Config{
		Detector: DetectorConfig{
			URL:          os.Getenv("DETECTOR_URL"),
			Version:      os.Getenv("DETECTOR_VERSION"),
			Confidence:   envFloat("DETECTOR_CONFIDENCE", 0),
			CropMargin:   envFloat("DETECTOR_CROP_MARGIN", 0),
			CloudTimeout: envDuration("DETECTOR_CLOUD_TIMEOUT", 0),
		},
		Gemini: GeminiConfig{
			APIKey: os.Getenv("GEMINI_API_KEY"),
		},
		Embedding: EmbeddingConfig{
			URL:   os.Getenv("EMBEDDING_URL"),
			Model: os.Getenv("EMBEDDING_MODEL"),
			Dim:   envInt("EMBEDDING_DIM", 0),
		},
		OpenAI: OpenAIConfig{
			Token:   os.Getenv("OPENAI_TOKEN"),
			BaseURL: os.Getenv("OPENAI_BASE_URL"),
		},
		Cache: CacheConfig{
			Capacity: envInt("CACHE_CAPACITY", 0),
			TTL:      envDuration("CACHE_TTL", 0),
		},
		Index: IndexConfig{
			HNSWThreshold: envInt("HNSW_THRESHOLD", 0),
			Boost:         envFloat("DEMOGRAPHIC_BOOST", 0),
		},
		Breaker: BreakerConfig{
			FailureThreshold: envInt("BREAKER_FAILURE_THRESHOLD", 0),
			Cooldown:         envDuration("BREAKER_COOLDOWN", 0),
		},
		Corpus: CorpusConfig{
			Source:         os.Getenv("CORPUS_SOURCE"),
			Path:           os.Getenv("CORPUS_PATH"),
			ReloadInterval: envDuration("CORPUS_RELOAD_INTERVAL", 0),
		},
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Archive: ArchiveConfig{
			DSN: os.Getenv("ARCHIVE_DATABASE_URL"),
		},
		Server: ServerConfig{
			Port:           envInt("PORT", 8080),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		},
		Models: models,
	}
}

// EmbeddingDim resolves the embedding dimension: an explicit EMBEDDING_DIM
// wins, then the model registry, then the CLIP default.
func (c *Config) EmbeddingDim() int {
	if c.Embedding.Dim > 0 {
		return c.Embedding.Dim
	}
	if spec, ok := c.Models.Models[c.Embedding.Model]; ok && spec.Dim > 0 {
		return spec.Dim
	}
	return constants.DefaultEmbeddingDim
}
