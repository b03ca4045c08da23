// Package config loads the service configuration once at process start.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Lllllllleong/pricingextractor/internal/apperr"
	"github.com/Lllllllleong/pricingextractor/internal/gcp"
	"github.com/Lllllllleong/pricingextractor/internal/publish"
	"github.com/joho/godotenv"
)

// LLM providers.
const (
	ProviderVertex    = "vertex"
	ProviderAnthropic = "anthropic"
)

type ServerConfig struct {
	Port           string
	RequestTimeout time.Duration
	MaxUploadBytes int64
	UploadField    string
	TempDir        string
}

type VertexConfig struct {
	ProjectID string
	Region    string
	Model     string
}

type AnthropicConfig struct {
	APIKey    string
	Model     string
	MaxTokens int64
}

type PublishConfig struct {
	Mode              publish.Mode
	Bucket            string
	Prefix            string
	URLExpiry         time.Duration
	SignURLs          bool
	GoogleAccessID    string
	UploadConcurrency int
}

type RasterConfig struct {
	DPI     float64
	Workers int
}

type FirestoreConfig struct {
	ProjectID  string
	Collection string
}

type TriggerConfig struct {
	ResultsBucket string
}

// Config is the full service configuration. It is passed explicitly to every
// component constructor.
type Config struct {
	Server         ServerConfig
	Provider       string
	LLMMaxAttempts int
	Vertex         VertexConfig
	Anthropic      AnthropicConfig
	Publish        PublishConfig
	Raster         RasterConfig
	Firestore      FirestoreConfig
	Trigger        TriggerConfig
}

// Load reads the configuration from the environment. A .env file in the
// working directory is honoured when present. Malformed values are reported
// as a ConfigurationError; required values are checked by Validate.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("Could not load .env file", "error", err)
	}

	p := &parser{}
	projectID := gcp.GetEnv("PROJECT_ID", "")
	cfg := &Config{
		Server: ServerConfig{
			Port:           gcp.GetEnv("PORT", "8080"),
			RequestTimeout: p.duration("REQUEST_TIMEOUT", 2*time.Minute),
			MaxUploadBytes: p.int64("MAX_UPLOAD_BYTES", 32<<20),
			UploadField:    gcp.GetEnv("UPLOAD_FIELD", "file"),
			TempDir:        gcp.GetEnv("TEMP_DIR", ""),
		},
		Provider:       strings.ToLower(gcp.GetEnv("LLM_PROVIDER", ProviderVertex)),
		LLMMaxAttempts: p.int("LLM_MAX_ATTEMPTS", 2),
		Vertex: VertexConfig{
			ProjectID: projectID,
			Region:    gcp.GetEnv("VERTEX_AI_REGION", "us-central1"),
			Model:     gcp.GetEnv("VERTEX_AI_MODEL", "gemini-1.5-pro"),
		},
		Anthropic: AnthropicConfig{
			APIKey:    gcp.GetEnv("ANTHROPIC_API_KEY", ""),
			Model:     gcp.GetEnv("ANTHROPIC_MODEL", "claude-sonnet-4-5"),
			MaxTokens: p.int64("ANTHROPIC_MAX_TOKENS", 8192),
		},
		Publish: PublishConfig{
			Mode:              publish.Mode(strings.ToLower(gcp.GetEnv("PUBLISH_MODE", string(publish.ModeInline)))),
			Bucket:            gcp.GetEnv("PAGE_IMAGES_BUCKET", ""),
			Prefix:            gcp.GetEnv("PAGE_IMAGES_PREFIX", "analyses"),
			URLExpiry:         p.duration("SIGNED_URL_EXPIRY", 5*time.Minute),
			SignURLs:          p.bool("SIGN_URLS", true),
			GoogleAccessID:    gcp.GetEnv("SIGNING_SERVICE_ACCOUNT", ""),
			UploadConcurrency: p.int("UPLOAD_CONCURRENCY", 4),
		},
		Raster: RasterConfig{
			DPI:     p.float("RASTER_DPI", 150),
			Workers: p.int("RASTER_WORKERS", 1),
		},
		Firestore: FirestoreConfig{
			ProjectID:  projectID,
			Collection: gcp.GetEnv("FIRESTORE_COLLECTION", ""),
		},
		Trigger: TriggerConfig{
			ResultsBucket: gcp.GetEnv("RESULTS_BUCKET", ""),
		},
	}
	if len(p.errs) > 0 {
		return nil, apperr.Configuration("config.Load", fmt.Errorf("invalid values: %s", strings.Join(p.errs, "; ")))
	}
	return cfg, nil
}

// Validate checks that every value required by the selected provider and
// publish mode is present.
func (c *Config) Validate() error {
	var missing []string
	switch c.Provider {
	case ProviderVertex:
		if c.Vertex.ProjectID == "" {
			missing = append(missing, "PROJECT_ID")
		}
	case ProviderAnthropic:
		if c.Anthropic.APIKey == "" {
			missing = append(missing, "ANTHROPIC_API_KEY")
		}
	default:
		return apperr.Configuration("config.Validate", fmt.Errorf("unknown LLM_PROVIDER %q", c.Provider))
	}

	switch c.Publish.Mode {
	case publish.ModeInline:
	case publish.ModeRemote:
		if c.Publish.Bucket == "" {
			missing = append(missing, "PAGE_IMAGES_BUCKET")
		}
		if c.Provider == ProviderAnthropic && !c.Publish.SignURLs {
			return apperr.Configuration("config.Validate", fmt.Errorf("anthropic cannot read gs:// URIs; SIGN_URLS must be true"))
		}
	default:
		return apperr.Configuration("config.Validate", fmt.Errorf("unknown PUBLISH_MODE %q", c.Publish.Mode))
	}

	if c.Firestore.Collection != "" && c.Firestore.ProjectID == "" {
		missing = append(missing, "PROJECT_ID")
	}
	if c.Raster.DPI <= 0 {
		return apperr.Configuration("config.Validate", fmt.Errorf("RASTER_DPI must be positive, got %v", c.Raster.DPI))
	}
	if c.Publish.URLExpiry <= 0 {
		return apperr.Configuration("config.Validate", fmt.Errorf("SIGNED_URL_EXPIRY must be positive, got %v", c.Publish.URLExpiry))
	}

	if len(missing) > 0 {
		return apperr.Configuration("config.Validate", fmt.Errorf("%s environment variable must be set", strings.Join(missing, ", ")))
	}
	return nil
}

// ValidateTrigger additionally checks the upload trigger settings.
func (c *Config) ValidateTrigger() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Trigger.ResultsBucket == "" {
		return apperr.Configuration("config.ValidateTrigger", fmt.Errorf("RESULTS_BUCKET environment variable must be set"))
	}
	return nil
}

// parser collects every malformed value instead of failing on the first.
type parser struct {
	errs []string
}

func (p *parser) raw(key string) (string, bool) {
	v := strings.TrimSpace(gcp.GetEnv(key, ""))
	return v, v != ""
}

func (p *parser) int(key string, fallback int) int {
	v, ok := p.raw(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		p.errs = append(p.errs, fmt.Sprintf("%s=%q is not a positive integer", key, v))
		return fallback
	}
	return n
}

func (p *parser) int64(key string, fallback int64) int64 {
	v, ok := p.raw(key)
	if !ok {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		p.errs = append(p.errs, fmt.Sprintf("%s=%q is not a positive integer", key, v))
		return fallback
	}
	return n
}

func (p *parser) float(key string, fallback float64) float64 {
	v, ok := p.raw(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Sprintf("%s=%q is not a number", key, v))
		return fallback
	}
	return f
}

func (p *parser) bool(key string, fallback bool) bool {
	v, ok := p.raw(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Sprintf("%s=%q is not a boolean", key, v))
		return fallback
	}
	return b
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	v, ok := p.raw(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Sprintf("%s=%q is not a duration", key, v))
		return fallback
	}
	return d
}
