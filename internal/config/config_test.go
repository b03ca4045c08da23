package config

import (
	"os"
	"testing"
	"time"

	"github.com/Lllllllleong/pricingextractor/internal/apperr"
	"github.com/Lllllllleong/pricingextractor/internal/publish"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"PORT", "PROJECT_ID", "LLM_PROVIDER", "VERTEX_AI_REGION", "VERTEX_AI_MODEL",
	"ANTHROPIC_API_KEY", "ANTHROPIC_MODEL", "ANTHROPIC_MAX_TOKENS", "LLM_MAX_ATTEMPTS",
	"PUBLISH_MODE", "PAGE_IMAGES_BUCKET", "PAGE_IMAGES_PREFIX", "SIGNED_URL_EXPIRY",
	"SIGN_URLS", "SIGNING_SERVICE_ACCOUNT", "UPLOAD_CONCURRENCY", "RASTER_DPI",
	"RASTER_WORKERS", "FIRESTORE_COLLECTION", "RESULTS_BUCKET", "REQUEST_TIMEOUT",
	"MAX_UPLOAD_BYTES", "UPLOAD_FIELD", "TEMP_DIR",
}

// clearEnv unsets every configuration key for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		if old, ok := os.LookupEnv(key); ok {
			require.NoError(t, os.Unsetenv(key))
			t.Cleanup(func() { os.Setenv(key, old) })
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 2*time.Minute, cfg.Server.RequestTimeout)
	assert.Equal(t, int64(32<<20), cfg.Server.MaxUploadBytes)
	assert.Equal(t, "file", cfg.Server.UploadField)
	assert.Equal(t, ProviderVertex, cfg.Provider)
	assert.Equal(t, publish.ModeInline, cfg.Publish.Mode)
	assert.Equal(t, 5*time.Minute, cfg.Publish.URLExpiry)
	assert.True(t, cfg.Publish.SignURLs)
	assert.Equal(t, 150.0, cfg.Raster.DPI)
	assert.Equal(t, 2, cfg.LLMMaxAttempts)
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("SIGNED_URL_EXPIRY", "five minutes")
	t.Setenv("UPLOAD_CONCURRENCY", "-3")

	_, err := Load()
	require.Error(t, err)
	assert.Equal(t, apperr.KindConfiguration, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "SIGNED_URL_EXPIRY")
	assert.Contains(t, err.Error(), "UPLOAD_CONCURRENCY")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "vertex without project",
			env:     map[string]string{},
			wantErr: "PROJECT_ID",
		},
		{
			name: "vertex inline",
			env:  map[string]string{"PROJECT_ID": "acme"},
		},
		{
			name:    "remote without bucket",
			env:     map[string]string{"PROJECT_ID": "acme", "PUBLISH_MODE": "remote"},
			wantErr: "PAGE_IMAGES_BUCKET",
		},
		{
			name: "remote with bucket",
			env:  map[string]string{"PROJECT_ID": "acme", "PUBLISH_MODE": "remote", "PAGE_IMAGES_BUCKET": "pages"},
		},
		{
			name:    "anthropic without key",
			env:     map[string]string{"LLM_PROVIDER": "anthropic"},
			wantErr: "ANTHROPIC_API_KEY",
		},
		{
			name:    "anthropic with gs uris",
			env:     map[string]string{"LLM_PROVIDER": "anthropic", "ANTHROPIC_API_KEY": "k", "PUBLISH_MODE": "remote", "PAGE_IMAGES_BUCKET": "pages", "SIGN_URLS": "false"},
			wantErr: "SIGN_URLS",
		},
		{
			name:    "unknown provider",
			env:     map[string]string{"LLM_PROVIDER": "azure"},
			wantErr: "azure",
		},
		{
			name:    "unknown publish mode",
			env:     map[string]string{"PROJECT_ID": "acme", "PUBLISH_MODE": "ftp"},
			wantErr: "ftp",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			require.NoError(t, err)

			err = cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, apperr.KindConfiguration, apperr.KindOf(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateTriggerNeedsResultsBucket(t *testing.T) {
	clearEnv(t)
	t.Setenv("PROJECT_ID", "acme")

	cfg, err := Load()
	require.NoError(t, err)
	assert.ErrorContains(t, cfg.ValidateTrigger(), "RESULTS_BUCKET")

	cfg.Trigger.ResultsBucket = "results"
	assert.NoError(t, cfg.ValidateTrigger())
}
