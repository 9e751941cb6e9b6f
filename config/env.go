package config

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"
)

var _ IConfig = (*EnvConfig)(nil)

// envSettings are the canonical environment keys.
type envSettings struct {
	ListenAddr      string `env:"CHATGATE_LISTEN_ADDR" envDefault:":8080"`
	ServerName      string `env:"CHATGATE_SERVER_NAME" envDefault:"chatgate"`
	ServerVersion   string `env:"CHATGATE_SERVER_VERSION" envDefault:"0.0.0"`
	LogLevel        string `env:"CHATGATE_LOG_LEVEL" envDefault:"info"`
	FrontendAddress string `env:"CHATGATE_FRONTEND_ADDRESS"`

	CookieName        string `env:"CHATGATE_COOKIE_NAME" envDefault:"ppsai_auth"`
	SessionTTLMinutes int    `env:"CHATGATE_SESSION_TTL_MINUTES" envDefault:"30"`

	SSLEnabled      bool     `env:"CHATGATE_SSL_ENABLED"`
	SSLMode         string   `env:"CHATGATE_SSL_MODE" envDefault:"manual"`
	SSLCertFile     string   `env:"CHATGATE_SSL_CERT_FILE"`
	SSLKeyFile      string   `env:"CHATGATE_SSL_KEY_FILE"`
	SSLAcmeDomains  []string `env:"CHATGATE_SSL_ACME_DOMAINS"`
	SSLAcmeEmail    string   `env:"CHATGATE_SSL_ACME_EMAIL"`
	SSLAcmeCacheDir string   `env:"CHATGATE_SSL_ACME_CACHE_DIR" envDefault:"./.autocert-cache"`
}

// Historical deployments spelled several keys inconsistently; every spelling
// that was ever accepted is enumerated here, first match wins.
var envAliases = map[string][]string{
	"access_code":         {"ACCESS_CODE", "Access_code", "access_code"},
	"orchestrator_url":    {"N8N_WEBHOOK_URL", "N8n_webhook_url", "n8n_webhook_url"},
	"orchestrator_method": {"N8N_METHOD", "N8n_method"},
	"orchestrator_bearer": {"N8N_BEARER", "N8n_bearer", "N8n_beare"},
	"header_name":         {"N8N_HEADER_NAME", "N8n_header_name"},
	"header_value":        {"N8N_HEADER_VALUE", "N8n_header_value"},
	"media_api_key":       {"GEMINI_API_KEY"},
	"media_base_url":      {"GEMINI_API_URL"},
	"media_video_model":   {"GEMINI_VIDEO_MODEL"},
	"media_image_model":   {"GEMINI_IMAGE_MODEL"},
}

// envPick returns the first non-empty value among the alias spellings of a key.
func envPick(name string) string {
	for _, key := range envAliases[name] {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return ""
}

// EnvConfig implements all configuration interfaces from process environment
// variables. Values are captured once at construction time.
type EnvConfig struct {
	logger *zap.Logger

	settings      envSettings
	accessCode    string
	orchestrator  *Orchestrator
	mediaProvider *MediaProvider
}

// NewEnvConfig creates a new environment-based configuration
func NewEnvConfig(logger *zap.Logger) (*EnvConfig, error) {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}

	var settings envSettings
	if err := env.Parse(&settings); err != nil {
		return nil, err
	}

	cfg := &EnvConfig{
		logger:     logger,
		settings:   settings,
		accessCode: envPick("access_code"),
		orchestrator: normalizeOrchestrator(&Orchestrator{
			URL:         envPick("orchestrator_url"),
			Method:      strings.ToUpper(envPick("orchestrator_method")),
			Bearer:      envPick("orchestrator_bearer"),
			HeaderName:  envPick("header_name"),
			HeaderValue: envPick("header_value"),
		}),
		mediaProvider: normalizeMediaProvider(&MediaProvider{
			APIKey:     envPick("media_api_key"),
			BaseURL:    envPick("media_base_url"),
			ImageModel: envPick("media_image_model"),
			VideoModel: envPick("media_video_model"),
		}),
	}
	return cfg, nil
}

// --- IConfig Implementation ---

func (c *EnvConfig) ListenAddr() (string, error)    { return c.settings.ListenAddr, nil }
func (c *EnvConfig) ServerName() (string, error)    { return c.settings.ServerName, nil }
func (c *EnvConfig) ServerVersion() (string, error) { return c.settings.ServerVersion, nil }
func (c *EnvConfig) LogLevel() (string, error)      { return c.settings.LogLevel, nil }

func (c *EnvConfig) FrontendAddressForProxy() (string, error) {
	return c.settings.FrontendAddress, nil
}

func (c *EnvConfig) AccessCode() (string, error) { return c.accessCode, nil }
func (c *EnvConfig) CookieName() (string, error) { return c.settings.CookieName, nil }

func (c *EnvConfig) SessionTTL() (time.Duration, error) {
	if c.settings.SessionTTLMinutes <= 0 {
		return DefaultSessionTTL, nil
	}
	return time.Duration(c.settings.SessionTTLMinutes) * time.Minute, nil
}

func (c *EnvConfig) Orchestrator() (*Orchestrator, error) {
	return copyOrchestrator(c.orchestrator), nil
}

func (c *EnvConfig) MediaProvider() (*MediaProvider, error) {
	return copyMediaProvider(c.mediaProvider), nil
}

// --- SSL Methods ---

func (c *EnvConfig) SSLEnabled() (bool, error) { return c.settings.SSLEnabled, nil }

func (c *EnvConfig) SSLMode() (string, error) {
	mode := strings.ToLower(c.settings.SSLMode)
	if mode != "acme" {
		mode = "manual"
	}
	return mode, nil
}

func (c *EnvConfig) SSLCertFile() (string, error)     { return c.settings.SSLCertFile, nil }
func (c *EnvConfig) SSLKeyFile() (string, error)      { return c.settings.SSLKeyFile, nil }
func (c *EnvConfig) SSLAcmeEmail() (string, error)    { return c.settings.SSLAcmeEmail, nil }
func (c *EnvConfig) SSLAcmeCacheDir() (string, error) { return c.settings.SSLAcmeCacheDir, nil }

func (c *EnvConfig) SSLAcmeDomains() ([]string, error) {
	domainsCopy := make([]string, len(c.settings.SSLAcmeDomains))
	copy(domainsCopy, c.settings.SSLAcmeDomains)
	return domainsCopy, nil
}

func (c *EnvConfig) Status(ctx context.Context) error { return nil }
func (c *EnvConfig) Close() error                     { return nil }
