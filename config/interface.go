package config

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

// Defaults applied by every config implementation when a setting is absent.
const (
	DefaultListenAddr     = ":8080"
	DefaultCookieName     = "ppsai_auth"
	DefaultSessionTTL     = 30 * time.Minute
	DefaultUpstreamMethod = "POST"

	DefaultProviderBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultImageModel      = "gemini-2.5-flash-image"
	DefaultVideoModel      = "veo-3.1-generate-preview"
)

// Orchestrator holds the outbound settings for the chat-automation backend
// that produces assistant replies.
type Orchestrator struct {
	URL         string
	Method      string // HTTP method for buffered calls, default POST
	Bearer      string // optional bearer token
	HeaderName  string // optional single custom header
	HeaderValue string
}

// MediaProvider holds the settings for the generative media API used for
// image generation/editing and long-running video synthesis.
type MediaProvider struct {
	APIKey     string
	BaseURL    string
	ImageModel string
	VideoModel string
}

type IConfig interface {
	// Core server settings
	ListenAddr() (string, error)
	ServerName() (string, error)
	ServerVersion() (string, error)
	LogLevel() (string, error)
	FrontendAddressForProxy() (string, error)

	// Session settings
	AccessCode() (string, error)
	CookieName() (string, error)
	SessionTTL() (time.Duration, error)

	// Upstream settings
	Orchestrator() (*Orchestrator, error)
	MediaProvider() (*MediaProvider, error)

	// SSL settings
	SSLEnabled() (bool, error)
	SSLMode() (string, error)          // Returns "manual" or "acme"
	SSLCertFile() (string, error)      // Path to certificate file (manual mode)
	SSLKeyFile() (string, error)       // Path to private key file (manual mode)
	SSLAcmeDomains() ([]string, error) // List of domains for ACME
	SSLAcmeEmail() (string, error)     // Contact email for ACME
	SSLAcmeCacheDir() (string, error)  // Directory to cache ACME certificates

	// Lifecycle & Status
	Status(ctx context.Context) error
	Close() error
}

// SessionToken derives the session cookie value for an access code.
// The cookie carries this hash rather than the code itself; authentication
// is a plain equality check against it.
func SessionToken(accessCode string) string {
	if accessCode == "" {
		return ""
	}
	hasher := sha256.New()
	hasher.Write([]byte(accessCode))
	return hex.EncodeToString(hasher.Sum(nil))
}

func copyOrchestrator(o *Orchestrator) *Orchestrator {
	if o == nil {
		return nil
	}
	cp := *o
	return &cp
}

func copyMediaProvider(m *MediaProvider) *MediaProvider {
	if m == nil {
		return nil
	}
	cp := *m
	return &cp
}

// normalizeOrchestrator fills Method with the default when unset.
func normalizeOrchestrator(o *Orchestrator) *Orchestrator {
	if o == nil {
		return &Orchestrator{Method: DefaultUpstreamMethod}
	}
	if o.Method == "" {
		o.Method = DefaultUpstreamMethod
	}
	return o
}

// normalizeMediaProvider fills BaseURL and model names with defaults when unset.
func normalizeMediaProvider(m *MediaProvider) *MediaProvider {
	if m == nil {
		m = &MediaProvider{}
	}
	if m.BaseURL == "" {
		m.BaseURL = DefaultProviderBaseURL
	}
	if m.ImageModel == "" {
		m.ImageModel = DefaultImageModel
	}
	if m.VideoModel == "" {
		m.VideoModel = DefaultVideoModel
	}
	return m
}
