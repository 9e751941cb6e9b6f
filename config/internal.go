package config

import (
	"context"
	"sync"
	"time"
)

var _ IConfig = (*InternalConfig)(nil)

// InternalConfig implements all configuration interfaces with in-memory storage
type InternalConfig struct {
	mu                   sync.RWMutex
	ServerAddress        string
	ServerNameValue      string
	ServerVersionValue   string
	LogLevelValue        string
	FrontendAddressValue string

	AccessCodeValue string
	CookieNameValue string
	SessionTTLValue time.Duration

	OrchestratorValue  *Orchestrator
	MediaProviderValue *MediaProvider

	// SSL fields
	SSLEnabledValue      bool
	SSLModeValue         string
	SSLCertFileValue     string
	SSLKeyFileValue      string
	SSLAcmeDomainsValue  []string
	SSLAcmeEmailValue    string
	SSLAcmeCacheDirValue string
}

// NewInternalConfig creates a new in-memory configuration
func NewInternalConfig() *InternalConfig {
	return &InternalConfig{
		ServerAddress:      DefaultListenAddr,
		ServerNameValue:    "Unknown",
		ServerVersionValue: "0.0.0",
		LogLevelValue:      "info",
		CookieNameValue:    DefaultCookieName,
		SessionTTLValue:    DefaultSessionTTL,
		SSLModeValue:       "manual",
	}
}

func (c *InternalConfig) ListenAddr() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ServerAddress, nil
}

func (c *InternalConfig) SetListenAddr(addr string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ServerAddress = addr
}

func (c *InternalConfig) ServerName() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ServerNameValue, nil
}

func (c *InternalConfig) ServerVersion() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ServerVersionValue, nil
}

func (c *InternalConfig) LogLevel() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.LogLevelValue, nil
}

func (c *InternalConfig) FrontendAddressForProxy() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.FrontendAddressValue, nil
}

func (c *InternalConfig) AccessCode() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.AccessCodeValue, nil
}

func (c *InternalConfig) SetAccessCode(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.AccessCodeValue = code
}

func (c *InternalConfig) CookieName() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.CookieNameValue == "" {
		return DefaultCookieName, nil
	}
	return c.CookieNameValue, nil
}

func (c *InternalConfig) SessionTTL() (time.Duration, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.SessionTTLValue <= 0 {
		return DefaultSessionTTL, nil
	}
	return c.SessionTTLValue, nil
}

func (c *InternalConfig) Orchestrator() (*Orchestrator, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return normalizeOrchestrator(copyOrchestrator(c.OrchestratorValue)), nil
}

func (c *InternalConfig) SetOrchestrator(o *Orchestrator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.OrchestratorValue = copyOrchestrator(o)
}

func (c *InternalConfig) MediaProvider() (*MediaProvider, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return normalizeMediaProvider(copyMediaProvider(c.MediaProviderValue)), nil
}

func (c *InternalConfig) SetMediaProvider(m *MediaProvider) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.MediaProviderValue = copyMediaProvider(m)
}

// --- SSL Methods ---

func (c *InternalConfig) SSLEnabled() (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.SSLEnabledValue, nil
}

func (c *InternalConfig) SSLMode() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.SSLModeValue, nil
}

func (c *InternalConfig) SSLCertFile() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.SSLCertFileValue, nil
}

func (c *InternalConfig) SSLKeyFile() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.SSLKeyFileValue, nil
}

func (c *InternalConfig) SSLAcmeDomains() ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	domainsCopy := make([]string, len(c.SSLAcmeDomainsValue))
	copy(domainsCopy, c.SSLAcmeDomainsValue)
	return domainsCopy, nil
}

func (c *InternalConfig) SSLAcmeEmail() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.SSLAcmeEmailValue, nil
}

func (c *InternalConfig) SSLAcmeCacheDir() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.SSLAcmeCacheDirValue, nil
}

func (c *InternalConfig) Status(ctx context.Context) error {
	return nil
}

func (c *InternalConfig) Close() error { return nil }
