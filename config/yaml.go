package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var _ IConfig = (*YamlConfig)(nil)

// YamlConfig implements all configuration interfaces with YAML file-based storage.
// The file is re-read whenever it changes on disk.
type YamlConfig struct {
	mu         sync.RWMutex
	configPath string
	logger     *zap.Logger

	serverAddress        string
	serverName           string
	serverVersion        string
	logLevel             string
	frontendAddressValue string

	accessCode string
	cookieName string
	sessionTTL time.Duration

	orchestrator  *Orchestrator
	mediaProvider *MediaProvider

	// SSL fields
	sslEnabled      bool
	sslMode         string
	sslCertFile     string
	sslKeyFile      string
	sslAcmeDomains  []string
	sslAcmeEmail    string
	sslAcmeCacheDir string

	watcher   *fsnotify.Watcher
	closeOnce sync.Once
}

// YAML configuration structure matching the required format
type yamlConfig struct {
	Server struct {
		Address         string `yaml:"address"`
		Name            string `yaml:"name"`
		Version         string `yaml:"version"`
		LogLevel        string `yaml:"log_level"`
		FrontendAddress string `yaml:"frontend_address"`
		SSL             struct {
			Enabled      bool     `yaml:"enabled"`
			Mode         string   `yaml:"mode"`
			CertFile     string   `yaml:"cert_file"`
			KeyFile      string   `yaml:"key_file"`
			AcmeDomains  []string `yaml:"acme_domains"`
			AcmeEmail    string   `yaml:"acme_email"`
			AcmeCacheDir string   `yaml:"acme_cache_dir"`
		} `yaml:"ssl"`
	} `yaml:"server"`

	Session struct {
		AccessCode string `yaml:"access_code"`
		CookieName string `yaml:"cookie_name"`
		TTLMinutes int    `yaml:"ttl_minutes"`
	} `yaml:"session"`

	Orchestrator struct {
		URL         string `yaml:"url"`
		Method      string `yaml:"method"`
		Bearer      string `yaml:"bearer"`
		HeaderName  string `yaml:"header_name"`
		HeaderValue string `yaml:"header_value"`
	} `yaml:"orchestrator"`

	Media struct {
		APIKey     string `yaml:"api_key"`
		BaseURL    string `yaml:"base_url"`
		ImageModel string `yaml:"image_model"`
		VideoModel string `yaml:"video_model"`
	} `yaml:"media"`
}

// NewYamlConfig creates a new YAML-based configuration and starts watching
// the file for changes.
func NewYamlConfig(configPath string, logger *zap.Logger) (*YamlConfig, error) {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}

	config := &YamlConfig{
		configPath: configPath,
		logger:     logger,
		cookieName: DefaultCookieName,
		sessionTTL: DefaultSessionTTL,
		sslMode:    "manual",
	}

	if err := config.Update(); err != nil {
		return nil, err
	}
	if err := config.startWatcher(); err != nil {
		// Reload is a convenience; a failed watcher should not prevent startup.
		logger.Warn("Config file watcher unavailable", zap.Error(err))
	}
	return config, nil
}

// Update reloads configuration from the YAML file
func (c *YamlConfig) Update() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logger.Debug("Updating configuration from YAML file", zap.String("path", c.configPath))

	data, err := os.ReadFile(c.configPath)
	if err != nil {
		c.logger.Error("Failed to read config file", zap.Error(err))
		return err
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		c.logger.Error("Failed to parse YAML", zap.Error(err))
		return err
	}

	// --- Process Server Section ---
	c.serverAddress = yamlCfg.Server.Address
	if c.serverAddress == "" {
		c.serverAddress = DefaultListenAddr
	}
	c.serverName = yamlCfg.Server.Name
	c.serverVersion = yamlCfg.Server.Version
	c.logLevel = yamlCfg.Server.LogLevel
	c.frontendAddressValue = yamlCfg.Server.FrontendAddress

	// --- Process SSL Section ---
	c.sslEnabled = yamlCfg.Server.SSL.Enabled
	c.sslMode = strings.ToLower(yamlCfg.Server.SSL.Mode)
	if c.sslMode != "acme" {
		c.sslMode = "manual"
	}
	c.sslCertFile = yamlCfg.Server.SSL.CertFile
	c.sslKeyFile = yamlCfg.Server.SSL.KeyFile
	c.sslAcmeDomains = yamlCfg.Server.SSL.AcmeDomains
	c.sslAcmeEmail = yamlCfg.Server.SSL.AcmeEmail
	c.sslAcmeCacheDir = yamlCfg.Server.SSL.AcmeCacheDir
	if c.sslAcmeCacheDir == "" {
		c.sslAcmeCacheDir = "./.autocert-cache"
	}

	// --- Process Session Section ---
	c.accessCode = strings.TrimSpace(yamlCfg.Session.AccessCode)
	c.cookieName = yamlCfg.Session.CookieName
	if c.cookieName == "" {
		c.cookieName = DefaultCookieName
	}
	if yamlCfg.Session.TTLMinutes > 0 {
		c.sessionTTL = time.Duration(yamlCfg.Session.TTLMinutes) * time.Minute
	} else {
		c.sessionTTL = DefaultSessionTTL
	}

	// --- Process Upstream Sections ---
	c.orchestrator = normalizeOrchestrator(&Orchestrator{
		URL:         strings.TrimSpace(yamlCfg.Orchestrator.URL),
		Method:      strings.ToUpper(strings.TrimSpace(yamlCfg.Orchestrator.Method)),
		Bearer:      yamlCfg.Orchestrator.Bearer,
		HeaderName:  yamlCfg.Orchestrator.HeaderName,
		HeaderValue: yamlCfg.Orchestrator.HeaderValue,
	})
	c.mediaProvider = normalizeMediaProvider(&MediaProvider{
		APIKey:     strings.TrimSpace(yamlCfg.Media.APIKey),
		BaseURL:    strings.TrimSpace(yamlCfg.Media.BaseURL),
		ImageModel: yamlCfg.Media.ImageModel,
		VideoModel: yamlCfg.Media.VideoModel,
	})

	return nil
}

// startWatcher re-runs Update whenever the config file is written or replaced.
func (c *YamlConfig) startWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(c.configPath); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", c.configPath, err)
	}
	c.watcher = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				c.logger.Info("Config file changed, reloading", zap.String("path", c.configPath))
				if err := c.Update(); err != nil {
					c.logger.Error("Config reload failed, keeping previous settings", zap.Error(err))
				}
				// Editors often replace the file; re-add the path so future
				// writes keep triggering events.
				_ = watcher.Add(c.configPath)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				c.logger.Error("Config watcher error", zap.Error(err))
			}
		}
	}()
	return nil
}

// --- IConfig Implementation ---

func (c *YamlConfig) Close() error {
	var err error
	c.closeOnce.Do(func() {
		if c.watcher != nil {
			err = c.watcher.Close()
		}
	})
	return err
}

func (c *YamlConfig) ListenAddr() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverAddress, nil
}

func (c *YamlConfig) ServerName() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverName, nil
}

func (c *YamlConfig) ServerVersion() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverVersion, nil
}

func (c *YamlConfig) LogLevel() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.logLevel, nil
}

func (c *YamlConfig) FrontendAddressForProxy() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.frontendAddressValue, nil
}

func (c *YamlConfig) AccessCode() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessCode, nil
}

func (c *YamlConfig) CookieName() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cookieName, nil
}

func (c *YamlConfig) SessionTTL() (time.Duration, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionTTL, nil
}

func (c *YamlConfig) Orchestrator() (*Orchestrator, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return copyOrchestrator(c.orchestrator), nil
}

func (c *YamlConfig) MediaProvider() (*MediaProvider, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return copyMediaProvider(c.mediaProvider), nil
}

func (c *YamlConfig) Status(ctx context.Context) error {
	// Check if config file exists and is readable
	if _, err := os.Stat(c.configPath); err != nil {
		c.logger.Error("YAML config file status check failed", zap.String("path", c.configPath), zap.Error(err))
		return fmt.Errorf("config file error: %w", err)
	}
	return nil
}

// --- SSL Methods ---

func (c *YamlConfig) SSLEnabled() (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sslEnabled, nil
}

func (c *YamlConfig) SSLMode() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sslMode, nil
}

func (c *YamlConfig) SSLCertFile() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sslCertFile, nil
}

func (c *YamlConfig) SSLKeyFile() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sslKeyFile, nil
}

func (c *YamlConfig) SSLAcmeDomains() ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	domainsCopy := make([]string, len(c.sslAcmeDomains))
	copy(domainsCopy, c.sslAcmeDomains)
	return domainsCopy, nil
}

func (c *YamlConfig) SSLAcmeEmail() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sslAcmeEmail, nil
}

func (c *YamlConfig) SSLAcmeCacheDir() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sslAcmeCacheDir, nil
}
