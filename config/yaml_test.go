package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ppsai/chatgate/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const fullYaml = `
server:
  address: ":9090"
  name: "chatgate-test"
  version: "1.2.3"
  log_level: "debug"
  frontend_address: "http://localhost:3000"
  ssl:
    enabled: true
    mode: "acme"
    acme_domains: ["gate.example.com"]
    acme_email: "ops@example.com"
    acme_cache_dir: "/tmp/acme-cache"
session:
  access_code: "s3cret"
  cookie_name: "my_auth"
  ttl_minutes: 45
orchestrator:
  url: "https://flows.example.com/webhook/chat"
  method: "post"
  bearer: "tok"
  header_name: "X-Flow-Key"
  header_value: "v1"
media:
  api_key: "gm-key"
  base_url: "https://media.example.com/v1"
  image_model: "img-model"
  video_model: "vid-model"
`

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestYamlConfig_FullFile(t *testing.T) {
	cfg, err := config.NewYamlConfig(writeConfigFile(t, fullYaml), zap.NewNop())
	require.NoError(t, err)
	defer cfg.Close()

	addr, _ := cfg.ListenAddr()
	assert.Equal(t, ":9090", addr)
	name, _ := cfg.ServerName()
	assert.Equal(t, "chatgate-test", name)
	version, _ := cfg.ServerVersion()
	assert.Equal(t, "1.2.3", version)
	level, _ := cfg.LogLevel()
	assert.Equal(t, "debug", level)
	frontend, _ := cfg.FrontendAddressForProxy()
	assert.Equal(t, "http://localhost:3000", frontend)

	code, _ := cfg.AccessCode()
	assert.Equal(t, "s3cret", code)
	cookieName, _ := cfg.CookieName()
	assert.Equal(t, "my_auth", cookieName)
	ttl, _ := cfg.SessionTTL()
	assert.Equal(t, 45*time.Minute, ttl)

	orch, err := cfg.Orchestrator()
	require.NoError(t, err)
	assert.Equal(t, "https://flows.example.com/webhook/chat", orch.URL)
	assert.Equal(t, "POST", orch.Method)
	assert.Equal(t, "tok", orch.Bearer)
	assert.Equal(t, "X-Flow-Key", orch.HeaderName)
	assert.Equal(t, "v1", orch.HeaderValue)

	media, err := cfg.MediaProvider()
	require.NoError(t, err)
	assert.Equal(t, "gm-key", media.APIKey)
	assert.Equal(t, "https://media.example.com/v1", media.BaseURL)
	assert.Equal(t, "img-model", media.ImageModel)
	assert.Equal(t, "vid-model", media.VideoModel)

	sslEnabled, _ := cfg.SSLEnabled()
	assert.True(t, sslEnabled)
	sslMode, _ := cfg.SSLMode()
	assert.Equal(t, "acme", sslMode)
	domains, _ := cfg.SSLAcmeDomains()
	assert.Equal(t, []string{"gate.example.com"}, domains)

	assert.NoError(t, cfg.Status(context.Background()))
}

func TestYamlConfig_Defaults(t *testing.T) {
	cfg, err := config.NewYamlConfig(writeConfigFile(t, "server: {}\n"), zap.NewNop())
	require.NoError(t, err)
	defer cfg.Close()

	addr, _ := cfg.ListenAddr()
	assert.Equal(t, config.DefaultListenAddr, addr)
	cookieName, _ := cfg.CookieName()
	assert.Equal(t, config.DefaultCookieName, cookieName)
	ttl, _ := cfg.SessionTTL()
	assert.Equal(t, config.DefaultSessionTTL, ttl)
	sslMode, _ := cfg.SSLMode()
	assert.Equal(t, "manual", sslMode)

	orch, err := cfg.Orchestrator()
	require.NoError(t, err)
	assert.Empty(t, orch.URL)
	assert.Equal(t, config.DefaultUpstreamMethod, orch.Method)

	media, err := cfg.MediaProvider()
	require.NoError(t, err)
	assert.Empty(t, media.APIKey)
	assert.Equal(t, config.DefaultProviderBaseURL, media.BaseURL)
	assert.Equal(t, config.DefaultImageModel, media.ImageModel)
	assert.Equal(t, config.DefaultVideoModel, media.VideoModel)
}

func TestYamlConfig_MissingFile(t *testing.T) {
	_, err := config.NewYamlConfig(filepath.Join(t.TempDir(), "absent.yaml"), zap.NewNop())
	assert.Error(t, err)
}

func TestYamlConfig_InvalidYAML(t *testing.T) {
	_, err := config.NewYamlConfig(writeConfigFile(t, "server: [not: closed\n"), zap.NewNop())
	assert.Error(t, err)
}

func TestYamlConfig_ReloadOnChange(t *testing.T) {
	path := writeConfigFile(t, "session:\n  access_code: \"first\"\n")
	cfg, err := config.NewYamlConfig(path, zap.NewNop())
	require.NoError(t, err)
	defer cfg.Close()

	code, _ := cfg.AccessCode()
	require.Equal(t, "first", code)

	require.NoError(t, os.WriteFile(path, []byte("session:\n  access_code: \"second\"\n"), 0644))

	// The watcher reload is asynchronous.
	assert.Eventually(t, func() bool {
		code, _ := cfg.AccessCode()
		return code == "second"
	}, 5*time.Second, 50*time.Millisecond)
}

func TestYamlConfig_CloseIdempotent(t *testing.T) {
	cfg, err := config.NewYamlConfig(writeConfigFile(t, "server: {}\n"), zap.NewNop())
	require.NoError(t, err)
	assert.NoError(t, cfg.Close())
	assert.NoError(t, cfg.Close())
}
