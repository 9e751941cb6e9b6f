package config_test

import (
	"context"
	"testing"

	"github.com/ppsai/chatgate/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionToken(t *testing.T) {
	// sha256("secret")
	assert.Equal(t,
		"2bb80d537b1da3e38bd30361aa855686bde0eacd7162fef6a25fe97bf527a25b",
		config.SessionToken("secret"))
	assert.Equal(t, config.SessionToken("a"), config.SessionToken("a"))
	assert.NotEqual(t, config.SessionToken("a"), config.SessionToken("b"))
	assert.Empty(t, config.SessionToken(""))
}

func TestInternalConfig_Defaults(t *testing.T) {
	cfg := config.NewInternalConfig()

	addr, err := cfg.ListenAddr()
	require.NoError(t, err)
	assert.Equal(t, config.DefaultListenAddr, addr)

	cookieName, _ := cfg.CookieName()
	assert.Equal(t, config.DefaultCookieName, cookieName)
	ttl, _ := cfg.SessionTTL()
	assert.Equal(t, config.DefaultSessionTTL, ttl)

	orch, err := cfg.Orchestrator()
	require.NoError(t, err)
	assert.Equal(t, config.DefaultUpstreamMethod, orch.Method)

	media, err := cfg.MediaProvider()
	require.NoError(t, err)
	assert.Equal(t, config.DefaultProviderBaseURL, media.BaseURL)
	assert.Equal(t, config.DefaultImageModel, media.ImageModel)
	assert.Equal(t, config.DefaultVideoModel, media.VideoModel)

	assert.NoError(t, cfg.Status(context.Background()))
	assert.NoError(t, cfg.Close())
}

func TestInternalConfig_Setters(t *testing.T) {
	cfg := config.NewInternalConfig()

	cfg.SetListenAddr(":9999")
	addr, _ := cfg.ListenAddr()
	assert.Equal(t, ":9999", addr)

	cfg.SetAccessCode("code")
	code, _ := cfg.AccessCode()
	assert.Equal(t, "code", code)

	cfg.SetOrchestrator(&config.Orchestrator{URL: "https://x.example", Method: "GET"})
	orch, _ := cfg.Orchestrator()
	assert.Equal(t, "https://x.example", orch.URL)
	assert.Equal(t, "GET", orch.Method)
}

func TestInternalConfig_ReturnsCopies(t *testing.T) {
	cfg := config.NewInternalConfig()
	cfg.SetOrchestrator(&config.Orchestrator{URL: "https://x.example"})

	orch, _ := cfg.Orchestrator()
	orch.URL = "mutated"

	fresh, _ := cfg.Orchestrator()
	assert.Equal(t, "https://x.example", fresh.URL)
}
