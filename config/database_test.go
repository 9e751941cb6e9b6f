package config_test

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/ppsai/chatgate/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// testDatabaseURL returns the connection string for an integration database,
// or skips the test when none is provided.
func testDatabaseURL(t *testing.T) string {
	t.Helper()
	url := os.Getenv("CHATGATE_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("CHATGATE_TEST_DATABASE_URL not set, skipping database config tests")
	}
	return url
}

func seedSettings(t *testing.T, url string, settings map[string]string) {
	t.Helper()
	db, err := sql.Open("postgres", url)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS "Settings" (key TEXT PRIMARY KEY, value JSONB)`)
	require.NoError(t, err)
	for key, value := range settings {
		_, err = db.Exec(`INSERT INTO "Settings" (key, value) VALUES ($1, $2)
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, key, value)
		require.NoError(t, err)
	}
}

func TestDatabaseConfig_Settings(t *testing.T) {
	url := testDatabaseURL(t)
	seedSettings(t, url, map[string]string{
		"gateway_listen_address": `":9091"`,
		"session_access_code":    `"db-code"`,
		"session_ttl_minutes":    `20`,
		"orchestrator":           `{"url": "https://flows.example.com/hook", "method": "GET", "bearer": "tok"}`,
		"media_provider":         `{"api_key": "gm", "image_model": "img-db"}`,
	})

	cfg, err := config.NewDatabaseConfig(url, zap.NewNop())
	require.NoError(t, err)
	defer cfg.Close()

	addr, err := cfg.ListenAddr()
	require.NoError(t, err)
	assert.Equal(t, ":9091", addr)

	code, err := cfg.AccessCode()
	require.NoError(t, err)
	assert.Equal(t, "db-code", code)

	ttl, err := cfg.SessionTTL()
	require.NoError(t, err)
	assert.Equal(t, 20*time.Minute, ttl)

	orch, err := cfg.Orchestrator()
	require.NoError(t, err)
	assert.Equal(t, "https://flows.example.com/hook", orch.URL)
	assert.Equal(t, "GET", orch.Method)
	assert.Equal(t, "tok", orch.Bearer)

	media, err := cfg.MediaProvider()
	require.NoError(t, err)
	assert.Equal(t, "gm", media.APIKey)
	assert.Equal(t, "img-db", media.ImageModel)
	assert.Equal(t, config.DefaultVideoModel, media.VideoModel)

	assert.NoError(t, cfg.Status(context.Background()))
}

func clearSettings(t *testing.T, url string, keys ...string) {
	t.Helper()
	db, err := sql.Open("postgres", url)
	require.NoError(t, err)
	defer db.Close()
	for _, key := range keys {
		_, err = db.Exec(`DELETE FROM "Settings" WHERE key = $1`, key)
		require.NoError(t, err)
	}
}

func TestDatabaseConfig_MissingKeysUseDefaults(t *testing.T) {
	url := testDatabaseURL(t)
	seedSettings(t, url, nil)
	clearSettings(t, url, "session_cookie_name", "orchestrator", "media_provider")

	cfg, err := config.NewDatabaseConfig(url, zap.NewNop())
	require.NoError(t, err)
	defer cfg.Close()

	cookieName, err := cfg.CookieName()
	require.NoError(t, err)
	assert.Equal(t, config.DefaultCookieName, cookieName)

	orch, err := cfg.Orchestrator()
	require.NoError(t, err)
	assert.Empty(t, orch.URL)
	assert.Equal(t, config.DefaultUpstreamMethod, orch.Method)

	media, err := cfg.MediaProvider()
	require.NoError(t, err)
	assert.Equal(t, config.DefaultProviderBaseURL, media.BaseURL)
}

func TestDatabaseConfig_StatusUnreachable(t *testing.T) {
	cfg, err := config.NewDatabaseConfig("postgres://nobody@127.0.0.1:1/none?sslmode=disable&connect_timeout=1", zap.NewNop())
	require.NoError(t, err)
	assert.Error(t, cfg.Status(context.Background()))
}
