package config

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

var _ IConfig = (*DatabaseConfig)(nil)

// DatabaseConfig implements all configuration interfaces with PostgreSQL
// database-based storage. Every setting lives in the "Settings" table as a
// JSON value keyed by name, so operators can change them without a restart.
type DatabaseConfig struct {
	logger             *zap.Logger
	dbConnectionString string
}

// NewDatabaseConfig creates a new DatabaseConfig instance
func NewDatabaseConfig(dbConnectionString string, logger *zap.Logger) (*DatabaseConfig, error) {
	return &DatabaseConfig{
		dbConnectionString: dbConnectionString,
		logger:             logger,
	}, nil
}

// Close closes any resources held by the config
func (c *DatabaseConfig) Close() error { return nil }

// --- IConfig Implementation ---

func (c *DatabaseConfig) ListenAddr() (string, error) {
	return c.getSettingString("gateway_listen_address", DefaultListenAddr)
}

func (c *DatabaseConfig) ServerName() (string, error) {
	return c.getSettingString("gateway_server_name", "chatgate")
}

func (c *DatabaseConfig) ServerVersion() (string, error) {
	return c.getSettingString("gateway_server_version", "0.0.0")
}

func (c *DatabaseConfig) LogLevel() (string, error) {
	return c.getSettingString("gateway_log_level", "info")
}

func (c *DatabaseConfig) FrontendAddressForProxy() (string, error) {
	return c.getSettingString("gateway_frontend_address", "")
}

func (c *DatabaseConfig) AccessCode() (string, error) {
	return c.getSettingString("session_access_code", "")
}

func (c *DatabaseConfig) CookieName() (string, error) {
	return c.getSettingString("session_cookie_name", DefaultCookieName)
}

func (c *DatabaseConfig) SessionTTL() (time.Duration, error) {
	minutes, err := c.getSettingInt("session_ttl_minutes", int(DefaultSessionTTL/time.Minute))
	if err != nil {
		return DefaultSessionTTL, err
	}
	if minutes <= 0 {
		return DefaultSessionTTL, nil
	}
	return time.Duration(minutes) * time.Minute, nil
}

func (c *DatabaseConfig) Orchestrator() (*Orchestrator, error) {
	raw, err := c.getSettingRaw("orchestrator")
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return normalizeOrchestrator(&Orchestrator{}), nil
		}
		return nil, err
	}
	var stored struct {
		URL         string `json:"url"`
		Method      string `json:"method"`
		Bearer      string `json:"bearer"`
		HeaderName  string `json:"header_name"`
		HeaderValue string `json:"header_value"`
	}
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("invalid orchestrator setting: %w", err)
	}
	return normalizeOrchestrator(&Orchestrator{
		URL:         stored.URL,
		Method:      stored.Method,
		Bearer:      stored.Bearer,
		HeaderName:  stored.HeaderName,
		HeaderValue: stored.HeaderValue,
	}), nil
}

func (c *DatabaseConfig) MediaProvider() (*MediaProvider, error) {
	raw, err := c.getSettingRaw("media_provider")
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return normalizeMediaProvider(&MediaProvider{}), nil
		}
		return nil, err
	}
	var stored struct {
		APIKey     string `json:"api_key"`
		BaseURL    string `json:"base_url"`
		ImageModel string `json:"image_model"`
		VideoModel string `json:"video_model"`
	}
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("invalid media_provider setting: %w", err)
	}
	return normalizeMediaProvider(&MediaProvider{
		APIKey:     stored.APIKey,
		BaseURL:    stored.BaseURL,
		ImageModel: stored.ImageModel,
		VideoModel: stored.VideoModel,
	}), nil
}

// --- SSL Methods ---

func (c *DatabaseConfig) SSLEnabled() (bool, error) {
	return c.getSettingBool("gateway_ssl_enabled", false)
}

func (c *DatabaseConfig) SSLMode() (string, error) {
	return c.getSettingString("gateway_ssl_mode", "manual")
}

func (c *DatabaseConfig) SSLCertFile() (string, error) {
	return c.getSettingString("gateway_ssl_cert_file", "")
}

func (c *DatabaseConfig) SSLKeyFile() (string, error) {
	return c.getSettingString("gateway_ssl_key_file", "")
}

func (c *DatabaseConfig) SSLAcmeDomains() ([]string, error) {
	return c.getSettingStringSlice("gateway_ssl_acme_domains", []string{})
}

func (c *DatabaseConfig) SSLAcmeEmail() (string, error) {
	return c.getSettingString("gateway_ssl_acme_email", "")
}

func (c *DatabaseConfig) SSLAcmeCacheDir() (string, error) {
	return c.getSettingString("gateway_ssl_acme_cache_dir", "./.autocert-cache")
}

// Status checks database connectivity.
func (c *DatabaseConfig) Status(ctx context.Context) error {
	db, err := sql.Open("postgres", c.dbConnectionString)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("db ping: %w", err)
	}
	return nil
}

// --- Database Helper Functions ---

func (c *DatabaseConfig) getSettingRaw(key string) ([]byte, error) {
	db, err := sql.Open("postgres", c.dbConnectionString)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	defer db.Close()
	var valueStr sql.NullString
	err = db.QueryRowContext(context.Background(), `SELECT value FROM "Settings" WHERE key = $1 LIMIT 1`, key).Scan(&valueStr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query setting '%s': %w", key, err)
	}
	if !valueStr.Valid {
		return nil, ErrNotFound
	}
	return []byte(valueStr.String), nil
}

func (c *DatabaseConfig) getSettingJSON(key string) (interface{}, error) {
	raw, err := c.getSettingRaw(key)
	if err != nil {
		return nil, err
	}
	var value interface{}
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, fmt.Errorf("unmarshal setting '%s': %w", key, err)
	}
	return value, nil
}

func (c *DatabaseConfig) getSettingString(key string, defaultValue string) (string, error) {
	value, err := c.getSettingJSON(key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return defaultValue, nil
		}
		return defaultValue, err
	}
	switch v := value.(type) {
	case string:
		return v, nil
	case float64:
		return fmt.Sprintf("%v", int(v)), nil
	default:
		return defaultValue, fmt.Errorf("setting '%s' has unexpected type %T", key, value)
	}
}

func (c *DatabaseConfig) getSettingInt(key string, defaultValue int) (int, error) {
	value, err := c.getSettingJSON(key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return defaultValue, nil
		}
		return defaultValue, err
	}
	numValue, ok := value.(float64)
	if !ok {
		return defaultValue, fmt.Errorf("setting '%s' is not a number (type: %T)", key, value)
	}
	return int(numValue), nil
}

func (c *DatabaseConfig) getSettingBool(key string, defaultValue bool) (bool, error) {
	value, err := c.getSettingJSON(key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return defaultValue, nil
		}
		return defaultValue, err
	}
	boolValue, ok := value.(bool)
	if !ok {
		return defaultValue, fmt.Errorf("setting '%s' is not a boolean (type: %T)", key, value)
	}
	return boolValue, nil
}

func (c *DatabaseConfig) getSettingStringSlice(key string, defaultValue []string) ([]string, error) {
	value, err := c.getSettingJSON(key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return defaultValue, nil
		}
		return defaultValue, err
	}
	sliceInterface, ok := value.([]interface{})
	if !ok {
		return defaultValue, fmt.Errorf("setting '%s' is not a JSON array (type: %T)", key, value)
	}
	strSlice := make([]string, 0, len(sliceInterface))
	for i, item := range sliceInterface {
		strVal, ok := item.(string)
		if !ok {
			return defaultValue, fmt.Errorf("non-string value at index %d in setting '%s'", i, key)
		}
		strSlice = append(strSlice, strVal)
	}
	return strSlice, nil
}
