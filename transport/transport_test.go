package transport_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ppsai/chatgate/config"
	"github.com/ppsai/chatgate/transport"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testAccessCode = "open-sesame"

// newGatewayServer spins up the full transport on an httptest server.
func newGatewayServer(t *testing.T, cfg config.IConfig) *httptest.Server {
	t.Helper()
	tr, err := transport.New(zap.NewNop(), cfg)
	require.NoError(t, err)
	mux := http.NewServeMux()
	tr.RegisterHandlers(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newGatewayConfig() *config.InternalConfig {
	cfg := config.NewInternalConfig()
	cfg.SetAccessCode(testAccessCode)
	return cfg
}

func sessionCookie() *http.Cookie {
	return &http.Cookie{Name: config.DefaultCookieName, Value: config.SessionToken(testAccessCode)}
}

// doRequest sends a request with an optional JSON body and session cookie.
func doRequest(t *testing.T, method, url string, body interface{}, cookie *http.Cookie) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
