// Package transport is the inbound HTTP surface of the gateway: session
// endpoints, the chat proxy (buffered and streaming), and the direct media
// generation endpoints.
package transport

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/ppsai/chatgate/config"
	"github.com/ppsai/chatgate/mediaprovider"
	"github.com/ppsai/chatgate/rewrite"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// Endpoint paths
const (
	LoginPath      = "/api/login"
	LogoutPath     = "/api/logout"
	SessionPath    = "/api/session"
	ChatPath       = "/api/chat"
	ChatStreamPath = "/api/chat/stream"
	MediaPath      = "/api/media"
	MediaEditPath  = "/api/media-edit"
)

const contentTypeJSON = "application/json"

// Transport wires the gateway's HTTP handlers together.
type Transport struct {
	logger   *zap.Logger
	config   config.IConfig
	auth     *Authenticator
	media    *mediaprovider.Client
	rewriter *rewrite.Rewriter
	cors     *cors.Cors

	// Outbound client for orchestrator calls. Deadlines come from per-call
	// contexts; streaming responses must not be cut off by a client timeout.
	httpClient *http.Client
}

// New creates the HTTP transport.
func New(logger *zap.Logger, cfg config.IConfig) (*Transport, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}

	mediaClient := mediaprovider.New(cfg, logger)
	resolver := mediaprovider.NewOrchestrator(mediaClient, logger)

	t := &Transport{
		logger:   logger.Named("transport"),
		config:   cfg,
		auth:     NewAuthenticator(cfg, logger),
		media:    mediaClient,
		rewriter: rewrite.New(resolver, logger),
		cors: cors.New(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", "Authorization"},
			MaxAge:         86400,
		}),
		httpClient: &http.Client{},
	}

	logger.Info("HTTP transport created")
	return t, nil
}

// RegisterHandlers registers all gateway endpoints with the HTTP mux.
func (t *Transport) RegisterHandlers(mux *http.ServeMux) {
	mux.Handle(LoginPath, t.cors.Handler(t.HandleLogin()))
	mux.Handle(LogoutPath, t.cors.Handler(t.HandleLogout()))
	mux.Handle(SessionPath, t.cors.Handler(t.HandleSession()))
	mux.Handle(ChatPath, t.cors.Handler(t.HandleChat()))
	mux.Handle(ChatStreamPath, t.cors.Handler(t.HandleChat()))
	mux.Handle(MediaPath, t.cors.Handler(t.HandleMedia()))
	mux.Handle(MediaEditPath, t.cors.Handler(t.HandleMediaEdit()))
	t.logger.Info("Registered gateway handlers",
		zap.String("chat", ChatPath), zap.String("media", MediaPath))
}

// requestLogger attaches a request ID and basic request facts to the logger.
func (t *Transport) requestLogger(r *http.Request) *zap.Logger {
	return t.logger.With(
		zap.String("request_id", uuid.NewString()),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
	)
}

// requireSession verifies the session cookie. On failure, the 401 is already
// written and the caller must return.
func (t *Transport) requireSession(w http.ResponseWriter, r *http.Request, logger *zap.Logger) bool {
	ok, err := t.auth.Authenticate(r)
	if err != nil {
		logger.Error("Session check failed", zap.Error(err))
		errorJSON(w, http.StatusInternalServerError, "session_check_failed")
		return false
	}
	if !ok {
		errorJSON(w, http.StatusUnauthorized, "unauthorized")
		return false
	}
	return true
}

// methodNotAllowed writes the fixed error shape for unhandled methods.
func methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	errorJSON(w, http.StatusMethodNotAllowed, "method_not_allowed")
}
