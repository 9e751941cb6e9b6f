package transport

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

type loginRequest struct {
	Code string `json:"code"`
}

type okBody struct {
	OK bool `json:"ok"`
}

// HandleLogin exchanges the shared access code for a session cookie.
func (t *Transport) HandleLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := t.requestLogger(r)
		if r.Method != http.MethodPost {
			methodNotAllowed(w, http.MethodPost)
			return
		}

		expected, err := t.config.AccessCode()
		if err != nil {
			logger.Error("Failed to read access code from config", zap.Error(err))
			errorJSON(w, http.StatusInternalServerError, "missing_access_code")
			return
		}
		if expected == "" {
			logger.Error("No access code configured, login disabled")
			errorJSON(w, http.StatusInternalServerError, "missing_access_code")
			return
		}

		var body loginRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			errorJSON(w, http.StatusBadRequest, "invalid_json")
			return
		}
		code := strings.TrimSpace(body.Code)
		if code == "" {
			errorJSON(w, http.StatusBadRequest, "empty_code")
			return
		}
		if code != expected {
			logger.Warn("Login attempt with wrong access code")
			errorJSON(w, http.StatusUnauthorized, "invalid_code")
			return
		}

		if err := t.auth.Issue(w); err != nil {
			logger.Error("Failed to issue session cookie", zap.Error(err))
			errorJSON(w, http.StatusInternalServerError, "session_issue_failed")
			return
		}
		logger.Info("Session issued")
		okJSON(w, okBody{OK: true})
	}
}

// HandleLogout clears the session cookie.
func (t *Transport) HandleLogout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := t.requestLogger(r)
		if r.Method != http.MethodPost {
			methodNotAllowed(w, http.MethodPost)
			return
		}
		if err := t.auth.Clear(w); err != nil {
			logger.Error("Failed to clear session cookie", zap.Error(err))
			errorJSON(w, http.StatusInternalServerError, "session_clear_failed")
			return
		}
		okJSON(w, okBody{OK: true})
	}
}

// HandleSession reports whether the caller holds a valid session, refreshing
// the sliding expiry when they do.
func (t *Transport) HandleSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := t.requestLogger(r)
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		if !t.requireSession(w, r, logger) {
			return
		}
		if err := t.auth.Issue(w); err != nil {
			logger.Error("Failed to refresh session cookie", zap.Error(err))
		}
		okJSON(w, okBody{OK: true})
	}
}
