package transport

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ppsai/chatgate/config"
	"go.uber.org/zap"
)

// upstreamTimeout bounds a single buffered orchestrator call. Streaming
// requests are bounded only by the inbound connection.
const upstreamTimeout = 60 * time.Second

const defaultStreamContentType = "text/event-stream; charset=utf-8"

// HandleChat relays a chat turn to the orchestrator. Streaming requests
// (path suffix /stream, or a stream=1/stream=true query flag) are piped
// through untouched; buffered requests run the directive rewrite pipeline
// before the reply is returned.
func (t *Transport) HandleChat() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := t.requestLogger(r)
		if r.Method != http.MethodPost {
			methodNotAllowed(w, http.MethodPost)
			return
		}
		if !t.requireSession(w, r, logger) {
			return
		}

		orch, err := t.config.Orchestrator()
		if err != nil {
			logger.Error("Failed to read orchestrator config", zap.Error(err))
			errorJSON(w, http.StatusInternalServerError, "orchestrator_config_error")
			return
		}
		if orch.URL == "" {
			logger.Error("Orchestrator URL not configured")
			errorJSON(w, http.StatusInternalServerError, "missing_orchestrator_url")
			return
		}

		targetURL, err := buildUpstreamURL(orch.URL, r.URL.Query())
		if err != nil {
			logger.Error("Invalid orchestrator URL", zap.String("url", orch.URL), zap.Error(err))
			errorJSON(w, http.StatusInternalServerError, "invalid_orchestrator_url")
			return
		}

		if isStreamRequest(r) {
			t.serveStream(w, r, orch, targetURL, logger)
			return
		}
		t.serveBuffered(w, r, orch, targetURL, logger)
	}
}

// serveStream forwards the turn and pipes the orchestrator's bytes straight
// to the client. No directive processing happens here: the reply arrives
// moment-by-moment, before a coherent directive could even be detected.
func (t *Transport) serveStream(w http.ResponseWriter, r *http.Request, orch *config.Orchestrator, targetURL string, logger *zap.Logger) {
	bodyText, err := io.ReadAll(r.Body)
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "body_read_error")
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, targetURL, bytes.NewReader(bodyText))
	if err != nil {
		errorJSON(w, http.StatusInternalServerError, "request_build_error")
		return
	}
	setUpstreamHeaders(req, orch, r)
	req.Header.Set("Content-Type", contentTypeJSON)

	upstream, err := t.httpClient.Do(req)
	if err != nil {
		logger.Error("Orchestrator unreachable", zap.Error(err))
		errorJSONDetail(w, http.StatusBadGateway, "upstream_error", err.Error())
		return
	}
	defer upstream.Body.Close()

	if err := t.auth.Issue(w); err != nil {
		logger.Error("Failed to refresh session cookie", zap.Error(err))
	}

	contentType := upstream.Header.Get("Content-Type")
	if contentType == "" {
		contentType = defaultStreamContentType
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(upstream.StatusCode)

	if _, err := io.Copy(newFlushWriter(w), upstream.Body); err != nil {
		// Client gone or upstream cut off; either way the stream is over.
		logger.Debug("Stream copy ended", zap.Error(err))
	}
}

// serveBuffered reads the entire orchestrator reply into memory, runs the
// directive rewrite pipeline over it, and returns the rewritten body.
func (t *Transport) serveBuffered(w http.ResponseWriter, r *http.Request, orch *config.Orchestrator, targetURL string, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(r.Context(), upstreamTimeout)
	defer cancel()

	method := orch.Method
	if method == "" {
		method = http.MethodPost
	}

	var req *http.Request
	var err error
	if method == http.MethodPost {
		var bodyText []byte
		bodyText, err = io.ReadAll(r.Body)
		if err != nil {
			errorJSON(w, http.StatusBadRequest, "body_read_error")
			return
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, targetURL, bytes.NewReader(bodyText))
		if err == nil {
			req.Header.Set("Content-Type", contentTypeJSON)
		}
	} else {
		req, err = http.NewRequestWithContext(ctx, method, targetURL, nil)
	}
	if err != nil {
		errorJSON(w, http.StatusInternalServerError, "request_build_error")
		return
	}
	setUpstreamHeaders(req, orch, r)

	upstream, err := t.httpClient.Do(req)
	if err != nil {
		logger.Error("Orchestrator unreachable", zap.Error(err))
		errorJSONDetail(w, http.StatusBadGateway, "upstream_error", err.Error())
		return
	}
	defer upstream.Body.Close()

	rawBody, err := io.ReadAll(upstream.Body)
	if err != nil {
		logger.Error("Failed to read orchestrator reply", zap.Error(err))
		errorJSONDetail(w, http.StatusBadGateway, "upstream_error", err.Error())
		return
	}

	contentType := upstream.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json; charset=utf-8"
	}

	rewritten := t.rewriter.Rewrite(r.Context(), string(rawBody), contentType)

	if err := t.auth.Issue(w); err != nil {
		logger.Error("Failed to refresh session cookie", zap.Error(err))
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(upstream.StatusCode)
	if _, err := w.Write([]byte(rewritten)); err != nil {
		logger.Debug("Failed to write reply", zap.Error(err))
	}
}

// isStreamRequest checks the path suffix and the stream query flag.
func isStreamRequest(r *http.Request) bool {
	if strings.HasSuffix(r.URL.Path, "/stream") {
		return true
	}
	rawQuery := strings.ToLower(r.URL.RawQuery)
	return strings.Contains(rawQuery, "stream=1") || strings.Contains(rawQuery, "stream=true")
}

// buildUpstreamURL merges the inbound query parameters (minus the internal
// stream flag) into the configured orchestrator URL.
func buildUpstreamURL(base string, inbound url.Values) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	query := parsed.Query()
	for key, values := range inbound {
		if key == "stream" {
			continue
		}
		for _, v := range values {
			query.Add(key, v)
		}
	}
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

// setUpstreamHeaders applies the configured bearer token and custom header,
// and propagates the caller's Accept preference so the orchestrator can pick
// a matching reply framing (SSE, NDJSON, plain JSON).
func setUpstreamHeaders(req *http.Request, orch *config.Orchestrator, inbound *http.Request) {
	if orch.Bearer != "" {
		req.Header.Set("Authorization", "Bearer "+orch.Bearer)
	}
	if orch.HeaderName != "" && orch.HeaderValue != "" {
		req.Header.Set(orch.HeaderName, orch.HeaderValue)
	}
	if accept := inbound.Header.Get("Accept"); accept != "" {
		req.Header.Set("Accept", accept)
	}
}

// flushWriter flushes after every write so streamed chunks reach the client
// immediately instead of sitting in the response buffer.
type flushWriter struct {
	w http.ResponseWriter
	f http.Flusher
}

func newFlushWriter(w http.ResponseWriter) io.Writer {
	f, _ := w.(http.Flusher)
	return &flushWriter{w: w, f: f}
}

func (fw *flushWriter) Write(p []byte) (int, error) {
	n, err := fw.w.Write(p)
	if fw.f != nil {
		fw.f.Flush()
	}
	return n, err
}
