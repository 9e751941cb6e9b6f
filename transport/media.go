package transport

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ppsai/chatgate/mediaprovider"
	"go.uber.org/zap"
)

type mediaRequest struct {
	Type string `json:"type"`
	// Historical clients used all three prompt spellings.
	Prompt      string `json:"prompt"`
	Text        string `json:"text"`
	MediaPrompt string `json:"mediaPrompt"`
}

func (m *mediaRequest) prompt() string {
	for _, candidate := range []string{m.Prompt, m.Text, m.MediaPrompt} {
		if s := strings.TrimSpace(candidate); s != "" {
			return s
		}
	}
	return ""
}

type mediaStartedBody struct {
	OK          bool   `json:"ok"`
	Pending     bool   `json:"pending"`
	OpName      string `json:"op_name"`
	PollAfterMS int    `json:"poll_after_ms"`
}

type mediaPendingBody struct {
	OK          bool `json:"ok"`
	Pending     bool `json:"pending"`
	PollAfterMS int  `json:"poll_after_ms"`
}

type mediaImageBody struct {
	OK       bool   `json:"ok"`
	Type     string `json:"type"`
	ImageURL string `json:"image_url"`
}

type mediaVideoBody struct {
	OK       bool   `json:"ok"`
	Pending  bool   `json:"pending"`
	Type     string `json:"type"`
	VideoURL string `json:"video_url"`
}

// HandleMedia serves direct media generation: POST starts an image or video
// job, GET polls a long-running video operation by name.
func (t *Transport) HandleMedia() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := t.requestLogger(r)
		switch r.Method {
		case http.MethodPost:
			t.handleMediaStart(w, r, logger)
		case http.MethodGet:
			t.handleMediaPoll(w, r, logger)
		default:
			methodNotAllowed(w, "GET, POST")
		}
	}
}

func (t *Transport) handleMediaStart(w http.ResponseWriter, r *http.Request, logger *zap.Logger) {
	if !t.requireSession(w, r, logger) {
		return
	}

	var body mediaRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid_json")
		return
	}
	prompt := body.prompt()
	if prompt == "" {
		errorJSON(w, http.StatusBadRequest, "prompt_missing")
		return
	}

	mediaType := strings.ToLower(strings.TrimSpace(body.Type))
	if mediaType == "" {
		mediaType = "image"
	}

	switch mediaType {
	case "image":
		imageURL, err := t.media.GenerateImage(r.Context(), prompt)
		if err != nil {
			t.writeProviderError(w, logger, err)
			return
		}
		okJSON(w, mediaImageBody{OK: true, Type: "image", ImageURL: imageURL})
	case "video":
		opName, err := t.media.StartVideo(r.Context(), prompt)
		if err != nil {
			t.writeProviderError(w, logger, err)
			return
		}
		okJSON(w, mediaStartedBody{
			OK:          true,
			Pending:     true,
			OpName:      opName,
			PollAfterMS: mediaprovider.PollAfterStartMS,
		})
	default:
		errorJSONDetail(w, http.StatusBadRequest, "unsupported_type", mediaType)
	}
}

func (t *Transport) handleMediaPoll(w http.ResponseWriter, r *http.Request, logger *zap.Logger) {
	if !t.requireSession(w, r, logger) {
		return
	}

	opName := r.URL.Query().Get("op")
	if opName == "" {
		errorJSON(w, http.StatusBadRequest, "missing_op")
		return
	}

	status, err := t.media.PollOperation(r.Context(), opName)
	if err != nil {
		t.writeProviderError(w, logger, err)
		return
	}
	if !status.Done {
		okJSON(w, mediaPendingBody{OK: true, Pending: true, PollAfterMS: mediaprovider.PollAfterPendingMS})
		return
	}
	okJSON(w, mediaVideoBody{OK: true, Pending: false, Type: "video", VideoURL: status.VideoDataURL})
}

// writeProviderError maps media provider failures to the fixed error shape.
func (t *Transport) writeProviderError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var providerErr *mediaprovider.ProviderError
	switch {
	case errors.Is(err, mediaprovider.ErrNotConfigured):
		logger.Error("Media provider not configured")
		errorJSON(w, http.StatusInternalServerError, "missing_media_api_key")
	case errors.Is(err, mediaprovider.ErrNoVideo):
		logger.Error("Video operation finished without a result")
		errorJSON(w, http.StatusInternalServerError, "no_video_returned")
	case errors.As(err, &providerErr):
		logger.Error("Media provider rejected the request",
			zap.Int("status", providerErr.StatusCode))
		errorJSONDetail(w, http.StatusBadGateway, "provider_error", providerErr.Body)
	default:
		logger.Error("Media provider call failed", zap.Error(err))
		errorJSONDetail(w, http.StatusBadGateway, "fetch_error", err.Error())
	}
}
