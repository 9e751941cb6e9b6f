package transport

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

type mediaEditAttachment struct {
	Type   string `json:"type"`
	Base64 string `json:"base64"`
}

// mediaEditRequest accepts every input shape historical clients sent:
// a single {prompt, base64} pair, {instructions, images:[...]}, or
// {instructions, attachments:[{type:"image", base64}]}.
type mediaEditRequest struct {
	Prompt       string                `json:"prompt"`
	Instructions string                `json:"instructions"`
	Base64       string                `json:"base64"`
	Images       []string              `json:"images"`
	Attachments  []mediaEditAttachment `json:"attachments"`
}

func (m *mediaEditRequest) instructions() string {
	if s := strings.TrimSpace(m.Instructions); s != "" {
		return s
	}
	return strings.TrimSpace(m.Prompt)
}

func (m *mediaEditRequest) sources() []string {
	if len(m.Images) > 0 {
		return m.Images
	}
	if len(m.Attachments) > 0 {
		var images []string
		for _, a := range m.Attachments {
			if a.Type == "image" && a.Base64 != "" {
				images = append(images, a.Base64)
			}
		}
		return images
	}
	if m.Base64 != "" {
		return []string{m.Base64}
	}
	return nil
}

type mediaEditResult struct {
	OK       bool        `json:"ok"`
	ImageURL string      `json:"image_url,omitempty"`
	Error    string      `json:"error,omitempty"`
	Detail   interface{} `json:"detail,omitempty"`
}

type mediaEditResponse struct {
	OK      bool              `json:"ok"`
	Results []mediaEditResult `json:"results"`
}

// HandleMediaEdit runs image-to-image editing over one or more source
// images. Images are processed sequentially and independently; the call
// succeeds if at least one of them does.
func (t *Transport) HandleMediaEdit() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := t.requestLogger(r)
		if r.Method != http.MethodPost {
			methodNotAllowed(w, http.MethodPost)
			return
		}
		if !t.requireSession(w, r, logger) {
			return
		}

		var body mediaEditRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			errorJSON(w, http.StatusBadRequest, "invalid_json")
			return
		}
		instructions := body.instructions()
		if instructions == "" {
			errorJSON(w, http.StatusBadRequest, "missing_instructions")
			return
		}
		images := body.sources()
		if len(images) == 0 {
			errorJSON(w, http.StatusBadRequest, "missing_images")
			return
		}

		results := make([]mediaEditResult, 0, len(images))
		anySucceeded := false
		for i, source := range images {
			imageURL, err := t.media.EditImage(r.Context(), instructions, source)
			if err != nil {
				logger.Warn("Image edit failed", zap.Int("index", i), zap.Error(err))
				results = append(results, mediaEditResult{OK: false, Error: "edit_failed", Detail: err.Error()})
				continue
			}
			anySucceeded = true
			results = append(results, mediaEditResult{OK: true, ImageURL: imageURL})
		}

		okJSON(w, mediaEditResponse{OK: anySucceeded, Results: results})
	}
}
