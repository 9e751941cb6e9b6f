// Package mediaprovider talks to the generative media API: single-shot image
// generation and editing, and long-running video synthesis with operation
// polling.
package mediaprovider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/ppsai/chatgate/config"
	"go.uber.org/zap"
)

// Per-call deadlines. Media downloads get longer because video payloads are
// large; auxiliary image fetches get less because they block a chat reply.
const (
	DefaultTimeout  = 60 * time.Second
	FetchTimeout    = 30 * time.Second
	DownloadTimeout = 120 * time.Second
)

// Suggested client poll intervals in milliseconds.
const (
	PollAfterStartMS   = 5000
	PollAfterPendingMS = 8000
)

const apiKeyHeader = "x-goog-api-key"

// ErrNotConfigured is returned when the provider API key is missing.
var ErrNotConfigured = errors.New("media provider is not configured")

// ErrNoVideo is returned when a finished operation carries no video URI in
// any of the response shapes the provider is known to emit.
var ErrNoVideo = errors.New("operation done but no video in provider response")

// ProviderError reports a non-success status from the media provider.
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("media provider returned status %d: %s", e.StatusCode, e.Body)
}

// Client is a thin HTTP client for the media provider. All calls are single
// timeout-bounded attempts; retrying is the caller's business.
type Client struct {
	cfg        config.IConfig
	logger     *zap.Logger
	httpClient *http.Client
}

// New creates a media provider client.
func New(cfg config.IConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:    cfg,
		logger: logger.Named("mediaprovider"),
		// Deadlines come from per-call contexts, not a client-wide timeout.
		httpClient: &http.Client{},
	}
}

// --- Wire format ---

type generateContentRequest struct {
	Contents []contentPayload `json:"contents"`
}

type contentPayload struct {
	Role  string        `json:"role"`
	Parts []partPayload `json:"parts"`
}

// partPayload unifies both field spellings the provider emits.
type partPayload struct {
	Text            string         `json:"text,omitempty"`
	InlineData      *inlinePayload `json:"inline_data,omitempty"`
	InlineDataCamel *inlinePayload `json:"inlineData,omitempty"`
}

type inlinePayload struct {
	MIMEType      string `json:"mime_type,omitempty"`
	MIMETypeCamel string `json:"mimeType,omitempty"`
	Data          string `json:"data,omitempty"`
}

func (p *inlinePayload) mime() string {
	if p.MIMEType != "" {
		return p.MIMEType
	}
	return p.MIMETypeCamel
}

type generateContentResponse struct {
	Candidates []struct {
		Content struct {
			Parts []partPayload `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

type startVideoRequest struct {
	Instances []struct {
		Prompt string `json:"prompt"`
	} `json:"instances"`
}

type videoSample struct {
	Video struct {
		URI string `json:"uri"`
	} `json:"video"`
}

type operationResponse struct {
	Name     string `json:"name"`
	Done     bool   `json:"done"`
	Response struct {
		GenerateVideoResponse struct {
			GeneratedSamples []videoSample `json:"generatedSamples"`
		} `json:"generateVideoResponse"`
		GeneratedVideos []videoSample `json:"generatedVideos"`
	} `json:"response"`
}

// OperationStatus is the state of a long-running video operation.
type OperationStatus struct {
	Done         bool
	VideoDataURL string // data URL, populated once Done
}

// --- Public API ---

// GenerateImage runs single-shot image generation and returns the result as
// a base64 data URL.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (string, error) {
	settings, err := c.settings()
	if err != nil {
		return "", err
	}
	url := fmt.Sprintf("%s/models/%s:generateContent", settings.BaseURL, settings.ImageModel)
	payload := generateContentRequest{
		Contents: []contentPayload{{Role: "user", Parts: []partPayload{{Text: prompt}}}},
	}

	var resp generateContentResponse
	if err := c.postJSON(ctx, url, settings.APIKey, payload, DefaultTimeout, &resp); err != nil {
		return "", err
	}
	inline := extractInline(&resp)
	if inline == nil {
		return "", errors.New("no image in provider response")
	}
	return dataURL(normalizeImageMIME(inline.mime()), inline.Data), nil
}

// EditImage runs image-to-image editing on a single source image, given as a
// data URL or raw base64, and returns the result as a base64 data URL.
func (c *Client) EditImage(ctx context.Context, prompt, source string) (string, error) {
	settings, err := c.settings()
	if err != nil {
		return "", err
	}
	url := fmt.Sprintf("%s/models/%s:generateContent", settings.BaseURL, settings.ImageModel)
	payload := generateContentRequest{
		Contents: []contentPayload{{
			Role: "user",
			Parts: []partPayload{
				{Text: prompt},
				{InlineData: &inlinePayload{
					MIMEType: dataURLMIME(source),
					Data:     stripDataURLPrefix(source),
				}},
			},
		}},
	}

	var resp generateContentResponse
	if err := c.postJSON(ctx, url, settings.APIKey, payload, DefaultTimeout, &resp); err != nil {
		return "", err
	}
	inline := extractInline(&resp)
	if inline == nil {
		return "", errors.New("no image in provider response")
	}
	return dataURL(normalizeImageMIME(inline.mime()), inline.Data), nil
}

// StartVideo kicks off long-running video generation and returns the
// operation name to poll.
func (c *Client) StartVideo(ctx context.Context, prompt string) (string, error) {
	settings, err := c.settings()
	if err != nil {
		return "", err
	}
	url := fmt.Sprintf("%s/models/%s:predictLongRunning", settings.BaseURL, settings.VideoModel)
	payload := startVideoRequest{Instances: []struct {
		Prompt string `json:"prompt"`
	}{{Prompt: prompt}}}

	var resp operationResponse
	if err := c.postJSON(ctx, url, settings.APIKey, payload, DefaultTimeout, &resp); err != nil {
		return "", err
	}
	if resp.Name == "" {
		return "", errors.New("no operation name in provider response")
	}
	return resp.Name, nil
}

// PollOperation looks up a video operation by name (usually "operations/...")
// or absolute URL. When the operation is done, the resulting video bytes are
// downloaded and returned as a data URL.
func (c *Client) PollOperation(ctx context.Context, op string) (*OperationStatus, error) {
	settings, err := c.settings()
	if err != nil {
		return nil, err
	}
	opURL := op
	if !isAbsoluteURL(op) {
		opURL = settings.BaseURL + "/" + strings.TrimPrefix(op, "/")
	}

	var resp operationResponse
	if err := c.getJSON(ctx, opURL, settings.APIKey, DefaultTimeout, &resp); err != nil {
		return nil, err
	}
	if !resp.Done {
		return &OperationStatus{Done: false}, nil
	}

	uri := resultVideoURI(&resp)
	if uri == "" {
		return nil, ErrNoVideo
	}
	data, mime, err := c.download(ctx, uri, settings.APIKey)
	if err != nil {
		return nil, fmt.Errorf("video download: %w", err)
	}
	return &OperationStatus{
		Done:         true,
		VideoDataURL: dataURL(normalizeVideoMIME(mime), base64.StdEncoding.EncodeToString(data)),
	}, nil
}

// FetchImageAsDataURL downloads a remote image (bounded by FetchTimeout) and
// converts it to a base64 data URL.
func (c *Client) FetchImageAsDataURL(ctx context.Context, imageURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", describeNetErr(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &ProviderError{StatusCode: resp.StatusCode, Body: readShort(resp.Body)}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return dataURL(normalizeImageMIME(resp.Header.Get("Content-Type")), base64.StdEncoding.EncodeToString(data)), nil
}

// --- Internals ---

func (c *Client) settings() (*config.MediaProvider, error) {
	settings, err := c.cfg.MediaProvider()
	if err != nil {
		return nil, fmt.Errorf("read media provider config: %w", err)
	}
	if settings.APIKey == "" {
		return nil, ErrNotConfigured
	}
	return settings, nil
}

func (c *Client) postJSON(ctx context.Context, url, apiKey string, payload interface{}, timeout time.Duration, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(apiKeyHeader, apiKey)
	return c.doJSON(req, out)
}

func (c *Client) getJSON(ctx context.Context, url, apiKey string, timeout time.Duration, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set(apiKeyHeader, apiKey)
	return c.doJSON(req, out)
}

func (c *Client) doJSON(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return describeNetErr(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &ProviderError{StatusCode: resp.StatusCode, Body: truncate(string(raw), 2048)}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode provider response: %w", err)
	}
	return nil
}

// download fetches result bytes. Signed URLs may reject the extra credential
// header with 401/403, in which case one keyless attempt is made.
func (c *Client) download(ctx context.Context, uri, apiKey string) ([]byte, string, error) {
	fetch := func(withKey bool) (*http.Response, error) {
		ctx, cancel := context.WithTimeout(ctx, DownloadTimeout)
		defer cancel()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
		if err != nil {
			return nil, err
		}
		if withKey {
			req.Header.Set(apiKeyHeader, apiKey)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, describeNetErr(err)
		}
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, err
		}
		resp.Body = io.NopCloser(bytes.NewReader(data))
		return resp, nil
	}

	resp, err := fetch(true)
	if err != nil {
		return nil, "", err
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		c.logger.Debug("Download rejected with credential header, retrying without",
			zap.Int("status", resp.StatusCode))
		resp, err = fetch(false)
		if err != nil {
			return nil, "", err
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", &ProviderError{StatusCode: resp.StatusCode, Body: readShort(resp.Body)}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func extractInline(resp *generateContentResponse) *inlinePayload {
	for _, candidate := range resp.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.InlineData != nil && part.InlineData.Data != "" {
				return part.InlineData
			}
			if part.InlineDataCamel != nil && part.InlineDataCamel.Data != "" {
				return part.InlineDataCamel
			}
		}
	}
	return nil
}

func resultVideoURI(resp *operationResponse) string {
	if samples := resp.Response.GenerateVideoResponse.GeneratedSamples; len(samples) > 0 {
		return samples[0].Video.URI
	}
	if videos := resp.Response.GeneratedVideos; len(videos) > 0 {
		return videos[0].Video.URI
	}
	return ""
}

// --- Small helpers ---

var dataURLRe = regexp.MustCompile(`(?i)^data:(image/[a-z0-9+.-]+);base64,`)

func dataURL(mime, b64 string) string {
	return fmt.Sprintf("data:%s;base64,%s", mime, b64)
}

// dataURLMIME extracts the MIME type from a data URL, defaulting to PNG.
func dataURLMIME(source string) string {
	if m := dataURLRe.FindStringSubmatch(source); m != nil {
		return strings.ToLower(m[1])
	}
	return "image/png"
}

func stripDataURLPrefix(source string) string {
	return dataURLRe.ReplaceAllString(source, "")
}

func normalizeImageMIME(mime string) string {
	t := strings.ToLower(strings.TrimSpace(mime))
	switch {
	case strings.HasPrefix(t, "image/"):
		return t
	case strings.Contains(t, "jpeg"), strings.Contains(t, "jpg"):
		return "image/jpeg"
	default:
		return "image/png"
	}
}

func normalizeVideoMIME(mime string) string {
	t := strings.ToLower(strings.TrimSpace(mime))
	switch {
	case strings.HasPrefix(t, "video/"):
		return t
	case strings.Contains(t, "webm"):
		return "video/webm"
	default:
		return "video/mp4"
	}
}

func isAbsoluteURL(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// describeNetErr turns timeouts into a readable failure reason.
func describeNetErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("media provider call timed out: %w", err)
	}
	return fmt.Errorf("media provider unreachable: %w", err)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func readShort(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, 2048))
	return string(data)
}
