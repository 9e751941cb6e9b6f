// Package rewrite reassembles the orchestrator's buffered reply after the
// directive pipeline has run: the directive JSON is scrubbed from the text
// field and the resolved media attachment is added exactly once. Anything
// that cannot be parsed degrades to byte-for-byte passthrough.
package rewrite

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/ppsai/chatgate/directive"
	"github.com/ppsai/chatgate/mediaprovider"
	"go.uber.org/zap"
)

// Text-bearing fields probed in order; the first match is rewritten in place.
var textFields = []string{"content", "output", "text"}

const defaultTextField = "content"

// Resolver executes a directive against the media provider.
type Resolver interface {
	Resolve(ctx context.Context, d *directive.Directive) (*mediaprovider.Attachment, error)
}

// Rewriter rewrites buffered reply bodies.
type Rewriter struct {
	resolver Resolver
	logger   *zap.Logger
}

func New(resolver Resolver, logger *zap.Logger) *Rewriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rewriter{resolver: resolver, logger: logger.Named("rewrite")}
}

// Rewrite processes a buffered reply body according to its declared content
// type. JSON envelopes (single object, or array whose first element is an
// object) have their text field rewritten; everything else is treated as
// opaque text. On any parse failure the original body is returned unchanged.
func (rw *Rewriter) Rewrite(ctx context.Context, rawBody, contentType string) string {
	if strings.Contains(strings.ToLower(contentType), "application/json") {
		return rw.rewriteJSON(ctx, rawBody)
	}
	return rw.rewriteText(ctx, rawBody)
}

func (rw *Rewriter) rewriteJSON(ctx context.Context, rawBody string) string {
	var root interface{}
	if err := json.Unmarshal([]byte(rawBody), &root); err != nil {
		rw.logger.Debug("Reply body is not valid JSON, passing through", zap.Error(err))
		return rawBody
	}

	switch v := root.(type) {
	case map[string]interface{}:
		rw.rewriteObject(ctx, v)
	case []interface{}:
		// Only the first element is inspected; the rest pass through as-is.
		if len(v) == 0 {
			v = append(v, map[string]interface{}{})
			root = v
		}
		obj, ok := v[0].(map[string]interface{})
		if !ok {
			return rawBody
		}
		rw.rewriteObject(ctx, obj)
	default:
		return rawBody
	}

	out, err := json.Marshal(root)
	if err != nil {
		rw.logger.Warn("Failed to re-serialize rewritten reply, passing through", zap.Error(err))
		return rawBody
	}
	return string(out)
}

func (rw *Rewriter) rewriteObject(ctx context.Context, obj map[string]interface{}) {
	field := defaultTextField
	text := ""
	for _, name := range textFields {
		if s, ok := obj[name].(string); ok {
			field = name
			text = s
			break
		}
	}

	cleaned, attachment := rw.process(ctx, text)
	obj[field] = cleaned
	if attachment == nil {
		return
	}
	if attachment.Pending {
		obj["video_pending"] = true
		obj["op_name"] = attachment.OpName
		obj["poll_after_ms"] = attachment.PollAfterMS
		return
	}
	obj["image_url"] = nullableString(attachment.ImageURL)
	obj["video_url"] = nullableString(attachment.VideoURL)
	obj["url"] = nullableString(firstNonEmpty(attachment.ImageURL, attachment.VideoURL))
}

// rewriteText handles bodies that are not declared JSON (plain text, NDJSON).
// Replies without a directive pass through untouched; with a directive, the
// scrubbed text is emitted and any attachment is appended as one trailing
// single-line JSON record, which NDJSON consumers can treat as one more row.
func (rw *Rewriter) rewriteText(ctx context.Context, rawBody string) string {
	if directive.Extract(rawBody) == nil {
		return rawBody
	}

	cleaned, attachment := rw.process(ctx, rawBody)
	if attachment == nil {
		return cleaned
	}

	var line []byte
	var err error
	if attachment.Pending {
		line, err = json.Marshal(struct {
			VideoPending bool   `json:"video_pending"`
			OpName       string `json:"op_name"`
			PollAfterMS  int    `json:"poll_after_ms"`
		}{true, attachment.OpName, attachment.PollAfterMS})
	} else {
		line, err = json.Marshal(struct {
			ImageURL interface{} `json:"image_url"`
			VideoURL interface{} `json:"video_url"`
			URL      interface{} `json:"url"`
		}{
			nullableString(attachment.ImageURL),
			nullableString(attachment.VideoURL),
			nullableString(firstNonEmpty(attachment.ImageURL, attachment.VideoURL)),
		})
	}
	if err != nil {
		return cleaned
	}
	return cleaned + "\n\n" + string(line)
}

// process runs Extract -> Resolve -> Scrub on one piece of text. Scrub runs
// unconditionally so no directive fragment, even a malformed one, survives.
func (rw *Rewriter) process(ctx context.Context, text string) (string, *mediaprovider.Attachment) {
	var attachment *mediaprovider.Attachment
	if d := directive.Extract(text); d != nil {
		resolved, err := rw.resolver.Resolve(ctx, d)
		if err != nil {
			rw.logger.Warn("Directive resolution failed, returning scrubbed reply without attachment",
				zap.String("kind", d.Kind.String()), zap.Error(err))
		} else {
			attachment = resolved
		}
	}
	return directive.Scrub(text), attachment
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
