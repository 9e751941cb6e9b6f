package rewrite_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ppsai/chatgate/directive"
	"github.com/ppsai/chatgate/mediaprovider"
	"github.com/ppsai/chatgate/rewrite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeResolver struct {
	attachment *mediaprovider.Attachment
	err        error
	lastKind   directive.Kind
	calls      int
}

func (f *fakeResolver) Resolve(_ context.Context, d *directive.Directive) (*mediaprovider.Attachment, error) {
	f.calls++
	f.lastKind = d.Kind
	return f.attachment, f.err
}

const directiveJSON = `{"_media": {"prompt": "a cat", "type": "image"}}`

func TestRewrite_JSONObjectWithImage(t *testing.T) {
	resolver := &fakeResolver{attachment: &mediaprovider.Attachment{ImageURL: "data:image/png;base64,AAAA"}}
	rw := rewrite.New(resolver, zap.NewNop())

	body := `{"content": "Here you go!\n` + `{\"_media\": {\"prompt\": \"a cat\", \"type\": \"image\"}}` + `"}`
	out := rw.Rewrite(context.Background(), body, "application/json")

	var obj map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &obj))
	assert.Equal(t, "Here you go!", obj["content"])
	assert.Equal(t, "data:image/png;base64,AAAA", obj["image_url"])
	assert.Equal(t, "data:image/png;base64,AAAA", obj["url"])
	assert.Nil(t, obj["video_url"])
	assert.Equal(t, 1, resolver.calls)
	assert.Equal(t, directive.KindImage, resolver.lastKind)
}

func TestRewrite_JSONObjectBareMediaKey(t *testing.T) {
	resolver := &fakeResolver{attachment: &mediaprovider.Attachment{ImageURL: "data:image/png;base64,DDDD"}}
	rw := rewrite.New(resolver, zap.NewNop())

	body := `{"content": "Sure! ` + `{\"media\": {\"type\": \"image\", \"prompt\": \"a red fox\"}}` + `"}`
	out := rw.Rewrite(context.Background(), body, "application/json")

	var obj map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &obj))
	// The resolved directive must not stay visible in the reply text.
	assert.Equal(t, "Sure!", obj["content"])
	assert.Equal(t, "data:image/png;base64,DDDD", obj["image_url"])
	assert.Equal(t, 1, resolver.calls)
	assert.Equal(t, directive.KindImage, resolver.lastKind)
}

func TestRewrite_JSONObjectPendingVideo(t *testing.T) {
	resolver := &fakeResolver{attachment: &mediaprovider.Attachment{
		Pending:     true,
		OpName:      "operations/abc123",
		PollAfterMS: 5000,
	}}
	rw := rewrite.New(resolver, zap.NewNop())

	body := `{"output": "Rendering...\n` + `{\"_media\": {\"prompt\": \"waves\", \"type\": \"video\"}}` + `"}`
	out := rw.Rewrite(context.Background(), body, "application/json; charset=utf-8")

	var obj map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &obj))
	assert.Equal(t, "Rendering...", obj["output"])
	assert.Equal(t, true, obj["video_pending"])
	assert.Equal(t, "operations/abc123", obj["op_name"])
	assert.Equal(t, float64(5000), obj["poll_after_ms"])
	assert.NotContains(t, obj, "image_url")
}

func TestRewrite_JSONArrayFirstElementOnly(t *testing.T) {
	resolver := &fakeResolver{attachment: &mediaprovider.Attachment{ImageURL: "data:image/png;base64,BBBB"}}
	rw := rewrite.New(resolver, zap.NewNop())

	body := `[{"text": "done ` + `{\"_media\": {\"prompt\": \"x\", \"type\": \"image\"}}` + `"}, {"text": "untouched  {raw}"}]`
	out := rw.Rewrite(context.Background(), body, "application/json")

	var arr []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &arr))
	require.Len(t, arr, 2)
	assert.Equal(t, "done", arr[0]["text"])
	assert.Equal(t, "data:image/png;base64,BBBB", arr[0]["image_url"])
	// Second element keeps its original text, whitespace included.
	assert.Equal(t, "untouched  {raw}", arr[1]["text"])
	assert.NotContains(t, arr[1], "image_url")
}

func TestRewrite_JSONNoDirectiveStillScrubsWhitespace(t *testing.T) {
	resolver := &fakeResolver{}
	rw := rewrite.New(resolver, zap.NewNop())

	out := rw.Rewrite(context.Background(), `{"content": "hello   there"}`, "application/json")

	var obj map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &obj))
	assert.Equal(t, "hello there", obj["content"])
	assert.Equal(t, 0, resolver.calls)
}

func TestRewrite_MalformedJSONPassesThrough(t *testing.T) {
	rw := rewrite.New(&fakeResolver{}, zap.NewNop())
	body := `{"content": "broken`
	assert.Equal(t, body, rw.Rewrite(context.Background(), body, "application/json"))
}

func TestRewrite_JSONScalarRootPassesThrough(t *testing.T) {
	rw := rewrite.New(&fakeResolver{}, zap.NewNop())
	assert.Equal(t, `"just a string"`, rw.Rewrite(context.Background(), `"just a string"`, "application/json"))
	assert.Equal(t, `[1, 2, 3]`, rw.Rewrite(context.Background(), `[1, 2, 3]`, "application/json"))
}

func TestRewrite_ResolveErrorDropsAttachment(t *testing.T) {
	resolver := &fakeResolver{err: errors.New("provider down")}
	rw := rewrite.New(resolver, zap.NewNop())

	body := `{"content": "ok ` + `{\"_media\": {\"prompt\": \"x\", \"type\": \"image\"}}` + `"}`
	out := rw.Rewrite(context.Background(), body, "application/json")

	var obj map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &obj))
	assert.Equal(t, "ok", obj["content"])
	assert.NotContains(t, obj, "image_url")
	assert.NotContains(t, obj, "url")
}

func TestRewrite_TextWithoutDirectivePassesThroughVerbatim(t *testing.T) {
	rw := rewrite.New(&fakeResolver{}, zap.NewNop())
	body := "line one\nline two\n\nline three  with spaces"
	assert.Equal(t, body, rw.Rewrite(context.Background(), body, "text/plain"))
}

func TestRewrite_TextWithDirectiveAppendsAttachmentLine(t *testing.T) {
	resolver := &fakeResolver{attachment: &mediaprovider.Attachment{VideoURL: "data:video/mp4;base64,CCCC"}}
	rw := rewrite.New(resolver, zap.NewNop())

	body := "All set!\n" + directiveJSON
	out := rw.Rewrite(context.Background(), body, "text/plain; charset=utf-8")

	parts := []byte(out)
	require.Contains(t, out, "All set!")
	idx := len("All set!") + 2
	require.Greater(t, len(parts), idx)

	var tail struct {
		ImageURL *string `json:"image_url"`
		VideoURL *string `json:"video_url"`
		URL      *string `json:"url"`
	}
	require.NoError(t, json.Unmarshal([]byte(out[idx:]), &tail))
	assert.Nil(t, tail.ImageURL)
	require.NotNil(t, tail.VideoURL)
	assert.Equal(t, "data:video/mp4;base64,CCCC", *tail.VideoURL)
	require.NotNil(t, tail.URL)
	assert.Equal(t, "data:video/mp4;base64,CCCC", *tail.URL)
}

func TestRewrite_EmptyObjectGetsDefaultField(t *testing.T) {
	rw := rewrite.New(&fakeResolver{}, zap.NewNop())
	out := rw.Rewrite(context.Background(), `{}`, "application/json")

	var obj map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &obj))
	assert.Equal(t, "", obj["content"])
}
