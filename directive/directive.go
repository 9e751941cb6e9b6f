// Package directive implements the media-directive micro-format embedded in
// orchestrator reply text: locating a machine-readable generation or edit
// request inside free-form model output, and scrubbing its JSON from the text
// shown to the end user. Everything here is pure string work; no I/O.
package directive

import "strings"

// Kind identifies what a directive asks for.
type Kind int

const (
	KindImage Kind = iota
	KindVideo
	KindEdit
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	case KindEdit:
		return "edit"
	}
	return "unknown"
}

// Directive is a single media instruction extracted from reply text.
// A nil *Directive means none was found.
type Directive struct {
	Kind   Kind
	Prompt string

	// Edit source, at most one populated. SourceBase64 holds a data URL or
	// raw base64 payload; SourceURL a remote image reference.
	SourceBase64 string
	SourceURL    string
}

// Actionable reports whether the directive carries everything needed to
// execute it. An edit without any image source is extractable (so it still
// gets scrubbed) but cannot be resolved.
func (d *Directive) Actionable() bool {
	if d == nil || strings.TrimSpace(d.Prompt) == "" {
		return false
	}
	if d.Kind == KindEdit {
		return strings.TrimSpace(d.SourceBase64) != "" || strings.TrimSpace(d.SourceURL) != ""
	}
	return true
}

// Key spellings recognized in reply text. Edit keys are checked before
// generate keys; an edit directive wins when both appear.
var (
	editKeys     = []string{"_media_edit", "media_edit"}
	generateKeys = []string{"_media", "__media__", "media"}
)
