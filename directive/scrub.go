package directive

import (
	"regexp"
	"strings"
)

// Removal patterns are textual, not a JSON reparse: they must tolerate inputs
// that are not valid JSON at all. Non-greedy bodies can stop at an inner '}'
// of a nested object; the orphan cleanup below picks up the leftovers.
// Every key spelling extraction accepts must be removed here, bare forms
// included, or a resolved directive would stay visible in the reply text. The
// quoted literals keep lookalike keys such as "media_type" out of reach.
var scrubKeyRes = []*regexp.Regexp{
	regexp.MustCompile(`(?is),?\s*\{[^{}]*?"_media_edit".*?\}\s*,?`),
	regexp.MustCompile(`(?is),?\s*\{[^{}]*?"media_edit".*?\}\s*,?`),
	regexp.MustCompile(`(?is),?\s*\{[^{}]*?"__media__".*?\}\s*,?`),
	regexp.MustCompile(`(?is),?\s*\{[^{}]*?"_media".*?\}\s*,?`),
	regexp.MustCompile(`(?is),?\s*\{[^{}]*?"media".*?\}\s*,?`),
}

var (
	jsonFenceRe    = regexp.MustCompile("(?is)```json[ \t]*\r?\n?(.*?)```")
	orphanTailRe   = regexp.MustCompile(`(?m)[ \t]*[}\]]+[ \t]*$`)
	orphanHeadRe   = regexp.MustCompile(`(?m)^[ \t]*[}\]]+[ \t]*`)
	leadingCommaRe = regexp.MustCompile(`^\s*,`)
	whitespaceRe   = regexp.MustCompile(`\s+`)
)

// Scrub removes directive JSON from reply text so it never reaches the
// client, then normalizes whitespace. It is applied to every reply whether or
// not a directive was extracted, and is a no-op (beyond whitespace collapse)
// on text containing no directive key.
func Scrub(text string) string {
	cleaned := jsonFenceRe.ReplaceAllString(text, "$1")

	// Only cut into the text when a directive key is actually present;
	// innocent prose must survive untouched apart from whitespace collapse.
	if containsDirectiveKey(cleaned) {
		for _, re := range scrubKeyRes {
			cleaned = re.ReplaceAllString(cleaned, " ")
		}
		cleaned = orphanTailRe.ReplaceAllString(cleaned, "")
		cleaned = orphanHeadRe.ReplaceAllString(cleaned, "")
		cleaned = leadingCommaRe.ReplaceAllString(cleaned, "")
	}

	cleaned = whitespaceRe.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}

func containsDirectiveKey(text string) bool {
	// "_media" is a substring of every underscore spelling; the bare
	// spellings only count in quoted key form, so ordinary prose mentioning
	// media stays untouched.
	t := strings.ToLower(text)
	return strings.Contains(t, "_media") ||
		strings.Contains(t, `"media"`) ||
		strings.Contains(t, `"media_edit"`)
}
