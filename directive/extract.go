package directive

import (
	"encoding/json"
	"regexp"
	"strings"
)

// maxCandidateLen bounds the size of brace-delimited substrings considered
// during free-text scanning, so pathological inputs stay cheap.
const maxCandidateLen = 5000

var (
	fenceRe = regexp.MustCompile("(?s)```[a-zA-Z]*[ \t]*\r?\n?(.*?)```")

	// Greedy span from the first brace to the last one.
	braceGreedyRe = regexp.MustCompile(`(?s)\{.*\}`)

	// Brace blocks with at most one nesting level, enough for a directive
	// object embedded in prose.
	braceNestedRe = regexp.MustCompile(`\{[^{}]*(?:\{[^{}]*\}[^{}]*)*\}`)
)

// Extract scans reply text for an embedded media directive. Strategies are
// tried in strict precedence order, each one only when the previous found
// nothing:
//
//  1. parse the whole text (fences stripped) as JSON, unwrapping one level of
//     double encoding;
//  2. parse each fenced code block independently;
//  3. parse each brace-delimited substring found by regex scanning;
//  4. anchor on the first quoted directive key and slice out its enclosing
//     balanced-brace object.
//
// Malformed JSON never produces an error, only "no directive". The result is
// deterministic and Extract performs no I/O.
func Extract(text string) *Directive {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	if d := extractWhole(text); d != nil {
		return d
	}
	if d := extractFencedBlocks(text); d != nil {
		return d
	}
	if d := extractBraceCandidates(text); d != nil {
		return d
	}
	return extractKeyAnchored(text)
}

// stripFences unwraps fenced code blocks, leaving their inner text in place.
func stripFences(text string) string {
	return fenceRe.ReplaceAllString(text, "$1")
}

func parseJSONValue(raw string) (map[string]interface{}, bool) {
	var v interface{}
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &v); err != nil {
		return nil, false
	}
	// Double-encoded payload: a JSON string whose content is JSON again.
	if s, ok := v.(string); ok {
		if err := json.Unmarshal([]byte(s), &v); err != nil {
			return nil, false
		}
	}
	obj, ok := v.(map[string]interface{})
	return obj, ok
}

func extractWhole(text string) *Directive {
	obj, ok := parseJSONValue(stripFences(text))
	if !ok {
		return nil
	}
	return fromObjects([]map[string]interface{}{obj})
}

func extractFencedBlocks(text string) *Directive {
	var objs []map[string]interface{}
	for _, m := range fenceRe.FindAllStringSubmatch(text, -1) {
		if obj, ok := parseJSONValue(m[1]); ok {
			objs = append(objs, obj)
		}
	}
	return fromObjects(objs)
}

func extractBraceCandidates(text string) *Directive {
	var objs []map[string]interface{}
	candidates := braceNestedRe.FindAllString(text, -1)
	if span := braceGreedyRe.FindString(text); span != "" {
		candidates = append(candidates, span)
	}
	for _, candidate := range candidates {
		if len(candidate) > maxCandidateLen {
			continue
		}
		if obj, ok := parseJSONValue(candidate); ok {
			objs = append(objs, obj)
		}
	}
	return fromObjects(objs)
}

// extractKeyAnchored finds the first literal quoted directive key, walks back
// to the enclosing '{' and forward with balanced-brace counting to slice out
// the object around it.
func extractKeyAnchored(text string) *Directive {
	var objs []map[string]interface{}
	for _, key := range append(append([]string{}, editKeys...), generateKeys...) {
		idx := strings.Index(text, `"`+key+`"`)
		if idx < 0 {
			continue
		}
		open := strings.LastIndex(text[:idx], "{")
		if open < 0 {
			continue
		}
		depth := 0
		for i := open; i < len(text); i++ {
			switch text[i] {
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					if obj, ok := parseJSONValue(text[open : i+1]); ok {
						objs = append(objs, obj)
					}
					i = len(text)
				}
			}
		}
	}
	return fromObjects(objs)
}

// fromObjects applies the key check to parsed candidates. Edit directives are
// honored before generate directives regardless of candidate order.
func fromObjects(objs []map[string]interface{}) *Directive {
	for _, obj := range objs {
		for _, key := range editKeys {
			if d := editFromPayload(obj[key]); d != nil {
				return d
			}
		}
	}
	for _, obj := range objs {
		for _, key := range generateKeys {
			if d := generateFromPayload(obj[key]); d != nil {
				return d
			}
		}
	}
	return nil
}

func editFromPayload(v interface{}) *Directive {
	payload, ok := v.(map[string]interface{})
	if !ok {
		return nil
	}
	prompt := firstString(payload, "prompt", "instructions")
	if strings.TrimSpace(prompt) == "" {
		return nil
	}
	return &Directive{
		Kind:         KindEdit,
		Prompt:       strings.TrimSpace(prompt),
		SourceBase64: firstString(payload, "base64"),
		SourceURL:    firstString(payload, "image_url"),
	}
}

func generateFromPayload(v interface{}) *Directive {
	payload, ok := v.(map[string]interface{})
	if !ok {
		return nil
	}
	prompt := firstString(payload, "prompt")
	mediaType := firstString(payload, "type")
	if strings.TrimSpace(prompt) == "" || strings.TrimSpace(mediaType) == "" {
		return nil
	}
	kind := KindImage
	if strings.Contains(strings.ToLower(mediaType), "video") {
		kind = KindVideo
	}
	return &Directive{Kind: kind, Prompt: strings.TrimSpace(prompt)}
}

func firstString(payload map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if s, ok := payload[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
