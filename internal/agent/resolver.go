package agent

import (
	"encoding/json"
	"strings"
)

// Result is an agent reply classified as either a JSON object or raw text.
type Result struct {
	Structured map[string]any
	Raw        string
}

// IsStructured reports whether the reply held a JSON object.
func (r Result) IsStructured() bool {
	return r.Structured != nil
}

// Or returns the structured object, or fallback(raw) for unstructured replies.
func (r Result) Or(fallback func(raw string) map[string]any) map[string]any {
	if r.IsStructured() {
		return r.Structured
	}
	return fallback(r.Raw)
}

// Resolve classifies a raw agent reply. The whole string is tried first;
// failing that, each brace-delimited object in the text is tried left to
// right and the first one that parses wins. Anything else is unstructured.
func Resolve(raw string) Result {
	if obj, ok := parseObject(strings.TrimSpace(raw)); ok {
		return Result{Structured: obj, Raw: raw}
	}
	for start := strings.IndexByte(raw, '{'); start >= 0; {
		if end, ok := matchBrace(raw, start); ok {
			if obj, ok := parseObject(raw[start : end+1]); ok {
				return Result{Structured: obj, Raw: raw}
			}
		}
		next := strings.IndexByte(raw[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return Result{Raw: raw}
}

func parseObject(s string) (map[string]any, bool) {
	if s == "" || s[0] != '{' {
		return nil, false
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// matchBrace returns the index of the '}' closing the '{' at start. Braces
// inside JSON strings are ignored.
func matchBrace(text string, start int) (int, bool) {
	depth := 0
	inString := false
	escape := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escape:
				escape = false
			case c == '\\':
				escape = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
