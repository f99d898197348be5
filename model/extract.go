package model

import (
	"encoding/json"
	"regexp"
	"strings"

	"mindvault/types"
)

// ExtractObject recovers a JSON object from generation output that was
// asked for pure JSON but may arrive wrapped in prose or Markdown
// fences, with trailing commas or single-quoted strings. Recovery is
// layered and stops at the first parse that succeeds:
//
//  1. parse the raw text directly
//  2. strip Markdown code fences, parse
//  3. sanitize (trailing commas, single quotes), parse
//  4. slice from the first '{' to the last '}', parse
//
// If every layer fails the caller gets a *types.ParseError, never a
// guessed object. Schema validation is the caller's job: success only
// means "syntactically valid JSON object".
func ExtractObject(raw string) (map[string]any, error) {
	candidates := []string{raw}

	stripped := stripCodeFences(raw)
	candidates = append(candidates, stripped)

	sanitized := sanitizeJSON(stripped)
	candidates = append(candidates, sanitized)

	if sliced, ok := sliceObject(sanitized); ok {
		candidates = append(candidates, sliced)
	}

	for _, candidate := range candidates {
		var obj map[string]any
		if err := json.Unmarshal([]byte(candidate), &obj); err == nil {
			return obj, nil
		}
	}
	return nil, types.NewParseError(raw)
}

var fenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// stripCodeFences returns the content of the first triple-backtick
// block, optionally tagged `json`. Text without fences passes through.
func stripCodeFences(s string) string {
	if m := fenceRe.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return s
}

var (
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
	singleQuoteRe   = regexp.MustCompile(`([:,{\[]\s*)'((?:[^'\\]|\\.)*)'`)
)

// sanitizeJSON applies a deliberately small set of textual fixes:
// trailing commas before a closing brace or bracket, and single-quoted
// strings in value or key position. It is not a JSON5 parser and must
// not grow into one.
func sanitizeJSON(s string) string {
	s = trailingCommaRe.ReplaceAllString(s, "$1")
	s = singleQuoteRe.ReplaceAllString(s, `$1"$2"`)
	return s
}

// sliceObject cuts from the first '{' to the last '}', tolerating
// surrounding prose.
func sliceObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// PickList resolves the duck-typed shapes models emit for list
// payloads: the first key in the priority list holding an array of
// objects wins.
func PickList(obj map[string]any, keys ...string) []map[string]any {
	for _, key := range keys {
		arr, ok := obj[key].([]any)
		if !ok {
			continue
		}
		items := make([]map[string]any, 0, len(arr))
		for _, el := range arr {
			if item, ok := el.(map[string]any); ok {
				items = append(items, item)
			}
		}
		return items
	}
	return nil
}
