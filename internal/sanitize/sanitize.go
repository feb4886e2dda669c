// Package sanitize extracts a well-formed JSON object from decorated LLM
// output. Agent replies frequently arrive wrapped in markdown code fences or
// surrounded by prose; Extract recovers the JSON document when one exists and
// otherwise returns the input untouched for plain-text handling.
package sanitize

import (
	"encoding/json"
	"strings"
)

// strategy attempts one extraction technique. It returns the candidate JSON
// string and whether the technique applied.
type strategy func(s string) (string, bool)

// Ordered extraction strategies; the first one whose candidate parses wins.
var strategies = []strategy{
	verbatim,
	stripFence,
	braceSubstring,
}

// Extract returns the first substring of s that parses as JSON, trying the
// verbatim string, a fence-stripped variant, and the outermost brace-bounded
// substring in that order. When nothing parses it returns the trimmed input
// unchanged; callers must then treat the result as opaque text. Extract never
// fails.
func Extract(s string) string {
	trimmed := strings.TrimSpace(s)
	for _, st := range strategies {
		candidate, ok := st(trimmed)
		if !ok {
			continue
		}
		if json.Valid([]byte(candidate)) {
			return candidate
		}
	}
	return trimmed
}

func verbatim(s string) (string, bool) {
	return s, s != ""
}

// stripFence removes a leading markdown code fence (with optional language
// tag) and the trailing fence marker.
func stripFence(s string) (string, bool) {
	if !strings.HasPrefix(s, "```") {
		return "", false
	}
	candidate := s
	if idx := strings.IndexByte(candidate, '\n'); idx != -1 {
		candidate = candidate[idx+1:]
	} else {
		candidate = candidate[3:]
	}
	candidate = strings.TrimSpace(candidate)
	if strings.HasSuffix(candidate, "```") {
		candidate = strings.TrimSpace(candidate[:len(candidate)-3])
	}
	return candidate, candidate != ""
}

// braceSubstring takes the span from the first '{' to the last '}'.
func braceSubstring(s string) (string, bool) {
	first := strings.IndexByte(s, '{')
	last := strings.LastIndexByte(s, '}')
	if first == -1 || last <= first {
		return "", false
	}
	return s[first : last+1], true
}
