// Package extract pulls structured JSON out of raw capability text.
//
// Multimodal capabilities return prose, markdown code fences, or partial
// JSON around the payload we asked for. The helpers here locate the first
// top-level array- or object-shaped substring and return it for decoding,
// so callers never touch raw capability output directly. All failures are
// reported as "nothing found", never as panics.
package extract

import "strings"

// FirstArray returns the first top-level JSON array substring in text.
// Code fences are stripped before scanning. Returns "" and false if no
// balanced array is found.
func FirstArray(text string) (string, bool) {
	return firstBalanced(StripFences(text), '[', ']')
}

// FirstObject returns the first top-level JSON object substring in text.
// Code fences are stripped before scanning. Returns "" and false if no
// balanced object is found.
func FirstObject(text string) (string, bool) {
	return firstBalanced(StripFences(text), '{', '}')
}

// StripFences removes a surrounding markdown code fence, if present.
// Handles ```json, ``` and trailing fences; text without fences is
// returned trimmed but otherwise unchanged.
func StripFences(text string) string {
	s := strings.TrimSpace(text)
	if !strings.Contains(s, "```") {
		return s
	}
	// Cut everything before the first fence's content.
	if i := strings.Index(s, "```"); i >= 0 {
		s = s[i+3:]
		// Drop a language tag on the fence line.
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			first := strings.TrimSpace(s[:nl])
			if first == "json" || first == "" {
				s = s[nl+1:]
			}
		} else {
			s = strings.TrimPrefix(s, "json")
		}
	}
	if i := strings.Index(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// firstBalanced scans for the first balanced open..close run, tracking
// string literals and escapes so brackets inside strings don't count.
func firstBalanced(s string, open, close byte) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			if depth > 0 {
				inString = true
			}
		case open:
			if depth == 0 {
				start = i
			}
			depth++
		case close:
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
