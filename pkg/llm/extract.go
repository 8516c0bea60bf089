package llm

import (
	"encoding/json"
	"strings"
)

// ExtractJSON pulls a JSON object out of raw model output. Providers wrap
// JSON in markdown fences or surrounding prose often enough that four
// strategies are tried in order: the raw text as-is, a ```json fence, a
// bare ``` fence, and finally a brace-balanced scan for an embedded object.
// Returns nil when none of them yields a valid object; callers treat nil
// as a parse failure, never a crash.
func ExtractJSON(raw string) map[string]any {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	if m := tryUnmarshal(raw); m != nil {
		return m
	}
	if body := insideFence(raw, "```json"); body != "" {
		if m := tryUnmarshal(body); m != nil {
			return m
		}
	}
	if body := insideFence(raw, "```"); body != "" {
		if m := tryUnmarshal(body); m != nil {
			return m
		}
	}
	return scanBalanced(raw)
}

func tryUnmarshal(s string) map[string]any {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil
	}
	return m
}

// insideFence returns the content between an opening fence marker and the
// next closing ```, or "" if the text is not fenced that way.
func insideFence(s, marker string) string {
	start := strings.Index(s, marker)
	if start < 0 {
		return ""
	}
	body := s[start+len(marker):]
	end := strings.Index(body, "```")
	if end < 0 {
		return strings.TrimSpace(body)
	}
	return strings.TrimSpace(body[:end])
}

// scanBalanced walks the text looking for a top-level {...} span with
// balanced braces, honoring JSON string and escape state so braces inside
// strings don't count. Each candidate span is unmarshal-checked.
func scanBalanced(s string) map[string]any {
	for start := 0; start < len(s); start++ {
		if s[start] != '{' {
			continue
		}
		depth := 0
		inString := false
		escaped := false
		for i := start; i < len(s); i++ {
			c := s[i]
			if escaped {
				escaped = false
				continue
			}
			switch c {
			case '\\':
				if inString {
					escaped = true
				}
			case '"':
				inString = !inString
			case '{':
				if !inString {
					depth++
				}
			case '}':
				if !inString {
					depth--
					if depth == 0 {
						if m := tryUnmarshal(s[start : i+1]); m != nil {
							return m
						}
						i = len(s)
					}
				}
			}
		}
	}
	return nil
}

// LooksTruncated reports whether raw output appears cut off mid-JSON:
// it doesn't close its last object, or stops right after a comma or colon.
// Used to decide whether a parse failure deserves a content-level retry.
func LooksTruncated(raw string) bool {
	t := strings.TrimSpace(raw)
	t = strings.TrimSuffix(t, "```")
	t = strings.TrimSpace(t)
	if t == "" {
		return false
	}
	if strings.HasSuffix(t, ",") || strings.HasSuffix(t, ":") {
		return true
	}
	return !strings.HasSuffix(t, "}")
}
