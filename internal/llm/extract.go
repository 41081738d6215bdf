package llm

import "strings"

// ExtractJSON attempts to find the first top-level JSON object in a model
// response, stripping markdown code fences first. Brace matching skips braces
// inside string literals. Best effort: when no balanced object exists the
// trimmed input is returned and the caller's json.Unmarshal reports the
// failure.
func ExtractJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.Trim(s, "`")
		s = strings.TrimSpace(s)
		// A fence language tag like "json" may remain on the first line.
		if i := strings.IndexByte(s, '\n'); i >= 0 && !strings.ContainsRune(s[:i], '{') {
			s = s[i+1:]
		}
	}

	start := strings.IndexByte(s, '{')
	if start < 0 {
		return s
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
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
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return s
}
