package oracle

import "strings"

// CleanReply trims whitespace and strips a surrounding markdown code fence.
// Models often wrap answers in fences despite prompt instructions.
func CleanReply(reply string) string {
	reply = strings.TrimSpace(reply)
	if !strings.HasPrefix(reply, "```") {
		return reply
	}
	// Drop the opening fence line ("```json", "```").
	if idx := strings.Index(reply, "\n"); idx != -1 {
		reply = reply[idx+1:]
	} else {
		reply = strings.TrimPrefix(reply, "```")
	}
	reply = strings.TrimSuffix(strings.TrimSpace(reply), "```")
	return strings.TrimSpace(reply)
}

// ExtractJSON returns the first balanced JSON object or array found in reply, or ""
// when there is none. String literals are respected when matching brackets.
func ExtractJSON(reply string) string {
	reply = CleanReply(reply)
	start := strings.IndexAny(reply, "{[")
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(reply); i++ {
		c := reply[i]
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
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return reply[start : i+1]
			}
		}
	}
	return ""
}
