package claude

import (
	"encoding/json"
	"regexp"
	"strings"
)

// codeBlockRegex matches a fenced markdown block, with or without a language tag.
var codeBlockRegex = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*\\n?(.*?)\\n?\\s*```")

// extractJSONFromResponse returns the JSON value embedded in a Claude reply.
// Claude has no JSON response mode, so replies are often wrapped in a code
// fence or surrounded by prose. The first fenced block wins; otherwise the
// first balanced object or array that parses as JSON is returned. Text without
// a complete JSON value is returned trimmed but otherwise unchanged.
func extractJSONFromResponse(text string) string {
	text = strings.TrimSpace(text)

	if m := codeBlockRegex.FindStringSubmatch(text); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}

	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return text
	}

	end, ok := matchingClose(text, start)
	if !ok {
		return text
	}

	candidate := text[start : end+1]
	if !json.Valid([]byte(candidate)) {
		return text[start:]
	}
	return candidate
}

// matchingClose returns the index of the bracket closing text[start]. String
// literals and escapes are skipped. ok is false when the value is not closed.
func matchingClose(text string, start int) (int, bool) {
	var stack []byte
	inString := false

	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch c {
			case '\\':
				i++
			case '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return 0, false
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
