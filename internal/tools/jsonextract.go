package tools

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// ExtractJSON finds and returns the first JSON object or array in s.
// Models that were asked for JSON still wrap it in prose or Markdown
// fences often enough that every tool response goes through here before
// unmarshalling.
func ExtractJSON(s string) (string, error) {
	s = trimBOM(strings.TrimSpace(s))

	if inner, ok := stripFirstCodeFence(s); ok {
		s = strings.TrimSpace(inner)
	}

	if len(s) > 0 && (s[0] == '{' || s[0] == '[') {
		if out, ok := extractBalancedJSONFrom(s, 0); ok {
			return out, nil
		}
	}

	for i := 0; i < len(s); i++ {
		if s[i] == '{' || s[i] == '[' {
			if out, ok := extractBalancedJSONFrom(s, i); ok {
				return out, nil
			}
		}
	}

	return "", errors.New("no balanced JSON object/array found")
}

// stripFirstCodeFence removes the first fenced code block if s starts with
// ``` or ~~~. It accepts an optional language tag (e.g., ```json).
func stripFirstCodeFence(s string) (inner string, ok bool) {
	trim := strings.TrimLeft(s, "\n\r\t ")
	if strings.HasPrefix(trim, "```") || strings.HasPrefix(trim, "~~~") {
		fence := "```"
		if strings.HasPrefix(trim, "~~~") {
			fence = "~~~"
		}
		rest := trim[len(fence):]
		if idx := strings.IndexByte(rest, '\n'); idx != -1 {
			rest = rest[idx+1:]
		} else {
			return "", false
		}
		if end := strings.Index(rest, fence); end != -1 {
			return rest[:end], true
		}
	}
	return "", false
}

// extractBalancedJSONFrom attempts to extract a balanced JSON value starting
// at startIdx, handling strings and escape sequences.
func extractBalancedJSONFrom(s string, startIdx int) (string, bool) {
	if startIdx < 0 || startIdx >= len(s) {
		return "", false
	}

	start := s[startIdx]
	if start != '{' && start != '[' {
		return "", false
	}

	var (
		stack    []byte
		inString bool
		escape   bool
	)

	push := func(b byte) { stack = append(stack, b) }
	popMatches := func(b byte) bool {
		if len(stack) == 0 {
			return false
		}
		top := stack[len(stack)-1]
		if (top == '{' && b == '}') || (top == '[' && b == ']') {
			stack = stack[:len(stack)-1]
			return true
		}
		return false
	}

	push(start)

	for i := startIdx + 1; i < len(s); i++ {
		c := s[i]

		if inString {
			if escape {
				escape = false
				continue
			}
			switch c {
			case '\\':
				escape = true
			case '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{', '[':
			push(c)
		case '}', ']':
			if !popMatches(c) {
				return "", false
			}
			if len(stack) == 0 {
				return s[startIdx : i+1], true
			}
		}
	}

	return "", false
}

func trimBOM(s string) string {
	if strings.HasPrefix(s, "\uFEFF") {
		return strings.TrimPrefix(s, "\uFEFF")
	}
	if len(s) >= 3 {
		b0, b1, b2 := s[0], s[1], s[2]
		if b0 == 0xEF && b1 == 0xBB && b2 == 0xBF && utf8.ValidString(s[3:]) {
			return s[3:]
		}
	}
	return s
}
