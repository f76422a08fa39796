package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// cleanJSONString removes markdown code blocks if present (e.g. ```json ... ```)
func cleanJSONString(input string) string {
	input = strings.TrimSpace(input)
	input = strings.TrimPrefix(input, "```json")
	input = strings.TrimPrefix(input, "```")
	input = strings.TrimSuffix(input, "```")
	return strings.TrimSpace(input)
}

// DecodeFinal parses the complete model output into v. Text around the first
// JSON value is ignored.
func DecodeFinal(text string, v any) error {
	clean := cleanJSONString(text)
	if start := strings.IndexAny(clean, "{["); start > 0 {
		clean = clean[start:]
	}
	if err := json.NewDecoder(strings.NewReader(clean)).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	return nil
}

// DecodePartial repairs a streamed prefix of a JSON document and decodes it into v.
// It reports false when the prefix does not yet hold any decodable value.
func DecodePartial(text string, v any) bool {
	repaired, ok := RepairJSON(text)
	if !ok {
		return false
	}
	return json.Unmarshal([]byte(repaired), v) == nil
}

// RepairJSON turns a truncated JSON document into the longest valid document
// that only contains values the prefix fully determines. An unterminated
// string value is kept and closed; unterminated keys, numbers and literals are
// dropped. A complete document is returned as-is (without trailing text).
func RepairJSON(text string) (string, bool) {
	s := cleanJSONString(text)
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return "", false
	}
	s = s[start:]

	var (
		stack     []byte // '{' or '['
		keyNext   []bool // per frame: next string in an object is a key
		inString  bool
		isKey     bool
		escaped   bool
		safeEnd   = -1
		safeClose string
	)

	closers := func() string {
		var b strings.Builder
		for i := len(stack) - 1; i >= 0; i-- {
			if stack[i] == '{' {
				b.WriteByte('}')
			} else {
				b.WriteByte(']')
			}
		}
		return b.String()
	}
	markSafe := func(end int) {
		safeEnd = end
		safeClose = closers()
	}

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
				if !isKey {
					markSafe(i + 1)
				}
			}
			continue
		}

		switch c {
		case ' ', '\t', '\n', '\r':
		case '{':
			stack = append(stack, '{')
			keyNext = append(keyNext, true)
			markSafe(i + 1)
		case '[':
			stack = append(stack, '[')
			keyNext = append(keyNext, false)
			markSafe(i + 1)
		case '}', ']':
			if len(stack) == 0 {
				return "", false
			}
			stack = stack[:len(stack)-1]
			keyNext = keyNext[:len(keyNext)-1]
			if len(stack) == 0 {
				return s[:i+1], true
			}
			markSafe(i + 1)
		case ',':
			if n := len(stack); n > 0 && stack[n-1] == '{' {
				keyNext[n-1] = true
			}
		case ':':
			if n := len(stack); n > 0 {
				keyNext[n-1] = false
			}
		case '"':
			inString = true
			n := len(stack)
			isKey = n > 0 && stack[n-1] == '{' && keyNext[n-1]
		default:
			// number or literal: only complete when a delimiter follows
			j := i
			for j < len(s) && !strings.ContainsRune(",}] \t\n\r", rune(s[j])) {
				j++
			}
			if j == len(s) {
				i = j
				continue
			}
			i = j - 1
			markSafe(j)
		}
	}

	if inString && !isKey {
		body := trimPartialEscape(s)
		return body + `"` + closers(), true
	}
	if safeEnd < 0 {
		return "", false
	}
	return s[:safeEnd] + safeClose, true
}

// trimPartialEscape drops a dangling backslash or an incomplete \uXXXX escape.
func trimPartialEscape(s string) string {
	if idx := strings.LastIndex(s, `\u`); idx >= 0 && len(s)-idx < 6 && !escapedBackslash(s, idx) {
		return s[:idx]
	}
	trailing := 0
	for i := len(s) - 1; i >= 0 && s[i] == '\\'; i-- {
		trailing++
	}
	if trailing%2 == 1 {
		return s[:len(s)-1]
	}
	return s
}

// escapedBackslash reports whether the backslash at idx is itself escaped.
func escapedBackslash(s string, idx int) bool {
	n := 0
	for i := idx - 1; i >= 0 && s[i] == '\\'; i-- {
		n++
	}
	return n%2 == 1
}
