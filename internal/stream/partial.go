package stream

import (
	"encoding/json"
	"strings"

	"github.com/Iron-Ham/ideaforge/internal/errors"
)

type container struct {
	closer byte
	// inObject is true for '{'; wantKey tracks whether the next string is a key.
	inObject bool
	wantKey  bool
}

func closers(stack []container) string {
	var sb strings.Builder
	for i := len(stack) - 1; i >= 0; i-- {
		sb.WriteByte(stack[i].closer)
	}
	return sb.String()
}

// CompletePrefix turns a prefix of a JSON document into a valid document
// holding everything the prefix fully determines. Open strings in value
// position are closed, open containers are closed, and dangling keys,
// trailing commas and unfinished literals are dropped. Text before the
// first '{' or '[' (such as a markdown fence) is skipped, as is anything
// after the top-level value.
//
// It returns false when the prefix does not yet contain any container.
func CompletePrefix(s string) (string, bool) {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return "", false
	}
	s = s[start:]

	var (
		stack    []container
		safeEnd  int
		safeTail string
	)
	markSafe := func(end int) {
		safeEnd = end
		safeTail = closers(stack)
	}
	afterValue := func() {
		if n := len(stack); n > 0 && stack[n-1].inObject {
			stack[n-1].wantKey = false
		}
	}

	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++

		case c == '{' || c == '[':
			if c == '{' {
				stack = append(stack, container{closer: '}', inObject: true, wantKey: true})
			} else {
				stack = append(stack, container{closer: ']'})
			}
			i++
			markSafe(i)

		case c == '}' || c == ']':
			if len(stack) == 0 {
				return s[:safeEnd] + safeTail, true
			}
			stack = stack[:len(stack)-1]
			i++
			afterValue()
			markSafe(i)
			if len(stack) == 0 {
				return s[:i], true
			}

		case c == ',':
			if n := len(stack); n > 0 && stack[n-1].inObject {
				stack[n-1].wantKey = true
			}
			i++

		case c == ':':
			if n := len(stack); n > 0 && stack[n-1].inObject {
				stack[n-1].wantKey = false
			}
			i++

		case c == '"':
			isKey := len(stack) > 0 && stack[len(stack)-1].inObject && stack[len(stack)-1].wantKey
			end, ok := scanString(s, i)
			if !ok {
				if isKey {
					return s[:safeEnd] + safeTail, true
				}
				return trimPartialEscape(s[:end]) + `"` + closers(stack), true
			}
			i = end
			if !isKey {
				afterValue()
				markSafe(i)
			}

		default:
			end := i
			for end < len(s) && isLiteralByte(s[end]) {
				end++
			}
			if end == i {
				// unexpected byte; keep what is known to be good
				return s[:safeEnd] + safeTail, true
			}
			if end == len(s) {
				// literal may still be growing
				return s[:safeEnd] + safeTail, true
			}
			i = end
			afterValue()
			markSafe(i)
		}
	}
	return s[:safeEnd] + safeTail, true
}

// scanString returns the index just past the closing quote of the string
// starting at s[start]. When the string is unterminated it returns len(s)
// and false.
func scanString(s string, start int) (int, bool) {
	for i := start + 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '"':
			return i + 1, true
		}
	}
	return len(s), false
}

// trimPartialEscape removes an escape sequence cut off at the end of an
// unterminated string.
func trimPartialEscape(s string) string {
	n := 0
	for j := len(s) - 1; j >= 0 && s[j] == '\\'; j-- {
		n++
	}
	if n%2 == 1 {
		return s[:len(s)-1]
	}
	if k := strings.LastIndex(s, `\u`); k >= 0 && len(s)-k < 6 {
		bs := 0
		for j := k - 1; j >= 0 && s[j] == '\\'; j-- {
			bs++
		}
		if bs%2 == 0 {
			return s[:k]
		}
	}
	return s
}

func isLiteralByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' ||
		c == '-' || c == '+' || c == '.'
}

// DecodePartial repairs the prefix s and unmarshals it into v. It returns
// false when the prefix holds nothing decodable yet.
func DecodePartial(s string, v any) bool {
	doc, ok := CompletePrefix(s)
	if !ok {
		return false
	}
	return Unmarshal([]byte(doc), v) == nil
}

// Unmarshal is json.Unmarshal except that a value of the wrong type leaves
// its field zero instead of failing the whole document. The decoder fills
// every other field before reporting the mismatch.
func Unmarshal(data []byte, v any) error {
	err := json.Unmarshal(data, v)
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return nil
	}
	return err
}

// StripFences removes a surrounding markdown code fence and any prose
// around the outermost JSON object or array.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return s
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end < start {
		return s[start:]
	}
	return s[start : end+1]
}
