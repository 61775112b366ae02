package llm

import (
	"encoding/json"
	"strings"

	"github.com/Raumain/flashcards/internal/domain"
)

// stripFences removes a leading ```json / ``` fence and a trailing ``` fence.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// extractObject returns the outermost {...} of a complete model response.
func extractObject(s string) string {
	s = stripFences(s)
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end < start {
		return s
	}
	return s[start : end+1]
}

// repairJSON closes a truncated JSON document so it can be decoded. It first
// tries to close everything that is open at the end of the text; when that
// does not parse it falls back to the last point where a value was complete.
func repairJSON(text string) (string, bool) {
	text = stripFences(text)
	start := strings.Index(text, "{")
	if start == -1 {
		return "", false
	}
	text = text[start:]

	var (
		stack     []byte
		inString  bool
		escaped   bool
		safeEnd   int
		safeStack []byte
	)
	markSafe := func(end int) {
		safeEnd = end
		safeStack = append(safeStack[:0], stack...)
	}

	for i := 0; i < len(text); i++ {
		c := text[i]
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
			stack = append(stack, c)
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			markSafe(i + 1)
		case ',':
			markSafe(i)
		}
	}

	candidate := text
	if inString {
		if escaped {
			candidate = candidate[:len(candidate)-1]
		}
		candidate += `"`
	}
	candidate = strings.TrimRight(candidate, " \t\r\n")
	candidate = strings.TrimSuffix(candidate, ",") + closers(stack)
	if json.Valid([]byte(candidate)) {
		return candidate, true
	}

	if safeEnd == 0 {
		return "", false
	}
	candidate = strings.TrimRight(text[:safeEnd], " \t\r\n,") + closers(safeStack)
	if json.Valid([]byte(candidate)) {
		return candidate, true
	}
	return "", false
}

func closers(stack []byte) string {
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

// parsePartial decodes the accumulated text of an unfinished response. Cards
// whose question has not started yet are left out so the count never shrinks
// as more text arrives.
func parsePartial(text string) (*domain.PartialResult, bool) {
	repaired, ok := repairJSON(text)
	if !ok {
		return nil, false
	}
	var partial domain.PartialResult
	if err := json.Unmarshal([]byte(repaired), &partial); err != nil {
		return nil, false
	}
	cards := partial.Flashcards[:0]
	for _, c := range partial.Flashcards {
		if c.Front.Question != "" {
			cards = append(cards, c)
		}
	}
	partial.Flashcards = cards
	return &partial, true
}
