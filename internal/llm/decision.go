package llm

import (
	"encoding/json"
	"strings"
)

// Decision is the parsed output of one model call: a conversational reply
// plus zero or more proposed actions. Actions are raw JSON at this layer;
// structural validation happens in the action registry.
type Decision struct {
	Message   string            `json:"message"`
	Actions   []json.RawMessage `json:"actions"`
	Reasoning string            `json:"reasoning,omitempty"`

	// Fallback marks that the raw text was not usable JSON and was taken
	// verbatim as the message.
	Fallback bool `json:"-"`
}

type decisionWire struct {
	Message   string            `json:"message"`
	Actions   []json.RawMessage `json:"actions"`
	Reasoning string            `json:"reasoning"`
}

// ParseDecision decodes raw model output. Malformed or unusable input
// degrades to a plain-text message with zero actions; this function never
// fails the turn.
func ParseDecision(raw string) Decision {
	trimmed := strings.TrimSpace(raw)
	candidate := stripCodeFence(trimmed)

	if d, ok := tryDecode(candidate); ok {
		return d
	}
	// models sometimes wrap the JSON in prose; salvage the first balanced
	// object before giving up
	if obj, ok := firstObject(candidate); ok {
		if d, ok := tryDecode(obj); ok {
			return d
		}
	}
	return Decision{Message: trimmed, Fallback: true}
}

// tryDecode parses one candidate string. Usable output has a message or a
// proper actions array; either may be absent, not both.
func tryDecode(candidate string) (Decision, bool) {
	var w decisionWire
	if err := json.Unmarshal([]byte(candidate), &w); err != nil {
		return Decision{}, false
	}
	if strings.TrimSpace(w.Message) == "" && w.Actions == nil {
		return Decision{}, false
	}
	return Decision{
		Message:   strings.TrimSpace(w.Message),
		Actions:   w.Actions,
		Reasoning: w.Reasoning,
	}, true
}

// firstObject extracts the first brace-balanced JSON object, tracking
// string literals so braces inside values do not end the scan early.
func firstObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
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
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// stripCodeFence removes a surrounding markdown fence, which models add to
// JSON output no matter how firmly the prompt forbids it.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
