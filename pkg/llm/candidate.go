package llm

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Candidate is one violation claimed by the model. Only PolicyName and
// Timestamp are required; Fix defaults to "".
type Candidate struct {
	Timestamp   string `json:"timestamp"`
	PolicyName  string `json:"policy_name"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
	Reasoning   string `json:"reasoning"`
	Fix         string `json:"fix"`
}

// FixRequest describes the remediation to visualise.
type FixRequest struct {
	PolicyName  string
	Description string
	Reasoning   string
	Fix         string
}

// ExtractJSONArray returns the first balanced, valid JSON array literal in text.
func ExtractJSONArray(text string) (string, bool) {
	for start := strings.IndexByte(text, '['); start >= 0; {
		if end := matchBracket(text, start); end > 0 {
			lit := text[start : end+1]
			if json.Valid([]byte(lit)) {
				return lit, true
			}
		}
		next := strings.IndexByte(text[start+1:], '[')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

// matchBracket returns the index of the ']' closing text[start], or -1.
func matchBracket(text string, start int) int {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(text); i++ {
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
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// ParseCandidates decodes the array found in text. Elements that are not
// objects, or whose timestamp or policy_name is present but not a string, are
// skipped and counted in dropped. Optional fields of any JSON type are kept
// as text, so "severity": 2 becomes "2".
func ParseCandidates(text string) (candidates []Candidate, dropped int, err error) {
	lit, ok := ExtractJSONArray(text)
	if !ok {
		return nil, 0, ErrNoJSONArray
	}
	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(lit), &raw); err != nil {
		return nil, 0, err
	}
	candidates = make([]Candidate, 0, len(raw))
	for _, item := range raw {
		c, ok := decodeCandidate(item)
		if !ok {
			dropped++
			continue
		}
		candidates = append(candidates, c)
	}
	return candidates, dropped, nil
}

func decodeCandidate(item json.RawMessage) (Candidate, bool) {
	var fields map[string]json.RawMessage
	// null 解码成 nil map，同样丢弃
	if err := json.Unmarshal(item, &fields); err != nil || fields == nil {
		return Candidate{}, false
	}
	var c Candidate
	var ok bool
	if c.Timestamp, ok = requiredString(fields["timestamp"]); !ok {
		return Candidate{}, false
	}
	if c.PolicyName, ok = requiredString(fields["policy_name"]); !ok {
		return Candidate{}, false
	}
	c.Severity = looseString(fields["severity"])
	c.Description = looseString(fields["description"])
	c.Reasoning = looseString(fields["reasoning"])
	c.Fix = looseString(fields["fix"])
	return c, true
}

// requiredString accepts a JSON string, null or absence. Absence is left for
// the caller to judge, since the frame path has no timestamp.
func requiredString(raw json.RawMessage) (string, bool) {
	if raw == nil {
		return "", true
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false
	}
	switch s := v.(type) {
	case nil:
		return "", true
	case string:
		return s, true
	}
	return "", false
}

func looseString(raw json.RawMessage) string {
	if raw == nil {
		return ""
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	}
	return strings.TrimSpace(string(raw))
}
