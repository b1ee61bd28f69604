package scorecard

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ProposedEntry is one category as proposed by the model, before clamping.
type ProposedEntry struct {
	Current    int
	HasCurrent bool
	Filled     bool
}

// Proposal is a model-proposed scorecard. Only categories the model actually
// mentioned are present.
type Proposal map[Category]ProposedEntry

// UnmarshalJSON decodes a proposal leniently. Each category may be an object
// {"current": n, "filled": b} or a bare number; numbers may arrive as strings
// or floats. A bare number never marks its category filled. Unknown keys,
// totalScore and undecodable values are skipped.
func (p *Proposal) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Proposal, len(raw))
	for key, value := range raw {
		c, err := Parse(key)
		if err != nil {
			continue
		}
		if e, ok := decodeEntry(value); ok {
			out[c] = e
		}
	}
	*p = out
	return nil
}

func decodeEntry(raw json.RawMessage) (ProposedEntry, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ProposedEntry{}, false
	}
	if raw[0] != '{' {
		n, ok := decodeNumber(raw)
		if !ok {
			return ProposedEntry{}, false
		}
		return ProposedEntry{Current: n, HasCurrent: true}, true
	}

	var obj struct {
		Current json.RawMessage `json:"current"`
		Score   json.RawMessage `json:"score"`
		Filled  json.RawMessage `json:"filled"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return ProposedEntry{}, false
	}
	var e ProposedEntry
	cur := obj.Current
	if isNull(cur) {
		cur = obj.Score
	}
	if n, ok := decodeNumber(cur); ok {
		e.Current, e.HasCurrent = n, true
	}
	e.Filled = decodeBool(obj.Filled)
	return e, e.HasCurrent || e.Filled
}

func decodeNumber(raw json.RawMessage) (int, bool) {
	if isNull(raw) {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return roundInt(f)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return roundInt(f)
}

func roundInt(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	f = math.Round(f)
	if f > MaxTotal {
		f = MaxTotal
	}
	if f < -MaxTotal {
		f = -MaxTotal
	}
	return int(f), true
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || string(raw) == "null"
}

func decodeBool(raw json.RawMessage) bool {
	if isNull(raw) {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		b, _ = strconv.ParseBool(strings.TrimSpace(s))
	}
	return b
}
