package scorecard

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Entry is one category's score.
type Entry struct {
	Current int  `json:"current"`
	Max     int  `json:"max"`
	Filled  bool `json:"filled"`
}

// Scorecard is the progressive score of a session. The zero value is not
// usable; start from Empty. Values are comparable with ==.
//
// A Scorecard obtained from this package always satisfies
// 0 <= Current <= Max for every category.
type Scorecard struct {
	entries [NumCategories]Entry
}

// Empty returns a scorecard with every category at zero.
func Empty() Scorecard {
	var s Scorecard
	for i, info := range categoryTable {
		s.entries[i] = Entry{Max: info.max}
	}
	return s
}

// Get returns the entry for c. Unknown categories yield a zero Entry.
func (s Scorecard) Get(c Category) Entry {
	if i, ok := categoryIndex[c]; ok {
		return s.entries[i]
	}
	return Entry{}
}

// Total is the sum of every category's current score.
func (s Scorecard) Total() int {
	total := 0
	for _, e := range s.entries {
		total += e.Current
	}
	return total
}

// Filled returns the number of categories marked filled.
func (s Scorecard) Filled() int {
	n := 0
	for _, e := range s.entries {
		if e.Filled {
			n++
		}
	}
	return n
}

// IsZero reports whether s is the uninitialized zero value.
func (s Scorecard) IsZero() bool {
	return s == Scorecard{}
}

// String renders the scorecard compactly, for logs.
func (s Scorecard) String() string {
	var b strings.Builder
	for i, info := range categoryTable {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s=%d/%d", info.category, s.entries[i].Current, info.max)
	}
	fmt.Fprintf(&b, " total=%d", s.Total())
	return b.String()
}

// MarshalJSON renders a flat object keyed by category plus totalScore.
func (s Scorecard) MarshalJSON() ([]byte, error) {
	if s.IsZero() {
		s = Empty()
	}
	var b strings.Builder
	b.WriteByte('{')
	for i, info := range categoryTable {
		e, err := json.Marshal(s.entries[i])
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&b, "%q:%s,", info.category, e)
	}
	fmt.Fprintf(&b, "%q:%d}", "totalScore", s.Total())
	return []byte(b.String()), nil
}

// UnmarshalJSON accepts the same loose shapes as Proposal and clamps every
// value into range. A client-supplied scorecard therefore always satisfies
// the bounds; totalScore is ignored and recomputed.
func (s *Scorecard) UnmarshalJSON(data []byte) error {
	var p Proposal
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = ReconcileProposal(Empty(), p)
	return nil
}

// Reconcile merges an untrusted proposed scorecard into the previous one.
// For every category the result is max(previous, min(proposed, cap)) and
// filled is the OR of both; the total is recomputed. Reconcile is pure and
// Reconcile(s, s) == s.
func Reconcile(previous, proposed Scorecard) Scorecard {
	p := make(Proposal, NumCategories)
	for i, info := range categoryTable {
		e := proposed.entries[i]
		p[info.category] = ProposedEntry{Current: e.Current, HasCurrent: true, Filled: e.Filled}
	}
	return ReconcileProposal(previous, p)
}

// ReconcileProposal is Reconcile for a decoded model proposal. Categories
// absent from p keep their previous values.
func ReconcileProposal(previous Scorecard, p Proposal) Scorecard {
	if previous.IsZero() {
		previous = Empty()
	}
	out := previous
	for i, info := range categoryTable {
		prev := clampEntry(previous.entries[i], info.max)
		prop, ok := p[info.category]
		if !ok {
			out.entries[i] = prev
			continue
		}
		next := prev
		if prop.HasCurrent {
			next.Current = max(prev.Current, clamp(prop.Current, 0, info.max))
		}
		next.Filled = prev.Filled || prop.Filled
		out.entries[i] = next
	}
	return out
}

func clampEntry(e Entry, limit int) Entry {
	return Entry{Current: clamp(e.Current, 0, limit), Max: limit, Filled: e.Filled}
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
