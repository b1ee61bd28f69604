package scorecard

import "strings"

// CategoryUpdate records one accepted increment.
type CategoryUpdate struct {
	Category Category `json:"category"`
	Delta    int      `json:"delta"`
	Reason   string   `json:"reason,omitempty"`
}

// EvolutionEntry is one row of the score-evolution ledger.
type EvolutionEntry struct {
	Category Category `json:"category"`
	Turn     int      `json:"turn"`
	From     int      `json:"from"`
	To       int      `json:"to"`
	Delta    int      `json:"delta"`
	Reason   string   `json:"reason,omitempty"`
}

// AcceptedUpdates returns one update per category whose score actually rose
// from prev to next, in canonical order. The delta is the real rise, not the
// model's claim; the reason comes from the first proposed update for that
// category that carries one.
func AcceptedUpdates(prev, next Scorecard, proposed []CategoryUpdate) []CategoryUpdate {
	var out []CategoryUpdate
	for _, c := range All() {
		from, to := prev.Get(c).Current, next.Get(c).Current
		if to <= from {
			continue
		}
		out = append(out, CategoryUpdate{Category: c, Delta: to - from, Reason: reasonFor(c, proposed)})
	}
	return out
}

func reasonFor(c Category, updates []CategoryUpdate) string {
	for _, u := range updates {
		if u.Category == c {
			if r := strings.TrimSpace(u.Reason); r != "" {
				return r
			}
		}
	}
	return ""
}

// Evolve derives the ledger rows for the transition prev -> next at turn.
func Evolve(prev, next Scorecard, updates []CategoryUpdate, turn int) []EvolutionEntry {
	var out []EvolutionEntry
	for _, c := range All() {
		from, to := prev.Get(c).Current, next.Get(c).Current
		if to <= from {
			continue
		}
		out = append(out, EvolutionEntry{
			Category: c,
			Turn:     turn,
			From:     from,
			To:       to,
			Delta:    to - from,
			Reason:   reasonFor(c, updates),
		})
	}
	return out
}

// WindowEvolution keeps the entries from the last turns turns before
// currentTurn, preserving order. turns <= 0 keeps nothing.
func WindowEvolution(entries []EvolutionEntry, currentTurn, turns int) []EvolutionEntry {
	if turns <= 0 {
		return nil
	}
	oldest := currentTurn - turns
	var out []EvolutionEntry
	for _, e := range entries {
		if e.Turn >= oldest && e.Turn < currentTurn {
			out = append(out, e)
		}
	}
	return out
}
