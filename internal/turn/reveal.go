package turn

import (
	"strings"
	"unicode/utf8"
)

// DefaultDiscussionMinRunes is the shortest trailing message the Revealer
// treats as finished on punctuation alone.
const DefaultDiscussionMinRunes = 20

// Revealer decides which discussion lines of a growing synthesis document
// can be shown. Line i is complete once line i+1 exists, or when it is the
// last known line, at least MinRunes long and ends in '.', '!', '?' or '。'.
//
// This is a liveness heuristic: a line ending in a full stop mid-generation
// ("...costs $4.") may be revealed a token or two early. It never reveals a
// line twice, and Flush reveals whatever is left when the stream ends.
type Revealer struct {
	MinRunes int
	emitted  int
}

// NewRevealer returns a Revealer using minRunes, or the default when
// minRunes is not positive.
func NewRevealer(minRunes int) *Revealer {
	if minRunes <= 0 {
		minRunes = DefaultDiscussionMinRunes
	}
	return &Revealer{MinRunes: minRunes}
}

// Emitted returns how many lines have been consumed, skipped empty lines
// included.
func (v *Revealer) Emitted() int {
	return v.emitted
}

// Next returns the indices of lines that became complete in lines, in
// order, and records them as revealed.
func (v *Revealer) Next(lines []DiscussionTurn) []int {
	var out []int
	for v.emitted < len(lines) {
		i := v.emitted
		if i+1 >= len(lines) && !v.finished(lines[i].Message) {
			break
		}
		v.emitted++
		// a line that closed with no text is skipped, not revealed
		if strings.TrimSpace(lines[i].Message) != "" {
			out = append(out, i)
		}
	}
	return out
}

// Flush returns every unrevealed line with a non-empty message and marks
// all of lines as revealed.
func (v *Revealer) Flush(lines []DiscussionTurn) []int {
	var out []int
	for i := v.emitted; i < len(lines); i++ {
		if strings.TrimSpace(lines[i].Message) != "" {
			out = append(out, i)
		}
	}
	if len(lines) > v.emitted {
		v.emitted = len(lines)
	}
	return out
}

func (v *Revealer) finished(msg string) bool {
	msg = strings.TrimSpace(msg)
	if utf8.RuneCountInString(msg) < v.MinRunes {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(msg)
	switch r {
	case '.', '!', '?', '。':
		return true
	}
	return false
}
