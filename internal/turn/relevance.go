package turn

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Iron-Ham/ideaforge/internal/errors"
)

// DefaultMinIdeaRunes is the shortest idea text LocalRelevance accepts.
const DefaultMinIdeaRunes = 10

// Rejection reasons.
const (
	ReasonTooShort       = "too_short"
	ReasonNotText        = "not_text"
	ReasonRepeatedSymbol = "repeated_character"
)

// Rejection explains why idea text was refused before any upstream call.
// It matches errors.ErrInputRejected.
type Rejection struct {
	Reason  string
	Message string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("input rejected (%s): %s", r.Reason, r.Message)
}

func (r *Rejection) Unwrap() error {
	return errors.ErrInputRejected
}

// RelevanceChecker decides whether idea text is worth a turn. A non-nil
// error (normally a *Rejection) stops the turn with a warning event.
type RelevanceChecker interface {
	Check(ideaText string) error
}

// RelevanceFunc adapts a function to RelevanceChecker.
type RelevanceFunc func(ideaText string) error

// Check calls f.
func (f RelevanceFunc) Check(ideaText string) error {
	return f(ideaText)
}

// LocalRelevance is a cheap local check: it rejects text that is too short,
// mostly made of non-letters, or one character repeated.
type LocalRelevance struct {
	MinRunes int
}

// Check implements RelevanceChecker.
func (l LocalRelevance) Check(ideaText string) error {
	minRunes := l.MinRunes
	if minRunes <= 0 {
		minRunes = DefaultMinIdeaRunes
	}
	text := strings.TrimSpace(ideaText)
	if utf8.RuneCountInString(text) < minRunes {
		return &Rejection{
			Reason:  ReasonTooShort,
			Message: fmt.Sprintf("Describe your idea in at least %d characters so the panel has something to work with.", minRunes),
		}
	}

	var letters, visible int
	distinct := make(map[rune]struct{})
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		visible++
		distinct[unicode.ToLower(r)] = struct{}{}
		if unicode.IsLetter(r) {
			letters++
		}
	}
	if len(distinct) == 1 {
		return &Rejection{
			Reason:  ReasonRepeatedSymbol,
			Message: "That looks like a single repeated character. Describe the idea in your own words.",
		}
	}
	if letters*2 < visible {
		return &Rejection{
			Reason:  ReasonNotText,
			Message: "That does not look like a description of an idea. Describe it in plain words.",
		}
	}
	return nil
}
