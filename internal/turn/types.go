package turn

import (
	"slices"
	"strings"

	"github.com/Iron-Ham/ideaforge/internal/errors"
	"github.com/Iron-Ham/ideaforge/internal/persona"
	"github.com/Iron-Ham/ideaforge/internal/prompt"
	"github.com/Iron-Ham/ideaforge/internal/reflection"
	"github.com/Iron-Ham/ideaforge/internal/scorecard"
	"github.com/Iron-Ham/ideaforge/internal/upstream"
)

// DefaultLevel is used when a request names no validation level.
const DefaultLevel = "mvp"

// Request is everything a caller supplies for one turn. Session state
// (scorecard, reflections, evolution, summary) is owned by the caller and
// passed in on every turn.
type Request struct {
	SessionID           string                        `json:"sessionId,omitempty"`
	IdeaText            string                        `json:"ideaText"`
	Message             string                        `json:"message,omitempty"`
	ConversationHistory []prompt.Message              `json:"conversationHistory,omitempty"`
	ValidationLevel     string                        `json:"validationLevel,omitempty"`
	Personas            []persona.Persona             `json:"personas"`
	PreviousScorecard   *scorecard.Scorecard          `json:"previousScorecard,omitempty"`
	TurnNumber          int                           `json:"turnNumber"`
	StagedReflections   []reflection.StagedReflection `json:"stagedReflections,omitempty"`
	ScoreEvolution      []scorecard.EvolutionEntry    `json:"scoreEvolution,omitempty"`
	CompactSummary      string                        `json:"compactSummary,omitempty"`
}

// Normalize fills defaults and validates the request in place: the level
// defaults to defaultLevel (or DefaultLevel), the persona list is
// deduplicated in first-seen order and must hold 1 to 10 entries, and turn
// numbers below 1 become 1.
func (r *Request) Normalize(defaultLevel string) error {
	if r.ValidationLevel == "" {
		r.ValidationLevel = defaultLevel
	}
	if r.ValidationLevel == "" {
		r.ValidationLevel = DefaultLevel
	}
	r.ValidationLevel = strings.ToLower(strings.TrimSpace(r.ValidationLevel))
	if !slices.Contains(prompt.Levels(), r.ValidationLevel) {
		return errors.NewValidationError("validation level must be one of sketch, mvp, defense").
			WithField("validationLevel").WithValue(r.ValidationLevel)
	}

	names := make([]string, len(r.Personas))
	for i, p := range r.Personas {
		names[i] = string(p)
	}
	personas, err := persona.ParseAll(names)
	if err != nil {
		return err
	}
	r.Personas = personas

	if r.TurnNumber < 1 {
		r.TurnNumber = 1
	}
	return nil
}

// Previous returns the caller's scorecard, or an empty one.
func (r *Request) Previous() scorecard.Scorecard {
	if r.PreviousScorecard == nil || r.PreviousScorecard.IsZero() {
		return scorecard.Empty()
	}
	return *r.PreviousScorecard
}

// Tone labels how a discussion line relates to the one before it.
type Tone string

const (
	ToneAgree     Tone = "agree"
	ToneChallenge Tone = "challenge"
	ToneBuild     Tone = "build"
	ToneQuestion  Tone = "question"
	ToneNeutral   Tone = "neutral"
)

// ParseTone maps s to a Tone; anything unrecognized is neutral.
func ParseTone(s string) Tone {
	switch t := Tone(strings.ToLower(strings.TrimSpace(s))); t {
	case ToneAgree, ToneChallenge, ToneBuild, ToneQuestion:
		return t
	}
	return ToneNeutral
}

// Opinion is one persona's first-pass reaction.
type Opinion struct {
	Persona     persona.Persona `json:"persona"`
	DisplayName string          `json:"displayName"`
	Icon        string          `json:"icon,omitempty"`
	Message     string          `json:"message"`
	// Fallback marks a placeholder used because the model gave nothing usable.
	Fallback bool `json:"fallback,omitempty"`
}

// DiscussionTurn is one line of the synthesized panel discussion.
type DiscussionTurn struct {
	Persona     persona.Persona `json:"persona"`
	DisplayName string          `json:"displayName,omitempty"`
	Message     string          `json:"message"`
	ReplyTo     persona.Persona `json:"replyTo,omitempty"`
	Tone        Tone            `json:"tone"`
}

// PersonaResponse is a persona's final feedback for the turn.
type PersonaResponse struct {
	Persona          persona.Persona      `json:"persona"`
	DisplayName      string               `json:"displayName"`
	Icon             string               `json:"icon,omitempty"`
	Message          string               `json:"message"`
	Advice           string               `json:"advice,omitempty"`
	LinkedCategories []scorecard.Category `json:"linkedCategories,omitempty"`
	// Fabricated marks a response built from the persona's opinion because
	// synthesis did not provide one.
	Fabricated bool `json:"fabricated,omitempty"`
}

// Metrics is the model's overall readiness assessment, clamped to 0..100.
type Metrics struct {
	Readiness  int      `json:"readiness"`
	Confidence int      `json:"confidence"`
	KeyRisks   []string `json:"keyRisks"`
	NextSteps  []string `json:"nextSteps"`
}

// Usage summarizes the upstream work a turn did.
type Usage struct {
	Calls       int                  `json:"calls"`
	Attempts    int                  `json:"attempts"`
	RateLimited int                  `json:"rateLimited"`
	Failed      []string             `json:"failed,omitempty"`
	Tokens      upstream.Usage       `json:"tokens"`
	DurationMs  int64                `json:"durationMs"`
	Detail      []upstream.CallState `json:"detail,omitempty"`
}

// TurnResult is the payload of the final event and the only thing a caller
// persists.
type TurnResult struct {
	TurnID          string                     `json:"turnId"`
	SessionID       string                     `json:"sessionId,omitempty"`
	Turn            int                        `json:"turn"`
	Responses       []PersonaResponse          `json:"responses"`
	Discussion      []DiscussionTurn           `json:"discussion"`
	Metrics         Metrics                    `json:"metrics"`
	Scorecard       scorecard.Scorecard        `json:"scorecard"`
	CategoryUpdates []scorecard.CategoryUpdate `json:"categoryUpdates"`
	ScoreEvolution  []scorecard.EvolutionEntry `json:"scoreEvolution,omitempty"`
	Categories      []string                   `json:"categories"`
	Usage           Usage                      `json:"usage"`
	Degraded        bool                       `json:"degraded"`
}

// Event payloads.

// OpinionEvent is the data of an opinion event.
type OpinionEvent struct {
	Index int `json:"index"`
	Total int `json:"total"`
	Opinion
}

// SynthesizingEvent is the data of the synthesizing marker.
type SynthesizingEvent struct {
	Turn     int           `json:"turn"`
	Analysis []prompt.Role `json:"analysis"`
}

// DiscussionEvent is the data of a discussion event.
type DiscussionEvent struct {
	Index int `json:"index"`
	DiscussionTurn
}

// ErrorEvent is the data of an error event.
type ErrorEvent struct {
	Message string `json:"message"`
	Phase   Phase  `json:"phase,omitempty"`
}

// WarningEvent is the data of a warning event.
type WarningEvent struct {
	Message string `json:"message"`
	Reason  string `json:"reason"`
}
