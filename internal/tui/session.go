package tui

import (
	"fmt"
	"strings"

	"github.com/Iron-Ham/ideaforge/internal/errors"
	"github.com/Iron-Ham/ideaforge/internal/persona"
	"github.com/Iron-Ham/ideaforge/internal/prompt"
	"github.com/Iron-Ham/ideaforge/internal/reflection"
	"github.com/Iron-Ham/ideaforge/internal/scorecard"
	"github.com/Iron-Ham/ideaforge/internal/turn"
)

// Session is the client-side state of a chat. The terminal client keeps it
// in memory and sends it with every turn request.
type Session struct {
	IdeaText  string
	Level     string
	Personas  []persona.Persona
	Scorecard scorecard.Scorecard
	Turn      int
	History   []prompt.Message
	Staged    []reflection.StagedReflection
	Evolution []scorecard.EvolutionEntry
	Last      *turn.TurnResult

	// EvolutionTurns bounds the evolution entries sent with a request.
	EvolutionTurns int

	registry *persona.Registry
}

// NewSession starts an empty chat with the given personas.
func NewSession(reg *persona.Registry, level string, personas []persona.Persona) *Session {
	if reg == nil {
		reg = persona.DefaultRegistry()
	}
	return &Session{
		Level:          level,
		Personas:       personas,
		Scorecard:      scorecard.Empty(),
		EvolutionTurns: reflection.DefaultEvolutionTurns,
		registry:       reg,
	}
}

// Request builds the next turn request. The first message becomes the idea.
func (s *Session) Request(message string) turn.Request {
	message = strings.TrimSpace(message)
	req := turn.Request{
		IdeaText:            s.IdeaText,
		Message:             message,
		ConversationHistory: s.History,
		ValidationLevel:     s.Level,
		Personas:            s.Personas,
		TurnNumber:          s.Turn + 1,
		StagedReflections:   s.Staged,
		ScoreEvolution:      scorecard.WindowEvolution(s.Evolution, s.Turn+1, s.EvolutionTurns),
	}
	if s.IdeaText == "" {
		req.IdeaText = message
		req.Message = ""
	}
	if s.Turn > 0 {
		prev := s.Scorecard
		req.PreviousScorecard = &prev
	}
	return req
}

// Apply records a completed turn.
func (s *Session) Apply(req turn.Request, res *turn.TurnResult) {
	if s.IdeaText == "" {
		s.IdeaText = req.IdeaText
	}
	s.Turn = res.Turn
	s.Scorecard = res.Scorecard
	s.Evolution = append(s.Evolution, res.ScoreEvolution...)
	s.Last = res

	user := req.Message
	if user == "" {
		user = req.IdeaText
	}
	s.History = append(s.History, prompt.Message{Role: "user", Content: user})
	var sb strings.Builder
	for _, r := range res.Responses {
		fmt.Fprintf(&sb, "%s: %s\n", r.DisplayName, r.Message)
	}
	s.History = append(s.History, prompt.Message{Role: "assistant", Content: strings.TrimSpace(sb.String())})
}

// Accept stages the advice of the n-th (1-based) response of the last turn.
func (s *Session) Accept(n int) (reflection.StagedReflection, error) {
	if s.Last == nil {
		return reflection.StagedReflection{}, errors.NewValidationError("no turn to accept advice from")
	}
	if n < 1 || n > len(s.Last.Responses) {
		return reflection.StagedReflection{}, errors.NewValidationError(
			fmt.Sprintf("pick a response between 1 and %d", len(s.Last.Responses))).WithValue(n)
	}
	r := s.Last.Responses[n-1]
	text := r.Advice
	if strings.TrimSpace(text) == "" {
		text = r.Message
	}
	staged := reflection.Accept(s.Last.Turn, s.registry.Profile(r.Persona), text, r.LinkedCategories)
	s.Staged = append(s.Staged, staged)
	return staged, nil
}

// SetPersonas replaces the panel for the following turns.
func (s *Session) SetPersonas(names []string) error {
	personas, err := persona.ParseAll(names)
	if err != nil {
		return err
	}
	s.Personas = personas
	return nil
}
