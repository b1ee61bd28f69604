package prompt

import (
	"fmt"
	"strings"

	"github.com/Iron-Ham/ideaforge/internal/scorecard"
)

// Levels returns the accepted validation levels.
func Levels() []string {
	return []string{"sketch", "mvp", "defense"}
}

func (c *Context) validate() error {
	if c == nil {
		return ErrNilContext
	}
	if strings.TrimSpace(c.IdeaText) == "" {
		return ErrEmptyIdea
	}
	if len(c.Personas) == 0 {
		return ErrNoPersonas
	}
	if _, ok := levelGuidance[c.Level]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownLevel, c.Level)
	}
	return nil
}

// Opinions builds the single prompt that collects every persona's opinion.
func Opinions(c *Context) (Prompt, error) {
	if err := c.validate(); err != nil {
		return Prompt{}, err
	}
	user := fmt.Sprintf(OpinionUserTemplate,
		levelGuidance[c.Level],
		formatReviewers(c),
		Clean(c.IdeaText, MaxIdeaRunes),
		formatHistory(c),
		Clean(c.Message, MaxMessageRunes),
	)
	return Prompt{System: OpinionSystemPrompt, User: user}, nil
}

// Analysis builds the prompt for one analysis role.
func Analysis(role Role, c *Context) (Prompt, error) {
	if err := c.validate(); err != nil {
		return Prompt{}, err
	}
	brief, ok := roleBriefs[role]
	if !ok {
		return Prompt{}, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	if len(c.Opinions) == 0 {
		return Prompt{}, ErrNoOpinions
	}
	return Prompt{
		System: fmt.Sprintf(AnalysisSystemTemplate, brief),
		User:   fmt.Sprintf(AnalysisUserTemplate, Clean(c.IdeaText, MaxIdeaRunes), formatOpinions(c)),
	}, nil
}

// Synthesis builds the streaming synthesis prompt. Missing analysis
// sections are simply left out.
func Synthesis(c *Context) (Prompt, error) {
	if err := c.validate(); err != nil {
		return Prompt{}, err
	}
	reflection := ""
	if c.Reflection != "" {
		reflection = "\n" + c.Reflection + "\n"
	}
	user := fmt.Sprintf(SynthesisUserTemplate,
		c.TurnNumber,
		levelGuidance[c.Level],
		formatReviewers(c),
		formatScorecard(c.Scorecard),
		reflection,
		Clean(c.IdeaText, MaxIdeaRunes),
		formatHistory(c),
		Clean(c.Message, MaxMessageRunes),
		formatOpinions(c),
		formatAnalysis(c),
	)
	return Prompt{System: SynthesisSystemPrompt, User: user}, nil
}

// Categories builds the idea classification prompt.
func Categories(idea string, vocabulary []string) (Prompt, error) {
	if strings.TrimSpace(idea) == "" {
		return Prompt{}, ErrEmptyIdea
	}
	return Prompt{
		System: fmt.Sprintf(CategorySystemTemplate, strings.Join(vocabulary, ", ")),
		User:   fmt.Sprintf(CategoryUserTemplate, Clean(idea, MaxIdeaRunes)),
	}, nil
}

func formatReviewers(c *Context) string {
	var sb strings.Builder
	for _, p := range c.Personas {
		fmt.Fprintf(&sb, "- %s (id: %s): focuses on %s\n", p.DisplayName, p.Persona, p.Focus)
	}
	return sb.String()
}

func formatHistory(c *Context) string {
	history := c.History
	if c.HistoryWindow > 0 && len(history) > c.HistoryWindow {
		history = history[len(history)-c.HistoryWindow:]
	}
	if len(history) == 0 {
		return "(no earlier messages)"
	}
	var sb strings.Builder
	for _, m := range history {
		role := "user"
		if strings.EqualFold(m.Role, "assistant") {
			role = "panel"
		}
		fmt.Fprintf(&sb, "%s said: %s\n", role, Clean(m.Content, MaxHistoryRunes))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatOpinions(c *Context) string {
	var sb strings.Builder
	for _, o := range c.Opinions {
		fmt.Fprintf(&sb, "%s (%s): %s\n", o.Persona.DisplayName, o.Persona.Persona, Clean(o.Text, MaxOpinionRunes))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatAnalysis(c *Context) string {
	if len(c.Analysis) == 0 {
		return "(no analysis available)"
	}
	var sb strings.Builder
	for _, s := range c.Analysis {
		fmt.Fprintf(&sb, "%s:\n%s\n\n", strings.ToUpper(string(s.Role)), Clean(s.Text, MaxAnalysisRunes))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatScorecard(s scorecard.Scorecard) string {
	if s.IsZero() {
		s = scorecard.Empty()
	}
	var sb strings.Builder
	for _, c := range scorecard.All() {
		e := s.Get(c)
		filled := ""
		if e.Filled {
			filled = " (filled)"
		}
		fmt.Fprintf(&sb, "- %s: %d/%d%s\n", c, e.Current, e.Max, filled)
	}
	fmt.Fprintf(&sb, "- total: %d/%d", s.Total(), scorecard.MaxTotal)
	return sb.String()
}
