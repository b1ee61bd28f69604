// Package prompt builds the system and user prompts for every upstream call
// a turn makes. Every piece of user- or model-authored text is passed
// through Neutralize before it is interpolated.
package prompt

import (
	"errors"

	"github.com/Iron-Ham/ideaforge/internal/persona"
	"github.com/Iron-Ham/ideaforge/internal/scorecard"
)

// Sentinel errors returned by the builders.
var (
	ErrNilContext   = errors.New("prompt context is nil")
	ErrEmptyIdea    = errors.New("idea text is empty")
	ErrNoPersonas   = errors.New("no personas selected")
	ErrNoOpinions   = errors.New("no opinions to analyze")
	ErrUnknownRole  = errors.New("unknown analysis role")
	ErrUnknownLevel = errors.New("unknown validation level")
)

// Limits applied to interpolated text, in runes.
const (
	MaxIdeaRunes     = 4000
	MaxMessageRunes  = 2000
	MaxHistoryRunes  = 800
	MaxOpinionRunes  = 1200
	MaxAnalysisRunes = 3000
)

// Role is one of the three fixed analysis perspectives.
type Role string

const (
	RoleCoordinator Role = "coordinator"
	RoleCritic      Role = "critic"
	RoleCreative    Role = "creative"
)

// AnalysisRoles returns the roles in the order their sections appear in the
// synthesis prompt.
func AnalysisRoles() []Role {
	return []Role{RoleCoordinator, RoleCritic, RoleCreative}
}

// Prompt is a system/user message pair.
type Prompt struct {
	System string
	User   string
}

// Message is one prior exchange in the conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Opinion is one persona's first-pass reaction.
type Opinion struct {
	Persona persona.Profile
	Text    string
}

// Section is one analysis role's output.
type Section struct {
	Role Role
	Text string
}

// Context carries everything the builders may need for one turn.
type Context struct {
	IdeaText   string
	Message    string
	History    []Message
	Level      string
	Personas   []persona.Profile
	Opinions   []Opinion
	Analysis   []Section
	Reflection string
	Scorecard  scorecard.Scorecard
	TurnNumber int
	// HistoryWindow caps how many trailing history messages are included.
	HistoryWindow int
}
