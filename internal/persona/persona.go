// Package persona defines the closed set of expert personas a user can ask
// for feedback, with their display metadata and scorecard weighting.
package persona

import (
	"slices"
	"sort"
	"strings"

	"github.com/Iron-Ham/ideaforge/internal/errors"
	"github.com/Iron-Ham/ideaforge/internal/scorecard"
)

// Persona identifies one expert role.
type Persona string

const (
	Developer      Persona = "developer"
	Designer       Persona = "designer"
	Investor       Persona = "investor"
	Marketer       Persona = "marketer"
	ProductManager Persona = "productManager"
	EndUser        Persona = "endUser"
	Legal          Persona = "legal"
	Finance        Persona = "finance"
	Operations     Persona = "operations"
	Skeptic        Persona = "skeptic"
)

// Limits on how many personas a turn may request.
const (
	MinPerTurn = 1
	MaxPerTurn = 10
)

// Profile is the display and weighting data for a persona.
type Profile struct {
	Persona     Persona
	DisplayName string
	Icon        string
	Focus       string
	// Weights ranks how strongly the persona's advice bears on each
	// scorecard category, 0 (not at all) to 5.
	Weights map[scorecard.Category]int
}

type sc = scorecard.Category

var defaultProfiles = []Profile{
	{Developer, "Developer", "🛠", "technical feasibility, architecture and build effort",
		map[sc]int{scorecard.Feasibility: 5, scorecard.Solution: 4, scorecard.LogicalConsistency: 2}},
	{Designer, "Designer", "🎨", "user experience, usability and interaction design",
		map[sc]int{scorecard.Solution: 5, scorecard.Differentiation: 3, scorecard.FeedbackReflection: 2}},
	{Investor, "Investor", "💰", "market size, returns and scalability",
		map[sc]int{scorecard.MarketAnalysis: 5, scorecard.RevenueModel: 4, scorecard.Differentiation: 3}},
	{Marketer, "Marketer", "📣", "positioning, channels and customer acquisition",
		map[sc]int{scorecard.Differentiation: 5, scorecard.MarketAnalysis: 4}},
	{ProductManager, "Product Manager", "🧭", "problem framing, scope and prioritization",
		map[sc]int{scorecard.ProblemDefinition: 5, scorecard.Solution: 3, scorecard.FeedbackReflection: 3}},
	{EndUser, "End User", "🙋", "whether real people would actually use and pay for it",
		map[sc]int{scorecard.ProblemDefinition: 4, scorecard.Solution: 4, scorecard.FeedbackReflection: 2}},
	{Legal, "Legal Advisor", "⚖", "regulation, liability and intellectual property",
		map[sc]int{scorecard.Feasibility: 4, scorecard.LogicalConsistency: 3}},
	{Finance, "Finance Lead", "📊", "unit economics, pricing and cash flow",
		map[sc]int{scorecard.RevenueModel: 5, scorecard.Feasibility: 3}},
	{Operations, "Operations Lead", "⚙", "delivery, support and operational cost",
		map[sc]int{scorecard.Feasibility: 5, scorecard.RevenueModel: 2}},
	{Skeptic, "Skeptic", "🧐", "weak assumptions, contradictions and failure modes",
		map[sc]int{scorecard.LogicalConsistency: 5, scorecard.ProblemDefinition: 3}},
}

var aliases = map[string]Persona{
	"dev":             Developer,
	"engineer":        Developer,
	"ux":              Designer,
	"vc":              Investor,
	"marketing":       Marketer,
	"pm":              ProductManager,
	"product":         ProductManager,
	"user":            EndUser,
	"customer":        EndUser,
	"lawyer":          Legal,
	"cfo":             Finance,
	"ops":             Operations,
	"devilsadvocate":  Skeptic,
	"criticalthinker": Skeptic,
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("_", "", "-", "", " ", "", "'", "").Replace(s)
}

// All returns every persona in canonical order.
func All() []Persona {
	out := make([]Persona, len(defaultProfiles))
	for i, p := range defaultProfiles {
		out[i] = p.Persona
	}
	return out
}

// Valid reports whether p is a known persona.
func (p Persona) Valid() bool {
	return slices.Contains(All(), p)
}

// Parse resolves a persona identifier, accepting canonical names in any
// case or separator style and a few common aliases.
func Parse(s string) (Persona, error) {
	n := normalize(s)
	for _, p := range All() {
		if normalize(string(p)) == n {
			return p, nil
		}
	}
	if p, ok := aliases[n]; ok {
		return p, nil
	}
	return "", errors.NewValidationError("unknown persona").WithField("personas").WithValue(s)
}

// ParseAll parses a requested persona list, dropping duplicates while
// keeping first-seen order. The result must hold between MinPerTurn and
// MaxPerTurn personas.
func ParseAll(names []string) ([]Persona, error) {
	seen := make(map[Persona]bool, len(names))
	out := make([]Persona, 0, len(names))
	for _, name := range names {
		p, err := Parse(name)
		if err != nil {
			return nil, err
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	if len(out) < MinPerTurn || len(out) > MaxPerTurn {
		return nil, errors.NewValidationError("persona count must be between 1 and 10").
			WithField("personas").WithValue(len(out))
	}
	return out, nil
}

// UnmarshalText implements encoding.TextUnmarshaler using Parse.
func (p *Persona) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// TopCategories returns the n categories the profile weights highest,
// ties broken by canonical category order.
func (pr Profile) TopCategories(n int) []scorecard.Category {
	cats := make([]scorecard.Category, 0, len(pr.Weights))
	for _, c := range scorecard.All() {
		if pr.Weights[c] > 0 {
			cats = append(cats, c)
		}
	}
	sort.SliceStable(cats, func(i, j int) bool {
		return pr.Weights[cats[i]] > pr.Weights[cats[j]]
	})
	if n < len(cats) {
		cats = cats[:n]
	}
	return cats
}
