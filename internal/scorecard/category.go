// Package scorecard holds the 8-category progressive score for a validation
// session and the reconciliation rules that keep it monotone and bounded.
package scorecard

import (
	"fmt"
	"strings"
)

// Category names one scorecard dimension.
type Category string

const (
	ProblemDefinition  Category = "problemDefinition"
	Solution           Category = "solution"
	MarketAnalysis     Category = "marketAnalysis"
	RevenueModel       Category = "revenueModel"
	Differentiation    Category = "differentiation"
	LogicalConsistency Category = "logicalConsistency"
	Feasibility        Category = "feasibility"
	FeedbackReflection Category = "feedbackReflection"
)

// NumCategories is the fixed number of scorecard categories.
const NumCategories = 8

// MaxTotal is the sum of every category's cap.
const MaxTotal = 100

type categoryInfo struct {
	category Category
	max      int
	display  string
}

// categoryTable is ordered; the order is the scorecard's canonical order.
var categoryTable = [NumCategories]categoryInfo{
	{ProblemDefinition, 15, "Problem Definition"},
	{Solution, 15, "Solution"},
	{MarketAnalysis, 10, "Market Analysis"},
	{RevenueModel, 10, "Revenue Model"},
	{Differentiation, 10, "Differentiation"},
	{LogicalConsistency, 15, "Logical Consistency"},
	{Feasibility, 15, "Feasibility"},
	{FeedbackReflection, 10, "Feedback Reflection"},
}

var (
	categoryIndex = map[Category]int{}
	aliasIndex    = map[string]Category{}
)

func init() {
	for i, info := range categoryTable {
		categoryIndex[info.category] = i
		aliasIndex[normalize(string(info.category))] = info.category
	}
	for alias, c := range map[string]Category{
		"problem":         ProblemDefinition,
		"market":          MarketAnalysis,
		"revenue":         RevenueModel,
		"businessmodel":   RevenueModel,
		"monetization":    RevenueModel,
		"logic":           LogicalConsistency,
		"consistency":     LogicalConsistency,
		"feedback":        FeedbackReflection,
		"reflection":      FeedbackReflection,
		"competitiveedge": Differentiation,
	} {
		aliasIndex[alias] = c
	}
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(s)
}

// All returns every category in canonical order.
func All() []Category {
	out := make([]Category, NumCategories)
	for i, info := range categoryTable {
		out[i] = info.category
	}
	return out
}

// Parse resolves a category name. It accepts the canonical camelCase name,
// snake_case, kebab-case and a few common short forms.
func Parse(s string) (Category, error) {
	if c, ok := aliasIndex[normalize(s)]; ok {
		return c, nil
	}
	return "", fmt.Errorf("unknown scorecard category %q", s)
}

// Valid reports whether c is one of the eight categories.
func (c Category) Valid() bool {
	_, ok := categoryIndex[c]
	return ok
}

// Max returns the category's cap, or 0 for an unknown category.
func (c Category) Max() int {
	if i, ok := categoryIndex[c]; ok {
		return categoryTable[i].max
	}
	return 0
}

// DisplayName returns a human-readable label.
func (c Category) DisplayName() string {
	if i, ok := categoryIndex[c]; ok {
		return categoryTable[i].display
	}
	return string(c)
}

// UnmarshalText implements encoding.TextUnmarshaler using Parse.
func (c *Category) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
