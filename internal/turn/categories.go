package turn

import (
	"context"
	"encoding/json"
	"slices"
	"strings"

	"github.com/Iron-Ham/ideaforge/internal/prompt"
	"github.com/Iron-Ham/ideaforge/internal/stream"
	"github.com/Iron-Ham/ideaforge/internal/upstream"
)

// MaxCategories is the most labels a turn reports.
const MaxCategories = 3

// CategoryOther is the fallback label.
const CategoryOther = "Other"

// Vocabulary is the closed set of idea labels.
var Vocabulary = []string{
	"SaaS", "Marketplace", "Fintech", "Healthcare", "Education", "E-commerce",
	"Social", "Productivity", "AI/ML", "Hardware", "Entertainment", "Sustainability",
	CategoryOther,
}

var vocabularyIndex = func() map[string]string {
	m := make(map[string]string, len(Vocabulary))
	for _, v := range Vocabulary {
		m[labelKey(v)] = v
	}
	for alias, v := range map[string]string{
		"ai":         "AI/ML",
		"ml":         "AI/ML",
		"ecommerce":  "E-commerce",
		"edtech":     "Education",
		"healthtech": "Healthcare",
		"finance":    "Fintech",
		"climate":    "Sustainability",
	} {
		m[alias] = v
	}
	return m
}()

func labelKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "", "-", "", "_", "", "/", "").Replace(s)
}

// NormalizeCategories maps labels onto the vocabulary, dropping unknown
// labels and duplicates and keeping at most MaxCategories. "Other" is only
// kept when nothing else matched; an empty result becomes ["Other"].
func NormalizeCategories(labels []string) []string {
	var out []string
	for _, l := range labels {
		v, ok := vocabularyIndex[labelKey(l)]
		if !ok || v == CategoryOther {
			continue
		}
		if !slices.Contains(out, v) {
			out = append(out, v)
		}
		if len(out) == MaxCategories {
			break
		}
	}
	if len(out) == 0 {
		return []string{CategoryOther}
	}
	return out
}

// Categorizer labels idea text. Implementations may fail; the turn then
// reports ["Other"].
type Categorizer interface {
	Categorize(ctx context.Context, ideaText string) ([]string, error)
}

// ParseCategories reads {"categories": [...]} or a bare array from model
// output and normalizes it.
func ParseCategories(text string) []string {
	raw := []byte(stream.StripFences(text))
	var wrapped struct {
		Categories []string `json:"categories"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil {
		return NormalizeCategories(wrapped.Categories)
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return NormalizeCategories(list)
	}
	return []string{CategoryOther}
}

// ModelCategorizer asks the language model for labels.
type ModelCategorizer struct {
	Model     upstream.Model
	Retrier   *upstream.Retrier
	ModelName string
}

// Categorize implements Categorizer.
func (m *ModelCategorizer) Categorize(ctx context.Context, ideaText string) ([]string, error) {
	p, err := prompt.Categories(ideaText, Vocabulary)
	if err != nil {
		return nil, err
	}
	resp, err := upstream.Call(ctx, m.Retrier, "categories", func(ctx context.Context) (upstream.Response, error) {
		return m.Model.Complete(ctx, upstream.Request{
			Model:     m.ModelName,
			System:    p.System,
			User:      p.User,
			MaxTokens: 100,
			JSON:      true,
		})
	})
	if err != nil {
		return nil, err
	}
	return ParseCategories(resp.Text), nil
}

// categorize runs the configured categorizer, falling back to ["Other"].
func (r *run) categorize(ctx context.Context) []string {
	c := r.o.categorizer
	if c == nil {
		return []string{CategoryOther}
	}
	if mc, ok := c.(*ModelCategorizer); ok {
		// record the call in this turn's ledger
		cp := *mc
		cp.Retrier = r.retrier
		c = &cp
	}
	labels, err := c.Categorize(ctx, r.req.IdeaText)
	if err != nil {
		r.logger.Warn("category extraction failed", "error", err)
		return []string{CategoryOther}
	}
	return NormalizeCategories(labels)
}
