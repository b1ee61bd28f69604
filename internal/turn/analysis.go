package turn

import (
	"fmt"
	"slices"
	"strings"

	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"

	"github.com/Iron-Ham/ideaforge/internal/errors"
	"github.com/Iron-Ham/ideaforge/internal/event"
	"github.com/Iron-Ham/ideaforge/internal/prompt"
	"github.com/Iron-Ham/ideaforge/internal/upstream"
)

type roleResult struct {
	role  prompt.Role
	text  string
	usage upstream.Usage
	err   error
}

// analyze runs one upstream call per analysis role concurrently and joins
// them. A failed or empty role is left out of the returned sections; the
// phase itself never fails.
func (r *run) analyze(opinions []prompt.Opinion) ([]prompt.Section, upstream.Usage) {
	roles := prompt.AnalysisRoles()
	p := pool.NewWithResults[roleResult]().WithMaxGoroutines(len(roles))
	for _, role := range roles {
		p.Go(func() roleResult {
			var res roleResult
			var catcher panics.Catcher
			catcher.Try(func() { res = r.analyzeRole(role, opinions) })
			if rec := catcher.Recovered(); rec != nil {
				res = roleResult{role: role, err: rec.AsError()}
			}
			return res
		})
	}
	results := p.Wait()
	slices.SortFunc(results, func(a, b roleResult) int {
		return slices.Index(roles, a.role) - slices.Index(roles, b.role)
	})

	var (
		sections []prompt.Section
		usage    upstream.Usage
	)
	for _, res := range results {
		usage = usage.Add(res.usage)
		if res.err != nil {
			res.err = errors.Join(errors.ErrPartialAgentFailure, res.err)
			r.degraded = true
			r.logger.Warn("analysis role failed, omitting section", "role", res.role, "error", res.err)
			r.o.bus.Publish(event.NewAgentFailedEvent(r.turnID, string(res.role), res.err))
			continue
		}
		sections = append(sections, prompt.Section{Role: res.role, Text: res.text})
	}
	return sections, usage
}

func (r *run) analyzeRole(role prompt.Role, opinions []prompt.Opinion) roleResult {
	p, err := prompt.Analysis(role, r.promptContext(opinions, nil))
	if err != nil {
		return roleResult{role: role, err: err}
	}
	resp, err := r.complete(string(role), upstream.Request{
		Model:       r.o.settings.Model,
		System:      p.System,
		User:        p.User,
		MaxTokens:   r.o.settings.MaxTokens,
		Temperature: r.o.settings.Temperature,
	})
	if err != nil {
		return roleResult{role: role, err: err}
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return roleResult{role: role, usage: resp.Usage,
			err: fmt.Errorf("%s returned no text: %w", role, errors.ErrMalformedOutput)}
	}
	return roleResult{role: role, text: text, usage: resp.Usage}
}
