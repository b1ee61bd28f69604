package turn

import (
	"slices"
	"strings"

	"github.com/Iron-Ham/ideaforge/internal/persona"
	"github.com/Iron-Ham/ideaforge/internal/scorecard"
)

// completeResponses returns exactly one response per requested persona, in
// request order. Synthesis responses for unknown or unrequested personas
// are dropped, as are later duplicates; a persona synthesis left out gets a
// response built from its opinion. fabricated counts those.
func completeResponses(wires []responseWire, personas []persona.Persona, opinions []Opinion, reg *persona.Registry) (out []PersonaResponse, fabricated int) {
	byPersona := make(map[persona.Persona]responseWire, len(wires))
	for _, w := range wires {
		p, err := persona.Parse(w.Persona)
		if err != nil || !slices.Contains(personas, p) {
			continue
		}
		if strings.TrimSpace(w.Message) == "" {
			continue
		}
		if _, dup := byPersona[p]; !dup {
			byPersona[p] = w
		}
	}

	opinionFor := make(map[persona.Persona]Opinion, len(opinions))
	for _, o := range opinions {
		opinionFor[o.Persona] = o
	}

	out = make([]PersonaResponse, 0, len(personas))
	for _, p := range personas {
		pr := reg.Profile(p)
		resp := PersonaResponse{Persona: p, DisplayName: pr.DisplayName, Icon: pr.Icon}
		if w, ok := byPersona[p]; ok {
			resp.Message = strings.TrimSpace(w.Message)
			resp.Advice = strings.TrimSpace(w.Advice)
			resp.LinkedCategories = linkedCategories(w.LinkedCategories)
		} else {
			resp.Message = opinionFor[p].Message
			if resp.Message == "" {
				resp.Message = FallbackOpinion(pr.DisplayName)
			}
			resp.Fabricated = true
			fabricated++
		}
		if len(resp.LinkedCategories) == 0 {
			resp.LinkedCategories = reg.LinkedCategories(p)
		}
		out = append(out, resp)
	}
	return out, fabricated
}

func linkedCategories(names []string) []scorecard.Category {
	var out []scorecard.Category
	for _, n := range names {
		c, err := scorecard.Parse(n)
		if err != nil || slices.Contains(out, c) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// scoreOutcome is the reconciled scorecard with its audit trail.
type scoreOutcome struct {
	Scorecard scorecard.Scorecard
	Updates   []scorecard.CategoryUpdate
	Evolution []scorecard.EvolutionEntry
}

// reconcileScores applies the model proposal to prev. The result never
// drops below prev and never exceeds a category cap, whatever the proposal
// says.
func reconcileScores(prev scorecard.Scorecard, proposal scorecard.Proposal, proposed []scorecard.CategoryUpdate, turn int) scoreOutcome {
	next := scorecard.ReconcileProposal(prev, proposal)
	updates := scorecard.AcceptedUpdates(prev, next, proposed)
	if updates == nil {
		updates = []scorecard.CategoryUpdate{}
	}
	return scoreOutcome{
		Scorecard: next,
		Updates:   updates,
		Evolution: scorecard.Evolve(prev, next, proposed, turn),
	}
}
