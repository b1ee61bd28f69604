package turn

import (
	"slices"
	"strings"
	"testing"

	"github.com/Iron-Ham/ideaforge/internal/errors"
	"github.com/Iron-Ham/ideaforge/internal/persona"
	"github.com/Iron-Ham/ideaforge/internal/scorecard"
)

func TestLocalRelevance(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		reason string
	}{
		{"plain idea", "A tutoring marketplace for night-shift nurses", ""},
		{"non-latin idea", "夜勤の看護師のための家庭教師マーケット", ""},
		{"too short", "app", ReasonTooShort},
		{"whitespace padded", "   hi there, a real idea   ", ""},
		{"repeated", "aaaaaaaaaaaaaa", ReasonRepeatedSymbol},
		{"repeated mixed case", "AaAaAaAaAaAa", ReasonRepeatedSymbol},
		{"symbols", "$$$ 123 456 !!! ???", ReasonNotText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := LocalRelevance{}.Check(tt.text)
			if tt.reason == "" {
				if err != nil {
					t.Fatalf("Check(%q) = %v, want nil", tt.text, err)
				}
				return
			}
			var rej *Rejection
			if !errors.As(err, &rej) {
				t.Fatalf("Check(%q) = %v, want *Rejection", tt.text, err)
			}
			if rej.Reason != tt.reason {
				t.Errorf("Reason = %q, want %q", rej.Reason, tt.reason)
			}
			if !errors.Is(err, errors.ErrInputRejected) {
				t.Error("rejection does not match ErrInputRejected")
			}
		})
	}
}

func TestLocalRelevance_MinRunes(t *testing.T) {
	if err := (LocalRelevance{MinRunes: 30}).Check("A short but real idea"); err == nil {
		t.Error("expected a too_short rejection with MinRunes 30")
	}
	if err := (LocalRelevance{MinRunes: 3}).Check("Uber"); err != nil {
		t.Errorf("Check() = %v with MinRunes 3", err)
	}
}

func TestRequest_Normalize(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		r := Request{IdeaText: "x", Personas: []persona.Persona{"Developer", "dev", "vc"}}
		if err := r.Normalize(""); err != nil {
			t.Fatalf("Normalize() = %v", err)
		}
		if r.ValidationLevel != DefaultLevel {
			t.Errorf("ValidationLevel = %q, want %q", r.ValidationLevel, DefaultLevel)
		}
		if !slices.Equal(r.Personas, []persona.Persona{persona.Developer, persona.Investor}) {
			t.Errorf("Personas = %v", r.Personas)
		}
		if r.TurnNumber != 1 {
			t.Errorf("TurnNumber = %d, want 1", r.TurnNumber)
		}
	})

	t.Run("configured default level", func(t *testing.T) {
		r := Request{Personas: []persona.Persona{persona.Skeptic}, TurnNumber: 4}
		if err := r.Normalize("Defense"); err != nil {
			t.Fatalf("Normalize() = %v", err)
		}
		if r.ValidationLevel != "defense" || r.TurnNumber != 4 {
			t.Errorf("got level %q turn %d", r.ValidationLevel, r.TurnNumber)
		}
	})

	tests := []struct {
		name  string
		req   Request
		field string
	}{
		{"unknown level", Request{ValidationLevel: "pitch", Personas: []persona.Persona{persona.Legal}}, "validationLevel"},
		{"unknown persona", Request{Personas: []persona.Persona{"wizard"}}, "personas"},
		{"no personas", Request{}, "personas"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Normalize("")
			var ve *errors.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Normalize() = %v, want *ValidationError", err)
			}
			if ve.Field != tt.field {
				t.Errorf("Field = %q, want %q", ve.Field, tt.field)
			}
		})
	}
}

func TestRequest_Previous(t *testing.T) {
	var r Request
	if got := r.Previous(); got != scorecard.Empty() {
		t.Errorf("Previous() with nil scorecard = %v", got)
	}
	zero := scorecard.Scorecard{}
	r.PreviousScorecard = &zero
	if got := r.Previous(); got != scorecard.Empty() {
		t.Errorf("Previous() with zero scorecard = %v", got)
	}
}

func TestParseTone(t *testing.T) {
	for in, want := range map[string]Tone{
		"agree":     ToneAgree,
		" BUILD ":   ToneBuild,
		"question":  ToneQuestion,
		"challenge": ToneChallenge,
		"sarcastic": ToneNeutral,
		"":          ToneNeutral,
	} {
		if got := ParseTone(in); got != want {
			t.Errorf("ParseTone(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCompleteResponses(t *testing.T) {
	reg := persona.DefaultRegistry()
	personas := []persona.Persona{persona.Designer, persona.Finance, persona.Skeptic}
	opinions := []Opinion{
		{Persona: persona.Designer, Message: "Onboarding is the product."},
		{Persona: persona.Finance, Message: "Unit economics look thin."},
	}
	wires := []responseWire{
		{Persona: "finance", Message: "Charge schools.", LinkedCategories: []string{"revenueModel", "bogus", "revenue_model"}},
		{Persona: "finance", Message: "second"},
		{Persona: "designer", Message: "   "},
		{Persona: "investor", Message: "not requested"},
	}

	got, fabricated := completeResponses(wires, personas, opinions, reg)
	if fabricated != 2 || len(got) != 3 {
		t.Fatalf("got %d responses, %d fabricated", len(got), fabricated)
	}
	if got[0].Persona != persona.Designer || !got[0].Fabricated || got[0].Message != "Onboarding is the product." {
		t.Errorf("designer = %+v", got[0])
	}
	if got[1].Fabricated || got[1].Message != "Charge schools." || len(got[1].LinkedCategories) != 1 {
		t.Errorf("finance = %+v", got[1])
	}
	if !strings.Contains(got[2].Message, reg.DisplayName(persona.Skeptic)) || !got[2].Fabricated {
		t.Errorf("skeptic = %+v, want the fallback opinion", got[2])
	}
	for _, r := range got {
		if len(r.LinkedCategories) == 0 {
			t.Errorf("%s has no linked categories", r.Persona)
		}
	}
}

func TestReconcileScores(t *testing.T) {
	prev := scorecard.ReconcileProposal(scorecard.Empty(), scorecard.Proposal{
		scorecard.Solution: {Current: 8, HasCurrent: true, Filled: true},
	})

	t.Run("never lowers and never exceeds the cap", func(t *testing.T) {
		out := reconcileScores(prev, scorecard.Proposal{
			scorecard.Solution:          {Current: 2, HasCurrent: true},
			scorecard.ProblemDefinition: {Current: 500, HasCurrent: true},
		}, nil, 3)
		if got := out.Scorecard.Get(scorecard.Solution); got.Current != 8 || !got.Filled {
			t.Errorf("solution = %+v, want 8 filled", got)
		}
		pd := out.Scorecard.Get(scorecard.ProblemDefinition)
		if pd.Current != pd.Max {
			t.Errorf("problemDefinition = %+v, want capped", pd)
		}
		if len(out.Updates) != 1 || out.Updates[0].Delta != pd.Max {
			t.Errorf("Updates = %+v", out.Updates)
		}
		if len(out.Evolution) != 1 || out.Evolution[0].Turn != 3 {
			t.Errorf("Evolution = %+v", out.Evolution)
		}
	})

	t.Run("empty proposal keeps the scorecard", func(t *testing.T) {
		out := reconcileScores(prev, nil, nil, 3)
		if out.Scorecard != prev {
			t.Errorf("Scorecard changed: %v", out.Scorecard)
		}
		if out.Updates == nil || len(out.Updates) != 0 {
			t.Errorf("Updates = %#v, want empty non-nil", out.Updates)
		}
	})
}
