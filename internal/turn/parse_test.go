package turn

import (
	"encoding/json"
	"slices"
	"strings"
	"testing"

	"github.com/Iron-Ham/ideaforge/internal/persona"
	"github.com/Iron-Ham/ideaforge/internal/scorecard"
)

func TestParseOpinions(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want map[persona.Persona]string
	}{
		{
			name: "wrapped list",
			in:   `{"opinions":[{"persona":"developer","message":"Easy to build."}]}`,
			want: map[persona.Persona]string{persona.Developer: "Easy to build."},
		},
		{
			name: "bare array with alternate keys",
			in:   `[{"role":"investor","opinion":"Crowded market."},{"name":"end user","text":"I would try it."}]`,
			want: map[persona.Persona]string{persona.Investor: "Crowded market.", persona.EndUser: "I would try it."},
		},
		{
			name: "keyed object",
			in:   `{"developer":"Easy.","designer":{"message":"Needs onboarding."},"wizard":"ignored"}`,
			want: map[persona.Persona]string{persona.Developer: "Easy.", persona.Designer: "Needs onboarding."},
		},
		{
			name: "fenced",
			in:   "Here you go:\n```json\n[{\"persona\":\"skeptic\",\"message\":\"Prove it.\"}]\n```",
			want: map[persona.Persona]string{persona.Skeptic: "Prove it."},
		},
		{
			name: "first entry wins and blanks drop",
			in:   `[{"persona":"legal","message":"  "},{"persona":"legal","message":"Check COPPA."},{"persona":"legal","message":"later"}]`,
			want: map[persona.Persona]string{persona.Legal: "Check COPPA."},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseOpinions(tt.in)
			if !ok {
				t.Fatal("ParseOpinions() ok = false")
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for p, msg := range tt.want {
				if got[p] != msg {
					t.Errorf("opinion[%s] = %q, want %q", p, got[p], msg)
				}
			}
		})
	}
}

func TestParseOpinions_Unusable(t *testing.T) {
	for _, in := range []string{"", "I cannot help with that.", `{"opinions":[]}`, `[{"persona":"wizard","message":"hi"}]`, `{"developer":`} {
		if got, ok := ParseOpinions(in); ok {
			t.Errorf("ParseOpinions(%q) = %v, true", in, got)
		}
	}
}

func TestAssembleOpinions(t *testing.T) {
	reg := persona.DefaultRegistry()
	parsed := map[persona.Persona]string{persona.Investor: "Who pays?"}
	got, fallbacks := assembleOpinions(parsed, []persona.Persona{persona.Developer, persona.Investor}, reg)
	if fallbacks != 1 || len(got) != 2 {
		t.Fatalf("got %d opinions, %d fallbacks", len(got), fallbacks)
	}
	if !got[0].Fallback || got[0].Message != FallbackOpinion(reg.DisplayName(persona.Developer)) {
		t.Errorf("developer = %+v, want fallback", got[0])
	}
	if got[1].Fallback || got[1].Message != "Who pays?" || got[1].DisplayName == "" {
		t.Errorf("investor = %+v", got[1])
	}
}

func TestNormalizeCategories(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"empty", nil, []string{"Other"}},
		{"unknown only", []string{"Pizza"}, []string{"Other"}},
		{"other dropped when something matched", []string{"Other", "saas"}, []string{"SaaS"}},
		{"aliases and dedupe", []string{"AI", "ml", "E-Commerce", "ecommerce"}, []string{"AI/ML", "E-commerce"}},
		{"capped", []string{"fintech", "social", "hardware", "education"}, []string{"Fintech", "Social", "Hardware"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeCategories(tt.in); !slices.Equal(got, tt.want) {
				t.Errorf("NormalizeCategories(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseCategories(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{`{"categories":["Healthcare","AI/ML"]}`, []string{"Healthcare", "AI/ML"}},
		{"```json\n[\"Productivity\"]\n```", []string{"Productivity"}},
		{"not json", []string{"Other"}},
	}
	for _, tt := range tests {
		if got := ParseCategories(tt.in); !slices.Equal(got, tt.want) {
			t.Errorf("ParseCategories(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDecodeSynthesis(t *testing.T) {
	t.Run("complete document", func(t *testing.T) {
		doc, ok := decodeSynthesis(synthesisJSON)
		if !ok {
			t.Fatal("decodeSynthesis() ok = false")
		}
		m := doc.metrics()
		if m.Readiness != 100 || m.Confidence != 55 {
			t.Errorf("metrics = %+v, want readiness 100 confidence 55", m)
		}
		if !slices.Equal(m.KeyRisks, []string{"willingness to pay"}) {
			t.Errorf("KeyRisks = %q", m.KeyRisks)
		}
		ups := doc.updates()
		if len(ups) != 2 || ups[0].Category != scorecard.ProblemDefinition {
			t.Errorf("updates = %+v", ups)
		}
	})

	t.Run("truncated document", func(t *testing.T) {
		doc, ok := decodeSynthesis(synthesisJSON[:200])
		if !ok {
			t.Fatal("decodeSynthesis() ok = false on a truncated prefix")
		}
		if len(doc.Discussion) == 0 {
			t.Error("truncated prefix lost its discussion")
		}
	})

	t.Run("mistyped fields are dropped, not the document", func(t *testing.T) {
		text := strings.NewReplacer(
			`"linkedCategories":["revenue_model"]`, `"linkedCategories":"revenue_model"`,
			`"replyTo":"investor","tone":"build"`, `"replyTo":1,"tone":"build"`,
			`"nextSteps":["interview buyers"]`, `"nextSteps":{"first":"interview buyers"}`,
		).Replace(synthesisJSON)
		doc, ok := decodeSynthesis(text)
		if !ok {
			t.Fatal("decodeSynthesis() ok = false")
		}
		if len(doc.Discussion) != 3 || doc.Discussion[1].ReplyTo != "" {
			t.Errorf("discussion = %+v", doc.Discussion)
		}
		if got := doc.Responses[1].LinkedCategories; !slices.Equal(got, looseStrings{"revenue_model"}) {
			t.Errorf("single linked category = %q", got)
		}
		if len(doc.metrics().NextSteps) != 0 {
			t.Errorf("NextSteps = %q, want empty", doc.metrics().NextSteps)
		}
		var p scorecard.Proposal
		if err := json.Unmarshal(doc.Scorecard, &p); err != nil || p[scorecard.Feasibility].Current != 9 {
			t.Errorf("scorecard proposal = %v, %v", p, err)
		}
	})

	t.Run("garbage", func(t *testing.T) {
		if _, ok := decodeSynthesis("the panel could not agree"); ok {
			t.Error("decodeSynthesis() ok = true for prose")
		}
		if _, ok := decodeSynthesis(`{"notes":"nothing useful"}`); ok {
			t.Error("decodeSynthesis() ok = true for a document with no known fields")
		}
	})
}

func TestDiscussionTurns(t *testing.T) {
	got := discussionTurns([]discussionWire{
		{Persona: "Product Manager", Message: " Scope it down. ", ReplyTo: "wizard", Tone: "Agree"},
		{Persona: "narrator", Message: "Meanwhile", Tone: "whisper"},
	}, persona.DefaultRegistry())
	if got[0].Persona != persona.ProductManager || got[0].Message != "Scope it down." || got[0].Tone != ToneAgree || got[0].ReplyTo != "" {
		t.Errorf("first turn = %+v", got[0])
	}
	if got[1].Persona != "narrator" || got[1].Tone != ToneNeutral {
		t.Errorf("second turn = %+v", got[1])
	}
}
