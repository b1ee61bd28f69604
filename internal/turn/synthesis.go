package turn

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/Iron-Ham/ideaforge/internal/errors"
	"github.com/Iron-Ham/ideaforge/internal/persona"
	"github.com/Iron-Ham/ideaforge/internal/prompt"
	"github.com/Iron-Ham/ideaforge/internal/reflection"
	"github.com/Iron-Ham/ideaforge/internal/scorecard"
	"github.com/Iron-Ham/ideaforge/internal/stream"
	"github.com/Iron-Ham/ideaforge/internal/upstream"
)

// looseInt decodes numbers, numeric strings and floats; anything else
// decodes to zero rather than failing the whole document.
type looseInt int

func (n *looseInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*n = looseInt(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		s = strings.TrimSuffix(strings.TrimSpace(s), "%")
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			*n = looseInt(f)
			return nil
		}
	}
	*n = 0
	return nil
}

// looseStrings decodes a list of strings or a single string.
type looseStrings []string

func (l *looseStrings) UnmarshalJSON(b []byte) error {
	if string(bytes.TrimSpace(b)) == "null" {
		*l = nil
		return nil
	}
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		*l = looseStrings{one}
		return nil
	}
	var many []string
	if err := stream.Unmarshal(b, &many); err != nil {
		*l = nil
		return nil
	}
	*l = many
	return nil
}

type discussionWire struct {
	Persona string `json:"persona"`
	Message string `json:"message"`
	ReplyTo string `json:"replyTo"`
	Tone    string `json:"tone"`
}

type responseWire struct {
	Persona          string   `json:"persona"`
	Message          string   `json:"message"`
	Advice           string   `json:"advice"`
	LinkedCategories looseStrings `json:"linkedCategories"`
}

type metricsWire struct {
	Readiness  looseInt `json:"readiness"`
	Confidence looseInt `json:"confidence"`
	KeyRisks   looseStrings `json:"keyRisks"`
	NextSteps  looseStrings `json:"nextSteps"`
}

type updateWire struct {
	Category string   `json:"category"`
	Delta    looseInt `json:"delta"`
	Reason   string   `json:"reason"`
}

// synthesisDoc is the schema the synthesis call streams. Partial prefixes
// decode into it too.
type synthesisDoc struct {
	Discussion      []discussionWire `json:"discussion"`
	Responses       []responseWire   `json:"responses"`
	Scorecard       json.RawMessage  `json:"scorecard"`
	Metrics         *metricsWire     `json:"metrics"`
	CategoryUpdates []updateWire     `json:"categoryUpdates"`
}

type synthesisOutput struct {
	Discussion   []DiscussionTurn
	Responses    []responseWire
	Proposal     scorecard.Proposal
	HasScorecard bool
	Metrics      Metrics
	Updates      []scorecard.CategoryUpdate
	Usage        upstream.Usage
}

func (d *synthesisDoc) usable() bool {
	return len(d.Discussion) > 0 || len(d.Responses) > 0 || len(bytes.TrimSpace(d.Scorecard)) > 0
}

// decodeSynthesis decodes the full synthesis text. A truncated document is
// repaired and decoded as far as it goes; mistyped fields are left zero.
func decodeSynthesis(text string) (synthesisDoc, bool) {
	var doc synthesisDoc
	if err := stream.Unmarshal([]byte(stream.StripFences(text)), &doc); err == nil {
		return doc, doc.usable()
	}
	doc = synthesisDoc{}
	if stream.DecodePartial(text, &doc) {
		return doc, doc.usable()
	}
	return synthesisDoc{}, false
}

func parsePersonaLoose(s string) persona.Persona {
	if p, err := persona.Parse(s); err == nil {
		return p
	}
	return persona.Persona(strings.TrimSpace(s))
}

func discussionTurns(wires []discussionWire, reg *persona.Registry) []DiscussionTurn {
	out := make([]DiscussionTurn, len(wires))
	for i, w := range wires {
		p := parsePersonaLoose(w.Persona)
		t := DiscussionTurn{
			Persona:     p,
			DisplayName: reg.DisplayName(p),
			Message:     strings.TrimSpace(w.Message),
			Tone:        ParseTone(w.Tone),
		}
		if reply, err := persona.Parse(w.ReplyTo); err == nil {
			t.ReplyTo = reply
		}
		out[i] = t
	}
	return out
}

func clampPercent(n looseInt) int {
	return min(max(int(n), 0), 100)
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (d *synthesisDoc) metrics() Metrics {
	m := Metrics{KeyRisks: []string{}, NextSteps: []string{}}
	if d.Metrics == nil {
		return m
	}
	m.Readiness = clampPercent(d.Metrics.Readiness)
	m.Confidence = clampPercent(d.Metrics.Confidence)
	m.KeyRisks = cleanList(d.Metrics.KeyRisks)
	m.NextSteps = cleanList(d.Metrics.NextSteps)
	return m
}

func (d *synthesisDoc) updates() []scorecard.CategoryUpdate {
	var out []scorecard.CategoryUpdate
	for _, u := range d.CategoryUpdates {
		c, err := scorecard.Parse(u.Category)
		if err != nil {
			continue
		}
		out = append(out, scorecard.CategoryUpdate{Category: c, Delta: max(int(u.Delta), 0), Reason: strings.TrimSpace(u.Reason)})
	}
	return out
}

// synthesize streams the synthesis call, revealing discussion lines as they
// complete. Lines still pending when the stream ends, cleanly or not, are
// flushed before synthesize returns.
func (r *run) synthesize(opinions []prompt.Opinion, sections []prompt.Section) (*synthesisOutput, error) {
	pc := r.promptContext(opinions, sections)
	pc.Reflection = r.o.reflections.Build(reflection.Input{
		Staged:         r.req.StagedReflections,
		CompactSummary: r.req.CompactSummary,
		CurrentTurn:    r.req.TurnNumber,
		Evolution:      r.req.ScoreEvolution,
	})
	if r.o.reflections.NeedsCompaction(r.req.StagedReflections, r.req.CompactSummary) {
		r.logger.Info("reflections outside the episodic window have no summary", "staged", len(r.req.StagedReflections))
	}
	p, err := prompt.Synthesis(pc)
	if err != nil {
		return nil, err
	}
	req := upstream.Request{
		Model:       r.o.settings.synthesisModel(),
		System:      p.System,
		User:        p.User,
		MaxTokens:   r.o.settings.MaxTokens,
		Temperature: r.o.settings.Temperature,
		JSON:        true,
	}

	rev := NewRevealer(r.o.settings.DiscussionMinRunes)
	var (
		text  string
		lines []DiscussionTurn
	)
	// the final discussion is exactly what was revealed, in order
	reveal := func(idx []int) error {
		for _, i := range idx {
			if err := r.send(stream.Event{
				Type: stream.TypeDiscussion,
				Data: DiscussionEvent{Index: len(r.shown), DiscussionTurn: lines[i]},
			}); err != nil {
				return err
			}
			r.shown = append(r.shown, lines[i])
		}
		return nil
	}

	retrier := r.retrier.WithAttemptTimeout(r.o.settings.StreamTimeout)
	resp, err := upstream.Call(r.ctx, retrier, "synthesis", func(ctx context.Context) (upstream.Response, error) {
		var buf strings.Builder
		resp, err := r.o.model.Stream(ctx, req, func(delta string) error {
			buf.WriteString(delta)
			text = buf.String()
			var doc synthesisDoc
			if !stream.DecodePartial(text, &doc) {
				return nil
			}
			lines = discussionTurns(doc.Discussion, r.o.registry)
			return reveal(rev.Next(lines))
		})
		if err != nil && buf.Len() > 0 && errors.IsRateLimited(err) {
			// deltas were already revealed; this attempt cannot be retried
			err = errors.NewUpstreamError("rate limited mid-stream: "+err.Error(), errors.ErrSynthesisFailed).
				WithCall("synthesis")
		}
		return resp, err
	})
	if err != nil {
		if ferr := reveal(rev.Flush(lines)); ferr != nil {
			return nil, ferr
		}
		return nil, err
	}
	if resp.Text != "" {
		text = resp.Text
	}

	doc, ok := decodeSynthesis(text)
	if !ok {
		if ferr := reveal(rev.Flush(lines)); ferr != nil {
			return nil, ferr
		}
		return nil, errors.NewUpstreamError("synthesis produced no usable document", errors.ErrMalformedOutput).
			WithCall("synthesis")
	}
	lines = discussionTurns(doc.Discussion, r.o.registry)
	if err := reveal(rev.Flush(lines)); err != nil {
		return nil, err
	}

	out := &synthesisOutput{
		Discussion: r.revealed(),
		Responses:  doc.Responses,
		Metrics:    doc.metrics(),
		Updates:    doc.updates(),
		Usage:      resp.Usage,
	}
	if raw := bytes.TrimSpace(doc.Scorecard); len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &out.Proposal); err != nil {
			r.degraded = true
			r.logger.Warn("synthesis scorecard unreadable, keeping previous scores", "error", err)
		} else {
			out.HasScorecard = true
		}
	}
	return out, nil
}

func (r *run) revealed() []DiscussionTurn {
	return append(make([]DiscussionTurn, 0, len(r.shown)), r.shown...)
}
