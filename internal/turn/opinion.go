package turn

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Iron-Ham/ideaforge/internal/persona"
	"github.com/Iron-Ham/ideaforge/internal/prompt"
	"github.com/Iron-Ham/ideaforge/internal/stream"
	"github.com/Iron-Ham/ideaforge/internal/upstream"
)

// FallbackOpinion is the placeholder for a persona the model skipped.
func FallbackOpinion(displayName string) string {
	return fmt.Sprintf("%s could not generate an opinion this turn.", displayName)
}

type opinionWire struct {
	Persona string `json:"persona"`
	Role    string `json:"role"`
	Name    string `json:"name"`
	Message string `json:"message"`
	Opinion string `json:"opinion"`
	Text    string `json:"text"`
}

func (w opinionWire) key() string {
	for _, s := range []string{w.Persona, w.Role, w.Name} {
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

func (w opinionWire) body() string {
	for _, s := range []string{w.Message, w.Opinion, w.Text} {
		if t := strings.TrimSpace(s); t != "" {
			return t
		}
	}
	return ""
}

// ParseOpinions extracts persona opinions from model output. It accepts
// {"opinions":[...]}, a bare array of {persona, message} objects, or an
// object keyed by persona whose values are strings or {message} objects.
// Markdown fences and surrounding prose are ignored. Entries naming an
// unknown persona or carrying no text are dropped; the first entry for a
// persona wins. ok is false when nothing usable was found.
func ParseOpinions(text string) (opinions map[persona.Persona]string, ok bool) {
	raw := []byte(stream.StripFences(text))
	out := make(map[persona.Persona]string)

	add := func(key, msg string) {
		p, err := persona.Parse(key)
		if err != nil || msg == "" {
			return
		}
		if _, seen := out[p]; !seen {
			out[p] = msg
		}
	}
	addAll := func(list []opinionWire) {
		for _, w := range list {
			add(w.key(), w.body())
		}
	}

	trimmed := bytes.TrimSpace(raw)
	switch {
	case len(trimmed) > 0 && trimmed[0] == '[':
		var list []opinionWire
		if json.Unmarshal(trimmed, &list) == nil {
			addAll(list)
		}
	case len(trimmed) > 0 && trimmed[0] == '{':
		var wrapped struct {
			Opinions []opinionWire `json:"opinions"`
		}
		if json.Unmarshal(trimmed, &wrapped) == nil && len(wrapped.Opinions) > 0 {
			addAll(wrapped.Opinions)
			break
		}
		var keyed map[string]json.RawMessage
		if json.Unmarshal(trimmed, &keyed) != nil {
			break
		}
		for key, value := range keyed {
			var s string
			if json.Unmarshal(value, &s) == nil {
				add(key, strings.TrimSpace(s))
				continue
			}
			var w opinionWire
			if json.Unmarshal(value, &w) == nil {
				add(key, w.body())
			}
		}
	}
	return out, len(out) > 0
}

// assembleOpinions returns one opinion per requested persona, in request
// order, substituting the fallback text for any persona parsed lacks.
func assembleOpinions(parsed map[persona.Persona]string, personas []persona.Persona, reg *persona.Registry) (out []Opinion, fallbacks int) {
	out = make([]Opinion, 0, len(personas))
	for _, p := range personas {
		pr := reg.Profile(p)
		o := Opinion{Persona: p, DisplayName: pr.DisplayName, Icon: pr.Icon, Message: parsed[p]}
		if o.Message == "" {
			o.Message = FallbackOpinion(pr.DisplayName)
			o.Fallback = true
			fallbacks++
		}
		out = append(out, o)
	}
	return out, fallbacks
}

// collectOpinions runs the opinion call. Only a failed call is returned as
// an error; unparseable output degrades to fallback opinions.
func (r *run) collectOpinions() ([]Opinion, error) {
	p, err := prompt.Opinions(r.promptContext(nil, nil))
	if err != nil {
		return nil, err
	}
	resp, err := r.complete("opinions", upstream.Request{
		Model:       r.o.settings.Model,
		System:      p.System,
		User:        p.User,
		MaxTokens:   r.o.settings.MaxTokens,
		Temperature: r.o.settings.Temperature,
		JSON:        true,
	})
	if err != nil {
		return nil, err
	}
	r.tokens = r.tokens.Add(resp.Usage)

	parsed, ok := ParseOpinions(resp.Text)
	if !ok {
		r.logger.Warn("opinion output unparseable, using fallbacks", "bytes", len(resp.Text))
	}
	opinions, fallbacks := assembleOpinions(parsed, r.req.Personas, r.o.registry)
	if fallbacks > 0 {
		r.degraded = true
		r.logger.Warn("personas missing from opinion output", "missing", fallbacks, "requested", len(opinions))
	}
	return opinions, nil
}

// revealOpinions sends one opinion event per persona, pausing between them.
func (r *run) revealOpinions(opinions []Opinion) error {
	pacing := r.o.OpinionPacing()
	for i, o := range opinions {
		if i > 0 && pacing > 0 {
			if err := r.o.sleep(r.ctx, pacing); err != nil {
				return err
			}
		}
		if err := r.send(stream.Event{
			Type: stream.TypeOpinion,
			Data: OpinionEvent{Index: i, Total: len(opinions), Opinion: o},
		}); err != nil {
			return err
		}
	}
	return nil
}

func toPromptOpinions(opinions []Opinion, reg *persona.Registry) []prompt.Opinion {
	out := make([]prompt.Opinion, len(opinions))
	for i, o := range opinions {
		out[i] = prompt.Opinion{Persona: reg.Profile(o.Persona), Text: o.Message}
	}
	return out
}
