package tui

import (
	"fmt"
	"strings"

	"github.com/Iron-Ham/ideaforge/internal/reflection"
	"github.com/Iron-Ham/ideaforge/internal/scorecard"
	"github.com/Iron-Ham/ideaforge/internal/stream"
	"github.com/Iron-Ham/ideaforge/internal/tui/styles"
	"github.com/Iron-Ham/ideaforge/internal/turn"
	"github.com/Iron-Ham/ideaforge/internal/util"
)

const scoreBarWidth = 20

// Renderer turns turn events into styled text blocks.
type Renderer struct {
	Styles *styles.Styles
	Width  int
}

func (r Renderer) wrap(s string, indent int) string {
	w := r.Width - indent
	if r.Width <= 0 || w < 20 {
		return s
	}
	return util.WrapANSI(s, w)
}

// Event renders one event. Events with nothing to show yield "".
func (r Renderer) Event(ev stream.Event) string {
	st := r.Styles
	switch d := ev.Data.(type) {
	case turn.OpinionEvent:
		head := st.Persona.Render(fmt.Sprintf("%s %s", d.Icon, d.DisplayName))
		if d.Fallback {
			head += st.Muted.Render("  (no opinion)")
		}
		return head + "\n" + util.Indent(r.wrap(d.Message, 2), "  ")
	case turn.SynthesizingEvent:
		return st.Subtitle.Render("The panel is discussing...")
	case turn.DiscussionEvent:
		return r.discussion(d.DiscussionTurn)
	case *turn.TurnResult:
		return r.Result(d)
	case turn.WarningEvent:
		return st.Warning.Render("⚠ " + d.Message)
	case turn.ErrorEvent:
		return st.Error.Render("✗ " + d.Message)
	}
	if ev.Type == stream.TypeError {
		return st.Error.Render(fmt.Sprintf("✗ %v", ev.Data))
	}
	return ""
}

func (r Renderer) discussion(d turn.DiscussionTurn) string {
	st := r.Styles
	tone := string(d.Tone)
	marker := st.Text.Foreground(st.ToneColor(tone)).Render(styles.ToneIcon(tone))
	name := d.DisplayName
	if name == "" {
		name = string(d.Persona)
	}
	head := fmt.Sprintf("%s %s", marker, st.Persona.Render(name))
	if d.ReplyTo != "" {
		head += st.Muted.Render(" → " + string(d.ReplyTo))
	}
	return head + "\n" + util.Indent(r.wrap(d.Message, 4), "    ")
}

// Result renders the numbered responses, the metrics and the score change.
func (r Renderer) Result(res *turn.TurnResult) string {
	st := r.Styles
	var sb strings.Builder
	for i, p := range res.Responses {
		fmt.Fprintf(&sb, "%s %s\n", st.HelpKey.Render(fmt.Sprintf("[%d]", i+1)), st.Persona.Render(p.DisplayName))
		sb.WriteString(util.Indent(r.wrap(p.Message, 4), "    "))
		sb.WriteString("\n")
		if p.Advice != "" {
			sb.WriteString(util.Indent(st.Success.Render(r.wrap("→ "+p.Advice, 4)), "    "))
			sb.WriteString("\n")
		}
	}
	delta := 0
	for _, u := range res.CategoryUpdates {
		delta += u.Delta
	}
	fmt.Fprintf(&sb, "\n%s %d/%d", st.Title.Render("Score"), res.Scorecard.Total(), maxTotal(res.Scorecard))
	if delta > 0 {
		sb.WriteString(st.Success.Render(fmt.Sprintf("  +%d", delta)))
	}
	fmt.Fprintf(&sb, "   %s %d%%  %s %d%%",
		st.Muted.Render("readiness"), res.Metrics.Readiness,
		st.Muted.Render("confidence"), res.Metrics.Confidence)
	for _, u := range res.CategoryUpdates {
		line := fmt.Sprintf("  +%d %s", u.Delta, u.Category.DisplayName())
		if u.Reason != "" {
			line += ": " + u.Reason
		}
		sb.WriteString("\n" + st.Muted.Render(line))
	}
	if len(res.Metrics.KeyRisks) > 0 {
		sb.WriteString("\n" + st.Warning.Render("Risks: "+strings.Join(res.Metrics.KeyRisks, "; ")))
	}
	if len(res.Metrics.NextSteps) > 0 {
		sb.WriteString("\n" + st.Text.Render("Next: "+strings.Join(res.Metrics.NextSteps, "; ")))
	}
	if res.Degraded {
		sb.WriteString("\n" + st.Warning.Render("Some agents failed; this turn is partial."))
	}
	return sb.String()
}

func maxTotal(s scorecard.Scorecard) int {
	total := 0
	for _, c := range scorecard.All() {
		total += s.Get(c).Max
	}
	return total
}

// Scorecard renders every category as a bar.
func (r Renderer) Scorecard(s scorecard.Scorecard) string {
	st := r.Styles
	var lines []string
	for _, c := range scorecard.All() {
		e := s.Get(c)
		mark := " "
		if e.Filled {
			mark = st.Success.Render("✓")
		}
		lines = append(lines, fmt.Sprintf("%s %-22s %s %2d/%d",
			mark, c.DisplayName(), st.ScoreBar(e.Current, e.Max, scoreBarWidth), e.Current, e.Max))
	}
	lines = append(lines, fmt.Sprintf("  %-22s %d/%d", "Total", s.Total(), maxTotal(s)))
	return st.Scorecard.Render(strings.Join(lines, "\n"))
}

// Staged renders an accepted reflection.
func (r Renderer) Staged(s reflection.StagedReflection) string {
	return r.Styles.Success.Render(fmt.Sprintf("✓ staged %s advice (impact %s): %s",
		s.Persona, s.ImpactLevel(), util.TruncateString(s.ReflectedText, 80)))
}
