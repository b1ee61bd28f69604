package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Iron-Ham/ideaforge/internal/stream"
	"github.com/Iron-Ham/ideaforge/internal/tui/styles"
	"github.com/Iron-Ham/ideaforge/internal/turn"
	"github.com/Iron-Ham/ideaforge/internal/util"
)

// Runner executes one turn, streaming its events to em.
type Runner interface {
	Run(ctx context.Context, req turn.Request, em stream.Emitter) (*turn.TurnResult, error)
}

// eventBuffer is how many events may queue before the turn blocks on the UI.
const eventBuffer = 32

type eventMsg struct {
	ev stream.Event
}

type turnDoneMsg struct {
	req    turn.Request
	result *turn.TurnResult
	err    error
}

// Model is the bubbletea model of the chat client.
type Model struct {
	ctx     context.Context
	runner  Runner
	session *Session
	styles  *styles.Styles

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	blocks []string
	status string
	width  int
	height int
	ready  bool

	busy   bool
	phase  string
	events <-chan stream.Event
	done   <-chan turnDoneMsg
	cancel context.CancelFunc
}

// NewModel creates the chat model. st may be nil for the default theme.
func NewModel(ctx context.Context, runner Runner, session *Session, st *styles.Styles) Model {
	if st == nil {
		st = styles.New(nil)
	}
	in := textinput.New()
	in.Placeholder = "Describe your idea..."
	in.Prompt = st.Prompt.Render("› ")
	in.CharLimit = 4000
	in.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = st.Title

	return Model{
		ctx:      ctx,
		runner:   runner,
		session:  session,
		styles:   st,
		input:    in,
		viewport: viewport.New(80, 20),
		spinner:  sp,
		width:    80,
		height:   24,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) renderer() Renderer {
	return Renderer{Styles: m.styles, Width: m.width}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-4, 1)
		m.input.Width = max(msg.Width-4, 10)
		m.ready = true
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case eventMsg:
		m.observe(msg.ev)
		return m, waitForEvent(m.events, m.done)

	case turnDoneMsg:
		return m.finish(msg), nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		if m.busy {
			m.cancel()
			m.status = "cancelling turn..."
			return m, nil
		}
		return m, tea.Quit
	case tea.KeyEsc:
		if m.busy {
			m.cancel()
			m.status = "cancelling turn..."
		}
		return m, nil
	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	case tea.KeyEnter:
		if m.busy {
			return m, nil
		}
		line := m.input.Value()
		m.input.Reset()
		return m.submit(line)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit(line string) (tea.Model, tea.Cmd) {
	if strings.TrimSpace(line) == "" {
		return m, nil
	}
	c, err := parseCommand(line)
	if err != nil {
		m.status = err.Error()
		return m, nil
	}
	m.status = ""
	r := m.renderer()
	switch c.kind {
	case cmdQuit:
		return m, tea.Quit
	case cmdHelp:
		m.append(m.help())
	case cmdScore:
		m.append(r.Scorecard(m.session.Scorecard))
	case cmdAccept:
		staged, err := m.session.Accept(c.n)
		if err != nil {
			m.status = err.Error()
			return m, nil
		}
		m.append(r.Staged(staged))
	case cmdPersonas:
		if err := m.session.SetPersonas(c.args); err != nil {
			m.status = err.Error()
			return m, nil
		}
		names := make([]string, len(m.session.Personas))
		for i, p := range m.session.Personas {
			names[i] = string(p)
		}
		m.append(m.styles.Muted.Render("panel: " + strings.Join(names, ", ")))
	case cmdMessage:
		m.append(m.styles.Prompt.Render("› ") + m.styles.Text.Render(r.wrap(c.text, 2)))
		return m.start(m.session.Request(c.text))
	}
	return m, nil
}

// start launches the turn in the background. Events arrive as eventMsg; the
// channel closes when the turn ends and the result follows as turnDoneMsg.
func (m Model) start(req turn.Request) (tea.Model, tea.Cmd) {
	ctx, cancel := context.WithCancel(m.ctx)
	em := stream.NewChanEmitter(ctx, eventBuffer)
	done := make(chan turnDoneMsg, 1)
	runner := m.runner
	go func() {
		res, err := runner.Run(ctx, req, em)
		done <- turnDoneMsg{req: req, result: res, err: err}
	}()

	m.busy = true
	m.phase = "collecting opinions"
	m.cancel = cancel
	m.events = em.Events()
	m.done = done
	return m, tea.Batch(m.spinner.Tick, waitForEvent(m.events, m.done))
}

func waitForEvent(events <-chan stream.Event, done <-chan turnDoneMsg) tea.Cmd {
	return func() tea.Msg {
		if ev, ok := <-events; ok {
			return eventMsg{ev: ev}
		}
		return <-done
	}
}

func (m *Model) observe(ev stream.Event) {
	switch ev.Type {
	case stream.TypeSynthesizing:
		m.phase = "synthesizing"
	case stream.TypeDiscussion:
		m.phase = "discussing"
	}
	if block := m.renderer().Event(ev); block != "" {
		m.append(block)
	}
}

func (m Model) finish(msg turnDoneMsg) Model {
	m.busy = false
	m.phase = ""
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.events, m.done = nil, nil
	switch {
	case msg.err != nil:
		m.status = "turn failed: " + msg.err.Error()
	case msg.result != nil:
		m.session.Apply(msg.req, msg.result)
		m.status = "/accept N to keep advice for the next turn"
	}
	return m
}

func (m *Model) append(block string) {
	m.blocks = append(m.blocks, block)
	m.refresh()
}

func (m *Model) refresh() {
	m.viewport.SetContent(strings.Join(m.blocks, "\n\n"))
	m.viewport.GotoBottom()
}

func (m Model) help() string {
	var lines []string
	for _, h := range helpLines {
		lines = append(lines, fmt.Sprintf("%s  %s", m.styles.HelpKey.Render(fmt.Sprintf("%-14s", h[0])), m.styles.HelpDesc.Render(h[1])))
	}
	return strings.Join(lines, "\n")
}

func (m Model) statusLine() string {
	s := m.session
	var left string
	if m.busy {
		left = m.spinner.View() + " " + m.phase
	} else {
		left = fmt.Sprintf("turn %d · score %d/%d · staged %d · %s",
			s.Turn, s.Scorecard.Total(), maxTotal(s.Scorecard), len(s.Staged), s.Level)
	}
	if m.status != "" {
		left += "  " + m.status
	}
	return m.styles.StatusBar.Width(m.width).Render(util.TruncateANSI(left, max(m.width-2, 10)))
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "loading..."
	}
	title := m.styles.Title.Render("ideaforge")
	if idea := m.session.IdeaText; idea != "" {
		title += "  " + m.styles.Subtitle.Render(util.TruncateString(idea, max(m.width-14, 10)))
	}
	return strings.Join([]string{title, m.viewport.View(), m.statusLine(), m.input.View()}, "\n")
}

// Run starts the chat client and blocks until it exits.
func Run(ctx context.Context, runner Runner, session *Session, st *styles.Styles) error {
	p := tea.NewProgram(NewModel(ctx, runner, session, st), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
