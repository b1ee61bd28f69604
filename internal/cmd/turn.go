package cmd

import (
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Iron-Ham/ideaforge/internal/errors"
	"github.com/Iron-Ham/ideaforge/internal/stream"
	"github.com/Iron-Ham/ideaforge/internal/tui"
	"github.com/Iron-Ham/ideaforge/internal/tui/styles"
	"github.com/Iron-Ham/ideaforge/internal/turn"
)

var turnCmd = &cobra.Command{
	Use:   "turn",
	Short: "Run one turn from a JSON request",
	Long: `Run a single turn against the configured upstream.

The request is a JSON turn request read from --request (or stdin when the
flag is "-"). Events are printed as JSON lines when stdout is not a
terminal, and rendered for humans otherwise.`,
	Example: `  echo '{"ideaText":"A marketplace for renting camping gear","personas":["developer","investor"]}' | ideaforge turn --request -`,
	RunE: runTurn,
}

func init() {
	rootCmd.AddCommand(turnCmd)
	turnCmd.Flags().StringP("request", "r", "-", "request file, or - for stdin")
	turnCmd.Flags().String("theme", "", "built-in theme name or theme file")
	turnCmd.Flags().Bool("json", false, "force JSON lines output")
}

func readRequest(path string, stdin io.Reader) (turn.Request, error) {
	var req turn.Request
	var data []byte
	var err error
	if path == "-" || path == "" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return req, errors.Wrap(err, "reading request")
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return req, errors.NewValidationError("request is not valid JSON").WithCause(err)
	}
	return req, nil
}

func runTurn(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("request")
	req, err := readRequest(path, cmd.InOrStdin())
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rt, err := newRuntime(cfg, nil)
	if err != nil {
		return err
	}
	defer rt.Close()
	// no pacing in one-shot mode
	rt.orchestrator.SetOpinionPacing(0)

	out := cmd.OutOrStdout()
	var em stream.Emitter
	forceJSON, _ := cmd.Flags().GetBool("json")
	if fd, ok := terminalFD(out); ok && !forceJSON {
		theme, _ := cmd.Flags().GetString("theme")
		palette, err := styles.ResolvePalette(theme)
		if err != nil {
			return err
		}
		width, _, _ := term.GetSize(fd)
		em = newTextEmitter(out, tui.Renderer{Styles: styles.New(palette), Width: width})
	} else {
		em = newJSONLinesEmitter(out)
	}

	_, err = rt.orchestrator.Run(cmd.Context(), req, em)
	return err
}

// terminalFD reports whether w is a terminal.
func terminalFD(w io.Writer) (int, bool) {
	f, ok := w.(*os.File)
	if !ok {
		return 0, false
	}
	fd := int(f.Fd())
	return fd, term.IsTerminal(fd)
}

// lineEmitter writes one formatted block per event.
type lineEmitter struct {
	mu     sync.Mutex
	w      io.Writer
	format func(stream.Event) ([]byte, error)
	closed bool
	done   []byte
}

func newJSONLinesEmitter(w io.Writer) *lineEmitter {
	return &lineEmitter{
		w: w,
		format: func(ev stream.Event) ([]byte, error) {
			b, err := json.Marshal(ev)
			return append(b, '\n'), err
		},
		done: []byte(`{"type":"done"}` + "\n"),
	}
}

func newTextEmitter(w io.Writer, r tui.Renderer) *lineEmitter {
	return &lineEmitter{
		w: w,
		format: func(ev stream.Event) ([]byte, error) {
			block := r.Event(ev)
			if block == "" {
				return nil, nil
			}
			return []byte(block + "\n\n"), nil
		},
	}
}

func (e *lineEmitter) Send(ev stream.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errors.ErrTransportClosed
	}
	b, err := e.format(ev)
	if err != nil {
		return err
	}
	if _, err := e.w.Write(b); err != nil {
		e.closed = true
		return errors.Join(errors.ErrTransportClosed, err)
	}
	return nil
}

func (e *lineEmitter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	if len(e.done) > 0 {
		_, err := e.w.Write(e.done)
		return err
	}
	return nil
}

func (e *lineEmitter) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}
