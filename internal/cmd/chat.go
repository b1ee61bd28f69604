package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/ideaforge/internal/logging"
	"github.com/Iron-Ham/ideaforge/internal/persona"
	"github.com/Iron-Ham/ideaforge/internal/tui"
	"github.com/Iron-Ham/ideaforge/internal/tui/styles"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the persona panel in the terminal",
	Long: `Start an interactive chat. The first message is the idea; later
messages continue the conversation. Session state lives in memory for the
duration of the chat.

Commands:
  /accept N        stage the advice of response N for the next turn
  /personas a,b,c  change the panel
  /score           show the scorecard
  /quit            leave`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().String("level", "", "validation level: sketch, mvp or defense (default turn.default_level)")
	chatCmd.Flags().StringSlice("personas", nil, "panel personas (default turn.default_personas)")
	chatCmd.Flags().String("theme", "", "built-in theme name or theme file")
}

func runChat(cmd *cobra.Command, args []string) error {
	if _, ok := terminalFD(os.Stdout); !ok {
		return errors.New("chat needs a terminal; use 'ideaforge turn' for scripted runs")
	}
	theme, _ := cmd.Flags().GetString("theme")
	palette, err := styles.ResolvePalette(theme)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// the alt screen owns the terminal; only file logging is allowed
	logger := logging.NopLogger()
	if cfg.Logging.Dir != "" {
		if logger, err = newLogger(cfg); err != nil {
			return err
		}
	}
	rt, err := newRuntime(cfg, logger)
	if err != nil {
		_ = logger.Close()
		return err
	}
	defer rt.Close()

	level, _ := cmd.Flags().GetString("level")
	if level == "" {
		level = rt.cfg.Turn.DefaultLevel
	}
	names, _ := cmd.Flags().GetStringSlice("personas")
	if len(names) == 0 {
		names = rt.cfg.Turn.DefaultPersonas
	}
	personas, err := persona.ParseAll(names)
	if err != nil {
		return err
	}

	session := tui.NewSession(rt.registry, level, personas)
	session.EvolutionTurns = rt.cfg.Reflection.EvolutionTurns
	return tui.Run(cmd.Context(), rt.orchestrator, session, styles.New(palette))
}
