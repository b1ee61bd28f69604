package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/ideaforge/internal/config"
	"github.com/Iron-Ham/ideaforge/internal/event"
	"github.com/Iron-Ham/ideaforge/internal/logging"
	"github.com/Iron-Ham/ideaforge/internal/server"
	"github.com/Iron-Ham/ideaforge/internal/turn"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve turns over HTTP",
	Long: `Start the HTTP server. Turns stream as server-sent events from
POST /api/turn (stateless) and POST /api/sessions/:id/turns (persisted).

The config file is watched; changes to logging.level and
turn.opinion_pacing_ms apply without a restart.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	serveCmd.Flags().Bool("stateless", false, "disable the session store and session routes")
	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rt, err := newRuntime(cfg, nil)
	if err != nil {
		return err
	}
	defer rt.Close()
	logger := rt.logger

	event.LogEvents(rt.bus, logger)
	stats := &event.Stats{}
	stats.Attach(rt.bus)

	// stays a nil interface in stateless mode
	var sessions server.Sessions
	if stateless, _ := cmd.Flags().GetBool("stateless"); !stateless {
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()
		sessions = st
		logger.Info("session store opened", "driver", st.Driver())
	}

	srv, err := server.New(rt.orchestrator, sessions, logger.With("component", "server"), server.Options{
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		WebSocket:       cfg.Server.WebSocket,
		BodyLimitKB:     cfg.Server.BodyLimitKB,
		EvolutionTurns:  cfg.Reflection.EvolutionTurns,
		DefaultLevel:    cfg.Turn.DefaultLevel,
		DefaultPersonas: cfg.Turn.DefaultPersonas,
		Stats:           stats,
	})
	if err != nil {
		return err
	}

	watchConfig(logger, rt.orchestrator, rt.bus)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Listen(cfg.Server.Addr) }()

	select {
	case err := <-errCh:
		return fmt.Errorf("server stopped: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", cfg.Server.ShutdownTimeout())
	if err := srv.Shutdown(cfg.Server.ShutdownTimeout()); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// watchConfig applies hot-reloadable settings when the config file changes.
// Invalid files are logged and ignored.
func watchConfig(logger *logging.Logger, orch *turn.Orchestrator, bus *event.Bus) {
	if viper.ConfigFileUsed() == "" {
		return
	}
	viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		applyReload(logger, orch, bus, e.Name)
	})
	viper.WatchConfig()
}

func applyReload(logger *logging.Logger, orch *turn.Orchestrator, bus *event.Bus, path string) {
	cfg, err := config.Load()
	if err != nil {
		logger.Warn("ignoring invalid config change", "path", path, "error", err)
		return
	}
	logger.SetLevel(cfg.Logging.Level)
	orch.SetOpinionPacing(cfg.Turn.OpinionPacing())
	logger.Debug("applied config", "level", cfg.Logging.Level, "opinion_pacing", cfg.Turn.OpinionPacing())
	bus.Publish(event.NewConfigReloadedEvent(path))
}
