package cmd

import (
	"fmt"

	"github.com/Iron-Ham/ideaforge/internal/config"
	"github.com/Iron-Ham/ideaforge/internal/errors"
	"github.com/Iron-Ham/ideaforge/internal/event"
	"github.com/Iron-Ham/ideaforge/internal/logging"
	"github.com/Iron-Ham/ideaforge/internal/persona"
	"github.com/Iron-Ham/ideaforge/internal/reflection"
	"github.com/Iron-Ham/ideaforge/internal/store"
	"github.com/Iron-Ham/ideaforge/internal/turn"
	"github.com/Iron-Ham/ideaforge/internal/upstream"
)

// runtime is everything a command needs to run turns.
type runtime struct {
	cfg          *config.Config
	logger       *logging.Logger
	bus          *event.Bus
	registry     *persona.Registry
	orchestrator *turn.Orchestrator
}

func (r *runtime) Close() {
	_ = r.logger.Close()
}

func newLogger(cfg *config.Config) (*logging.Logger, error) {
	return logging.New(logging.Options{
		Dir:   cfg.Logging.Dir,
		Level: cfg.Logging.Level,
		Rotation: logging.RotationConfig{
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			Compress:   cfg.Logging.Compress,
		},
	})
}

func newRetrier(cfg *config.Config) *upstream.Retrier {
	r := upstream.NewRetrier()
	r.MaxAttempts = cfg.Upstream.MaxAttempts
	r.BaseDelay = cfg.Upstream.BaseDelay()
	r.MaxJitter = cfg.Upstream.MaxJitter()
	return r
}

func newModel(cfg *config.Config) (*upstream.Client, error) {
	return upstream.NewClient(cfg.Upstream.APIKey,
		upstream.WithBaseURL(cfg.Upstream.BaseURL),
		upstream.WithModel(cfg.Upstream.Model),
		upstream.WithProvider(cfg.Upstream.Provider),
	)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newRuntime builds an orchestrator against the configured upstream. A nil
// logger opens the configured one. The runtime owns the logger.
func newRuntime(cfg *config.Config, logger *logging.Logger) (*runtime, error) {
	var err error
	if logger == nil {
		if logger, err = newLogger(cfg); err != nil {
			return nil, err
		}
	}

	registry, err := persona.LoadRegistry(cfg.Personas.OverridesFile)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}
	model, err := newModel(cfg)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}

	bus := event.NewBus(logger)
	retrier := newRetrier(cfg)
	reflections := reflection.NewBuilder(registry)
	reflections.EpisodicWindow = cfg.Reflection.EpisodicWindow
	reflections.EvolutionTurns = cfg.Reflection.EvolutionTurns

	opts := []turn.Option{
		turn.WithSettings(turn.SettingsFromConfig(cfg)),
		turn.WithRetrier(retrier),
		turn.WithRegistry(registry),
		turn.WithReflectionBuilder(reflections),
		turn.WithRelevanceChecker(turn.LocalRelevance{MinRunes: cfg.Turn.MinIdeaRunes}),
		turn.WithBus(bus),
		turn.WithLogger(logger),
	}
	if cfg.Turn.Categorize {
		opts = append(opts, turn.WithCategorizer(&turn.ModelCategorizer{
			Model:     model,
			Retrier:   retrier,
			ModelName: cfg.Upstream.Model,
		}))
	}

	return &runtime{
		cfg:          cfg,
		logger:       logger,
		bus:          bus,
		registry:     registry,
		orchestrator: turn.New(model, opts...),
	}, nil
}

func openStore(cfg *config.Config) (*store.Store, error) {
	st, err := store.Open(store.Config{
		Driver:  cfg.Store.Driver,
		DSN:     cfg.Store.DSN,
		DataDir: cfg.Store.ResolveDataDir(),
	})
	return st, errors.Wrapf(err, "opening %s session store", cfg.Store.Driver)
}
