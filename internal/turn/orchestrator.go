// Package turn runs one validation turn: persona opinions, a concurrent
// three-role analysis, a streamed panel discussion and the reconciled
// scorecard, emitted to the client as one ordered event stream.
package turn

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"

	"github.com/Iron-Ham/ideaforge/internal/config"
	"github.com/Iron-Ham/ideaforge/internal/errors"
	"github.com/Iron-Ham/ideaforge/internal/event"
	"github.com/Iron-Ham/ideaforge/internal/logging"
	"github.com/Iron-Ham/ideaforge/internal/persona"
	"github.com/Iron-Ham/ideaforge/internal/prompt"
	"github.com/Iron-Ham/ideaforge/internal/reflection"
	"github.com/Iron-Ham/ideaforge/internal/stream"
	"github.com/Iron-Ham/ideaforge/internal/upstream"
)

// Settings are the tunables of an Orchestrator.
type Settings struct {
	Model              string
	SynthesisModel     string
	MaxTokens          int
	Temperature        float64
	Timeout            time.Duration
	StreamTimeout      time.Duration
	OpinionPacing      time.Duration
	HistoryWindow      int
	DiscussionMinRunes int
	DefaultLevel       string
}

// DefaultSettings mirrors the configuration defaults.
func DefaultSettings() Settings {
	return SettingsFromConfig(config.Default())
}

// SettingsFromConfig extracts the turn tunables from cfg.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		Model:              cfg.Upstream.Model,
		SynthesisModel:     cfg.Upstream.ResolvedSynthesisModel(),
		MaxTokens:          cfg.Upstream.MaxTokens,
		Temperature:        cfg.Upstream.Temperature,
		Timeout:            cfg.Upstream.Timeout(),
		StreamTimeout:      cfg.Upstream.StreamTimeout(),
		OpinionPacing:      cfg.Turn.OpinionPacing(),
		HistoryWindow:      cfg.Turn.HistoryWindow,
		DiscussionMinRunes: cfg.Turn.DiscussionMinRunes,
		DefaultLevel:       cfg.Turn.DefaultLevel,
	}
}

func (s Settings) synthesisModel() string {
	if s.SynthesisModel != "" {
		return s.SynthesisModel
	}
	return s.Model
}

// Orchestrator runs turns. One Orchestrator serves any number of concurrent
// turns; all per-turn state lives in the turn's own run.
type Orchestrator struct {
	model       upstream.Model
	settings    Settings
	pacing      atomic.Int64
	retrier     *upstream.Retrier
	registry    *persona.Registry
	reflections *reflection.Builder
	relevance   RelevanceChecker
	categorizer Categorizer
	bus         *event.Bus
	logger      *logging.Logger
	sleep       func(ctx context.Context, d time.Duration) error
	now         func() time.Time
	newID       func() string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSettings replaces the default settings.
func WithSettings(s Settings) Option {
	return func(o *Orchestrator) { o.settings = s }
}

// WithRetrier sets the rate-limit policy shared by every upstream call.
func WithRetrier(r *upstream.Retrier) Option {
	return func(o *Orchestrator) { o.retrier = r }
}

// WithRegistry sets the persona registry.
func WithRegistry(r *persona.Registry) Option {
	return func(o *Orchestrator) { o.registry = r }
}

// WithReflectionBuilder sets the reflection history builder.
func WithReflectionBuilder(b *reflection.Builder) Option {
	return func(o *Orchestrator) { o.reflections = b }
}

// WithRelevanceChecker replaces the local relevance check.
func WithRelevanceChecker(c RelevanceChecker) Option {
	return func(o *Orchestrator) { o.relevance = c }
}

// WithCategorizer sets the category extraction collaborator. Without one,
// every turn reports ["Other"].
func WithCategorizer(c Categorizer) Option {
	return func(o *Orchestrator) { o.categorizer = c }
}

// WithBus publishes turn lifecycle events to b.
func WithBus(b *event.Bus) Option {
	return func(o *Orchestrator) { o.bus = b }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithSleep replaces the pacing sleep. Tests use it to avoid waiting.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(o *Orchestrator) { o.sleep = fn }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithIDGenerator replaces the turn ID generator.
func WithIDGenerator(fn func() string) Option {
	return func(o *Orchestrator) { o.newID = fn }
}

// New creates an Orchestrator over model.
func New(model upstream.Model, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		model:    model,
		settings: DefaultSettings(),
		sleep:    sleepContext,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.retrier == nil {
		o.retrier = upstream.NewRetrier()
	}
	if o.registry == nil {
		o.registry = persona.DefaultRegistry()
	}
	if o.reflections == nil {
		o.reflections = reflection.NewBuilder(o.registry)
	}
	if o.relevance == nil {
		o.relevance = LocalRelevance{MinRunes: DefaultMinIdeaRunes}
	}
	if o.bus == nil {
		o.bus = event.NewBus(o.logger)
	}
	if o.logger == nil {
		o.logger = logging.NopLogger()
	}
	o.pacing.Store(int64(o.settings.OpinionPacing))
	return o
}

// OpinionPacing returns the delay between opinion events.
func (o *Orchestrator) OpinionPacing() time.Duration {
	return time.Duration(o.pacing.Load())
}

// SetOpinionPacing changes the delay between opinion events for turns that
// start revealing opinions afterwards. Zero disables pacing.
func (o *Orchestrator) SetOpinionPacing(d time.Duration) {
	o.pacing.Store(int64(max(d, 0)))
}

// Registry returns the persona registry in use.
func (o *Orchestrator) Registry() *persona.Registry {
	return o.registry
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// run is the state of one turn. It is only touched by the goroutine running
// the turn, except for the ledger and the logger, which are safe for
// concurrent use by the analysis calls.
type run struct {
	o        *Orchestrator
	req      Request
	turnID   string
	ctx      context.Context
	cancel   context.CancelFunc
	em       stream.Emitter
	machine  *Machine
	ledger   *upstream.Ledger
	retrier  *upstream.Retrier
	logger   *logging.Logger
	profiles []persona.Profile
	started  time.Time
	tokens   upstream.Usage
	degraded bool
	// discussion lines already sent to the client
	shown []DiscussionTurn
}

// Run executes one turn and writes its events to em, closing em when done.
//
// On success the final event carries the returned TurnResult. A relevance
// rejection sends a single warning event and returns an error matching
// errors.ErrInputRejected. A failed opinion call sends a single error event
// and returns an error matching errors.ErrTurnFatal. When the client goes
// away Run cancels the turn's upstream calls and returns an error matching
// errors.ErrTransportClosed. Failures after the opinions were revealed
// degrade the result instead of failing the turn.
func (o *Orchestrator) Run(ctx context.Context, req Request, em stream.Emitter) (*TurnResult, error) {
	defer func() { _ = em.Close() }()

	if err := req.Normalize(o.settings.DefaultLevel); err != nil {
		_ = em.Send(stream.Event{Type: stream.TypeError, Data: ErrorEvent{Message: err.Error()}})
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	r := &run{
		o:       o,
		req:     req,
		turnID:  o.newID(),
		ctx:     ctx,
		cancel:  cancel,
		em:      em,
		ledger:  upstream.NewLedger(),
		started: o.now(),
	}
	r.logger = o.logger.WithSession(req.SessionID).WithTurn(req.TurnNumber).With("turn_id", r.turnID)
	r.retrier = o.retrier.WithLedger(r.ledger).WithAttemptTimeout(o.settings.Timeout)
	r.retrier.OnRetry = func(call string, attempt int, delay time.Duration) {
		r.logger.Warn("upstream rate limited, retrying", "call", call, "attempt", attempt, "delay", delay)
		o.bus.Publish(event.NewUpstreamRetryEvent(call, attempt, delay))
	}
	for _, p := range req.Personas {
		r.profiles = append(r.profiles, o.registry.Profile(p))
	}

	if err := o.relevance.Check(req.IdeaText); err != nil {
		return nil, r.reject(err)
	}

	r.machine = NewMachine(o.now)
	r.machine.OnChange(func(from, to Phase) {
		r.logger.Info("turn phase finished", "phase", from, "next", to, "duration", r.machine.PhaseDuration(from))
		o.bus.Publish(event.NewPhaseChangedEvent(r.turnID, string(from), string(to)))
	})

	names := make([]string, len(req.Personas))
	for i, p := range req.Personas {
		names[i] = string(p)
	}
	o.bus.Publish(event.NewTurnStartedEvent(r.turnID, req.SessionID, req.TurnNumber, names, req.ValidationLevel))
	r.logger.Info("turn started", "personas", names, "level", req.ValidationLevel)

	result, err := r.execute()
	if err != nil {
		return nil, r.fail(err)
	}
	return result, nil
}

func (r *run) execute() (*TurnResult, error) {
	opinions, err := r.collectOpinions()
	if err != nil {
		return nil, err
	}
	if err := r.revealOpinions(opinions); err != nil {
		return nil, err
	}
	popinions := toPromptOpinions(opinions, r.o.registry)

	if err := r.advance(PhaseAnalyzing); err != nil {
		return nil, err
	}
	var (
		wg         conc.WaitGroup
		categories []string
	)
	wg.Go(func() { categories = r.categorize(r.ctx) })
	sections, usage := r.analyze(popinions)
	r.tokens = r.tokens.Add(usage)

	if err := r.advance(PhaseSynthesizing); err != nil {
		return nil, err
	}
	roles := make([]prompt.Role, len(sections))
	for i, s := range sections {
		roles[i] = s.Role
	}
	if err := r.send(stream.Event{
		Type: stream.TypeSynthesizing,
		Data: SynthesizingEvent{Turn: r.req.TurnNumber, Analysis: roles},
	}); err != nil {
		wg.Wait()
		return nil, err
	}

	out, err := r.synthesize(popinions, sections)
	if err != nil {
		if r.closed(err) {
			wg.Wait()
			return nil, err
		}
		r.degraded = true
		r.logger.Warn("synthesis failed, falling back to opinions", "error", err)
		out = fallbackOutput(r.revealed())
	}
	r.tokens = r.tokens.Add(out.Usage)
	wg.Wait()

	if err := r.advance(PhaseReconciling); err != nil {
		return nil, err
	}
	result := r.build(opinions, out, categories)

	if err := r.advance(PhaseDone); err != nil {
		return nil, err
	}
	if err := r.send(stream.Event{Type: stream.TypeFinal, Data: result}); err != nil {
		return nil, err
	}
	r.o.bus.Publish(event.NewTurnCompletedEvent(r.turnID, r.req.SessionID, r.req.TurnNumber,
		result.Scorecard.Total(), result.Degraded, r.o.now().Sub(r.started)))
	r.logger.Info("turn completed", "total", result.Scorecard.Total(), "degraded", result.Degraded,
		"attempts", result.Usage.Attempts, "duration_ms", result.Usage.DurationMs)
	return result, nil
}

func (r *run) build(opinions []Opinion, out *synthesisOutput, categories []string) *TurnResult {
	prev := r.req.Previous()
	score := reconcileScores(prev, out.Proposal, out.Updates, r.req.TurnNumber)
	responses, fabricated := completeResponses(out.Responses, r.req.Personas, opinions, r.o.registry)
	if fabricated > 0 && len(out.Responses) > 0 {
		r.degraded = true
		r.logger.Warn("synthesis skipped personas, using their opinions", "missing", fabricated)
	}
	if len(categories) == 0 {
		categories = []string{CategoryOther}
	}

	states := r.ledger.States()
	usage := Usage{
		Calls:      len(states),
		Attempts:   r.ledger.TotalAttempts(),
		Failed:     r.ledger.Failed(),
		Tokens:     r.tokens,
		DurationMs: r.o.now().Sub(r.started).Milliseconds(),
		Detail:     states,
	}
	for _, s := range states {
		usage.RateLimited += s.RateLimited
	}

	return &TurnResult{
		TurnID:          r.turnID,
		SessionID:       r.req.SessionID,
		Turn:            r.req.TurnNumber,
		Responses:       responses,
		Discussion:      out.Discussion,
		Metrics:         out.Metrics,
		Scorecard:       score.Scorecard,
		CategoryUpdates: score.Updates,
		ScoreEvolution:  score.Evolution,
		Categories:      categories,
		Usage:           usage,
		Degraded:        r.degraded,
	}
}

func (r *run) advance(to Phase) error {
	return r.machine.TransitionTo(to, "")
}

func (r *run) promptContext(opinions []prompt.Opinion, sections []prompt.Section) *prompt.Context {
	return &prompt.Context{
		IdeaText:      r.req.IdeaText,
		Message:       r.req.Message,
		History:       r.req.ConversationHistory,
		Level:         r.req.ValidationLevel,
		Personas:      r.profiles,
		Opinions:      opinions,
		Analysis:      sections,
		Scorecard:     r.req.Previous(),
		TurnNumber:    r.req.TurnNumber,
		HistoryWindow: r.o.settings.HistoryWindow,
	}
}

func (r *run) complete(call string, req upstream.Request) (upstream.Response, error) {
	return upstream.Call(r.ctx, r.retrier, call, func(ctx context.Context) (upstream.Response, error) {
		return r.o.model.Complete(ctx, req)
	})
}

// send writes ev. When the client is gone it cancels the turn so in-flight
// upstream calls stop.
func (r *run) send(ev stream.Event) error {
	if err := r.em.Send(ev); err != nil {
		if errors.Is(err, errors.ErrTransportClosed) {
			r.cancel()
		}
		return err
	}
	return nil
}

func (r *run) closed(err error) bool {
	return errors.Is(err, errors.ErrTransportClosed) || r.em.Closed()
}

func (r *run) reject(err error) error {
	var rej *Rejection
	if !errors.As(err, &rej) {
		rej = &Rejection{Reason: "rejected", Message: err.Error()}
	}
	_ = r.send(stream.Event{Type: stream.TypeWarning, Data: WarningEvent{Message: rej.Message, Reason: rej.Reason}})
	r.logger.Info("turn rejected by relevance check", "reason", rej.Reason)
	r.o.bus.Publish(event.NewTurnRejectedEvent(r.req.SessionID, rej.Reason))
	return errors.NewTurnError(rej.Message, errors.Join(errors.ErrInputRejected, err)).
		WithSessionID(r.req.SessionID).
		WithTurn(r.req.TurnNumber).
		WithSeverity(errors.SeverityInfo)
}

// fail ends the turn after an unrecoverable error. A client that went away
// gets no error event.
func (r *run) fail(err error) error {
	phase := r.machine.Current()
	r.machine.Fail(err.Error())
	r.o.bus.Publish(event.NewTurnFailedEvent(r.turnID, r.req.SessionID, string(phase), err))

	terr := func(msg string, cause error) *errors.TurnError {
		return errors.NewTurnError(msg, cause).
			WithSessionID(r.req.SessionID).
			WithTurn(r.req.TurnNumber).
			WithPhase(string(phase))
	}

	if r.closed(err) {
		r.logger.Info("client disconnected, turn abandoned", "phase", phase)
		return terr("client disconnected", errors.Join(errors.ErrTransportClosed, err)).
			WithSeverity(errors.SeverityInfo)
	}

	msg := userMessage(err)
	r.logger.Error("turn failed", "phase", phase, "error", err)
	_ = r.send(stream.Event{Type: stream.TypeError, Data: ErrorEvent{Message: msg, Phase: phase}})
	return terr(msg, errors.Join(errors.ErrTurnFatal, err))
}

func userMessage(err error) string {
	var timeout *errors.TimeoutError
	switch {
	case errors.Is(err, errors.ErrRetriesExhausted):
		return "The expert panel is busy right now. Please try again in a moment."
	case errors.As(err, &timeout):
		return "The expert panel took too long to answer. Please try again."
	case errors.Is(err, context.Canceled):
		return "The turn was canceled."
	default:
		return "The expert panel could not be reached. Please try again."
	}
}
