// Package app wires all voicehac subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run executes the interactive loop (plus the optional
// metrics/health server and config watcher), and Shutdown tears everything
// down in order.
//
// For testing, inject test doubles via functional options (WithBackend,
// WithRecognizer, WithIO, etc.). When an option is not provided, New creates
// the real implementation from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/voicehac/internal/config"
	"github.com/MrWong99/voicehac/internal/dispatch"
	"github.com/MrWong99/voicehac/internal/observe"
	"github.com/MrWong99/voicehac/internal/resilience"
	"github.com/MrWong99/voicehac/internal/skill"
	"github.com/MrWong99/voicehac/internal/skill/lights"
	"github.com/MrWong99/voicehac/internal/vocab"
	"github.com/MrWong99/voicehac/pkg/provider/backend"
	"github.com/MrWong99/voicehac/pkg/provider/backend/homeassistant"
	"github.com/MrWong99/voicehac/pkg/provider/recognizer"
	"github.com/MrWong99/voicehac/pkg/provider/recognizer/gazetteer"
)

// App owns all subsystem lifetimes and runs the voice command pipeline.
type App struct {
	cfg *config.Config

	// Injected or created in New.
	backend    backend.Provider
	recognizer recognizer.Provider
	speaker    dispatch.Speaker
	metrics    *observe.Metrics
	in         io.Reader
	out        io.Writer

	// Subsystems, initialised in New and torn down in Shutdown.
	registry   *skill.Registry
	env        *skill.StaticEnv
	dispatcher *dispatch.Dispatcher
	watcher    *config.Watcher
	server     *http.Server
	listener   net.Listener

	metricsHandler http.Handler
	configPath     string
	level          *slog.LevelVar

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithBackend injects a backend provider instead of creating a Home
// Assistant client from config.
func WithBackend(p backend.Provider) Option {
	return func(a *App) { a.backend = p }
}

// WithRecognizer injects a recogniser instead of building a gazetteer from
// the configured vocabulary.
func WithRecognizer(r recognizer.Provider) Option {
	return func(a *App) { a.recognizer = r }
}

// WithSpeaker overrides where dialog lines go. Default: the output writer.
func WithSpeaker(s dispatch.Speaker) Option {
	return func(a *App) { a.speaker = s }
}

// WithMetrics sets the metrics sink shared by every subsystem.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithIO sets the interactive input and output. Default: stdin and stdout.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(a *App) {
		a.in = in
		a.out = out
	}
}

// WithMetricsHandler mounts h at GET /metrics on the HTTP server.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.metricsHandler = h }
}

// WithConfigWatch polls path for changes while Run is active. A changed
// log level is applied to level; other changes are reported as needing a
// restart. level may be nil.
func WithConfigWatch(path string, level *slog.LevelVar) Option {
	return func(a *App) {
		a.configPath = path
		a.level = level
	}
}

// New creates a new App by wiring all subsystems together. Subsystems not
// injected via opts are created from cfg.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{
		cfg: cfg,
		in:  os.Stdin,
		out: os.Stdout,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	if err := a.initBackend(); err != nil {
		return nil, fmt.Errorf("app: init backend: %w", err)
	}
	if err := a.initRecognizer(); err != nil {
		return nil, fmt.Errorf("app: init recognizer: %w", err)
	}
	if err := a.initSkills(ctx); err != nil {
		return nil, fmt.Errorf("app: init skills: %w", err)
	}
	a.initDispatcher()
	if err := a.initWatcher(); err != nil {
		return nil, fmt.Errorf("app: init config watcher: %w", err)
	}
	if err := a.initServer(); err != nil {
		return nil, fmt.Errorf("app: init server: %w", err)
	}

	return a, nil
}

func (a *App) initBackend() error {
	if a.backend != nil {
		return nil
	}
	ha := a.cfg.HomeAssistant
	c, err := homeassistant.New(ha.URL, ha.Token,
		homeassistant.WithTimeout(ha.Timeout),
		homeassistant.WithBreaker(resilience.CircuitBreakerConfig{
			MaxFailures:  ha.Breaker.MaxFailures,
			ResetTimeout: ha.Breaker.ResetTimeout,
		}),
		homeassistant.WithMetrics(a.metrics),
	)
	if err != nil {
		return err
	}
	a.backend = c
	return nil
}

func (a *App) initRecognizer() error {
	if a.recognizer != nil {
		return nil
	}
	rc := a.cfg.Recognizer

	v := vocab.Default()
	if rc.Vocabulary != "" {
		loaded, err := vocab.Load(rc.Vocabulary)
		if err != nil {
			return err
		}
		v = loaded
	}

	opts := []gazetteer.Option{gazetteer.WithPhonetic(rc.PhoneticEnabled())}
	if rc.PhoneticThreshold > 0 {
		opts = append(opts, gazetteer.WithPhoneticThreshold(rc.PhoneticThreshold))
	}
	r, err := gazetteer.New(v, opts...)
	if err != nil {
		return err
	}
	a.recognizer = r
	return nil
}

// initSkills registers the enabled skills and loads the entity snapshot
// for the domains they declare. An unreachable backend is not fatal: the
// app starts with an empty snapshot and skills ask for more information.
func (a *App) initSkills(ctx context.Context) error {
	var skills []skill.Skill
	if lc := a.cfg.Skills.Lights; lc.IsEnabled() {
		var opts []lights.Option
		if lc.BrightnessStep > 0 {
			opts = append(opts, lights.WithBrightnessStep(lc.BrightnessStep))
		}
		skills = append(skills, lights.New(opts...))
	}

	reg, err := skill.NewRegistry(skills...)
	if err != nil {
		return err
	}
	if err := reg.Init(); err != nil {
		return err
	}
	a.registry = reg

	env, err := skill.LoadEnv(ctx, a.backend, reg.Domains()...)
	switch {
	case err == nil:
		a.env = env
	case backend.IsConnectivity(err):
		slog.Warn("app: backend unreachable, starting with an empty entity snapshot", "err", err)
		a.env = skill.NewStaticEnv(a.backend, nil)
	default:
		return err
	}

	for domain, n := range a.env.Domains() {
		slog.Info("app: entities loaded", "domain", domain, "count", n)
	}
	slog.Info("app: skills registered", "count", reg.Len())
	return nil
}

func (a *App) initDispatcher() {
	if a.speaker == nil {
		a.speaker = dispatch.NewWriterSpeaker(a.out, "> ")
	}
	opts := []dispatch.Option{
		dispatch.WithMetrics(a.metrics),
		dispatch.WithSpeaker(a.speaker),
	}
	if a.cfg.Dispatch.ParallelScoring {
		opts = append(opts, dispatch.WithParallelScoring())
	}
	if a.cfg.Dispatch.SilentFailures {
		opts = append(opts, dispatch.WithSilentFailures())
	}
	a.dispatcher = dispatch.New(a.recognizer, a.registry, a.env, opts...)
}

func (a *App) initWatcher() error {
	if a.configPath == "" {
		return nil
	}
	w, err := config.NewWatcher(a.configPath, a.onConfigChange)
	if err != nil {
		return err
	}
	a.watcher = w
	return nil
}

func (a *App) onConfigChange(old, new *config.Config) {
	changes := config.Diff(old, new)
	if changes.LogLevelChanged && a.level != nil {
		a.level.Set(changes.NewLogLevel.Level())
		slog.Info("app: log level changed", "level", changes.NewLogLevel)
	}
	for _, key := range changes.RestartRequired {
		slog.Warn("app: config change takes effect after restart", "key", key)
	}
}

// Dispatcher returns the utterance dispatcher.
func (a *App) Dispatcher() *dispatch.Dispatcher {
	return a.dispatcher
}

// Handle runs a single utterance through the pipeline and returns the
// dialog line that was spoken.
func (a *App) Handle(ctx context.Context, utterance string) (string, error) {
	return a.dispatcher.Run(ctx, utterance)
}

// Run starts the interactive loop and, when configured, the HTTP server
// and config watcher. It blocks until the loop ends (quit or end of input)
// or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return a.repl(gctx)
	})

	if a.server != nil {
		g.Go(func() error {
			slog.Info("app: http server listening", "addr", a.listener.Addr().String())
			if err := a.server.Serve(a.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("app: http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			return a.stopServer()
		})
	}

	if a.watcher != nil {
		g.Go(func() error {
			return a.watcher.Run(gctx)
		})
	}

	return g.Wait()
}

// Shutdown tears down all subsystems in init order. It respects the
// context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("app: shutting down", "closers", len(a.closers))

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("app: shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("app: closer error", "index", i, "err", err)
			}
		}

		slog.Info("app: shutdown complete")
	})
	return shutdownErr
}
