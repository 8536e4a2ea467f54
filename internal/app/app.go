package app

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/vk/drawqueue/internal/config"
	"github.com/vk/drawqueue/internal/events"
	"github.com/vk/drawqueue/internal/executor"
	"github.com/vk/drawqueue/internal/inmemorystore"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW       io.Writer
	logger     *slog.Logger
	config     *config.Config
	runID      string
	launcher   executor.Launcher
	publisher  events.Publisher
	store      *inmemorystore.Store
	httpServer *http.Server
	now        func() time.Time
}

// Option customizes an App.
type Option func(*App)

// WithLauncher replaces the process launcher used for the build and the tasks.
func WithLauncher(l executor.Launcher) Option {
	return func(a *App) { a.launcher = l }
}

// WithPublisher sends progress events to p instead of the configured sink.
func WithPublisher(p events.Publisher) Option {
	return func(a *App) { a.publisher = p }
}

// WithRunID fixes the run identifier instead of generating one.
func WithRunID(id string) Option {
	return func(a *App) { a.runID = id }
}

// WithClock injects the clock used for run timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

// NewApp is the constructor for the main application. It validates cfg,
// resolves its paths against the project root and sets up an isolated logger
// tagged with a fresh run ID.
func NewApp(outW io.Writer, cfg *config.Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	resolved, err := cfg.Resolved()
	if err != nil {
		return nil, err
	}

	a := &App{
		outW:     outW,
		config:   resolved,
		launcher: executor.New(),
		store:    inmemorystore.New(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.runID == "" {
		a.runID = uuid.NewString()
	}

	a.logger = newLogger(resolved.LogLevel, resolved.LogFormat, a.runID, outW)
	a.logger.Debug("Logger configured successfully.")
	a.logger.Debug("Configuration resolved.",
		"project_root", resolved.ProjectRoot,
		"source_root", resolved.SourceRoot,
		"output_root", resolved.OutputRoot,
		"executable", resolved.Executable,
		"workers", resolved.Workers,
	)
	return a, nil
}

// RunID returns the identifier attached to logs, events and the report.
func (a *App) RunID() string {
	return a.runID
}

// Config returns the resolved configuration.
func (a *App) Config() *config.Config {
	return a.config
}

// Store returns the per-task progress store of the run.
func (a *App) Store() *inmemorystore.Store {
	return a.store
}
