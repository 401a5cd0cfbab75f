// Package app wires configuration, logging, telemetry, the storage engine,
// the transaction manager and the HTTP server into a runnable application.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/gaborage/go-bricks-tx/config"
	"github.com/gaborage/go-bricks-tx/database"
	"github.com/gaborage/go-bricks-tx/logger"
	"github.com/gaborage/go-bricks-tx/observability"
	"github.com/gaborage/go-bricks-tx/server"
	"github.com/gaborage/go-bricks-tx/transaction"
)

// App represents the main application instance.
type App struct {
	cfg      *config.Config
	logger   logger.Logger
	engine   database.Engine
	manager  *transaction.EngineManager
	server   *server.Server
	provider observability.Provider
	registry *ModuleRegistry
}

// Options replaces the default constructors used by NewWithOptions.
type Options struct {
	ConfigLoader    func() (*config.Config, error)
	EngineFactory   func(*config.DatabaseConfig, logger.Logger) (database.Engine, error)
	Logger          logger.Logger
	ProviderOptions []observability.Option
}

// New creates an application from config.Load and database.NewEngine.
func New() (*App, error) {
	return NewWithOptions(nil)
}

// NewWithOptions creates an application. The telemetry provider is installed
// before the transaction manager so its instruments report to it.
func NewWithOptions(opts *Options) (*App, error) {
	if opts == nil {
		opts = &Options{}
	}
	if opts.ConfigLoader == nil {
		opts.ConfigLoader = config.Load
	}
	if opts.EngineFactory == nil {
		opts.EngineFactory = database.NewEngine
	}

	cfg, err := opts.ConfigLoader()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := opts.Logger
	if log == nil {
		log = logger.New(cfg.Log.Level, cfg.Log.Pretty)
	}

	log.Info().
		Str("app", cfg.App.Name).
		Str("env", cfg.App.Env).
		Str("version", cfg.App.Version).
		Msg("Starting application")

	provider, err := observability.NewProvider(cfg, log, opts.ProviderOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}

	engine, err := opts.EngineFactory(&cfg.Database, log)
	if err != nil {
		observability.ShutdownAndLog(provider, cfg.Server.Timeout.Shutdown, log)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	defaults := transaction.FromConfig(cfg.Transaction).Options()
	manager := transaction.NewManager(engine, log, transaction.WithDefaults(defaults))

	srv := server.New(cfg, log, server.WithReadinessCheck("database", engine.Health))

	return &App{
		cfg:      cfg,
		logger:   log,
		engine:   engine,
		manager:  manager,
		server:   srv,
		provider: provider,
		registry: NewModuleRegistry(&ModuleDeps{
			Logger:       log,
			Config:       cfg,
			Engine:       engine,
			Transactions: manager,
		}),
	}, nil
}

// RegisterModule initializes module and queues its routes for Run.
func (a *App) RegisterModule(module Module) error {
	return a.registry.Register(module)
}

func (a *App) Config() *config.Config              { return a.cfg }
func (a *App) Logger() logger.Logger               { return a.logger }
func (a *App) Engine() database.Engine             { return a.engine }
func (a *App) Manager() *transaction.EngineManager { return a.manager }
func (a *App) Server() *server.Server              { return a.server }

// Run registers module routes, serves HTTP and blocks until ctx is cancelled,
// SIGINT or SIGTERM arrives, or the server fails. Shutdown runs on every path.
func (a *App) Run(ctx context.Context) error {
	a.registry.RegisterRoutes(a.server, a.manager)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := a.server.Start(); err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info().Msg("Shutting down application")
		return a.Shutdown(context.WithoutCancel(ctx))
	})

	return g.Wait()
}

// Shutdown stops modules, the HTTP server, the storage engine and telemetry,
// in that order. Sessions still open at this point are reported.
func (a *App) Shutdown(ctx context.Context) error {
	a.registry.Shutdown()

	var errs []error
	if err := a.server.Shutdown(ctx); err != nil {
		a.logger.Error().Err(err).Msg("Failed to shutdown server")
		errs = append(errs, err)
	}

	if open := a.manager.OpenSessions(); open > 0 {
		a.logger.Warn().Int64("open_sessions", open).Msg("Transaction sessions still open at shutdown")
	}

	if err := a.engine.Close(); err != nil {
		a.logger.Error().Err(err).Msg("Failed to close database connection")
		errs = append(errs, err)
	}

	observability.ShutdownAndLog(a.provider, a.cfg.Server.Timeout.Shutdown, a.logger)

	a.logger.Info().Msg("Application shutdown complete")
	return errors.Join(errs...)
}
