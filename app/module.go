package app

import (
	"github.com/gaborage/go-bricks-tx/config"
	"github.com/gaborage/go-bricks-tx/database"
	"github.com/gaborage/go-bricks-tx/logger"
	"github.com/gaborage/go-bricks-tx/server"
	"github.com/gaborage/go-bricks-tx/transaction"
)

// Module is a unit of business functionality: it builds its repositories and
// services in Init and declares its routes, each with static transaction
// metadata.
type Module interface {
	Name() string
	Init(deps *ModuleDeps) error
	Routes() []server.Route
	Shutdown() error
}

// ModuleDeps contains the dependencies injected into each module.
type ModuleDeps struct {
	Logger       logger.Logger
	Config       *config.Config
	Engine       database.Engine
	Transactions transaction.Manager
}

// ModuleRegistry keeps registered modules in registration order.
type ModuleRegistry struct {
	modules []Module
	deps    *ModuleDeps
	logger  logger.Logger
}

// NewModuleRegistry creates an empty registry.
func NewModuleRegistry(deps *ModuleDeps) *ModuleRegistry {
	return &ModuleRegistry{
		deps:   deps,
		logger: deps.Logger,
	}
}

// Register initializes module. A module whose Init fails is not registered.
func (r *ModuleRegistry) Register(module Module) error {
	r.logger.Info().
		Str("module", module.Name()).
		Msg("Registering module")

	if err := module.Init(r.deps); err != nil {
		return err
	}
	r.modules = append(r.modules, module)
	return nil
}

// RegisterRoutes adds every module's routes to srv.
func (r *ModuleRegistry) RegisterRoutes(srv *server.Server, mgr transaction.Manager) {
	for _, module := range r.modules {
		routes := module.Routes()
		r.logger.Info().
			Str("module", module.Name()).
			Int("routes", len(routes)).
			Msg("Registering module routes")

		srv.Register(mgr, routes...)
	}
}

// Shutdown calls Shutdown on every module, logging failures.
func (r *ModuleRegistry) Shutdown() {
	for _, module := range r.modules {
		r.logger.Info().
			Str("module", module.Name()).
			Msg("Shutting down module")

		if err := module.Shutdown(); err != nil {
			r.logger.Error().
				Err(err).
				Str("module", module.Name()).
				Msg("Failed to shutdown module")
		}
	}
}
