// Package di provides dependency injection container for managing service lifecycle and dependencies.
package di

import (
	"context"
	"sync"

	"bugtracker/internal/config"
	"bugtracker/internal/database"
	"bugtracker/internal/middleware"
	"bugtracker/internal/observability"
	"bugtracker/internal/serviceinterfaces"
	"bugtracker/internal/services"
	contextutils "bugtracker/internal/utils"
)

const (
	serviceBugs        = "bugs"
	serviceScreenshots = "screenshots"
	serviceNotifier    = "notifier"
	serviceLinear      = "linear"
	serviceSchemas     = "schemas"
)

// ServiceContainerInterface defines the interface for service containers
type ServiceContainerInterface interface {
	GetService(name string) (interface{}, error)
	GetBugService() (serviceinterfaces.BugServiceInterface, error)
	GetSchemaLoader() (*middleware.SchemaLoader, error)
	GetDatabase() *database.DB
	GetConfig() *config.Config
	GetLogger() *observability.Logger
	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// ServiceContainer manages all service dependencies and lifecycle
type ServiceContainer struct {
	cfg           *config.Config
	logger        *observability.Logger
	dbManager     *database.Manager
	db            *database.DB
	services      map[string]interface{}
	mu            sync.RWMutex
	shutdownFuncs []func(context.Context) error
	serviceOpts   []services.BugServiceOption
}

// NewServiceContainer creates a new dependency injection container. Extra
// options are applied to the bug service after the configured collaborators.
func NewServiceContainer(cfg *config.Config, logger *observability.Logger, opts ...services.BugServiceOption) *ServiceContainer {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &ServiceContainer{
		cfg:         cfg,
		logger:      logger,
		services:    make(map[string]interface{}),
		serviceOpts: opts,
	}
}

// Initialize opens the store and wires every service. A store that cannot be
// opened is reported as DATABASE_CONNECTION_ERROR.
func (sc *ServiceContainer) Initialize(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.cfg == nil {
		return contextutils.ErrorWithContextf("container config cannot be nil")
	}

	sc.dbManager = database.NewManager(sc.logger)
	db, err := sc.dbManager.Open(ctx, sc.cfg.Database)
	if err != nil {
		return contextutils.WrapWithCode(err, contextutils.ErrorCodeDatabaseConnection, "failed to initialize bug store")
	}
	sc.db = db
	sc.shutdownFuncs = append(sc.shutdownFuncs, func(_ context.Context) error {
		return db.Close()
	})

	if err := sc.initializeServices(ctx); err != nil {
		_ = sc.cleanup(ctx)
		return contextutils.WrapErrorf(err, "failed to initialize services")
	}

	if err := sc.startupServices(ctx); err != nil {
		_ = sc.cleanup(ctx)
		return contextutils.WrapErrorf(err, "failed to startup services")
	}

	return nil
}

// GetService retrieves a service by name with type assertion
func (sc *ServiceContainer) GetService(name string) (interface{}, error) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	service, exists := sc.services[name]
	if !exists {
		return nil, contextutils.ErrorWithContextf("service %s not found", name)
	}
	return service, nil
}

// GetServiceAs performs type-safe service retrieval
func GetServiceAs[T any](sc *ServiceContainer, name string) (T, error) {
	var zero T
	service, err := sc.GetService(name)
	if err != nil {
		return zero, err
	}

	typed, ok := service.(T)
	if !ok {
		return zero, contextutils.ErrorWithContextf("service %s is not of expected type %T", name, zero)
	}
	return typed, nil
}

// GetBugService returns the bug lifecycle service
func (sc *ServiceContainer) GetBugService() (serviceinterfaces.BugServiceInterface, error) {
	return GetServiceAs[serviceinterfaces.BugServiceInterface](sc, serviceBugs)
}

// GetSchemaLoader returns the request schema validator
func (sc *ServiceContainer) GetSchemaLoader() (*middleware.SchemaLoader, error) {
	return GetServiceAs[*middleware.SchemaLoader](sc, serviceSchemas)
}

// GetDatabase returns the open store
func (sc *ServiceContainer) GetDatabase() *database.DB {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.db
}

// GetDatabaseManager returns the manager used to open the store
func (sc *ServiceContainer) GetDatabaseManager() *database.Manager {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.dbManager
}

// GetConfig returns the configuration
func (sc *ServiceContainer) GetConfig() *config.Config {
	return sc.cfg
}

// GetLogger returns the logger
func (sc *ServiceContainer) GetLogger() *observability.Logger {
	return sc.logger
}

// Shutdown gracefully shuts down all services
func (sc *ServiceContainer) Shutdown(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	err := sc.cleanup(ctx)
	sc.services = make(map[string]interface{})
	sc.shutdownFuncs = nil
	sc.db = nil
	return err
}

// startupServices starts all services that implement the Lifecycle interface
func (sc *ServiceContainer) startupServices(ctx context.Context) error {
	for name, service := range sc.services {
		if lifecycleService, ok := service.(interface{ Startup(context.Context) error }); ok {
			sc.logger.Info(ctx, "Starting service", map[string]interface{}{"service": name})
			if err := lifecycleService.Startup(ctx); err != nil {
				return contextutils.WrapErrorf(err, "failed to startup service %s", name)
			}
		}
	}
	return nil
}

// cleanup handles shutdown of all services
func (sc *ServiceContainer) cleanup(ctx context.Context) error {
	var errors []error

	for name, service := range sc.services {
		if lifecycleService, ok := service.(interface{ Shutdown(context.Context) error }); ok {
			if err := lifecycleService.Shutdown(ctx); err != nil {
				sc.logger.Error(ctx, "Failed to shutdown service", err, map[string]interface{}{"service": name})
				errors = append(errors, contextutils.WrapErrorf(err, "service %s shutdown failed", name))
			}
		}
	}

	// Reverse order of initialization
	for i := len(sc.shutdownFuncs) - 1; i >= 0; i-- {
		if err := sc.shutdownFuncs[i](ctx); err != nil {
			errors = append(errors, err)
		}
	}

	if len(errors) > 0 {
		return contextutils.ErrorWithContextf("shutdown errors: %v", errors)
	}
	return nil
}

// initializeServices sets up all service dependencies
func (sc *ServiceContainer) initializeServices(ctx context.Context) error {
	schemas, err := middleware.DefaultSchemaLoader()
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to load request schemas")
	}
	sc.services[serviceSchemas] = schemas

	screenshots := services.NewScreenshotStore(sc.cfg.Storage, sc.logger)
	sc.services[serviceScreenshots] = screenshots

	notifier := services.NewEmailNotifier(sc.cfg, sc.logger)
	sc.services[serviceNotifier] = notifier

	linear := services.NewLinearService(sc.cfg, sc.logger)
	sc.services[serviceLinear] = linear

	opts := []services.BugServiceOption{
		services.WithScreenshotStore(screenshots),
		services.WithNotifier(notifier),
		services.WithIssueExporter(linear),
		services.WithMetrics(observability.NewBugMetrics()),
	}
	opts = append(opts, sc.serviceOpts...)
	sc.services[serviceBugs] = services.NewBugService(sc.db, sc.logger, opts...)

	sc.logger.Info(ctx, "Services initialized", map[string]interface{}{
		"email_enabled":  notifier.IsEnabled(),
		"linear_enabled": linear.IsEnabled(),
		"driver":         sc.db.Driver(),
	})
	return nil
}
