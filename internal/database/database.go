// Package database provides database connection and migration functionality.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"bugtracker/internal/config"
	"bugtracker/internal/observability"
	contextutils "bugtracker/internal/utils"
	"bugtracker/migrations"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // registers postgres:// for golang-migrate
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"   // registers sqlite:// for golang-migrate
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"  // registers the postgres database/sql driver
	_ "modernc.org/sqlite" // registers the sqlite database/sql driver

	"go.nhat.io/otelsql"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

// DB is an open store handle that knows its SQL dialect
type DB struct {
	*sql.DB
	driver string
}

// Driver returns config.DriverSQLite or config.DriverPostgres
func (db *DB) Driver() string {
	return db.driver
}

// Rebind rewrites ? placeholders into the driver's native form
func (db *DB) Rebind(query string) string {
	return Rebind(db.driver, query)
}

// Rebind rewrites ? placeholders to $1..$n for postgres and returns query unchanged otherwise.
// Queries must not contain literal question marks.
func Rebind(driver, query string) string {
	if driver != config.DriverPostgres || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Manager handles database operations with proper logging
type Manager struct {
	logger *observability.Logger
}

// NewManager creates a new database manager with the provided logger
func NewManager(logger *observability.Logger) *Manager {
	return &Manager{logger: logger}
}

var (
	otelDriverMu    sync.Mutex
	otelDriverNames = map[string]string{}
)

// registerOtelDriver wraps driver with otelsql once per process and returns the wrapped name
func registerOtelDriver(driver, dbName string) (string, error) {
	otelDriverMu.Lock()
	defer otelDriverMu.Unlock()

	if name, ok := otelDriverNames[driver]; ok {
		return name, nil
	}
	system := semconv.DBSystemKey.String(driver)
	if driver == config.DriverPostgres {
		system = semconv.DBSystemPostgreSQL
	}
	name, err := otelsql.Register(driver,
		otelsql.WithDatabaseName(dbName),
		otelsql.TraceQueryWithArgs(),
		otelsql.WithSystem(system),
		otelsql.TraceRowsAffected(),
	)
	if err != nil {
		return "", err
	}
	otelDriverNames[driver] = name
	return name, nil
}

// DataSourceName builds the database/sql DSN for cfg
func DataSourceName(cfg config.DatabaseConfig) string {
	if cfg.Driver != config.DriverSQLite {
		return cfg.URL
	}
	path := strings.TrimPrefix(cfg.URL, "file:")
	return "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(30000)&_time_format=sqlite"
}

// migrationURL builds the golang-migrate database URL for cfg
func migrationURL(cfg config.DatabaseConfig) string {
	if cfg.Driver == config.DriverSQLite {
		return "sqlite://" + strings.TrimPrefix(cfg.URL, "file:")
	}
	return cfg.URL
}

// extractDatabaseName returns the name used in span attributes
func extractDatabaseName(cfg config.DatabaseConfig) string {
	if cfg.Driver == config.DriverSQLite {
		return filepath.Base(cfg.URL)
	}
	if u, err := url.Parse(cfg.URL); err == nil {
		if name := strings.TrimPrefix(u.Path, "/"); name != "" {
			return name
		}
	}
	return "bugtracker"
}

// Open runs pending migrations when cfg.AutoMigrate is set, then opens and pings the store.
// Any failure is a DATABASE_CONNECTION_ERROR.
func (dm *Manager) Open(ctx context.Context, cfg config.DatabaseConfig) (result0 *DB, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "Open",
		attribute.String("db.system", cfg.Driver),
		attribute.String("db.name", extractDatabaseName(cfg)),
		attribute.Bool("migrations.enabled", cfg.AutoMigrate),
	)
	defer observability.FinishSpan(span, &err)

	if cfg.AutoMigrate {
		if err := dm.RunMigrations(ctx, cfg); err != nil {
			return nil, err
		}
	}
	return dm.OpenWithoutMigrations(ctx, cfg)
}

// OpenWithoutMigrations opens the instrumented connection pool and verifies it with a ping
func (dm *Manager) OpenWithoutMigrations(ctx context.Context, cfg config.DatabaseConfig) (result0 *DB, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "OpenWithoutMigrations",
		attribute.String("db.system", cfg.Driver),
		attribute.Int("db.max_open_conns", cfg.MaxOpenConns),
		attribute.Int("db.max_idle_conns", cfg.MaxIdleConns),
		attribute.String("db.conn_max_lifetime", cfg.ConnMaxLifetime.String()),
	)
	defer observability.FinishSpan(span, &err)

	driverName, err := registerOtelDriver(cfg.Driver, extractDatabaseName(cfg))
	if err != nil {
		return nil, contextutils.WrapWithCode(err, contextutils.ErrorCodeDatabaseConnection, "failed to register otelsql driver")
	}

	sqlDB, err := sql.Open(driverName, DataSourceName(cfg))
	if err != nil {
		return nil, contextutils.WrapWithCode(err, contextutils.ErrorCodeDatabaseConnection, "failed to open database connection")
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, config.DatabasePingTimeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		if closeErr := sqlDB.Close(); closeErr != nil {
			dm.logger.Error(ctx, "Failed to close database connection after ping failure", closeErr)
		}
		return nil, contextutils.WrapWithCode(err, contextutils.ErrorCodeDatabaseConnection, "failed to ping database")
	}

	dm.logger.Info(ctx, "Database connection established", map[string]interface{}{
		"driver":            cfg.Driver,
		"max_open_conns":    cfg.MaxOpenConns,
		"max_idle_conns":    cfg.MaxIdleConns,
		"conn_max_lifetime": cfg.ConnMaxLifetime.String(),
	})

	return &DB{DB: sqlDB, driver: cfg.Driver}, nil
}

// newMigrate builds a golang-migrate instance over the embedded files for cfg.Driver
func newMigrate(cfg config.DatabaseConfig) (*migrate.Migrate, error) {
	src, err := iofs.New(migrations.FS, cfg.Driver)
	if err != nil {
		return nil, fmt.Errorf("failed to load embedded migrations for %s: %w", cfg.Driver, err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, migrationURL(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize golang-migrate: %w", err)
	}
	return m, nil
}

// RunMigrations applies every pending embedded migration
func (dm *Manager) RunMigrations(ctx context.Context, cfg config.DatabaseConfig) (err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "RunMigrations",
		attribute.String("db.system", cfg.Driver),
		attribute.String("migration.type", "golang_migrate"),
	)
	defer observability.FinishSpan(span, &err)

	m, err := newMigrate(cfg)
	if err != nil {
		return contextutils.WrapWithCode(err, contextutils.ErrorCodeDatabaseConnection, "failed to prepare migrations")
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			dm.logger.Error(ctx, "Error closing migration", errors.Join(srcErr, dbErr))
		}
	}()

	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		dm.logger.Info(ctx, "No new migrations to apply", map[string]interface{}{"driver": cfg.Driver})
		return nil
	}
	if err != nil {
		return contextutils.WrapWithCode(err, contextutils.ErrorCodeDatabaseConnection, "migrate up failed")
	}

	version, _, _ := m.Version()
	span.SetAttributes(attribute.Int("migration.version", int(version)))
	dm.logger.Info(ctx, "Migrations applied", map[string]interface{}{"driver": cfg.Driver, "version": version})
	return nil
}

// MigrationVersion reports the applied schema version and whether it is dirty
func (dm *Manager) MigrationVersion(cfg config.DatabaseConfig) (version uint, dirty bool, err error) {
	m, err := newMigrate(cfg)
	if err != nil {
		return 0, false, contextutils.WrapWithCode(err, contextutils.ErrorCodeDatabaseConnection, "failed to prepare migrations")
	}
	defer func() { _, _ = m.Close() }()

	version, dirty, err = m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}
