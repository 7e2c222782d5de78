package config

import "time"

// Database drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Defaults applied by Validate
const (
	DefaultPort               = "8080"
	DefaultServiceName        = "bugtracker"
	DefaultSQLitePath         = "bug_reports.db"
	DefaultScreenshotDir      = "bug_screenshots"
	DefaultMaxScreenshotBytes = 10 << 20
	DefaultMaxBodyBytes       = 16 << 20
	DefaultLinearAPIURL       = "https://api.linear.app/graphql"
)

// Timeout constants
const (
	DefaultHTTPTimeout      = 30 * time.Second
	ShutdownTimeout         = 15 * time.Second
	DatabaseConnMaxLifetime = 5 * time.Minute
	DatabasePingTimeout     = 5 * time.Second
	IntegrationTimeout      = 10 * time.Second
)

// Security configuration constants
const (
	DefaultCSP = "default-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:;"
)

// Request header names carrying caller identity
const (
	ActorHeader   = "X-Actor"
	SessionHeader = "X-Session-ID"
)
