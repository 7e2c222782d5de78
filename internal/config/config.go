// Package config loads bug tracker configuration from YAML and environment variables.
package config

import (
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	contextutils "bugtracker/internal/utils"

	"gopkg.in/yaml.v3"
)

// ConfigFileEnv names the environment variable holding the config file path
const ConfigFileEnv = "BUGTRACKER_CONFIG_FILE"

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig `json:"server" yaml:"server"`

	// Database configuration
	Database DatabaseConfig `json:"database" yaml:"database"`

	// Screenshot storage
	Storage StorageConfig `json:"storage" yaml:"storage"`

	// OpenTelemetry Configuration
	OpenTelemetry OpenTelemetryConfig `json:"open_telemetry" yaml:"open_telemetry"`

	// Email Configuration
	Email EmailConfig `json:"email" yaml:"email"`

	// Linear export
	Linear LinearConfig `json:"linear" yaml:"linear"`

	// Internal fields
	IsTest bool `json:"is_test" yaml:"is_test"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Port           string        `json:"port" yaml:"port"`
	Debug          bool          `json:"debug" yaml:"debug"`
	LogLevel       string        `json:"log_level" yaml:"log_level"`
	BaseURL        string        `json:"base_url" yaml:"base_url"`
	CORSOrigins    []string      `json:"cors_origins" yaml:"cors_origins"`
	MaxBodyBytes   int64         `json:"max_body_bytes" yaml:"max_body_bytes"`
	DefaultActor   string        `json:"default_actor" yaml:"default_actor"`
	RequestTimeout time.Duration `json:"request_timeout" yaml:"request_timeout"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Driver          string        `json:"driver" yaml:"driver"` // "sqlite" or "postgres"
	URL             string        `json:"url" yaml:"url"`       // file path for sqlite, DSN for postgres
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	AutoMigrate     bool          `json:"auto_migrate" yaml:"auto_migrate"`
}

// StorageConfig controls where screenshots are written
type StorageConfig struct {
	ScreenshotDir      string `json:"screenshot_dir" yaml:"screenshot_dir"`
	MaxScreenshotBytes int    `json:"max_screenshot_bytes" yaml:"max_screenshot_bytes"`
}

// OpenTelemetryConfig holds all OpenTelemetry-related configuration
type OpenTelemetryConfig struct {
	Endpoint       string            `json:"endpoint" yaml:"endpoint"`               // Default: "localhost:4317"
	Protocol       string            `json:"protocol" yaml:"protocol"`               // "grpc" or "http", default: "grpc"
	Insecure       bool              `json:"insecure" yaml:"insecure"`
	Headers        map[string]string `json:"headers" yaml:"headers"`
	ServiceName    string            `json:"service_name" yaml:"service_name"`
	ServiceVersion string            `json:"service_version" yaml:"service_version"`
	EnableTracing  bool              `json:"enable_tracing" yaml:"enable_tracing"`
	EnableMetrics  bool              `json:"enable_metrics" yaml:"enable_metrics"`
	EnableLogging  bool              `json:"enable_logging" yaml:"enable_logging"`
	SamplingRate   float64           `json:"sampling_rate" yaml:"sampling_rate"`
}

// EmailConfig represents email/SMTP configuration
type EmailConfig struct {
	SMTP    SMTPConfig `json:"smtp" yaml:"smtp"`
	Enabled bool       `json:"enabled" yaml:"enabled"`
	// Recipients maps actor identities to email addresses. Actors that already
	// look like an address are used as is.
	Recipients map[string]string `json:"recipients" yaml:"recipients"`
}

// SMTPConfig represents SMTP server configuration
type SMTPConfig struct {
	Host        string `json:"host" yaml:"host"`
	Port        int    `json:"port" yaml:"port"`
	Username    string `json:"username" yaml:"username"`
	Password    string `json:"password" yaml:"password"`
	FromAddress string `json:"from_address" yaml:"from_address"`
	FromName    string `json:"from_name" yaml:"from_name"`
}

// LinearConfig configures issue export to Linear
type LinearConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	APIKey  string `json:"api_key" yaml:"api_key"`
	TeamID  string `json:"team_id" yaml:"team_id"`
	APIURL  string `json:"api_url" yaml:"api_url"`
}

// NewConfig loads configuration from YAML file first, then overrides with environment variables
func NewConfig() (result0 *Config, err error) {
	config, err := loadConfigWithOverrides()
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to load config: %w", err)
	}

	config.overrideFromEnv()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Default returns a configuration with every default applied and nothing loaded
func Default() *Config {
	c := &Config{}
	_ = c.Validate()
	return c
}

// Validate fills unset values with defaults and rejects unusable settings
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		c.Server.Port = DefaultPort
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.MaxBodyBytes <= 0 {
		c.Server.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.Server.DefaultActor == "" {
		c.Server.DefaultActor = contextutils.UnknownActor
	}
	if c.Server.RequestTimeout <= 0 {
		c.Server.RequestTimeout = DefaultHTTPTimeout
	}

	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	switch c.Database.Driver {
	case "":
		c.Database.Driver = DriverSQLite
	case DriverSQLite, DriverPostgres:
	default:
		return contextutils.Detailf(contextutils.ErrInvalidInput, "database.driver must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.Database.Driver)
	}
	if c.Database.URL == "" {
		if c.Database.Driver == DriverPostgres {
			return contextutils.Detailf(contextutils.ErrMissingRequired, "database.url is required for the postgres driver")
		}
		c.Database.URL = DefaultSQLitePath
	}
	if c.Database.Driver == DriverSQLite {
		c.Database.MaxOpenConns = 1
		c.Database.MaxIdleConns = 1
	}
	if c.Database.MaxOpenConns <= 0 {
		c.Database.MaxOpenConns = 25
	}
	if c.Database.MaxIdleConns <= 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetime <= 0 {
		c.Database.ConnMaxLifetime = DatabaseConnMaxLifetime
	}

	if c.Storage.ScreenshotDir == "" {
		c.Storage.ScreenshotDir = DefaultScreenshotDir
	}
	if c.Storage.MaxScreenshotBytes <= 0 {
		c.Storage.MaxScreenshotBytes = DefaultMaxScreenshotBytes
	}

	if c.OpenTelemetry.Endpoint == "" {
		c.OpenTelemetry.Endpoint = "localhost:4317"
	}
	if c.OpenTelemetry.Protocol == "" {
		c.OpenTelemetry.Protocol = "grpc"
	}
	if c.OpenTelemetry.ServiceName == "" {
		c.OpenTelemetry.ServiceName = DefaultServiceName
	}
	if c.OpenTelemetry.SamplingRate <= 0 || c.OpenTelemetry.SamplingRate > 1 {
		c.OpenTelemetry.SamplingRate = 1.0
	}

	if c.Email.SMTP.Port == 0 {
		c.Email.SMTP.Port = 587
	}
	if c.Linear.APIURL == "" {
		c.Linear.APIURL = DefaultLinearAPIURL
	}
	if c.Linear.Enabled && (c.Linear.APIKey == "" || c.Linear.TeamID == "") {
		return contextutils.Detailf(contextutils.ErrMissingRequired, "linear.api_key and linear.team_id are required when linear is enabled")
	}
	return nil
}

// overrideFromEnv overrides config values with environment variables using reflection
func (c *Config) overrideFromEnv() {
	overrideStructFromEnv(c)
}

// overrideStructFromEnv recursively overrides struct fields with environment variables
func overrideStructFromEnv(v interface{}) {
	overrideStructFromEnvWithPrefix(v, "")
}

// overrideStructFromEnvWithPrefix walks v's fields and sets each from the environment
// variable named after its yaml tag path, e.g. database.url -> DATABASE_URL.
func overrideStructFromEnvWithPrefix(v interface{}, prefix string) {
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return
	}

	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		if !field.CanSet() {
			continue
		}

		yamlTag := strings.Split(fieldType.Tag.Get("yaml"), ",")[0]
		if yamlTag == "" || yamlTag == "-" {
			continue
		}

		envKey := strings.ToUpper(strings.ReplaceAll(yamlTag, "-", "_"))
		if prefix != "" {
			envKey = prefix + "_" + envKey
		}
		envVal := os.Getenv(envKey)

		switch field.Kind() {
		case reflect.String:
			if envVal != "" {
				field.SetString(envVal)
			}
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			if envVal == "" {
				continue
			}
			if field.Type() == reflect.TypeOf(time.Duration(0)) {
				if d, err := time.ParseDuration(envVal); err == nil {
					field.SetInt(int64(d))
				}
				continue
			}
			if intVal, err := strconv.ParseInt(envVal, 10, 64); err == nil {
				field.SetInt(intVal)
			}
		case reflect.Float32, reflect.Float64:
			if envVal != "" {
				if floatVal, err := strconv.ParseFloat(envVal, 64); err == nil {
					field.SetFloat(floatVal)
				}
			}
		case reflect.Bool:
			if envVal != "" {
				if boolVal, err := strconv.ParseBool(envVal); err == nil {
					field.SetBool(boolVal)
				}
			}
		case reflect.Slice:
			if envVal != "" && field.Type().Elem().Kind() == reflect.String {
				parts := strings.Split(envVal, ",")
				for i := range parts {
					parts[i] = strings.TrimSpace(parts[i])
				}
				field.Set(reflect.ValueOf(parts))
			}
		case reflect.Struct:
			if field.CanAddr() {
				overrideStructFromEnvWithPrefix(field.Addr().Interface(), envKey)
			}
		}
	}
}

// loadConfigWithOverrides loads the file named by BUGTRACKER_CONFIG_FILE, or config.yaml.
// A missing default config.yaml is not an error; defaults and env then apply.
func loadConfigWithOverrides() (result0 *Config, err error) {
	if envPath := os.Getenv(ConfigFileEnv); envPath != "" {
		config, err := loadConfigFromFile(envPath)
		if err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to load config from %s: %w", envPath, err)
		}
		return config, nil
	}

	config, err := loadConfigFromFile("config.yaml")
	if os.IsNotExist(err) {
		return &Config{}, nil
	}
	return config, err
}

// loadConfigFromFile loads configuration from a specific file
func loadConfigFromFile(path string) (result0 *Config, err error) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := yaml.Unmarshal(yamlFile, &config); err != nil {
		return nil, err
	}

	return &config, nil
}
