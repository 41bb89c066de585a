// Package config defines the global configuration structure for the raincast
// service. Configuration is loaded once at process initialization and is
// immutable thereafter. It follows 12-Factor App principles by strictly
// separating code from configuration.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> Struct Defaults (Lowest)
//
// Any missing required value or invalid format causes startup to fail fast.
package config

import "time"

// Config is the top-level configuration struct for the raincast service.
// It is populated once during process initialization and never modified.
// Sub-components receive only the specific config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"raincast-api"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain Configurations
	Server    ServerConfig
	Weather   WeatherConfig
	Artifacts ArtifactsConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server tuning parameters.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8000"`
	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"29s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// WeatherConfig holds the upstream archive endpoint, the fixed observation
// location, and outbound call resilience parameters.
//
// The defaults pin Sydney, Australia; the date-validation calendar day is
// computed in the configured timezone, not in the server's local zone.
type WeatherConfig struct {
	BaseURL   string  `envconfig:"WEATHER_ARCHIVE_URL" default:"https://archive-api.open-meteo.com/v1/archive" validate:"required,url"`
	Latitude  float64 `envconfig:"LOCATION_LATITUDE" default:"-33.8678" validate:"min=-90,max=90"`
	Longitude float64 `envconfig:"LOCATION_LONGITUDE" default:"151.2073" validate:"min=-180,max=180"`
	Timezone  string  `envconfig:"LOCATION_TIMEZONE" default:"Australia/Sydney" validate:"required"`

	RequestTimeout time.Duration `envconfig:"WEATHER_REQUEST_TIMEOUT" default:"10s"`
	MaxRetries     int           `envconfig:"WEATHER_MAX_RETRIES" default:"2" validate:"min=0,max=10"`
	UserAgent      string        `envconfig:"WEATHER_USER_AGENT" default:"raincast/1.0"`
}

// ArtifactsConfig holds the filesystem locations of the exported model
// artifact sets, one directory per prediction task.
type ArtifactsConfig struct {
	RainDir          string `envconfig:"RAIN_ARTIFACT_DIR" default:"artifacts/rain_or_not" validate:"required"`
	PrecipitationDir string `envconfig:"PRECIP_ARTIFACT_DIR" default:"artifacts/precipitation_fall" validate:"required"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
