// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"os"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ConversionBackend identifies how the document-conversion engine is invoked.
type ConversionBackend string

const (
	// BackendAuto uses a local pandoc binary when one is on PATH and falls
	// back to the container image otherwise.
	BackendAuto      ConversionBackend = "auto"
	BackendPandoc    ConversionBackend = "pandoc"
	BackendContainer ConversionBackend = "container"
)

// ServerConfig holds settings for the HTTP presentation layer.
type ServerConfig struct {
	// Addr is the listen address (e.g. ":8080").
	Addr string `json:"addr" yaml:"addr" mapstructure:"addr"`

	// RequestTimeout bounds a single request, conversion included.
	RequestTimeout time.Duration `json:"request_timeout" yaml:"request_timeout" mapstructure:"request_timeout"`

	// ShutdownTimeout is how long in-flight requests get to finish on shutdown.
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`

	// MaxBodyBytes caps the size of a submitted markdown body.
	MaxBodyBytes int64 `json:"max_body_bytes" yaml:"max_body_bytes" mapstructure:"max_body_bytes"`

	// CORSOrigins lists origins allowed to call the JSON API.
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins" mapstructure:"cors_origins"`
}

// Validate implements validation.Validatable.
func (c ServerConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Addr, validation.Required),
		validation.Field(&c.RequestTimeout, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.ShutdownTimeout, validation.Required),
		validation.Field(&c.MaxBodyBytes, validation.Required, validation.Min(int64(1))),
	)
}

// ConversionConfig holds settings for the conversion engine and its
// temporary-storage area.
type ConversionConfig struct {
	// Backend selects how pandoc is run: auto, pandoc, or container.
	Backend ConversionBackend `json:"backend" yaml:"backend" mapstructure:"backend"`

	// PandocPath is the pandoc binary used by the pandoc backend.
	PandocPath string `json:"pandoc_path" yaml:"pandoc_path" mapstructure:"pandoc_path"`

	// Image is the container image used by the container backend.
	Image string `json:"image" yaml:"image" mapstructure:"image"`

	// WorkDir holds the per-request input and output files.
	WorkDir string `json:"work_dir" yaml:"work_dir" mapstructure:"work_dir"`

	// ExtraArgs are appended to every pandoc invocation (e.g. --reference-doc=...).
	ExtraArgs []string `json:"extra_args,omitempty" yaml:"extra_args,omitempty" mapstructure:"extra_args"`
}

// Validate implements validation.Validatable.
func (c ConversionConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Backend, validation.Required, validation.In(BackendAuto, BackendPandoc, BackendContainer)),
		validation.Field(&c.PandocPath, validation.When(c.Backend == BackendPandoc, validation.Required)),
		validation.Field(&c.Image, validation.When(c.Backend == BackendContainer, validation.Required)),
		validation.Field(&c.WorkDir, validation.Required),
	)
}

// ArtifactConfig holds settings for the ledger of converted documents.
type ArtifactConfig struct {
	// TTL is how long a converted document stays downloadable.
	TTL time.Duration `json:"ttl" yaml:"ttl" mapstructure:"ttl"`

	// SweepInterval is the period between expiry sweeps.
	SweepInterval time.Duration `json:"sweep_interval" yaml:"sweep_interval" mapstructure:"sweep_interval"`

	// DBPath is the SQLite ledger file. Empty keeps the ledger in memory.
	DBPath string `json:"db_path" yaml:"db_path" mapstructure:"db_path"`
}

// Validate implements validation.Validatable.
func (c ArtifactConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.TTL, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.SweepInterval, validation.Required, validation.Min(time.Second)),
	)
}

// LogConfig holds logger settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Format is json or console.
	Format string `json:"format" yaml:"format" mapstructure:"format"`
}

// Validate implements validation.Validatable.
func (c LogConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Level, validation.In("debug", "info", "warn", "error")),
		validation.Field(&c.Format, validation.In("json", "console")),
	)
}

// Config groups all settings for md2docx.
type Config struct {
	Server     ServerConfig     `json:"server" yaml:"server" mapstructure:"server"`
	Conversion ConversionConfig `json:"conversion" yaml:"conversion" mapstructure:"conversion"`
	Artifacts  ArtifactConfig   `json:"artifacts" yaml:"artifacts" mapstructure:"artifacts"`
	Log        LogConfig        `json:"log" yaml:"log" mapstructure:"log"`
}

// Validate implements validation.Validatable.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Server),
		validation.Field(&c.Conversion),
		validation.Field(&c.Artifacts),
		validation.Field(&c.Log),
	)
}

// DefaultConfig returns the configuration used when no file, flag, or
// environment variable overrides a setting.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			RequestTimeout:  2 * time.Minute,
			ShutdownTimeout: 10 * time.Second,
			MaxBodyBytes:    10 << 20,
			CORSOrigins:     []string{"*"},
		},
		Conversion: ConversionConfig{
			Backend:    BackendAuto,
			PandocPath: "pandoc",
			Image:      "pandoc/core:latest",
			WorkDir:    filepath.Join(os.TempDir(), "md2docx"),
		},
		Artifacts: ArtifactConfig{
			TTL:           time.Hour,
			SweepInterval: 5 * time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
