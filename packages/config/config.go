// Package config loads gridcalc settings from YAML and validates them.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/vogtb/gridcalc/packages/spreadsheet"
)

// ErrInvalidConfig is returned when a loaded config fails validation
var ErrInvalidConfig = errors.New("invalid config")

// Config is the top-level configuration document
type Config struct {
	LogLevel  string    `yaml:"log_level" validate:"oneof=debug info warn error"`
	Engine    Engine    `yaml:"engine"`
	Driver    Driver    `yaml:"driver"`
	Telemetry Telemetry `yaml:"telemetry"`
}

// Engine bounds the grid and tunes recalculation
type Engine struct {
	MaxRows           int `yaml:"max_rows" validate:"gte=1,lte=999"`
	MaxColumns        int `yaml:"max_columns" validate:"gte=1,lte=18278"`
	ParallelThreshold int `yaml:"parallel_threshold" validate:"gte=1"`
	MaxWorkers        int `yaml:"max_workers" validate:"gte=1,lte=256"`
}

// Driver configures the script runner
type Driver struct {
	ViewportSize int  `yaml:"viewport_size" validate:"gte=1,lte=100"`
	Output       bool `yaml:"output"`
}

// Telemetry selects the OpenTelemetry exporters
type Telemetry struct {
	ServiceName    string `yaml:"service_name" validate:"required"`
	TraceExporter  string `yaml:"trace_exporter" validate:"oneof=none stdout"`
	MetricExporter string `yaml:"metric_exporter" validate:"oneof=none stdout prometheus"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		LogLevel: "info",
		Engine: Engine{
			MaxRows:           spreadsheet.DefaultMaxRows,
			MaxColumns:        spreadsheet.DefaultMaxColumns,
			ParallelThreshold: spreadsheet.DefaultParallelThreshold,
			MaxWorkers:        spreadsheet.DefaultMaxWorkers(),
		},
		Driver: Driver{
			ViewportSize: 10,
			Output:       true,
		},
		Telemetry: Telemetry{
			ServiceName:    "gridcalc",
			TraceExporter:  "none",
			MetricExporter: "none",
		},
	}
}

// Load reads a YAML file over the defaults and validates the result. keys
// missing from the file keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks every field against its constraints
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return fmt.Errorf("%w: %s failed %q (value %v)", ErrInvalidConfig, first.Namespace(), first.Tag(), first.Value())
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// SlogLevel maps LogLevel to a slog level
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Options converts the engine settings into spreadsheet options
func (e Engine) Options() []spreadsheet.Option {
	return []spreadsheet.Option{
		spreadsheet.WithLimits(e.MaxRows, e.MaxColumns),
		spreadsheet.WithParallelism(e.ParallelThreshold, e.MaxWorkers),
	}
}
