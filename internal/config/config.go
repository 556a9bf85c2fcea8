package config

import (
	"os"
	"strings"

	"codeberg.org/arvel/coherenced/internal/coherence"
	"codeberg.org/arvel/coherenced/internal/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultLogLevel    = "info"
	defaultInterval    = 5
	defaultTelemetryDB = "/var/lib/coherenced/telemetry.db"

	configEnvVar = "COHERENCED_CONFIG"
	envPrefix    = "COHERENCED"
)

// Thresholds mirrors the [thresholds] table of the config file. Every
// field defaults to the stock policy value.
type Thresholds struct {
	MaxIncoherence         float64  `mapstructure:"max_incoherence"`
	MinSelfModeling        float64  `mapstructure:"min_self_modeling"`
	MinMemoryIntegrity     float64  `mapstructure:"min_memory_integrity"`
	MinDomainStabilization float64  `mapstructure:"min_domain_stabilization"`
	RequiredDomains        []string `mapstructure:"required_domains"`
}

type Config struct {
	Interval    int        `mapstructure:"interval"`
	Monitor     bool       `mapstructure:"monitor"`
	LogLevel    string     `mapstructure:"log_level"`
	LogFile     string     `mapstructure:"log_file"`
	Telemetry   bool       `mapstructure:"telemetry"`
	TelemetryDB string     `mapstructure:"database"`
	Source      string     `mapstructure:"source"`
	Thresholds  Thresholds `mapstructure:"thresholds"`
}

// Load reads configuration from flags, environment and the TOML config
// file, in that order of precedence. The config file is looked up via
// the COHERENCED_CONFIG environment variable, then the usual paths.
func Load() (*Config, error) {
	errFactory := errors.New()

	v := viper.New()
	setDefaults(v)

	flags := pflag.NewFlagSet("coherenced", pflag.ContinueOnError)
	configPath := flags.String("config", "", "Path to config file")
	flags.Int("interval", defaultInterval, "Seconds between evaluations")
	flags.Bool("monitor", false, "Evaluate and log only")
	flags.String("log-level", DefaultLogLevel, "Log level (debug, info, warning, error)")
	flags.String("log-file", "", "Optional rotated log file")
	flags.Bool("telemetry", false, "Enable telemetry recording")
	flags.String("database", defaultTelemetryDB, "Telemetry database path")
	flags.String("source", "", "Metric update feed path (default: stdin)")

	if err := flags.Parse(os.Args[1:]); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	bindings := map[string]string{
		"interval":  "interval",
		"monitor":   "monitor",
		"log_level": "log-level",
		"log_file":  "log-file",
		"telemetry": "telemetry",
		"database":  "database",
		"source":    "source",
	}
	for key, flagName := range bindings {
		if err := v.BindPFlag(key, flags.Lookup(flagName)); err != nil {
			return nil, errFactory.Wrap(errors.ErrBindFlags, err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := readConfigFile(v, *configPath); err != nil {
		return nil, err
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, errFactory.Wrap(errors.ErrReadConfig, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func readConfigFile(v *viper.Viper, explicitPath string) error {
	errFactory := errors.New()

	switch {
	case explicitPath != "":
		v.SetConfigFile(explicitPath)
	case os.Getenv(configEnvVar) != "":
		v.SetConfigFile(os.Getenv(configEnvVar))
	default:
		v.SetConfigName("coherenced")
		v.SetConfigType("toml")
		v.AddConfigPath("/etc")
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			v.AddConfigPath(xdg + "/coherenced")
		}
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return errFactory.Wrap(errors.ErrReadConfig, err)
	}

	return nil
}

// Validate checks the loaded configuration for usable values.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if c.Interval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.Interval)
	}

	switch c.LogLevel {
	case "debug", "info", "warning", "warn", "error":
	default:
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}

	if c.Telemetry && c.TelemetryDB == "" {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "telemetry enabled without database path")
	}

	return nil
}

// Policy resolves the configured threshold overrides onto a policy.
func (c *Config) Policy() coherence.Policy {
	return coherence.Policy{
		MaxIncoherence:         c.Thresholds.MaxIncoherence,
		MinSelfModeling:        c.Thresholds.MinSelfModeling,
		MinMemoryIntegrity:     c.Thresholds.MinMemoryIntegrity,
		MinDomainStabilization: c.Thresholds.MinDomainStabilization,
		RequiredDomains:        c.Thresholds.RequiredDomains,
	}
}

func setDefaults(v *viper.Viper) {
	stock := coherence.DefaultPolicy()

	v.SetDefault("interval", defaultInterval)
	v.SetDefault("monitor", false)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("log_file", "")
	v.SetDefault("telemetry", false)
	v.SetDefault("database", defaultTelemetryDB)
	v.SetDefault("source", "")
	v.SetDefault("thresholds.max_incoherence", stock.MaxIncoherence)
	v.SetDefault("thresholds.min_self_modeling", stock.MinSelfModeling)
	v.SetDefault("thresholds.min_memory_integrity", stock.MinMemoryIntegrity)
	v.SetDefault("thresholds.min_domain_stabilization", stock.MinDomainStabilization)
	v.SetDefault("thresholds.required_domains", stock.RequiredDomains)
}
