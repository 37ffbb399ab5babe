// Package config loads labguide settings from flags, LABGUIDE_* environment
// variables and an optional labguide.yaml.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ormasoftchile/labguide/pkg/guide/exam"
	"github.com/ormasoftchile/labguide/pkg/logging"
	"github.com/ormasoftchile/labguide/pkg/queue"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "LABGUIDE"

// Config is the decoded configuration.
type Config struct {
	GuidesDir string
	LogLevel  string
	LogFormat string
	LogFile   string
	TraceFile string
	Queue     QueueConfig
	Transport TransportConfig
	Exam      ExamConfig
}

// QueueConfig configures the request queue.
type QueueConfig struct {
	Delay   time.Duration
	Timeout time.Duration
}

// TransportConfig selects the queue transport. URL wins over Command.
type TransportConfig struct {
	URL     string
	Token   string
	Command []string
}

// ExamConfig holds exam grading settings.
type ExamConfig struct {
	PassRule string
}

// Logging returns the logging configuration.
func (c *Config) Logging() logging.Config {
	return logging.Config{Level: c.LogLevel, Format: c.LogFormat, File: c.LogFile}
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("guides-dir", "guides")
	v.SetDefault("log-level", "info")
	v.SetDefault("log-format", "text")
	v.SetDefault("queue.delay", queue.DefaultDelay)
	v.SetDefault("queue.timeout", 10*time.Second)
	v.SetDefault("exam.pass-rule", exam.DefaultPassRule)
}

// Init prepares v: defaults, environment, config file and flags. A missing
// config file is not an error; configPath forces a specific file.
func Init(v *viper.Viper, configPath string, flags *pflag.FlagSet) error {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("labguide")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.labguide")
		if xdg, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(xdg, "labguide"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return errors.Wrap(err, "read config")
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return errors.Wrap(err, "bind flags")
		}
	}
	return nil
}

// Load decodes v into a Config.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		GuidesDir: v.GetString("guides-dir"),
		LogLevel:  v.GetString("log-level"),
		LogFormat: v.GetString("log-format"),
		LogFile:   v.GetString("log-file"),
		TraceFile: v.GetString("trace-file"),
		Queue: QueueConfig{
			Delay:   v.GetDuration("queue.delay"),
			Timeout: v.GetDuration("queue.timeout"),
		},
		Transport: TransportConfig{
			URL:     v.GetString("transport.url"),
			Token:   v.GetString("transport.token"),
			Command: v.GetStringSlice("transport.command"),
		},
		Exam: ExamConfig{
			PassRule: v.GetString("exam.pass-rule"),
		},
	}
	if cfg.Queue.Delay < 0 {
		return nil, errors.Errorf("queue.delay must not be negative (got %s)", cfg.Queue.Delay)
	}
	if cfg.Queue.Timeout < 0 {
		return nil, errors.Errorf("queue.timeout must not be negative (got %s)", cfg.Queue.Timeout)
	}
	return cfg, nil
}
