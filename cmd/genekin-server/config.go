package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/caarlos0/env/v11"

	"github.com/daniacca/genekin/internal/kinetics"
)

// ServerConfig holds the server configuration
type ServerConfig struct {
	Addr        string
	LogLevel    string
	ModelFile   string
	DefaultRun  string
	SnapshotDir string
	SQLitePath  string
	Workers     int
}

// envConfig is the environment layer; envDefault supplies the defaults.
type envConfig struct {
	Addr        string `env:"GENEKIN_ADDR" envDefault:":8080"`
	LogLevel    string `env:"GENEKIN_LOG_LEVEL" envDefault:"info"`
	ModelFile   string `env:"GENEKIN_MODEL_FILE"`
	DefaultRun  string `env:"GENEKIN_RUN_ID" envDefault:"default"`
	SnapshotDir string `env:"GENEKIN_SNAPSHOT_DIR" envDefault:"./data"`
	SQLitePath  string `env:"GENEKIN_SQLITE_PATH"`
	Workers     string `env:"GENEKIN_NOTIFY_WORKERS" envDefault:"1"`
}

// configResolver defines how to resolve a single configuration value
type configResolver struct {
	flagName    string
	description string
	fromEnv     func(envConfig) string
	setter      func(*ServerConfig, string) error
}

var resolvers = []configResolver{
	{
		flagName:    "addr",
		description: "HTTP listen address (e.g. :8080, 0.0.0.0:8080)",
		fromEnv:     func(e envConfig) string { return e.Addr },
		setter:      func(c *ServerConfig, v string) error { c.Addr = v; return nil },
	},
	{
		flagName:    "log-level",
		description: "Log level: debug, info, warn, error",
		fromEnv:     func(e envConfig) string { return e.LogLevel },
		setter:      func(c *ServerConfig, v string) error { c.LogLevel = v; return nil },
	},
	{
		flagName:    "model-file",
		description: "optional path to a JSON model config started as a run at startup",
		fromEnv:     func(e envConfig) string { return e.ModelFile },
		setter:      func(c *ServerConfig, v string) error { c.ModelFile = v; return nil },
	},
	{
		flagName:    "run-id",
		description: "run ID for the startup model",
		fromEnv:     func(e envConfig) string { return e.DefaultRun },
		setter:      func(c *ServerConfig, v string) error { c.DefaultRun = v; return nil },
	},
	{
		flagName:    "snapshot-dir",
		description: "directory where run snapshots are stored",
		fromEnv:     func(e envConfig) string { return e.SnapshotDir },
		setter:      func(c *ServerConfig, v string) error { c.SnapshotDir = v; return nil },
	},
	{
		flagName:    "sqlite",
		description: "optional SQLite database every run's reports are also written to",
		fromEnv:     func(e envConfig) string { return e.SQLitePath },
		setter:      func(c *ServerConfig, v string) error { c.SQLitePath = v; return nil },
	},
	{
		flagName:    "notify-workers",
		description: "number of notification delivery goroutines",
		fromEnv:     func(e envConfig) string { return e.Workers },
		setter: func(c *ServerConfig, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				return fmt.Errorf("invalid value for notify-workers: %q", v)
			}
			c.Workers = n
			return nil
		},
	},
}

// loadServerConfig resolves each option from flags, then the environment,
// then its default.
func loadServerConfig(args []string) (ServerConfig, error) {
	var fromEnv envConfig
	if err := env.Parse(&fromEnv); err != nil {
		return ServerConfig{}, fmt.Errorf("parse env: %w", err)
	}

	fs := flag.NewFlagSet("genekin-server", flag.ContinueOnError)
	flagVars := make(map[string]*string, len(resolvers))
	for _, resolver := range resolvers {
		flagVars[resolver.flagName] = fs.String(resolver.flagName, "", resolver.description)
	}
	if err := fs.Parse(args); err != nil {
		return ServerConfig{}, err
	}

	var cfg ServerConfig
	for _, resolver := range resolvers {
		value := *flagVars[resolver.flagName]
		if value == "" {
			value = resolver.fromEnv(fromEnv)
		}
		if err := resolver.setter(&cfg, value); err != nil {
			return ServerConfig{}, err
		}
	}
	return cfg, nil
}

// loadModelConfig reads and validates a model config file.
func loadModelConfig(path string) (kinetics.ModelConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return kinetics.ModelConfig{}, fmt.Errorf("reading model file: %w", err)
	}
	var cfg kinetics.ModelConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return kinetics.ModelConfig{}, fmt.Errorf("parsing model JSON: %w", err)
	}
	if err := kinetics.ValidateModelConfig(cfg); err != nil {
		return kinetics.ModelConfig{}, err
	}
	return cfg, nil
}
