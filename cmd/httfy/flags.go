package main

import (
	"fmt"
	"os"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/goliatone/go-httfy/pkg/config"
	"github.com/goliatone/go-httfy/pkg/interfaces/logger"
)

// Flags holds the global options shared by every subcommand.
type Flags struct {
	LogLevel   string
	LogFormat  string
	ConfigPath string

	// Config and Logger are populated in the Before hook.
	Config *config.Config
	Logger logger.Logger
}

// loadConfig reads the optional JSON config file and overlays the environment.
func loadConfig(path string) (config.Config, error) {
	var input any = config.Config{}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return config.Config{}, fmt.Errorf("read config: %w", err)
		}
		doc := map[string]any{}
		if err := json.Unmarshal(raw, &doc); err != nil {
			return config.Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		input = doc
	}
	return config.Load(input, config.WithEnv(nil))
}

// newLogger picks the zerolog backend for json output, the plain text logger otherwise.
func newLogger(cfg config.LoggingConfig) (logger.Logger, error) {
	level := strings.ToLower(cfg.Level)
	if cfg.Format == "json" {
		lvl, err := zerolog.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		zl := zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
		return logger.NewZerolog(zl), nil
	}
	return logger.NewWithWriter(os.Stderr).WithMinLevel(level), nil
}
