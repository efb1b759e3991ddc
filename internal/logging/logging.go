package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// New builds the process logger. Production environments get the JSON
// production config, everything else the console development config.
// A non-empty format overrides the encoding picked by env.
func New(env, level, format string) (*zap.Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(env) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}

	if level != "" {
		lvl, err := zap.ParseAtomicLevel(strings.ToLower(level))
		if err != nil {
			return nil, fmt.Errorf("log level %q: %w", level, err)
		}
		cfg.Level = lvl
	}

	switch strings.ToLower(format) {
	case "":
	case "json":
		cfg.Encoding = "json"
	case "console":
		cfg.Encoding = "console"
	default:
		return nil, fmt.Errorf("log format %q: must be json or console", format)
	}

	return cfg.Build()
}
