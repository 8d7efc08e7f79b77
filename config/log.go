package config

import (
	"fmt"

	"github.com/lemmego/gpadmin"
	"go.uber.org/zap"
)

// LogConfig configures the zap logger handed to resources
type LogConfig struct {
	// Level is debug, info, warn or error
	Level string `mapstructure:"level"`
	// Format is json or console
	Format      string `mapstructure:"format"`
	Development bool   `mapstructure:"development"`
}

func (l LogConfig) level() (zap.AtomicLevel, error) {
	if l.Level == "" {
		return zap.NewAtomicLevelAt(zap.InfoLevel), nil
	}
	level, err := zap.ParseAtomicLevel(l.Level)
	if err != nil {
		return level, gpadmin.NewErrorWithCause(gpadmin.ErrorTypeConfiguration, fmt.Sprintf("invalid log level %q", l.Level), err)
	}
	return level, nil
}

// Build creates the logger
func (l LogConfig) Build() (*zap.Logger, error) {
	level, err := l.level()
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	if l.Development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = level
	switch l.Format {
	case "", "json":
		cfg.Encoding = "json"
	case "console":
		cfg.Encoding = "console"
	default:
		return nil, gpadmin.NewError(gpadmin.ErrorTypeConfiguration, fmt.Sprintf("unknown log format %q", l.Format))
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, gpadmin.NewErrorWithCause(gpadmin.ErrorTypeConfiguration, "failed to build logger", err)
	}
	return logger.Named("gpadmin"), nil
}
