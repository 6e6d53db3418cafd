package command

import (
	"fmt"

	"go.uber.org/zap/zapcore"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-netplay/internal/logging"
)

type LoggingConfig struct {
	File       string `json:"file"`
	Level      string `json:"level"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
}

func (c *LoggingConfig) Validate() error {
	el := errors.NewErrorList()

	if c.Level != "" {
		if _, err := zapcore.ParseLevel(c.Level); err != nil {
			el.Add(fmt.Errorf("parsing level: %w", err))
		}
	}
	if c.MaxSizeMB < 0 {
		el.Add(fmt.Errorf("max_size_mb must not be negative"))
	}
	if c.MaxBackups < 0 {
		el.Add(fmt.Errorf("max_backups must not be negative"))
	}

	return el.Err()
}

func (c *LoggingConfig) Options() logging.Options {
	return logging.Options{
		File:       c.File,
		Level:      c.Level,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
	}
}
