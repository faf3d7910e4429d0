package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log is the global logger instance.
var Log = logrus.New()

// Config holds the logging configuration.
type Config struct {
	Level string `json:"level"` // e.g., "debug", "info", "warn", "error"
	Path  string `json:"path"`  // optional log file
}

// Init configures the global logger.
func Init(cfg Config) error {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	Log.SetLevel(level)
	Log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	if cfg.Path != "" {
		rotating := &lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    10,
			MaxBackups: 3,
		}
		Log.SetOutput(io.MultiWriter(os.Stdout, rotating))
	} else {
		Log.SetOutput(os.Stdout)
	}

	return nil
}
