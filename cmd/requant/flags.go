package main

import (
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/requant/internal/logger"
)

var (
	logLevel  string
	logFormat string
)

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Destination: &logFormat,
		},
	}
}

// newLogger builds the logger from flags, falling back to config file
// values when a flag was not given.
func newLogger() logger.Logger {
	cfg := LoadConfig()

	level := logLevel
	if level == "" {
		level = cfg.LogLevel
	}
	format := logFormat
	if format == "" {
		format = cfg.LogFormat
	}

	parsed := logger.ParseLevel(level)
	switch format {
	case "json":
		return logger.JSON(os.Stderr, parsed)
	case "text":
		return logger.Text(os.Stderr, parsed)
	default:
		return logger.Pretty(os.Stderr, parsed)
	}
}
