package config

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"github.com/vjranagit/leveltracker/pkg/utils/logging"
)

// Logger holds CLI flags for logging
type Logger struct {
	level  string
	format string
	output string
}

// Flags returns CLI flags for logger configuration
func (l *Logger) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("LEVELTRACKER_LOG_LEVEL"),
			Destination: &l.level,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "Log format (text, json)",
			Value:       "text",
			Sources:     cli.EnvVars("LEVELTRACKER_LOG_FORMAT"),
			Destination: &l.format,
		},
		&cli.StringFlag{
			Name:        "log-output",
			Usage:       "Log output (stderr, stdout, or a file path)",
			Value:       "stderr",
			Sources:     cli.EnvVars("LEVELTRACKER_LOG_OUTPUT"),
			Destination: &l.output,
		},
	}
}

// Configure installs the default logger and returns a function releasing its output
func (l *Logger) Configure() (func(), error) {
	var level slog.Level
	switch strings.ToLower(l.level) {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, goerr.New("invalid log level", goerr.V("level", l.level))
	}

	var format logging.Format
	switch strings.ToLower(l.format) {
	case "text", "":
		format = logging.FormatText
	case "json":
		format = logging.FormatJSON
	default:
		return nil, goerr.New("invalid log format", goerr.V("format", l.format))
	}

	var (
		w      io.Writer
		closer = func() {}
		color  bool
	)
	switch l.output {
	case "stderr", "":
		w, color = os.Stderr, true
	case "stdout", "-":
		w, color = os.Stdout, true
	default:
		// #nosec G304 - path is provided by the operator
		f, err := os.OpenFile(l.output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to open log file", goerr.V("path", l.output))
		}
		w = f
		closer = func() { _ = f.Close() }
	}

	logging.SetDefault(logging.New(w, format, level, color))
	return closer, nil
}

// LogValue implements slog.LogValuer
func (l *Logger) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("level", l.level),
		slog.String("format", l.format),
		slog.String("output", l.output),
	)
}
