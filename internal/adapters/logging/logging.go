// Package logging builds the logrus logger shared by the server and the CLI.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	ModeDevelopment = "development"
	ModeProduction  = "production"
)

// New returns a logger writing to stderr. Production mode emits JSON lines;
// anything else emits text with full timestamps. An empty level means info.
func New(mode, level string) (*logrus.Logger, error) {
	return NewWithOutput(os.Stderr, mode, level)
}

func NewWithOutput(out io.Writer, mode, level string) (*logrus.Logger, error) {
	parsed := logrus.InfoLevel
	if trimmed := strings.TrimSpace(level); trimmed != "" {
		var err error
		parsed, err = logrus.ParseLevel(trimmed)
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
	}

	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(parsed)
	if strings.EqualFold(strings.TrimSpace(mode), ModeProduction) {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger, nil
}

// Discard is a logger for tests and callers that opt out of logging.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
