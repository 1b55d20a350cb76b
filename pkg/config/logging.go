package config

import (
	"fmt"
	"io"
	"strings"

	"github.com/pion/logging"
)

// LoggingConfig sets the default log level and per-scope overrides.
// Scopes are the pion logger scopes, e.g. "usercred" or "transport-udp".
type LoggingConfig struct {
	Level  string            `yaml:"level"`
	Scopes map[string]string `yaml:"scopes"`
}

// ParseLevel maps a level name to a pion log level.
func ParseLevel(name string) (logging.LogLevel, error) {
	switch strings.ToLower(name) {
	case "disabled", "off":
		return logging.LogLevelDisabled, nil
	case "error":
		return logging.LogLevelError, nil
	case "warn", "warning":
		return logging.LogLevelWarn, nil
	case "info", "":
		return logging.LogLevelInfo, nil
	case "debug":
		return logging.LogLevelDebug, nil
	case "trace":
		return logging.LogLevelTrace, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", name)
	}
}

func (l LoggingConfig) validate() error {
	if _, err := ParseLevel(l.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	for scope, lvl := range l.Scopes {
		if _, err := ParseLevel(lvl); err != nil {
			return fmt.Errorf("logging.scopes.%s: %w", scope, err)
		}
	}
	return nil
}

// LoggerFactory builds a pion logger factory writing to w.
func (l LoggingConfig) LoggerFactory(w io.Writer) (*logging.DefaultLoggerFactory, error) {
	if err := l.validate(); err != nil {
		return nil, err
	}
	lf := logging.NewDefaultLoggerFactory()
	lf.Writer = w
	lf.DefaultLogLevel, _ = ParseLevel(l.Level)
	lf.ScopeLevels = make(map[string]logging.LogLevel, len(l.Scopes))
	for scope, name := range l.Scopes {
		lf.ScopeLevels[scope], _ = ParseLevel(name)
	}
	return lf, nil
}
