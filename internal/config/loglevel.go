package config

import (
	"fmt"
	"strings"
)

// LogLevel is the client's log verbosity, named as the client expects it.
type LogLevel string

const (
	LogSilly   LogLevel = "SILLY"
	LogDebug   LogLevel = "DEBUG"
	LogVerbose LogLevel = "VERBOSE"
	LogInfo    LogLevel = "INFO"
	LogWarn    LogLevel = "WARN"
	LogError   LogLevel = "ERROR"
	LogAbort   LogLevel = "ABORT"
)

var logLevels = []LogLevel{LogSilly, LogDebug, LogVerbose, LogInfo, LogWarn, LogError, LogAbort}

// ParseLogLevel parses a level name case-insensitively. The empty string
// parses to the empty level, which leaves the client's default in place.
func ParseLogLevel(s string) (LogLevel, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	for _, level := range logLevels {
		if strings.EqualFold(s, string(level)) {
			return level, nil
		}
	}
	return "", fmt.Errorf("unknown log level %q", s)
}

func (l LogLevel) String() string {
	return string(l)
}
