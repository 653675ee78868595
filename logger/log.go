// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package logger

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogOutputWriter is the default output for the global logger
var LogOutputWriter io.Writer = os.Stderr

func init() {
	// uses compact cli logger by default
	CliCompactLogger(LogOutputWriter)
}

// SetWriter configures a log writer for the global logger
func SetWriter(w io.Writer) {
	log.Logger = log.Output(w)
}

// UseJSONLogging switches the global logger to structured json output
func UseJSONLogging(out io.Writer) {
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
}

// CliLogger configures the global logger for interactive terminal use
func CliLogger() {
	log.Logger = NewConsoleWriter(LogOutputWriter, false)
}

// CliCompactLogger drops timestamps and uses short level indicators
func CliCompactLogger(out io.Writer) {
	log.Logger = NewConsoleWriter(out, true)
}

// Set adjusts the global log level by name. Unknown names fall back to info.
func Set(level string) {
	switch strings.ToLower(level) {
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "warn", "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "trace":
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		log.Warn().Str("level", level).Msg("unknown log level, falling back to info")
	}
}

// GetEnvLogLevel returns the log level requested via environment variables.
// DEBUG and TRACE override any configured level.
func GetEnvLogLevel() (string, bool) {
	level := ""
	ok := false
	if val := os.Getenv("DEBUG"); val == "1" || strings.ToLower(val) == "true" {
		level = "debug"
		ok = true
	}
	if val := os.Getenv("TRACE"); val == "1" || strings.ToLower(val) == "true" {
		level = "trace"
		ok = true
	}
	return level, ok
}

// InitTestEnv will set all log configurations for a test environment
// verbose and colorful
func InitTestEnv() {
	Set("debug")
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}
