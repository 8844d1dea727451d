// Package logging builds the zap loggers used by the CLI and the HTTP API.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	zaplogfmt "github.com/sykesm/zap-logfmt"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Output formats.
const (
	FormatJSON    = "json"
	FormatLogfmt  = "logfmt"
	FormatConsole = "console"
)

// Environment variables consulted when a Config field is empty.
const (
	EnvFormat = "DERPKI_LOG_FORMAT"
	EnvLevel  = "DERPKI_LOG_LEVEL"
)

const defaultLevel = zapcore.InfoLevel

// Config selects the encoder, minimum level and destination of a logger.
type Config struct {
	Format string
	Level  string
	Writer io.Writer
}

// New returns a logger for c. Empty fields fall back to DERPKI_LOG_FORMAT,
// DERPKI_LOG_LEVEL and os.Stderr, then to console output at info level.
func New(c Config) (*zap.Logger, error) {
	if c.Format == "" {
		c.Format = os.Getenv(EnvFormat)
	}
	if c.Level == "" {
		c.Level = os.Getenv(EnvLevel)
	}
	if c.Writer == nil {
		c.Writer = os.Stderr
	}

	level, err := ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	encoder, err := newEncoder(c.Format)
	if err != nil {
		return nil, err
	}

	core := zapcore.NewCore(encoder, writeSyncer(c.Writer), level)
	return zap.New(core), nil
}

// ParseLevel parses a level name. The empty string means info.
func ParseLevel(s string) (zapcore.Level, error) {
	if s == "" {
		return defaultLevel, nil
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return defaultLevel, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

func newEncoder(format string) (zapcore.Encoder, error) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.NameKey = "name"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	switch strings.ToLower(format) {
	case FormatJSON:
		return zapcore.NewJSONEncoder(encoderConfig), nil
	case FormatLogfmt:
		return zaplogfmt.NewEncoder(encoderConfig), nil
	case FormatConsole, "":
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		return zapcore.NewConsoleEncoder(encoderConfig), nil
	default:
		return nil, fmt.Errorf("unknown log format %q (want json, logfmt or console)", format)
	}
}

func writeSyncer(w io.Writer) zapcore.WriteSyncer {
	switch t := w.(type) {
	case *os.File:
		return zapcore.Lock(t)
	case zapcore.WriteSyncer:
		return t
	default:
		return zapcore.AddSync(w)
	}
}
