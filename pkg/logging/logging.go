package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the structured logger used across the harness
type Logger interface {
	Debug(ctx context.Context, msg string, fields map[string]interface{})
	Info(ctx context.Context, msg string, fields map[string]interface{})
	Warn(ctx context.Context, msg string, fields map[string]interface{})
	Error(ctx context.Context, msg string, fields map[string]interface{})
}

// ZeroLogger implements Logger on top of zerolog
type ZeroLogger struct {
	logger zerolog.Logger
}

type options struct {
	level  string
	output io.Writer
	json   bool
}

// Option configures a logger created with New
type Option func(*options)

// WithLevel sets the minimum level ("debug", "info", "warn", "error")
func WithLevel(level string) Option {
	return func(o *options) {
		o.level = level
	}
}

// WithOutput sets the writer log lines go to
func WithOutput(w io.Writer) Option {
	return func(o *options) {
		o.output = w
	}
}

// WithJSON switches from the console writer to raw JSON lines
func WithJSON(enabled bool) Option {
	return func(o *options) {
		o.json = enabled
	}
}

// New creates a zerolog backed logger. Defaults to info level on stderr.
func New(opts ...Option) *ZeroLogger {
	o := &options{
		level:  "info",
		output: os.Stderr,
	}
	for _, opt := range opts {
		opt(o)
	}

	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(o.level)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var w io.Writer = o.output
	if !o.json {
		w = zerolog.ConsoleWriter{Out: o.output, TimeFormat: time.RFC3339}
	}

	return &ZeroLogger{
		logger: zerolog.New(w).Level(level).With().Timestamp().Logger(),
	}
}

// Zerolog exposes the underlying zerolog logger
func (l *ZeroLogger) Zerolog() zerolog.Logger {
	return l.logger
}

// With returns a child logger that always carries the given fields
func (l *ZeroLogger) With(fields map[string]interface{}) *ZeroLogger {
	return &ZeroLogger{logger: l.logger.With().Fields(fields).Logger()}
}

func (l *ZeroLogger) Debug(ctx context.Context, msg string, fields map[string]interface{}) {
	l.logger.Debug().Ctx(ctx).Fields(fields).Msg(msg)
}

func (l *ZeroLogger) Info(ctx context.Context, msg string, fields map[string]interface{}) {
	l.logger.Info().Ctx(ctx).Fields(fields).Msg(msg)
}

func (l *ZeroLogger) Warn(ctx context.Context, msg string, fields map[string]interface{}) {
	l.logger.Warn().Ctx(ctx).Fields(fields).Msg(msg)
}

func (l *ZeroLogger) Error(ctx context.Context, msg string, fields map[string]interface{}) {
	l.logger.Error().Ctx(ctx).Fields(fields).Msg(msg)
}

type noopLogger struct{}

// NoOp returns a logger that discards everything
func NoOp() Logger {
	return noopLogger{}
}

func (noopLogger) Debug(context.Context, string, map[string]interface{}) {}
func (noopLogger) Info(context.Context, string, map[string]interface{})  {}
func (noopLogger) Warn(context.Context, string, map[string]interface{})  {}
func (noopLogger) Error(context.Context, string, map[string]interface{}) {}
