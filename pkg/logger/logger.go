package logger

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/getsentry/sentry-go"
	sentryslog "github.com/getsentry/sentry-go/slog"
)

// SentryConfig enables forwarding warnings and errors to Sentry.
type SentryConfig struct {
	DSN         string `env:"SENTRY_DSN"`
	Environment string `env:"SENTRY_ENVIRONMENT" envDefault:"production"`
	// MinLevel is the lowest level stored as a Sentry log. Errors always
	// create issues.
	MinLevel slog.Level
}

// Option configures New.
type Option func(*config)

type config struct {
	out        io.Writer
	sentry     *SentryConfig
	extractors []ContextExtractor
	level      slog.Level
	text       bool
}

// WithLevel sets the minimum level written to the output. Default: info.
func WithLevel(level slog.Level) Option {
	return func(c *config) {
		c.level = level
	}
}

// WithOutput redirects log output. Default: stdout.
func WithOutput(w io.Writer) Option {
	return func(c *config) {
		if w != nil {
			c.out = w
		}
	}
}

// WithText switches from JSON to the human-readable text format.
func WithText() Option {
	return func(c *config) {
		c.text = true
	}
}

// WithExtractors adds context extractors applied to every record.
func WithExtractors(extractors ...ContextExtractor) Option {
	return func(c *config) {
		c.extractors = append(c.extractors, extractors...)
	}
}

// WithSentry fans warnings and errors out to Sentry. An empty DSN is ignored.
func WithSentry(cfg SentryConfig) Option {
	return func(c *config) {
		if cfg.DSN != "" {
			c.sentry = &cfg
		}
	}
}

// New builds a logger. The strategy extractor is always installed, so
// records logged with a context from WithStrategy carry the strategy name.
func New(opts ...Option) *slog.Logger {
	c := &config{out: os.Stdout, level: slog.LevelInfo}
	for _, opt := range opts {
		opt(c)
	}

	handlerOpts := &slog.HandlerOptions{Level: c.level}
	var out slog.Handler = slog.NewJSONHandler(c.out, handlerOpts)
	if c.text {
		out = slog.NewTextHandler(c.out, handlerOpts)
	}

	extractors := append([]ContextExtractor{StrategyExtractor}, c.extractors...)

	if c.sentry == nil {
		return slog.New(NewLogHandlerDecorator(out, extractors...))
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         c.sentry.DSN,
		Environment: c.sentry.Environment,
		EnableLogs:  true,
	}); err != nil {
		// Keep logging locally when Sentry cannot start.
		slog.New(out).Error("failed to initialize Sentry", slog.String("error", err.Error()))
		return slog.New(NewLogHandlerDecorator(out, extractors...))
	}

	logLevel := []slog.Level{slog.LevelWarn, slog.LevelError}
	if c.sentry.MinLevel >= slog.LevelError {
		logLevel = []slog.Level{slog.LevelError}
	}
	sentryHandler := sentryslog.Option{
		EventLevel: []slog.Level{slog.LevelError},
		LogLevel:   logLevel,
	}.NewSentryHandler(context.Background())

	return slog.New(NewLogHandlerDecorator(newFanoutHandler(out, sentryHandler), extractors...))
}

// NewNope returns a logger that discards everything.
func NewNope() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
