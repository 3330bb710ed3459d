package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dmitrymomot/entitlekit/pkg/environment"
)

// Format is the log output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Config is the env-loaded logger configuration. Empty fields fall back to
// the environment defaults.
type Config struct {
	Level  string `env:"LOG_LEVEL"`
	Format Format `env:"LOG_FORMAT"`
}

// Options converts cfg into factory options.
func (c Config) Options() ([]Option, error) {
	var opts []Option
	if c.Level != "" {
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(c.Level)); err != nil {
			return nil, fmt.Errorf("logger: invalid level %q: %w", c.Level, err)
		}
		opts = append(opts, WithLevel(lvl))
	}
	if c.Format != "" {
		if c.Format != FormatJSON && c.Format != FormatText {
			return nil, fmt.Errorf("logger: invalid format %q", c.Format)
		}
		opts = append(opts, WithFormat(c.Format))
	}
	return opts, nil
}

// Option configures New.
type Option func(*settings)

type settings struct {
	level      slog.Level
	format     Format
	output     io.Writer
	attrs      []slog.Attr
	extractors []ContextExtractor
}

func WithLevel(l slog.Level) Option {
	return func(s *settings) { s.level = l }
}

// WithFormat sets the output encoding. Panics on an unknown format.
func WithFormat(f Format) Option {
	return func(s *settings) {
		switch f {
		case FormatJSON, FormatText:
			s.format = f
		default:
			panic(fmt.Errorf("invalid log format %q: must be %q or %q", f, FormatJSON, FormatText))
		}
	}
}

// WithOutput sets the destination. Nil is ignored.
func WithOutput(w io.Writer) Option {
	return func(s *settings) {
		if w != nil {
			s.output = w
		}
	}
}

// WithAttr adds static attributes to every record.
func WithAttr(attrs ...slog.Attr) Option {
	return func(s *settings) {
		s.attrs = append(s.attrs, attrs...)
	}
}

// WithContextExtractors registers per-record context extractors. Nil entries are dropped.
func WithContextExtractors(extractors ...ContextExtractor) Option {
	return func(s *settings) {
		for _, ex := range extractors {
			if ex != nil {
				s.extractors = append(s.extractors, ex)
			}
		}
	}
}

// WithEnvironment applies the defaults of env and tags records with service
// and env. Development logs text at debug level; other stages log JSON at info.
// Options placed after it override the defaults.
func WithEnvironment(env environment.Environment, service string) Option {
	return func(s *settings) {
		if env.IsDevelopment() {
			s.level = slog.LevelDebug
			s.format = FormatText
		} else {
			s.level = slog.LevelInfo
			s.format = FormatJSON
		}
		if service != "" {
			s.attrs = append(s.attrs, slog.String("service", service))
		}
		s.attrs = append(s.attrs, slog.String("env", env.String()))
	}
}

// New builds a *slog.Logger. The default is JSON at info level on stdout.
func New(opts ...Option) *slog.Logger {
	s := &settings{
		level:  slog.LevelInfo,
		format: FormatJSON,
		output: os.Stdout,
	}
	for _, opt := range opts {
		opt(s)
	}

	handlerOpts := &slog.HandlerOptions{Level: s.level}

	var h slog.Handler
	if s.format == FormatText {
		h = slog.NewTextHandler(s.output, handlerOpts)
	} else {
		h = slog.NewJSONHandler(s.output, handlerOpts)
	}
	if len(s.attrs) > 0 {
		h = h.WithAttrs(s.attrs)
	}

	return slog.New(NewContextHandler(h, s.extractors...))
}
