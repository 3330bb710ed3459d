package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"reflect"
	"strings"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type configCache struct {
	mu     sync.RWMutex
	values map[string]any
}

var (
	globalCache = &configCache{values: make(map[string]any)}

	defaultEnvLoaded sync.Once
)

// Option customises a single Load call. A call with options bypasses the
// per-type cache.
type Option func(*loadOptions)

type loadOptions struct {
	environment map[string]string
	prefix      string
	files       []string
}

// WithEnvironment parses from m instead of the process environment.
func WithEnvironment(m map[string]string) Option {
	return func(o *loadOptions) {
		o.environment = maps.Clone(m)
	}
}

// WithPrefix prepends prefix to every env tag, e.g. "BILLING_" turns
// PADDLE_WEBHOOK_SECRET into BILLING_PADDLE_WEBHOOK_SECRET.
func WithPrefix(prefix string) Option {
	return func(o *loadOptions) {
		o.prefix = prefix
	}
}

// WithEnvFiles reads dotenv files underneath the environment. Keys already
// present in the environment win.
func WithEnvFiles(paths ...string) Option {
	return func(o *loadOptions) {
		o.files = append(o.files, paths...)
	}
}

// Load parses environment variables into v using its env struct tags.
//
// Without options the default .env file is read once per process (if present)
// and the parsed value is cached per type, so repeated calls are cheap:
//
//	var cfg pg.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
func Load[T any](v *T, opts ...Option) error {
	if v == nil {
		return ErrNilPointer
	}
	if len(opts) > 0 {
		return parse(v, opts)
	}

	defaultEnvLoaded.Do(func() {
		// The .env file is optional.
		_ = godotenv.Load()
	})

	key := typeName[T]()

	globalCache.mu.RLock()
	cached, ok := globalCache.values[key]
	globalCache.mu.RUnlock()
	if ok {
		*v = cached.(T)
		return nil
	}

	globalCache.mu.Lock()
	defer globalCache.mu.Unlock()

	if cached, ok := globalCache.values[key]; ok {
		*v = cached.(T)
		return nil
	}
	var parsed T
	if err := env.Parse(&parsed); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	globalCache.values[key] = parsed
	*v = parsed
	return nil
}

// MustLoad is Load that panics on failure.
func MustLoad[T any](v *T, opts ...Option) {
	if err := Load(v, opts...); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}

// LoadEnv reads dotenv files into the process environment without
// overriding variables that are already set.
func LoadEnv(paths ...string) error {
	if err := godotenv.Load(paths...); err != nil {
		return errors.Join(ErrLoadingEnvFile, err)
	}
	return nil
}

// ResetCache drops every cached configuration.
func ResetCache() {
	globalCache.mu.Lock()
	defer globalCache.mu.Unlock()
	clear(globalCache.values)
}

func parse[T any](v *T, opts []Option) error {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}

	environment := o.environment
	if environment == nil {
		environment = processEnv()
	}
	if len(o.files) > 0 {
		fromFiles, err := godotenv.Read(o.files...)
		if err != nil {
			return errors.Join(ErrLoadingEnvFile, err)
		}
		for k, val := range fromFiles {
			if _, set := environment[k]; !set {
				environment[k] = val
			}
		}
	}

	var parsed T
	if err := env.ParseWithOptions(&parsed, env.Options{
		Environment: environment,
		Prefix:      o.prefix,
	}); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	*v = parsed
	return nil
}

func processEnv() map[string]string {
	out := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			out[k] = v
		}
	}
	return out
}

func typeName[T any]() string {
	t := reflect.TypeFor[T]()
	return t.PkgPath() + "." + t.String()
}
