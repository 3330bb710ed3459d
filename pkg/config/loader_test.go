package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/entitlekit/pkg/config"
)

type sampleConfig struct {
	Action    string        `env:"EXPIRATION_ACTION" envDefault:"SUSPEND"`
	GraceDays int           `env:"GRACE_DAYS" envDefault:"7"`
	Notify    []int         `env:"NOTIFY_DAYS" envSeparator:"," envDefault:"14,7,3,1"`
	CacheTTL  time.Duration `env:"CACHE_TTL" envDefault:"3m"`
}

type requiredConfig struct {
	Secret string `env:"WEBHOOK_SECRET,required"`
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	var cfg sampleConfig
	require.NoError(t, config.Load(&cfg, config.WithEnvironment(map[string]string{})))

	assert.Equal(t, "SUSPEND", cfg.Action)
	assert.Equal(t, 7, cfg.GraceDays)
	assert.Equal(t, []int{14, 7, 3, 1}, cfg.Notify)
	assert.Equal(t, 3*time.Minute, cfg.CacheTTL)
}

func TestLoadWithEnvironment(t *testing.T) {
	t.Parallel()

	var cfg sampleConfig
	require.NoError(t, config.Load(&cfg, config.WithEnvironment(map[string]string{
		"EXPIRATION_ACTION": "DEACTIVATE",
		"GRACE_DAYS":        "3",
		"NOTIFY_DAYS":       "5,1",
	})))

	assert.Equal(t, "DEACTIVATE", cfg.Action)
	assert.Equal(t, 3, cfg.GraceDays)
	assert.Equal(t, []int{5, 1}, cfg.Notify)
}

func TestLoadWithPrefix(t *testing.T) {
	t.Parallel()

	var cfg sampleConfig
	require.NoError(t, config.Load(&cfg,
		config.WithEnvironment(map[string]string{
			"GRACE_DAYS":        "1",
			"TENANT_GRACE_DAYS": "10",
		}),
		config.WithPrefix("TENANT_"),
	))
	assert.Equal(t, 10, cfg.GraceDays)
}

func TestLoadRequiredMissing(t *testing.T) {
	t.Parallel()

	var cfg requiredConfig
	err := config.Load(&cfg, config.WithEnvironment(map[string]string{}))
	require.ErrorIs(t, err, config.ErrParsingConfig)
}

func TestLoadInvalidValue(t *testing.T) {
	t.Parallel()

	var cfg sampleConfig
	err := config.Load(&cfg, config.WithEnvironment(map[string]string{"GRACE_DAYS": "seven"}))
	require.ErrorIs(t, err, config.ErrParsingConfig)
}

func TestLoadNilPointer(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, config.Load[sampleConfig](nil), config.ErrNilPointer)
}

func TestLoadWithEnvFiles(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("GRACE_DAYS=21\nEXPIRATION_ACTION=FALLBACK_TO_FREE\n"), 0o600))

	var cfg sampleConfig
	require.NoError(t, config.Load(&cfg,
		config.WithEnvironment(map[string]string{"EXPIRATION_ACTION": "DEACTIVATE"}),
		config.WithEnvFiles(path),
	))

	assert.Equal(t, 21, cfg.GraceDays)
	assert.Equal(t, "DEACTIVATE", cfg.Action, "environment wins over file")

	err := config.Load(&cfg, config.WithEnvFiles(filepath.Join(t.TempDir(), "missing.env")))
	require.ErrorIs(t, err, config.ErrLoadingEnvFile)
}

type cachedConfig struct {
	Value string `env:"ENTITLEKIT_CONFIG_TEST_CACHED" envDefault:"first"`
}

func TestLoadCachesPerType(t *testing.T) {
	t.Setenv("ENTITLEKIT_CONFIG_TEST_CACHED", "first")
	config.ResetCache()

	var a cachedConfig
	require.NoError(t, config.Load(&a))
	assert.Equal(t, "first", a.Value)

	t.Setenv("ENTITLEKIT_CONFIG_TEST_CACHED", "second")
	var b cachedConfig
	require.NoError(t, config.Load(&b))
	assert.Equal(t, "first", b.Value)

	config.ResetCache()
	var c cachedConfig
	require.NoError(t, config.Load(&c))
	assert.Equal(t, "second", c.Value)
}

func TestMustLoadPanics(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() {
		var cfg requiredConfig
		config.MustLoad(&cfg, config.WithEnvironment(map[string]string{}))
	})
}
