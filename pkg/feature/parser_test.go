package feature_test

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/entitlekit/pkg/feature"
)

func TestParseBoolean(t *testing.T) {
	t.Parallel()

	def := feature.Definition{Key: "library.enabled", ValueType: feature.TypeBoolean, DefaultValue: "true"}

	tests := []struct {
		raw     string
		want    bool
		wantErr bool
	}{
		{raw: "true", want: true},
		{raw: "false", want: false},
		{raw: "TRUE", want: true},
		{raw: "False", want: false},
		{raw: " true", wantErr: true},
		{raw: "1", wantErr: true},
		{raw: "yes", wantErr: true},
		{raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()

			v, err := feature.Parse(def, tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, feature.ErrInvalidFeatureValue)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.Bool)
			assert.Equal(t, tt.raw, v.Raw)
		})
	}
}

func TestParseInt(t *testing.T) {
	t.Parallel()

	def := feature.Definition{Key: "users.maxCount", ValueType: feature.TypeInt, DefaultValue: "3"}

	tests := []struct {
		raw     string
		want    int64
		wantErr bool
	}{
		{raw: "42", want: 42},
		{raw: "-7", want: -7},
		{raw: "007", want: 7},
		{raw: "0", want: 0},
		{raw: "+1", wantErr: true},
		{raw: "1.0", wantErr: true},
		{raw: " 1", wantErr: true},
		{raw: "1e3", wantErr: true},
		{raw: "", wantErr: true},
		{raw: "9223372036854775808", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()

			v, err := feature.Parse(def, tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, feature.ErrInvalidFeatureValue)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.Int)
		})
	}
}

func TestParseDecimal(t *testing.T) {
	t.Parallel()

	def := feature.Definition{Key: "storage.maxGb", ValueType: feature.TypeDecimal, DefaultValue: "1"}

	tests := []struct {
		name    string
		raw     string
		want    float64
		wantErr bool
	}{
		{name: "fraction", raw: "1.5", want: 1.5},
		{name: "integer", raw: "10", want: 10},
		{name: "surrounding whitespace", raw: " 2 \n", want: 2},
		{name: "empty is zero", raw: "", want: 0},
		{name: "blank is zero", raw: "   ", want: 0},
		{name: "leading dot", raw: ".5", want: 0.5},
		{name: "trailing dot", raw: "5.", want: 5},
		{name: "exponent", raw: "1e3", want: 1000},
		{name: "signed exponent", raw: "-2.5E-1", want: -0.25},
		{name: "explicit plus", raw: "+3", want: 3},
		{name: "hex", raw: "0x1F", want: 31},
		{name: "octal", raw: "0o17", want: 15},
		{name: "binary", raw: "0b101", want: 5},
		{name: "infinity", raw: "Infinity", want: math.Inf(1)},
		{name: "negative infinity", raw: "-Infinity", want: math.Inf(-1)},
		{name: "overflow saturates", raw: "1e999", want: math.Inf(1)},
		{name: "word", raw: "abc", wantErr: true},
		{name: "nan", raw: "NaN", wantErr: true},
		{name: "go infinity spelling", raw: "inf", wantErr: true},
		{name: "underscore separator", raw: "1_000", wantErr: true},
		{name: "empty hex", raw: "0x", wantErr: true},
		{name: "signed hex", raw: "-0x10", wantErr: true},
		{name: "dangling exponent", raw: "1e", wantErr: true},
		{name: "two dots", raw: "1.2.3", wantErr: true},
		{name: "double sign", raw: "+-1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			v, err := feature.Parse(def, tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, feature.ErrInvalidFeatureValue)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.Decimal)
		})
	}
}

func TestParseString(t *testing.T) {
	t.Parallel()

	def := feature.Definition{Key: "branding.motto", ValueType: feature.TypeString}

	for _, raw := range []string{"", "anything", "  padded  ", "true", "42"} {
		v, err := feature.Parse(def, raw)
		require.NoError(t, err)
		assert.Equal(t, raw, v.Raw)
		assert.Equal(t, raw, v.String())
	}
}

func TestParseRules(t *testing.T) {
	t.Parallel()

	t.Run("non-negative int", func(t *testing.T) {
		t.Parallel()

		def := feature.Definition{Key: "users.maxCount", ValueType: feature.TypeInt, NonNegative: true}

		_, err := feature.Parse(def, "-1")
		require.Error(t, err)

		var invalid *feature.InvalidValueError
		require.True(t, errors.As(err, &invalid))
		assert.Equal(t, "users.maxCount", invalid.Key)
		assert.Equal(t, feature.TypeInt, invalid.Expected)
		assert.Equal(t, "-1", invalid.Raw)
		assert.Equal(t, "must not be negative", invalid.Reason)

		v, err := feature.Parse(def, "0")
		require.NoError(t, err)
		assert.Equal(t, int64(0), v.Int)
	})

	t.Run("non-negative decimal", func(t *testing.T) {
		t.Parallel()

		def := feature.Definition{Key: "library.finePerDay", ValueType: feature.TypeDecimal, NonNegative: true}

		_, err := feature.Parse(def, "-0.5")
		assert.True(t, feature.IsInvalidValue(err))
	})

	t.Run("options", func(t *testing.T) {
		t.Parallel()

		def := feature.Definition{
			Key:       "branding.theme",
			ValueType: feature.TypeString,
			Options:   []string{"default", "dark"},
		}

		_, err := feature.Parse(def, "dark")
		require.NoError(t, err)

		_, err = feature.Parse(def, "blue")
		assert.ErrorIs(t, err, feature.ErrInvalidFeatureValue)
		assert.Contains(t, err.Error(), "not one of default, dark")
	})
}

func TestParseUnknownType(t *testing.T) {
	t.Parallel()

	_, err := feature.Parse(feature.Definition{Key: "x", ValueType: "date"}, "2024-01-01")
	assert.ErrorIs(t, err, feature.ErrInvalidFeatureValue)
}
