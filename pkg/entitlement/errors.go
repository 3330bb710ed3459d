package entitlement

import "errors"

var (
	// ErrTypeMismatch is returned when a scalar accessor does not match the
	// declared type of the feature.
	ErrTypeMismatch = errors.New("feature type mismatch")

	// ErrFeatureDisabled is returned by RequireFeature when the feature is off.
	ErrFeatureDisabled = errors.New("feature disabled for tenant")
)
