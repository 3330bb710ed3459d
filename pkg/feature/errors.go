package feature

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownFeatureKey indicates that the key is not registered in the catalog.
	ErrUnknownFeatureKey = errors.New("unknown feature key")

	// ErrInvalidFeatureValue indicates that a raw value does not satisfy the feature's type or rules.
	ErrInvalidFeatureValue = errors.New("invalid feature value")

	// ErrInvalidDefinition indicates a malformed feature definition.
	ErrInvalidDefinition = errors.New("invalid feature definition")

	// ErrDuplicateFeatureKey indicates the same key was registered twice.
	ErrDuplicateFeatureKey = errors.New("duplicate feature key")

	// ErrUnknownParentKey indicates a parent key that is not registered.
	ErrUnknownParentKey = errors.New("unknown parent feature key")

	// ErrParentCycle indicates that following parent keys leads back to the same feature.
	ErrParentCycle = errors.New("feature parent cycle")

	// ErrCatalogSealed indicates an attempt to register after the catalog was sealed.
	ErrCatalogSealed = errors.New("feature catalog is sealed")
)

// InvalidValueError describes a raw value rejected for a feature.
type InvalidValueError struct {
	Key      string
	Expected ValueType
	Raw      string
	Reason   string
}

func (e *InvalidValueError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid value %q for feature %q (expected %s): %s", e.Raw, e.Key, e.Expected, e.Reason)
	}
	return fmt.Sprintf("invalid value %q for feature %q (expected %s)", e.Raw, e.Key, e.Expected)
}

func (e *InvalidValueError) Unwrap() error {
	return ErrInvalidFeatureValue
}

// UnknownKeyError carries the key that was not found.
type UnknownKeyError struct {
	Key string
}

func (e *UnknownKeyError) Error() string {
	return fmt.Sprintf("unknown feature key %q", e.Key)
}

func (e *UnknownKeyError) Unwrap() error {
	return ErrUnknownFeatureKey
}

// IsInvalidValue reports whether err is (or wraps) an *InvalidValueError.
func IsInvalidValue(err error) bool {
	var e *InvalidValueError
	return errors.As(err, &e)
}
