// Package feature holds the static feature catalog and the typed parser for
// raw feature values.
//
// A feature is identified by a dot-segmented key (for example
// "library.loans.enabled"). Keys are unique and case-insensitive. Every
// definition declares a value type, a default value that must parse under
// that type, and optionally a parent key. Boolean features with boolean
// ancestors are subject to parent gating: when an ancestor resolves to
// "false", the descendant is forced off by the entitlement resolver.
//
// # Catalog
//
// The catalog is registered once at process start and never mutated
// afterwards. Registration is all-or-nothing and fails on duplicated keys,
// unknown parent keys, parent cycles, or default values that do not parse:
//
//	catalog := feature.MustNewCatalog(feature.BuiltinDefinitions()...)
//
//	def, err := catalog.Get("Library.Loans.Enabled") // case-insensitive
//	if errors.Is(err, feature.ErrUnknownFeatureKey) {
//		// ...
//	}
//
// Definitions can also be loaded from YAML with LoadDefinitions.
//
// # Value parsing
//
// Raw values are opaque strings. Parse applies exact coercion rules:
//
//   - boolean: only "true" or "false" (case-insensitive)
//   - int:     only ^-?\d+$
//   - decimal: a decimal literal with optional exponent, an unsigned 0x/0o/0b
//     literal, Infinity, or a blank string (zero); surrounding space is ignored
//   - string:  anything
//
// followed by the definition's business rules (NonNegative, Options). Any
// failure is an *InvalidValueError that matches ErrInvalidFeatureValue.
package feature
