package entitlement

import (
	"log/slog"
	"slices"
	"strings"

	"github.com/dmitrymomot/entitlekit/pkg/feature"
)

// Layer names the cascade step that produced a value.
type Layer string

const (
	LayerDefault  Layer = "default"
	LayerEdition  Layer = "edition"
	LayerOverride Layer = "override"
	LayerGating   Layer = "gating"
)

// IssueKind classifies a skipped assignment.
type IssueKind string

const (
	IssueUnknownKey     IssueKind = "unknown_key"
	IssueInvalidValue   IssueKind = "invalid_value"
	IssueMissingEdition IssueKind = "missing_edition"
)

// Issue is an assignment that was skipped while building the cascade.
type Issue struct {
	Kind   IssueKind
	Layer  Layer
	Source string // edition ID or tenant ID
	Key    string
	Raw    string
	Err    error
}

// Level is the log level for the issue: recognised keys with invalid values
// are warnings, everything else is an error.
func (i Issue) Level() slog.Level {
	if i.Kind == IssueInvalidValue {
		return slog.LevelWarn
	}
	return slog.LevelError
}

// dedupKey identifies the issue for log deduplication.
func (i Issue) dedupKey() string {
	return strings.Join([]string{string(i.Layer), i.Source, string(i.Kind), i.Key}, "|")
}

// cascade is the state of a single resolution.
type cascade struct {
	values  map[string]string // canonical key -> raw value
	sources map[string]Layer
	gatedBy map[string]string
}

func newCascade(catalog *feature.Catalog) *cascade {
	c := &cascade{
		values:  make(map[string]string, catalog.Len()),
		sources: make(map[string]Layer, catalog.Len()),
		gatedBy: make(map[string]string),
	}
	for _, def := range catalog.All() {
		c.values[def.Key] = def.DefaultValue
		c.sources[def.Key] = LayerDefault
	}
	return c
}

// apply writes valid assignments of one layer and reports the rest.
func (c *cascade) apply(catalog *feature.Catalog, layer Layer, source string, assignments map[string]string) []Issue {
	keys := make([]string, 0, len(assignments))
	for k := range assignments {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var issues []Issue
	for _, key := range keys {
		raw := assignments[key]

		def, ok := catalog.TryGet(key)
		if !ok {
			issues = append(issues, Issue{
				Kind: IssueUnknownKey, Layer: layer, Source: source, Key: key, Raw: raw,
				Err: &feature.UnknownKeyError{Key: key},
			})
			continue
		}

		if err := feature.Validate(def, raw); err != nil {
			issues = append(issues, Issue{
				Kind: IssueInvalidValue, Layer: layer, Source: source, Key: def.Key, Raw: raw, Err: err,
			})
			continue
		}

		c.values[def.Key] = raw
		c.sources[def.Key] = layer
	}
	return issues
}

// gate forces boolean features off when a boolean ancestor is off.
func (c *cascade) gate(catalog *feature.Catalog) {
	for _, def := range catalog.All() {
		if def.ValueType != feature.TypeBoolean || !def.HasParent() {
			continue
		}
		if by, ok := c.disablingAncestor(catalog, def.Key); ok {
			c.values[def.Key] = "false"
			c.sources[def.Key] = LayerGating
			c.gatedBy[def.Key] = by
		}
	}
}

// disablingAncestor returns the first boolean ancestor (root first) whose
// value parses to false.
func (c *cascade) disablingAncestor(catalog *feature.Catalog, key string) (string, bool) {
	ancestors, err := catalog.Ancestors(key)
	if err != nil {
		return "", false
	}
	for _, anc := range ancestors {
		if anc.ValueType != feature.TypeBoolean {
			continue
		}
		v, err := feature.Parse(anc, c.values[anc.Key])
		if err == nil && !v.Bool {
			return anc.Key, true
		}
	}
	return "", false
}
