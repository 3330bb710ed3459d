package entitlement

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmitrymomot/entitlekit/pkg/feature"
)

// Explanation describes how a tenant's value for one feature was derived.
type Explanation struct {
	TenantID      uuid.UUID         `json:"tenant_id"`
	Key           string            `json:"key"`
	ValueType     feature.ValueType `json:"value_type"`
	Value         string            `json:"value"`
	Source        Layer             `json:"source"`
	DefaultValue  string            `json:"default_value"`
	EditionID     string            `json:"edition_id,omitempty"`
	EditionValue  *string           `json:"edition_value,omitempty"`
	OverrideValue *string           `json:"override_value,omitempty"`
	Ancestors     []AncestorValue   `json:"ancestors,omitempty"`
	GatedBy       string            `json:"gated_by,omitempty"`
	Steps         []string          `json:"steps"`
}

// AncestorValue is the effective value of an ancestor, root first.
type AncestorValue struct {
	Key       string            `json:"key"`
	ValueType feature.ValueType `json:"value_type"`
	Value     string            `json:"value"`
}

func (r *resolver) Explain(ctx context.Context, tenantID uuid.UUID, key string) (*Explanation, error) {
	def, err := r.catalog.Get(key)
	if err != nil {
		return nil, err
	}

	t, err := r.tenants.FindByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	c, in, _, err := r.build(ctx, t)
	if err != nil {
		return nil, err
	}

	ex := &Explanation{
		TenantID:     t.ID,
		Key:          def.Key,
		ValueType:    def.ValueType,
		Value:        c.values[def.Key],
		Source:       c.sources[def.Key],
		DefaultValue: def.DefaultValue,
		EditionID:    in.editionID,
		GatedBy:      c.gatedBy[def.Key],
	}
	ex.step("default value %q", def.DefaultValue)

	switch {
	case in.editionID == "":
		ex.step("no edition assigned")
	case in.editionMissing:
		ex.step("edition %s not found, edition layer skipped", in.editionID)
	default:
		if raw, ok := lookup(r.catalog, in.edition, def.Key); ok {
			ex.EditionValue = &raw
			ex.layerStep(def, "edition "+in.editionID, raw)
		} else {
			ex.step("edition %s does not assign %s", in.editionID, def.Key)
		}
	}

	if raw, ok := lookup(r.catalog, in.overrides, def.Key); ok {
		ex.OverrideValue = &raw
		ex.layerStep(def, "tenant override", raw)
	} else {
		ex.step("no tenant override")
	}

	ancestors, err := r.catalog.Ancestors(def.Key)
	if err != nil {
		return nil, err
	}
	for _, anc := range ancestors {
		ex.Ancestors = append(ex.Ancestors, AncestorValue{
			Key: anc.Key, ValueType: anc.ValueType, Value: c.values[anc.Key],
		})
	}

	switch {
	case ex.GatedBy != "":
		ex.step("forced to %q: ancestor %s is disabled", ex.Value, ex.GatedBy)
	case def.ValueType == feature.TypeBoolean && len(ancestors) > 0:
		ex.step("no disabling ancestor")
	}
	ex.step("effective value %q from %s", ex.Value, ex.Source)

	return ex, nil
}

func (ex *Explanation) step(format string, args ...any) {
	ex.Steps = append(ex.Steps, fmt.Sprintf(format, args...))
}

func (ex *Explanation) layerStep(def feature.Definition, layer, raw string) {
	if err := feature.Validate(def, raw); err != nil {
		ex.step("%s value %q ignored: %v", layer, raw, err)
		return
	}
	ex.step("%s sets %q", layer, raw)
}
