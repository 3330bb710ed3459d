package feature

import (
	"slices"
	"strings"
)

// ValueType is the declared type of a feature value.
type ValueType string

const (
	TypeBoolean ValueType = "boolean"
	TypeInt     ValueType = "int"
	TypeDecimal ValueType = "decimal"
	TypeString  ValueType = "string"
)

// Valid reports whether t is one of the known value types.
func (t ValueType) Valid() bool {
	switch t {
	case TypeBoolean, TypeInt, TypeDecimal, TypeString:
		return true
	}
	return false
}

// Scope describes who a feature applies to.
type Scope string

const (
	ScopeTenant Scope = "tenant"
	ScopeHost   Scope = "host"
	ScopeBoth   Scope = "both"
)

// Definition is an immutable catalog entry.
type Definition struct {
	Key          string    `yaml:"key" json:"key"`
	ValueType    ValueType `yaml:"type" json:"value_type"`
	DefaultValue string    `yaml:"default" json:"default_value"`
	ParentKey    string    `yaml:"parent,omitempty" json:"parent_key,omitempty"`
	Scope        Scope     `yaml:"scope,omitempty" json:"scope,omitempty"`
	DisplayName  string    `yaml:"display_name,omitempty" json:"display_name,omitempty"`
	Description  string    `yaml:"description,omitempty" json:"description,omitempty"`
	SortOrder    int       `yaml:"sort_order,omitempty" json:"sort_order"`

	// Visibility flags.
	IsVisibleToClients bool `yaml:"visible_to_clients,omitempty" json:"is_visible_to_clients"`
	IsEditionFeature   bool `yaml:"edition_feature,omitempty" json:"is_edition_feature"`
	IsTenantEditable   bool `yaml:"tenant_editable,omitempty" json:"is_tenant_editable"`

	// Business rules applied after type coercion.
	NonNegative bool     `yaml:"non_negative,omitempty" json:"non_negative,omitempty"`
	Options     []string `yaml:"options,omitempty" json:"options,omitempty"`
}

// HasParent reports whether the definition declares a parent key.
func (d Definition) HasParent() bool {
	return strings.TrimSpace(d.ParentKey) != ""
}

func (d Definition) clone() Definition {
	d.Options = slices.Clone(d.Options)
	return d
}

// Value is a parsed feature value. Only the field matching Type is meaningful.
type Value struct {
	Key     string
	Type    ValueType
	Raw     string
	Bool    bool
	Int     int64
	Decimal float64
}

// String returns the raw representation.
func (v Value) String() string {
	return v.Raw
}
