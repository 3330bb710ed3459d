package feature

import (
	"cmp"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"

	"golang.org/x/text/cases"
)

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+(\.[A-Za-z0-9_-]+)*$`)

// Catalog is the registry of feature definitions.
// It is populated once by Register and read-only afterwards.
type Catalog struct {
	mu     sync.RWMutex
	defs   map[string]Definition // folded key -> definition
	sorted []Definition
	sealed bool
}

// NewCatalog creates a catalog and registers defs.
func NewCatalog(defs ...Definition) (*Catalog, error) {
	c := &Catalog{
		defs: make(map[string]Definition),
	}
	if err := c.Register(defs...); err != nil {
		return nil, err
	}
	return c, nil
}

// MustNewCatalog is like NewCatalog but panics on error.
// A broken catalog must abort startup before any traffic is served.
func MustNewCatalog(defs ...Definition) *Catalog {
	c, err := NewCatalog(defs...)
	if err != nil {
		panic(fmt.Sprintf("feature: failed to register catalog: %v", err))
	}
	return c
}

// Register validates and stores defs. It may only be called once; the
// registration is all-or-nothing.
func (c *Catalog) Register(defs ...Definition) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sealed {
		return ErrCatalogSealed
	}

	staged := make(map[string]Definition, len(defs))
	for _, def := range defs {
		def = def.clone()
		def.Key = strings.TrimSpace(def.Key)
		def.ParentKey = strings.TrimSpace(def.ParentKey)
		if def.Scope == "" {
			def.Scope = ScopeTenant
		}

		if !keyPattern.MatchString(def.Key) {
			return errors.Join(ErrInvalidDefinition, fmt.Errorf("malformed key %q", def.Key))
		}
		if !def.ValueType.Valid() {
			return errors.Join(ErrInvalidDefinition, fmt.Errorf("feature %q has unknown type %q", def.Key, def.ValueType))
		}

		folded := foldKey(def.Key)
		if _, exists := staged[folded]; exists {
			return errors.Join(ErrDuplicateFeatureKey, fmt.Errorf("feature %q", def.Key))
		}

		if err := Validate(def, def.DefaultValue); err != nil {
			return errors.Join(ErrInvalidDefinition, fmt.Errorf("default value of %q: %w", def.Key, err))
		}

		staged[folded] = def
	}

	for _, def := range staged {
		if !def.HasParent() {
			continue
		}
		parent := foldKey(def.ParentKey)
		if parent == foldKey(def.Key) {
			return errors.Join(ErrParentCycle, fmt.Errorf("feature %q is its own parent", def.Key))
		}
		if _, ok := staged[parent]; !ok {
			return errors.Join(ErrUnknownParentKey, fmt.Errorf("feature %q references %q", def.Key, def.ParentKey))
		}
	}

	for folded := range staged {
		if err := c.detectCycle(staged, folded); err != nil {
			return err
		}
	}

	sorted := make([]Definition, 0, len(staged))
	for _, def := range staged {
		sorted = append(sorted, def)
	}
	slices.SortFunc(sorted, func(a, b Definition) int {
		if n := cmp.Compare(a.SortOrder, b.SortOrder); n != 0 {
			return n
		}
		return cmp.Compare(foldKey(a.Key), foldKey(b.Key))
	})

	c.defs = staged
	c.sorted = sorted
	c.sealed = true
	return nil
}

func (c *Catalog) detectCycle(staged map[string]Definition, start string) error {
	seen := map[string]struct{}{start: {}}
	current := staged[start]
	for current.HasParent() {
		next := foldKey(current.ParentKey)
		if _, ok := seen[next]; ok {
			return errors.Join(ErrParentCycle, fmt.Errorf("feature %q", staged[start].Key))
		}
		seen[next] = struct{}{}
		current = staged[next]
	}
	return nil
}

// Get returns the definition for key (case-insensitive).
func (c *Catalog) Get(key string) (Definition, error) {
	def, ok := c.TryGet(key)
	if !ok {
		return Definition{}, &UnknownKeyError{Key: key}
	}
	return def, nil
}

// TryGet returns the definition for key and whether it exists.
func (c *Catalog) TryGet(key string) (Definition, bool) {
	c.mu.RLock()
	def, ok := c.defs[foldKey(strings.TrimSpace(key))]
	c.mu.RUnlock()
	if !ok {
		return Definition{}, false
	}
	return def.clone(), true
}

// Has reports whether key is registered.
func (c *Catalog) Has(key string) bool {
	_, ok := c.TryGet(key)
	return ok
}

// All returns every definition ordered by SortOrder, then key.
func (c *Catalog) All() []Definition {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Definition, len(c.sorted))
	for i, def := range c.sorted {
		out[i] = def.clone()
	}
	return out
}

// Len returns the number of registered features.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.defs)
}

// Ancestors returns the parent chain of key ordered from the root down to
// the immediate parent. The feature itself is not included.
func (c *Catalog) Ancestors(key string) ([]Definition, error) {
	def, err := c.Get(key)
	if err != nil {
		return nil, err
	}

	var chain []Definition
	for def.HasParent() {
		parent, ok := c.TryGet(def.ParentKey)
		if !ok {
			break
		}
		chain = append(chain, parent)
		def = parent
	}

	slices.Reverse(chain)
	return chain, nil
}

// Parse looks up key and parses raw against its definition.
func (c *Catalog) Parse(key, raw string) (Value, error) {
	def, err := c.Get(key)
	if err != nil {
		return Value{}, err
	}
	return Parse(def, raw)
}

// CanonicalKey returns the key as registered, or false if it is unknown.
func (c *Catalog) CanonicalKey(key string) (string, bool) {
	def, ok := c.TryGet(key)
	if !ok {
		return "", false
	}
	return def.Key, true
}

// FoldKey returns the case-insensitive form of key under which the catalog
// indexes definitions. Surrounding whitespace is ignored.
func FoldKey(key string) string {
	return foldKey(strings.TrimSpace(key))
}

// foldKey normalizes a key for case-insensitive lookup.
// Casers are stateful, so a new one is created per call.
func foldKey(key string) string {
	return cases.Fold().String(key)
}
