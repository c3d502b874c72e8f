// Package classify resolves an entity's tags to one renderable category.
//
// A [Table] holds a priority-ordered list of classifiable tag keys and a
// category→color mapping. [Table.Classify] walks the keys in priority order
// and returns the first key whose tag value is a known category, so an entity
// tagged both building=yes and water=water is classified by whichever key
// comes first in the list, independent of tag order on the entity.
// Entities with no match are skipped by the renderer.
package classify

import (
	"fmt"
	"image/color"

	"github.com/paulmach/osm"

	"github.com/matzehuels/geomap/pkg/errors"
)

// Class is the result of a successful classification.
type Class struct {
	Key      string     // classifying tag key, e.g. "building"
	Category string     // tag value, e.g. "yes"
	Color    color.RGBA // category color
}

// Table is an immutable classification table.
type Table struct {
	keys   []string
	colors map[string]color.RGBA
}

// NewTable builds a table from a priority-ordered key list and a category
// color mapping. Both are copied.
func NewTable(keys []string, colors map[string]color.RGBA) (*Table, error) {
	if len(keys) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "classifiable key list is empty")
	}
	if len(colors) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "category color table is empty")
	}

	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if err := errors.ValidateCategoryName(k); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "classifiable key %q", k)
		}
		if seen[k] {
			return nil, errors.New(errors.ErrCodeInvalidConfig, "duplicate classifiable key %q", k)
		}
		seen[k] = true
	}

	t := &Table{
		keys:   append([]string(nil), keys...),
		colors: make(map[string]color.RGBA, len(colors)),
	}
	for name, c := range colors {
		if name == "" {
			return nil, errors.New(errors.ErrCodeInvalidConfig, "empty category name")
		}
		c.A = 0xff
		t.colors[name] = c
	}
	return t, nil
}

// Classify returns the first (key, category) match in priority order.
func (t *Table) Classify(tags osm.Tags) (Class, bool) {
	if len(tags) == 0 {
		return Class{}, false
	}
	for _, key := range t.keys {
		value := tags.Find(key)
		if value == "" {
			continue
		}
		if c, ok := t.colors[value]; ok {
			return Class{Key: key, Category: value, Color: c}, true
		}
	}
	return Class{}, false
}

// HasClassifiableKey reports whether any tag key is in the priority list,
// regardless of its value. Sources use it as a cheap ingestion filter.
func (t *Table) HasClassifiableKey(tags osm.Tags) bool {
	for _, key := range t.keys {
		if tags.Find(key) != "" {
			return true
		}
	}
	return false
}

// Keys returns a copy of the priority-ordered key list.
func (t *Table) Keys() []string {
	return append([]string(nil), t.keys...)
}

// Color returns the color of a category.
func (t *Table) Color(category string) (color.RGBA, bool) {
	c, ok := t.colors[category]
	return c, ok
}

// Categories returns the number of known categories.
func (t *Table) Categories() int {
	return len(t.colors)
}

func (c Class) String() string {
	return fmt.Sprintf("%s=%s", c.Key, c.Category)
}
