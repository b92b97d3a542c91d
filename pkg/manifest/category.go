// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// CategoryUnknown marks packs whose first module type is not installable.
	CategoryUnknown Category = iota
	// CategoryBehavior packs install into behavior_packs.
	CategoryBehavior
	// CategoryResource packs install into resource_packs.
	CategoryResource
)

const (
	// ModuleTypeData declares a behavior pack's data module.
	ModuleTypeData ModuleType = "data"
	// ModuleTypeScript declares a behavior pack's script module.
	ModuleTypeScript ModuleType = "script"
	// ModuleTypeResources declares a resource pack.
	ModuleTypeResources ModuleType = "resources"
)

// ErrInvalidCategory is returned by ParseCategory for unrecognized names.
var ErrInvalidCategory = errors.New("invalid category")

type (
	// Category is the installable kind of a pack. Each category owns one
	// installed-packs directory and one registry file.
	Category int

	// ModuleType is the "type" tag of a manifest module.
	ModuleType string
)

// Categories returns every installable category in a stable order.
func Categories() []Category {
	return []Category{CategoryBehavior, CategoryResource}
}

// ParseCategory resolves a category from its String form.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories() {
		if strings.EqualFold(s, c.String()) {
			return c, nil
		}
	}
	return CategoryUnknown, fmt.Errorf("%w: %q (expected behavior or resource)", ErrInvalidCategory, s)
}

// IsKnown reports whether c is installable.
func (c Category) IsKnown() bool {
	return c == CategoryBehavior || c == CategoryResource
}

// String returns the lower-case category name.
func (c Category) String() string {
	switch c {
	case CategoryBehavior:
		return "behavior"
	case CategoryResource:
		return "resource"
	default:
		return "unknown"
	}
}

// Category maps a module type onto the category it installs as.
func (t ModuleType) Category() Category {
	switch t {
	case ModuleTypeData, ModuleTypeScript:
		return CategoryBehavior
	case ModuleTypeResources:
		return CategoryResource
	default:
		return CategoryUnknown
	}
}

// String returns the module type tag.
func (t ModuleType) String() string { return string(t) }
