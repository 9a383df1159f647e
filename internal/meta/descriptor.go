package meta

import (
	"encoding/json"
	"strings"
)

// Entry carries optional display metadata. A nil field means "not set" so
// lower-precedence sources can fill it.
type Entry struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Icon        *string `json:"icon,omitempty"`
	Order       *int    `json:"order,omitempty"`
	IsDefault   *bool   `json:"is_default,omitempty"`
	IsExpanded  *bool   `json:"is_expanded,omitempty"`
}

// IsZero reports whether no field is set.
func (e Entry) IsZero() bool {
	return e.Title == nil && e.Description == nil && e.Icon == nil &&
		e.Order == nil && e.IsDefault == nil && e.IsExpanded == nil
}

func (e Entry) complete() bool {
	return e.Title != nil && e.Description != nil && e.Icon != nil &&
		e.Order != nil && e.IsDefault != nil && e.IsExpanded != nil
}

// fill copies fields from other that are unset on e.
func (e *Entry) fill(other Entry) {
	if e.Title == nil {
		e.Title = other.Title
	}
	if e.Description == nil {
		e.Description = other.Description
	}
	if e.Icon == nil {
		e.Icon = other.Icon
	}
	if e.Order == nil {
		e.Order = other.Order
	}
	if e.IsDefault == nil {
		e.IsDefault = other.IsDefault
	}
	if e.IsExpanded == nil {
		e.IsExpanded = other.IsExpanded
	}
}

// Descriptor is the content of a per-directory sidecar file.
type Descriptor struct {
	Entry
	Items map[string]Entry `json:"items,omitempty"`
}

// Item returns the entry registered for slug.
func (d Descriptor) Item(slug string) (Entry, bool) {
	entry, ok := d.Items[slug]
	return entry, ok
}

// NavigationEntry is one navigation listed in the root descriptor.
type NavigationEntry struct {
	Slug string `json:"slug"`
	Entry
}

// RootDescriptor lists navigation overrides for the whole docs tree.
type RootDescriptor struct {
	Navigation []NavigationEntry `json:"navigation,omitempty"`
}

// Lookup returns the navigation override for slug.
func (r RootDescriptor) Lookup(slug string) (Entry, bool) {
	for _, nav := range r.Navigation {
		if strings.TrimSpace(nav.Slug) == slug {
			return nav.Entry, true
		}
	}
	return Entry{}, false
}

// ParseDescriptor decodes and validates a sidecar descriptor. Invalid input
// returns an empty descriptor together with the reason.
func ParseDescriptor(data []byte) (Descriptor, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return Descriptor{}, nil
	}
	if err := validate(descriptorSchema, data); err != nil {
		return Descriptor{}, err
	}
	var descriptor Descriptor
	if err := json.Unmarshal(data, &descriptor); err != nil {
		return Descriptor{}, err
	}
	return descriptor, nil
}

// ParseRootDescriptor decodes and validates the root navigation descriptor.
func ParseRootDescriptor(data []byte) (RootDescriptor, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return RootDescriptor{}, nil
	}
	if err := validate(rootSchema, data); err != nil {
		return RootDescriptor{}, err
	}
	var root RootDescriptor
	if err := json.Unmarshal(data, &root); err != nil {
		return RootDescriptor{}, err
	}
	return root, nil
}
