package core

import (
	"encoding/json"
	"fmt"
	"maps"
)

// ElementProperties is a snapshot of a UI component's properties as reported
// by the agent. Snapshots are cached by ID, so treat them as values.
type ElementProperties struct {
	ID         int64          `json:"id"`                   // Stable hash code assigned by the agent
	ClassName  string         `json:"className,omitempty"`  // Simple or fully-qualified widget class
	Text       string         `json:"text,omitempty"`       // Visible text content
	Name       string         `json:"name,omitempty"`       // Component name
	Tooltip    string         `json:"tooltip,omitempty"`    // Tooltip text
	Visible    bool           `json:"visible"`              // Is showing on screen
	Enabled    bool           `json:"enabled"`              // Accepts input
	Focused    bool           `json:"focused,omitempty"`    // Owns keyboard focus
	ChildIndex int            `json:"childIndex,omitempty"` // 1-based position in parent, 0 if unknown
	Bounds     Bounds         `json:"bounds"`
	Extra      map[string]any `json:"extra,omitempty"` // Free-form attributes (selected, editable, ...)
}

// NewElementProperties returns a snapshot with the agent's defaults:
// visible and enabled, not focused.
func NewElementProperties(id int64) ElementProperties {
	return ElementProperties{
		ID:      id,
		Visible: true,
		Enabled: true,
	}
}

// Clone returns a copy with its own Extra map. Extra values are copied
// shallowly.
func (e ElementProperties) Clone() ElementProperties {
	e.Extra = maps.Clone(e.Extra)
	return e
}

// Property returns the value of an extra attribute.
func (e ElementProperties) Property(name string) (any, bool) {
	v, ok := e.Extra[name]
	return v, ok
}

// SetProperty sets an extra attribute.
func (e *ElementProperties) SetProperty(name string, value any) {
	if e.Extra == nil {
		e.Extra = make(map[string]any)
	}
	e.Extra[name] = value
}

// Attribute returns a property as a string for attribute predicates.
// Well-known names map to typed fields; everything else comes from Extra.
func (e ElementProperties) Attribute(name string) (string, bool) {
	switch name {
	case "text":
		return e.Text, true
	case "name":
		return e.Name, true
	case "class", "className":
		return e.ClassName, true
	case "tooltip":
		return e.Tooltip, true
	case "id", "hashCode":
		return fmt.Sprint(e.ID), true
	case "visible", "showing":
		return fmt.Sprint(e.Visible), true
	case "enabled":
		return fmt.Sprint(e.Enabled), true
	case "focused":
		return fmt.Sprint(e.Focused), true
	}
	v, ok := e.Extra[name]
	if !ok || v == nil {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return fmt.Sprint(v), true
}

// Flag returns a boolean extra attribute, falling back to def when absent
// or not a boolean.
func (e ElementProperties) Flag(name string, def bool) bool {
	v, ok := e.Extra[name]
	if !ok {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}

// elementJSON mirrors the agent's wire shape: flat bounds and an optional
// "properties" object.
type elementJSON struct {
	HashCode   *int64         `json:"hashCode"`
	ID         *int64         `json:"id"`
	ClassName  string         `json:"className"`
	Class      string         `json:"class"`
	Text       string         `json:"text"`
	Name       string         `json:"name"`
	Tooltip    string         `json:"tooltip"`
	Visible    *bool          `json:"visible"`
	Enabled    *bool          `json:"enabled"`
	Focused    bool           `json:"focused"`
	ChildIndex int            `json:"childIndex"`
	X          int            `json:"x"`
	Y          int            `json:"y"`
	Width      int            `json:"width"`
	Height     int            `json:"height"`
	Properties map[string]any `json:"properties"`
}

// ParseElementProperties decodes an agent element payload. The element ID is
// read from "hashCode", falling back to "id"; visibility and enablement
// default to true when absent.
func ParseElementProperties(data []byte) (ElementProperties, error) {
	var raw elementJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return ElementProperties{}, fmt.Errorf("decode element: %w", err)
	}

	var id int64
	switch {
	case raw.HashCode != nil:
		id = *raw.HashCode
	case raw.ID != nil:
		id = *raw.ID
	default:
		return ElementProperties{}, fmt.Errorf("decode element: missing hashCode or id")
	}

	props := NewElementProperties(id)
	props.ClassName = raw.ClassName
	if props.ClassName == "" {
		props.ClassName = raw.Class
	}
	props.Text = raw.Text
	props.Name = raw.Name
	props.Tooltip = raw.Tooltip
	if raw.Visible != nil {
		props.Visible = *raw.Visible
	}
	if raw.Enabled != nil {
		props.Enabled = *raw.Enabled
	}
	props.Focused = raw.Focused
	props.ChildIndex = raw.ChildIndex
	props.Bounds = Bounds{X: raw.X, Y: raw.Y, Width: raw.Width, Height: raw.Height}
	if len(raw.Properties) > 0 {
		props.Extra = raw.Properties
	}
	return props, nil
}

// Bounds represents element position and size
type Bounds struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Center returns the center point of the bounds
func (b Bounds) Center() (int, int) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// Contains checks if a point is within the bounds
func (b Bounds) Contains(x, y int) bool {
	return x >= b.X && x < b.X+b.Width && y >= b.Y && y < b.Y+b.Height
}

// IsEmpty reports whether the bounds have no area.
func (b Bounds) IsEmpty() bool {
	return b.Width <= 0 || b.Height <= 0
}
