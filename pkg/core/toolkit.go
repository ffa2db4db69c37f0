package core

import (
	"fmt"
	"strings"
)

// Toolkit identifies the GUI backend of the application under test.
type Toolkit int

const (
	ToolkitSwing Toolkit = iota // javax.swing
	ToolkitSWT                  // org.eclipse.swt
	ToolkitRCP                  // Eclipse RCP workbench (SWT widgets)
)

// Toolkits lists every supported backend in declaration order.
var Toolkits = []Toolkit{ToolkitSwing, ToolkitSWT, ToolkitRCP}

// String returns the lowercase toolkit name.
func (t Toolkit) String() string {
	switch t {
	case ToolkitSwing:
		return "swing"
	case ToolkitSWT:
		return "swt"
	case ToolkitRCP:
		return "rcp"
	default:
		return "unknown"
	}
}

// UsesSWTWidgets reports whether the toolkit exposes SWT widget classes.
func (t Toolkit) UsesSWTWidgets() bool {
	return t == ToolkitSWT || t == ToolkitRCP
}

// ParseToolkit parses a toolkit name case-insensitively.
func ParseToolkit(s string) (Toolkit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "swing":
		return ToolkitSwing, nil
	case "swt":
		return ToolkitSWT, nil
	case "rcp":
		return ToolkitRCP, nil
	default:
		return 0, fmt.Errorf("unknown toolkit %q (expected swing, swt or rcp)", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t Toolkit) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler so toolkits can be read
// from YAML, JSON and environment variables.
func (t *Toolkit) UnmarshalText(text []byte) error {
	parsed, err := ParseToolkit(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
