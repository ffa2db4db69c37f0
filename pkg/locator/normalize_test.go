package locator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicelab-dev/guilocator/pkg/core"
	"github.com/devicelab-dev/guilocator/pkg/selector"
)

func TestNormalize_ClassScenario(t *testing.T) {
	swing := Normalize(Class("Button"), core.ToolkitSwing)
	assert.Equal(t, "JButton", swing.ClassName)
	assert.Equal(t, "class", swing.Params["locatorType"])
	assert.Equal(t, "JButton", swing.Params["value"])

	swt := Normalize(Class("Button"), core.ToolkitSWT)
	assert.Equal(t, "Button", swt.ClassName)
}

func TestClassMap_Resolve(t *testing.T) {
	m := DefaultClassMap()

	tests := []struct {
		tk   core.Toolkit
		in   string
		want string
	}{
		{core.ToolkitSwing, "Button", "JButton"},
		{core.ToolkitSwing, "button", "JButton"},
		{core.ToolkitSwing, "JButton", "JButton"},
		{core.ToolkitSwing, "Text", "JTextField"},
		{core.ToolkitSwing, "Shell", "JFrame"},
		{core.ToolkitSwing, "Composite", "JPanel"},
		{core.ToolkitSwing, "ComboBox", "JComboBox"},
		{core.ToolkitSWT, "Button", "Button"},
		{core.ToolkitSWT, "JButton", "Button"},
		{core.ToolkitSWT, "TextField", "Text"},
		{core.ToolkitSWT, "JTextArea", "StyledText"},
		{core.ToolkitSWT, "Panel", "Composite"},
		{core.ToolkitSWT, "Window", "Shell"},
		{core.ToolkitRCP, "JTree", "Tree"},
		{core.ToolkitSwing, "com.acme.FancyWidget", "com.acme.FancyWidget"},
		{core.ToolkitSWT, "MyCustomCanvas", "MyCustomCanvas"},
		{core.ToolkitSwing, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.tk.String()+"/"+tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Resolve(tt.tk, tt.in))
		})
	}
}

func TestClassMap_ResolveIsIdempotent(t *testing.T) {
	m := DefaultClassMap()
	for _, tk := range core.Toolkits {
		for _, row := range m.Mappings() {
			for _, name := range []string{row.Canonical, row.Swing, row.SWT} {
				once := m.Resolve(tk, name)
				assert.Equal(t, once, m.Resolve(tk, once), "%s: %s", tk, name)
			}
		}
	}
}

func TestNormalize_Stable(t *testing.T) {
	inputs := []string{"Button", "TextField[text='x']", "Panel > Label", "JTree", "CustomWidget"}

	for _, tk := range core.Toolkits {
		for _, input := range inputs {
			t.Run(tk.String()+"/"+input, func(t *testing.T) {
				loc, err := Parse(input)
				require.NoError(t, err)

				once := Normalize(loc, tk)
				twice := Normalize(once.Locator(), tk)
				assert.Equal(t, once, twice)
			})
		}
	}
}

func TestNormalize_Params(t *testing.T) {
	tests := []struct {
		name  string
		input string
		tk    core.Toolkit
		want  map[string]any
	}{
		{
			name:  "name",
			input: "name:okButton",
			tk:    core.ToolkitSwing,
			want:  map[string]any{"locatorType": "name", "value": "okButton"},
		},
		{
			name:  "tooltip",
			input: "tooltip:Save",
			tk:    core.ToolkitSWT,
			want:  map[string]any{"locatorType": "tooltip", "value": "Save"},
		},
		{
			name:  "index",
			input: "index:2",
			tk:    core.ToolkitSwing,
			want:  map[string]any{"locatorType": "index", "value": 2},
		},
		{
			name:  "numeric id on swing",
			input: "id:12345",
			tk:    core.ToolkitSwing,
			want:  map[string]any{"locatorType": "hashCode", "value": int64(12345)},
		},
		{
			name:  "numeric id on swt",
			input: "id:12345",
			tk:    core.ToolkitSWT,
			want:  map[string]any{"locatorType": "id", "value": int64(12345)},
		},
		{
			name:  "string id",
			input: "#submit",
			tk:    core.ToolkitRCP,
			want:  map[string]any{"locatorType": "id", "value": "submit"},
		},
		{
			name:  "xpath",
			input: "//JButton",
			tk:    core.ToolkitSwing,
			want:  map[string]any{"locatorType": "xpath", "xpath": "//JButton"},
		},
		{
			name:  "toolkit specific",
			input: "swt:Button",
			tk:    core.ToolkitSwing,
			want:  map[string]any{"locatorType": "toolkit", "toolkit": "swt", "locator": "Button"},
		},
		{
			name:  "class with predicates",
			input: "Button[text='OK']:nth-child(2)",
			tk:    core.ToolkitSwing,
			want: map[string]any{
				"locatorType": "class",
				"value":       "JButton",
				"predicates": []map[string]any{
					{"type": "attribute", "name": "text", "op": "=", "value": "OK"},
					{"type": "pseudo", "value": ":nth-child(2)", "index": 2},
				},
			},
		},
		{
			name:  "css with ancestors",
			input: "Panel > *:focused",
			tk:    core.ToolkitSWT,
			want: map[string]any{
				"locatorType": "css",
				"selector":    "Composite > :focused",
				"predicates": []map[string]any{
					{"type": "pseudo", "value": ":focused"},
				},
				"ancestors": []map[string]any{
					{"combinator": "child", "class": "Composite"},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, Normalize(loc, tt.tk).Params)
		})
	}
}

func TestNormalize_ToolkitSpecificKeepsOwnToolkit(t *testing.T) {
	n := Normalize(ToolkitSpecific(core.ToolkitSWT, "Button"), core.ToolkitSwing)
	assert.Equal(t, core.ToolkitSWT, n.Toolkit)
}

func TestNormalize_DoesNotAliasInput(t *testing.T) {
	loc := Class("Button").WithAttribute("text", selector.OpEquals, "OK")
	n := Normalize(loc, core.ToolkitSwing)

	n.Predicates[0] = PseudoClass{Kind: selector.PseudoVisible}
	assert.Equal(t, Attribute{Name: "text", Op: selector.OpEquals, Value: "OK"}, loc.Predicates[0])
}

func TestNormalizedLocator_Clone(t *testing.T) {
	loc, err := Parse("Panel > Button[text='OK']")
	require.NoError(t, err)
	n := Normalize(loc, core.ToolkitSwing)

	c := n.Clone()
	c.Params["value"] = "changed"
	c.Ancestors[0].Type = "changed"

	assert.Equal(t, "JButton", n.Params["value"])
	assert.Equal(t, "JPanel", n.Ancestors[0].Type)
}

func TestParseClassMap(t *testing.T) {
	data := []byte(`
inherit: true
mappings:
  - canonical: DatePicker
    swing: JXDatePicker
    swt: DateTime
  - canonical: Button
    swing: FancyButton
    swt: Button
`)
	m, err := ParseClassMap(data)
	require.NoError(t, err)

	assert.Equal(t, "JXDatePicker", m.Resolve(core.ToolkitSwing, "DatePicker"))
	assert.Equal(t, "DateTime", m.Resolve(core.ToolkitSWT, "datepicker"))
	assert.Equal(t, "FancyButton", m.Resolve(core.ToolkitSwing, "Button"), "file rows take precedence")
	assert.Equal(t, "JLabel", m.Resolve(core.ToolkitSwing, "Label"), "built-ins inherited")
	assert.Equal(t, "DatePicker", m.Canonical("JXDatePicker"))
}

func TestParseClassMap_WithoutInherit(t *testing.T) {
	m, err := ParseClassMap([]byte("mappings:\n  - canonical: Button\n    swing: JButton\n"))
	require.NoError(t, err)

	assert.Equal(t, "JButton", m.Resolve(core.ToolkitSwing, "Button"))
	assert.Equal(t, "Label", m.Resolve(core.ToolkitSwing, "Label"))
	assert.Equal(t, "Button", m.Resolve(core.ToolkitSWT, "Button"), "missing swt column passes through")
}

func TestParseClassMap_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"bad yaml", "mappings: [unclosed"},
		{"missing canonical", "mappings:\n  - swing: JButton\n"},
		{"no toolkit names", "mappings:\n  - canonical: Button\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseClassMap([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestLoadClassMap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "classes.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mappings:\n  - canonical: Gauge\n    swing: JGauge\n    swt: Gauge\n"), 0644))

	m, err := LoadClassMap(path)
	require.NoError(t, err)
	assert.Equal(t, "JGauge", m.Resolve(core.ToolkitSwing, "Gauge"))

	_, err = LoadClassMap(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
