package locator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicelab-dev/guilocator/pkg/core"
	"github.com/devicelab-dev/guilocator/pkg/selector"
)

func TestBuilders_AppendAndRecomputeOriginal(t *testing.T) {
	base := Class("JButton")
	ext := base.WithAttribute("text", selector.OpContains, "Save").WithPseudoClass(selector.PseudoEnabled, 0)

	assert.Empty(t, base.Predicates, "builders must not modify the receiver")
	assert.Equal(t, "JButton", base.Original)
	assert.Equal(t, []Predicate{
		Attribute{Name: "text", Op: selector.OpContains, Value: "Save"},
		PseudoClass{Kind: selector.PseudoEnabled},
	}, ext.Predicates)
	assert.Equal(t, "JButton[text*='Save']:enabled", ext.Original)

	reparsed, err := Parse(ext.Original)
	require.NoError(t, err)
	assert.True(t, ext.Equal(reparsed))
}

func TestBuilders_NthChildArgument(t *testing.T) {
	loc := Class("JButton").WithPseudoClass(selector.PseudoNthChild, 3).WithPseudoClass(selector.PseudoVisible, 9)

	assert.Equal(t, []Predicate{
		PseudoClass{Kind: selector.PseudoNthChild, N: 3},
		PseudoClass{Kind: selector.PseudoVisible},
	}, loc.Predicates)
}

func TestBuilders_NthChildBelowOne(t *testing.T) {
	loc := Class("JButton").WithPseudoClass(selector.PseudoNthChild, 0)

	assert.Equal(t, []Predicate{PseudoClass{Kind: selector.PseudoNthChild, N: 1}}, loc.Predicates)
	reparsed, err := Parse(loc.Original)
	require.NoError(t, err)
	assert.True(t, loc.Equal(reparsed))
}

func TestBuilders_DoNotShareBackingArray(t *testing.T) {
	base := Class("JButton").WithAttribute("a", selector.OpEquals, "1")
	left := base.WithAttribute("b", selector.OpEquals, "2")
	right := base.WithAttribute("c", selector.OpEquals, "3")

	assert.Equal(t, "b", left.Predicates[1].(Attribute).Name)
	assert.Equal(t, "c", right.Predicates[1].(Attribute).Name)
}

func TestEqual(t *testing.T) {
	a := Class("JButton").WithAttribute("text", selector.OpEquals, "OK")
	b := Class("JButton").WithAttribute("text", selector.OpEquals, "OK")
	b.Original = "something else"

	assert.True(t, a.Equal(b), "Original is not compared")
	assert.False(t, a.Equal(Class("JButton")))
	assert.False(t, Name("x").Equal(Text("x")))
	assert.False(t, ToolkitSpecific(core.ToolkitSWT, "x").Equal(ToolkitSpecific(core.ToolkitSwing, "x")))
	assert.True(t, Name("x").Equal(Name("x")))
}

func TestMatchesType(t *testing.T) {
	tests := []struct {
		loc       Locator
		candidate string
		want      bool
	}{
		{Class("JButton"), "JButton", true},
		{Class("JButton"), "javax.swing.JButton", true},
		{Class("javax.swing.JButton"), "javax.swing.JButton", true},
		{Class("Inner"), "com.acme.Outer$Inner", true},
		{Class("JButton"), "JToggleButton", false},
		{Class("Button"), "JButton", false},
		{ToolkitSpecific(core.ToolkitSWT, "Button"), "org.eclipse.swt.widgets.Button", true},
		{Name("JButton"), "JButton", false},
	}

	for _, tt := range tests {
		t.Run(tt.loc.String()+"~"+tt.candidate, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.loc.MatchesType(tt.candidate))
		})
	}
}

func TestIndexValue(t *testing.T) {
	n, ok := Index(4).IndexValue()
	assert.True(t, ok)
	assert.Equal(t, 4, n)

	_, ok = Name("4").IndexValue()
	assert.False(t, ok)
}

func TestString(t *testing.T) {
	tests := []struct {
		loc  Locator
		want string
	}{
		{Name("ok"), "name:ok"},
		{Text("Save"), "text:Save"},
		{Index(2), "index:2"},
		{ID("submit"), "#submit"},
		{ID("42"), "id:42"},
		{Class("JButton"), "JButton"},
		{Class("javax.swing.JButton"), "class:javax.swing.JButton"},
		{Tooltip("tip"), "tooltip:tip"},
		{Accessible("Close"), "accessible:Close"},
		{XPath("//JButton"), "//JButton"},
		{ToolkitSpecific(core.ToolkitRCP, "view"), "rcp:view"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.loc.String())
			assert.Equal(t, tt.want, tt.loc.Original)
		})
	}
}

func elementFixture() core.ElementProperties {
	el := core.NewElementProperties(42)
	el.ClassName = "javax.swing.JButton"
	el.Text = "Save As"
	el.Name = "saveButton"
	el.Tooltip = "Save the document"
	el.ChildIndex = 2
	el.SetProperty("accessibleName", "Save")
	el.SetProperty("selected", true)
	return el
}

func TestMatches(t *testing.T) {
	el := elementFixture()

	tests := []struct {
		input string
		want  bool
	}{
		{"name:saveButton", true},
		{"name:other", false},
		{"text:Save As", true},
		{"tooltip:Save the document", true},
		{"accessible:Save", true},
		{"id:42", true},
		{"#saveButton", true},
		{"id:43", false},
		{"JButton", true},
		{"JLabel", false},
		{"JButton[text^='Save']:enabled:visible", true},
		{"JButton[text^='Save']:disabled", false},
		{"JButton:enabled[text='Nope']", false},
		{"*[name='saveButton']", true},
		{"*:nth-child(2)", true},
		{"*:first-child", false},
		{"*:checked", true},
		{"*:unchecked", false},
		{"*:read-only", true},
		{"*:empty", true},
		{"JButton[missing!='x']", true},
		{"JButton[missing='x']", false},
		{"JButton.JButton", true},
		{"swing:JButton", true},
		{"//JButton[@text='Save As']", true},
		{"//JButton[contains(text(),'As')][2]", true},
		{"//JLabel", false},
		{"index:0", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			loc, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, loc.Matches(el))
		})
	}
}

func TestMatches_PredicateOrderIrrelevant(t *testing.T) {
	el := elementFixture()
	a := Class("JButton").WithAttribute("text", selector.OpEquals, "Save As").WithPseudoClass(selector.PseudoFocused, 0)
	b := Class("JButton").WithPseudoClass(selector.PseudoFocused, 0).WithAttribute("text", selector.OpEquals, "Save As")

	assert.Equal(t, a.Matches(el), b.Matches(el))

	el.Focused = true
	assert.True(t, a.Matches(el))
	assert.True(t, b.Matches(el))
}

func TestNormalizedLocator_MatchesUsesResolvedClass(t *testing.T) {
	el := core.NewElementProperties(1)
	el.ClassName = "javax.swing.JButton"

	n := Normalize(Class("Button"), core.ToolkitSwing)
	assert.True(t, n.Matches(el))
	assert.False(t, Class("Button").Matches(el))
}

func TestScopeMatches(t *testing.T) {
	el := core.NewElementProperties(1)
	el.ClassName = "javax.swing.JPanel"
	el.Name = "form"

	assert.True(t, Scope{}.Matches(el))
	assert.True(t, Scope{Type: "JPanel"}.Matches(el))
	assert.False(t, Scope{Type: "Composite"}.Matches(el))
	assert.True(t, Scope{Type: "JPanel", Predicates: []Predicate{
		Attribute{Name: "name", Op: selector.OpEquals, Value: "form"},
	}}.Matches(el))
	assert.False(t, Scope{Predicates: []Predicate{
		PseudoClass{Kind: selector.PseudoHidden},
	}}.Matches(el))
}
