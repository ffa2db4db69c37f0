// Package selector parses CSS-like and XPath-like locator expressions into a
// syntax tree.
//
// A selector is a comma-separated list of alternatives (logical OR). Each
// alternative is a chain of steps joined by combinators:
//
//	JPanel > JButton[text='OK']:enabled     child combinator
//	Dialog JButton.primary                  descendant combinator
//	//JPanel//JButton[@text='OK']           XPath form
//
// The parser is pure and keeps no state between calls.
package selector

import (
	"strconv"
	"strings"
)

// Combinator joins a step to the step before it.
type Combinator int

const (
	Descendant Combinator = iota // whitespace in CSS, "//" in XPath
	Child                        // ">" in CSS, "/" in XPath
)

// String returns the combinator name used in wire parameters.
func (c Combinator) String() string {
	if c == Child {
		return "child"
	}
	return "descendant"
}

// MatchOp is an attribute comparison operator.
type MatchOp int

const (
	OpEquals     MatchOp = iota // =
	OpContains                  // *=
	OpStartsWith                // ^=
	OpEndsWith                  // $=
	OpNotEquals                 // !=
)

// String returns the operator's CSS spelling.
func (op MatchOp) String() string {
	switch op {
	case OpContains:
		return "*="
	case OpStartsWith:
		return "^="
	case OpEndsWith:
		return "$="
	case OpNotEquals:
		return "!="
	default:
		return "="
	}
}

// Apply compares an actual attribute value against the expected one.
func (op MatchOp) Apply(actual, expected string) bool {
	switch op {
	case OpContains:
		return strings.Contains(actual, expected)
	case OpStartsWith:
		return strings.HasPrefix(actual, expected)
	case OpEndsWith:
		return strings.HasSuffix(actual, expected)
	case OpNotEquals:
		return actual != expected
	default:
		return actual == expected
	}
}

// PseudoKind enumerates the supported pseudo-classes. The set is closed:
// anything else is rejected by the parser.
type PseudoKind int

const (
	PseudoVisible PseudoKind = iota + 1
	PseudoHidden
	PseudoEnabled
	PseudoDisabled
	PseudoFocused
	PseudoSelected
	PseudoChecked
	PseudoUnchecked
	PseudoEditable
	PseudoReadOnly
	PseudoFirstChild
	PseudoLastChild
	PseudoOnlyChild
	PseudoEmpty
	PseudoNthChild
)

var pseudoNames = map[PseudoKind]string{
	PseudoVisible:    "visible",
	PseudoHidden:     "hidden",
	PseudoEnabled:    "enabled",
	PseudoDisabled:   "disabled",
	PseudoFocused:    "focused",
	PseudoSelected:   "selected",
	PseudoChecked:    "checked",
	PseudoUnchecked:  "unchecked",
	PseudoEditable:   "editable",
	PseudoReadOnly:   "readonly",
	PseudoFirstChild: "first-child",
	PseudoLastChild:  "last-child",
	PseudoOnlyChild:  "only-child",
	PseudoEmpty:      "empty",
	PseudoNthChild:   "nth-child",
}

var pseudoLookup = map[string]PseudoKind{
	"focus":     PseudoFocused,
	"read-only": PseudoReadOnly,
	"first":     PseudoFirstChild,
	"last":      PseudoLastChild,
}

func init() {
	for kind, name := range pseudoNames {
		pseudoLookup[name] = kind
	}
}

// LookupPseudo resolves a pseudo-class name (case-insensitive, aliases
// included).
func LookupPseudo(name string) (PseudoKind, bool) {
	kind, ok := pseudoLookup[strings.ToLower(name)]
	return kind, ok
}

// String returns the canonical pseudo-class name.
func (k PseudoKind) String() string {
	if name, ok := pseudoNames[k]; ok {
		return name
	}
	return "unknown"
}

// Functional reports whether the pseudo-class takes an argument.
func (k PseudoKind) Functional() bool {
	return k == PseudoNthChild
}

// PseudoClass is a pseudo-class with its argument, if any.
type PseudoClass struct {
	Kind PseudoKind
	N    int // argument for nth-child, 1-based
}

// String renders the pseudo-class as written in a selector.
func (p PseudoClass) String() string {
	if p.Kind.Functional() {
		return ":" + p.Kind.String() + "(" + strconv.Itoa(p.N) + ")"
	}
	return ":" + p.Kind.String()
}

// Attribute is an attribute predicate, [name op 'value'].
type Attribute struct {
	Name  string
	Op    MatchOp
	Value string
}

// String renders the predicate in CSS form.
func (a Attribute) String() string {
	return "[" + a.Name + a.Op.String() + Quote(a.Value) + "]"
}

// Step is one compound selector in a chain.
type Step struct {
	// Combinator relating this step to the previous one. For the first step
	// of an XPath chain it records whether the path started with "//" or "/".
	Combinator Combinator

	Type       string // widget type name, "*" for universal, "" when omitted
	ID         string
	Classes    []string
	Attributes []Attribute
	Pseudos    []PseudoClass
}

// HasType reports whether the step names a concrete type.
func (s Step) HasType() bool {
	return s.Type != "" && s.Type != "*"
}

// String renders the step in CSS form.
func (s Step) String() string {
	var b strings.Builder
	b.WriteString(EscapeType(s.Type))
	if s.ID != "" {
		b.WriteString("#" + s.ID)
	}
	for _, c := range s.Classes {
		b.WriteString("." + c)
	}
	for _, a := range s.Attributes {
		b.WriteString(a.String())
	}
	for _, p := range s.Pseudos {
		b.WriteString(p.String())
	}
	if b.Len() == 0 {
		return "*"
	}
	return b.String()
}

func (s Step) xpathString() string {
	var b strings.Builder
	if s.Combinator == Child {
		b.WriteString("/")
	} else {
		b.WriteString("//")
	}
	if s.Type == "" {
		b.WriteString("*")
	} else {
		b.WriteString(s.Type)
	}
	for _, a := range s.Attributes {
		switch a.Op {
		case OpContains:
			b.WriteString("[contains(@" + a.Name + "," + Quote(a.Value) + ")]")
		case OpStartsWith:
			b.WriteString("[starts-with(@" + a.Name + "," + Quote(a.Value) + ")]")
		case OpEndsWith:
			b.WriteString("[ends-with(@" + a.Name + "," + Quote(a.Value) + ")]")
		default:
			b.WriteString("[@" + a.Name + a.Op.String() + Quote(a.Value) + "]")
		}
	}
	for _, p := range s.Pseudos {
		if p.Kind == PseudoNthChild {
			b.WriteString("[" + strconv.Itoa(p.N) + "]")
		}
	}
	return b.String()
}

// Chain is a sequence of steps; the last step is the element being located.
type Chain struct {
	Steps []Step
}

// Target returns the last step of the chain.
func (c Chain) Target() Step {
	if len(c.Steps) == 0 {
		return Step{}
	}
	return c.Steps[len(c.Steps)-1]
}

// String renders the chain in CSS form.
func (c Chain) String() string {
	var b strings.Builder
	for i, s := range c.Steps {
		if i > 0 {
			if s.Combinator == Child {
				b.WriteString(" > ")
			} else {
				b.WriteString(" ")
			}
		}
		b.WriteString(s.String())
	}
	return b.String()
}

// Selector is the root of a parsed locator expression.
type Selector struct {
	Alternatives []Chain // OR-ed alternatives, at least one
	Original     string  // input as given to Parse
	XPath        bool    // parsed from the XPath form
}

// String renders the selector in canonical form. Parsing the result yields
// an equal tree.
func (s *Selector) String() string {
	if s.XPath {
		var b strings.Builder
		for _, c := range s.Alternatives {
			for _, st := range c.Steps {
				b.WriteString(st.xpathString())
			}
		}
		return b.String()
	}
	parts := make([]string, len(s.Alternatives))
	for i, c := range s.Alternatives {
		parts[i] = c.String()
	}
	return strings.Join(parts, ", ")
}

// EscapeType renders a type name so that it parses back to itself,
// escaping every byte that is not valid in an identifier at its position.
func EscapeType(name string) string {
	if name == "*" {
		return name
	}
	var b strings.Builder
	for i := 0; i < len(name); i++ {
		c := name[i]
		if !(isIdentStart(c) || (i > 0 && isIdentChar(c))) {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}
	return b.String()
}

// Quote wraps a value in single quotes, escaping quotes and backslashes.
func Quote(v string) string {
	var b strings.Builder
	b.Grow(len(v) + 2)
	b.WriteByte('\'')
	for i := 0; i < len(v); i++ {
		c := v[i]
		if c == '\'' || c == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}
	b.WriteByte('\'')
	return b.String()
}
