// Package locator is the toolkit-agnostic locator model. A Locator is built
// from shorthand ("name:okButton") or by lowering a parsed selector, and is
// translated into toolkit wire parameters by Normalize.
package locator

import (
	"slices"
	"strconv"
	"strings"

	"github.com/devicelab-dev/guilocator/pkg/core"
	"github.com/devicelab-dev/guilocator/pkg/selector"
)

// Kind is the primary strategy of a locator.
type Kind int

const (
	KindName Kind = iota + 1
	KindText
	KindClass
	KindIndex
	KindID
	KindCSS
	KindXPath
	KindTooltip
	KindAccessible
	KindToolkitSpecific
)

// String returns the locator type name sent on the wire.
func (k Kind) String() string {
	switch k {
	case KindName:
		return "name"
	case KindText:
		return "text"
	case KindClass:
		return "class"
	case KindIndex:
		return "index"
	case KindID:
		return "id"
	case KindCSS:
		return "css"
	case KindXPath:
		return "xpath"
	case KindTooltip:
		return "tooltip"
	case KindAccessible:
		return "accessible"
	case KindToolkitSpecific:
		return "toolkit"
	default:
		return "unknown"
	}
}

// Predicate is an extra matching constraint. Implemented by Attribute and
// PseudoClass only.
type Predicate interface {
	String() string
	Matches(el core.ElementProperties) bool
	isPredicate()
}

// Attribute compares a named element property.
type Attribute struct {
	Name  string
	Op    selector.MatchOp
	Value string
}

func (Attribute) isPredicate() {}

// String renders the predicate in selector syntax.
func (a Attribute) String() string {
	return selector.Attribute(a).String()
}

// PseudoClass is a state or position constraint.
type PseudoClass struct {
	Kind selector.PseudoKind
	N    int // nth-child argument
}

func (PseudoClass) isPredicate() {}

// String renders the predicate in selector syntax.
func (p PseudoClass) String() string {
	return selector.PseudoClass(p).String()
}

// Scope is an ancestor step of a chained locator.
type Scope struct {
	Type       string // widget type, empty for any
	Predicates []Predicate
	Combinator selector.Combinator // relation to the following step
}

func (s Scope) equal(o Scope) bool {
	return s.Type == o.Type && s.Combinator == o.Combinator && slices.Equal(s.Predicates, o.Predicates)
}

func (s Scope) clone() Scope {
	s.Predicates = slices.Clone(s.Predicates)
	return s
}

// Locator is a toolkit-agnostic element locator. Values are immutable: the
// With* builders return extended copies.
type Locator struct {
	Kind       Kind
	Toolkit    core.Toolkit // set for KindToolkitSpecific only
	Value      string
	Predicates []Predicate
	Ancestors  []Scope // outermost first, empty unless built from a chain
	Original   string  // source string, identity key for caches
}

func newLocator(kind Kind, value string) Locator {
	l := Locator{Kind: kind, Value: value}
	l.Original = l.String()
	return l
}

// Name locates by component name.
func Name(v string) Locator { return newLocator(KindName, v) }

// Text locates by visible text.
func Text(v string) Locator { return newLocator(KindText, v) }

// Class locates by widget class, simple or fully qualified.
func Class(v string) Locator { return newLocator(KindClass, v) }

// ID locates by element id (hash code on Swing).
func ID(v string) Locator { return newLocator(KindID, v) }

// Tooltip locates by tooltip text.
func Tooltip(v string) Locator { return newLocator(KindTooltip, v) }

// Accessible locates by accessible name.
func Accessible(v string) Locator { return newLocator(KindAccessible, v) }

// XPath wraps an XPath expression.
func XPath(v string) Locator { return newLocator(KindXPath, v) }

// Index locates the n-th element (0-based).
func Index(n int) Locator { return newLocator(KindIndex, strconv.Itoa(n)) }

// ToolkitSpecific passes a native selector through to one toolkit.
func ToolkitSpecific(tk core.Toolkit, v string) Locator {
	l := Locator{Kind: KindToolkitSpecific, Toolkit: tk, Value: v}
	l.Original = l.String()
	return l
}

// IndexValue returns the numeric payload of an Index locator.
func (l Locator) IndexValue() (int, bool) {
	if l.Kind != KindIndex {
		return 0, false
	}
	n, err := strconv.Atoi(l.Value)
	if err != nil {
		return 0, false
	}
	return n, true
}

// NumericID returns the id as a number when the Id value is numeric.
func (l Locator) NumericID() (int64, bool) {
	if l.Kind != KindID {
		return 0, false
	}
	n, err := strconv.ParseInt(l.Value, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// WithAttribute returns a copy with an attribute predicate appended.
func (l Locator) WithAttribute(name string, op selector.MatchOp, value string) Locator {
	return l.withPredicate(Attribute{Name: name, Op: op, Value: value})
}

// WithPseudoClass returns a copy with a pseudo-class appended. n is used by
// nth-child only and is 1-based; smaller values are raised to 1.
func (l Locator) WithPseudoClass(kind selector.PseudoKind, n int) Locator {
	p := PseudoClass{Kind: kind}
	if kind.Functional() {
		p.N = max(n, 1)
	}
	return l.withPredicate(p)
}

func (l Locator) withPredicate(p Predicate) Locator {
	c := l.Clone()
	c.Predicates = append(c.Predicates, p)
	c.Original = c.String()
	return c
}

// Clone returns a deep copy.
func (l Locator) Clone() Locator {
	l.Predicates = slices.Clone(l.Predicates)
	if l.Ancestors != nil {
		anc := make([]Scope, len(l.Ancestors))
		for i, s := range l.Ancestors {
			anc[i] = s.clone()
		}
		l.Ancestors = anc
	}
	return l
}

// Equal reports whether two locators select the same thing. Original is
// ignored.
func (l Locator) Equal(o Locator) bool {
	if l.Kind != o.Kind || l.Value != o.Value {
		return false
	}
	if l.Kind == KindToolkitSpecific && l.Toolkit != o.Toolkit {
		return false
	}
	return slices.Equal(l.Predicates, o.Predicates) &&
		slices.EqualFunc(l.Ancestors, o.Ancestors, Scope.equal)
}

// MatchesType reports whether a class name satisfies a Class or
// ToolkitSpecific locator. Both simple and fully-qualified names match, as do
// nested class names ("Outer$Inner").
func (l Locator) MatchesType(candidate string) bool {
	if l.Kind != KindClass && l.Kind != KindToolkitSpecific {
		return false
	}
	return typeMatches(candidate, l.Value)
}

func typeMatches(candidate, want string) bool {
	if candidate == want {
		return true
	}
	if i := strings.LastIndexAny(candidate, ".$"); i >= 0 {
		return candidate[i+1:] == want
	}
	return false
}

// String renders the locator. Shorthand kinds render with their prefix and
// selector kinds as a CSS selector, so parsing the result yields an equal
// locator. Predicates added to shorthand kinds are appended for display.
func (l Locator) String() string {
	switch l.Kind {
	case KindClass:
		// Chains need the selector form; qualified names are escaped there.
		if isIdentifier(l.Value) || len(l.Ancestors) > 0 {
			return l.selectorString(l.Value)
		}
		return "class:" + l.Value + predicateSuffix(l.Predicates)
	case KindCSS:
		return l.selectorString("")
	case KindXPath:
		return l.Value + predicateSuffix(l.Predicates)
	case KindID:
		if isIdentifier(l.Value) && len(l.Predicates) == 0 {
			return "#" + l.Value
		}
		return "id:" + l.Value + predicateSuffix(l.Predicates)
	case KindToolkitSpecific:
		return l.Toolkit.String() + ":" + l.Value + predicateSuffix(l.Predicates)
	default:
		return l.Kind.String() + ":" + l.Value + predicateSuffix(l.Predicates)
	}
}

func (l Locator) selectorString(typ string) string {
	var b strings.Builder
	for _, s := range l.Ancestors {
		b.WriteString(stepString(s.Type, s.Predicates))
		if s.Combinator == selector.Child {
			b.WriteString(" > ")
		} else {
			b.WriteString(" ")
		}
	}
	b.WriteString(stepString(typ, l.Predicates))
	return b.String()
}

func stepString(typ string, preds []Predicate) string {
	s := predicateSuffix(preds)
	if typ != "" {
		s = selector.EscapeType(typ) + s
	}
	if s == "" {
		return "*"
	}
	return s
}

func predicateSuffix(preds []Predicate) string {
	var b strings.Builder
	for _, p := range preds {
		b.WriteString(p.String())
	}
	return b.String()
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z'):
		case i > 0 && (c == '-' || (c >= '0' && c <= '9')):
		default:
			return false
		}
	}
	return true
}
