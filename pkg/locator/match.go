package locator

import (
	"github.com/devicelab-dev/guilocator/pkg/core"
	"github.com/devicelab-dev/guilocator/pkg/selector"
)

// Matches reports whether el satisfies the locator's target step. All
// predicates must hold. Ancestors are not checked since a snapshot carries no
// parent. Index locators select by position and never match a single
// element.
func (l Locator) Matches(el core.ElementProperties) bool {
	return matchTarget(l.Kind, l.Value, l.Value, l.Predicates, el)
}

// Matches is Locator.Matches using the resolved class name.
func (n NormalizedLocator) Matches(el core.ElementProperties) bool {
	className := n.ClassName
	if n.Kind == KindToolkitSpecific {
		className = n.Value
	}
	return matchTarget(n.Kind, className, n.Value, n.Predicates, el)
}

func matchTarget(kind Kind, className, value string, preds []Predicate, el core.ElementProperties) bool {
	switch kind {
	case KindName:
		if el.Name != value {
			return false
		}
	case KindText:
		if el.Text != value {
			return false
		}
	case KindTooltip:
		if el.Tooltip != value {
			return false
		}
	case KindAccessible:
		if name, _ := el.Attribute("accessibleName"); name != value {
			return false
		}
	case KindID:
		if id, _ := el.Attribute("id"); id != value && el.Name != value {
			return false
		}
	case KindClass, KindToolkitSpecific:
		if !typeMatches(el.ClassName, className) {
			return false
		}
	case KindXPath:
		if !matchXPath(value, el) {
			return false
		}
	case KindCSS:
	default:
		return false
	}
	return MatchesPredicates(preds, el)
}

func matchXPath(expr string, el core.ElementProperties) bool {
	sel, err := selector.Parse(expr)
	if err != nil || len(sel.Alternatives) == 0 {
		return false
	}
	st := sel.Alternatives[0].Target()
	if st.HasType() && !typeMatches(el.ClassName, st.Type) {
		return false
	}
	for _, a := range st.Attributes {
		if !Attribute(a).Matches(el) {
			return false
		}
	}
	for _, p := range st.Pseudos {
		if !PseudoClass(p).Matches(el) {
			return false
		}
	}
	return true
}

// MatchesPredicates reports whether every predicate holds for el.
func MatchesPredicates(preds []Predicate, el core.ElementProperties) bool {
	for _, p := range preds {
		if !p.Matches(el) {
			return false
		}
	}
	return true
}

// Matches reports whether el satisfies one ancestor step. Combinators are
// left to the caller, which owns the component tree.
func (s Scope) Matches(el core.ElementProperties) bool {
	if s.Type != "" && !typeMatches(el.ClassName, s.Type) {
		return false
	}
	return MatchesPredicates(s.Predicates, el)
}

// Matches compares the named property of el. Equality on "class" accepts
// simple and fully-qualified names. A missing property only satisfies !=.
func (a Attribute) Matches(el core.ElementProperties) bool {
	actual, ok := el.Attribute(a.Name)
	if !ok {
		return a.Op == selector.OpNotEquals
	}
	if a.Op == selector.OpEquals && (a.Name == "class" || a.Name == "className") {
		return typeMatches(actual, a.Value)
	}
	return a.Op.Apply(actual, a.Value)
}

// Matches evaluates the pseudo-class against el's state.
func (p PseudoClass) Matches(el core.ElementProperties) bool {
	switch p.Kind {
	case selector.PseudoVisible:
		return el.Visible
	case selector.PseudoHidden:
		return !el.Visible
	case selector.PseudoEnabled:
		return el.Enabled
	case selector.PseudoDisabled:
		return !el.Enabled
	case selector.PseudoFocused:
		return el.Focused
	case selector.PseudoSelected:
		return el.Flag("selected", false)
	case selector.PseudoChecked:
		return isChecked(el)
	case selector.PseudoUnchecked:
		return !isChecked(el)
	case selector.PseudoEditable:
		return el.Flag("editable", false)
	case selector.PseudoReadOnly:
		return !el.Flag("editable", false)
	case selector.PseudoFirstChild:
		return el.ChildIndex == 1
	case selector.PseudoLastChild:
		return el.Flag("lastChild", false)
	case selector.PseudoOnlyChild:
		return el.ChildIndex == 1 && el.Flag("lastChild", false)
	case selector.PseudoEmpty:
		n, ok := el.Attribute("childCount")
		return !ok || n == "0"
	case selector.PseudoNthChild:
		return el.ChildIndex == p.N
	default:
		return false
	}
}

func isChecked(el core.ElementProperties) bool {
	return el.Flag("checked", false) || el.Flag("selected", false)
}
