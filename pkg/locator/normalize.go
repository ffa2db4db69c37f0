package locator

import (
	"slices"

	"github.com/devicelab-dev/guilocator/pkg/core"
	"github.com/devicelab-dev/guilocator/pkg/selector"
)

// NormalizedLocator is a locator resolved for one toolkit, with the
// parameters the transport sends to the agent.
type NormalizedLocator struct {
	Toolkit    core.Toolkit
	Kind       Kind
	ClassName  string // resolved class for Class locators, empty otherwise
	Value      string
	Predicates []Predicate
	Ancestors  []Scope // types resolved for Toolkit
	Params     map[string]any
}

// Normalize resolves loc for tk with the built-in class map.
func Normalize(loc Locator, tk core.Toolkit) NormalizedLocator {
	return DefaultClassMap().Normalize(loc, tk)
}

// Normalize resolves loc for tk. It never fails: unknown class names pass
// through unchanged. Toolkit-specific locators keep their own toolkit.
func (m *ClassMap) Normalize(loc Locator, tk core.Toolkit) NormalizedLocator {
	if loc.Kind == KindToolkitSpecific {
		tk = loc.Toolkit
	}
	n := NormalizedLocator{
		Toolkit:    tk,
		Kind:       loc.Kind,
		Value:      loc.Value,
		Predicates: slices.Clone(loc.Predicates),
	}
	if loc.Kind == KindClass {
		n.ClassName = m.Resolve(tk, loc.Value)
	}
	for _, s := range loc.Ancestors {
		s = s.clone()
		s.Type = m.Resolve(tk, s.Type)
		n.Ancestors = append(n.Ancestors, s)
	}

	n.Params = n.buildParams()
	return n
}

func (n NormalizedLocator) buildParams() map[string]any {
	p := map[string]any{}

	switch n.Kind {
	case KindClass:
		p["locatorType"] = "class"
		p["value"] = n.ClassName
	case KindCSS:
		p["locatorType"] = "css"
		p["selector"] = n.selectorString()
	case KindIndex:
		p["locatorType"] = "index"
		p["value"] = atoiOrZero(n.Value)
	case KindID:
		if id, ok := (Locator{Kind: KindID, Value: n.Value}).NumericID(); ok {
			if n.Toolkit == core.ToolkitSwing {
				p["locatorType"] = "hashCode"
			} else {
				p["locatorType"] = "id"
			}
			p["value"] = id
		} else {
			p["locatorType"] = "id"
			p["value"] = n.Value
		}
	case KindXPath:
		p["locatorType"] = "xpath"
		p["xpath"] = n.Value
	case KindToolkitSpecific:
		p["locatorType"] = "toolkit"
		p["toolkit"] = n.Toolkit.String()
		p["locator"] = n.Value
	default:
		p["locatorType"] = n.Kind.String()
		p["value"] = n.Value
	}

	if len(n.Predicates) > 0 {
		p["predicates"] = predicateParams(n.Predicates)
	}
	if len(n.Ancestors) > 0 {
		anc := make([]map[string]any, len(n.Ancestors))
		for i, s := range n.Ancestors {
			a := map[string]any{
				"combinator": s.Combinator.String(),
				"class":      s.Type,
			}
			if len(s.Predicates) > 0 {
				a["predicates"] = predicateParams(s.Predicates)
			}
			anc[i] = a
		}
		p["ancestors"] = anc
	}
	return p
}

func (n NormalizedLocator) selectorString() string {
	return Locator{Kind: KindCSS, Predicates: n.Predicates, Ancestors: n.Ancestors}.String()
}

func predicateParams(preds []Predicate) []map[string]any {
	out := make([]map[string]any, len(preds))
	for i, pred := range preds {
		switch p := pred.(type) {
		case Attribute:
			out[i] = map[string]any{
				"type":  "attribute",
				"name":  p.Name,
				"op":    p.Op.String(),
				"value": p.Value,
			}
		case PseudoClass:
			m := map[string]any{
				"type":  "pseudo",
				"value": p.String(),
			}
			if p.Kind == selector.PseudoNthChild {
				m["index"] = p.N
			}
			out[i] = m
		}
	}
	return out
}

func atoiOrZero(s string) int {
	n, ok := (Locator{Kind: KindIndex, Value: s}).IndexValue()
	if !ok {
		return 0
	}
	return n
}

// Locator returns the unified locator this normalized form selects, using
// resolved class names.
func (n NormalizedLocator) Locator() Locator {
	l := Locator{
		Kind:       n.Kind,
		Value:      n.Value,
		Predicates: slices.Clone(n.Predicates),
	}
	if n.Kind == KindClass {
		l.Value = n.ClassName
	}
	if n.Kind == KindToolkitSpecific {
		l.Toolkit = n.Toolkit
	}
	for _, s := range n.Ancestors {
		l.Ancestors = append(l.Ancestors, s.clone())
	}
	l.Original = l.String()
	return l
}

// Clone returns a deep copy. Params values are rebuilt rather than copied.
func (n NormalizedLocator) Clone() NormalizedLocator {
	c := n
	c.Predicates = slices.Clone(n.Predicates)
	c.Ancestors = nil
	for _, s := range n.Ancestors {
		c.Ancestors = append(c.Ancestors, s.clone())
	}
	c.Params = c.buildParams()
	return c
}
