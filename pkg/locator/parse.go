package locator

import (
	"errors"
	"strconv"
	"strings"

	"github.com/devicelab-dev/guilocator/pkg/core"
	"github.com/devicelab-dev/guilocator/pkg/selector"
)

// ErrNotRecognized is returned by a Strategy that does not handle an input,
// passing it on to the next strategy in a Chain.
var ErrNotRecognized = errors.New("locator form not recognized")

// Strategy turns a raw string into a Locator.
type Strategy interface {
	Parse(s string) (Locator, error)
}

// StrategyFunc adapts a function to Strategy.
type StrategyFunc func(s string) (Locator, error)

// Parse implements Strategy.
func (f StrategyFunc) Parse(s string) (Locator, error) { return f(s) }

// Chain tries strategies in order until one recognizes the input.
type Chain []Strategy

// Parse implements Strategy.
func (c Chain) Parse(s string) (Locator, error) {
	if strings.TrimSpace(s) == "" {
		return Locator{}, core.ErrEmpty.WithInput(s)
	}
	for _, st := range c {
		loc, err := st.Parse(s)
		if errors.Is(err, ErrNotRecognized) {
			continue
		}
		return loc, err
	}
	return Locator{}, core.ErrUnsupportedForm.WithInput(s)
}

// Default is the strategy chain used by Parse: shorthand, then XPath, then
// the full selector grammar.
var Default = Chain{
	StrategyFunc(ParseShorthand),
	StrategyFunc(ParseXPath),
	StrategyFunc(ParseSelector),
}

// Parse parses a locator string with the Default chain.
func Parse(s string) (Locator, error) {
	return Default.Parse(s)
}

type shorthand struct {
	prefix string
	kind   Kind
	tk     core.Toolkit
}

var shorthands = []shorthand{
	{"name:", KindName, 0},
	{"text:", KindText, 0},
	{"class:", KindClass, 0},
	{"index:", KindIndex, 0},
	{"id:", KindID, 0},
	{"tooltip:", KindTooltip, 0},
	{"accessible:", KindAccessible, 0},
	{"swing:", KindToolkitSpecific, core.ToolkitSwing},
	{"swt:", KindToolkitSpecific, core.ToolkitSWT},
	{"rcp:", KindToolkitSpecific, core.ToolkitRCP},
}

// ParseShorthand recognizes prefix forms ("name:x", "index:2", "swt:...")
// and "#id". It never runs the selector grammar. A prefix followed by a
// pseudo-class ("Text:enabled") is a type with a predicate and is left to
// the grammar.
func ParseShorthand(s string) (Locator, error) {
	trimmed := strings.TrimSpace(s)

	if rest, ok := strings.CutPrefix(trimmed, "#"); ok {
		if rest == "" || strings.ContainsAny(rest, selectorMeta) {
			return Locator{}, ErrNotRecognized
		}
		loc := ID(rest)
		loc.Original = s
		return loc, nil
	}

	for _, sh := range shorthands {
		if len(trimmed) < len(sh.prefix) || !strings.EqualFold(trimmed[:len(sh.prefix)], sh.prefix) {
			continue
		}
		value := strings.TrimSpace(trimmed[len(sh.prefix):])
		if isPseudo(value) {
			return Locator{}, ErrNotRecognized
		}
		if value == "" {
			return Locator{}, core.ErrInvalidArgument.
				WithMessage("missing value after").
				At(0, sh.prefix).
				WithInput(s)
		}

		loc := Locator{Kind: sh.kind, Toolkit: sh.tk, Value: value, Original: s}
		if sh.kind == KindIndex {
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 || strings.HasPrefix(value, "+") {
				e := core.ErrInvalidArgument.
					WithMessage("index must be a non-negative integer, got").
					At(len(s)-len(strings.TrimLeft(s, " \t"))+len(sh.prefix), value).
					WithInput(s)
				if err != nil {
					return Locator{}, e.WithCause(err)
				}
				return Locator{}, e
			}
			loc.Value = strconv.Itoa(n)
		}
		return loc, nil
	}
	return Locator{}, ErrNotRecognized
}

// selectorMeta lists the characters that make "#..." a selector rather than
// a bare id.
const selectorMeta = " \t\n>[]:.#,()'\"*/\\"

// isPseudo reports whether v names a pseudo-class, with or without an
// argument list.
func isPseudo(v string) bool {
	name, _, _ := strings.Cut(v, "(")
	_, ok := selector.LookupPseudo(strings.TrimSpace(name))
	return ok
}

// ParseXPath accepts "/..." and "//..." forms. The expression is validated
// with the selector grammar and kept verbatim.
func ParseXPath(s string) (Locator, error) {
	if !selector.IsXPath(s) {
		return Locator{}, ErrNotRecognized
	}
	if _, err := selector.Parse(s); err != nil {
		return Locator{}, err
	}
	loc := XPath(strings.TrimSpace(s))
	loc.Original = s
	return loc, nil
}

// ParseSelector parses the CSS form and lowers it. Selector lists with more
// than one alternative are rejected; use selector.Parse for those.
func ParseSelector(s string) (Locator, error) {
	sel, err := selector.Parse(s)
	if err != nil {
		return Locator{}, err
	}
	return Lower(sel)
}

// Lower converts a single-alternative selector into a Locator. The last step
// becomes the locator itself and earlier steps become Ancestors.
func Lower(sel *selector.Selector) (Locator, error) {
	if len(sel.Alternatives) != 1 {
		return Locator{}, core.ErrUnsupportedForm.
			WithMessage("selector lists cannot be lowered to a single locator, alternatives: " + strconv.Itoa(len(sel.Alternatives))).
			WithInput(sel.Original)
	}
	if sel.XPath {
		loc := XPath(strings.TrimSpace(sel.Original))
		loc.Original = sel.Original
		return loc, nil
	}

	steps := sel.Alternatives[0].Steps
	target := steps[len(steps)-1]

	var loc Locator
	if target.HasType() {
		loc.Kind = KindClass
		loc.Value = target.Type
	} else {
		loc.Kind = KindCSS
	}
	loc.Predicates = lowerPredicates(target)

	for i, st := range steps[:len(steps)-1] {
		scope := Scope{
			Predicates: lowerPredicates(st),
			Combinator: steps[i+1].Combinator,
		}
		if st.HasType() {
			scope.Type = st.Type
		}
		loc.Ancestors = append(loc.Ancestors, scope)
	}

	loc.Original = sel.Original
	return loc, nil
}

func lowerPredicates(st selector.Step) []Predicate {
	var preds []Predicate
	if st.ID != "" {
		preds = append(preds, Attribute{Name: "name", Op: selector.OpEquals, Value: st.ID})
	}
	for _, c := range st.Classes {
		preds = append(preds, Attribute{Name: "class", Op: selector.OpEquals, Value: c})
	}
	for _, a := range st.Attributes {
		preds = append(preds, Attribute(a))
	}
	for _, p := range st.Pseudos {
		preds = append(preds, PseudoClass(p))
	}
	return preds
}
