package cli

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/guilocator/pkg/core"
	"github.com/devicelab-dev/guilocator/pkg/locator"
	"github.com/devicelab-dev/guilocator/pkg/selector"
)

var parseCommand = &cli.Command{
	Name:      "parse",
	Usage:     "Parse locators and print their unified form",
	ArgsUsage: "<locator>...",
	Description: `Parse each locator and print its kind, value, predicates and
canonical string. Exits non-zero if any locator fails to parse.

Examples:
  guilocator parse "#submit" "text:Save" "JPanel > JButton:enabled"
  guilocator --json parse "Button[text^='Sa']"`,
	Action: runParse,
}

var astCommand = &cli.Command{
	Name:      "ast",
	Usage:     "Print the selector syntax tree",
	ArgsUsage: "<selector>",
	Description: `Parse a CSS-like or XPath-like selector and print every
alternative, step, attribute and pseudo-class.

Examples:
  guilocator ast "JDialog JPanel > JButton.primary[text*='OK'], JLabel"
  guilocator ast "//JPanel/JButton[@name='ok'][2]"`,
	Action: runAST,
}

var normalizeCommand = &cli.Command{
	Name:      "normalize",
	Usage:     "Resolve locators for a toolkit and print the agent parameters",
	ArgsUsage: "<locator>...",
	Description: `Normalize each locator for the --toolkit global flag (or every
toolkit with --all) and print the parameters sent to the agent.

Examples:
  guilocator -t swt normalize Button "TextField[name='user']"
  guilocator normalize --all "Panel > CheckBox:checked"`,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "all",
			Usage: "Normalize for every toolkit",
		},
	},
	Action: runNormalize,
}

var classesCommand = &cli.Command{
	Name:  "classes",
	Usage: "Print the class-name table in use",
	Description: `Print the canonical, Swing and SWT names of every mapping in
the active class map (built-in, or --class-map).`,
	Action: runClasses,
}

type locatorView struct {
	Input      string     `json:"input" yaml:"input"`
	Kind       string     `json:"kind,omitempty" yaml:"kind,omitempty"`
	Toolkit    string     `json:"toolkit,omitempty" yaml:"toolkit,omitempty"`
	Value      string     `json:"value,omitempty" yaml:"value,omitempty"`
	Predicates []string   `json:"predicates,omitempty" yaml:"predicates,omitempty"`
	Ancestors  []string   `json:"ancestors,omitempty" yaml:"ancestors,omitempty"`
	Canonical  string     `json:"canonical,omitempty" yaml:"canonical,omitempty"`
	Error      *errorView `json:"error,omitempty" yaml:"error,omitempty"`
	Normalized []normView `json:"normalized,omitempty" yaml:"normalized,omitempty"`
	Elements   []elemView `json:"elements,omitempty" yaml:"elements,omitempty"`
	Found      *int       `json:"found,omitempty" yaml:"found,omitempty"`
}

type errorView struct {
	Code     string `json:"code" yaml:"code"`
	Message  string `json:"message" yaml:"message"`
	Position *int   `json:"position,omitempty" yaml:"position,omitempty"`
	Fragment string `json:"fragment,omitempty" yaml:"fragment,omitempty"`
}

type normView struct {
	Toolkit   string         `json:"toolkit" yaml:"toolkit"`
	ClassName string         `json:"className,omitempty" yaml:"className,omitempty"`
	Params    map[string]any `json:"params" yaml:"params"`
}

func newErrorView(err error) *errorView {
	v := &errorView{Code: "error", Message: err.Error()}
	var pe *core.ParseError
	if errors.As(err, &pe) {
		v.Code = pe.Kind.String()
		v.Fragment = pe.Fragment
		if pe.Position != core.NoPosition {
			pos := pe.Position
			v.Position = &pos
		}
	}
	return v
}

func newLocatorView(input string, loc locator.Locator) locatorView {
	v := locatorView{
		Input:     input,
		Kind:      loc.Kind.String(),
		Value:     loc.Value,
		Canonical: loc.String(),
	}
	if loc.Kind == locator.KindToolkitSpecific {
		v.Toolkit = loc.Toolkit.String()
	}
	for _, p := range loc.Predicates {
		v.Predicates = append(v.Predicates, p.String())
	}
	for _, s := range loc.Ancestors {
		v.Ancestors = append(v.Ancestors, scopeString(s))
	}
	return v
}

func scopeString(s locator.Scope) string {
	var b strings.Builder
	if s.Type == "" {
		b.WriteString("*")
	} else {
		b.WriteString(s.Type)
	}
	for _, p := range s.Predicates {
		b.WriteString(p.String())
	}
	b.WriteString(" (")
	b.WriteString(s.Combinator.String())
	b.WriteString(")")
	return b.String()
}

// errFailures is returned when some inputs failed; details are already
// printed.
func errFailures(n int, what string) error {
	return cli.Exit(fmt.Sprintf("%d %s failed", n, what), 1)
}

func runParse(c *cli.Context) error {
	if err := requireArgs(c, "locator"); err != nil {
		return err
	}
	rt, err := newRuntime(c)
	if err != nil {
		return err
	}
	defer rt.close()

	var views []locatorView
	failed := 0
	for _, input := range c.Args().Slice() {
		loc, err := rt.caches.Parse.Parse(input)
		if err != nil {
			failed++
			views = append(views, locatorView{Input: input, Error: newErrorView(err)})
			continue
		}
		views = append(views, newLocatorView(input, loc))
	}

	if rt.structured() {
		if err := rt.emit(views); err != nil {
			return err
		}
	} else {
		for _, v := range views {
			printLocator(rt, v)
		}
	}

	if failed > 0 {
		return errFailures(failed, "locator(s)")
	}
	return nil
}

func printLocator(rt *runtime, v locatorView) {
	if v.Error != nil {
		rt.printf("%s✗ %s%s\n", color(colorRed), v.Input, color(colorReset))
		rt.printf("    %s: %s\n", v.Error.Code, v.Error.Message)
		if v.Error.Position != nil {
			rt.printf("    %s\n    %s^\n", v.Input, strings.Repeat(" ", *v.Error.Position))
		}
		return
	}

	rt.printf("%s✓ %s%s\n", color(colorGreen), v.Input, color(colorReset))
	rt.printf("    kind:       %s\n", v.Kind)
	if v.Toolkit != "" {
		rt.printf("    toolkit:    %s\n", v.Toolkit)
	}
	rt.printf("    value:      %s\n", v.Value)
	for _, a := range v.Ancestors {
		rt.printf("    ancestor:   %s\n", a)
	}
	for _, p := range v.Predicates {
		rt.printf("    predicate:  %s\n", p)
	}
	rt.printf("    canonical:  %s%s%s\n", color(colorCyan), v.Canonical, color(colorReset))
}

type stepView struct {
	Combinator string   `json:"combinator,omitempty" yaml:"combinator,omitempty"`
	Type       string   `json:"type,omitempty" yaml:"type,omitempty"`
	ID         string   `json:"id,omitempty" yaml:"id,omitempty"`
	Classes    []string `json:"classes,omitempty" yaml:"classes,omitempty"`
	Attributes []string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	Pseudos    []string `json:"pseudos,omitempty" yaml:"pseudos,omitempty"`
}

type astView struct {
	Input        string       `json:"input" yaml:"input"`
	XPath        bool         `json:"xpath" yaml:"xpath"`
	Canonical    string       `json:"canonical" yaml:"canonical"`
	Alternatives [][]stepView `json:"alternatives" yaml:"alternatives"`
}

func newASTView(input string, sel *selector.Selector) astView {
	v := astView{Input: input, XPath: sel.XPath, Canonical: sel.String()}
	for _, chain := range sel.Alternatives {
		var steps []stepView
		for i, st := range chain.Steps {
			sv := stepView{Type: st.Type, ID: st.ID, Classes: st.Classes}
			if i > 0 {
				sv.Combinator = st.Combinator.String()
			}
			for _, a := range st.Attributes {
				sv.Attributes = append(sv.Attributes, a.String())
			}
			for _, p := range st.Pseudos {
				sv.Pseudos = append(sv.Pseudos, p.String())
			}
			steps = append(steps, sv)
		}
		v.Alternatives = append(v.Alternatives, steps)
	}
	return v
}

func runAST(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("exactly one selector is required")
	}
	rt, err := newRuntime(c)
	if err != nil {
		return err
	}
	defer rt.close()

	input := c.Args().First()
	sel, err := selector.Parse(input)
	if err != nil {
		if rt.structured() {
			if eerr := rt.emit(locatorView{Input: input, Error: newErrorView(err)}); eerr != nil {
				return eerr
			}
		} else {
			printLocator(rt, locatorView{Input: input, Error: newErrorView(err)})
		}
		return errFailures(1, "selector")
	}

	v := newASTView(input, sel)
	if rt.structured() {
		return rt.emit(v)
	}

	form := "css"
	if v.XPath {
		form = "xpath"
	}
	rt.printf("%s%s%s (%s)\n", color(colorBold), v.Canonical, color(colorReset), form)
	for i, alt := range v.Alternatives {
		rt.printf("  alternative %d\n", i+1)
		for _, st := range alt {
			if st.Combinator != "" {
				rt.printf("    %s%s%s\n", color(colorDim), st.Combinator, color(colorReset))
			}
			typ := st.Type
			if typ == "" {
				typ = "*"
			}
			rt.printf("    step %s", typ)
			if st.ID != "" {
				rt.printf(" id=%s", st.ID)
			}
			if len(st.Classes) > 0 {
				rt.printf(" classes=%s", strings.Join(st.Classes, ","))
			}
			rt.printf("\n")
			for _, a := range st.Attributes {
				rt.printf("      attr   %s\n", a)
			}
			for _, p := range st.Pseudos {
				rt.printf("      pseudo %s\n", p)
			}
		}
	}
	return nil
}

func runNormalize(c *cli.Context) error {
	if err := requireArgs(c, "locator"); err != nil {
		return err
	}
	rt, err := newRuntime(c)
	if err != nil {
		return err
	}
	defer rt.close()

	toolkits := []core.Toolkit{rt.toolkit}
	if c.Bool("all") {
		toolkits = core.Toolkits
	}

	var views []locatorView
	failed := 0
	for _, input := range c.Args().Slice() {
		loc, err := rt.caches.Parse.Parse(input)
		if err != nil {
			failed++
			views = append(views, locatorView{Input: input, Error: newErrorView(err)})
			continue
		}
		v := newLocatorView(input, loc)
		for _, tk := range toolkits {
			n := rt.caches.Normalize.Normalize(loc, tk)
			v.Normalized = append(v.Normalized, normView{
				Toolkit:   n.Toolkit.String(),
				ClassName: n.ClassName,
				Params:    n.Params,
			})
		}
		views = append(views, v)
	}

	if rt.structured() {
		if err := rt.emit(views); err != nil {
			return err
		}
	} else {
		for _, v := range views {
			if v.Error != nil {
				printLocator(rt, v)
				continue
			}
			rt.printf("%s%s%s\n", color(colorBold), v.Input, color(colorReset))
			for _, n := range v.Normalized {
				rt.printf("  %-6s", n.Toolkit)
				if n.ClassName != "" {
					rt.printf(" class=%s", n.ClassName)
				}
				rt.printf(" %s\n", formatParams(n.Params))
			}
		}
	}

	if failed > 0 {
		return errFailures(failed, "locator(s)")
	}
	return nil
}

// formatParams renders params on one line with sorted keys.
func formatParams(params map[string]any) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, params[k]))
	}
	return strings.Join(parts, " ")
}

type classView struct {
	Canonical string `json:"canonical" yaml:"canonical"`
	Swing     string `json:"swing,omitempty" yaml:"swing,omitempty"`
	SWT       string `json:"swt,omitempty" yaml:"swt,omitempty"`
}

func runClasses(c *cli.Context) error {
	rt, err := newRuntime(c)
	if err != nil {
		return err
	}
	defer rt.close()

	var views []classView
	for _, m := range rt.caches.Normalize.ClassMap().Mappings() {
		views = append(views, classView{Canonical: m.Canonical, Swing: m.Swing, SWT: m.SWT})
	}

	if rt.structured() {
		return rt.emit(views)
	}
	rt.printf("  %-20s %-24s %s\n", "Canonical", "Swing", "SWT")
	rt.printf("  %s\n", strings.Repeat("─", 64))
	for _, v := range views {
		rt.printf("  %-20s %-24s %s\n", v.Canonical, v.Swing, v.SWT)
	}
	return nil
}
