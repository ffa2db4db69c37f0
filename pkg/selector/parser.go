package selector

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/devicelab-dev/guilocator/pkg/core"
)

// Parse parses a selector expression. Input starting with '/' is read as the
// XPath form; anything else as a CSS selector list.
func Parse(input string) (*Selector, error) {
	if strings.TrimSpace(input) == "" {
		return nil, core.ErrEmpty.WithInput(input)
	}

	p := &parser{src: input}
	p.skipSpace()

	sel := &Selector{Original: input}
	if p.peek() == '/' {
		chain, err := p.parseXPath()
		if err != nil {
			return nil, err
		}
		sel.Alternatives = []Chain{chain}
		sel.XPath = true
		return sel, nil
	}

	alts, err := p.parseList()
	if err != nil {
		return nil, err
	}
	sel.Alternatives = alts
	return sel, nil
}

// IsXPath reports whether input would be parsed as the XPath form.
func IsXPath(input string) bool {
	return strings.HasPrefix(strings.TrimSpace(input), "/")
}

type parser struct {
	src string
	pos int
}

func (p *parser) eof() bool {
	return p.pos >= len(p.src)
}

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) hasPrefix(s string) bool {
	return strings.HasPrefix(p.src[p.pos:], s)
}

// skipSpace advances over whitespace and returns how much was skipped.
func (p *parser) skipSpace() int {
	start := p.pos
	for !p.eof() && isSpace(p.src[p.pos]) {
		p.pos++
	}
	return p.pos - start
}

func (p *parser) ident() string {
	start := p.pos
	for !p.eof() && isIdentChar(p.src[p.pos]) {
		p.pos++
	}
	return p.src[start:p.pos]
}

// typeName reads a type name. A backslash escapes the next byte, so
// qualified names can be written as org\.eclipse\.swt\.widgets\.Button.
func (p *parser) typeName() (string, error) {
	var b strings.Builder
	for !p.eof() {
		c := p.src[p.pos]
		switch {
		case c == '\\':
			if p.pos+1 >= len(p.src) {
				return "", p.errorf(core.ErrSyntax, p.pos, "\\", "dangling escape")
			}
			b.WriteByte(p.src[p.pos+1])
			p.pos += 2
		case isIdentChar(c):
			b.WriteByte(c)
			p.pos++
		default:
			return b.String(), nil
		}
	}
	return b.String(), nil
}

// fragmentAt returns the character at pos, for error reporting.
func (p *parser) fragmentAt(pos int) string {
	if pos >= len(p.src) {
		return ""
	}
	r, size := utf8.DecodeRuneInString(p.src[pos:])
	if r == utf8.RuneError {
		return p.src[pos : pos+size]
	}
	return string(r)
}

func (p *parser) errorf(base *core.ParseError, pos int, fragment, format string, args ...interface{}) *core.ParseError {
	return base.WithMessage(fmt.Sprintf(format, args...)).At(pos, fragment).WithInput(p.src)
}

func (p *parser) unexpected(pos int) *core.ParseError {
	if pos >= len(p.src) {
		return p.errorf(core.ErrSyntax, pos, "", "unexpected end of input")
	}
	return p.errorf(core.ErrSyntax, pos, p.fragmentAt(pos), "unexpected character")
}

func (p *parser) parseList() ([]Chain, error) {
	var alts []Chain
	for {
		chain, err := p.parseChain()
		if err != nil {
			return nil, err
		}
		alts = append(alts, chain)

		p.skipSpace()
		if p.eof() {
			return alts, nil
		}
		if p.peek() != ',' {
			return nil, p.unexpected(p.pos)
		}
		comma := p.pos
		p.pos++
		p.skipSpace()
		if p.eof() {
			return nil, p.errorf(core.ErrSyntax, comma, ",", "expected selector after")
		}
	}
}

func (p *parser) parseChain() (Chain, error) {
	first, err := p.parseStep()
	if err != nil {
		return Chain{}, err
	}
	steps := []Step{first}

	for {
		skipped := p.skipSpace()
		if p.eof() || p.peek() == ',' {
			return Chain{Steps: steps}, nil
		}

		comb := Descendant
		if p.peek() == '>' {
			gt := p.pos
			p.pos++
			p.skipSpace()
			if p.eof() || p.peek() == ',' {
				return Chain{}, p.errorf(core.ErrSyntax, gt, ">", "expected selector after")
			}
			comb = Child
		} else if skipped == 0 {
			return Chain{}, p.unexpected(p.pos)
		}

		step, err := p.parseStep()
		if err != nil {
			return Chain{}, err
		}
		step.Combinator = comb
		steps = append(steps, step)
	}
}

func (p *parser) parseStep() (Step, error) {
	start := p.pos
	var st Step

	switch c := p.peek(); {
	case c == '*':
		st.Type = "*"
		p.pos++
	case isIdentStart(c) || c == '\\':
		name, err := p.typeName()
		if err != nil {
			return Step{}, err
		}
		st.Type = name
	}

	for !p.eof() {
		switch p.peek() {
		case '#':
			hash := p.pos
			p.pos++
			if !isIdentStart(p.peek()) {
				return Step{}, p.errorf(core.ErrSyntax, p.pos, p.fragmentAt(p.pos), "expected identifier after '#'")
			}
			id := p.ident()
			if st.ID != "" {
				return Step{}, p.errorf(core.ErrSyntax, hash, "#"+id, "duplicate id selector")
			}
			st.ID = id
		case '.':
			p.pos++
			if !isIdentStart(p.peek()) {
				return Step{}, p.errorf(core.ErrSyntax, p.pos, p.fragmentAt(p.pos), "expected identifier after '.'")
			}
			st.Classes = append(st.Classes, p.ident())
		case '[':
			attr, err := p.parseAttribute()
			if err != nil {
				return Step{}, err
			}
			st.Attributes = append(st.Attributes, attr)
		case ':':
			ps, err := p.parsePseudo()
			if err != nil {
				return Step{}, err
			}
			st.Pseudos = append(st.Pseudos, ps)
		default:
			if p.pos == start {
				return Step{}, p.unexpected(p.pos)
			}
			return st, nil
		}
	}

	if p.pos == start {
		return Step{}, p.unexpected(p.pos)
	}
	return st, nil
}

func (p *parser) parseAttribute() (Attribute, error) {
	open := p.pos
	p.pos++
	p.skipSpace()

	if p.eof() {
		return Attribute{}, p.unclosed(open, '[')
	}
	if !isIdentStart(p.peek()) {
		return Attribute{}, p.errorf(core.ErrSyntax, p.pos, p.fragmentAt(p.pos), "expected attribute name")
	}
	name := p.ident()
	p.skipSpace()

	op, ok := p.matchOp()
	if !ok {
		if p.eof() {
			return Attribute{}, p.unclosed(open, '[')
		}
		return Attribute{}, p.errorf(core.ErrSyntax, p.pos, p.fragmentAt(p.pos), "expected operator (=, *=, ^=, $=, !=)")
	}
	p.skipSpace()

	value, err := p.value(']', open, '[')
	if err != nil {
		return Attribute{}, err
	}
	if err := p.expectClose(']', open, '['); err != nil {
		return Attribute{}, err
	}
	return Attribute{Name: name, Op: op, Value: value}, nil
}

func (p *parser) matchOp() (MatchOp, bool) {
	ops := []struct {
		text string
		op   MatchOp
	}{
		{"*=", OpContains},
		{"^=", OpStartsWith},
		{"$=", OpEndsWith},
		{"!=", OpNotEquals},
		{"=", OpEquals},
	}
	for _, o := range ops {
		if p.hasPrefix(o.text) {
			p.pos += len(o.text)
			return o.op, true
		}
	}
	return 0, false
}

// value reads a quoted string or a bare word ending at whitespace or term.
func (p *parser) value(term byte, open int, opener byte) (string, error) {
	if p.eof() {
		return "", p.unclosed(open, opener)
	}

	if q := p.peek(); q == '\'' || q == '"' {
		start := p.pos
		p.pos++
		var b strings.Builder
		for {
			if p.eof() {
				return "", p.errorf(core.ErrSyntax, start, p.src[start:], "unterminated string")
			}
			c := p.src[p.pos]
			switch {
			case c == '\\' && p.pos+1 < len(p.src):
				b.WriteByte(p.src[p.pos+1])
				p.pos += 2
			case c == q:
				p.pos++
				return b.String(), nil
			default:
				b.WriteByte(c)
				p.pos++
			}
		}
	}

	start := p.pos
	for !p.eof() && p.peek() != term && !isSpace(p.peek()) {
		p.pos++
	}
	if p.pos == start {
		return "", p.errorf(core.ErrSyntax, p.pos, p.fragmentAt(p.pos), "expected value")
	}
	return p.src[start:p.pos], nil
}

func (p *parser) expectClose(closer byte, open int, opener byte) error {
	p.skipSpace()
	if p.eof() {
		return p.unclosed(open, opener)
	}
	if p.peek() != closer {
		return p.errorf(core.ErrSyntax, p.pos, p.fragmentAt(p.pos), "expected '%c'", closer)
	}
	p.pos++
	return nil
}

func (p *parser) unclosed(open int, opener byte) *core.ParseError {
	return p.errorf(core.ErrSyntax, open, p.src[open:], "unclosed '%c'", opener)
}

func (p *parser) parsePseudo() (PseudoClass, error) {
	colon := p.pos
	p.pos++
	if !isIdentStart(p.peek()) {
		return PseudoClass{}, p.errorf(core.ErrSyntax, p.pos, p.fragmentAt(p.pos), "expected pseudo-class name after ':'")
	}
	name := p.ident()

	kind, ok := LookupPseudo(name)
	if !ok {
		return PseudoClass{}, core.UnknownPseudoError(name, colon).WithInput(p.src)
	}
	ps := PseudoClass{Kind: kind}

	if p.peek() != '(' {
		if kind.Functional() {
			return PseudoClass{}, p.errorf(core.ErrInvalidArgument, colon, ":"+name, "missing argument for")
		}
		return ps, nil
	}

	open := p.pos
	end := strings.IndexByte(p.src[open:], ')')
	if end < 0 {
		return PseudoClass{}, p.unclosed(open, '(')
	}
	arg := strings.TrimSpace(p.src[open+1 : open+end])
	p.pos = open + end + 1

	if !kind.Functional() {
		return PseudoClass{}, p.errorf(core.ErrInvalidArgument, colon, p.src[colon:p.pos], "pseudo-class takes no argument")
	}
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 {
		e := p.errorf(core.ErrInvalidArgument, open+1, arg, ":%s index must be an integer >= 1", kind)
		if err != nil {
			return PseudoClass{}, e.WithCause(err)
		}
		return PseudoClass{}, e
	}
	ps.N = n
	return ps, nil
}

func (p *parser) parseXPath() (Chain, error) {
	var steps []Step
	for {
		var comb Combinator
		switch {
		case p.hasPrefix("//"):
			comb = Descendant
			p.pos += 2
		case p.hasPrefix("/"):
			comb = Child
			p.pos++
		default:
			p.skipSpace()
			if !p.eof() {
				return Chain{}, p.unexpected(p.pos)
			}
			return Chain{Steps: steps}, nil
		}

		step, err := p.parseXStep()
		if err != nil {
			return Chain{}, err
		}
		step.Combinator = comb
		steps = append(steps, step)
	}
}

func (p *parser) parseXStep() (Step, error) {
	var st Step
	switch c := p.peek(); {
	case c == '*':
		st.Type = "*"
		p.pos++
	case isIdentStart(c):
		st.Type = p.ident()
	default:
		if p.eof() {
			return Step{}, p.errorf(core.ErrSyntax, p.pos, "", "expected element name after '/'")
		}
		return Step{}, p.errorf(core.ErrSyntax, p.pos, p.fragmentAt(p.pos), "expected element name after '/'")
	}

	for p.peek() == '[' {
		open := p.pos
		p.pos++
		for {
			p.skipSpace()
			if err := p.parseXPredicate(&st, open); err != nil {
				return Step{}, err
			}
			p.skipSpace()
			if p.hasPrefix("and") && !isIdentChar(p.byteAt(p.pos+3)) {
				p.pos += 3
				continue
			}
			break
		}
		if err := p.expectClose(']', open, '['); err != nil {
			return Step{}, err
		}
	}
	return st, nil
}

func (p *parser) byteAt(i int) byte {
	if i >= len(p.src) {
		return 0
	}
	return p.src[i]
}

var xpathFuncs = map[string]MatchOp{
	"contains":    OpContains,
	"starts-with": OpStartsWith,
	"ends-with":   OpEndsWith,
}

func (p *parser) parseXPredicate(st *Step, open int) error {
	c := p.peek()
	switch {
	case p.eof():
		return p.unclosed(open, '[')

	case isDigit(c):
		start := p.pos
		for isDigit(p.peek()) {
			p.pos++
		}
		n, err := strconv.Atoi(p.src[start:p.pos])
		if err != nil || n < 1 {
			e := p.errorf(core.ErrInvalidArgument, start, p.src[start:p.pos], "position must be an integer >= 1")
			if err != nil {
				return e.WithCause(err)
			}
			return e
		}
		st.Pseudos = append(st.Pseudos, PseudoClass{Kind: PseudoNthChild, N: n})
		return nil

	case c == '@' || p.hasPrefix("text()"):
		name, err := p.xpathOperand()
		if err != nil {
			return err
		}
		p.skipSpace()
		var op MatchOp
		switch {
		case p.hasPrefix("!="):
			op = OpNotEquals
			p.pos += 2
		case p.hasPrefix("="):
			op = OpEquals
			p.pos++
		default:
			if p.eof() {
				return p.unclosed(open, '[')
			}
			return p.errorf(core.ErrSyntax, p.pos, p.fragmentAt(p.pos), "expected '=' or '!='")
		}
		p.skipSpace()
		value, err := p.value(']', open, '[')
		if err != nil {
			return err
		}
		st.Attributes = append(st.Attributes, Attribute{Name: name, Op: op, Value: value})
		return nil

	case isIdentStart(c):
		fnPos := p.pos
		fn := p.ident()
		op, ok := xpathFuncs[fn]
		if !ok {
			return p.errorf(core.ErrSyntax, fnPos, fn, "unsupported XPath function")
		}
		p.skipSpace()
		if p.peek() != '(' {
			return p.errorf(core.ErrSyntax, p.pos, p.fragmentAt(p.pos), "expected '(' after %s", fn)
		}
		paren := p.pos
		p.pos++
		p.skipSpace()
		name, err := p.xpathOperand()
		if err != nil {
			return err
		}
		p.skipSpace()
		if p.peek() != ',' {
			if p.eof() {
				return p.unclosed(paren, '(')
			}
			return p.errorf(core.ErrSyntax, p.pos, p.fragmentAt(p.pos), "expected ','")
		}
		p.pos++
		p.skipSpace()
		value, err := p.value(')', paren, '(')
		if err != nil {
			return err
		}
		if err := p.expectClose(')', paren, '('); err != nil {
			return err
		}
		st.Attributes = append(st.Attributes, Attribute{Name: name, Op: op, Value: value})
		return nil

	default:
		return p.errorf(core.ErrSyntax, p.pos, p.fragmentAt(p.pos), "unexpected character in predicate")
	}
}

// xpathOperand reads "@name" or "text()" and returns the attribute name.
func (p *parser) xpathOperand() (string, error) {
	if p.hasPrefix("text()") {
		p.pos += len("text()")
		return "text", nil
	}
	if p.peek() != '@' {
		if p.eof() {
			return "", p.unexpected(p.pos)
		}
		return "", p.errorf(core.ErrSyntax, p.pos, p.fragmentAt(p.pos), "expected '@attribute' or 'text()'")
	}
	p.pos++
	if !isIdentStart(p.peek()) {
		return "", p.errorf(core.ErrSyntax, p.pos, p.fragmentAt(p.pos), "expected attribute name after '@'")
	}
	return p.ident(), nil
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || isDigit(c) || c == '-'
}
