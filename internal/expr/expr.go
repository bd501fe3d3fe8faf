// Package expr evaluates the arithmetic formulas behind calculated columns
// and calculated dashboard metrics.
//
// Formulas are parsed, never executed: the grammar admits numeric literals,
// [Name] placeholders, + - * / and parentheses, nothing else.
//
//	expr   := term { ("+" | "-") term }
//	term   := factor { ("*" | "/") factor }
//	factor := ("+" | "-") factor | number | "[" name "]" | "(" expr ")"
package expr

import (
	"math"
	"strings"
)

const maxDepth = 128

// Program is a compiled formula.
type Program struct {
	src  string
	root node
	vars []string
}

// Compile parses src, rejecting invalid syntax.
func Compile(src string) (*Program, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	root, err := p.expr(0)
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, &SyntaxError{Pos: t.pos, Msg: "unexpected " + t.text}
	}

	prog := &Program{src: src, root: root}
	seen := map[string]struct{}{}
	for _, t := range toks {
		if t.kind != tokVar {
			continue
		}
		if _, ok := seen[t.text]; !ok {
			seen[t.text] = struct{}{}
			prog.vars = append(prog.vars, t.text)
		}
	}
	return prog, nil
}

// Vars lists the placeholder names referenced by the formula, in order of appearance.
func (p *Program) Vars() []string {
	return append([]string(nil), p.vars...)
}

func (p *Program) String() string { return p.src }

// Eval evaluates the program. Missing variables read 0.
func (p *Program) Eval(vars map[string]float64) (float64, error) {
	v, err := p.root.eval(env(vars))
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrNotFinite
	}
	return v, nil
}

// Evaluate compiles and evaluates src. Every failure (syntax, division by
// zero, non-finite result) yields 0 so a bad formula never blanks a view.
func Evaluate(src string, vars map[string]float64) float64 {
	prog, err := Compile(src)
	if err != nil {
		return 0
	}
	v, err := prog.Eval(vars)
	if err != nil {
		return 0
	}
	return v
}

type env map[string]float64

// lookup prefers the exact name. Otherwise, among names equal under case
// folding, the lexically smallest wins so the result never depends on map
// order.
func (e env) lookup(name string) float64 {
	if v, ok := e[name]; ok {
		return v
	}
	best, found := "", false
	for k := range e {
		if strings.EqualFold(k, name) && (!found || k < best) {
			best, found = k, true
		}
	}
	if !found {
		return 0
	}
	return e[best]
}
