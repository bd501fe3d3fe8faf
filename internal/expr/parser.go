package expr

type node interface {
	eval(e env) (float64, error)
}

type numberNode float64

func (n numberNode) eval(env) (float64, error) { return float64(n), nil }

type varNode string

func (n varNode) eval(e env) (float64, error) { return e.lookup(string(n)), nil }

type unaryNode struct {
	neg bool
	x   node
}

func (n unaryNode) eval(e env) (float64, error) {
	v, err := n.x.eval(e)
	if err != nil {
		return 0, err
	}
	if n.neg {
		return -v, nil
	}
	return v, nil
}

type binaryNode struct {
	op   tokenKind
	l, r node
}

func (n binaryNode) eval(e env) (float64, error) {
	l, err := n.l.eval(e)
	if err != nil {
		return 0, err
	}
	r, err := n.r.eval(e)
	if err != nil {
		return 0, err
	}
	switch n.op {
	case tokPlus:
		return l + r, nil
	case tokMinus:
		return l - r, nil
	case tokStar:
		return l * r, nil
	default:
		if r == 0 {
			return 0, ErrDivisionByZero
		}
		return l / r, nil
	}
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) expr(depth int) (node, error) {
	if depth > maxDepth {
		return nil, &SyntaxError{Pos: p.peek().pos, Msg: "nesting too deep"}
	}
	left, err := p.term(depth)
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokPlus && t.kind != tokMinus {
			return left, nil
		}
		p.next()
		right, err := p.term(depth)
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: t.kind, l: left, r: right}
	}
}

func (p *parser) term(depth int) (node, error) {
	left, err := p.factor(depth)
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokStar && t.kind != tokSlash {
			return left, nil
		}
		p.next()
		right, err := p.factor(depth)
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: t.kind, l: left, r: right}
	}
}

func (p *parser) factor(depth int) (node, error) {
	if depth > maxDepth {
		return nil, &SyntaxError{Pos: p.peek().pos, Msg: "nesting too deep"}
	}
	t := p.next()
	switch t.kind {
	case tokNumber:
		return numberNode(t.num), nil
	case tokVar:
		return varNode(t.text), nil
	case tokPlus, tokMinus:
		x, err := p.factor(depth + 1)
		if err != nil {
			return nil, err
		}
		return unaryNode{neg: t.kind == tokMinus, x: x}, nil
	case tokLParen:
		x, err := p.expr(depth + 1)
		if err != nil {
			return nil, err
		}
		if c := p.next(); c.kind != tokRParen {
			return nil, &SyntaxError{Pos: c.pos, Msg: "missing )"}
		}
		return x, nil
	case tokEOF:
		return nil, &SyntaxError{Pos: t.pos, Msg: "unexpected end of formula"}
	default:
		return nil, &SyntaxError{Pos: t.pos, Msg: "unexpected " + t.text}
	}
}
