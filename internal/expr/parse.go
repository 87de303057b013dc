package expr

import (
	"fmt"
	"strconv"
)

var binaryOps = map[string]BinaryOp{
	"add": OpAdd,
	"sub": OpSub,
	"mul": OpMul,
	"div": OpDiv,
}

var unaryOps = map[string]UnaryOp{
	"neg":  OpNeg,
	"sin":  OpSin,
	"cos":  OpCos,
	"exp":  OpExp,
	"log":  OpLog,
	"sqrt": OpSqrt,
	"abs":  OpAbs,
}

// Parse reads the prefix form produced by Node.String, e.g.
// "add(y_0, neg(y_0))" or "mul(c, y_1)". Bare identifiers must be declared
// in vars or consts; numeric literals may carry a leading minus. The
// resulting tree declares exactly the given symbol lists.
func Parse(src string, vars, consts []string) (*Tree, error) {
	varSet := make(map[string]struct{}, len(vars))
	for _, name := range vars {
		varSet[name] = struct{}{}
	}
	constSet := make(map[string]struct{}, len(consts))
	for _, name := range consts {
		constSet[name] = struct{}{}
	}

	root, err := parseWith(src, func(name string) (Node, error) {
		if _, ok := varSet[name]; ok {
			return &Variable{Name: name}, nil
		}
		if _, ok := constSet[name]; ok {
			return &Constant{Name: name}, nil
		}
		return nil, fmt.Errorf("identifier %q: %w", name, ErrUnknownSymbol)
	})
	if err != nil {
		return nil, err
	}
	return NewTree(root, vars, consts)
}

// ParseAuto reads the same form as Parse but infers the free-constant
// declaration: every identifier outside vars becomes a constant, ordered by
// first appearance. Convenient for command-line input where spelling out
// the declaration would be redundant.
func ParseAuto(src string, vars []string) (*Tree, error) {
	varSet := make(map[string]struct{}, len(vars))
	for _, name := range vars {
		varSet[name] = struct{}{}
	}
	var inferred []string
	seen := make(map[string]struct{})

	root, err := parseWith(src, func(name string) (Node, error) {
		if _, ok := varSet[name]; ok {
			return &Variable{Name: name}, nil
		}
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			inferred = append(inferred, name)
		}
		return &Constant{Name: name}, nil
	})
	if err != nil {
		return nil, err
	}
	return NewTree(root, vars, inferred)
}

type resolver func(name string) (Node, error)

func parseWith(src string, resolve resolver) (Node, error) {
	p := &parser{src: src, resolve: resolve}
	node, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, fmt.Errorf("unexpected trailing input at offset %d", p.pos)
	}
	return node, nil
}

type parser struct {
	src     string
	pos     int
	resolve resolver
}

func (p *parser) parseExpr() (Node, error) {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return nil, fmt.Errorf("unexpected end of expression at offset %d", p.pos)
	}

	ch := p.src[p.pos]
	switch {
	case ch == '-' || ch == '.' || (ch >= '0' && ch <= '9'):
		return p.parseNumber()
	case isIdentStart(ch):
		return p.parseIdent()
	default:
		return nil, fmt.Errorf("unexpected character %q at offset %d", ch, p.pos)
	}
}

func (p *parser) parseIdent() (Node, error) {
	start := p.pos
	for p.pos < len(p.src) && isIdentPart(p.src[p.pos]) {
		p.pos++
	}
	name := p.src[start:p.pos]

	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == '(' {
		return p.parseCall(name, start)
	}
	return p.resolve(name)
}

func (p *parser) parseCall(name string, offset int) (Node, error) {
	args, err := p.parseArgs()
	if err != nil {
		return nil, err
	}

	if op, ok := binaryOps[name]; ok {
		if len(args) != 2 {
			return nil, fmt.Errorf("operator %s expects 2 arguments, got %d", name, len(args))
		}
		return &Binary{Op: op, Left: args[0], Right: args[1]}, nil
	}
	if op, ok := unaryOps[name]; ok {
		if len(args) != 1 {
			return nil, fmt.Errorf("operator %s expects 1 argument, got %d", name, len(args))
		}
		return &Unary{Op: op, Operand: args[0]}, nil
	}
	return nil, fmt.Errorf("unknown operator %q at offset %d", name, offset)
}

func (p *parser) parseArgs() ([]Node, error) {
	// Caller verified the opening parenthesis.
	p.pos++

	var args []Node
	for {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)

		p.skipSpace()
		if p.pos >= len(p.src) {
			return nil, fmt.Errorf("unterminated argument list at offset %d", p.pos)
		}
		switch p.src[p.pos] {
		case ',':
			p.pos++
		case ')':
			p.pos++
			return args, nil
		default:
			return nil, fmt.Errorf("expected ',' or ')' at offset %d, got %q", p.pos, p.src[p.pos])
		}
	}
}

func (p *parser) parseNumber() (Node, error) {
	start := p.pos
	if p.src[p.pos] == '-' {
		p.pos++
	}
	for p.pos < len(p.src) && isNumberPart(p.src[p.pos], p.pos > start && isExponent(p.src[p.pos-1])) {
		p.pos++
	}
	text := p.src[start:p.pos]
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q at offset %d", text, start)
	}
	return &Literal{Value: v}, nil
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || (ch >= '0' && ch <= '9')
}

func isNumberPart(ch byte, afterExponent bool) bool {
	switch {
	case ch >= '0' && ch <= '9', ch == '.':
		return true
	case isExponent(ch):
		return true
	case (ch == '+' || ch == '-') && afterExponent:
		return true
	default:
		return false
	}
}

func isExponent(ch byte) bool {
	return ch == 'e' || ch == 'E'
}
