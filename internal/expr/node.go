// Package expr models control laws as symbolic expression trees and
// compiles them into numeric functions of the system state.
//
// The node set is closed: binary operators, unary operators, variable
// references, free-constant references and numeric literals. Symbols are
// resolved against the ordered declarations carried by a Tree, never
// globally.
package expr

import (
	"fmt"
	"math"
	"strconv"
)

// BinaryOp enumerates the two-operand primitives.
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
)

func (op BinaryOp) String() string {
	switch op {
	case OpAdd:
		return "add"
	case OpSub:
		return "sub"
	case OpMul:
		return "mul"
	case OpDiv:
		return "div"
	default:
		return fmt.Sprintf("binary(%d)", int(op))
	}
}

// UnaryOp enumerates the single-operand primitives.
type UnaryOp int

const (
	OpNeg UnaryOp = iota
	OpSin
	OpCos
	OpExp
	OpLog
	OpSqrt
	OpAbs
)

func (op UnaryOp) String() string {
	switch op {
	case OpNeg:
		return "neg"
	case OpSin:
		return "sin"
	case OpCos:
		return "cos"
	case OpExp:
		return "exp"
	case OpLog:
		return "log"
	case OpSqrt:
		return "sqrt"
	case OpAbs:
		return "abs"
	default:
		return fmt.Sprintf("unary(%d)", int(op))
	}
}

// evalFunc is the compiled form of a node: a pure function of the state
// vector and the bound constant vector.
type evalFunc func(state, consts []float64) float64

// Node is one vertex of an expression tree. The set of implementations is
// fixed; bind is unexported to keep it closed.
type Node interface {
	// NodeCount reports the number of nodes in the subtree rooted here.
	NodeCount() int
	// String renders the canonical prefix form, e.g. add(y_0, neg(y_0)).
	String() string
	// Clone deep-copies the subtree.
	Clone() Node

	bind(b *binder) (evalFunc, error)
}

// Binary applies a two-operand primitive.
type Binary struct {
	Op    BinaryOp
	Left  Node
	Right Node
}

func (n *Binary) NodeCount() int { return 1 + n.Left.NodeCount() + n.Right.NodeCount() }

func (n *Binary) String() string {
	return fmt.Sprintf("%s(%s, %s)", n.Op, n.Left, n.Right)
}

func (n *Binary) Clone() Node {
	return &Binary{Op: n.Op, Left: n.Left.Clone(), Right: n.Right.Clone()}
}

func (n *Binary) bind(b *binder) (evalFunc, error) {
	left, err := n.Left.bind(b)
	if err != nil {
		return nil, err
	}
	right, err := n.Right.bind(b)
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case OpAdd:
		return func(state, consts []float64) float64 {
			return left(state, consts) + right(state, consts)
		}, nil
	case OpSub:
		return func(state, consts []float64) float64 {
			return left(state, consts) - right(state, consts)
		}, nil
	case OpMul:
		return func(state, consts []float64) float64 {
			return left(state, consts) * right(state, consts)
		}, nil
	case OpDiv:
		return func(state, consts []float64) float64 {
			return left(state, consts) / right(state, consts)
		}, nil
	default:
		return nil, fmt.Errorf("unsupported binary operator: %s", n.Op)
	}
}

// Unary applies a single-operand primitive.
type Unary struct {
	Op      UnaryOp
	Operand Node
}

func (n *Unary) NodeCount() int { return 1 + n.Operand.NodeCount() }

func (n *Unary) String() string {
	return fmt.Sprintf("%s(%s)", n.Op, n.Operand)
}

func (n *Unary) Clone() Node {
	return &Unary{Op: n.Op, Operand: n.Operand.Clone()}
}

func (n *Unary) bind(b *binder) (evalFunc, error) {
	operand, err := n.Operand.bind(b)
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case OpNeg:
		return func(state, consts []float64) float64 {
			return -operand(state, consts)
		}, nil
	case OpSin:
		return func(state, consts []float64) float64 {
			return math.Sin(operand(state, consts))
		}, nil
	case OpCos:
		return func(state, consts []float64) float64 {
			return math.Cos(operand(state, consts))
		}, nil
	case OpExp:
		return func(state, consts []float64) float64 {
			return math.Exp(operand(state, consts))
		}, nil
	case OpLog:
		return func(state, consts []float64) float64 {
			return math.Log(operand(state, consts))
		}, nil
	case OpSqrt:
		return func(state, consts []float64) float64 {
			return math.Sqrt(operand(state, consts))
		}, nil
	case OpAbs:
		return func(state, consts []float64) float64 {
			return math.Abs(operand(state, consts))
		}, nil
	default:
		return nil, fmt.Errorf("unsupported unary operator: %s", n.Op)
	}
}

// Variable references a declared input variable by name, bound by position
// to the state vector.
type Variable struct {
	Name string
}

func (n *Variable) NodeCount() int { return 1 }

func (n *Variable) String() string { return n.Name }

func (n *Variable) Clone() Node { return &Variable{Name: n.Name} }

func (n *Variable) bind(b *binder) (evalFunc, error) {
	idx, ok := b.vars[n.Name]
	if !ok {
		return nil, fmt.Errorf("variable %q: %w", n.Name, ErrUnknownSymbol)
	}
	return func(state, _ []float64) float64 {
		return state[idx]
	}, nil
}

// Constant references a declared free constant by name, bound by position
// to the constant vector supplied at compile time.
type Constant struct {
	Name string
}

func (n *Constant) NodeCount() int { return 1 }

func (n *Constant) String() string { return n.Name }

func (n *Constant) Clone() Node { return &Constant{Name: n.Name} }

func (n *Constant) bind(b *binder) (evalFunc, error) {
	idx, ok := b.consts[n.Name]
	if !ok {
		return nil, fmt.Errorf("constant %q: %w", n.Name, ErrUnknownSymbol)
	}
	return func(_, consts []float64) float64 {
		return consts[idx]
	}, nil
}

// Literal is a fixed numeric value.
type Literal struct {
	Value float64
}

func (n *Literal) NodeCount() int { return 1 }

func (n *Literal) String() string {
	return strconv.FormatFloat(n.Value, 'g', -1, 64)
}

func (n *Literal) Clone() Node { return &Literal{Value: n.Value} }

func (n *Literal) bind(_ *binder) (evalFunc, error) {
	v := n.Value
	return func(_, _ []float64) float64 {
		return v
	}, nil
}

// binder resolves symbol names to positions in the state and constant
// vectors during compilation.
type binder struct {
	vars   map[string]int
	consts map[string]int
}
