package expr

import (
	"errors"
	"fmt"
)

var (
	// ErrArityMismatch reports a constant vector whose length differs from
	// the tree's declared free-constant count.
	ErrArityMismatch = errors.New("constant vector length does not match declared free constants")

	// ErrUnknownSymbol reports a node referencing a variable or constant
	// outside the tree's declared symbol set.
	ErrUnknownSymbol = errors.New("undeclared symbol")
)

// Phenotype is the numeric form of an expression tree with its free
// constants bound: a pure function of the state vector. The state must
// cover every declared variable position.
type Phenotype func(state []float64) float64

// Tree is an expression with fixed ordered symbol declarations. The shape
// is immutable once constructed; evaluation state (fitness, optimized
// constants) lives on the candidate record owned by the caller, never here.
type Tree struct {
	root   Node
	vars   []string
	consts []string
}

// NewTree validates the declarations and the root's symbol references.
// Declarations must be non-empty names, unique across both lists. Any
// referenced symbol outside the declared set yields ErrUnknownSymbol.
func NewTree(root Node, vars, consts []string) (*Tree, error) {
	if root == nil {
		return nil, errors.New("expression root is required")
	}
	seen := make(map[string]struct{}, len(vars)+len(consts))
	for _, name := range vars {
		if name == "" {
			return nil, errors.New("variable names must not be empty")
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("duplicate symbol declaration: %s", name)
		}
		seen[name] = struct{}{}
	}
	for _, name := range consts {
		if name == "" {
			return nil, errors.New("constant names must not be empty")
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("duplicate symbol declaration: %s", name)
		}
		seen[name] = struct{}{}
	}

	t := &Tree{
		root:   root,
		vars:   append([]string(nil), vars...),
		consts: append([]string(nil), consts...),
	}
	if _, err := root.bind(t.binder()); err != nil {
		return nil, err
	}
	return t, nil
}

// Vars returns the ordered input-variable declarations.
func (t *Tree) Vars() []string {
	return append([]string(nil), t.vars...)
}

// Consts returns the ordered free-constant declarations.
func (t *Tree) Consts() []string {
	return append([]string(nil), t.consts...)
}

// NodeCount reports the tree size used as the parsimony component of the
// fitness tuple.
func (t *Tree) NodeCount() int {
	return t.root.NodeCount()
}

func (t *Tree) String() string {
	return t.root.String()
}

// Clone deep-copies the tree.
func (t *Tree) Clone() *Tree {
	return &Tree{
		root:   t.root.Clone(),
		vars:   append([]string(nil), t.vars...),
		consts: append([]string(nil), t.consts...),
	}
}

// Compile binds consts by position to the declared free constants and
// returns the phenotype. The constant vector length must equal the declared
// count (ErrArityMismatch otherwise). Construction is pure and
// deterministic; nothing is cached across calls.
func (t *Tree) Compile(consts []float64) (Phenotype, error) {
	if len(consts) != len(t.consts) {
		return nil, fmt.Errorf("%d constants supplied, tree declares %d: %w",
			len(consts), len(t.consts), ErrArityMismatch)
	}
	fn, err := t.root.bind(t.binder())
	if err != nil {
		return nil, err
	}
	bound := append([]float64(nil), consts...)
	return func(state []float64) float64 {
		return fn(state, bound)
	}, nil
}

func (t *Tree) binder() *binder {
	b := &binder{
		vars:   make(map[string]int, len(t.vars)),
		consts: make(map[string]int, len(t.consts)),
	}
	for i, name := range t.vars {
		b.vars[name] = i
	}
	for i, name := range t.consts {
		b.consts[name] = i
	}
	return b
}
