package expr

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func TestParseRoundTrip(t *testing.T) {
	srcs := []string{
		"y_0",
		"neg(y_1)",
		"add(y_0, y_1)",
		"sub(mul(c_0, y_0), div(y_1, c_1))",
		"sin(add(y_0, cos(y_1)))",
		"log(abs(y_0))",
	}
	for _, src := range srcs {
		tree := mustParse(t, src, []string{"y_0", "y_1"}, []string{"c_0", "c_1"})
		if got := tree.String(); got != src {
			t.Fatalf("String() = %q, want %q", got, src)
		}
	}
}

func TestParseLiterals(t *testing.T) {
	cases := []struct {
		src  string
		want float64
	}{
		{"1.5", 1.5},
		{"-2", -2},
		{"1e3", 1000},
		{"2.5e-2", 0.025},
		{"-1.25E+1", -12.5},
		{".5", 0.5},
	}
	for _, tc := range cases {
		tree, err := Parse(tc.src, nil, nil)
		if err != nil {
			t.Fatalf("parse %q: %v", tc.src, err)
		}
		fn, err := tree.Compile(nil)
		if err != nil {
			t.Fatalf("compile %q: %v", tc.src, err)
		}
		if got := fn(nil); got != tc.want {
			t.Fatalf("%q = %v, want %v", tc.src, got, tc.want)
		}
	}
}

func TestParseUndeclaredSymbol(t *testing.T) {
	if _, err := Parse("add(y_0, y_2)", []string{"y_0", "y_1"}, nil); !errors.Is(err, ErrUnknownSymbol) {
		t.Fatalf("got %v, want ErrUnknownSymbol", err)
	}
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
	}{
		{"empty", ""},
		{"unknown operator", "hypot(y_0, y_1)"},
		{"binary arity", "add(y_0)"},
		{"unary arity", "sin(y_0, y_1)"},
		{"unterminated", "add(y_0, y_1"},
		{"trailing input", "y_0 y_1"},
		{"bad number", "1..5"},
	}
	for _, tc := range cases {
		if _, err := Parse(tc.src, []string{"y_0", "y_1"}, nil); err == nil {
			t.Fatalf("%s: parse %q succeeded, want error", tc.name, tc.src)
		}
	}
}

func TestParseAutoInfersConstants(t *testing.T) {
	tree, err := ParseAuto("add(mul(c_1, y_0), mul(c_0, y_1))", []string{"y_0", "y_1"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	// Constants are indexed in order of first appearance, not by name.
	consts := tree.Consts()
	if len(consts) != 2 || consts[0] != "c_1" || consts[1] != "c_0" {
		t.Fatalf("inferred constants %v, want [c_1 c_0]", consts)
	}

	fn, err := tree.Compile([]float64{10, 100})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	// c_1 binds slot 0, c_0 binds slot 1.
	if got := fn([]float64{1, 1}); got != 110 {
		t.Fatalf("eval = %v, want 110", got)
	}
}

func TestParseAutoRepeatedConstant(t *testing.T) {
	tree, err := ParseAuto("mul(k, add(y_0, mul(k, y_1)))", []string{"y_0", "y_1"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := tree.Consts(); len(got) != 1 || got[0] != "k" {
		t.Fatalf("inferred constants %v, want [k]", got)
	}

	fn, err := tree.Compile([]float64{2})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if got := fn([]float64{1, 3}); got != 14 {
		t.Fatalf("eval = %v, want 14", got)
	}
}

func TestParseWhitespaceTolerant(t *testing.T) {
	tree := mustParse(t, "  add( y_0 ,\n\tmul( c , y_1 ) )  ", []string{"y_0", "y_1"}, []string{"c"})
	if got := tree.String(); got != "add(y_0, mul(c, y_1))" {
		t.Fatalf("String() = %q", got)
	}
}

func TestParseDomainEdges(t *testing.T) {
	tree := mustParse(t, "log(y_0)", []string{"y_0"}, nil)
	fn, err := tree.Compile(nil)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if got := fn([]float64{-1}); !math.IsNaN(got) {
		t.Fatalf("log(-1) = %v, want NaN", got)
	}

	tree = mustParse(t, "div(y_0, y_1)", []string{"y_0", "y_1"}, nil)
	fn, err = tree.Compile(nil)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if got := fn([]float64{1, 0}); !math.IsInf(got, 1) {
		t.Fatalf("1/0 = %v, want +Inf", got)
	}
	if got := fn([]float64{0, 0}); !math.IsNaN(got) {
		t.Fatalf("0/0 = %v, want NaN", got)
	}
}

func TestParseErrorMentionsOperator(t *testing.T) {
	_, err := Parse("hypot(y_0, y_1)", []string{"y_0", "y_1"}, nil)
	if err == nil || !strings.Contains(err.Error(), "hypot") {
		t.Fatalf("error %v does not name the operator", err)
	}
}
