// Package expr defines the expression tree a query parses into.
//
// Leaves (Op, Flag, Any) carry the entity types they apply to. Evaluating a
// leaf against a row of another type is inapplicable, which is distinct from a
// mismatch.
package expr

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/apidocs-search/internal/database"
)

// Node is one of *Op, *Flag, *Any, *And, *Or or *Not.
type Node interface {
	String() string
	node()
}

// Op compares a field of a row using Method.
type Op struct {
	Types  []string
	Field  database.Field
	Method Method
	Args   []Arg
}

// Flag tests a tag bit of a row's flags.
type Flag struct {
	Types []string
	Field database.Field
	Tag   string
}

// Any matches every row of its types.
type Any struct {
	Types []string
}

type And struct {
	Operands []Node
}

type Or struct {
	Operands []Node
}

type Not struct {
	Operand Node
}

func (*Op) node()   {}
func (*Flag) node() {}
func (*Any) node()  {}
func (*And) node()  {}
func (*Or) node()   {}
func (*Not) node()  {}

func (n *Op) String() string {
	var b strings.Builder
	b.WriteString("op[")
	b.WriteString(strings.Join(n.Types, ","))
	b.WriteString("](")
	b.WriteString(n.Field.Name)
	b.WriteByte(' ')
	b.WriteString(n.Method.String())
	for _, a := range n.Args {
		b.WriteByte(' ')
		b.WriteString(a.String())
	}
	b.WriteByte(')')
	return b.String()
}

func (n *Flag) String() string {
	return "flag[" + strings.Join(n.Types, ",") + "](" + n.Field.Name + " " + strconv.Quote(n.Tag) + ")"
}

func (n *Any) String() string {
	return "any[" + strings.Join(n.Types, ",") + "]"
}

func (n *And) String() string { return join("and", n.Operands) }
func (n *Or) String() string  { return join("or", n.Operands) }

func (n *Not) String() string {
	return "not(" + n.Operand.String() + ")"
}

func join(name string, nodes []Node) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = n.String()
	}
	return name + "(" + strings.Join(parts, ", ") + ")"
}

// Types returns the types of every leaf of n, deduplicated in the order they
// are first seen.
func Types(n Node) []string {
	var types []string
	seen := map[string]bool{}
	add := func(ts []string) {
		for _, t := range ts {
			if !seen[t] {
				seen[t] = true
				types = append(types, t)
			}
		}
	}
	var walk func(Node)
	walk = func(n Node) {
		switch n := n.(type) {
		case *Op:
			add(n.Types)
		case *Flag:
			add(n.Types)
		case *Any:
			add(n.Types)
		case *And:
			for _, o := range n.Operands {
				walk(o)
			}
		case *Or:
			for _, o := range n.Operands {
				walk(o)
			}
		case *Not:
			walk(n.Operand)
		}
	}
	if n != nil {
		walk(n)
	}
	return types
}

// Method is the comparison an Op applies to its field.
type Method uint8

const (
	True Method = iota
	Fuzzy
	Sub
	Eq
	Ne
	Lt
	Le
	Gt
	Ge
	NEq
	NNe
	NLt
	NLe
	NGt
	NGe
	Range
	Regexp
	Removed
)

var methodNames = [...]string{
	True:    "TRUE",
	Fuzzy:   "FUZZY",
	Sub:     "SUB",
	Eq:      "EQ",
	Ne:      "NE",
	Lt:      "LT",
	Le:      "LE",
	Gt:      "GT",
	Ge:      "GE",
	NEq:     "N_EQ",
	NNe:     "N_NE",
	NLt:     "N_LT",
	NLe:     "N_LE",
	NGt:     "N_GT",
	NGe:     "N_GE",
	Range:   "RANGE",
	Regexp:  "REGEXP",
	Removed: "REMOVED",
}

func (m Method) String() string {
	if int(m) < len(methodNames) {
		return methodNames[m]
	}
	return "UNKNOWN"
}

// ArgKind is the type of an Arg.
type ArgKind uint8

const (
	ArgString ArgKind = iota
	ArgNumber
	ArgBool
	ArgRegexp
)

// Arg is a literal argument of a method.
type Arg struct {
	Kind ArgKind
	Str  string
	Num  float64
	Bool bool
	Re   *regexp.Regexp
}

func StringArg(s string) Arg          { return Arg{Kind: ArgString, Str: s} }
func NumberArg(n float64) Arg         { return Arg{Kind: ArgNumber, Num: n} }
func BoolArg(b bool) Arg              { return Arg{Kind: ArgBool, Bool: b} }
func RegexpArg(re *regexp.Regexp) Arg { return Arg{Kind: ArgRegexp, Re: re} }

func (a Arg) String() string {
	switch a.Kind {
	case ArgNumber:
		return formatNumber(a.Num)
	case ArgBool:
		return strconv.FormatBool(a.Bool)
	case ArgRegexp:
		return "/" + a.Re.String() + "/"
	}
	return strconv.Quote(a.Str)
}

func formatNumber(n float64) string {
	switch {
	case math.IsNaN(n):
		return "nan"
	case math.IsInf(n, 1):
		return "inf"
	case math.IsInf(n, -1):
		return "-inf"
	}
	return strconv.FormatFloat(n, 'g', -1, 64)
}

func (a Arg) MarshalJSON() ([]byte, error) {
	switch a.Kind {
	case ArgNumber:
		if math.IsNaN(a.Num) || math.IsInf(a.Num, 0) {
			return json.Marshal(formatNumber(a.Num))
		}
		return json.Marshal(a.Num)
	case ArgBool:
		return json.Marshal(a.Bool)
	case ArgRegexp:
		return json.Marshal(a.String())
	}
	return json.Marshal(a.Str)
}
