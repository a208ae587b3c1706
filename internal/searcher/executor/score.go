package executor

import (
	"cmp"
	"math"
	"slices"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/apidocs-search/internal/database"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/internal/fuzzy"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/internal/searcher/expr"
)

// Score evaluates node against row. A positive score is a match, -1 is a
// mismatch and 0 means the node does not apply to the row.
func Score(row database.Row, node expr.Node) int {
	switch n := node.(type) {
	case *expr.Op:
		if !slices.Contains(n.Types, row.Type()) {
			return 0
		}
		v := row.Field(n.Field)
		if !v.Valid() {
			return 0
		}
		return max(-1, method(row, v, n))

	case *expr.Flag:
		if !slices.Contains(n.Types, row.Type()) {
			return 0
		}
		set, ok := row.HasTag(n.Tag)
		if !ok {
			return 0
		}
		return sign(set)

	case *expr.Any:
		return sign(slices.Contains(n.Types, row.Type()))

	case *expr.And:
		score := 0
		for i, o := range n.Operands {
			s := Score(row, o)
			if i == 0 || s < score {
				score = s
			}
			if score <= 0 {
				break
			}
		}
		return score

	case *expr.Or:
		failed := false
		for _, o := range n.Operands {
			s := Score(row, o)
			if s > 0 {
				return s
			}
			if s < 0 {
				failed = true
			}
		}
		if failed {
			return -1
		}
		return 0

	case *expr.Not:
		s := Score(row, n.Operand)
		if s == 0 {
			return 0
		}
		return max(-1, -s)
	}
	return -1
}

func sign(ok bool) int {
	if ok {
		return 1
	}
	return -1
}

func text(v database.Value) string {
	if v.Kind().Stringlike() {
		return v.Str()
	}
	return v.String()
}

func method(row database.Row, v database.Value, op *expr.Op) int {
	arg := func(i int) expr.Arg {
		if i < len(op.Args) {
			return op.Args[i]
		}
		return expr.Arg{}
	}

	switch op.Method {
	case expr.True:
		return 1
	case expr.Fuzzy:
		ok, score := fuzzy.Match(arg(0).Str, text(v))
		if !ok {
			return -1
		}
		return score
	case expr.Sub:
		return sign(strings.Contains(strings.ToLower(text(v)), strings.ToLower(arg(0).Str)))
	case expr.Regexp:
		a := arg(0)
		return sign(a.Re != nil && a.Re.MatchString(text(v)))
	case expr.Removed:
		removed, _ := row.Removed()
		return sign(removed)
	case expr.Range:
		n, lo, hi := v.Num(), arg(0).Num, arg(1).Num
		return sign(lo <= n && n <= hi)
	case expr.Eq, expr.Ne, expr.Lt, expr.Le, expr.Gt, expr.Ge:
		c, ok := compare(v, arg(0))
		return sign(ok && holds(op.Method, c))
	case expr.NEq, expr.NNe, expr.NLt, expr.NLe, expr.NGt, expr.NGe:
		c, ok := compare(v, arg(0))
		if !ok || !holds(op.Method-expr.NEq+expr.Eq, c) {
			return -1
		}
		return max(1, int(min(v.Num(), math.MaxInt32)))
	}
	return -1
}

// compare orders a field value against an argument. It is false when the two
// cannot be ordered, as with NaN.
func compare(v database.Value, a expr.Arg) (int, bool) {
	switch a.Kind {
	case expr.ArgString:
		return cmp.Compare(text(v), a.Str), true
	case expr.ArgBool:
		var x, y int
		if v.Bool() {
			x = 1
		}
		if a.Bool {
			y = 1
		}
		return cmp.Compare(x, y), true
	case expr.ArgNumber:
		n := v.Num()
		if math.IsNaN(a.Num) || math.IsNaN(n) {
			return 0, false
		}
		return cmp.Compare(n, a.Num), true
	}
	return 0, false
}

func holds(m expr.Method, c int) bool {
	switch m {
	case expr.Eq:
		return c == 0
	case expr.Ne:
		return c != 0
	case expr.Lt:
		return c < 0
	case expr.Le:
		return c <= 0
	case expr.Gt:
		return c > 0
	case expr.Ge:
		return c >= 0
	}
	return false
}
