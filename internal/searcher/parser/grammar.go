package parser

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/apidocs-search/internal/database"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/internal/grammar"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/internal/searcher/expr"
)

type (
	builder = grammar.Builder[*Directives]
	rule    = grammar.Rule[*Directives]
)

var (
	reSpace  = regexp.MustCompile(`^\s*`)
	reBreak  = regexp.MustCompile(`^\s+`)
	reWord   = regexp.MustCompile(`^\w+`)
	reDigits = regexp.MustCompile(`^[0-9]+`)
	reAny    = regexp.MustCompile(`(?s)^.`)
	reFlags  = regexp.MustCompile(`^[imsuv]+`)
)

const memecatBanner = "˖⁺‧₊˚˖⁺‧₊˚˖⁺‧₊˚˖⁺‧₊˚ᓚ₍ ˆ•⩊•ˆ₎"

var errExpectedNumber = errors.New("expected number")

// operands accumulates the children of an and/or level.
type operands struct {
	list []expr.Node
}

func newOperands(any) any { return &operands{} }

func appendOperand(a, x any) (any, error) {
	ops, _ := a.(*operands)
	if ops == nil {
		ops = &operands{}
	}
	if n, ok := x.(expr.Node); ok {
		ops.list = append(ops.list, n)
	}
	return ops, nil
}

func collapse(wrap func([]expr.Node) expr.Node) grammar.CaptureFunc {
	return func(a, _ any) (any, error) {
		ops, _ := a.(*operands)
		switch {
		case ops == nil || len(ops.list) == 0:
			return grammar.Null, nil
		case len(ops.list) == 1:
			return ops.list[0], nil
		}
		return wrap(ops.list), nil
	}
}

var (
	collapseOr  = collapse(func(ns []expr.Node) expr.Node { return &expr.Or{Operands: ns} })
	collapseAnd = collapse(func(ns []expr.Node) expr.Node { return &expr.And{Operands: ns} })
)

func accumulator(a, _ any) (any, error) { return a, nil }

// directive is the capture of a term that only writes Directives.
type directive func(*Directives)

func applyDirective(d *Directives, v any) {
	if f, ok := v.(directive); ok {
		f(d)
	}
}

type wordValue string

func asWord(_, x any) (any, error) { return wordValue(x.(string)), nil }

type stringExpr struct {
	method expr.Method
	args   []expr.Arg
}

func (se *stringExpr) text() string {
	if len(se.args) == 0 {
		return ""
	}
	if a := se.args[0]; a.Kind == expr.ArgRegexp {
		return a.Re.String()
	}
	return se.args[0].Str
}

func optionalString(x any) *stringExpr {
	if se, ok := x.(*stringExpr); ok {
		return se
	}
	return &stringExpr{method: expr.True}
}

type numberExpr struct {
	method expr.Method
	valued bool
	args   []expr.Arg
}

func newNumberExpr(any) any { return &numberExpr{method: expr.Eq} }

func appendNumber(a, x any) (any, error) {
	ne := a.(*numberExpr)
	ne.args = append(ne.args, expr.NumberArg(x.(float64)))
	return ne, nil
}

var valuedMethods = map[expr.Method]expr.Method{
	expr.Eq: expr.NEq,
	expr.Ne: expr.NNe,
	expr.Lt: expr.NLt,
	expr.Le: expr.NLe,
	expr.Gt: expr.NGt,
	expr.Ge: expr.NGe,
}

type sortSpec struct {
	order  byte
	column string
}

func keyword(b *builder, w string) *rule {
	return b.LitRegexp(regexp.MustCompile(`(?i)^` + regexp.QuoteMeta(w) + `\b`))
}

func prefix(b *builder, name string, value *rule) *rule {
	return b.Seq(keyword(b, name), b.Lit(":"), value)
}

func (p *Parser) define(b *builder) {
	b.Rule("main", b.Seq(b.Ref("space"), b.Ref("expr"), b.Ref("space")))

	b.Rule("space", b.Seq(
		b.Name("space").LitRegexp(reSpace),
		b.Opt(b.Ref("comment"), b.Ref("space")),
	))
	b.Rule("comment", b.Seq(b.Lit("#{"), b.Rep(b.Exc(b.Lit("}#"))), b.Lit("}#")))

	b.Rule("expr", b.Init(newOperands).Seq(
		b.Ref("expr1").Call(appendOperand),
		b.Rep(b.Ref("or_op"), b.Ref("expr1").Call(appendOperand)),
	).Call(collapseOr))
	b.Rule("expr1", b.Init(newOperands).Seq(
		b.Ref("expr2").Call(appendOperand),
		b.Rep(b.Ref("and_op"), b.Ref("expr2").Call(appendOperand)),
	).Call(collapseAnd))
	b.Rule("or_op", b.Seq(b.Ref("space"), b.Alt(b.Lit("||"), b.Lit(",")), b.Ref("space")))
	b.Rule("and_op", b.Alt(
		b.Seq(b.Ref("space"), b.Lit("&&"), b.Ref("space")),
		b.Seq(b.Name("space").LitRegexp(reBreak), b.Ref("space")),
	))

	b.Rule("expr2", b.Alt(
		b.Ref("not"),
		b.Ref("meta"),
		b.Ref("prefix"),
		b.Ref("results"),
		b.Ref("compound"),
		b.Ref("name"),
		b.Ref("group"),
	))
	b.Rule("not", b.Seq(b.Lit("!"), b.Ref("space"), b.Ref("expr2")).Call(func(_, x any) (any, error) {
		if n, ok := x.(expr.Node); ok {
			return &expr.Not{Operand: n}, nil
		}
		return grammar.Null, nil
	}))
	b.Rule("group", b.Seq(b.Lit("("), b.Ref("space"), b.Ref("expr"), b.Ref("space"), b.Lit(")")))
	b.Rule("meta", b.Seq(b.Lit("$"), b.Ref("word").Set()).Call(p.meta).Global(applyDirective))

	b.Rule("prefix", b.Alt(p.selectors(b)...))
	b.Rule("results", b.Alt(
		prefix(b, "limit", b.Opt(b.Ref("number"))).Call(limit).Global(applyDirective),
		prefix(b, "sort", b.Opt(b.Ref("sort_spec"))).Call(p.sort).Global(applyDirective),
		prefix(b, "order", b.Opt(b.Ref("sort_spec"))).Call(p.sort).Global(applyDirective),
		prefix(b, "go", b.Ref("word").Call(asWord)).Call(func(_, x any) (any, error) {
			target := string(x.(wordValue))
			return directive(func(d *Directives) { d.Redirect = target }), nil
		}).Global(applyDirective),
	))
	b.Rule("sort_spec", b.Init(func(any) any { return &sortSpec{} }).Seq(
		b.Opt(b.Alt(b.Lit("<"), b.Lit(">")).Call(func(a, x any) (any, error) {
			ss := a.(*sortSpec)
			ss.order = x.(string)[0]
			return ss, nil
		})),
		b.Ref("word").Call(func(a, x any) (any, error) {
			ss := a.(*sortSpec)
			ss.column = x.(string)
			return ss, nil
		}),
	).Call(accumulator))

	b.Rule("compound", b.Alt(
		b.Init(newOperands).Seq(
			b.Ref("string_expr").Call(p.appendName(database.Primary)),
			b.Lit("."),
			b.Ref("string_expr").Call(p.appendName(database.Secondary)),
		).Call(collapseOr),
		b.Init(newOperands).Seq(
			b.Ref("string_expr").Call(p.appendName(database.Primary)),
			b.Lit("."),
		).Call(collapseOr),
		b.Init(newOperands).Seq(
			b.Lit("."),
			b.Ref("string_expr").Call(p.appendName(database.Secondary)),
		).Call(collapseOr),
	))
	b.Rule("name", b.Ref("string_expr").Call(func(_, x any) (any, error) {
		return p.nameExpr(x.(*stringExpr)), nil
	}))

	b.Rule("string_expr", b.Alt(
		b.Lit("*").Call(func(_, _ any) (any, error) { return &stringExpr{method: expr.True}, nil }),
		b.Ref("word").Call(func(_, x any) (any, error) {
			return &stringExpr{method: expr.Fuzzy, args: []expr.Arg{expr.StringArg(x.(string))}}, nil
		}),
		b.Ref("string_sq"),
		b.Ref("string_dq"),
		b.Ref("regexp"),
	))
	b.Rule("string_sq", quoted(b, "'", expr.Sub))
	b.Rule("string_dq", quoted(b, `"`, expr.Eq))
	b.Rule("regexp", b.Seq(
		b.Lit("/"),
		b.Rep(b.Alt(b.Seq(b.Lit(`\`), b.Ref("any")), b.Exc(b.Alt(b.Lit(`\`), b.Lit("/"))))),
		b.Lit("/"),
		b.Opt(b.Name("flags").LitRegexp(reFlags)),
	).Call(compileRegexp))

	b.Rule("word", b.Name("word").LitRegexp(reWord))
	b.Rule("any", b.Name("any").LitRegexp(reAny))
	b.Rule("digits", b.LitRegexp(reDigits))

	b.Rule("bool", b.Name("bool").Alt(
		b.Alt(keyword(b, "0"), keyword(b, "no"), keyword(b, "false"), keyword(b, "n"), keyword(b, "f")).SetValue(false),
		b.Alt(keyword(b, "1"), keyword(b, "yes"), keyword(b, "true"), keyword(b, "y"), keyword(b, "t")).SetValue(true),
	))

	b.Rule("number", b.Name("number").Alt(
		b.Seq(
			b.Opt(b.Alt(b.Lit("-"), b.Lit("+"))),
			b.Alt(
				b.IgnoreCase().Lit("inf"),
				b.Seq(b.Ref("digits"), b.Opt(b.Lit("."), b.Ref("digits"))),
				b.Seq(b.Lit("."), b.Ref("digits")),
			),
		),
		b.IgnoreCase().Lit("nan"),
	).Call(func(_, x any) (any, error) {
		// Digit runs past the float64 range evaluate to ±Inf.
		n, err := strconv.ParseFloat(x.(string), 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return nil, errExpectedNumber
		}
		return n, nil
	}))
	b.Rule("number_op", b.Alt(
		b.Lit("!=").SetValue(expr.Ne),
		b.Lit("<=").SetValue(expr.Le),
		b.Lit("<").SetValue(expr.Lt),
		b.Lit(">=").SetValue(expr.Ge),
		b.Lit(">").SetValue(expr.Gt),
	))
	b.Rule("number_expr", b.Alt(
		b.Init(newNumberExpr).Seq(
			b.Ref("number").Call(appendNumber),
			b.Lit(".."),
			b.Ref("number").Call(appendNumber),
		).Call(func(a, _ any) (any, error) {
			ne := a.(*numberExpr)
			ne.method = expr.Range
			return ne, nil
		}),
		b.Init(newNumberExpr).Seq(
			b.Opt(b.Lit("~").Call(func(a, _ any) (any, error) {
				ne := a.(*numberExpr)
				ne.valued = true
				return ne, nil
			})),
			b.Opt(b.Ref("number_op").Call(func(a, x any) (any, error) {
				ne := a.(*numberExpr)
				ne.method = x.(expr.Method)
				return ne, nil
			})),
			b.Ref("number").Call(appendNumber),
		).Call(func(a, _ any) (any, error) {
			ne := a.(*numberExpr)
			if ne.valued {
				ne.method = valuedMethods[ne.method]
			}
			return ne, nil
		}),
	))
}

// selectors builds the key:value terms that produce expressions.
func (p *Parser) selectors(b *builder) []*rule {
	rules := []*rule{
		prefix(b, "is", b.Ref("word").Set()).Call(func(_, x any) (any, error) {
			name := x.(string)
			t, ok := p.sets.Lookup(name)
			if !ok {
				return nil, fmt.Errorf("unknown term 'is:%s'", name)
			}
			return &expr.Any{Types: []string{t}}, nil
		}),
		prefix(b, "tag", b.Opt(b.Ref("word").Call(asWord))).Call(func(_, x any) (any, error) {
			if w, ok := x.(wordValue); ok {
				return &expr.Flag{Types: p.sets.All, Field: database.Flags, Tag: strings.ToLower(string(w))}, nil
			}
			return &expr.Op{Types: p.sets.All, Field: database.Flags, Method: expr.True}, nil
		}),
		prefix(b, "has", b.Ref("word").Call(asWord)).Call(func(_, x any) (any, error) {
			name := string(x.(wordValue))
			spec, ok := p.column(name)
			if !ok {
				return nil, fmt.Errorf("unknown field 'has:%s'", name)
			}
			return &expr.Op{Types: spec.Types, Field: spec.Field, Method: expr.True}, nil
		}),
		prefix(b, "removed", b.Opt(b.Ref("bool"))).Call(func(_, x any) (any, error) {
			op := &expr.Op{Types: p.sets.All, Field: database.Flags, Method: expr.Removed}
			if v, ok := x.(bool); ok && !v {
				return &expr.Not{Operand: op}, nil
			}
			return op, nil
		}),
		prefix(b, "security", b.Opt(b.Ref("string_expr"))).Call(func(_, x any) (any, error) {
			se := optionalString(x)
			return &expr.Or{Operands: []expr.Node{
				&expr.Op{Types: p.sets.Members, Field: database.Security, Method: se.method, Args: se.args},
				&expr.Op{Types: []string{database.TypeProperty}, Field: database.WriteSecurity, Method: se.method, Args: se.args},
			}}, nil
		}),
		prefix(b, "memecat", b.Opt(b.Ref("string_expr"))).Call(func(_, x any) (any, error) {
			msg := memecatBanner
			if se, ok := x.(*stringExpr); ok && len(se.args) > 0 {
				msg += " ⦟⟮ " + se.text() + " ⟯"
			}
			return directive(func(d *Directives) { d.Literals = append(d.Literals, msg) }), nil
		}).Global(applyDirective),
	}

	for _, spec := range p.fields {
		switch spec.Kind {
		case NumberValue:
			rules = append(rules, prefix(b, spec.Name, b.Opt(b.Ref("number_expr"))).Call(func(_, x any) (any, error) {
				ne, ok := x.(*numberExpr)
				if !ok {
					return nil, errExpectedNumber
				}
				return &expr.Op{Types: spec.Types, Field: spec.Field, Method: ne.method, Args: ne.args}, nil
			}))
		case StringValue:
			rules = append(rules, prefix(b, spec.Name, b.Opt(b.Ref("string_expr"))).Call(func(_, x any) (any, error) {
				se := optionalString(x)
				return &expr.Op{Types: spec.Types, Field: spec.Field, Method: se.method, Args: se.args}, nil
			}))
		case BoolValue:
			rules = append(rules, prefix(b, spec.Name, b.Opt(b.Ref("bool"))).Call(func(_, x any) (any, error) {
				v, ok := x.(bool)
				if !ok {
					v = true
				}
				return &expr.Op{Types: spec.Types, Field: spec.Field, Method: expr.Eq, Args: []expr.Arg{expr.BoolArg(v)}}, nil
			}))
		}
	}
	return rules
}

func (p *Parser) meta(_, x any) (any, error) {
	name := x.(string)
	axis := strings.ToLower(name)
	if !slices.Contains(database.Axes(), axis) {
		return nil, fmt.Errorf("unknown term '$%s'", name)
	}
	return directive(func(d *Directives) { d.Meta = axis }), nil
}

func limit(_, x any) (any, error) {
	n, ok := x.(float64)
	if !ok {
		return nil, errExpectedNumber
	}
	if n < 1 || n > math.MaxInt32 || n != math.Trunc(n) {
		return nil, fmt.Errorf("invalid limit %s", strconv.FormatFloat(n, 'g', -1, 64))
	}
	return directive(func(d *Directives) { d.Limit = int(n) }), nil
}

func (p *Parser) sort(_, x any) (any, error) {
	ss, ok := x.(*sortSpec)
	if !ok {
		return nil, errors.New("expected column")
	}
	column := strings.ToLower(ss.column)
	if column == "score" {
		return directive(func(d *Directives) {
			d.Sort = &Sort{Column: column, Descending: ss.order != '<'}
		}), nil
	}
	spec, ok := p.column(column)
	if !ok {
		return nil, fmt.Errorf("unknown column '%s'", ss.column)
	}
	return directive(func(d *Directives) {
		d.Sort = &Sort{Column: spec.Name, Field: spec.Field, Descending: ss.order == '>'}
	}), nil
}

func (p *Parser) appendName(field database.Field) grammar.CaptureFunc {
	return func(a, x any) (any, error) {
		ops := a.(*operands)
		se := x.(*stringExpr)
		ops.list = append(ops.list, &expr.Op{Types: p.sets.All, Field: field, Method: se.method, Args: se.args})
		return ops, nil
	}
}

func (p *Parser) nameExpr(se *stringExpr) expr.Node {
	return &expr.Or{Operands: []expr.Node{
		&expr.Op{Types: p.sets.Primary, Field: database.Primary, Method: se.method, Args: se.args},
		&expr.Op{Types: p.sets.Secondary, Field: database.Secondary, Method: se.method, Args: se.args},
	}}
}

func quoted(b *builder, delim string, method expr.Method) *rule {
	return b.Seq(
		b.Lit(delim),
		b.Rep(b.Alt(b.Seq(b.Lit(`\`), b.Ref("any")), b.Exc(b.Alt(b.Lit(`\`), b.Lit(delim))))),
		b.Lit(delim),
	).Call(func(_, x any) (any, error) {
		src := x.(string)
		s, err := unescape(src[1 : len(src)-1])
		if err != nil {
			return nil, err
		}
		return &stringExpr{method: method, args: []expr.Arg{expr.StringArg(s)}}, nil
	})
}

func compileRegexp(_, x any) (any, error) {
	src := x.(string)
	end := strings.LastIndexByte(src, '/')
	pattern, err := regexpSource(src[1:end])
	if err != nil {
		return nil, err
	}
	var flags []byte
	for _, f := range []byte(src[end+1:]) {
		if (f == 'i' || f == 'm' || f == 's') && !slices.Contains(flags, f) {
			flags = append(flags, f)
		}
	}
	if len(flags) > 0 {
		pattern = "(?" + string(flags) + ")" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regexp: %s", strings.TrimPrefix(err.Error(), "error parsing regexp: "))
	}
	return &stringExpr{method: expr.Regexp, args: []expr.Arg{expr.RegexpArg(re)}}, nil
}
