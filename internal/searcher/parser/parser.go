// Package parser turns query strings into expression trees and result
// directives.
package parser

import (
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/apidocs-search/internal/database"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/internal/grammar"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/internal/searcher/expr"
)

// Sort orders results by a column. Column is "score", "name" or a field
// selector; Field is set for field columns.
type Sort struct {
	Column     string         `json:"column"`
	Field      database.Field `json:"-"`
	Descending bool           `json:"descending"`
}

// Directives are the parts of a query that shape the response rather than
// select rows.
type Directives struct {
	Limit    int      `json:"limit,omitempty"`
	Sort     *Sort    `json:"sort,omitempty"`
	Redirect string   `json:"redirect,omitempty"`
	Meta     string   `json:"meta,omitempty"`
	Literals []string `json:"literals,omitempty"`
}

type QueryPlan struct {
	Expr       expr.Node  `json:"expr"`
	Directives Directives `json:"directives"`
	RawQuery   string     `json:"query"`
}

// String renders the expression of the plan, or "" when it has none.
func (p *QueryPlan) String() string {
	if p.Expr == nil {
		return ""
	}
	return p.Expr.String()
}

// Parser parses queries against a fixed set of entity types. It is safe for
// concurrent use.
type Parser struct {
	sets    database.TypeSets
	fields  []FieldSpec
	grammar *grammar.Parser[*Directives]
}

func New(sets database.TypeSets) *Parser {
	p := &Parser{
		sets:   sets,
		fields: Fields(sets),
	}
	p.grammar = grammar.MustCompile(p.define, func() *Directives { return &Directives{} })
	return p
}

// Parse parses query. Syntax and semantic failures wrap a *grammar.Error.
// A blank query yields a plan with no expression.
func (p *Parser) Parse(query string) (*QueryPlan, error) {
	plan := &QueryPlan{RawQuery: query}
	if strings.TrimSpace(query) == "" {
		return plan, nil
	}
	// A query of nothing but comments is blank too.
	if strings.Contains(query, "#{") {
		if _, err := p.grammar.ParseRule(query, "space"); err == nil {
			return plan, nil
		}
	}
	res, err := p.grammar.Parse(query)
	if err != nil {
		return nil, fmt.Errorf("parsing query: %w", err)
	}
	if n, ok := res.Capture.(expr.Node); ok {
		plan.Expr = n
	}
	plan.Directives = *res.Global
	return plan, nil
}

// Fallback returns the plan used when query does not parse: a fuzzy match of
// the whole trimmed text against primary and secondary names.
func (p *Parser) Fallback(query string) *QueryPlan {
	plan := &QueryPlan{RawQuery: query}
	if q := strings.TrimSpace(query); q != "" {
		plan.Expr = p.nameExpr(&stringExpr{method: expr.Fuzzy, args: []expr.Arg{expr.StringArg(q)}})
	}
	return plan
}

// Types returns the entity types the parser was built for.
func (p *Parser) Types() database.TypeSets { return p.sets }
