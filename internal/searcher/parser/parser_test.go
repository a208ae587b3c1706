package parser

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/apidocs-search/internal/database"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/internal/grammar"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/internal/searcher/expr"
)

const (
	all       = "Class,Property,Function,Event,Callback,Enum,EnumItem,Type"
	members   = "Property,Function,Event,Callback"
	primary   = "Class,Enum,Type"
	secondary = "Property,Function,Event,Callback,EnumItem"
)

func name(method, arg string) string {
	return "or(op[" + primary + "](PRIMARY " + method + " " + arg + "), op[" + secondary + "](SECONDARY " + method + " " + arg + "))"
}

func fuzzy(w string) string { return name("FUZZY", `"`+w+`"`) }

func newParser() *Parser {
	return New(database.DefaultTypeSets())
}

func parseError(t *testing.T, p *Parser, query string) *grammar.Error {
	t.Helper()
	_, err := p.Parse(query)
	require.Error(t, err, query)
	var perr *grammar.Error
	require.ErrorAs(t, err, &perr)
	return perr
}

func TestParseExpressions(t *testing.T) {
	p := newParser()

	tests := []struct {
		query string
		want  string
	}{
		{"foo", fuzzy("foo")},
		{"foo,bar !fizz,buzz", "or(" + fuzzy("foo") + ", and(" + fuzzy("bar") + ", not(" + fuzzy("fizz") + ")), " + fuzzy("buzz") + ")"},
		{"(foo,bar) (!fizz,buzz)", "and(or(" + fuzzy("foo") + ", " + fuzzy("bar") + "), or(not(" + fuzzy("fizz") + "), " + fuzzy("buzz") + "))"},
		{"a && b || c", "or(and(" + fuzzy("a") + ", " + fuzzy("b") + "), " + fuzzy("c") + ")"},
		{"  foo  ", fuzzy("foo")},
		{"foo #{ a comment }# bar", "and(" + fuzzy("foo") + ", " + fuzzy("bar") + ")"},
		{"*", "or(op[" + primary + "](PRIMARY TRUE), op[" + secondary + "](SECONDARY TRUE))"},
		{`'it\'s'`, name("SUB", `"it's"`)},
		{`"a\x41é"`, name("EQ", `"aAé"`)},
		{`"tab\there"`, name("EQ", `"tab\there"`)},
		{"/^get/i", name("REGEXP", "/(?i)^get/")},
		{`/a\/b/`, name("REGEXP", "/a/b/")},
		{"Instance.Name", "or(op[" + all + "](PRIMARY FUZZY \"Instance\"), op[" + all + "](SECONDARY FUZZY \"Name\"))"},
		{"Instance.", "op[" + all + "](PRIMARY FUZZY \"Instance\")"},
		{".Name", "op[" + all + "](SECONDARY FUZZY \"Name\")"},

		{"is:class", "any[Class]"},
		{"IS:enumitem", "any[EnumItem]"},
		{"tag:Deprecated", "flag[" + all + `](FLAGS "deprecated")`},
		{"tag:", "op[" + all + "](FLAGS TRUE)"},
		{"has:superclass", "op[Class](SUPERCLASS TRUE)"},
		{"has:name", "op[" + all + "](PRIMARY TRUE)"},
		{"removed:", "op[" + all + "](FLAGS REMOVED)"},
		{"removed:yes", "op[" + all + "](FLAGS REMOVED)"},
		{"removed:false", "not(op[" + all + "](FLAGS REMOVED))"},

		{"superclasses:2", "op[Class](SUPERCLASSES EQ 2)"},
		{"SUPERCLASSES:>=2", "op[Class](SUPERCLASSES GE 2)"},
		{"members:<3", "op[Class](MEMBERS LT 3)"},
		{"members:!=3", "op[Class](MEMBERS NE 3)"},
		{"members:1..5", "op[Class](MEMBERS RANGE 1 5)"},
		{"members:~>2", "op[Class](MEMBERS N_GT 2)"},
		{"members:~4", "op[Class](MEMBERS N_EQ 4)"},
		{"itemvalue:-1.5", "op[EnumItem](ITEM_VALUE EQ -1.5)"},
		{"itemvalue:.5", "op[EnumItem](ITEM_VALUE EQ 0.5)"},
		{"itemvalue:-INF", "op[EnumItem](ITEM_VALUE EQ -inf)"},

		{"superclass:Instance", "op[Class](SUPERCLASS FUZZY \"Instance\")"},
		{"superclass:", "op[Class](SUPERCLASS TRUE)"},
		{"superclasses:1 superclass:'Inst'", "and(op[Class](SUPERCLASSES EQ 1), op[Class](SUPERCLASS SUB \"Inst\"))"},
		{"threadsafety:Safe", "op[" + members + "](THREAD_SAFETY FUZZY \"Safe\")"},
		{"paramdefault:\"false\"", "op[Function](PARAM_DEFAULT EQ \"false\")"},
		{"cansave", fuzzy("cansave")},
		{"cansave:", "op[Property](CAN_SAVE EQ true)"},
		{"cansave:no", "op[Property](CAN_SAVE EQ false)"},
		{"returntypeopt:1", "op[Function,Callback](RETURN_TYPE_OPT EQ true)"},
		{"security:PluginSecurity", "or(op[" + members + "](SECURITY FUZZY \"PluginSecurity\"), op[Property](WRITE_SECURITY FUZZY \"PluginSecurity\"))"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			plan, err := p.Parse(tt.query)
			require.NoError(t, err)
			require.NotNil(t, plan.Expr)
			assert.Equal(t, tt.want, plan.Expr.String())
			assert.Equal(t, tt.query, plan.RawQuery)
		})
	}
}

func TestParseOverflowingNumber(t *testing.T) {
	huge := "1" + strings.Repeat("9", 318)
	p := newParser()
	tests := []struct {
		query string
		want  float64
	}{
		{"itemvalue:" + huge, math.Inf(1)},
		{"itemvalue:-" + huge, math.Inf(-1)},
		{"itemvalue:0.." + huge, math.Inf(1)},
	}
	for _, tt := range tests {
		plan, err := p.Parse(tt.query)
		require.NoError(t, err)
		op, ok := plan.Expr.(*expr.Op)
		require.True(t, ok)
		assert.Equal(t, tt.want, op.Args[len(op.Args)-1].Num)
	}
}

func TestParseNaN(t *testing.T) {
	plan, err := newParser().Parse("itemvalue:nan")
	require.NoError(t, err)
	op, ok := plan.Expr.(*expr.Op)
	require.True(t, ok)
	require.Len(t, op.Args, 1)
	assert.True(t, math.IsNaN(op.Args[0].Num))
}

func TestParseDirectives(t *testing.T) {
	p := newParser()

	plan, err := p.Parse("limit:5 sort:>members foo")
	require.NoError(t, err)
	assert.Equal(t, fuzzy("foo"), plan.String())
	assert.Equal(t, 5, plan.Directives.Limit)
	require.NotNil(t, plan.Directives.Sort)
	assert.Equal(t, "members", plan.Directives.Sort.Column)
	assert.Equal(t, database.Members, plan.Directives.Sort.Field)
	assert.True(t, plan.Directives.Sort.Descending)

	plan, err = p.Parse("tag:foo order:score")
	require.NoError(t, err)
	assert.Equal(t, &Sort{Column: "score", Descending: true}, plan.Directives.Sort)

	plan, err = p.Parse("foo sort:name")
	require.NoError(t, err)
	assert.Equal(t, "name", plan.Directives.Sort.Column)
	assert.False(t, plan.Directives.Sort.Descending)

	plan, err = p.Parse("go:Instance")
	require.NoError(t, err)
	assert.Nil(t, plan.Expr)
	assert.Equal(t, "Instance", plan.Directives.Redirect)

	plan, err = p.Parse("$TAG")
	require.NoError(t, err)
	assert.Nil(t, plan.Expr)
	assert.Equal(t, "tag", plan.Directives.Meta)

	plan, err = p.Parse("!$type")
	require.NoError(t, err)
	assert.Nil(t, plan.Expr)
	assert.Equal(t, "type", plan.Directives.Meta)

	plan, err = p.Parse("memecat memecat:'hi'")
	require.NoError(t, err)
	assert.Equal(t, fuzzy("memecat"), plan.String())
	assert.Equal(t, []string{memecatBanner + " ⦟⟮ hi ⟯"}, plan.Directives.Literals)

	plan, err = p.Parse("memecat:")
	require.NoError(t, err)
	assert.Equal(t, []string{memecatBanner}, plan.Directives.Literals)
}

func TestParseErrors(t *testing.T) {
	p := newParser()

	tests := []struct {
		query   string
		message string
		column  int
	}{
		{"removed:falsey", `unexpected character "f"`, 9},
		{"superclasses:", "expected number", 14},
		{"superclasses:abc", "expected number", 14},
		{"is:bogus", "unknown term 'is:bogus'", 9},
		{"$foo", "unknown term '$foo'", 5},
		{"has:bogus", "unknown field 'has:bogus'", 10},
		{"sort:bogus", "unknown column 'bogus'", 11},
		{"limit:0", "invalid limit 0", 8},
		{"'abc", "unexpected end of query", 2},
		{`foo "bar`, `unexpected character '"'`, 5},
		{`"\xZZ"`, `invalid escape "\\xZZ"`, 7},
		{"(foo", `expected ")", got end of query`, 5},
		{"#{ open", "unexpected end of query", 3},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			perr := parseError(t, p, tt.query)
			assert.Equal(t, tt.message, perr.Message)
			assert.Equal(t, 1, perr.Line)
			assert.Equal(t, tt.column, perr.Column)
		})
	}

	perr := parseError(t, p, "/(/")
	assert.Contains(t, perr.Message, "invalid regexp:")
}

func TestParseBlank(t *testing.T) {
	plan, err := newParser().Parse("   ")
	require.NoError(t, err)
	assert.Nil(t, plan.Expr)
	assert.Equal(t, "", plan.String())

	for _, query := range []string{"#{ x }#", " #{a}# #{ b }#\n"} {
		plan, err := newParser().Parse(query)
		require.NoError(t, err, query)
		assert.Nil(t, plan.Expr, query)
	}
}

func TestFallback(t *testing.T) {
	p := newParser()
	plan := p.Fallback("  foo bar( ")
	assert.Equal(t, fuzzy("foo bar("), plan.String())
	assert.Equal(t, "  foo bar( ", plan.RawQuery)

	assert.Nil(t, p.Fallback("  ").Expr)
}

func TestFieldsResolveMembers(t *testing.T) {
	sets := database.NewTypeSets([]string{database.TypeClass, database.TypeProperty})
	for _, spec := range Fields(sets) {
		if spec.Name == "threadsafety" {
			assert.Equal(t, []string{database.TypeProperty}, spec.Types)
			return
		}
	}
	t.Fatal("threadsafety selector missing")
}

func TestUnescape(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`plain`, "plain"},
		{`a\'b`, "a'b"},
		{`a\"b`, `a"b`},
		{`\t\n\r`, "\t\n\r"},
		{"line\\\ncontinued", "linecontinued"},
		{"line\\\r\ncontinued", "linecontinued"},
		{"lone\\\rcr", "lone\rcr"},
		{`\x41`, "A"},
		{`é`, "é"},
		{`\U0001F600`, "😀"},
		{`\UFFFFFFFF`, "�"},
		{`\q`, "q"},
	}
	for _, tt := range tests {
		got, err := unescape(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := unescape(`\u12`)
	assert.Error(t, err)
}

func TestRegexpSource(t *testing.T) {
	got, err := regexpSource(`a\/b\d.\u002e`)
	require.NoError(t, err)
	assert.Equal(t, `a/b\d.\.`, got)
}

func TestParseConcurrent(t *testing.T) {
	p := newParser()
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 50; j++ {
				plan, err := p.Parse("foo limit:3")
				if err != nil || plan.Directives.Limit != 3 {
					t.Errorf("unexpected result %v %v", plan, err)
					return
				}
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}
