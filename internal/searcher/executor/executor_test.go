package executor

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/apidocs-search/internal/database"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/internal/database/dbtest"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/internal/fuzzy"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/internal/searcher/expr"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/internal/searcher/ranker"
)

func search(t *testing.T, db *database.Database, query string, limit int) *SearchResult {
	t.Helper()
	plan, err := parser.New(db.TypeSets()).Parse(query)
	require.NoError(t, err)
	result, err := New().Execute(context.Background(), db, plan, limit)
	require.NoError(t, err)
	return result
}

func names(rows []ranker.ScoredRow) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Primary
		if r.Secondary != "" {
			out[i] += "." + r.Secondary
		}
	}
	return out
}

func TestExecute(t *testing.T) {
	db := dbtest.Sample(t)

	tests := []struct {
		query string
		want  []string
	}{
		{"is:class", []string{"Instance", "Part", "Workspace"}},
		{"tag:deprecated", []string{"Workspace", "Part.LocalSimulationTouched"}},
		{"removed:", []string{"Part.LocalSimulationTouched"}},
		{"superclasses:>=1", []string{"Part", "Workspace"}},
		{"members:~>0", []string{"Instance", "Part"}},
		{"paramname:recursive", []string{"Instance.FindFirstChild"}},
		{"'child'", []string{"Instance.GetChildren", "Instance.FindFirstChild"}},
		{`"Part"`, []string{"Part"}},
		{"/^Get/", []string{"Instance.GetChildren"}},
		{"cansave:no", []string{"Instance.Archivable"}},
		{"itemvalue:256..512", []string{"Material.Plastic", "Material.Wood"}},
		{"is:class !tag:deprecated", []string{"Instance", "Part"}},
		{"legacyname:WoodPlanks", []string{"Material.Wood"}},
		{"typecat:Group", []string{"Objects"}},
		{"security:PluginSecurity", []string{"Instance.Archivable"}},
		{"is:class sort:<name", []string{"Instance", "Part", "Workspace"}},
		{"is:class sort:>name", []string{"Workspace", "Part", "Instance"}},
		{"is:class sort:>members", []string{"Instance", "Part", "Workspace"}},
		{"is:class sort:<members", []string{"Workspace", "Part", "Instance"}},
		{"is:class limit:2", []string{"Instance", "Part"}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			result := search(t, db, tt.query, 0)
			assert.Equal(t, tt.want, names(result.Results))
		})
	}
}

func TestExecuteIdempotent(t *testing.T) {
	db := dbtest.Sample(t)
	p := parser.New(db.TypeSets())
	exec := New()

	for _, query := range []string{"is:class,tag:deprecated", "part", "* sort:<name"} {
		t.Run(query, func(t *testing.T) {
			plan, err := p.Parse(query)
			require.NoError(t, err)

			first, err := exec.Execute(context.Background(), db, plan, 0)
			require.NoError(t, err)
			require.NotEmpty(t, first.Results)
			second, err := exec.Execute(context.Background(), db, plan, 0)
			require.NoError(t, err)

			assert.Equal(t, first.TotalHits, second.TotalHits)
			assert.Equal(t, first.Results, second.Results)
		})
	}
}

func TestExecuteDedupsDetailRows(t *testing.T) {
	db := dbtest.Sample(t)
	result := search(t, db, "is:function", 0)
	assert.Equal(t, []string{"Instance.GetChildren", "Instance.FindFirstChild"}, names(result.Results))
	assert.Equal(t, 2, result.TotalHits)
}

func TestExecuteRemovedFalse(t *testing.T) {
	db := dbtest.Sample(t)
	result := search(t, db, "removed:false", 0)
	assert.Equal(t, 17, result.TotalHits)
	for _, r := range result.Results {
		assert.False(t, r.Removed)
	}
}

func TestExecuteFuzzyRanking(t *testing.T) {
	db := dbtest.Sample(t)
	result := search(t, db, "touched", 0)
	require.NotEmpty(t, result.Results)

	_, want := fuzzy.Match("touched", "Touched")
	top := result.Results[0]
	assert.Equal(t, "Touched", top.Secondary)
	assert.Equal(t, want, top.Score)
	for _, r := range result.Results[1:] {
		assert.LessOrEqual(t, r.Score, top.Score)
	}
}

func TestExecuteLimit(t *testing.T) {
	db := dbtest.Sample(t)

	result := search(t, db, "is:class", 1)
	assert.Equal(t, 3, result.TotalHits)
	assert.Len(t, result.Results, 1)

	result = search(t, db, "is:class limit:2", 1)
	assert.Len(t, result.Results, 2)
}

func TestExecuteDirectives(t *testing.T) {
	db := dbtest.Sample(t)

	result := search(t, db, "$tag", 0)
	assert.Equal(t, "tag", result.Meta)
	assert.Equal(t, db.Tags(), result.Listing)
	assert.Empty(t, result.Results)
	assert.Empty(t, result.Expr)

	result = search(t, db, "go:Part memecat", 0)
	assert.Equal(t, "Part", result.Redirect)
	assert.NotEmpty(t, result.Expr)
}

func TestExecuteCanceled(t *testing.T) {
	db := dbtest.Sample(t)
	plan, err := parser.New(db.TypeSets()).Parse("is:class")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = New().Execute(ctx, db, plan, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScoreCombinators(t *testing.T) {
	db := dbtest.Sample(t)
	sets := db.TypeSets()
	instance, ok := db.Row(database.TypeClass, 0)
	require.True(t, ok)

	pos := &expr.Any{Types: []string{database.TypeClass}}
	neg := &expr.Op{Types: sets.All, Field: database.Primary, Method: expr.Eq, Args: []expr.Arg{expr.StringArg("Part")}}
	none := &expr.Op{Types: []string{database.TypeEnum}, Field: database.Primary, Method: expr.True}
	members := &expr.Op{Types: []string{database.TypeClass}, Field: database.Members, Method: expr.NGe, Args: []expr.Arg{expr.NumberArg(1)}}

	tests := []struct {
		name string
		node expr.Node
		want int
	}{
		{"any", pos, 1},
		{"mismatch", neg, -1},
		{"inapplicable", none, 0},
		{"valued", members, 3},
		{"and takes minimum", &expr.And{Operands: []expr.Node{members, pos}}, 1},
		{"and stops at mismatch", &expr.And{Operands: []expr.Node{neg, members}}, -1},
		{"and stops at inapplicable", &expr.And{Operands: []expr.Node{none, members}}, 0},
		{"or first positive", &expr.Or{Operands: []expr.Node{neg, members, pos}}, 3},
		{"or mismatch", &expr.Or{Operands: []expr.Node{none, neg}}, -1},
		{"or inapplicable", &expr.Or{Operands: []expr.Node{none}}, 0},
		{"not mismatch", &expr.Not{Operand: neg}, 1},
		{"not match", &expr.Not{Operand: members}, -1},
		{"not inapplicable", &expr.Not{Operand: none}, 0},
		{"unknown tag", &expr.Flag{Types: sets.All, Field: database.Flags, Tag: "bogus"}, 0},
		{"tag set", &expr.Flag{Types: sets.All, Field: database.Flags, Tag: "notcreatable"}, 1},
		{"absent field", &expr.Op{Types: sets.All, Field: database.Ancestor, Method: expr.True}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Score(instance, tt.node))
		})
	}
}

func TestScoreNaN(t *testing.T) {
	db := dbtest.Sample(t)
	item, _ := db.Row(database.TypeEnumItem, 0)
	nan := expr.NumberArg(math.NaN())
	for _, m := range []expr.Method{expr.Eq, expr.Ne, expr.Lt, expr.Ge} {
		op := &expr.Op{Types: []string{database.TypeEnumItem}, Field: database.ItemValue, Method: m, Args: []expr.Arg{nan}}
		assert.Equal(t, -1, Score(item, op), m.String())
	}
}
