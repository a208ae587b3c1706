package executor

import (
	"context"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/apidocs-search/internal/database/dbtest"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/internal/searcher/parser"
)

var benchQueries = []struct {
	name  string
	query string
}{
	{"fuzzy", "child"},
	{"type", "is:class"},
	{"boolean", "is:class !tag:deprecated"},
	{"range", "itemvalue:256..512"},
	{"regexp", "/^Get/"},
	{"sorted", "is:class sort:>members"},
}

// BenchmarkParse measures query parsing for queries of varying complexity.
func BenchmarkParse(b *testing.B) {
	p := parser.New(dbtest.Sample(b).TypeSets())
	for _, q := range benchQueries {
		b.Run(q.name, func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				if _, err := p.Parse(q.query); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkExecute measures evaluation of parsed plans against the sample
// database.
func BenchmarkExecute(b *testing.B) {
	db := dbtest.Sample(b)
	p := parser.New(db.TypeSets())
	exec := New()
	ctx := context.Background()
	for _, q := range benchQueries {
		plan, err := p.Parse(q.query)
		if err != nil {
			b.Fatal(err)
		}
		b.Run(q.name, func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				if _, err := exec.Execute(ctx, db, plan, 50); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
