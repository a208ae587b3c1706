package ranker

import (
	"cmp"
	"slices"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/apidocs-search/internal/database"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/internal/searcher/parser"
)

// ScoredRow is one search hit.
type ScoredRow struct {
	Type      string   `json:"type"`
	Primary   string   `json:"primary"`
	Secondary string   `json:"secondary,omitempty"`
	Score     int      `json:"score"`
	Removed   bool     `json:"removed,omitempty"`
	Tags      []string `json:"tags,omitempty"`

	row database.Row
	set bool
}

// NewScoredRow describes row with the score it was kept with.
func NewScoredRow(row database.Row, score int) ScoredRow {
	removed, _ := row.Removed()
	return ScoredRow{
		Type:      row.Type(),
		Primary:   row.Primary().Str(),
		Secondary: row.Secondary().Str(),
		Score:     score,
		Removed:   removed,
		Tags:      row.Tags(),
		row:       row,
		set:       true,
	}
}

// Row returns the database row of a hit. It is false for hits that were
// restored from a cached response.
func (s ScoredRow) Row() (database.Row, bool) { return s.row, s.set }

// Rank orders rows by descending score, then by the sort column if one is
// given, and keeps at most limit of them. Both sorts are stable so rows keep
// their scan order on ties.
func Rank(rows []ScoredRow, sort *parser.Sort, limit int) []ScoredRow {
	slices.SortStableFunc(rows, func(a, b ScoredRow) int {
		return cmp.Compare(b.Score, a.Score)
	})

	if sort != nil {
		switch sort.Column {
		case "score":
			if !sort.Descending {
				slices.SortStableFunc(rows, func(a, b ScoredRow) int {
					return cmp.Compare(a.Score, b.Score)
				})
			}
		case "name":
			slices.SortStableFunc(rows, func(a, b ScoredRow) int {
				c := cmp.Or(
					cmp.Compare(strings.ToLower(a.Primary), strings.ToLower(b.Primary)),
					cmp.Compare(strings.ToLower(a.Secondary), strings.ToLower(b.Secondary)),
				)
				if sort.Descending {
					return -c
				}
				return c
			})
		default:
			slices.SortStableFunc(rows, byField(sort.Field, sort.Descending))
		}
	}

	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}

// byField compares rows on a field. Rows without the field, or restored
// without their database row, go last regardless of direction.
func byField(f database.Field, descending bool) func(a, b ScoredRow) int {
	value := func(s ScoredRow) (database.Value, bool) {
		if !s.set {
			return database.Value{}, false
		}
		v := s.row.Field(f)
		return v, v.Valid()
	}
	return func(a, b ScoredRow) int {
		va, oka := value(a)
		vb, okb := value(b)
		switch {
		case !oka && !okb:
			return 0
		case !oka:
			return 1
		case !okb:
			return -1
		}
		var c int
		if f.Kind.Stringlike() {
			c = cmp.Compare(strings.ToLower(va.Str()), strings.ToLower(vb.Str()))
		} else {
			c = cmp.Compare(va.Num(), vb.Num())
		}
		if descending {
			return -c
		}
		return c
	}
}
