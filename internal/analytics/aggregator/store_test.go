package aggregator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Adithya-Monish-Kumar-K/apidocs-search/internal/analytics"
)

func TestRankings(t *testing.T) {
	stats := analytics.AggregatedStats{
		TopQueries:      []analytics.QueryCount{{Query: "part", Count: 4}},
		FallbackQueries: []analytics.QueryCount{{Query: "is:bogus", Count: 1}},
		TopTypes:        []analytics.QueryCount{{Query: "Class", Count: 4}},
	}
	r := rankings(stats)
	assert.Len(t, r, 4)
	assert.Equal(t, stats.TopQueries, r[RankingTop])
	assert.Empty(t, r[RankingZeroResult])
	assert.Equal(t, "is:bogus", r[RankingFallback][0].Query)
	assert.Equal(t, "Class", r[RankingType][0].Query)
}
