package query

import (
	"testing"

	bquery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"trims and lowercases", "  Invoice Report  ", "invoice report"},
		{"underscores to spaces", "quarterly_report_2024", "quarterly report 2024"},
		{"hyphens to spaces", "year-end-summary", "year end summary"},
		{"strips punctuation", "what is the total? (net)", "what is the total net"},
		{"keeps unicode", "Änderung Vertrag", "änderung vertrag"},
		{"empty", "   ", ""},
		{"only punctuation", "()[]?!", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.raw))
		})
	}
}

func TestBuildEmptyQueryMatchesNothing(t *testing.T) {
	b := NewBuilder(2)
	for _, raw := range []string{"", "   ", "()!?"} {
		q := b.Build(raw)
		assert.IsType(t, &bquery.MatchNoneQuery{}, q, "raw=%q", raw)
	}
}

func TestBuildProducesBooleanQuery(t *testing.T) {
	b := NewBuilder(2)
	q := b.Build("invoice total")
	require.IsType(t, &bquery.BooleanQuery{}, q)
}

func TestBuildShortQueryGetsExpansion(t *testing.T) {
	b := NewBuilder(2)

	short := b.Build("invoice").(*bquery.BooleanQuery)
	long := b.Build("what is the total of the march invoice").(*bquery.BooleanQuery)

	// The expanded single-token query carries strictly more optional
	// clauses than its token count; the long query only gets the
	// autocomplete prefixes.
	shortShould := short.Should.(*bquery.DisjunctionQuery)
	longShould := long.Should.(*bquery.DisjunctionQuery)
	assert.Greater(t, len(shortShould.Disjuncts), 1)
	assert.Equal(t, 8, len(longShould.Disjuncts), "one prefix clause per token")
}

func TestNewBuilderDefaultsCeiling(t *testing.T) {
	assert.Equal(t, 2, NewBuilder(0).FuzzyMaxTokens)
}
