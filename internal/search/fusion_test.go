package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuseEmptyStreams(t *testing.T) {
	f := NewFuser(60)
	assert.Nil(t, f.Fuse(nil, nil))
}

func TestFuseUnionAndScores(t *testing.T) {
	f := NewFuser(60)
	lexical := []RankEntry{
		{DocID: "1", Rank: 1},
		{DocID: "2", Rank: 2},
		{DocID: "3", Rank: 3},
	}
	semantic := []RankEntry{
		{DocID: "2", Rank: 1},
		{DocID: "4", Rank: 2},
	}

	fused := f.Fuse(lexical, semantic)
	require.Len(t, fused, 4)

	byID := make(map[string]FusedCandidate)
	for _, c := range fused {
		byID[c.DocID] = c
	}

	// Document 2 appears in both streams and sums both contributions.
	two := byID["2"]
	assert.Equal(t, MatchHybrid, two.Match)
	assert.Equal(t, 2, two.LexicalRank)
	assert.Equal(t, 1, two.SemanticRank)
	assert.InDelta(t, 1.0/62+1.0/61, two.HybridScore, 1e-12)

	// Single-stream documents carry only their own contribution.
	assert.Equal(t, MatchLexical, byID["1"].Match)
	assert.InDelta(t, 1.0/61, byID["1"].HybridScore, 1e-12)
	assert.Equal(t, MatchSemantic, byID["4"].Match)
	assert.InDelta(t, 1.0/62, byID["4"].HybridScore, 1e-12)
	assert.Zero(t, byID["4"].LexicalRank)

	// Both streams beat either alone; better single ranks beat worse ones.
	assert.Equal(t, "2", fused[0].DocID)
	assert.Equal(t, "1", fused[1].DocID)
	assert.Equal(t, "4", fused[2].DocID)
	assert.Equal(t, "3", fused[3].DocID)
}

func TestFuseHybridBeatsSingleStreamAtSameRank(t *testing.T) {
	f := NewFuser(60)
	fused := f.Fuse(
		[]RankEntry{{DocID: "10", Rank: 1}, {DocID: "20", Rank: 2}},
		[]RankEntry{{DocID: "20", Rank: 5}},
	)
	require.Len(t, fused, 2)
	assert.Equal(t, "20", fused[0].DocID, "any second-stream contribution should outweigh a lone rank-1")
}

func TestFuseTieBreaksOnNumericDocID(t *testing.T) {
	f := NewFuser(60)
	// Same rank in different streams gives identical scores.
	fused := f.Fuse(
		[]RankEntry{{DocID: "11", Rank: 1}},
		[]RankEntry{{DocID: "2", Rank: 1}},
	)
	require.Len(t, fused, 2)
	assert.Equal(t, "2", fused[0].DocID, "numeric comparison, not lexicographic")
	assert.Equal(t, "11", fused[1].DocID)
}

func TestFuseDefaultConstant(t *testing.T) {
	f := NewFuser(0)
	assert.Equal(t, DefaultRRFConstant, f.K)
}
