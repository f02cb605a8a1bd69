package search

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartdocfinder/smartdoc/internal/docstore"
)

type fakeDocStore struct {
	docs  map[int64]*docstore.Document
	calls int
	ids   [][]int64
}

func (f *fakeDocStore) FindAllByID(_ context.Context, ids []int64) ([]*docstore.Document, error) {
	f.calls++
	f.ids = append(f.ids, ids)
	var out []*docstore.Document
	for _, id := range ids {
		if d, ok := f.docs[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func TestMaterializePrefersHighlightFragment(t *testing.T) {
	m := NewMaterializer(&fakeDocStore{}, 200)

	results, err := m.Materialize(context.Background(),
		[]FusedCandidate{{DocID: "1", LexicalRank: 1, Match: MatchLexical, HybridScore: 0.016}},
		[]LexicalHit{{DocID: "1", Filename: "contract.txt", Content: "full body", Fragment: "the <mark>renewal</mark> fee"}})
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, int64(1), results[0].DocID)
	assert.Equal(t, "contract.txt", results[0].Filename)
	assert.Equal(t, "the <mark>renewal</mark> fee", results[0].Snippet)
}

func TestMaterializeBatchesSemanticOnlyLookups(t *testing.T) {
	store := &fakeDocStore{docs: map[int64]*docstore.Document{
		4: {ID: 4, FileName: "a.txt", Content: "alpha content"},
		9: {ID: 9, FileName: "b.txt", Content: "beta content"},
	}}
	m := NewMaterializer(store, 200)

	candidates := []FusedCandidate{
		{DocID: "1", LexicalRank: 1, Match: MatchLexical},
		{DocID: "4", SemanticRank: 1, Match: MatchSemantic},
		{DocID: "9", SemanticRank: 2, Match: MatchSemantic},
	}
	lexHits := []LexicalHit{{DocID: "1", Filename: "c.txt", Content: "gamma"}}

	results, err := m.Materialize(context.Background(), candidates, lexHits)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, 1, store.calls, "all semantic-only ids resolve in one round trip")
	assert.ElementsMatch(t, []int64{4, 9}, store.ids[0])
}

func TestMaterializeTruncatesLongContent(t *testing.T) {
	long := strings.Repeat("a", 300)
	store := &fakeDocStore{docs: map[int64]*docstore.Document{
		2: {ID: 2, FileName: "long.txt", Content: long},
	}}
	m := NewMaterializer(store, 200)

	results, err := m.Materialize(context.Background(),
		[]FusedCandidate{{DocID: "2", SemanticRank: 1, Match: MatchSemantic}}, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, strings.Repeat("a", 200)+"...", results[0].Snippet)
}

func TestMaterializeCountsRunesNotBytes(t *testing.T) {
	long := strings.Repeat("ü", 250)
	store := &fakeDocStore{docs: map[int64]*docstore.Document{
		2: {ID: 2, FileName: "de.txt", Content: long},
	}}
	m := NewMaterializer(store, 200)

	results, err := m.Materialize(context.Background(),
		[]FusedCandidate{{DocID: "2", SemanticRank: 1, Match: MatchSemantic}}, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, strings.Repeat("ü", 200)+"...", results[0].Snippet)
}

func TestMaterializeDropsVanishedDocuments(t *testing.T) {
	store := &fakeDocStore{docs: map[int64]*docstore.Document{}}
	m := NewMaterializer(store, 200)

	results, err := m.Materialize(context.Background(),
		[]FusedCandidate{
			{DocID: "404", SemanticRank: 1, Match: MatchSemantic},
			{DocID: "bogus", SemanticRank: 2, Match: MatchSemantic},
		}, nil)
	require.NoError(t, err)
	assert.Empty(t, results, "gaps drop silently instead of failing the page")
}

func TestMaterializeKeepsCandidateOrder(t *testing.T) {
	store := &fakeDocStore{docs: map[int64]*docstore.Document{
		5: {ID: 5, FileName: "five.txt", Content: "five"},
	}}
	m := NewMaterializer(store, 200)

	results, err := m.Materialize(context.Background(),
		[]FusedCandidate{
			{DocID: "8", LexicalRank: 1, Match: MatchLexical},
			{DocID: "5", SemanticRank: 1, Match: MatchSemantic},
		},
		[]LexicalHit{{DocID: "8", Filename: "eight.txt", Content: "eight"}})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, int64(8), results[0].DocID)
	assert.Equal(t, int64(5), results[1].DocID)
}
