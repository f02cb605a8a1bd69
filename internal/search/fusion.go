package search

import (
	"sort"
	"strconv"
)

// DefaultRRFConstant is the standard reciprocal rank fusion dampening
// constant from the literature.
const DefaultRRFConstant = 60

// Fuser merges lexical and semantic rank lists with reciprocal rank fusion.
// Each stream contributes 1/(k+rank) for documents it ranked; a document
// absent from a stream contributes nothing from that stream.
type Fuser struct {
	K int
}

// NewFuser returns a fuser with the given constant, falling back to the
// default when k is not positive.
func NewFuser(k int) *Fuser {
	if k <= 0 {
		k = DefaultRRFConstant
	}
	return &Fuser{K: k}
}

// Fuse unions both rank lists and orders the result by descending hybrid
// score. Score ties break on ascending numeric document id so repeated
// searches over the same corpus return a stable order.
func (f *Fuser) Fuse(lexical, semantic []RankEntry) []FusedCandidate {
	if len(lexical) == 0 && len(semantic) == 0 {
		return nil
	}

	byID := make(map[string]*FusedCandidate, len(lexical)+len(semantic))
	for _, e := range lexical {
		byID[e.DocID] = &FusedCandidate{DocID: e.DocID, LexicalRank: e.Rank}
	}
	for _, e := range semantic {
		if c, ok := byID[e.DocID]; ok {
			c.SemanticRank = e.Rank
		} else {
			byID[e.DocID] = &FusedCandidate{DocID: e.DocID, SemanticRank: e.Rank}
		}
	}

	fused := make([]FusedCandidate, 0, len(byID))
	for _, c := range byID {
		if c.LexicalRank > 0 {
			c.HybridScore += 1.0 / float64(f.K+c.LexicalRank)
		}
		if c.SemanticRank > 0 {
			c.HybridScore += 1.0 / float64(f.K+c.SemanticRank)
		}
		switch {
		case c.LexicalRank > 0 && c.SemanticRank > 0:
			c.Match = MatchHybrid
		case c.LexicalRank > 0:
			c.Match = MatchLexical
		default:
			c.Match = MatchSemantic
		}
		fused = append(fused, *c)
	}

	sort.Slice(fused, func(i, j int) bool {
		if fused[i].HybridScore != fused[j].HybridScore {
			return fused[i].HybridScore > fused[j].HybridScore
		}
		return docIDLess(fused[i].DocID, fused[j].DocID)
	})
	return fused
}

// docIDLess compares ids numerically when both parse, lexically otherwise.
func docIDLess(a, b string) bool {
	na, errA := strconv.ParseInt(a, 10, 64)
	nb, errB := strconv.ParseInt(b, 10, 64)
	if errA == nil && errB == nil {
		return na < nb
	}
	return a < b
}
