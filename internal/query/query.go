// Package query turns raw user query strings into structured lexical queries
// over the text index.
package query

import (
	"log/slog"
	"strings"

	"github.com/blevesearch/bleve/v2"
	bquery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/smartdocfinder/smartdoc/internal/index"
)

// Field boosts for the main multi-field match.
const (
	filenameBoost = 2.0
	contentBoost  = 1.0
)

// fuzzyMinTokenLen is the minimum token length eligible for fuzzy expansion.
// One- and two-character tokens within edit distance 1 match near everything.
const fuzzyMinTokenLen = 3

// punctuation stripped during normalization.
const strippedPunctuation = "(){}[].,!?"

// Builder constructs lexical index queries from raw query strings.
type Builder struct {
	// FuzzyMaxTokens is the token-count ceiling below which fuzzy and
	// wildcard expansion is applied. Short queries are likely keywords and
	// benefit from wider recall; long natural-language queries would only
	// gain noise and latency.
	FuzzyMaxTokens int
}

// NewBuilder returns a Builder with the given expansion ceiling.
func NewBuilder(fuzzyMaxTokens int) *Builder {
	if fuzzyMaxTokens <= 0 {
		fuzzyMaxTokens = 2
	}
	return &Builder{FuzzyMaxTokens: fuzzyMaxTokens}
}

// Normalize canonicalizes a raw query: trim, lowercase, underscores and
// hyphens to spaces, bracket/sentence punctuation stripped.
func Normalize(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '_' || r == '-':
			b.WriteRune(' ')
		case strings.ContainsRune(strippedPunctuation, r):
			// dropped
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// Build constructs the structured lexical query for a raw query string.
// It never fails: an empty or unusable query yields a valid match-none query
// that the searcher executes normally, so one bad query cannot take down the
// pipeline.
func (b *Builder) Build(raw string) (q bquery.Query) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("query construction failed, substituting match-none",
				slog.String("query", raw),
				slog.Any("cause", r))
			q = bleve.NewMatchNoneQuery()
		}
	}()

	normalized := Normalize(raw)
	tokens := strings.Fields(normalized)
	if len(tokens) == 0 {
		return bleve.NewMatchNoneQuery()
	}

	boolQ := bleve.NewBooleanQuery()

	// Main match: every term must appear in filename or content
	// (AND-of-terms, fields may differ per term). Filename matches are
	// boosted so name hits outrank body hits.
	for _, tok := range tokens {
		inFilename := bleve.NewMatchQuery(tok)
		inFilename.SetField(index.FieldFilename)
		inFilename.SetBoost(filenameBoost)

		inContent := bleve.NewMatchQuery(tok)
		inContent.SetField(index.FieldContent)
		inContent.SetBoost(contentBoost)

		boolQ.AddMust(bleve.NewDisjunctionQuery(inFilename, inContent))
	}

	// Autocomplete: partially typed filenames surface early.
	for _, tok := range tokens {
		prefix := bleve.NewPrefixQuery(tok)
		prefix.SetField(index.FieldFilenameAutocomplete)
		boolQ.AddShould(prefix)
	}

	// Recall expansion for short, likely-keyword queries.
	if len(tokens) <= b.FuzzyMaxTokens {
		for _, tok := range tokens {
			if len(tok) >= fuzzyMinTokenLen {
				boolQ.AddShould(fuzzyOver(tok, index.FieldFilename), fuzzyOver(tok, index.FieldContent))
			}
			boolQ.AddShould(wildcardOver(tok, index.FieldFilename), wildcardOver(tok, index.FieldContent))
		}
	}

	return boolQ
}

func fuzzyOver(token, field string) bquery.Query {
	fq := bleve.NewFuzzyQuery(token)
	fq.SetField(field)
	fq.SetFuzziness(1)
	return fq
}

func wildcardOver(token, field string) bquery.Query {
	wq := bleve.NewWildcardQuery("*" + token + "*")
	wq.SetField(field)
	return wq
}
