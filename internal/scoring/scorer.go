// Package scoring implements the relevance functions used for candidate
// generation and as ranking features: BM25F over weighted fields, single
// field BM25, Robertson TF-IDF and the DFR PL2 model. All of them read term
// statistics through Stats, which *index.FieldIndex satisfies.
package scoring

import (
	"fmt"
	"math"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/index"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/pkg/errors"
)

// Stats is the term-statistics provider shared by every scorer.
type Stats interface {
	TotalDocs() int
	DocFreq(term string) int
	FieldDocFreq(term string, field index.Field) int
	TermFreq(term, docID string, field index.Field) int
	FieldLength(docID string, field index.Field) int
	AvgFieldLength(field index.Field) float64
	CollectionFreq(term string, field index.Field) int
	TotalTokens(field index.Field) int64
}

// Scorer assigns a relevance score to one document for an analysed query.
// Repeated query terms contribute once per occurrence. Implementations are
// safe for concurrent use.
type Scorer interface {
	Name() string
	// Fields lists the stored fields whose postings can produce a non-zero
	// score.
	Fields() []index.Field
	Score(terms []string, docID string) float64
}

// IDF is the BM25 inverse document frequency ln(1 + (N-df+0.5)/(df+0.5)),
// clamped at zero. Absent terms get zero.
func IDF(totalDocs, docFreq int) float64 {
	if docFreq <= 0 || totalDocs <= 0 {
		return 0
	}
	n, df := float64(totalDocs), float64(docFreq)
	return math.Max(0, math.Log(1+(n-df+0.5)/(df+0.5)))
}

// lengthNorm is 1 - b + b*len/avg, or 1 when the field is empty corpus-wide.
func lengthNorm(b float64, length int, avg float64) float64 {
	if avg == 0 {
		return 1
	}
	return 1 - b + b*float64(length)/avg
}

type termCount struct {
	term  string
	count int
}

// countTerms collapses repeated terms preserving first-seen order so the
// float summation order is stable.
func countTerms(terms []string) []termCount {
	out := make([]termCount, 0, len(terms))
	pos := make(map[string]int, len(terms))
	for _, t := range terms {
		if t == "" {
			continue
		}
		if i, ok := pos[t]; ok {
			out[i].count++
			continue
		}
		pos[t] = len(out)
		out = append(out, termCount{term: t, count: 1})
	}
	return out
}

// ByName builds a scorer from its configured name:
//
//	bm25f
//	bm25, bm25.title, bm25.keywords, bm25.body
//	tfidf, tfidf.<field>
//	pl2, pl2.<field>
//
// Without a field suffix the single-field models score the whole document.
func ByName(name string, stats Stats, cfg config.ScoringConfig) (Scorer, error) {
	model, fieldName, _ := strings.Cut(strings.ToLower(strings.TrimSpace(name)), ".")
	field, err := index.ParseField(fieldName)
	if err != nil {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, "scoring.ByName", "scorer %q: %v", name, err)
	}
	switch model {
	case "bm25f":
		if fieldName != "" {
			return nil, apperrors.Newf(apperrors.ErrInvalidInput, "scoring.ByName", "scorer %q: bm25f takes no field", name)
		}
		return NewBM25F(stats, BM25FParamsFromConfig(cfg)), nil
	case "bm25":
		return NewBM25(stats, field, cfg.K1, cfg.B), nil
	case "tfidf":
		return NewTFIDF(stats, field, cfg.K1, cfg.B), nil
	case "pl2":
		return NewPL2(stats, field, cfg.PL2C), nil
	default:
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, "scoring.ByName", "unknown scorer %q", name)
	}
}

// ByNames builds scorers in the given order.
func ByNames(names []string, stats Stats, cfg config.ScoringConfig) ([]Scorer, error) {
	scorers := make([]Scorer, 0, len(names))
	for _, name := range names {
		s, err := ByName(name, stats, cfg)
		if err != nil {
			return nil, err
		}
		scorers = append(scorers, s)
	}
	return scorers, nil
}

func qualified(model string, field index.Field) string {
	if field == index.FieldAll {
		return model
	}
	return fmt.Sprintf("%s.%s", model, field)
}
