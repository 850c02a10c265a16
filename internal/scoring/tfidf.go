package scoring

import (
	"math"

	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/index"
)

// TFIDF uses Robertson's saturated term frequency with a log2 IDF:
//
//	k1·tf / (tf + k1·(1 - b + b·len/avg)) · log2(N/df + 1)
type TFIDF struct {
	stats Stats
	field index.Field
	k1    float64
	b     float64
	avg   float64
}

func NewTFIDF(stats Stats, field index.Field, k1, b float64) *TFIDF {
	return &TFIDF{stats: stats, field: field, k1: k1, b: b, avg: stats.AvgFieldLength(field)}
}

func (s *TFIDF) Name() string { return qualified("tfidf", s.field) }

func (s *TFIDF) Fields() []index.Field { return s.field.Expand() }

func (s *TFIDF) Score(terms []string, docID string) float64 {
	n := float64(s.stats.TotalDocs())
	norm := lengthNorm(s.b, s.stats.FieldLength(docID, s.field), s.avg)
	var score float64
	for _, tc := range countTerms(terms) {
		tf := float64(s.stats.TermFreq(tc.term, docID, s.field))
		if tf == 0 {
			continue
		}
		df := float64(s.stats.FieldDocFreq(tc.term, s.field))
		robertson := s.k1 * tf / (tf + s.k1*norm)
		score += float64(tc.count) * robertson * math.Log2(n/df+1)
	}
	return score
}
