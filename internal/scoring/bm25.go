package scoring

import "github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/index"

// BM25 scores a single field, or the whole document for index.FieldAll.
// Document frequency is counted within that field.
type BM25 struct {
	stats Stats
	field index.Field
	k1    float64
	b     float64
	avg   float64
}

func NewBM25(stats Stats, field index.Field, k1, b float64) *BM25 {
	return &BM25{stats: stats, field: field, k1: k1, b: b, avg: stats.AvgFieldLength(field)}
}

func (s *BM25) Name() string { return qualified("bm25", s.field) }

func (s *BM25) Fields() []index.Field { return s.field.Expand() }

func (s *BM25) Score(terms []string, docID string) float64 {
	n := s.stats.TotalDocs()
	norm := lengthNorm(s.b, s.stats.FieldLength(docID, s.field), s.avg)
	var score float64
	for _, tc := range countTerms(terms) {
		tf := float64(s.stats.TermFreq(tc.term, docID, s.field))
		if tf == 0 {
			continue
		}
		idf := IDF(n, s.stats.FieldDocFreq(tc.term, s.field))
		score += float64(tc.count) * idf * tf * (s.k1 + 1) / (tf + s.k1*norm)
	}
	return score
}
