package scoring

import (
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/index"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/pkg/config"
)

type BM25FParams struct {
	K1      float64
	Weights [index.NumFields]float64
	B       [index.NumFields]float64
}

func BM25FParamsFromConfig(cfg config.ScoringConfig) BM25FParams {
	return BM25FParams{
		K1: cfg.K1,
		Weights: [index.NumFields]float64{
			index.FieldTitle:    cfg.Title.Weight,
			index.FieldKeywords: cfg.Keywords.Weight,
			index.FieldBody:     cfg.Body.Weight,
		},
		B: [index.NumFields]float64{
			index.FieldTitle:    cfg.Title.B,
			index.FieldKeywords: cfg.Keywords.B,
			index.FieldBody:     cfg.Body.B,
		},
	}
}

// BM25F normalises each field's term frequency by its own length, combines
// the fields with weights, saturates once and multiplies by the corpus-wide
// IDF:
//
//	tf'  = Σ_f w_f · tf_f / (1 - b_f + b_f·len_f/avg_f)
//	score = Σ_t idf(t) · tf'(k1+1) / (k1 + tf')
type BM25F struct {
	stats  Stats
	params BM25FParams
	fields []index.Field
	avg    [index.NumFields]float64
}

func NewBM25F(stats Stats, params BM25FParams) *BM25F {
	s := &BM25F{stats: stats, params: params}
	for _, f := range index.Fields {
		if params.Weights[f] > 0 {
			s.fields = append(s.fields, f)
		}
		s.avg[f] = stats.AvgFieldLength(f)
	}
	return s
}

func (s *BM25F) Name() string { return "bm25f" }

func (s *BM25F) Fields() []index.Field { return s.fields }

func (s *BM25F) Score(terms []string, docID string) float64 {
	n := s.stats.TotalDocs()
	var score float64
	for _, tc := range countTerms(terms) {
		idf := IDF(n, s.stats.DocFreq(tc.term))
		if idf == 0 {
			continue
		}
		var tf float64
		for _, f := range s.fields {
			raw := s.stats.TermFreq(tc.term, docID, f)
			if raw == 0 {
				continue
			}
			norm := lengthNorm(s.params.B[f], s.stats.FieldLength(docID, f), s.avg[f])
			tf += s.params.Weights[f] * float64(raw) / norm
		}
		if tf == 0 {
			continue
		}
		score += float64(tc.count) * idf * tf * (s.params.K1 + 1) / (s.params.K1 + tf)
	}
	return score
}
