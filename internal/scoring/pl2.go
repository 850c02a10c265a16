package scoring

import (
	"math"

	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/index"
)

// PL2 is the divergence-from-randomness model with Poisson randomness,
// Laplace after-effect and normalisation 2. Each term's contribution is
// floored at zero so very common terms cannot push a document down.
type PL2 struct {
	stats Stats
	field index.Field
	c     float64
	avg   float64
}

func NewPL2(stats Stats, field index.Field, c float64) *PL2 {
	return &PL2{stats: stats, field: field, c: c, avg: stats.AvgFieldLength(field)}
}

func (s *PL2) Name() string { return qualified("pl2", s.field) }

func (s *PL2) Fields() []index.Field { return s.field.Expand() }

func (s *PL2) Score(terms []string, docID string) float64 {
	n := float64(s.stats.TotalDocs())
	length := float64(s.stats.FieldLength(docID, s.field))
	if n == 0 || length == 0 || s.avg == 0 {
		return 0
	}
	var score float64
	for _, tc := range countTerms(terms) {
		raw := float64(s.stats.TermFreq(tc.term, docID, s.field))
		if raw == 0 {
			continue
		}
		tfn := raw * math.Log2(1+s.c*s.avg/length)
		f := float64(s.stats.CollectionFreq(tc.term, s.field)) / n
		w := (tfn*math.Log2(1/f) +
			f/math.Ln2 +
			0.5*math.Log2(2*math.Pi*tfn) +
			tfn*(math.Log2(tfn)-1/math.Ln2)) / (tfn + 1)
		if w > 0 {
			score += float64(tc.count) * w
		}
	}
	return score
}
