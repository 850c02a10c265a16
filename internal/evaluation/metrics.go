package evaluation

import (
	"math"
	"sort"
)

// Gain is the exponential graded gain 2^label - 1.
func Gain(label float64) float64 {
	return math.Exp2(label) - 1
}

// Discount is 1/log2(rank+2) for a zero-based rank.
func Discount(rank int) float64 {
	return 1 / math.Log2(float64(rank)+2)
}

// DCG sums discounted gains of labels listed in ranked order, up to k
// positions. k <= 0 means no cutoff.
func DCG(labels []float64, k int) float64 {
	if k <= 0 || k > len(labels) {
		k = len(labels)
	}
	var dcg float64
	for i := 0; i < k; i++ {
		dcg += Gain(labels[i]) * Discount(i)
	}
	return dcg
}

// IdealDCG is the DCG of labels sorted in descending order.
func IdealDCG(labels []float64, k int) float64 {
	sorted := append([]float64(nil), labels...)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
	return DCG(sorted, k)
}

// NDCG scores a ranked list of doc ids against judged labels. Unjudged docs
// count as non-relevant. ok is false when the query has no relevant doc.
func NDCG(ranked []string, judged map[string]int, k int) (score float64, ok bool) {
	all := make([]float64, 0, len(judged))
	for _, l := range judged {
		all = append(all, float64(l))
	}
	ideal := IdealDCG(all, k)
	if ideal == 0 {
		return 0, false
	}
	labels := make([]float64, len(ranked))
	for i, id := range ranked {
		labels[i] = float64(judged[id])
	}
	return DCG(labels, k) / ideal, true
}

// AveragePrecision treats labels > 0 as relevant.
func AveragePrecision(ranked []string, judged map[string]int) (float64, bool) {
	relevant := 0
	for _, l := range judged {
		if l > 0 {
			relevant++
		}
	}
	if relevant == 0 {
		return 0, false
	}
	hits := 0
	var sum float64
	for i, id := range ranked {
		if judged[id] > 0 {
			hits++
			sum += float64(hits) / float64(i+1)
		}
	}
	return sum / float64(relevant), true
}

// RecallAt is the share of relevant docs found in the first k positions.
func RecallAt(ranked []string, judged map[string]int, k int) (float64, bool) {
	relevant := 0
	for _, l := range judged {
		if l > 0 {
			relevant++
		}
	}
	if relevant == 0 {
		return 0, false
	}
	return float64(hitsAt(ranked, judged, k)) / float64(relevant), true
}

// PrecisionAt divides the hits in the first k positions by k, so short
// rankings are penalised.
func PrecisionAt(ranked []string, judged map[string]int, k int) float64 {
	if k <= 0 {
		return 0
	}
	return float64(hitsAt(ranked, judged, k)) / float64(k)
}

func hitsAt(ranked []string, judged map[string]int, k int) int {
	if k <= 0 || k > len(ranked) {
		k = len(ranked)
	}
	hits := 0
	for _, id := range ranked[:k] {
		if judged[id] > 0 {
			hits++
		}
	}
	return hits
}
