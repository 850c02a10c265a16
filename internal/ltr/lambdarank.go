package ltr

import (
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/evaluation"
)

// lambdaGroup writes LambdaRank gradients and hessians for one query group.
// scores, labels, grad and hess are the group's slices of the flat arrays.
// Pairs are formed between a document inside the top truncation positions
// (by current score) and any document with a different label.
func lambdaGroup(scores, labels, grad, hess []float64, sigma float64, truncation int) {
	for i := range grad {
		grad[i], hess[i] = 0, 0
	}
	n := len(scores)
	if n < 2 {
		return
	}
	maxDCG := evaluation.IdealDCG(labels, truncation)
	if maxDCG <= 0 {
		return
	}
	inverseMaxDCG := 1 / maxDCG

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })
	best, worst := scores[order[0]], scores[order[n-1]]

	var sumLambdas float64
	limit := min(n, truncation)
	for i := 0; i < limit; i++ {
		hi := order[i]
		for j := i + 1; j < n; j++ {
			lo := order[j]
			if labels[hi] == labels[lo] {
				continue
			}
			high, low := hi, lo
			if labels[lo] > labels[hi] {
				high, low = lo, hi
			}
			deltaScore := scores[high] - scores[low]
			deltaNDCG := math.Abs(evaluation.Gain(labels[high])-evaluation.Gain(labels[low])) *
				math.Abs(evaluation.Discount(i)-evaluation.Discount(j)) * inverseMaxDCG
			if best != worst {
				deltaNDCG /= 0.01 + math.Abs(deltaScore)
			}
			rho := 1 / (1 + math.Exp(sigma*deltaScore))
			lambda := -sigma * rho * deltaNDCG
			h := sigma * sigma * rho * (1 - rho) * deltaNDCG

			grad[high] += lambda
			grad[low] -= lambda
			hess[high] += h
			hess[low] += h
			sumLambdas -= 2 * lambda
		}
	}
	if sumLambdas > 0 {
		norm := math.Log2(1+sumLambdas) / sumLambdas
		for i := range grad {
			grad[i] *= norm
			hess[i] *= norm
		}
	}
}

// groupNDCG is NDCG@k of one group ordered by scores. A group without any
// relevant document scores 1.
func groupNDCG(scores, labels []float64, k int) float64 {
	maxDCG := evaluation.IdealDCG(labels, k)
	if maxDCG <= 0 {
		return 1
	}
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })
	ranked := make([]float64, len(order))
	for i, o := range order {
		ranked[i] = labels[o]
	}
	return evaluation.DCG(ranked, k) / maxDCG
}
