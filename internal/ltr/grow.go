package ltr

import (
	"math"
	"math/rand/v2"
	"sort"
)

type histBin struct {
	g, h  float64
	count int
}

// histogram is [feature][bin].
type histogram [][]histBin

func newHistogram(m *binnedMatrix, features []int) histogram {
	h := make(histogram, len(m.mappers))
	for _, f := range features {
		h[f] = make([]histBin, m.mappers[f].numBins())
	}
	return h
}

func (h histogram) fill(m *binnedMatrix, features []int, rows []int, grad, hess []float64) {
	for _, f := range features {
		bins := m.bins[f]
		hf := h[f]
		for _, r := range rows {
			b := &hf[bins[r]]
			b.g += grad[r]
			b.h += hess[r]
			b.count++
		}
	}
}

// subtract returns parent minus child, the histogram of the sibling.
func (h histogram) subtract(child histogram, features []int) histogram {
	out := make(histogram, len(h))
	for _, f := range features {
		out[f] = make([]histBin, len(h[f]))
		for b := range h[f] {
			out[f][b] = histBin{
				g:     h[f][b].g - child[f][b].g,
				h:     h[f][b].h - child[f][b].h,
				count: h[f][b].count - child[f][b].count,
			}
		}
	}
	return out
}

type split struct {
	feature int
	bin     int
	gain    float64
}

type leaf struct {
	node  int
	depth int
	rows  []int
	hist  histogram
	g, h  float64
	best  split
}

type grower struct {
	p        Params
	m        *binnedMatrix
	features []int
	grad     []float64
	hess     []float64
}

func (gr *grower) threshold(g float64) float64 {
	a := gr.p.RegAlpha
	switch {
	case g > a:
		return g - a
	case g < -a:
		return g + a
	default:
		return 0
	}
}

func (gr *grower) score(g, h float64) float64 {
	den := h + gr.p.RegLambda
	if den <= 0 {
		return 0
	}
	t := gr.threshold(g)
	return t * t / den
}

func (gr *grower) leafValue(g, h float64) float64 {
	den := h + gr.p.RegLambda
	if den <= 0 {
		return 0
	}
	return -gr.threshold(g) / den * gr.p.LearningRate
}

func (gr *grower) findSplit(l *leaf) {
	l.best = split{feature: -1}
	if gr.p.MaxDepth > 0 && l.depth >= gr.p.MaxDepth {
		return
	}
	if len(l.rows) < 2*gr.p.MinDataInLeaf {
		return
	}
	parent := gr.score(l.g, l.h)
	for _, f := range gr.features {
		bins := l.hist[f]
		var gl, hl float64
		var cl int
		for b := 0; b < len(bins)-1; b++ {
			gl += bins[b].g
			hl += bins[b].h
			cl += bins[b].count
			cr := len(l.rows) - cl
			if cl < gr.p.MinDataInLeaf {
				continue
			}
			if cr < gr.p.MinDataInLeaf {
				break
			}
			gr2, hr := l.g-gl, l.h-hl
			if hl < gr.p.MinSumHessianInLeaf || hr < gr.p.MinSumHessianInLeaf {
				continue
			}
			gain := gr.score(gl, hl) + gr.score(gr2, hr) - parent
			if gain > l.best.gain+1e-12 {
				l.best = split{feature: f, bin: b, gain: gain}
			}
		}
	}
}

func (gr *grower) newLeaf(node, depth int, rows []int, hist histogram) *leaf {
	l := &leaf{node: node, depth: depth, rows: rows, hist: hist}
	for _, r := range rows {
		l.g += gr.grad[r]
		l.h += gr.hess[r]
	}
	gr.findSplit(l)
	return l
}

// grow builds one tree leaf-wise: the leaf with the largest gain splits next
// until NumLeaves is reached or no leaf has a valid split. ok is false when
// the root itself cannot split.
func (gr *grower) grow(rows []int) (Tree, bool) {
	rootHist := newHistogram(gr.m, gr.features)
	rootHist.fill(gr.m, gr.features, rows, gr.grad, gr.hess)

	tree := Tree{Nodes: []Node{{Feature: -1}}}
	leaves := []*leaf{gr.newLeaf(0, 0, rows, rootHist)}
	if leaves[0].best.feature < 0 {
		return tree, false
	}

	for len(leaves) < max(gr.p.NumLeaves, 2) {
		bestIdx := -1
		for i, l := range leaves {
			if l.best.feature >= 0 && (bestIdx < 0 || l.best.gain > leaves[bestIdx].best.gain) {
				bestIdx = i
			}
		}
		if bestIdx < 0 {
			break
		}
		l := leaves[bestIdx]
		s := l.best
		bins := gr.m.bins[s.feature]
		var leftRows, rightRows []int
		for _, r := range l.rows {
			if int(bins[r]) <= s.bin {
				leftRows = append(leftRows, r)
			} else {
				rightRows = append(rightRows, r)
			}
		}

		small, large := leftRows, rightRows
		if len(small) > len(large) {
			small, large = large, small
		}
		smallHist := newHistogram(gr.m, gr.features)
		smallHist.fill(gr.m, gr.features, small, gr.grad, gr.hess)
		largeHist := l.hist.subtract(smallHist, gr.features)
		leftHist, rightHist := smallHist, largeHist
		if len(leftRows) > len(rightRows) {
			leftHist, rightHist = largeHist, smallHist
		}

		leftNode, rightNode := len(tree.Nodes), len(tree.Nodes)+1
		tree.Nodes = append(tree.Nodes, Node{Feature: -1}, Node{Feature: -1})
		tree.Nodes[l.node] = Node{
			Feature:   s.feature,
			Threshold: gr.m.mappers[s.feature].threshold(s.bin),
			Left:      leftNode,
			Right:     rightNode,
		}
		leaves[bestIdx] = gr.newLeaf(leftNode, l.depth+1, leftRows, leftHist)
		leaves = append(leaves, gr.newLeaf(rightNode, l.depth+1, rightRows, rightHist))
	}

	for _, l := range leaves {
		tree.Nodes[l.node].Value = gr.leafValue(l.g, l.h)
	}
	return tree, true
}

// sampleIndices draws round(fraction*n) distinct indices in ascending order.
// A fraction outside (0, 1) keeps all of them.
func sampleIndices(rng *rand.Rand, n int, fraction float64) []int {
	if fraction >= 1 || fraction <= 0 {
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		return all
	}
	k := max(int(math.Round(float64(n)*fraction)), 1)
	picked := rng.Perm(n)[:k]
	sort.Ints(picked)
	return picked
}
