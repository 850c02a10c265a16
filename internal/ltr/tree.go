package ltr

// Node is a tree node. Leaves have Feature == -1 and carry Value; internal
// nodes send x[Feature] <= Threshold to Left.
type Node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold,omitempty"`
	Left      int     `json:"left,omitempty"`
	Right     int     `json:"right,omitempty"`
	Value     float64 `json:"value,omitempty"`
}

func (n Node) IsLeaf() bool { return n.Feature < 0 }

// Tree is a regression tree stored as a flat node slice rooted at index 0.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

func (t Tree) Predict(x []float64) float64 {
	if len(t.Nodes) == 0 {
		return 0
	}
	i := 0
	for {
		n := t.Nodes[i]
		if n.IsLeaf() {
			return n.Value
		}
		if clean(x[n.Feature]) <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

func (t Tree) NumLeaves() int {
	n := 0
	for _, node := range t.Nodes {
		if node.IsLeaf() {
			n++
		}
	}
	return n
}

func (t Tree) depth(i int) int {
	n := t.Nodes[i]
	if n.IsLeaf() {
		return 0
	}
	return 1 + max(t.depth(n.Left), t.depth(n.Right))
}

// Depth is the number of edges on the longest root-to-leaf path.
func (t Tree) Depth() int {
	if len(t.Nodes) == 0 {
		return 0
	}
	return t.depth(0)
}
