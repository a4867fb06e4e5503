package forest

import (
	"math"
	"sort"
)

const leaf = -1

// Node is one flattened tree node. Leaves have Feature == -1. Rows with
// value <= Threshold go Left.
type Node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold,omitempty"`
	Left      int     `json:"left,omitempty"`
	Right     int     `json:"right,omitempty"`
	Value     float64 `json:"value"`
}

// Tree stores its nodes in pre-order; the root is Nodes[0].
type Tree struct {
	Nodes []Node `json:"nodes"`
}

func (t *Tree) predict(row []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Feature == leaf {
			return n.Value
		}
		if row[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

type builder struct {
	x      [][]float64
	y      []float64
	width  int
	params Params
	nodes  []Node
}

func (b *builder) build(idx []int) Tree {
	b.nodes = make([]Node, 0, 2*len(idx))
	b.grow(idx, 0)
	return Tree{Nodes: b.nodes}
}

// grow appends the subtree for idx and returns the index of its root.
func (b *builder) grow(idx []int, depth int) int {
	self := len(b.nodes)
	b.nodes = append(b.nodes, Node{Feature: leaf, Value: b.mean(idx)})

	if len(idx) < b.params.MinSamplesSplit || b.pure(idx) {
		return self
	}
	if b.params.MaxDepth > 0 && depth >= b.params.MaxDepth {
		return self
	}

	s, ok := b.bestSplit(idx)
	if !ok {
		return self
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if b.x[i][s.feature] <= s.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[self] = Node{Feature: s.feature, Threshold: s.threshold, Left: l, Right: r, Value: b.nodes[self].Value}
	return self
}

type split struct {
	feature   int
	threshold float64
}

// bestSplit searches every feature for the cut with the lowest summed squared
// error. Ties keep the first candidate in feature then value order.
func (b *builder) bestSplit(idx []int) (split, bool) {
	n := len(idx)
	minLeaf := b.params.MinSamplesLeaf

	var total float64
	for _, i := range idx {
		total += b.y[i]
	}

	var (
		best  split
		score = math.Inf(-1)
		found bool
	)
	order := make([]int, n)
	for f := 0; f < b.width; f++ {
		copy(order, idx)
		sort.SliceStable(order, func(a, c int) bool {
			return b.x[order[a]][f] < b.x[order[c]][f]
		})

		var leftSum float64
		for k := 1; k < n; k++ {
			leftSum += b.y[order[k-1]]
			lo, hi := b.x[order[k-1]][f], b.x[order[k]][f]
			if lo == hi || k < minLeaf || n-k < minLeaf {
				continue
			}
			rightSum := total - leftSum
			// Minimizing SSE is maximizing the between-group term.
			s := leftSum*leftSum/float64(k) + rightSum*rightSum/float64(n-k)
			if s > score {
				score = s
				best = split{feature: f, threshold: midpoint(lo, hi)}
				found = true
			}
		}
	}
	return best, found
}

func midpoint(lo, hi float64) float64 {
	m := lo + (hi-lo)/2
	if m >= hi {
		return lo
	}
	return m
}

func (b *builder) mean(idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	var sum float64
	for _, i := range idx {
		sum += b.y[i]
	}
	return sum / float64(len(idx))
}

func (b *builder) pure(idx []int) bool {
	first := b.y[idx[0]]
	for _, i := range idx[1:] {
		if b.y[i] != first {
			return false
		}
	}
	return true
}
