package predictor

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
)

// Node is one entry of a flattened regression tree. Leaves have Feature < 0.
type Node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t,omitempty"`
	Left      int     `json:"l,omitempty"`
	Right     int     `json:"r,omitempty"`
	Value     float64 `json:"v"`
}

// Tree is a CART regression tree stored as a node slice; Nodes[0] is the root.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Predict walks the tree: x[Feature] <= Threshold goes left.
func (t *Tree) Predict(x []float64) float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Feature < 0 {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// validate checks that every split reads one of nf features and points at
// later nodes, so Predict always reaches a leaf.
func (t *Tree) validate(nf int) error {
	if len(t.Nodes) == 0 {
		return errors.New("tree has no nodes")
	}
	for i, n := range t.Nodes {
		if n.Feature < 0 {
			continue
		}
		if n.Feature >= nf {
			return fmt.Errorf("node %d splits on feature %d of %d", i, n.Feature, nf)
		}
		if n.Left <= i || n.Left >= len(t.Nodes) || n.Right <= i || n.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d has children %d/%d outside (%d, %d)", i, n.Left, n.Right, i, len(t.Nodes))
		}
	}
	return nil
}

// Depth returns the number of edges on the longest root-to-leaf path.
func (t *Tree) Depth() int {
	var walk func(i int) int
	walk = func(i int) int {
		n := t.Nodes[i]
		if n.Feature < 0 {
			return 0
		}
		return 1 + max(walk(n.Left), walk(n.Right))
	}
	return walk(0)
}

type treeParams struct {
	maxDepth       int // 0 = unlimited
	minSamplesLeaf int
	maxFeatures    int // 0 = all
}

type treeBuilder struct {
	X      [][]float64
	y      []float64
	params treeParams
	rng    *rand.Rand
	nodes  []Node
}

// fitTree grows a tree on the rows listed in idx (duplicates allowed, as
// produced by bootstrap sampling). Splits minimise squared error.
func fitTree(X [][]float64, y []float64, idx []int, p treeParams, rng *rand.Rand) *Tree {
	if p.minSamplesLeaf < 1 {
		p.minSamplesLeaf = 1
	}
	b := &treeBuilder{X: X, y: y, params: p, rng: rng}
	b.grow(slices.Clone(idx), 0)
	return &Tree{Nodes: b.nodes}
}

func (b *treeBuilder) grow(idx []int, depth int) int {
	var sum float64
	for _, i := range idx {
		sum += b.y[i]
	}
	id := len(b.nodes)
	b.nodes = append(b.nodes, Node{Feature: -1, Value: sum / float64(len(idx))})

	if b.params.maxDepth > 0 && depth >= b.params.maxDepth {
		return id
	}
	if len(idx) < 2*b.params.minSamplesLeaf {
		return id
	}

	f, thr, ok := b.bestSplit(idx, sum)
	if !ok {
		return id
	}

	var left, right []int
	for _, i := range idx {
		if b.X[i][f] <= thr {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[id] = Node{Feature: f, Threshold: thr, Left: l, Right: r, Value: b.nodes[id].Value}
	return id
}

// bestSplit maximises sumL²/nL + sumR²/nR, which is equivalent to
// minimising the children's total squared error.
func (b *treeBuilder) bestSplit(idx []int, total float64) (feature int, threshold float64, ok bool) {
	n := len(idx)
	parent := total * total / float64(n)
	best := parent
	minLeaf := b.params.minSamplesLeaf

	sorted := make([]int, n)
	for _, f := range b.candidates() {
		copy(sorted, idx)
		slices.SortStableFunc(sorted, func(a, c int) int {
			switch va, vc := b.X[a][f], b.X[c][f]; {
			case va < vc:
				return -1
			case va > vc:
				return 1
			}
			return 0
		})

		var sumL float64
		for k := 0; k < n-1; k++ {
			sumL += b.y[sorted[k]]
			nL := k + 1
			if nL < minLeaf || n-nL < minLeaf {
				continue
			}
			lo, hi := b.X[sorted[k]][f], b.X[sorted[k+1]][f]
			if lo == hi {
				continue
			}
			sumR := total - sumL
			score := sumL*sumL/float64(nL) + sumR*sumR/float64(n-nL)
			if score > best+1e-12 {
				best = score
				feature = f
				threshold = lo + (hi-lo)/2
				if threshold >= hi {
					threshold = lo
				}
				ok = true
			}
		}
	}
	return feature, threshold, ok
}

func (b *treeBuilder) candidates() []int {
	nf := len(b.X[0])
	if b.params.maxFeatures <= 0 || b.params.maxFeatures >= nf {
		all := make([]int, nf)
		for i := range all {
			all[i] = i
		}
		return all
	}
	return b.rng.Perm(nf)[:b.params.maxFeatures]
}
