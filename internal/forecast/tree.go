package forecast

import (
	"context"
	"math"
	"math/rand/v2"
	"sort"
)

// treeParams controls how a single regression tree grows
type treeParams struct {
	maxDepth int
	minLeaf  int
	// randomSplits draws one uniform threshold per feature instead of
	// scanning every candidate split
	randomSplits bool
}

type treeNode struct {
	feature   int
	threshold float64
	value     float64
	left      *treeNode
	right     *treeNode
}

func (n *treeNode) isLeaf() bool { return n.left == nil }

func (n *treeNode) predict(x []float64) float64 {
	for !n.isLeaf() {
		if x[n.feature] <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n.value
}

// growTree fits a CART regression tree on the rows listed in idx
func growTree(X [][]float64, y []float64, idx []int, p treeParams, rng *rand.Rand) *treeNode {
	return grow(X, y, idx, p, rng, 0)
}

func grow(X [][]float64, y []float64, idx []int, p treeParams, rng *rand.Rand, depth int) *treeNode {
	node := &treeNode{value: meanAt(y, idx)}
	if depth >= p.maxDepth || len(idx) < 2*p.minLeaf {
		return node
	}

	parent := sseAt(y, idx)
	var best split
	found := false
	for f := 0; f < len(X[idx[0]]); f++ {
		var s split
		var ok bool
		if p.randomSplits {
			s, ok = randomSplit(X, y, idx, f, p.minLeaf, rng)
		} else {
			s, ok = bestSplit(X, y, idx, f, p.minLeaf)
		}
		if ok && (!found || s.sse < best.sse) {
			best, found = s, true
		}
	}
	if !found || best.sse >= parent {
		return node
	}

	var left, right []int
	for _, i := range idx {
		if X[i][best.feature] <= best.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return node
	}
	node.feature = best.feature
	node.threshold = best.threshold
	node.left = grow(X, y, left, p, rng, depth+1)
	node.right = grow(X, y, right, p, rng, depth+1)
	return node
}

type split struct {
	feature   int
	threshold float64
	sse       float64
}

// bestSplit scans every boundary between distinct sorted values of feature f
func bestSplit(X [][]float64, y []float64, idx []int, f, minLeaf int) (split, bool) {
	order := append([]int(nil), idx...)
	sort.Slice(order, func(a, b int) bool { return X[order[a]][f] < X[order[b]][f] })

	var totalSum, totalSq float64
	for _, i := range order {
		totalSum += y[i]
		totalSq += y[i] * y[i]
	}

	n := float64(len(order))
	var (
		best  split
		found bool
		sum   float64
		sq    float64
	)
	for k := 0; k < len(order)-1; k++ {
		v := y[order[k]]
		sum += v
		sq += v * v
		nl := float64(k + 1)
		if k+1 < minLeaf || len(order)-k-1 < minLeaf {
			continue
		}
		cur, next := X[order[k]][f], X[order[k+1]][f]
		if cur == next {
			continue
		}
		nr := n - nl
		rs, rq := totalSum-sum, totalSq-sq
		sse := (sq - sum*sum/nl) + (rq - rs*rs/nr)
		if !found || sse < best.sse {
			best = split{feature: f, threshold: (cur + next) / 2, sse: sse}
			found = true
		}
	}
	return best, found
}

// randomSplit draws one threshold between the min and max of feature f
func randomSplit(X [][]float64, y []float64, idx []int, f, minLeaf int, rng *rand.Rand) (split, bool) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, i := range idx {
		lo = math.Min(lo, X[i][f])
		hi = math.Max(hi, X[i][f])
	}
	if !(hi > lo) {
		return split{}, false
	}
	threshold := lo + rng.Float64()*(hi-lo)

	var ln, rn int
	var ls, lq, rs, rq float64
	for _, i := range idx {
		v := y[i]
		if X[i][f] <= threshold {
			ln++
			ls += v
			lq += v * v
		} else {
			rn++
			rs += v
			rq += v * v
		}
	}
	if ln < minLeaf || rn < minLeaf {
		return split{}, false
	}
	sse := (lq - ls*ls/float64(ln)) + (rq - rs*rs/float64(rn))
	return split{feature: f, threshold: threshold, sse: sse}, true
}

func meanAt(y []float64, idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	var sum float64
	for _, i := range idx {
		sum += y[i]
	}
	return sum / float64(len(idx))
}

func sseAt(y []float64, idx []int) float64 {
	m := meanAt(y, idx)
	var sse float64
	for _, i := range idx {
		d := y[i] - m
		sse += d * d
	}
	return sse
}

// regressor is one member of the forecasting ensemble
type regressor interface {
	name() string
	fit(ctx context.Context, X [][]float64, y []float64) error
	predict(x []float64) float64
}

// randomForest averages bootstrap-sampled trees
type randomForest struct {
	trees  []*treeNode
	nTrees int
	params treeParams
	rng    *rand.Rand
}

func newRandomForest(rng *rand.Rand) *randomForest {
	return &randomForest{nTrees: 100, params: treeParams{maxDepth: 6, minLeaf: 2}, rng: rng}
}

func (m *randomForest) name() string { return "random_forest" }

func (m *randomForest) fit(ctx context.Context, X [][]float64, y []float64) error {
	m.trees = m.trees[:0]
	n := len(y)
	for t := 0; t < m.nTrees; t++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		idx := make([]int, n)
		for i := range idx {
			idx[i] = m.rng.IntN(n)
		}
		m.trees = append(m.trees, growTree(X, y, idx, m.params, m.rng))
	}
	return nil
}

func (m *randomForest) predict(x []float64) float64 {
	if len(m.trees) == 0 {
		return 0
	}
	var sum float64
	for _, t := range m.trees {
		sum += t.predict(x)
	}
	return sum / float64(len(m.trees))
}

// gradientBoosting fits shallow trees to the running residuals
type gradientBoosting struct {
	base         float64
	trees        []*treeNode
	stages       int
	learningRate float64
	params       treeParams
	rng          *rand.Rand
}

func newGradientBoosting(rng *rand.Rand) *gradientBoosting {
	return &gradientBoosting{
		stages:       200,
		learningRate: 0.05,
		params:       treeParams{maxDepth: 3, minLeaf: 2},
		rng:          rng,
	}
}

func (m *gradientBoosting) name() string { return "gradient_boosting" }

func (m *gradientBoosting) fit(ctx context.Context, X [][]float64, y []float64) error {
	n := len(y)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	m.base = meanAt(y, idx)
	m.trees = m.trees[:0]

	pred := make([]float64, n)
	residual := make([]float64, n)
	for i := range pred {
		pred[i] = m.base
	}
	for s := 0; s < m.stages; s++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		for i := range residual {
			residual[i] = y[i] - pred[i]
		}
		tree := growTree(X, residual, idx, m.params, m.rng)
		m.trees = append(m.trees, tree)
		for i := range pred {
			pred[i] += m.learningRate * tree.predict(X[i])
		}
	}
	return nil
}

func (m *gradientBoosting) predict(x []float64) float64 {
	out := m.base
	for _, t := range m.trees {
		out += m.learningRate * t.predict(x)
	}
	return out
}

// extraTrees averages trees grown on the full sample with random thresholds
type extraTrees struct {
	trees  []*treeNode
	nTrees int
	params treeParams
	rng    *rand.Rand
}

func newExtraTrees(rng *rand.Rand) *extraTrees {
	return &extraTrees{nTrees: 100, params: treeParams{maxDepth: 8, minLeaf: 1, randomSplits: true}, rng: rng}
}

func (m *extraTrees) name() string { return "extra_trees" }

func (m *extraTrees) fit(ctx context.Context, X [][]float64, y []float64) error {
	m.trees = m.trees[:0]
	idx := make([]int, len(y))
	for i := range idx {
		idx[i] = i
	}
	for t := 0; t < m.nTrees; t++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		m.trees = append(m.trees, growTree(X, y, idx, m.params, m.rng))
	}
	return nil
}

func (m *extraTrees) predict(x []float64) float64 {
	if len(m.trees) == 0 {
		return 0
	}
	var sum float64
	for _, t := range m.trees {
		sum += t.predict(x)
	}
	return sum / float64(len(m.trees))
}

// r2Score is the coefficient of determination of pred against y. A constant
// target scores 0.
func r2Score(y, pred []float64) float64 {
	if len(y) == 0 {
		return 0
	}
	var mean float64
	for _, v := range y {
		mean += v
	}
	mean /= float64(len(y))
	var ssRes, ssTot float64
	for i := range y {
		ssRes += (y[i] - pred[i]) * (y[i] - pred[i])
		ssTot += (y[i] - mean) * (y[i] - mean)
	}
	if ssTot == 0 {
		return 0
	}
	return 1 - ssRes/ssTot
}
