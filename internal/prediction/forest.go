// Package prediction trains a small random forest on per-flight features to
// predict the apogee.
package prediction

import (
	"errors"
	"math"
	"math/rand/v2"
	"sort"
)

// ErrNotEnoughData is returned when fewer than two rows are available.
var ErrNotEnoughData = errors.New("prediction: need at least 2 training rows")

type node struct {
	feature     int
	threshold   float64
	left, right *node
	value       float64
	leaf        bool
}

func (n *node) predict(x []float64) float64 {
	for !n.leaf {
		if x[n.feature] <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n.value
}

// Forest is a bagged ensemble of regression trees. Every split considers all
// features and minimises the squared error; trees grow until their leaves are
// pure or hold a single sample.
type Forest struct {
	Trees int
	Seed  uint64

	roots    []*node
	features int
}

// NewForest creates an untrained forest.
func NewForest(trees int, seed uint64) *Forest {
	return &Forest{Trees: trees, Seed: seed}
}

// Fit trains the forest on rows X with targets y.
func (f *Forest) Fit(X [][]float64, y []float64) error {
	if len(X) < 2 || len(X) != len(y) {
		return ErrNotEnoughData
	}
	f.features = len(X[0])
	for _, row := range X {
		if len(row) != f.features {
			return errors.New("prediction: rows have different feature counts")
		}
	}

	rng := rand.New(rand.NewPCG(f.Seed, f.Seed^0x9e3779b97f4a7c15))
	f.roots = make([]*node, 0, f.Trees)
	n := len(X)
	for t := 0; t < f.Trees; t++ {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = rng.IntN(n)
		}
		f.roots = append(f.roots, build(X, y, idx))
	}
	return nil
}

// Predict averages the trees' predictions for x.
func (f *Forest) Predict(x []float64) (float64, error) {
	if len(f.roots) == 0 {
		return 0, errors.New("prediction: forest is not trained")
	}
	if len(x) != f.features {
		return 0, errors.New("prediction: wrong number of features")
	}
	sum := 0.0
	for _, r := range f.roots {
		sum += r.predict(x)
	}
	return sum / float64(len(f.roots)), nil
}

func mean(y []float64, idx []int) float64 {
	s := 0.0
	for _, i := range idx {
		s += y[i]
	}
	return s / float64(len(idx))
}

func build(X [][]float64, y []float64, idx []int) *node {
	m := mean(y, idx)
	if len(idx) < 2 {
		return &node{leaf: true, value: m}
	}

	bestSSE := math.Inf(1)
	bestFeature, bestThreshold := -1, 0.0
	for feat := range X[idx[0]] {
		sorted := append([]int(nil), idx...)
		sort.Slice(sorted, func(a, b int) bool { return X[sorted[a]][feat] < X[sorted[b]][feat] })

		// prefix sums for O(n) split scoring
		var sumL, sqL float64
		var sumT, sqT float64
		for _, i := range sorted {
			sumT += y[i]
			sqT += y[i] * y[i]
		}
		for k := 0; k < len(sorted)-1; k++ {
			v := y[sorted[k]]
			sumL += v
			sqL += v * v
			a, b := X[sorted[k]][feat], X[sorted[k+1]][feat]
			if a == b {
				continue
			}
			nl, nr := float64(k+1), float64(len(sorted)-k-1)
			sseL := sqL - sumL*sumL/nl
			sumR, sqR := sumT-sumL, sqT-sqL
			sseR := sqR - sumR*sumR/nr
			if sse := sseL + sseR; sse < bestSSE {
				bestSSE = sse
				bestFeature = feat
				bestThreshold = (a + b) / 2
			}
		}
	}

	parentSSE := 0.0
	for _, i := range idx {
		parentSSE += (y[i] - m) * (y[i] - m)
	}
	if bestFeature < 0 || parentSSE <= 1e-12 {
		return &node{leaf: true, value: m}
	}

	var left, right []int
	for _, i := range idx {
		if X[i][bestFeature] <= bestThreshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return &node{
		feature:   bestFeature,
		threshold: bestThreshold,
		left:      build(X, y, left),
		right:     build(X, y, right),
	}
}

// MeanRow is the column-wise mean of X, ignoring NaN.
func MeanRow(X [][]float64) []float64 {
	if len(X) == 0 {
		return nil
	}
	out := make([]float64, len(X[0]))
	for j := range out {
		s, n := 0.0, 0
		for _, row := range X {
			if !math.IsNaN(row[j]) {
				s += row[j]
				n++
			}
		}
		out[j] = math.NaN()
		if n > 0 {
			out[j] = s / float64(n)
		}
	}
	return out
}
