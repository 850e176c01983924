package forest

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
)

type builder struct {
	columns     [][]float64
	labels      []int
	numClasses  int
	maxFeatures int
	rng         *rand.Rand
}

// bootstrap draws n row indices with replacement.
func (b *builder) bootstrap(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = b.rng.Intn(n)
	}
	return idx
}

func (b *builder) counts(idx []int) []float64 {
	c := make([]float64, b.numClasses)
	for _, i := range idx {
		c[b.labels[i]]++
	}
	return c
}

func (b *builder) build(idx []int) *node {
	counts := b.counts(idx)
	if len(idx) < 2 || pure(counts) {
		return newLeaf(counts)
	}

	feature, threshold, ok := b.bestSplit(idx, counts)
	if !ok {
		return newLeaf(counts)
	}

	col := b.columns[feature]
	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if col[i] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return &node{
		feature:   feature,
		threshold: threshold,
		left:      b.build(left),
		right:     b.build(right),
	}
}

// bestSplit searches maxFeatures randomly drawn features for the threshold
// with the lowest weighted gini impurity. When every drawn feature is
// constant over idx it keeps drawing until one can split.
func (b *builder) bestSplit(idx []int, counts []float64) (int, float64, bool) {
	order := b.rng.Perm(len(b.columns))
	n := float64(len(idx))

	bestFeature, bestThreshold := -1, 0.0
	bestImpurity := math.Inf(1)
	sorted := make([]int, len(idx))
	left := make([]float64, b.numClasses)
	right := make([]float64, b.numClasses)

	for tried, feature := range order {
		if tried >= b.maxFeatures && bestFeature >= 0 {
			break
		}
		col := b.columns[feature]
		copy(sorted, idx)
		sort.Slice(sorted, func(p, q int) bool { return col[sorted[p]] < col[sorted[q]] })
		if col[sorted[0]] == col[sorted[len(sorted)-1]] {
			continue
		}

		for k := range left {
			left[k] = 0
		}
		copy(right, counts)

		for i := 0; i < len(sorted)-1; i++ {
			c := b.labels[sorted[i]]
			left[c]++
			right[c]--

			v, next := col[sorted[i]], col[sorted[i+1]]
			if v == next {
				continue
			}
			nl := float64(i + 1)
			nr := n - nl
			impurity := nl/n*gini(left, nl) + nr/n*gini(right, nr)
			if impurity < bestImpurity {
				bestImpurity = impurity
				bestFeature = feature
				bestThreshold = v + (next-v)/2
				if bestThreshold == next {
					bestThreshold = v
				}
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}

func gini(counts []float64, n float64) float64 {
	return 1 - floats.Dot(counts, counts)/(n*n)
}

func pure(counts []float64) bool {
	nonZero := 0
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

func newLeaf(counts []float64) *node {
	dist := make([]float64, len(counts))
	copy(dist, counts)
	if total := floats.Sum(dist); total > 0 {
		floats.Scale(1/total, dist)
	}
	return &node{dist: dist}
}
