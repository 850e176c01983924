// Package forest implements a random forest of CART classification trees:
// bootstrap samples, a random feature subset per split, gini impurity and
// soft voting over leaf class distributions.
package forest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const DefaultTrees = 100

var ErrEmpty = errors.New("forest: no training samples")

type Config struct {
	Trees int
	// MaxFeatures is the number of features drawn per split. Zero means
	// floor(sqrt(features)).
	MaxFeatures int
	// Seed pins every random choice made while fitting. Zero draws a fresh
	// seed, so two fits on the same data may disagree.
	Seed int64
	// Workers bounds how many trees are grown at once. Zero means GOMAXPROCS.
	Workers int
}

type Forest struct {
	classes  []int
	trees    []*node
	features int
	seed     int64
}

type node struct {
	feature   int
	threshold float64
	left      *node
	right     *node
	dist      []float64
}

func (n *node) leaf() bool { return n.left == nil }

// Fit grows cfg.Trees trees on the rows of x labelled by y.
func Fit(ctx context.Context, x *mat.Dense, y []int, cfg Config) (*Forest, error) {
	if x == nil {
		return nil, ErrEmpty
	}
	rows, cols := x.Dims()
	if rows == 0 {
		return nil, ErrEmpty
	}
	if len(y) != rows {
		return nil, fmt.Errorf("forest: %d labels for %d samples", len(y), rows)
	}
	if cfg.Trees < 0 || cfg.MaxFeatures < 0 {
		return nil, fmt.Errorf("forest: invalid config %+v", cfg)
	}
	if cfg.Trees == 0 {
		cfg.Trees = DefaultTrees
	}
	if cfg.MaxFeatures == 0 {
		cfg.MaxFeatures = int(math.Sqrt(float64(cols)))
	}
	if cfg.MaxFeatures < 1 {
		cfg.MaxFeatures = 1
	}
	if cfg.MaxFeatures > cols {
		cfg.MaxFeatures = cols
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	classes, encoded := encodeLabels(y)
	columns := make([][]float64, cols)
	for j := range columns {
		columns[j] = mat.Col(nil, j, x)
	}

	// Seeds are drawn up front so the result does not depend on which
	// goroutine grows which tree first.
	master := rand.New(rand.NewSource(cfg.Seed))
	seeds := make([]int64, cfg.Trees)
	for i := range seeds {
		seeds[i] = master.Int63()
	}

	trees := make([]*node, cfg.Trees)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i := range trees {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			b := &builder{
				columns:     columns,
				labels:      encoded,
				numClasses:  len(classes),
				maxFeatures: cfg.MaxFeatures,
				rng:         rand.New(rand.NewSource(seeds[i])),
			}
			trees[i] = b.build(b.bootstrap(rows))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Forest{classes: classes, trees: trees, features: cols, seed: cfg.Seed}, nil
}

// encodeLabels maps labels onto 0..k-1 in ascending label order.
func encodeLabels(y []int) ([]int, []int) {
	seen := make(map[int]struct{})
	for _, label := range y {
		seen[label] = struct{}{}
	}
	classes := make([]int, 0, len(seen))
	for label := range seen {
		classes = append(classes, label)
	}
	sort.Ints(classes)

	index := make(map[int]int, len(classes))
	for i, label := range classes {
		index[label] = i
	}
	encoded := make([]int, len(y))
	for i, label := range y {
		encoded[i] = index[label]
	}
	return classes, encoded
}

func (f *Forest) Classes() []int {
	out := make([]int, len(f.classes))
	copy(out, f.classes)
	return out
}

func (f *Forest) Trees() int { return len(f.trees) }

// Seed returns the seed the forest was grown with, including a drawn one.
func (f *Forest) Seed() int64 { return f.seed }

// PredictProba averages the leaf class distributions of every tree. The
// result is aligned with Classes.
func (f *Forest) PredictProba(x []float64) ([]float64, error) {
	if len(x) != f.features {
		return nil, fmt.Errorf("forest: expected %d features, got %d", f.features, len(x))
	}
	sum := make([]float64, len(f.classes))
	for _, t := range f.trees {
		floats.Add(sum, walk(t, x).dist)
	}
	floats.Scale(1/float64(len(f.trees)), sum)
	return sum, nil
}

// Predict returns the most probable label. Ties go to the smallest label.
func (f *Forest) Predict(x []float64) (int, error) {
	proba, err := f.PredictProba(x)
	if err != nil {
		return 0, err
	}
	return f.classes[floats.MaxIdx(proba)], nil
}

// Score returns the fraction of rows of x predicted as their label in y.
func (f *Forest) Score(x *mat.Dense, y []int) (float64, error) {
	if x == nil {
		return 0, ErrEmpty
	}
	rows, _ := x.Dims()
	if rows == 0 {
		return 0, ErrEmpty
	}
	if len(y) != rows {
		return 0, fmt.Errorf("forest: %d labels for %d samples", len(y), rows)
	}
	hits := 0
	for i := 0; i < rows; i++ {
		label, err := f.Predict(mat.Row(nil, i, x))
		if err != nil {
			return 0, err
		}
		if label == y[i] {
			hits++
		}
	}
	return float64(hits) / float64(rows), nil
}

func walk(n *node, x []float64) *node {
	for !n.leaf() {
		if x[n.feature] <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n
}
