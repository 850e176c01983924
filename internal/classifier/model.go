// Package classifier fits the disease classifier on the training table and
// predicts a label for one blood panel.
package classifier

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/Skufu/bloodpanel/internal/dataset"
	"github.com/Skufu/bloodpanel/internal/forest"
)

type Mode string

const (
	// ModeRetrain fits a new model for every prediction.
	ModeRetrain Mode = "retrain"
	// ModePretrained fits once in Warm and reuses that model.
	ModePretrained Mode = "pretrained"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeRetrain, ModePretrained:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown classifier mode %q (want %q or %q)", s, ModeRetrain, ModePretrained)
	}
}

const (
	DefaultTestSize  = 0.3
	DefaultSplitSeed = 40
)

type Options struct {
	Mode       Mode
	Trees      int
	ForestSeed int64 // zero leaves tree randomness unpinned
	SplitSeed  int64
	TestSize   float64
	// CacheSize > 0 keeps that many fitted models keyed by table hash in
	// retrain mode.
	CacheSize   int
	Concurrency int
}

func DefaultOptions() Options {
	return Options{
		Mode:        ModeRetrain,
		Trees:       forest.DefaultTrees,
		SplitSeed:   DefaultSplitSeed,
		TestSize:    DefaultTestSize,
		Concurrency: runtime.NumCPU(),
	}
}

func (o Options) validate() error {
	if _, err := ParseMode(string(o.Mode)); err != nil {
		return err
	}
	if o.Trees <= 0 {
		return fmt.Errorf("trees must be positive, got %d", o.Trees)
	}
	if o.TestSize <= 0 || o.TestSize >= 1 {
		return fmt.Errorf("test size must be in (0, 1), got %v", o.TestSize)
	}
	if o.CacheSize < 0 {
		return fmt.Errorf("cache size must not be negative, got %d", o.CacheSize)
	}
	if o.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive, got %d", o.Concurrency)
	}
	return nil
}

// Model is an immutable fitted classifier.
type Model struct {
	forest *forest.Forest

	TableHash string
	TrainRows int
	TestRows  int
	// Accuracy is measured on the held-out test partition.
	Accuracy  float64
	Seed      int64
	TrainedAt time.Time
	Duration  time.Duration
}

func (m *Model) Predict(features []float64) (int, error) {
	return m.forest.Predict(features)
}

func (m *Model) Classes() []int {
	return m.forest.Classes()
}

// Train splits table, fits a forest on the train partition and scores it
// on the test partition.
func Train(ctx context.Context, table dataset.Table, opts Options) (*Model, error) {
	start := time.Now()

	train, test, err := table.Split(opts.TestSize, opts.SplitSeed)
	if err != nil {
		return nil, fmt.Errorf("split training table: %w", err)
	}

	x, y := train.Matrix()
	f, err := forest.Fit(ctx, x, y, forest.Config{
		Trees:   opts.Trees,
		Seed:    opts.ForestSeed,
		Workers: treeWorkers(opts.Concurrency),
	})
	if err != nil {
		return nil, fmt.Errorf("fit forest: %w", err)
	}

	tx, ty := test.Matrix()
	accuracy, err := f.Score(tx, ty)
	if err != nil {
		return nil, fmt.Errorf("score forest: %w", err)
	}

	return &Model{
		forest:    f,
		TableHash: table.Hash(),
		TrainRows: len(train),
		TestRows:  len(test),
		Accuracy:  accuracy,
		Seed:      f.Seed(),
		TrainedAt: start,
		Duration:  time.Since(start),
	}, nil
}

// treeWorkers splits GOMAXPROCS across the concurrent fits so that
// Concurrency fits together grow at most about GOMAXPROCS trees at once.
func treeWorkers(concurrency int) int {
	if concurrency < 1 {
		concurrency = 1
	}
	if n := runtime.GOMAXPROCS(0) / concurrency; n > 1 {
		return n
	}
	return 1
}
