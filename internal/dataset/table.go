// Package dataset loads the labelled blood-panel table the classifier is
// fitted on.
package dataset

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"math/rand"
	"strconv"

	"github.com/Skufu/bloodpanel/internal/panel"
	"gonum.org/v1/gonum/mat"
)

// LabelColumn is the header of the class column in every table source.
const LabelColumn = "Disease"

type TrainingRow struct {
	Features [panel.NumFields]float64
	Label    int
}

// Table is a read-only set of training rows. Sources hand out fresh tables
// and nothing mutates one after loading.
type Table []TrainingRow

type Source interface {
	Load(ctx context.Context) (Table, error)
}

// Hash identifies the table content. Two tables with the same rows in the
// same order hash equally regardless of where they were loaded from.
func (t Table) Hash() string {
	h := sha256.New()
	buf := make([]byte, 0, 128)
	for _, row := range t {
		buf = buf[:0]
		for _, f := range row.Features {
			buf = strconv.AppendFloat(buf, f, 'g', -1, 64)
			buf = append(buf, ',')
		}
		buf = strconv.AppendInt(buf, int64(row.Label), 10)
		buf = append(buf, '\n')
		h.Write(buf)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (t Table) Labels() []int {
	seen := make(map[int]struct{})
	out := []int{}
	for _, row := range t {
		if _, ok := seen[row.Label]; ok {
			continue
		}
		seen[row.Label] = struct{}{}
		out = append(out, row.Label)
	}
	return out
}

// Split shuffles row indices with a seeded permutation and puts the first
// ceil(testSize*n) of them in the test partition, the rest in train.
func (t Table) Split(testSize float64, seed int64) (Table, Table, error) {
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, fmt.Errorf("test size must be in (0, 1), got %v", testSize)
	}
	n := len(t)
	nTest := int(math.Ceil(testSize * float64(n)))
	if nTest == 0 || nTest >= n {
		return nil, nil, fmt.Errorf("cannot split %d rows with test size %v", n, testSize)
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	test := make(Table, 0, nTest)
	for _, i := range perm[:nTest] {
		test = append(test, t[i])
	}
	train := make(Table, 0, n-nTest)
	for _, i := range perm[nTest:] {
		train = append(train, t[i])
	}
	return train, test, nil
}

// Matrix returns the features as an n x 9 matrix and the labels alongside.
func (t Table) Matrix() (*mat.Dense, []int) {
	if len(t) == 0 {
		return nil, nil
	}
	data := make([]float64, 0, len(t)*panel.NumFields)
	labels := make([]int, len(t))
	for i, row := range t {
		data = append(data, row.Features[:]...)
		labels[i] = row.Label
	}
	return mat.NewDense(len(t), panel.NumFields, data), labels
}
