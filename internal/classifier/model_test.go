package classifier

import (
	"context"
	"runtime"
	"testing"

	"github.com/Skufu/bloodpanel/internal/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTreeWorkersShareProcs(t *testing.T) {
	procs := runtime.GOMAXPROCS(0)

	assert.Equal(t, procs, treeWorkers(1))
	assert.Equal(t, procs, treeWorkers(0))
	assert.Equal(t, 1, treeWorkers(procs))
	assert.Equal(t, 1, treeWorkers(procs*4))

	for c := 1; c <= procs*2; c++ {
		assert.LessOrEqual(t, c*treeWorkers(c), max(procs, c), "concurrency %d", c)
	}
}

func TestTrainIsReproducibleWithBoundedWorkers(t *testing.T) {
	table, err := dataset.CSVSource{}.Load(context.Background())
	require.NoError(t, err)

	opts := pinned(ModeRetrain)
	opts.Trees = 25

	opts.Concurrency = 1
	wide, err := Train(context.Background(), table, opts)
	require.NoError(t, err)

	opts.Concurrency = runtime.GOMAXPROCS(0) * 2
	narrow, err := Train(context.Background(), table, opts)
	require.NoError(t, err)

	assert.Equal(t, wide.Accuracy, narrow.Accuracy)
	for _, row := range table[:40] {
		a, err := wide.Predict(row.Features[:])
		require.NoError(t, err)
		b, err := narrow.Predict(row.Features[:])
		require.NoError(t, err)
		assert.Equal(t, a, b)
	}
}
