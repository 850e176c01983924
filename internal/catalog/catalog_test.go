package catalog

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNamesAndCausesShareKeys(t *testing.T) {
	require.Len(t, names, NumLabels)
	require.Len(t, causes, NumLabels)
	for label := 0; label < NumLabels; label++ {
		assert.Contains(t, names, label)
		assert.Contains(t, causes, label)
		assert.NotEmpty(t, causes[label], "label %d has no causes", label)
	}
}

func TestResolveNormal(t *testing.T) {
	name, cause, err := Resolve(Normal)
	require.NoError(t, err)
	assert.Equal(t, "Normal", name)
	assert.Equal(t, "- Normal \n", cause)
	assert.Equal(t, "- Normal", strings.TrimSpace(cause))
}

func TestResolveAnemiaKeepsBulletText(t *testing.T) {
	_, cause, err := Resolve(0)
	require.NoError(t, err)
	want := " - Anemia due to blood loss \n" +
		" - Bone marrow disorders \n" +
		" - Nutritional deficiency \n" +
		" - Chronic Kidney disease  \n" +
		" - Chronic inflammatory disease \n"
	assert.Equal(t, want, cause)
}

func TestResolveUnknownLabel(t *testing.T) {
	for _, label := range []int{-1, NumLabels, 99} {
		_, _, err := Resolve(label)
		var unknown *UnknownLabelError
		require.True(t, errors.As(err, &unknown), "label %d", label)
		assert.Equal(t, label, unknown.Label)
		assert.False(t, Valid(label))
	}
}

func TestEntryCausesIsACopy(t *testing.T) {
	entry, err := Lookup(2)
	require.NoError(t, err)

	list := entry.Causes()
	list[0] = "mutated"

	again, _ := Lookup(2)
	assert.Equal(t, "- Infection ", again.Causes()[0])
}

func TestAllIsOrdered(t *testing.T) {
	entries := All()
	require.Len(t, entries, NumLabels)
	for i, e := range entries {
		assert.Equal(t, i, e.Label)
	}
	assert.Equal(t, "Basophil high", entries[12].Name)
}
