package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/Skufu/bloodpanel/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var normalArgs = []string{
	"--wbc", "7.0", "--rbc", "4.9", "--hgb", "14.5", "--plt", "250", "--neut", "55",
	"--lymph", "32", "--mono", "5", "--eo", "2.5", "--baso", "0.6",
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCatalogListsEveryLabel(t *testing.T) {
	out, err := run(t, "catalog")
	require.NoError(t, err)

	for _, e := range catalog.All() {
		assert.Contains(t, out, e.Name)
	}
	assert.NotContains(t, out, "Anemia due to blood loss")

	out, err = run(t, "catalog", "--causes")
	require.NoError(t, err)
	assert.Contains(t, out, "Anemia due to blood loss")
}

func TestPredictPrintsAnalyzeJSON(t *testing.T) {
	args := append([]string{"predict", "--forest-seed", "7"}, normalArgs...)
	out, err := run(t, args...)
	require.NoError(t, err)

	var result map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, true, result["success"])
	assert.Equal(t, float64(catalog.Normal), result["result_code"])
	assert.Equal(t, "Normal", result["disease"])
	assert.Equal(t, 0.6, result["input_values"].(map[string]any)["BASO"])
}

func TestPredictRequiresEveryField(t *testing.T) {
	_, err := run(t, "predict", "--wbc", "7.0")
	assert.ErrorContains(t, err, "required flag")
}

func TestEvaluateReportsAccuracy(t *testing.T) {
	out, err := run(t, "evaluate", "--trees", "20", "--forest-seed", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "csv:embedded")
	assert.Regexp(t, `train rows\s+196\n`, out)
	assert.Regexp(t, `test rows\s+84\n`, out)
	assert.Contains(t, out, "accuracy")
}

func TestEnvironmentOverridesDefaults(t *testing.T) {
	t.Setenv("BLOODPANEL_TREES", "5")
	out, err := run(t, "evaluate", "--forest-seed", "3")
	require.NoError(t, err)
	assert.Regexp(t, `trees\s+5\n`, out)
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bp.yaml")
	require.NoError(t, os.WriteFile(path, []byte("trees: 4\nforest-seed: 9\n"), 0o600))

	out, err := run(t, "evaluate", "--config", path)
	require.NoError(t, err)
	assert.Regexp(t, `trees\s+4\n`, out)
	assert.Regexp(t, `forest seed\s+9\n`, out)

	_, err = run(t, "evaluate", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config")
}

func TestImportNeedsDatabaseURL(t *testing.T) {
	t.Setenv("BLOODPANEL_DATABASE_URL", "")
	_, err := run(t, "import", "training.csv")
	assert.ErrorContains(t, err, "database-url")
}

func TestUnknownDataFile(t *testing.T) {
	_, err := run(t, "evaluate", "--data", filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}
