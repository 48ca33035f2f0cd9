package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, stdin string, args ...string) string {
	t.Helper()
	out := &bytes.Buffer{}
	rootCmd.SetOut(out)
	rootCmd.SetErr(out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(append([]string{"--env-file", ""}, args...))
	require.NoError(t, rootCmd.Execute(), out.String())
	return out.String()
}

func TestMaintenanceCommands(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MAAT_DB_PATH", filepath.Join(dir, "data", "maat.db"))
	t.Setenv("MAAT_RESULTS_DIR", filepath.Join(dir, "results"))
	t.Setenv("MAAT_LOG_LEVEL", "error")
	t.Setenv("MAAT_COMMIT", "test-commit")

	assert.Contains(t, run(t, "", "migrate"), "applied 0001_init.sql")
	assert.Contains(t, run(t, "", "migrate"), "schema up to date")

	seedFile := filepath.Join(dir, "seed.yaml")
	require.NoError(t, os.WriteFile(seedFile, []byte(`
experiments:
  - experiment_id: E1
    name: First
    trials:
      - {block_order: 1, block_name: b, stimuli: good, valence: 1}
participants: [S01]
`), 0o644))
	assert.Contains(t, run(t, "", "seed", seedFile), "experiments=1 trials=1 participants=1 skipped=0")
	assert.Contains(t, run(t, "", "seed", seedFile), "skipped=2")

	assert.Contains(t, run(t, "long-enough-pw\n", "researcher", "add", "--email", "Lab@Example.org"), "created researcher lab@example.org")

	assert.Contains(t, run(t, "", "export", "zip"), "with 0 files")
	_, err := os.Stat(filepath.Join(dir, "results", "all_responses.zip"))
	assert.NoError(t, err)

	book := filepath.Join(dir, "book.xlsx")
	assert.Contains(t, run(t, "", "export", "workbook", "--out", book), "with 0 responses")
	_, err = os.Stat(book)
	assert.NoError(t, err)

	assert.Contains(t, run(t, "", "version"), "maat test-commit")
}
