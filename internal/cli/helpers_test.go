package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// fixtureDir copies the replay fixture (config, tables, rows) into a fresh
// temp dir and returns it. The datastore of the copied config is
// <dir>/replay.db.
func fixtureDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range []string{"replay.yaml", "endpoints.json", "registers.json", "rows.yaml"} {
		data, err := os.ReadFile(filepath.Join("testdata", name))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0644))
	}
	return dir
}

// writeConfig writes a config file into dir, next to the fixture tables.
func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "replay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

// execute runs cmd with args and returns stdout.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// seedFixture writes testdata/rows.yaml into <dir>/replay.db.
func seedFixture(t *testing.T, dir string) {
	t.Helper()
	_, err := execute(t, NewSeedCommand(&RootOptions{Format: "text"}),
		"--db", filepath.Join(dir, "replay.db"), filepath.Join(dir, "rows.yaml"))
	require.NoError(t, err)
}
