package cmd

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"testing"
)

// isolate points HOME and the user config dir at a temp dir so the database,
// indexes, blobs and logs of a test never touch the real ones.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	for _, k := range []string{
		"SNIPSEARCH_INDEX_BACKEND", "SNIPSEARCH_ENDPOINT", "SNIPSEARCH_API_KEY",
		"SNIPSEARCH_LOCAL_PATH", "SNIPSEARCH_BLOB_ROOT", "SNIPSEARCH_DB_PATH",
		"SNIPSEARCH_LOG_LEVEL", "SNIPSEARCH_PARALLEL", "SNIPSEARCH_SNIPPET_SEGMENT",
	} {
		t.Setenv(k, "")
	}

	prev := slog.Default()
	t.Cleanup(func() {
		_ = stopLogging(nil, nil)
		slog.SetDefault(prev)
	})
	return home
}

// execute runs the root command with args and returns everything it printed.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(append([]string{"--dir", t.TempDir()}, args...))

	err := cmd.Execute()
	// A failed RunE skips PersistentPostRunE.
	_ = stopLogging(nil, nil)
	return buf.String(), err
}
