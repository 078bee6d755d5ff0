// Package testutil provides shared test helpers for creating config files.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// SetupTestConfig creates a config file using the yaml backend and the directories it needs.
// Returns the path to the generated config file.
func SetupTestConfig(t *testing.T, tmpDir string) string {
	t.Helper()
	return SetupTestConfigWithBackend(t, tmpDir, "yaml")
}

// SetupTestConfigWithBackend creates a config file that selects backend.
// Both the yaml directory and the sqlite database live under tmpDir so that
// sync tests can move records between the two.
func SetupTestConfigWithBackend(t *testing.T, tmpDir string, backend string) string {
	t.Helper()

	recordsDir := filepath.Join(tmpDir, "records")
	require.NoError(t, os.MkdirAll(recordsDir, 0755))

	configContent := fmt.Sprintf(`log:
  level: debug
store:
  backend: %s
  yaml_directory: %s
  sqlite_path: %s
review:
  max_attempts: 3
  retry_delay: 1ms
`,
		backend,
		recordsDir,
		filepath.Join(tmpDir, "recall.db"),
	)

	cfgPath := filepath.Join(tmpDir, "config.yml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(configContent), 0644))
	return cfgPath
}
