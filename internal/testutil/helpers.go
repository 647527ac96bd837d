// Package testutil provides test helpers and utilities for edgeprov tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// WriteTempFile writes content to name under dir and returns the full path.
// name may contain slashes; missing parent directories are created, so a
// module manifest can be written as "modules/sputnik/deploy.yaml".
func WriteTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755), "create parent of %s", name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644), "write %s", name)
	return path
}
