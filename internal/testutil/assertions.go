package testutil

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertFileNotExists asserts that no file exists at the given path.
func AssertFileNotExists(t testing.TB, path string, msgAndArgs ...interface{}) {
	t.Helper()

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), append([]interface{}{"expected file to not exist: %s", path}, msgAndArgs...)...)
}

// AssertFileContains asserts that a file contains the expected substring.
func AssertFileContains(t testing.TB, path, expected string, msgAndArgs ...interface{}) {
	t.Helper()

	content, err := os.ReadFile(path)
	require.NoError(t, err, "failed to read file: %s", path)

	assert.Contains(t, string(content), expected, msgAndArgs...)
}

// ReadJSONFile decodes the JSON document at path into a generic map.
func ReadJSONFile(t testing.TB, path string) map[string]interface{} {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err, "failed to read file: %s", path)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &doc), "invalid JSON in %s", path)
	return doc
}
