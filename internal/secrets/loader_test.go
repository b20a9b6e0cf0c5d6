package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadPrefersFileOverValue(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "  from-file\n")
	got, err := Load(Source{Name: "api token", Value: "inline", File: path})
	require.NoError(t, err)
	assert.Equal(t, "from-file", got)
}

func TestLoadInlineValue(t *testing.T) {
	t.Parallel()

	got, err := Load(Source{Name: "api token", Value: " inline "})
	require.NoError(t, err)
	assert.Equal(t, "inline", got)
}

func TestLoadEmptyFileFails(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "\n")
	_, err := Load(Source{Name: "api token", File: path, Optional: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is empty")
}

func TestLoadMissingFileFails(t *testing.T) {
	t.Parallel()

	_, err := Load(Source{Name: "api token", File: filepath.Join(t.TempDir(), "absent")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading api token")
}

func TestLoadNotConfigured(t *testing.T) {
	t.Parallel()

	_, err := Load(Source{Name: "api token"})
	require.EqualError(t, err, "api token is not configured")

	got, err := Load(Source{Name: "api token", Optional: true})
	require.NoError(t, err)
	assert.Empty(t, got)
}
