package fsutil_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/voice-clone-service/internal/fsutil"
)

func TestGetCacheDir_WithOverride(t *testing.T) {
	expectedPath := "/custom/cache/dir"
	t.Setenv("TTS_HOME", "")
	t.Setenv("CACHE_DIR", expectedPath)

	assert.Equal(t, expectedPath, fsutil.GetCacheDir())
}

func TestGetCacheDir_PrefersTTSHome(t *testing.T) {
	t.Setenv("TTS_HOME", "/models/coqui")
	t.Setenv("CACHE_DIR", "/custom/cache/dir")

	assert.Equal(t, "/models/coqui", fsutil.GetCacheDir())
}

func TestGetCacheDir_Default(t *testing.T) {
	t.Setenv("TTS_HOME", "")
	t.Setenv("CACHE_DIR", "")

	homeDir, err := os.UserHomeDir()
	if err != nil {
		t.Skip("Skipping test: could not determine user home directory")
	}

	assert.Equal(t, filepath.Join(homeDir, ".cache", "voice-clone-service"), fsutil.GetCacheDir())
}

func TestEnsureDirAndFileExists(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, fsutil.EnsureDir(nested))

	exists, err := fsutil.FileExists(nested)
	require.NoError(t, err)
	assert.False(t, exists, "directories are not files")

	file := filepath.Join(nested, "voice.wav")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	exists, err = fsutil.FileExists(file)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, fsutil.RemoveIfExists(file))
	require.NoError(t, fsutil.RemoveIfExists(file))

	exists, err = fsutil.FileExists(file)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestFormatters(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "45.2s", fsutil.FormatDuration(45.2))
	assert.Equal(t, "5m 30.5s", fsutil.FormatDuration(330.5))
	assert.Equal(t, "1h 15m", fsutil.FormatDuration(4500))
	assert.Equal(t, "512 B", fsutil.FormatFileSize(512))
	assert.Equal(t, "1.5 KB", fsutil.FormatFileSize(1536))
	assert.Equal(t, "2.0 MB", fsutil.FormatFileSize(2*1024*1024))
}

func TestFilenameHelpers(t *testing.T) {
	t.Parallel()

	assert.True(t, fsutil.HasWAVExtension("alice.wav"))
	assert.True(t, fsutil.HasWAVExtension("alice.WAV"))
	assert.False(t, fsutil.HasWAVExtension("alice.mp3"))

	assert.Equal(t, "a_b_c", fsutil.SanitizeFilename("a/b\\c"))
	assert.True(t, fsutil.IsPlainFilename("alice.wav"))
	assert.False(t, fsutil.IsPlainFilename("../alice.wav"))
	assert.False(t, fsutil.IsPlainFilename(".."))
	assert.False(t, fsutil.IsPlainFilename(""))
}
