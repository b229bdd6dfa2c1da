package startup

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanupScratchDirs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sess-1"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sess-2"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sess-1", "media.m3u8"), []byte("#EXTM3U\n"), 0o644))

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	removed, err := CleanupScratchDirs(dir, log)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCleanupScratchDirsMissingRoot(t *testing.T) {
	removed, err := CleanupScratchDirs(filepath.Join(t.TempDir(), "nope"), nil)
	require.NoError(t, err)
	assert.Zero(t, removed)
}
