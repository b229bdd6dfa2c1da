package transcode

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRegistry(timeout time.Duration) *Registry {
	return NewRegistry(timeout, testLogger())
}

func scratchDir(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "session")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	return dir
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := newTestRegistry(time.Minute)
	s := r.Register(&Session{ID: "abc", ScratchDir: scratchDir(t)})

	got, ok := r.Get("abc")
	require.True(t, ok)
	assert.Same(t, s, got)
	assert.Equal(t, 1, r.Len())

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestRegistryReRegisterKeepsOneSession(t *testing.T) {
	r := newTestRegistry(time.Minute)
	dir := scratchDir(t)

	first := r.Register(&Session{ID: "abc", ScratchDir: dir, StartSegment: 0})
	second := r.Register(&Session{ID: "abc", ScratchDir: dir, StartSegment: 7})

	assert.Equal(t, 1, r.Len())
	// The canonical session survives; only the encoder cursor moves.
	assert.Same(t, first, second)
	assert.Equal(t, 7, second.StartSegment)

	// The scratch directory is kept across the replacement.
	_, err := os.Stat(dir)
	assert.NoError(t, err)
}

func TestRegistryCloseRemovesScratch(t *testing.T) {
	r := newTestRegistry(time.Minute)
	dir := scratchDir(t)
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "media0.m4s"), []byte("x"), 0o644))

	r.Register(&Session{ID: "abc", ScratchDir: dir})
	r.Close("abc")

	assert.Equal(t, 0, r.Len())
	_, err := os.Stat(dir)
	assert.True(t, os.IsNotExist(err))

	err = r.Touch("abc")
	assert.ErrorIs(t, err, ErrUnknownSession)

	// Closing again is a no-op.
	r.Close("abc")
	assert.Equal(t, 0, r.Len())
}

func TestRegistryTouchUnknown(t *testing.T) {
	r := newTestRegistry(time.Minute)
	assert.ErrorIs(t, r.Touch("nope"), ErrUnknownSession)
}

func TestRegistryIdleTimeout(t *testing.T) {
	r := newTestRegistry(50 * time.Millisecond)
	dir := scratchDir(t)
	r.Register(&Session{ID: "abc", ScratchDir: dir})

	assert.Eventually(t, func() bool {
		return r.Len() == 0
	}, 2*time.Second, 10*time.Millisecond)

	_, err := os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestRegistryTouchDefersTimeout(t *testing.T) {
	r := newTestRegistry(150 * time.Millisecond)
	r.Register(&Session{ID: "abc", ScratchDir: scratchDir(t)})

	for i := 0; i < 4; i++ {
		time.Sleep(75 * time.Millisecond)
		require.NoError(t, r.Touch("abc"))
	}
	assert.Equal(t, 1, r.Len())

	r.Close("abc")
}

func TestRegistryShutdown(t *testing.T) {
	r := newTestRegistry(time.Minute)
	dirA := scratchDir(t)
	dirB := scratchDir(t)
	r.Register(&Session{ID: "a", ScratchDir: dirA})
	r.Register(&Session{ID: "b", ScratchDir: dirB})

	r.Shutdown()
	assert.Equal(t, 0, r.Len())
	_, err := os.Stat(dirA)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(dirB)
	assert.True(t, os.IsNotExist(err))
}
