package tilecache

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLockAcquireRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tile.lck")
	l := NewFileLock(path)

	require.NoError(t, l.Acquire())
	_, err := os.Stat(path)
	require.NoError(t, err)

	require.NoError(t, l.Release())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestFileLockReleaseWithoutAcquireIsNoop(t *testing.T) {
	l := NewFileLock(filepath.Join(t.TempDir(), "tile.lck"))
	assert.NoError(t, l.Release())
}

func TestFileLockAcquireTimesOutWhenHeld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tile.lck")
	holder := NewFileLock(path)
	require.NoError(t, holder.Acquire())
	defer holder.Release()

	waiter := NewFileLock(path)
	waiter.Timeout = 50 * time.Millisecond
	waiter.PollStep = 5 * time.Millisecond
	err := waiter.Acquire()
	assert.ErrorIs(t, err, ErrLockTimeout)
}

func TestFileLockRemovesStaleLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tile.lck")
	require.NoError(t, os.WriteFile(path, []byte("123\n"), 0o644))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	l := NewFileLock(path)
	l.MaxAge = time.Minute
	l.Timeout = time.Second
	l.PollStep = 5 * time.Millisecond

	require.NoError(t, l.Acquire())
	assert.NoError(t, l.Release())
}

func TestFileLockWithLockRunsAndReleases(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tile.lck")
	l := NewFileLock(path)

	var ran int32
	err := l.WithLock(func() error {
		atomic.AddInt32(&ran, 1)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), ran)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}
