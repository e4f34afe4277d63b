package graph

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStalenessWatcherFlagsModifiedFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "parts.tether")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	w, err := NewStalenessWatcher()
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Watch(path))
	assert.False(t, w.Modified(path))

	require.NoError(t, os.WriteFile(path, []byte("v2"), 0o644))
	assert.Eventually(t, func() bool { return w.Modified(path) },
		2*time.Second, 10*time.Millisecond)

	w.Reset(path)
	assert.False(t, w.Modified(path))

	w.Unwatch(path)
	require.NoError(t, os.WriteFile(path, []byte("v3"), 0o644))
	time.Sleep(50 * time.Millisecond)
	assert.False(t, w.Modified(path))
}

func TestWatcherMarksExternalReferenceStale(t *testing.T) {
	sess := newTestSession(t)
	w, err := NewStalenessWatcher()
	require.NoError(t, err)
	defer w.Close()
	sess.SetWatcher(w)

	lib := newTestContainer(t, sess, "Lib")
	gear := newTestEntity(t, lib, "Gear")
	libPath := filepath.Join(t.TempDir(), "lib.tether")
	require.NoError(t, SaveContainerFile(lib, libPath))
	lib.MarkSaved(libPath)

	main := newTestContainer(t, sess, "Main")
	owner := newTestEntity(t, main, "Owner")
	drive := NewXRef(owner, "Drive", ScopeNormal)
	require.NoError(t, drive.SetValue(gear))

	assert.Equal(t, RestoreOK, drive.CheckRestore())

	require.NoError(t, os.WriteFile(libPath, []byte("changed"), 0o644))
	assert.Eventually(t, func() bool {
		return drive.CheckRestore() == RestoreStampChanged
	}, 2*time.Second, 10*time.Millisecond)
}
