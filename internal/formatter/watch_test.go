package formatter

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/standardbeagle/natvis-engine/internal/model"
)

// TestMain ensures the watch goroutine started by Start never outlives
// Close, matching the teacher's goleak_test.go convention.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("sync.runtime_Semacquire"),
	)
}

func TestWatch_CloseStopsGoroutineCleanly(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.natvis")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0o644))

	source := &fakeSource{parse: func(path string, contents []byte) ([]*model.TypeViz, error) { return nil, nil }}
	mgr := New(source, nil, nil)
	require.NoError(t, mgr.Add(path))

	w, err := NewWatch(mgr, nil)
	require.NoError(t, err)
	w.Start()

	require.NoError(t, w.Close())
}

func TestWatch_ReloadsOnFileWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.natvis")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0o644))

	reloads := make(chan struct{}, 8)
	source := &fakeSource{parse: func(path string, contents []byte) ([]*model.TypeViz, error) {
		select {
		case reloads <- struct{}{}:
		default:
		}
		return nil, nil
	}}
	mgr := New(source, nil, nil)
	require.NoError(t, mgr.Add(path))

	w, err := NewWatch(mgr, nil)
	require.NoError(t, err)
	w.Start()
	defer w.Close()

	// Drain the parse triggered by Add's own rebuild before exercising
	// the on-disk write.
	select {
	case <-reloads:
	case <-time.After(time.Second):
	}

	require.NoError(t, os.WriteFile(path, []byte("a-changed"), 0o644))

	select {
	case <-reloads:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a reload after file write, got none")
	}
}
