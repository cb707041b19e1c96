package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kodo/internal/config"
)

func TestDisabledWatcherNeverStale(t *testing.T) {
	w, err := New(t.TempDir(), nil, config.WatcherConfig{Enabled: false})
	require.NoError(t, err)

	require.NoError(t, w.Start())
	assert.False(t, w.Stale())
	require.NoError(t, w.Stop())
}

func TestFlushPromotesSettledEventsAndNotifies(t *testing.T) {
	w, err := New(t.TempDir(), nil, config.WatcherConfig{Enabled: true, DebounceMs: 50})
	require.NoError(t, err)
	defer w.Stop()

	notified := 0
	w.SetOnChange(func() { notified++ })

	w.mu.Lock()
	w.pending["some/file.go"] = time.Now().Add(-time.Second)
	w.mu.Unlock()

	w.flush()
	assert.True(t, w.Stale())
	assert.Equal(t, 1, notified)

	// Already stale: another settled event must not notify again.
	w.mu.Lock()
	w.pending["other/file.go"] = time.Now().Add(-time.Second)
	w.mu.Unlock()
	w.flush()
	assert.Equal(t, 1, notified)

	w.Refresh()
	assert.False(t, w.Stale())
}

func TestFlushHoldsUnsettledEvents(t *testing.T) {
	w, err := New(t.TempDir(), nil, config.WatcherConfig{Enabled: true, DebounceMs: 500})
	require.NoError(t, err)
	defer w.Stop()

	w.mu.Lock()
	w.pending["fresh/file.go"] = time.Now()
	w.mu.Unlock()

	w.flush()
	assert.False(t, w.Stale())
}
