package scrapbox

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSource_Watch(t *testing.T) {
	t.Run("notifies once per burst of writes", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "export.json")
		require.NoError(t, os.WriteFile(path, []byte(exportJSON), 0600))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		changes, err := NewFileSource(path).Watch(ctx, 50*time.Millisecond)
		require.NoError(t, err)

		go func() {
			time.Sleep(20 * time.Millisecond)
			for i := 0; i < 3; i++ {
				_ = os.WriteFile(path, []byte(exportJSON), 0600)
			}
		}()

		select {
		case _, ok := <-changes:
			assert.True(t, ok)
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for change notification")
		}

		select {
		case <-changes:
			t.Fatal("burst produced more than one notification")
		case <-time.After(200 * time.Millisecond):
		}
	})

	t.Run("ignores other files in the directory", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "export.json")
		require.NoError(t, os.WriteFile(path, []byte(exportJSON), 0600))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		changes, err := NewFileSource(path).Watch(ctx, 20*time.Millisecond)
		require.NoError(t, err)

		require.NoError(t, os.WriteFile(filepath.Join(dir, "other.json"), []byte("{}"), 0600))

		select {
		case <-changes:
			t.Fatal("unexpected notification for another file")
		case <-time.After(200 * time.Millisecond):
		}
	})

	t.Run("closes channel when context is cancelled", func(t *testing.T) {
		dir := t.TempDir()
		ctx, cancel := context.WithCancel(context.Background())

		changes, err := NewFileSource(filepath.Join(dir, "export.json")).Watch(ctx, 0)
		require.NoError(t, err)
		cancel()

		select {
		case _, ok := <-changes:
			assert.False(t, ok)
		case <-time.After(time.Second):
			t.Fatal("channel did not close after context cancellation")
		}
	})

	t.Run("returns error for missing directory", func(t *testing.T) {
		_, err := NewFileSource("/non/existent/dir/export.json").Watch(context.Background(), 0)
		assert.Error(t, err)
	})
}
