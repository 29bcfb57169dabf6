package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/respogen/respogen/internal/scaffolding"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestEventTypeString(t *testing.T) {
	testCases := []struct {
		eventType EventType
		expected  string
	}{
		{EventTypeCreated, "created"},
		{EventTypeModified, "modified"},
		{EventTypeDeleted, "deleted"},
		{EventTypeRenamed, "renamed"},
		{EventType(42), "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.eventType.String())
		})
	}
}

func TestDebouncerGroupsAndDeduplicates(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	defer d.Stop()

	d.Add(ChangeEvent{Type: EventTypeCreated, Path: "b.yaml"})
	d.Add(ChangeEvent{Type: EventTypeCreated, Path: "a.yaml"})
	d.Add(ChangeEvent{Type: EventTypeModified, Path: "b.yaml"})

	select {
	case events := <-d.Output():
		require.Len(t, events, 2)
		assert.Equal(t, "a.yaml", events[0].Path)
		assert.Equal(t, "b.yaml", events[1].Path)
		assert.Equal(t, EventTypeModified, events[1].Type)
	case <-time.After(2 * time.Second):
		t.Fatal("debouncer never flushed")
	}
}

func TestTemplateFilter(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/tmpl/node.yaml", true},
		{"/tmpl/node.YML", true},
		{"/tmpl/.node.yaml.swp", false},
		{"/tmpl/.hidden.yaml", false},
		{"/tmpl/node.yaml~", false},
		{"/tmpl/README.md", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, TemplateFilter(tt.path))
		})
	}
}

func TestFileWatcherAddPath(t *testing.T) {
	fw, err := NewFileWatcher(50*time.Millisecond, nil)
	require.NoError(t, err)
	defer fw.Stop()

	assert.NoError(t, fw.AddPath(t.TempDir()))
	assert.Error(t, fw.AddPath(""))
	assert.Error(t, fw.AddPath(filepath.Join(t.TempDir(), "missing")))

	file := filepath.Join(t.TempDir(), "file.yaml")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
	assert.Error(t, fw.AddPath(file))
}

func TestFileWatcherDeliversChanges(t *testing.T) {
	dir := t.TempDir()

	fw, err := NewFileWatcher(30*time.Millisecond, nil)
	require.NoError(t, err)
	require.NoError(t, fw.AddPath(dir))

	var (
		mu       sync.Mutex
		received []ChangeEvent
	)
	got := make(chan struct{}, 1)
	fw.AddFilter(TemplateFilter)
	fw.AddHandler(func(ctx context.Context, events []ChangeEvent) error {
		mu.Lock()
		received = append(received, events...)
		mu.Unlock()
		select {
		case got <- struct{}{}:
		default:
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fw.Start(ctx)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "custom.yaml"), []byte("id: custom"), 0o600))

	select {
	case <-got:
	case <-time.After(5 * time.Second):
		t.Fatal("no change delivered")
	}

	require.NoError(t, fw.Stop())

	mu.Lock()
	defer mu.Unlock()
	for _, e := range received {
		assert.Equal(t, "custom.yaml", filepath.Base(e.Path))
	}
}

const customTemplate = `id: custom
name: Custom
version: 1
files:
  - path: HELLO.md
    content: "hello {{name}}"
`

func TestTemplateReloader(t *testing.T) {
	dir := t.TempDir()
	builtin, err := scaffolding.LoadBuiltin()
	require.NoError(t, err)
	store := scaffolding.NewStore(builtin)

	reloader := NewTemplateReloader(dir, store, nil)

	// empty directory fails and keeps the builtin registry
	assert.Error(t, reloader.Reload(context.Background()))
	assert.True(t, store.Current().Has("node"))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "custom.yaml"), []byte(customTemplate), 0o600))
	require.NoError(t, reloader.HandleChanges(context.Background(), []ChangeEvent{{Path: "custom.yaml"}}))

	assert.Equal(t, []string{"custom"}, store.Current().IDs())
}

func TestWatchTemplatesReloadsStore(t *testing.T) {
	dir := t.TempDir()
	builtin, err := scaffolding.LoadBuiltin()
	require.NoError(t, err)
	store := scaffolding.NewStore(builtin)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fw, err := WatchTemplates(ctx, dir, store, 30*time.Millisecond, nil)
	require.NoError(t, err)
	defer fw.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "custom.yaml"), []byte(customTemplate), 0o600))

	assert.Eventually(t, func() bool {
		return store.Current().Has("custom")
	}, 5*time.Second, 20*time.Millisecond)
}
