package watcher

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/respogen/respogen/internal/logging"
	"github.com/respogen/respogen/internal/scaffolding"
)

// DefaultDebounce is the quiet period before a template reload.
const DefaultDebounce = 300 * time.Millisecond

// TemplateFilter accepts YAML template definitions and skips editor
// swap and hidden files.
func TemplateFilter(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return false
	}
	return scaffolding.IsTemplateFile(base)
}

// TemplateReloader rebuilds the registry from dir and swaps it into the
// store. A directory that fails to load leaves the previous registry in
// place.
type TemplateReloader struct {
	dir    string
	store  *scaffolding.Store
	logger logging.Logger
}

// NewTemplateReloader creates a reloader for dir.
func NewTemplateReloader(dir string, store *scaffolding.Store, logger logging.Logger) *TemplateReloader {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &TemplateReloader{dir: dir, store: store, logger: logger.WithComponent("templates")}
}

// Reload loads the directory and swaps the registry on success.
func (r *TemplateReloader) Reload(ctx context.Context) error {
	registry, err := scaffolding.LoadDir(r.dir)
	if err != nil {
		r.logger.Warn(ctx, err, "Template reload failed, keeping previous templates", "dir", r.dir)
		return err
	}
	r.store.Swap(registry)
	r.logger.Info(ctx, "Templates reloaded", "dir", r.dir, "templates", strings.Join(registry.IDs(), ","))
	return nil
}

// HandleChanges is a ChangeHandler that reloads once per batch.
func (r *TemplateReloader) HandleChanges(ctx context.Context, events []ChangeEvent) error {
	r.logger.Debug(ctx, "Template files changed", "events", len(events))
	return r.Reload(ctx)
}

// WatchTemplates starts watching dir and reloading store on change. The
// caller stops the returned watcher.
func WatchTemplates(ctx context.Context, dir string, store *scaffolding.Store, delay time.Duration, logger logging.Logger) (*FileWatcher, error) {
	fw, err := NewFileWatcher(delay, logger)
	if err != nil {
		return nil, err
	}
	if err := fw.AddPath(dir); err != nil {
		_ = fw.Stop()
		return nil, err
	}

	reloader := NewTemplateReloader(dir, store, logger)
	fw.AddFilter(TemplateFilter)
	fw.AddHandler(reloader.HandleChanges)
	fw.Start(ctx)

	return fw, nil
}
