package ingest

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a file must stay quiet before ingestion.
// Uploads via network shares and editors arrive as bursts of writes; acting
// on the first event would ingest a half-written file.
const DefaultDebounce = 2 * time.Second

// Watcher ingests files dropped into a directory. Each file is ingested
// once its write events settle.
type Watcher struct {
	dir      string
	debounce time.Duration
	service  *Service
	registry interface{ Supported(string) bool }

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// NewWatcher creates a drop-folder watcher over the ingestion service.
func NewWatcher(dir string, debounce time.Duration, service *Service) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		dir:      dir,
		debounce: debounce,
		service:  service,
		registry: service.registry,
		pending:  make(map[string]*time.Timer),
	}
}

// Run watches the directory until the context is cancelled. Files already
// present at startup are ingested first; deduplication makes the sweep
// harmless across restarts.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return err
	}

	w.sweepExisting(ctx)

	slog.Info("watching drop folder", slog.String("dir", w.dir))
	for {
		select {
		case <-ctx.Done():
			w.cancelPending()
			return ctx.Err()
		case evt, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if evt.Op.Has(fsnotify.Create) || evt.Op.Has(fsnotify.Write) {
				w.schedule(ctx, evt.Name)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) sweepExisting(ctx context.Context) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		slog.Warn("drop folder sweep failed", slog.String("error", err.Error()))
		return
	}
	var inputs []FileInput
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(w.dir, e.Name())
		if !w.eligible(path) {
			continue
		}
		inputs = append(inputs, FileInput{Path: path, Filename: e.Name()})
	}
	if len(inputs) == 0 {
		return
	}
	if _, err := w.service.IngestFiles(ctx, inputs); err != nil {
		slog.Error("startup sweep ingestion failed", slog.String("error", err.Error()))
	}
}

// schedule (re)arms the per-file debounce timer.
func (w *Watcher) schedule(ctx context.Context, path string) {
	if !w.eligible(path) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok {
		t.Reset(w.debounce)
		return
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		w.ingestOne(ctx, path)
	})
}

func (w *Watcher) ingestOne(ctx context.Context, path string) {
	results, err := w.service.IngestFiles(ctx, []FileInput{{
		Path:     path,
		Filename: filepath.Base(path),
	}})
	if err != nil {
		slog.Error("drop folder ingestion failed",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return
	}
	for _, r := range results {
		slog.Info("drop folder file processed",
			slog.String("filename", r.Filename),
			slog.String("outcome", string(r.Outcome)))
	}
}

func (w *Watcher) eligible(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return false
	}
	if !w.registry.Supported(name) {
		return false
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return true
}

func (w *Watcher) cancelPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}
