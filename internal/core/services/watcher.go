package services

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/viseme-labs/talksync/internal/core/domain"
	"github.com/viseme-labs/talksync/internal/core/ports/driving"
	"github.com/viseme-labs/talksync/internal/logger"
)

// Watcher monitors a spool directory and submits an offline rendering
// job for every audio file dropped into it. Files are paired with a
// fixed portrait image configured at construction.
type Watcher struct {
	pipeline driving.PipelineService
	spoolDir string
	portrait string
	settle   time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	// pending maps spooled paths to the time of their last write event.
	// A file is submitted once it has been quiet for the settle period.
	pending   map[string]time.Time
	submitted map[string]bool
}

var _ driving.WatchService = (*Watcher)(nil)

// NewWatcher creates a spool watcher. settle is how long a file must
// remain unchanged before it is considered fully written.
func NewWatcher(pipeline driving.PipelineService, spoolDir, portrait string, settle time.Duration) *Watcher {
	return &Watcher{
		pipeline:  pipeline,
		spoolDir:  spoolDir,
		portrait:  portrait,
		settle:    settle,
		pending:   make(map[string]time.Time),
		submitted: make(map[string]bool),
	}
}

// Start begins the watch loop. This method blocks until Stop is called
// or the context is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil // Already running
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.mu.Unlock()

	if err := os.MkdirAll(w.spoolDir, 0o755); err != nil {
		return err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(w.spoolDir); err != nil {
		return err
	}

	// Pick up files already sitting in the spool before we started.
	w.scanExisting()

	return w.run(ctx, fw)
}

// Stop gracefully shuts down the watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	close(w.stopCh)
	w.mu.Unlock()

	w.wg.Wait()

	return nil
}

// scanExisting marks every valid audio file already present in the
// spool as pending so the settle timer picks it up.
func (w *Watcher) scanExisting() {
	entries, err := os.ReadDir(w.spoolDir)
	if err != nil {
		logger.Warn("Failed to scan spool directory: %v", err)
		return
	}

	now := time.Now()
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(w.spoolDir, entry.Name())
		if !w.eligible(path) {
			continue
		}
		w.mu.Lock()
		w.pending[path] = now
		w.mu.Unlock()
	}
}

// run is the main watch loop.
func (w *Watcher) run(ctx context.Context, fw *fsnotify.Watcher) error {
	interval := w.settle / 2
	if interval < 100*time.Millisecond {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Spool watch error: %v", err)
		case <-ticker.C:
			w.submitSettled(ctx)
		}
	}
}

// handleEvent records write activity for eligible spool files.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
		return
	}
	if !w.eligible(event.Name) {
		return
	}

	w.mu.Lock()
	w.pending[event.Name] = time.Now()
	w.mu.Unlock()
}

// eligible reports whether a path is an audio file we have not yet
// submitted. Hidden files are skipped so partial uploads written under
// a dot-prefix and renamed into place are not picked up early.
func (w *Watcher) eligible(path string) bool {
	base := filepath.Base(path)
	if len(base) > 0 && base[0] == '.' {
		return false
	}
	if !domain.ValidAudioPath(path) {
		return false
	}
	if info, err := os.Stat(path); err != nil || !info.Mode().IsRegular() {
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.submitted[path]
}

// submitSettled starts jobs for pending files that have been quiet for
// the settle period.
func (w *Watcher) submitSettled(ctx context.Context) {
	cutoff := time.Now().Add(-w.settle)

	w.mu.Lock()
	var due []string
	for path, last := range w.pending {
		if last.Before(cutoff) || last.Equal(cutoff) {
			due = append(due, path)
		}
	}
	for _, path := range due {
		delete(w.pending, path)
		w.submitted[path] = true
	}
	w.mu.Unlock()

	for _, path := range due {
		w.submit(ctx, path)
	}
}

// submit starts an offline job for a settled spool file.
func (w *Watcher) submit(ctx context.Context, path string) {
	if _, err := os.Stat(path); err != nil {
		// Removed between settling and submission.
		w.mu.Lock()
		delete(w.submitted, path)
		w.mu.Unlock()
		return
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		handle, err := w.pipeline.Start(ctx, domain.JobDescriptor{
			Mode:       domain.ModeOffline,
			AudioPath:  path,
			SourcePath: w.portrait,
		})
		if err != nil {
			logger.Warn("Failed to submit %s: %v", path, err)
			w.mu.Lock()
			delete(w.submitted, path)
			w.mu.Unlock()
			return
		}

		logger.Info("Submitted job %s for %s", handle.ID, path)
	}()
}
