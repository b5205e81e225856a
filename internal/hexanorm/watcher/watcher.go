package watcher

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/pmaojo/hexanorm/internal/hexanorm/checker"
	"github.com/pmaojo/hexanorm/internal/hexanorm/config"
	"github.com/pmaojo/hexanorm/internal/hexanorm/parser"
	"github.com/pmaojo/hexanorm/internal/hexanorm/workspace"
)

// DefaultDebounce coalesces bursts of events (editor saves, git checkouts) into one run.
const DefaultDebounce = 300 * time.Millisecond

// ResultFunc receives the outcome of every re-check.
type ResultFunc func(*checker.Result, error)

// Watcher monitors the workspace root and re-runs the check when Java sources, descriptor
// files or the configuration change.
type Watcher struct {
	watcher  *fsnotify.Watcher
	ws       *workspace.Workspace
	onResult ResultFunc
	debounce time.Duration
	log      *zap.SugaredLogger

	mu       sync.Mutex
	timer    *time.Timer
	reconfig bool
	running  bool // a recheck is in progress
	pending  bool // events arrived while running
	closed   bool
	done     chan struct{}
}

type Option func(*Watcher)

func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

func WithLogger(l *zap.SugaredLogger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.log = l
		}
	}
}

// NewWatcher initializes a new Watcher for the workspace root.
// It recursively adds all subdirectories to the watch list, excluding those ignored by config.
func NewWatcher(ws *workspace.Workspace, onResult ResultFunc, opts ...Option) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher:  fw,
		ws:       ws,
		onResult: onResult,
		debounce: DefaultDebounce,
		log:      zap.NewNop().Sugar(),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := w.addRecursive(ws.Root); err != nil {
		fw.Close()
		return nil, err
	}

	return w, nil
}

// Start begins the event loop in a separate goroutine. The loop ends on Close or when ctx is done.
func (w *Watcher) Start(ctx context.Context) {
	go func() {
		defer close(w.done)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				w.handleEvent(event)
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.log.Warnw("Watcher error", "error", err)
			}
		}
	}()
}

// Close stops the watcher and any pending re-check.
func (w *Watcher) Close() error {
	w.mu.Lock()
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return w.watcher.Close()
}

// Done is closed once the event loop has exited.
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if w.shouldIgnore(event.Name) {
		return
	}

	if isConfigFile(event.Name) {
		w.schedule(true)
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				w.log.Warnw("Failed to watch directory", "path", event.Name, "error", err)
			}
			w.schedule(false)
			return
		}
	}
	if !parser.Relevant(event.Name) {
		return
	}
	if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		w.schedule(false)
	}
}

func (w *Watcher) schedule(reconfig bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.reconfig = w.reconfig || reconfig
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.recheck)
}

// recheck runs at most once at a time. Events that fire while a run is in progress re-arm the
// timer when it finishes, so results reach onResult in order.
func (w *Watcher) recheck() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	if w.running {
		w.pending = true
		w.mu.Unlock()
		return
	}
	w.running = true
	reconfig := w.reconfig
	w.reconfig = false
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		w.running = false
		if w.pending && !w.closed {
			w.pending = false
			w.timer = time.AfterFunc(w.debounce, w.recheck)
		}
	}()

	if reconfig {
		if err := w.ws.Reload(); err != nil {
			w.log.Errorw("Failed to reload configuration, keeping the previous one", "error", err)
		} else {
			w.log.Infow("Configuration reloaded")
		}
	}

	res, err := w.ws.Check(context.Background())
	if err != nil {
		w.log.Errorw("Re-check failed", "error", err)
	} else {
		w.log.Infow("Re-checked", "status", res.Report.Status, "violations", len(res.Report.Violations))
	}
	if w.onResult != nil {
		w.onResult(res, err)
	}
}

func (w *Watcher) addRecursive(path string) error {
	return filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != w.ws.Root && w.shouldIgnore(p) {
				return filepath.SkipDir
			}
			return w.watcher.Add(p)
		}
		return nil
	})
}

func (w *Watcher) shouldIgnore(path string) bool {
	if w.ws.ScanOptions().ShouldIgnore(path) {
		return true
	}
	// Run history lives under the root by default; its writes must not trigger re-checks.
	persist := w.ws.PersistenceDir()
	return path == persist || isWithin(persist, path)
}

func isConfigFile(path string) bool {
	return slices.Contains(config.FileNames, filepath.Base(path))
}

func isWithin(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil || rel == "." || rel == ".." {
		return false
	}
	return !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
