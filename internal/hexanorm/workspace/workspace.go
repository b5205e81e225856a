// Package workspace binds a scanned root directory to its configuration and checker, and keeps
// the result of the most recent run for long-lived front ends (watcher, MCP server, TUI).
package workspace

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pmaojo/hexanorm/internal/hexanorm/checker"
	"github.com/pmaojo/hexanorm/internal/hexanorm/config"
	"github.com/pmaojo/hexanorm/internal/hexanorm/domain"
	"github.com/pmaojo/hexanorm/internal/hexanorm/parser"
)

type Workspace struct {
	Root       string
	ConfigPath string // explicit path, empty when discovered or defaulted
	Extra      []string
	NoScan     bool // only Extra feeds the catalog

	log      *zap.SugaredLogger
	override func(*config.Config)

	mu       sync.RWMutex
	cfg      *config.Config
	defaults bool
	chk      *checker.Checker
	last     *checker.Result
	lastErr  error
	lastAt   time.Time
}

type Option func(*Workspace)

func WithLogger(l *zap.SugaredLogger) Option {
	return func(w *Workspace) {
		if l != nil {
			w.log = l
		}
	}
}

// WithDescriptorFiles adds descriptor files outside the root to every scan.
func WithDescriptorFiles(paths ...string) Option {
	return func(w *Workspace) { w.Extra = append(w.Extra, paths...) }
}

// WithoutScan skips the walk of the root; only descriptor files given with WithDescriptorFiles are read.
func WithoutScan() Option {
	return func(w *Workspace) { w.NoScan = true }
}

// WithConfigOverride adjusts every loaded configuration before the checker is built.
func WithConfigOverride(fn func(*config.Config)) Option {
	return func(w *Workspace) { w.override = fn }
}

// Open loads the configuration and builds the checker. Configuration errors are returned as is.
func Open(root, configPath string, opts ...Option) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	w := &Workspace{Root: abs, ConfigPath: configPath, log: zap.NewNop().Sugar()}
	for _, opt := range opts {
		opt(w)
	}
	if err := w.Reload(); err != nil {
		return nil, err
	}
	return w, nil
}

// Reload re-reads the configuration. On error the previous configuration stays active.
func (w *Workspace) Reload() error {
	cfg, defaults, err := config.Resolve(w.ConfigPath, w.Root)
	if err != nil {
		return &domain.ConfigurationError{Kind: domain.ConfigInvalidValue, Subject: w.configName(), Reason: err.Error()}
	}
	if w.override != nil {
		w.override(cfg)
	}
	chk, err := checker.New(cfg, checker.WithLogger(w.log))
	if err != nil {
		return err
	}
	if defaults {
		w.log.Warnw("No config file found, using the default Clean Architecture layering", "root", w.Root)
	}

	w.mu.Lock()
	w.cfg, w.defaults, w.chk = cfg, defaults, chk
	w.mu.Unlock()
	return nil
}

func (w *Workspace) configName() string {
	if w.ConfigPath != "" {
		return w.ConfigPath
	}
	return w.Root
}

func (w *Workspace) Config() *config.Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cfg
}

// UsedDefaults reports whether DefaultConfig is in effect.
func (w *Workspace) UsedDefaults() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.defaults
}

func (w *Workspace) Checker() *checker.Checker {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.chk
}

func (w *Workspace) ScanOptions() parser.ScanOptions {
	cfg := w.Config()
	return parser.ScanOptions{
		ExcludedDirs: cfg.ExcludedDirs,
		IncludeTests: cfg.IncludeTests,
		Workers:      cfg.Workers,
		Logger:       w.log,
	}
}

// Descriptors collects the unit descriptors of the root plus any extra descriptor files. An extra
// file that the scan of the root already reads, or that is listed twice, is loaded once.
func (w *Workspace) Descriptors(ctx context.Context) ([]domain.Descriptor, error) {
	var ds []domain.Descriptor
	opts := w.ScanOptions()
	if !w.NoScan {
		scanned, err := parser.Scan(ctx, w.Root, opts)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", w.Root, err)
		}
		ds = scanned
	}

	seen := make(map[string]bool, len(w.Extra))
	for _, p := range w.Extra {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		if seen[abs] || (!w.NoScan && opts.Covers(w.Root, abs)) {
			w.log.Debugw("Descriptor file already loaded", "path", p)
			continue
		}
		seen[abs] = true

		extra, err := parser.LoadDescriptors(p)
		if err != nil {
			return nil, err
		}
		ds = append(ds, extra...)
	}
	return ds, nil
}

// Check scans the root and runs the checker. The result is remembered for Last.
func (w *Workspace) Check(ctx context.Context) (*checker.Result, error) {
	ds, err := w.Descriptors(ctx)
	if err != nil {
		w.remember(nil, err)
		return nil, err
	}
	res, err := w.Checker().Run(ds)
	w.remember(res, err)
	return res, err
}

func (w *Workspace) remember(res *checker.Result, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastAt = time.Now()
	w.lastErr = err
	if err == nil {
		w.last = res
	}
}

// LastRun describes the most recent Check. Result is the latest successful result and may
// predate Err.
type LastRun struct {
	Result *checker.Result
	Err    error
	At     time.Time
}

func (w *Workspace) Last() LastRun {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return LastRun{Result: w.last, Err: w.lastErr, At: w.lastAt}
}

// PersistenceDir is the absolute directory of the run history database.
func (w *Workspace) PersistenceDir() string {
	dir := w.Config().PersistenceDir
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(w.Root, dir)
}
