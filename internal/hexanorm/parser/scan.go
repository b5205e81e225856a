package parser

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pmaojo/hexanorm/internal/hexanorm/domain"
)

// ScanOptions controls which files under a root feed the catalog.
type ScanOptions struct {
	ExcludedDirs []string
	IncludeTests bool
	Workers      int
	Logger       *zap.SugaredLogger
}

// ShouldIgnore reports whether a path is excluded from scanning.
func (o ScanOptions) ShouldIgnore(path string) bool {
	base := filepath.Base(path)
	for _, excl := range o.ExcludedDirs {
		if base == excl {
			return true
		}
	}
	slashed := filepath.ToSlash(path)
	if base == ".git" || strings.Contains(slashed, "/.git/") {
		return true
	}
	if !o.IncludeTests && (strings.HasSuffix(slashed, "src/test") || strings.Contains(slashed, "/src/test/")) {
		return true
	}
	return false
}

// Covers reports whether Scan of root reads the descriptor file at path. Both paths must be
// absolute and clean.
func (o ScanOptions) Covers(root, path string) bool {
	if !IsDescriptorFile(path) {
		return false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	for dir := filepath.Dir(path); len(dir) > len(root); dir = filepath.Dir(dir) {
		if o.ShouldIgnore(dir) {
			return false
		}
	}
	return true
}

// Relevant reports whether a file is one Scan reads.
func Relevant(path string) bool {
	return strings.HasSuffix(path, ".java") || IsDescriptorFile(path)
}

// Scan walks root and returns descriptors for every Java type and every descriptor file found.
// Files are visited in lexical order so the result does not depend on scheduling.
func Scan(ctx context.Context, root string, opts ScanOptions) ([]domain.Descriptor, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	var javaPaths, descriptorPaths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && opts.ShouldIgnore(path) {
				return filepath.SkipDir
			}
			return nil
		}
		switch {
		case IsDescriptorFile(path):
			descriptorPaths = append(descriptorPaths, path)
		case strings.HasSuffix(path, ".java"):
			if opts.ShouldIgnore(path) {
				return nil
			}
			javaPaths = append(javaPaths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(javaPaths)
	sort.Strings(descriptorPaths)

	files, err := parseAll(ctx, root, javaPaths, opts.Workers)
	if err != nil {
		return nil, err
	}
	out := ResolveJava(files)
	log.Debugw("Parsed Java sources", "files", len(files), "units", len(out))

	for _, p := range descriptorPaths {
		ds, err := LoadDescriptors(p)
		if err != nil {
			return nil, err
		}
		out = append(out, ds...)
	}
	log.Debugw("Scan complete", "root", root, "descriptors", len(out))
	return out, nil
}

func parseAll(ctx context.Context, root string, paths []string, workers int) ([]*JavaFile, error) {
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	files := make([]*JavaFile, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, p := range paths {
		g.Go(func() error {
			content, err := os.ReadFile(p)
			if err != nil {
				return err
			}
			rel, err := filepath.Rel(root, p)
			if err != nil {
				rel = p
			}
			f, err := ParseJava(ctx, filepath.ToSlash(rel), content)
			if err != nil {
				return err
			}
			files[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}
