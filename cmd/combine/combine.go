package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/lanl-ansi/dwisc/pkg/export"
	"github.com/lanl-ansi/dwisc/pkg/samples"
)

// ErrNoResults is returned when no file under the directory could be loaded.
var ErrNoResults = errors.New("no results found")

// findSampleFiles returns the *.json files under dir, sorted by name within each
// directory. A directory's own files come before those of its subdirectories.
func findSampleFiles(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".json") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	sort.SliceStable(paths, func(i, j int) bool {
		return filepath.Dir(paths[i]) < filepath.Dir(paths[j])
	})
	return paths, nil
}

type loaded struct {
	set *samples.SolutionSet
	err error
}

// loadAll decodes paths with at most workers files in flight. Per-file
// failures are returned in place; only cancellation aborts the load.
func loadAll(ctx context.Context, paths []string, workers int, logger *slog.Logger) ([]loaded, error) {
	results := make([]loaded, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			logger.Debug("loading", "file", path)
			data, err := os.ReadFile(path)
			if err != nil {
				results[i].err = err
				return nil
			}
			results[i].set, results[i].err = export.DecodeBytes(data)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Combine merges the solution files under dir in path order. Files that fail
// to load or do not match the first file's variables are logged and skipped.
// Unless combineOnly is set the result is reduced to a histogram.
func Combine(ctx context.Context, dir string, workers int, combineOnly bool, logger *slog.Logger) (*samples.SolutionSet, error) {
	if logger == nil {
		logger = slog.Default()
	}

	paths, err := findSampleFiles(dir)
	if err != nil {
		return nil, err
	}

	results, err := loadAll(ctx, paths, workers, logger)
	if err != nil {
		return nil, err
	}

	var combined *samples.SolutionSet
	files := 0
	for i, r := range results {
		if r.err != nil {
			logger.Warn("skipping unreadable solution file", "file", paths[i], "error", r.err)
			continue
		}
		if combined == nil {
			combined = r.set
			files++
			continue
		}
		if err := samples.Merge(combined, r.set); err != nil {
			logger.Warn("skipping incompatible solution file", "file", paths[i], "error", err)
			continue
		}
		files++
	}

	if combined == nil {
		return nil, ErrNoResults
	}
	logger.Info("combined solution files", "files", files, "records", len(combined.Solutions))

	if !combineOnly {
		before := len(combined.Solutions)
		if err := samples.Reduce(combined); err != nil {
			return nil, fmt.Errorf("reduce: %w", err)
		}
		logger.Info("merged solution counts", "base", before, "reduced", len(combined.Solutions))
	}
	return combined, nil
}
