package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/canteen-orders/internal/async"
)

// IngestPath enqueues a single image.
func (i *Ingestor) IngestPath(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("abs path: %w", err)
	}
	if !AllowedExt(filepath.Ext(abs)) {
		return fmt.Errorf("unsupported or missing extension: %q", filepath.Ext(abs))
	}
	return i.queue.Enqueue(ctx, async.Job{Path: abs})
}

// IngestDirectory walks root, skips hidden entries if requested and enqueues
// every image it finds. Returns per-file results + aggregate stats.
func (i *Ingestor) IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]Result, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root_path is required")
	}

	var results []Result
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, Result{Path: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !AllowedExt(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++

		if err := i.IngestPath(ctx, path); err != nil {
			results = append(results, Result{Path: path, Err: err.Error()})
			stats.Failed++
			return nil
		}
		results = append(results, Result{Path: path})
		stats.Enqueued++
		return nil
	})

	i.logger.Info("ingest.directory.done",
		"root", root,
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"enqueued", stats.Enqueued,
		"failed", stats.Failed,
	)
	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	return results, stats, nil
}
