package backend

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/seqscout/seqscout/internal/genomics"
)

// FilesystemBackend serves searches from an in-memory snapshot of a
// local directory tree. Only files with a recognized genomics suffix
// are listed. With watching enabled, filesystem events invalidate the
// snapshot and the next search re-walks the tree.
type FilesystemBackend struct {
	root string
	name string

	mu       sync.Mutex
	snapshot []*genomics.GenomicsFile
	dirty    bool

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewFilesystemBackend creates a backend over root. When watch is true
// an fsnotify watcher keeps the snapshot fresh.
func NewFilesystemBackend(name, root string, watch bool) (*FilesystemBackend, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %s: %w", root, err)
	}
	if name == "" {
		name = "filesystem"
	}
	b := &FilesystemBackend{root: abs, name: name, dirty: true}

	if watch {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, fmt.Errorf("create watcher: %w", err)
		}
		if err := addRecursive(w, abs); err != nil {
			w.Close()
			return nil, fmt.Errorf("watch %s: %w", abs, err)
		}
		b.watcher = w
		b.done = make(chan struct{})
		go b.watch()
	}
	return b, nil
}

// addRecursive adds root and every directory under it to the watcher.
// fsnotify watches are non-recursive, so each subtree level needs its
// own watch.
func addRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		return w.Add(path)
	})
}

// Name implements the backend interface.
func (b *FilesystemBackend) Name() string { return b.name }

// Close stops the watcher, if any.
func (b *FilesystemBackend) Close() error {
	if b.watcher == nil {
		return nil
	}
	close(b.done)
	return b.watcher.Close()
}

// watch marks the snapshot dirty on any filesystem event. The walk
// itself happens lazily on the next search.
func (b *FilesystemBackend) watch() {
	for {
		select {
		case <-b.done:
			return
		case ev, ok := <-b.watcher.Events:
			if !ok {
				return
			}
			// New directories need their own watch.
			if ev.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := b.watcher.Add(ev.Name); err != nil {
						slog.Warn("watch new directory failed",
							slog.String("path", ev.Name),
							slog.String("error", err.Error()))
					}
				}
			}
			b.mu.Lock()
			b.dirty = true
			b.mu.Unlock()
		case err, ok := <-b.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("filesystem watch error",
				slog.String("root", b.root),
				slog.String("error", err.Error()))
		}
	}
}

// files returns the current snapshot, re-walking the tree when dirty.
func (b *FilesystemBackend) files() ([]*genomics.GenomicsFile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.dirty {
		return b.snapshot, nil
	}

	var snapshot []*genomics.GenomicsFile
	err := filepath.WalkDir(b.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtree; list what we can.
			slog.Debug("skipping unreadable path",
				slog.String("path", path),
				slog.String("error", err.Error()))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		ft := genomics.FileTypeFromPath(path)
		if ft == genomics.FileTypeUnknown {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		snapshot = append(snapshot, &genomics.GenomicsFile{
			Path:         path,
			FileType:     ft,
			SizeBytes:    info.Size(),
			StorageClass: "STANDARD",
			LastModified: info.ModTime(),
			SourceSystem: b.name,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", b.root, err)
	}

	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].Path < snapshot[j].Path })
	b.snapshot = snapshot
	b.dirty = false
	return snapshot, nil
}

func matches(f *genomics.GenomicsFile, q genomics.Query) bool {
	if q.FileType != "" && q.FileType != genomics.FileTypeUnknown && f.FileType != q.FileType {
		return false
	}
	lower := strings.ToLower(f.Path)
	for _, term := range q.Terms {
		t := strings.ToLower(strings.TrimSpace(term))
		if t == "" {
			continue
		}
		if !strings.Contains(lower, t) {
			return false
		}
	}
	return true
}

// Search returns every snapshot entry matching the query.
func (b *FilesystemBackend) Search(ctx context.Context, q genomics.Query) ([]*genomics.GenomicsFile, error) {
	snapshot, err := b.files()
	if err != nil {
		return nil, err
	}
	var out []*genomics.GenomicsFile
	for _, f := range snapshot {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if matches(f, q) {
			out = append(out, f)
		}
	}
	return out, nil
}

// SearchPaginated slices the path-sorted snapshot with an integer
// cursor. The token is the snapshot offset of the next unexamined
// entry.
func (b *FilesystemBackend) SearchPaginated(ctx context.Context, q genomics.Query, page genomics.BackendPageRequest) (*genomics.BackendPage, error) {
	snapshot, err := b.files()
	if err != nil {
		return nil, err
	}

	start := 0
	if page.ContinuationToken != "" {
		v, err := strconv.Atoi(page.ContinuationToken)
		if err != nil || v < 0 {
			return nil, fmt.Errorf("invalid filesystem continuation token %q", page.ContinuationToken)
		}
		start = v
	}
	bufferSize := page.BufferSize
	if bufferSize <= 0 {
		bufferSize = 100
	}

	out := &genomics.BackendPage{}
	i := start
	for ; i < len(snapshot) && len(out.Results) < bufferSize; i++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		out.TotalScanned++
		if matches(snapshot[i], q) {
			out.Results = append(out.Results, snapshot[i])
		}
	}
	if i < len(snapshot) {
		out.HasMoreResults = true
		out.NextContinuationToken = strconv.Itoa(i)
	}
	return out, nil
}
