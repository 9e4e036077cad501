package picker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"k8s.io/klog/v2"

	"github.com/menta2k/watermark/internal/utils"
	"github.com/menta2k/watermark/pkg/processing"
)

// DefaultSettle is how long a file must stay quiet before it is loaded.
const DefaultSettle = 250 * time.Millisecond

// DirWatcher turns a hot folder into a stream of images. Each new or
// changed image file is delivered once per (size, mtime).
type DirWatcher struct {
	processor *processing.Processor
	dir       string
	settle    time.Duration
	existing  bool
	ignore    func(path string) bool

	mu   sync.Mutex
	seen map[string]fileStamp
}

type fileStamp struct {
	size    int64
	modTime time.Time
}

// NewDirWatcher creates a watcher for dir
func NewDirWatcher(processor *processing.Processor, dir string) *DirWatcher {
	if processor == nil {
		processor = processing.NewProcessor()
	}
	return &DirWatcher{
		processor: processor,
		dir:       dir,
		settle:    DefaultSettle,
		seen:      make(map[string]fileStamp),
	}
}

// WithSettle sets the quiet period before a changed file is loaded
func (w *DirWatcher) WithSettle(d time.Duration) *DirWatcher {
	if d > 0 {
		w.settle = d
	}
	return w
}

// WithExisting makes Watch deliver images already in the folder first
func (w *DirWatcher) WithExisting(existing bool) *DirWatcher {
	w.existing = existing
	return w
}

// WithIgnore skips paths for which ignore returns true, such as the
// watcher's own output files.
func (w *DirWatcher) WithIgnore(ignore func(path string) bool) *DirWatcher {
	w.ignore = ignore
	return w
}

// Pick waits for the next image to land in the folder
func (w *DirWatcher) Pick(ctx context.Context) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		defer close(out)

		wctx, cancel := context.WithCancel(ctx)
		defer cancel()

		results, err := w.Watch(wctx)
		if err != nil {
			out <- Result{Source: w.dir, Err: err}
			return
		}
		res, ok := <-results
		if !ok {
			res = Result{Source: w.dir}
		}
		out <- res
	}()
	return out
}

// Watch starts watching and returns the result stream. The stream is closed
// when ctx is done or the underlying watcher fails.
func (w *DirWatcher) Watch(ctx context.Context) (<-chan Result, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("new watcher: %w", err)
	}
	if err := fw.Add(w.dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", w.dir, err)
	}
	klog.V(1).Infof("watching %s ...", w.dir)

	out := make(chan Result)
	ready := make(chan string)
	quit := make(chan struct{})

	go func() {
		defer close(out)
		defer fw.Close()
		defer close(quit)

		timers := make(map[string]*time.Timer)
		defer func() {
			for _, t := range timers {
				t.Stop()
			}
		}()

		if w.existing {
			files, err := utils.ListImageFiles(w.dir)
			if err != nil {
				klog.Warningf("list %s: %v", w.dir, err)
			}
			for _, f := range files {
				if filepath.Dir(f) != filepath.Clean(w.dir) || !w.wants(f) {
					continue
				}
				if !w.emit(ctx, out, f) {
					return
				}
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-fw.Events:
				if !ok {
					return
				}
				klog.V(3).Infof("event: %s", event)
				if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
					w.forget(event.Name)
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				if !w.wants(event.Name) {
					continue
				}
				path := event.Name
				if t, ok := timers[path]; ok {
					t.Reset(w.settle)
					continue
				}
				timers[path] = time.AfterFunc(w.settle, func() {
					select {
					case ready <- path:
					case <-quit:
					}
				})
			case path := <-ready:
				delete(timers, path)
				if !w.emit(ctx, out, path) {
					return
				}
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				klog.Errorf("watch %s: %v", w.dir, err)
			}
		}
	}()

	return out, nil
}

func (w *DirWatcher) wants(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || !utils.IsImageFile(base) {
		return false
	}
	if w.ignore != nil && w.ignore(path) {
		return false
	}
	return true
}

// forget drops the delivery record for path, so a file re-created under the
// same name is delivered again.
func (w *DirWatcher) forget(path string) {
	w.mu.Lock()
	delete(w.seen, path)
	w.mu.Unlock()
}

// emit loads path and sends it unless it was already delivered with the
// same size and mtime. It returns false once ctx is done.
func (w *DirWatcher) emit(ctx context.Context, out chan<- Result, path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		// Renamed away or deleted before it settled.
		w.forget(path)
		return true
	}
	stamp := fileStamp{size: info.Size(), modTime: info.ModTime()}

	w.mu.Lock()
	prev, dup := w.seen[path]
	w.mu.Unlock()
	if dup && prev.size == stamp.size && prev.modTime.Equal(stamp.modTime) {
		klog.V(2).Infof("skipping unchanged %s", path)
		return true
	}

	img, err := w.processor.LoadImage(path)
	if err != nil {
		// Leave it unseen so the next write retries.
		klog.V(1).Infof("not ready %s: %v", path, err)
		return true
	}

	w.mu.Lock()
	w.seen[path] = stamp
	w.mu.Unlock()

	select {
	case out <- Result{Image: img, Source: path}:
		return true
	case <-ctx.Done():
		return false
	}
}
