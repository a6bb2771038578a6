package memory

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/strandhq/strand/internal/observability"
)

type cachedSegment struct {
	content string
	at      time.Time
}

// SegmentCache memoizes rendered prompt segments so file-backed sections are
// not re-read on every turn. Entries expire by age and can be invalidated
// when the backing file changes.
type SegmentCache struct {
	mu      sync.Mutex
	entries map[Segment]cachedSegment
	now     func() time.Time
}

func NewSegmentCache() *SegmentCache {
	return &SegmentCache{
		entries: make(map[Segment]cachedSegment),
		now:     time.Now,
	}
}

// Get returns the cached content for seg if it is younger than maxAge.
func (c *SegmentCache) Get(seg Segment, maxAge time.Duration) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[seg]
	if !ok {
		return "", false
	}
	if c.now().Sub(e.at) > maxAge {
		delete(c.entries, seg)
		return "", false
	}
	return e.content, true
}

func (c *SegmentCache) Set(seg Segment, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[seg] = cachedSegment{content: content, at: c.now()}
}

func (c *SegmentCache) Invalidate(seg Segment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, seg)
}

func (c *SegmentCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[Segment]cachedSegment)
}

// Watch invalidates file-backed segments when their markdown files change on
// disk, so edits made outside the agent (or by another session) show up in
// the next assembled prompt. The watcher runs until Close is called.
type Watcher struct {
	fs     *fsnotify.Watcher
	cache  *SegmentCache
	logger *observability.Logger
	done   chan struct{}
}

// WatchMemoryFiles watches the memory root directory and maps the known
// file names to their cache segments.
func WatchMemoryFiles(root string, cache *SegmentCache, logger *observability.Logger) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fs.Add(root); err != nil {
		fs.Close()
		return nil, err
	}
	w := &Watcher{fs: fs, cache: cache, logger: logger, done: make(chan struct{})}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			seg, ok := segmentForFile(filepath.Base(ev.Name))
			if !ok {
				continue
			}
			w.cache.Invalidate(seg)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			if w.logger != nil {
				w.logger.Warn(context.Background(), "memory watcher error", "error", err)
			}
		}
	}
}

func segmentForFile(name string) (Segment, bool) {
	switch name {
	case "lessons.md":
		return SegmentLessons, true
	case "procedural.md":
		return SegmentProcedural, true
	case "preferences.md":
		return SegmentPreferences, true
	}
	return 0, false
}

func (w *Watcher) Close() error {
	close(w.done)
	return w.fs.Close()
}
