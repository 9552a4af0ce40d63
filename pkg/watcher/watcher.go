// Package watcher observes the workspace root for markdown file changes
// and feeds debounced add/change/remove events into the Document Index,
// the Live-Reload Bus, and the Sync Service (spec §4.C).
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-hclog"
)

const debounceDelay = 100 * time.Millisecond

// EventKind is the classification dispatched on debounce fire, per §4.C.
type EventKind string

const (
	KindAdd    EventKind = "add"
	KindChange EventKind = "change"
	KindRemove EventKind = "remove"
)

// Event is one dispatched, debounced filesystem event.
type Event struct {
	// Path is workspace-relative, forward-slash normalized.
	Path string
	Kind EventKind
}

// Sink receives each dispatched event after the Index has been mutated,
// in arrival order for a given path (§5). pkg/syncsvc and the bus adapter
// in internal/server implement this to stay live-updated.
type Sink interface {
	OnEvent(ev Event)
}

// Watcher observes root recursively via fsnotify and debounces per-path
// bursts into single add/change/remove dispatches (§4.C).
type Watcher struct {
	root   string
	index  indexAdapter
	sinks  []Sink
	logger hclog.Logger

	fsw *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*time.Timer

	done chan struct{}
}

// indexAdapter narrows pkg/docindex.Index to what the Watcher needs,
// keeping the Watcher off the concrete Index type while still giving it
// real knowledge of what's currently indexed.
type indexAdapter interface {
	Has(path string) bool
	UpdateDocument(path string) error
	RemoveDocument(path string) error
}

// New creates a Watcher rooted at root. Call AddSink before Start to wire
// up the Bus and Sync Service.
func New(root string, index indexAdapter, logger hclog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Watcher{
		root:    root,
		index:   index,
		logger:  logger.Named("watcher"),
		fsw:     fsw,
		pending: make(map[string]*time.Timer),
		done:    make(chan struct{}),
	}, nil
}

// AddSink registers a Sink to be notified after every dispatched event.
func (w *Watcher) AddSink(s Sink) { w.sinks = append(w.sinks, s) }

// Start begins watching root and all current subdirectories (excluding
// hidden ones), and launches the event-processing goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addTree(w.root); err != nil {
		return err
	}
	go w.eventLoop(ctx)
	return nil
}

// Stop shuts the watcher down.
func (w *Watcher) Stop() error {
	close(w.done)
	return w.fsw.Close()
}

func (w *Watcher) addTree(dir string) error {
	return filepath.Walk(dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		base := filepath.Base(p)
		if base != filepath.Base(w.root) && strings.HasPrefix(base, ".") {
			return filepath.SkipDir
		}
		return w.fsw.Add(p)
	})
}

func (w *Watcher) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleRawEvent(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("fsnotify error", "error", err)
		}
	}
}

func (w *Watcher) handleRawEvent(ev fsnotify.Event) {
	if ev.Op&fsnotify.Create == fsnotify.Create {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			base := filepath.Base(ev.Name)
			if !strings.HasPrefix(base, ".") {
				_ = w.fsw.Add(ev.Name)
			}
			return
		}
	}

	if !strings.HasSuffix(strings.ToLower(ev.Name), ".md") {
		return
	}
	if isHiddenPath(w.root, ev.Name) {
		return
	}

	w.debounce(ev.Name)
}

// debounce coalesces rapid bursts for one path into a single dispatch
// after debounceDelay, per §4.C.
func (w *Watcher) debounce(absPath string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, exists := w.pending[absPath]; exists {
		t.Stop()
	}
	w.pending[absPath] = time.AfterFunc(debounceDelay, func() {
		w.mu.Lock()
		delete(w.pending, absPath)
		w.mu.Unlock()
		w.fire(absPath)
	})
}

// fire determines the event kind and mutates the Index, then notifies
// every registered sink in arrival order for this path (§5).
func (w *Watcher) fire(absPath string) {
	rel, err := relSlash(w.root, absPath)
	if err != nil {
		return
	}

	_, statErr := os.Stat(absPath)
	exists := statErr == nil

	var kind EventKind
	var mutateErr error
	switch {
	case !exists:
		kind = KindRemove
		mutateErr = w.index.RemoveDocument(rel)
	case w.index.Has(rel):
		kind = KindChange
		mutateErr = w.index.UpdateDocument(rel)
	default:
		kind = KindAdd
		mutateErr = w.index.UpdateDocument(rel)
	}

	if mutateErr != nil {
		w.logger.Warn("index mutation failed for watcher event", "path", rel, "kind", kind, "error", mutateErr)
		return
	}

	w.dispatch(Event{Path: rel, Kind: kind})
}

func (w *Watcher) dispatch(ev Event) {
	for _, s := range w.sinks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					w.logger.Warn("watcher sink panicked, skipping", "recovered", r)
				}
			}()
			s.OnEvent(ev)
		}()
	}
}

func isHiddenPath(root, abs string) bool {
	rel, err := relSlash(root, abs)
	if err != nil {
		return true
	}
	for _, seg := range strings.Split(rel, "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}

func relSlash(root, target string) (string, error) {
	root = filepath.ToSlash(root)
	target = filepath.ToSlash(target)
	root = strings.TrimSuffix(root, "/")
	if !strings.HasPrefix(target, root+"/") {
		return "", os.ErrInvalid
	}
	return strings.TrimPrefix(target, root+"/"), nil
}
