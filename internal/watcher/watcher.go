// Package watcher provides an upload-inbox watcher: files dropped into a
// directory are handed to a callback for ingestion once writes settle.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// Inbox watches a single directory for dropped files. Each matching file is
// reported once its writes have settled; large copies therefore trigger the
// callback only after the final write.
type Inbox struct {
	dir        string
	extensions []string
	onFile     func(path string)
	debounce   time.Duration

	watcher     *fsnotify.Watcher
	mu          sync.Mutex
	debounceMap map[string]*time.Timer
	done        chan struct{}
	started     bool
	stopOnce    sync.Once
	logger      *zap.Logger
}

// InboxOption configures an Inbox.
type InboxOption func(*Inbox)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) InboxOption {
	return func(i *Inbox) { i.logger = l }
}

// WithDebounce overrides the settle interval before a file is reported.
func WithDebounce(d time.Duration) InboxOption {
	return func(i *Inbox) { i.debounce = d }
}

// NewInbox creates an inbox watcher over dir. extensions filter which files
// are reported (empty = all); onFile is called with the absolute path of each
// settled file.
func NewInbox(dir string, extensions []string, onFile func(path string), opts ...InboxOption) *Inbox {
	i := &Inbox{
		dir:         dir,
		extensions:  extensions,
		onFile:      onFile,
		debounce:    defaultDebounce,
		debounceMap: make(map[string]*time.Timer),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Start begins watching. The inbox directory is created if missing. Runs
// until ctx is cancelled or Stop is called.
func (i *Inbox) Start(ctx context.Context) error {
	i.mu.Lock()
	if i.started {
		i.mu.Unlock()
		return nil
	}
	if err := os.MkdirAll(i.dir, 0755); err != nil {
		i.mu.Unlock()
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		i.mu.Unlock()
		return err
	}
	if err := watcher.Add(i.dir); err != nil {
		_ = watcher.Close()
		i.mu.Unlock()
		return err
	}
	i.watcher = watcher
	i.started = true
	if i.logger != nil {
		i.logger.Debug("inbox watching", zap.String("dir", i.dir), zap.Strings("extensions", i.extensions))
	}
	i.mu.Unlock()
	go i.run(ctx)
	return nil
}

func (i *Inbox) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			i.Stop()
			return
		case <-i.done:
			return
		case ev, ok := <-i.watcher.Events:
			if !ok {
				return
			}
			i.handleEvent(ev)
		case err, ok := <-i.watcher.Errors:
			if !ok {
				return
			}
			if err != nil && i.logger != nil {
				i.logger.Debug("inbox watcher error", zap.Error(err))
			}
		}
	}
}

func (i *Inbox) handleEvent(ev fsnotify.Event) {
	switch {
	case ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write):
		info, err := os.Stat(ev.Name)
		if err != nil || info.IsDir() {
			return
		}
		if i.matchExtension(ev.Name) {
			i.debounceFile(ev.Name)
		}
	case ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename):
		i.cancelDebounce(ev.Name)
	}
}

func (i *Inbox) matchExtension(path string) bool {
	if len(i.extensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range i.extensions {
		if strings.TrimPrefix(strings.ToLower(e), ".") == ext {
			return true
		}
	}
	return false
}

func (i *Inbox) debounceFile(path string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if t, ok := i.debounceMap[path]; ok {
		t.Stop()
	}
	t := time.AfterFunc(i.debounce, func() {
		i.mu.Lock()
		delete(i.debounceMap, path)
		logger := i.logger
		i.mu.Unlock()
		if logger != nil {
			logger.Debug("inbox file settled", zap.String("path", path))
		}
		if i.onFile != nil {
			i.onFile(path)
		}
	})
	i.debounceMap[path] = t
}

func (i *Inbox) cancelDebounce(path string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if t, ok := i.debounceMap[path]; ok {
		t.Stop()
		delete(i.debounceMap, path)
	}
}

// SyncExisting reports all matching files already present in the inbox.
// Call after Start to pick up files dropped while the server was down.
func (i *Inbox) SyncExisting() {
	entries, err := os.ReadDir(i.dir)
	if err != nil {
		if i.logger != nil {
			i.logger.Debug("inbox sync failed", zap.Error(err))
		}
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(i.dir, entry.Name())
		if i.matchExtension(path) && i.onFile != nil {
			i.onFile(path)
		}
	}
}

// Stop stops the watcher and releases resources.
func (i *Inbox) Stop() {
	i.mu.Lock()
	if !i.started || i.watcher == nil {
		i.mu.Unlock()
		return
	}
	for path, t := range i.debounceMap {
		t.Stop()
		delete(i.debounceMap, path)
	}
	_ = i.watcher.Close()
	i.watcher = nil
	i.started = false
	i.mu.Unlock()
	i.stopOnce.Do(func() { close(i.done) })
}
