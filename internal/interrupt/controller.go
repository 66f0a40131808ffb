// Package interrupt implements the cooperative cancellation flag shared by
// the conversation loop and the execution controller.
package interrupt

import (
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// ErrInterrupted is returned from Check once the flag is set.
var ErrInterrupted = errors.New("run interrupted")

// IsInterrupted reports whether err came from an abort.
func IsInterrupted(err error) bool {
	return errors.Is(err, ErrInterrupted)
}

// stopFile is the signal file an external process creates to abort a run.
const stopFile = "stop"

// Controller is a per-run cancellation flag. Abort sets the flag and cancels
// the in-flight network call, if any. The flag is never cleared
// automatically: Reset must be called before starting a new run, and
// forgetting to do so makes the next run fail immediately (documented
// misuse, not auto-corrected). Cancellation is cooperative: the flag is
// checked at suspension points, never enforced preemptively.
type Controller struct {
	mu          sync.Mutex
	interrupted bool
	cancels     map[int]context.CancelFunc
	nextID      int

	signalsDir string
	watcher    *fsnotify.Watcher
	done       chan struct{}
}

// New creates a controller with no signal-file watching.
func New() *Controller {
	return &Controller{cancels: make(map[int]context.CancelFunc)}
}

// NewWithSignalDir creates a controller that also aborts when a "stop" file
// appears in dir. The directory is created if missing. Watcher setup
// failures degrade to a plain controller rather than failing the run.
func NewWithSignalDir(dir string) *Controller {
	c := New()
	c.signalsDir = dir

	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Printf("[interrupt] cannot create signal dir %s: %v", dir, err)
		return c
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("[interrupt] watcher unavailable: %v", err)
		return c
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		log.Printf("[interrupt] cannot watch %s: %v", dir, err)
		return c
	}

	c.watcher = watcher
	c.done = make(chan struct{})
	go c.watch()
	return c
}

func (c *Controller) watch() {
	for {
		select {
		case event, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			// Touching an existing stop file emits Write or Chmod
			// rather than Create, so match all three.
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Chmod) != 0 && filepath.Base(event.Name) == stopFile {
				log.Printf("[interrupt] stop signal file detected")
				c.Abort()
			}
		case _, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
		case <-c.done:
			return
		}
	}
}

// Bind derives a context that Abort cancels. The returned release function
// must be called when the suspension point completes; it detaches the
// context without cancelling it.
func (c *Controller) Bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	if c.interrupted {
		c.mu.Unlock()
		cancel()
		return ctx, func() {}
	}
	id := c.nextID
	c.nextID++
	c.cancels[id] = cancel
	c.mu.Unlock()

	release := func() {
		c.mu.Lock()
		delete(c.cancels, id)
		c.mu.Unlock()
		cancel()
	}
	return ctx, release
}

// Abort sets the flag and cancels every in-flight bound context.
func (c *Controller) Abort() {
	c.mu.Lock()
	c.interrupted = true
	cancels := make([]context.CancelFunc, 0, len(c.cancels))
	for _, cancel := range c.cancels {
		cancels = append(cancels, cancel)
	}
	c.cancels = make(map[int]context.CancelFunc)
	c.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// Interrupted reports whether the flag is set.
func (c *Controller) Interrupted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interrupted
}

// Check returns ErrInterrupted once the flag is set.
func (c *Controller) Check() error {
	if c.Interrupted() {
		return ErrInterrupted
	}
	return nil
}

// Reset clears the flag. Callers must invoke this before each new run.
// It also removes a leftover stop signal file so a stale signal cannot
// abort the next run.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.interrupted = false
	c.mu.Unlock()

	if c.signalsDir != "" {
		os.Remove(filepath.Join(c.signalsDir, stopFile))
	}
}

// Close stops the signal watcher. The flag itself remains usable.
func (c *Controller) Close() {
	if c.watcher != nil {
		close(c.done)
		c.watcher.Close()
		c.watcher = nil
	}
}
