package nutmeg

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// ConvertFunc converts one raw file. It is called from the watcher
// goroutine, one file at a time.
type ConvertFunc func(ctx context.Context, path string) error

// Watcher reconverts raw files whenever a simulator rewrites them. A file is
// converted once it has been quiet for the debounce period, so that
// simulators writing incrementally are not caught halfway.
type Watcher struct {
	dirs     []string
	patterns []string
	debounce time.Duration
	convert  ConvertFunc

	wg sync.WaitGroup

	// If the watcher has stopped or not
	stopped atomic.Bool
	err     error // The error returned by run(), if any. Read it after stopped == true.

	// Just for tracking what happened when the watcher stops.
	numConversions int
	numFailures    int

	logger logrus.FieldLogger
}

func NewWatcher(dirs []string, patterns []string, debounce time.Duration, convert ConvertFunc) *Watcher {
	return &Watcher{
		dirs:     dirs,
		patterns: patterns,
		debounce: debounce,
		convert:  convert,
		logger:   logrus.WithField("tag", "Watcher"),
	}
}

// Start watches the directories until ctx is cancelled. Errors setting up
// the watches are returned directly; later ones through Wait.
func (w *Watcher) Start(ctx context.Context) error {
	if w.debounce <= 0 {
		return fmt.Errorf("debounce must be positive, got %v", w.debounce)
	}

	for _, pattern := range w.patterns {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid watch pattern %q", pattern)
		}
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("unable to create watcher: %w", err)
	}

	for _, dir := range w.dirs {
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return withPath(dir, fileError(err))
		}
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer fw.Close()

		err := w.run(ctx, fw)
		w.err = err

		// Must set all variables to be read after the watcher is complete
		// before this, as this atomic "releases" them.
		w.stopped.Store(true)

		logger := w.logger.WithFields(logrus.Fields{
			"numConversions": w.numConversions,
			"numFailures":    w.numFailures,
		})
		if err != nil {
			logger = logger.WithError(err)
		}
		logger.Info("watcher stopped")
	}()

	w.logger.WithFields(logrus.Fields{
		"dirs":     w.dirs,
		"patterns": w.patterns,
		"debounce": w.debounce,
	}).Info("watching for raw files")
	return nil
}

// Wait blocks until the watcher stops and returns the error that stopped
// it. Cancelling the context is not an error.
func (w *Watcher) Wait() error {
	w.wg.Wait()
	return w.err
}

func (w *Watcher) Stopped() bool {
	return w.stopped.Load()
}

func (w *Watcher) run(ctx context.Context, fw *fsnotify.Watcher) error {
	// Last change seen per path, waiting for the quiet period to pass.
	pending := make(map[string]time.Time)

	ticker := time.NewTicker(w.tick())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !w.matches(event.Name) {
				continue
			}

			w.logger.WithFields(logrus.Fields{
				"path": event.Name,
				"op":   event.Op.String(),
			}).Debug("raw file changed")
			pending[event.Name] = time.Now()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch failed: %w", err)

		case now := <-ticker.C:
			ready := Filter(maps.Keys(pending), func(path string) bool {
				return now.Sub(pending[path]) >= w.debounce
			})
			slices.Sort(ready)

			for _, path := range ready {
				delete(pending, path)
				w.convertOne(ctx, path)
			}
		}
	}
}

// A failed conversion is logged and the watcher keeps going: the next write
// to the file triggers another attempt.
func (w *Watcher) convertOne(ctx context.Context, path string) {
	logger := w.logger.WithField("path", path)

	if err := w.convert(ctx, path); err != nil {
		w.numFailures++
		logger.WithError(err).WithField("kind", KindOf(err)).Warn("conversion failed")
		return
	}

	w.numConversions++
	logger.Info("converted")
}

// matches checks the base name of path against the patterns. Hidden files,
// including our own temporary outputs, never match.
func (w *Watcher) matches(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}

	for _, pattern := range w.patterns {
		if ok, _ := doublestar.Match(pattern, base); ok {
			return true
		}
	}
	return false
}

func (w *Watcher) tick() time.Duration {
	return max(w.debounce/4, time.Millisecond)
}
