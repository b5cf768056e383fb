package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// PolicyFile is the on-disk representation of a rollout policy: per backend
// kind, an ordered list of version weights. It is the document format for
// routing.policy_file.
type PolicyFile struct {
	Policy map[string][]VersionWeightConfig `yaml:"policy"`
}

// LoadPolicyFile reads and parses a rollout policy file.
// Weight validation happens when the policy is installed, not here, so a
// malformed file can be reported with its full list of problems.
func LoadPolicyFile(path string) (*PolicyFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file %q: %w", path, err)
	}

	var pf PolicyFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("failed to parse policy file %q: %w", path, err)
	}

	return &pf, nil
}

// PolicyWatcher watches the rollout policy file for changes and invokes a
// reload callback. Change bursts are debounced so editors that write in
// multiple syscalls trigger a single reload.
type PolicyWatcher struct {
	path     string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

// NewPolicyWatcher creates a watcher for the policy file at path.
func NewPolicyWatcher(path string) (*PolicyWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &PolicyWatcher{
		path:     path,
		debounce: 100 * time.Millisecond,
		watcher:  watcher,
		logger:   slog.Default().With("component", "config.policywatcher"),
		stopCh:   make(chan struct{}),
	}, nil
}

// Watch blocks, invoking onReload with the freshly parsed policy file after
// each (debounced) change, until the context is cancelled or Stop is called.
// Reload errors are logged and do not stop the watcher; the previously
// installed policy stays active.
func (w *PolicyWatcher) Watch(ctx context.Context, onReload func(*PolicyFile) error) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("policy watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	// Watch the directory; editors replace files rather than write in place
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %q: %w", w.path, err)
	}

	w.logger.Info("policy watcher started",
		"path", w.path,
		"debounce_ms", w.debounce.Milliseconds(),
	)

	var timer *time.Timer
	var timerCh <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("policy watcher stopped (context cancelled)")
			return nil

		case <-w.stopCh:
			w.logger.Info("policy watcher stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			// Debounce: restart the timer on every event in the burst
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerCh = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}

		case <-timerCh:
			timer = nil
			timerCh = nil
			w.reload(onReload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("policy watcher error", "error", err)
		}
	}
}

// reload parses the policy file and hands it to the callback.
func (w *PolicyWatcher) reload(onReload func(*PolicyFile) error) {
	pf, err := LoadPolicyFile(w.path)
	if err != nil {
		w.logger.Error("policy reload failed, keeping previous policy",
			"path", w.path,
			"error", err,
		)
		return
	}

	if err := onReload(pf); err != nil {
		w.logger.Error("policy update rejected, keeping previous policy",
			"path", w.path,
			"error", err,
		)
		return
	}

	w.logger.Info("policy reloaded", "path", w.path)
}

// Stop stops the watcher and releases the underlying fsnotify resources.
func (w *PolicyWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		close(w.stopCh)
	}
	return w.watcher.Close()
}
