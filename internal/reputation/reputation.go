// Package reputation maintains per-component provenance reputations used to
// seed trust scoring. Reputations live in a YAML file that can be edited
// while the process runs; a watcher reloads it on change.
package reputation

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"cortex/internal/logging"
)

// DefaultReputation is assumed for components without an entry.
const DefaultReputation = 0.70

type fileFormat struct {
	Default    *float64           `yaml:"default,omitempty"`
	Components map[string]float64 `yaml:"components"`
}

// Table maps component names to provenance reputation in [0,1].
type Table struct {
	mu         sync.RWMutex
	entries    map[string]float64
	defaultRep float64

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewTable creates an empty table using DefaultReputation for every lookup.
func NewTable() *Table {
	return &Table{
		entries:    make(map[string]float64),
		defaultRep: DefaultReputation,
	}
}

// Load reads a reputation table from a YAML file.
func Load(path string) (*Table, error) {
	t := NewTable()
	if err := t.reload(path); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Table) reload(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading reputation table: %w", err)
	}
	var ff fileFormat
	if err := yaml.Unmarshal(data, &ff); err != nil {
		return fmt.Errorf("parsing reputation table %s: %w", path, err)
	}

	entries := make(map[string]float64, len(ff.Components))
	for name, rep := range ff.Components {
		if rep < 0 || rep > 1 {
			return fmt.Errorf("reputation table %s: component %q has reputation %v outside [0,1]", path, name, rep)
		}
		entries[name] = rep
	}
	defaultRep := DefaultReputation
	if ff.Default != nil {
		if *ff.Default < 0 || *ff.Default > 1 {
			return fmt.Errorf("reputation table %s: default %v outside [0,1]", path, *ff.Default)
		}
		defaultRep = *ff.Default
	}

	t.mu.Lock()
	t.entries = entries
	t.defaultRep = defaultRep
	t.mu.Unlock()
	return nil
}

// Reputation returns the component's reputation, or the table default.
func (t *Table) Reputation(component string) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if rep, ok := t.entries[component]; ok {
		return rep
	}
	return t.defaultRep
}

// Set overrides one component's reputation in memory. Used by tests and by
// the CLI; the file on disk is not rewritten.
func (t *Table) Set(component string, rep float64) {
	t.mu.Lock()
	t.entries[component] = rep
	t.mu.Unlock()
}

// Watch reloads the table whenever the backing file changes. A reload
// failure keeps the previous table and logs the error. Call Close to stop.
func (t *Table) Watch(path string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("starting reputation watcher: %w", err)
	}
	// Watch the directory: editors replace files, which drops a watch on
	// the file itself.
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return fmt.Errorf("watching %s: %w", filepath.Dir(path), err)
	}

	t.watcher = w
	t.done = make(chan struct{})
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		target := filepath.Clean(path)
		for {
			select {
			case <-t.done:
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				if err := t.reload(path); err != nil {
					logging.Get(logging.CategoryConfig).Warnf("reputation reload failed: %v", err)
					continue
				}
				logging.Get(logging.CategoryConfig).Infof("reputation table reloaded from %s", path)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logging.Get(logging.CategoryConfig).Warnf("reputation watcher: %v", err)
			}
		}
	}()
	return nil
}

// Close stops the watcher, if one is running.
func (t *Table) Close() error {
	if t.watcher == nil {
		return nil
	}
	close(t.done)
	err := t.watcher.Close()
	t.wg.Wait()
	t.watcher = nil
	return err
}
