package registry

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/c360studio/forgebridge/vocabulary"
)

// MappingFile is the on-disk seed format for endpoint term tables and
// custom roles. Example:
//
//	roles:
//	  - name: hero
//	    role_class: track
//	    order: 7
//	endpoints:
//	  flame:
//	    role:
//	      L01: primary
//	      L02: reference
//	      L03: matte
//	    status:
//	      approved_final: delivered
type MappingFile struct {
	Roles     []vocabulary.Role                       `yaml:"roles"`
	Endpoints map[string]map[string]map[string]string `yaml:"endpoints"`
}

// LoadMappingFile reads and parses a mapping seed file.
func LoadMappingFile(path string) (*MappingFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mapping file: %w", err)
	}

	var mf MappingFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("parse mapping file %s: %w", path, err)
	}
	return &mf, nil
}

// Apply registers the file's roles and endpoint mappings. Role conflicts
// and unknown axes fail the whole apply; nothing is rolled back, matching
// the replace-or-extend semantics of RegisterEndpointMapping.
func (mf *MappingFile) Apply(r *Registry) error {
	for _, role := range mf.Roles {
		if err := r.RegisterRole(role); err != nil {
			return err
		}
	}
	for endpoint, axes := range mf.Endpoints {
		m := make(Mapping, len(axes))
		for axis, table := range axes {
			m[Axis(axis)] = table
		}
		if err := r.RegisterEndpointMapping(endpoint, m); err != nil {
			return err
		}
	}
	return nil
}

// mappingDebounce is how long to wait for more writes before reloading.
// Editors save mapping files with multiple write events.
const mappingDebounce = 250 * time.Millisecond

// MappingWatcher hot-reloads a mapping seed file into a registry whenever
// the file changes.
type MappingWatcher struct {
	registry *Registry
	path     string
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
}

// NewMappingWatcher loads the file once and begins watching it. Callers
// must run Watch to receive reloads, and Close when done.
func NewMappingWatcher(r *Registry, path string, logger *slog.Logger) (*MappingWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	mf, err := LoadMappingFile(path)
	if err != nil {
		return nil, err
	}
	if err := mf.Apply(r); err != nil {
		return nil, fmt.Errorf("apply mapping file %s: %w", path, err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}

	return &MappingWatcher{
		registry: r,
		path:     path,
		watcher:  fsw,
		logger:   logger,
	}, nil
}

// Watch blocks, reloading the mapping file on change until ctx is
// cancelled. Reload failures are logged and skipped; the registry keeps
// its last good state.
func (w *MappingWatcher) Watch(ctx context.Context) {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	reload := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(mappingDebounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})
		case <-reload:
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("mapping watcher error", "path", w.path, "error", err)
		}
	}
}

func (w *MappingWatcher) reload() {
	mf, err := LoadMappingFile(w.path)
	if err != nil {
		w.logger.Warn("mapping reload failed", "path", w.path, "error", err)
		return
	}
	if err := mf.Apply(w.registry); err != nil {
		w.logger.Warn("mapping reload rejected", "path", w.path, "error", err)
		return
	}
	w.logger.Info("mapping file reloaded", "path", w.path, "version", w.registry.Version())
}

// Close stops the underlying file watcher.
func (w *MappingWatcher) Close() error {
	return w.watcher.Close()
}
