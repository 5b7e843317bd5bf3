package validate

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// LoadConfigFile reads a config file, merging it over the defaults. The
// format is chosen by extension: .yaml/.yml, .toml or .json.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	case ".json":
		err = json.Unmarshal(data, cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrConfigFileUnsupported, filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if v := ValidateConfig(cfg); !v.IsValid() {
		return nil, fmt.Errorf("invalid config in %s: %s", path, strings.Join(v.Errors, "; "))
	}
	return cfg, nil
}

// ConfigWatcher watches a config file and pushes reloaded configs into a
// chain factory. Editors typically replace files instead of writing them
// in place, so the watch is on the containing directory.
type ConfigWatcher struct {
	path     string
	factory  *ChainFactory
	logger   Logger
	onReload func(*Config)

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// WatchConfigFile starts watching path. On every change the file is
// reloaded, validated, and applied to the factory; invalid or unreadable
// content is logged and the previous config stays active. onReload, if
// non-nil, runs after each successful apply.
func WatchConfigFile(path string, factory *ChainFactory, logger Logger, onReload func(*Config)) (*ConfigWatcher, error) {
	if logger == nil {
		logger = NoopLogger{}
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating config watcher: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		watcher.Close()
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching config directory: %w", err)
	}

	w := &ConfigWatcher{
		path:     abs,
		factory:  factory,
		logger:   logger,
		onReload: onReload,
		watcher:  watcher,
		done:     make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Stop ends the watch. It is safe to call once.
func (w *ConfigWatcher) Stop() error {
	close(w.done)
	return w.watcher.Close()
}

func (w *ConfigWatcher) loop() {
	// Debounce: editors fire several events per save.
	var timer *time.Timer
	reload := make(chan struct{}, 1)

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(100*time.Millisecond, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("config watcher error", "error", err)
		case <-reload:
			w.reload()
		}
	}
}

func (w *ConfigWatcher) reload() {
	cfg, err := LoadConfigFile(w.path)
	if err != nil {
		w.logger.Error("config reload rejected, keeping previous config", "path", w.path, "error", err)
		return
	}
	if err := w.factory.Reload(cfg); err != nil {
		w.logger.Error("config reload rejected, keeping previous config", "path", w.path, "error", err)
		return
	}
	w.logger.Info("config reloaded", "path", w.path)
	if w.onReload != nil {
		w.onReload(cfg)
	}
}
