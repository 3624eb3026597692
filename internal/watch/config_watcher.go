package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/bbreport/internal/config"
	"git.home.luguber.info/inful/bbreport/internal/logfields"
)

// DefaultDebounce delays reloads so that editors writing in several steps
// trigger a single reload.
const DefaultDebounce = 2 * time.Second

// ConfigWatcher monitors the configuration file and hands every valid new
// version to a callback.
type ConfigWatcher struct {
	configPath string
	watcher    *fsnotify.Watcher
	onChange   func(context.Context, *config.Config)
	logger     *slog.Logger
	debounce   time.Duration

	mu         sync.Mutex
	stopOnce   sync.Once
	stopChan   chan struct{}
	reloadChan chan struct{}
}

// NewConfigWatcher creates a watcher for configPath.
func NewConfigWatcher(configPath string, logger *slog.Logger, onChange func(context.Context, *config.Config)) (*ConfigWatcher, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ConfigWatcher{
		configPath: absPath,
		watcher:    watcher,
		onChange:   onChange,
		logger:     logger,
		debounce:   DefaultDebounce,
		stopChan:   make(chan struct{}),
		reloadChan: make(chan struct{}, 1),
	}, nil
}

// Start begins monitoring. The directory is watched rather than the file so
// that editors replacing the file are noticed.
func (cw *ConfigWatcher) Start(ctx context.Context) error {
	dir := filepath.Dir(cw.configPath)
	if err := cw.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch config directory %s: %w", dir, err)
	}
	cw.logger.Info("Starting configuration watcher", logfields.Path(cw.configPath))
	go cw.watchLoop(ctx)
	go cw.reloadLoop(ctx)
	return nil
}

// Stop ends monitoring. It is safe to call more than once.
func (cw *ConfigWatcher) Stop() error {
	var err error
	cw.stopOnce.Do(func() {
		close(cw.stopChan)
		err = cw.watcher.Close()
	})
	return err
}

func (cw *ConfigWatcher) watchLoop(ctx context.Context) {
	name := filepath.Base(cw.configPath)
	for {
		select {
		case <-ctx.Done():
			return
		case <-cw.stopChan:
			return
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			switch {
			case event.Has(fsnotify.Write), event.Has(fsnotify.Create), event.Has(fsnotify.Rename):
				cw.logger.Debug("Config file change detected", logfields.Path(event.Name), slog.String("op", event.Op.String()))
				cw.triggerReload()
			case event.Has(fsnotify.Remove):
				cw.logger.Warn("Config file removed", logfields.Path(event.Name))
			}
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.logger.Error("Config watcher error", logfields.Error(err))
		}
	}
}

func (cw *ConfigWatcher) reloadLoop(ctx context.Context) {
	var timer *time.Timer
	stop := func() {
		if timer != nil {
			timer.Stop()
		}
	}
	for {
		select {
		case <-ctx.Done():
			stop()
			return
		case <-cw.stopChan:
			stop()
			return
		case <-cw.reloadChan:
			stop()
			timer = time.AfterFunc(cw.debounce, func() {
				if err := cw.reload(ctx); err != nil {
					cw.logger.Error("Failed to reload configuration", logfields.Error(err))
				}
			})
		}
	}
}

func (cw *ConfigWatcher) triggerReload() {
	select {
	case cw.reloadChan <- struct{}{}:
	default:
	}
}

func (cw *ConfigWatcher) reload(ctx context.Context) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cfg, err := config.Load(cw.configPath)
	if err != nil {
		return err
	}
	for _, w := range cfg.Warnings {
		cw.logger.Warn("Configuration warning", slog.String("warning", w))
	}
	cw.logger.Info("Configuration reloaded", logfields.Path(cw.configPath))
	cw.onChange(ctx, cfg)
	return nil
}
