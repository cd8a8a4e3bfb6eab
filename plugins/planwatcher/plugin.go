// Package planwatcher re-validates the pipeline definition whenever its
// file changes, so a broken graph is reported before the next tag push.
package planwatcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/tagship/pkg/log"
	"github.com/bft-labs/tagship/pkg/tagship"
)

// ChangeFunc receives the plan loaded after a change, or the error that
// made the definition invalid.
type ChangeFunc func(plan tagship.Plan, err error)

// Plugin watches the pipeline definition file.
type Plugin struct {
	mu sync.Mutex

	debounceDelay time.Duration
	onChange      ChangeFunc

	file     string
	loadPlan func() (tagship.Plan, error)
	logger   log.Logger
	watcher  *fsnotify.Watcher
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	debounce *time.Timer
	closed   bool
}

// Config holds configuration options for the plan watcher plugin.
type Config struct {
	// DebounceDelay is the delay to wait after a file change before reloading.
	// Default: 100 milliseconds
	DebounceDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{DebounceDelay: 100 * time.Millisecond}
}

// New creates a plan watcher calling onChange after every reload.
// A nil onChange only logs the outcome.
func New(cfg Config, onChange ChangeFunc) *Plugin {
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = 100 * time.Millisecond
	}
	return &Plugin{debounceDelay: cfg.DebounceDelay, onChange: onChange}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "planwatcher"
}

// Initialize loads the plan once and starts watching the definition file.
func (p *Plugin) Initialize(ctx context.Context, cfg tagship.PluginConfig) error {
	p.mu.Lock()
	p.file = cfg.PipelineFile
	p.loadPlan = cfg.LoadPlan
	p.logger = cfg.Logger
	p.closed = false
	p.mu.Unlock()

	if p.logger == nil {
		p.logger = log.NewNoopLogger()
	}
	if p.file == "" || p.loadPlan == nil {
		p.logger.Warn("plan watcher disabled: no pipeline file configured")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// Editors replace files on save, so the directory is watched.
	if err := watcher.Add(filepath.Dir(p.file)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(p.file), err)
	}
	p.watcher = watcher

	watchCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.reload()

	p.wg.Add(1)
	go p.watchLoop(watchCtx)
	p.logger.Info("plan watcher started", log.String("file", p.file))
	return nil
}

// Shutdown stops the watcher and any pending reload.
func (p *Plugin) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.mu.Unlock()

	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	if p.watcher != nil {
		err := p.watcher.Close()
		p.watcher = nil
		return err
	}
	return nil
}

func (p *Plugin) watchLoop(ctx context.Context) {
	defer p.wg.Done()

	name := filepath.Base(p.file)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			p.debounceReload()

		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("plan watcher error", log.Err(err))
		}
	}
}

func (p *Plugin) debounceReload() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.debounce = time.AfterFunc(p.debounceDelay, func() {
		p.mu.Lock()
		closed := p.closed
		p.mu.Unlock()
		if !closed {
			p.reload()
		}
	})
}

func (p *Plugin) reload() {
	plan, err := p.loadPlan()
	if err != nil {
		p.logger.Error("pipeline definition is invalid", log.String("file", p.file), log.Err(err))
	} else {
		p.logger.Info("pipeline definition loaded", log.String("file", p.file), log.Int("jobs", len(plan.Jobs)))
	}
	if p.onChange != nil {
		p.onChange(plan, err)
	}
}
