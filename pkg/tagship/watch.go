package tagship

import (
	"context"
	"fmt"

	"github.com/bft-labs/tagship/pkg/log"
)

// Watch initializes the registered plugins, blocks until ctx is canceled,
// then shuts them down in reverse order.
// A plugin failing to initialize stops the plugins started before it.
func (t *Tagship) Watch(ctx context.Context) error {
	plugins := t.opts.plugins
	cfg := PluginConfig{
		PipelineFile: t.config.PipelineFile,
		StateDir:     t.config.StateDir,
		Logger:       t.logger,
		LoadPlan:     t.Plan,
	}

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	started := 0
	var initErr error
	for _, p := range plugins {
		if err := initPlugin(watchCtx, p, cfg); err != nil {
			t.logger.Error("plugin initialization failed", log.String("plugin", p.Name()), log.Err(err))
			initErr = fmt.Errorf("plugin %s: %w", p.Name(), err)
			break
		}
		started++
		t.logger.Info("plugin initialized", log.String("plugin", p.Name()))
	}

	if initErr == nil {
		<-watchCtx.Done()
	}
	cancel()

	shutdownCtx := context.WithoutCancel(ctx)
	for i := started - 1; i >= 0; i-- {
		p := plugins[i]
		if err := shutdownPlugin(shutdownCtx, p); err != nil {
			t.logger.Error("plugin shutdown failed", log.String("plugin", p.Name()), log.Err(err))
		} else {
			t.logger.Info("plugin shutdown complete", log.String("plugin", p.Name()))
		}
	}
	return initErr
}

func initPlugin(ctx context.Context, p Plugin, cfg PluginConfig) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during initialization: %v", r)
		}
	}()
	return p.Initialize(ctx, cfg)
}

func shutdownPlugin(ctx context.Context, p Plugin) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during shutdown: %v", r)
		}
	}()
	return p.Shutdown(ctx)
}
