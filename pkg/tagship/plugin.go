package tagship

import (
	"context"

	"github.com/bft-labs/tagship/pkg/log"
)

// Plugin extends a Tagship instance with a background task that lives for
// the duration of Watch.
type Plugin interface {
	// Name identifies the plugin in logs.
	Name() string

	// Initialize starts the plugin. ctx is canceled when Watch returns.
	Initialize(ctx context.Context, cfg PluginConfig) error

	// Shutdown stops the plugin and waits for its goroutines.
	Shutdown(ctx context.Context) error
}

// PluginConfig is handed to plugins on initialization.
type PluginConfig struct {
	// PipelineFile is the YAML definition in use, empty for the built-in graph.
	PipelineFile string
	StateDir     string
	Logger       log.Logger

	// LoadPlan re-reads the pipeline definition and returns its plan.
	LoadPlan func() (Plan, error)
}

// BasePlugin provides no-op implementations; embed it to implement only
// the methods you need.
type BasePlugin struct{}

// Name returns "base".
func (BasePlugin) Name() string { return "base" }

// Initialize does nothing.
func (BasePlugin) Initialize(ctx context.Context, cfg PluginConfig) error { return nil }

// Shutdown does nothing.
func (BasePlugin) Shutdown(ctx context.Context) error { return nil }
