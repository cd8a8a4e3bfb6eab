package tagship

import (
	"github.com/bft-labs/tagship/internal/ports"
	"github.com/bft-labs/tagship/pkg/log"
)

// HTTPClient is the interface for making HTTP requests.
// *http.Client satisfies this interface.
type HTTPClient = ports.HTTPClient

// CommandRunner runs the external release tools.
type CommandRunner = ports.CommandRunner

// Option configures optional behavior of Tagship.
type Option func(*options)

// options holds the optional configuration for a Tagship instance.
type options struct {
	httpClient   HTTPClient
	logger       log.Logger
	runner       CommandRunner
	eventHandler EventHandler
	plugins      []Plugin
}

// WithHTTPClient sets a custom HTTP client for the GitHub and PyPI APIs.
// If not provided, a default client with the configured timeout is used.
func WithHTTPClient(client HTTPClient) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithCommandRunner replaces the runner of external tools (docker, twine,
// cloudsmith, the build script). Tests use it to avoid running them.
func WithCommandRunner(runner CommandRunner) Option {
	return func(o *options) {
		o.runner = runner
	}
}

// WithEventHandler sets a handler for job state changes.
// Events are called synchronously from the pipeline executor.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}

// WithPlugin registers a plugin started by Watch.
// Plugins are initialized in registration order and shutdown in reverse order.
func WithPlugin(plugin Plugin) Option {
	return func(o *options) {
		o.plugins = append(o.plugins, plugin)
	}
}
