package tagship

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	execAdapter "github.com/bft-labs/tagship/internal/adapters/exec"
	"github.com/bft-labs/tagship/internal/adapters/fs"
	gitAdapter "github.com/bft-labs/tagship/internal/adapters/git"
	httpAdapter "github.com/bft-labs/tagship/internal/adapters/http"
	"github.com/bft-labs/tagship/internal/adapters/registry"
	s3Adapter "github.com/bft-labs/tagship/internal/adapters/s3"
	"github.com/bft-labs/tagship/internal/app"
	"github.com/bft-labs/tagship/internal/cliconfig"
	"github.com/bft-labs/tagship/internal/domain"
	"github.com/bft-labs/tagship/internal/formula"
	"github.com/bft-labs/tagship/internal/pipeline"
	"github.com/bft-labs/tagship/internal/ports"
	"github.com/bft-labs/tagship/pkg/log"
)

// Config holds the configuration of a release.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config = cliconfig.Config

// DefaultConfig returns a Config with the defaults of the ggshield release.
func DefaultConfig() Config {
	return cliconfig.DefaultConfig()
}

// Records and tags are shared with the internal packages.
type (
	RunRecord = domain.RunRecord
	JobRecord = domain.JobRecord
	Tag       = domain.Tag
)

// Errors callers may check with errors.Is.
var (
	ErrNotReleaseTag  = domain.ErrNotReleaseTag
	ErrInvalidConfig  = domain.ErrInvalidConfig
	ErrPipelineFailed = pipeline.ErrPipelineFailed
	ErrAlreadyRunning = errors.New("tagship: already running")
)

// Tagship releases one tag. Use New() to create an instance, then Run().
type Tagship struct {
	config   Config
	opts     options
	logger   log.Logger
	runs     ports.RunRepository
	releases ports.ReleaseHost
	pypi     *httpAdapter.PyPIClient

	mu      sync.Mutex
	running bool
}

// New creates a Tagship instance with the given configuration.
// Returns an error if the configuration or the pipeline definition is invalid.
func New(cfg Config, opts ...Option) (*Tagship, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		logger:     log.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.runner == nil {
		o.runner = execAdapter.NewRunner(o.logger)
	}

	t := &Tagship{
		config:   cfg,
		opts:     o,
		logger:   o.logger,
		runs:     fs.NewRunFileRepository(cfg.StateDir),
		releases: httpAdapter.NewGitHubClient(o.httpClient, o.logger, cfg.GitHubAPIURL, cfg.GitHubToken),
		pypi:     httpAdapter.NewPyPIClient(o.httpClient, cfg.PyPIURL),
	}
	if _, err := t.Plan(); err != nil {
		return nil, err
	}
	return t, nil
}

// Definition returns the pipeline definition: the YAML file when one is
// configured, the built-in release graph otherwise. A file without trigger
// tags uses the configured tag patterns.
func (t *Tagship) Definition() (pipeline.Definition, error) {
	if t.config.PipelineFile == "" {
		return app.DefaultDefinition(t.config.TagPatterns...), nil
	}
	def, err := pipeline.LoadDefinition(t.config.PipelineFile)
	if err != nil {
		return pipeline.Definition{}, err
	}
	if len(def.Trigger.Tags) == 0 {
		def.Trigger.Tags = append([]string(nil), t.config.TagPatterns...)
	}
	return def, nil
}

// Plan returns the validated job graph of the current definition.
func (t *Tagship) Plan() (Plan, error) {
	def, err := t.Definition()
	if err != nil {
		return Plan{}, err
	}
	return NewPlan(def)
}

// Tag resolves the configured ref against the trigger patterns.
func (t *Tagship) Tag() (Tag, error) {
	def, err := t.Definition()
	if err != nil {
		return Tag{}, err
	}
	return domain.ParseTag(t.config.Ref, def.Trigger.Tags...)
}

// Run executes the release graph once and blocks until every job has
// finished. The record is returned even when the run failed.
func (t *Tagship) Run(ctx context.Context) (RunRecord, error) {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return RunRecord{}, ErrAlreadyRunning
	}
	t.running = true
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		t.running = false
		t.mu.Unlock()
	}()

	def, err := t.Definition()
	if err != nil {
		return RunRecord{}, err
	}
	tag, err := domain.ParseTag(t.config.Ref, def.Trigger.Tags...)
	if err != nil {
		return RunRecord{}, err
	}

	deps, err := t.deps(ctx)
	if err != nil {
		return RunRecord{}, err
	}
	jobs, err := app.NewJobs(t.jobConfig(tag), deps)
	if err != nil {
		return RunRecord{}, err
	}
	releaser, err := app.NewReleaser(def, jobs, t.runs, t.logger, app.ReleaserOptions{
		MaxParallel: t.config.MaxParallel,
		Only:        t.config.Only,
		Emitter:     eventEmitterWrapper{handler: t.opts.eventHandler},
	})
	if err != nil {
		return RunRecord{}, err
	}
	return releaser.Run(ctx)
}

func (t *Tagship) jobConfig(tag domain.Tag) app.Config {
	cfg := t.config
	return app.Config{
		Tag:                  tag,
		Workdir:              cfg.Workdir,
		SetupCommands:        cfg.SetupCommands,
		BuildScript:          cfg.BuildScript,
		Python:               cfg.Python,
		PackageName:          cfg.PackageName,
		PyPIToken:            cfg.PyPIToken,
		PyPIRepositoryURL:    cfg.PyPIRepositoryURL,
		GitHubRepository:     cfg.GitHubRepository,
		CloudsmithAPIKey:     cfg.CloudsmithAPIKey,
		CloudsmithRepository: cfg.CloudsmithRepository,
		DockerHub: app.ImageTarget{
			Image:    cfg.DockerImage,
			Username: cfg.DockerUsername,
			Password: cfg.DockerPassword,
		},
		GHCR: app.ImageTarget{
			Registry: registry.Host(cfg.GHCRImage),
			Image:    cfg.GHCRImage,
			Username: cfg.GHCRUsername,
			Password: cfg.GitHubToken,
		},
		DockerContext:   cfg.DockerContext,
		TapRepositories: cfg.TapRepositories,
		TapRetry:        app.NewRetry(cfg.TapAttempts, cfg.TapDelay),
	}
}

// deps wires the adapters selected by the configuration.
func (t *Tagship) deps(ctx context.Context) (app.Deps, error) {
	cfg := t.config

	store, err := t.artifactStore(ctx)
	if err != nil {
		return app.Deps{}, err
	}

	var probe ports.IndexProbe = t.pypi
	if cfg.ProbeStrategy == cliconfig.ProbePip {
		probe = execAdapter.NewPipProbe(t.opts.runner, cfg.Python, cfg.PipIndexURL)
	}

	renderer, err := formula.NewFromFile(cfg.FormulaTemplate, formula.DefaultMetadata)
	if err != nil {
		return app.Deps{}, err
	}

	taps := gitAdapter.NewTapPublisher(
		gitAdapter.NewHTTPRemote(cfg.TapToken),
		cfg.TapRemoteURL,
		gitAdapter.Signature{Name: cfg.CommitName, Email: cfg.CommitEmail},
		t.logger,
	)

	deps := app.Deps{
		Runner:    t.opts.runner,
		Artifacts: store,
		Probe:     probe,
		Index:     t.pypi,
		Releases:  t.releases,
		Taps:      taps,
		Formula:   renderer,
		Logger:    t.logger,
	}
	if cfg.VerifyImages {
		deps.Images = registry.NewResolver(registry.Options{
			Credentials: map[string]registry.Credential{
				"docker.io":                  {Username: cfg.DockerUsername, Password: cfg.DockerPassword},
				registry.Host(cfg.GHCRImage): {Username: cfg.GHCRUsername, Password: cfg.GitHubToken},
			},
		}, t.logger)
	}
	return deps, nil
}

func (t *Tagship) artifactStore(ctx context.Context) (ports.ArtifactStore, error) {
	cfg := t.config
	if cfg.ArtifactBackend != cliconfig.BackendS3 {
		return fs.NewArtifactDirStore(cfg.StateDir), nil
	}
	s3cfg := s3Adapter.Config{
		Bucket:    cfg.S3Bucket,
		Prefix:    cfg.S3Prefix,
		Region:    cfg.S3Region,
		Endpoint:  cfg.S3Endpoint,
		PathStyle: cfg.S3PathStyle,
	}
	client, err := s3Adapter.NewClient(ctx, s3cfg)
	if err != nil {
		return nil, fmt.Errorf("s3 artifact store: %w", err)
	}
	return s3Adapter.NewStore(client, s3cfg, t.logger), nil
}
