package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/bft-labs/tagship/internal/domain"
	"github.com/bft-labs/tagship/internal/pipeline"
	"github.com/bft-labs/tagship/internal/ports"
	"github.com/bft-labs/tagship/pkg/log"
)

// Job names of the release graph.
const (
	JobBuild      = "build_packages"
	JobPyPI       = "push_to_pypi"
	JobRelease    = "release"
	JobCloudsmith = "push_to_cloudsmith"
	JobDockerHub  = "push_to_docker_hub"
	JobGHCR       = "push_to_github_packages"
	JobTap        = "push_to_tap"
)

// PackagesArtifact is the artifact holding dist/ and packages/.
const PackagesArtifact = "packages"

// DefaultDefinition returns the release graph triggered by tags matching
// patterns.
func DefaultDefinition(patterns ...string) pipeline.Definition {
	if len(patterns) == 0 {
		patterns = []string{domain.DefaultTagPattern}
	}
	return pipeline.Definition{
		Trigger: pipeline.Trigger{Tags: append([]string(nil), patterns...)},
		Jobs: map[string]pipeline.JobDefinition{
			JobBuild:      {},
			JobPyPI:       {Needs: pipeline.StringList{JobBuild}},
			JobRelease:    {Needs: pipeline.StringList{JobBuild}, ContinueOnError: true},
			JobCloudsmith: {Needs: pipeline.StringList{JobBuild}},
			JobDockerHub:  {},
			JobGHCR:       {},
			JobTap:        {Needs: pipeline.StringList{JobPyPI}},
		},
	}
}

// ImageTarget is a container registry a docker job pushes to.
type ImageTarget struct {
	// Registry is the login host; empty means Docker Hub.
	Registry string
	Image    string
	Username string
	Password string
}

// Config holds the settings of the release jobs.
type Config struct {
	Tag domain.Tag

	Workdir       string
	SetupCommands []string
	BuildScript   string
	Python        string
	PackageName   string

	PyPIToken         string
	PyPIRepositoryURL string

	GitHubRepository string

	CloudsmithAPIKey     string
	CloudsmithRepository string

	DockerHub     ImageTarget
	GHCR          ImageTarget
	DockerContext string

	TapRepositories []string
	TapRetry        Retry
}

// Deps are the ports the jobs talk through.
type Deps struct {
	Runner    ports.CommandRunner
	Artifacts ports.ArtifactStore
	Probe     ports.IndexProbe
	Index     ports.PackageIndex
	Releases  ports.ReleaseHost
	Taps      ports.TapPublisher
	// Images verifies pushed tags. Nil disables verification.
	Images  ports.ImageResolver
	Formula FormulaRenderer
	Logger  log.Logger
}

// FormulaRenderer renders the Homebrew formula of a published version.
type FormulaRenderer interface {
	Render(pkg, version string, sdist domain.SourceDist) ([]byte, error)
}

// Jobs implements the release graph.
type Jobs struct {
	cfg    Config
	deps   Deps
	logger log.Logger

	mu       sync.Mutex
	attempts map[string]int
}

// NewJobs returns the release jobs. Runner, Artifacts and Logger are
// required by every job; the other ports only by the jobs using them.
func NewJobs(cfg Config, deps Deps) (*Jobs, error) {
	if deps.Runner == nil || deps.Artifacts == nil {
		return nil, errors.New("app: runner and artifact store are required")
	}
	if deps.Logger == nil {
		deps.Logger = log.NewNoopLogger()
	}
	if cfg.Workdir == "" {
		cfg.Workdir = "."
	}
	if cfg.Python == "" {
		cfg.Python = "python"
	}
	if cfg.TapRetry.Attempts == 0 {
		cfg.TapRetry = NewRetry(DefaultRetryAttempts, DefaultRetryDelay)
	}
	return &Jobs{
		cfg:      cfg,
		deps:     deps,
		logger:   deps.Logger,
		attempts: make(map[string]int),
	}, nil
}

// Registry returns the job implementations by name.
func (j *Jobs) Registry() map[string]pipeline.Job {
	return map[string]pipeline.Job{
		JobBuild:      pipeline.JobFunc(j.Build),
		JobPyPI:       pipeline.JobFunc(j.PushToPyPI),
		JobRelease:    pipeline.JobFunc(j.Release),
		JobCloudsmith: pipeline.JobFunc(j.PushToCloudsmith),
		JobDockerHub:  pipeline.JobFunc(j.PushToDockerHub),
		JobGHCR:       pipeline.JobFunc(j.PushToGHCR),
		JobTap:        pipeline.JobFunc(j.PushToTap),
	}
}

// Attempts returns the number of attempts a job made, or zero when it did
// not track them.
func (j *Jobs) Attempts(name string) int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.attempts[name]
}

func (j *Jobs) recordAttempts(name string, n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.attempts[name] = n
}

func (j *Jobs) artifactKey() domain.ArtifactKey {
	return domain.ArtifactKey{Scope: j.cfg.Tag.Name, Name: PackagesArtifact}
}

// withArtifact downloads the packages artifact into a temporary workspace,
// calls fn and removes the workspace.
func (j *Jobs) withArtifact(ctx context.Context, job string, fn func(set domain.ArtifactSet) error) error {
	dir, err := os.MkdirTemp("", "tagship-"+job+"-")
	if err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}
	defer os.RemoveAll(dir)

	set, err := j.deps.Artifacts.Download(ctx, j.artifactKey(), dir)
	if err != nil {
		return fmt.Errorf("download artifact %s: %w", j.artifactKey(), err)
	}
	j.logger.Debug("artifact downloaded",
		log.Job(job),
		log.String("artifact", j.artifactKey().String()),
		log.Int("files", len(set.Files)))
	return fn(set)
}

func (j *Jobs) run(ctx context.Context, cmd ports.Command) error {
	_, err := j.deps.Runner.Run(ctx, cmd)
	return err
}

func required(job, what, value string) error {
	if value == "" {
		return fmt.Errorf("%s: %w: %s is required", job, domain.ErrInvalidConfig, what)
	}
	return nil
}
