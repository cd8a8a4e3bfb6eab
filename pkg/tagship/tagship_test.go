package tagship_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/tagship/internal/pipeline"
	"github.com/bft-labs/tagship/internal/ports"
	"github.com/bft-labs/tagship/pkg/tagship"
)

// recordingRunner accepts every command.
type recordingRunner struct {
	mu   sync.Mutex
	cmds []string
}

func (r *recordingRunner) Run(ctx context.Context, cmd ports.Command) (ports.CommandResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cmds = append(r.cmds, cmd.Name+" "+strings.Join(cmd.Args, " "))
	return ports.CommandResult{}, nil
}

type eventTracker struct {
	tagship.BaseEventHandler
	mu     sync.Mutex
	events []tagship.JobStateChangeEvent
}

func (e *eventTracker) OnJobStateChange(event tagship.JobStateChangeEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
}

// testConfig points every remote API at a local server that knows nothing,
// so no test reaches the network.
func testConfig(t *testing.T) tagship.Config {
	t.Helper()
	offline := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(offline.Close)

	cfg := tagship.DefaultConfig()
	cfg.GitHubAPIURL = offline.URL
	cfg.PyPIURL = offline.URL
	cfg.StateDir = t.TempDir()
	cfg.Workdir = t.TempDir()
	cfg.VerifyImages = false
	return cfg
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.PackageName = ""
	_, err := tagship.New(cfg)
	assert.ErrorIs(t, err, tagship.ErrInvalidConfig)
}

func TestNew_InvalidPipelineFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.PipelineFile = filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(cfg.PipelineFile, []byte(`
jobs:
  a: {needs: b}
  b: {needs: a}
`), 0o644))

	_, err := tagship.New(cfg)
	assert.ErrorIs(t, err, pipeline.ErrInvalidGraph)
}

func TestPlan_PipelineFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.TagPatterns = []string{"release-*"}
	cfg.PipelineFile = filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(cfg.PipelineFile, []byte(`
jobs:
  build_packages: {}
  push_to_pypi:
    needs: build_packages
`), 0o644))

	ts, err := tagship.New(cfg)
	require.NoError(t, err)
	plan, err := ts.Plan()
	require.NoError(t, err)

	assert.Equal(t, []string{"release-*"}, plan.Trigger)
	require.Len(t, plan.Jobs, 2)
	assert.Equal(t, "push_to_pypi", plan.Jobs[1].Name)
	assert.Equal(t, 1, plan.Jobs[1].Depth)
}

func TestPlan_Write(t *testing.T) {
	ts, err := tagship.New(testConfig(t))
	require.NoError(t, err)
	plan, err := ts.Plan()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, plan.Write(&buf))
	out := buf.String()
	assert.Contains(t, out, "trigger: tags v*")
	assert.Contains(t, out, "continue-on-error")
	for _, j := range plan.Jobs {
		assert.Contains(t, out, j.Name)
	}
}

func TestRun_RejectsBranchRef(t *testing.T) {
	cfg := testConfig(t)
	cfg.Ref = "refs/heads/main"
	ts, err := tagship.New(cfg)
	require.NoError(t, err)

	_, err = ts.Run(context.Background())
	assert.ErrorIs(t, err, tagship.ErrNotReleaseTag)
}

func TestRun_ContainerJobsOnly(t *testing.T) {
	cfg := testConfig(t)
	cfg.Ref = "refs/tags/v1.2.3"
	cfg.Only = []string{"push_to_docker_hub", "push_to_github_packages"}
	cfg.DockerUsername = "bot"
	cfg.DockerPassword = "hub-secret"
	cfg.GHCRUsername = "octocat"
	cfg.GitHubToken = "ghs_token"

	runner := &recordingRunner{}
	events := &eventTracker{}
	ts, err := tagship.New(cfg, tagship.WithCommandRunner(runner), tagship.WithEventHandler(events))
	require.NoError(t, err)

	rec, err := ts.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "succeeded", rec.Status)

	assert.Contains(t, runner.cmds, "docker login ghcr.io -u octocat --password-stdin")
	assert.Contains(t, runner.cmds, "docker login -u bot --password-stdin")
	assert.Contains(t, runner.cmds, "docker push gitguardian/ggshield:latest")
	assert.Len(t, runner.cmds, 8)

	var excluded int
	for _, e := range events.events {
		if e.Current == "excluded" {
			excluded++
		}
	}
	assert.Equal(t, 5, excluded)

	// The record is persisted in the state directory.
	st, err := ts.Status(context.Background())
	require.NoError(t, err)
	assert.Empty(t, st.LatestRelease)
	require.NotNil(t, st.LastRun)
	assert.Equal(t, rec.ID, st.LastRun.ID)
	_, err = os.Stat(filepath.Join(cfg.StateDir, "last-run.json"))
	assert.NoError(t, err)
}

func TestStatus_LatestRelease(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/GitGuardian/ggshield/releases/latest":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id": 1, "tag_name": "v1.2.0"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.GitHubAPIURL = srv.URL
	cfg.Ref = "v1.3.0"
	ts, err := tagship.New(cfg)
	require.NoError(t, err)

	st, err := ts.Status(context.Background())
	require.NoError(t, err)
	assert.Nil(t, st.LastRun)
	assert.Equal(t, "v1.2.0", st.LatestRelease)
	assert.Equal(t, "1.2.0", st.LatestVersion)
	require.NotNil(t, st.Tag)
	assert.Equal(t, "1.3.0", st.Tag.Version)
	assert.True(t, st.Newer)

	cfg.GitHubRepository = "GitGuardian/unreleased"
	ts, err = tagship.New(cfg)
	require.NoError(t, err)
	st, err = ts.Status(context.Background())
	require.NoError(t, err)
	assert.Empty(t, st.LatestRelease)
	assert.True(t, st.Newer)
}
