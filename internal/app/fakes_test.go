package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/tagship/internal/adapters/fs"
	"github.com/bft-labs/tagship/internal/domain"
	"github.com/bft-labs/tagship/internal/ports"
	"github.com/bft-labs/tagship/pkg/log"
)

// fakeRunner records commands. A hook keyed by command name runs instead
// of the command; a hook keyed by "name arg0" takes precedence.
type fakeRunner struct {
	mu    sync.Mutex
	cmds  []ports.Command
	hooks map[string]func(cmd ports.Command) error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{hooks: make(map[string]func(ports.Command) error)}
}

func (r *fakeRunner) on(key string, fn func(cmd ports.Command) error) { r.hooks[key] = fn }

func (r *fakeRunner) fail(key string, err error) {
	r.on(key, func(ports.Command) error { return err })
}

func (r *fakeRunner) Run(ctx context.Context, cmd ports.Command) (ports.CommandResult, error) {
	r.mu.Lock()
	r.cmds = append(r.cmds, cmd)
	hook := r.hooks[cmd.Name]
	if len(cmd.Args) > 0 {
		if h, ok := r.hooks[cmd.Name+" "+cmd.Args[0]]; ok {
			hook = h
		}
	}
	r.mu.Unlock()

	if hook == nil {
		return ports.CommandResult{}, nil
	}
	if err := hook(cmd); err != nil {
		return ports.CommandResult{ExitCode: 1}, err
	}
	return ports.CommandResult{}, nil
}

// lines returns every command as "name arg...".
func (r *fakeRunner) lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.cmds))
	for _, c := range r.cmds {
		out = append(out, strings.TrimSpace(c.Name+" "+strings.Join(c.Args, " ")))
	}
	return out
}

func (r *fakeRunner) find(t *testing.T, name, arg0 string) ports.Command {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.cmds {
		if c.Name == name && (arg0 == "" || (len(c.Args) > 0 && c.Args[0] == arg0)) {
			return c
		}
	}
	t.Fatalf("command %s %s not run; got %v", name, arg0, r.cmds)
	return ports.Command{}
}

// fakeReleases is an in-memory release host.
type fakeReleases struct {
	mu       sync.Mutex
	releases map[string]ports.Release
	created  []ports.ReleaseRequest
	uploaded map[string][]byte
	latest   string
	err      error
}

func newFakeReleases() *fakeReleases {
	return &fakeReleases{releases: make(map[string]ports.Release), uploaded: make(map[string][]byte)}
}

func (f *fakeReleases) ReleaseByTag(ctx context.Context, repo, tag string) (ports.Release, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return ports.Release{}, false, f.err
	}
	rel, ok := f.releases[repo+"@"+tag]
	return rel, ok, nil
}

func (f *fakeReleases) CreateRelease(ctx context.Context, repo string, req ports.ReleaseRequest) (ports.Release, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, req)
	rel := ports.Release{ID: int64(len(f.created)), TagName: req.TagName, HTMLURL: "https://github.com/" + repo + "/releases/" + req.TagName}
	f.releases[repo+"@"+req.TagName] = rel
	return rel, nil
}

func (f *fakeReleases) UploadAsset(ctx context.Context, rel ports.Release, name string, size int64, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return errors.New("size mismatch")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploaded[name] = data
	return nil
}

func (f *fakeReleases) LatestRelease(ctx context.Context, repo string) (string, error) {
	return f.latest, nil
}

// fakeProbe fails until attempt failUntil is reached.
type fakeProbe struct {
	mu        sync.Mutex
	calls     int
	failUntil int
}

func (p *fakeProbe) Probe(ctx context.Context, pkg, version string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.failUntil == 0 || p.calls < p.failUntil {
		return domain.ErrPackageNotFound
	}
	return nil
}

type fakeIndex struct{}

func (fakeIndex) SourceDist(ctx context.Context, pkg, version string) (domain.SourceDist, error) {
	return domain.SourceDist{
		Filename: pkg + "-" + version + ".tar.gz",
		URL:      "https://files.example/" + pkg + "-" + version + ".tar.gz",
		SHA256:   strings.Repeat("ab", 32),
	}, nil
}

type fakeFormula struct{}

func (fakeFormula) Render(pkg, version string, sdist domain.SourceDist) ([]byte, error) {
	return []byte("url " + sdist.URL + "\nsha256 " + sdist.SHA256 + "\n"), nil
}

// fakeTaps records published updates; repositories in fail are rejected.
type fakeTaps struct {
	mu      sync.Mutex
	updates []ports.TapUpdate
	fail    map[string]bool
}

func (f *fakeTaps) Publish(ctx context.Context, u ports.TapUpdate) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[u.Repository] {
		return false, errors.New("push rejected")
	}
	f.updates = append(f.updates, u)
	return true, nil
}

func (f *fakeTaps) repositories() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, u := range f.updates {
		out = append(out, u.Repository)
	}
	return out
}

type fakeImages struct {
	mu       sync.Mutex
	resolved []string
	err      error
}

func (f *fakeImages) Resolve(ctx context.Context, image, tag string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolved = append(f.resolved, image+":"+tag)
	if f.err != nil {
		return "", f.err
	}
	return "sha256:" + strings.Repeat("0", 64), nil
}

// memRuns keeps saved records in memory.
type memRuns struct {
	mu   sync.Mutex
	recs []domain.RunRecord
}

func (m *memRuns) Save(ctx context.Context, rec domain.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, rec)
	return nil
}

func (m *memRuns) Last(ctx context.Context) (domain.RunRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.recs) == 0 {
		return domain.RunRecord{}, false, nil
	}
	return m.recs[len(m.recs)-1], true, nil
}

func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

// releaseFiles is a complete build output for ggshield 1.2.3.
var releaseFiles = []string{
	"dist/ggshield-1.2.3-py3-none-any.whl",
	"dist/ggshield-1.2.3.tar.gz",
	"packages/ggshield-1.2.3.pyz",
	"packages/ggshield_1.2.3-1_amd64.deb",
	"packages/ggshield-1.2.3-1.x86_64.rpm",
}

// writeFiles creates files with their own name as content.
func writeFiles(t *testing.T, root string, files []string) {
	t.Helper()
	for _, f := range files {
		p := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(f), 0o644))
	}
}

// testTag returns the tag of version, e.g. 1.2.3 or 1.3.0-rc.1.
func testTag(t *testing.T, version string) domain.Tag {
	t.Helper()
	tag, err := domain.ParseTag("refs/tags/v" + version)
	require.NoError(t, err)
	return tag
}

type harness struct {
	cfg      Config
	runner   *fakeRunner
	store    *fs.ArtifactDirStore
	releases *fakeReleases
	probe    *fakeProbe
	taps     *fakeTaps
	images   *fakeImages
	logs     bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return &harness{
		cfg: Config{
			Tag:                  testTag(t, "1.2.3"),
			Workdir:              t.TempDir(),
			SetupCommands:        []string{"python -m pip install --upgrade pip build shiv"},
			BuildScript:          "scripts/build-os-packages/build-os-packages",
			Python:               "python",
			PackageName:          "ggshield",
			PyPIToken:            "pypi-token",
			GitHubRepository:     "GitGuardian/ggshield",
			CloudsmithAPIKey:     "cs-key",
			CloudsmithRepository: "gitguardian/ggshield",
			DockerHub:            ImageTarget{Image: "gitguardian/ggshield", Username: "bot", Password: "hub-secret"},
			GHCR:                 ImageTarget{Registry: "ghcr.io", Image: "ghcr.io/gitguardian/ggshield", Username: "octocat", Password: "ghs_token"},
			TapRepositories:      []string{"GitGuardian/homebrew-tap", "GitGuardian/homebrew-ggshield"},
			TapRetry:             Retry{Attempts: 5, Delay: 10 * time.Second, sleep: noSleep},
		},
		runner:   newFakeRunner(),
		store:    fs.NewArtifactDirStore(t.TempDir()),
		releases: newFakeReleases(),
		probe:    &fakeProbe{failUntil: 1},
		taps:     &fakeTaps{},
		images:   &fakeImages{},
	}
}

func (h *harness) jobs(t *testing.T) *Jobs {
	t.Helper()
	j, err := NewJobs(h.cfg, Deps{
		Runner:    h.runner,
		Artifacts: h.store,
		Probe:     h.probe,
		Index:     fakeIndex{},
		Releases:  h.releases,
		Taps:      h.taps,
		Images:    h.images,
		Formula:   fakeFormula{},
		Logger:    log.NewZerologAdapterWithLogger(zerolog.New(&h.logs)),
	})
	require.NoError(t, err)
	return j
}

// logged counts the log lines with msg.
func (h *harness) logged(msg string) int {
	return strings.Count(h.logs.String(), `"message":"`+msg+`"`)
}

// producesOutput makes the build script write files into the workdir.
func (h *harness) producesOutput(files []string) {
	h.runner.on("scripts/build-os-packages/build-os-packages", func(cmd ports.Command) error {
		for _, f := range files {
			p := filepath.Join(cmd.Dir, filepath.FromSlash(f))
			if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(p, []byte(f), 0o644); err != nil {
				return err
			}
		}
		return nil
	})
}

// seedArtifact uploads files as the packages artifact of the harness tag.
func (h *harness) seedArtifact(t *testing.T, files []string) {
	t.Helper()
	src := t.TempDir()
	writeFiles(t, src, files)
	var dirs []string
	seen := map[string]bool{}
	for _, f := range files {
		dir := strings.SplitN(f, "/", 2)[0]
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	_, err := h.store.Upload(context.Background(),
		domain.ArtifactKey{Scope: h.cfg.Tag.Name, Name: PackagesArtifact}, src, dirs)
	require.NoError(t, err)
}
