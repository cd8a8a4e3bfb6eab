// Package git publishes Homebrew formulas to tap repositories with go-git.
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/storage/memory"

	"github.com/bft-labs/tagship/internal/ports"
	"github.com/bft-labs/tagship/pkg/log"
)

// DefaultRemoteURL maps an owner/name tap to its clone URL.
const DefaultRemoteURL = "https://github.com/%s.git"

// Signature identifies the author of tap commits.
type Signature struct {
	Name  string
	Email string
}

// DefaultSignature is used when no author is configured.
var DefaultSignature = Signature{Name: "tagship", Email: "tagship@users.noreply.github.com"}

// Remote clones and pushes tap repositories.
type Remote interface {
	Clone(ctx context.Context, url string) (*gogit.Repository, error)
	Push(ctx context.Context, repo *gogit.Repository) error
}

// HTTPRemote is a Remote over HTTPS with token authentication. Clones are
// shallow and held in memory.
type HTTPRemote struct {
	auth transport.AuthMethod
}

// NewHTTPRemote creates an HTTPRemote. An empty token clones anonymously.
func NewHTTPRemote(token string) *HTTPRemote {
	r := &HTTPRemote{}
	if token != "" {
		r.auth = &githttp.BasicAuth{Username: "x-access-token", Password: token}
	}
	return r
}

// Clone fetches the default branch at depth 1.
func (r *HTTPRemote) Clone(ctx context.Context, url string) (*gogit.Repository, error) {
	return gogit.CloneContext(ctx, memory.NewStorage(), memfs.New(), &gogit.CloneOptions{
		URL:          url,
		Auth:         r.auth,
		Depth:        1,
		SingleBranch: true,
	})
}

// Push pushes the current branch to origin.
func (r *HTTPRemote) Push(ctx context.Context, repo *gogit.Repository) error {
	err := repo.PushContext(ctx, &gogit.PushOptions{RemoteName: gogit.DefaultRemoteName, Auth: r.auth})
	if errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return nil
	}
	return err
}

// TapPublisher implements ports.TapPublisher.
type TapPublisher struct {
	remote    Remote
	remoteURL string
	author    Signature
	logger    log.Logger
	now       func() time.Time
}

// NewTapPublisher creates a publisher. remoteURL is a format string taking the
// owner/name of the tap; DefaultRemoteURL is used when empty.
func NewTapPublisher(remote Remote, remoteURL string, author Signature, logger log.Logger) *TapPublisher {
	if remoteURL == "" {
		remoteURL = DefaultRemoteURL
	}
	if author.Name == "" || author.Email == "" {
		author = DefaultSignature
	}
	return &TapPublisher{
		remote:    remote,
		remoteURL: remoteURL,
		author:    author,
		logger:    logger,
		now:       time.Now,
	}
}

// Publish clones the tap, writes the file and pushes a commit when the
// content changed.
func (p *TapPublisher) Publish(ctx context.Context, update ports.TapUpdate) (bool, error) {
	url := p.cloneURL(update.Repository)
	logger := p.logger.With(log.String("tap", update.Repository), log.String("path", update.Path))

	repo, err := p.remote.Clone(ctx, url)
	if err != nil {
		return false, fmt.Errorf("clone %s: %w", update.Repository, err)
	}

	changed, err := CommitFile(repo, update.Path, update.Content, update.Message, p.author, p.now())
	if err != nil {
		return false, fmt.Errorf("update %s: %w", update.Repository, err)
	}
	if !changed {
		logger.Info("tap already up to date")
		return false, nil
	}

	if err := p.remote.Push(ctx, repo); err != nil {
		return true, fmt.Errorf("push %s: %w", update.Repository, err)
	}
	logger.Info("tap updated")
	return true, nil
}

func (p *TapPublisher) cloneURL(repository string) string {
	if strings.Contains(p.remoteURL, "%s") {
		return fmt.Sprintf(p.remoteURL, repository)
	}
	return p.remoteURL
}

// CommitFile writes content to path in the worktree of repo and commits it.
// It reports changed=false without committing when the file already holds
// content.
func CommitFile(repo *gogit.Repository, path string, content []byte, message string, author Signature, when time.Time) (bool, error) {
	wt, err := repo.Worktree()
	if err != nil {
		return false, err
	}

	current, err := readFile(wt.Filesystem, path)
	if err != nil {
		return false, err
	}
	if current != nil && bytes.Equal(current, content) {
		return false, nil
	}

	if err := util.WriteFile(wt.Filesystem, path, content, 0o644); err != nil {
		return false, err
	}
	if _, err := wt.Add(path); err != nil {
		return false, err
	}

	sig := &object.Signature{Name: author.Name, Email: author.Email, When: when}
	if _, err := wt.Commit(message, &gogit.CommitOptions{Author: sig, Committer: sig}); err != nil {
		return false, err
	}
	return true, nil
}

// readFile returns nil when path does not exist.
func readFile(fs billy.Filesystem, path string) ([]byte, error) {
	f, err := fs.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
