package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/bft-labs/tagship/internal/domain"
	"github.com/bft-labs/tagship/internal/ports"
	"github.com/bft-labs/tagship/pkg/log"
)

// PushToPyPI uploads the Python distributions with twine.
func (j *Jobs) PushToPyPI(ctx context.Context) error {
	if err := required(JobPyPI, "pypi token", j.cfg.PyPIToken); err != nil {
		return err
	}
	return j.withArtifact(ctx, JobPyPI, func(set domain.ArtifactSet) error {
		// Whatever dist/ holds is uploaded; a wheel alone is enough.
		files := set.Match(domain.DistPatterns()...)
		if len(files) == 0 {
			return fmt.Errorf("%w: %s", domain.ErrUnmatchedArtifact, strings.Join(domain.DistPatterns(), ", "))
		}
		args := []string{"-m", "twine", "upload", "--non-interactive"}
		for _, f := range files {
			args = append(args, set.Path(f))
		}
		env := map[string]string{
			"TWINE_USERNAME": "__token__",
			"TWINE_PASSWORD": j.cfg.PyPIToken,
		}
		if j.cfg.PyPIRepositoryURL != "" {
			env["TWINE_REPOSITORY_URL"] = j.cfg.PyPIRepositoryURL
		}

		j.logger.Info("uploading to PyPI", log.Job(JobPyPI), log.Strings("files", files))
		if err := j.run(ctx, ports.Command{Name: j.cfg.Python, Args: args, Env: env}); err != nil {
			return fmt.Errorf("twine upload: %w", err)
		}
		return nil
	})
}

// Release attaches the packages to the GitHub release of the tag, creating
// the release when it does not exist. Assets already attached are kept.
func (j *Jobs) Release(ctx context.Context) error {
	if j.deps.Releases == nil {
		return errors.New("release: no release host configured")
	}
	if err := required(JobRelease, "github repository", j.cfg.GitHubRepository); err != nil {
		return err
	}
	logger := j.logger.With(log.Job(JobRelease))

	return j.withArtifact(ctx, JobRelease, func(set domain.ArtifactSet) error {
		files, err := set.RequireAll(domain.ReleaseAssetPatterns(j.cfg.PackageName)...)
		if err != nil {
			return err
		}

		repo, tag := j.cfg.GitHubRepository, j.cfg.Tag
		rel, found, err := j.deps.Releases.ReleaseByTag(ctx, repo, tag.Name)
		if err != nil {
			return fmt.Errorf("get release %s: %w", tag.Name, err)
		}
		if !found {
			rel, err = j.deps.Releases.CreateRelease(ctx, repo, ports.ReleaseRequest{
				TagName:    tag.Name,
				Name:       tag.Name,
				Prerelease: tag.Prerelease,
			})
			if err != nil {
				return fmt.Errorf("create release %s: %w", tag.Name, err)
			}
		}

		for _, f := range files {
			name := path.Base(f)
			if rel.HasAsset(name) {
				logger.Info("asset already attached", log.String("asset", name))
				continue
			}
			if err := j.uploadAsset(ctx, rel, name, set.Path(f)); err != nil {
				return err
			}
			logger.Info("asset uploaded", log.String("asset", name))
		}
		return nil
	})
}

func (j *Jobs) uploadAsset(ctx context.Context, rel ports.Release, name, file string) error {
	fh, err := os.Open(file)
	if err != nil {
		return err
	}
	defer fh.Close()
	info, err := fh.Stat()
	if err != nil {
		return err
	}
	if err := j.deps.Releases.UploadAsset(ctx, rel, name, info.Size(), fh); err != nil {
		return fmt.Errorf("upload asset %s: %w", name, err)
	}
	return nil
}

// PushToCloudsmith pushes the Debian and RPM packages with the cloudsmith CLI.
func (j *Jobs) PushToCloudsmith(ctx context.Context) error {
	if err := required(JobCloudsmith, "cloudsmith api key", j.cfg.CloudsmithAPIKey); err != nil {
		return err
	}
	if err := required(JobCloudsmith, "cloudsmith repository", j.cfg.CloudsmithRepository); err != nil {
		return err
	}
	pkg := j.cfg.PackageName
	formats := []struct {
		format  string
		pattern string
	}{
		{"deb", domain.PackagesDir + "/" + pkg + "_*.deb"},
		{"rpm", domain.PackagesDir + "/" + pkg + "-*.rpm"},
	}

	return j.withArtifact(ctx, JobCloudsmith, func(set domain.ArtifactSet) error {
		target := j.cfg.CloudsmithRepository + "/any-distro/any-version"
		env := map[string]string{"CLOUDSMITH_API_KEY": j.cfg.CloudsmithAPIKey}
		for _, f := range formats {
			files, err := set.RequireAll(f.pattern)
			if err != nil {
				return err
			}
			for _, file := range files {
				j.logger.Info("pushing to Cloudsmith",
					log.Job(JobCloudsmith),
					log.String("format", f.format),
					log.String("file", path.Base(file)))
				err := j.run(ctx, ports.Command{
					Name: "cloudsmith",
					Args: []string{"push", f.format, target, set.Path(file)},
					Env:  env,
				})
				if err != nil {
					return fmt.Errorf("cloudsmith push %s: %w", path.Base(file), err)
				}
			}
		}
		return nil
	})
}
