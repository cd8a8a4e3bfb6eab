package app

import (
	"context"
	"fmt"

	"github.com/bft-labs/tagship/internal/ports"
	"github.com/bft-labs/tagship/pkg/log"
)

// PushToDockerHub builds and pushes the image to Docker Hub.
func (j *Jobs) PushToDockerHub(ctx context.Context) error {
	return j.pushImage(ctx, JobDockerHub, j.cfg.DockerHub)
}

// PushToGHCR builds and pushes the image to GitHub Packages.
func (j *Jobs) PushToGHCR(ctx context.Context) error {
	return j.pushImage(ctx, JobGHCR, j.cfg.GHCR)
}

// ImageTags returns the tags pushed for a release: the version, plus
// latest for final releases.
func (j *Jobs) ImageTags() []string {
	tags := []string{j.cfg.Tag.Version}
	if !j.cfg.Tag.Prerelease {
		tags = append(tags, "latest")
	}
	return tags
}

func (j *Jobs) pushImage(ctx context.Context, job string, target ImageTarget) error {
	if err := required(job, "image", target.Image); err != nil {
		return err
	}
	if err := required(job, "registry username", target.Username); err != nil {
		return err
	}
	if err := required(job, "registry password", target.Password); err != nil {
		return err
	}
	logger := j.logger.With(log.Job(job), log.String("image", target.Image))

	login := []string{"login"}
	if target.Registry != "" {
		login = append(login, target.Registry)
	}
	login = append(login, "-u", target.Username, "--password-stdin")
	if err := j.run(ctx, ports.Command{Name: "docker", Args: login, Stdin: target.Password}); err != nil {
		return fmt.Errorf("docker login: %w", err)
	}

	tags := j.ImageTags()
	build := []string{"build"}
	for _, tag := range tags {
		build = append(build, "-t", target.Image+":"+tag)
	}
	ctxDir := j.cfg.DockerContext
	if ctxDir == "" {
		ctxDir = "."
	}
	build = append(build, ctxDir)
	logger.Info("building image", log.Strings("tags", tags))
	if err := j.run(ctx, ports.Command{Name: "docker", Args: build, Dir: j.cfg.Workdir}); err != nil {
		return fmt.Errorf("docker build: %w", err)
	}

	for _, tag := range tags {
		ref := target.Image + ":" + tag
		if err := j.run(ctx, ports.Command{Name: "docker", Args: []string{"push", ref}}); err != nil {
			return fmt.Errorf("docker push %s: %w", ref, err)
		}
		logger.Info("image pushed", log.String("tag", tag))
	}

	if j.deps.Images == nil {
		return nil
	}
	digest, err := j.deps.Images.Resolve(ctx, target.Image, j.cfg.Tag.Version)
	if err != nil {
		return fmt.Errorf("verify %s:%s: %w", target.Image, j.cfg.Tag.Version, err)
	}
	logger.Info("image verified", log.String("tag", j.cfg.Tag.Version), log.String("digest", digest))
	return nil
}
