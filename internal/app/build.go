package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-shellwords"

	"github.com/bft-labs/tagship/internal/domain"
	"github.com/bft-labs/tagship/internal/ports"
	"github.com/bft-labs/tagship/pkg/log"
)

// Build runs the setup commands and the build script in the source tree,
// then uploads dist/ and packages/ as the packages artifact.
func (j *Jobs) Build(ctx context.Context) error {
	logger := j.logger.With(log.Job(JobBuild))
	dir := j.cfg.Workdir

	for _, line := range j.cfg.SetupCommands {
		fields, err := j.setupCommand(line)
		if err != nil {
			return err
		}
		if len(fields) == 0 {
			continue
		}
		logger.Info("setup", log.Strings("cmd", fields))
		if err := j.run(ctx, ports.Command{Name: fields[0], Args: fields[1:], Dir: dir}); err != nil {
			return fmt.Errorf("setup: %w", err)
		}
	}

	if err := required(JobBuild, "build script", j.cfg.BuildScript); err != nil {
		return err
	}
	script := j.cfg.BuildScript
	if !filepath.IsAbs(script) && !strings.ContainsRune(script, filepath.Separator) {
		script = "." + string(filepath.Separator) + script
	}
	logger.Info("building packages", log.String("script", script), log.String("version", j.cfg.Tag.Version))
	err := j.run(ctx, ports.Command{
		Name: script,
		Dir:  dir,
		Env: map[string]string{
			"TAGSHIP_VERSION": j.cfg.Tag.Version,
			"TAGSHIP_TAG":     j.cfg.Tag.Name,
			"TAGSHIP_PACKAGE": j.cfg.PackageName,
		},
	})
	if err != nil {
		return fmt.Errorf("build script: %w", err)
	}

	outputs := []string{domain.DistDir, domain.PackagesDir}
	for _, out := range outputs {
		info, err := os.Stat(filepath.Join(dir, out))
		if err != nil || !info.IsDir() {
			return fmt.Errorf("%w: %s/ not found in %s", domain.ErrMissingBuildOutput, out, dir)
		}
	}

	set, err := j.deps.Artifacts.Upload(ctx, j.artifactKey(), dir, outputs)
	if err != nil {
		return fmt.Errorf("upload artifact %s: %w", j.artifactKey(), err)
	}
	if _, err := set.RequireAll(domain.ReleaseAssetPatterns(j.cfg.PackageName)...); err != nil {
		logger.Warn("build output is missing release assets", log.Err(err))
	}
	logger.Info("artifact uploaded",
		log.String("artifact", j.artifactKey().String()),
		log.Strings("files", set.Files))
	return nil
}

// setupCommand splits a setup line with shell quoting rules. A leading
// "python" is replaced by the configured interpreter.
func (j *Jobs) setupCommand(line string) ([]string, error) {
	fields, err := shellwords.Parse(line)
	if err != nil {
		return nil, fmt.Errorf("%w: setup command %q: %v", domain.ErrInvalidConfig, line, err)
	}
	if len(fields) > 0 && fields[0] == "python" {
		fields[0] = j.cfg.Python
	}
	return fields, nil
}
