package exec

import (
	"context"
	"fmt"
	"os"

	"github.com/bft-labs/tagship/internal/domain"
	"github.com/bft-labs/tagship/internal/ports"
)

// PipProbe implements ports.IndexProbe by installing the exact version into a
// throwaway directory.
type PipProbe struct {
	runner   ports.CommandRunner
	python   string
	indexURL string
}

// NewPipProbe creates a probe using python (default "python").
// indexURL, when set, replaces the default package index.
func NewPipProbe(runner ports.CommandRunner, python, indexURL string) *PipProbe {
	if python == "" {
		python = "python"
	}
	return &PipProbe{runner: runner, python: python, indexURL: indexURL}
}

// Probe runs pip install --no-deps for pkg==version.
func (p *PipProbe) Probe(ctx context.Context, pkg, version string) error {
	target, err := os.MkdirTemp("", "tagship-probe-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(target)

	args := []string{
		"-m", "pip", "install",
		"--no-deps", "--no-cache-dir",
		"--disable-pip-version-check",
		"--target", target,
	}
	if p.indexURL != "" {
		args = append(args, "--index-url", p.indexURL)
	}
	args = append(args, pkg+"=="+version)

	if _, err := p.runner.Run(ctx, ports.Command{Name: p.python, Args: args}); err != nil {
		return fmt.Errorf("%w: %s==%s: %v", domain.ErrPackageNotFound, pkg, version, err)
	}
	return nil
}
