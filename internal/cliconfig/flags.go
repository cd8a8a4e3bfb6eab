package cliconfig

import (
	"fmt"

	pflag "github.com/spf13/pflag"
)

// BindFlags registers every configuration flag on fs, writing into cfg.
// Defaults are read from cfg, so call it with DefaultConfig().
func BindFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.Ref, "ref", cfg.Ref, "git ref of the release tag (default: $TAGSHIP_REF or $GITHUB_REF)")
	fs.StringSliceVar(&cfg.TagPatterns, "tag-pattern", cfg.TagPatterns, "glob patterns a tag must match to trigger a release")
	fs.StringVar(&cfg.Workdir, "workdir", cfg.Workdir, "checked-out source tree")
	fs.StringArrayVar(&cfg.SetupCommands, "setup", cfg.SetupCommands, "command run before the build script (repeatable)")
	fs.StringVar(&cfg.BuildScript, "build-script", cfg.BuildScript, "build script producing dist/ and packages/, relative to workdir")
	fs.StringVar(&cfg.Python, "python", cfg.Python, "python interpreter used for pip and twine")
	fs.StringVar(&cfg.PackageName, "package", cfg.PackageName, "Python package name")

	fs.StringVar(&cfg.ArtifactBackend, "artifact-backend", cfg.ArtifactBackend, "artifact store backend: dir or s3")
	fs.StringVar(&cfg.S3Bucket, "s3-bucket", cfg.S3Bucket, "bucket of the s3 artifact backend")
	fs.StringVar(&cfg.S3Prefix, "s3-prefix", cfg.S3Prefix, "key prefix of the s3 artifact backend")
	fs.StringVar(&cfg.S3Region, "s3-region", cfg.S3Region, "region of the s3 artifact backend")
	fs.StringVar(&cfg.S3Endpoint, "s3-endpoint", cfg.S3Endpoint, "custom S3 endpoint, e.g. MinIO")
	fs.BoolVar(&cfg.S3PathStyle, "s3-path-style", cfg.S3PathStyle, "use path-style S3 addressing")

	fs.StringVar(&cfg.StateDir, "state-dir", cfg.StateDir, "directory for artifacts and run records (default: $HOME/.tagship)")
	fs.StringVar(&cfg.PipelineFile, "pipeline", cfg.PipelineFile, "YAML pipeline definition (default: built-in release graph)")
	fs.StringSliceVar(&cfg.Only, "only", cfg.Only, "run only these jobs; the others are excluded")
	fs.IntVar(&cfg.MaxParallel, "max-parallel", cfg.MaxParallel, "maximum concurrently running jobs (0 = unbounded)")

	fs.StringVar(&cfg.PyPIToken, "pypi-token", cfg.PyPIToken, "PyPI API token")
	fs.StringVar(&cfg.PyPIRepositoryURL, "pypi-repository-url", cfg.PyPIRepositoryURL, "twine upload repository URL")
	fs.StringVar(&cfg.PyPIURL, "pypi-url", cfg.PyPIURL, "base URL of the PyPI JSON API")
	fs.StringVar(&cfg.PipIndexURL, "pip-index-url", cfg.PipIndexURL, "index URL used when probing with pip")
	fs.StringVar(&cfg.ProbeStrategy, "probe", cfg.ProbeStrategy, "how the tap step waits for the package: pip or json")

	fs.StringVar(&cfg.DockerUsername, "docker-username", cfg.DockerUsername, "Docker Hub user")
	fs.StringVar(&cfg.DockerPassword, "docker-password", cfg.DockerPassword, "Docker Hub password or token")
	fs.StringVar(&cfg.DockerImage, "docker-image", cfg.DockerImage, "Docker Hub image")
	fs.StringVar(&cfg.DockerContext, "docker-context", cfg.DockerContext, "docker build context, relative to workdir")
	fs.StringVar(&cfg.GHCRImage, "ghcr-image", cfg.GHCRImage, "GitHub Packages image")
	fs.StringVar(&cfg.GHCRUsername, "ghcr-username", cfg.GHCRUsername, "GitHub Packages user, logged in with the GitHub token (default: $GITHUB_ACTOR)")
	fs.BoolVar(&cfg.VerifyImages, "verify-images", cfg.VerifyImages, "resolve pushed tags on the registry")

	fs.StringVar(&cfg.GitHubToken, "github-token", cfg.GitHubToken, "GitHub token (default: $GITHUB_TOKEN)")
	fs.StringVar(&cfg.GitHubRepository, "github-repository", cfg.GitHubRepository, "owner/name of the released repository")
	fs.StringVar(&cfg.GitHubAPIURL, "github-api-url", cfg.GitHubAPIURL, "GitHub REST API base URL")

	fs.StringVar(&cfg.CloudsmithAPIKey, "cloudsmith-api-key", cfg.CloudsmithAPIKey, "Cloudsmith API key")
	fs.StringVar(&cfg.CloudsmithRepository, "cloudsmith-repository", cfg.CloudsmithRepository, "Cloudsmith owner/repository")

	fs.StringVar(&cfg.TapToken, "tap-token", cfg.TapToken, "token with push access to the taps")
	fs.StringSliceVar(&cfg.TapRepositories, "tap", cfg.TapRepositories, "Homebrew tap repositories (owner/name)")
	fs.IntVar(&cfg.TapAttempts, "tap-attempts", cfg.TapAttempts, "attempts to find the package on the index")
	fs.DurationVar(&cfg.TapDelay, "tap-delay", cfg.TapDelay, "delay between index attempts")
	fs.StringVar(&cfg.TapRemoteURL, "tap-remote-url", cfg.TapRemoteURL, "clone URL format for taps, %s is owner/name")
	fs.StringVar(&cfg.FormulaTemplate, "formula-template", cfg.FormulaTemplate, "text/template file for the formula")
	fs.StringVar(&cfg.CommitName, "commit-name", cfg.CommitName, "author name of tap commits")
	fs.StringVar(&cfg.CommitEmail, "commit-email", cfg.CommitEmail, "author email of tap commits")

	fs.DurationVar(&cfg.HTTPTimeout, "timeout", cfg.HTTPTimeout, "HTTP timeout")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	fs.BoolVar(&cfg.LogJSON, "log-json", cfg.LogJSON, "log as JSON instead of console text")

	for _, hidden := range []string{"pypi-url", "github-api-url", "tap-remote-url"} {
		_ = fs.MarkHidden(hidden)
	}
}

// Load layers the config file, then the environment, under the flags that
// were set on fs, and validates the result. An empty path selects
// DefaultConfigPath; a missing default file is not an error.
func Load(fs *pflag.FlagSet, cfg *Config, path string) error {
	changed := map[string]bool{}
	fs.Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath()
	}
	if path != "" && (explicit || FileExists(path)) {
		fc, err := LoadFileConfig(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := ApplyFileConfig(cfg, fc, changed); err != nil {
			return err
		}
	}

	if err := ApplyEnvConfig(cfg, changed); err != nil {
		return err
	}
	return cfg.Validate()
}
