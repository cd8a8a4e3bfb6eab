package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	TagPatterns   []string `toml:"tag_patterns"`
	Workdir       string   `toml:"workdir"`
	SetupCommands []string `toml:"setup_commands"`
	BuildScript   string   `toml:"build_script"`
	Python        string   `toml:"python"`
	PackageName   string   `toml:"package"`

	ArtifactBackend string `toml:"artifact_backend"`
	S3Bucket        string `toml:"s3_bucket"`
	S3Prefix        string `toml:"s3_prefix"`
	S3Region        string `toml:"s3_region"`
	S3Endpoint      string `toml:"s3_endpoint"`
	S3PathStyle     *bool  `toml:"s3_path_style"`

	StateDir     string   `toml:"state_dir"`
	PipelineFile string   `toml:"pipeline"`
	Only         []string `toml:"only"`
	MaxParallel  int      `toml:"max_parallel"`

	PyPIToken         string `toml:"pypi_token"`
	PyPIRepositoryURL string `toml:"pypi_repository_url"`
	PyPIURL           string `toml:"pypi_url"`
	PipIndexURL       string `toml:"pip_index_url"`
	ProbeStrategy     string `toml:"probe"`

	DockerUsername string `toml:"docker_username"`
	DockerPassword string `toml:"docker_password"`
	DockerImage    string `toml:"docker_image"`
	DockerContext  string `toml:"docker_context"`
	GHCRImage      string `toml:"ghcr_image"`
	GHCRUsername   string `toml:"ghcr_username"`
	VerifyImages   *bool  `toml:"verify_images"`

	GitHubToken      string `toml:"github_token"`
	GitHubRepository string `toml:"github_repository"`
	GitHubAPIURL     string `toml:"github_api_url"`

	CloudsmithAPIKey     string `toml:"cloudsmith_api_key"`
	CloudsmithRepository string `toml:"cloudsmith_repository"`

	TapToken        string   `toml:"tap_token"`
	TapRepositories []string `toml:"taps"`
	TapAttempts     int      `toml:"tap_attempts"`
	TapDelay        string   `toml:"tap_delay"`
	TapRemoteURL    string   `toml:"tap_remote_url"`
	FormulaTemplate string   `toml:"formula_template"`
	CommitName      string   `toml:"commit_name"`
	CommitEmail     string   `toml:"commit_email"`

	HTTPTimeout string `toml:"http_timeout"`
	LogLevel    string `toml:"log_level"`
	LogJSON     *bool  `toml:"log_json"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.tagship/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".tagship", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setStrings("tag-pattern", fc.TagPatterns, &cfg.TagPatterns)
	s.setString("workdir", fc.Workdir, &cfg.Workdir)
	s.setStrings("setup", fc.SetupCommands, &cfg.SetupCommands)
	s.setString("build-script", fc.BuildScript, &cfg.BuildScript)
	s.setString("python", fc.Python, &cfg.Python)
	s.setString("package", fc.PackageName, &cfg.PackageName)

	s.setString("artifact-backend", fc.ArtifactBackend, &cfg.ArtifactBackend)
	s.setString("s3-bucket", fc.S3Bucket, &cfg.S3Bucket)
	s.setString("s3-prefix", fc.S3Prefix, &cfg.S3Prefix)
	s.setString("s3-region", fc.S3Region, &cfg.S3Region)
	s.setString("s3-endpoint", fc.S3Endpoint, &cfg.S3Endpoint)
	s.setBool("s3-path-style", fc.S3PathStyle, &cfg.S3PathStyle)

	s.setString("state-dir", fc.StateDir, &cfg.StateDir)
	s.setString("pipeline", fc.PipelineFile, &cfg.PipelineFile)
	s.setStrings("only", fc.Only, &cfg.Only)
	s.setInt("max-parallel", fc.MaxParallel, &cfg.MaxParallel)

	s.setString("pypi-token", fc.PyPIToken, &cfg.PyPIToken)
	s.setString("pypi-repository-url", fc.PyPIRepositoryURL, &cfg.PyPIRepositoryURL)
	s.setString("pypi-url", fc.PyPIURL, &cfg.PyPIURL)
	s.setString("pip-index-url", fc.PipIndexURL, &cfg.PipIndexURL)
	s.setString("probe", fc.ProbeStrategy, &cfg.ProbeStrategy)

	s.setString("docker-username", fc.DockerUsername, &cfg.DockerUsername)
	s.setString("docker-password", fc.DockerPassword, &cfg.DockerPassword)
	s.setString("docker-image", fc.DockerImage, &cfg.DockerImage)
	s.setString("docker-context", fc.DockerContext, &cfg.DockerContext)
	s.setString("ghcr-image", fc.GHCRImage, &cfg.GHCRImage)
	s.setString("ghcr-username", fc.GHCRUsername, &cfg.GHCRUsername)
	s.setBool("verify-images", fc.VerifyImages, &cfg.VerifyImages)

	s.setString("github-token", fc.GitHubToken, &cfg.GitHubToken)
	s.setString("github-repository", fc.GitHubRepository, &cfg.GitHubRepository)
	s.setString("github-api-url", fc.GitHubAPIURL, &cfg.GitHubAPIURL)

	s.setString("cloudsmith-api-key", fc.CloudsmithAPIKey, &cfg.CloudsmithAPIKey)
	s.setString("cloudsmith-repository", fc.CloudsmithRepository, &cfg.CloudsmithRepository)

	s.setString("tap-token", fc.TapToken, &cfg.TapToken)
	s.setStrings("tap", fc.TapRepositories, &cfg.TapRepositories)
	s.setInt("tap-attempts", fc.TapAttempts, &cfg.TapAttempts)
	if err := s.setDuration("tap-delay", fc.TapDelay, &cfg.TapDelay); err != nil {
		return err
	}
	s.setString("tap-remote-url", fc.TapRemoteURL, &cfg.TapRemoteURL)
	s.setString("formula-template", fc.FormulaTemplate, &cfg.FormulaTemplate)
	s.setString("commit-name", fc.CommitName, &cfg.CommitName)
	s.setString("commit-email", fc.CommitEmail, &cfg.CommitEmail)

	if err := s.setDuration("timeout", fc.HTTPTimeout, &cfg.HTTPTimeout); err != nil {
		return err
	}
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setBool("log-json", fc.LogJSON, &cfg.LogJSON)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
