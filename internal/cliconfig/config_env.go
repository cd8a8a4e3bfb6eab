package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (TAGSHIP_*).
// It respects flags that have been explicitly set (changed map).
// The CI variables GITHUB_REF, GITHUB_REPOSITORY, GITHUB_TOKEN and
// GITHUB_ACTOR are used when their TAGSHIP_ counterpart is unset.
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("ref", firstEnv("TAGSHIP_REF", "GITHUB_REF"), &cfg.Ref)
	s.setList("tag-pattern", os.Getenv("TAGSHIP_TAG_PATTERNS"), &cfg.TagPatterns)
	s.setString("workdir", os.Getenv("TAGSHIP_WORKDIR"), &cfg.Workdir)
	s.setString("build-script", os.Getenv("TAGSHIP_BUILD_SCRIPT"), &cfg.BuildScript)
	s.setString("python", os.Getenv("TAGSHIP_PYTHON"), &cfg.Python)
	s.setString("package", os.Getenv("TAGSHIP_PACKAGE"), &cfg.PackageName)

	s.setString("artifact-backend", os.Getenv("TAGSHIP_ARTIFACT_BACKEND"), &cfg.ArtifactBackend)
	s.setString("s3-bucket", os.Getenv("TAGSHIP_S3_BUCKET"), &cfg.S3Bucket)
	s.setString("s3-prefix", os.Getenv("TAGSHIP_S3_PREFIX"), &cfg.S3Prefix)
	s.setString("s3-region", os.Getenv("TAGSHIP_S3_REGION"), &cfg.S3Region)
	s.setString("s3-endpoint", os.Getenv("TAGSHIP_S3_ENDPOINT"), &cfg.S3Endpoint)
	s.setBoolFromString("s3-path-style", os.Getenv("TAGSHIP_S3_PATH_STYLE"), &cfg.S3PathStyle)

	s.setString("state-dir", os.Getenv("TAGSHIP_STATE_DIR"), &cfg.StateDir)
	s.setString("pipeline", os.Getenv("TAGSHIP_PIPELINE"), &cfg.PipelineFile)
	s.setList("only", os.Getenv("TAGSHIP_ONLY"), &cfg.Only)
	if err := s.setIntFromString("max-parallel", os.Getenv("TAGSHIP_MAX_PARALLEL"), &cfg.MaxParallel); err != nil {
		return err
	}

	s.setString("pypi-token", os.Getenv("TAGSHIP_PYPI_TOKEN"), &cfg.PyPIToken)
	s.setString("pypi-repository-url", os.Getenv("TAGSHIP_PYPI_REPOSITORY_URL"), &cfg.PyPIRepositoryURL)
	s.setString("pypi-url", os.Getenv("TAGSHIP_PYPI_URL"), &cfg.PyPIURL)
	s.setString("pip-index-url", os.Getenv("TAGSHIP_PIP_INDEX_URL"), &cfg.PipIndexURL)
	s.setString("probe", os.Getenv("TAGSHIP_PROBE"), &cfg.ProbeStrategy)

	s.setString("docker-username", os.Getenv("TAGSHIP_DOCKER_USERNAME"), &cfg.DockerUsername)
	s.setString("docker-password", os.Getenv("TAGSHIP_DOCKER_PASSWORD"), &cfg.DockerPassword)
	s.setString("docker-image", os.Getenv("TAGSHIP_DOCKER_IMAGE"), &cfg.DockerImage)
	s.setString("docker-context", os.Getenv("TAGSHIP_DOCKER_CONTEXT"), &cfg.DockerContext)
	s.setString("ghcr-image", os.Getenv("TAGSHIP_GHCR_IMAGE"), &cfg.GHCRImage)
	s.setString("ghcr-username", firstEnv("TAGSHIP_GHCR_USERNAME", "GITHUB_ACTOR"), &cfg.GHCRUsername)
	s.setBoolFromString("verify-images", os.Getenv("TAGSHIP_VERIFY_IMAGES"), &cfg.VerifyImages)

	s.setString("github-token", firstEnv("TAGSHIP_GITHUB_TOKEN", "GITHUB_TOKEN"), &cfg.GitHubToken)
	s.setString("github-repository", firstEnv("TAGSHIP_GITHUB_REPOSITORY", "GITHUB_REPOSITORY"), &cfg.GitHubRepository)
	s.setString("github-api-url", os.Getenv("TAGSHIP_GITHUB_API_URL"), &cfg.GitHubAPIURL)

	s.setString("cloudsmith-api-key", os.Getenv("TAGSHIP_CLOUDSMITH_API_KEY"), &cfg.CloudsmithAPIKey)
	s.setString("cloudsmith-repository", os.Getenv("TAGSHIP_CLOUDSMITH_REPOSITORY"), &cfg.CloudsmithRepository)

	s.setString("tap-token", os.Getenv("TAGSHIP_TAP_TOKEN"), &cfg.TapToken)
	s.setList("tap", os.Getenv("TAGSHIP_TAPS"), &cfg.TapRepositories)
	if err := s.setIntFromString("tap-attempts", os.Getenv("TAGSHIP_TAP_ATTEMPTS"), &cfg.TapAttempts); err != nil {
		return err
	}
	if err := s.setDuration("tap-delay", os.Getenv("TAGSHIP_TAP_DELAY"), &cfg.TapDelay); err != nil {
		return err
	}
	s.setString("tap-remote-url", os.Getenv("TAGSHIP_TAP_REMOTE_URL"), &cfg.TapRemoteURL)
	s.setString("formula-template", os.Getenv("TAGSHIP_FORMULA_TEMPLATE"), &cfg.FormulaTemplate)
	s.setString("commit-name", os.Getenv("TAGSHIP_COMMIT_NAME"), &cfg.CommitName)
	s.setString("commit-email", os.Getenv("TAGSHIP_COMMIT_EMAIL"), &cfg.CommitEmail)

	if err := s.setDuration("timeout", os.Getenv("TAGSHIP_HTTP_TIMEOUT"), &cfg.HTTPTimeout); err != nil {
		return err
	}
	s.setString("log-level", os.Getenv("TAGSHIP_LOG_LEVEL"), &cfg.LogLevel)
	s.setBoolFromString("log-json", os.Getenv("TAGSHIP_LOG_JSON"), &cfg.LogJSON)

	return nil
}

// firstEnv returns the first non-empty variable among keys.
func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
