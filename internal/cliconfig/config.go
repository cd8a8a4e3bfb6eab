package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bft-labs/tagship/internal/domain"
)

// Defaults for the ggshield release.
const (
	DefaultPackageName          = "ggshield"
	DefaultBuildScript          = "scripts/build-os-packages/build-os-packages"
	DefaultSetupCommand         = "python -m pip install --upgrade pip build shiv"
	DefaultGitHubRepository     = "GitGuardian/ggshield"
	DefaultDockerImage          = "gitguardian/ggshield"
	DefaultGHCRImage            = "ghcr.io/gitguardian/ggshield"
	DefaultCloudsmithRepository = "gitguardian/ggshield"
	DefaultTapAttempts          = 5
	DefaultTapDelay             = 10 * time.Second
)

// Artifact backends.
const (
	BackendDir = "dir"
	BackendS3  = "s3"
)

// Index probe strategies for the tap step.
const (
	ProbePip  = "pip"
	ProbeJSON = "json"
)

const masked = "*****"

// DefaultTapRepositories are the taps receiving the formula.
var DefaultTapRepositories = []string{"GitGuardian/homebrew-tap", "GitGuardian/homebrew-ggshield"}

// Config holds CLI configuration for tagship.
type Config struct {
	Ref         string
	TagPatterns []string

	Workdir       string
	SetupCommands []string
	BuildScript   string
	Python        string
	PackageName   string

	ArtifactBackend string
	S3Bucket        string
	S3Prefix        string
	S3Region        string
	S3Endpoint      string
	S3PathStyle     bool

	StateDir     string
	PipelineFile string
	Only         []string
	MaxParallel  int

	PyPIToken         string
	PyPIRepositoryURL string
	PyPIURL           string
	PipIndexURL       string
	ProbeStrategy     string

	DockerUsername string
	DockerPassword string
	DockerImage    string
	DockerContext  string
	GHCRImage      string
	GHCRUsername   string
	VerifyImages   bool

	GitHubToken      string
	GitHubRepository string
	GitHubAPIURL     string

	CloudsmithAPIKey     string
	CloudsmithRepository string

	TapToken        string
	TapRepositories []string
	TapAttempts     int
	TapDelay        time.Duration
	TapRemoteURL    string
	FormulaTemplate string
	CommitName      string
	CommitEmail     string

	HTTPTimeout time.Duration
	LogLevel    string
	LogJSON     bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		TagPatterns:          []string{domain.DefaultTagPattern},
		Workdir:              ".",
		SetupCommands:        []string{DefaultSetupCommand},
		BuildScript:          DefaultBuildScript,
		Python:               "python",
		PackageName:          DefaultPackageName,
		ArtifactBackend:      BackendDir,
		StateDir:             "", // Derived during Validate
		ProbeStrategy:        ProbePip,
		DockerImage:          DefaultDockerImage,
		DockerContext:        ".",
		GHCRImage:            DefaultGHCRImage,
		VerifyImages:         true,
		GitHubRepository:     DefaultGitHubRepository,
		CloudsmithRepository: DefaultCloudsmithRepository,
		TapRepositories:      append([]string(nil), DefaultTapRepositories...),
		TapAttempts:          DefaultTapAttempts,
		TapDelay:             DefaultTapDelay,
		HTTPTimeout:          30 * time.Second,
		LogLevel:             "info",
	}
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	if c.StateDir == "" {
		c.StateDir = DefaultStateDir()
	}
	if c.Workdir == "" {
		c.Workdir = "."
	}
	if len(c.TagPatterns) == 0 {
		c.TagPatterns = []string{domain.DefaultTagPattern}
	}
	if c.PackageName == "" {
		return invalid("package is required")
	}

	switch c.ArtifactBackend {
	case BackendDir:
	case BackendS3:
		if c.S3Bucket == "" {
			return invalid("s3-bucket is required for the s3 artifact backend")
		}
	default:
		return invalid("unknown artifact backend %q (want %s or %s)", c.ArtifactBackend, BackendDir, BackendS3)
	}

	switch c.ProbeStrategy {
	case ProbePip, ProbeJSON:
	default:
		return invalid("unknown probe strategy %q (want %s or %s)", c.ProbeStrategy, ProbePip, ProbeJSON)
	}

	if c.MaxParallel < 0 {
		return invalid("max-parallel must be >= 0")
	}
	if c.TapAttempts < 1 {
		return invalid("tap-attempts must be at least 1")
	}
	if c.TapDelay < 0 {
		return invalid("tap-delay must not be negative")
	}
	if c.HTTPTimeout <= 0 {
		return invalid("timeout must be positive")
	}

	// Ensure no trailing slash
	c.GitHubAPIURL = strings.TrimRight(c.GitHubAPIURL, "/")
	c.PyPIURL = strings.TrimRight(c.PyPIURL, "/")

	return nil
}

// Masked returns a copy with every credential replaced, for logging.
func (c Config) Masked() Config {
	for _, s := range []*string{
		&c.PyPIToken,
		&c.DockerPassword,
		&c.GitHubToken,
		&c.CloudsmithAPIKey,
		&c.TapToken,
	} {
		if *s != "" {
			*s = masked
		}
	}
	return c
}

// DefaultStateDir returns ~/.tagship, or .tagship when the home directory
// is not accessible.
func DefaultStateDir() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".tagship")
	}
	return ".tagship"
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setStrings sets a list if not empty and flag not changed.
func (s *configSetter) setStrings(flag string, value []string, dst *[]string) {
	if len(value) == 0 || s.changed[flag] {
		return
	}
	*dst = append([]string(nil), value...)
}

// setList splits a comma-separated value into a list.
// Used for environment variables that come as strings.
func (s *configSetter) setList(flag, value string, dst *[]string) {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	s.setStrings(flag, items, dst)
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
// Used for environment variables that come as strings.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
