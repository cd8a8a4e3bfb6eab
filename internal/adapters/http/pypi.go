package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/bft-labs/tagship/internal/domain"
	"github.com/bft-labs/tagship/internal/ports"
)

// DefaultPyPIURL is the public Python package index.
const DefaultPyPIURL = "https://pypi.org"

// PyPIClient reads release metadata from the PyPI JSON API.
// It implements both ports.PackageIndex and ports.IndexProbe.
type PyPIClient struct {
	client  ports.HTTPClient
	baseURL string
}

// NewPyPIClient creates a client for baseURL (DefaultPyPIURL when empty).
func NewPyPIClient(client ports.HTTPClient, baseURL string) *PyPIClient {
	if baseURL == "" {
		baseURL = DefaultPyPIURL
	}
	return &PyPIClient{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

type pypiFile struct {
	PackageType string `json:"packagetype"`
	Filename    string `json:"filename"`
	URL         string `json:"url"`
	Digests     struct {
		SHA256 string `json:"sha256"`
	} `json:"digests"`
	Yanked bool `json:"yanked"`
}

type pypiRelease struct {
	URLs []pypiFile `json:"urls"`
}

// SourceDist returns the sdist of pkg at version.
func (c *PyPIClient) SourceDist(ctx context.Context, pkg, version string) (domain.SourceDist, error) {
	rel, err := c.release(ctx, pkg, version)
	if err != nil {
		return domain.SourceDist{}, err
	}
	for _, f := range rel.URLs {
		if f.PackageType == "sdist" && !f.Yanked {
			return domain.SourceDist{Filename: f.Filename, URL: f.URL, SHA256: f.Digests.SHA256}, nil
		}
	}
	return domain.SourceDist{}, fmt.Errorf("%w: %s==%s has no sdist", domain.ErrPackageNotFound, pkg, version)
}

// Probe succeeds once at least one file of version is visible on the index.
func (c *PyPIClient) Probe(ctx context.Context, pkg, version string) error {
	rel, err := c.release(ctx, pkg, version)
	if err != nil {
		return err
	}
	if len(rel.URLs) == 0 {
		return fmt.Errorf("%w: %s==%s has no files yet", domain.ErrPackageNotFound, pkg, version)
	}
	return nil
}

func (c *PyPIClient) release(ctx context.Context, pkg, version string) (pypiRelease, error) {
	endpoint := c.baseURL + "/pypi/" + url.PathEscape(pkg) + "/" + url.PathEscape(version) + "/json"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return pypiRelease{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "tagship")

	resp, err := c.client.Do(req)
	if err != nil {
		return pypiRelease{}, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return pypiRelease{}, fmt.Errorf("%w: %s==%s", domain.ErrPackageNotFound, pkg, version)
	}
	if resp.StatusCode/100 != 2 {
		return pypiRelease{}, apiError(req, resp)
	}

	var rel pypiRelease
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return pypiRelease{}, fmt.Errorf("decode response: %w", err)
	}
	return rel, nil
}
