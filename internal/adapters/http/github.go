// Package http implements the hosted API adapters: GitHub releases and the
// PyPI JSON API.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/bft-labs/tagship/internal/ports"
	"github.com/bft-labs/tagship/pkg/log"
)

// DefaultGitHubAPIURL is the public GitHub REST endpoint.
const DefaultGitHubAPIURL = "https://api.github.com"

const githubAPIVersion = "2022-11-28"

// APIError is a non-2xx response from a hosted API.
type APIError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: server returned %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// GitHubClient implements ports.ReleaseHost using the GitHub REST API.
type GitHubClient struct {
	client  ports.HTTPClient
	logger  log.Logger
	baseURL string
	token   string
}

// NewGitHubClient creates a client for baseURL (DefaultGitHubAPIURL when empty).
func NewGitHubClient(client ports.HTTPClient, logger log.Logger, baseURL, token string) *GitHubClient {
	if baseURL == "" {
		baseURL = DefaultGitHubAPIURL
	}
	return &GitHubClient{
		client:  client,
		logger:  logger,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

type githubRelease struct {
	ID        int64  `json:"id"`
	TagName   string `json:"tag_name"`
	HTMLURL   string `json:"html_url"`
	UploadURL string `json:"upload_url"`
	Assets    []struct {
		Name string `json:"name"`
	} `json:"assets"`
}

func (r githubRelease) toPort() ports.Release {
	rel := ports.Release{
		ID:        r.ID,
		TagName:   r.TagName,
		HTMLURL:   r.HTMLURL,
		UploadURL: r.UploadURL,
	}
	for _, a := range r.Assets {
		rel.Assets = append(rel.Assets, a.Name)
	}
	return rel
}

// ReleaseByTag looks up the release of tag. A 404 is reported as found=false.
func (c *GitHubClient) ReleaseByTag(ctx context.Context, repo, tag string) (ports.Release, bool, error) {
	var rel githubRelease
	endpoint := c.baseURL + "/repos/" + repo + "/releases/tags/" + url.PathEscape(tag)
	status, err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &rel)
	if status == http.StatusNotFound {
		return ports.Release{}, false, nil
	}
	if err != nil {
		return ports.Release{}, false, err
	}
	return rel.toPort(), true, nil
}

// CreateRelease creates a release for an existing tag.
func (c *GitHubClient) CreateRelease(ctx context.Context, repo string, req ports.ReleaseRequest) (ports.Release, error) {
	payload := map[string]any{
		"tag_name":   req.TagName,
		"name":       req.Name,
		"prerelease": req.Prerelease,
		"draft":      req.Draft,
	}
	var rel githubRelease
	if _, err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/repos/"+repo+"/releases", payload, &rel); err != nil {
		return ports.Release{}, err
	}
	c.logger.Info("release created", log.String("repo", repo), log.String("tag", rel.TagName), log.String("url", rel.HTMLURL))
	return rel.toPort(), nil
}

// UploadAsset attaches body to rel under name.
func (c *GitHubClient) UploadAsset(ctx context.Context, rel ports.Release, name string, size int64, body io.Reader) error {
	if rel.UploadURL == "" {
		return fmt.Errorf("release %d has no upload url", rel.ID)
	}
	// upload_url is a URI template: .../assets{?name,label}
	base, _, _ := strings.Cut(rel.UploadURL, "{")
	endpoint := base + "?name=" + url.QueryEscape(name)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.ContentLength = size
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return apiError(req, resp)
	}
	return nil
}

// LatestRelease returns the tag name of the latest published release.
func (c *GitHubClient) LatestRelease(ctx context.Context, repo string) (string, error) {
	var rel githubRelease
	if _, err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/repos/"+repo+"/releases/latest", nil, &rel); err != nil {
		return "", err
	}
	return rel.TagName, nil
}

// doJSON sends payload (when non-nil) as JSON and decodes a 2xx response
// into out. The status code is returned even on error.
func (c *GitHubClient) doJSON(ctx context.Context, method, endpoint string, payload, out any) (int, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return resp.StatusCode, apiError(req, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return resp.StatusCode, nil
}

func (c *GitHubClient) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", githubAPIVersion)
	req.Header.Set("User-Agent", "tagship")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func apiError(req *http.Request, resp *http.Response) error {
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &APIError{
		Method:     req.Method,
		URL:        req.URL.Redacted(),
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(respBody)),
	}
}
