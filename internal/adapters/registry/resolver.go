// Package registry resolves pushed image tags over the OCI distribution API.
package registry

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/retry"

	"github.com/bft-labs/tagship/pkg/log"
)

const (
	dockerHubHost     = "docker.io"
	dockerHubRegistry = "registry-1.docker.io"
)

// Credential is a registry login.
type Credential struct {
	Username string
	Password string
}

// Options configures a Resolver.
type Options struct {
	// Credentials maps a registry host (docker.io, ghcr.io, ...) to a login.
	Credentials map[string]Credential
	// PlainHTTP talks HTTP instead of HTTPS, for local registries.
	PlainHTTP bool
	// HTTPClient defaults to the oras retrying client.
	HTTPClient *http.Client
}

// Resolver implements ports.ImageResolver.
type Resolver struct {
	opts   Options
	cache  auth.Cache
	logger log.Logger
}

// NewResolver creates a Resolver.
func NewResolver(opts Options, logger log.Logger) *Resolver {
	if opts.HTTPClient == nil {
		opts.HTTPClient = retry.DefaultClient
	}
	return &Resolver{opts: opts, cache: auth.NewCache(), logger: logger}
}

// Resolve returns the manifest digest of image:tag.
func (r *Resolver) Resolve(ctx context.Context, image, tag string) (string, error) {
	ref := Normalize(image)
	repo, err := remote.NewRepository(ref)
	if err != nil {
		return "", fmt.Errorf("parse image %q: %w", image, err)
	}
	repo.PlainHTTP = r.opts.PlainHTTP
	repo.Client = &auth.Client{
		Client:     r.opts.HTTPClient,
		Cache:      r.cache,
		Credential: r.credential,
	}

	desc, err := repo.Resolve(ctx, tag)
	if err != nil {
		return "", fmt.Errorf("resolve %s:%s: %w", ref, tag, err)
	}
	r.logger.Debug("image resolved",
		log.String("image", ref),
		log.String("tag", tag),
		log.String("digest", desc.Digest.String()),
		log.String("media_type", desc.MediaType),
	)
	return desc.Digest.String(), nil
}

func (r *Resolver) credential(ctx context.Context, hostport string) (auth.Credential, error) {
	keys := []string{hostport}
	if hostport == dockerHubRegistry {
		keys = append(keys, dockerHubHost)
	}
	for _, k := range keys {
		if c, ok := r.opts.Credentials[k]; ok {
			return auth.Credential{Username: c.Username, Password: c.Password}, nil
		}
	}
	return auth.EmptyCredential, nil
}

// Normalize expands a docker-style image name into a fully qualified
// repository reference: "ggshield" becomes
// "registry-1.docker.io/library/ggshield", "gitguardian/ggshield" becomes
// "registry-1.docker.io/gitguardian/ggshield".
func Normalize(image string) string {
	host, rest, found := strings.Cut(image, "/")
	if !found {
		return dockerHubRegistry + "/library/" + image
	}
	if !strings.ContainsAny(host, ".:") && host != "localhost" {
		return dockerHubRegistry + "/" + image
	}
	if host == dockerHubHost {
		if !strings.Contains(rest, "/") {
			rest = "library/" + rest
		}
		return dockerHubRegistry + "/" + rest
	}
	return image
}

// Host returns the registry host of an image name as docker login expects
// it. Docker Hub images yield an empty host.
func Host(image string) string {
	host, _, found := strings.Cut(image, "/")
	if !found || (!strings.ContainsAny(host, ".:") && host != "localhost") || host == dockerHubHost {
		return ""
	}
	return host
}
