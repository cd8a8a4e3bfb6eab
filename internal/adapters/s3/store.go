// Package s3 stores artifact bundles in an S3 bucket.
package s3

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/bft-labs/tagship/internal/domain"
	"github.com/bft-labs/tagship/pkg/log"
)

// API is the subset of the S3 client used by Store.
type API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Config selects the bucket and endpoint.
type Config struct {
	Bucket string
	Prefix string
	Region string
	// Endpoint overrides the service endpoint, e.g. a MinIO server.
	Endpoint string
	// PathStyle addresses the bucket in the path instead of the host name.
	PathStyle bool
}

// NewClient builds an S3 client from the default credential chain.
func NewClient(ctx context.Context, cfg Config) (*s3.Client, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	if awsCfg.Region == "" {
		awsCfg.Region = "us-east-1"
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	}), nil
}

// Store implements ports.ArtifactStore with objects named
// <prefix>/<scope>/<name>/<relative path>.
type Store struct {
	api    API
	bucket string
	prefix string
	logger log.Logger
}

// NewStore creates a Store on api.
func NewStore(api API, cfg Config, logger log.Logger) *Store {
	return &Store{
		api:    api,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		logger: logger,
	}
}

// Upload puts every file under paths and deletes objects of the previous
// bundle that are not part of the new one.
func (s *Store) Upload(ctx context.Context, key domain.ArtifactKey, srcDir string, paths []string) (domain.ArtifactSet, error) {
	if err := key.Validate(); err != nil {
		return domain.ArtifactSet{}, err
	}
	files, err := localFiles(srcDir, paths)
	if err != nil {
		return domain.ArtifactSet{}, err
	}

	existing, err := s.list(ctx, key)
	if err != nil {
		return domain.ArtifactSet{}, err
	}

	keep := make(map[string]bool, len(files))
	for _, rel := range files {
		keep[rel] = true
		if err := s.put(ctx, s.objectKey(key, rel), filepath.Join(srcDir, filepath.FromSlash(rel))); err != nil {
			return domain.ArtifactSet{}, fmt.Errorf("upload %s: %w", key, err)
		}
	}
	for _, rel := range existing {
		if keep[rel] {
			continue
		}
		if _, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.objectKey(key, rel)),
		}); err != nil {
			return domain.ArtifactSet{}, fmt.Errorf("prune %s: %w", key, err)
		}
	}

	s.logger.Debug("artifact uploaded",
		log.String("artifact", key.String()),
		log.String("bucket", s.bucket),
		log.Int("files", len(files)),
	)
	return domain.NewArtifactSet(srcDir, files), nil
}

// Download fetches every object of the bundle into dstDir.
// Returns domain.ErrArtifactNotFound when the bundle has no objects.
func (s *Store) Download(ctx context.Context, key domain.ArtifactKey, dstDir string) (domain.ArtifactSet, error) {
	if err := key.Validate(); err != nil {
		return domain.ArtifactSet{}, err
	}
	files, err := s.list(ctx, key)
	if err != nil {
		return domain.ArtifactSet{}, err
	}
	if len(files) == 0 {
		return domain.ArtifactSet{}, fmt.Errorf("%w: s3://%s/%s", domain.ErrArtifactNotFound, s.bucket, s.bundlePrefix(key))
	}

	for _, rel := range files {
		if err := s.get(ctx, s.objectKey(key, rel), filepath.Join(dstDir, filepath.FromSlash(rel))); err != nil {
			return domain.ArtifactSet{}, fmt.Errorf("download %s: %w", key, err)
		}
	}
	return domain.NewArtifactSet(dstDir, files), nil
}

func (s *Store) bundlePrefix(key domain.ArtifactKey) string {
	return path.Join(s.prefix, key.Scope, key.Name) + "/"
}

func (s *Store) objectKey(key domain.ArtifactKey, rel string) string {
	return s.bundlePrefix(key) + rel
}

// list returns the relative paths of the objects of a bundle.
func (s *Store) list(ctx context.Context, key domain.ArtifactKey) ([]string, error) {
	prefix := s.bundlePrefix(key)
	p := s3.NewListObjectsV2Paginator(s.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	var out []string
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list s3://%s/%s: %w", s.bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			rel := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			if rel == "" || strings.HasSuffix(rel, "/") || !fs.ValidPath(rel) {
				continue
			}
			out = append(out, rel)
		}
	}
	return out, nil
}

func (s *Store) put(ctx context.Context, objectKey, file string) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	_, err = s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(objectKey),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
	})
	return err
}

func (s *Store) get(ctx context.Context, objectKey, file string) error {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return err
	}
	defer out.Body.Close()

	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return err
	}
	f, err := os.Create(file)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, out.Body); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// localFiles expands paths under root into slash-separated relative files.
func localFiles(root string, paths []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		clean := filepath.ToSlash(filepath.Clean(p))
		if !fs.ValidPath(clean) {
			return nil, fmt.Errorf("path %q escapes %s", p, root)
		}
		err := filepath.WalkDir(filepath.Join(root, filepath.FromSlash(clean)), func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.Type().IsRegular() {
				return nil
			}
			rel, err := filepath.Rel(root, p)
			if err != nil {
				return err
			}
			out = append(out, filepath.ToSlash(rel))
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
