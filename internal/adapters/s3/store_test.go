package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/tagship/internal/domain"
	"github.com/bft-labs/tagship/pkg/log"
)

// memS3 is an in-memory bucket. pageSize forces the paginator to loop.
type memS3 struct {
	mu       sync.Mutex
	objects  map[string][]byte
	pageSize int
	putErr   error
}

func newMemS3() *memS3 { return &memS3{objects: map[string][]byte{}, pageSize: 2} }

func (m *memS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *memS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *memS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (m *memS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) && k > aws.ToString(in.ContinuationToken) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	if len(keys) > m.pageSize {
		keys = keys[:m.pageSize]
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(keys[len(keys)-1])
	}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func (m *memS3) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for k := range m.objects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

func newTestStore(api API) *Store {
	return NewStore(api, Config{Bucket: "releases", Prefix: "/tagship/"}, log.NewNoopLogger())
}

func TestStore_RoundTrip(t *testing.T) {
	api := newMemS3()
	store := newTestStore(api)
	key := domain.ArtifactKey{Scope: "v1.2.3", Name: "packages"}
	ctx := context.Background()

	src := t.TempDir()
	writeFiles(t, src, map[string]string{
		"dist/ggshield-1.2.3.tar.gz":           "sdist",
		"dist/ggshield-1.2.3-py3-none-any.whl": "wheel",
		"packages/ggshield-1.2.3.pyz":          "pyz",
		"packages/ggshield-1.2.3-1.x86_64.rpm": "rpm",
		"packages/ggshield_1.2.3-1_amd64.deb":  "deb",
	})

	up, err := store.Upload(ctx, key, src, []string{"dist", "packages"})
	require.NoError(t, err)
	assert.Len(t, up.Files, 5)
	assert.Contains(t, api.keys(), "tagship/v1.2.3/packages/packages/ggshield-1.2.3.pyz")

	dst := t.TempDir()
	down, err := store.Download(ctx, key, dst)
	require.NoError(t, err)
	assert.Equal(t, up.Files, down.Files)

	data, err := os.ReadFile(down.Path("dist/ggshield-1.2.3.tar.gz"))
	require.NoError(t, err)
	assert.Equal(t, "sdist", string(data))

	assets, err := down.RequireAll(domain.ReleaseAssetPatterns("ggshield")...)
	require.NoError(t, err)
	assert.Len(t, assets, 3)
}

func TestStore_UploadPrunesStaleObjects(t *testing.T) {
	api := newMemS3()
	store := newTestStore(api)
	key := domain.ArtifactKey{Scope: "v1.0.0", Name: "packages"}
	ctx := context.Background()

	first := t.TempDir()
	writeFiles(t, first, map[string]string{"packages/a.deb": "a", "packages/b.deb": "b"})
	_, err := store.Upload(ctx, key, first, []string{"packages"})
	require.NoError(t, err)

	second := t.TempDir()
	writeFiles(t, second, map[string]string{"packages/b.deb": "b2"})
	_, err = store.Upload(ctx, key, second, []string{"packages"})
	require.NoError(t, err)

	assert.Equal(t, []string{"tagship/v1.0.0/packages/packages/b.deb"}, api.keys())
}

func TestStore_DownloadMissing(t *testing.T) {
	store := newTestStore(newMemS3())

	_, err := store.Download(context.Background(), domain.ArtifactKey{Scope: "v1.0.0", Name: "packages"}, t.TempDir())
	assert.ErrorIs(t, err, domain.ErrArtifactNotFound)
}

func TestStore_UploadError(t *testing.T) {
	api := newMemS3()
	api.putErr = errors.New("access denied")
	store := newTestStore(api)

	src := t.TempDir()
	writeFiles(t, src, map[string]string{"dist/x.whl": "x"})
	_, err := store.Upload(context.Background(), domain.ArtifactKey{Scope: "v1.0.0", Name: "packages"}, src, []string{"dist"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestStore_RejectsEscapingPaths(t *testing.T) {
	store := newTestStore(newMemS3())

	_, err := store.Upload(context.Background(), domain.ArtifactKey{Scope: "v1.0.0", Name: "packages"}, t.TempDir(), []string{"../x"})
	assert.Error(t, err)
}
