package archive

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type report struct {
	RunID string            `json:"run_id"`
	Total string            `json:"total"`
	Tags  map[string]string `json:"tags"`
}

func TestCanonical_StableAcrossKeyOrder(t *testing.T) {
	a, err := Canonical(map[string]any{"b": 1, "a": "x"})
	require.NoError(t, err)
	assert.Equal(t, `{"a":"x","b":1}`, string(a))

	_, refA := Digest(a)
	b, err := Canonical(map[string]any{"a": "x", "b": 1})
	require.NoError(t, err)
	_, refB := Digest(b)
	assert.Equal(t, refA, refB)
}

func TestParseRef(t *testing.T) {
	_, ref := Digest([]byte("x"))
	digest, err := ParseRef(ref)
	require.NoError(t, err)
	assert.Len(t, digest, 64)

	for _, bad := range []string{"", "md5:abc", "sha256:zz", "sha256:abcd"} {
		_, err := ParseRef(bad)
		assert.ErrorIs(t, err, ErrInvalidRef, bad)
	}
}

func TestFileStore_SaveLoad(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	in := report{RunID: "run-1", Total: "12.00", Tags: map[string]string{"b": "2", "a": "1"}}
	ref, err := Save(ctx, s, in)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "sha256:"))

	again, err := Save(ctx, s, in)
	require.NoError(t, err)
	assert.Equal(t, ref, again)

	ok, err := s.Exists(ctx, ref)
	require.NoError(t, err)
	assert.True(t, ok)

	var out report
	require.NoError(t, Load(ctx, s, ref, &out))
	assert.Equal(t, in, out)

	_, missing := Digest([]byte("nope"))
	_, err = s.Get(ctx, missing)
	assert.ErrorIs(t, err, ErrNotFound)
	ok, err = s.Exists(ctx, missing)
	require.NoError(t, err)
	assert.False(t, ok)
}

type fakeS3 struct {
	objects map[string][]byte
	puts    int
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if _, ok := f.objects[*in.Key]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Key] = data
	f.puts++
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(string(data)))}, nil
}

func TestS3Store_PutGet(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}}
	s := NewS3StoreWithClient(fake, "bucket", "reports/")
	ctx := context.Background()

	ref, err := s.Put(ctx, []byte(`{"a":1}`))
	require.NoError(t, err)
	_, err = s.Put(ctx, []byte(`{"a":1}`))
	require.NoError(t, err)
	assert.Equal(t, 1, fake.puts)

	digest, _ := ParseRef(ref)
	assert.Contains(t, fake.objects, "reports/"+digest+".json")

	got, err := s.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(got))

	_, missing := Digest([]byte("nope"))
	_, err = s.Get(ctx, missing)
	assert.True(t, errors.Is(err, ErrNotFound))
	ok, err := s.Exists(ctx, missing)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewStore(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(context.Background(), Config{Backend: BackendFS, Dir: dir})
	require.NoError(t, err)
	fs, ok := s.(*FileStore)
	require.True(t, ok)
	assert.Equal(t, dir, fs.Dir())

	s, err = NewStore(context.Background(), Config{Backend: BackendNone})
	require.NoError(t, err)
	assert.Nil(t, s)

	_, err = NewStore(context.Background(), Config{Backend: BackendS3})
	assert.Error(t, err)

	_, err = NewStore(context.Background(), Config{Backend: "ftp"})
	assert.Error(t, err)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("ARCHIVE_STORAGE_TYPE", "")
	t.Setenv("ARCHIVE_DIR", "")
	t.Setenv("ARCHIVE_S3_REGION", "")
	t.Setenv("AWS_REGION", "eu-west-1")
	cfg := ConfigFromEnv()
	assert.Equal(t, BackendFS, cfg.Backend)
	assert.Equal(t, "data/reports", cfg.Dir)
	assert.Equal(t, "eu-west-1", cfg.S3.Region)
}
