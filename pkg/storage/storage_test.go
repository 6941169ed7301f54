package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		root  string
		parts []string
		want  string
		err   bool
	}{
		{root: "users/42", parts: []string{"docs", "a.txt"}, want: "users/42/docs/a.txt"},
		{root: "users/42/", parts: []string{"/docs//", "a.txt"}, want: "users/42/docs/a.txt"},
		{root: "users/42", parts: nil, want: "users/42"},
		{root: "users/42", parts: []string{"./x"}, want: "users/42/x"},
		{root: "users/42", parts: []string{"../43/secret"}, err: true},
		{root: "users/42", parts: []string{"docs/../../x"}, err: true},
		{root: "", parts: []string{""}, err: true},
	}
	for _, tt := range tests {
		got, err := Join(tt.root, tt.parts...)
		if tt.err {
			assert.ErrorIs(t, err, ErrInvalidKey, "%s %v", tt.root, tt.parts)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestKeyHelpers(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a/b/", FolderKey("a/b"))
	assert.Equal(t, "a/b/", FolderKey("a/b/"))
	assert.Equal(t, "b", BaseName("a/b/"))
	assert.Equal(t, "c.txt", BaseName("a/b/c.txt"))

	assert.Equal(t, "application/pdf", DetectContentType("x.pdf", nil))
	assert.Equal(t, "application/octet-stream", DetectContentType("noext", nil))
	assert.Contains(t, DetectContentType("noext", []byte("<html><body>")), "text/html")
}

func TestMemoryStorage(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemory()

	put := func(key, body string) {
		_, err := s.Put(ctx, key, strings.NewReader(body), int64(len(body)), "text/plain")
		require.NoError(t, err)
	}
	put("u/1/b.txt", "bee")
	put("u/1/a.txt", "a")
	put("u/1/docs/", "")
	put("u/1/docs/x.txt", "x")
	put("u/2/other.txt", "no")

	objs, err := s.List(ctx, "u/1")
	require.NoError(t, err)
	require.Len(t, objs, 3)
	assert.Equal(t, Object{Key: "u/1/docs/", Name: "docs", Folder: true}, objs[0])
	assert.Equal(t, "a.txt", objs[1].Name)
	assert.Equal(t, "b.txt", objs[2].Name)
	assert.Equal(t, int64(3), objs[2].Size)

	docs, err := s.List(ctx, "u/1/docs/")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "x.txt", docs[0].Name)

	require.NoError(t, s.Copy(ctx, "u/1/a.txt", "u/1/c.txt"))
	rc, err := s.Get(ctx, "u/1/c.txt")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "a", string(data))

	head, err := s.Head(ctx, "u/1/b.txt")
	require.NoError(t, err)
	assert.Equal(t, "text/plain", head.ContentType)

	n, err := s.DeletePrefix(ctx, "u/1/docs")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	_, err = s.DeletePrefix(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidKey)

	require.NoError(t, s.Delete(ctx, "u/1/a.txt"))
	_, err = s.Get(ctx, "u/1/a.txt")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Head(ctx, "u/1/a.txt")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Copy(ctx, "missing", "x"), ErrNotFound)

	link, err := s.URL(ctx, "u/1/b.txt", time.Minute, "b.txt")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(link, "memory://u/1/b.txt?"))
	assert.Contains(t, link, "download=b.txt")
	_, err = s.URL(ctx, "missing", time.Minute, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStorage_Limits(t *testing.T) {
	t.Parallel()

	s := NewMemory()
	s.maxSize = 4
	ctx := context.Background()

	_, err := s.Put(ctx, "", strings.NewReader("x"), 1, "")
	assert.ErrorIs(t, err, ErrInvalidKey)
	_, err = s.Put(ctx, "k", strings.NewReader("12345"), 5, "")
	assert.ErrorIs(t, err, ErrFileTooLarge)
	_, err = s.Put(ctx, "k", strings.NewReader("12345"), -1, "")
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func TestNew_Config(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Bucket: "b"})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	s, err := New(Config{Bucket: "b", AccessKey: "a", SecretKey: "s", Endpoint: "http://localhost:9000", PathStyle: true})
	require.NoError(t, err)
	cfg := s.Config()
	assert.Equal(t, DefaultRegion, cfg.Region)
	assert.Equal(t, int64(DefaultMaxUploadSize), cfg.MaxUploadSize)
	assert.Equal(t, DefaultURLExpiry, cfg.URLExpiry)
	assert.True(t, cfg.Enabled())
	assert.False(t, Config{}.Enabled())

	_, err = s.Put(context.Background(), "k", strings.NewReader(""), DefaultMaxUploadSize+1, "")
	assert.ErrorIs(t, err, ErrFileTooLarge)

	link, err := s.URL(context.Background(), "u/1/a.txt", time.Minute, "a.txt")
	require.NoError(t, err)
	assert.Contains(t, link, "http://localhost:9000/b/u/1/a.txt")
	assert.Contains(t, link, "X-Amz-Expires=60")
	assert.Contains(t, link, "response-content-disposition=")
}

func TestWrapS3Error(t *testing.T) {
	t.Parallel()

	nsk := &smithy.GenericAPIError{Code: "NoSuchKey", Message: "gone"}
	assert.ErrorIs(t, wrapS3Error(nsk, ErrUploadFailed), ErrNotFound)

	denied := &smithy.GenericAPIError{Code: "AccessDenied"}
	assert.ErrorIs(t, wrapS3Error(denied, ErrUploadFailed), ErrAccessDenied)

	other := errors.New("socket closed")
	err := wrapS3Error(other, ErrCopyFailed)
	assert.ErrorIs(t, err, ErrCopyFailed)
	assert.NotErrorIs(t, err, other)
	assert.Contains(t, err.Error(), "socket closed")
}
