package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaths(t *testing.T) {
	assert.Equal(t, "chapter-cache/c1/12/", ChapterCachePrefix("c1", 12))
	assert.Equal(t, "chapter-cache/c1/12.5/007.webp", CachePagePath("c1", 12.5, 7, "webp"))
	assert.Equal(t, "chapter-cache/c1/3/120.jpg", CachePagePath("c1", 3, 120, "jpg"))
	assert.Equal(t, "comics/c1/chapters/4/1.png", ArchivePagePath("c1", 4, 1, "png"))
}

func TestExtFromURL(t *testing.T) {
	tests := []struct{ in, want string }{
		{"https://cdn.test/a/001.JPG", "jpg"},
		{"https://cdn.test/a/001.webp?w=800", "webp"},
		{"https://cdn.test/a/noext", "jpg"},
		{"https://cdn.test/a/file.toolongext", "jpg"},
		{"https://cdn.test/a.png/image", "jpg"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtFromURL(tt.in), tt.in)
	}
	assert.Equal(t, "image/webp", ContentTypeFor("WEBP"))
	assert.Equal(t, "image/jpeg", ContentTypeFor("jpg"))
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore("https://cdn.example.com/")

	require.NoError(t, m.Put(ctx, "chapter-cache/c/1/001.jpg", strings.NewReader("a"), 1, "image/jpeg", CacheControlMirror))
	require.NoError(t, m.Put(ctx, "chapter-cache/c/1/002.jpg", strings.NewReader("b"), 1, "image/jpeg", CacheControlMirror))
	require.NoError(t, m.Put(ctx, "chapter-cache/c/10/001.jpg", strings.NewReader("c"), 1, "image/jpeg", CacheControlMirror))

	keys, err := m.List(ctx, ChapterCachePrefix("c", 1))
	require.NoError(t, err)
	assert.Equal(t, []string{"chapter-cache/c/1/001.jpg", "chapter-cache/c/1/002.jpg"}, keys)

	obj, ok := m.Get("chapter-cache/c/1/001.jpg")
	require.True(t, ok)
	assert.Equal(t, "public, max-age=86400", obj.CacheControl)
	assert.Equal(t, "https://cdn.example.com/chapter-cache/c/1/001.jpg", m.PublicURL("chapter-cache/c/1/001.jpg"))

	n, err := DeleteAll(ctx, m, keys)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, m.Len())
	require.NoError(t, m.Delete(ctx, "missing"))
}

func TestNewS3Store(t *testing.T) {
	_, err := NewS3Store(S3Config{Endpoint: "localhost:9000"}, nil)
	assert.Error(t, err)

	s, err := NewS3Store(S3Config{
		Endpoint:   "https://acct.r2.cloudflarestorage.com",
		Bucket:     "komik",
		AccessKey:  "ak",
		SecretKey:  "sk",
		PublicBase: "https://media.example.com/",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://media.example.com/comics/x/chapters/1/1.jpg", s.PublicURL("comics/x/chapters/1/1.jpg"))
}
