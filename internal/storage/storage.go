// Package storage is the object store the mirror and archive trees live in,
// plus the path conventions for both trees.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/brogergvhs/mangamirror/internal/chapters"
)

const (
	CacheControlMirror  = "public, max-age=86400"
	CacheControlArchive = "public, max-age=31536000"

	mirrorRoot  = "chapter-cache"
	archiveRoot = "comics"
)

type ObjectStore interface {
	// Put stores r under key. size may be -1 when unknown.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType, cacheControl string) error
	List(ctx context.Context, prefix string) ([]string, error)
	// Delete of a missing key is not an error.
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
}

// BulkDeleter is implemented by stores that can remove many keys in one
// round trip.
type BulkDeleter interface {
	DeleteMany(ctx context.Context, keys []string) (int, error)
}

// DeleteAll removes keys, in bulk when the store supports it, and returns
// how many were removed.
func DeleteAll(ctx context.Context, s ObjectStore, keys []string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	if bd, ok := s.(BulkDeleter); ok {
		return bd.DeleteMany(ctx, keys)
	}

	n := 0
	for _, k := range keys {
		if err := s.Delete(ctx, k); err != nil {
			return n, fmt.Errorf("delete %s: %w", k, err)
		}
		n++
	}

	return n, nil
}

// ChapterCachePrefix is the folder holding every mirrored page of a chapter.
func ChapterCachePrefix(comicID string, chapterNumber float64) string {
	return fmt.Sprintf("%s/%s/%s/", mirrorRoot, comicID, chapters.FormatNumber(chapterNumber))
}

// CachePagePath is chapter-cache/{comic}/{chapter}/{page:03d}.{ext}.
func CachePagePath(comicID string, chapterNumber float64, page int, ext string) string {
	return fmt.Sprintf("%s%03d.%s", ChapterCachePrefix(comicID, chapterNumber), page, ext)
}

// ArchivePagePath is comics/{comic}/chapters/{chapter}/{page}.{ext}; these
// objects never expire.
func ArchivePagePath(comicID string, chapterNumber float64, page int, ext string) string {
	return fmt.Sprintf("%s/%s/chapters/%s/%d.%s", archiveRoot, comicID, chapters.FormatNumber(chapterNumber), page, ext)
}

// ArchiveInfoPath is the metadata page stored next to an archived chapter.
func ArchiveInfoPath(comicID string, chapterNumber float64) string {
	return fmt.Sprintf("%s/%s/chapters/%s/info.html", archiveRoot, comicID, chapters.FormatNumber(chapterNumber))
}

var reExt = regexp.MustCompile(`^[a-z0-9]{1,5}$`)

// ExtFromURL returns the lowercased extension of the URL path, or "jpg" when
// there is none usable.
func ExtFromURL(raw string) string {
	p := raw
	if u, err := url.Parse(raw); err == nil {
		p = u.Path
	}

	ext := strings.ToLower(strings.TrimPrefix(path.Ext(p), "."))
	if !reExt.MatchString(ext) {
		return "jpg"
	}

	return ext
}

// ContentTypeFor maps an image extension to its MIME type.
func ContentTypeFor(ext string) string {
	switch strings.ToLower(ext) {
	case "png":
		return "image/png"
	case "webp":
		return "image/webp"
	case "gif":
		return "image/gif"
	case "avif":
		return "image/avif"
	default:
		return "image/jpeg"
	}
}
