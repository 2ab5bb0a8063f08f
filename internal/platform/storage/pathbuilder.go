package storage

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

const downloadBase = "https://firebasestorage.googleapis.com/v0/b/"

var (
	// ErrInvalidImageURL is returned when a URL does not point at a stored object.
	ErrInvalidImageURL = errors.New("storage: url does not reference a stored object")

	objectPathPattern = regexp.MustCompile(`/o/(.+?)\?`)

	extensions = map[string]string{
		"image/jpeg": "jpg",
		"image/png":  "png",
		"image/webp": "webp",
		"image/gif":  "gif",
	}
)

// ExtensionFor returns the file extension for an accepted image content type.
func ExtensionFor(contentType string) (string, bool) {
	ext, ok := extensions[normaliseContentType(contentType)]
	return ext, ok
}

// ProductImagePath builds products/{slug}/{unixMillis}-{suffix}.{ext}.
func ProductImagePath(slug string, now time.Time, suffix, ext string) (string, error) {
	slug = strings.Trim(strings.TrimSpace(slug), "/")
	if slug == "" || strings.Contains(slug, "/") {
		return "", fmt.Errorf("storage: invalid product slug %q", slug)
	}
	if ext == "" {
		return "", errors.New("storage: extension is required")
	}
	return fmt.Sprintf("products/%s/%d-%s.%s", slug, now.UnixMilli(), suffix, ext), nil
}

// DownloadURL is the Firebase download URL for an object. A non-empty token must match the
// object's download token metadata.
func DownloadURL(bucket, objectPath, token string) string {
	u := downloadBase + bucket + "/o/" + url.PathEscape(objectPath) + "?alt=media"
	if token != "" {
		u += "&token=" + url.QueryEscape(token)
	}
	return u
}

// ObjectPathFromURL extracts and unescapes the object path of a download URL.
func ObjectPathFromURL(rawURL string) (string, error) {
	match := objectPathPattern.FindStringSubmatch(rawURL)
	if len(match) != 2 {
		return "", ErrInvalidImageURL
	}
	path, err := url.PathUnescape(match[1])
	if err != nil || path == "" {
		return "", ErrInvalidImageURL
	}
	return path, nil
}

func normaliseContentType(contentType string) string {
	mediaType, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(mediaType))
}
