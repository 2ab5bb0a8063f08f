package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// DefaultMaxImageBytes is the upload ceiling when none is configured.
const DefaultMaxImageBytes int64 = 5 << 20

// downloadTokenKey is the object metadata key Firebase Storage checks the URL token against.
const downloadTokenKey = "firebaseStorageDownloadTokens"

var (
	// ErrUnsupportedContentType rejects uploads that are not jpeg, png, webp or gif.
	ErrUnsupportedContentType = errors.New("storage: unsupported image content type")
	// ErrImageTooLarge rejects uploads over the configured limit.
	ErrImageTooLarge = errors.New("storage: image exceeds size limit")
	// ErrEmptyImage rejects zero-byte uploads.
	ErrEmptyImage = errors.New("storage: image is empty")
)

// ObjectBackend is the subset of object storage the image store needs.
type ObjectBackend interface {
	Write(ctx context.Context, bucket, object, contentType string, metadata map[string]string, data []byte) error
	Delete(ctx context.Context, bucket, object string) error
}

// UploadedImage describes a stored product image.
type UploadedImage struct {
	URL         string
	Path        string
	ContentType string
	Size        int64
}

// ImageStore uploads and deletes product images in one bucket.
type ImageStore struct {
	backend  ObjectBackend
	bucket   string
	maxBytes int64
	now      func() time.Time
	suffix   func() string
	token    func() string
}

// ImageStoreOption customises an ImageStore.
type ImageStoreOption func(*ImageStore)

func WithMaxBytes(n int64) ImageStoreOption {
	return func(s *ImageStore) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

// WithClock overrides the time used in object names.
func WithClock(now func() time.Time) ImageStoreOption {
	return func(s *ImageStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithDownloadToken overrides the download token generator.
func WithDownloadToken(fn func() string) ImageStoreOption {
	return func(s *ImageStore) {
		if fn != nil {
			s.token = fn
		}
	}
}

// WithSuffix overrides the random part of object names.
func WithSuffix(fn func() string) ImageStoreOption {
	return func(s *ImageStore) {
		if fn != nil {
			s.suffix = fn
		}
	}
}

func NewImageStore(backend ObjectBackend, bucket string, opts ...ImageStoreOption) (*ImageStore, error) {
	if backend == nil {
		return nil, errors.New("storage: backend is required")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("storage: bucket name is required")
	}
	s := &ImageStore{
		backend:  backend,
		bucket:   strings.TrimSpace(bucket),
		maxBytes: DefaultMaxImageBytes,
		now:      time.Now,
		suffix:   randomSuffix,
		token:    uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

func (s *ImageStore) Bucket() string { return s.bucket }

// Upload validates and stores an image under the product's slug.
func (s *ImageStore) Upload(ctx context.Context, slug, contentType string, r io.Reader) (UploadedImage, error) {
	ext, ok := ExtensionFor(contentType)
	if !ok {
		return UploadedImage{}, fmt.Errorf("%w: %q", ErrUnsupportedContentType, contentType)
	}
	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return UploadedImage{}, fmt.Errorf("storage: read image: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return UploadedImage{}, ErrImageTooLarge
	}
	if len(data) == 0 {
		return UploadedImage{}, ErrEmptyImage
	}

	path, err := ProductImagePath(slug, s.now(), s.suffix(), ext)
	if err != nil {
		return UploadedImage{}, err
	}
	mediaType := normaliseContentType(contentType)
	token := s.token()
	metadata := map[string]string{downloadTokenKey: token}
	if err := s.backend.Write(ctx, s.bucket, path, mediaType, metadata, data); err != nil {
		return UploadedImage{}, fmt.Errorf("storage: upload %s: %w", path, err)
	}
	return UploadedImage{
		URL:         DownloadURL(s.bucket, path, token),
		Path:        path,
		ContentType: mediaType,
		Size:        int64(len(data)),
	}, nil
}

// Delete removes an object. Missing objects are not an error.
func (s *ImageStore) Delete(ctx context.Context, objectPath string) error {
	objectPath = strings.TrimSpace(objectPath)
	if objectPath == "" {
		return errors.New("storage: object path is required")
	}
	err := s.backend.Delete(ctx, s.bucket, objectPath)
	if err == nil || errors.Is(err, gcs.ErrObjectNotExist) {
		return nil
	}
	return fmt.Errorf("storage: delete %s: %w", objectPath, err)
}

// DeleteByURL removes the object a download URL points at.
func (s *ImageStore) DeleteByURL(ctx context.Context, rawURL string) error {
	path, err := ObjectPathFromURL(rawURL)
	if err != nil {
		return err
	}
	return s.Delete(ctx, path)
}

func randomSuffix() string {
	id := ulid.Make().String()
	return strings.ToLower(id[len(id)-8:])
}

// GCSBackend writes objects through a Cloud Storage client.
type GCSBackend struct {
	client *gcs.Client
}

func NewGCSBackend(client *gcs.Client) *GCSBackend {
	return &GCSBackend{client: client}
}

func (b *GCSBackend) Write(ctx context.Context, bucket, object, contentType string, metadata map[string]string, data []byte) error {
	w := b.client.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType
	w.Metadata = metadata
	w.CacheControl = "public, max-age=31536000"
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func (b *GCSBackend) Delete(ctx context.Context, bucket, object string) error {
	return b.client.Bucket(bucket).Object(object).Delete(ctx)
}
