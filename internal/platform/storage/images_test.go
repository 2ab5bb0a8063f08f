package storage

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	gcs "cloud.google.com/go/storage"
)

type memoryBackend struct {
	objects  map[string][]byte
	types    map[string]string
	metadata map[string]map[string]string
	err      error
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{objects: map[string][]byte{}, types: map[string]string{}, metadata: map[string]map[string]string{}}
}

func (m *memoryBackend) Write(_ context.Context, bucket, object, contentType string, metadata map[string]string, data []byte) error {
	if m.err != nil {
		return m.err
	}
	m.objects[bucket+"/"+object] = data
	m.types[bucket+"/"+object] = contentType
	m.metadata[bucket+"/"+object] = metadata
	return nil
}

func (m *memoryBackend) Delete(_ context.Context, bucket, object string) error {
	key := bucket + "/" + object
	if _, ok := m.objects[key]; !ok {
		return gcs.ErrObjectNotExist
	}
	delete(m.objects, key)
	return nil
}

func newTestStore(t *testing.T, backend *memoryBackend, opts ...ImageStoreOption) *ImageStore {
	t.Helper()
	opts = append([]ImageStoreOption{
		WithClock(func() time.Time { return time.UnixMilli(1700000000000) }),
		WithSuffix(func() string { return "abc123" }),
		WithDownloadToken(func() string { return "tok-1" }),
	}, opts...)
	store, err := NewImageStore(backend, "catmat.appspot.com", opts...)
	if err != nil {
		t.Fatalf("NewImageStore: %v", err)
	}
	return store
}

func TestUploadStoresImage(t *testing.T) {
	backend := newMemoryBackend()
	store := newTestStore(t, backend)

	img, err := store.Upload(context.Background(), "cozy-mat", "image/png; charset=binary", strings.NewReader("png-bytes"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if img.Path != "products/cozy-mat/1700000000000-abc123.png" {
		t.Fatalf("unexpected path %s", img.Path)
	}
	want := "https://firebasestorage.googleapis.com/v0/b/catmat.appspot.com/o/products%2Fcozy-mat%2F1700000000000-abc123.png?alt=media&token=tok-1"
	if img.URL != want {
		t.Fatalf("unexpected url %s", img.URL)
	}
	if backend.types["catmat.appspot.com/"+img.Path] != "image/png" {
		t.Fatalf("expected normalised content type, got %v", backend.types)
	}
	if got := backend.metadata["catmat.appspot.com/"+img.Path][downloadTokenKey]; got != "tok-1" {
		t.Fatalf("expected download token in object metadata, got %q", got)
	}
}

func TestUploadRejectsNonImages(t *testing.T) {
	store := newTestStore(t, newMemoryBackend())
	_, err := store.Upload(context.Background(), "cozy-mat", "application/pdf", strings.NewReader("%PDF"))
	if !errors.Is(err, ErrUnsupportedContentType) {
		t.Fatalf("expected ErrUnsupportedContentType, got %v", err)
	}
}

func TestUploadRejectsOversizedFiles(t *testing.T) {
	store := newTestStore(t, newMemoryBackend())

	exact := bytes.Repeat([]byte{1}, int(DefaultMaxImageBytes))
	if _, err := store.Upload(context.Background(), "cozy-mat", "image/jpeg", bytes.NewReader(exact)); err != nil {
		t.Fatalf("expected 5 MiB upload to pass, got %v", err)
	}

	over := append(exact, 1)
	if _, err := store.Upload(context.Background(), "cozy-mat", "image/jpeg", bytes.NewReader(over)); !errors.Is(err, ErrImageTooLarge) {
		t.Fatalf("expected ErrImageTooLarge, got %v", err)
	}
}

func TestObjectPathFromURL(t *testing.T) {
	path, err := ObjectPathFromURL("https://firebasestorage.googleapis.com/v0/b/bucket/o/products%2Fa%20b%2Fx.png?alt=media")
	if err != nil {
		t.Fatalf("ObjectPathFromURL: %v", err)
	}
	if path != "products/a b/x.png" {
		t.Fatalf("unexpected path %q", path)
	}

	path, err = ObjectPathFromURL(DownloadURL("bucket", "products/mat/1.png", "tok"))
	if err != nil || path != "products/mat/1.png" {
		t.Fatalf("expected tokenised url to resolve, got %q, %v", path, err)
	}

	if _, err := ObjectPathFromURL("https://example.com/cat.png"); !errors.Is(err, ErrInvalidImageURL) {
		t.Fatalf("expected ErrInvalidImageURL, got %v", err)
	}
}

func TestDeleteByURLIgnoresMissingObjects(t *testing.T) {
	backend := newMemoryBackend()
	store := newTestStore(t, backend)

	img, err := store.Upload(context.Background(), "cozy-mat", "image/webp", strings.NewReader("webp"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if err := store.DeleteByURL(context.Background(), img.URL); err != nil {
		t.Fatalf("DeleteByURL: %v", err)
	}
	if len(backend.objects) != 0 {
		t.Fatalf("expected object removed, got %v", backend.objects)
	}
	if err := store.DeleteByURL(context.Background(), img.URL); err != nil {
		t.Fatalf("expected second delete to be a no-op, got %v", err)
	}
}

func TestProductImagePathRejectsNestedSlug(t *testing.T) {
	if _, err := ProductImagePath("a/b", time.Now(), "x", "png"); err == nil {
		t.Fatal("expected nested slug to be rejected")
	}
}
