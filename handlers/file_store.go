package handlers

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"cloud.google.com/go/storage"
)

// FileStore is the document storage collaborator: local disk in development,
// Google Cloud Storage in production.
type FileStore interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

var fileStore FileStore

// getFileStore selects the storage backend from the environment.
// USE_GCS/K_SERVICE indicate a cloud deployment.
func getFileStore() FileStore {
	if fileStore != nil {
		return fileStore
	}

	useGCS := os.Getenv("USE_GCS") == "true" ||
		os.Getenv("K_SERVICE") != "" // Cloud Run indicator
	if useGCS {
		store, err := NewGCSStore(context.Background(), os.Getenv("GCS_BUCKET"))
		if err == nil {
			fileStore = store
			return fileStore
		}
		// fall through to local storage if GCS is unavailable
	}

	dir := os.Getenv("STORAGE_PATH")
	if dir == "" {
		dir = "./uploads"
	}
	fileStore = &LocalStore{Dir: dir}
	return fileStore
}

// LocalStore keeps uploads on the local filesystem
type LocalStore struct {
	Dir string
}

// Save writes the upload under a timestamped name to avoid collisions
func (s *LocalStore) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	timestamp := time.Now().Format("20060102-150405")
	filename := fmt.Sprintf("%s-%s", timestamp, filepath.Base(name))
	path := filepath.Join(s.Dir, filename)

	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, r); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	return path, nil
}

// Open returns a reader over a stored file
func (s *LocalStore) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	return os.Open(path)
}

// GCSStore keeps uploads in a Google Cloud Storage bucket
type GCSStore struct {
	client *storage.Client
	bucket string
}

// NewGCSStore creates the GCS client for the given bucket
func NewGCSStore(ctx context.Context, bucket string) (*GCSStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("GCS_BUCKET not set")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return &GCSStore{client: client, bucket: bucket}, nil
}

// Save streams the upload into the bucket under a timestamped object key
func (s *GCSStore) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	key := fmt.Sprintf("tenders/%s-%s", time.Now().Format("20060102-150405"), filepath.Base(name))

	wc := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	if _, err := io.Copy(wc, r); err != nil {
		wc.Close()
		return "", fmt.Errorf("failed to upload to GCS: %w", err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize GCS upload: %w", err)
	}

	return key, nil
}

// Open returns a reader over a stored object
func (s *GCSStore) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	return s.client.Bucket(s.bucket).Object(path).NewReader(ctx)
}
