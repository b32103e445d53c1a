package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// markerObject is written by Ensure so an empty namespace still exists.
const markerObject = ".namespace"

// GCSStore keeps artifacts in a bucket under "{namespace}/" prefixes.
type GCSStore struct {
	client *gcs.Client
	bucket string
}

// NewGCSStore creates a GCS backed store. An empty credentials path falls back
// to application default credentials.
func NewGCSStore(ctx context.Context, bucket, credentialsPath string) (*GCSStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs bucket name is required")
	}
	var opts []option.ClientOption
	if credentialsPath != "" {
		if _, err := os.Stat(credentialsPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("service account key not found at path: %s", credentialsPath)
		}
		opts = append(opts, option.WithCredentialsFile(credentialsPath))
	}
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}
	return &GCSStore{client: client, bucket: bucket}, nil
}

// Close releases the underlying client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

func prefix(namespace string) string {
	return strings.TrimSuffix(namespace, "/") + "/"
}

func (s *GCSStore) Exists(ctx context.Context, namespace string) (bool, error) {
	it := s.client.Bucket(s.bucket).Objects(ctx, &gcs.Query{Prefix: prefix(namespace)})
	_, err := it.Next()
	if errors.Is(err, iterator.Done) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to probe gs://%s/%s: %w", s.bucket, namespace, err)
	}
	return true, nil
}

func (s *GCSStore) Ensure(ctx context.Context, namespace string) error {
	ok, err := s.Exists(ctx, namespace)
	if err != nil || ok {
		return err
	}
	return s.Put(ctx, namespace, markerObject, nil)
}

func (s *GCSStore) List(ctx context.Context, namespace, pattern string) ([]string, error) {
	p := prefix(namespace)
	it := s.client.Bucket(s.bucket).Objects(ctx, &gcs.Query{Prefix: p})

	var paths []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list gs://%s/%s: %w", s.bucket, p, err)
		}
		rel := strings.TrimPrefix(attrs.Name, p)
		if rel == markerObject {
			continue
		}
		paths = append(paths, rel)
	}
	if len(paths) == 0 {
		ok, err := s.Exists(ctx, namespace)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("namespace %s: %w", namespace, ErrNotFound)
		}
	}
	return filterSorted(paths, pattern), nil
}

func (s *GCSStore) Get(ctx context.Context, namespace, path string) ([]byte, error) {
	r, err := s.client.Bucket(s.bucket).Object(prefix(namespace) + path).NewReader(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, fmt.Errorf("%s/%s: %w", namespace, path, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open gs://%s/%s%s: %w", s.bucket, prefix(namespace), path, err)
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (s *GCSStore) Put(ctx context.Context, namespace, path string, data []byte) error {
	name := prefix(namespace) + path
	w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	w.CacheControl = "no-cache, no-store, must-revalidate"
	if strings.HasSuffix(path, ".json") {
		w.ContentType = "application/json"
	}

	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("failed to write gs://%s/%s: %w", s.bucket, name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer for %s: %w", name, err)
	}
	return nil
}
