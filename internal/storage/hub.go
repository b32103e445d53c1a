package storage

import (
	"context"
	"errors"
	"fmt"

	"llmperf/internal/api"
)

// HubStore keeps artifacts in Hugging Face dataset repositories, one
// repository per namespace.
type HubStore struct {
	client *api.Client
}

// NewHubStore wraps a hub client.
func NewHubStore(client *api.Client) *HubStore {
	return &HubStore{client: client}
}

func (s *HubStore) Exists(ctx context.Context, namespace string) (bool, error) {
	return s.client.RepoExists(ctx, namespace)
}

func (s *HubStore) Ensure(ctx context.Context, namespace string) error {
	return s.client.CreateRepo(ctx, namespace)
}

func (s *HubStore) List(ctx context.Context, namespace, pattern string) ([]string, error) {
	files, err := s.client.ListFiles(ctx, namespace)
	if errors.Is(err, api.ErrRepoNotFound) {
		return nil, fmt.Errorf("namespace %s: %w", namespace, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return filterSorted(files, pattern), nil
}

func (s *HubStore) Get(ctx context.Context, namespace, path string) ([]byte, error) {
	data, err := s.client.Download(ctx, namespace, path)
	if errors.Is(err, api.ErrFileNotFound) || errors.Is(err, api.ErrRepoNotFound) {
		return nil, fmt.Errorf("%s/%s: %w", namespace, path, ErrNotFound)
	}
	return data, err
}

func (s *HubStore) Put(ctx context.Context, namespace, path string, data []byte) error {
	return s.client.UploadFile(ctx, namespace, path, data, "Upload "+path)
}
