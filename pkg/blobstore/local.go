package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethpandaops/indexseed/pkg/config"
	"github.com/sirupsen/logrus"
)

// LocalStore keeps each container as a directory under a root directory.
// Objects are files at their slash-separated key.
type LocalStore struct {
	log  logrus.FieldLogger
	root string
}

// Ensure interface compliance.
var _ Store = (*LocalStore)(nil)

// NewLocalStore creates a filesystem backed Store rooted at cfg.Root.
func NewLocalStore(log logrus.FieldLogger, cfg *config.LocalStorageConfig) *LocalStore {
	return &LocalStore{
		log:  log.WithField("component", "local-blobstore"),
		root: cfg.Root,
	}
}

func (s *LocalStore) Kind() string {
	return config.StorageDriverLocal
}

// CreateContainer creates the container directory.
func (s *LocalStore) CreateContainer(_ context.Context, name string) error {
	dir, err := s.containerDir(name)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("creating storage root: %w", err)
	}

	if err := os.Mkdir(dir, 0o755); err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%s: %w", name, ErrContainerExists)
		}

		return fmt.Errorf("creating container %s: %w", name, err)
	}

	return nil
}

// Upload writes body to the object's file, replacing any previous content.
func (s *LocalStore) Upload(
	_ context.Context,
	container, key string,
	body io.Reader,
	_ int64,
) error {
	dir, err := s.containerDir(container)
	if err != nil {
		return err
	}

	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return fmt.Errorf("%s: %w", container, ErrContainerNotFound)
	}

	target, err := s.ObjectPath(container, key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("creating object directory: %w", err)
	}

	f, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("creating object file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := io.Copy(f, body); err != nil {
		return fmt.Errorf("writing object %s: %w", key, err)
	}

	return f.Close()
}

// ObjectPath returns the file backing key in container. Keys escaping the
// container are rejected.
func (s *LocalStore) ObjectPath(container, key string) (string, error) {
	dir, err := s.containerDir(container)
	if err != nil {
		return "", err
	}

	cleaned := filepath.Clean(filepath.FromSlash(key))
	if cleaned == "." || filepath.IsAbs(cleaned) ||
		cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid object key %q", key)
	}

	return filepath.Join(dir, cleaned), nil
}

func (s *LocalStore) containerDir(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid container name %q", name)
	}

	return filepath.Join(s.root, name), nil
}
