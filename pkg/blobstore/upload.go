package blobstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/docker/go-units"
	"github.com/sirupsen/logrus"
)

// UploadResult summarizes one directory upload.
type UploadResult struct {
	Container string `yaml:"container"`
	Files     int    `yaml:"files"`
	Bytes     int64  `yaml:"bytes"`
}

// UploadDir walks localDir and uploads every file into container, keyed by
// its slash-separated path relative to localDir. Files are sent one at a time
// and the walk stops at the first failure.
func UploadDir(
	ctx context.Context,
	log logrus.FieldLogger,
	store Store,
	container, localDir string,
) (*UploadResult, error) {
	log = log.WithFields(logrus.Fields{
		"component": "uploader",
		"container": container,
		"backend":   store.Kind(),
	})

	result := &UploadResult{Container: container}

	root, err := filepath.EvalSymlinks(localDir)
	if err != nil {
		return nil, fmt.Errorf("resolving directory %s: %w", localDir, err)
	}

	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			return nil
		}

		if info.Mode()&os.ModeSymlink != 0 {
			target, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("resolving symlink %s: %w", path, err)
			}

			info = target
		}

		if !info.Mode().IsRegular() {
			log.WithField("path", path).Debug("Skipping non-regular file")

			return nil
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("computing relative path: %w", err)
		}

		key := filepath.ToSlash(relPath)

		n, err := uploadFile(ctx, log, store, container, path, key)
		if err != nil {
			return fmt.Errorf("uploading %s: %w", relPath, err)
		}

		result.Files++
		result.Bytes += n

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory %s: %w", localDir, err)
	}

	log.WithFields(logrus.Fields{
		"files": result.Files,
		"size":  units.HumanSize(float64(result.Bytes)),
		"dir":   localDir,
	}).Info("Upload completed")

	return result, nil
}

// uploadFile sends a single file. The file is closed before returning.
func uploadFile(
	ctx context.Context,
	log logrus.FieldLogger,
	store Store,
	container, localPath, key string,
) (int64, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return 0, fmt.Errorf("opening file: %w", err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat file: %w", err)
	}

	log.WithFields(logrus.Fields{
		"key":  key,
		"size": units.HumanSize(float64(info.Size())),
	}).Debug("Uploading file")

	if err := store.Upload(ctx, container, key, f, info.Size()); err != nil {
		return 0, err
	}

	return info.Size(), nil
}
