// Package blobstore creates containers in object storage and copies local
// directory trees into them.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/ethpandaops/indexseed/pkg/config"
	"github.com/sirupsen/logrus"
)

var (
	// ErrContainerExists is returned when creating a container whose name
	// is already taken.
	ErrContainerExists = errors.New("container already exists")

	// ErrContainerNotFound is returned when uploading into a missing container.
	ErrContainerNotFound = errors.New("container not found")
)

// Store is an object storage account holding named containers of objects.
type Store interface {
	// Kind names the backend for logging.
	Kind() string

	// CreateContainer creates an empty container. It fails with
	// ErrContainerExists if the name is taken.
	CreateContainer(ctx context.Context, name string) error

	// Upload writes body as the object key inside container. size is the
	// number of bytes body yields.
	Upload(ctx context.Context, container, key string, body io.Reader, size int64) error
}

// New creates the Store selected by cfg. cred is only used by the azure
// driver and may be nil otherwise.
func New(
	log logrus.FieldLogger,
	cfg *config.StorageConfig,
	cred azcore.TokenCredential,
) (Store, error) {
	switch cfg.Driver {
	case config.StorageDriverAzure:
		if cred == nil {
			return nil, fmt.Errorf("azure storage requires a credential")
		}

		return NewAzureStore(log, &cfg.Azure, cred)
	case config.StorageDriverS3:
		return NewS3Store(log, &cfg.S3), nil
	case config.StorageDriverLocal:
		return NewLocalStore(log, &cfg.Local), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
}
