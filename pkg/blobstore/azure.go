package blobstore

import (
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/ethpandaops/indexseed/pkg/config"
	"github.com/sirupsen/logrus"
)

// azureStore implements Store for Azure Blob Storage.
type azureStore struct {
	log    logrus.FieldLogger
	client *azblob.Client
}

// Ensure interface compliance.
var _ Store = (*azureStore)(nil)

// NewAzureStore creates a Store for the blob service at cfg.BlobEndpoint,
// authenticating with cred.
func NewAzureStore(
	log logrus.FieldLogger,
	cfg *config.AzureBlobConfig,
	cred azcore.TokenCredential,
) (Store, error) {
	client, err := azblob.NewClient(cfg.BlobEndpoint, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("creating blob service client: %w", err)
	}

	return &azureStore{
		log:    log.WithField("component", "azure-blobstore"),
		client: client,
	}, nil
}

func (s *azureStore) Kind() string {
	return config.StorageDriverAzure
}

// CreateContainer creates a private blob container.
func (s *azureStore) CreateContainer(ctx context.Context, name string) error {
	if _, err := s.client.CreateContainer(ctx, name, nil); err != nil {
		if bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
			return fmt.Errorf("%s: %w", name, ErrContainerExists)
		}

		return fmt.Errorf("creating container %s: %w", name, err)
	}

	s.log.WithField("container", name).Debug("Container created")

	return nil
}

// Upload streams body into a block blob.
func (s *azureStore) Upload(
	ctx context.Context,
	container, key string,
	body io.Reader,
	_ int64,
) error {
	if _, err := s.client.UploadStream(ctx, container, key, body, nil); err != nil {
		if bloberror.HasCode(err, bloberror.ContainerNotFound) {
			return fmt.Errorf("%s: %w", container, ErrContainerNotFound)
		}

		return fmt.Errorf("UploadStream: %w", err)
	}

	return nil
}
