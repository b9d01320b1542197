package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/azcosmos"
	"github.com/ethpandaops/indexseed/pkg/config"
	"github.com/sirupsen/logrus"
)

// cosmosDatabase implements Database for Azure Cosmos DB (NoSQL API).
// Collections are Cosmos containers.
type cosmosDatabase struct {
	log      logrus.FieldLogger
	database *azcosmos.DatabaseClient
}

// Compile-time interface checks.
var (
	_ Database   = (*cosmosDatabase)(nil)
	_ Collection = (*cosmosCollection)(nil)
)

// NewCosmosDatabase creates a Database for cfg.Database on the account at
// cfg.Endpoint. No request is made until a collection is used.
func NewCosmosDatabase(
	log logrus.FieldLogger,
	cfg *config.CosmosConfig,
	cred azcore.TokenCredential,
) (Database, error) {
	client, err := azcosmos.NewClient(cfg.Endpoint, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("creating cosmos client: %w", err)
	}

	database, err := client.NewDatabase(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("opening cosmos database %s: %w", cfg.Database, err)
	}

	return &cosmosDatabase{
		log:      log.WithField("component", "cosmos-docstore"),
		database: database,
	}, nil
}

func (d *cosmosDatabase) Kind() string {
	return config.DatabaseDriverCosmos
}

// Collection reads the container's properties to confirm it exists.
func (d *cosmosDatabase) Collection(ctx context.Context, name string) (Collection, error) {
	container, err := d.database.NewContainer(name)
	if err != nil {
		return nil, fmt.Errorf("opening container %s: %w", name, err)
	}

	if _, err := container.Read(ctx, nil); err != nil {
		return nil, fmt.Errorf("reading container %s: %w", name, translateCosmosError(err))
	}

	return &cosmosCollection{name: name, container: container}, nil
}

// CreateCollection creates a container partitioned on partitionKeyPath.
func (d *cosmosDatabase) CreateCollection(
	ctx context.Context, name, partitionKeyPath string,
) error {
	props := azcosmos.ContainerProperties{
		ID: name,
		PartitionKeyDefinition: azcosmos.PartitionKeyDefinition{
			Paths: []string{partitionKeyPath},
		},
	}

	if _, err := d.database.CreateContainer(ctx, props, nil); err != nil {
		return fmt.Errorf("creating container %s: %w", name, translateCosmosError(err))
	}

	d.log.WithField("container", name).Info("Container created")

	return nil
}

// Close is a no-op; the cosmos client holds no dedicated connection.
func (d *cosmosDatabase) Close() error {
	return nil
}

// cosmosCollection partitions every document by its id.
type cosmosCollection struct {
	name      string
	container *azcosmos.ContainerClient
}

func (c *cosmosCollection) Name() string {
	return c.name
}

func (c *cosmosCollection) Upsert(ctx context.Context, id string, doc any) error {
	body, err := encodeDocument(id, doc)
	if err != nil {
		return err
	}

	pk := azcosmos.NewPartitionKeyString(id)

	if _, err := c.container.UpsertItem(ctx, pk, body, nil); err != nil {
		return fmt.Errorf("upserting %s into %s: %w", id, c.name, translateCosmosError(err))
	}

	return nil
}

func (c *cosmosCollection) Create(ctx context.Context, id string, doc any) error {
	body, err := encodeDocument(id, doc)
	if err != nil {
		return err
	}

	pk := azcosmos.NewPartitionKeyString(id)

	if _, err := c.container.CreateItem(ctx, pk, body, nil); err != nil {
		return fmt.Errorf("creating %s in %s: %w", id, c.name, translateCosmosError(err))
	}

	return nil
}

func (c *cosmosCollection) Get(ctx context.Context, id string, out any) error {
	pk := azcosmos.NewPartitionKeyString(id)

	resp, err := c.container.ReadItem(ctx, pk, id, nil)
	if err != nil {
		return fmt.Errorf("reading %s from %s: %w", id, c.name, translateCosmosError(err))
	}

	if err := json.Unmarshal(resp.Value, out); err != nil {
		return fmt.Errorf("decoding %s: %w", id, err)
	}

	return nil
}

// translateCosmosError maps 404 and 409 responses onto the package sentinels.
func translateCosmosError(err error) error {
	var respErr *azcore.ResponseError
	if !errors.As(err, &respErr) {
		return err
	}

	switch respErr.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case http.StatusConflict:
		return fmt.Errorf("%w: %w", ErrConflict, err)
	default:
		return err
	}
}
