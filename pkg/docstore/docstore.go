// Package docstore is a small document database abstraction: named
// collections of JSON documents keyed by id.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/ethpandaops/indexseed/pkg/config"
	"github.com/sirupsen/logrus"
)

var (
	// ErrNotFound is returned when a collection or document does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when creating something that already exists.
	ErrConflict = errors.New("already exists")
)

// Database holds collections.
type Database interface {
	// Kind names the backend for logging.
	Kind() string

	// Collection returns a handle to an existing collection, or ErrNotFound.
	Collection(ctx context.Context, name string) (Collection, error)

	// CreateCollection creates a collection partitioned on partitionKeyPath.
	CreateCollection(ctx context.Context, name, partitionKeyPath string) error

	// Close releases the underlying connection.
	Close() error
}

// Collection stores documents. Every document must carry its id in a
// top-level "id" field.
type Collection interface {
	Name() string

	// Upsert inserts doc or replaces the document with the same id.
	Upsert(ctx context.Context, id string, doc any) error

	// Create inserts doc, failing with ErrConflict if id exists.
	Create(ctx context.Context, id string, doc any) error

	// Get decodes the document with id into out, or returns ErrNotFound.
	Get(ctx context.Context, id string, out any) error
}

// New opens the Database selected by cfg. cred is only used by the cosmos
// driver and may be nil otherwise.
func New(
	ctx context.Context,
	log logrus.FieldLogger,
	cfg *config.DatabaseConfig,
	cred azcore.TokenCredential,
) (Database, error) {
	switch cfg.Driver {
	case config.DatabaseDriverCosmos:
		if cred == nil {
			return nil, fmt.Errorf("cosmos database requires a credential")
		}

		return NewCosmosDatabase(log, &cfg.Cosmos, cred)
	case config.DatabaseDriverSQLite, config.DatabaseDriverPostgres:
		db := NewSQLDatabase(log, cfg)
		if err := db.Start(ctx); err != nil {
			return nil, err
		}

		return db, nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

// encodeDocument marshals doc and checks that its "id" field matches id.
func encodeDocument(id string, doc any) ([]byte, error) {
	if id == "" {
		return nil, fmt.Errorf("document id must not be empty")
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding document %s: %w", id, err)
	}

	var probe struct {
		ID *string `json:"id"`
	}

	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, fmt.Errorf("document %s is not a JSON object: %w", id, err)
	}

	if probe.ID == nil || *probe.ID != id {
		return nil, fmt.Errorf("document id field does not match %q", id)
	}

	return body, nil
}
