// Package registry records seeded containers and their job in the document
// database read by the job tracking service.
package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethpandaops/indexseed/pkg/docstore"
	"github.com/ethpandaops/indexseed/pkg/naming"
	"github.com/sirupsen/logrus"
)

const (
	// ContainerStoreCollection lists every storage container by sanitized name.
	ContainerStoreCollection = "container-store"

	// JobsCollection holds one record per indexing job.
	JobsCollection = "jobs"

	// PartitionKeyPath partitions both collections.
	PartitionKeyPath = "/id"
)

// Recorder writes registry entries.
type Recorder struct {
	log logrus.FieldLogger
	db  docstore.Database
}

// NewRecorder creates a Recorder writing to db.
func NewRecorder(log logrus.FieldLogger, db docstore.Database) *Recorder {
	return &Recorder{
		log: log.WithField("component", "registry"),
		db:  db,
	}
}

// EnsureCollection returns the named collection, creating it when the
// lookup reports it missing. Any other lookup error is returned as is.
func (r *Recorder) EnsureCollection(ctx context.Context, name string) (docstore.Collection, error) {
	coll, err := r.db.Collection(ctx, name)
	if err == nil {
		return coll, nil
	}

	if !errors.Is(err, docstore.ErrNotFound) {
		return nil, err
	}

	r.log.WithField("collection", name).Info("Collection missing, creating")

	if err := r.db.CreateCollection(ctx, name, PartitionKeyPath); err != nil {
		return nil, err
	}

	coll, err = r.db.Collection(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("opening created collection %s: %w", name, err)
	}

	return coll, nil
}

// RecordContainers upserts the data and index container descriptors.
func (r *Recorder) RecordContainers(ctx context.Context, data, index naming.Name) error {
	coll, err := r.EnsureCollection(ctx, ContainerStoreCollection)
	if err != nil {
		return fmt.Errorf("ensuring %s: %w", ContainerStoreCollection, err)
	}

	descriptors := []ContainerDescriptor{
		NewContainerDescriptor(data, ContainerTypeData),
		NewContainerDescriptor(index, ContainerTypeIndex),
	}

	for _, d := range descriptors {
		if err := coll.Upsert(ctx, d.ID, d); err != nil {
			return fmt.Errorf("registering %s container: %w", d.Type, err)
		}

		r.log.WithFields(logrus.Fields{
			"id":   d.ID,
			"name": d.HumanReadableName,
			"type": d.Type,
		}).Debug("Container registered")
	}

	return nil
}

// RecordJob creates the completed job for index built from data. It fails
// if a job with the same id already exists.
func (r *Recorder) RecordJob(ctx context.Context, data, index naming.Name) (*JobRecord, error) {
	coll, err := r.EnsureCollection(ctx, JobsCollection)
	if err != nil {
		return nil, fmt.Errorf("ensuring %s: %w", JobsCollection, err)
	}

	job := NewCompletedJob(data, index)

	if err := coll.Create(ctx, job.ID, job); err != nil {
		return nil, fmt.Errorf("creating job: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"id":     job.ID,
		"status": job.Status,
	}).Info("Job recorded")

	return &job, nil
}
