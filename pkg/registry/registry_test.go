package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/indexseed/pkg/config"
	"github.com/ethpandaops/indexseed/pkg/docstore"
	"github.com/ethpandaops/indexseed/pkg/naming"
)

func newTestLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	return log
}

func setupTestDatabase(t *testing.T) docstore.Database {
	t.Helper()

	db, err := docstore.New(context.Background(), newTestLogger(), &config.DatabaseConfig{
		Driver: config.DatabaseDriverSQLite,
		SQLite: config.SQLiteConfig{Path: ":memory:"},
	}, nil)
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })

	return db
}

var (
	testData = naming.Name{
		HumanReadable: "eval-data-0f8fad5b-d9cb-469f-a165-70867728950e",
		Sanitized:     "5a1c0dd2f0a34d7b8c6f9e1b2d3c4a5f",
	}
	testIndex = naming.Name{
		HumanReadable: "eval-idx-7c9e6679-7425-40de-944b-e07fc1f90ae7",
		Sanitized:     "9b8a7c6d5e4f30211203f4e5d6c7b8a9",
	}
)

func TestWorkflowTables(t *testing.T) {
	assert.Len(t, AllWorkflows, 16)
	assert.ElementsMatch(t, AllWorkflows, CompletedWorkflows)

	seen := make(map[string]struct{}, len(AllWorkflows))
	for _, w := range AllWorkflows {
		_, dup := seen[w]
		assert.False(t, dup, w)

		seen[w] = struct{}{}
	}
}

func TestNewCompletedJob(t *testing.T) {
	job := NewCompletedJob(testData, testIndex)

	assert.Equal(t, testIndex.Sanitized, job.ID)
	assert.Equal(t, testIndex.Sanitized, job.SanitizedIndexName)
	assert.Equal(t, testIndex.HumanReadable, job.HumanReadableIndexName)
	assert.Equal(t, testData.Sanitized, job.SanitizedStorageName)
	assert.Equal(t, testData.HumanReadable, job.HumanReadableStorageName)
	assert.Equal(t, AllWorkflows, job.AllWorkflows)
	assert.Equal(t, CompletedWorkflows, job.CompletedWorkflows)
	assert.NotNil(t, job.FailedWorkflows)
	assert.Empty(t, job.FailedWorkflows)
	assert.Equal(t, JobStatusComplete, job.Status)
	assert.Equal(t, 100, job.PercentComplete)
	assert.Equal(t, "16 out of 16 workflows completed successfully.", job.Progress)
	assert.Equal(t, UnknownPrompt, job.EntityExtractionPrompt)
	assert.Equal(t, UnknownPrompt, job.CommunityReportPrompt)
	assert.Equal(t, UnknownPrompt, job.SummarizeDescriptionsPrompt)

	// The record owns its slices.
	job.AllWorkflows[0] = "mutated"
	assert.Equal(t, "create_base_text_units", AllWorkflows[0])
}

func TestRecorder_EnsureCollectionCreatesOnce(t *testing.T) {
	db := setupTestDatabase(t)
	r := NewRecorder(newTestLogger(), db)
	ctx := context.Background()

	coll, err := r.EnsureCollection(ctx, JobsCollection)
	require.NoError(t, err)
	assert.Equal(t, JobsCollection, coll.Name())

	// Second call finds the existing collection instead of creating it.
	coll, err = r.EnsureCollection(ctx, JobsCollection)
	require.NoError(t, err)
	assert.Equal(t, JobsCollection, coll.Name())
}

func TestRecorder_RecordContainers(t *testing.T) {
	db := setupTestDatabase(t)
	r := NewRecorder(newTestLogger(), db)
	ctx := context.Background()

	require.NoError(t, r.RecordContainers(ctx, testData, testIndex))

	// Upserts are repeatable.
	require.NoError(t, r.RecordContainers(ctx, testData, testIndex))

	coll, err := db.Collection(ctx, ContainerStoreCollection)
	require.NoError(t, err)

	var data ContainerDescriptor
	require.NoError(t, coll.Get(ctx, testData.Sanitized, &data))
	assert.Equal(t, ContainerDescriptor{
		ID:                testData.Sanitized,
		HumanReadableName: testData.HumanReadable,
		Type:              ContainerTypeData,
	}, data)

	var index ContainerDescriptor
	require.NoError(t, coll.Get(ctx, testIndex.Sanitized, &index))
	assert.Equal(t, ContainerTypeIndex, index.Type)
	assert.Equal(t, testIndex.HumanReadable, index.HumanReadableName)
}

func TestRecorder_RecordJob(t *testing.T) {
	db := setupTestDatabase(t)
	r := NewRecorder(newTestLogger(), db)
	ctx := context.Background()

	job, err := r.RecordJob(ctx, testData, testIndex)
	require.NoError(t, err)
	assert.Equal(t, testIndex.Sanitized, job.ID)

	coll, err := db.Collection(ctx, JobsCollection)
	require.NoError(t, err)

	var stored JobRecord
	require.NoError(t, coll.Get(ctx, testIndex.Sanitized, &stored))
	assert.Equal(t, *job, stored)

	// Jobs are created, never overwritten.
	_, err = r.RecordJob(ctx, testData, testIndex)
	require.ErrorIs(t, err, docstore.ErrConflict)
}

// failingDatabase fails every collection lookup with err.
type failingDatabase struct {
	err     error
	created []string
}

func (f *failingDatabase) Kind() string { return "failing" }

func (f *failingDatabase) Collection(context.Context, string) (docstore.Collection, error) {
	return nil, f.err
}

func (f *failingDatabase) CreateCollection(_ context.Context, name, _ string) error {
	f.created = append(f.created, name)

	return nil
}

func (f *failingDatabase) Close() error { return nil }

func TestRecorder_EnsureCollectionPropagatesOtherErrors(t *testing.T) {
	boom := errors.New("forbidden")
	db := &failingDatabase{err: boom}
	r := NewRecorder(newTestLogger(), db)

	_, err := r.EnsureCollection(context.Background(), JobsCollection)
	require.ErrorIs(t, err, boom)
	assert.Empty(t, db.created)
}

func TestRecorder_EnsureCollectionFailsWhenStillMissing(t *testing.T) {
	db := &failingDatabase{err: docstore.ErrNotFound}
	r := NewRecorder(newTestLogger(), db)

	_, err := r.EnsureCollection(context.Background(), JobsCollection)
	require.ErrorIs(t, err, docstore.ErrNotFound)
	assert.Equal(t, []string{JobsCollection}, db.created)
}
