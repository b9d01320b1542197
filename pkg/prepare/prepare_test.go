package prepare

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ethpandaops/indexseed/pkg/blobstore"
	"github.com/ethpandaops/indexseed/pkg/config"
	"github.com/ethpandaops/indexseed/pkg/docstore"
	"github.com/ethpandaops/indexseed/pkg/naming"
	"github.com/ethpandaops/indexseed/pkg/registry"
)

type testEnv struct {
	blobs *blobstore.LocalStore
	root  string
	db    docstore.Database
	out   *bytes.Buffer
	log   logrus.FieldLogger
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	root := filepath.Join(t.TempDir(), "blobs")

	db, err := docstore.New(context.Background(), log, &config.DatabaseConfig{
		Driver: config.DatabaseDriverSQLite,
		SQLite: config.SQLiteConfig{Path: ":memory:"},
	}, nil)
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })

	return &testEnv{
		blobs: blobstore.NewLocalStore(log, &config.LocalStorageConfig{Root: root}),
		root:  root,
		db:    db,
		out:   &bytes.Buffer{},
		log:   log,
	}
}

func (e *testEnv) preparer(store blobstore.Store) *Preparer {
	if store == nil {
		store = e.blobs
	}

	return New(e.log, store, e.db, naming.NewGenerator(), e.out)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func setupDirs(t *testing.T) (string, string) {
	t.Helper()

	base := t.TempDir()
	dataDir := filepath.Join(base, "data")
	indexDir := filepath.Join(base, "index")

	writeFile(t, filepath.Join(dataDir, "a.txt"), "alpha")
	writeFile(t, filepath.Join(dataDir, "b", "c.txt"), "charlie")
	writeFile(t, filepath.Join(indexDir, "index.bin"), "\x00\x01\x02\x03")

	return dataDir, indexDir
}

func TestRun_EndToEnd(t *testing.T) {
	env := setupTestEnv(t)
	dataDir, indexDir := setupDirs(t)
	ctx := context.Background()

	summary, err := env.preparer(nil).Run(ctx, Request{
		DataDir:  dataDir,
		IndexDir: indexDir,
		Prefix:   "eval",
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(summary.Data.HumanReadable, "eval-data-"))
	assert.True(t, strings.HasPrefix(summary.Index.HumanReadable, "eval-idx-"))
	assert.Equal(t, naming.HashSanitizer{}.Sanitize(summary.Data.HumanReadable), summary.Data.Sanitized)
	assert.Equal(t, naming.HashSanitizer{}.Sanitize(summary.Index.HumanReadable), summary.Index.Sanitized)

	// Objects land under their relative paths with identical bytes.
	expected := map[string]map[string]string{
		summary.Data.Sanitized: {
			"a.txt":   "alpha",
			"b/c.txt": "charlie",
		},
		summary.Index.Sanitized: {
			"index.bin": "\x00\x01\x02\x03",
		},
	}

	for container, objects := range expected {
		for key, content := range objects {
			path, err := env.blobs.ObjectPath(container, key)
			require.NoError(t, err)

			got, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, content, string(got), "%s/%s", container, key)
		}
	}

	assert.Equal(t, 2, summary.DataUpload.Files)
	assert.Equal(t, 1, summary.IndexUpload.Files)

	// One registry entry per container.
	store, err := env.db.Collection(ctx, registry.ContainerStoreCollection)
	require.NoError(t, err)

	var dataDesc registry.ContainerDescriptor
	require.NoError(t, store.Get(ctx, summary.Data.Sanitized, &dataDesc))
	assert.Equal(t, registry.ContainerTypeData, dataDesc.Type)
	assert.Equal(t, summary.Data.HumanReadable, dataDesc.HumanReadableName)

	var indexDesc registry.ContainerDescriptor
	require.NoError(t, store.Get(ctx, summary.Index.Sanitized, &indexDesc))
	assert.Equal(t, registry.ContainerTypeIndex, indexDesc.Type)

	// One completed job keyed by the index container.
	jobs, err := env.db.Collection(ctx, registry.JobsCollection)
	require.NoError(t, err)

	var job registry.JobRecord
	require.NoError(t, jobs.Get(ctx, summary.Index.Sanitized, &job))
	assert.Len(t, job.AllWorkflows, 16)
	assert.Equal(t, "complete", job.Status)
	assert.Equal(t, summary.Data.Sanitized, job.SanitizedStorageName)
	assert.Equal(t, summary.JobID, job.ID)

	out := env.out.String()
	assert.Contains(t, out,
		"Data uploaded to container: "+summary.Data.HumanReadable+" - "+summary.Data.Sanitized)
	assert.Contains(t, out,
		"Index uploaded to container: "+summary.Index.HumanReadable+" - "+summary.Index.Sanitized)
}

func TestRun_TwiceWithSamePrefixIsDistinct(t *testing.T) {
	env := setupTestEnv(t)
	dataDir, indexDir := setupDirs(t)
	ctx := context.Background()
	req := Request{DataDir: dataDir, IndexDir: indexDir, Prefix: "eval"}

	first, err := env.preparer(nil).Run(ctx, req)
	require.NoError(t, err)

	second, err := env.preparer(nil).Run(ctx, req)
	require.NoError(t, err)

	assert.NotEqual(t, first.Data.Sanitized, second.Data.Sanitized)
	assert.NotEqual(t, first.Index.Sanitized, second.Index.Sanitized)
	assert.NotEqual(t, first.JobID, second.JobID)

	jobs, err := env.db.Collection(ctx, registry.JobsCollection)
	require.NoError(t, err)

	var job registry.JobRecord
	require.NoError(t, jobs.Get(ctx, first.JobID, &job))
	require.NoError(t, jobs.Get(ctx, second.JobID, &job))
}

// countingStore wraps a Store, counts calls and can fail container creation.
type countingStore struct {
	blobstore.Store
	creates   int
	uploads   int
	createErr error
}

func (c *countingStore) CreateContainer(ctx context.Context, name string) error {
	c.creates++
	if c.createErr != nil {
		return c.createErr
	}

	return c.Store.CreateContainer(ctx, name)
}

func (c *countingStore) Upload(
	ctx context.Context, container, key string, body io.Reader, size int64,
) error {
	c.uploads++

	return c.Store.Upload(ctx, container, key, body, size)
}

func TestRun_DataContainerFailure(t *testing.T) {
	env := setupTestEnv(t)
	dataDir, indexDir := setupDirs(t)
	ctx := context.Background()

	store := &countingStore{Store: env.blobs, createErr: errors.New("403 forbidden")}

	_, err := env.preparer(store).Run(ctx, Request{
		DataDir: dataDir, IndexDir: indexDir, Prefix: "eval",
	})
	require.ErrorIs(t, err, ErrCreateDataContainer)

	assert.Equal(t, 1, store.creates)
	assert.Zero(t, store.uploads)

	_, err = env.db.Collection(ctx, registry.JobsCollection)
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestRun_InvalidDirectoriesFailBeforeRemoteCalls(t *testing.T) {
	env := setupTestEnv(t)
	dataDir, indexDir := setupDirs(t)

	tests := []struct {
		name string
		req  Request
	}{
		{
			name: "missing data dir",
			req:  Request{DataDir: filepath.Join(dataDir, "nope"), IndexDir: indexDir, Prefix: "eval"},
		},
		{
			name: "index dir is a file",
			req:  Request{DataDir: dataDir, IndexDir: filepath.Join(indexDir, "index.bin"), Prefix: "eval"},
		},
		{
			name: "empty prefix",
			req:  Request{DataDir: dataDir, IndexDir: indexDir, Prefix: ""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &countingStore{Store: env.blobs}

			_, err := env.preparer(store).Run(context.Background(), tt.req)
			require.Error(t, err)
			assert.Zero(t, store.creates)
			assert.Zero(t, store.uploads)
		})
	}
}

func TestSummary_WriteYAML(t *testing.T) {
	s := &Summary{
		Prefix: "eval",
		Data:   naming.Name{HumanReadable: "eval-data-x", Sanitized: "aaa"},
		Index:  naming.Name{HumanReadable: "eval-idx-y", Sanitized: "bbb"},
		DataUpload: blobstore.UploadResult{
			Container: "aaa", Files: 2, Bytes: 12,
		},
		JobID:     "bbb",
		JobStatus: "complete",
	}

	path := filepath.Join(t.TempDir(), "summary.yaml")
	require.NoError(t, s.WriteYAML(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var got Summary
	require.NoError(t, yaml.Unmarshal(raw, &got))
	assert.Equal(t, *s, got)
	assert.Contains(t, string(raw), "human_readable: eval-data-x")
}
