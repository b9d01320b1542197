// Package prepare seeds a finished index: it uploads a dataset and its index
// artifacts into fresh containers and registers them as a completed job.
package prepare

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ethpandaops/indexseed/pkg/blobstore"
	"github.com/ethpandaops/indexseed/pkg/docstore"
	"github.com/ethpandaops/indexseed/pkg/naming"
	"github.com/ethpandaops/indexseed/pkg/registry"
	"github.com/sirupsen/logrus"
)

// ErrCreateDataContainer marks a failure to create the first container.
// Nothing has been written when it is returned.
var ErrCreateDataContainer = errors.New("error creating container")

// Request names the directories to upload and the human prefix for the
// generated container names.
type Request struct {
	DataDir  string
	IndexDir string
	Prefix   string
}

// Preparer runs the seeding procedure. It is not safe for concurrent use.
type Preparer struct {
	log      logrus.FieldLogger
	blobs    blobstore.Store
	recorder *registry.Recorder
	names    *naming.Generator
	out      io.Writer
}

// New creates a Preparer. Progress lines are printed to out.
func New(
	log logrus.FieldLogger,
	blobs blobstore.Store,
	db docstore.Database,
	names *naming.Generator,
	out io.Writer,
) *Preparer {
	return &Preparer{
		log:      log.WithField("component", "prepare"),
		blobs:    blobs,
		recorder: registry.NewRecorder(log, db),
		names:    names,
		out:      out,
	}
}

// Run executes every step in order and stops at the first failure. Remote
// containers created before a later failure are left in place.
func (p *Preparer) Run(ctx context.Context, req Request) (*Summary, error) {
	if err := validateDir("source data directory", req.DataDir); err != nil {
		return nil, err
	}

	if err := validateDir("index directory", req.IndexDir); err != nil {
		return nil, err
	}

	data, err := p.names.Generate(req.Prefix, naming.RoleData)
	if err != nil {
		return nil, fmt.Errorf("generating data container name: %w", err)
	}

	if err := p.blobs.CreateContainer(ctx, data.Sanitized); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreateDataContainer, err)
	}

	index, err := p.names.Generate(req.Prefix, naming.RoleIndex)
	if err != nil {
		return nil, fmt.Errorf("generating index container name: %w", err)
	}

	if err := p.blobs.CreateContainer(ctx, index.Sanitized); err != nil {
		return nil, fmt.Errorf("creating index container: %w", err)
	}

	dataResult, err := blobstore.UploadDir(ctx, p.log, p.blobs, data.Sanitized, req.DataDir)
	if err != nil {
		return nil, fmt.Errorf("uploading source data: %w", err)
	}

	indexResult, err := blobstore.UploadDir(ctx, p.log, p.blobs, index.Sanitized, req.IndexDir)
	if err != nil {
		return nil, fmt.Errorf("uploading index: %w", err)
	}

	fmt.Fprintf(p.out, "Data uploaded to container: %s - %s\n", data.HumanReadable, data.Sanitized)
	fmt.Fprintf(p.out, "Index uploaded to container: %s - %s\n", index.HumanReadable, index.Sanitized)

	if err := p.recorder.RecordContainers(ctx, data, index); err != nil {
		return nil, fmt.Errorf("recording containers: %w", err)
	}

	job, err := p.recorder.RecordJob(ctx, data, index)
	if err != nil {
		return nil, fmt.Errorf("recording job: %w", err)
	}

	p.log.WithFields(logrus.Fields{
		"data_container":  data.Sanitized,
		"index_container": index.Sanitized,
		"job":             job.ID,
	}).Info("Index seeded")

	return &Summary{
		Prefix:      req.Prefix,
		Data:        data,
		Index:       index,
		DataUpload:  *dataResult,
		IndexUpload: *indexResult,
		JobID:       job.ID,
		JobStatus:   job.Status,
	}, nil
}

func validateDir(label, dir string) error {
	if dir == "" {
		return fmt.Errorf("%s must not be empty", label)
	}

	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("%s %q: %w", label, dir, err)
	}

	if !info.IsDir() {
		return fmt.Errorf("%s %q is not a directory", label, dir)
	}

	return nil
}
