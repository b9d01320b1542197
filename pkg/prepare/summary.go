package prepare

import (
	"fmt"
	"os"

	"github.com/ethpandaops/indexseed/pkg/blobstore"
	"github.com/ethpandaops/indexseed/pkg/naming"
	"gopkg.in/yaml.v3"
)

// Summary describes one completed run.
type Summary struct {
	Prefix      string                 `yaml:"prefix"`
	Data        naming.Name            `yaml:"data"`
	Index       naming.Name            `yaml:"index"`
	DataUpload  blobstore.UploadResult `yaml:"data_upload"`
	IndexUpload blobstore.UploadResult `yaml:"index_upload"`
	JobID       string                 `yaml:"job_id"`
	JobStatus   string                 `yaml:"job_status"`
}

// WriteYAML writes the summary to path.
func (s *Summary) WriteYAML(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling summary: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing summary %s: %w", path, err)
	}

	return nil
}
