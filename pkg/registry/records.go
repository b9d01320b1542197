package registry

import (
	"fmt"

	"github.com/ethpandaops/indexseed/pkg/naming"
)

// ContainerType classifies a registered storage container.
type ContainerType string

const (
	ContainerTypeData  ContainerType = "data"
	ContainerTypeIndex ContainerType = "index"
)

// JobStatusComplete is the only status this tool writes.
const JobStatusComplete = "complete"

// UnknownPrompt fills the prompt fields of seeded jobs.
const UnknownPrompt = "UNK"

// AllWorkflows lists every workflow of an indexing pipeline run.
var AllWorkflows = []string{
	"create_base_text_units",
	"create_final_text_units",
	"create_base_extracted_entities",
	"create_summarized_entities",
	"create_base_entity_graph",
	"create_final_entities",
	"create_final_relationships",
	"create_base_documents",
	"create_base_document_graph",
	"create_final_documents",
	"create_final_communities",
	"create_final_community_reports",
	"create_final_covariates",
	"create_base_entity_nodes",
	"create_base_document_nodes",
	"create_final_nodes",
}

// CompletedWorkflows is the completion order recorded for a seeded job. It
// holds the same workflows as AllWorkflows. Seeded jobs are stamped complete
// without any indexing run having been observed.
var CompletedWorkflows = []string{
	"create_base_text_units",
	"create_base_extracted_entities",
	"create_final_covariates",
	"create_summarized_entities",
	"create_base_entity_graph",
	"create_final_entities",
	"create_final_relationships",
	"create_final_communities",
	"create_final_community_reports",
	"create_base_entity_nodes",
	"create_final_text_units",
	"create_base_documents",
	"create_base_document_graph",
	"create_base_document_nodes",
	"create_final_documents",
	"create_final_nodes",
}

// ContainerDescriptor is a container-store entry.
type ContainerDescriptor struct {
	ID                string        `json:"id"`
	HumanReadableName string        `json:"human_readable_name"`
	Type              ContainerType `json:"type"`
}

// NewContainerDescriptor describes the container called name.
func NewContainerDescriptor(name naming.Name, typ ContainerType) ContainerDescriptor {
	return ContainerDescriptor{
		ID:                name.Sanitized,
		HumanReadableName: name.HumanReadable,
		Type:              typ,
	}
}

// JobRecord is a jobs entry as read by the job tracking service.
type JobRecord struct {
	ID                          string   `json:"id"`
	SanitizedIndexName          string   `json:"sanitized_index_name"`
	HumanReadableIndexName      string   `json:"human_readable_index_name"`
	SanitizedStorageName        string   `json:"sanitized_storage_name"`
	HumanReadableStorageName    string   `json:"human_readable_storage_name"`
	AllWorkflows                []string `json:"all_workflows"`
	CompletedWorkflows          []string `json:"completed_workflows"`
	FailedWorkflows             []string `json:"failed_workflows"`
	Status                      string   `json:"status"`
	PercentComplete             int      `json:"percent_complete"`
	Progress                    string   `json:"progress"`
	EntityExtractionPrompt      string   `json:"entity_extraction_prompt"`
	CommunityReportPrompt       string   `json:"community_report_prompt"`
	SummarizeDescriptionsPrompt string   `json:"summarize_descriptions_prompt"`
}

// NewCompletedJob builds the job record for an index container built from
// the storage container. The job id is the sanitized index name.
func NewCompletedJob(storage, index naming.Name) JobRecord {
	all := append([]string(nil), AllWorkflows...)
	completed := append([]string(nil), CompletedWorkflows...)

	return JobRecord{
		ID:                          index.Sanitized,
		SanitizedIndexName:          index.Sanitized,
		HumanReadableIndexName:      index.HumanReadable,
		SanitizedStorageName:        storage.Sanitized,
		HumanReadableStorageName:    storage.HumanReadable,
		AllWorkflows:                all,
		CompletedWorkflows:          completed,
		FailedWorkflows:             []string{},
		Status:                      JobStatusComplete,
		PercentComplete:             100,
		Progress:                    progressMessage(len(completed), len(all)),
		EntityExtractionPrompt:      UnknownPrompt,
		CommunityReportPrompt:       UnknownPrompt,
		SummarizeDescriptionsPrompt: UnknownPrompt,
	}
}

func progressMessage(completed, total int) string {
	return fmt.Sprintf("%d out of %d workflows completed successfully.", completed, total)
}
