package metadata

import "github.com/mohitkumar/stepflow/model"

// MetadataStorage holds workflow definitions by id. A missing id is a
// WorkflowNotFoundError.
type MetadataStorage interface {
	SaveWorkflowDefinition(wf model.Workflow) error
	DeleteWorkflowDefinition(id string) error
	GetWorkflowDefinition(id string) (*model.Workflow, error)
	ListWorkflowDefinitions() ([]string, error)
}
