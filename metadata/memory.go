package metadata

import (
	"sort"

	api "github.com/mohitkumar/stepflow/api/v1"
	"github.com/mohitkumar/stepflow/model"
	"github.com/mohitkumar/stepflow/util"
	"github.com/patrickmn/go-cache"
)

var _ MetadataStorage = new(memoryMetadataStorage)

type memoryMetadataStorage struct {
	definitions    *cache.Cache
	encoderDecoder util.EncoderDecoder[model.Workflow]
}

func NewMemoryMetadataStorage() *memoryMetadataStorage {
	return &memoryMetadataStorage{
		definitions:    cache.New(cache.NoExpiration, 0),
		encoderDecoder: util.NewJsonEncoderDecoder[model.Workflow](),
	}
}

func (s *memoryMetadataStorage) SaveWorkflowDefinition(wf model.Workflow) error {
	data, err := s.encoderDecoder.Encode(wf)
	if err != nil {
		return err
	}
	s.definitions.Set(wf.Id, data, cache.NoExpiration)
	return nil
}

func (s *memoryMetadataStorage) DeleteWorkflowDefinition(id string) error {
	s.definitions.Delete(id)
	return nil
}

func (s *memoryMetadataStorage) GetWorkflowDefinition(id string) (*model.Workflow, error) {
	data, ok := s.definitions.Get(id)
	if !ok {
		return nil, api.WorkflowNotFoundError{WorkflowId: id}
	}
	return s.encoderDecoder.Decode(data.([]byte))
}

func (s *memoryMetadataStorage) ListWorkflowDefinitions() ([]string, error) {
	items := s.definitions.Items()
	ids := make([]string, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
