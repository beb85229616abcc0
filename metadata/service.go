package metadata

import (
	"time"

	"github.com/mohitkumar/stepflow/flow"
	"github.com/mohitkumar/stepflow/logger"
	"github.com/mohitkumar/stepflow/model"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const FLOW_CACHE_TTL = 5 * time.Minute

type MetadataService interface {
	GetFlow(workflowId string) (*flow.Flow, error)
	ValidateFlow(wf model.Workflow) error
	SaveFlow(wf model.Workflow) error
	DeleteFlow(workflowId string) error
	GetMetadataStorage() MetadataStorage
}

type MetadataServiceImpl struct {
	storage MetadataStorage
	flows   *cache.Cache
}

func NewMetadataService(storage MetadataStorage) MetadataService {
	return &MetadataServiceImpl{
		storage: storage,
		flows:   cache.New(FLOW_CACHE_TTL, 2*FLOW_CACHE_TTL),
	}
}

// GetFlow loads and compiles a definition. Compiled flows are cached until
// the definition is saved or deleted through this service, or the cache
// entry expires.
func (s *MetadataServiceImpl) GetFlow(workflowId string) (*flow.Flow, error) {
	if fl, ok := s.flows.Get(workflowId); ok {
		return fl.(*flow.Flow), nil
	}
	wf, err := s.storage.GetWorkflowDefinition(workflowId)
	if err != nil {
		return nil, err
	}
	fl, err := flow.Convert(wf)
	if err != nil {
		return nil, err
	}
	s.flows.SetDefault(workflowId, fl)
	return fl, nil
}

func (s *MetadataServiceImpl) ValidateFlow(wf model.Workflow) error {
	return flow.Validate(&wf)
}

func (s *MetadataServiceImpl) SaveFlow(wf model.Workflow) error {
	if err := s.ValidateFlow(wf); err != nil {
		return err
	}
	if err := s.storage.SaveWorkflowDefinition(wf); err != nil {
		logger.Error("error in saving workflow definition", zap.String("workflowId", wf.Id), zap.Error(err))
		return err
	}
	s.flows.Delete(wf.Id)
	return nil
}

func (s *MetadataServiceImpl) DeleteFlow(workflowId string) error {
	s.flows.Delete(workflowId)
	return s.storage.DeleteWorkflowDefinition(workflowId)
}

func (s *MetadataServiceImpl) GetMetadataStorage() MetadataStorage {
	return s.storage
}
