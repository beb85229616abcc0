package redis

import (
	"context"
	"errors"
	"sort"

	rd "github.com/go-redis/redis/v9"
	api "github.com/mohitkumar/stepflow/api/v1"
	"github.com/mohitkumar/stepflow/logger"
	"github.com/mohitkumar/stepflow/metadata"
	"github.com/mohitkumar/stepflow/model"
	"github.com/mohitkumar/stepflow/persistence"
	"github.com/mohitkumar/stepflow/util"
	"go.uber.org/zap"
)

const WORKFLOW_DEF string = "WORKFLOW"

var _ metadata.MetadataStorage = new(redisMetadataStorage)

type redisMetadataStorage struct {
	*baseDao
	workflowEncoderDecoder util.EncoderDecoder[model.Workflow]
}

func NewRedisMetadataStorage(conf Config) *redisMetadataStorage {
	return &redisMetadataStorage{
		baseDao:                newBaseDao(conf),
		workflowEncoderDecoder: util.NewJsonEncoderDecoder[model.Workflow](),
	}
}

func (rfd *redisMetadataStorage) SaveWorkflowDefinition(wf model.Workflow) error {
	key := rfd.baseDao.getNamespaceKey(WORKFLOW_DEF)
	ctx := context.Background()
	data, err := rfd.workflowEncoderDecoder.Encode(wf)
	if err != nil {
		return err
	}
	if err := rfd.redisClient.HSet(ctx, key, wf.Id, string(data)).Err(); err != nil {
		logger.Error("error in saving workflow definition", zap.String("workflowId", wf.Id), zap.Error(err))
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (rfd *redisMetadataStorage) DeleteWorkflowDefinition(id string) error {
	key := rfd.baseDao.getNamespaceKey(WORKFLOW_DEF)
	ctx := context.Background()
	if err := rfd.redisClient.HDel(ctx, key, id).Err(); err != nil {
		logger.Error("error in deleting workflow definition", zap.String("workflowId", id), zap.Error(err))
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (rfd *redisMetadataStorage) GetWorkflowDefinition(id string) (*model.Workflow, error) {
	key := rfd.baseDao.getNamespaceKey(WORKFLOW_DEF)
	ctx := context.Background()
	val, err := rfd.redisClient.HGet(ctx, key, id).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, api.WorkflowNotFoundError{WorkflowId: id}
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return rfd.workflowEncoderDecoder.Decode([]byte(val))
}

func (rfd *redisMetadataStorage) ListWorkflowDefinitions() ([]string, error) {
	key := rfd.baseDao.getNamespaceKey(WORKFLOW_DEF)
	ids, err := rfd.redisClient.HKeys(context.Background(), key).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	sort.Strings(ids)
	return ids, nil
}
