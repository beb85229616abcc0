package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	rd "github.com/go-redis/redis/v9"
	"github.com/google/uuid"
	api "github.com/mohitkumar/stepflow/api/v1"
	"github.com/mohitkumar/stepflow/logger"
	"github.com/mohitkumar/stepflow/model"
	"github.com/mohitkumar/stepflow/persistence"
	"github.com/mohitkumar/stepflow/util"
	"github.com/spaolacci/murmur3"
	"go.uber.org/zap"
)

const EXECUTION_KEY string = "EXECUTION"
const LOCK_KEY string = "LOCK"

const DEFAULT_PARTITIONS = 16
const DEFAULT_LOCK_TTL = 30 * time.Second

var errLockHeld = errors.New("execution lock held")

type lockTokenKey struct{}

var releaseScript = rd.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

var renewScript = rd.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)

// guardedPutScript writes the execution only while the lock at KEYS[1] still
// carries the caller's token.
var guardedPutScript = rd.NewScript(`
if redis.call("get", KEYS[1]) ~= ARGV[1] then
	return 0
end
redis.call("hset", KEYS[2], ARGV[2], ARGV[3])
return 1
`)

var _ persistence.ExecutionStore = new(redisExecutionStore)

// redisExecutionStore spreads executions over partitioned hashes and guards
// each execution with a SET NX lock carrying a per-holder token.
type redisExecutionStore struct {
	*baseDao
	encoderDecoder util.EncoderDecoder[model.WorkflowExecution]
	partitions     uint32
	lockTimeout    time.Duration
	lockTTL        time.Duration
}

func NewRedisExecutionStore(conf Config, storeConf ExecutionStoreConfig) *redisExecutionStore {
	partitions := storeConf.Partitions
	if partitions <= 0 {
		partitions = DEFAULT_PARTITIONS
	}
	lockTTL := storeConf.LockTTL
	if lockTTL <= 0 {
		lockTTL = DEFAULT_LOCK_TTL
	}
	lockTimeout := storeConf.LockTimeout
	if lockTimeout <= 0 {
		lockTimeout = persistence.DEFAULT_LOCK_TIMEOUT
	}
	return &redisExecutionStore{
		baseDao:        newBaseDao(conf),
		encoderDecoder: util.NewJsonEncoderDecoder[model.WorkflowExecution](),
		partitions:     uint32(partitions),
		lockTimeout:    lockTimeout,
		lockTTL:        lockTTL,
	}
}

func (r *redisExecutionStore) partitionKey(executionId string) string {
	partition := murmur3.Sum32([]byte(executionId)) % r.partitions
	return r.getNamespaceKey(EXECUTION_KEY, strconv.FormatUint(uint64(partition), 10))
}

func (r *redisExecutionStore) Get(ctx context.Context, executionId string) (*model.WorkflowExecution, error) {
	val, err := r.redisClient.HGet(ctx, r.partitionKey(executionId), executionId).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, api.ExecutionNotFoundError{ExecutionId: executionId}
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	exec, err := r.encoderDecoder.Decode([]byte(val))
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return exec, nil
}

// Put stores exec. Inside WithLock the write only happens while this holder
// still owns the execution lock.
func (r *redisExecutionStore) Put(ctx context.Context, exec *model.WorkflowExecution) error {
	data, err := r.encoderDecoder.Encode(*exec)
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	partitionKey := r.partitionKey(exec.ExecutionId)
	token, locked := ctx.Value(lockTokenKey{}).(string)
	if !locked {
		if err := r.redisClient.HSet(ctx, partitionKey, exec.ExecutionId, string(data)).Err(); err != nil {
			logger.Error("error in saving execution", zap.String("executionId", exec.ExecutionId), zap.Error(err))
			return persistence.StorageLayerError{Message: err.Error()}
		}
		return nil
	}
	keys := []string{r.lockKey(exec.ExecutionId), partitionKey}
	written, err := guardedPutScript.Run(ctx, r.redisClient, keys, token, exec.ExecutionId, string(data)).Int()
	if err != nil {
		logger.Error("error in saving execution", zap.String("executionId", exec.ExecutionId), zap.Error(err))
		return persistence.StorageLayerError{Message: err.Error()}
	}
	if written == 0 {
		logger.Error("execution lock lost before save", zap.String("executionId", exec.ExecutionId))
		return api.EngineSafetyFault{ExecutionId: exec.ExecutionId, Reason: "execution lock lost before save"}
	}
	return nil
}

func (r *redisExecutionStore) lockKey(executionId string) string {
	return r.getNamespaceKey(LOCK_KEY, executionId)
}

// WithLock runs fn while holding the execution lock. The lock is renewed
// every third of its TTL until fn returns.
func (r *redisExecutionStore) WithLock(ctx context.Context, executionId string, fn func(ctx context.Context) error) error {
	key := r.lockKey(executionId)
	token := uuid.NewString()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Millisecond
	b.MaxInterval = 100 * time.Millisecond
	b.MaxElapsedTime = r.lockTimeout

	err := backoff.Retry(func() error {
		ok, err := r.redisClient.SetNX(ctx, key, token, r.lockTTL).Result()
		if err != nil {
			return backoff.Permanent(persistence.StorageLayerError{Message: err.Error()})
		}
		if !ok {
			return errLockHeld
		}
		return nil
	}, backoff.WithContext(b, ctx))
	if err != nil {
		if errors.Is(err, errLockHeld) {
			return api.EngineSafetyFault{ExecutionId: executionId, Reason: "timed out waiting for execution lock"}
		}
		return err
	}

	renewer := util.NewTickWorker("lock-renewer-"+executionId, r.lockTTL/3, func() {
		r.renew(key, token, executionId)
	}, nil)
	renewer.Start()
	defer func() {
		renewer.Stop()
		if err := releaseScript.Run(context.Background(), r.redisClient, []string{key}, token).Err(); err != nil {
			logger.Error("error in releasing execution lock", zap.String("executionId", executionId), zap.Error(err))
		}
	}()
	return fn(context.WithValue(ctx, lockTokenKey{}, token))
}

func (r *redisExecutionStore) renew(key string, token string, executionId string) {
	ctx, cancel := context.WithTimeout(context.Background(), r.lockTTL/3)
	defer cancel()
	renewed, err := renewScript.Run(ctx, r.redisClient, []string{key}, token, r.lockTTL.Milliseconds()).Int()
	if err != nil {
		logger.Error("error in renewing execution lock", zap.String("executionId", executionId), zap.Error(err))
		return
	}
	if renewed == 0 {
		logger.Warn("execution lock no longer held", zap.String("executionId", executionId))
	}
}
