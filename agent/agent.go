package agent

import (
	"io"
	"net/http"
	"sync"

	rd "github.com/go-redis/redis/v9"
	"github.com/mohitkumar/stepflow/action"
	"github.com/mohitkumar/stepflow/analytics"
	"github.com/mohitkumar/stepflow/config"
	"github.com/mohitkumar/stepflow/engine"
	"github.com/mohitkumar/stepflow/event"
	"github.com/mohitkumar/stepflow/logger"
	"github.com/mohitkumar/stepflow/metadata"
	"github.com/mohitkumar/stepflow/persistence"
	"github.com/mohitkumar/stepflow/persistence/memory"
	"github.com/mohitkumar/stepflow/persistence/redis"
	"github.com/mohitkumar/stepflow/rest"
	"go.uber.org/zap"
)

type Agent struct {
	Config          config.Config
	collector       analytics.WorkflowDataCollector
	metadataStorage metadata.MetadataStorage
	metadataService metadata.MetadataService
	store           persistence.ExecutionStore
	registry        *action.Registry
	dispatcher      *action.Dispatcher
	redisClient     rd.UniversalClient
	hub             *event.Hub
	broadcaster     *event.AsyncBroadcaster
	engine          *engine.Engine
	httpServer      *rest.Server
	shutdown        bool
	shutdowns       chan struct{}
	shutdownLock    sync.Mutex
	wg              sync.WaitGroup
}

func New(conf config.Config) (*Agent, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	a := &Agent{
		Config:    conf,
		shutdowns: make(chan struct{}),
	}
	setup := []func() error{
		a.setupLogger,
		a.setupMetrics,
		a.setupAnalytics,
		a.setupMetadata,
		a.setupExecutionStore,
		a.setupDispatcher,
		a.setupBroadcaster,
		a.setupEngine,
		a.setupHttpServer,
	}
	for _, fn := range setup {
		if err := fn(); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *Agent) setupLogger() error {
	if len(a.Config.LogLevel) == 0 {
		return nil
	}
	return logger.Init(a.Config.LogLevel)
}

func (a *Agent) setupMetrics() error {
	if err := action.RegisterViews(); err != nil {
		return err
	}
	return engine.RegisterViews()
}

func (a *Agent) setupAnalytics() error {
	var err error
	a.collector, err = analytics.NewDataCollector(a.Config.AnalyticsConfig)
	return err
}

func (a *Agent) redisConf() redis.Config {
	return redis.Config{
		Addrs:     a.Config.RedisConfig.Addrs,
		Namespace: a.Config.RedisConfig.Namespace,
		Password:  a.Config.RedisConfig.Password,
	}
}

func (a *Agent) setupMetadata() error {
	switch a.Config.StorageType {
	case config.STORAGE_TYPE_REDIS:
		a.metadataStorage = redis.NewRedisMetadataStorage(a.redisConf())
	default:
		a.metadataStorage = metadata.NewMemoryMetadataStorage()
	}
	a.metadataService = metadata.NewMetadataService(a.metadataStorage)
	if len(a.Config.DefinitionsDir) == 0 {
		return nil
	}
	n, err := metadata.LoadDirectory(a.metadataService, a.Config.DefinitionsDir)
	if err != nil {
		return err
	}
	logger.Info("loaded workflow definitions", zap.String("dir", a.Config.DefinitionsDir), zap.Int("count", n))
	return nil
}

func (a *Agent) setupExecutionStore() error {
	switch a.Config.StorageType {
	case config.STORAGE_TYPE_REDIS:
		a.store = redis.NewRedisExecutionStore(a.redisConf(), redis.ExecutionStoreConfig{
			Partitions:  a.Config.RedisConfig.Partitions,
			LockTimeout: a.Config.EngineConfig.LockTimeout,
			LockTTL:     a.Config.RedisConfig.LockTTL,
		})
	default:
		a.store = memory.NewExecutionStore(a.Config.EngineConfig.LockTimeout, a.Config.InMemoryConfig.Retention)
	}
	return nil
}

func (a *Agent) setupDispatcher() error {
	a.registry = action.NewRegistry()
	action.RegisterBuiltins(a.registry)
	a.dispatcher = action.NewDispatcher(a.registry, a.Config.EngineConfig.ActionTimeout, a.collector)
	logger.Info("registered action handlers", zap.Strings("types", a.registry.Names()))
	return nil
}

func (a *Agent) setupBroadcaster() error {
	sinks := []event.Broadcaster{event.LogBroadcaster{}}
	if len(a.Config.EventConfig.Channel) != 0 {
		a.redisClient = rd.NewUniversalClient(&rd.UniversalOptions{
			Addrs:    a.Config.RedisConfig.Addrs,
			Password: a.Config.RedisConfig.Password,
		})
		sinks = append(sinks, event.NewRedisBroadcaster(a.redisClient, a.Config.EventConfig.Channel))
	}
	if a.Config.EventConfig.Websocket {
		a.hub = event.NewHub(&a.wg)
		a.hub.Start()
		sinks = append(sinks, a.hub)
	}
	a.broadcaster = event.NewAsyncBroadcaster(event.NewMulti(sinks...), a.Config.EventConfig.BufferSize, &a.wg)
	a.broadcaster.Start()
	return nil
}

func (a *Agent) setupEngine() error {
	a.engine = engine.NewEngine(engine.Config{
		MaxHops:      a.Config.EngineConfig.MaxHops,
		AutoContinue: a.Config.EngineConfig.AutoContinue,
		HistoryLimit: a.Config.EngineConfig.HistoryLimit,
	}, a.metadataService, a.store, a.dispatcher, a.broadcaster)
	return nil
}

func (a *Agent) setupHttpServer() error {
	var err error
	var events http.Handler
	if a.hub != nil {
		events = a.hub
	}
	a.httpServer, err = rest.NewServer(a.Config.HttpPort, a.metadataService, a.engine, events)
	return err
}

func (a *Agent) Engine() *engine.Engine {
	return a.engine
}

func (a *Agent) MetadataService() metadata.MetadataService {
	return a.metadataService
}

func (a *Agent) Start() error {
	go func() {
		if err := a.httpServer.Start(); err != nil {
			logger.Error("http server failed", zap.Error(err))
			_ = a.Shutdown()
		}
	}()
	return nil
}

func (a *Agent) Shutdown() error {
	logger.Info("shutting down server")
	a.shutdownLock.Lock()
	defer a.shutdownLock.Unlock()
	if a.shutdown {
		return nil
	}
	a.shutdown = true
	close(a.shutdowns)

	shutdown := []func() error{
		a.httpServer.Stop,
		func() error {
			a.broadcaster.Stop()
			if a.hub != nil {
				a.hub.Stop()
			}
			return nil
		},
		a.store.Close,
		func() error {
			if c, ok := a.metadataStorage.(io.Closer); ok {
				return c.Close()
			}
			return nil
		},
		func() error {
			if a.redisClient != nil {
				return a.redisClient.Close()
			}
			return nil
		},
		a.collector.Close,
	}
	for _, fn := range shutdown {
		if err := fn(); err != nil {
			logger.Error("error during shutdown", zap.Error(err))
		}
	}
	logger.Info("waiting for all services to shutdown...")
	a.wg.Wait()
	_ = logger.Sync()
	return nil
}
