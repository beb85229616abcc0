package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/mohitkumar/stepflow/analytics"
)

type StorageType string

const STORAGE_TYPE_REDIS StorageType = "redis"
const STORAGE_TYPE_INMEM StorageType = "memory"

const (
	DefaultHttpPort      = 8080
	DefaultNamespace     = "stepflow"
	DefaultRedisAddr     = "localhost:6379"
	DefaultPartitions    = 16
	DefaultMaxHops       = 64
	DefaultActionTimeout = 5 * time.Second
	DefaultLockTimeout   = 10 * time.Second
	DefaultLockTTL       = 30 * time.Second
	DefaultHistoryLimit  = 100
	DefaultEventBuffer   = 1024
	DefaultLogLevel      = "info"
	DefaultRetention     = 24 * time.Hour
	MaxTCPPort           = 65535
)

var (
	ErrInvalidHttpPort      = errors.New("invalid http port")
	ErrInvalidStorageType   = errors.New("invalid storage type")
	ErrMissingRedisAddr     = errors.New("redis storage requires at least one address")
	ErrInvalidPartitions    = errors.New("partitions must be positive")
	ErrInvalidMaxHops       = errors.New("max hops must be positive")
	ErrInvalidActionTimeout = errors.New("action timeout must be positive")
	ErrInvalidLockTimeout   = errors.New("lock timeout must be positive")
	ErrInvalidHistoryLimit  = errors.New("history limit can not be negative")
	ErrLockTTLTooShort      = errors.New("redis lock ttl must exceed the action timeout")
)

type Config struct {
	HttpPort        int
	LogLevel        string
	StorageType     StorageType
	RedisConfig     RedisStorageConfig
	InMemoryConfig  InmemStorageConfig
	EngineConfig    EngineConfig
	EventConfig     EventConfig
	DefinitionsDir  string
	AnalyticsConfig analytics.DataCollectorConfig
}

type RedisStorageConfig struct {
	Addrs      []string
	Namespace  string
	Password   string
	Partitions int
	LockTTL    time.Duration
}

type InmemStorageConfig struct {
	// Retention is how long closed executions are kept.
	Retention time.Duration
}

type EngineConfig struct {
	MaxHops       int
	ActionTimeout time.Duration
	LockTimeout   time.Duration
	AutoContinue  bool
	HistoryLimit  int
}

type EventConfig struct {
	// Channel is the redis pub/sub channel; empty disables publishing.
	Channel    string
	BufferSize int
	Websocket  bool
}

func NewDefaultConfig() *Config {
	return &Config{
		HttpPort:    DefaultHttpPort,
		LogLevel:    DefaultLogLevel,
		StorageType: STORAGE_TYPE_INMEM,
		RedisConfig: RedisStorageConfig{
			Addrs:      []string{DefaultRedisAddr},
			Namespace:  DefaultNamespace,
			Partitions: DefaultPartitions,
			LockTTL:    DefaultLockTTL,
		},
		InMemoryConfig: InmemStorageConfig{
			Retention: DefaultRetention,
		},
		EngineConfig: EngineConfig{
			MaxHops:       DefaultMaxHops,
			ActionTimeout: DefaultActionTimeout,
			LockTimeout:   DefaultLockTimeout,
			AutoContinue:  true,
			HistoryLimit:  DefaultHistoryLimit,
		},
		EventConfig: EventConfig{
			BufferSize: DefaultEventBuffer,
			Websocket:  true,
		},
		AnalyticsConfig: analytics.DataCollectorConfig{
			CollectorType: analytics.NOOP_DATA_COLLECTOR,
		},
	}
}

func (c *Config) Validate() error {
	if c.HttpPort < 0 || c.HttpPort > MaxTCPPort {
		return fmt.Errorf("%w: %d", ErrInvalidHttpPort, c.HttpPort)
	}
	switch c.StorageType {
	case STORAGE_TYPE_INMEM:
	case STORAGE_TYPE_REDIS:
		if len(c.RedisConfig.Addrs) == 0 || len(c.RedisConfig.Addrs[0]) == 0 {
			return ErrMissingRedisAddr
		}
		if c.RedisConfig.Partitions <= 0 {
			return fmt.Errorf("%w: %d", ErrInvalidPartitions, c.RedisConfig.Partitions)
		}
		if c.RedisConfig.LockTTL <= c.EngineConfig.ActionTimeout {
			return fmt.Errorf("%w: %s <= %s", ErrLockTTLTooShort, c.RedisConfig.LockTTL, c.EngineConfig.ActionTimeout)
		}
	default:
		return fmt.Errorf("%w: %s", ErrInvalidStorageType, c.StorageType)
	}
	if len(c.EventConfig.Channel) != 0 && (len(c.RedisConfig.Addrs) == 0 || len(c.RedisConfig.Addrs[0]) == 0) {
		return ErrMissingRedisAddr
	}
	if c.EngineConfig.MaxHops <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxHops, c.EngineConfig.MaxHops)
	}
	if c.EngineConfig.ActionTimeout <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidActionTimeout, c.EngineConfig.ActionTimeout)
	}
	if c.EngineConfig.LockTimeout <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidLockTimeout, c.EngineConfig.LockTimeout)
	}
	if c.EngineConfig.HistoryLimit < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidHistoryLimit, c.EngineConfig.HistoryLimit)
	}
	return nil
}
