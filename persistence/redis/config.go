package redis

import "time"

type Config struct {
	Addrs     []string
	Namespace string
	PoolSize  int
	Password  string
}

// ExecutionStoreConfig tunes the redis execution store.
type ExecutionStoreConfig struct {
	Partitions  int
	LockTimeout time.Duration
	LockTTL     time.Duration
}
