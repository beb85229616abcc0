package persistence

import (
	"context"
	"sync"
	"testing"
	"time"

	api "github.com/mohitkumar/stepflow/api/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedLock(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T, l *KeyedLock){
		"serializes same key": func(t *testing.T, l *KeyedLock) {
			var mu sync.Mutex
			active, maxActive := 0, 0
			var wg sync.WaitGroup
			for i := 0; i < 10; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					unlock, err := l.Lock(context.Background(), "e1")
					if !assert.NoError(t, err) {
						return
					}
					mu.Lock()
					active++
					if active > maxActive {
						maxActive = active
					}
					mu.Unlock()
					time.Sleep(time.Millisecond)
					mu.Lock()
					active--
					mu.Unlock()
					unlock()
				}()
			}
			wg.Wait()
			require.Equal(t, 1, maxActive)
			require.Equal(t, 0, l.size())
		},
		"different keys do not block": func(t *testing.T, l *KeyedLock) {
			unlock, err := l.Lock(context.Background(), "a")
			require.NoError(t, err)
			defer unlock()
			unlockB, err := l.Lock(context.Background(), "b")
			require.NoError(t, err)
			unlockB()
		},
		"timeout is a safety fault": func(t *testing.T, l *KeyedLock) {
			unlock, err := l.Lock(context.Background(), "a")
			require.NoError(t, err)
			defer unlock()
			_, err = l.Lock(context.Background(), "a")
			var fault api.EngineSafetyFault
			require.ErrorAs(t, err, &fault)
			require.Equal(t, "a", fault.ExecutionId)
		},
		"cancelled context": func(t *testing.T, l *KeyedLock) {
			unlock, err := l.Lock(context.Background(), "a")
			require.NoError(t, err)
			defer unlock()
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, err = l.Lock(ctx, "a")
			require.ErrorIs(t, err, context.Canceled)
		},
	} {
		t.Run(scenario, func(t *testing.T) {
			fn(t, NewKeyedLock(50*time.Millisecond))
		})
	}
}

func TestKeyedLockDefaultsTimeout(t *testing.T) {
	for _, timeout := range []time.Duration{0, -time.Second} {
		l := NewKeyedLock(timeout)
		require.Equal(t, DEFAULT_LOCK_TIMEOUT, l.timeout)
		for i := 0; i < 100; i++ {
			unlock, err := l.Lock(context.Background(), "e1")
			require.NoError(t, err)
			unlock()
		}
	}
}
