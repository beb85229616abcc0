package action

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/mohitkumar/stepflow/model"
)

// Handler executes one resolved action. The view is a private copy of the
// execution context; the returned map is merged into the context.
type Handler func(ctx context.Context, action model.ActionSpec, view map[string]any) (map[string]any, error)

type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register binds name to h, replacing any earlier handler of the same name.
func (r *Registry) Register(name string, h Handler) error {
	if len(name) == 0 {
		return fmt.Errorf("action handler name can not be empty")
	}
	if h == nil {
		return fmt.Errorf("action handler %s is nil", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
	return nil
}

func (r *Registry) Get(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
