// Package hooks provides a named hook registry with priority support.
//
// Hooks are registered under an event name and run in priority order when
// that event fires. The IRC server uses one registry as its command table,
// keyed by verb.
package hooks

import (
	"fmt"
	"reflect"
	"runtime"
	"sort"
	"sync"
)

// Hook defines a generic hook function that returns an error if it fails
type Hook[T any] func(context T) error

// HookInfo stores information about a registered hook including its priority
type HookInfo[T any] struct {
	Name     string  // Name of the hook function
	Hook     Hook[T] // The hook function itself
	Priority int64   // Priority value (lower values run first, like Unix nice)
	seq      int
}

// PanicError is returned by Run when a hook panics.
type PanicError struct {
	Event string
	Hook  string
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in hook %s for %s: %v", e.Hook, e.Event, e.Value)
}

// Registry manages hook registration and execution for a specific context type
type Registry[T any] struct {
	mu    sync.RWMutex
	hooks map[string][]HookInfo[T]
	seq   int
}

// NewRegistry creates a new hook registry for the given context type
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{
		hooks: make(map[string][]HookInfo[T]),
	}
}

// Register adds a hook for event with default priority (0)
func (r *Registry[T]) Register(event string, hook Hook[T]) {
	r.RegisterWithPriority(event, hook, 0)
}

// RegisterWithPriority adds a hook for event with the specified priority.
// Hooks with lower priority values run first; equal priorities run in
// registration order.
func (r *Registry[T]) RegisterWithPriority(event string, hook Hook[T], priority int64) {
	name := runtime.FuncForPC(reflect.ValueOf(hook).Pointer()).Name()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	// copy on write; Run iterates its snapshot without holding the lock
	current := r.hooks[event]
	list := make([]HookInfo[T], len(current), len(current)+1)
	copy(list, current)
	list = append(list, HookInfo[T]{
		Name:     name,
		Hook:     hook,
		Priority: priority,
		seq:      r.seq,
	})
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Priority != list[j].Priority {
			return list[i].Priority < list[j].Priority
		}
		return list[i].seq < list[j].seq
	})
	r.hooks[event] = list
}

// Has reports whether any hook is registered for event.
func (r *Registry[T]) Has(event string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.hooks[event]) > 0
}

// Run executes the hooks registered for event in priority order, stopping
// at the first error. A panicking hook is reported as a *PanicError.
// found is false when nothing is registered for event.
func (r *Registry[T]) Run(event string, context T) (found bool, err error) {
	r.mu.RLock()
	hooks := r.hooks[event]
	r.mu.RUnlock()

	if len(hooks) == 0 {
		return false, nil
	}

	for _, info := range hooks {
		if err := runOne(event, info, context); err != nil {
			return true, err
		}
	}
	return true, nil
}

func runOne[T any](event string, info HookInfo[T], context T) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &PanicError{Event: event, Hook: info.Name, Value: v}
		}
	}()
	return info.Hook(context)
}

// Events returns the sorted names of all events with registered hooks.
func (r *Registry[T]) Events() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	events := make([]string, 0, len(r.hooks))
	for event, list := range r.hooks {
		if len(list) > 0 {
			events = append(events, event)
		}
	}
	sort.Strings(events)
	return events
}

// Clear removes all hooks from the registry
func (r *Registry[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.hooks = make(map[string][]HookInfo[T])
}

// Count returns the number of hooks registered for event
func (r *Registry[T]) Count(event string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.hooks[event])
}
