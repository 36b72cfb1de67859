package events

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
)

// ErrUnknownType is returned when subscribing to or publishing an event type
// outside the closed set.
var ErrUnknownType = errors.New("events: unknown event type")

// Listener reacts to a published event. An error aborts nothing but the
// listener's own delivery; the registry isolates failures per listener.
type Listener interface {
	Notify(ctx context.Context, event Event) error
}

// ListenerFunc adapts ordinary functions to the Listener interface.
type ListenerFunc func(ctx context.Context, event Event) error

// Notify invokes the wrapped function.
func (f ListenerFunc) Notify(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Registry is the in-process publish/subscribe hub mapping event types to
// ordered listener lists. Delivery is synchronous and at-most-once: each
// currently registered listener is invoked once per publish, in registration
// order, and one listener's failure never blocks the remaining ones.
type Registry struct {
	mu        sync.RWMutex
	listeners map[Type][]Listener
	logger    func(ctx context.Context, event string, fields map[string]any)
}

// RegistryOption customises Registry construction.
type RegistryOption func(*Registry)

// WithRegistryLogger installs a structured logging callback for delivery
// failures.
func WithRegistryLogger(logger func(ctx context.Context, event string, fields map[string]any)) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry constructs a Registry with an empty listener list for every
// known event type.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		listeners: make(map[Type][]Listener, len(KnownTypes())),
		logger:    func(context.Context, string, map[string]any) {},
	}
	for _, t := range KnownTypes() {
		r.listeners[t] = nil
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Subscribe appends the listener to the event type's list. No de-duplication
// is applied: registering the same listener twice makes it fire twice per
// publish.
func (r *Registry) Subscribe(eventType Type, listener Listener) error {
	if listener == nil {
		return errors.New("events: listener is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.listeners[eventType]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownType, eventType)
	}
	r.listeners[eventType] = append(r.listeners[eventType], listener)
	return nil
}

// Unsubscribe removes the first registration of the listener, matched by
// identity. Absent listeners and unknown types are a no-op.
func (r *Registry) Unsubscribe(eventType Type, listener Listener) {
	if listener == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	registered, ok := r.listeners[eventType]
	if !ok {
		return
	}
	for i, candidate := range registered {
		if sameListener(candidate, listener) {
			r.listeners[eventType] = append(registered[:i:i], registered[i+1:]...)
			return
		}
	}
}

// sameListener reports whether two listeners are the same registration.
// Interface equality cannot be used directly: func-backed listeners such as
// ListenerFunc are uncomparable and would panic under ==, so those are matched
// by the underlying function pointer instead.
func sameListener(a, b Listener) bool {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	if va.Kind() == reflect.Func {
		return va.Pointer() == vb.Pointer()
	}
	if !va.Type().Comparable() {
		return false
	}
	return a == b
}

// Publish synchronously delivers the event to every listener registered for
// its type, in registration order. Listener failures (including panics) are
// contained per listener, logged, and joined into the returned error so the
// caller can observe degraded delivery; they never abort delivery to the
// remaining listeners.
func (r *Registry) Publish(ctx context.Context, event Event) error {
	r.mu.RLock()
	registered, ok := r.listeners[event.Type]
	snapshot := append([]Listener(nil), registered...)
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownType, event.Type)
	}

	var failures []error
	for i, listener := range snapshot {
		if err := r.notify(ctx, listener, event); err != nil {
			failures = append(failures, fmt.Errorf("listener %d for %s: %w", i, event.Type, err))
			r.logger(ctx, "events.delivery.failed", map[string]any{
				"type":     string(event.Type),
				"listener": i,
				"error":    err.Error(),
			})
		}
	}
	return errors.Join(failures...)
}

func (r *Registry) notify(ctx context.Context, listener Listener, event Event) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("events: listener panic: %v", rec)
		}
	}()
	return listener.Notify(ctx, event)
}
