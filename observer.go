package validate

import (
	"context"
	"sync"
)

// Observer receives notifications from a chain as it executes. Observers
// are invoked synchronously in registration order; they must handle
// notifications quickly to stay off the validation hot path, and they can
// never affect the validation outcome.
type Observer interface {
	// OnStart fires once before the first validator runs.
	OnStart(ctx context.Context, vc *Context)

	// OnValidatorComplete fires after each validator with its result.
	OnValidatorComplete(ctx context.Context, name string, result *Result)

	// OnComplete fires once with the aggregated result.
	OnComplete(ctx context.Context, result *Result)

	// OnError fires when a validator fails unexpectedly (panic or
	// infrastructure error), before the failure is converted into a
	// synthetic validation error.
	OnError(ctx context.Context, err error, vc *Context)

	// ObserverName identifies the observer for registration and logs.
	ObserverName() string
}

// observerList is an explicit ordered collection of observers with
// add/remove, shared by chains. Notification is synchronous fan-out;
// there is no unbounded queueing.
type observerList struct {
	mu        sync.RWMutex
	observers []Observer
}

func (l *observerList) add(o Observer) error {
	if o == nil {
		return ErrObserverNil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.observers = append(l.observers, o)
	return nil
}

func (l *observerList) remove(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, o := range l.observers {
		if o.ObserverName() == name {
			l.observers = append(l.observers[:i], l.observers[i+1:]...)
			return true
		}
	}
	return false
}

func (l *observerList) snapshot() []Observer {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Observer{}, l.observers...)
}

func (l *observerList) notifyStart(ctx context.Context, vc *Context) {
	for _, o := range l.snapshot() {
		o.OnStart(ctx, vc)
	}
}

func (l *observerList) notifyValidatorComplete(ctx context.Context, name string, result *Result) {
	for _, o := range l.snapshot() {
		o.OnValidatorComplete(ctx, name, result)
	}
}

func (l *observerList) notifyComplete(ctx context.Context, result *Result) {
	for _, o := range l.snapshot() {
		o.OnComplete(ctx, result)
	}
}

func (l *observerList) notifyError(ctx context.Context, err error, vc *Context) {
	for _, o := range l.snapshot() {
		o.OnError(ctx, err, vc)
	}
}
