package registry

import (
	"github.com/tiglabs/baudschema/mapper"
)

// TypeListener is told about every type before it is published. An error
// aborts the merge.
type TypeListener interface {
	BeforeCreate(tm *mapper.TypeMapping) error
}

type TypeListenerFunc func(tm *mapper.TypeMapping) error

func (f TypeListenerFunc) BeforeCreate(tm *mapper.TypeMapping) error {
	return f(tm)
}

type ListenerID uint64

type listenerEntry struct {
	id       ListenerID
	listener TypeListener
}

type listenerError struct {
	typeName string
	cause    error
}

func (e *listenerError) Error() string {
	return "type listener rejected [" + e.typeName + "]: " + e.cause.Error()
}

func (e *listenerError) Unwrap() error {
	return e.cause
}

// AddTypeListener appends l to the listeners called on type creation.
func (r *Registry) AddTypeListener(l TypeListener) ListenerID {
	r.listenerLock.Lock()
	defer r.listenerLock.Unlock()
	r.nextListenerID++
	id := r.nextListenerID
	cur := r.currentListeners()
	next := make([]listenerEntry, 0, len(cur)+1)
	next = append(next, cur...)
	next = append(next, listenerEntry{id: id, listener: l})
	r.listeners.Store(&next)
	return id
}

// RemoveTypeListener removes the listener registered under id and reports
// whether it was found.
func (r *Registry) RemoveTypeListener(id ListenerID) bool {
	r.listenerLock.Lock()
	defer r.listenerLock.Unlock()
	cur := r.currentListeners()
	next := make([]listenerEntry, 0, len(cur))
	for _, e := range cur {
		if e.id != id {
			next = append(next, e)
		}
	}
	if len(next) == len(cur) {
		return false
	}
	r.listeners.Store(&next)
	return true
}

func (r *Registry) currentListeners() []listenerEntry {
	if l := r.listeners.Load(); l != nil {
		return *l
	}
	return nil
}

func (r *Registry) beforeCreate(tm *mapper.TypeMapping) error {
	for _, e := range r.currentListeners() {
		if err := e.listener.BeforeCreate(tm); err != nil {
			return &listenerError{typeName: tm.Type(), cause: err}
		}
	}
	return nil
}
