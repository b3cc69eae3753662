// Package extensions is a typed state bag attached to a socket.
package extensions

import (
	"reflect"
	"sync"
)

// Extensions stores at most one value per type. It is safe for concurrent
// use. The zero value is ready to use.
type Extensions struct {
	mu     sync.RWMutex
	values map[reflect.Type]interface{}
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Insert stores v and returns the value of the same type it replaced.
func Insert[T any](e *Extensions, v T) (T, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.values == nil {
		e.values = make(map[reflect.Type]interface{})
	}
	old, ok := e.values[typeOf[T]()]
	e.values[typeOf[T]()] = v
	if !ok {
		var zero T
		return zero, false
	}
	return old.(T), true
}

// Get returns the stored value of type T.
func Get[T any](e *Extensions) (T, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	v, ok := e.values[typeOf[T]()]
	if !ok {
		var zero T
		return zero, false
	}
	return v.(T), true
}

// Remove deletes and returns the stored value of type T.
func Remove[T any](e *Extensions) (T, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	v, ok := e.values[typeOf[T]()]
	if !ok {
		var zero T
		return zero, false
	}
	delete(e.values, typeOf[T]())
	return v.(T), true
}

// Len counts the stored values.
func (e *Extensions) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return len(e.values)
}

// Clear drops every value.
func (e *Extensions) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.values = nil
}
