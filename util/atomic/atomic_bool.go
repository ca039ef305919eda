// Package atomic holds the flag type used for close-once state.
package atomic

import "sync/atomic"

type AtomicBool struct {
	v atomic.Bool
}

func NewAtomicBool(v bool) *AtomicBool {
	b := &AtomicBool{}
	b.v.Store(v)
	return b
}

func (b *AtomicBool) Get() bool {
	return b.v.Load()
}

func (b *AtomicBool) Set(newValue bool) {
	b.v.Store(newValue)
}

// CompareAndSet reports whether the value was expect and is now update.
func (b *AtomicBool) CompareAndSet(expect, update bool) bool {
	return b.v.CompareAndSwap(expect, update)
}
