// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package collections provides small generic containers shared across services.
package collections

import (
	"sync"
	"sync/atomic"
)

// RingBuffer is a thread-safe, fixed-size circular buffer that drops the
// oldest item when full.
//
// Description:
//
//	Bounded storage for metric samples, log lines, and other sliding-window
//	data where dropping old entries is acceptable. Memory for the full
//	capacity is allocated up front so Push never allocates.
//
// Thread Safety:
//
//	Safe for concurrent use. All operations are guarded by a mutex except
//	DroppedCount, which is atomic.
type RingBuffer[T any] struct {
	buf      []T
	head     int
	tail     int
	size     int
	capacity int
	dropped  int64
	mu       sync.Mutex
}

// NewRingBuffer creates an empty ring buffer holding up to capacity items.
// Panics if capacity <= 0.
func NewRingBuffer[T any](capacity int) *RingBuffer[T] {
	if capacity <= 0 {
		panic("ring buffer capacity must be positive")
	}
	return &RingBuffer[T]{
		buf:      make([]T, capacity),
		capacity: capacity,
	}
}

// Push adds an item, evicting the oldest when full. Returns true if an
// item was dropped to make room.
func (r *RingBuffer[T]) Push(item T) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	dropped := false
	if r.size == r.capacity {
		r.head = (r.head + 1) % r.capacity
		r.size--
		atomic.AddInt64(&r.dropped, 1)
		dropped = true
	}

	r.buf[r.tail] = item
	r.tail = (r.tail + 1) % r.capacity
	r.size++
	return dropped
}

// Pop removes and returns the oldest item. Returns the zero value and
// false when empty.
func (r *RingBuffer[T]) Pop() (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.size == 0 {
		var zero T
		return zero, false
	}

	item := r.buf[r.head]
	var zero T
	r.buf[r.head] = zero // release for GC
	r.head = (r.head + 1) % r.capacity
	r.size--
	return item, true
}

// ToSlice returns a snapshot of all items, oldest first. Returns nil when
// empty. The buffer is not modified.
func (r *RingBuffer[T]) ToSlice() []T {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.size == 0 {
		return nil
	}

	out := make([]T, r.size)
	idx := r.head
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[idx]
		idx = (idx + 1) % r.capacity
	}
	return out
}

// Retain keeps only the items for which keep returns true, preserving
// order. Returns the number of items removed.
//
// Description:
//
//	Used for age-based pruning of metric history. Runs under the buffer
//	lock; keep must not call back into the buffer.
func (r *RingBuffer[T]) Retain(keep func(T) bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.size == 0 {
		return 0
	}

	kept := make([]T, 0, r.size)
	idx := r.head
	for i := 0; i < r.size; i++ {
		if keep(r.buf[idx]) {
			kept = append(kept, r.buf[idx])
		}
		idx = (idx + 1) % r.capacity
	}

	removed := r.size - len(kept)

	var zero T
	for i := range r.buf {
		r.buf[i] = zero
	}
	copy(r.buf, kept)
	r.head = 0
	r.tail = len(kept) % r.capacity
	r.size = len(kept)
	return removed
}

// Size returns the current number of items.
func (r *RingBuffer[T]) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// Capacity returns the maximum number of items. Immutable after creation.
func (r *RingBuffer[T]) Capacity() int {
	return r.capacity
}

// IsEmpty reports whether the buffer holds no items.
func (r *RingBuffer[T]) IsEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size == 0
}

// DroppedCount returns the total number of items evicted since creation
// or the last Clear.
func (r *RingBuffer[T]) DroppedCount() int64 {
	return atomic.LoadInt64(&r.dropped)
}

// Clear removes all items and resets the dropped count.
func (r *RingBuffer[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	for i := range r.buf {
		r.buf[i] = zero
	}
	r.head = 0
	r.tail = 0
	r.size = 0
	atomic.StoreInt64(&r.dropped, 0)
}
