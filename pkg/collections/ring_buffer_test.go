// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package collections

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingBuffer_PushPop(t *testing.T) {
	rb := NewRingBuffer[int](3)

	assert.True(t, rb.IsEmpty())
	assert.False(t, rb.Push(1))
	assert.False(t, rb.Push(2))
	assert.Equal(t, 2, rb.Size())

	v, ok := rb.Pop()
	require.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 1, rb.Size())
}

func TestRingBuffer_EvictsOldestWhenFull(t *testing.T) {
	rb := NewRingBuffer[int](3)

	rb.Push(1)
	rb.Push(2)
	rb.Push(3)
	assert.True(t, rb.Push(4), "push into full buffer should report a drop")

	assert.Equal(t, []int{2, 3, 4}, rb.ToSlice())
	assert.Equal(t, int64(1), rb.DroppedCount())
}

func TestRingBuffer_PopEmpty(t *testing.T) {
	rb := NewRingBuffer[string](2)

	v, ok := rb.Pop()
	assert.False(t, ok)
	assert.Equal(t, "", v)
	assert.Nil(t, rb.ToSlice())
}

func TestRingBuffer_Retain(t *testing.T) {
	rb := NewRingBuffer[int](5)
	for i := 1; i <= 5; i++ {
		rb.Push(i)
	}

	removed := rb.Retain(func(v int) bool { return v%2 == 0 })
	assert.Equal(t, 3, removed)
	assert.Equal(t, []int{2, 4}, rb.ToSlice())

	// Buffer must keep working after compaction.
	rb.Push(6)
	assert.Equal(t, []int{2, 4, 6}, rb.ToSlice())
}

func TestRingBuffer_Clear(t *testing.T) {
	rb := NewRingBuffer[int](2)
	rb.Push(1)
	rb.Push(2)
	rb.Push(3)

	rb.Clear()
	assert.True(t, rb.IsEmpty())
	assert.Equal(t, int64(0), rb.DroppedCount())
}

func TestRingBuffer_ConcurrentPush(t *testing.T) {
	rb := NewRingBuffer[int](100)

	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				rb.Push(i)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, rb.Size())
	assert.Equal(t, int64(900), rb.DroppedCount())
}

func TestNewRingBuffer_PanicsOnZeroCapacity(t *testing.T) {
	assert.Panics(t, func() { NewRingBuffer[int](0) })
}
