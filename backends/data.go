// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package backends

import "github.com/gomlx/ndarray/pkg/core/dtypes"

// Buffer represents a flat block of homogeneous elements owned by the backend.
//
// It is opaque from the engine's perspective: buffers carry no shape, only a dtype and a number of elements.
// Shapes and strides live in the views (see package tensors) that point to the buffer.
type Buffer any

// DataInterface is the Backend's subinterface that defines the API to allocate, import, access and release Buffers.
//
// The backend keeps no reference count for its buffers: it only knows whether a buffer is allocated or finalized.
// Shared ownership is the business of the caller.
type DataInterface interface {
	// NewBuffer allocates a buffer for size elements of the given dtype.
	//
	// If zeroed is false the contents are undefined: they may hold values of a previously released buffer.
	NewBuffer(dtype dtypes.DType, size int, zeroed bool) (Buffer, error)

	// BufferFromBytes allocates a buffer for size elements of the given dtype and copies the raw bytes in data into it.
	// The length of data must be exactly size*dtype.Size().
	BufferFromBytes(dtype dtypes.DType, size int, data []byte) (Buffer, error)

	// BufferFinalize informs the backend that buffer is no longer needed and associated resources can be
	// freed immediately.
	//
	// A finalized buffer should never be used again: finalizing it a second time returns an error.
	BufferFinalize(buffer Buffer) error

	// BufferDType returns the dtype of the elements of the buffer.
	BufferDType(buffer Buffer) (dtypes.DType, error)

	// BufferSize returns the number of elements of the buffer.
	BufferSize(buffer Buffer) (int, error)

	// BufferData returns a flat slice ([]T, for the dtype of the buffer) pointing to the buffer storage memory
	// directly. Writes to it are visible to every user of the buffer.
	//
	// The returned slice becomes invalid after the buffer is finalized.
	BufferData(buffer Buffer) (flat any, err error)
}

// MemoryStats reports the usage of the backend's buffer store.
type MemoryStats struct {
	// LiveBuffers is the number of buffers allocated and not yet finalized.
	LiveBuffers int64

	// LiveBytes is the memory used by the live buffers.
	LiveBytes int64

	// Allocations and Finalizations are the total number of buffers allocated and finalized so far.
	Allocations, Finalizations int64
}

// MemoryReporter is implemented by backends that report the usage of their buffer store.
type MemoryReporter interface {
	MemoryStats() MemoryStats
}
