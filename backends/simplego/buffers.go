// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package simplego

import (
	"reflect"
	"strings"
	"sync"
	"unsafe"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/ndarray/backends"
	"github.com/gomlx/ndarray/pkg/core/dtypes"
	"github.com/gomlx/ndarray/pkg/core/errs"
	"github.com/pkg/errors"
)

// Compile-time check:
var _ backends.DataInterface = (*Backend)(nil)

// Buffer for SimpleGo backend holds a dtype and a reference to the flat data.
//
// Buffers handed to the caller (through NewBuffer, BufferFromBytes or Execute) are accounted for in the
// memory stats. Temporary buffers used internally by the kernels are taken from the same pools, but are not
// accounted for.
type Buffer struct {
	dtype dtypes.DType
	valid bool

	// accounted is set for buffers owned by the caller.
	accounted bool

	// flat is always a slice of the underlying data type (dtype).
	flat any
}

// String implements fmt.Stringer.
func (buf *Buffer) String() string {
	return "Buffer[" + buf.dtype.String() + "]"
}

// Len returns the number of elements of the buffer.
func (buf *Buffer) Len() int {
	if buf.flat == nil {
		return 0
	}
	return reflect.ValueOf(buf.flat).Len()
}

// Flat returns the flat data of the buffer, it is a []T for the dtype of the buffer.
func (buf *Buffer) Flat() any {
	return buf.flat
}

type bufferPoolKey struct {
	dtype  dtypes.DType
	length int
}

// getBufferPool for given dtype/length. The pools hold the flat slices only, each buffer gets a new *Buffer,
// so references to a finalized buffer can always be detected.
func (b *Backend) getBufferPool(dtype dtypes.DType, length int) *sync.Pool {
	key := bufferPoolKey{dtype: dtype, length: length}
	poolInterface, ok := b.bufferPools.Load(key)
	if !ok {
		poolInterface, _ = b.bufferPools.LoadOrStore(key, &sync.Pool{
			New: func() any {
				return dtype.MakeSlice(length)
			},
		})
	}
	return poolInterface.(*sync.Pool)
}

// getBuffer from backend pool of buffers. Its contents are undefined.
func (b *Backend) getBuffer(dtype dtypes.DType, length int) *Buffer {
	pool := b.getBufferPool(dtype, length)
	return &Buffer{
		dtype: dtype,
		valid: true,
		flat:  pool.Get(),
	}
}

// putBuffer back into the backend pool of buffers.
// After this any references to buffer should be dropped.
func (b *Backend) putBuffer(buffer *Buffer) {
	if buffer == nil || buffer.flat == nil || !buffer.dtype.IsSupported() {
		return
	}
	flat := buffer.flat
	buffer.valid = false
	buffer.flat = nil
	pool := b.getBufferPool(buffer.dtype, reflect.ValueOf(flat).Len())
	pool.Put(flat)
}

// putBuffers returns all non-nil temporary buffers to the pool.
func (b *Backend) putBuffers(buffers ...*Buffer) {
	for _, buffer := range buffers {
		if buffer != nil {
			b.putBuffer(buffer)
		}
	}
}

// newAccountedBuffer takes a buffer of the pool and accounts it as owned by the caller.
//
// It returns an errs.AllocationError if it would exceed the configured max_memory.
func (b *Backend) newAccountedBuffer(dtype dtypes.DType, size int) (*Buffer, error) {
	if err := b.checkFinalized(); err != nil {
		return nil, err
	}
	if !dtype.IsSupported() {
		return nil, errs.NewDTypeError("NewBuffer", []dtypes.DType{dtype}, "unsupported dtype")
	}
	if size < 0 {
		return nil, errs.NewShapeError("NewBuffer", "invalid negative number of elements %d", size)
	}
	numBytes := int64(size) * int64(dtype.Size())
	if b.maxMemory > 0 {
		if newLive := b.liveBytes.Add(numBytes); uint64(newLive) > b.maxMemory {
			b.liveBytes.Add(-numBytes)
			return nil, errors.WithStack(&errs.AllocationError{
				DType: dtype,
				Size:  size,
				Cause: errors.Errorf("max_memory of %d bytes exceeded, %d bytes already in use", b.maxMemory,
					newLive-numBytes),
			})
		}
	} else {
		b.liveBytes.Add(numBytes)
	}
	buffer := b.getBuffer(dtype, size)
	buffer.accounted = true
	b.liveBuffers.Add(1)
	b.allocations.Add(1)
	return buffer, nil
}

// mutableBytes returns the slice of the bytes used by the flat given -- it works with any of the supported data types for buffers.
func (buf *Buffer) mutableBytes() []byte {
	value := reflect.ValueOf(buf.flat)
	if value.Len() == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(value.UnsafePointer()), value.Len()*buf.dtype.Size())
}

// zero sets all the elements of the buffer to the zero value of its dtype.
func (buf *Buffer) zero() {
	clear(buf.mutableBytes())
}

// NewBuffer implements backends.DataInterface.
func (b *Backend) NewBuffer(dtype dtypes.DType, size int, zeroed bool) (backends.Buffer, error) {
	buffer, err := b.newAccountedBuffer(dtype, size)
	if err != nil {
		return nil, err
	}
	if zeroed {
		buffer.zero()
	}
	return buffer, nil
}

// BufferFromBytes implements backends.DataInterface.
func (b *Backend) BufferFromBytes(dtype dtypes.DType, size int, data []byte) (backends.Buffer, error) {
	if dtype.IsSupported() && len(data) != size*dtype.Size() {
		return nil, errs.NewShapeError("BufferFromBytes", "%d bytes given for %d elements of %s, wanted %d bytes",
			len(data), size, dtype, size*dtype.Size())
	}
	buffer, err := b.newAccountedBuffer(dtype, size)
	if err != nil {
		return nil, err
	}
	copy(buffer.mutableBytes(), data)
	return buffer, nil
}

// castBuffer converts the backends.Buffer to a valid *Buffer, or returns an error describing the issues.
func (b *Backend) castBuffer(method string, backendBuffer backends.Buffer) (*Buffer, error) {
	buffer, ok := backendBuffer.(*Buffer)
	if !ok {
		return nil, errors.Errorf("%s: buffer (type %T) is not a %q backend buffer", method, backendBuffer, BackendName)
	}
	if buffer == nil || buffer.flat == nil || !buffer.dtype.IsSupported() || !buffer.valid {
		var issues []string
		if buffer != nil {
			if buffer.flat == nil {
				issues = append(issues, "buffer.flat was nil")
			}
			if !buffer.dtype.IsSupported() {
				issues = append(issues, "buffer.dtype was invalid")
			}
			if !buffer.valid {
				issues = append(issues, "buffer was marked as invalid")
			}
		} else {
			issues = append(issues, "buffer was nil")
		}
		return nil, errors.Errorf("%s(%p): %s -- buffer was already finalized!?", method, buffer, strings.Join(issues, ", "))
	}
	return buffer, nil
}

// BufferFinalize allows the client to inform backend that buffer is no longer needed and associated resources can be
// freed immediately.
//
// A finalized buffer should never be used again: finalizing it a second time returns an error.
func (b *Backend) BufferFinalize(backendBuffer backends.Buffer) error {
	buffer, err := b.castBuffer("BufferFinalize", backendBuffer)
	if err != nil {
		return err
	}
	if buffer.accounted {
		b.liveBuffers.Add(-1)
		b.liveBytes.Add(-int64(buffer.Len() * buffer.dtype.Size()))
		b.finalizations.Add(1)
		buffer.accounted = false
	}
	if b.isFinalized.Load() {
		// Don't return it to the pools.
		buffer.valid = false
		buffer.flat = nil
		return nil
	}
	b.putBuffer(buffer)
	return nil
}

// BufferDType implements backends.DataInterface.
func (b *Backend) BufferDType(backendBuffer backends.Buffer) (dtypes.DType, error) {
	buffer, err := b.castBuffer("BufferDType", backendBuffer)
	if err != nil {
		return dtypes.InvalidDType, err
	}
	return buffer.dtype, nil
}

// BufferSize implements backends.DataInterface.
func (b *Backend) BufferSize(backendBuffer backends.Buffer) (int, error) {
	buffer, err := b.castBuffer("BufferSize", backendBuffer)
	if err != nil {
		return 0, err
	}
	return buffer.Len(), nil
}

// BufferData returns a slice pointing to the buffer storage memory directly.
//
// The returned slice becomes invalid after the buffer is destroyed.
func (b *Backend) BufferData(backendBuffer backends.Buffer) (flat any, err error) {
	buffer, err := b.castBuffer("BufferData", backendBuffer)
	if err != nil {
		return nil, err
	}
	return buffer.flat, nil
}

// mustCast is like castBuffer, but panics on error. Used by kernels, on buffers that were already validated.
func mustCast(backendBuffer backends.Buffer) *Buffer {
	buffer, ok := backendBuffer.(*Buffer)
	if !ok || !buffer.valid {
		exceptions.Panicf("invalid buffer %v given to kernel", backendBuffer)
	}
	return buffer
}
