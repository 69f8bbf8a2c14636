// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package tensors implements Tensor, a strided view of a multidimensional array whose elements live in a buffer
// owned by a backend.
//
// A Tensor is defined by its shape (dtype and dimensions), its strides and offset (in elements) and the Handle
// of the buffer it reads from. Many tensors can share the same Handle: slicing, transposing, reshaping a contiguous
// tensor, squeezing, inserting axes and broadcasting all create new views of the same buffer, without copying and
// without reaching the backend.
//
// There are various ways to create a Tensor backed by a new buffer (a "root" view):
//
//   - Zeros(gw, dtype, dimensions...), Empty(gw, dtype, dimensions...) and Full(gw, value, dimensions...).
//   - FromFlatData(gw, flat, dimensions...): from a flat slice of a supported Go type.
//   - FromValue(gw, value): from a Go scalar or a (possibly nested) regular slice.
//   - ImportBytes(gw, data, shape): a byte-exact copy of row-major raw data.
//   - The result of any operation executed by the backend (Add, MatMul, ReduceSum, Copy, ...).
//
// Example:
//
//	t, err := FromFlatData(gw, []int8{1, 2, 3, 4}, 2, 2) // Tensor with [[1,2], [3,4]]
//	t, err = FromValue(gw, [][]float32{{1, 2}, {3, 5}, {7, 11}})
//
// Lifetime: every Tensor holds one reference to its Handle. It is released when Tensor.Finalize is called, or
// when the Tensor becomes unreachable and is collected by the garbage collector. When the last view of a Handle
// is released, the buffer is freed, exactly once. Finalizing tensors explicitly is recommended for large
// buffers, since the garbage collector doesn't know about the memory held by the backend.
//
// A nil *gateway.Gateway given to any of the factories means gateway.Default().
package tensors

import (
	"fmt"
	"runtime"
	"slices"
	"sync"

	"github.com/gomlx/ndarray/backends"
	"github.com/gomlx/ndarray/pkg/core/dtypes"
	"github.com/gomlx/ndarray/pkg/core/errs"
	"github.com/gomlx/ndarray/pkg/core/gateway"
	"github.com/gomlx/ndarray/pkg/core/shapes"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Tensor is a view of a multidimensional array stored in a backend buffer.
//
// The element at multi-index idx is stored at position offset + Σ idx[i]*strides[i] of the buffer of its Handle.
// Strides can be negative (reversed axes) or zero (broadcast axes).
//
// The shape, strides and offset of a Tensor are immutable. The contents are not: writes through one view
// (Set, Fill) are visible through all views aliasing the same elements. No locking is provided for that, a
// Handle should be used by one logical caller at a time.
type Tensor struct {
	shape   shapes.Shape
	strides []int
	offset  int
	handle  *Handle
	isRoot  bool

	// mu protects finalized.
	mu        sync.Mutex
	finalized bool
	cleanup   runtime.Cleanup
}

// newView creates a view over handle, acquiring one reference to it.
func newView(handle *Handle, shape shapes.Shape, strides []int, offset int, isRoot bool) (*Tensor, error) {
	if err := handle.acquire(); err != nil {
		return nil, err
	}
	t := &Tensor{
		shape:   shape,
		strides: strides,
		offset:  offset,
		handle:  handle,
		isRoot:  isRoot,
	}
	t.cleanup = runtime.AddCleanup(t, releaseUnreachable, handle)
	return t, nil
}

// releaseUnreachable is the cleanup of views collected by the garbage collector.
func releaseUnreachable(handle *Handle) {
	if err := handle.release(); err != nil {
		klog.Errorf("tensors: failed to release unreachable view of %s: %+v", handle, err)
	}
}

// newRoot takes ownership of a new buffer, holding the contents of shape laid out in row-major order.
func newRoot(gw *gateway.Gateway, buffer backends.Buffer, shape shapes.Shape) (*Tensor, error) {
	handle := newHandle(gw, buffer, shape.DType, shape.Size())
	return newView(handle, shape, shape.Strides(), 0, true)
}

// derive creates a new view sharing the Handle of t. Shape, strides and offset are always relative to the
// buffer, never to t, so there is no chain of views.
func (t *Tensor) derive(shape shapes.Shape, strides []int, offset int) (*Tensor, error) {
	view, err := newView(t.handle, shape, strides, offset, false)
	runtime.KeepAlive(t)
	return view, err
}

// CheckValid returns an error if the Tensor is nil or has been finalized.
//
// All methods that use the contents of the Tensor call it first.
func (t *Tensor) CheckValid() error {
	if t == nil {
		return errors.New("tensor is nil")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finalized {
		return errors.WithMessagef(errs.ErrFinalized, "tensor %s", t.shape)
	}
	return nil
}

// AssertValid panics if the Tensor is nil or has been finalized.
func (t *Tensor) AssertValid() {
	panicOnErr(t.CheckValid())
}

// IsFinalized returns whether Finalize was called.
func (t *Tensor) IsFinalized() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.finalized
}

// Finalize releases the view's reference to its Handle immediately. If it was the last view of the Handle, the
// buffer is released.
//
// Any further use of the Tensor returns an error. Calling Finalize again is a no-op. A nil tensor is also a no-op.
func (t *Tensor) Finalize() error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	if t.finalized {
		t.mu.Unlock()
		return nil
	}
	t.finalized = true
	t.mu.Unlock()
	t.cleanup.Stop()
	return t.handle.release()
}

// MustFinalize is like Finalize, but panics on error.
func (t *Tensor) MustFinalize() {
	panicOnErr(t.Finalize())
}

// Shape of the tensor, includes DType. It must not be modified.
func (t *Tensor) Shape() shapes.Shape { return t.shape }

// DType returns the DType of the tensor's shape.
func (t *Tensor) DType() dtypes.DType {
	if t == nil {
		return dtypes.InvalidDType
	}
	return t.shape.DType
}

// Rank returns the rank of the tensor's shape.
func (t *Tensor) Rank() int { return t.shape.Rank() }

// IsScalar returns whether the tensor represents a scalar value.
func (t *Tensor) IsScalar() bool { return t.shape.IsScalar() }

// Size returns the number of elements in the tensor: 1 for scalars, 0 if any axis has dimension 0.
func (t *Tensor) Size() int { return t.shape.Size() }

// Memory returns the number of bytes of the elements of the tensor (not of its buffer).
func (t *Tensor) Memory() uintptr { return t.shape.Memory() }

// Strides returns a copy of the strides of the view, one per axis, in elements.
func (t *Tensor) Strides() []int { return slices.Clone(t.strides) }

// Offset returns the position in the buffer of the first element of the view.
func (t *Tensor) Offset() int { return t.offset }

// Handle returns the Handle of the buffer the view reads from.
func (t *Tensor) Handle() *Handle { return t.handle }

// Gateway used by the tensor to reach its backend.
func (t *Tensor) Gateway() *gateway.Gateway { return t.handle.gateway }

// IsRoot returns whether the view was created along with its buffer, by an allocation or as the result of an
// operation. It is informative only: root views are released like any other view.
func (t *Tensor) IsRoot() bool { return t.isRoot }

// SharesHandle returns whether t and other are views of the same buffer.
func (t *Tensor) SharesHandle(other *Tensor) bool {
	return t != nil && other != nil && t.handle == other.handle
}

// IsContiguous returns whether the view addresses one contiguous span of its buffer, in row-major order.
func (t *Tensor) IsContiguous() bool {
	return shapes.IsContiguous(t.shape.Dimensions, t.strides, shapes.RowMajor)
}

// BroadcastAxis returns the first axis broadcast by BroadcastTo (with stride 0 and dimension larger than 1),
// or -1 if there is none.
func (t *Tensor) BroadcastAxis() int {
	return shapes.BroadcastAxis(t.shape.Dimensions, t.strides)
}

// IsReadOnly returns whether the view has broadcast axes, in which case many of its positions alias the same
// element, and it can't be written to.
func (t *Tensor) IsReadOnly() bool {
	return t.BroadcastAxis() >= 0
}

// String implements fmt.Stringer. It prints the contents of the tensor with DefaultPrintOptions, see Format.
func (t *Tensor) String() string {
	if err := t.CheckValid(); err != nil {
		return fmt.Sprintf("<invalid tensor: %v>", err)
	}
	return t.Format(DefaultPrintOptions)
}

// Layout describes the view, without reading its contents.
func (t *Tensor) Layout() string {
	return fmt.Sprintf("%s{strides=%v, offset=%d, handle=%s}", t.shape, t.strides, t.offset, t.handle.id)
}

// operand describes the view for the backend.
func (t *Tensor) operand() backends.Operand {
	return backends.Operand{Buffer: t.handle.buffer, Shape: t.shape, Strides: t.strides, Offset: t.offset}
}

// panicOnErr panics if err is not nil.
func panicOnErr(err error) {
	if err != nil {
		panic(err)
	}
}

// panicOnErr1 panics if err is not nil, and otherwise returns value.
func panicOnErr1[T any](value T, err error) T {
	panicOnErr(err)
	return value
}
