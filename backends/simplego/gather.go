// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package simplego

import (
	"reflect"

	"github.com/gomlx/ndarray/pkg/core/dtypes"
	"github.com/gomlx/ndarray/pkg/core/shapes"
)

// This file implements the reading of strided operands: all kernels work on contiguous row-major flat slices, and
// the operands are gathered into that form here, only when needed.

type gatherFn func(src, dst any, dimensions, strides []int, offset int)

var dispatchGather = NewDTypeDispatcher[gatherFn]("Gather")

// gatherGeneric copies the elements of the strided view (dimensions, strides, offset) over src into dst, in
// row-major order. If the view is contiguous it is a single copy.
func gatherGeneric[T SupportedTypesConstraints](src, dst any, dimensions, strides []int, offset int) {
	srcFlat, dstFlat := src.([]T), dst.([]T)
	if len(dstFlat) == 0 {
		return
	}
	if shapes.IsContiguous(dimensions, strides, shapes.RowMajor) {
		copy(dstFlat, srcFlat[offset:offset+len(dstFlat)])
		return
	}
	for idx, pos := range shapes.Positions(dimensions, strides, offset) {
		dstFlat[idx] = srcFlat[pos]
	}
}

// sliceFlat returns flat[from:to] for any flat slice.
func sliceFlat(flat any, from, to int) any {
	return reflect.ValueOf(flat).Slice(from, to).Interface()
}

// gatherAs returns the elements of the strided view (dimensions, strides, offset) over buffer, as a contiguous
// row-major flat slice of the given dtype.
//
// If the view is already contiguous and of the same dtype, the returned flat aliases the buffer, and it must not be
// written to. Otherwise, the values are gathered (and converted) into a temporary buffer that is returned in tmp,
// and that the caller must give back with putBuffer after use.
func (b *Backend) gatherAs(buffer *Buffer, dimensions, strides []int, offset int, dtype dtypes.DType) (flat any, tmp *Buffer) {
	size := shapes.SizeOf(dimensions)
	if size == 0 {
		return dtype.MakeSlice(0), nil
	}
	if buffer.dtype == dtype && shapes.IsContiguous(dimensions, strides, shapes.RowMajor) {
		return sliceFlat(buffer.flat, offset, offset+size), nil
	}
	tmp = b.getBuffer(buffer.dtype, size)
	dispatchGather.Get(buffer.dtype)(buffer.flat, tmp.flat, dimensions, strides, offset)
	if buffer.dtype != dtype {
		converted := b.getBuffer(dtype, size)
		convertFlat(tmp.flat, converted.flat)
		b.putBuffer(tmp)
		tmp = converted
	}
	return tmp.flat, tmp
}
