// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

// Order of the elements of a contiguous array in memory.
type Order int

//go:generate go tool enumer -type=Order -output=gen_order_enumer.go strides.go

const (
	// RowMajor (or "C" order): the last axis changes fastest. The default everywhere.
	RowMajor Order = iota

	// ColumnMajor (or "Fortran" order): the first axis changes fastest.
	ColumnMajor
)

// Strides returns the canonical strides for each axis of the dimensions, for the given memory order.
//
// For RowMajor stride[rank-1] = 1 and stride[i] = stride[i+1]*dimensions[i+1]. ColumnMajor is the mirror image.
// Notice the strides are **not in bytes**, but in elements.
//
// Scalars have empty strides. Zero-size dimensions still get the strides given by the formula.
func Strides(dimensions []int, order Order) []int {
	rank := len(dimensions)
	if rank == 0 {
		return nil
	}
	strides := make([]int, rank)
	currentStride := 1
	if order == ColumnMajor {
		for axis := 0; axis < rank; axis++ {
			strides[axis] = currentStride
			currentStride *= dimensions[axis]
		}
		return strides
	}
	for axis := rank - 1; axis >= 0; axis-- {
		strides[axis] = currentStride
		currentStride *= dimensions[axis]
	}
	return strides
}

// Strides returns the strides for each axis of the shape, assuming a "row-major" layout
// in memory, the one used for all arrays allocated by the engine.
func (s Shape) Strides() []int {
	return Strides(s.Dimensions, RowMajor)
}

// IsContiguous returns whether an array with the given dimensions and strides occupies one contiguous span of memory
// in the given order.
//
// Zero-size arrays are always contiguous. Axes of dimension 1 are ignored, since their stride is never used to
// address memory.
func IsContiguous(dimensions, strides []int, order Order) bool {
	if len(dimensions) != len(strides) {
		return false
	}
	if SizeOf(dimensions) == 0 {
		return true
	}
	canonical := Strides(dimensions, order)
	for axis, dim := range dimensions {
		if dim == 1 {
			continue
		}
		if strides[axis] != canonical[axis] {
			return false
		}
	}
	return true
}

// FlatIndex returns the position in the buffer of the element at the given multi-index: offset + Σ indices[i]*strides[i].
//
// It doesn't check bounds.
func FlatIndex(offset int, strides, indices []int) int {
	pos := offset
	for axis, idx := range indices {
		pos += idx * strides[axis]
	}
	return pos
}

// Extent returns the lowest and highest buffer position addressed by an array with the given dimensions, strides and
// offset. Negative strides are accounted for.
//
// For zero-size arrays it returns (offset, offset-1), an empty range.
func Extent(dimensions, strides []int, offset int) (lowest, highest int) {
	if SizeOf(dimensions) == 0 {
		return offset, offset - 1
	}
	lowest, highest = offset, offset
	for axis, dim := range dimensions {
		span := (dim - 1) * strides[axis]
		if span > 0 {
			highest += span
		} else {
			lowest += span
		}
	}
	return
}
