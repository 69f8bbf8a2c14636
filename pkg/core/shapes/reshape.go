// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import (
	"slices"

	"github.com/gomlx/ndarray/pkg/core/errs"
)

// ResolveReshapeDims returns the new dimensions for a reshape of an array with size elements.
//
// At most one of the newDimensions can be -1, in which case it is inferred from the size. It returns a ShapeError
// if more than one wildcard is given, if the wildcard can't be inferred, if any other dimension is negative or if
// the total number of elements differs from size.
func ResolveReshapeDims(size int, newDimensions []int) ([]int, error) {
	dims := slices.Clone(newDimensions)
	wildcard := -1
	known := 1
	for axis, dim := range dims {
		switch {
		case dim == -1:
			if wildcard >= 0 {
				return nil, errs.NewShapeError("Reshape", "only one dimension can be -1, got %v", newDimensions)
			}
			wildcard = axis
		case dim < 0:
			return nil, errs.NewShapeError("Reshape", "invalid negative dimension %d in %v", dim, newDimensions)
		default:
			known *= dim
		}
	}
	if wildcard >= 0 {
		if known == 0 || size%known != 0 {
			return nil, errs.NewShapeError("Reshape", "cannot infer the -1 dimension of %v for an array of %d elements",
				newDimensions, size)
		}
		dims[wildcard] = size / known
		known = size
	}
	if known != size {
		return nil, errs.NewShapeError("Reshape", "cannot reshape an array of %d elements to dimensions %v (%d elements)",
			size, newDimensions, known)
	}
	return dims, nil
}

// CheckReshape returns a ShapeError if the element counts of the source and target dimensions differ.
func CheckReshape(dimensions, newDimensions []int) error {
	if SizeOf(dimensions) != SizeOf(newDimensions) {
		return errs.NewShapeError("Reshape", "cannot reshape %v (%d elements) to %v (%d elements)",
			dimensions, SizeOf(dimensions), newDimensions, SizeOf(newDimensions))
	}
	return nil
}

// CanReshapeInPlace returns whether an array with the given dimensions and strides can be reshaped to newDimensions
// without copying: that is, if it is row-major contiguous and the number of elements match.
func CanReshapeInPlace(dimensions, strides, newDimensions []int) bool {
	return SizeOf(dimensions) == SizeOf(newDimensions) && IsContiguous(dimensions, strides, RowMajor)
}
