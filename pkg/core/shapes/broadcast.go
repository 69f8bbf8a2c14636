// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import (
	"slices"

	"github.com/gomlx/ndarray/pkg/core/errs"
	"github.com/pkg/errors"
)

// BroadcastDimensions returns the dimensions resulting from broadcasting all the given dimensions together.
//
// Dimensions are aligned on their trailing axes, and the shorter ones are padded with 1s on the left. Two dimensions
// on the same (aligned) axis are compatible if they are equal or one of them is 1, and the result takes the larger
// one. So [5, 4] and [4] broadcast to [5, 4], but [5, 4] and [5] are incompatible.
//
// On failure, it returns a *errs.BroadcastError with the first incompatible axis of the output and the original
// dimensions of the two offending inputs. The result doesn't depend on the order of the arguments.
func BroadcastDimensions(dimensions ...[]int) ([]int, error) {
	outRank := 0
	for _, dims := range dimensions {
		outRank = max(outRank, len(dims))
	}
	out := make([]int, outRank)
	for axis := range outRank {
		out[axis] = 1
		source := -1
		for ii, dims := range dimensions {
			dim := alignedDim(dims, axis, outRank)
			if dim == 1 {
				continue
			}
			if source < 0 {
				source, out[axis] = ii, dim
				continue
			}
			if dim != out[axis] {
				return nil, errors.WithStack(&errs.BroadcastError{
					Axis:   axis,
					ShapeA: slices.Clone(dimensions[source]),
					ShapeB: slices.Clone(dims),
					DimA:   out[axis],
					DimB:   dim,
				})
			}
		}
	}
	return out, nil
}

// alignedDim returns the dimension of dims on the right-aligned axis of an output of rank outRank, or 1 if
// dims is padded on that axis.
func alignedDim(dims []int, axis, outRank int) int {
	axis -= outRank - len(dims)
	if axis < 0 {
		return 1
	}
	return dims[axis]
}

// BroadcastShapes is like BroadcastDimensions, but for shapes. The dtype of the result is the one of the first
// shape, dtypes are not checked (see dtypes.Promote).
func BroadcastShapes(shapes ...Shape) (Shape, error) {
	if len(shapes) == 0 {
		return Invalid(), errs.NewShapeError("BroadcastShapes", "no shapes given")
	}
	allDims := make([][]int, len(shapes))
	for ii, s := range shapes {
		allDims[ii] = s.Dimensions
	}
	dims, err := BroadcastDimensions(allDims...)
	if err != nil {
		return Invalid(), err
	}
	return Shape{DType: shapes[0].DType, Dimensions: dims}, nil
}

// BroadcastStrides returns the strides of a view with the given dimensions and strides, virtually expanded to
// outDimensions: stretched axes (with dimension 1) and padded leading axes get stride 0, all others keep their
// strides.
//
// It returns a *errs.BroadcastError if dimensions can't be broadcast to outDimensions, including the case where
// outDimensions would need to be stretched itself.
func BroadcastStrides(dimensions, strides, outDimensions []int) ([]int, error) {
	outRank := len(outDimensions)
	if len(dimensions) > outRank {
		return nil, errs.NewShapeError("BroadcastTo", "cannot broadcast dimensions %v to lower rank %v",
			dimensions, outDimensions)
	}
	pad := outRank - len(dimensions)
	outStrides := make([]int, outRank)
	for axis := pad; axis < outRank; axis++ {
		dim, outDim := dimensions[axis-pad], outDimensions[axis]
		switch dim {
		case outDim:
			outStrides[axis] = strides[axis-pad]
		case 1:
			outStrides[axis] = 0
		default:
			return nil, errors.WithStack(&errs.BroadcastError{
				Axis:   axis,
				ShapeA: slices.Clone(dimensions),
				ShapeB: slices.Clone(outDimensions),
				DimA:   dim,
				DimB:   outDim,
			})
		}
	}
	return outStrides, nil
}

// BroadcastAxis returns the first axis whose stride is 0 while its dimension is larger than 1, or -1 if
// there is none. Views with such an axis alias one element on many positions, and can't be written to.
func BroadcastAxis(dimensions, strides []int) int {
	for axis, dim := range dimensions {
		if dim > 1 && strides[axis] == 0 {
			return axis
		}
	}
	return -1
}
