// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensors

import (
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/ndarray/pkg/core/errs"
	"github.com/gomlx/ndarray/pkg/core/shapes"
	"github.com/pkg/errors"
)

// All the transformations in this file create new views of the same Handle, and never reach the backend, except
// Reshape of a non-contiguous view, which first materializes a contiguous copy.

// SliceAxisSpec specifies the range and stride of an axis to include in a Slice.
//
// The recommendation is to use AxisRange or AxisElem (defined below) to create it.
//
// Full means to include the whole range (and ignore Start/End), and
// NoEnd means from Start to the end of the axis (or to its beginning, for negative strides).
//
// Optional (if StrideValue != 0) it can set the stride for the axis as well. Negative strides traverse the axis
// backwards: if Full, from the last element to the first.
//
// Spacer means this SliceAxisSpec should be the generic definition for all
// undefined axes.
type SliceAxisSpec struct {
	Start, End, StrideValue int
	Full, NoEnd             bool
	IsSpacer                bool
}

// Stride returns a copy of the SliceAxisSpec with Stride set to the given stride.
func (ar SliceAxisSpec) Stride(stride int) SliceAxisSpec {
	ar2 := ar
	ar2.StrideValue = stride
	return ar2
}

// Spacer marks this SliceAxisSpec to be a generic filler range to use on the undefined
// axes in Slice -- similar to a "*" in a path definition.
//
// Example: for x shaped `[batch_size, ..., embedding_size]`, to take `x[-1, ..., 0:1]`:
//
//	sample, err := x.Slice(AxisElem(-1), AxisRange().Spacer(), AxisElem(0))
//
// Notice that "spacer" ranges also match zero axes.
func (ar SliceAxisSpec) Spacer() SliceAxisSpec {
	ar2 := ar
	ar2.IsSpacer = true
	return ar2
}

// AxisRange defines a range to take for an axis in Slice.
//
// The indices can have 0, 1 or 2 elements:
//   - If `len(indices) == 0`, it's assumed to be the full range of the axis.
//   - If `len(indices) == 1`, it's assumed to be the start, and the range should be taken to the end.
//   - If `len(indices) == 2`, they should be the start and end indices for the axis.
//   - If `len(indices) > 2`, it panics.
//
// See also AxisElem if you want to define only one element of the range.
func AxisRange(indices ...int) SliceAxisSpec {
	if len(indices) == 0 {
		return SliceAxisSpec{Full: true}
	}
	if len(indices) == 1 {
		return SliceAxisSpec{Start: indices[0], NoEnd: true}
	}
	if len(indices) > 2 {
		exceptions.Panicf("AxisRange(%v): more than 2 indices provided, that's not supported", indices)
	}
	return SliceAxisSpec{Start: indices[0], End: indices[1]}
}

// AxisRangeToEnd defines a range from the given value to the end of the axis.
func AxisRangeToEnd(from int) SliceAxisSpec {
	return SliceAxisSpec{Start: from, NoEnd: true}
}

// AxisRangeFromStart defines a range from the start (0) to the given value for the axis.
func AxisRangeFromStart(to int) SliceAxisSpec {
	return SliceAxisSpec{Start: 0, End: to}
}

// AxisElem defines a range of one element to take for an axis in Slice. The axis is kept, with dimension 1:
// see Index to drop it.
func AxisElem(index int) SliceAxisSpec {
	if index == -1 {
		return SliceAxisSpec{Start: index, NoEnd: true}
	}
	return SliceAxisSpec{Start: index, End: index + 1}
}

// normalizeBound converts a possibly negative slice bound to a position in [0, dim].
func normalizeBound(axis, bound, dim int) (int, error) {
	adjusted := bound
	if adjusted < 0 {
		adjusted += dim
	}
	if adjusted < 0 || adjusted > dim {
		return 0, errs.NewIndexError(axis, bound, dim)
	}
	return adjusted, nil
}

// expandSpacer replaces the spacer spec, if any, with as many full copies as needed to match the rank.
func expandSpacer(specs []SliceAxisSpec, rank int) ([]SliceAxisSpec, error) {
	spacerIdx := -1
	for ii, spec := range specs {
		if !spec.IsSpacer {
			continue
		}
		if spacerIdx >= 0 {
			return nil, errs.NewShapeError("Slice", "only one \"spacer\" range is allowed, got %d and %d", spacerIdx, ii)
		}
		spacerIdx = ii
	}
	if spacerIdx < 0 {
		return specs, nil
	}
	copies := rank - len(specs) + 1
	if copies < 0 {
		return nil, errors.WithStack(&errs.IndexError{Axis: rank, Index: len(specs) - 1, Size: rank,
			Message: "Slice given more ranges than the tensor has axes"})
	}
	expanded := make([]SliceAxisSpec, 0, rank)
	expanded = append(expanded, specs[:spacerIdx]...)
	spacer := specs[spacerIdx]
	spacer.IsSpacer = false
	for range copies {
		expanded = append(expanded, spacer)
	}
	return append(expanded, specs[spacerIdx+1:]...), nil
}

// Slice returns a view of a range of each axis of the tensor. Axes for which no spec is given are taken in full.
//
// Examples, for `x = {10, 20, 30, 40}`:
//   - `x.Slice() = {10, 20, 30, 40}`
//   - `x.Slice(AxisRange(1, -1)) = {20, 30}` (negative values are taken from the end of the axis)
//   - `x.Slice(AxisRangeToEnd(2)) = {30, 40}`
//   - `x.Slice(AxisElem(2)) = {30}`
//   - `x.Slice(AxisRange().Stride(2)) = {10, 30}`
//   - `x.Slice(AxisRange().Stride(-1)) = {40, 30, 20, 10}`
//
// Bounds must be in [-dim, dim], otherwise it returns an IndexError. It also returns an IndexError if more specs
// than axes are given. A stride of 0 is taken as 1.
func (t *Tensor) Slice(specs ...SliceAxisSpec) (*Tensor, error) {
	if err := t.CheckValid(); err != nil {
		return nil, err
	}
	rank := t.Rank()
	specs, err := expandSpacer(specs, rank)
	if err != nil {
		return nil, err
	}
	if len(specs) > rank {
		return nil, errors.WithStack(&errs.IndexError{Axis: rank, Index: len(specs), Size: rank,
			Message: "Slice given more ranges than the tensor has axes"})
	}
	dimensions := slices.Clone(t.shape.Dimensions)
	strides := slices.Clone(t.strides)
	offset := t.offset
	for axis, spec := range specs {
		dim := dimensions[axis]
		step := spec.StrideValue
		if step == 0 {
			step = 1
		}
		var start, end int
		switch {
		case spec.Full && step > 0:
			start, end = 0, dim
		case spec.Full:
			start, end = dim-1, -1
		default:
			if start, err = normalizeBound(axis, spec.Start, dim); err != nil {
				return nil, err
			}
			switch {
			case spec.NoEnd && step > 0:
				end = dim
			case spec.NoEnd:
				end = -1
			default:
				if end, err = normalizeBound(axis, spec.End, dim); err != nil {
					return nil, err
				}
			}
		}
		count := 0
		if step > 0 && end > start {
			count = (end - start + step - 1) / step
		} else if step < 0 && start > end {
			if start >= dim {
				return nil, errs.NewIndexError(axis, spec.Start, dim)
			}
			count = (start - end - step - 1) / -step
		}
		if count > 0 {
			offset += start * strides[axis]
		}
		dimensions[axis] = count
		strides[axis] *= step
	}
	return t.derive(shapes.Make(t.shape.DType, dimensions...), strides, offset)
}

// MustSlice is like Slice, but panics on error.
func (t *Tensor) MustSlice(specs ...SliceAxisSpec) *Tensor {
	return panicOnErr1(t.Slice(specs...))
}

// Index returns a view of the element(s) at the given indices of the leading axes, dropping those axes.
// So for a tensor shaped [5, 3, 2], Index(1) is shaped [3, 2], and Index(1, 0, 1) is a scalar.
//
// Indices can be negative, counting from the end of the axis. It returns an IndexError for indices out of
// [-dim, dim) or if more indices than axes are given.
func (t *Tensor) Index(indices ...int) (*Tensor, error) {
	if err := t.CheckValid(); err != nil {
		return nil, err
	}
	if len(indices) > t.Rank() {
		return nil, errors.WithStack(&errs.IndexError{Axis: t.Rank(), Index: len(indices), Size: t.Rank(),
			Message: "Index given more indices than the tensor has axes"})
	}
	offset := t.offset
	for axis, idx := range indices {
		dim := t.shape.Dimensions[axis]
		adjusted := idx
		if adjusted < 0 {
			adjusted += dim
		}
		if adjusted < 0 || adjusted >= dim {
			return nil, errs.NewIndexError(axis, idx, dim)
		}
		offset += adjusted * t.strides[axis]
	}
	numIndices := len(indices)
	return t.derive(shapes.Make(t.shape.DType, t.shape.Dimensions[numIndices:]...),
		slices.Clone(t.strides[numIndices:]), offset)
}

// MustIndex is like Index, but panics on error.
func (t *Tensor) MustIndex(indices ...int) *Tensor {
	return panicOnErr1(t.Index(indices...))
}

// Transpose returns a view with the axes permuted: axis ii of the result is axis permutation[ii] of t.
// If no permutation is given, the axes are reversed.
//
// Negative axes count from the end. It returns an IndexError for axes out of range, and a ShapeError if
// permutation is not a permutation of the axes.
func (t *Tensor) Transpose(permutation ...int) (*Tensor, error) {
	if err := t.CheckValid(); err != nil {
		return nil, err
	}
	rank := t.Rank()
	if len(permutation) == 0 {
		permutation = make([]int, rank)
		for axis := range rank {
			permutation[axis] = rank - 1 - axis
		}
	}
	if len(permutation) != rank {
		return nil, errs.NewShapeError("Transpose", "permutation %v has %d axes, but tensor has rank %d",
			permutation, len(permutation), rank)
	}
	axes, err := shapes.NormalizeAxes("Transpose", permutation, rank)
	if err != nil {
		return nil, err
	}
	dimensions := make([]int, rank)
	strides := make([]int, rank)
	for ii, axis := range axes {
		dimensions[ii] = t.shape.Dimensions[axis]
		strides[ii] = t.strides[axis]
	}
	return t.derive(shapes.Make(t.shape.DType, dimensions...), strides, t.offset)
}

// MustTranspose is like Transpose, but panics on error.
func (t *Tensor) MustTranspose(permutation ...int) *Tensor {
	return panicOnErr1(t.Transpose(permutation...))
}

// T returns the view with the axes reversed, see Transpose.
func (t *Tensor) T() (*Tensor, error) {
	return t.Transpose()
}

// SwapAxes returns a view with the two axes swapped.
func (t *Tensor) SwapAxes(axisA, axisB int) (*Tensor, error) {
	if err := t.CheckValid(); err != nil {
		return nil, err
	}
	rank := t.Rank()
	var err error
	if axisA, err = shapes.NormalizeAxis("SwapAxes", axisA, rank); err != nil {
		return nil, err
	}
	if axisB, err = shapes.NormalizeAxis("SwapAxes", axisB, rank); err != nil {
		return nil, err
	}
	permutation := make([]int, rank)
	for axis := range rank {
		permutation[axis] = axis
	}
	permutation[axisA], permutation[axisB] = axisB, axisA
	return t.Transpose(permutation...)
}

// Reshape returns a tensor with the same elements, in row-major order, and the new dimensions. One of the
// dimensions can be -1, in which case it is inferred from the size.
//
// If the view is contiguous, the result is a view of the same buffer, with canonical strides. Otherwise, the
// view is first copied to a new contiguous buffer (one call to the backend), and the result is a view of the copy.
//
// It returns a ShapeError if the number of elements is different.
func (t *Tensor) Reshape(dimensions ...int) (*Tensor, error) {
	if err := t.CheckValid(); err != nil {
		return nil, err
	}
	newDimensions, err := shapes.ResolveReshapeDims(t.Size(), dimensions)
	if err != nil {
		return nil, err
	}
	newShape := shapes.Make(t.shape.DType, newDimensions...)
	if shapes.CanReshapeInPlace(t.shape.Dimensions, t.strides, newDimensions) {
		return t.derive(newShape, newShape.Strides(), t.offset)
	}
	contiguous, err := t.Copy()
	if err != nil {
		return nil, errors.WithMessagef(err, "while materializing %s for Reshape", t.Layout())
	}
	reshaped, err := contiguous.derive(newShape, newShape.Strides(), contiguous.offset)
	if finalizeErr := contiguous.Finalize(); err == nil {
		err = finalizeErr
	}
	return reshaped, err
}

// MustReshape is like Reshape, but panics on error.
func (t *Tensor) MustReshape(dimensions ...int) *Tensor {
	return panicOnErr1(t.Reshape(dimensions...))
}

// Flatten returns the tensor reshaped to one axis, see Reshape.
func (t *Tensor) Flatten() (*Tensor, error) {
	return t.Reshape(-1)
}

// Squeeze returns a view without the given axes, which must have dimension 1. If no axes are given, all axes
// with dimension 1 are removed.
func (t *Tensor) Squeeze(axes ...int) (*Tensor, error) {
	if err := t.CheckValid(); err != nil {
		return nil, err
	}
	rank := t.Rank()
	remove := make([]bool, rank)
	if len(axes) == 0 {
		for axis, dim := range t.shape.Dimensions {
			remove[axis] = dim == 1
		}
	} else {
		normalized, err := shapes.NormalizeAxes("Squeeze", axes, rank)
		if err != nil {
			return nil, err
		}
		for _, axis := range normalized {
			if t.shape.Dimensions[axis] != 1 {
				return nil, errs.NewShapeError("Squeeze", "cannot squeeze axis %d of %s, its dimension is not 1",
					axis, t.shape)
			}
			remove[axis] = true
		}
	}
	dimensions := make([]int, 0, rank)
	strides := make([]int, 0, rank)
	for axis, dim := range t.shape.Dimensions {
		if !remove[axis] {
			dimensions = append(dimensions, dim)
			strides = append(strides, t.strides[axis])
		}
	}
	return t.derive(shapes.Make(t.shape.DType, dimensions...), strides, t.offset)
}

// ExpandDims returns a view with new axes of dimension 1 inserted. The axes refer to positions in the result,
// and can be negative, counting from the end of the result.
//
// Example: for t shaped [3, 4], ExpandDims(0, -1) is shaped [1, 3, 4, 1].
func (t *Tensor) ExpandDims(axes ...int) (*Tensor, error) {
	if err := t.CheckValid(); err != nil {
		return nil, err
	}
	outRank := t.Rank() + len(axes)
	normalized, err := shapes.NormalizeAxes("ExpandDims", axes, outRank)
	if err != nil {
		return nil, err
	}
	inserted := make([]bool, outRank)
	for _, axis := range normalized {
		inserted[axis] = true
	}
	dimensions := make([]int, outRank)
	strides := make([]int, outRank)
	source := t.Rank() - 1
	nextStride := 1
	for axis := outRank - 1; axis >= 0; axis-- {
		if inserted[axis] {
			dimensions[axis], strides[axis] = 1, nextStride
			continue
		}
		dimensions[axis], strides[axis] = t.shape.Dimensions[source], t.strides[source]
		nextStride = t.strides[source] * t.shape.Dimensions[source]
		source--
	}
	return t.derive(shapes.Make(t.shape.DType, dimensions...), strides, t.offset)
}

// BroadcastTo returns a read-only view of the tensor expanded to the given dimensions, following the
// broadcasting rules: axes of dimension 1 are stretched and new leading axes are added, all with stride 0.
//
// It returns a BroadcastError if the tensor can't be broadcast to the dimensions.
func (t *Tensor) BroadcastTo(dimensions ...int) (*Tensor, error) {
	if err := t.CheckValid(); err != nil {
		return nil, err
	}
	if err := shapes.CheckDimensions("BroadcastTo", dimensions...); err != nil {
		return nil, err
	}
	strides, err := shapes.BroadcastStrides(t.shape.Dimensions, t.strides, dimensions)
	if err != nil {
		return nil, err
	}
	return t.derive(shapes.Make(t.shape.DType, dimensions...), strides, t.offset)
}
