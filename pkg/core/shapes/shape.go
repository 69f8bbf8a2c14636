// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package shapes defines Shape and the shape, stride and broadcast arithmetic of strided N-dimensional arrays.
//
// Shape represents the dtype and the dimensions of an array. Strides (see Strides) describe how a multi-index maps
// to a flat position of a buffer, and are kept apart from the Shape, since many views with the same Shape can point
// to different positions of the same buffer.
//
// Nothing in this package allocates or touches array data: it is pure bookkeeping arithmetic.
//
// ## Glossary
//
//   - Rank: number of axes (dimensions) of an array.
//   - Axis: is the index of a dimension on a multidimensional array. Sometimes used
//     interchangeably with Dimension, but here we try to refer to a dimension index as "axis"
//     (plural axes), and its size as its dimension.
//   - Dimension: the size of a multi-dimensions array in one of its axes.
//   - Stride: the distance, in elements (not bytes), between two consecutive positions of an axis.
//   - Scalar: is a shape where there are no axes (or dimensions), only a single value
//     of the associated DType.
//
// Example: The multi-dimensional array `[][]int32{{0, 1, 2}, {3, 4, 5}}` if converted to an array
// would have shape `(Int32)[2 3]`. We say it has rank 2 (so 2 axes), axis 0 has
// dimension 2, and axis 1 has dimension 3. This shape could be created with
// `shapes.Make(dtypes.Int32, 2, 3)`, and its row-major strides are `[3 1]`.
package shapes

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/ndarray/pkg/core/dtypes"
	"github.com/gomlx/ndarray/pkg/core/errs"
	"github.com/pkg/errors"
)

// Shape represents the shape of an array: its dtype and dimensions.
//
// Use Make to create a new shape. See example in package shapes documentation.
type Shape struct {
	DType      dtypes.DType
	Dimensions []int
}

// Make returns a Shape structure filled with the values given.
//
// Axes with dimension 0 are valid, and yield a zero-size shape. It panics for negative dimensions,
// use CheckDimensions to validate user input first.
func Make(dtype dtypes.DType, dimensions ...int) Shape {
	s := Shape{Dimensions: slices.Clone(dimensions), DType: dtype}
	for _, dim := range dimensions {
		if dim < 0 {
			exceptions.Panicf("shapes.Make(%s): cannot create a shape with an axis with dimension < 0", s)
		}
	}
	return s
}

// CheckDimensions returns a ShapeError if any of the dimensions is negative.
func CheckDimensions(op string, dimensions ...int) error {
	for axis, dim := range dimensions {
		if dim < 0 {
			return errs.NewShapeError(op, "axis #%d has negative dimension %d in dimensions %v", axis, dim, dimensions)
		}
	}
	return nil
}

// Scalar returns a scalar Shape for the given type.
func Scalar[T dtypes.Supported]() Shape {
	return Shape{DType: dtypes.FromGenericsType[T]()}
}

// Invalid returns an invalid shape.
//
// Invalid().Ok() == false.
func Invalid() Shape {
	return Shape{DType: dtypes.InvalidDType}
}

// Ok returns whether this is a valid Shape. A "zero" shape, that is just instantiating it with Shape{} will be invalid.
func (s Shape) Ok() bool { return s.DType != dtypes.InvalidDType }

// Rank of the shape, that is, the number of dimensions.
func (s Shape) Rank() int { return len(s.Dimensions) }

// IsScalar returns whether the shape represents a scalar, that is there are no dimensions (rank==0).
func (s Shape) IsScalar() bool { return s.Ok() && s.Rank() == 0 }

// Dim returns the dimension of the given axis. axis can take negative numbers, in which
// case it counts as starting from the end -- so axis=-1 refers to the last axis.
// Like with a slice indexing, it panics for an out-of-bound axis.
func (s Shape) Dim(axis int) int {
	adjustedAxis := axis
	if adjustedAxis < 0 {
		adjustedAxis += s.Rank()
	}
	if adjustedAxis < 0 || adjustedAxis >= s.Rank() {
		exceptions.Panicf("Shape.Dim(%d) out-of-bounds for rank %d (shape=%s)", axis, s.Rank(), s)
	}
	return s.Dimensions[adjustedAxis]
}

// Shape returns a shallow copy of itself. It implements the HasShape interface.
func (s Shape) Shape() Shape { return s }

// HasShape is an interface for objects that have an associated Shape.
type HasShape interface {
	Shape() Shape
}

// String implements stringer, pretty-prints the shape.
func (s Shape) String() string {
	if s.Rank() == 0 {
		return fmt.Sprintf("(%s)", s.DType)
	}
	return fmt.Sprintf("(%s)%v", s.DType, s.Dimensions)
}

// Size returns the number of elements of DType are needed for this shape. It's the product of all dimensions.
//
// It is 1 for scalars and 0 if any axis has dimension 0.
func (s Shape) Size() int {
	return SizeOf(s.Dimensions)
}

// SizeOf returns the product of the dimensions, 1 for an empty list.
func SizeOf(dimensions []int) (size int) {
	size = 1
	for _, d := range dimensions {
		size *= d
	}
	return
}

// IsZeroSize returns whether any of the axes has dimension 0, in which case the shape holds no elements.
func (s Shape) IsZeroSize() bool {
	return slices.Contains(s.Dimensions, 0)
}

// Memory returns the memory used to store an array of the given shape, the same as the size in bytes.
func (s Shape) Memory() uintptr {
	return s.DType.Memory() * uintptr(s.Size())
}

// Equal compares two shapes for equality: dtype and dimensions are compared.
func (s Shape) Equal(s2 Shape) bool {
	if s.DType != s2.DType {
		return false
	}
	return s.EqualDimensions(s2)
}

// EqualDimensions compares two shapes for equality of dimensions. Dtypes can be different.
func (s Shape) EqualDimensions(s2 Shape) bool {
	if s.Rank() != s2.Rank() {
		return false
	}
	return slices.Equal(s.Dimensions, s2.Dimensions)
}

// Clone returns a new deep copy of the shape.
func (s Shape) Clone() (s2 Shape) {
	s2.DType = s.DType
	s2.Dimensions = slices.Clone(s.Dimensions)
	return
}

// WithDType returns a copy of the shape with the dtype changed.
func (s Shape) WithDType(dtype dtypes.DType) Shape {
	s2 := s.Clone()
	s2.DType = dtype
	return s2
}

// CheckDims checks that the shape has the given dimensions and rank. A value of -1 in
// dimensions means it can take any value and is not checked.
//
// It returns an error if the rank is different or if any of the dimensions don't match.
func (s Shape) CheckDims(dimensions ...int) error {
	if s.Rank() != len(dimensions) {
		return errors.Errorf("shape (%s) has incompatible rank %d (wanted %d)", s, s.Rank(), len(dimensions))
	}
	for ii, wantDim := range dimensions {
		if wantDim != -1 && s.Dimensions[ii] != wantDim {
			return errors.Errorf("shape (%s) axis %d has dimension %d, wanted %d (shape wanted=%v)", s, ii, s.Dimensions[ii], wantDim, dimensions)
		}
	}
	return nil
}

// Check that the shape has the given dtype, dimensions and rank. A value of -1 in
// dimensions means it can take any value and is not checked.
func (s Shape) Check(dtype dtypes.DType, dimensions ...int) error {
	if dtype != s.DType {
		return errors.Errorf("shape (%s) has incompatible dtype %s (wanted %s)", s, s.DType, dtype)
	}
	return s.CheckDims(dimensions...)
}

// FromAnyValue returns the shape of a Go scalar or of a (possibly nested) regular slice of a supported type.
//
// Empty slices are accepted and yield zero-dimension axes: the rank is taken from the nesting of the type,
// so `[][]float32{}` has shape `(Float32)[0 0]`.
// It returns a ShapeError for irregular (ragged) slices, and a DTypeError for unsupported element types.
func FromAnyValue(value any) (Shape, error) {
	if value == nil {
		return Invalid(), errs.NewShapeError("FromAnyValue", "nil value")
	}
	t := reflect.TypeOf(value)
	rank := 0
	baseType := t
	for baseType.Kind() == reflect.Slice {
		baseType = baseType.Elem()
		rank++
	}
	shape := Shape{DType: dtypes.FromGoType(baseType), Dimensions: make([]int, rank)}
	if shape.DType == dtypes.InvalidDType {
		return Invalid(), errs.NewDTypeError[dtypes.DType]("FromAnyValue", nil, "cannot convert Go type %s to an array", t)
	}
	v := reflect.ValueOf(value)
	for axis := range rank {
		shape.Dimensions[axis] = v.Len()
		if v.Len() == 0 {
			break
		}
		v = v.Index(0)
	}
	if err := checkRegular(reflect.ValueOf(value), shape.Dimensions); err != nil {
		return Invalid(), err
	}
	return shape, nil
}

// checkRegular verifies that every sub-slice of v has the dimensions given.
func checkRegular(v reflect.Value, dimensions []int) error {
	if len(dimensions) == 0 {
		return nil
	}
	if v.Len() != dimensions[0] {
		return errs.NewShapeError("FromAnyValue", "sub-slices have irregular shapes: found length %d, expected %d",
			v.Len(), dimensions[0])
	}
	for ii := range v.Len() {
		if err := checkRegular(v.Index(ii), dimensions[1:]); err != nil {
			return err
		}
	}
	return nil
}
