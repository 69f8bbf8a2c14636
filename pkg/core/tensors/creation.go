// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensors

import (
	"reflect"

	"github.com/gomlx/ndarray/backends"
	"github.com/gomlx/ndarray/pkg/core/dtypes"
	"github.com/gomlx/ndarray/pkg/core/errs"
	"github.com/gomlx/ndarray/pkg/core/gateway"
	"github.com/gomlx/ndarray/pkg/core/shapes"
	"github.com/pkg/errors"
)

// orDefault returns gw, or gateway.Default() if it is nil.
func orDefault(gw *gateway.Gateway) (*gateway.Gateway, error) {
	if gw != nil {
		return gw, nil
	}
	return gateway.Default()
}

// allocate validates the shape and allocates a root view for it.
func allocate(op string, gw *gateway.Gateway, shape shapes.Shape, zeroed bool) (*Tensor, error) {
	gw, err := orDefault(gw)
	if err != nil {
		return nil, err
	}
	if !shape.DType.IsSupported() {
		return nil, errs.NewDTypeError(op, []dtypes.DType{shape.DType}, "unsupported dtype")
	}
	if err = shapes.CheckDimensions(op, shape.Dimensions...); err != nil {
		return nil, err
	}
	buffer, err := gw.Alloc(shape.DType, shape.Size(), zeroed)
	if err != nil {
		return nil, err
	}
	return newRoot(gw, buffer, shape.Clone())
}

// Allocate returns a new zero-initialized tensor with the given shape.
func Allocate(gw *gateway.Gateway, shape shapes.Shape) (*Tensor, error) {
	return allocate("Allocate", gw, shape, true)
}

// Zeros returns a new tensor with the given dtype and dimensions, with all elements set to zero.
func Zeros(gw *gateway.Gateway, dtype dtypes.DType, dimensions ...int) (*Tensor, error) {
	return allocate("Zeros", gw, shapes.Shape{DType: dtype, Dimensions: dimensions}, true)
}

// MustZeros is like Zeros, but panics on error.
func MustZeros(gw *gateway.Gateway, dtype dtypes.DType, dimensions ...int) *Tensor {
	return panicOnErr1(Zeros(gw, dtype, dimensions...))
}

// Empty returns a new tensor with the given dtype and dimensions, whose contents are undefined.
func Empty(gw *gateway.Gateway, dtype dtypes.DType, dimensions ...int) (*Tensor, error) {
	return allocate("Empty", gw, shapes.Shape{DType: dtype, Dimensions: dimensions}, false)
}

// Full returns a new tensor with the given dimensions, with all elements set to value. The dtype is the one of
// value (a Go int is an Int64), use AsType to change it.
func Full(gw *gateway.Gateway, value any, dimensions ...int) (*Tensor, error) {
	dtype := dtypes.FromAny(value)
	return executeOn(gw, backends.OpTypeFill, nil, backends.Params{DType: dtype, Dimensions: dimensions, Scalar: value})
}

// Iota returns a new tensor with the given dtype and dimensions, whose elements are their row-major flat
// index: 0, 1, 2, ...
func Iota(gw *gateway.Gateway, dtype dtypes.DType, dimensions ...int) (*Tensor, error) {
	return executeOn(gw, backends.OpTypeIota, nil, backends.Params{DType: dtype, Dimensions: dimensions})
}

// MustIota is like Iota, but panics on error.
func MustIota(gw *gateway.Gateway, dtype dtypes.DType, dimensions ...int) *Tensor {
	return panicOnErr1(Iota(gw, dtype, dimensions...))
}

// ImportBytes returns a new tensor with a byte-exact copy of data, the raw elements of the shape in row-major
// order and in the native byte order of the platform.
//
// It returns a ShapeError if the length of data doesn't match the shape.
func ImportBytes(gw *gateway.Gateway, data []byte, shape shapes.Shape) (*Tensor, error) {
	gw, err := orDefault(gw)
	if err != nil {
		return nil, err
	}
	if !shape.DType.IsSupported() {
		return nil, errs.NewDTypeError("ImportBytes", []dtypes.DType{shape.DType}, "unsupported dtype")
	}
	if err = shapes.CheckDimensions("ImportBytes", shape.Dimensions...); err != nil {
		return nil, err
	}
	if want := shape.Size() * shape.DType.Size(); len(data) != want {
		return nil, errs.NewShapeError("ImportBytes", "shape %s requires %d bytes, got %d", shape, want, len(data))
	}
	buffer, err := gw.Import(shape.DType, shape.Size(), data)
	if err != nil {
		return nil, err
	}
	return newRoot(gw, buffer, shape.Clone())
}

// FromFlatData returns a new tensor with a copy of the flat data, the elements in row-major order, and the given
// dimensions. A flat []int is stored as Int64.
//
// It returns a ShapeError if the length of flat doesn't match the dimensions.
func FromFlatData[T dtypes.Supported](gw *gateway.Gateway, flat []T, dimensions ...int) (*Tensor, error) {
	if err := shapes.CheckDimensions("FromFlatData", dimensions...); err != nil {
		return nil, err
	}
	shape := shapes.Make(dtypes.FromGenericsType[T](), dimensions...)
	if len(flat) != shape.Size() {
		return nil, errs.NewShapeError("FromFlatData", "dimensions %v require %d elements, got %d",
			dimensions, shape.Size(), len(flat))
	}
	var data []byte
	if ints, ok := any(flat).([]int); ok {
		int64s := make([]int64, len(ints))
		for ii, value := range ints {
			int64s[ii] = int64(value)
		}
		data = flatBytes(int64s)
	} else {
		data = flatBytes(flat)
	}
	return ImportBytes(gw, data, shape)
}

// MustFromFlatData is like FromFlatData, but panics on error.
func MustFromFlatData[T dtypes.Supported](gw *gateway.Gateway, flat []T, dimensions ...int) *Tensor {
	return panicOnErr1(FromFlatData(gw, flat, dimensions...))
}

// FromValue returns a new tensor with a copy of value: a Go scalar, or a (possibly nested) regular slice of a
// supported type. Slices of rank > 1 must be regular, that is all the sub-slices must have the same shape.
//
// Example:
//
//	t, err := FromValue(gw, [][]float32{{1, 2}, {3, 5}, {7, 11}}) // Shape (Float32)[3 2]
func FromValue(gw *gateway.Gateway, value any) (*Tensor, error) {
	shape, err := shapes.FromAnyValue(value)
	if err != nil {
		return nil, err
	}
	flat := reflect.ValueOf(shape.DType.MakeSlice(shape.Size()))
	goType := shape.DType.GoType()
	flatIdx := 0
	var flatten func(v reflect.Value)
	flatten = func(v reflect.Value) {
		if v.Kind() != reflect.Slice {
			flat.Index(flatIdx).Set(v.Convert(goType))
			flatIdx++
			return
		}
		for ii := range v.Len() {
			flatten(v.Index(ii))
		}
	}
	flatten(reflect.ValueOf(value))
	if flatIdx != shape.Size() {
		return nil, errors.Errorf("FromValue: %d values found for shape %s, this is a bug", flatIdx, shape)
	}
	return ImportBytes(gw, flatBytes(flat.Interface()), shape)
}

// MustFromValue is like FromValue, but panics on error.
func MustFromValue(gw *gateway.Gateway, value any) *Tensor {
	return panicOnErr1(FromValue(gw, value))
}
