// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensors

import (
	"reflect"
	"runtime"

	"github.com/gomlx/ndarray/pkg/core/dtypes"
	"github.com/gomlx/ndarray/pkg/core/errs"
	"github.com/gomlx/ndarray/pkg/core/shapes"
	"github.com/pkg/errors"
)

// position returns the position in the buffer of the element at the given indices, which must include one
// index per axis. Negative indices count from the end of the axis.
func (t *Tensor) position(op string, indices []int) (int, error) {
	if len(indices) != t.Rank() {
		return 0, errors.WithStack(&errs.IndexError{Axis: t.Rank(), Index: len(indices), Size: t.Rank(),
			Message: op + " requires one index per axis"})
	}
	normalized := make([]int, len(indices))
	for axis, idx := range indices {
		dim := t.shape.Dimensions[axis]
		normalized[axis] = idx
		if idx < 0 {
			normalized[axis] += dim
		}
		if normalized[axis] < 0 || normalized[axis] >= dim {
			return 0, errs.NewIndexError(axis, idx, dim)
		}
	}
	return shapes.FlatIndex(t.offset, t.strides, normalized), nil
}

// At returns the element at the given indices, as the Go type of the dtype. There must be one index per axis,
// and they can be negative, counting from the end of the axis.
func (t *Tensor) At(indices ...int) (any, error) {
	if err := t.CheckValid(); err != nil {
		return nil, err
	}
	defer runtime.KeepAlive(t)
	pos, err := t.position("At", indices)
	if err != nil {
		return nil, err
	}
	var value any
	err = t.handle.gateway.Data(t.handle.buffer, func(flat any) {
		value = reflect.ValueOf(flat).Index(pos).Interface()
	})
	return value, err
}

// At returns the element of the tensor at the given indices as a T, which must match the dtype of the tensor.
func At[T dtypes.Supported](t *Tensor, indices ...int) (T, error) {
	var zero T
	value, err := t.At(indices...)
	if err != nil {
		return zero, err
	}
	typed, ok := value.(T)
	if !ok {
		return zero, errs.NewDTypeError("At", []dtypes.DType{t.DType()}, "element of type %T requested as %T",
			value, zero)
	}
	return typed, nil
}

// checkWritable returns a ShapeError for views with broadcast axes.
func (t *Tensor) checkWritable(op string) error {
	if axis := t.BroadcastAxis(); axis >= 0 {
		return errs.NewShapeError(op, "view %s is read-only: axis %d is broadcast (stride 0)", t.Layout(), axis)
	}
	return nil
}

// Set writes value to the element at the given indices. The change is visible through all views of the same
// buffer that include that element.
//
// value can be any Go scalar convertible to the dtype (see dtypes.ConvertScalar). It returns a ShapeError if
// the view is read-only (see BroadcastTo).
func (t *Tensor) Set(value any, indices ...int) error {
	if err := t.CheckValid(); err != nil {
		return err
	}
	defer runtime.KeepAlive(t)
	if err := t.checkWritable("Set"); err != nil {
		return err
	}
	pos, err := t.position("Set", indices)
	if err != nil {
		return err
	}
	converted, err := dtypes.ConvertScalar(value, t.DType())
	if err != nil {
		return err
	}
	return t.handle.gateway.Data(t.handle.buffer, func(flat any) {
		reflect.ValueOf(flat).Index(pos).Set(reflect.ValueOf(converted))
	})
}

// Fill writes value to all elements of the view, in place. See Set.
//
// To create a new tensor filled with a value, use Full.
func (t *Tensor) Fill(value any) error {
	if err := t.CheckValid(); err != nil {
		return err
	}
	defer runtime.KeepAlive(t)
	if err := t.checkWritable("Fill"); err != nil {
		return err
	}
	converted, err := dtypes.ConvertScalar(value, t.DType())
	if err != nil {
		return err
	}
	if t.Size() == 0 {
		return nil
	}
	return t.handle.gateway.Data(t.handle.buffer, func(flat any) {
		getFlatFns(t.DType()).fill(flat, converted, t.shape.Dimensions, t.strides, t.offset)
	})
}
