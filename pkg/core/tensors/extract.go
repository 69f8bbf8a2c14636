// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensors

import (
	"reflect"
	"runtime"
	"unsafe"

	"github.com/gomlx/ndarray/pkg/core/dtypes"
	"github.com/gomlx/ndarray/pkg/core/errs"
	"github.com/gomlx/ndarray/pkg/core/shapes"
	"github.com/pkg/errors"
)

// extractPath selects how the elements of a view are copied out of its buffer.
type extractPath int

const (
	// extractAuto uses extractSpan for contiguous views and extractStrided otherwise.
	extractAuto extractPath = iota

	// extractSpan copies the single span of the buffer addressed by a contiguous view.
	extractSpan

	// extractStrided visits the elements one at a time, in row-major order, following the strides.
	extractStrided
)

// ExtractContiguous returns a new flat Go slice ([]T for the dtype) with the elements of the view, in row-major
// order. Its length is exactly Size(): 1 for scalars and 0 if any axis has dimension 0.
//
// The result is an independent copy: it doesn't alias the buffer. See DirectFlatData to access the buffer itself.
func (t *Tensor) ExtractContiguous() (any, error) {
	return t.extractWith(extractAuto)
}

// MustExtractContiguous is like ExtractContiguous, but panics on error.
func (t *Tensor) MustExtractContiguous() any {
	return panicOnErr1(t.ExtractContiguous())
}

// extractWith implements ExtractContiguous with the given path selection. Both paths produce the same result.
func (t *Tensor) extractWith(path extractPath) (any, error) {
	if err := t.CheckValid(); err != nil {
		return nil, err
	}
	defer runtime.KeepAlive(t)
	size := t.shape.Size()
	flat := t.shape.DType.MakeSlice(size)
	if size == 0 {
		return flat, nil
	}
	if path == extractAuto {
		path = extractStrided
		if t.IsContiguous() {
			path = extractSpan
		}
	}
	if path == extractSpan && !t.IsContiguous() {
		return nil, errs.NewShapeError("ExtractContiguous", "view %s is not contiguous", t.Layout())
	}
	err := t.handle.gateway.Data(t.handle.buffer, func(src any) {
		if path == extractSpan {
			reflect.Copy(reflect.ValueOf(flat), reflect.ValueOf(src).Slice(t.offset, t.offset+size))
			return
		}
		getFlatFns(t.shape.DType).gather(flat, src, t.shape.Dimensions, t.strides, t.offset)
	})
	if err != nil {
		return nil, err
	}
	return flat, nil
}

// CopyFlat returns a copy of the elements of the tensor in row-major order, as a []T.
//
// It returns a DTypeError if T doesn't match the dtype of the tensor.
func CopyFlat[T dtypes.Supported](t *Tensor) ([]T, error) {
	if err := t.CheckValid(); err != nil {
		return nil, err
	}
	if want := dtypes.FromGenericsType[T](); want != t.DType() || t.DType().GoType() != reflect.TypeFor[T]() {
		return nil, errs.NewDTypeError("CopyFlat", []dtypes.DType{t.DType(), want},
			"tensor %s can't be copied to a []%s", t.shape, reflect.TypeFor[T]())
	}
	flat, err := t.ExtractContiguous()
	if err != nil {
		return nil, err
	}
	return flat.([]T), nil
}

// Bytes returns a copy of the raw bytes of the elements of the view, in row-major order and in the native
// byte order of the platform.
func (t *Tensor) Bytes() ([]byte, error) {
	flat, err := t.ExtractContiguous()
	if err != nil {
		return nil, err
	}
	return flatBytes(flat), nil
}

// flatBytes returns the bytes of a flat slice ([]T), without copying.
func flatBytes(flat any) []byte {
	v := reflect.ValueOf(flat)
	numBytes := v.Len() * int(v.Type().Elem().Size())
	if numBytes == 0 {
		return []byte{}
	}
	return unsafe.Slice((*byte)(v.UnsafePointer()), numBytes)
}

// ToValue returns the contents of the tensor as a Go value: a T for scalars, and nested slices ([]T, [][]T, ...)
// otherwise. It is the reverse of FromValue.
func (t *Tensor) ToValue() (any, error) {
	flat, err := t.ExtractContiguous()
	if err != nil {
		return nil, err
	}
	flatV := reflect.ValueOf(flat)
	if t.IsScalar() {
		return flatV.Index(0).Interface(), nil
	}
	return nestedValue(flatV, t.shape.Dimensions).Interface(), nil
}

// nestedValue splits the row-major flat slice in nested slices with the given dimensions.
func nestedValue(flat reflect.Value, dimensions []int) reflect.Value {
	if len(dimensions) == 1 {
		return flat
	}
	stride := shapes.SizeOf(dimensions[1:])
	sliceType := flat.Type()
	for range dimensions[1:] {
		sliceType = reflect.SliceOf(sliceType)
	}
	nested := reflect.MakeSlice(sliceType, dimensions[0], dimensions[0])
	for ii := range dimensions[0] {
		nested.Index(ii).Set(nestedValue(flat.Slice(ii*stride, (ii+1)*stride), dimensions[1:]))
	}
	return nested
}

// DirectFlatData calls accessFn with the flat slice ([]T for the dtype) of the whole buffer of the view -- not
// only the elements of the view: use Offset and Strides to locate them.
//
// The slice is the backend storage itself, not a copy: writes are visible to every view of the Handle. It must not
// be used after accessFn returns.
func (t *Tensor) DirectFlatData(accessFn func(flat any)) error {
	if err := t.CheckValid(); err != nil {
		return err
	}
	defer runtime.KeepAlive(t)
	if accessFn == nil {
		return errors.New("DirectFlatData given a nil accessFn")
	}
	return t.handle.gateway.Data(t.handle.buffer, accessFn)
}
