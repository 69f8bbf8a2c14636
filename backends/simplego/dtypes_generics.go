// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package simplego

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/ndarray/pkg/core/dtypes"
	"github.com/x448/float16"
	"golang.org/x/exp/constraints"
)

// MaxDTypes is the upper limit of the dtype enum values the dispatchers can handle.
const MaxDTypes = 32

// DTypeDispatcher holds one instance of a generic kernel per dtype, all with the same signature FnT.
type DTypeDispatcher[FnT any] struct {
	Name  string
	fnMap [MaxDTypes]*FnT
}

// NewDTypeDispatcher creates a new dispatcher for a class of functions.
func NewDTypeDispatcher[FnT any](name string) *DTypeDispatcher[FnT] {
	return &DTypeDispatcher[FnT]{
		Name: name,
	}
}

// Get returns the function that matches the dtype. It panics if there is none.
func (d *DTypeDispatcher[FnT]) Get(dtype dtypes.DType) FnT {
	if dtype < 0 || dtype >= MaxDTypes || d.fnMap[dtype] == nil {
		exceptions.Panicf("dtype %s not supported by %s", dtype, d.Name)
	}
	return *d.fnMap[dtype]
}

// Register a function to handle a specific dtype.
// This overwrites any previous setting for the same dtype.
func (d *DTypeDispatcher[FnT]) Register(dtype dtypes.DType, fn FnT) {
	if dtype < 0 || dtype >= MaxDTypes {
		exceptions.Panicf("dtype %s not supported by %s", dtype, d.Name)
	}
	d.fnMap[dtype] = &fn
}

// SupportedTypesConstraints enumerates the types supported by SimpleGo.
type SupportedTypesConstraints interface {
	bool | int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64 | float16.Float16 | float32 | float64
}

// PODNumericConstraints are used for generics for the Golang pod (plain-old-data) types.
// Float16 is not included because it is a specialized type, not natively supported by Go: the kernels compute it
// as float32.
type PODNumericConstraints interface {
	constraints.Integer | constraints.Float
}

// PODFloatConstraints are the native Go float types.
type PODFloatConstraints interface {
	constraints.Float
}

// computeDType returns the dtype the kernels use to compute values of dtype: Float16 is computed as Float32,
// all others are computed natively.
func computeDType(dtype dtypes.DType) dtypes.DType {
	if dtype == dtypes.Float16 {
		return dtypes.Float32
	}
	return dtype
}

// registerSupported registers the kernels that work for all supported dtypes.
func registerSupported[T SupportedTypesConstraints](dtype dtypes.DType) {
	dispatchGather.Register(dtype, gatherGeneric[T])
	dispatchFill.Register(dtype, fillGeneric[T])
}

// registerNumeric registers the kernels that work for the (native) numeric dtypes.
func registerNumeric[T PODNumericConstraints](dtype dtypes.DType) {
	dispatchUnary.Register(dtype, execUnaryGeneric[T])
	dispatchBinary.Register(dtype, execBinaryGeneric[T])
	dispatchReduce.Register(dtype, execReduceGeneric[T])
	dispatchMatMul.Register(dtype, execMatMulGeneric[T])
	dispatchIota.Register(dtype, execIotaGeneric[T])
}

func init() {
	registerSupported[bool](dtypes.Bool)
	registerSupported[int8](dtypes.Int8)
	registerSupported[int16](dtypes.Int16)
	registerSupported[int32](dtypes.Int32)
	registerSupported[int64](dtypes.Int64)
	registerSupported[uint8](dtypes.Uint8)
	registerSupported[uint16](dtypes.Uint16)
	registerSupported[uint32](dtypes.Uint32)
	registerSupported[uint64](dtypes.Uint64)
	registerSupported[float16.Float16](dtypes.Float16)
	registerSupported[float32](dtypes.Float32)
	registerSupported[float64](dtypes.Float64)

	registerNumeric[int8](dtypes.Int8)
	registerNumeric[int16](dtypes.Int16)
	registerNumeric[int32](dtypes.Int32)
	registerNumeric[int64](dtypes.Int64)
	registerNumeric[uint8](dtypes.Uint8)
	registerNumeric[uint16](dtypes.Uint16)
	registerNumeric[uint32](dtypes.Uint32)
	registerNumeric[uint64](dtypes.Uint64)
	registerNumeric[float32](dtypes.Float32)
	registerNumeric[float64](dtypes.Float64)
}
