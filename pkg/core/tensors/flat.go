// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensors

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/ndarray/pkg/core/dtypes"
	"github.com/gomlx/ndarray/pkg/core/shapes"
	"github.com/x448/float16"
)

// flatFns are the typed loops over flat slices ([]T, passed as any) used to read and write strided views.
type flatFns struct {
	// gather copies the elements of the strided view of src to dst, in row-major order.
	gather func(dst, src any, dimensions, strides []int, offset int)

	// fill sets all the elements of the strided view of flat to value, which must be of type T.
	fill func(flat, value any, dimensions, strides []int, offset int)
}

var flatFnsPerDType = make(map[dtypes.DType]flatFns)

func registerFlatFns[T dtypes.Supported]() {
	flatFnsPerDType[dtypes.FromGenericsType[T]()] = flatFns{gather: gatherGeneric[T], fill: fillGeneric[T]}
}

func init() {
	registerFlatFns[bool]()
	registerFlatFns[int8]()
	registerFlatFns[int16]()
	registerFlatFns[int32]()
	registerFlatFns[int64]()
	registerFlatFns[uint8]()
	registerFlatFns[uint16]()
	registerFlatFns[uint32]()
	registerFlatFns[uint64]()
	registerFlatFns[float16.Float16]()
	registerFlatFns[float32]()
	registerFlatFns[float64]()
}

func getFlatFns(dtype dtypes.DType) flatFns {
	fns, found := flatFnsPerDType[dtype]
	if !found {
		exceptions.Panicf("tensors: dtype %s not supported", dtype)
	}
	return fns
}

func gatherGeneric[T dtypes.Supported](dst, src any, dimensions, strides []int, offset int) {
	dstFlat, srcFlat := dst.([]T), src.([]T)
	for flatIdx, pos := range shapes.Positions(dimensions, strides, offset) {
		dstFlat[flatIdx] = srcFlat[pos]
	}
}

func fillGeneric[T dtypes.Supported](flat, value any, dimensions, strides []int, offset int) {
	typedFlat, typedValue := flat.([]T), value.(T)
	for _, pos := range shapes.Positions(dimensions, strides, offset) {
		typedFlat[pos] = typedValue
	}
}
