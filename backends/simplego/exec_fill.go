// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package simplego

import (
	"github.com/gomlx/ndarray/backends"
	"github.com/gomlx/ndarray/pkg/core/shapes"
)

func init() {
	setExecutor(backends.OpTypeFill, execFill)
	setExecutor(backends.OpTypeIota, execIota)
}

type fillFn func(value, output any)

var dispatchFill = NewDTypeDispatcher[fillFn]("Fill")

func execFill(_ *Backend, _ backends.OpType, _ []stridedOperand, params backends.Params, output *Buffer, outputShape shapes.Shape) {
	value := convertScalar(params.Scalar, outputShape.DType)
	dispatchFill.Get(outputShape.DType)(value, output.flat)
}

func fillGeneric[T SupportedTypesConstraints](value, output any) {
	typedValue, outputFlat := value.(T), output.([]T)
	for ii := range outputFlat {
		outputFlat[ii] = typedValue
	}
}

type iotaFn func(output any)

var dispatchIota = NewDTypeDispatcher[iotaFn]("Iota")

// execIota fills the output with its row-major flat index, 0, 1, 2, ...
func execIota(backend *Backend, _ backends.OpType, _ []stridedOperand, _ backends.Params, output *Buffer, outputShape shapes.Shape) {
	dtype := computeDType(outputShape.DType)
	if dtype == outputShape.DType {
		dispatchIota.Get(dtype)(output.flat)
		return
	}
	tmpOutput := backend.getBuffer(dtype, outputShape.Size())
	defer backend.putBuffer(tmpOutput)
	dispatchIota.Get(dtype)(tmpOutput.flat)
	convertFlat(tmpOutput.flat, output.flat)
}

func execIotaGeneric[T PODNumericConstraints](output any) {
	outputFlat := output.([]T)
	for ii := range outputFlat {
		outputFlat[ii] = T(ii)
	}
}
