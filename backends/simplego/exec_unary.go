// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package simplego

import (
	"math"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/ndarray/backends"
	"github.com/gomlx/ndarray/pkg/core/shapes"
)

func init() {
	for _, opType := range []backends.OpType{
		backends.OpTypeNeg, backends.OpTypeAbs, backends.OpTypeSqrt, backends.OpTypeExp, backends.OpTypeLog,
		backends.OpTypeSin, backends.OpTypeCos, backends.OpTypeTanh,
	} {
		setExecutor(opType, execUnary)
	}
}

type unaryFn func(opType backends.OpType, input, output any)

var dispatchUnary = NewDTypeDispatcher[unaryFn]("Unary")

// execUnary gathers the operand and applies the element-wise operation. Float16 is computed as float32.
func execUnary(backend *Backend, opType backends.OpType, operands []stridedOperand, _ backends.Params, output *Buffer, outputShape shapes.Shape) {
	operand := operands[0]
	dtype := computeDType(outputShape.DType)
	input, tmpInput := operand.gatherAs(backend, outputShape.Dimensions, dtype)
	defer backend.putBuffers(tmpInput)
	if dtype == outputShape.DType {
		dispatchUnary.Get(dtype)(opType, input, output.flat)
		return
	}
	tmpOutput := backend.getBuffer(dtype, outputShape.Size())
	defer backend.putBuffer(tmpOutput)
	dispatchUnary.Get(dtype)(opType, input, tmpOutput.flat)
	convertFlat(tmpOutput.flat, output.flat)
}

func execUnaryGeneric[T PODNumericConstraints](opType backends.OpType, input, output any) {
	inputFlat, outputFlat := input.([]T), output.([]T)
	switch opType {
	case backends.OpTypeNeg:
		for ii, value := range inputFlat {
			outputFlat[ii] = -value
		}
	case backends.OpTypeAbs:
		for ii, value := range inputFlat {
			if value < 0 {
				value = -value
			}
			outputFlat[ii] = value
		}
	case backends.OpTypeSqrt:
		applyFloat64(inputFlat, outputFlat, math.Sqrt)
	case backends.OpTypeExp:
		applyFloat64(inputFlat, outputFlat, math.Exp)
	case backends.OpTypeLog:
		applyFloat64(inputFlat, outputFlat, math.Log)
	case backends.OpTypeSin:
		applyFloat64(inputFlat, outputFlat, math.Sin)
	case backends.OpTypeCos:
		applyFloat64(inputFlat, outputFlat, math.Cos)
	case backends.OpTypeTanh:
		applyFloat64(inputFlat, outputFlat, math.Tanh)
	default:
		exceptions.Panicf("unary operation %s not implemented", opType)
	}
}

// applyFloat64 applies fn computing in float64.
func applyFloat64[T PODNumericConstraints](input, output []T, fn func(float64) float64) {
	for ii, value := range input {
		output[ii] = T(fn(float64(value)))
	}
}
