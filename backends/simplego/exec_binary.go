// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package simplego

import (
	vecmath "github.com/cwbudde/algo-vecmath"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/ndarray/backends"
	"github.com/gomlx/ndarray/pkg/core/shapes"
)

// This file implements binary operations.
//
// Both operands are read through their strides virtually broadcast to the output dimensions (stride 0 on the
// stretched axes), and converted to the promoted output dtype, so the kernels only see contiguous slices of
// the same length.

func init() {
	for _, opType := range []backends.OpType{
		backends.OpTypeAdd, backends.OpTypeSub, backends.OpTypeMul, backends.OpTypeDiv,
		backends.OpTypeMax, backends.OpTypeMin,
	} {
		setExecutor(opType, execBinary)
	}
}

type binaryFn func(opType backends.OpType, lhs, rhs, output any)

var dispatchBinary = NewDTypeDispatcher[binaryFn]("Binary")

func execBinary(backend *Backend, opType backends.OpType, operands []stridedOperand, _ backends.Params, output *Buffer, outputShape shapes.Shape) {
	dtype := computeDType(outputShape.DType)
	lhs, tmpLhs := operands[0].gatherAs(backend, outputShape.Dimensions, dtype)
	defer backend.putBuffers(tmpLhs)
	rhs, tmpRhs := operands[1].gatherAs(backend, outputShape.Dimensions, dtype)
	defer backend.putBuffers(tmpRhs)
	if dtype == outputShape.DType {
		dispatchBinary.Get(dtype)(opType, lhs, rhs, output.flat)
		return
	}
	tmpOutput := backend.getBuffer(dtype, outputShape.Size())
	defer backend.putBuffer(tmpOutput)
	dispatchBinary.Get(dtype)(opType, lhs, rhs, tmpOutput.flat)
	convertFlat(tmpOutput.flat, output.flat)
}

func execBinaryGeneric[T PODNumericConstraints](opType backends.OpType, lhs, rhs, output any) {
	lhsFlat, rhsFlat, outputFlat := lhs.([]T), rhs.([]T), output.([]T)
	if execBinaryFloat64(opType, lhs, rhs, output) {
		return
	}
	switch opType {
	case backends.OpTypeAdd:
		for ii := range outputFlat {
			outputFlat[ii] = lhsFlat[ii] + rhsFlat[ii]
		}
	case backends.OpTypeSub:
		for ii := range outputFlat {
			outputFlat[ii] = lhsFlat[ii] - rhsFlat[ii]
		}
	case backends.OpTypeMul:
		for ii := range outputFlat {
			outputFlat[ii] = lhsFlat[ii] * rhsFlat[ii]
		}
	case backends.OpTypeDiv:
		// Integer division by zero panics: it is converted to an error by the caller.
		for ii := range outputFlat {
			outputFlat[ii] = lhsFlat[ii] / rhsFlat[ii]
		}
	case backends.OpTypeMax:
		for ii := range outputFlat {
			outputFlat[ii] = max(lhsFlat[ii], rhsFlat[ii])
		}
	case backends.OpTypeMin:
		for ii := range outputFlat {
			outputFlat[ii] = min(lhsFlat[ii], rhsFlat[ii])
		}
	default:
		exceptions.Panicf("binary operation %s not implemented", opType)
	}
}

// execBinaryFloat64 uses the vectorized block kernels of vecmath for Add and Mul of float64 values.
// It returns false if the operation or dtype is not covered.
func execBinaryFloat64(opType backends.OpType, lhs, rhs, output any) bool {
	outputFlat, ok := output.([]float64)
	if !ok || len(outputFlat) == 0 {
		return false
	}
	lhsFlat, rhsFlat := lhs.([]float64), rhs.([]float64)
	switch opType {
	case backends.OpTypeAdd:
		copy(outputFlat, lhsFlat)
		vecmath.AddBlockInPlace(outputFlat, rhsFlat)
	case backends.OpTypeMul:
		vecmath.MulBlock(outputFlat, lhsFlat, rhsFlat)
	default:
		return false
	}
	return true
}
