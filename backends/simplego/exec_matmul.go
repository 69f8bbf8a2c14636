// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package simplego

import (
	vecmath "github.com/cwbudde/algo-vecmath"
	"github.com/gomlx/ndarray/backends"
	"github.com/gomlx/ndarray/internal/workerspool"
	"github.com/gomlx/ndarray/pkg/core/shapes"
)

func init() {
	setExecutor(backends.OpTypeMatMul, execMatMul)
}

// minMatMulRowsPerWorker is the minimum number of output rows computed by one worker.
const minMatMulRowsPerWorker = 8

type matMulFn func(pool *workerspool.Pool, lhs, rhs, output any, m, k, n int)

var dispatchMatMul = NewDTypeDispatcher[matMulFn]("MatMul")

// execMatMul implements [m, k] x [k, n] -> [m, n]. Rows of the output are computed in parallel.
func execMatMul(backend *Backend, _ backends.OpType, operands []stridedOperand, _ backends.Params, output *Buffer, outputShape shapes.Shape) {
	dtype := computeDType(outputShape.DType)
	lhs, tmpLhs := operands[0].gatherAs(backend, operands[0].shape.Dimensions, dtype)
	defer backend.putBuffers(tmpLhs)
	rhs, tmpRhs := operands[1].gatherAs(backend, operands[1].shape.Dimensions, dtype)
	defer backend.putBuffers(tmpRhs)
	m, k, n := operands[0].shape.Dimensions[0], operands[0].shape.Dimensions[1], operands[1].shape.Dimensions[1]
	if dtype == outputShape.DType {
		dispatchMatMul.Get(dtype)(backend.workers, lhs, rhs, output.flat, m, k, n)
		return
	}
	tmpOutput := backend.getBuffer(dtype, outputShape.Size())
	defer backend.putBuffer(tmpOutput)
	dispatchMatMul.Get(dtype)(backend.workers, lhs, rhs, tmpOutput.flat, m, k, n)
	convertFlat(tmpOutput.flat, output.flat)
}

func execMatMulGeneric[T PODNumericConstraints](pool *workerspool.Pool, lhs, rhs, output any, m, k, n int) {
	lhsFlat, rhsFlat, outputFlat := lhs.([]T), rhs.([]T), output.([]T)
	clear(outputFlat)
	if n == 0 {
		return
	}
	if execMatMulFloat64(pool, lhs, rhs, output, m, k, n) {
		return
	}
	pool.ParallelFor(m, minMatMulRowsPerWorker, func(start, end int) {
		for row := start; row < end; row++ {
			outputRow := outputFlat[row*n : (row+1)*n]
			for contracting := range k {
				value := lhsFlat[row*k+contracting]
				for col, rhsValue := range rhsFlat[contracting*n : (contracting+1)*n] {
					outputRow[col] += value * rhsValue
				}
			}
		}
	})
}

// execMatMulFloat64 accumulates each output row as a sum of scaled rows of rhs, with the vectorized block
// kernels of vecmath. It returns false if the values are not float64.
func execMatMulFloat64(pool *workerspool.Pool, lhs, rhs, output any, m, k, n int) bool {
	outputFlat, ok := output.([]float64)
	if !ok {
		return false
	}
	lhsFlat, rhsFlat := lhs.([]float64), rhs.([]float64)
	pool.ParallelFor(m, minMatMulRowsPerWorker, func(start, end int) {
		scaled := make([]float64, n)
		for row := start; row < end; row++ {
			outputRow := outputFlat[row*n : (row+1)*n]
			for contracting := range k {
				vecmath.ScaleBlock(scaled, rhsFlat[contracting*n:(contracting+1)*n], lhsFlat[row*k+contracting])
				vecmath.AddBlockInPlace(outputRow, scaled)
			}
		}
	})
	return true
}
