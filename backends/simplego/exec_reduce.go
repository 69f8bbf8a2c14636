// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package simplego

import (
	"math"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/ndarray/backends"
	"github.com/gomlx/ndarray/backends/shapeinference"
	"github.com/gomlx/ndarray/pkg/core/dtypes"
	"github.com/gomlx/ndarray/pkg/core/shapes"
	"github.com/gomlx/ndarray/pkg/support/sets"
	"gonum.org/v1/gonum/stat"
)

// Reductions gather their operand transposed so that the reduced axes are the last ones: then the values reduced
// into each output element are one contiguous group of the gathered flat slice.

func init() {
	setExecutor(backends.OpTypeReduceSum, execReduce)
	setExecutor(backends.OpTypeReduceMax, execReduce)
	setExecutor(backends.OpTypeMean, execStatistical)
	setExecutor(backends.OpTypeVariance, execStatistical)
	setExecutor(backends.OpTypeStd, execStatistical)
}

// gatherGroups gathers the operand as dtype with the reduced axes moved to the end. It returns the gathered values
// and the size of each group.
func (o *stridedOperand) gatherGroups(backend *Backend, reducedAxes []int, dtype dtypes.DType) (flat any, groupSize int, tmp *Buffer) {
	rank := o.shape.Rank()
	dimensions := make([]int, 0, rank)
	strides := make([]int, 0, rank)
	reduced := sets.MakeWith(reducedAxes...)
	for axis := range rank {
		if !reduced.Has(axis) {
			dimensions = append(dimensions, o.shape.Dimensions[axis])
			strides = append(strides, o.strides[axis])
		}
	}
	groupSize = 1
	for _, axis := range reducedAxes {
		dimensions = append(dimensions, o.shape.Dimensions[axis])
		strides = append(strides, o.strides[axis])
		groupSize *= o.shape.Dimensions[axis]
	}
	flat, tmp = backend.gatherAs(o.buffer, dimensions, strides, o.offset, dtype)
	return flat, groupSize, tmp
}

type reduceFn func(opType backends.OpType, input, output any, groupSize int)

var dispatchReduce = NewDTypeDispatcher[reduceFn]("Reduce")

func execReduce(backend *Backend, opType backends.OpType, operands []stridedOperand, params backends.Params, output *Buffer, outputShape shapes.Shape) {
	operand := operands[0]
	_, reducedAxes, err := shapeinference.ReduceOp(opType, operand.shape, params.Axes)
	if err != nil {
		panic(err)
	}
	dtype := computeDType(outputShape.DType)
	input, groupSize, tmpInput := operand.gatherGroups(backend, reducedAxes, dtype)
	defer backend.putBuffers(tmpInput)
	if dtype == outputShape.DType {
		dispatchReduce.Get(dtype)(opType, input, output.flat, groupSize)
		return
	}
	tmpOutput := backend.getBuffer(dtype, outputShape.Size())
	defer backend.putBuffer(tmpOutput)
	dispatchReduce.Get(dtype)(opType, input, tmpOutput.flat, groupSize)
	convertFlat(tmpOutput.flat, output.flat)
}

func execReduceGeneric[T PODNumericConstraints](opType backends.OpType, input, output any, groupSize int) {
	inputFlat, outputFlat := input.([]T), output.([]T)
	for outIdx := range outputFlat {
		group := inputFlat[outIdx*groupSize : (outIdx+1)*groupSize]
		switch opType {
		case backends.OpTypeReduceSum:
			var sum T
			for _, value := range group {
				sum += value
			}
			outputFlat[outIdx] = sum
		case backends.OpTypeReduceMax:
			// Groups are never empty for ReduceMax.
			result := group[0]
			for _, value := range group[1:] {
				result = max(result, value)
			}
			outputFlat[outIdx] = result
		default:
			exceptions.Panicf("reduce operation %s not implemented", opType)
		}
	}
}

// execStatistical implements Mean, Variance and Std: always computed in float64.
func execStatistical(backend *Backend, opType backends.OpType, operands []stridedOperand, params backends.Params, output *Buffer, outputShape shapes.Shape) {
	operand := operands[0]
	_, reducedAxes, err := shapeinference.StatisticalOp(opType, operand.shape, params.Axes, params.DType)
	if err != nil {
		panic(err)
	}
	input, groupSize, tmpInput := operand.gatherGroups(backend, reducedAxes, dtypes.Float64)
	defer backend.putBuffers(tmpInput)
	inputFlat := input.([]float64)

	outputFlat, ok := output.flat.([]float64)
	if !ok {
		tmpOutput := backend.getBuffer(dtypes.Float64, outputShape.Size())
		defer backend.putBuffer(tmpOutput)
		outputFlat = tmpOutput.flat.([]float64)
	}
	for outIdx := range outputFlat {
		group := inputFlat[outIdx*groupSize : (outIdx+1)*groupSize]
		switch opType {
		case backends.OpTypeMean:
			outputFlat[outIdx] = mean(group)
		case backends.OpTypeVariance:
			outputFlat[outIdx] = variance(group, params.DDoF)
		case backends.OpTypeStd:
			outputFlat[outIdx] = math.Sqrt(variance(group, params.DDoF))
		}
	}
	if !ok {
		convertFlat(outputFlat, output.flat)
	}
}

// mean of the values, NaN if there are none.
func mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return stat.Mean(values, nil)
}

// variance of the values with divisor N - ddof. It is NaN if the divisor is not positive.
func variance(values []float64, ddof int) float64 {
	n := len(values)
	if n == 0 || n-ddof <= 0 {
		return math.NaN()
	}
	return stat.PopVariance(values, nil) * float64(n) / float64(n-ddof)
}
