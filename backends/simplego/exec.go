// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package simplego

import (
	"slices"

	"github.com/gomlx/ndarray/backends"
	"github.com/gomlx/ndarray/backends/shapeinference"
	"github.com/gomlx/ndarray/pkg/core/dtypes"
	"github.com/gomlx/ndarray/pkg/core/shapes"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// executor is the signature of the functions that implement an OpType.
//
// The operands were already validated, and the output buffer is allocated with the shape inferred by shapeinference.
type executor func(backend *Backend, opType backends.OpType, operands []stridedOperand, params backends.Params, output *Buffer, outputShape shapes.Shape)

// executors maps each OpType to its executor, they are registered during initialization by the exec_*.go files.
var executors [backends.OpTypeLast]executor

// setExecutor registers the executor for opType.
func setExecutor(opType backends.OpType, fn executor) {
	executors[opType] = fn
}

// stridedOperand is a validated backends.Operand.
type stridedOperand struct {
	buffer  *Buffer
	shape   shapes.Shape
	strides []int
	offset  int
}

// gatherAs reads the operand, virtually broadcast to dimensions, as a contiguous flat slice of dtype.
// See Backend.gatherAs about the returned tmp buffer.
func (o *stridedOperand) gatherAs(backend *Backend, dimensions []int, dtype dtypes.DType) (flat any, tmp *Buffer) {
	strides := o.strides
	if !slices.Equal(dimensions, o.shape.Dimensions) {
		// Validated by shapeinference already.
		var err error
		strides, err = shapes.BroadcastStrides(o.shape.Dimensions, o.strides, dimensions)
		if err != nil {
			panic(err)
		}
	}
	return backend.gatherAs(o.buffer, dimensions, strides, o.offset, dtype)
}

// Execute implements backends.Backend.
//
// The output is a new buffer, with the result laid out contiguously in row-major order.
func (b *Backend) Execute(opType backends.OpType, operands []backends.Operand, params backends.Params) (backends.Result, error) {
	if err := b.checkFinalized(); err != nil {
		return backends.Result{}, err
	}
	if opType <= backends.OpTypeInvalid || opType >= backends.OpTypeLast || executors[opType] == nil {
		return backends.Result{}, errors.Errorf("backend %q: operation %s not implemented", BackendName, opType)
	}
	strided := make([]stridedOperand, len(operands))
	operandShapes := make([]shapes.Shape, len(operands))
	for ii, operand := range operands {
		var err error
		strided[ii], err = b.validateOperand(opType, ii, operand)
		if err != nil {
			return backends.Result{}, err
		}
		operandShapes[ii] = operand.Shape
	}
	outputShape, err := shapeinference.Infer(opType, operandShapes, params)
	if err != nil {
		return backends.Result{}, err
	}
	output, err := b.newAccountedBuffer(outputShape.DType, outputShape.Size())
	if err != nil {
		return backends.Result{}, err
	}
	if klog.V(3).Enabled() {
		klog.Infof("simplego.Execute(%s, %v) -> %s", opType, operands, outputShape)
	}
	defer func() {
		// Kernels only panic on bugs, or on integer division by zero: free the output before letting the
		// panic go up to the caller.
		if r := recover(); r != nil {
			_ = b.BufferFinalize(output)
			panic(r)
		}
	}()
	executors[opType](b, opType, strided, params, output, outputShape)
	return backends.Result{Buffer: output, Shape: outputShape}, nil
}

// validateOperand checks that the operand descriptor is consistent with its buffer: the dtypes match, and all
// positions addressed by the view are within the buffer.
func (b *Backend) validateOperand(opType backends.OpType, operandIdx int, operand backends.Operand) (stridedOperand, error) {
	buffer, err := b.castBuffer(opType.String(), operand.Buffer)
	if err != nil {
		return stridedOperand{}, errors.WithMessagef(err, "operand #%d", operandIdx)
	}
	if buffer.dtype != operand.Shape.DType {
		return stridedOperand{}, errors.Errorf("%s: operand #%d %s doesn't match its buffer dtype %s",
			opType, operandIdx, operand, buffer.dtype)
	}
	if len(operand.Strides) != operand.Shape.Rank() {
		return stridedOperand{}, errors.Errorf("%s: operand #%d %s has %d strides for rank %d",
			opType, operandIdx, operand, len(operand.Strides), operand.Shape.Rank())
	}
	if err = shapes.CheckDimensions(opType.String(), operand.Shape.Dimensions...); err != nil {
		return stridedOperand{}, err
	}
	if !operand.Shape.IsZeroSize() {
		lowest, highest := shapes.Extent(operand.Shape.Dimensions, operand.Strides, operand.Offset)
		if lowest < 0 || highest >= buffer.Len() {
			return stridedOperand{}, errors.Errorf("%s: operand #%d %s addresses positions [%d, %d] out of its buffer "+
				"of %d elements", opType, operandIdx, operand, lowest, highest, buffer.Len())
		}
	}
	return stridedOperand{
		buffer:  buffer,
		shape:   operand.Shape,
		strides: operand.Strides,
		offset:  operand.Offset,
	}, nil
}

func init() {
	setExecutor(backends.OpTypeCopy, execCopy)
	setExecutor(backends.OpTypeConvertDType, execConvertDType)
}

// execCopy materializes the operand into the contiguous output.
func execCopy(_ *Backend, _ backends.OpType, operands []stridedOperand, _ backends.Params, output *Buffer, _ shapes.Shape) {
	operand := operands[0]
	dispatchGather.Get(operand.buffer.dtype)(operand.buffer.flat, output.flat, operand.shape.Dimensions,
		operand.strides, operand.offset)
}

// execConvertDType materializes the operand converting it to the output dtype.
func execConvertDType(backend *Backend, _ backends.OpType, operands []stridedOperand, _ backends.Params, output *Buffer, _ shapes.Shape) {
	operand := operands[0]
	flat, tmp := operand.gatherAs(backend, operand.shape.Dimensions, operand.buffer.dtype)
	defer backend.putBuffers(tmp)
	convertFlat(flat, output.flat)
}
