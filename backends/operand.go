// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package backends

import (
	"fmt"

	"github.com/gomlx/ndarray/pkg/core/dtypes"
	"github.com/gomlx/ndarray/pkg/core/shapes"
)

// Operand describes a strided view over a Buffer, used as input to Backend.Execute.
//
// The element at multi-index idx is stored at position Offset + Σ idx[i]*Strides[i] of the buffer.
// Strides are in elements, and may be negative (reversed axes) or zero (broadcast axes).
type Operand struct {
	Buffer  Buffer
	Shape   shapes.Shape
	Strides []int
	Offset  int
}

// String implements fmt.Stringer, it describes the shape and layout of the operand.
func (o Operand) String() string {
	return fmt.Sprintf("%s{strides=%v, offset=%d}", o.Shape, o.Strides, o.Offset)
}

// IsContiguous returns whether the operand addresses one row-major contiguous span of its buffer.
func (o Operand) IsContiguous() bool {
	return shapes.IsContiguous(o.Shape.Dimensions, o.Strides, shapes.RowMajor)
}

// Params holds the scalar parameters of an operation. Which fields are used depend on the OpType.
type Params struct {
	// Axes to reduce, for reductions. If empty, all axes are reduced.
	Axes []int

	// DType is the target dtype of ConvertDType, Fill and Iota, and the optional result dtype of the
	// statistical reductions (defaults to Float64 if InvalidDType).
	DType dtypes.DType

	// Dimensions of the output for Fill and Iota.
	Dimensions []int

	// Scalar value for Fill: any Go number or bool, converted to DType.
	Scalar any

	// DDoF is the "delta degrees of freedom" of Variance and Std: the divisor used is N - DDoF.
	DDoF int
}

// Result of a Backend.Execute: a new buffer (owned by the caller) and the shape of its contents, which are
// always laid out contiguously in row-major order.
type Result struct {
	Buffer Buffer
	Shape  shapes.Shape
}
