// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package backends

// OpType is an enum of all operations that can be executed by a Backend.
//
// Views (slices, transposes, reshapes, broadcasts) are not operations: they are resolved locally, and reach the
// backend only as the strided Operand descriptors of the operations below.
type OpType int

//go:generate go tool enumer -type=OpType -trimprefix=OpType -output=gen_optype_enumer.go optype.go

const (
	OpTypeInvalid OpType = iota

	// OpTypeCopy materializes its operand into a new contiguous (row-major) buffer.
	OpTypeCopy
	// OpTypeConvertDType copies its operand converting to Params.DType.
	OpTypeConvertDType
	// OpTypeFill creates a buffer of Params.Dimensions filled with Params.Scalar, converted to Params.DType.
	OpTypeFill
	// OpTypeIota creates a buffer of Params.Dimensions with values 0, 1, 2, ... in row-major order.
	OpTypeIota

	// Unary element-wise operations.

	OpTypeNeg
	OpTypeAbs
	OpTypeSqrt
	OpTypeExp
	OpTypeLog
	OpTypeSin
	OpTypeCos
	OpTypeTanh

	// Binary element-wise operations, with broadcasting and dtype promotion.

	OpTypeAdd
	OpTypeSub
	OpTypeMul
	OpTypeDiv
	OpTypeMax
	OpTypeMin

	// Reductions over Params.Axes (all axes if empty).

	OpTypeReduceSum
	OpTypeReduceMax

	// Statistical reductions: computed in Float64 regardless of the input dtype.

	OpTypeMean
	OpTypeVariance
	OpTypeStd

	// OpTypeMatMul is the matrix multiplication of two rank-2 operands.
	OpTypeMatMul

	// OpTypeLast should always be kept the last, it is used as a counter/marker for OpType.
	OpTypeLast
)

// NumOperands returns the number of operands the op takes.
func (op OpType) NumOperands() int {
	switch {
	case op == OpTypeFill || op == OpTypeIota:
		return 0
	case op.IsBinary() || op == OpTypeMatMul:
		return 2
	case op > OpTypeInvalid && op < OpTypeLast:
		return 1
	default:
		return -1
	}
}

// IsUnary returns whether op is one of the unary element-wise operations.
func (op OpType) IsUnary() bool {
	return op >= OpTypeNeg && op <= OpTypeTanh
}

// IsBinary returns whether op is one of the binary element-wise operations.
func (op OpType) IsBinary() bool {
	return op >= OpTypeAdd && op <= OpTypeMin
}

// IsReduction returns whether op is one of the reductions, statistical ones included.
func (op OpType) IsReduction() bool {
	return op >= OpTypeReduceSum && op <= OpTypeStd
}

// IsStatistical returns whether op is one of the statistical reductions (Mean, Variance, Std).
func (op OpType) IsStatistical() bool {
	return op >= OpTypeMean && op <= OpTypeStd
}
