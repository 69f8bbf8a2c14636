// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package shapeinference calculates the shape resulting from operations and validates its inputs.
//
// It is pure bookkeeping, it never touches buffers: it is used by the engine to validate requests before they
// cross to the backend (so a doomed request never allocates anything), and again by backends to plan their
// output buffers.
//
// All functions return the typed errors of package errs: ShapeError, BroadcastError, DTypeError and IndexError.
package shapeinference

import (
	"github.com/gomlx/ndarray/backends"
	"github.com/gomlx/ndarray/pkg/core/dtypes"
	"github.com/gomlx/ndarray/pkg/core/errs"
	"github.com/gomlx/ndarray/pkg/core/shapes"
	"github.com/gomlx/ndarray/pkg/support/sets"
)

var (
	// NumberOperations can take any type of number as input: integers or floats, but not booleans.
	//
	// Statistical reductions are not included: they accept booleans as well, computed as 0 and 1.
	NumberOperations = sets.MakeWith(
		backends.OpTypeAdd,
		backends.OpTypeSub,
		backends.OpTypeMul,
		backends.OpTypeDiv,
		backends.OpTypeMax,
		backends.OpTypeMin,

		// Notice Abs works for unsigned ints: it's just a trivial implementation.
		backends.OpTypeAbs,
		backends.OpTypeNeg,

		backends.OpTypeReduceSum,
		backends.OpTypeReduceMax,
		backends.OpTypeMatMul,
	)

	// FloatOperations operates only on floats.
	FloatOperations = sets.MakeWith(
		backends.OpTypeSqrt,
		backends.OpTypeExp,
		backends.OpTypeLog,
		backends.OpTypeSin,
		backends.OpTypeCos,
		backends.OpTypeTanh,
	)

	// StandardUnaryOperations include all operations that have a single operand as input, and the return shape is the
	// same as the input (so no reductions).
	StandardUnaryOperations = sets.MakeWith(
		backends.OpTypeNeg,
		backends.OpTypeAbs,
		backends.OpTypeSqrt,
		backends.OpTypeExp,
		backends.OpTypeLog,
		backends.OpTypeSin,
		backends.OpTypeCos,
		backends.OpTypeTanh,
	)

	// StandardBinaryOperations include all operations that have two operands usually named lhs (left-hand-side) and
	// rhs (right-hand-side), and whose output is the broadcast of both.
	StandardBinaryOperations = sets.MakeWith(
		backends.OpTypeAdd,
		backends.OpTypeSub,
		backends.OpTypeMul,
		backends.OpTypeDiv,
		backends.OpTypeMax,
		backends.OpTypeMin,
	)
)

// checkDType returns a DTypeError if dtype is not accepted by opType.
func checkDType(opType backends.OpType, dtypeList ...dtypes.DType) error {
	for _, dtype := range dtypeList {
		if !dtype.IsSupported() {
			return errs.NewDTypeError(opType.String(), dtypeList, "unsupported dtype")
		}
		if FloatOperations.Has(opType) {
			if err := dtypes.RequireFloat(opType.String(), dtype); err != nil {
				return err
			}
		}
		if NumberOperations.Has(opType) && dtype == dtypes.Bool {
			return errs.NewDTypeError(opType.String(), dtypeList, "operation not defined for booleans")
		}
	}
	return nil
}

// UnaryOp checks the operand of one of the StandardUnaryOperations, and returns the output shape (the same as
// the operand).
func UnaryOp(opType backends.OpType, operand shapes.Shape) (output shapes.Shape, err error) {
	if !StandardUnaryOperations.Has(opType) {
		return shapes.Invalid(), errs.NewShapeError(opType.String(),
			"operation is not in the StandardUnaryOperations set, cannot process it with UnaryOp")
	}
	if err = checkDType(opType, operand.DType); err != nil {
		return shapes.Invalid(), err
	}
	return operand.Clone(), nil
}

// BinaryOp returns the expected output shape for ops in the StandardBinaryOperations set.
//
// The dimensions are broadcast (see shapes.BroadcastDimensions) and the dtypes promoted (see dtypes.Promote).
// It returns a DTypeError if a dtype is invalid for the operation, and a BroadcastError if the dimensions are
// not compatible.
func BinaryOp(opType backends.OpType, lhsShape, rhsShape shapes.Shape) (output shapes.Shape, err error) {
	if !StandardBinaryOperations.Has(opType) {
		return shapes.Invalid(), errs.NewShapeError(opType.String(),
			"operation is not in the StandardBinaryOperations set, cannot process it with BinaryOp")
	}
	if err = checkDType(opType, lhsShape.DType, rhsShape.DType); err != nil {
		return shapes.Invalid(), err
	}
	output.DType, err = dtypes.Promote(lhsShape.DType, rhsShape.DType)
	if err != nil {
		return shapes.Invalid(), err
	}
	output.Dimensions, err = shapes.BroadcastDimensions(lhsShape.Dimensions, rhsShape.Dimensions)
	if err != nil {
		return shapes.Invalid(), err
	}
	return output, nil
}

// ReduceOp returns the output shape of ReduceSum and ReduceMax over the given axes, and the normalized axes.
// If axes is empty, all axes are reduced.
//
// ReduceMax has no identity value, so it returns a ShapeError if any of the reduced axes has dimension 0.
func ReduceOp(opType backends.OpType, operand shapes.Shape, axes []int) (output shapes.Shape, normalized []int, err error) {
	if opType != backends.OpTypeReduceSum && opType != backends.OpTypeReduceMax {
		return shapes.Invalid(), nil, errs.NewShapeError(opType.String(), "operation is not a reduction")
	}
	if err = checkDType(opType, operand.DType); err != nil {
		return shapes.Invalid(), nil, err
	}
	output, normalized, err = reducedShape(opType, operand, axes)
	if err != nil {
		return
	}
	if opType == backends.OpTypeReduceMax {
		for _, axis := range normalized {
			if operand.Dimensions[axis] == 0 {
				return shapes.Invalid(), nil, errs.NewShapeError(opType.String(),
					"cannot reduce axis %d of %s with dimension 0, there is no identity for max", axis, operand)
			}
		}
	}
	return
}

// StatisticalOp returns the output shape of Mean, Variance and Std over the given axes, and the normalized axes.
//
// Any integer or float input is accepted: the computation is done in Float64, and the output dtype is Float64
// unless resultDType is given (not InvalidDType), in which case it must be a float.
func StatisticalOp(opType backends.OpType, operand shapes.Shape, axes []int, resultDType dtypes.DType) (
	output shapes.Shape, normalized []int, err error) {
	if !opType.IsStatistical() {
		return shapes.Invalid(), nil, errs.NewShapeError(opType.String(), "operation is not a statistical reduction")
	}
	if err = checkDType(opType, operand.DType); err != nil {
		return shapes.Invalid(), nil, err
	}
	if resultDType == dtypes.InvalidDType {
		resultDType = dtypes.Float64
	}
	if !resultDType.IsFloat() {
		return shapes.Invalid(), nil, errs.NewDTypeError(opType.String(), []dtypes.DType{operand.DType, resultDType},
			"the result of a statistical reduction can only be narrowed to a float dtype")
	}
	output, normalized, err = reducedShape(opType, operand, axes)
	if err != nil {
		return
	}
	output.DType = resultDType
	return
}

func reducedShape(opType backends.OpType, operand shapes.Shape, axes []int) (output shapes.Shape, normalized []int, err error) {
	if len(axes) == 0 {
		normalized = make([]int, operand.Rank())
		for axis := range normalized {
			normalized[axis] = axis
		}
	} else {
		normalized, err = shapes.NormalizeAxes(opType.String(), axes, operand.Rank())
		if err != nil {
			return shapes.Invalid(), nil, err
		}
	}
	reduced := sets.MakeWith(normalized...)
	output = shapes.Make(operand.DType)
	for axis, dim := range operand.Dimensions {
		if !reduced.Has(axis) {
			output.Dimensions = append(output.Dimensions, dim)
		}
	}
	return output, sets.Sorted(reduced), nil
}

// MatMulOp returns the output shape of the matrix multiplication of two rank-2 operands, [m, k] x [k, n] -> [m, n].
func MatMulOp(lhsShape, rhsShape shapes.Shape) (output shapes.Shape, err error) {
	opName := backends.OpTypeMatMul.String()
	if err = checkDType(backends.OpTypeMatMul, lhsShape.DType, rhsShape.DType); err != nil {
		return shapes.Invalid(), err
	}
	if lhsShape.Rank() != 2 || rhsShape.Rank() != 2 {
		return shapes.Invalid(), errs.NewShapeError(opName, "operands must be rank 2 matrices, got %s and %s",
			lhsShape, rhsShape)
	}
	if lhsShape.Dimensions[1] != rhsShape.Dimensions[0] {
		return shapes.Invalid(), errs.NewShapeError(opName, "contracting dimensions don't match: %s x %s",
			lhsShape, rhsShape)
	}
	dtype, err := dtypes.Promote(lhsShape.DType, rhsShape.DType)
	if err != nil {
		return shapes.Invalid(), err
	}
	return shapes.Make(dtype, lhsShape.Dimensions[0], rhsShape.Dimensions[1]), nil
}

// ConvertDTypeOp returns the output shape of converting operand to dtype.
func ConvertDTypeOp(operand shapes.Shape, dtype dtypes.DType) (output shapes.Shape, err error) {
	if err = dtypes.CanCast(operand.DType, dtype); err != nil {
		return shapes.Invalid(), err
	}
	return operand.WithDType(dtype), nil
}

// FillOp returns the output shape of Fill and Iota.
//
// Iota is not defined for booleans, and Fill requires a scalar of a supported Go type.
func FillOp(opType backends.OpType, dtype dtypes.DType, dimensions []int, scalar any) (output shapes.Shape, err error) {
	if !dtype.IsSupported() {
		return shapes.Invalid(), errs.NewDTypeError(opType.String(), []dtypes.DType{dtype}, "unsupported dtype")
	}
	if err = shapes.CheckDimensions(opType.String(), dimensions...); err != nil {
		return shapes.Invalid(), err
	}
	switch opType {
	case backends.OpTypeIota:
		if dtype == dtypes.Bool {
			return shapes.Invalid(), errs.NewDTypeError(opType.String(), []dtypes.DType{dtype}, "operation not defined for booleans")
		}
	case backends.OpTypeFill:
		valueDType := dtypes.FromAny(scalar)
		if valueDType == dtypes.InvalidDType {
			return shapes.Invalid(), errs.NewDTypeError(opType.String(), []dtypes.DType{dtype},
				"fill value of type %T is not a supported scalar", scalar)
		}
		if err = dtypes.CanCast(valueDType, dtype); err != nil {
			return shapes.Invalid(), err
		}
	default:
		return shapes.Invalid(), errs.NewShapeError(opType.String(), "operation is not Fill or Iota")
	}
	return shapes.Make(dtype, dimensions...), nil
}

// Infer validates the operands and parameters of any operation and returns its output shape.
func Infer(opType backends.OpType, operands []shapes.Shape, params backends.Params) (shapes.Shape, error) {
	if want := opType.NumOperands(); want < 0 || len(operands) != want {
		return shapes.Invalid(), errs.NewShapeError(opType.String(), "invalid operation or number of operands (%d)",
			len(operands))
	}
	switch {
	case opType == backends.OpTypeCopy:
		return operands[0].Clone(), nil
	case opType == backends.OpTypeConvertDType:
		return ConvertDTypeOp(operands[0], params.DType)
	case opType == backends.OpTypeFill || opType == backends.OpTypeIota:
		return FillOp(opType, params.DType, params.Dimensions, params.Scalar)
	case opType.IsUnary():
		return UnaryOp(opType, operands[0])
	case opType.IsBinary():
		return BinaryOp(opType, operands[0], operands[1])
	case opType.IsStatistical():
		output, _, err := StatisticalOp(opType, operands[0], params.Axes, params.DType)
		return output, err
	case opType.IsReduction():
		output, _, err := ReduceOp(opType, operands[0], params.Axes)
		return output, err
	case opType == backends.OpTypeMatMul:
		return MatMulOp(operands[0], operands[1])
	}
	return shapes.Invalid(), errs.NewShapeError(opType.String(), "unknown operation")
}
