// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensors

import (
	"runtime"

	"github.com/gomlx/ndarray/backends"
	"github.com/gomlx/ndarray/backends/shapeinference"
	"github.com/gomlx/ndarray/pkg/core/dtypes"
	"github.com/gomlx/ndarray/pkg/core/errs"
	"github.com/gomlx/ndarray/pkg/core/gateway"
	"github.com/gomlx/ndarray/pkg/core/shapes"
	"github.com/pkg/errors"
)

// Operations in this file are executed by the backend: each one crosses the gateway once, and returns a new
// root tensor, with its own buffer. Operands are passed with their strides, so transposed, sliced or broadcast
// views are never copied first.
//
// Shapes and dtypes are validated locally before crossing.

// execute runs the operation on the gateway of the operands, which must all share the same one.
func execute(op backends.OpType, operands []*Tensor, params backends.Params) (*Tensor, error) {
	var gw *gateway.Gateway
	for ii, operand := range operands {
		if err := operand.CheckValid(); err != nil {
			return nil, errors.WithMessagef(err, "operand #%d of %s", ii, op)
		}
		if gw == nil {
			gw = operand.handle.gateway
		} else if operand.handle.gateway != gw {
			return nil, errs.NewShapeError(op.String(), "operands are on different gateways (%s and %s)",
				gw, operand.handle.gateway)
		}
	}
	return executeOn(gw, op, operands, params)
}

// executeOn validates and executes the operation on the given gateway.
func executeOn(gw *gateway.Gateway, op backends.OpType, operands []*Tensor, params backends.Params) (*Tensor, error) {
	gw, err := orDefault(gw)
	if err != nil {
		return nil, err
	}
	operandShapes := make([]shapes.Shape, len(operands))
	backendOperands := make([]backends.Operand, len(operands))
	for ii, operand := range operands {
		operandShapes[ii] = operand.shape
		backendOperands[ii] = operand.operand()
	}
	if _, err = shapeinference.Infer(op, operandShapes, params); err != nil {
		return nil, err
	}
	result, err := gw.Execute(op, backendOperands, params)
	runtime.KeepAlive(operands)
	if err != nil {
		return nil, err
	}
	return newRoot(gw, result.Buffer, result.Shape)
}

// Copy returns an independent contiguous copy of the view, with its own buffer: a new root tensor.
func (t *Tensor) Copy() (*Tensor, error) {
	return execute(backends.OpTypeCopy, []*Tensor{t}, backends.Params{})
}

// MustCopy is like Copy, but panics on error.
func (t *Tensor) MustCopy() *Tensor {
	return panicOnErr1(t.Copy())
}

// AsType returns a copy of the tensor converted to dtype.
//
// Conversions between all dtypes are allowed, except from floats to Bool (a DTypeError). Bool converts to 0 or 1,
// and integers convert to Bool by comparing to zero.
func (t *Tensor) AsType(dtype dtypes.DType) (*Tensor, error) {
	return execute(backends.OpTypeConvertDType, []*Tensor{t}, backends.Params{DType: dtype})
}

func unaryOp(op backends.OpType, x *Tensor) (*Tensor, error) {
	return execute(op, []*Tensor{x}, backends.Params{})
}

// Neg returns -x, element-wise. Not defined for Bool.
func Neg(x *Tensor) (*Tensor, error) { return unaryOp(backends.OpTypeNeg, x) }

// Abs returns |x|, element-wise. Not defined for Bool.
func Abs(x *Tensor) (*Tensor, error) { return unaryOp(backends.OpTypeAbs, x) }

// Sqrt returns the square root of x, element-wise. Only defined for floats.
func Sqrt(x *Tensor) (*Tensor, error) { return unaryOp(backends.OpTypeSqrt, x) }

// Exp returns e^x, element-wise. Only defined for floats.
func Exp(x *Tensor) (*Tensor, error) { return unaryOp(backends.OpTypeExp, x) }

// Log returns the natural logarithm of x, element-wise. Only defined for floats.
func Log(x *Tensor) (*Tensor, error) { return unaryOp(backends.OpTypeLog, x) }

// Sin returns the sine of x, element-wise. Only defined for floats.
func Sin(x *Tensor) (*Tensor, error) { return unaryOp(backends.OpTypeSin, x) }

// Cos returns the cosine of x, element-wise. Only defined for floats.
func Cos(x *Tensor) (*Tensor, error) { return unaryOp(backends.OpTypeCos, x) }

// Tanh returns the hyperbolic tangent of x, element-wise. Only defined for floats.
func Tanh(x *Tensor) (*Tensor, error) { return unaryOp(backends.OpTypeTanh, x) }

func binaryOp(op backends.OpType, lhs, rhs *Tensor) (*Tensor, error) {
	return execute(op, []*Tensor{lhs, rhs}, backends.Params{})
}

// Add returns lhs + rhs, element-wise.
//
// Operands are broadcast to a common shape (see shapes.BroadcastDimensions), and promoted to a common dtype
// (see dtypes.Promote). This holds for all binary element-wise operations.
func Add(lhs, rhs *Tensor) (*Tensor, error) { return binaryOp(backends.OpTypeAdd, lhs, rhs) }

// Sub returns lhs - rhs, element-wise.
func Sub(lhs, rhs *Tensor) (*Tensor, error) { return binaryOp(backends.OpTypeSub, lhs, rhs) }

// Mul returns lhs * rhs, element-wise.
func Mul(lhs, rhs *Tensor) (*Tensor, error) { return binaryOp(backends.OpTypeMul, lhs, rhs) }

// Div returns lhs / rhs, element-wise. Integer division by zero fails with an InternalFault.
func Div(lhs, rhs *Tensor) (*Tensor, error) { return binaryOp(backends.OpTypeDiv, lhs, rhs) }

// Max returns the element-wise maximum of lhs and rhs.
func Max(lhs, rhs *Tensor) (*Tensor, error) { return binaryOp(backends.OpTypeMax, lhs, rhs) }

// Min returns the element-wise minimum of lhs and rhs.
func Min(lhs, rhs *Tensor) (*Tensor, error) { return binaryOp(backends.OpTypeMin, lhs, rhs) }

// MatMul returns the matrix multiplication of lhs shaped [m, k] by rhs shaped [k, n], shaped [m, n].
// Operands are promoted to a common dtype.
func MatMul(lhs, rhs *Tensor) (*Tensor, error) { return binaryOp(backends.OpTypeMatMul, lhs, rhs) }

// ReduceSum returns the sum of the elements of x over the given axes, which are removed from the result.
// If no axes are given, all axes are reduced, and the result is a scalar.
func ReduceSum(x *Tensor, axes ...int) (*Tensor, error) {
	return execute(backends.OpTypeReduceSum, []*Tensor{x}, backends.Params{Axes: axes})
}

// ReduceMax returns the maximum of the elements of x over the given axes, see ReduceSum.
// It returns a ShapeError if a reduced axis has dimension 0.
func ReduceMax(x *Tensor, axes ...int) (*Tensor, error) {
	return execute(backends.OpTypeReduceMax, []*Tensor{x}, backends.Params{Axes: axes})
}

// StatOption configures the statistical reductions Mean, Variance and Std.
type StatOption func(params *backends.Params)

// WithAxes sets the axes to reduce. By default, all axes are reduced.
func WithAxes(axes ...int) StatOption {
	return func(params *backends.Params) { params.Axes = axes }
}

// WithDType sets the dtype of the result, which must be a float. By default, the result is Float64.
func WithDType(dtype dtypes.DType) StatOption {
	return func(params *backends.Params) { params.DType = dtype }
}

// WithDDoF sets the "delta degrees of freedom" of Variance and Std: the divisor used is N - ddof, where N is the
// number of elements reduced. The default is 0 (population variance). If N - ddof <= 0 the result is NaN.
func WithDDoF(ddof int) StatOption {
	return func(params *backends.Params) { params.DDoF = ddof }
}

func statisticalOp(op backends.OpType, x *Tensor, options []StatOption) (*Tensor, error) {
	var params backends.Params
	for _, option := range options {
		option(&params)
	}
	return execute(op, []*Tensor{x}, params)
}

// Mean returns the mean of the elements of x over the reduced axes.
//
// Unlike other float operations, it accepts integer (and Bool) inputs: it is always computed in Float64, and the
// result is Float64, unless another float dtype is requested with WithDType. The mean of zero elements is NaN.
func Mean(x *Tensor, options ...StatOption) (*Tensor, error) {
	return statisticalOp(backends.OpTypeMean, x, options)
}

// Variance returns the variance of the elements of x over the reduced axes. See Mean and WithDDoF.
func Variance(x *Tensor, options ...StatOption) (*Tensor, error) {
	return statisticalOp(backends.OpTypeVariance, x, options)
}

// Std returns the standard deviation of the elements of x over the reduced axes. See Mean and WithDDoF.
func Std(x *Tensor, options ...StatOption) (*Tensor, error) {
	return statisticalOp(backends.OpTypeStd, x, options)
}
