// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package dtypes

import (
	"github.com/gomlx/ndarray/pkg/core/errs"
)

// Promote returns the result dtype of a binary operation mixing the dtypes a and b.
//
// The rules are:
//
//   - Same dtype: itself. Bool with any other dtype: the other dtype.
//   - Two signed (or two unsigned) integers: the wider one.
//   - Signed Int(n) with unsigned Uint(m): Int(n) if m < n, otherwise Int(2m) if it fits in 64 bits.
//     Any signed integer mixed with Uint64 has no lossless common type and returns a DTypeError.
//   - Any integer with a float: the float.
//   - Two floats: the wider one (Float16 < Float32 < Float64).
//
// The result doesn't depend on the order of the arguments.
func Promote(a, b DType) (DType, error) {
	if !a.IsSupported() || !b.IsSupported() {
		return InvalidDType, errs.NewDTypeError("Promote", []DType{a, b}, "unsupported dtype")
	}
	if a == b {
		return a, nil
	}
	if a == Bool {
		return b, nil
	}
	if b == Bool {
		return a, nil
	}
	switch {
	case a.IsFloat() && b.IsFloat():
		return widest(a, b), nil
	case a.IsFloat():
		return a, nil
	case b.IsFloat():
		return b, nil
	case a.IsSigned() == b.IsSigned():
		return widest(a, b), nil
	}

	// Mixed signed and unsigned integers.
	signed, unsigned := a, b
	if a.IsUnsigned() {
		signed, unsigned = b, a
	}
	if unsigned.Bits() < signed.Bits() {
		return signed, nil
	}
	if unsigned == Uint64 {
		return InvalidDType, errs.NewDTypeError("Promote", []DType{a, b},
			"no integer dtype can represent all values of both %s and %s, convert one of them explicitly", signed, unsigned)
	}
	return signedOfBits(2 * unsigned.Bits()), nil
}

// PromoteAll folds Promote over all given dtypes.
//
// It returns a DTypeError if dtypes is empty or if any pair can't be promoted.
func PromoteAll(dtypes ...DType) (DType, error) {
	if len(dtypes) == 0 {
		return InvalidDType, errs.NewDTypeError[DType]("PromoteAll", nil, "at least one dtype required")
	}
	result := dtypes[0]
	for _, dtype := range dtypes[1:] {
		var err error
		result, err = Promote(result, dtype)
		if err != nil {
			return InvalidDType, err
		}
	}
	return result, nil
}

// RequireFloat returns a DTypeError if dtype is not a float, for operations (like Sqrt or Exp) that are only
// defined for floats.
func RequireFloat(op string, dtype DType) error {
	if !dtype.IsFloat() {
		return errs.NewDTypeError(op, []DType{dtype}, "operation is only defined for float dtypes")
	}
	return nil
}

// CanCast returns nil if an explicit conversion from one dtype to the other is allowed.
//
// All conversions between the supported dtypes are allowed, except from a float to Bool, since there is no
// unambiguous truth value for NaN.
func CanCast(from, to DType) error {
	if !from.IsSupported() || !to.IsSupported() {
		return errs.NewDTypeError("ConvertDType", []DType{from, to}, "unsupported dtype")
	}
	if from.IsFloat() && to == Bool {
		return errs.NewDTypeError("ConvertDType", []DType{from, to}, "conversion from float to Bool is not supported, "+
			"compare with zero instead")
	}
	return nil
}

// widest returns the dtype with more bits. Both must be of the same class.
func widest(a, b DType) DType {
	if a.Bits() >= b.Bits() {
		return a
	}
	return b
}

func signedOfBits(bits int) DType {
	switch bits {
	case 8:
		return Int8
	case 16:
		return Int16
	case 32:
		return Int32
	default:
		return Int64
	}
}
