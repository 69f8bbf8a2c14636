// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package dtypes

import (
	"reflect"

	"github.com/gomlx/ndarray/pkg/core/errs"
	"github.com/x448/float16"
)

// ConvertScalar converts a Go scalar of any supported type (including int) to the Go type of dtype.
//
// The conversion follows CanCast: Bool converts to 0 or 1, numbers convert to Bool by comparing to zero, and
// floats can't be converted to Bool. It returns a DTypeError for unsupported values.
func ConvertScalar(value any, dtype DType) (any, error) {
	from := FromAny(value)
	if from == InvalidDType {
		return nil, errs.NewDTypeError("ConvertScalar", []DType{dtype}, "value of type %T is not a supported scalar", value)
	}
	if err := CanCast(from, dtype); err != nil {
		return nil, err
	}
	v := reflect.ValueOf(value)
	switch from {
	case Bool:
		var asUint8 uint8
		if v.Bool() {
			asUint8 = 1
		}
		v = reflect.ValueOf(asUint8)
	case Float16:
		v = reflect.ValueOf(v.Convert(float16Type).Interface().(float16.Float16).Float32())
	}
	switch dtype {
	case Bool:
		return !v.IsZero(), nil
	case Float16:
		return float16.Fromfloat32(float32(v.Convert(float64Type).Float())), nil
	}
	return v.Convert(dtype.GoType()).Interface(), nil
}
