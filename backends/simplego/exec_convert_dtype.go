// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package simplego

import (
	"reflect"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/ndarray/pkg/core/dtypes"
	"github.com/x448/float16"
)

// convertFlat converts all values of src to dst, both flat slices ([]T) of the same length, of any supported type.
//
// Bool is converted to 0 or 1, and numbers are converted to Bool by comparing to zero. Float16 values are converted
// through float32.
func convertFlat(src, dst any) {
	if reflect.TypeOf(src) == reflect.TypeOf(dst) {
		reflect.Copy(reflect.ValueOf(dst), reflect.ValueOf(src))
		return
	}
	switch srcFlat := src.(type) {
	case []bool:
		asUint8 := make([]uint8, len(srcFlat))
		for idx, value := range srcFlat {
			if value {
				asUint8[idx] = 1
			}
		}
		convertPODFlat(asUint8, dst)
	case []float16.Float16:
		asFloat32 := make([]float32, len(srcFlat))
		for idx, value := range srcFlat {
			asFloat32[idx] = value.Float32()
		}
		convertPODFlat(asFloat32, dst)
	case []int8:
		convertPODFlat(srcFlat, dst)
	case []int16:
		convertPODFlat(srcFlat, dst)
	case []int32:
		convertPODFlat(srcFlat, dst)
	case []int64:
		convertPODFlat(srcFlat, dst)
	case []uint8:
		convertPODFlat(srcFlat, dst)
	case []uint16:
		convertPODFlat(srcFlat, dst)
	case []uint32:
		convertPODFlat(srcFlat, dst)
	case []uint64:
		convertPODFlat(srcFlat, dst)
	case []float32:
		convertPODFlat(srcFlat, dst)
	case []float64:
		convertPODFlat(srcFlat, dst)
	default:
		exceptions.Panicf("convertFlat: unsupported source type %T", src)
	}
}

func convertPODFlat[FromT PODNumericConstraints](src []FromT, dst any) {
	switch dstFlat := dst.(type) {
	case []bool:
		for idx, value := range src {
			dstFlat[idx] = value != 0
		}
	case []float16.Float16:
		for idx, value := range src {
			dstFlat[idx] = float16.Fromfloat32(float32(value))
		}
	case []int8:
		convertPOD(src, dstFlat)
	case []int16:
		convertPOD(src, dstFlat)
	case []int32:
		convertPOD(src, dstFlat)
	case []int64:
		convertPOD(src, dstFlat)
	case []uint8:
		convertPOD(src, dstFlat)
	case []uint16:
		convertPOD(src, dstFlat)
	case []uint32:
		convertPOD(src, dstFlat)
	case []uint64:
		convertPOD(src, dstFlat)
	case []float32:
		convertPOD(src, dstFlat)
	case []float64:
		convertPOD(src, dstFlat)
	default:
		exceptions.Panicf("convertFlat: unsupported target type %T", dst)
	}
}

func convertPOD[FromT, ToT PODNumericConstraints](src []FromT, dst []ToT) {
	for idx, value := range src {
		dst[idx] = ToT(value)
	}
}

// convertScalar converts a Go scalar (any supported type, including int) to the Go type of dtype.
func convertScalar(value any, dtype dtypes.DType) any {
	srcDType := dtypes.FromAny(value)
	src := srcDType.MakeSlice(1)
	reflect.ValueOf(src).Index(0).Set(reflect.ValueOf(value).Convert(srcDType.GoType()))
	dst := dtype.MakeSlice(1)
	convertFlat(src, dst)
	return reflect.ValueOf(dst).Index(0).Interface()
}
