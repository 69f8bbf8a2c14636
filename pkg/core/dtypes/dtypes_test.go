// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package dtypes

import (
	"reflect"
	"testing"

	"github.com/x448/float16"
)

func TestMapOfNames(t *testing.T) {
	if MapOfNames["Float16"] != Float16 {
		t.Fatalf("expected MapOfNames[\"Float16\"] to be Float16, got %v", MapOfNames["Float16"])
	}
	if MapOfNames["float16"] != Float16 {
		t.Fatalf("expected MapOfNames[\"float16\"] to be Float16, got %v", MapOfNames["float16"])
	}
	if MapOfNames["F16"] != Float16 {
		t.Fatalf("expected MapOfNames[\"F16\"] to be Float16, got %v", MapOfNames["F16"])
	}
	if MapOfNames["f16"] != Float16 {
		t.Fatalf("expected MapOfNames[\"f16\"] to be Float16, got %v", MapOfNames["f16"])
	}
	if MapOfNames["uint64"] != Uint64 {
		t.Fatalf("expected MapOfNames[\"uint64\"] to be Uint64, got %v", MapOfNames["uint64"])
	}
	for _, dtype := range All {
		if MapOfNames[dtype.String()] != dtype {
			t.Fatalf("expected MapOfNames[%q] to be %s", dtype.String(), dtype)
		}
	}
}

func TestFromAny(t *testing.T) {
	if FromAny(int64(7)) != Int64 {
		t.Fatalf("expected FromAny(int64(7)) to be Int64, got %v", FromAny(int64(7)))
	}
	if FromAny(float32(13)) != Float32 {
		t.Fatalf("expected FromAny(float32(13)) to be Float32, got %v", FromAny(float32(13)))
	}
	if FromAny(float16.Fromfloat32(3.0)) != Float16 {
		t.Fatalf("expected FromAny(float16.Fromfloat32(3.0)) to be Float16, got %v", FromAny(float16.Fromfloat32(3.0)))
	}
	if FromAny(complex64(1)) != InvalidDType {
		t.Fatalf("expected FromAny(complex64(1)) to be InvalidDType, got %v", FromAny(complex64(1)))
	}
	if FromAny("x") != InvalidDType {
		t.Fatalf("expected FromAny(\"x\") to be InvalidDType, got %v", FromAny("x"))
	}
}

func TestFromGenericsType(t *testing.T) {
	if FromGenericsType[uint32]() != Uint32 {
		t.Fatalf("expected FromGenericsType[uint32]() to be Uint32")
	}
	if FromGenericsType[float16.Float16]() != Float16 {
		t.Fatalf("expected FromGenericsType[float16.Float16]() to be Float16")
	}
	if FromGenericsType[bool]() != Bool {
		t.Fatalf("expected FromGenericsType[bool]() to be Bool")
	}
	for _, dtype := range All {
		if FromGoType(dtype.GoType()) != dtype {
			t.Fatalf("FromGoType(%s.GoType()) round trip failed", dtype)
		}
	}
}

func TestSize(t *testing.T) {
	if Int64.Size() != 8 {
		t.Fatalf("expected Int64.Size() to be 8, got %d", Int64.Size())
	}
	if Float32.Size() != 4 {
		t.Fatalf("expected Float32.Size() to be 4, got %d", Float32.Size())
	}
	if Float16.Size() != 2 {
		t.Fatalf("expected Float16.Size() to be 2, got %d", Float16.Size())
	}
	if Bool.Size() != 1 {
		t.Fatalf("expected Bool.Size() to be 1, got %d", Bool.Size())
	}
}

func TestMakeSlice(t *testing.T) {
	s := Int16.MakeSlice(3)
	if reflect.TypeOf(s) != reflect.TypeOf([]int16{}) {
		t.Fatalf("expected []int16, got %T", s)
	}
	if len(s.([]int16)) != 3 {
		t.Fatalf("expected length 3, got %d", len(s.([]int16)))
	}
}
