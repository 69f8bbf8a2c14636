// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensors

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/gomlx/ndarray/pkg/core/dtypes"
	"github.com/gomlx/ndarray/pkg/core/errs"
	"github.com/gomlx/ndarray/pkg/core/shapes"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func TestExtractPathsAgree(t *testing.T) {
	gw := newTestGateway(t)
	for _, dtype := range []dtypes.DType{dtypes.Int8, dtypes.Uint32, dtypes.Int64, dtypes.Float16, dtypes.Float32,
		dtypes.Float64} {
		for _, dims := range [][]int{{}, {1}, {7}, {2, 3}, {2, 1, 4}, {3, 0, 2}, {1, 1, 1}} {
			x := must.M1(Iota(gw, dtype, dims...))
			require.True(t, x.IsContiguous())
			span := must.M1(x.extractWith(extractSpan))
			strided := must.M1(x.extractWith(extractStrided))
			assert.Equal(t, span, strided, "dtype=%s, dims=%v", dtype, dims)
			assert.Equal(t, must.M1(x.ExtractContiguous()), span)
		}
	}

	// The span path is only valid for contiguous views.
	x := must.M1(Iota(gw, dtypes.Int32, 2, 3))
	_, err := must.M1(x.T()).extractWith(extractSpan)
	assert.True(t, errs.IsShapeError(err))

	// Contiguous views with an offset.
	row := must.M1(x.Index(1))
	assert.Equal(t, must.M1(row.extractWith(extractSpan)), must.M1(row.extractWith(extractStrided)))
	assert.Equal(t, []int32{3, 4, 5}, must.M1(row.extractWith(extractSpan)))
}

func TestExtractDegenerateSizes(t *testing.T) {
	gw := newTestGateway(t)

	// All axes of dimension 1: a single element.
	single := must.M1(FromFlatData(gw, []float32{3.5}, 1, 1, 1))
	flat := must.M1(single.ExtractContiguous())
	assert.Len(t, flat, 1)
	assert.Equal(t, 1, single.Size())
	assert.Equal(t, []float32{3.5}, flat)
	assert.Len(t, must.M1(single.Bytes()), 4)

	// Scalar.
	scalar := must.M1(Full(gw, int16(-3)))
	assert.Equal(t, 1, scalar.Size())
	assert.Equal(t, []int16{-3}, must.M1(scalar.ExtractContiguous()))
	assert.Equal(t, int16(-3), must.M1(scalar.ToValue()))

	// Zero-size axes anywhere, also reached by slicing and on strided views.
	for _, dims := range [][]int{{0}, {0, 3}, {3, 0}, {2, 0, 5}} {
		empty := must.M1(Zeros(gw, dtypes.Int32, dims...))
		assert.Equal(t, 0, empty.Size())
		assert.True(t, empty.IsContiguous())
		before := gw.Stats()
		flat := must.M1(empty.ExtractContiguous())
		assert.Equal(t, []int32{}, flat)
		assert.Equal(t, []byte{}, must.M1(empty.Bytes()))
		assertNoCrossings(t, gw, before, "extracting zero elements doesn't need the backend")
		transposed := must.M1(empty.Transpose())
		assert.Equal(t, []int32{}, must.M1(transposed.ExtractContiguous()))
	}
	x := must.M1(Iota(gw, dtypes.Int32, 4, 5))
	emptySlice := must.M1(x.Slice(AxisRange(2, 2), AxisRange().Stride(-2)))
	assert.Equal(t, []int{0, 3}, emptySlice.Shape().Dimensions)
	assert.Equal(t, []int32{}, must.M1(emptySlice.ExtractContiguous()))
	value := must.M1(emptySlice.ToValue()).([][]int32)
	assert.Len(t, value, 0)
}

func TestExtractIsACopy(t *testing.T) {
	gw := newTestGateway(t)
	x := must.M1(FromFlatData(gw, []int64{1, 2, 3}, 3))
	flat := must.M1(CopyFlat[int64](x))
	flat[0] = 100
	assert.Equal(t, int64(1), must.M1(At[int64](x, 0)))

	// DirectFlatData is the buffer itself.
	require.NoError(t, x.DirectFlatData(func(flat any) {
		flat.([]int64)[0] = 100
	}))
	assert.Equal(t, int64(100), must.M1(At[int64](x, 0)))
	assert.Error(t, x.DirectFlatData(nil))

	// DirectFlatData gives the whole buffer, not only the view.
	view := must.M1(x.Slice(AxisRange(1, 2)))
	require.NoError(t, view.DirectFlatData(func(flat any) {
		assert.Len(t, flat, 3)
	}))
}

func TestCopyFlatDType(t *testing.T) {
	gw := newTestGateway(t)
	x := must.M1(Iota(gw, dtypes.Float16, 3))
	assert.Equal(t, []float16.Float16{float16.Fromfloat32(0), float16.Fromfloat32(1), float16.Fromfloat32(2)},
		must.M1(CopyFlat[float16.Float16](x)))
	_, err := CopyFlat[float32](x)
	assert.True(t, errs.IsDTypeError(err))

	// Go int is stored as Int64, but can't be copied as []int.
	y := must.M1(FromFlatData(gw, []int{1, 2}, 2))
	assert.Equal(t, dtypes.Int64, y.DType())
	assert.Equal(t, []int64{1, 2}, must.M1(CopyFlat[int64](y)))
	_, err = CopyFlat[int](y)
	assert.True(t, errs.IsDTypeError(err))
}

func TestBytes(t *testing.T) {
	gw := newTestGateway(t)
	x := must.M1(FromValue(gw, [][]float32{{1, 2}, {3, 4}}))
	raw := must.M1(must.M1(x.T()).Bytes())
	require.Len(t, raw, 16)
	got := make([]float32, 4)
	for ii := range got {
		got[ii] = math.Float32frombits(binary.NativeEndian.Uint32(raw[ii*4:]))
	}
	assert.Equal(t, []float32{1, 3, 2, 4}, got)

	// Bytes round trip through ImportBytes.
	y := must.M1(ImportBytes(gw, raw, shapes.Make(dtypes.Float32, 2, 2)))
	assert.Equal(t, [][]float32{{1, 3}, {2, 4}}, must.M1(y.ToValue()))
}
