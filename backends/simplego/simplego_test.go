// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package simplego

import (
	"math"
	"testing"

	"github.com/gomlx/ndarray/backends"
	"github.com/gomlx/ndarray/pkg/core/dtypes"
	"github.com/gomlx/ndarray/pkg/core/errs"
	"github.com/gomlx/ndarray/pkg/core/shapes"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func newTestBackend(t *testing.T, config string) *Backend {
	b, err := NewBackend(config)
	require.NoError(t, err)
	t.Cleanup(b.Finalize)
	return b
}

// bufferFromFlat creates a buffer with a copy of flat.
func bufferFromFlat[T SupportedTypesConstraints](t *testing.T, b *Backend, flat []T) *Buffer {
	dtype := dtypes.FromGenericsType[T]()
	buffer, err := b.NewBuffer(dtype, len(flat), false)
	require.NoError(t, err)
	copy(buffer.(*Buffer).flat.([]T), flat)
	return buffer.(*Buffer)
}

// contiguous returns the operand for a row-major contiguous view of the whole buffer.
func contiguous(buffer *Buffer, dims ...int) backends.Operand {
	shape := shapes.Make(buffer.dtype, dims...)
	return backends.Operand{Buffer: buffer, Shape: shape, Strides: shape.Strides()}
}

func execute(t *testing.T, b *Backend, opType backends.OpType, params backends.Params, operands ...backends.Operand) (any, shapes.Shape) {
	result, err := b.Execute(opType, operands, params)
	require.NoError(t, err)
	flat := must.M1(b.BufferData(result.Buffer))
	return flat, result.Shape
}

func TestNew(t *testing.T) {
	b := newTestBackend(t, "max_memory=1KiB,parallelism=3")
	assert.Equal(t, uint64(1024), b.maxMemory)
	assert.Equal(t, 3, b.workers.MaxParallelism())
	assert.Contains(t, b.Description(), "1.0 KiB")

	_, err := NewBackend("max_memory=lots")
	require.Error(t, err)
	_, err = NewBackend("parallelism=many")
	require.Error(t, err)
	_, err = NewBackend("colour=blue")
	require.Error(t, err)

	// Through the registry.
	backend, err := backends.NewWithConfig("go:parallelism=0")
	require.NoError(t, err)
	assert.Equal(t, BackendName, backend.Name())
	backend.Finalize()
}

func TestBuffers(t *testing.T) {
	b := newTestBackend(t, "")
	buffer, err := b.NewBuffer(dtypes.Int32, 5, true)
	require.NoError(t, err)
	assert.Equal(t, []int32{0, 0, 0, 0, 0}, must.M1(b.BufferData(buffer)))
	assert.Equal(t, dtypes.Int32, must.M1(b.BufferDType(buffer)))
	assert.Equal(t, 5, must.M1(b.BufferSize(buffer)))

	imported, err := b.BufferFromBytes(dtypes.Uint8, 3, []byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, []uint8{1, 2, 3}, must.M1(b.BufferData(imported)))
	_, err = b.BufferFromBytes(dtypes.Uint16, 3, []byte{1, 2, 3})
	assert.True(t, errs.IsShapeError(err), "got %v", err)

	stats := b.MemoryStats()
	assert.Equal(t, int64(2), stats.LiveBuffers)
	assert.Equal(t, int64(5*4+3), stats.LiveBytes)

	require.NoError(t, b.BufferFinalize(buffer))
	require.NoError(t, b.BufferFinalize(imported))
	err = b.BufferFinalize(buffer)
	require.Error(t, err, "double finalize must be detected")
	assert.Contains(t, err.Error(), "already finalized")
	_, err = b.BufferData(buffer)
	require.Error(t, err)

	stats = b.MemoryStats()
	assert.Equal(t, backends.MemoryStats{Allocations: 2, Finalizations: 2}, stats)

	// Reused memory from the pool still gets a new buffer: the old reference stays invalid.
	again, err := b.NewBuffer(dtypes.Int32, 5, false)
	require.NoError(t, err)
	require.Error(t, b.BufferFinalize(buffer))
	require.NoError(t, b.BufferFinalize(again))
}

func TestMaxMemory(t *testing.T) {
	b := newTestBackend(t, "max_memory=100")
	first, err := b.NewBuffer(dtypes.Float64, 10, false)
	require.NoError(t, err)
	_, err = b.NewBuffer(dtypes.Float64, 10, false)
	require.Error(t, err)
	assert.True(t, errs.IsAllocationError(err), "got %v", err)

	// The output of an operation is also limited.
	_, err = b.Execute(backends.OpTypeCopy, []backends.Operand{contiguous(first.(*Buffer), 10)}, backends.Params{})
	assert.True(t, errs.IsAllocationError(err), "got %v", err)

	require.NoError(t, b.BufferFinalize(first))
	second, err := b.NewBuffer(dtypes.Float64, 10, false)
	require.NoError(t, err)
	require.NoError(t, b.BufferFinalize(second))
}

func TestExecuteCopyStrided(t *testing.T) {
	b := newTestBackend(t, "")
	buffer := bufferFromFlat(t, b, []int32{0, 1, 2, 3, 4, 5})

	// Transposed [2, 3] -> [3, 2].
	flat, shape := execute(t, b, backends.OpTypeCopy, backends.Params{}, backends.Operand{
		Buffer: buffer, Shape: shapes.Make(dtypes.Int32, 3, 2), Strides: []int{1, 3}})
	assert.True(t, shape.Equal(shapes.Make(dtypes.Int32, 3, 2)))
	assert.Equal(t, []int32{0, 3, 1, 4, 2, 5}, flat)

	// Reversed with negative stride, starting at the end.
	flat, _ = execute(t, b, backends.OpTypeCopy, backends.Params{}, backends.Operand{
		Buffer: buffer, Shape: shapes.Make(dtypes.Int32, 3), Strides: []int{-2}, Offset: 5})
	assert.Equal(t, []int32{5, 3, 1}, flat)

	// Zero-size and scalar.
	flat, _ = execute(t, b, backends.OpTypeCopy, backends.Params{}, backends.Operand{
		Buffer: buffer, Shape: shapes.Make(dtypes.Int32, 0, 3), Strides: []int{3, 1}, Offset: 6})
	assert.Len(t, flat, 0)
	flat, _ = execute(t, b, backends.OpTypeCopy, backends.Params{}, backends.Operand{
		Buffer: buffer, Shape: shapes.Make(dtypes.Int32), Offset: 4})
	assert.Equal(t, []int32{4}, flat)

	// Out-of-range descriptors are rejected.
	_, err := b.Execute(backends.OpTypeCopy, []backends.Operand{{
		Buffer: buffer, Shape: shapes.Make(dtypes.Int32, 3), Strides: []int{2}, Offset: 2}}, backends.Params{})
	require.Error(t, err)
	_, err = b.Execute(backends.OpTypeCopy, []backends.Operand{{
		Buffer: buffer, Shape: shapes.Make(dtypes.Float32, 3), Strides: []int{1}}}, backends.Params{})
	require.Error(t, err)
}

func TestExecuteConvertDType(t *testing.T) {
	b := newTestBackend(t, "")
	buffer := bufferFromFlat(t, b, []float32{-1.5, 0, 2.25})
	flat, _ := execute(t, b, backends.OpTypeConvertDType, backends.Params{DType: dtypes.Int16}, contiguous(buffer, 3))
	assert.Equal(t, []int16{-1, 0, 2}, flat)
	flat, _ = execute(t, b, backends.OpTypeConvertDType, backends.Params{DType: dtypes.Float16}, contiguous(buffer, 3))
	assert.Equal(t, []float16.Float16{float16.Fromfloat32(-1.5), float16.Fromfloat32(0), float16.Fromfloat32(2.25)}, flat)

	bools := bufferFromFlat(t, b, []bool{true, false})
	flat, _ = execute(t, b, backends.OpTypeConvertDType, backends.Params{DType: dtypes.Float64}, contiguous(bools, 2))
	assert.Equal(t, []float64{1, 0}, flat)

	_, err := b.Execute(backends.OpTypeConvertDType, []backends.Operand{contiguous(buffer, 3)},
		backends.Params{DType: dtypes.Bool})
	assert.True(t, errs.IsDTypeError(err), "got %v", err)
}

func TestExecuteUnary(t *testing.T) {
	b := newTestBackend(t, "")
	ints := bufferFromFlat(t, b, []int8{-3, 0, 5})
	flat, _ := execute(t, b, backends.OpTypeAbs, backends.Params{}, contiguous(ints, 3))
	assert.Equal(t, []int8{3, 0, 5}, flat)
	flat, _ = execute(t, b, backends.OpTypeNeg, backends.Params{}, contiguous(ints, 3))
	assert.Equal(t, []int8{3, 0, -5}, flat)

	floats := bufferFromFlat(t, b, []float64{1, 4, 9})
	flat, _ = execute(t, b, backends.OpTypeSqrt, backends.Params{}, contiguous(floats, 3))
	assert.Equal(t, []float64{1, 2, 3}, flat)

	halves := bufferFromFlat(t, b, []float16.Float16{float16.Fromfloat32(4), float16.Fromfloat32(16)})
	flat, _ = execute(t, b, backends.OpTypeSqrt, backends.Params{}, contiguous(halves, 2))
	assert.Equal(t, []float16.Float16{float16.Fromfloat32(2), float16.Fromfloat32(4)}, flat)

	_, err := b.Execute(backends.OpTypeExp, []backends.Operand{contiguous(ints, 3)}, backends.Params{})
	assert.True(t, errs.IsDTypeError(err), "got %v", err)
}

func TestExecuteBinary(t *testing.T) {
	b := newTestBackend(t, "")
	lhs := bufferFromFlat(t, b, []int8{10, 20})
	rhs := bufferFromFlat(t, b, []float32{1, 2, 3})

	// [2, 1] + [3] -> [2, 3], promoted to Float32.
	flat, shape := execute(t, b, backends.OpTypeAdd, backends.Params{}, contiguous(lhs, 2, 1), contiguous(rhs, 3))
	assert.True(t, shape.Equal(shapes.Make(dtypes.Float32, 2, 3)), "got %s", shape)
	assert.Equal(t, []float32{11, 12, 13, 21, 22, 23}, flat)

	flat, _ = execute(t, b, backends.OpTypeMax, backends.Params{},
		contiguous(bufferFromFlat(t, b, []uint8{1, 200}), 2), contiguous(bufferFromFlat(t, b, []int8{-1, 3}), 2))
	assert.Equal(t, []int16{1, 200}, flat)

	// Float64 Add/Mul go through the vectorized kernels, including broadcast operands.
	f64 := bufferFromFlat(t, b, []float64{1, 2, 3, 4, 5, 6, 7, 8})
	scalar := bufferFromFlat(t, b, []float64{0.5})
	flat, _ = execute(t, b, backends.OpTypeMul, backends.Params{}, contiguous(f64, 8), contiguous(scalar))
	assert.Equal(t, []float64{0.5, 1, 1.5, 2, 2.5, 3, 3.5, 4}, flat)
	flat, _ = execute(t, b, backends.OpTypeAdd, backends.Params{}, contiguous(f64, 2, 4), backends.Operand{
		Buffer: f64, Shape: shapes.Make(dtypes.Float64, 2, 4), Strides: []int{1, 2}})
	assert.Equal(t, []float64{2, 5, 8, 11, 7, 10, 13, 16}, flat)
	flat, _ = execute(t, b, backends.OpTypeDiv, backends.Params{}, contiguous(f64, 8), contiguous(scalar))
	assert.Equal(t, []float64{2, 4, 6, 8, 10, 12, 14, 16}, flat)

	_, err := b.Execute(backends.OpTypeAdd, []backends.Operand{contiguous(f64, 2, 4), contiguous(rhs, 3)},
		backends.Params{})
	assert.True(t, errs.IsBroadcastError(err), "got %v", err)
}

func TestIntegerDivisionByZeroPanics(t *testing.T) {
	b := newTestBackend(t, "")
	lhs := bufferFromFlat(t, b, []int32{1, 2})
	rhs := bufferFromFlat(t, b, []int32{1, 0})
	before := b.MemoryStats()
	require.Panics(t, func() {
		_, _ = b.Execute(backends.OpTypeDiv, []backends.Operand{contiguous(lhs, 2), contiguous(rhs, 2)}, backends.Params{})
	})
	after := b.MemoryStats()
	assert.Equal(t, before.LiveBuffers, after.LiveBuffers, "the output buffer must be freed")
}

func TestExecuteReduce(t *testing.T) {
	b := newTestBackend(t, "")
	buffer := bufferFromFlat(t, b, []int32{1, 2, 3, 4, 5, 6})
	flat, shape := execute(t, b, backends.OpTypeReduceSum, backends.Params{Axes: []int{0}}, contiguous(buffer, 2, 3))
	assert.True(t, shape.Equal(shapes.Make(dtypes.Int32, 3)))
	assert.Equal(t, []int32{5, 7, 9}, flat)
	flat, _ = execute(t, b, backends.OpTypeReduceSum, backends.Params{}, contiguous(buffer, 2, 3))
	assert.Equal(t, []int32{21}, flat)
	flat, _ = execute(t, b, backends.OpTypeReduceMax, backends.Params{Axes: []int{-1}}, contiguous(buffer, 2, 3))
	assert.Equal(t, []int32{3, 6}, flat)

	// Transposed view: [3, 2] with strides [1, 3].
	flat, _ = execute(t, b, backends.OpTypeReduceMax, backends.Params{Axes: []int{0}}, backends.Operand{
		Buffer: buffer, Shape: shapes.Make(dtypes.Int32, 3, 2), Strides: []int{1, 3}})
	assert.Equal(t, []int32{3, 6}, flat)

	// Sum of an empty axis is 0.
	flat, _ = execute(t, b, backends.OpTypeReduceSum, backends.Params{Axes: []int{1}}, backends.Operand{
		Buffer: buffer, Shape: shapes.Make(dtypes.Int32, 2, 0), Strides: []int{3, 1}})
	assert.Equal(t, []int32{0, 0}, flat)
}

func TestExecuteStatistical(t *testing.T) {
	b := newTestBackend(t, "")
	buffer := bufferFromFlat(t, b, []int32{1, 2, 3, 4, 5, 6})
	flat, shape := execute(t, b, backends.OpTypeMean, backends.Params{Axes: []int{1}}, contiguous(buffer, 2, 3))
	assert.True(t, shape.Equal(shapes.Make(dtypes.Float64, 2)))
	assert.Equal(t, []float64{2, 5}, flat)

	flat, _ = execute(t, b, backends.OpTypeVariance, backends.Params{}, contiguous(buffer, 6))
	assert.InDelta(t, 17.5/6, flat.([]float64)[0], 1e-12)
	flat, _ = execute(t, b, backends.OpTypeVariance, backends.Params{DDoF: 1}, contiguous(buffer, 6))
	assert.InDelta(t, 3.5, flat.([]float64)[0], 1e-12)
	flat, shape = execute(t, b, backends.OpTypeStd, backends.Params{DDoF: 1, DType: dtypes.Float32}, contiguous(buffer, 6))
	assert.Equal(t, dtypes.Float32, shape.DType)
	assert.InDelta(t, math.Sqrt(3.5), float64(flat.([]float32)[0]), 1e-6)

	// DDoF >= N gives NaN.
	flat, _ = execute(t, b, backends.OpTypeVariance, backends.Params{DDoF: 6}, contiguous(buffer, 6))
	assert.True(t, math.IsNaN(flat.([]float64)[0]))

	// Booleans are reduced as 0 and 1, also through a strided view.
	bools := bufferFromFlat(t, b, []bool{true, false, false, true, true, true})
	flat, _ = execute(t, b, backends.OpTypeMean, backends.Params{Axes: []int{0}}, backends.Operand{
		Buffer: bools, Shape: shapes.Make(dtypes.Bool, 3, 2), Strides: []int{1, 3}})
	assert.Equal(t, []float64{1.0 / 3, 1}, flat)
}

func TestExecuteMatMul(t *testing.T) {
	b := newTestBackend(t, "parallelism=2")
	lhs := bufferFromFlat(t, b, []int32{1, 2, 3, 4, 5, 6})
	rhs := bufferFromFlat(t, b, []int32{1, 0, 0, 1, 1, 1})
	flat, shape := execute(t, b, backends.OpTypeMatMul, backends.Params{}, contiguous(lhs, 2, 3), contiguous(rhs, 3, 2))
	assert.True(t, shape.Equal(shapes.Make(dtypes.Int32, 2, 2)))
	assert.Equal(t, []int32{4, 5, 10, 11}, flat)

	// Float64 with a transposed rhs, large enough to use more than one worker.
	const m, k, n = 33, 5, 4
	lhsF64 := make([]float64, m*k)
	for ii := range lhsF64 {
		lhsF64[ii] = float64(ii % 7)
	}
	rhsF64 := make([]float64, n*k) // Stored as [n, k], used as [k, n].
	for ii := range rhsF64 {
		rhsF64[ii] = float64(ii%3) - 1
	}
	flat, _ = execute(t, b, backends.OpTypeMatMul, backends.Params{},
		contiguous(bufferFromFlat(t, b, lhsF64), m, k),
		backends.Operand{Buffer: bufferFromFlat(t, b, rhsF64), Shape: shapes.Make(dtypes.Float64, k, n), Strides: []int{1, k}})
	got := flat.([]float64)
	for row := range m {
		for col := range n {
			var want float64
			for kk := range k {
				want += lhsF64[row*k+kk] * rhsF64[col*k+kk]
			}
			require.InDeltaf(t, want, got[row*n+col], 1e-9, "output[%d, %d]", row, col)
		}
	}
}

func TestExecuteFillIota(t *testing.T) {
	b := newTestBackend(t, "")
	flat, shape := execute(t, b, backends.OpTypeFill, backends.Params{DType: dtypes.Float32, Dimensions: []int{2, 2}, Scalar: 3})
	assert.True(t, shape.Equal(shapes.Make(dtypes.Float32, 2, 2)))
	assert.Equal(t, []float32{3, 3, 3, 3}, flat)
	flat, _ = execute(t, b, backends.OpTypeFill, backends.Params{DType: dtypes.Bool, Dimensions: []int{2}, Scalar: true})
	assert.Equal(t, []bool{true, true}, flat)

	flat, _ = execute(t, b, backends.OpTypeIota, backends.Params{DType: dtypes.Uint16, Dimensions: []int{2, 3}})
	assert.Equal(t, []uint16{0, 1, 2, 3, 4, 5}, flat)
	flat, _ = execute(t, b, backends.OpTypeIota, backends.Params{DType: dtypes.Float16, Dimensions: []int{3}})
	assert.Equal(t, []float16.Float16{float16.Fromfloat32(0), float16.Fromfloat32(1), float16.Fromfloat32(2)}, flat)
}

func TestFinalizedBackend(t *testing.T) {
	b, err := NewBackend("")
	require.NoError(t, err)
	buffer := bufferFromFlat(t, b, []float32{1})
	b.Finalize()
	assert.True(t, b.IsFinalized())
	_, err = b.NewBuffer(dtypes.Float32, 1, false)
	require.Error(t, err)
	_, err = b.Execute(backends.OpTypeCopy, []backends.Operand{contiguous(buffer)}, backends.Params{})
	require.Error(t, err)
	require.NoError(t, b.BufferFinalize(buffer))
	assert.Equal(t, int64(0), b.MemoryStats().LiveBuffers)
}
