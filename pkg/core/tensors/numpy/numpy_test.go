// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package numpy

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/gomlx/ndarray/backends/simplego"
	"github.com/gomlx/ndarray/pkg/core/dtypes"
	"github.com/gomlx/ndarray/pkg/core/errs"
	"github.com/gomlx/ndarray/pkg/core/gateway"
	"github.com/gomlx/ndarray/pkg/core/tensors"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGateway(t *testing.T) *gateway.Gateway {
	backend, err := simplego.NewBackend("")
	require.NoError(t, err)
	t.Cleanup(backend.Finalize)
	return gateway.New(backend)
}

// npyBytes builds a .npy v1.0 file with the given header dictionary and raw data.
func npyBytes(header string, data []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString(magic)
	buf.Write([]byte{1, 0})
	_ = binary.Write(&buf, binary.LittleEndian, uint16(len(header)+1))
	buf.WriteString(header)
	buf.WriteByte('\n')
	buf.Write(data)
	return buf.Bytes()
}

func TestNpyRoundTrip(t *testing.T) {
	gw := newTestGateway(t)
	for _, tensor := range []*tensors.Tensor{
		tensors.MustIota(gw, dtypes.Float32, 2, 3),
		must.M1(tensors.MustIota(gw, dtypes.Int16, 2, 3, 4).Transpose(2, 0, 1)),
		tensors.MustFromValue(gw, uint8(7)),
		tensors.MustFromFlatData(gw, []bool{true, false, true}, 3),
		tensors.MustIota(gw, dtypes.Float16, 5),
		tensors.MustZeros(gw, dtypes.Int64, 0, 2),
	} {
		var buf bytes.Buffer
		require.NoError(t, ToNpyWriter(tensor, &buf))
		preamble := len(magic) + 4
		headerLen := int(binary.LittleEndian.Uint16(buf.Bytes()[len(magic)+2:]))
		assert.Equal(t, 0, (preamble+headerLen)%64, "header must be aligned to 64 bytes")

		loaded, err := FromNpyReader(gw, &buf)
		require.NoError(t, err)
		assert.True(t, loaded.Shape().Equal(tensor.Shape()), "got %s, wanted %s", loaded.Shape(), tensor.Shape())
		assert.True(t, loaded.IsRoot())
		assert.Equal(t, must.M1(tensor.ExtractContiguous()), must.M1(loaded.ExtractContiguous()))
	}
}

func TestFortranOrder(t *testing.T) {
	gw := newTestGateway(t)
	// Column-major [[0, 1, 2], [3, 4, 5]].
	data := make([]byte, 0, 6*4)
	for _, value := range []int32{0, 3, 1, 4, 2, 5} {
		data = binary.LittleEndian.AppendUint32(data, uint32(value))
	}
	file := npyBytes("{'descr': '<i4', 'fortran_order': True, 'shape': (2, 3), }", data)
	before := gw.Stats()
	tensor, err := FromNpyReader(gw, bytes.NewReader(file))
	require.NoError(t, err)
	assert.Equal(t, int64(0), gw.Stats().Sub(before).Executions, "Fortran order is read as a transposed view")
	assert.Equal(t, []int{2, 3}, tensor.Shape().Dimensions)
	assert.Equal(t, []int{1, 2}, tensor.Strides())
	assert.False(t, tensor.IsRoot())
	assert.Equal(t, [][]int32{{0, 1, 2}, {3, 4, 5}}, must.M1(tensor.ToValue()))
}

func TestBigEndian(t *testing.T) {
	gw := newTestGateway(t)
	data := binary.BigEndian.AppendUint16(nil, 258)
	data = binary.BigEndian.AppendUint16(data, 1)
	tensor, err := FromNpyReader(gw, bytes.NewReader(npyBytes("{'descr': '>u2', 'fortran_order': False, 'shape': (2,), }", data)))
	require.NoError(t, err)
	assert.Equal(t, []uint16{258, 1}, must.M1(tensors.CopyFlat[uint16](tensor)))
}

func TestNpyErrors(t *testing.T) {
	gw := newTestGateway(t)
	for name, file := range map[string][]byte{
		"magic":     []byte("not numpy at all"),
		"truncated": npyBytes("{'descr': '<f8', 'fortran_order': False, 'shape': (4,), }", make([]byte, 8)),
		"dtype":     npyBytes("{'descr': '<c16', 'fortran_order': False, 'shape': (1,), }", make([]byte, 16)),
		"noShape":   npyBytes("{'descr': '<f8', 'fortran_order': False, }", nil),
		"badDim":    npyBytes("{'descr': '<f8', 'fortran_order': False, 'shape': (x,), }", nil),
		"negative":  npyBytes("{'descr': '<f8', 'fortran_order': False, 'shape': (-1,), }", nil),
	} {
		_, err := FromNpyReader(gw, bytes.NewReader(file))
		assert.Error(t, err, "case %q", name)
	}

	tensor := tensors.MustIota(gw, dtypes.Int32, 2)
	tensor.MustFinalize()
	assert.Error(t, ToNpyWriter(tensor, &bytes.Buffer{}))
}

func TestNpyUntrustedSizes(t *testing.T) {
	gw := newTestGateway(t)
	liveBuffers := func() int64 {
		stats, ok := gw.MemoryStats()
		require.True(t, ok)
		return stats.LiveBuffers
	}

	// A v2.0 header declaring a length far beyond any real header.
	var buf bytes.Buffer
	buf.WriteString(magic)
	buf.Write([]byte{2, 0})
	_ = binary.Write(&buf, binary.LittleEndian, uint32(1<<31))
	buf.WriteString("{'descr': '<f8', 'fortran_order': False, 'shape': (1,), }\n")
	_, err := FromNpyReader(gw, bytes.NewReader(buf.Bytes()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "header length")

	// Dimensions whose size in bytes overflows.
	file := npyBytes("{'descr': '<f8', 'fortran_order': False, 'shape': (4294967296, 4294967296), }", nil)
	_, err = FromNpyReader(gw, bytes.NewReader(file))
	assert.True(t, errs.IsShapeError(err), "got %v", err)
	file = npyBytes("{'descr': '<i2', 'fortran_order': False, 'shape': (0, 4294967296, 4294967296), }", nil)
	empty, err := FromNpyReader(gw, bytes.NewReader(file))
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Size())

	// A huge declared size with truncated data fails on reading, before anything is allocated by the backend.
	before := liveBuffers()
	file = npyBytes("{'descr': '<f8', 'fortran_order': False, 'shape': (1099511627776,), }", make([]byte, 16))
	_, err = FromNpyReader(gw, bytes.NewReader(file))
	require.Error(t, err)
	assert.Equal(t, before, liveBuffers())
}

func TestNpz(t *testing.T) {
	gw := newTestGateway(t)
	filePath := filepath.Join(t.TempDir(), "arrays.npz")
	arrays := map[string]*tensors.Tensor{
		"weights": tensors.MustIota(gw, dtypes.Float64, 3, 2),
		"bias":    must.M1(tensors.MustIota(gw, dtypes.Int32, 4).Slice(tensors.AxisRange().Stride(-1))),
	}
	require.NoError(t, ToNpzFile(arrays, filePath))
	loaded, err := FromNpzFile(gw, filePath)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	for name, tensor := range arrays {
		assert.Equal(t, must.M1(tensor.ToValue()), must.M1(loaded[name].ToValue()), "array %q", name)
	}
	assert.Equal(t, []int32{3, 2, 1, 0}, must.M1(tensors.CopyFlat[int32](loaded["bias"])))

	// Single .npy files.
	npyPath := filepath.Join(t.TempDir(), "weights.npy")
	require.NoError(t, ToNpyFile(arrays["weights"], npyPath))
	weights, err := FromNpyFile(gw, npyPath)
	require.NoError(t, err)
	assert.Equal(t, must.M1(arrays["weights"].ToValue()), must.M1(weights.ToValue()))
}

func TestNpzInvalidArchive(t *testing.T) {
	gw := newTestGateway(t)
	var buf bytes.Buffer
	zipWriter := zip.NewWriter(&buf)
	source := tensors.MustIota(gw, dtypes.Int8, 3)
	good := must.M1(zipWriter.Create("good.npy"))
	require.NoError(t, ToNpyWriter(source, good))
	_ = must.M1(zipWriter.Create("README.txt"))
	bad := must.M1(zipWriter.Create("bad.npy"))
	_, _ = bad.Write([]byte("garbage"))
	require.NoError(t, zipWriter.Close())

	stats, ok := gw.MemoryStats()
	require.True(t, ok)
	live := stats.LiveBuffers
	_, err := FromNpzReader(gw, bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.Error(t, err)
	stats, _ = gw.MemoryStats()
	assert.Equal(t, live, stats.LiveBuffers, "arrays read before the error are released")
	require.NoError(t, source.Finalize())
}
