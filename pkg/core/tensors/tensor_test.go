// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensors

import (
	"math/rand/v2"
	"runtime"
	"testing"
	"time"

	"github.com/gomlx/ndarray/backends/simplego"
	"github.com/gomlx/ndarray/pkg/core/dtypes"
	"github.com/gomlx/ndarray/pkg/core/errs"
	"github.com/gomlx/ndarray/pkg/core/gateway"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestGateway returns a gateway over a new backend, finalized at the end of the test.
func newTestGateway(t *testing.T) *gateway.Gateway {
	backend, err := simplego.NewBackend("")
	require.NoError(t, err)
	t.Cleanup(backend.Finalize)
	return gateway.New(backend)
}

// liveBuffers returns the number of buffers allocated and not yet released by the backend.
func liveBuffers(t *testing.T, gw *gateway.Gateway) int64 {
	stats, ok := gw.MemoryStats()
	require.True(t, ok)
	return stats.LiveBuffers
}

// assertNoCrossings checks that nothing but releases crossed the gateway since before: unreachable views of
// previous steps may be released by the garbage collector at any time.
func assertNoCrossings(t *testing.T, gw *gateway.Gateway, before gateway.Stats, msgAndArgs ...any) {
	t.Helper()
	diff := gw.Stats().Sub(before)
	diff.Crossings -= diff.Releases
	diff.Releases = 0
	assert.Equal(t, gateway.Stats{}, diff, msgAndArgs...)
}

func TestFinalize(t *testing.T) {
	gw := newTestGateway(t)
	root := must.M1(Zeros(gw, dtypes.Float32, 10))
	assert.True(t, root.IsRoot())
	assert.Equal(t, 1, root.Handle().NumRefs())

	view := must.M1(root.Slice(AxisRange(2, 5)))
	assert.False(t, view.IsRoot())
	assert.True(t, view.SharesHandle(root))
	assert.Same(t, root.Handle(), view.Handle())
	assert.Equal(t, 2, root.Handle().NumRefs())

	// Finalizing the root first doesn't release the buffer, still referenced by the view.
	before := gw.Stats()
	require.NoError(t, root.Finalize())
	assert.Equal(t, int64(0), gw.Stats().Sub(before).Releases)
	assert.False(t, view.Handle().IsReleased())
	assert.Equal(t, []float32{0, 0, 0}, must.M1(CopyFlat[float32](view)))

	// Finalizing again is a no-op.
	require.NoError(t, root.Finalize())
	assert.Equal(t, 1, view.Handle().NumRefs())

	// The last view releases the buffer, exactly once.
	require.NoError(t, view.Finalize())
	assert.Equal(t, int64(1), gw.Stats().Sub(before).Releases)
	assert.True(t, view.Handle().IsReleased())
	assert.Equal(t, int64(0), liveBuffers(t, gw))
	require.NoError(t, view.Finalize())
	assert.Equal(t, int64(1), gw.Stats().Sub(before).Releases)

	// Any use after Finalize is an error.
	_, err := view.Slice(AxisRange(0, 1))
	assert.True(t, errors.Is(err, errs.ErrFinalized))
	_, err = view.ExtractContiguous()
	assert.True(t, errors.Is(err, errs.ErrFinalized))
	_, err = Neg(view)
	assert.True(t, errors.Is(err, errs.ErrFinalized))
	assert.True(t, errors.Is(view.Set(1, 0), errs.ErrFinalized))
	assert.Contains(t, view.String(), "invalid tensor")
	assert.True(t, view.IsFinalized())

	// A nil tensor can be finalized.
	var nilTensor *Tensor
	require.NoError(t, nilTensor.Finalize())
	require.Error(t, nilTensor.CheckValid())
}

func TestFinalizeInAnyOrder(t *testing.T) {
	gw := newTestGateway(t)
	rng := rand.New(rand.NewPCG(42, 0))
	for range 20 {
		root := must.M1(Iota(gw, dtypes.Int32, 4, 6))
		views := []*Tensor{root}
		for range 10 {
			// Each new view is derived from a random previous one: a chain of views.
			source := views[rng.IntN(len(views))]
			var view *Tensor
			switch rng.IntN(4) {
			case 0:
				view = must.M1(source.Transpose())
			case 1:
				view = must.M1(source.Slice(AxisRange().Stride(-1)))
			case 2:
				view = must.M1(source.Reshape(-1))
			default:
				view = must.M1(source.ExpandDims(0))
			}
			views = append(views, view)
		}
		before := gw.Stats()
		rng.Shuffle(len(views), func(i, j int) { views[i], views[j] = views[j], views[i] })
		for _, view := range views {
			require.NoError(t, view.Finalize())
		}
		released := gw.Stats().Sub(before).Releases
		// Reshape of non-contiguous views creates new buffers: those are released along with their views.
		assert.GreaterOrEqual(t, released, int64(1))
		assert.Equal(t, int64(0), liveBuffers(t, gw))
	}
}

func TestReleaseUnreachable(t *testing.T) {
	gw := newTestGateway(t)
	before := gw.Stats()
	func() {
		root := must.M1(Zeros(gw, dtypes.Float64, 10))
		view := must.M1(root.Slice(AxisRange(2, 5)))
		view = must.M1(view.Transpose())
		_ = view
	}()
	require.Eventually(t, func() bool {
		runtime.GC()
		return gw.Stats().Sub(before).Releases == 1
	}, 10*time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(0), liveBuffers(t, gw))
}

func TestNoPrematureRelease(t *testing.T) {
	gw := newTestGateway(t)
	root := must.M1(FromFlatData(gw, []int32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, 10))
	view := must.M1(root.Slice(AxisRange(2, 5)))
	handle := root.Handle()
	root = nil
	for range 3 {
		// Intermediate views, discarded right away.
		_ = must.M1(must.M1(view.ExpandDims(0)).Squeeze())
		runtime.GC()
	}
	assert.False(t, handle.IsReleased())
	assert.Equal(t, []int32{2, 3, 4}, must.M1(CopyFlat[int32](view)))
	require.NoError(t, view.Finalize())
	require.Eventually(t, func() bool {
		runtime.GC()
		return handle.IsReleased()
	}, 10*time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(0), liveBuffers(t, gw))
}

func TestHandleRefCounting(t *testing.T) {
	gw := newTestGateway(t)
	buffer := must.M1(gw.Alloc(dtypes.Int8, 4, true))
	handle := newHandle(gw, buffer, dtypes.Int8, 4)
	require.NoError(t, handle.acquire())
	require.NoError(t, handle.acquire())
	require.NoError(t, handle.release())
	assert.False(t, handle.IsReleased())
	require.NoError(t, handle.release())
	assert.True(t, handle.IsReleased())
	assert.Contains(t, handle.String(), "released")

	// Releasing or acquiring a released handle is reported, and never reaches the backend.
	before := gw.Stats()
	assert.True(t, errs.IsInternalFault(handle.release()))
	assert.True(t, errs.IsInternalFault(handle.acquire()))
	assert.Equal(t, gateway.Stats{}, gw.Stats().Sub(before))

	// The backend itself detects a second release of the same buffer.
	assert.True(t, errs.IsInternalFault(gw.Release(buffer)))
}

func TestZeroCrossings(t *testing.T) {
	gw := newTestGateway(t)
	root := must.M1(Iota(gw, dtypes.Float32, 4, 5, 6))
	before := gw.Stats()

	slice := must.M1(root.Slice(AxisRange(1, 3), AxisRange().Stride(2), AxisElem(-1)))
	assert.Equal(t, []int{2, 3, 1}, slice.Shape().Dimensions)
	transposed := must.M1(root.Transpose(2, 0, 1))
	reshaped := must.M1(root.Reshape(20, -1))
	assert.Equal(t, []int{20, 6}, reshaped.Shape().Dimensions)
	squeezed := must.M1(slice.Squeeze())
	expanded := must.M1(squeezed.ExpandDims(1))
	broadcast := must.M1(expanded.BroadcastTo(7, 2, 5, 3))
	indexed := must.M1(transposed.Index(1, 2))
	swapped := must.M1(root.SwapAxes(0, -1))
	flat := must.M1(root.Flatten())

	// Shape reads.
	for _, view := range []*Tensor{slice, transposed, reshaped, squeezed, expanded, broadcast, indexed, swapped, flat} {
		_ = view.Shape()
		_ = view.DType()
		_ = view.Size()
		_ = view.Strides()
		_ = view.IsContiguous()
		_ = view.Layout()
	}
	assertNoCrossings(t, gw, before)
	runtime.KeepAlive(root)
}

func TestLayout(t *testing.T) {
	gw := newTestGateway(t)
	x := must.M1(Zeros(gw, dtypes.Int32, 2, 3))
	assert.Equal(t, []int{3, 1}, x.Strides())
	assert.Equal(t, 0, x.Offset())
	assert.True(t, x.IsContiguous())
	assert.Contains(t, x.Layout(), "(Int32)[2 3]{strides=[3 1], offset=0, handle=")
	assert.Same(t, gw, x.Gateway())

	x3 := must.M1(Zeros(gw, dtypes.Int32, 2, 3, 4))
	assert.Equal(t, []int{12, 4, 1}, x3.Strides())
	assert.Equal(t, uintptr(96), x3.Memory())
}
