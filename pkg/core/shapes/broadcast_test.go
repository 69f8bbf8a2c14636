// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import (
	"testing"

	"github.com/gomlx/ndarray/pkg/core/dtypes"
	"github.com/gomlx/ndarray/pkg/core/errs"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestBroadcastDimensions(t *testing.T) {
	testCases := []struct {
		inputs [][]int
		want   []int
	}{
		{[][]int{{5, 4}, {4}}, []int{5, 4}},
		{[][]int{{5, 4}, {1}}, []int{5, 4}},
		{[][]int{{5, 1}, {1, 4}}, []int{5, 4}},
		{[][]int{{}, {3, 2}}, []int{3, 2}},
		{[][]int{{2, 1, 3}, {7, 1}, {1}}, []int{2, 7, 3}},
		{[][]int{{3, 0}, {1}}, []int{3, 0}},
		{[][]int{{3, 1}, {0}}, []int{3, 0}},
		{[][]int{{6}}, []int{6}},
	}
	for _, tc := range testCases {
		got, err := BroadcastDimensions(tc.inputs...)
		require.NoError(t, err, "BroadcastDimensions(%v)", tc.inputs)
		require.Equal(t, tc.want, got, "BroadcastDimensions(%v)", tc.inputs)
	}
}

func TestBroadcastDimensionsError(t *testing.T) {
	_, err := BroadcastDimensions([]int{5, 4}, []int{5})
	require.Error(t, err)
	var bErr *errs.BroadcastError
	require.True(t, errors.As(err, &bErr))
	require.Equal(t, 1, bErr.Axis)
	require.Equal(t, []int{5, 4}, bErr.ShapeA)
	require.Equal(t, []int{5}, bErr.ShapeB)
	require.Equal(t, 4, bErr.DimA)
	require.Equal(t, 5, bErr.DimB)

	_, err = BroadcastDimensions([]int{3, 0}, []int{3, 2})
	require.True(t, errs.IsBroadcastError(err))
}

func TestBroadcastFoldOrderIndependence(t *testing.T) {
	inputs := [][]int{{4, 1, 3}, {1}, {2, 1}, {1, 1, 1, 3}}
	want, err := BroadcastDimensions(inputs...)
	require.NoError(t, err)
	require.Equal(t, []int{1, 4, 2, 3}, want)

	// All permutations of the inputs yield the same result, and so does folding pairwise.
	permute(len(inputs), func(order []int) {
		permuted := make([][]int, len(order))
		for ii, idx := range order {
			permuted[ii] = inputs[idx]
		}
		got, err := BroadcastDimensions(permuted...)
		require.NoError(t, err)
		require.Equal(t, want, got, "order %v", order)

		folded := permuted[0]
		for _, dims := range permuted[1:] {
			folded, err = BroadcastDimensions(folded, dims)
			require.NoError(t, err)
		}
		require.Equal(t, want, folded, "pairwise fold in order %v", order)
	})

	// Failures are reported on the same axis in any order.
	bad := [][]int{{2, 3}, {4, 1}, {3}}
	permute(len(bad), func(order []int) {
		permuted := make([][]int, len(order))
		for ii, idx := range order {
			permuted[ii] = bad[idx]
		}
		_, err := BroadcastDimensions(permuted...)
		var bErr *errs.BroadcastError
		require.True(t, errors.As(err, &bErr))
		require.Equal(t, 0, bErr.Axis, "order %v", order)
	})
}

// permute calls fn with every permutation of [0, n).
func permute(n int, fn func(order []int)) {
	order := make([]int, n)
	for ii := range order {
		order[ii] = ii
	}
	var rec func(k int)
	rec = func(k int) {
		if k == n {
			fn(order)
			return
		}
		for ii := k; ii < n; ii++ {
			order[k], order[ii] = order[ii], order[k]
			rec(k + 1)
			order[k], order[ii] = order[ii], order[k]
		}
	}
	rec(0)
}

func TestBroadcastShapes(t *testing.T) {
	s, err := BroadcastShapes(Make(dtypes.Float32, 5, 4), Make(dtypes.Float32, 4))
	require.NoError(t, err)
	require.True(t, s.Equal(Make(dtypes.Float32, 5, 4)))
}

func TestBroadcastStrides(t *testing.T) {
	strides, err := BroadcastStrides([]int{4}, []int{1}, []int{5, 4})
	require.NoError(t, err)
	require.Equal(t, []int{0, 1}, strides)
	require.Equal(t, 0, BroadcastAxis([]int{5, 4}, strides))

	strides, err = BroadcastStrides([]int{3, 1}, []int{1, 1}, []int{3, 6})
	require.NoError(t, err)
	require.Equal(t, []int{1, 0}, strides)
	require.Equal(t, 1, BroadcastAxis([]int{3, 6}, strides))

	require.Equal(t, -1, BroadcastAxis([]int{3, 1}, []int{1, 0}))

	_, err = BroadcastStrides([]int{3}, []int{1}, []int{4})
	require.True(t, errs.IsBroadcastError(err))
	_, err = BroadcastStrides([]int{2, 3}, []int{3, 1}, []int{3})
	require.True(t, errs.IsShapeError(err))
}
