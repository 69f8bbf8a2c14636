// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import (
	"iter"

	"github.com/pkg/errors"
)

// Positions iterates, in row-major order of the logical indices, over the buffer positions of a strided view with
// the given dimensions, strides and offset.
//
// It yields the logical flat index (counter) and the position in the buffer, offset + Σ indices[i]*strides[i].
// Strides can be negative or zero (broadcast axes). Zero-size views yield nothing, and scalars yield
// only (0, offset).
func Positions(dimensions, strides []int, offset int) iter.Seq2[int, int] {
	if len(dimensions) != len(strides) {
		panic(errors.Errorf("shapes.Positions given len(strides) == %d, want it to be equal to the rank %d",
			len(strides), len(dimensions)))
	}
	return func(yield func(int, int) bool) {
		rank := len(dimensions)
		if SizeOf(dimensions) == 0 {
			return
		}
		if rank == 0 {
			_ = yield(0, offset)
			return
		}
		indices := make([]int, rank)
		pos := offset
		flatIdx := 0
	yielder:
		for {
			if !yield(flatIdx, pos) {
				return
			}
			flatIdx++
			for axis := rank - 1; axis >= 0; axis-- {
				indices[axis]++
				pos += strides[axis]
				if indices[axis] < dimensions[axis] {
					continue yielder
				}
				pos -= indices[axis] * strides[axis]
				indices[axis] = 0
			}
			break
		}
	}
}
