// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import (
	"fmt"

	"github.com/gomlx/ndarray/pkg/core/errs"
	"github.com/pkg/errors"
)

// NormalizeAxis converts a possibly negative axis (counting from the end) to its non-negative value.
//
// It returns an IndexError if axis is not in [-rank, rank).
func NormalizeAxis(op string, axis, rank int) (int, error) {
	adjusted := axis
	if adjusted < 0 {
		adjusted += rank
	}
	if adjusted < 0 || adjusted >= rank {
		return 0, errors.WithStack(&errs.IndexError{
			Axis: axis, Index: axis, Size: rank,
			Message: fmt.Sprintf("%s: axis %d out of range for rank %d", op, axis, rank),
		})
	}
	return adjusted, nil
}

// NormalizeAxes normalizes each of the axes with NormalizeAxis, and returns a ShapeError if any axis is repeated.
func NormalizeAxes(op string, axes []int, rank int) ([]int, error) {
	normalized := make([]int, len(axes))
	seen := make([]bool, rank)
	for ii, axis := range axes {
		adjusted, err := NormalizeAxis(op, axis, rank)
		if err != nil {
			return nil, err
		}
		if seen[adjusted] {
			return nil, errs.NewShapeError(op, "axis %d given more than once in %v", adjusted, axes)
		}
		seen[adjusted] = true
		normalized[ii] = adjusted
	}
	return normalized, nil
}
